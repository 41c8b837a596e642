// Package form holds the record creation form and its operator/commutator
// selector pair.
package form

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"switchdesk/internal/cli/api"
	"switchdesk/internal/problem/model"
)

// Lookups loads selector options.
type Lookups interface {
	Operators(ctx context.Context) api.Result[[]string]
	Commutators(ctx context.Context, operator string) api.Result[[]string]
}

// Creator submits a record.
type Creator interface {
	Create(ctx context.Context, req api.CreateRequest) api.Result[model.Problem]
}

// Fields lists the settable field names in prompt order.
var Fields = []string{"operator", "commutator", "product_id", "start_date", "end_date", "note", "status", "answer"}

// ProblemForm is the creation form state.
type ProblemForm struct {
	lookups Lookups
	creator Creator

	req         api.CreateRequest
	operators   []string
	commutators []string
	// stale is set while the options do not belong to req.Operator.
	stale bool
}

func New(lookups Lookups, creator Creator) *ProblemForm {
	return &ProblemForm{
		lookups:     lookups,
		creator:     creator,
		operators:   []string{},
		commutators: []string{},
	}
}

// LoadOperators refreshes the operator options. On failure the options are
// empty and the error message is returned.
func (f *ProblemForm) LoadOperators(ctx context.Context) error {
	result := f.lookups.Operators(ctx)
	f.operators = result.Data
	if !result.Success {
		return fmt.Errorf("load operators: %s", result.Error)
	}
	return nil
}

// SetOperator changes the operator and reconciles the commutator: it
// becomes the first option of the new operator, or empty when there is
// none. Any typed commutator is overwritten. Setting the same operator
// again changes nothing. When the lookup fails the commutator and its
// options are left as they were, and the next SetOperator retries.
func (f *ProblemForm) SetOperator(ctx context.Context, operator string) error {
	operator = strings.TrimSpace(operator)
	if operator == f.req.Operator && !f.stale {
		return nil
	}
	f.req.Operator = operator

	options := []string{}
	if operator != "" {
		result := f.lookups.Commutators(ctx, operator)
		if !result.Success {
			f.stale = true
			return fmt.Errorf("load commutators: %s", result.Error)
		}
		if result.Data != nil {
			options = result.Data
		}
	}
	f.stale = false
	f.commutators = options
	f.req.Commutator = ""
	if len(options) > 0 {
		f.req.Commutator = options[0]
	}
	return nil
}

// SetCommutator sets the commutator. Values outside the options are kept
// as new commutators; created reports that case.
func (f *ProblemForm) SetCommutator(commutator string) (created bool) {
	commutator = strings.TrimSpace(commutator)
	f.req.Commutator = commutator
	return commutator != "" && !slices.Contains(f.commutators, commutator)
}

// Set assigns any field by name.
func (f *ProblemForm) Set(ctx context.Context, field, value string) error {
	switch field {
	case "operator":
		return f.SetOperator(ctx, value)
	case "commutator":
		f.SetCommutator(value)
	case "product_id":
		f.req.ProductID = strings.TrimSpace(value)
	case "start_date":
		f.req.StartDate = strings.TrimSpace(value)
	case "end_date":
		f.req.EndDate = strings.TrimSpace(value)
	case "note":
		f.req.Note = value
	case "status":
		f.req.Status = strings.TrimSpace(value)
	case "answer":
		f.req.Answer = value
	default:
		return fmt.Errorf("unknown field: %s", field)
	}
	return nil
}

func (f *ProblemForm) Operators() []string   { return slices.Clone(f.operators) }
func (f *ProblemForm) Commutators() []string { return slices.Clone(f.commutators) }

// Request returns the payload as currently filled.
func (f *ProblemForm) Request() api.CreateRequest {
	return f.req
}

// Submit sends the form. The form is cleared only on success.
func (f *ProblemForm) Submit(ctx context.Context) api.Result[model.Problem] {
	result := f.creator.Create(ctx, f.req)
	if result.Success {
		f.Reset()
	}
	return result
}

// Reset clears every field and the commutator options.
func (f *ProblemForm) Reset() {
	f.req = api.CreateRequest{}
	f.commutators = []string{}
	f.stale = false
}
