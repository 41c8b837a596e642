package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"switchdesk/internal/problem/model"
	pkgerrors "switchdesk/pkg/errors"

	"github.com/go-playground/validator/v10"
)

// CreateInput is the creation request. Dates are YYYY-MM-DD or RFC3339.
type CreateInput struct {
	Operator   string `json:"operator" validate:"required,max=255"`
	Commutator string `json:"commutator" validate:"required,max=255"`
	ProductID  string `json:"product_id" validate:"required,max=255"`
	StartDate  string `json:"start_date" validate:"required"`
	EndDate    string `json:"end_date"`
	Note       string `json:"note" validate:"max=1024"`
	Status     string `json:"status" validate:"omitempty,oneof=active inactive"`
	Answer     string `json:"answer"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (in *CreateInput) normalize() {
	in.Operator = strings.TrimSpace(in.Operator)
	in.Commutator = strings.TrimSpace(in.Commutator)
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.StartDate = strings.TrimSpace(in.StartDate)
	in.EndDate = strings.TrimSpace(in.EndDate)
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
}

// toProblem validates the input and builds the record to insert. Every
// failing field gets its own message.
func (in CreateInput) toProblem(v *validator.Validate) (*model.Problem, error) {
	in.normalize()

	fields := make(map[string]string)
	if err := v.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, pkgerrors.Wrap(err, pkgerrors.ValidationFailed)
		}
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}

	problem := &model.Problem{
		Operator:   in.Operator,
		Commutator: in.Commutator,
		ProductID:  in.ProductID,
		Note:       in.Note,
		Status:     model.Status(in.Status),
		Answer:     in.Answer,
	}
	if _, failed := fields["start_date"]; !failed && in.StartDate != "" {
		if d, err := model.ParseDate(in.StartDate); err != nil {
			fields["start_date"] = "start_date must be a date (YYYY-MM-DD)"
		} else {
			problem.StartDate = &d
		}
	}
	if in.EndDate != "" {
		if d, err := model.ParseDate(in.EndDate); err != nil {
			fields["end_date"] = "end_date must be a date (YYYY-MM-DD)"
		} else {
			problem.EndDate = &d
		}
	}

	if len(fields) > 0 {
		return nil, pkgerrors.FieldErrors(fields)
	}
	return problem, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
