package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"switchdesk/internal/common/db"
	"switchdesk/internal/problem/model"
	"switchdesk/internal/problem/repository"
	pkgerrors "switchdesk/pkg/errors"
	pkgrepo "switchdesk/pkg/repository"
	"switchdesk/pkg/utils/logger"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ProblemService exposes problem records to the HTTP layer. Every failure
// is a coded error; list-shaped results are never nil, even on failure.
type ProblemService struct {
	db        db.Database
	repo      repository.ProblemRepository
	lookups   repository.Lookups
	publisher *ProblemEventPublisher
	validate  *validator.Validate
}

// NewProblemService creates a new ProblemService. publisher may be nil.
func NewProblemService(database db.Database, repo repository.ProblemRepository, lookups repository.Lookups, publisher *ProblemEventPublisher) *ProblemService {
	return &ProblemService{
		db:        database,
		repo:      repo,
		lookups:   lookups,
		publisher: publisher,
		validate:  newValidator(),
	}
}

// QueryInput is a listing request as received from the wire.
type QueryInput struct {
	Search   string
	Sort     string
	Page     int
	PageSize int
}

// CreateProblem validates and inserts a record, then invalidates cached
// listings. The stored row is returned.
func (s *ProblemService) CreateProblem(ctx context.Context, input CreateInput) (model.Problem, error) {
	problem, err := input.toProblem(s.validate)
	if err != nil {
		return model.Problem{}, err
	}

	var created model.Problem
	err = s.db.Transaction(ctx, func(tx db.Transaction) error {
		id, err := s.repo.Insert(ctx, tx, problem)
		if err != nil {
			return err
		}
		created, err = s.repo.GetByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return model.Problem{}, pkgerrors.Wrap(fmt.Errorf("create problem failed: %w", err), pkgerrors.ProblemCreateFailed)
	}

	generation, err := s.lookups.Invalidate(ctx)
	if err != nil {
		logger.Warn(ctx, "invalidate listings failed", zap.Int64("problem_id", created.ID), zap.Error(err))
	}
	if s.publisher != nil {
		if err := s.publisher.PublishCreated(ctx, created, generation); err != nil {
			logger.Warn(ctx, "publish created event failed", zap.Int64("problem_id", created.ID), zap.Error(err))
		}
	}

	logger.Info(ctx, "problem created",
		zap.Int64("problem_id", created.ID),
		zap.String("operator", created.Operator),
		zap.String("commutator", created.Commutator),
	)
	return created, nil
}

// GetProblem returns one record by id.
func (s *ProblemService) GetProblem(ctx context.Context, id int64) (model.Problem, error) {
	if id <= 0 {
		return model.Problem{}, pkgerrors.BadRequest("id must be positive")
	}
	problem, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		if pkgrepo.IsNotFoundError(err) {
			return model.Problem{}, pkgerrors.Newf(pkgerrors.ProblemNotFound, "problem %d not found", id).WithDetail("id", id)
		}
		return model.Problem{}, pkgerrors.Wrap(fmt.Errorf("get problem failed: %w", err), pkgerrors.DatabaseError)
	}
	return problem, nil
}

// ListProblems returns every record, id ascending.
func (s *ProblemService) ListProblems(ctx context.Context) ([]model.Problem, error) {
	problems, err := s.repo.SelectAll(ctx, nil)
	if err != nil {
		return []model.Problem{}, pkgerrors.Wrap(fmt.Errorf("list problems failed: %w", err), pkgerrors.ProblemQueryFailed)
	}
	return problems, nil
}

// QueryProblems returns one window of the searched, sorted listing.
func (s *ProblemService) QueryProblems(ctx context.Context, input QueryInput) (model.Page, error) {
	page := pkgrepo.PageRequest{PageIndex: input.Page, PageSize: input.PageSize}.Normalize()
	empty := pkgrepo.NewPaginationResult[model.Problem](nil, 0, page)

	sort, err := pkgrepo.ParseSort(input.Sort)
	if err != nil {
		return empty, pkgerrors.BadRequest(err.Error())
	}
	opts := pkgrepo.ListOptions{Search: input.Search, Sort: sort, Page: page}

	result, err := s.repo.SelectPage(ctx, opts)
	if err != nil {
		if errors.Is(err, pkgrepo.ErrUnknownColumn) || errors.Is(err, pkgrepo.ErrInvalidInput) {
			return empty, pkgerrors.BadRequest(err.Error())
		}
		return empty, pkgerrors.Wrap(fmt.Errorf("query problems failed: %w", err), pkgerrors.ProblemQueryFailed)
	}
	return result, nil
}

// ListOperators returns the distinct operators, strictly ascending.
func (s *ProblemService) ListOperators(ctx context.Context) ([]string, error) {
	operators, err := s.lookups.Operators(ctx)
	if err != nil {
		return []string{}, pkgerrors.Wrap(fmt.Errorf("list operators failed: %w", err), pkgerrors.OperatorListFailed)
	}
	if operators == nil {
		operators = []string{}
	}
	return operators, nil
}

// ListCommutators returns the distinct commutators of operator, strictly
// ascending. A blank or unknown operator yields an empty list.
func (s *ProblemService) ListCommutators(ctx context.Context, operator string) ([]string, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return []string{}, nil
	}
	commutators, err := s.lookups.Commutators(ctx, operator)
	if err != nil {
		return []string{}, pkgerrors.Wrap(fmt.Errorf("list commutators failed: %w", err), pkgerrors.CommutatorListFailed)
	}
	if commutators == nil {
		commutators = []string{}
	}
	return commutators, nil
}

// GetAggregates returns the per-operator and per-commutator counts.
func (s *ProblemService) GetAggregates(ctx context.Context) (model.Aggregates, error) {
	aggs, err := s.lookups.Aggregates(ctx)
	if err != nil {
		return model.EmptyAggregates(), pkgerrors.Wrap(fmt.Errorf("aggregate problems failed: %w", err), pkgerrors.AggregateFailed)
	}
	if aggs.Operator == nil {
		aggs.Operator = []model.GroupCount{}
	}
	if aggs.Commutator == nil {
		aggs.Commutator = []model.GroupCount{}
	}
	return aggs, nil
}

// Ping checks the database for liveness probes.
func (s *ProblemService) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
