package model

import (
	"time"

	"switchdesk/pkg/repository"
)

// Status is the lifecycle state of a problem record.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusInactive
}

// Problem is a tracked issue raised against an operator's commutator.
type Problem struct {
	ID         int64     `json:"id"`
	Operator   string    `json:"operator"`
	Commutator string    `json:"commutator"`
	ProductID  string    `json:"product_id"`
	StartDate  *Date     `json:"start_date,omitempty"`
	EndDate    *Date     `json:"end_date,omitempty"`
	Note       string    `json:"note,omitempty"`
	Status     Status    `json:"status"`
	Answer     string    `json:"answer,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int       `json:"version"`
}

// GroupCount is one bar of an aggregate series.
type GroupCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Aggregates holds the per-operator and per-commutator series.
type Aggregates struct {
	Operator   []GroupCount `json:"operator"`
	Commutator []GroupCount `json:"commutator"`
}

// EmptyAggregates returns aggregates with non-nil empty series.
func EmptyAggregates() Aggregates {
	return Aggregates{Operator: []GroupCount{}, Commutator: []GroupCount{}}
}

// Page is one window of a filtered, sorted listing.
type Page = repository.PaginationResult[Problem]
