package model

import "time"

const (
	// TopicProblemEvents carries record lifecycle events.
	TopicProblemEvents = "switchdesk.problems"

	EventProblemCreated = "problem.created"
)

// ProblemCreatedEvent is published after a record is inserted.
type ProblemCreatedEvent struct {
	EventType  string    `json:"event_type"`
	ProblemID  int64     `json:"problem_id"`
	Operator   string    `json:"operator"`
	Commutator string    `json:"commutator"`
	Generation int64     `json:"generation"`
	CreatedAt  time.Time `json:"created_at"`
}
