package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"switchdesk/internal/common/mq"
	"switchdesk/internal/problem/model"
	"switchdesk/internal/problem/repository"
	"switchdesk/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProblemEventPublisher publishes record lifecycle events.
type ProblemEventPublisher struct {
	queue mq.Producer
	topic string
}

// NewProblemEventPublisher creates a publisher; an empty topic uses the default.
func NewProblemEventPublisher(queue mq.Producer, topic string) *ProblemEventPublisher {
	if topic == "" {
		topic = model.TopicProblemEvents
	}
	return &ProblemEventPublisher{queue: queue, topic: topic}
}

// PublishCreated announces a new record together with the listing
// generation it invalidated.
func (p *ProblemEventPublisher) PublishCreated(ctx context.Context, problem model.Problem, generation int64) error {
	if p == nil || p.queue == nil {
		return errors.New("event publisher is nil")
	}
	if problem.ID <= 0 {
		return errors.New("problem id is required")
	}
	event := model.ProblemCreatedEvent{
		EventType:  model.EventProblemCreated,
		ProblemID:  problem.ID,
		Operator:   problem.Operator,
		Commutator: problem.Commutator,
		Generation: generation,
		CreatedAt:  problem.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal created event failed: %w", err)
	}
	message := mq.NewMessage(uuid.NewString(), payload)
	message.SetHeader("event_type", model.EventProblemCreated)
	if err := p.queue.Publish(ctx, p.topic, message); err != nil {
		return fmt.Errorf("publish created event failed: %w", err)
	}
	return nil
}

// ListingInvalidationConsumer drops this instance's in-process listing tier
// when any instance creates a record.
type ListingInvalidationConsumer struct {
	queue   mq.Consumer
	lookups repository.Lookups
	topic   string
	group   string
}

// NewListingInvalidationConsumer creates the consumer. Each process gets its
// own consumer group so every instance sees every event.
func NewListingInvalidationConsumer(queue mq.Consumer, lookups repository.Lookups, topic, groupPrefix string) *ListingInvalidationConsumer {
	if topic == "" {
		topic = model.TopicProblemEvents
	}
	if groupPrefix == "" {
		groupPrefix = "switchdesk-listing"
	}
	return &ListingInvalidationConsumer{
		queue:   queue,
		lookups: lookups,
		topic:   topic,
		group:   fmt.Sprintf("%s-%s", groupPrefix, uuid.NewString()),
	}
}

// Subscribe registers the handler; the queue's Start begins consumption.
func (c *ListingInvalidationConsumer) Subscribe(ctx context.Context) error {
	if c == nil || c.queue == nil {
		return errors.New("invalidation consumer is nil")
	}
	return c.queue.Subscribe(ctx, c.topic, c.HandleMessage, &mq.SubscribeOptions{
		ConsumerGroup: c.group,
		MaxRetries:    1,
		RetryDelay:    100 * time.Millisecond,
	})
}

// HandleMessage processes one event. Unknown events are acknowledged.
func (c *ListingInvalidationConsumer) HandleMessage(ctx context.Context, message *mq.Message) error {
	var event model.ProblemCreatedEvent
	if err := json.Unmarshal(message.Body, &event); err != nil {
		logger.Warn(ctx, "drop malformed problem event", zap.String("message_id", message.ID), zap.Error(err))
		return nil
	}
	if event.EventType != model.EventProblemCreated {
		return nil
	}
	c.lookups.PurgeLocal()
	logger.Debug(ctx, "listing tier purged",
		zap.Int64("problem_id", event.ProblemID),
		zap.Int64("generation", event.Generation),
	)
	return nil
}
