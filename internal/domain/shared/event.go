package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact raised by an aggregate. Topic is the pub/sub topic
// the event is published on.
type DomainEvent interface {
	EventID() uuid.UUID
	Topic() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
}

// BaseDomainEvent provides the common fields of domain events. It is
// embedded into event payloads, so its fields are part of the wire format.
type BaseDomainEvent struct {
	ID        uuid.UUID `json:"event_id"`
	TopicName string    `json:"-"`
	Timestamp time.Time `json:"occurred_at"`
	AggID     uuid.UUID `json:"-"`
}

// NewBaseDomainEvent creates a base event for the given topic and aggregate
func NewBaseDomainEvent(topic string, aggregateID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		ID:        uuid.New(),
		TopicName: topic,
		Timestamp: time.Now().UTC(),
		AggID:     aggregateID,
	}
}

// EventID returns the unique event identifier
func (e BaseDomainEvent) EventID() uuid.UUID { return e.ID }

// Topic returns the topic the event is published on
func (e BaseDomainEvent) Topic() string { return e.TopicName }

// OccurredAt returns when the event occurred
func (e BaseDomainEvent) OccurredAt() time.Time { return e.Timestamp }

// AggregateID returns the ID of the aggregate that raised the event
func (e BaseDomainEvent) AggregateID() uuid.UUID { return e.AggID }

// MessagePublisher sends a payload to a topic on the message bus.
// Implementations decide their own delivery guarantees; the default sidecar
// publisher is best effort and never returns delivery failures.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// PublishEvents publishes each event on its own topic and joins any errors.
func PublishEvents(ctx context.Context, publisher MessagePublisher, events ...DomainEvent) error {
	var errs []error
	for _, event := range events {
		if err := publisher.Publish(ctx, event.Topic(), event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
