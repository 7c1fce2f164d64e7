// Package events carries slot lifecycle notifications out to Kafka and
// payment outcomes in from it.
package events

import (
	"context"
	"fmt"
	"slotkeeper/pkg/kafka"
	"slotkeeper/pkg/middleware"
	"slotkeeper/pkg/model"
	"time"
)

const (
	SchemaVersion = "1"
	Source        = "slotkeeper"
)

type Type string

const (
	SlotCreated  Type = "slot.created"
	SlotRemoved  Type = "slot.removed"
	SlotReserved Type = "slot.reserved"
	SlotBooked   Type = "slot.booked"
	SlotReleased Type = "slot.released"
)

type ReleaseReason string

const (
	ReasonCustomer      ReleaseReason = "customer"
	ReasonPaymentFailed ReleaseReason = "payment_failed"
	ReasonTimeout       ReleaseReason = "timeout"
)

type SlotEvent struct {
	Type       Type             `json:"type"`
	SlotID     string           `json:"slot_id"`
	ProviderID string           `json:"provider_id"`
	Date       string           `json:"date"`
	StartTime  string           `json:"start_time"`
	EndTime    string           `json:"end_time"`
	Status     model.SlotStatus `json:"status"`
	CustomerID string           `json:"customer_id,omitempty"`
	Reason     ReleaseReason    `json:"reason,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewSlotEvent snapshots slot for an event of type t.
func NewSlotEvent(t Type, slot *model.Slot, at time.Time) SlotEvent {
	event := SlotEvent{
		Type:       t,
		SlotID:     slot.ID,
		ProviderID: slot.ProviderID,
		Date:       slot.Date,
		StartTime:  slot.StartTime,
		EndTime:    slot.EndTime,
		Status:     slot.Status,
		OccurredAt: at.UTC(),
	}
	switch {
	case slot.Hold != nil:
		event.CustomerID = slot.Hold.CustomerID
	case slot.Booking != nil:
		event.CustomerID = slot.Booking.CustomerID
	}
	return event
}

func (e SlotEvent) WithReason(reason ReleaseReason) SlotEvent {
	e.Reason = reason
	return e
}

// Publisher emits slot events. Publishing happens after the state change is
// stored, so a failure never undoes the change.
type Publisher interface {
	Publish(ctx context.Context, event SlotEvent) error
}

type KafkaPublisher struct {
	producer kafka.Publisher
	topic    string
}

func NewKafkaPublisher(producer kafka.Publisher, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish keys the message by slot id so one slot's events stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, event SlotEvent) error {
	msg, err := kafka.NewMessage().
		WithKey(event.SlotID).
		WithValue(event).
		WithEventType(string(event.Type)).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithCorrelationID(CorrelationID(ctx)).
		WithTimestamp(event.OccurredAt).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", event.Type, err)
	}
	msg.Topic = p.topic

	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event for slot %s: %w", event.Type, event.SlotID, err)
	}
	return nil
}

// NoopPublisher drops every event. It is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, SlotEvent) error { return nil }

type correlationKey struct{}

// WithCorrelationID attaches the id that outgoing events will carry.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id set by WithCorrelationID, falling back to the
// HTTP request id.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok && id != "" {
		return id
	}
	return middleware.RequestIDFromContext(ctx)
}
