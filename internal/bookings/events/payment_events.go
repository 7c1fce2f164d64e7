package events

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "slotkeeper/internal/bookings/errors"
	"slotkeeper/pkg/kafka"
	"slotkeeper/pkg/logger"
	"slotkeeper/pkg/model"
	"strings"
)

type PaymentEventType string

const (
	PaymentSucceeded PaymentEventType = "payment.succeeded"
	PaymentFailed    PaymentEventType = "payment.failed"
	PaymentCancelled PaymentEventType = "payment.cancelled"
)

var ErrInvalidPaymentEvent = errors.New("invalid payment event")

// PaymentEvent is what the payment collaborator reports for a reservation.
type PaymentEvent struct {
	Type             PaymentEventType `json:"type"`
	ReservationToken string           `json:"reservation_token"`
	PaymentID        string           `json:"payment_id,omitempty"`
}

func (e PaymentEvent) Validate() error {
	switch e.Type {
	case PaymentSucceeded, PaymentFailed, PaymentCancelled:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidPaymentEvent, e.Type)
	}
	if strings.TrimSpace(e.ReservationToken) == "" {
		return fmt.Errorf("%w: reservation_token is required", ErrInvalidPaymentEvent)
	}
	return nil
}

// Settler finalizes or abandons reservations.
type Settler interface {
	Confirm(ctx context.Context, token string) (*model.Slot, error)
	Release(ctx context.Context, token string, reason ReleaseReason) (*model.Slot, error)
}

// ApplyPayment turns a payment outcome into a confirm or a release.
func ApplyPayment(ctx context.Context, settler Settler, event PaymentEvent) (*model.Slot, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if event.Type == PaymentSucceeded {
		return settler.Confirm(ctx, event.ReservationToken)
	}
	return settler.Release(ctx, event.ReservationToken, ReasonPaymentFailed)
}

// NewPaymentMessageHandler consumes payment events from Kafka. Business
// rejections are permanent so the message goes to the DLQ instead of being
// retried; anything else is treated as an infrastructure failure.
func NewPaymentMessageHandler(settler Settler, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event PaymentEvent
		if err := msg.DecodeValue(&event); err != nil {
			return kafka.NewPermanentError("failed to decode payment event", err)
		}

		if id := msg.GetCorrelationID(); id != "" {
			ctx = WithCorrelationID(ctx, id)
		}

		slot, err := ApplyPayment(ctx, settler, event)
		if err != nil {
			if isRejection(err) {
				return kafka.NewPermanentError("payment event rejected", err).
					WithDetail("type", string(event.Type)).
					WithDetail("payment_id", event.PaymentID)
			}
			return kafka.NewTransientError("failed to apply payment event", err)
		}

		log.Info("Payment event applied",
			"type", event.Type,
			"payment_id", event.PaymentID,
			"slot_id", slot.ID,
			"status", slot.Status,
		)
		return nil
	}
}

func isRejection(err error) bool {
	return errors.Is(err, ErrInvalidPaymentEvent) ||
		errors.Is(err, bookingserrors.ErrReservationNotFound) ||
		errors.Is(err, bookingserrors.ErrTokenMismatch) ||
		errors.Is(err, bookingserrors.ErrReservationFinalized)
}
