package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	bookingserrors "slotkeeper/internal/bookings/errors"
	apperrors "slotkeeper/pkg/errors"
	"slotkeeper/pkg/kafka"
	"slotkeeper/pkg/logger"
	"slotkeeper/pkg/middleware"
	"slotkeeper/pkg/model"
	"testing"
	"time"
)

type mockProducer struct {
	publishFunc func(ctx context.Context, msg kafka.Message) error
	published   []kafka.Message
}

func (m *mockProducer) Publish(ctx context.Context, msg kafka.Message) error {
	m.published = append(m.published, msg)
	if m.publishFunc != nil {
		return m.publishFunc(ctx, msg)
	}
	return nil
}

func (m *mockProducer) Close() error { return nil }

type mockSettler struct {
	confirmFunc func(ctx context.Context, token string) (*model.Slot, error)
	releaseFunc func(ctx context.Context, token string, reason ReleaseReason) (*model.Slot, error)
}

func (m *mockSettler) Confirm(ctx context.Context, token string) (*model.Slot, error) {
	if m.confirmFunc != nil {
		return m.confirmFunc(ctx, token)
	}
	return &model.Slot{ID: "slot-1", Status: model.SlotBooked}, nil
}

func (m *mockSettler) Release(ctx context.Context, token string, reason ReleaseReason) (*model.Slot, error) {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, token, reason)
	}
	return &model.Slot{ID: "slot-1", Status: model.SlotAvailable}, nil
}

func reservedSlot() *model.Slot {
	return &model.Slot{
		ID:         "slot-1",
		ProviderID: "prov-1",
		Date:       "2024-06-01",
		StartTime:  "09:00",
		EndTime:    "10:00",
		Status:     model.SlotReserved,
		Hold:       &model.Hold{Token: "tok", CustomerID: "cust-1", StartTime: "09:00", EndTime: "09:30"},
	}
}

func TestNewSlotEvent(t *testing.T) {
	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.FixedZone("x", 3600))
	event := NewSlotEvent(SlotReleased, reservedSlot(), at).WithReason(ReasonTimeout)

	if event.SlotID != "slot-1" || event.ProviderID != "prov-1" || event.CustomerID != "cust-1" {
		t.Errorf("unexpected event %+v", event)
	}
	if event.Reason != ReasonTimeout {
		t.Errorf("reason = %q", event.Reason)
	}
	if event.OccurredAt.Location() != time.UTC {
		t.Error("OccurredAt must be UTC")
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := &mockProducer{}
	publisher := NewKafkaPublisher(producer, "slots.events")

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-12345678")
	event := NewSlotEvent(SlotReserved, reservedSlot(), time.Now())
	if err := publisher.Publish(ctx, event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(producer.published) != 1 {
		t.Fatalf("expected 1 message, got %d", len(producer.published))
	}
	msg := producer.published[0]
	if msg.Topic != "slots.events" || msg.Key != "slot-1" {
		t.Errorf("topic=%q key=%q", msg.Topic, msg.Key)
	}
	if msg.GetEventType() != string(SlotReserved) {
		t.Errorf("event type header = %q", msg.GetEventType())
	}
	if msg.GetCorrelationID() != "req-12345678" {
		t.Errorf("correlation id should fall back to the request id, got %q", msg.GetCorrelationID())
	}
	if msg.GetEventID() == "" {
		t.Error("event id header must be set")
	}

	var decoded SlotEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.Type != SlotReserved || decoded.CustomerID != "cust-1" {
		t.Errorf("unexpected payload %+v", decoded)
	}
}

func TestKafkaPublisher_PropagatesFailure(t *testing.T) {
	producer := &mockProducer{
		publishFunc: func(ctx context.Context, msg kafka.Message) error {
			return errors.New("broker down")
		},
	}
	publisher := NewKafkaPublisher(producer, "slots.events")

	err := publisher.Publish(context.Background(), NewSlotEvent(SlotCreated, reservedSlot(), time.Now()))
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestCorrelationID_PrefersExplicitID(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-12345678")
	ctx = WithCorrelationID(ctx, "corr-1")
	if got := CorrelationID(ctx); got != "corr-1" {
		t.Errorf("CorrelationID = %q", got)
	}
}

func TestApplyPayment(t *testing.T) {
	tests := []struct {
		name        string
		event       PaymentEvent
		wantConfirm bool
		wantRelease bool
		wantErr     error
	}{
		{"succeeded confirms", PaymentEvent{Type: PaymentSucceeded, ReservationToken: "tok"}, true, false, nil},
		{"failed releases", PaymentEvent{Type: PaymentFailed, ReservationToken: "tok"}, false, true, nil},
		{"cancelled releases", PaymentEvent{Type: PaymentCancelled, ReservationToken: "tok"}, false, true, nil},
		{"unknown type", PaymentEvent{Type: "payment.refunded", ReservationToken: "tok"}, false, false, ErrInvalidPaymentEvent},
		{"missing token", PaymentEvent{Type: PaymentSucceeded}, false, false, ErrInvalidPaymentEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var confirmed, released bool
			var reason ReleaseReason
			settler := &mockSettler{
				confirmFunc: func(ctx context.Context, token string) (*model.Slot, error) {
					confirmed = true
					return &model.Slot{ID: "slot-1"}, nil
				},
				releaseFunc: func(ctx context.Context, token string, r ReleaseReason) (*model.Slot, error) {
					released = true
					reason = r
					return &model.Slot{ID: "slot-1"}, nil
				},
			}

			_, err := ApplyPayment(context.Background(), settler, tt.event)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, expected %v", err, tt.wantErr)
			}
			if confirmed != tt.wantConfirm || released != tt.wantRelease {
				t.Errorf("confirmed=%v released=%v", confirmed, released)
			}
			if released && reason != ReasonPaymentFailed {
				t.Errorf("release reason = %q", reason)
			}
		})
	}
}

func paymentMessage(t *testing.T, event any) kafka.Message {
	t.Helper()
	msg, err := kafka.NewMessage().WithKey("tok").WithValue(event).WithCorrelationID("corr-9").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return msg
}

func TestPaymentMessageHandler_Classification(t *testing.T) {
	wrap := func(sentinel error, code string) error {
		return apperrors.Wrap(sentinel, code, "rejected", 409)
	}

	tests := []struct {
		name       string
		settleErr  error
		value      any
		wantType   kafka.ErrorType
		wantNilErr bool
	}{
		{"applied", nil, PaymentEvent{Type: PaymentSucceeded, ReservationToken: "tok"}, kafka.ErrorTypeUnknown, true},
		{"undecodable", nil, "not an object", kafka.ErrorTypePermanent, false},
		{"invalid event", nil, PaymentEvent{Type: "bogus", ReservationToken: "tok"}, kafka.ErrorTypePermanent, false},
		{"not found", wrap(bookingserrors.ErrReservationNotFound, bookingserrors.CodeReservationNotFound), PaymentEvent{Type: PaymentSucceeded, ReservationToken: "tok"}, kafka.ErrorTypePermanent, false},
		{"mismatch", wrap(bookingserrors.ErrTokenMismatch, bookingserrors.CodeTokenMismatch), PaymentEvent{Type: PaymentSucceeded, ReservationToken: "tok"}, kafka.ErrorTypePermanent, false},
		{"finalized", wrap(bookingserrors.ErrReservationFinalized, bookingserrors.CodeReservationFinalized), PaymentEvent{Type: PaymentFailed, ReservationToken: "tok"}, kafka.ErrorTypePermanent, false},
		{"store down", fmt.Errorf("write failed: %w", context.DeadlineExceeded), PaymentEvent{Type: PaymentSucceeded, ReservationToken: "tok"}, kafka.ErrorTypeTransient, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotCorrelation string
			settle := func(ctx context.Context) (*model.Slot, error) {
				gotCorrelation = CorrelationID(ctx)
				if tt.settleErr != nil {
					return nil, tt.settleErr
				}
				return &model.Slot{ID: "slot-1", Status: model.SlotBooked}, nil
			}
			settler := &mockSettler{
				confirmFunc: func(ctx context.Context, token string) (*model.Slot, error) { return settle(ctx) },
				releaseFunc: func(ctx context.Context, token string, r ReleaseReason) (*model.Slot, error) { return settle(ctx) },
			}
			handler := NewPaymentMessageHandler(settler, logger.New(logger.Config{Output: io.Discard}))

			err := handler(context.Background(), paymentMessage(t, tt.value))
			if tt.wantNilErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if gotCorrelation != "corr-9" {
					t.Errorf("correlation id not propagated, got %q", gotCorrelation)
				}
				return
			}
			if got := kafka.ClassifyError(err); got != tt.wantType {
				t.Errorf("ClassifyError = %v, expected %v (err %v)", got, tt.wantType, err)
			}
		})
	}
}
