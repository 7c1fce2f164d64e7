package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/segmentio/kafka-go"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o wait" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"explicit transient", NewTransientError("store down", errors.New("x")), ErrorTypeTransient},
		{"explicit permanent", NewPermanentError("bad payload", nil), ErrorTypePermanent},
		{"wrapped kafka error", fmt.Errorf("handler: %w", NewTransientError("x", nil)), ErrorTypeTransient},
		{"network message", errors.New("dial tcp: Connection Refused"), ErrorTypeTransient},
		{"context deadline", errors.New("context deadline exceeded"), ErrorTypeTransient},
		{"wrapped deadline", fmt.Errorf("confirm slot: %w", context.DeadlineExceeded), ErrorTypeTransient},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, ErrorTypeTransient},
		{"retriable broker code", fmt.Errorf("write: %w", kafka.LeaderNotAvailable), ErrorTypeTransient},
		{"fatal broker code", kafka.MessageSizeTooLarge, ErrorTypePermanent},
		{"mongo election", errors.New("server selection error: no primary"), ErrorTypeTransient},
		{"anything else", errors.New("schema mismatch"), ErrorTypePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.expected {
				t.Errorf("ClassifyError() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	transient := NewTransientError("x", nil)

	if !ShouldRetry(transient, 0, 3) {
		t.Error("expected transient error to be retried")
	}
	if ShouldRetry(transient, 3, 3) {
		t.Error("expected retries to stop at the limit")
	}
	if ShouldRetry(NewPermanentError("x", nil), 0, 3) {
		t.Error("expected permanent error not to be retried")
	}
}

func TestRetryCountHeader(t *testing.T) {
	msg := Message{}
	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}
	if got := msg.GetRetryCount(); got != 12 {
		t.Errorf("expected 12 retries, got %d", got)
	}
}

func TestMessageBuilder(t *testing.T) {
	msg, err := NewMessage().
		WithKey("slot-1").
		WithEventType("slot.booked").
		WithValue(map[string]string{"slot_id": "slot-1"}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if msg.GetEventID() == "" {
		t.Error("expected an event id")
	}
	if msg.GetEventType() != "slot.booked" {
		t.Errorf("unexpected event type %q", msg.GetEventType())
	}
	if _, ok := msg.GetHeader(HeaderTimestamp); !ok {
		t.Error("expected a timestamp header")
	}

	var decoded map[string]string
	if err := msg.DecodeValue(&decoded); err != nil || decoded["slot_id"] != "slot-1" {
		t.Errorf("unexpected payload %v (%v)", decoded, err)
	}

	if _, err := NewMessage().WithValue(func() {}).Build(); err == nil {
		t.Error("expected an encoding error for an unencodable value")
	}
}
