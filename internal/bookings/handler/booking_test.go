package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	bookingserrors "slotkeeper/internal/bookings/errors"
	"slotkeeper/internal/bookings/events"
	"slotkeeper/internal/bookings/service"
	"slotkeeper/internal/slots/validator"
	apperrors "slotkeeper/pkg/errors"
	"slotkeeper/pkg/logger"
	"slotkeeper/pkg/middleware"
	"slotkeeper/pkg/model"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
)

const (
	testSecret = "webhook-secret"
	testToken  = "sealed-token-0123456789"
)

// Mock coordinator for testing
type mockCoordinator struct {
	reserveFunc func(ctx context.Context, slotID, customerID string, req *model.ReserveRequest) (*model.Reservation, error)
	confirmFunc func(ctx context.Context, token string) (*model.Slot, error)
	releaseFunc func(ctx context.Context, token string, reason events.ReleaseReason) (*model.Slot, error)
	sweepFunc   func(ctx context.Context) (*service.SweepResult, error)
}

func (m *mockCoordinator) Reserve(ctx context.Context, slotID, customerID string, req *model.ReserveRequest) (*model.Reservation, error) {
	if m.reserveFunc != nil {
		return m.reserveFunc(ctx, slotID, customerID, req)
	}
	return &model.Reservation{Token: testToken, SlotID: slotID}, nil
}

func (m *mockCoordinator) Confirm(ctx context.Context, token string) (*model.Slot, error) {
	if m.confirmFunc != nil {
		return m.confirmFunc(ctx, token)
	}
	return &model.Slot{ID: "s1", Status: model.SlotBooked}, nil
}

func (m *mockCoordinator) Release(ctx context.Context, token string, reason events.ReleaseReason) (*model.Slot, error) {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, token, reason)
	}
	return &model.Slot{ID: "s1", Status: model.SlotAvailable}, nil
}

func (m *mockCoordinator) Sweep(ctx context.Context) (*service.SweepResult, error) {
	if m.sweepFunc != nil {
		return m.sweepFunc(ctx)
	}
	return &service.SweepResult{}, nil
}

func newRouter(c *mockCoordinator) http.Handler {
	log := logger.New(logger.Config{Output: io.Discard})
	router := httprouter.New()
	NewBookingHandler(c, validator.NewSlotValidator(log), testSecret, log).RegisterRoutes(router)
	return middleware.Identity()(router)
}

func post(router http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp apperrors.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp.Code
}

func TestReserve(t *testing.T) {
	var gotSlot, gotCustomer string
	router := newRouter(&mockCoordinator{
		reserveFunc: func(ctx context.Context, slotID, customerID string, req *model.ReserveRequest) (*model.Reservation, error) {
			gotSlot, gotCustomer = slotID, customerID
			return &model.Reservation{Token: testToken, SlotID: slotID, StartTime: req.StartTime, EndTime: req.EndTime}, nil
		},
	})

	w := post(router, "/api/v1/slots/s1/reserve", `{"start_time":"09:00","end_time":"09:30"}`,
		map[string]string{middleware.CallerIDHeader: "cust-1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if gotSlot != "s1" || gotCustomer != "cust-1" {
		t.Errorf("coordinator got slot=%q customer=%q", gotSlot, gotCustomer)
	}

	var resp struct {
		Data model.Reservation `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Token != testToken {
		t.Errorf("token = %q", resp.Data.Token)
	}
}

func TestReserve_Errors(t *testing.T) {
	router := newRouter(&mockCoordinator{
		reserveFunc: func(ctx context.Context, slotID, customerID string, req *model.ReserveRequest) (*model.Reservation, error) {
			return nil, apperrors.Wrap(bookingserrors.ErrSlotUnavailable, bookingserrors.CodeSlotUnavailable, "taken", http.StatusConflict)
		},
	})

	w := post(router, "/api/v1/slots/s1/reserve", `{"start_time":"09:00","end_time":"09:30"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing caller: expected 401, got %d", w.Code)
	}

	w = post(router, "/api/v1/slots/s1/reserve", `{"start_time":"09:00","end_time":"09:30"}`,
		map[string]string{middleware.CallerIDHeader: "cust-1"})
	if w.Code != http.StatusConflict || errorCode(t, w) != bookingserrors.CodeSlotUnavailable {
		t.Errorf("expected 409 SLOT_UNAVAILABLE, got %d", w.Code)
	}
}

func TestConfirmAndRelease(t *testing.T) {
	var releasedWith events.ReleaseReason
	router := newRouter(&mockCoordinator{
		confirmFunc: func(ctx context.Context, token string) (*model.Slot, error) {
			if token != testToken {
				return nil, apperrors.Wrap(bookingserrors.ErrTokenMismatch, bookingserrors.CodeTokenMismatch, "mismatch", http.StatusConflict)
			}
			return &model.Slot{ID: "s1", Status: model.SlotBooked}, nil
		},
		releaseFunc: func(ctx context.Context, token string, reason events.ReleaseReason) (*model.Slot, error) {
			releasedWith = reason
			return &model.Slot{ID: "s1", Status: model.SlotAvailable}, nil
		},
	})

	tests := []struct {
		name       string
		path       string
		body       string
		expectCode int
	}{
		{"confirm", "/api/v1/reservations/confirm", `{"token":"` + testToken + `"}`, http.StatusOK},
		{"confirm foreign token", "/api/v1/reservations/confirm", `{"token":"another-token-0123456789"}`, http.StatusConflict},
		{"confirm short token", "/api/v1/reservations/confirm", `{"token":"abc"}`, http.StatusUnprocessableEntity},
		{"confirm missing token", "/api/v1/reservations/confirm", `{}`, http.StatusUnprocessableEntity},
		{"release", "/api/v1/reservations/release", `{"token":"` + testToken + `"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(router, tt.path, tt.body, nil)
			if w.Code != tt.expectCode {
				t.Errorf("expected %d, got %d: %s", tt.expectCode, w.Code, w.Body.String())
			}
		})
	}

	if releasedWith != events.ReasonCustomer {
		t.Errorf("HTTP release reason = %q", releasedWith)
	}
}

func TestSweep(t *testing.T) {
	router := newRouter(&mockCoordinator{
		sweepFunc: func(ctx context.Context) (*service.SweepResult, error) {
			return &service.SweepResult{Scanned: 3, Released: 2, Skipped: 1}, nil
		},
	})

	w := post(router, "/api/v1/reservations/sweep", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Data service.SweepResult `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Released != 2 {
		t.Errorf("unexpected result %+v", resp.Data)
	}

	failing := newRouter(&mockCoordinator{
		sweepFunc: func(ctx context.Context) (*service.SweepResult, error) {
			return nil, errors.New("store unavailable")
		},
	})
	if w := post(failing, "/api/v1/reservations/sweep", "", nil); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestSweep_KeepsCoordinatorErrorCode(t *testing.T) {
	router := newRouter(&mockCoordinator{
		sweepFunc: func(ctx context.Context) (*service.SweepResult, error) {
			return nil, apperrors.Unavailablef("reservation store is failing over")
		},
	})

	w := post(router, "/api/v1/reservations/sweep", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After on a retryable sweep failure")
	}
	var resp apperrors.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != apperrors.CodeUnavailable {
		t.Errorf("expected %s, got %s", apperrors.CodeUnavailable, resp.Code)
	}
	if !strings.Contains(resp.Message, "failing over") {
		t.Errorf("expected the coordinator message, got %q", resp.Message)
	}
}

func TestPaymentWebhook(t *testing.T) {
	var confirmed, released int
	router := newRouter(&mockCoordinator{
		confirmFunc: func(ctx context.Context, token string) (*model.Slot, error) {
			confirmed++
			return &model.Slot{ID: "s1", Status: model.SlotBooked}, nil
		},
		releaseFunc: func(ctx context.Context, token string, reason events.ReleaseReason) (*model.Slot, error) {
			released++
			if reason != events.ReasonPaymentFailed {
				t.Errorf("webhook release reason = %q", reason)
			}
			return &model.Slot{ID: "s1", Status: model.SlotAvailable}, nil
		},
	})

	succeeded := `{"type":"payment.succeeded","reservation_token":"` + testToken + `","payment_id":"p1"}`
	failed := `{"type":"payment.failed","reservation_token":"` + testToken + `","payment_id":"p2"}`
	bogus := `{"type":"payment.refunded","reservation_token":"` + testToken + `"}`

	tests := []struct {
		name       string
		body       string
		signature  string
		expectCode int
	}{
		{"succeeded", succeeded, middleware.SignPayload([]byte(succeeded), testSecret), http.StatusOK},
		{"failed", failed, middleware.SignPayload([]byte(failed), testSecret), http.StatusOK},
		{"unsigned", succeeded, "", http.StatusUnauthorized},
		{"wrong secret", succeeded, middleware.SignPayload([]byte(succeeded), "other"), http.StatusUnauthorized},
		{"unknown type", bogus, middleware.SignPayload([]byte(bogus), testSecret), http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.signature != "" {
				headers[middleware.PaymentSignatureHeader] = tt.signature
			}
			w := post(router, "/api/v1/payments/webhook", tt.body, headers)
			if w.Code != tt.expectCode {
				t.Errorf("expected %d, got %d: %s", tt.expectCode, w.Code, w.Body.String())
			}
		})
	}

	if confirmed != 1 || released != 1 {
		t.Errorf("confirmed=%d released=%d, expected 1 each", confirmed, released)
	}
}
