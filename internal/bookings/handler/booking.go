package handler

import (
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"slotkeeper/internal/bookings/events"
	"slotkeeper/internal/bookings/service"
	"slotkeeper/internal/slots/validator"
	apperrors "slotkeeper/pkg/errors"
	httputil "slotkeeper/pkg/http"
	"slotkeeper/pkg/logger"
	"slotkeeper/pkg/middleware"
	"slotkeeper/pkg/model"
)

type BookingHandler struct {
	coordinator   service.Coordinator
	validator     *validator.SlotValidator
	webhookSecret string
	log           *logger.Logger
}

func NewBookingHandler(coordinator service.Coordinator, validator *validator.SlotValidator, webhookSecret string, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		coordinator:   coordinator,
		validator:     validator,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

func (h *BookingHandler) Reserve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	customerID := middleware.CallerIDFromContext(r.Context())
	if customerID == "" {
		httputil.WriteError(w, apperrors.Unauthorized("caller identity is required"))
		return
	}

	var req model.ReserveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	reservation, err := h.coordinator.Reserve(r.Context(), ps.ByName("id"), customerID, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Reserve", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}

	slot, err := h.coordinator.Confirm(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "Confirm", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Release(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}

	slot, err := h.coordinator.Release(r.Context(), token, events.ReasonCustomer)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "Release", "operation", "WriteSuccess", "error", err)
	}
}

// Sweep runs the timeout sweep on demand. The background sweeper does the
// same on its own schedule.
func (h *BookingHandler) Sweep(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	result, err := h.coordinator.Sweep(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Sweep", "operation", "WriteSuccess", "error", err)
	}
}

// PaymentWebhook applies a signed payment outcome.
func (h *BookingHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var event events.PaymentEvent
	if err := httputil.DecodeJSON(r, &event); err != nil {
		httputil.WriteError(w, err)
		return
	}

	slot, err := events.ApplyPayment(r.Context(), h.coordinator, event)
	if err != nil {
		if errors.Is(err, events.ErrInvalidPaymentEvent) {
			err = apperrors.Validation("Payment event validation failed", map[string]any{"error": err.Error()})
		}
		httputil.WriteError(w, err)
		return
	}

	h.log.Info("Payment webhook applied",
		"type", event.Type,
		"payment_id", event.PaymentID,
		"slot_id", slot.ID,
	)
	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "PaymentWebhook", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) token(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req model.TokenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	if err := h.validator.Validate(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			httputil.WriteError(w, apperrors.Validation("Token validation failed", verrs.Details()))
		} else {
			httputil.WriteError(w, apperrors.Validation("Token validation failed", map[string]any{"error": err.Error()}))
		}
		return "", false
	}
	return req.Token, true
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/slots/:id/reserve", h.Reserve)
	router.POST("/api/v1/reservations/confirm", h.Confirm)
	router.POST("/api/v1/reservations/release", h.Release)
	router.POST("/api/v1/reservations/sweep", h.Sweep)
	router.Handler(http.MethodPost, "/api/v1/payments/webhook",
		middleware.PaymentSignatureVerification(h.webhookSecret, h.log)(http.HandlerFunc(h.PaymentWebhook)))
}
