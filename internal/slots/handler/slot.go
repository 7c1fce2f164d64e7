package handler

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"slotkeeper/internal/slots/service"
	apperrors "slotkeeper/pkg/errors"
	httputil "slotkeeper/pkg/http"
	"slotkeeper/pkg/logger"
	"slotkeeper/pkg/middleware"
	"slotkeeper/pkg/model"
)

type SlotHandler struct {
	service service.SlotService
	log     *logger.Logger
}

func NewSlotHandler(service service.SlotService, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		log:     log,
	}
}

// Create publishes a slot for the calling provider. The response lists one
// result per occurrence, including the ones that conflicted.
func (h *SlotHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	providerID := middleware.ProviderIDFromContext(r.Context())
	if providerID == "" {
		httputil.WriteError(w, apperrors.Unauthorized("provider identity is required"))
		return
	}

	var req model.CreateSlotRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.ProviderID = providerID

	results, err := h.service.Create(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteCreated(w, results); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	slot, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) Remove(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	providerID := middleware.ProviderIDFromContext(r.Context())
	if err := h.service.Remove(r.Context(), ps.ByName("id"), providerID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SlotHandler) ListAvailable(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.list(w, r, ps, "ListAvailable", h.service.ListAvailable)
}

// Query and History show reservation details, so only the provider may read them.
func (h *SlotHandler) Query(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !h.ownProvider(w, r, ps) {
		return
	}
	h.list(w, r, ps, "Query", h.service.Query)
}

func (h *SlotHandler) History(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !h.ownProvider(w, r, ps) {
		return
	}
	h.list(w, r, ps, "History", h.service.History)
}

type rangeLister func(ctx context.Context, providerID, from, to string) ([]*model.Slot, error)

func (h *SlotHandler) list(w http.ResponseWriter, r *http.Request, ps httprouter.Params, name string, fetch rangeLister) {
	from, to, err := httputil.ExtractDateRange(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	slots, err := fetch(r.Context(), ps.ByName("provider_id"), from, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteList(w, slots, len(slots)); err != nil {
		h.log.Error("failed to write list response", "handler", name, "operation", "WriteList", "error", err)
	}
}

func (h *SlotHandler) ownProvider(w http.ResponseWriter, r *http.Request, ps httprouter.Params) bool {
	caller := middleware.ProviderIDFromContext(r.Context())
	switch {
	case caller == "":
		httputil.WriteError(w, apperrors.Unauthorized("provider identity is required"))
		return false
	case caller != ps.ByName("provider_id"):
		httputil.WriteError(w, apperrors.Forbidden("slots belong to another provider"))
		return false
	}
	return true
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/providers/slots", h.Create)
	router.GET("/api/v1/providers/:provider_id/slots", h.Query)
	router.GET("/api/v1/providers/:provider_id/slots/available", h.ListAvailable)
	router.GET("/api/v1/providers/:provider_id/slots/history", h.History)
	router.GET("/api/v1/slots/:id", h.GetByID)
	router.DELETE("/api/v1/slots/:id", h.Remove)
}
