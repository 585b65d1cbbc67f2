package handler

import (
	"net/http"

	"cadak-tickets/internal/model"
	"cadak-tickets/internal/service"

	"github.com/rs/zerolog"
)

// SellerHandler handles a seller's own events and orders.
type SellerHandler struct {
	service service.SellerService
	logger  zerolog.Logger
}

// NewSellerHandler creates a new seller handler.
func NewSellerHandler(service service.SellerService, logger zerolog.Logger) *SellerHandler {
	return &SellerHandler{
		service: service,
		logger:  logger.With().Str("handler", "seller").Logger(),
	}
}

// ListEvents handles GET /api/seller/events requests.
func (h *SellerHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), h.logger)
		return
	}

	events, err := h.service.ListEvents(r.Context(), sellerID, limit, offset)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

// CreateEvent handles POST /api/seller/events requests.
func (h *SellerHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	var req model.EventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	event, err := h.service.CreateEvent(r.Context(), sellerID, &req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// UpdateEvent handles PATCH /api/seller/events/{id} requests.
func (h *SellerHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	var patch model.EventPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	event, err := h.service.UpdateEvent(r.Context(), sellerID, r.PathValue("id"), &patch)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /api/seller/events/{id} requests.
func (h *SellerHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.DeleteEvent(r.Context(), sellerID, r.PathValue("id")); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListOrders handles GET /api/seller/orders requests.
func (h *SellerHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), h.logger)
		return
	}

	orders, err := h.service.ListOrders(r.Context(), sellerID, limit, offset)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}
