package handler

import (
	"net/http"

	"cadak-tickets/internal/service"

	"github.com/rs/zerolog"
)

// EventHandler handles catalog HTTP requests.
type EventHandler struct {
	service service.CatalogService
	logger  zerolog.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(service service.CatalogService, logger zerolog.Logger) *EventHandler {
	return &EventHandler{
		service: service,
		logger:  logger.With().Str("handler", "event").Logger(),
	}
}

// List handles GET /api/events requests with pagination.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), h.logger)
		return
	}

	events, err := h.service.ListEvents(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to retrieve events", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

// GetByID handles GET /api/events/{id} requests.
func (h *EventHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, event)
}
