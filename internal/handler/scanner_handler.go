package handler

import (
	"net/http"

	"cadak-tickets/internal/model"
	"cadak-tickets/internal/service"

	"github.com/rs/zerolog"
)

// ScannerHandler handles scanner access management for sellers.
type ScannerHandler struct {
	service service.AccessService
	logger  zerolog.Logger
}

// NewScannerHandler creates a new scanner access handler.
func NewScannerHandler(service service.AccessService, logger zerolog.Logger) *ScannerHandler {
	return &ScannerHandler{
		service: service,
		logger:  logger.With().Str("handler", "scanner").Logger(),
	}
}

// List handles GET /api/scanners requests.
func (h *ScannerHandler) List(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	grants, err := h.service.List(r.Context(), sellerID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, grants)
}

// Grant handles POST /api/scanners requests.
func (h *ScannerHandler) Grant(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	var req model.ScannerAccessRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	access, err := h.service.Grant(r.Context(), sellerID, &req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, access)
}

// Revoke handles DELETE /api/scanners/{memberId} requests.
func (h *ScannerHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.Revoke(r.Context(), sellerID, r.PathValue("memberId")); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
