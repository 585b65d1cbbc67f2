package handler

import (
	"context"
	"net/http"
	"strings"

	"cadak-tickets/internal/model"
	"cadak-tickets/internal/service"

	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
)

// qrImageSize is the edge length of rendered QR codes in pixels.
const qrImageSize = 320

// TicketHandler handles ticket and gate scan HTTP requests.
type TicketHandler struct {
	service service.TicketService
	logger  zerolog.Logger
}

// NewTicketHandler creates a new ticket handler.
func NewTicketHandler(service service.TicketService, logger zerolog.Logger) *TicketHandler {
	return &TicketHandler{
		service: service,
		logger:  logger.With().Str("handler", "ticket").Logger(),
	}
}

// ListMine handles GET /api/tickets requests for the calling buyer.
func (h *TicketHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListForBuyer)
}

// ListSold handles GET /api/seller/tickets requests for the calling seller.
func (h *TicketHandler) ListSold(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListForSeller)
}

func (h *TicketHandler) list(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context, userID string, limit, offset int) ([]model.Ticket, error)) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), h.logger)
		return
	}

	tickets, err := fetch(r.Context(), userID, limit, offset)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, tickets)
}

// GetByID handles GET /api/tickets/{id} requests.
func (h *TicketHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	ticket, err := h.service.Get(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

// QRCode handles GET /api/tickets/{id}/qr.png requests.
func (h *TicketHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	ticket, err := h.service.Get(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	png, err := qrcode.Encode(ticket.QRPayload, qrcode.Medium, qrImageSize)
	if err != nil {
		h.logger.Error().Err(err).Str("ticket_id", ticket.ID).Msg("failed to render QR code")
		writeError(w, http.StatusInternalServerError, "failed to render QR code", h.logger)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// Delete handles DELETE /api/tickets/{id} requests.
func (h *TicketHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), r.PathValue("id"), userID); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Scan handles POST /api/scan requests. The body carries either the raw QR
// payload or a bare ticket id.
func (h *TicketHandler) Scan(w http.ResponseWriter, r *http.Request) {
	scannerID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	var req model.ScanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	ticketID := strings.TrimSpace(req.TicketID)
	if req.QRPayload != "" {
		payload, err := model.ParseQRPayload(req.QRPayload)
		if err != nil {
			writeServiceError(w, err, h.logger)
			return
		}
		ticketID = payload.TicketID
	}
	if ticketID == "" {
		writeServiceError(w, model.ErrInvalidQRPayload, h.logger)
		return
	}

	result, err := h.service.CheckIn(r.Context(), ticketID, scannerID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
