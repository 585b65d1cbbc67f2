package handler

import (
	"net/http"

	"cadak-tickets/internal/service"

	"github.com/rs/zerolog"
)

// PayoutHandler handles seller balance and payout request endpoints.
type PayoutHandler struct {
	service service.PayoutService
	logger  zerolog.Logger
}

// NewPayoutHandler creates a new payout handler.
func NewPayoutHandler(service service.PayoutService, logger zerolog.Logger) *PayoutHandler {
	return &PayoutHandler{
		service: service,
		logger:  logger.With().Str("handler", "payout").Logger(),
	}
}

// Balance handles GET /api/seller/payouts/balance requests.
func (h *PayoutHandler) Balance(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	balance, err := h.service.Balance(r.Context(), sellerID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, balance)
}

// List handles GET /api/seller/payouts requests.
func (h *PayoutHandler) List(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), h.logger)
		return
	}

	payouts, err := h.service.ListPayouts(r.Context(), sellerID, limit, offset)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, payouts)
}

// Request handles POST /api/seller/payouts requests. The whole available
// balance is requested, so the body is ignored.
func (h *PayoutHandler) Request(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requireUser(w, r, h.logger)
	if !ok {
		return
	}

	payout, err := h.service.RequestPayout(r.Context(), sellerID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, payout)
}
