package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"cadak-tickets/internal/model"
	"cadak-tickets/internal/payment"
	"cadak-tickets/internal/service"

	"github.com/rs/zerolog"
)

// PaymentHandler handles payment confirmation, webhooks and order lookup.
type PaymentHandler struct {
	service service.ReconcileService
	logger  zerolog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(service service.ReconcileService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger.With().Str("handler", "payment").Logger(),
	}
}

// Verify handles GET /api/payments/verify?reference= requests. Paystack's
// trxref parameter is accepted as well.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimSpace(r.URL.Query().Get("reference"))
	if reference == "" {
		reference = strings.TrimSpace(r.URL.Query().Get("trxref"))
	}

	result, err := h.service.ConfirmPayment(r.Context(), reference)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Webhook handles POST /api/payments/webhook requests. Any 2xx stops the
// gateway from redelivering, so only failures worth a retry return 5xx.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "webhook body too large", h.logger)
		return
	}

	outcome, err := h.service.HandleWebhook(r.Context(), body, r.Header.Get(payment.SignatureHeader))
	if err != nil {
		if errors.Is(err, model.ErrInvalidSignature) {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid signature", Code: model.ErrCodeInvalidSignature})
			return
		}
		writeServiceError(w, err, h.logger)
		return
	}

	resp := map[string]string{"status": "processed"}
	switch {
	case outcome.Failed:
		resp["status"] = "failed"
		if outcome.OrderID != "" {
			resp["orderId"] = outcome.OrderID
		}
	case outcome.Ignored:
		resp["status"] = "ignored"
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetOrder handles GET /api/orders/{reference} requests.
func (h *PaymentHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.GetOrder(r.Context(), r.PathValue("reference"))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, details)
}
