package handler

import (
	"net/http"
	"strings"

	"cadak-tickets/internal/config"
	"cadak-tickets/internal/model"
	"cadak-tickets/internal/service"

	"github.com/rs/zerolog"
)

// CheckoutHandler handles order intake HTTP requests.
type CheckoutHandler struct {
	service       service.CheckoutService
	publicBaseURL string
	callbackPath  string
	logger        zerolog.Logger
}

// NewCheckoutHandler creates a new checkout handler. The gateway callback URL
// is publicBaseURL + callbackPath, or the request origin when publicBaseURL is empty.
func NewCheckoutHandler(service service.CheckoutService, publicBaseURL string, payment config.PaymentConfig, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service:       service,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		callbackPath:  payment.CallbackPath,
		logger:        logger.With().Str("handler", "checkout").Logger(),
	}
}

// Checkout handles POST /api/checkout requests.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	resp, err := h.service.Checkout(r.Context(), &req, h.callbackURL(r))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *CheckoutHandler) callbackURL(r *http.Request) string {
	if h.callbackPath == "" {
		return ""
	}
	base := h.publicBaseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/" + strings.TrimLeft(h.callbackPath, "/")
}
