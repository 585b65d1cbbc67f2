package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"cadak-tickets/internal/middleware"
	"cadak-tickets/internal/model"

	"github.com/rs/zerolog"
)

// maxBodyBytes bounds JSON request bodies and webhook payloads.
const maxBodyBytes = 1 << 20

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
	Reference string `json:"reference,omitempty"`
}

var errMissingIdentity = model.NewDomainError(model.KindNotAuthorized, model.ErrCodeUnauthorised, "X-User-ID header is required")

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string, logger zerolog.Logger) {
	logger.Error().Str("error", message).Int("status", status).Msg("handler error")
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps a service error onto a status code and body.
// Unknown errors are reported as 500 without their text.
func writeServiceError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var recErr *model.ReconciliationError
	if errors.As(err, &recErr) {
		logger.Error().
			Err(err).
			Str("order_id", recErr.OrderID).
			Str("reference", recErr.Reference).
			Msg("reconciliation failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:     model.ErrReconciliationFailed.Message,
			Code:      model.ErrCodeReconciliationFailed,
			OrderID:   recErr.OrderID,
			Reference: recErr.Reference,
		})
		return
	}

	var domainErr *model.DomainError
	if !errors.As(err, &domainErr) {
		logger.Error().Err(err).Msg("handler error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  model.ErrCodeInternalError,
		})
		return
	}

	status := statusFor(domainErr)
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Str("code", domainErr.Code).Int("status", status).Msg("request failed")

	writeJSON(w, status, ErrorResponse{Error: domainErr.Message, Code: domainErr.Code})
}

func statusFor(err *model.DomainError) int {
	if err.Code == model.ErrCodeUnauthorised {
		return http.StatusUnauthorized
	}
	switch err.Kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindNotAuthorized:
		return http.StatusForbidden
	case model.KindSignature:
		return http.StatusUnauthorized
	case model.KindGateway:
		return http.StatusBadGateway
	case model.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

// requireUser returns the caller identity or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) (string, bool) {
	id := middleware.UserID(r.Context())
	if id == "" {
		writeServiceError(w, errMissingIdentity, logger)
		return "", false
	}
	return id, true
}

// pageParams parses the limit and offset query parameters.
func pageParams(r *http.Request) (limit, offset int, err error) {
	limit, offset = 10, 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil {
			return 0, 0, errors.New("invalid limit parameter")
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil {
			return 0, 0, errors.New("invalid offset parameter")
		}
	}
	return limit, offset, nil
}
