package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"cadak-tickets/internal/model"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw webhook body.
const SignatureHeader = "x-paystack-signature"

// Webhook event names that mean a payment went through.
const (
	EventChargeSuccess  = "charge.success"
	EventPaymentSuccess = "payment.success"
)

// ValidateSignature compares signature with the HMAC-SHA512 of body keyed by
// secret, in constant time.
func ValidateSignature(secret string, body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return model.ErrInvalidSignature
	}
	got, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return model.ErrInvalidSignature
	}
	if !hmac.Equal(got, Sign(secret, body)) {
		return model.ErrInvalidSignature
	}
	return nil
}

// Sign returns the raw HMAC-SHA512 of body.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// SignHex returns the header value Paystack would send for body.
func SignHex(secret string, body []byte) string {
	return hex.EncodeToString(Sign(secret, body))
}

// WebhookEvent is a decoded webhook notification.
type WebhookEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ParseWebhookEvent decodes a webhook body. It does not check the signature.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode webhook: %w", err)
	}
	return &ev, nil
}

// HasData reports whether the event names something and carries a payload.
func (e *WebhookEvent) HasData() bool {
	data := strings.TrimSpace(string(e.Data))
	return e.Event != "" && data != "" && data != "null"
}

// IsChargeSuccess reports whether the event is a successful charge.
func (e *WebhookEvent) IsChargeSuccess() bool {
	return e.Event == EventChargeSuccess || e.Event == EventPaymentSuccess
}

// Transaction decodes the event payload.
func (e *WebhookEvent) Transaction() (*Transaction, error) {
	return decodeTransaction(e.Data)
}
