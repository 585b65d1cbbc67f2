package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"cadak-tickets/internal/model"
)

// Gateway is the payment provider seen by the order and reconciliation services.
type Gateway interface {
	// InitSession starts a hosted checkout for a pending order.
	InitSession(ctx context.Context, req SessionRequest) (*Session, error)

	// Verify asks the provider for the authoritative state of a transaction.
	Verify(ctx context.Context, reference string) (*Transaction, error)

	// ValidateSignature checks a webhook body against its signature header.
	ValidateSignature(body []byte, signature string) error
}

// SessionRequest carries the data sent to the provider when starting checkout.
type SessionRequest struct {
	AmountMinor int64
	Currency    string
	Email       string
	Reference   string
	CallbackURL string
	Metadata    Metadata
}

// Session is a started checkout.
type Session struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Metadata travels with the transaction and comes back on verify and webhook
// payloads. CartItems lets a payment be settled even when the local pending
// order was never persisted.
type Metadata struct {
	BuyerID   *string          `json:"buyerId,omitempty"`
	CartItems []model.LineItem `json:"cartItems,omitempty"`
}

// UnmarshalJSON accepts metadata as an object or as a JSON-encoded string.
// Values of any other shape, and a cartItems field that is not a list, decode
// to empty metadata.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	*m = Metadata{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	if data[0] == '"' {
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return fmt.Errorf("failed to decode metadata string: %w", err)
		}
		data = bytes.TrimSpace([]byte(encoded))
		if len(data) == 0 {
			return nil
		}
	}
	if data[0] != '{' {
		return nil
	}

	var raw struct {
		BuyerID   *string         `json:"buyerId"`
		CartItems json.RawMessage `json:"cartItems"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode metadata: %w", err)
	}
	m.BuyerID = raw.BuyerID

	items := bytes.TrimSpace(raw.CartItems)
	if len(items) > 0 && items[0] == '[' {
		if err := json.Unmarshal(items, &m.CartItems); err != nil {
			return fmt.Errorf("failed to decode metadata cart items: %w", err)
		}
	}
	return nil
}

// Transaction is the provider's view of a payment.
type Transaction struct {
	Reference   string
	Status      string
	Paid        bool
	AmountMinor int64
	Currency    string
	Email       string
	Metadata    Metadata
	Raw         json.RawMessage
}

// Gateway transaction statuses. Abandoned means the buyer has not finished
// paying yet and may still complete the same transaction.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
	StatusReversed  = "reversed"
)

// Failed reports whether the provider has given up on the transaction.
func (t *Transaction) Failed() bool {
	switch t.Status {
	case StatusFailed, StatusReversed:
		return true
	}
	return false
}

// transactionData is the shape of "data" on verify responses and charge webhooks.
type transactionData struct {
	Reference string   `json:"reference"`
	Status    string   `json:"status"`
	Amount    int64    `json:"amount"`
	Currency  string   `json:"currency"`
	Metadata  Metadata `json:"metadata"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
}

func decodeTransaction(raw json.RawMessage) (*Transaction, error) {
	var data transactionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return &Transaction{
		Reference:   data.Reference,
		Status:      data.Status,
		Paid:        data.Status == StatusSuccess,
		AmountMinor: data.Amount,
		Currency:    data.Currency,
		Email:       data.Customer.Email,
		Metadata:    data.Metadata,
		Raw:         append(json.RawMessage(nil), raw...),
	}, nil
}
