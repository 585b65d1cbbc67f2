package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cadak-tickets/internal/config"
	"cadak-tickets/internal/model"
	"cadak-tickets/internal/telemetry"

	"github.com/rs/zerolog"
)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 1 << 20

// PaystackClient implements Gateway against the Paystack REST API.
type PaystackClient struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewPaystackClient creates a Paystack client. Outbound calls are traced and
// bounded by cfg.Timeout.
func NewPaystackClient(cfg config.PaymentConfig, logger zerolog.Logger) *PaystackClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PaystackClient{
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: telemetry.HTTPTransport(nil),
		},
		logger: logger.With().Str("gateway", "paystack").Logger(),
	}
}

// envelope is the wrapper Paystack puts around every response.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeRequest struct {
	Email       string   `json:"email"`
	Amount      int64    `json:"amount"`
	Currency    string   `json:"currency"`
	Reference   string   `json:"reference"`
	CallbackURL string   `json:"callback_url,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

// InitSession calls POST /transaction/initialize. Amounts are already in the
// currency's minor unit, which is what Paystack expects.
func (c *PaystackClient) InitSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if c.secretKey == "" {
		return nil, model.ErrMissingCredential
	}

	body, err := json.Marshal(initializeRequest{
		Email:       req.Email,
		Amount:      req.AmountMinor,
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode initialize request: %w", err)
	}

	env, err := c.do(ctx, "initialize", http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		c.logger.Error().Err(err).Str("reference", req.Reference).Msg("transaction initialize failed")
		return nil, fmt.Errorf("%w: %v", model.ErrGatewayInitFailed, err)
	}

	var session Session
	if err := json.Unmarshal(env.Data, &session); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", model.ErrGatewayInitFailed, err)
	}
	if session.AuthorizationURL == "" {
		return nil, fmt.Errorf("%w: response has no authorization url", model.ErrGatewayInitFailed)
	}
	if session.Reference == "" {
		session.Reference = req.Reference
	}

	c.logger.Debug().Str("reference", session.Reference).Msg("transaction initialized")
	return &session, nil
}

// Verify calls GET /transaction/verify/{reference}. A transaction is only
// Paid when Paystack reports status "success".
func (c *PaystackClient) Verify(ctx context.Context, reference string) (*Transaction, error) {
	if c.secretKey == "" {
		return nil, model.ErrMissingCredential
	}
	if strings.TrimSpace(reference) == "" {
		return nil, model.ErrMissingReference
	}

	env, err := c.do(ctx, "verify", http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("reference", reference).Msg("transaction verify failed")
		return nil, fmt.Errorf("%w: %v", model.ErrGatewayVerifyFailed, err)
	}

	tx, err := decodeTransaction(env.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrGatewayVerifyFailed, err)
	}
	if tx.Reference == "" {
		tx.Reference = reference
	}
	return tx, nil
}

// ValidateSignature checks the x-paystack-signature header of a webhook.
func (c *PaystackClient) ValidateSignature(body []byte, signature string) error {
	if c.secretKey == "" {
		return model.ErrMissingCredential
	}
	return ValidateSignature(c.secretKey, body, signature)
}

func (c *PaystackClient) do(ctx context.Context, operation, method, path string, body []byte) (*envelope, error) {
	started := time.Now()
	outcome := "error"
	defer func() { telemetry.ObserveGateway(operation, outcome, started) }()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("malformed response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Status {
		outcome = "rejected"
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("paystack rejected request (%d): %s", resp.StatusCode, msg)
	}

	outcome = "ok"
	return &env, nil
}
