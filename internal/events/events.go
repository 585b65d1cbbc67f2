package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// OrderPaid is published once per order when it moves to paid.
type OrderPaid struct {
	OrderID    string    `json:"orderId"`
	Reference  string    `json:"reference"`
	BuyerID    *string   `json:"buyerId,omitempty"`
	BuyerEmail string    `json:"buyerEmail"`
	Currency   string    `json:"currency"`
	TotalMinor int64     `json:"totalMinor"`
	TicketIDs  []string  `json:"ticketIds"`
	Source     string    `json:"source"`
	PaidAt     time.Time `json:"paidAt"`
}

// TicketCheckedIn is published for every successful check-in.
type TicketCheckedIn struct {
	TicketID  string    `json:"ticketId"`
	EventID   string    `json:"eventId"`
	SellerID  string    `json:"sellerId"`
	ScannerID string    `json:"scannedBy"`
	ScannedAt time.Time `json:"scannedAt"`
}

// Publisher announces committed state changes to other services. Delivery is
// best effort: callers log failures and carry on, since the change itself is
// already durable.
type Publisher interface {
	PublishOrderPaid(ctx context.Context, ev OrderPaid) error
	PublishTicketCheckedIn(ctx context.Context, ev TicketCheckedIn) error
	Close() error
}

// LogPublisher writes events to the log instead of a broker.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a publisher for deployments without Kafka.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("publisher", "log").Logger()}
}

func (p *LogPublisher) PublishOrderPaid(_ context.Context, ev OrderPaid) error {
	p.logger.Debug().
		Str("order_id", ev.OrderID).
		Str("reference", ev.Reference).
		Int("ticket_count", len(ev.TicketIDs)).
		Msg("order paid")
	return nil
}

func (p *LogPublisher) PublishTicketCheckedIn(_ context.Context, ev TicketCheckedIn) error {
	p.logger.Debug().
		Str("ticket_id", ev.TicketID).
		Str("scanner_id", ev.ScannerID).
		Msg("ticket checked in")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
