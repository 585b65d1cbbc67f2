package model

import "time"

// EventStatus controls catalog visibility.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
)

// Event is a ticketed occasion listed by a seller.
type Event struct {
	ID            string       `json:"id" db:"id"`
	SellerID      string       `json:"sellerId" db:"seller_id"`
	Title         string       `json:"title" db:"title"`
	Description   string       `json:"description" db:"description"`
	Venue         string       `json:"venue" db:"venue"`
	City          string       `json:"city,omitempty" db:"city"`
	Category      string       `json:"category" db:"category"`
	Status        EventStatus  `json:"status" db:"status"`
	Currency      string       `json:"currency" db:"currency"`
	StartAt       time.Time    `json:"startAt" db:"start_at"`
	EndAt         *time.Time   `json:"endAt,omitempty" db:"end_at"`
	CreatedAt     time.Time    `json:"createdAt" db:"created_at"`
	TicketTypes   []TicketType `json:"ticketTypes,omitempty"`
	MinPriceMinor *int64       `json:"minPriceMinor,omitempty"`
}

// TicketType is a priced tier of an event with a fixed allocation.
type TicketType struct {
	ID            string `json:"id" db:"id"`
	EventID       string `json:"eventId" db:"event_id"`
	Name          string `json:"name" db:"name"`
	Tier          string `json:"tier,omitempty" db:"tier"`
	PriceMinor    int64  `json:"priceMinor" db:"price_minor"`
	Currency      string `json:"currency" db:"currency"`
	QuantityTotal int    `json:"quantityTotal" db:"quantity_total"`
	QuantitySold  int    `json:"quantitySold" db:"quantity_sold"`
	MaxPerOrder   int    `json:"maxPerOrder,omitempty" db:"max_per_order"`
}

// Remaining returns how many tickets of this type are still unsold.
func (tt TicketType) Remaining() int {
	if left := tt.QuantityTotal - tt.QuantitySold; left > 0 {
		return left
	}
	return 0
}

// FillMinPrice sets MinPriceMinor from the event's ticket types.
func (e *Event) FillMinPrice() {
	e.MinPriceMinor = nil
	for _, tt := range e.TicketTypes {
		price := tt.PriceMinor
		if e.MinPriceMinor == nil || price < *e.MinPriceMinor {
			e.MinPriceMinor = &price
		}
	}
}
