package model

import (
	"strings"
	"time"
)

// EventRequest represents the request payload for creating an event.
type EventRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Venue       string              `json:"venue"`
	City        string              `json:"city"`
	Category    string              `json:"category"`
	Status      EventStatus         `json:"status"`
	Currency    string              `json:"currency"`
	StartAt     time.Time           `json:"startAt"`
	EndAt       *time.Time          `json:"endAt,omitempty"`
	TicketTypes []TicketTypeRequest `json:"ticketTypes"`
}

// TicketTypeRequest describes one tier of a new event.
type TicketTypeRequest struct {
	Name          string `json:"name"`
	Tier          string `json:"tier"`
	PriceMinor    int64  `json:"priceMinor"`
	QuantityTotal int    `json:"quantityTotal"`
	MaxPerOrder   int    `json:"maxPerOrder"`
}

// EventPatch carries the event fields a seller may change after creation.
// Nil fields are left as they are.
type EventPatch struct {
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	Venue       *string      `json:"venue,omitempty"`
	City        *string      `json:"city,omitempty"`
	Category    *string      `json:"category,omitempty"`
	Status      *EventStatus `json:"status,omitempty"`
	StartAt     *time.Time   `json:"startAt,omitempty"`
	EndAt       *time.Time   `json:"endAt,omitempty"`
}

// Apply copies the set fields onto e.
func (p *EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Venue != nil {
		e.Venue = *p.Venue
	}
	if p.City != nil {
		e.City = *p.City
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.StartAt != nil {
		e.StartAt = *p.StartAt
	}
	if p.EndAt != nil {
		end := *p.EndAt
		e.EndAt = &end
	}
}

// Valid reports whether s is a known event status.
func (s EventStatus) Valid() bool {
	return s == EventDraft || s == EventPublished
}

// SellerSubtotal returns the part of the order total sold by sellerID.
func (o *Order) SellerSubtotal(sellerID string) int64 {
	var total int64
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			total += item.Subtotal()
		}
	}
	return total
}

// SellerOrder is an order as one of its sellers sees it: only that seller's
// line items and their total.
type SellerOrder struct {
	ID         string      `json:"id"`
	Reference  string      `json:"reference"`
	BuyerEmail string      `json:"buyerEmail"`
	Status     OrderStatus `json:"status"`
	Currency   string      `json:"currency"`
	Items      []LineItem  `json:"items"`
	TotalMinor int64       `json:"totalMinor"`
	CreatedAt  time.Time   `json:"createdAt"`
	PaidAt     *time.Time  `json:"paidAt,omitempty"`
}

// ForSeller trims the order to sellerID's line items.
func (o *Order) ForSeller(sellerID string) SellerOrder {
	items := []LineItem{}
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			items = append(items, item)
		}
	}
	return SellerOrder{
		ID:         o.ID,
		Reference:  o.Reference,
		BuyerEmail: o.BuyerEmail,
		Status:     o.Status,
		Currency:   o.Currency,
		Items:      items,
		TotalMinor: SumItems(items),
		CreatedAt:  o.CreatedAt,
		PaidAt:     o.PaidAt,
	}
}

// PayoutStatus is the review state of a payout request.
type PayoutStatus string

const (
	PayoutPending  PayoutStatus = "pending"
	PayoutPaid     PayoutStatus = "paid"
	PayoutRejected PayoutStatus = "rejected"
)

// PayoutRequest asks the platform to transfer a seller's earnings.
type PayoutRequest struct {
	ID          string       `json:"id" db:"id"`
	SellerID    string       `json:"sellerId" db:"seller_id"`
	AmountMinor int64        `json:"amountMinor" db:"amount_minor"`
	Currency    string       `json:"currency" db:"currency"`
	Status      PayoutStatus `json:"status" db:"status"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
	ResolvedAt  *time.Time   `json:"resolvedAt,omitempty" db:"resolved_at"`
}

// PayoutBalance summarises what a seller has earned and can still claim.
type PayoutBalance struct {
	Currency       string `json:"currency"`
	SalesMinor     int64  `json:"salesMinor"`
	FeeMinor       int64  `json:"feeMinor"`
	RequestedMinor int64  `json:"requestedMinor"`
	AvailableMinor int64  `json:"availableMinor"`
}
