package model

import (
	"encoding/json"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderPaid     OrderStatus = "paid"
	OrderRefunded OrderStatus = "refunded"
	OrderFailed   OrderStatus = "failed"
)

// CanTransition reports whether an order in status from may move to to.
// Failed orders stay payable since the gateway may still settle them late.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case OrderPending:
		return to != OrderPending
	case OrderFailed:
		return to == OrderPaid
	}
	return false
}

// Order is a buyer's purchase intent, keyed by its gateway reference.
type Order struct {
	ID         string          `json:"id" db:"id"`
	Reference  string          `json:"reference" db:"reference"`
	BuyerID    *string         `json:"buyerId,omitempty" db:"buyer_id"`
	BuyerEmail string          `json:"buyerEmail" db:"buyer_email"`
	Items      []LineItem      `json:"items" db:"items"`
	Currency   string          `json:"currency" db:"currency"`
	TotalMinor int64           `json:"totalMinor" db:"total_minor"`
	Status     OrderStatus     `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
	PaidAt     *time.Time      `json:"paidAt,omitempty" db:"paid_at"`
	RawEvent   json.RawMessage `json:"rawEvent,omitempty" db:"raw_event"`
}

// LineItem is a cart snapshot entry. Prices are in minor currency units.
type LineItem struct {
	EventID        string `json:"eventId" db:"event_id"`
	EventTitle     string `json:"eventTitle,omitempty" db:"event_title"`
	SellerID       string `json:"sellerId,omitempty" db:"seller_id"`
	TicketTypeID   string `json:"ticketTypeId" db:"ticket_type_id"`
	Name           string `json:"name" db:"name"`
	UnitPriceMinor int64  `json:"unitPriceMinor" db:"unit_price_minor"`
	Quantity       int    `json:"quantity" db:"quantity"`
	Currency       string `json:"currency" db:"currency"`
}

// Subtotal returns unit price times quantity.
func (li LineItem) Subtotal() int64 {
	return li.UnitPriceMinor * int64(li.Quantity)
}

// TicketCount returns the number of tickets the order will issue.
func (o *Order) TicketCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// SumItems totals line items in minor units.
func SumItems(items []LineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

// CheckoutRequest represents the request payload for starting a purchase.
type CheckoutRequest struct {
	Items      []LineItem `json:"items"`
	BuyerEmail string     `json:"buyerEmail"`
	BuyerID    *string    `json:"buyerId,omitempty"`
}

// PendingOrder is the result of order intake. OrderID is empty when the
// pending order could not be persisted.
type PendingOrder struct {
	OrderID    string     `json:"orderId,omitempty"`
	Reference  string     `json:"reference"`
	Currency   string     `json:"currency"`
	TotalMinor int64      `json:"totalMinor"`
	Items      []LineItem `json:"items"`
	Persisted  bool       `json:"-"`
}

// CheckoutResponse represents the response payload for a started purchase.
type CheckoutResponse struct {
	AuthorizationURL string `json:"authorizationUrl"`
	Reference        string `json:"reference"`
	OrderID          string `json:"orderId,omitempty"`
}

// ReconcileResult describes a settled order.
type ReconcileResult struct {
	OrderID     string   `json:"orderId"`
	Reference   string   `json:"reference"`
	TicketIDs   []string `json:"ticketIds"`
	AlreadyPaid bool     `json:"alreadyPaid"`
}

// OrderDetails is an order together with the tickets issued for it.
type OrderDetails struct {
	Order   *Order   `json:"order"`
	Tickets []Ticket `json:"tickets"`
}
