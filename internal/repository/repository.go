package repository

import (
	"context"
	"time"

	"cadak-tickets/internal/model"
)

// Tx is the set of reads and writes available inside a store transaction.
// Reads that return a single row lock it until the transaction ends.
// Lookups return nil, nil when the row does not exist.
type Tx interface {
	// GetOrderByReference loads an order for update.
	GetOrderByReference(ctx context.Context, reference string) (*model.Order, error)

	// InsertOrder stores a new order. A duplicate reference is a conflict.
	InsertOrder(ctx context.Context, order *model.Order) error

	// TransitionOrder moves a pending order to the given status. A failed
	// order may still move to paid, when the gateway later reports the
	// payment as successful. Any other move fails with
	// model.ErrInvalidOrderState.
	TransitionOrder(ctx context.Context, orderID string, to model.OrderStatus, paidAt *time.Time, rawEvent []byte) error

	// ListTicketsByOrder returns an order's tickets in issue order.
	ListTicketsByOrder(ctx context.Context, orderID string) ([]model.Ticket, error)

	// InsertTickets stores newly issued tickets.
	InsertTickets(ctx context.Context, tickets []model.Ticket) error

	// AddQuantitySold adjusts a ticket type's sold counter by quantity, never
	// below zero, and returns the remaining allocation, which is negative
	// when oversold. found is false for ticket types unknown to the catalog.
	AddQuantitySold(ctx context.Context, ticketTypeID string, quantity int) (remaining int, found bool, err error)

	// GetTicket loads a ticket for update.
	GetTicket(ctx context.Context, ticketID string) (*model.Ticket, error)

	// MarkCheckedIn moves an unused ticket to checked_in.
	MarkCheckedIn(ctx context.Context, ticketID string, scannedAt time.Time) error

	// DeleteTicket removes an unused ticket.
	DeleteTicket(ctx context.Context, ticketID string) error

	// InsertScan appends a check-in audit record.
	InsertScan(ctx context.Context, scan *model.Scan) error

	// HasScannerAccess reports whether memberID may scan sellerID's tickets.
	HasScannerAccess(ctx context.Context, sellerID, memberID string) (bool, error)
}

// TxFunc is a unit of work run by Transact. It may run more than once.
type TxFunc func(ctx context.Context, tx Tx) error

// Transactor runs a function atomically. Conflicting concurrent writes re-run
// the function from a fresh read up to a bounded number of times, after which
// Transact fails with model.ErrConflict.
type Transactor interface {
	Transact(ctx context.Context, fn TxFunc) error
}

// OrderStore defines the interface for order data access operations.
type OrderStore interface {
	Transactor

	// CreatePending inserts a pending order outside of any transaction.
	CreatePending(ctx context.Context, order *model.Order) error

	// GetByReference retrieves an order by its gateway reference.
	GetByReference(ctx context.Context, reference string) (*model.Order, error)

	// GetByID retrieves an order by its ID.
	GetByID(ctx context.Context, id string) (*model.Order, error)

	// ListBySeller returns orders holding at least one of the seller's
	// items, newest first.
	ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]model.Order, error)

	// SellerSales sums the seller's item subtotals over paid orders in currency.
	SellerSales(ctx context.Context, sellerID, currency string) (int64, error)
}

// TicketStore defines the interface for ticket data access operations.
type TicketStore interface {
	Transactor

	// GetByID retrieves a single ticket.
	GetByID(ctx context.Context, id string) (*model.Ticket, error)

	// ListByOrder returns an order's tickets in issue order.
	ListByOrder(ctx context.Context, orderID string) ([]model.Ticket, error)

	// ListByBuyer returns a buyer's tickets, newest first.
	ListByBuyer(ctx context.Context, buyerID string, limit, offset int) ([]model.Ticket, error)

	// ListBySeller returns tickets issued for a seller's events, newest first.
	ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]model.Ticket, error)
}

// CatalogRepository defines the interface for event and ticket type reads.
type CatalogRepository interface {
	// ListPublished retrieves published events with their ticket types.
	ListPublished(ctx context.Context, limit, offset int) ([]model.Event, error)

	// GetEvent retrieves a single event with its ticket types.
	GetEvent(ctx context.Context, id string) (*model.Event, error)

	// GetTicketTypes retrieves ticket types by ID. Unknown IDs are omitted.
	GetTicketTypes(ctx context.Context, ids []string) ([]model.TicketType, error)

	// ListBySeller retrieves a seller's events of any status, newest first.
	ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]model.Event, error)

	// CreateEvent stores an event together with its ticket types.
	CreateEvent(ctx context.Context, event *model.Event) error

	// UpdateEvent overwrites an event's own fields. Ticket types are untouched.
	UpdateEvent(ctx context.Context, event *model.Event) error

	// DeleteEvent removes an event and its ticket types. It fails with
	// model.ErrEventHasSales once any ticket type has sold a ticket.
	DeleteEvent(ctx context.Context, id string) error
}

// PayoutRepository stores sellers' payout requests. A seller has at most
// one pending request at a time.
type PayoutRepository interface {
	// Create stores a pending request, or fails with model.ErrPayoutPending.
	Create(ctx context.Context, payout *model.PayoutRequest) error

	// Get retrieves a request by ID.
	Get(ctx context.Context, id string) (*model.PayoutRequest, error)

	// ListBySeller returns a seller's requests, newest first.
	ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]model.PayoutRequest, error)

	// Outstanding sums the seller's pending and paid requests in currency.
	Outstanding(ctx context.Context, sellerID, currency string) (int64, error)

	// Resolve moves a pending request to paid or rejected. Requests that are
	// no longer pending fail with model.ErrInvalidPayoutState.
	Resolve(ctx context.Context, id string, status model.PayoutStatus, at time.Time) error
}

// AccessRepository manages the sellers' scanner authorization lists.
type AccessRepository interface {
	Grant(ctx context.Context, access *model.ScannerAccess) error
	Revoke(ctx context.Context, sellerID, memberID string) error
	List(ctx context.Context, sellerID string) ([]model.ScannerAccess, error)
}
