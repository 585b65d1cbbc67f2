package service

import (
	"context"

	"cadak-tickets/internal/model"
)

// CatalogService defines read operations over published events.
type CatalogService interface {
	// ListEvents retrieves published events with pagination.
	ListEvents(ctx context.Context, limit, offset int) ([]model.Event, error)

	// GetEvent retrieves a single event with its ticket types.
	GetEvent(ctx context.Context, id string) (*model.Event, error)
}

// CheckoutService defines order intake operations.
type CheckoutService interface {
	// CreatePendingOrder validates a cart and records it as a pending order.
	CreatePendingOrder(ctx context.Context, req *model.CheckoutRequest) (*model.PendingOrder, error)

	// Checkout creates a pending order and starts a gateway payment session.
	Checkout(ctx context.Context, req *model.CheckoutRequest, callbackURL string) (*model.CheckoutResponse, error)
}

// ReconcileService turns verified payments into paid orders and tickets.
type ReconcileService interface {
	// Reconcile settles an already verified reference.
	Reconcile(ctx context.Context, reference string) (*model.ReconcileResult, error)

	// ConfirmPayment verifies reference with the gateway, then reconciles it.
	ConfirmPayment(ctx context.Context, reference string) (*model.ReconcileResult, error)

	// HandleWebhook authenticates and processes a gateway notification.
	HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookOutcome, error)

	// GetOrder returns an order and its tickets by reference.
	GetOrder(ctx context.Context, reference string) (*model.OrderDetails, error)
}

// TicketService defines ticket reads, deletion and redemption.
type TicketService interface {
	// CheckIn redeems a ticket at the gate on behalf of scannerID.
	CheckIn(ctx context.Context, ticketID, scannerID string) (*model.CheckInResult, error)

	// Get retrieves a ticket visible to viewerID, its buyer or its seller.
	Get(ctx context.Context, ticketID, viewerID string) (*model.Ticket, error)

	// ListForBuyer returns the tickets bought by buyerID.
	ListForBuyer(ctx context.Context, buyerID string, limit, offset int) ([]model.Ticket, error)

	// ListForSeller returns the tickets issued for sellerID's events.
	ListForSeller(ctx context.Context, sellerID string, limit, offset int) ([]model.Ticket, error)

	// Delete removes an unused ticket owned by buyerID.
	Delete(ctx context.Context, ticketID, buyerID string) error
}

// AccessService manages which staff members may scan a seller's tickets.
type AccessService interface {
	Grant(ctx context.Context, sellerID string, req *model.ScannerAccessRequest) (*model.ScannerAccess, error)
	Revoke(ctx context.Context, sellerID, memberID string) error
	List(ctx context.Context, sellerID string) ([]model.ScannerAccess, error)
}

// SellerService manages a seller's own events and sales.
type SellerService interface {
	// CreateEvent lists a new event with its ticket types under sellerID.
	CreateEvent(ctx context.Context, sellerID string, req *model.EventRequest) (*model.Event, error)

	// UpdateEvent changes an event owned by sellerID.
	UpdateEvent(ctx context.Context, sellerID, eventID string, patch *model.EventPatch) (*model.Event, error)

	// DeleteEvent removes an event owned by sellerID that has not sold yet.
	DeleteEvent(ctx context.Context, sellerID, eventID string) error

	// ListEvents returns sellerID's events, drafts included.
	ListEvents(ctx context.Context, sellerID string, limit, offset int) ([]model.Event, error)

	// ListOrders returns orders containing sellerID's tickets, trimmed to
	// the seller's own line items.
	ListOrders(ctx context.Context, sellerID string, limit, offset int) ([]model.SellerOrder, error)
}

// PayoutService computes seller balances and tracks payout requests.
type PayoutService interface {
	// Balance reports what sellerID has earned and can still request.
	Balance(ctx context.Context, sellerID string) (*model.PayoutBalance, error)

	// RequestPayout asks for the whole available balance.
	RequestPayout(ctx context.Context, sellerID string) (*model.PayoutRequest, error)

	// ListPayouts returns sellerID's requests, newest first.
	ListPayouts(ctx context.Context, sellerID string, limit, offset int) ([]model.PayoutRequest, error)

	// ResolvePayout marks a pending request as paid or rejected.
	ResolvePayout(ctx context.Context, payoutID string, status model.PayoutStatus) (*model.PayoutRequest, error)
}

// WebhookOutcome reports what a webhook delivery led to.
type WebhookOutcome struct {
	// Acknowledged is true whenever the gateway should stop redelivering.
	Acknowledged bool
	// Ignored is true when the event needed no action.
	Ignored bool
	// Failed is true when a paid charge could not settle its order and
	// needs manual review. OrderID names the order when one was found.
	Failed  bool
	OrderID string
	// Result is set when the event settled an order.
	Result *model.ReconcileResult
}

// clampPage applies the default and maximum page sizes.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
