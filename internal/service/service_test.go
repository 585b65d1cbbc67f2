package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"cadak-tickets/internal/archive"
	"cadak-tickets/internal/cache"
	"cadak-tickets/internal/config"
	"cadak-tickets/internal/events"
	"cadak-tickets/internal/model"
	"cadak-tickets/internal/payment"
	"cadak-tickets/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

// MockGateway is a mock implementation of payment.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) InitSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

func (m *MockGateway) Verify(ctx context.Context, reference string) (*payment.Transaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockGateway) ValidateSignature(body []byte, signature string) error {
	args := m.Called(body, signature)
	return args.Error(0)
}

// MockPublisher is a mock implementation of events.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishOrderPaid(ctx context.Context, ev events.OrderPaid) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockPublisher) PublishTicketCheckedIn(ctx context.Context, ev events.TicketCheckedIn) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

// memoryReceipts is an in-process ReceiptCache.
type memoryReceipts struct {
	mu      sync.Mutex
	entries map[string]model.ReconcileResult
}

func newMemoryReceipts() *memoryReceipts {
	return &memoryReceipts{entries: make(map[string]model.ReconcileResult)}
}

func (c *memoryReceipts) Get(_ context.Context, reference string) (*model.ReconcileResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[reference]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (c *memoryReceipts) Put(_ context.Context, result *model.ReconcileResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[result.Reference] = *result
	return nil
}

var testPaymentConfig = config.PaymentConfig{
	SecretKey:       "sk_test",
	Currency:        "NGN",
	ReferencePrefix: "cadak",
}

func strPtr(s string) *string { return &s }

// newTestStore returns a memory store seeded with one published event
// (evt_1, sold by seller_1) and a draft event.
func newTestStore(t *testing.T) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore(5, zerolog.Nop())
	store.SeedEvent(model.Event{
		ID:       "evt_1",
		SellerID: "seller_1",
		Title:    "Lagos Jazz Night",
		Status:   model.EventPublished,
		Currency: "NGN",
		StartAt:  time.Now().Add(7 * 24 * time.Hour),
		TicketTypes: []model.TicketType{
			{ID: "tt_regular", Name: "Regular", PriceMinor: 200000, Currency: "NGN", QuantityTotal: 100, MaxPerOrder: 10},
			{ID: "tt_vip", Name: "VIP", PriceMinor: 500000, Currency: "NGN", QuantityTotal: 2, MaxPerOrder: 2},
		},
	})
	store.SeedEvent(model.Event{
		ID:       "evt_draft",
		SellerID: "seller_1",
		Title:    "Unannounced",
		Status:   model.EventDraft,
		Currency: "NGN",
		StartAt:  time.Now().Add(30 * 24 * time.Hour),
		TicketTypes: []model.TicketType{
			{ID: "tt_draft", Name: "Early", PriceMinor: 100000, Currency: "NGN", QuantityTotal: 10},
		},
	})
	return store
}

// cartItems is the mixed cart used across tests: 2 x Regular + 1 x VIP.
func cartItems() []model.LineItem {
	return []model.LineItem{
		{EventID: "evt_1", TicketTypeID: "tt_regular", Name: "Regular", UnitPriceMinor: 200000, Quantity: 2, Currency: "NGN"},
		{EventID: "evt_1", TicketTypeID: "tt_vip", Name: "VIP", UnitPriceMinor: 500000, Quantity: 1, Currency: "NGN"},
	}
}

// pendingOrder builds a pending order for evt_1 with the given items.
func pendingOrder(id, reference string, items []model.LineItem) *model.Order {
	for i := range items {
		items[i].SellerID = "seller_1"
		items[i].EventTitle = "Lagos Jazz Night"
	}
	return &model.Order{
		ID:         id,
		Reference:  reference,
		BuyerID:    strPtr("buyer_1"),
		BuyerEmail: "ada@example.com",
		Items:      items,
		Currency:   "NGN",
		TotalMinor: model.SumItems(items),
		Status:     model.OrderPending,
		CreatedAt:  time.Now().UTC(),
	}
}

func paidTransaction(reference string, amount int64) *payment.Transaction {
	raw, _ := json.Marshal(map[string]any{"reference": reference, "status": "success", "amount": amount, "currency": "NGN"})
	return &payment.Transaction{
		Reference:   reference,
		Status:      payment.StatusSuccess,
		Paid:        true,
		AmountMinor: amount,
		Currency:    "NGN",
		Email:       "ada@example.com",
		Raw:         raw,
	}
}

type reconcileFixture struct {
	store     *repository.MemoryStore
	gateway   *MockGateway
	receipts  *memoryReceipts
	publisher *events.LogPublisher
	svc       *reconcileService
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	store := newTestStore(t)
	gateway := new(MockGateway)
	receipts := newMemoryReceipts()
	publisher := events.NewLogPublisher(zerolog.Nop())

	svc := NewReconcileService(
		store.Orders(),
		store.Tickets(),
		gateway,
		receipts,
		publisher,
		archive.NopArchiver{},
		zerolog.Nop(),
	).(*reconcileService)

	return &reconcileFixture{store: store, gateway: gateway, receipts: receipts, publisher: publisher, svc: svc}
}

var _ cache.ReceiptCache = (*memoryReceipts)(nil)
