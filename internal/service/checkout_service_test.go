package service

import (
	"context"
	"errors"
	"testing"

	"cadak-tickets/internal/model"
	"cadak-tickets/internal/payment"
	"cadak-tickets/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// failingOrderStore rejects every pending order write.
type failingOrderStore struct {
	repository.OrderStore
}

func (failingOrderStore) CreatePending(context.Context, *model.Order) error {
	return errors.New("database unavailable")
}

func newCheckoutService(store *repository.MemoryStore, gateway *MockGateway) CheckoutService {
	return NewCheckoutService(store.Orders(), store.Catalog(), gateway, testPaymentConfig, zerolog.Nop())
}

func TestCheckoutService_CreatePendingOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := newCheckoutService(store, new(MockGateway))

	pending, err := svc.CreatePendingOrder(ctx, &model.CheckoutRequest{
		Items:      cartItems(),
		BuyerEmail: " ada@example.com ",
		BuyerID:    strPtr("buyer_1"),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(900000), pending.TotalMinor)
	assert.Equal(t, "NGN", pending.Currency)
	assert.Regexp(t, `^cadak_\d+_[0-9a-z]{6}$`, pending.Reference)
	assert.True(t, pending.Persisted)
	assert.NotEmpty(t, pending.OrderID)

	order, err := store.Orders().GetByReference(ctx, pending.Reference)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, pending.OrderID, order.ID)
	assert.Equal(t, model.OrderPending, order.Status)
	assert.Equal(t, "ada@example.com", order.BuyerEmail)
	assert.Equal(t, int64(900000), order.TotalMinor)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "seller_1", order.Items[0].SellerID)
	assert.Equal(t, "Lagos Jazz Night", order.Items[0].EventTitle)
	assert.Nil(t, order.PaidAt)
}

func TestCheckoutService_CreatePendingOrderValidation(t *testing.T) {
	withItems := func(mutate func(items []model.LineItem) []model.LineItem) []model.LineItem {
		return mutate(cartItems())
	}

	tests := []struct {
		name    string
		req     *model.CheckoutRequest
		wantErr error
	}{
		{
			name:    "nil request",
			req:     nil,
			wantErr: model.ErrEmptyCart,
		},
		{
			name:    "empty cart",
			req:     &model.CheckoutRequest{BuyerEmail: "a@b.c"},
			wantErr: model.ErrEmptyCart,
		},
		{
			name:    "missing buyer email",
			req:     &model.CheckoutRequest{Items: cartItems(), BuyerEmail: "  "},
			wantErr: model.ErrMissingBuyerEmail,
		},
		{
			name: "zero quantity",
			req: &model.CheckoutRequest{BuyerEmail: "a@b.c", Items: withItems(func(items []model.LineItem) []model.LineItem {
				items[1].Quantity = 0
				return items
			})},
			wantErr: model.ErrInvalidQuantity,
		},
		{
			name: "mixed currencies",
			req: &model.CheckoutRequest{BuyerEmail: "a@b.c", Items: withItems(func(items []model.LineItem) []model.LineItem {
				items[1].Currency = "USD"
				return items
			})},
			wantErr: model.ErrCurrencyMismatch,
		},
		{
			name: "mixed currencies including unsupported first",
			req: &model.CheckoutRequest{BuyerEmail: "a@b.c", Items: withItems(func(items []model.LineItem) []model.LineItem {
				items[0].Currency = "USD"
				return items
			})},
			wantErr: model.ErrCurrencyMismatch,
		},
		{
			name: "unsupported currency",
			req: &model.CheckoutRequest{BuyerEmail: "a@b.c", Items: withItems(func(items []model.LineItem) []model.LineItem {
				items[0].Currency = "USD"
				items[1].Currency = "USD"
				return items
			})},
			wantErr: model.ErrUnsupportedCurrency,
		},
		{
			name: "unknown ticket type",
			req: &model.CheckoutRequest{BuyerEmail: "a@b.c", Items: withItems(func(items []model.LineItem) []model.LineItem {
				items[0].TicketTypeID = "tt_missing"
				return items
			})},
			wantErr: model.ErrTicketTypeNotFound,
		},
		{
			name: "ticket type of another event",
			req: &model.CheckoutRequest{BuyerEmail: "a@b.c", Items: withItems(func(items []model.LineItem) []model.LineItem {
				items[0].EventID = "evt_other"
				return items
			})},
			wantErr: model.ErrTicketTypeNotFound,
		},
		{
			name: "stale client price",
			req: &model.CheckoutRequest{BuyerEmail: "a@b.c", Items: withItems(func(items []model.LineItem) []model.LineItem {
				items[0].UnitPriceMinor = 1
				return items
			})},
			wantErr: model.ErrPriceMismatch,
		},
		{
			name: "aggregated quantity above per order limit",
			req: &model.CheckoutRequest{BuyerEmail: "a@b.c", Items: []model.LineItem{
				{EventID: "evt_1", TicketTypeID: "tt_vip", UnitPriceMinor: 500000, Quantity: 2, Currency: "NGN"},
				{EventID: "evt_1", TicketTypeID: "tt_vip", UnitPriceMinor: 500000, Quantity: 1, Currency: "NGN"},
			}},
			wantErr: model.ErrMaxPerOrderExceeded,
		},
		{
			name: "above per order limit",
			req: &model.CheckoutRequest{BuyerEmail: "a@b.c", Items: []model.LineItem{
				{EventID: "evt_1", TicketTypeID: "tt_regular", UnitPriceMinor: 200000, Quantity: 11, Currency: "NGN"},
			}},
			wantErr: model.ErrMaxPerOrderExceeded,
		},
		{
			name: "draft event",
			req: &model.CheckoutRequest{BuyerEmail: "a@b.c", Items: []model.LineItem{
				{EventID: "evt_draft", TicketTypeID: "tt_draft", UnitPriceMinor: 100000, Quantity: 1, Currency: "NGN"},
			}},
			wantErr: model.ErrEventNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			svc := newCheckoutService(store, new(MockGateway))

			pending, err := svc.CreatePendingOrder(context.Background(), tt.req)

			assert.Nil(t, pending)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheckoutService_InsufficientInventory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Transact(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, _, err := tx.AddQuantitySold(ctx, "tt_vip", 2)
		return err
	}))

	svc := newCheckoutService(store, new(MockGateway))
	_, err := svc.CreatePendingOrder(ctx, &model.CheckoutRequest{BuyerEmail: "a@b.c", Items: cartItems()})
	assert.ErrorIs(t, err, model.ErrInsufficientInventory)
}

func TestCheckoutService_PersistFailureStillReturnsReference(t *testing.T) {
	store := newTestStore(t)
	svc := NewCheckoutService(failingOrderStore{store.Orders()}, store.Catalog(), new(MockGateway), testPaymentConfig, zerolog.Nop())

	pending, err := svc.CreatePendingOrder(context.Background(), &model.CheckoutRequest{BuyerEmail: "a@b.c", Items: cartItems()})

	require.NoError(t, err)
	assert.NotEmpty(t, pending.Reference)
	assert.Empty(t, pending.OrderID)
	assert.False(t, pending.Persisted)
}

func TestCheckoutService_Checkout(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	gateway := new(MockGateway)
	svc := newCheckoutService(store, gateway)

	gateway.On("InitSession", mock.Anything, mock.MatchedBy(func(req payment.SessionRequest) bool {
		return req.AmountMinor == 900000 &&
			req.Currency == "NGN" &&
			req.Email == "ada@example.com" &&
			req.CallbackURL == "https://tickets.example.com/paystack/callback" &&
			req.Metadata.BuyerID != nil && *req.Metadata.BuyerID == "buyer_1" &&
			len(req.Metadata.CartItems) == 2 &&
			req.Metadata.CartItems[0].SellerID == "seller_1"
	})).Return(&payment.Session{AuthorizationURL: "https://checkout.paystack.com/xyz", AccessCode: "xyz"}, nil)

	resp, err := svc.Checkout(ctx, &model.CheckoutRequest{
		Items:      cartItems(),
		BuyerEmail: "ada@example.com",
		BuyerID:    strPtr("buyer_1"),
	}, "https://tickets.example.com/paystack/callback")

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/xyz", resp.AuthorizationURL)
	assert.NotEmpty(t, resp.OrderID)
	gateway.AssertExpectations(t)

	order, err := store.Orders().GetByReference(ctx, resp.Reference)
	require.NoError(t, err)
	require.NotNil(t, order, "pending order is persisted before the session starts")
}

func TestCheckoutService_CheckoutGatewayFailure(t *testing.T) {
	store := newTestStore(t)
	gateway := new(MockGateway)
	svc := newCheckoutService(store, gateway)

	gateway.On("InitSession", mock.Anything, mock.Anything).Return(nil, model.ErrGatewayInitFailed)

	resp, err := svc.Checkout(context.Background(), &model.CheckoutRequest{BuyerEmail: "a@b.c", Items: cartItems()}, "")

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, model.ErrGatewayInitFailed)
}

func TestCheckoutService_ValidationSkipsGateway(t *testing.T) {
	store := newTestStore(t)
	gateway := new(MockGateway)
	svc := newCheckoutService(store, gateway)

	_, err := svc.Checkout(context.Background(), &model.CheckoutRequest{BuyerEmail: "a@b.c"}, "")

	assert.ErrorIs(t, err, model.ErrEmptyCart)
	gateway.AssertNotCalled(t, "InitSession", mock.Anything, mock.Anything)
}
