package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cadak-tickets/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSeededMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(5, zerolog.Nop())
	s.SeedEvent(model.Event{
		ID:       "evt_1",
		SellerID: "seller_1",
		Title:    "Lagos Jazz Night",
		Status:   model.EventPublished,
		Currency: "NGN",
		StartAt:  time.Now().Add(72 * time.Hour),
		TicketTypes: []model.TicketType{
			{ID: "tt_regular", Name: "Regular", PriceMinor: 200000, Currency: "NGN", QuantityTotal: 100},
			{ID: "tt_vip", Name: "VIP", PriceMinor: 500000, Currency: "NGN", QuantityTotal: 1},
		},
	})
	return s
}

func TestMemoryStore_OrderLifecycle(t *testing.T) {
	s := newSeededMemoryStore(t)
	orders := s.Orders()
	ctx := context.Background()

	order := newPendingOrder("ord_1", "ref_1")
	require.NoError(t, orders.CreatePending(ctx, order))
	assert.Error(t, orders.CreatePending(ctx, newPendingOrder("ord_2", "ref_1")))

	got, err := orders.GetByReference(ctx, "ref_1")
	require.NoError(t, err)
	require.NotNil(t, got)

	got.Items[0].Quantity = 99
	again, err := orders.GetByID(ctx, "ord_1")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Items[0].Quantity, "reads return copies")

	err = orders.Transact(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.GetOrderByReference(ctx, "ref_1")
		if err != nil {
			return err
		}
		now := time.Now()
		if err := tx.TransitionOrder(ctx, o.ID, model.OrderPaid, &now, []byte(`{"ok":true}`)); err != nil {
			return err
		}
		return tx.TransitionOrder(ctx, o.ID, model.OrderPaid, &now, nil)
	})
	assert.ErrorIs(t, err, model.ErrInvalidOrderState)

	unchanged, err := orders.GetByID(ctx, "ord_1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, unchanged.Status, "failed transaction leaves no writes")
}

func TestMemoryStore_ReadsOwnWrites(t *testing.T) {
	s := newSeededMemoryStore(t)
	ctx := context.Background()

	order := newPendingOrder("ord_1", "ref_1")
	err := s.Transact(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		got, err := tx.GetOrderByReference(ctx, "ref_1")
		if err != nil {
			return err
		}
		require.NotNil(t, got)

		if err := tx.InsertTickets(ctx, []model.Ticket{newTicket("tk_1", order, 0, 0)}); err != nil {
			return err
		}
		listed, err := tx.ListTicketsByOrder(ctx, "ord_1")
		if err != nil {
			return err
		}
		assert.Len(t, listed, 1)

		remaining, found, err := tx.AddQuantitySold(ctx, "tt_vip", 2)
		assert.True(t, found)
		assert.Equal(t, -1, remaining)
		return err
	})
	require.NoError(t, err)

	types, err := s.Catalog().GetTicketTypes(ctx, []string{"tt_vip"})
	require.NoError(t, err)
	assert.Equal(t, 2, types[0].QuantitySold)

	_, found, err := newMemTx(s).AddQuantitySold(ctx, "tt_unknown", 1)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_ConcurrentWritersSerialize(t *testing.T) {
	s := newSeededMemoryStore(t)
	ctx := context.Background()

	const workers = 20
	var (
		wg        sync.WaitGroup
		committed atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Transact(ctx, func(ctx context.Context, tx Tx) error {
				_, _, err := tx.AddQuantitySold(ctx, "tt_regular", 1)
				return err
			})
			// Heavy contention may exhaust retries. A loser must leave no write behind.
			if err != nil {
				assert.ErrorIs(t, err, model.ErrConflict)
				return
			}
			committed.Add(1)
		}()
	}
	wg.Wait()

	types, err := s.Catalog().GetTicketTypes(ctx, []string{"tt_regular"})
	require.NoError(t, err)
	assert.Equal(t, int(committed.Load()), types[0].QuantitySold)
	assert.Greater(t, types[0].QuantitySold, 0)
}

func TestMemoryStore_ConflictRetriesThenFails(t *testing.T) {
	s := NewMemoryStore(2, zerolog.Nop())
	ctx := context.Background()

	var attempts atomic.Int32
	s.SimulateConflicts(10)
	err := s.Transact(ctx, func(ctx context.Context, tx Tx) error {
		attempts.Add(1)
		return nil
	})

	assert.ErrorIs(t, err, model.ErrConflict)
	assert.Equal(t, int32(3), attempts.Load())

	s.SimulateConflicts(1)
	attempts.Store(0)
	require.NoError(t, s.Transact(ctx, func(ctx context.Context, tx Tx) error {
		attempts.Add(1)
		return nil
	}))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestMemoryStore_StaleReadConflicts(t *testing.T) {
	s := newSeededMemoryStore(t)
	ctx := context.Background()
	require.NoError(t, s.Orders().CreatePending(ctx, newPendingOrder("ord_1", "ref_1")))

	var attempts atomic.Int32
	err := s.Transact(ctx, func(ctx context.Context, tx Tx) error {
		n := attempts.Add(1)
		o, err := tx.GetOrderByReference(ctx, "ref_1")
		if err != nil {
			return err
		}
		if o.Status == model.OrderPaid {
			return nil
		}
		if n == 1 {
			// A concurrent writer settles the order between our read and commit.
			require.NoError(t, s.Transact(ctx, func(ctx context.Context, other Tx) error {
				now := time.Now()
				return other.TransitionOrder(ctx, o.ID, model.OrderPaid, &now, nil)
			}))
		}
		return tx.InsertScan(ctx, &model.Scan{ID: "sc_stale", TicketID: "tk_1"})
	})

	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
	assert.Empty(t, s.Scans(), "the stale attempt must not commit")
}

func TestMemoryStore_TicketsAndAccess(t *testing.T) {
	s := newSeededMemoryStore(t)
	ctx := context.Background()

	order := newPendingOrder("ord_1", "ref_1")
	require.NoError(t, s.Orders().CreatePending(ctx, order))
	require.NoError(t, s.Transact(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertTickets(ctx, []model.Ticket{newTicket("tk_1", order, 0, 0), newTicket("tk_2", order, 0, 1)})
	}))

	require.NoError(t, s.Transact(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.MarkCheckedIn(ctx, "tk_1", time.Now()); err != nil {
			return err
		}
		return tx.InsertScan(ctx, &model.Scan{ID: "sc_1", TicketID: "tk_1", ScannerID: "seller_1"})
	}))
	assert.Len(t, s.Scans(), 1)

	err := s.Transact(ctx, func(ctx context.Context, tx Tx) error { return tx.DeleteTicket(ctx, "tk_1") })
	assert.ErrorIs(t, err, model.ErrTicketNotDeletable)
	require.NoError(t, s.Transact(ctx, func(ctx context.Context, tx Tx) error { return tx.DeleteTicket(ctx, "tk_2") }))

	listed, err := s.Tickets().ListByOrder(ctx, "ord_1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, model.TicketCheckedIn, listed[0].Status)

	byBuyer, err := s.Tickets().ListByBuyer(ctx, "buyer_1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, byBuyer, 1)

	access := s.Access()
	require.NoError(t, access.Grant(ctx, &model.ScannerAccess{SellerID: "seller_1", MemberID: "staff_1", Role: model.RoleScanner}))
	var allowed bool
	require.NoError(t, s.Transact(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		allowed, err = tx.HasScannerAccess(ctx, "seller_1", "staff_1")
		return err
	}))
	assert.True(t, allowed)

	require.NoError(t, access.Revoke(ctx, "seller_1", "staff_1"))
	entries, err := access.List(ctx, "seller_1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryStore(3, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Transact(ctx, func(ctx context.Context, tx Tx) error { return nil })
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMemoryCatalog(t *testing.T) {
	s := newSeededMemoryStore(t)
	ctx := context.Background()

	events, err := s.Catalog().ListPublished(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Len(t, events[0].TicketTypes, 2)
	assert.Equal(t, "tt_regular", events[0].TicketTypes[0].ID)
	assert.Equal(t, int64(200000), *events[0].MinPriceMinor)

	page, err := s.Catalog().ListPublished(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page)

	missing, err := s.Catalog().GetEvent(ctx, "evt_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStore_QuantitySoldNeverNegative(t *testing.T) {
	s := newSeededMemoryStore(t)
	ctx := context.Background()

	var remaining int
	err := s.Transact(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		remaining, _, err = tx.AddQuantitySold(ctx, "tt_vip", -3)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	types, err := s.Catalog().GetTicketTypes(ctx, []string{"tt_vip"})
	require.NoError(t, err)
	assert.Equal(t, 0, types[0].QuantitySold)
}

func TestMemoryCatalog_SellerWrites(t *testing.T) {
	s := newSeededMemoryStore(t)
	catalog := s.Catalog()
	ctx := context.Background()

	draft := &model.Event{
		ID:        "evt_2",
		SellerID:  "seller_1",
		Title:     "Abuja Comedy Night",
		Status:    model.EventDraft,
		Currency:  "NGN",
		StartAt:   time.Now().Add(240 * time.Hour),
		CreatedAt: time.Now().Add(time.Minute),
		TicketTypes: []model.TicketType{
			{ID: "tt_floor", Name: "Floor", PriceMinor: 150000, Currency: "NGN", QuantityTotal: 50},
		},
	}
	require.NoError(t, catalog.CreateEvent(ctx, draft))
	assert.Error(t, catalog.CreateEvent(ctx, draft), "duplicate event id")

	mine, err := catalog.ListBySeller(ctx, "seller_1", 10, 0)
	require.NoError(t, err)
	require.Len(t, mine, 2, "drafts are listed for their seller")
	assert.Equal(t, "evt_2", mine[0].ID)
	assert.Equal(t, int64(150000), *mine[0].MinPriceMinor)

	published, err := catalog.ListPublished(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, published, 1)

	draft.Status = model.EventPublished
	draft.Title = "Abuja Comedy Night II"
	require.NoError(t, catalog.UpdateEvent(ctx, draft))
	got, err := catalog.GetEvent(ctx, "evt_2")
	require.NoError(t, err)
	assert.Equal(t, "Abuja Comedy Night II", got.Title)
	assert.Len(t, got.TicketTypes, 1, "updates keep ticket types")

	assert.ErrorIs(t, catalog.UpdateEvent(ctx, &model.Event{ID: "evt_missing"}), model.ErrEventNotFound)

	require.NoError(t, catalog.DeleteEvent(ctx, "evt_2"))
	types, err := catalog.GetTicketTypes(ctx, []string{"tt_floor"})
	require.NoError(t, err)
	assert.Empty(t, types)
	assert.ErrorIs(t, catalog.DeleteEvent(ctx, "evt_2"), model.ErrEventNotFound)
}

func TestMemoryCatalog_DeleteEventWithSales(t *testing.T) {
	s := newSeededMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, s.Transact(ctx, func(ctx context.Context, tx Tx) error {
		_, _, err := tx.AddQuantitySold(ctx, "tt_regular", 1)
		return err
	}))

	assert.ErrorIs(t, s.Catalog().DeleteEvent(ctx, "evt_1"), model.ErrEventHasSales)
	event, err := s.Catalog().GetEvent(ctx, "evt_1")
	require.NoError(t, err)
	assert.NotNil(t, event)
}

func TestMemoryCatalog_DeleteConflictsWithInFlightSale(t *testing.T) {
	s := newSeededMemoryStore(t)
	ctx := context.Background()

	var attempts atomic.Int32
	var found bool
	err := s.Transact(ctx, func(ctx context.Context, tx Tx) error {
		n := attempts.Add(1)
		var err error
		_, found, err = tx.AddQuantitySold(ctx, "tt_regular", 1)
		if err != nil {
			return err
		}
		if n == 1 {
			require.NoError(t, s.Catalog().DeleteEvent(ctx, "evt_1"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
	assert.False(t, found, "the retried sale no longer finds the deleted ticket type")
	types, err := s.Catalog().GetTicketTypes(ctx, []string{"tt_regular"})
	require.NoError(t, err)
	assert.Empty(t, types)
}

func TestMemoryOrders_SellerViews(t *testing.T) {
	s := newSeededMemoryStore(t)
	orders := s.Orders()
	ctx := context.Background()

	paid := newPendingOrder("ord_1", "ref_1")
	paid.Status = model.OrderPaid
	require.NoError(t, orders.CreatePending(ctx, paid))

	mixed := newPendingOrder("ord_2", "ref_2")
	mixed.CreatedAt = paid.CreatedAt.Add(time.Minute)
	mixed.Items = append(mixed.Items, model.LineItem{
		EventID: "evt_9", SellerID: "seller_2", TicketTypeID: "tt_other", UnitPriceMinor: 100000, Quantity: 1, Currency: "NGN",
	})
	require.NoError(t, orders.CreatePending(ctx, mixed))

	other := newPendingOrder("ord_3", "ref_3")
	other.Items = []model.LineItem{{SellerID: "seller_2", TicketTypeID: "tt_other", UnitPriceMinor: 100000, Quantity: 1, Currency: "NGN"}}
	require.NoError(t, orders.CreatePending(ctx, other))

	listed, err := orders.ListBySeller(ctx, "seller_1", 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "ord_2", listed[0].ID, "newest first")

	sales, err := orders.SellerSales(ctx, "seller_1", "NGN")
	require.NoError(t, err)
	assert.Equal(t, int64(900000), sales, "only paid orders count")

	sales, err = orders.SellerSales(ctx, "seller_1", "GHS")
	require.NoError(t, err)
	assert.Zero(t, sales)
}

func TestMemoryPayouts(t *testing.T) {
	s := NewMemoryStore(3, zerolog.Nop())
	payouts := s.Payouts()
	ctx := context.Background()
	now := time.Now().UTC()

	first := &model.PayoutRequest{ID: "pay_1", SellerID: "seller_1", AmountMinor: 5000, Currency: "NGN", Status: model.PayoutPending, CreatedAt: now}
	require.NoError(t, payouts.Create(ctx, first))

	second := &model.PayoutRequest{ID: "pay_2", SellerID: "seller_1", AmountMinor: 700, Currency: "NGN", Status: model.PayoutPending, CreatedAt: now.Add(time.Minute)}
	assert.ErrorIs(t, payouts.Create(ctx, second), model.ErrPayoutPending)

	require.NoError(t, payouts.Resolve(ctx, "pay_1", model.PayoutRejected, now))
	assert.ErrorIs(t, payouts.Resolve(ctx, "pay_1", model.PayoutPaid, now), model.ErrInvalidPayoutState)
	assert.ErrorIs(t, payouts.Resolve(ctx, "pay_missing", model.PayoutPaid, now), model.ErrPayoutNotFound)
	assert.ErrorIs(t, payouts.Resolve(ctx, "pay_1", model.PayoutPending, now), model.ErrInvalidPayoutState)

	require.NoError(t, payouts.Create(ctx, second))
	require.NoError(t, payouts.Resolve(ctx, "pay_2", model.PayoutPaid, now))

	outstanding, err := payouts.Outstanding(ctx, "seller_1", "NGN")
	require.NoError(t, err)
	assert.Equal(t, int64(700), outstanding, "rejected requests are not outstanding")

	listed, err := payouts.ListBySeller(ctx, "seller_1", 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "pay_2", listed[0].ID)
	assert.NotNil(t, listed[0].ResolvedAt)

	got, err := payouts.Get(ctx, "pay_missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}
