package model

import (
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReference(t *testing.T) {
	now := time.UnixMilli(1735689600123)
	pattern := regexp.MustCompile(`^cadak_1735689600123_[0-9a-z]{6}$`)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		ref, err := NewReference("cadak", now)
		require.NoError(t, err)
		assert.Regexp(t, pattern, ref)
		seen[ref] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestQRPayload(t *testing.T) {
	p := QRPayload{TicketID: "t1", EventID: "e1", TicketTypeID: "tt1"}
	assert.Equal(t, `{"t":"t1","e":"e1","tt":"tt1"}`, p.Encode())

	tests := []struct {
		name    string
		raw     string
		want    QRPayload
		wantErr bool
	}{
		{name: "full payload", raw: p.Encode(), want: p},
		{name: "ticket id only", raw: ` {"t":"t9"} `, want: QRPayload{TicketID: "t9"}},
		{name: "missing ticket id", raw: `{"e":"e1"}`, wantErr: true},
		{name: "not json", raw: "t1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQRPayload(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQRPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSumItems(t *testing.T) {
	items := []LineItem{
		{UnitPriceMinor: 200000, Quantity: 2, Currency: "NGN"},
		{UnitPriceMinor: 500000, Quantity: 1, Currency: "NGN"},
	}
	assert.Equal(t, int64(900000), SumItems(items))

	order := &Order{Items: items}
	assert.Equal(t, 3, order.TicketCount())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderPending, OrderPaid, true},
		{OrderPending, OrderFailed, true},
		{OrderPending, OrderPending, false},
		{OrderFailed, OrderPaid, true},
		{OrderFailed, OrderFailed, false},
		{OrderPaid, OrderPaid, false},
		{OrderPaid, OrderFailed, false},
		{OrderRefunded, OrderPaid, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestEvent_FillMinPrice(t *testing.T) {
	e := &Event{TicketTypes: []TicketType{{PriceMinor: 500000}, {PriceMinor: 150000}, {PriceMinor: 300000}}}
	e.FillMinPrice()
	require.NotNil(t, e.MinPriceMinor)
	assert.Equal(t, int64(150000), *e.MinPriceMinor)

	empty := &Event{}
	empty.FillMinPrice()
	assert.Nil(t, empty.MinPriceMinor)

	assert.Equal(t, 0, TicketType{QuantityTotal: 5, QuantitySold: 7}.Remaining())
}

func TestReconciliationError(t *testing.T) {
	err := fmt.Errorf("confirm: %w", &ReconciliationError{OrderID: "o1", Reference: "r1", Err: ErrConflict})

	assert.ErrorIs(t, err, ErrReconciliationFailed)
	assert.ErrorIs(t, err, ErrConflict)

	var recErr *ReconciliationError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, "o1", recErr.OrderID)
	assert.Contains(t, err.Error(), "r1")
}

func TestEventPatch_Apply(t *testing.T) {
	start := time.Date(2026, 4, 10, 19, 0, 0, 0, time.UTC)
	event := Event{Title: "Old", Venue: "Eko Hotel", Status: EventDraft, StartAt: start}

	title := "  New  "
	published := EventPublished
	end := start.Add(3 * time.Hour)
	patch := EventPatch{Title: &title, Status: &published, EndAt: &end}
	patch.Apply(&event)

	assert.Equal(t, "New", event.Title)
	assert.Equal(t, "Eko Hotel", event.Venue, "unset fields are kept")
	assert.Equal(t, EventPublished, event.Status)
	require.NotNil(t, event.EndAt)
	assert.Equal(t, end, *event.EndAt)

	end = end.Add(time.Hour)
	assert.NotEqual(t, end, *event.EndAt, "the patch value is copied")
}

func TestOrder_ForSeller(t *testing.T) {
	order := Order{
		ID:     "ord_1",
		Status: OrderPaid,
		Items: []LineItem{
			{SellerID: "seller_1", UnitPriceMinor: 200000, Quantity: 2},
			{SellerID: "seller_2", UnitPriceMinor: 100000, Quantity: 1},
			{SellerID: "seller_1", UnitPriceMinor: 500000, Quantity: 1},
		},
	}

	view := order.ForSeller("seller_1")
	assert.Equal(t, "ord_1", view.ID)
	assert.Len(t, view.Items, 2)
	assert.Equal(t, int64(900000), view.TotalMinor)
	assert.Equal(t, int64(900000), order.SellerSubtotal("seller_1"))

	none := order.ForSeller("seller_3")
	assert.Empty(t, none.Items)
	assert.Zero(t, none.TotalMinor)
}
