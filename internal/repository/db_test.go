package repository

import (
	"context"
	"testing"
	"time"

	"cadak-tickets/internal/config"
	"cadak-tickets/internal/database"
	"cadak-tickets/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts a PostgreSQL container and applies the schema migrations.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := database.NewMigrator(connStr, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	pool, err := database.Connect(ctx, connStr, config.DatabaseConfig{MaxConnections: 20, MinConnections: 2}, zerolog.Nop())
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// seedCatalog inserts one published event with two ticket types.
func seedCatalog(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		INSERT INTO events (id, seller_id, title, venue, category, status, currency, start_at)
		VALUES
			('evt_1', 'seller_1', 'Lagos Jazz Night', 'Eko Hotel', 'music', 'published', 'NGN', NOW() + INTERVAL '7 days'),
			('evt_draft', 'seller_1', 'Unannounced', 'TBA', 'music', 'draft', 'NGN', NOW() + INTERVAL '30 days');

		INSERT INTO ticket_types (id, event_id, name, tier, price_minor, currency, quantity_total, quantity_sold, max_per_order)
		VALUES
			('tt_regular', 'evt_1', 'Regular', 'Regular', 200000, 'NGN', 100, 0, 10),
			('tt_vip', 'evt_1', 'VIP', 'VIP', 500000, 'NGN', 2, 0, 2);
	`)
	require.NoError(t, err)
}

func strPtr(s string) *string { return &s }

func newPendingOrder(id, reference string) *model.Order {
	return &model.Order{
		ID:         id,
		Reference:  reference,
		BuyerID:    strPtr("buyer_1"),
		BuyerEmail: "ada@example.com",
		Items: []model.LineItem{
			{EventID: "evt_1", SellerID: "seller_1", TicketTypeID: "tt_regular", Name: "Regular", UnitPriceMinor: 200000, Quantity: 2, Currency: "NGN"},
			{EventID: "evt_1", SellerID: "seller_1", TicketTypeID: "tt_vip", Name: "VIP", UnitPriceMinor: 500000, Quantity: 1, Currency: "NGN"},
		},
		Currency:   "NGN",
		TotalMinor: 900000,
		Status:     model.OrderPending,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func newTicket(id string, order *model.Order, line, unit int) model.Ticket {
	item := order.Items[line]
	return model.Ticket{
		ID:             id,
		OrderID:        order.ID,
		OrderReference: order.Reference,
		BuyerID:        order.BuyerID,
		BuyerEmail:     order.BuyerEmail,
		SellerID:       item.SellerID,
		EventID:        item.EventID,
		TicketTypeID:   item.TicketTypeID,
		TypeName:       item.Name,
		Status:         model.TicketUnused,
		IssuedAt:       time.Now().UTC().Truncate(time.Microsecond),
		QRPayload:      model.QRPayload{TicketID: id, EventID: item.EventID, TicketTypeID: item.TicketTypeID}.Encode(),
		LineIndex:      line,
		UnitIndex:      unit,
	}
}
