package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cadak-tickets/internal/config"
	"cadak-tickets/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB starts a PostgreSQL container, applies the schema migrations
// and opens a connection pool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	// Create PostgreSQL container
	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	// Get connection string
	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	logger := zerolog.Nop()

	migrator, err := database.NewMigrator(connStr, logger)
	if err != nil {
		t.Fatalf("failed to open migrator: %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	if err := migrator.Close(); err != nil {
		t.Logf("failed to close migrator: %v", err)
	}

	pool, err := database.Connect(ctx, connStr, config.DatabaseConfig{
		MaxConnections:  20,
		MinConnections:  2,
		MaxConnLifetime: 300,
	}, logger)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// SeedCatalog inserts a published event with two ticket types, and a draft
// event, owned by seller_1.
func SeedCatalog(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()
	startAt := time.Now().Add(7 * 24 * time.Hour).UTC()

	events := []struct {
		id, title, status string
		startAt           time.Time
	}{
		{"evt_1", "Lagos Jazz Night", "published", startAt},
		{"evt_draft", "Unannounced", "draft", startAt.Add(30 * 24 * time.Hour)},
	}
	for _, e := range events {
		_, err := pool.Exec(ctx, `
			INSERT INTO events (id, seller_id, title, venue, city, category, status, currency, start_at)
			VALUES ($1, 'seller_1', $2, 'Muri Okunola Park', 'Lagos', 'music', $3, 'NGN', $4)
		`, e.id, e.title, e.status, e.startAt)
		if err != nil {
			t.Fatalf("failed to seed event %s: %v", e.id, err)
		}
	}

	types := []struct {
		id, eventID, name string
		price             int64
		total, maxPer     int
	}{
		{"tt_regular", "evt_1", "Regular", 200000, 100, 10},
		{"tt_vip", "evt_1", "VIP", 500000, 2, 2},
		{"tt_draft", "evt_draft", "Early", 100000, 10, 0},
	}
	for _, tt := range types {
		_, err := pool.Exec(ctx, `
			INSERT INTO ticket_types (id, event_id, name, price_minor, currency, quantity_total, max_per_order)
			VALUES ($1, $2, $3, $4, 'NGN', $5, $6)
		`, tt.id, tt.eventID, tt.name, tt.price, tt.total, tt.maxPer)
		if err != nil {
			t.Fatalf("failed to seed ticket type %s: %v", tt.id, err)
		}
	}
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{"scans", "tickets", "orders", "scanner_access", "ticket_types", "events"}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}
