package repository

import (
	"context"
	"fmt"

	"cadak-tickets/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// orderRepository implements the OrderStore interface using PostgreSQL.
type orderRepository struct {
	*pgTransactor
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order store.
func NewOrderRepository(pool *pgxpool.Pool, txMaxRetries int, logger zerolog.Logger) OrderStore {
	logger = logger.With().Str("repository", "order").Logger()
	return &orderRepository{
		pgTransactor: newPgTransactor(pool, txMaxRetries, logger),
		pool:         pool,
		logger:       logger,
	}
}

// CreatePending inserts a new pending order.
func (r *orderRepository) CreatePending(ctx context.Context, order *model.Order) error {
	if err := insertOrder(ctx, r.pool, order); err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID).
			Str("reference", order.Reference).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID).
		Str("reference", order.Reference).
		Msg("pending order created")

	return nil
}

// GetByReference retrieves an order by its gateway reference.
func (r *orderRepository) GetByReference(ctx context.Context, reference string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE reference = $1`, reference)
	order, err := scanOrder(row)
	if err != nil {
		r.logger.Error().Err(err).Str("reference", reference).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	if order == nil {
		r.logger.Debug().Str("reference", reference).Msg("order not found")
	}
	return order, nil
}

// GetByID retrieves an order by its ID.
func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	return order, nil
}

// ListBySeller returns orders containing the seller's items, newest first.
// The containment test is served by the GIN index on items.
func (r *orderRepository) ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE items @> jsonb_build_array(jsonb_build_object('sellerId', $1::text))
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, sellerID, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).Str("seller_id", sellerID).Msg("failed to query seller orders")
		return nil, fmt.Errorf("failed to query seller orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return orders, nil
}

// SellerSales sums the seller's line item subtotals over paid orders.
func (r *orderRepository) SellerSales(ctx context.Context, sellerID, currency string) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM((item->>'unitPriceMinor')::bigint * (item->>'quantity')::bigint), 0)::bigint
		FROM orders, jsonb_array_elements(orders.items) AS item
		WHERE orders.status = 'paid'
		  AND orders.currency = $2
		  AND item->>'sellerId' = $1
	`, sellerID, currency).Scan(&total)
	if err != nil {
		r.logger.Error().Err(err).Str("seller_id", sellerID).Msg("failed to sum seller sales")
		return 0, fmt.Errorf("failed to sum seller sales: %w", err)
	}
	return total, nil
}
