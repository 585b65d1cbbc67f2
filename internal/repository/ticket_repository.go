package repository

import (
	"context"
	"errors"
	"fmt"

	"cadak-tickets/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ticketRepository implements the TicketStore interface using PostgreSQL.
type ticketRepository struct {
	*pgTransactor
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewTicketRepository creates a new PostgreSQL-backed ticket store.
func NewTicketRepository(pool *pgxpool.Pool, txMaxRetries int, logger zerolog.Logger) TicketStore {
	logger = logger.With().Str("repository", "ticket").Logger()
	return &ticketRepository{
		pgTransactor: newPgTransactor(pool, txMaxRetries, logger),
		pool:         pool,
		logger:       logger,
	}
}

// GetByID retrieves a single ticket.
func (r *ticketRepository) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("ticket_id", id).Msg("failed to query ticket")
		return nil, fmt.Errorf("failed to query ticket: %w", err)
	}

	ticket, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Ticket])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("ticket_id", id).Msg("ticket not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("ticket_id", id).Msg("failed to scan ticket")
		return nil, fmt.Errorf("failed to scan ticket: %w", err)
	}

	return ticket, nil
}

// ListByOrder returns an order's tickets in issue order.
func (r *ticketRepository) ListByOrder(ctx context.Context, orderID string) ([]model.Ticket, error) {
	return r.list(ctx, "order_id", orderID, `ORDER BY line_index, unit_index`, 0, 0)
}

// ListByBuyer returns a buyer's tickets, newest first.
func (r *ticketRepository) ListByBuyer(ctx context.Context, buyerID string, limit, offset int) ([]model.Ticket, error) {
	return r.list(ctx, "buyer_id", buyerID, `ORDER BY issued_at DESC, id`, limit, offset)
}

// ListBySeller returns tickets issued for a seller's events, newest first.
func (r *ticketRepository) ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]model.Ticket, error) {
	return r.list(ctx, "seller_id", sellerID, `ORDER BY issued_at DESC, id`, limit, offset)
}

// list runs a single-column filter. column is always a constant from this file.
func (r *ticketRepository) list(ctx context.Context, column, value, orderBy string, limit, offset int) ([]model.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ` + column + ` = $1 ` + orderBy
	args := []any{value}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Str(column, value).Msg("failed to query tickets")
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}

	tickets, err := collectTickets(rows)
	if err != nil {
		r.logger.Error().Err(err).Str(column, value).Msg("failed to scan ticket rows")
		return nil, fmt.Errorf("failed to scan tickets: %w", err)
	}

	return tickets, nil
}
