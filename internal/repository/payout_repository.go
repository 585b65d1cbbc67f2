package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cadak-tickets/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type payoutRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPayoutRepository creates a new PostgreSQL-backed payout request store.
func NewPayoutRepository(pool *pgxpool.Pool, logger zerolog.Logger) PayoutRepository {
	return &payoutRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "payout").Logger(),
	}
}

const payoutColumns = `id, seller_id, amount_minor, currency, status, created_at, resolved_at`

// Create inserts a pending request. The partial unique index on pending
// requests turns a second one into a unique violation.
func (r *payoutRepository) Create(ctx context.Context, payout *model.PayoutRequest) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payout_requests (`+payoutColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, payout.ID, payout.SellerID, payout.AmountMinor, payout.Currency, string(payout.Status),
		payout.CreatedAt, payout.ResolvedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.ErrPayoutPending
		}
		r.logger.Error().Err(err).
			Str("payout_id", payout.ID).
			Str("seller_id", payout.SellerID).
			Msg("failed to create payout request")
		return fmt.Errorf("failed to create payout request: %w", err)
	}
	return nil
}

// Get retrieves a payout request by ID.
func (r *payoutRepository) Get(ctx context.Context, id string) (*model.PayoutRequest, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("payout_id", id).Msg("failed to query payout request")
		return nil, fmt.Errorf("failed to query payout request: %w", err)
	}
	payout, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.PayoutRequest])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan payout request: %w", err)
	}
	return payout, nil
}

// ListBySeller returns a seller's payout requests, newest first.
func (r *payoutRepository) ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]model.PayoutRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+payoutColumns+`
		FROM payout_requests
		WHERE seller_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, sellerID, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).Str("seller_id", sellerID).Msg("failed to query payout requests")
		return nil, fmt.Errorf("failed to query payout requests: %w", err)
	}

	payouts, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.PayoutRequest])
	if err != nil {
		return nil, fmt.Errorf("failed to scan payout requests: %w", err)
	}
	if payouts == nil {
		payouts = []model.PayoutRequest{}
	}
	return payouts, nil
}

// Outstanding sums pending and paid requests; rejected ones free their amount again.
func (r *payoutRepository) Outstanding(ctx context.Context, sellerID, currency string) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_minor), 0)::bigint
		FROM payout_requests
		WHERE seller_id = $1 AND currency = $2 AND status <> 'rejected'
	`, sellerID, currency).Scan(&total)
	if err != nil {
		r.logger.Error().Err(err).Str("seller_id", sellerID).Msg("failed to sum payout requests")
		return 0, fmt.Errorf("failed to sum payout requests: %w", err)
	}
	return total, nil
}

// Resolve closes a pending request.
func (r *payoutRepository) Resolve(ctx context.Context, id string, status model.PayoutStatus, at time.Time) error {
	if status != model.PayoutPaid && status != model.PayoutRejected {
		return model.ErrInvalidPayoutState
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE payout_requests SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'pending'
	`, id, string(status), at)
	if err != nil {
		r.logger.Error().Err(err).Str("payout_id", id).Msg("failed to resolve payout request")
		return fmt.Errorf("failed to resolve payout request: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	existing, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return model.ErrPayoutNotFound
	}
	return model.ErrInvalidPayoutState
}
