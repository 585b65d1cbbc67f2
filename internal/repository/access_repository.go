package repository

import (
	"context"
	"fmt"

	"cadak-tickets/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type accessRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewAccessRepository creates a new PostgreSQL-backed scanner access list.
func NewAccessRepository(pool *pgxpool.Pool, logger zerolog.Logger) AccessRepository {
	return &accessRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "access").Logger(),
	}
}

// Grant adds or updates a member's role for a seller.
func (r *accessRepository) Grant(ctx context.Context, access *model.ScannerAccess) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scanner_access (seller_id, member_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (seller_id, member_id) DO UPDATE SET role = EXCLUDED.role
	`, access.SellerID, access.MemberID, string(access.Role), access.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).
			Str("seller_id", access.SellerID).
			Str("member_id", access.MemberID).
			Msg("failed to grant scanner access")
		return fmt.Errorf("failed to grant scanner access: %w", err)
	}
	return nil
}

// Revoke removes a member from a seller's list. Removing an absent member is not an error.
func (r *accessRepository) Revoke(ctx context.Context, sellerID, memberID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM scanner_access WHERE seller_id = $1 AND member_id = $2`, sellerID, memberID)
	if err != nil {
		r.logger.Error().Err(err).
			Str("seller_id", sellerID).
			Str("member_id", memberID).
			Msg("failed to revoke scanner access")
		return fmt.Errorf("failed to revoke scanner access: %w", err)
	}
	return nil
}

// List returns a seller's scanner access entries.
func (r *accessRepository) List(ctx context.Context, sellerID string) ([]model.ScannerAccess, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT seller_id, member_id, role, created_at
		FROM scanner_access
		WHERE seller_id = $1
		ORDER BY created_at, member_id
	`, sellerID)
	if err != nil {
		r.logger.Error().Err(err).Str("seller_id", sellerID).Msg("failed to query scanner access")
		return nil, fmt.Errorf("failed to query scanner access: %w", err)
	}

	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.ScannerAccess])
	if err != nil {
		return nil, fmt.Errorf("failed to scan scanner access: %w", err)
	}
	if entries == nil {
		entries = []model.ScannerAccess{}
	}
	return entries, nil
}
