package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cadak-tickets/internal/config"
	"cadak-tickets/internal/model"
	"cadak-tickets/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// payoutService implements PayoutService.
type payoutService struct {
	orders   repository.OrderStore
	payouts  repository.PayoutRepository
	currency string
	feeBPS   int64
	newID    func() string
	now      func() time.Time
	logger   zerolog.Logger
}

// NewPayoutService creates a new payout service. The platform keeps
// payoutCfg.FeeBasisPoints of every sale.
func NewPayoutService(
	orders repository.OrderStore,
	payouts repository.PayoutRepository,
	paymentCfg config.PaymentConfig,
	payoutCfg config.PayoutConfig,
	logger zerolog.Logger,
) PayoutService {
	return &payoutService{
		orders:   orders,
		payouts:  payouts,
		currency: strings.ToUpper(paymentCfg.Currency),
		feeBPS:   int64(payoutCfg.FeeBasisPoints),
		newID:    uuid.NewString,
		now:      time.Now,
		logger:   logger.With().Str("service", "payout").Logger(),
	}
}

// Balance is paid sales, less the platform fee, less every request that was
// not rejected.
func (s *payoutService) Balance(ctx context.Context, sellerID string) (*model.PayoutBalance, error) {
	if sellerID == "" {
		return nil, model.ErrNotEventOwner
	}

	sales, err := s.orders.SellerSales(ctx, sellerID, s.currency)
	if err != nil {
		s.logger.Error().Err(err).Str("seller_id", sellerID).Msg("failed to sum seller sales")
		return nil, fmt.Errorf("failed to compute balance: %w", err)
	}
	requested, err := s.payouts.Outstanding(ctx, sellerID, s.currency)
	if err != nil {
		s.logger.Error().Err(err).Str("seller_id", sellerID).Msg("failed to sum payout requests")
		return nil, fmt.Errorf("failed to compute balance: %w", err)
	}

	fee := sales * s.feeBPS / 10000
	return &model.PayoutBalance{
		Currency:       s.currency,
		SalesMinor:     sales,
		FeeMinor:       fee,
		RequestedMinor: requested,
		AvailableMinor: max(sales-fee-requested, 0),
	}, nil
}

// RequestPayout files a pending request for the whole available balance.
func (s *payoutService) RequestPayout(ctx context.Context, sellerID string) (*model.PayoutRequest, error) {
	balance, err := s.Balance(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if balance.AvailableMinor <= 0 {
		return nil, model.ErrNothingToPayout
	}

	payout := &model.PayoutRequest{
		ID:          s.newID(),
		SellerID:    sellerID,
		AmountMinor: balance.AvailableMinor,
		Currency:    balance.Currency,
		Status:      model.PayoutPending,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.payouts.Create(ctx, payout); err != nil {
		if errors.Is(err, model.ErrPayoutPending) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("seller_id", sellerID).Msg("failed to create payout request")
		return nil, fmt.Errorf("failed to request payout: %w", err)
	}

	s.logger.Info().
		Str("payout_id", payout.ID).
		Str("seller_id", sellerID).
		Int64("amount_minor", payout.AmountMinor).
		Msg("payout requested")

	return payout, nil
}

// ListPayouts returns the seller's payout history.
func (s *payoutService) ListPayouts(ctx context.Context, sellerID string, limit, offset int) ([]model.PayoutRequest, error) {
	if sellerID == "" {
		return nil, model.ErrNotEventOwner
	}
	limit, offset = clampPage(limit, offset)

	payouts, err := s.payouts.ListBySeller(ctx, sellerID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("seller_id", sellerID).Msg("failed to list payout requests")
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	return payouts, nil
}

// ResolvePayout closes a pending request. Rejected amounts return to the
// seller's available balance.
func (s *payoutService) ResolvePayout(ctx context.Context, payoutID string, status model.PayoutStatus) (*model.PayoutRequest, error) {
	if payoutID == "" {
		return nil, model.ErrPayoutNotFound
	}

	if err := s.payouts.Resolve(ctx, payoutID, status, s.now().UTC()); err != nil {
		var domainErr *model.DomainError
		if errors.As(err, &domainErr) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("payout_id", payoutID).Msg("failed to resolve payout")
		return nil, fmt.Errorf("failed to resolve payout: %w", err)
	}

	payout, err := s.payouts.Get(ctx, payoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payout: %w", err)
	}
	if payout == nil {
		return nil, model.ErrPayoutNotFound
	}

	s.logger.Info().
		Str("payout_id", payoutID).
		Str("status", string(status)).
		Msg("payout resolved")

	return payout, nil
}
