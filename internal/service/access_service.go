package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cadak-tickets/internal/model"
	"cadak-tickets/internal/repository"

	"github.com/rs/zerolog"
)

var errMissingMemberID = model.NewDomainError(model.KindValidation, model.ErrCodeMissingField, "memberId is required")

// accessService implements AccessService.
type accessService struct {
	access repository.AccessRepository
	now    func() time.Time
	logger zerolog.Logger
}

// NewAccessService creates a new scanner access service.
func NewAccessService(access repository.AccessRepository, logger zerolog.Logger) AccessService {
	return &accessService{
		access: access,
		now:    time.Now,
		logger: logger.With().Str("service", "access").Logger(),
	}
}

// Grant lets a member scan the seller's tickets. Granting again updates the role.
func (s *accessService) Grant(ctx context.Context, sellerID string, req *model.ScannerAccessRequest) (*model.ScannerAccess, error) {
	if sellerID == "" {
		return nil, model.ErrNotAuthorized
	}
	if req == nil || strings.TrimSpace(req.MemberID) == "" {
		return nil, errMissingMemberID
	}

	role := req.Role
	if role == "" {
		role = model.RoleScanner
	}
	if !role.Valid() {
		return nil, model.ErrInvalidScannerRole
	}

	access := &model.ScannerAccess{
		SellerID:  sellerID,
		MemberID:  strings.TrimSpace(req.MemberID),
		Role:      role,
		CreatedAt: s.now().UTC(),
	}
	if err := s.access.Grant(ctx, access); err != nil {
		s.logger.Error().Err(err).Str("seller_id", sellerID).Msg("failed to grant scanner access")
		return nil, fmt.Errorf("failed to grant scanner access: %w", err)
	}

	s.logger.Info().
		Str("seller_id", sellerID).
		Str("member_id", access.MemberID).
		Str("role", string(role)).
		Msg("scanner access granted")

	return access, nil
}

// Revoke removes a member's scan permission. Revoking an absent grant is a no-op.
func (s *accessService) Revoke(ctx context.Context, sellerID, memberID string) error {
	if sellerID == "" {
		return model.ErrNotAuthorized
	}
	if memberID == "" {
		return errMissingMemberID
	}

	if err := s.access.Revoke(ctx, sellerID, memberID); err != nil {
		s.logger.Error().Err(err).Str("seller_id", sellerID).Msg("failed to revoke scanner access")
		return fmt.Errorf("failed to revoke scanner access: %w", err)
	}

	s.logger.Info().Str("seller_id", sellerID).Str("member_id", memberID).Msg("scanner access revoked")
	return nil
}

// List returns the seller's scanner grants.
func (s *accessService) List(ctx context.Context, sellerID string) ([]model.ScannerAccess, error) {
	if sellerID == "" {
		return nil, model.ErrNotAuthorized
	}

	grants, err := s.access.List(ctx, sellerID)
	if err != nil {
		s.logger.Error().Err(err).Str("seller_id", sellerID).Msg("failed to list scanner access")
		return nil, fmt.Errorf("failed to list scanner access: %w", err)
	}
	return grants, nil
}
