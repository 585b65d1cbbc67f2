package service

import (
	"context"
	"fmt"

	"cadak-tickets/internal/model"
	"cadak-tickets/internal/repository"

	"github.com/rs/zerolog"
)

// catalogService implements CatalogService.
type catalogService struct {
	catalog repository.CatalogRepository
	logger  zerolog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(catalog repository.CatalogRepository, logger zerolog.Logger) CatalogService {
	return &catalogService{
		catalog: catalog,
		logger:  logger.With().Str("service", "catalog").Logger(),
	}
}

// ListEvents retrieves published events with pagination.
func (s *catalogService) ListEvents(ctx context.Context, limit, offset int) ([]model.Event, error) {
	limit, offset = clampPage(limit, offset)

	events, err := s.catalog.ListPublished(ctx, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to list events")
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	s.logger.Debug().
		Int("count", len(events)).
		Int("limit", limit).
		Int("offset", offset).
		Msg("retrieved events")

	return events, nil
}

// GetEvent retrieves a single event. Draft events are not visible.
func (s *catalogService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		s.logger.Warn().Msg("event ID is empty")
		return nil, model.ErrEventNotFound
	}

	event, err := s.catalog.GetEvent(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("event_id", id).Msg("failed to get event by ID")
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	if event == nil || event.Status != model.EventPublished {
		s.logger.Debug().Str("event_id", id).Msg("event not found")
		return nil, model.ErrEventNotFound
	}

	return event, nil
}
