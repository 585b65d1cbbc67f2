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

// sellerService implements SellerService.
type sellerService struct {
	catalog  repository.CatalogRepository
	orders   repository.OrderStore
	currency string
	newID    func() string
	now      func() time.Time
	logger   zerolog.Logger
}

// NewSellerService creates a new seller service. Events are priced in the
// gateway's configured currency.
func NewSellerService(
	catalog repository.CatalogRepository,
	orders repository.OrderStore,
	cfg config.PaymentConfig,
	logger zerolog.Logger,
) SellerService {
	return &sellerService{
		catalog:  catalog,
		orders:   orders,
		currency: strings.ToUpper(cfg.Currency),
		newID:    uuid.NewString,
		now:      time.Now,
		logger:   logger.With().Str("service", "seller").Logger(),
	}
}

// CreateEvent validates the request, assigns IDs and stores the event with
// its ticket types.
func (s *sellerService) CreateEvent(ctx context.Context, sellerID string, req *model.EventRequest) (*model.Event, error) {
	if sellerID == "" {
		return nil, model.ErrNotEventOwner
	}
	if req == nil {
		return nil, model.ErrInvalidEvent
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.currency
	}
	if currency != s.currency {
		return nil, model.ErrUnsupportedCurrency
	}

	status := req.Status
	if status == "" {
		status = model.EventDraft
	}

	event := &model.Event{
		ID:          s.newID(),
		SellerID:    sellerID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Venue:       req.Venue,
		City:        req.City,
		Category:    req.Category,
		Status:      status,
		Currency:    currency,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		CreatedAt:   s.now().UTC(),
	}
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	if len(req.TicketTypes) == 0 {
		return nil, model.ErrInvalidTicketType
	}
	for _, in := range req.TicketTypes {
		name := strings.TrimSpace(in.Name)
		if name == "" || in.PriceMinor < 0 || in.QuantityTotal <= 0 || in.MaxPerOrder < 0 {
			return nil, model.ErrInvalidTicketType
		}
		event.TicketTypes = append(event.TicketTypes, model.TicketType{
			ID:            s.newID(),
			EventID:       event.ID,
			Name:          name,
			Tier:          in.Tier,
			PriceMinor:    in.PriceMinor,
			Currency:      currency,
			QuantityTotal: in.QuantityTotal,
			MaxPerOrder:   in.MaxPerOrder,
		})
	}
	event.FillMinPrice()

	if err := s.catalog.CreateEvent(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("seller_id", sellerID).Msg("failed to create event")
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.logger.Info().
		Str("event_id", event.ID).
		Str("seller_id", sellerID).
		Int("ticket_types", len(event.TicketTypes)).
		Msg("event created")

	return event, nil
}

// UpdateEvent applies a patch to the seller's event. Ticket types keep their
// prices and allocations.
func (s *sellerService) UpdateEvent(ctx context.Context, sellerID, eventID string, patch *model.EventPatch) (*model.Event, error) {
	event, err := s.ownedEvent(ctx, sellerID, eventID)
	if err != nil {
		return nil, err
	}
	if patch == nil {
		return event, nil
	}

	patch.Apply(event)
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	if err := s.catalog.UpdateEvent(ctx, event); err != nil {
		if errors.Is(err, model.ErrEventNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("event_id", eventID).Msg("failed to update event")
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	event.FillMinPrice()

	s.logger.Info().Str("event_id", eventID).Str("seller_id", sellerID).Msg("event updated")
	return event, nil
}

// DeleteEvent removes the seller's event once it is confirmed unsold.
func (s *sellerService) DeleteEvent(ctx context.Context, sellerID, eventID string) error {
	if _, err := s.ownedEvent(ctx, sellerID, eventID); err != nil {
		return err
	}

	if err := s.catalog.DeleteEvent(ctx, eventID); err != nil {
		var domainErr *model.DomainError
		if errors.As(err, &domainErr) {
			return err
		}
		s.logger.Error().Err(err).Str("event_id", eventID).Msg("failed to delete event")
		return fmt.Errorf("failed to delete event: %w", err)
	}

	s.logger.Info().Str("event_id", eventID).Str("seller_id", sellerID).Msg("event deleted")
	return nil
}

// ListEvents returns the seller's events, drafts included.
func (s *sellerService) ListEvents(ctx context.Context, sellerID string, limit, offset int) ([]model.Event, error) {
	if sellerID == "" {
		return nil, model.ErrNotEventOwner
	}
	limit, offset = clampPage(limit, offset)

	events, err := s.catalog.ListBySeller(ctx, sellerID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("seller_id", sellerID).Msg("failed to list seller events")
		return nil, fmt.Errorf("failed to list seller events: %w", err)
	}
	return events, nil
}

// ListOrders returns the seller's view of orders that include their tickets.
func (s *sellerService) ListOrders(ctx context.Context, sellerID string, limit, offset int) ([]model.SellerOrder, error) {
	if sellerID == "" {
		return nil, model.ErrNotEventOwner
	}
	limit, offset = clampPage(limit, offset)

	orders, err := s.orders.ListBySeller(ctx, sellerID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("seller_id", sellerID).Msg("failed to list seller orders")
		return nil, fmt.Errorf("failed to list seller orders: %w", err)
	}

	out := make([]model.SellerOrder, len(orders))
	for i := range orders {
		out[i] = orders[i].ForSeller(sellerID)
	}
	return out, nil
}

func (s *sellerService) ownedEvent(ctx context.Context, sellerID, eventID string) (*model.Event, error) {
	if sellerID == "" {
		return nil, model.ErrNotEventOwner
	}
	if eventID == "" {
		return nil, model.ErrEventNotFound
	}

	event, err := s.catalog.GetEvent(ctx, eventID)
	if err != nil {
		s.logger.Error().Err(err).Str("event_id", eventID).Msg("failed to get event")
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, model.ErrEventNotFound
	}
	if event.SellerID != sellerID {
		s.logger.Warn().
			Str("event_id", eventID).
			Str("seller_id", sellerID).
			Msg("seller does not own event")
		return nil, model.ErrNotEventOwner
	}
	return event, nil
}

func validateEvent(e *model.Event) error {
	if e.Title == "" || e.StartAt.IsZero() || !e.Status.Valid() {
		return model.ErrInvalidEvent
	}
	if e.EndAt != nil && e.EndAt.Before(e.StartAt) {
		return model.ErrInvalidEvent
	}
	return nil
}
