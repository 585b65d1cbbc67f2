package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cadak-tickets/internal/config"
	"cadak-tickets/internal/model"
	"cadak-tickets/internal/payment"
	"cadak-tickets/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// checkoutService implements CheckoutService.
type checkoutService struct {
	orders    repository.OrderStore
	catalog   repository.CatalogRepository
	gateway   payment.Gateway
	currency  string
	refPrefix string
	now       func() time.Time
	logger    zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	orders repository.OrderStore,
	catalog repository.CatalogRepository,
	gateway payment.Gateway,
	cfg config.PaymentConfig,
	logger zerolog.Logger,
) CheckoutService {
	return &checkoutService{
		orders:    orders,
		catalog:   catalog,
		gateway:   gateway,
		currency:  strings.ToUpper(cfg.Currency),
		refPrefix: cfg.ReferencePrefix,
		now:       time.Now,
		logger:    logger.With().Str("service", "checkout").Logger(),
	}
}

// CreatePendingOrder validates the cart against the catalog and persists a
// pending order under a fresh payment reference. Persistence is best effort:
// a failed write is logged and the reference is still returned so payment
// can proceed and be reconciled from gateway metadata.
func (s *checkoutService) CreatePendingOrder(ctx context.Context, req *model.CheckoutRequest) (*model.PendingOrder, error) {
	currency, err := s.validateCart(req)
	if err != nil {
		return nil, err
	}

	items, err := s.resolveItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	total := model.SumItems(items)
	if total <= 0 {
		return nil, model.ErrInvalidAmount
	}

	now := s.now().UTC()
	reference, err := model.NewReference(s.refPrefix, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to generate payment reference")
		return nil, fmt.Errorf("failed to generate reference: %w", err)
	}

	order := &model.Order{
		ID:         uuid.NewString(),
		Reference:  reference,
		BuyerID:    req.BuyerID,
		BuyerEmail: strings.TrimSpace(req.BuyerEmail),
		Items:      items,
		Currency:   currency,
		TotalMinor: total,
		Status:     model.OrderPending,
		CreatedAt:  now,
	}

	pending := &model.PendingOrder{
		Reference:  reference,
		Currency:   currency,
		TotalMinor: total,
		Items:      items,
	}

	if err := s.orders.CreatePending(ctx, order); err != nil {
		s.logger.Error().
			Err(err).
			Str("reference", reference).
			Int64("total_minor", total).
			Msg("failed to persist pending order, continuing with gateway metadata only")
		return pending, nil
	}

	pending.OrderID = order.ID
	pending.Persisted = true

	s.logger.Info().
		Str("order_id", order.ID).
		Str("reference", reference).
		Int("ticket_count", order.TicketCount()).
		Int64("total_minor", total).
		Msg("pending order created")

	return pending, nil
}

// Checkout creates the pending order and starts a payment session for it.
func (s *checkoutService) Checkout(ctx context.Context, req *model.CheckoutRequest, callbackURL string) (*model.CheckoutResponse, error) {
	pending, err := s.CreatePendingOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.InitSession(ctx, payment.SessionRequest{
		AmountMinor: pending.TotalMinor,
		Currency:    pending.Currency,
		Email:       strings.TrimSpace(req.BuyerEmail),
		Reference:   pending.Reference,
		CallbackURL: callbackURL,
		Metadata: payment.Metadata{
			BuyerID:   req.BuyerID,
			CartItems: pending.Items,
		},
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("reference", pending.Reference).
			Msg("failed to start payment session")
		return nil, err
	}

	return &model.CheckoutResponse{
		AuthorizationURL: session.AuthorizationURL,
		Reference:        pending.Reference,
		OrderID:          pending.OrderID,
	}, nil
}

// validateCart checks the request shape and returns the cart currency.
// Mixed currencies are reported before an unsupported one.
func (s *checkoutService) validateCart(req *model.CheckoutRequest) (string, error) {
	if req == nil || len(req.Items) == 0 {
		return "", model.ErrEmptyCart
	}

	if strings.TrimSpace(req.BuyerEmail) == "" {
		return "", model.ErrMissingBuyerEmail
	}

	for i, item := range req.Items {
		if item.Quantity <= 0 {
			s.logger.Warn().
				Int("item_index", i).
				Str("ticket_type_id", item.TicketTypeID).
				Int("quantity", item.Quantity).
				Msg("invalid quantity")
			return "", model.ErrInvalidQuantity
		}
	}

	currency := strings.ToUpper(req.Items[0].Currency)
	for _, item := range req.Items[1:] {
		if strings.ToUpper(item.Currency) != currency {
			return "", model.ErrCurrencyMismatch
		}
	}

	if currency != s.currency {
		s.logger.Warn().Str("currency", currency).Msg("unsupported currency")
		return "", model.ErrUnsupportedCurrency
	}

	return currency, nil
}

// resolveItems checks every line against the catalog and returns copies with
// the event title, seller and type name filled in.
func (s *checkoutService) resolveItems(ctx context.Context, items []model.LineItem) ([]model.LineItem, error) {
	ids := make([]string, 0, len(items))
	requested := make(map[string]int, len(items))
	for _, item := range items {
		if _, seen := requested[item.TicketTypeID]; !seen {
			ids = append(ids, item.TicketTypeID)
		}
		requested[item.TicketTypeID] += item.Quantity
	}

	types, err := s.catalog.GetTicketTypes(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to load ticket types")
		return nil, fmt.Errorf("failed to load ticket types: %w", err)
	}
	byID := make(map[string]model.TicketType, len(types))
	for _, tt := range types {
		byID[tt.ID] = tt
	}

	for id, qty := range requested {
		tt, ok := byID[id]
		if !ok {
			s.logger.Warn().Str("ticket_type_id", id).Msg("ticket type not found")
			return nil, model.ErrTicketTypeNotFound
		}
		if tt.MaxPerOrder > 0 && qty > tt.MaxPerOrder {
			return nil, model.ErrMaxPerOrderExceeded
		}
		if qty > tt.Remaining() {
			s.logger.Warn().
				Str("ticket_type_id", id).
				Int("requested", qty).
				Int("remaining", tt.Remaining()).
				Msg("insufficient inventory")
			return nil, model.ErrInsufficientInventory
		}
	}

	events := make(map[string]*model.Event)
	resolved := make([]model.LineItem, len(items))
	for i, item := range items {
		tt := byID[item.TicketTypeID]
		if item.EventID != "" && item.EventID != tt.EventID {
			return nil, model.ErrTicketTypeNotFound
		}
		if item.UnitPriceMinor != tt.PriceMinor {
			s.logger.Warn().
				Str("ticket_type_id", tt.ID).
				Int64("client_price", item.UnitPriceMinor).
				Int64("catalog_price", tt.PriceMinor).
				Msg("price mismatch")
			return nil, model.ErrPriceMismatch
		}
		if !strings.EqualFold(item.Currency, tt.Currency) {
			return nil, model.ErrCurrencyMismatch
		}

		event, ok := events[tt.EventID]
		if !ok {
			event, err = s.catalog.GetEvent(ctx, tt.EventID)
			if err != nil {
				return nil, fmt.Errorf("failed to load event: %w", err)
			}
			if event == nil || event.Status != model.EventPublished {
				return nil, model.ErrEventNotFound
			}
			events[tt.EventID] = event
		}

		resolved[i] = model.LineItem{
			EventID:        tt.EventID,
			EventTitle:     event.Title,
			SellerID:       event.SellerID,
			TicketTypeID:   tt.ID,
			Name:           tt.Name,
			UnitPriceMinor: tt.PriceMinor,
			Quantity:       item.Quantity,
			Currency:       strings.ToUpper(tt.Currency),
		}
	}

	return resolved, nil
}
