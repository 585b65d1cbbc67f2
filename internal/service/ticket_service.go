package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cadak-tickets/internal/events"
	"cadak-tickets/internal/model"
	"cadak-tickets/internal/repository"
	"cadak-tickets/internal/telemetry"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// ticketService implements TicketService.
type ticketService struct {
	tickets   repository.TicketStore
	publisher events.Publisher
	newID     func() string
	now       func() time.Time
	logger    zerolog.Logger
}

// NewTicketService creates a new ticket service.
func NewTicketService(tickets repository.TicketStore, publisher events.Publisher, logger zerolog.Logger) TicketService {
	return &ticketService{
		tickets:   tickets,
		publisher: publisher,
		newID:     uuid.NewString,
		now:       time.Now,
		logger:    logger.With().Str("service", "ticket").Logger(),
	}
}

// CheckIn redeems a ticket. The first successful scan of an unused ticket
// returns valid and records a scan; every later scan returns already_used
// without touching the ticket.
func (s *ticketService) CheckIn(ctx context.Context, ticketID, scannerID string) (*model.CheckInResult, error) {
	ctx, span := tracer.Start(ctx, "checkin")
	defer span.End()
	span.SetAttributes(attribute.String("ticket.id", ticketID))

	if ticketID == "" {
		return nil, model.ErrTicketNotFound
	}
	if scannerID == "" {
		return nil, model.ErrNotAuthorized
	}

	var (
		result *model.CheckInResult
		scan   *model.Scan
	)
	err := s.tickets.Transact(ctx, func(ctx context.Context, tx repository.Tx) error {
		result, scan = nil, nil

		ticket, err := tx.GetTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return model.ErrTicketNotFound
		}

		if ticket.SellerID != scannerID {
			allowed, err := tx.HasScannerAccess(ctx, ticket.SellerID, scannerID)
			if err != nil {
				return err
			}
			if !allowed {
				return model.ErrNotAuthorized
			}
		}

		switch ticket.Status {
		case model.TicketCheckedIn:
			result = &model.CheckInResult{Result: model.CheckInAlreadyUsed, Ticket: *ticket}
			return nil
		case model.TicketUnused:
		default:
			return model.ErrTicketInvalid
		}

		scannedAt := s.now().UTC()
		if err := tx.MarkCheckedIn(ctx, ticket.ID, scannedAt); err != nil {
			return err
		}
		scan = &model.Scan{
			ID:        s.newID(),
			TicketID:  ticket.ID,
			ScannerID: scannerID,
			EventID:   ticket.EventID,
			ScannedAt: scannedAt,
		}
		if err := tx.InsertScan(ctx, scan); err != nil {
			return err
		}

		ticket.Status = model.TicketCheckedIn
		ticket.ScannedAt = &scannedAt
		result = &model.CheckInResult{Result: model.CheckInValid, Ticket: *ticket}
		return nil
	})

	if err != nil {
		telemetry.RecordCheckIn(checkInFailure(err))
		s.logger.Warn().
			Err(err).
			Str("ticket_id", ticketID).
			Str("scanner_id", scannerID).
			Msg("check-in rejected")
		return nil, err
	}

	telemetry.RecordCheckIn(string(result.Result))
	span.SetAttributes(attribute.String("checkin.result", string(result.Result)))

	if scan != nil {
		s.logger.Info().
			Str("ticket_id", ticketID).
			Str("scanner_id", scannerID).
			Str("event_id", scan.EventID).
			Msg("ticket checked in")

		err := s.publisher.PublishTicketCheckedIn(ctx, events.TicketCheckedIn{
			TicketID:  scan.TicketID,
			EventID:   scan.EventID,
			SellerID:  result.Ticket.SellerID,
			ScannerID: scannerID,
			ScannedAt: scan.ScannedAt,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("ticket_id", ticketID).Msg("failed to publish check-in event")
		}
	}

	return result, nil
}

func checkInFailure(err error) string {
	switch {
	case errors.Is(err, model.ErrTicketNotFound):
		return "not_found"
	case errors.Is(err, model.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, model.ErrTicketInvalid):
		return "invalid"
	default:
		return "error"
	}
}

// Get retrieves a ticket for its buyer or seller.
func (s *ticketService) Get(ctx context.Context, ticketID, viewerID string) (*model.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		s.logger.Error().Err(err).Str("ticket_id", ticketID).Msg("failed to get ticket")
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if ticket == nil {
		return nil, model.ErrTicketNotFound
	}

	isBuyer := ticket.BuyerID != nil && *ticket.BuyerID == viewerID
	if viewerID == "" || (!isBuyer && ticket.SellerID != viewerID) {
		return nil, model.ErrNotAuthorized
	}
	return ticket, nil
}

// ListForBuyer returns a buyer's tickets, newest first.
func (s *ticketService) ListForBuyer(ctx context.Context, buyerID string, limit, offset int) ([]model.Ticket, error) {
	if buyerID == "" {
		return nil, model.ErrNotAuthorized
	}
	limit, offset = clampPage(limit, offset)

	tickets, err := s.tickets.ListByBuyer(ctx, buyerID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("buyer_id", buyerID).Msg("failed to list buyer tickets")
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

// ListForSeller returns tickets issued for a seller's events, newest first.
func (s *ticketService) ListForSeller(ctx context.Context, sellerID string, limit, offset int) ([]model.Ticket, error) {
	if sellerID == "" {
		return nil, model.ErrNotAuthorized
	}
	limit, offset = clampPage(limit, offset)

	tickets, err := s.tickets.ListBySeller(ctx, sellerID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("seller_id", sellerID).Msg("failed to list seller tickets")
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

// Delete removes a ticket on behalf of its buyer while it is still unused.
func (s *ticketService) Delete(ctx context.Context, ticketID, buyerID string) error {
	if buyerID == "" {
		return model.ErrNotAuthorized
	}

	err := s.tickets.Transact(ctx, func(ctx context.Context, tx repository.Tx) error {
		ticket, err := tx.GetTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return model.ErrTicketNotFound
		}
		if ticket.BuyerID == nil || *ticket.BuyerID != buyerID {
			return model.ErrNotAuthorized
		}
		if err := tx.DeleteTicket(ctx, ticketID); err != nil {
			return err
		}
		// The seat goes back on sale.
		_, _, err = tx.AddQuantitySold(ctx, ticket.TicketTypeID, -1)
		return err
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("ticket_id", ticketID).Msg("ticket deletion rejected")
		return err
	}

	s.logger.Info().Str("ticket_id", ticketID).Msg("ticket deleted")
	return nil
}
