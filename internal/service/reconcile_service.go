package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cadak-tickets/internal/archive"
	"cadak-tickets/internal/cache"
	"cadak-tickets/internal/events"
	"cadak-tickets/internal/model"
	"cadak-tickets/internal/payment"
	"cadak-tickets/internal/repository"
	"cadak-tickets/internal/telemetry"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("cadak-tickets/service")

// Reconciliation entry points, used for metrics and event payloads.
const (
	SourceCallback = "callback"
	SourceWebhook  = "webhook"
	SourceManual   = "manual"
)

// reconcileService implements ReconcileService.
type reconcileService struct {
	orders    repository.OrderStore
	tickets   repository.TicketStore
	gateway   payment.Gateway
	receipts  cache.ReceiptCache
	publisher events.Publisher
	archiver  archive.Archiver
	newID     func() string
	now       func() time.Time
	logger    zerolog.Logger
}

// NewReconcileService creates a new reconciliation service.
func NewReconcileService(
	orders repository.OrderStore,
	tickets repository.TicketStore,
	gateway payment.Gateway,
	receipts cache.ReceiptCache,
	publisher events.Publisher,
	archiver archive.Archiver,
	logger zerolog.Logger,
) ReconcileService {
	return &reconcileService{
		orders:    orders,
		tickets:   tickets,
		gateway:   gateway,
		receipts:  receipts,
		publisher: publisher,
		archiver:  archiver,
		newID:     uuid.NewString,
		now:       time.Now,
		logger:    logger.With().Str("service", "reconcile").Logger(),
	}
}

// Reconcile settles a reference whose payment was verified out of band.
func (s *reconcileService) Reconcile(ctx context.Context, reference string) (*model.ReconcileResult, error) {
	return s.reconcile(ctx, reference, nil, nil, SourceManual)
}

// ConfirmPayment is the buyer callback path. It never settles an order the
// gateway does not report as paid.
func (s *reconcileService) ConfirmPayment(ctx context.Context, reference string) (*model.ReconcileResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, model.ErrMissingReference
	}

	cached, ok, err := s.receipts.Get(ctx, reference)
	if err != nil {
		s.logger.Warn().Err(err).Str("reference", reference).Msg("receipt cache lookup failed")
	} else if ok {
		cached.AlreadyPaid = true
		telemetry.RecordReconciliation(SourceCallback, "cached")
		return cached, nil
	}

	txn, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		telemetry.RecordReconciliation(SourceCallback, "gateway_error")
		return nil, err
	}

	if !txn.Paid {
		if txn.Failed() {
			s.markFailed(ctx, reference, txn)
		}
		telemetry.RecordReconciliation(SourceCallback, "not_paid")
		s.logger.Info().
			Str("reference", reference).
			Str("gateway_status", txn.Status).
			Msg("payment not verified")
		return nil, fmt.Errorf("%w: gateway status %q", model.ErrPaymentNotVerified, txn.Status)
	}

	return s.reconcile(ctx, reference, txn, txn.Raw, SourceCallback)
}

// HandleWebhook authenticates a gateway notification and reconciles
// successful charges. Once the signature is valid the delivery is
// acknowledged, except when the store could not commit, so the gateway only
// redelivers what can still succeed.
func (s *reconcileService) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookOutcome, error) {
	if err := s.gateway.ValidateSignature(body, signature); err != nil {
		telemetry.RecordWebhook("rejected")
		s.logger.Warn().Err(err).Int("body_bytes", len(body)).Msg("webhook signature rejected")
		return nil, err
	}

	ignored := &WebhookOutcome{Acknowledged: true, Ignored: true}

	ev, err := payment.ParseWebhookEvent(body)
	if err != nil {
		telemetry.RecordWebhook("ignored")
		s.logger.Warn().Err(err).Msg("ignoring undecodable webhook")
		return ignored, nil
	}

	if !ev.HasData() || !ev.IsChargeSuccess() {
		telemetry.RecordWebhook("ignored")
		s.logger.Debug().Str("event", ev.Event).Msg("ignoring webhook event")
		return ignored, nil
	}

	txn, err := ev.Transaction()
	if err != nil {
		telemetry.RecordWebhook("ignored")
		s.logger.Warn().Err(err).Str("event", ev.Event).Msg("ignoring webhook with malformed data")
		return ignored, nil
	}

	if strings.TrimSpace(txn.Reference) == "" {
		telemetry.RecordWebhook("rejected")
		return nil, model.ErrMissingReference
	}

	if err := s.archiver.Store(ctx, archive.Key(txn.Reference, ev.Event, s.now()), body); err != nil {
		s.logger.Warn().Err(err).Str("reference", txn.Reference).Msg("failed to archive webhook payload")
	}

	if !txn.Paid {
		telemetry.RecordWebhook("ignored")
		s.logger.Info().
			Str("reference", txn.Reference).
			Str("gateway_status", txn.Status).
			Msg("charge event without a successful status")
		return ignored, nil
	}

	result, err := s.reconcile(ctx, txn.Reference, txn, body, SourceWebhook)
	if err != nil {
		if errors.Is(err, model.ErrOrderNotFound) {
			telemetry.RecordWebhook("unmatched")
			s.logger.Info().Str("reference", txn.Reference).Msg("no local order for webhook reference")
			return ignored, nil
		}
		if unsettleable(err) {
			telemetry.RecordWebhook("unsettled")
			var recErr *model.ReconciliationError
			orderID := ""
			if errors.As(err, &recErr) {
				orderID = recErr.OrderID
			}
			s.logger.Error().
				Err(err).
				Str("order_id", orderID).
				Str("reference", txn.Reference).
				Int64("paid_amount", txn.AmountMinor).
				Str("paid_currency", txn.Currency).
				Msg("paid charge cannot settle its order, needs manual review")
			return &WebhookOutcome{Acknowledged: true, Failed: true, OrderID: orderID}, nil
		}
		telemetry.RecordWebhook("failed")
		return nil, err
	}

	telemetry.RecordWebhook("reconciled")
	return &WebhookOutcome{Acknowledged: true, Result: result}, nil
}

// unsettleable reports reconciliation failures that no redelivery of the
// same event can fix.
func unsettleable(err error) bool {
	return errors.Is(err, model.ErrAmountMismatch) || errors.Is(err, model.ErrInvalidOrderState)
}

// GetOrder returns an order and its issued tickets.
func (s *reconcileService) GetOrder(ctx context.Context, reference string) (*model.OrderDetails, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, model.ErrMissingReference
	}

	order, err := s.orders.GetByReference(ctx, reference)
	if err != nil {
		s.logger.Error().Err(err).Str("reference", reference).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	tickets, err := s.tickets.ListByOrder(ctx, order.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to list order tickets")
		return nil, fmt.Errorf("failed to list order tickets: %w", err)
	}

	return &model.OrderDetails{Order: order, Tickets: tickets}, nil
}

// settlement is what one transaction attempt produced.
type settlement struct {
	order       *model.Order
	tickets     []model.Ticket
	alreadyPaid bool
	synthetic   bool
	recovered   bool
	oversold    map[string]int
	missing     []string
}

// reconcile moves the order for reference from pending to paid and issues
// one ticket per unit, exactly once. fallback is the verified gateway view of
// the payment. It supplies the paid amount and, when the local order is
// missing, the cart to rebuild it from.
func (s *reconcileService) reconcile(ctx context.Context, reference string, fallback *payment.Transaction, rawEvent []byte, source string) (*model.ReconcileResult, error) {
	ctx, span := tracer.Start(ctx, "reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.reference", reference),
		attribute.String("reconcile.source", source),
	)

	if strings.TrimSpace(reference) == "" {
		return nil, model.ErrMissingReference
	}

	existing, err := s.orders.GetByReference(ctx, reference)
	if err != nil {
		span.RecordError(err)
		s.logger.Error().Err(err).Str("reference", reference).Msg("failed to load order")
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if existing != nil && existing.Status == model.OrderPaid {
		return s.alreadySettled(ctx, existing, source)
	}

	orderID := ""
	if existing != nil {
		orderID = existing.ID
	}

	var out settlement
	err = s.orders.Transact(ctx, func(ctx context.Context, tx repository.Tx) error {
		out = settlement{}

		order, err := tx.GetOrderByReference(ctx, reference)
		if err != nil {
			return err
		}
		if order == nil {
			order, err = s.syntheticOrder(reference, fallback)
			if err != nil {
				return err
			}
			if err := tx.InsertOrder(ctx, order); err != nil {
				return err
			}
			out.synthetic = true
		}
		orderID = order.ID
		out.order = order

		switch order.Status {
		case model.OrderPaid:
			tickets, err := tx.ListTicketsByOrder(ctx, order.ID)
			if err != nil {
				return err
			}
			out.tickets = tickets
			out.alreadyPaid = true
			return nil
		case model.OrderPending:
		case model.OrderFailed:
			if fallback == nil {
				return fmt.Errorf("%w: order is %s", model.ErrInvalidOrderState, order.Status)
			}
			out.recovered = true
		default:
			return fmt.Errorf("%w: order is %s", model.ErrInvalidOrderState, order.Status)
		}

		if fallback != nil {
			if fallback.AmountMinor < order.TotalMinor {
				return fmt.Errorf("%w: paid %d, order total %d", model.ErrAmountMismatch, fallback.AmountMinor, order.TotalMinor)
			}
			if fallback.Currency != "" && !strings.EqualFold(fallback.Currency, order.Currency) {
				return fmt.Errorf("%w: paid in %s, order in %s", model.ErrAmountMismatch, fallback.Currency, order.Currency)
			}
		}

		paidAt := s.now().UTC()
		if err := tx.TransitionOrder(ctx, order.ID, model.OrderPaid, &paidAt, rawEvent); err != nil {
			return err
		}
		order.Status = model.OrderPaid
		order.PaidAt = &paidAt

		out.tickets = s.issueTickets(order, paidAt)
		if err := tx.InsertTickets(ctx, out.tickets); err != nil {
			return err
		}

		out.oversold = make(map[string]int)
		for _, item := range aggregateQuantities(order.Items) {
			remaining, found, err := tx.AddQuantitySold(ctx, item.TicketTypeID, item.Quantity)
			if err != nil {
				return err
			}
			if !found {
				out.missing = append(out.missing, item.TicketTypeID)
				continue
			}
			if remaining < 0 {
				out.oversold[item.TicketTypeID] = -remaining
			}
		}
		return nil
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, model.ErrOrderNotFound) {
			telemetry.RecordReconciliation(source, "not_found")
			return nil, err
		}
		telemetry.RecordReconciliation(source, "failed")
		s.logger.Error().
			Err(err).
			Str("order_id", orderID).
			Str("reference", reference).
			Str("source", source).
			Msg("reconciliation failed")
		return nil, &model.ReconciliationError{OrderID: orderID, Reference: reference, Err: err}
	}

	result := resultFor(out.order, out.tickets, out.alreadyPaid)
	if out.alreadyPaid {
		telemetry.RecordReconciliation(source, "already_paid")
		s.remember(ctx, result)
		return result, nil
	}

	s.afterSettlement(ctx, out, result, source)
	return result, nil
}

func (s *reconcileService) afterSettlement(ctx context.Context, out settlement, result *model.ReconcileResult, source string) {
	telemetry.RecordReconciliation(source, "settled")
	telemetry.RecordTicketsIssued(len(out.tickets))

	for typeID, over := range out.oversold {
		telemetry.RecordOversold(over)
		s.logger.Warn().
			Str("order_id", out.order.ID).
			Str("ticket_type_id", typeID).
			Int("oversold_by", over).
			Msg("ticket type oversold by a paid order")
	}
	for _, typeID := range out.missing {
		s.logger.Warn().
			Str("order_id", out.order.ID).
			Str("ticket_type_id", typeID).
			Msg("issued tickets for a ticket type missing from the catalog")
	}

	if out.recovered {
		s.logger.Warn().
			Str("order_id", out.order.ID).
			Str("reference", out.order.Reference).
			Msg("settled an order previously marked failed")
	}

	s.logger.Info().
		Str("order_id", out.order.ID).
		Str("reference", out.order.Reference).
		Str("source", source).
		Bool("synthetic", out.synthetic).
		Int("ticket_count", len(out.tickets)).
		Msg("order settled")

	s.remember(ctx, result)

	err := s.publisher.PublishOrderPaid(ctx, events.OrderPaid{
		OrderID:    out.order.ID,
		Reference:  out.order.Reference,
		BuyerID:    out.order.BuyerID,
		BuyerEmail: out.order.BuyerEmail,
		Currency:   out.order.Currency,
		TotalMinor: out.order.TotalMinor,
		TicketIDs:  result.TicketIDs,
		Source:     source,
		PaidAt:     *out.order.PaidAt,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", out.order.ID).Msg("failed to publish order paid event")
	}
}

func (s *reconcileService) alreadySettled(ctx context.Context, order *model.Order, source string) (*model.ReconcileResult, error) {
	tickets, err := s.tickets.ListByOrder(ctx, order.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to list order tickets")
		return nil, &model.ReconciliationError{OrderID: order.ID, Reference: order.Reference, Err: err}
	}
	telemetry.RecordReconciliation(source, "already_paid")
	result := resultFor(order, tickets, true)
	s.remember(ctx, result)
	return result, nil
}

func (s *reconcileService) remember(ctx context.Context, result *model.ReconcileResult) {
	if err := s.receipts.Put(ctx, result); err != nil {
		s.logger.Warn().Err(err).Str("reference", result.Reference).Msg("failed to cache receipt")
	}
}

// markFailed moves a still-pending order to failed after the gateway gave up
// on its payment. Errors are logged only; the caller reports the unpaid state.
func (s *reconcileService) markFailed(ctx context.Context, reference string, txn *payment.Transaction) {
	err := s.orders.Transact(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := tx.GetOrderByReference(ctx, reference)
		if err != nil || order == nil || order.Status != model.OrderPending {
			return err
		}
		return tx.TransitionOrder(ctx, order.ID, model.OrderFailed, nil, txn.Raw)
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("reference", reference).Msg("failed to mark order as failed")
		return
	}
	s.logger.Info().
		Str("reference", reference).
		Str("gateway_status", txn.Status).
		Msg("order marked failed")
}

// syntheticOrder rebuilds a pending order from verified gateway metadata.
// The cart must add up to exactly the amount paid, in the paid currency.
func (s *reconcileService) syntheticOrder(reference string, fallback *payment.Transaction) (*model.Order, error) {
	if fallback == nil || !fallback.Paid || len(fallback.Metadata.CartItems) == 0 {
		return nil, model.ErrOrderNotFound
	}

	items := append([]model.LineItem(nil), fallback.Metadata.CartItems...)
	currency := strings.ToUpper(fallback.Currency)
	for _, item := range items {
		if item.Quantity <= 0 || item.TicketTypeID == "" || !strings.EqualFold(item.Currency, currency) {
			s.logger.Warn().Str("reference", reference).Msg("gateway metadata cart is not usable")
			return nil, model.ErrOrderNotFound
		}
	}

	total := model.SumItems(items)
	if total <= 0 || total != fallback.AmountMinor {
		s.logger.Warn().
			Str("reference", reference).
			Int64("cart_total", total).
			Int64("paid_amount", fallback.AmountMinor).
			Msg("gateway metadata cart does not match the paid amount")
		return nil, model.ErrOrderNotFound
	}

	s.logger.Warn().Str("reference", reference).Msg("rebuilding missing order from gateway metadata")

	return &model.Order{
		ID:         s.newID(),
		Reference:  reference,
		BuyerID:    fallback.Metadata.BuyerID,
		BuyerEmail: fallback.Email,
		Items:      items,
		Currency:   currency,
		TotalMinor: total,
		Status:     model.OrderPending,
		CreatedAt:  s.now().UTC(),
	}, nil
}

// issueTickets creates one unused ticket per unit of every line item.
func (s *reconcileService) issueTickets(order *model.Order, issuedAt time.Time) []model.Ticket {
	tickets := make([]model.Ticket, 0, order.TicketCount())
	for line, item := range order.Items {
		for unit := 0; unit < item.Quantity; unit++ {
			id := s.newID()
			tickets = append(tickets, model.Ticket{
				ID:             id,
				OrderID:        order.ID,
				OrderReference: order.Reference,
				BuyerID:        order.BuyerID,
				BuyerEmail:     order.BuyerEmail,
				SellerID:       item.SellerID,
				EventID:        item.EventID,
				EventTitle:     item.EventTitle,
				TicketTypeID:   item.TicketTypeID,
				TypeName:       item.Name,
				Status:         model.TicketUnused,
				IssuedAt:       issuedAt,
				QRPayload:      model.QRPayload{TicketID: id, EventID: item.EventID, TicketTypeID: item.TicketTypeID}.Encode(),
				LineIndex:      line,
				UnitIndex:      unit,
			})
		}
	}
	return tickets
}

// aggregateQuantities sums quantities per ticket type in first-seen order.
func aggregateQuantities(items []model.LineItem) []model.LineItem {
	var out []model.LineItem
	index := make(map[string]int)
	for _, item := range items {
		if i, ok := index[item.TicketTypeID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[item.TicketTypeID] = len(out)
		out = append(out, model.LineItem{TicketTypeID: item.TicketTypeID, Quantity: item.Quantity})
	}
	return out
}

func resultFor(order *model.Order, tickets []model.Ticket, alreadyPaid bool) *model.ReconcileResult {
	ids := make([]string, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}
	return &model.ReconcileResult{
		OrderID:     order.ID,
		Reference:   order.Reference,
		TicketIDs:   ids,
		AlreadyPaid: alreadyPaid,
	}
}
