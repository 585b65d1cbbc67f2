package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cadak-tickets/internal/model"
	"cadak-tickets/internal/telemetry"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DefaultTxMaxRetries bounds how often a conflicting transaction is re-run.
const DefaultTxMaxRetries = 5

// SQLSTATE codes that mean "another transaction won, try again".
var retryableSQLStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"23505": true, // unique_violation, e.g. two writers creating the same reference
}

func isRetryablePgError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableSQLStates[pgErr.Code]
	}
	return false
}

func newTxBackoff(ctx context.Context, maxRetries int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)
}

// retryTx runs attempt until it succeeds, fails with a non-conflict error, or
// maxRetries re-runs are used up. Exhaustion is reported as model.ErrConflict.
func retryTx(ctx context.Context, store string, maxRetries int, isConflict func(error) bool, logger zerolog.Logger, attempt func() error) error {
	tries := 0
	err := backoff.Retry(func() error {
		tries++
		err := attempt()
		if err == nil {
			return nil
		}
		if !isConflict(err) {
			return backoff.Permanent(err)
		}
		if tries <= maxRetries {
			telemetry.RecordTxRetry(store)
			logger.Debug().Err(err).Int("attempt", tries).Msg("transaction conflict, retrying")
		}
		return err
	}, newTxBackoff(ctx, maxRetries))

	if err != nil && isConflict(err) {
		telemetry.RecordTxConflict(store)
		logger.Warn().Err(err).Int("attempts", tries).Msg("transaction retries exhausted")
		return fmt.Errorf("%w after %d attempts: %v", model.ErrConflict, tries, err)
	}
	return err
}

// pgTransactor implements Transactor over a pgx pool. Rows read through Tx
// are locked with SELECT ... FOR UPDATE, so READ COMMITTED is sufficient.
type pgTransactor struct {
	pool       *pgxpool.Pool
	maxRetries int
	logger     zerolog.Logger
}

func newPgTransactor(pool *pgxpool.Pool, maxRetries int, logger zerolog.Logger) *pgTransactor {
	if maxRetries < 0 {
		maxRetries = DefaultTxMaxRetries
	}
	return &pgTransactor{pool: pool, maxRetries: maxRetries, logger: logger}
}

// Transact runs fn inside a database transaction, re-running it on
// serialization failures, deadlocks and unique violations.
func (t *pgTransactor) Transact(ctx context.Context, fn TxFunc) error {
	return retryTx(ctx, "postgres", t.maxRetries, isRetryablePgError, t.logger, func() error {
		return pgx.BeginTxFunc(ctx, t.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
			return fn(ctx, &pgTx{tx: tx})
		})
	})
}

// pgTx implements Tx on an open pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

const orderColumns = `id, reference, buyer_id, buyer_email, items, currency, total_minor, status, created_at, paid_at, raw_event`

const ticketColumns = `id, order_id, order_reference, buyer_id, buyer_email, seller_id, event_id, event_title,
	ticket_type_id, type_name, status, issued_at, scanned_at, qr_payload, line_index, unit_index`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o        model.Order
		status   string
		rawEvent []byte
	)
	err := row.Scan(&o.ID, &o.Reference, &o.BuyerID, &o.BuyerEmail, &o.Items, &o.Currency,
		&o.TotalMinor, &status, &o.CreatedAt, &o.PaidAt, &rawEvent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	if len(rawEvent) > 0 {
		o.RawEvent = rawEvent
	}
	return &o, nil
}

func collectTickets(rows pgx.Rows) ([]model.Ticket, error) {
	tickets, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Ticket])
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []model.Ticket{}
	}
	return tickets, nil
}

func insertOrder(ctx context.Context, q interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}, order *model.Order) error {
	var rawEvent []byte
	if len(order.RawEvent) > 0 {
		rawEvent = order.RawEvent
	}
	_, err := q.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, order.ID, order.Reference, order.BuyerID, order.BuyerEmail, order.Items, order.Currency,
		order.TotalMinor, string(order.Status), order.CreatedAt, order.PaidAt, rawEvent)
	return err
}

func (t *pgTx) GetOrderByReference(ctx context.Context, reference string) (*model.Order, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE reference = $1 FOR UPDATE`, reference)
	order, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return order, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, order *model.Order) error {
	if err := insertOrder(ctx, t.tx, order); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (t *pgTx) TransitionOrder(ctx context.Context, orderID string, to model.OrderStatus, paidAt *time.Time, rawEvent []byte) error {
	if len(rawEvent) == 0 {
		rawEvent = nil
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET status = $2, paid_at = COALESCE(paid_at, $3), raw_event = COALESCE($4, raw_event)
		WHERE id = $1 AND (status = 'pending' OR (status = 'failed' AND $2 = 'paid'))
	`, orderID, string(to), paidAt, rawEvent)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return model.ErrInvalidOrderState
	}
	return nil
}

func (t *pgTx) ListTicketsByOrder(ctx context.Context, orderID string) ([]model.Ticket, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE order_id = $1
		ORDER BY line_index, unit_index
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order tickets: %w", err)
	}
	tickets, err := collectTickets(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan order tickets: %w", err)
	}
	return tickets, nil
}

func (t *pgTx) InsertTickets(ctx context.Context, tickets []model.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}

	query := `
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	batch := &pgx.Batch{}
	for _, tk := range tickets {
		batch.Queue(query, tk.ID, tk.OrderID, tk.OrderReference, tk.BuyerID, tk.BuyerEmail, tk.SellerID,
			tk.EventID, tk.EventTitle, tk.TicketTypeID, tk.TypeName, string(tk.Status), tk.IssuedAt,
			tk.ScannedAt, tk.QRPayload, tk.LineIndex, tk.UnitIndex)
	}

	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := range tickets {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert ticket %d: %w", i, err)
		}
	}
	return nil
}

func (t *pgTx) AddQuantitySold(ctx context.Context, ticketTypeID string, quantity int) (int, bool, error) {
	var remaining int
	err := t.tx.QueryRow(ctx, `
		UPDATE ticket_types
		SET quantity_sold = GREATEST(quantity_sold + $2, 0)
		WHERE id = $1
		RETURNING quantity_total - quantity_sold
	`, ticketTypeID, quantity).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to update quantity sold: %w", err)
	}
	return remaining, true, nil
}

func (t *pgTx) GetTicket(ctx context.Context, ticketID string) (*model.Ticket, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock ticket: %w", err)
	}
	ticket, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Ticket])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan ticket: %w", err)
	}
	return ticket, nil
}

func (t *pgTx) MarkCheckedIn(ctx context.Context, ticketID string, scannedAt time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE tickets SET status = 'checked_in', scanned_at = $2
		WHERE id = $1 AND status = 'unused'
	`, ticketID, scannedAt)
	if err != nil {
		return fmt.Errorf("failed to check in ticket: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("ticket %s is no longer unused", ticketID)
	}
	return nil
}

func (t *pgTx) DeleteTicket(ctx context.Context, ticketID string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM tickets WHERE id = $1 AND status = 'unused'`, ticketID)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return model.ErrTicketNotDeletable
	}
	return nil
}

func (t *pgTx) InsertScan(ctx context.Context, scan *model.Scan) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO scans (id, ticket_id, scanner_id, event_id, scanned_at)
		VALUES ($1, $2, $3, $4, $5)
	`, scan.ID, scan.TicketID, scan.ScannerID, scan.EventID, scan.ScannedAt)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	return nil
}

func (t *pgTx) HasScannerAccess(ctx context.Context, sellerID, memberID string) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM scanner_access WHERE seller_id = $1 AND member_id = $2)
	`, sellerID, memberID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check scanner access: %w", err)
	}
	return ok, nil
}
