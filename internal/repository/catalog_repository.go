package repository

import (
	"context"
	"errors"
	"fmt"

	"cadak-tickets/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// catalogRepository implements the CatalogRepository interface using PostgreSQL.
type catalogRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCatalogRepository creates a new PostgreSQL-backed catalog repository.
func NewCatalogRepository(pool *pgxpool.Pool, logger zerolog.Logger) CatalogRepository {
	return &catalogRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "catalog").Logger(),
	}
}

const eventColumns = `id, seller_id, title, description, venue, city, category, status, currency, start_at, end_at, created_at`

const ticketTypeColumns = `id, event_id, name, tier, price_minor, currency, quantity_total, quantity_sold, max_per_order`

func scanEvent(row pgx.Row) (model.Event, error) {
	var (
		e        model.Event
		status   string
		currency string
	)
	err := row.Scan(&e.ID, &e.SellerID, &e.Title, &e.Description, &e.Venue, &e.City, &e.Category,
		&status, &currency, &e.StartAt, &e.EndAt, &e.CreatedAt)
	e.Status = model.EventStatus(status)
	e.Currency = currency
	return e, err
}

// ListPublished retrieves published events ordered by start time.
func (r *catalogRepository) ListPublished(ctx context.Context, limit, offset int) ([]model.Event, error) {
	return r.listEvents(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE status = 'published'
		ORDER BY start_at, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
}

// ListBySeller retrieves a seller's events, drafts included, newest first.
func (r *catalogRepository) ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]model.Event, error) {
	return r.listEvents(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE seller_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, sellerID, limit, offset)
}

func (r *catalogRepository) listEvents(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query events")
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan event row")
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating event rows")
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	if len(events) == 0 {
		return events, nil
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}

	types, err := r.ticketTypesWhere(ctx, `event_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}

	byEvent := make(map[string][]model.TicketType, len(events))
	for _, tt := range types {
		byEvent[tt.EventID] = append(byEvent[tt.EventID], tt)
	}
	for i := range events {
		events[i].TicketTypes = byEvent[events[i].ID]
		events[i].FillMinPrice()
	}

	return events, nil
}

// GetEvent retrieves a single event with its ticket types.
func (r *catalogRepository) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("event_id", id).Msg("event not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("event_id", id).Msg("failed to query event")
		return nil, fmt.Errorf("failed to query event: %w", err)
	}

	e.TicketTypes, err = r.ticketTypesWhere(ctx, `event_id = $1`, id)
	if err != nil {
		return nil, err
	}
	e.FillMinPrice()

	return &e, nil
}

// GetTicketTypes retrieves ticket types by ID.
func (r *catalogRepository) GetTicketTypes(ctx context.Context, ids []string) ([]model.TicketType, error) {
	if len(ids) == 0 {
		return []model.TicketType{}, nil
	}
	return r.ticketTypesWhere(ctx, `id = ANY($1)`, ids)
}

func (r *catalogRepository) ticketTypesWhere(ctx context.Context, where string, arg any) ([]model.TicketType, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ticketTypeColumns+`
		FROM ticket_types
		WHERE `+where+`
		ORDER BY price_minor, id
	`, arg)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query ticket types")
		return nil, fmt.Errorf("failed to query ticket types: %w", err)
	}

	types, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.TicketType])
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to scan ticket type rows")
		return nil, fmt.Errorf("failed to scan ticket types: %w", err)
	}
	if types == nil {
		types = []model.TicketType{}
	}

	return types, nil
}

// CreateEvent inserts an event and its ticket types in one transaction.
func (r *catalogRepository) CreateEvent(ctx context.Context, event *model.Event) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO events (`+eventColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, event.ID, event.SellerID, event.Title, event.Description, event.Venue, event.City, event.Category,
			string(event.Status), event.Currency, event.StartAt, event.EndAt, event.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}

		batch := &pgx.Batch{}
		for _, tt := range event.TicketTypes {
			batch.Queue(`
				INSERT INTO ticket_types (`+ticketTypeColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, tt.ID, event.ID, tt.Name, tt.Tier, tt.PriceMinor, tt.Currency, tt.QuantityTotal, tt.QuantitySold, tt.MaxPerOrder)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		r.logger.Error().Err(err).
			Str("event_id", event.ID).
			Str("seller_id", event.SellerID).
			Msg("failed to create event")
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// UpdateEvent overwrites an event's own columns.
func (r *catalogRepository) UpdateEvent(ctx context.Context, event *model.Event) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE events
		SET title = $2, description = $3, venue = $4, city = $5, category = $6,
			status = $7, start_at = $8, end_at = $9
		WHERE id = $1
	`, event.ID, event.Title, event.Description, event.Venue, event.City, event.Category,
		string(event.Status), event.StartAt, event.EndAt)
	if err != nil {
		r.logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to update event")
		return fmt.Errorf("failed to update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrEventNotFound
	}
	return nil
}

// DeleteEvent removes an unsold event. The event's ticket type rows are
// locked first so a concurrent sale either lands before the check or fails
// to find its ticket type.
func (r *catalogRepository) DeleteEvent(ctx context.Context, id string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check event: %w", err)
		}
		if !exists {
			return model.ErrEventNotFound
		}

		rows, err := tx.Query(ctx, `SELECT quantity_sold FROM ticket_types WHERE event_id = $1 FOR UPDATE`, id)
		if err != nil {
			return fmt.Errorf("failed to lock ticket types: %w", err)
		}
		sold, err := pgx.CollectRows(rows, pgx.RowTo[int])
		if err != nil {
			return fmt.Errorf("failed to scan ticket types: %w", err)
		}
		for _, n := range sold {
			if n > 0 {
				return model.ErrEventHasSales
			}
		}

		// ticket_types rows go with the event through ON DELETE CASCADE.
		_, err = tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
		return err
	})
	if err != nil {
		var domainErr *model.DomainError
		if errors.As(err, &domainErr) {
			return err
		}
		r.logger.Error().Err(err).Str("event_id", id).Msg("failed to delete event")
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}
