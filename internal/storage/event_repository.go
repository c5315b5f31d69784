package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/types"
)

// EventRepository handles event persistence
type EventRepository struct {
	db *PostgresDB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *PostgresDB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, organizer_id, title, description, event_date, venue_name, venue_address, city,
	state, country, budget_min, budget_max, event_type, duration_hours, audience_size,
	required_genres, status, created_at, updated_at`

func scanEvent(row rowScanner) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Description, &e.EventDate, &e.VenueName,
		&e.VenueAddress, &e.City, &e.State, &e.Country, &e.BudgetMin, &e.BudgetMax, &e.EventType,
		&e.DurationHours, &e.AudienceSize, &e.RequiredGenres, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts an event
func (r *EventRepository) Create(ctx context.Context, e *models.Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Status == "" {
		e.Status = types.EventStatusDraft
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now

	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := r.db.q(ctx).Exec(ctx, query,
		e.ID, e.OrganizerID, e.Title, e.Description, e.EventDate, e.VenueName, e.VenueAddress, e.City,
		e.State, e.Country, e.BudgetMin, e.BudgetMax, e.EventType, e.DurationHours, e.AudienceSize,
		nonNil(e.RequiredGenres), e.Status, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// GetByID retrieves an event
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	e, err := scanEvent(r.db.q(ctx).QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, wrapQueryErr(err, "event", id)
	}
	return e, nil
}

// List lists events matching filter, soonest first
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]*models.Event, error) {
	var (
		conds []string
		args  []any
	)
	if filter.OrganizerID != "" {
		args = append(args, filter.OrganizerID)
		conds = append(conds, fmt.Sprintf("organizer_id = $%d", len(args)))
	}
	if filter.OpenOnly {
		args = append(args, []string{string(types.EventStatusPublished), string(types.EventStatusBookingOpen)})
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.City != "" {
		args = append(args, strings.ToLower(filter.City))
		conds = append(conds, fmt.Sprintf("lower(city) = $%d", len(args)))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit, offset := pageBounds(filter.Limit, filter.Offset)
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY event_date ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Update replaces the editable fields of an event
func (r *EventRepository) Update(ctx context.Context, e *models.Event) error {
	e.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE events SET title = $2, description = $3, event_date = $4, venue_name = $5,
			venue_address = $6, city = $7, state = $8, country = $9, budget_min = $10, budget_max = $11,
			event_type = $12, duration_hours = $13, audience_size = $14, required_genres = $15,
			status = $16, updated_at = $17
		WHERE id = $1
	`
	tag, err := r.db.q(ctx).Exec(ctx, query,
		e.ID, e.Title, e.Description, e.EventDate, e.VenueName, e.VenueAddress, e.City, e.State,
		e.Country, e.BudgetMin, e.BudgetMax, e.EventType, e.DurationHours, e.AudienceSize,
		nonNil(e.RequiredGenres), e.Status, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("event", e.ID)
	}
	return nil
}

// UpdateStatus changes an event's status
func (r *EventRepository) UpdateStatus(ctx context.Context, id string, status types.EventStatus) error {
	tag, err := r.db.q(ctx).Exec(ctx,
		`UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("event", id)
	}
	return nil
}
