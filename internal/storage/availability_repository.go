package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/models"
)

// AvailabilityRepository handles artist availability slots
type AvailabilityRepository struct {
	db *PostgresDB
}

// NewAvailabilityRepository creates a new availability repository
func NewAvailabilityRepository(db *PostgresDB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

const availabilityColumns = `id, artist_id, date, start_time, end_time, is_available, booking_id, notes, created_at, updated_at`

// Upsert sets the availability of an artist for a date
func (r *AvailabilityRepository) Upsert(ctx context.Context, a *models.ArtistAvailability) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO artist_availability (` + availabilityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (artist_id, date) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			is_available = EXCLUDED.is_available,
			booking_id = EXCLUDED.booking_id,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + availabilityColumns

	err := r.db.q(ctx).QueryRow(ctx, query,
		a.ID, a.ArtistID, a.Date, a.StartTime, a.EndTime, a.IsAvailable, a.BookingID, a.Notes, now,
	).Scan(&a.ID, &a.ArtistID, &a.Date, &a.StartTime, &a.EndTime, &a.IsAvailable, &a.BookingID,
		&a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert availability: %w", err)
	}
	return nil
}

// ListByArtist lists an artist's slots between from and to inclusive
func (r *AvailabilityRepository) ListByArtist(ctx context.Context, artistID string, from, to time.Time) ([]*models.ArtistAvailability, error) {
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT `+availabilityColumns+` FROM artist_availability
		WHERE artist_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date ASC
	`, artistID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability: %w", err)
	}
	defer rows.Close()

	var out []*models.ArtistAvailability
	for rows.Next() {
		var a models.ArtistAvailability
		if err := rows.Scan(&a.ID, &a.ArtistID, &a.Date, &a.StartTime, &a.EndTime, &a.IsAvailable,
			&a.BookingID, &a.Notes, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan availability: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Delete removes one of the artist's slots
func (r *AvailabilityRepository) Delete(ctx context.Context, id, artistID string) error {
	tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM artist_availability WHERE id = $1 AND artist_id = $2`, id, artistID)
	if err != nil {
		return fmt.Errorf("failed to delete availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("availability", id)
	}
	return nil
}
