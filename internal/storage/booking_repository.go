package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/types"
)

// BookingRepository handles booking persistence
type BookingRepository struct {
	db *PostgresDB
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *PostgresDB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `b.id, b.event_id, b.artist_id, b.organizer_id, b.status, b.proposed_fee, b.final_fee,
	b.message, b.contract_terms, b.payment_status, b.payment_id, b.payment_date, b.created_at, b.updated_at`

func bookingDest(b *models.Booking) []any {
	return []any{&b.ID, &b.EventID, &b.ArtistID, &b.OrganizerID, &b.Status, &b.ProposedFee, &b.FinalFee,
		&b.Message, &b.ContractTerms, &b.PaymentStatus, &b.PaymentID, &b.PaymentDate, &b.CreatedAt, &b.UpdatedAt}
}

func scanBookingWithEvent(row rowScanner) (*models.BookingWithEvent, error) {
	var b models.BookingWithEvent
	dest := append(bookingDest(&b.Booking), &b.EventTitle, &b.EventDate)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts a booking
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.Status == "" {
		b.Status = types.BookingStatusPending
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = types.PaymentStatusUnpaid
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now

	query := `
		INSERT INTO bookings (id, event_id, artist_id, organizer_id, status, proposed_fee, final_fee,
			message, contract_terms, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.q(ctx).Exec(ctx, query,
		b.ID, b.EventID, b.ArtistID, b.OrganizerID, b.Status, b.ProposedFee, b.FinalFee,
		b.Message, b.ContractTerms, b.PaymentStatus, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetByID retrieves a booking with its event title
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.BookingWithEvent, error) {
	query := `SELECT ` + bookingColumns + `, e.title, e.event_date
		FROM bookings b JOIN events e ON e.id = b.event_id
		WHERE b.id = $1`
	b, err := scanBookingWithEvent(r.db.q(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapQueryErr(err, "booking", id)
	}
	return b, nil
}

// ListByArtist lists bookings made for an artist, newest first
func (r *BookingRepository) ListByArtist(ctx context.Context, artistID string) ([]*models.BookingWithEvent, error) {
	return r.list(ctx, "b.artist_id", artistID)
}

// ListByOrganizer lists bookings made by an organizer, newest first
func (r *BookingRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]*models.BookingWithEvent, error) {
	return r.list(ctx, "b.organizer_id", organizerID)
}

func (r *BookingRepository) list(ctx context.Context, column, id string) ([]*models.BookingWithEvent, error) {
	query := `SELECT ` + bookingColumns + `, e.title, e.event_date
		FROM bookings b JOIN events e ON e.id = b.event_id
		WHERE ` + column + ` = $1
		ORDER BY b.created_at DESC`

	rows, err := r.db.q(ctx).Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var out []*models.BookingWithEvent
	for rows.Next() {
		b, err := scanBookingWithEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ExistsActive reports whether the artist already has a pending or accepted booking for the event
func (r *BookingRepository) ExistsActive(ctx context.Context, eventID, artistID string) (bool, error) {
	var exists bool
	err := r.db.q(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE event_id = $1 AND artist_id = $2 AND status IN ('pending', 'accepted')
		)`, eventID, artistID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check booking: %w", err)
	}
	return exists, nil
}

// UpdateResponse moves a pending booking to accepted or declined. It fails
// with a conflict when the booking is no longer pending.
func (r *BookingRepository) UpdateResponse(ctx context.Context, id string, status types.BookingStatus, finalFee int64, contractTerms *string) error {
	tag, err := r.db.q(ctx).Exec(ctx, `
		UPDATE bookings
		SET status = $2, final_fee = $3, contract_terms = COALESCE($4, contract_terms), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, status, finalFee, contractTerms)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewConflictError("booking is no longer pending")
	}
	return nil
}

// Cancel cancels an unpaid booking that is still pending or accepted
func (r *BookingRepository) Cancel(ctx context.Context, id string) error {
	tag, err := r.db.q(ctx).Exec(ctx, `
		UPDATE bookings SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'accepted') AND payment_status = 'unpaid'
	`, id)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewConflictError("booking can no longer be cancelled")
	}
	return nil
}

// MarkPaid records a successful payment. Only unpaid bookings transition,
// so a second payment for the same booking is rejected.
func (r *BookingRepository) MarkPaid(ctx context.Context, id, paymentID string, paidAt time.Time) error {
	tag, err := r.db.q(ctx).Exec(ctx, `
		UPDATE bookings SET payment_status = 'paid', payment_id = $2, payment_date = $3, updated_at = NOW()
		WHERE id = $1 AND payment_status = 'unpaid'
	`, id, paymentID, paidAt)
	if err != nil {
		return fmt.Errorf("failed to mark booking paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewConflictError("booking is already paid")
	}
	return nil
}
