package models

import (
	"strings"
	"time"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/types"
)

// Event is a gig posted by an organizer that artists can be booked for.
// Budgets are in cents.
type Event struct {
	ID             string            `json:"id" db:"id"`
	OrganizerID    string            `json:"organizerId" db:"organizer_id"`
	Title          string            `json:"title" db:"title"`
	Description    *string           `json:"description,omitempty" db:"description"`
	EventDate      time.Time         `json:"eventDate" db:"event_date"`
	VenueName      string            `json:"venueName" db:"venue_name"`
	VenueAddress   *string           `json:"venueAddress,omitempty" db:"venue_address"`
	City           string            `json:"city" db:"city"`
	State          *string           `json:"state,omitempty" db:"state"`
	Country        *string           `json:"country,omitempty" db:"country"`
	BudgetMin      int64             `json:"budgetMin" db:"budget_min"`
	BudgetMax      int64             `json:"budgetMax" db:"budget_max"`
	EventType      *string           `json:"eventType,omitempty" db:"event_type"`
	DurationHours  int               `json:"durationHours" db:"duration_hours"`
	AudienceSize   int               `json:"audienceSize" db:"audience_size"`
	RequiredGenres []string          `json:"requiredGenres" db:"required_genres"`
	Status         types.EventStatus `json:"status" db:"status"`
	CreatedAt      time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time         `json:"updatedAt" db:"updated_at"`
}

// Validate checks the fields required to post an event
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return apperrors.NewValidationError("title", "Event title is required")
	}
	if e.EventDate.IsZero() {
		return apperrors.NewValidationError("eventDate", "Event date is required")
	}
	if strings.TrimSpace(e.VenueName) == "" {
		return apperrors.NewValidationError("venueName", "Venue name is required")
	}
	if e.BudgetMin < 0 || e.BudgetMax < 0 {
		return apperrors.NewValidationError("budget", "Budget cannot be negative")
	}
	if e.BudgetMax > 0 && e.BudgetMin > e.BudgetMax {
		return apperrors.NewValidationError("budget", "Minimum budget cannot exceed maximum budget")
	}
	if e.DurationHours < 0 || e.AudienceSize < 0 {
		return apperrors.NewValidationError("durationHours", "Duration and audience size cannot be negative")
	}
	if e.Status != "" && !e.Status.Valid() {
		return apperrors.NewValidationError("status", "Unknown event status")
	}
	return nil
}

// EventFilter narrows event listings
type EventFilter struct {
	OrganizerID string
	// OpenOnly restricts results to events accepting bookings
	OpenOnly bool
	City     string
	Limit    int
	Offset   int
}

// Booking is an engagement request between an event and an artist. Fees are in cents.
type Booking struct {
	ID            string              `json:"id" db:"id"`
	EventID       string              `json:"eventId" db:"event_id"`
	ArtistID      string              `json:"artistId" db:"artist_id"`
	OrganizerID   string              `json:"organizerId" db:"organizer_id"`
	Status        types.BookingStatus `json:"status" db:"status"`
	ProposedFee   int64               `json:"proposedFee" db:"proposed_fee"`
	FinalFee      int64               `json:"finalFee" db:"final_fee"`
	Message       *string             `json:"message,omitempty" db:"message"`
	ContractTerms *string             `json:"contractTerms,omitempty" db:"contract_terms"`
	PaymentStatus types.PaymentStatus `json:"paymentStatus" db:"payment_status"`
	PaymentID     *string             `json:"paymentId,omitempty" db:"payment_id"`
	PaymentDate   *time.Time          `json:"paymentDate,omitempty" db:"payment_date"`
	CreatedAt     time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time           `json:"updatedAt" db:"updated_at"`
}

// Fee returns the amount the artist is paid: the agreed final fee when set,
// otherwise the proposed fee.
func (b *Booking) Fee() int64 {
	if b.FinalFee > 0 {
		return b.FinalFee
	}
	return b.ProposedFee
}

// BookingWithEvent carries the event title alongside a booking for listings and notifications
type BookingWithEvent struct {
	Booking
	EventTitle string    `json:"eventTitle" db:"event_title"`
	EventDate  time.Time `json:"eventDate" db:"event_date"`
}
