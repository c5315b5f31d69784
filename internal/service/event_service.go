package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/types"
)

// EventRepository persists events
type EventRepository interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]*models.Event, error)
	UpdateStatus(ctx context.Context, id string, status types.EventStatus) error
}

// AvailabilityRepository persists artist availability slots
type AvailabilityRepository interface {
	Upsert(ctx context.Context, a *models.ArtistAvailability) error
	ListByArtist(ctx context.Context, artistID string, from, to time.Time) ([]*models.ArtistAvailability, error)
	Delete(ctx context.Context, id, artistID string) error
}

// eventTransitions lists the statuses an event may move to from each status.
// Completed and cancelled events are final.
var eventTransitions = map[types.EventStatus][]types.EventStatus{
	types.EventStatusDraft:       {types.EventStatusPublished, types.EventStatusBookingOpen, types.EventStatusCancelled},
	types.EventStatusPublished:   {types.EventStatusDraft, types.EventStatusBookingOpen, types.EventStatusBooked, types.EventStatusCancelled},
	types.EventStatusBookingOpen: {types.EventStatusPublished, types.EventStatusBooked, types.EventStatusCancelled},
	types.EventStatusBooked:      {types.EventStatusCompleted, types.EventStatusCancelled},
}

// EventService manages organizer events and artist availability
type EventService struct {
	events       EventRepository
	availability AvailabilityRepository
}

// NewEventService creates a new event service
func NewEventService(events EventRepository, availability AvailabilityRepository) *EventService {
	return &EventService{events: events, availability: availability}
}

// CreateEvent posts a new event for organizerID. New events start as drafts
// unless a status is given.
func (s *EventService) CreateEvent(ctx context.Context, organizerID string, e *models.Event) (*models.Event, error) {
	e.OrganizerID = organizerID
	e.Title = strings.TrimSpace(e.Title)
	e.VenueName = strings.TrimSpace(e.VenueName)
	if e.Status == "" {
		e.Status = types.EventStatusDraft
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	if err := s.events.Create(ctx, e); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"eventId":     e.ID,
		"organizerId": organizerID,
		"status":      e.Status,
	}).Info("Event created")
	return e, nil
}

// GetEvent returns an event by id
func (s *EventService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	return s.events.GetByID(ctx, id)
}

// ListOrganizerEvents lists an organizer's events by ascending date
func (s *EventService) ListOrganizerEvents(ctx context.Context, organizerID string, limit, offset int) ([]*models.Event, error) {
	return s.events.List(ctx, models.EventFilter{OrganizerID: organizerID, Limit: limit, Offset: offset})
}

// ListOpenEvents lists events accepting bookings, optionally in one city
func (s *EventService) ListOpenEvents(ctx context.Context, city string, limit, offset int) ([]*models.Event, error) {
	return s.events.List(ctx, models.EventFilter{OpenOnly: true, City: city, Limit: limit, Offset: offset})
}

// UpdateEventStatus moves an event owned by organizerID to status
func (s *EventService) UpdateEventStatus(ctx context.Context, organizerID, id string, status types.EventStatus) (*models.Event, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("status", "Unknown event status")
	}
	e, err := s.ownedEvent(ctx, organizerID, id)
	if err != nil {
		return nil, err
	}
	if e.Status == status {
		return e, nil
	}
	if !canTransition(e.Status, status) {
		return nil, apperrors.NewConflictError(fmt.Sprintf("event cannot move from %s to %s", e.Status, status))
	}

	if err := s.events.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	e.Status = status
	return e, nil
}

// ownedEvent loads an event and checks organizerID owns it
func (s *EventService) ownedEvent(ctx context.Context, organizerID, id string) (*models.Event, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.OrganizerID != organizerID {
		return nil, apperrors.NewForbiddenError("You can only manage your own events")
	}
	return e, nil
}

func canTransition(from, to types.EventStatus) bool {
	for _, next := range eventTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SetAvailability records whether artistID can perform on a date
func (s *EventService) SetAvailability(ctx context.Context, artistID string, a *models.ArtistAvailability) (*models.ArtistAvailability, error) {
	a.ArtistID = artistID
	a.Date = truncateDay(a.Date)
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := s.availability.Upsert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListAvailability lists an artist's slots between from and to. A zero
// range defaults to the next 30 days.
func (s *EventService) ListAvailability(ctx context.Context, artistID string, from, to time.Time) ([]*models.ArtistAvailability, error) {
	if from.IsZero() {
		from = time.Now().UTC()
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, 30)
	}
	from, to = truncateDay(from), truncateDay(to)
	if to.Before(from) {
		return nil, apperrors.NewInvalidParameterError("to", "must not be before from")
	}
	return s.availability.ListByArtist(ctx, artistID, from, to)
}

// DeleteAvailability removes one of the artist's slots
func (s *EventService) DeleteAvailability(ctx context.Context, artistID, id string) error {
	return s.availability.Delete(ctx, id, artistID)
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
