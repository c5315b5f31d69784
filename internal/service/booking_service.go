package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/live-vibe/internal/adapter"
	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/pricing"
	"github.com/live-vibe/internal/types"
)

// BookingRepository persists bookings
type BookingRepository interface {
	Create(ctx context.Context, b *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.BookingWithEvent, error)
	ListByArtist(ctx context.Context, artistID string) ([]*models.BookingWithEvent, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]*models.BookingWithEvent, error)
	ExistsActive(ctx context.Context, eventID, artistID string) (bool, error)
	UpdateResponse(ctx context.Context, id string, status types.BookingStatus, finalFee int64, contractTerms *string) error
	Cancel(ctx context.Context, id string) error
	MarkPaid(ctx context.Context, id, paymentID string, paidAt time.Time) error
}

// PaymentRecordRepository stores successful charges
type PaymentRecordRepository interface {
	Create(ctx context.Context, p *models.PaymentRecord) error
	ListByUser(ctx context.Context, userID string) ([]*models.PaymentRecord, error)
}

// BookingService runs the booking workflow between organizers and artists
type BookingService struct {
	tx            TxRunner
	bookings      BookingRepository
	events        EventRepository
	payments      PaymentRecordRepository
	gateway       PaymentGateway
	notifications *NotificationService
	plans         planResolver
	defaultRate   float64
	now           func() time.Time
}

// NewBookingService creates a new booking service
func NewBookingService(
	tx TxRunner,
	bookings BookingRepository,
	events EventRepository,
	payments PaymentRecordRepository,
	gateway PaymentGateway,
	subs ActiveSubscriptionReader,
	notifications *NotificationService,
	defaultRate float64,
) *BookingService {
	if tx == nil {
		tx = noTx{}
	}
	if defaultRate <= 0 {
		defaultRate = pricing.DefaultCommissionRate
	}
	return &BookingService{
		tx:            tx,
		bookings:      bookings,
		events:        events,
		payments:      payments,
		gateway:       gateway,
		notifications: notifications,
		plans:         planResolver{subs: subs},
		defaultRate:   defaultRate,
		now:           time.Now,
	}
}

// CreateBookingInput is a booking request from an organizer
type CreateBookingInput struct {
	OrganizerID string  `json:"-"`
	EventID     string  `json:"eventId"`
	ArtistID    string  `json:"artistId"`
	ProposedFee int64   `json:"proposedFee"` // cents
	Message     *string `json:"message,omitempty"`
}

// CreateBooking sends a booking request to an artist for one of the organizer's events
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	if in.EventID == "" || in.ArtistID == "" {
		return nil, apperrors.NewValidationError("eventId", "Please fill in all required fields")
	}
	if in.ProposedFee <= 0 {
		return nil, apperrors.NewValidationError("proposedFee", "Proposed fee must be greater than zero")
	}
	if in.ArtistID == in.OrganizerID {
		return nil, apperrors.NewInvalidParameterError("artistId", "you cannot book yourself")
	}

	event, err := s.events.GetByID(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != in.OrganizerID {
		return nil, apperrors.NewForbiddenError("You can only book artists for your own events")
	}
	if !event.Status.AcceptsBookings() {
		return nil, apperrors.NewConflictError(fmt.Sprintf("event is %s and is not accepting bookings", event.Status))
	}

	exists, err := s.bookings.ExistsActive(ctx, in.EventID, in.ArtistID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.NewConflictError("This artist already has an open booking for this event")
	}

	b := &models.Booking{
		EventID:       in.EventID,
		ArtistID:      in.ArtistID,
		OrganizerID:   in.OrganizerID,
		Status:        types.BookingStatusPending,
		ProposedFee:   in.ProposedFee,
		Message:       trimmedOrNil(in.Message),
		PaymentStatus: types.PaymentStatusUnpaid,
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, err
	}

	s.notifications.notify(ctx, b.ArtistID, types.NotificationBookingRequest,
		"New Booking Request",
		fmt.Sprintf("You have a new booking request for \"%s\" ($%s).", event.Title, pricing.FormatCents(b.ProposedFee)),
		map[string]interface{}{"booking_id": b.ID, "event_id": event.ID})

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"bookingId": b.ID,
		"eventId":   b.EventID,
		"artistId":  b.ArtistID,
	}).Info("Booking requested")
	return b, nil
}

// RespondInput is an artist's answer to a booking request
type RespondInput struct {
	ArtistID      string  `json:"-"`
	BookingID     string  `json:"-"`
	Accept        bool    `json:"accept"`
	FinalFee      int64   `json:"finalFee,omitempty"` // cents, defaults to the proposed fee
	ContractTerms *string `json:"contractTerms,omitempty"`
}

// RespondToBooking accepts or declines a pending booking
func (s *BookingService) RespondToBooking(ctx context.Context, in RespondInput) (*models.BookingWithEvent, error) {
	b, err := s.bookings.GetByID(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if b.ArtistID != in.ArtistID {
		return nil, apperrors.NewForbiddenError("Only the booked artist can respond to this request")
	}
	if b.Status != types.BookingStatusPending {
		return nil, apperrors.NewConflictError("booking is no longer pending")
	}
	if in.FinalFee < 0 {
		return nil, apperrors.NewValidationError("finalFee", "Final fee cannot be negative")
	}

	status := types.BookingStatusDeclined
	finalFee := b.FinalFee
	if in.Accept {
		status = types.BookingStatusAccepted
		finalFee = in.FinalFee
		if finalFee == 0 {
			finalFee = b.ProposedFee
		}
	}
	terms := trimmedOrNil(in.ContractTerms)
	if err := s.bookings.UpdateResponse(ctx, b.ID, status, finalFee, terms); err != nil {
		return nil, err
	}
	b.Status, b.FinalFee = status, finalFee
	if terms != nil {
		b.ContractTerms = terms
	}

	notificationType, title, verb := types.NotificationBookingDeclined, "Booking Declined", "declined"
	if in.Accept {
		notificationType, title, verb = types.NotificationBookingAccepted, "Booking Accepted", "accepted"
	}
	s.notifications.notify(ctx, b.OrganizerID, notificationType, title,
		fmt.Sprintf("Your booking request for \"%s\" was %s.", b.EventTitle, verb),
		map[string]interface{}{"booking_id": b.ID})

	return b, nil
}

// CancelBooking cancels an unpaid booking. Either party may cancel.
func (s *BookingService) CancelBooking(ctx context.Context, userID, id string) (*models.BookingWithEvent, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.ArtistID != userID && b.OrganizerID != userID {
		return nil, apperrors.NewNotFoundError("booking", id)
	}
	if b.PaymentStatus != types.PaymentStatusUnpaid {
		return nil, apperrors.NewConflictError("Paid bookings cannot be cancelled")
	}
	if err := s.bookings.Cancel(ctx, id); err != nil {
		return nil, err
	}
	b.Status = types.BookingStatusCancelled

	other := b.ArtistID
	if userID == b.ArtistID {
		other = b.OrganizerID
	}
	s.notifications.notify(ctx, other, types.NotificationBookingCancelled, "Booking Cancelled",
		fmt.Sprintf("The booking for \"%s\" has been cancelled.", b.EventTitle),
		map[string]interface{}{"booking_id": b.ID})
	return b, nil
}

// ListBookings lists a user's bookings as artist or organizer, newest first
func (s *BookingService) ListBookings(ctx context.Context, userID string, role types.UserRole) ([]*models.BookingWithEvent, error) {
	switch role {
	case types.RoleArtist:
		return s.bookings.ListByArtist(ctx, userID)
	case types.RolePromoter:
		return s.bookings.ListByOrganizer(ctx, userID)
	default:
		return nil, apperrors.NewInvalidParameterError("role", "must be artist or promoter")
	}
}

// GetBooking returns a booking visible to userID
func (s *BookingService) GetBooking(ctx context.Context, userID, id string) (*models.BookingWithEvent, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.ArtistID != userID && b.OrganizerID != userID {
		return nil, apperrors.NewNotFoundError("booking", id)
	}
	return b, nil
}

// QuoteBooking returns what the organizer would be charged for a booking
func (s *BookingService) QuoteBooking(ctx context.Context, userID, id string) (*pricing.BookingCharge, error) {
	b, err := s.GetBooking(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.quote(ctx, &b.Booking)
}

func (s *BookingService) quote(ctx context.Context, b *models.Booking) (*pricing.BookingCharge, error) {
	artistPlan, err := s.plans.activePlan(ctx, b.ArtistID)
	if err != nil {
		return nil, err
	}
	organizerPlan, err := s.plans.activePlan(ctx, b.OrganizerID)
	if err != nil {
		return nil, err
	}
	rate := pricing.CommissionRate(s.defaultRate, artistPlan, organizerPlan)
	charge, err := pricing.CalculateBookingCharge(b.Fee(), rate)
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

// PayBookingInput is an organizer paying for an accepted booking
type PayBookingInput struct {
	OrganizerID    string `json:"-"`
	BookingID      string `json:"-"`
	SourceID       string `json:"sourceId"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
	BuyerEmail     string `json:"buyerEmail,omitempty"`
}

// PaymentResult is the outcome of a successful charge
type PaymentResult struct {
	Booking *models.BookingWithEvent `json:"booking"`
	Charge  pricing.BookingCharge    `json:"charge"`
	Payment *models.PaymentRecord    `json:"payment"`
}

// PayBooking charges the organizer for an accepted booking, marks it paid,
// records the payment and tells the artist.
func (s *BookingService) PayBooking(ctx context.Context, in PayBookingInput) (*PaymentResult, error) {
	if strings.TrimSpace(in.SourceID) == "" {
		return nil, apperrors.NewValidationError("sourceId", "Payment source is required")
	}
	b, err := s.bookings.GetByID(ctx, in.BookingID)
	if err != nil {
		return nil, err
	}
	if b.OrganizerID != in.OrganizerID {
		return nil, apperrors.NewForbiddenError("Only the organizer can pay for this booking")
	}
	if b.Status != types.BookingStatusAccepted {
		return nil, apperrors.NewConflictError("Only accepted bookings can be paid")
	}
	if b.PaymentStatus != types.PaymentStatusUnpaid {
		return nil, apperrors.NewConflictError("booking is already paid")
	}

	charge, err := s.quote(ctx, &b.Booking)
	if err != nil {
		return nil, err
	}

	// Each attempt gets its own key; Square rejects a reused key with a new source.
	key := in.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	payment, err := s.gateway.CreatePayment(ctx, adapter.PaymentRequest{
		SourceID:       in.SourceID,
		IdempotencyKey: key,
		AmountCents:    charge.Total,
		ReferenceID:    b.ID,
		Note:           fmt.Sprintf("Booking: %s", b.EventTitle),
		BuyerEmail:     in.BuyerEmail,
	})
	if err != nil {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"bookingId":      b.ID,
			"idempotencyKey": key,
		}).WithError(err).Warn("Booking payment failed")
		return nil, err
	}

	paidAt := s.now().UTC()
	record := &models.PaymentRecord{
		UserID:      in.OrganizerID,
		PaymentID:   payment.ID,
		Amount:      charge.Total,
		Currency:    payment.AmountMoney.Currency,
		Status:      payment.Status,
		PaymentType: types.PaymentTypeBooking,
		BookingID:   &b.ID,
		ArtistFee:   &charge.ArtistFee,
		PlatformFee: &charge.PlatformFee,
	}
	if payment.AmountMoney.Amount > 0 {
		record.Amount = payment.AmountMoney.Amount
	}
	if payment.ReceiptURL != "" {
		record.ReceiptURL = &payment.ReceiptURL
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.bookings.MarkPaid(ctx, b.ID, payment.ID, paidAt); err != nil {
			return err
		}
		return s.payments.Create(ctx, record)
	})
	if err != nil {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"bookingId": b.ID,
			"paymentId": payment.ID,
		}).WithError(err).Error("Payment captured but booking update failed")
		return nil, err
	}
	b.PaymentStatus = types.PaymentStatusPaid
	b.PaymentID = &payment.ID
	b.PaymentDate = &paidAt

	s.notifications.notify(ctx, b.ArtistID, types.NotificationBookingPaid, "Booking Payment Received",
		fmt.Sprintf("Payment for \"%s\" has been processed. You'll receive your payment within 2-3 business days.", b.EventTitle),
		map[string]interface{}{"booking_id": b.ID})

	return &PaymentResult{Booking: b, Charge: *charge, Payment: record}, nil
}

// ListPayments lists a user's payment records, newest first
func (s *BookingService) ListPayments(ctx context.Context, userID string) ([]*models.PaymentRecord, error) {
	return s.payments.ListByUser(ctx, userID)
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
