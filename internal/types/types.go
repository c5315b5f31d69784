// Package types provides common type definitions for the Live Vibe marketplace.
package types

// UserRole identifies which side of the marketplace a user acts on
type UserRole string

const (
	// RoleArtist represents a performing or visual artist
	RoleArtist UserRole = "artist"
	// RolePromoter represents an event organizer
	RolePromoter UserRole = "promoter"
)

// Valid reports whether the role is known
func (r UserRole) Valid() bool {
	return r == RoleArtist || r == RolePromoter
}

// EventStatus represents the lifecycle of an event
type EventStatus string

const (
	EventStatusDraft       EventStatus = "draft"
	EventStatusPublished   EventStatus = "published"
	EventStatusBookingOpen EventStatus = "booking_open"
	EventStatusBooked      EventStatus = "booked"
	EventStatusCompleted   EventStatus = "completed"
	EventStatusCancelled   EventStatus = "cancelled"
)

// Valid reports whether the status is known
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusDraft, EventStatusPublished, EventStatusBookingOpen,
		EventStatusBooked, EventStatusCompleted, EventStatusCancelled:
		return true
	}
	return false
}

// AcceptsBookings reports whether artists can be booked for an event in this status
func (s EventStatus) AcceptsBookings() bool {
	return s == EventStatusPublished || s == EventStatusBookingOpen
}

// BookingStatus represents the negotiation state of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusAccepted  BookingStatus = "accepted"
	BookingStatusDeclined  BookingStatus = "declined"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// PaymentStatus represents whether a booking has been paid
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PaymentType distinguishes payment records
type PaymentType string

const (
	PaymentTypeBooking      PaymentType = "booking"
	PaymentTypeSubscription PaymentType = "subscription"
)

// PlanType is the audience a subscription plan is sold to
type PlanType string

const (
	PlanTypeArtist   PlanType = "artist"
	PlanTypePromoter PlanType = "promoter"
)

// PlanTier orders plans from free to premium
type PlanTier string

const (
	PlanTierStarter PlanTier = "starter"
	PlanTierPro     PlanTier = "pro"
	PlanTierElite   PlanTier = "elite"
)

// BillingCycle is the renewal period of a subscription
type BillingCycle string

const (
	BillingMonthly BillingCycle = "monthly"
	BillingYearly  BillingCycle = "yearly"
)

// Valid reports whether the cycle is known
func (c BillingCycle) Valid() bool {
	return c == BillingMonthly || c == BillingYearly
}

// SubscriptionStatus represents the state of a user subscription
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// ProjectType is the kind of AI studio project
type ProjectType string

const (
	ProjectMusicVideo  ProjectType = "music_video"
	ProjectAudioVisual ProjectType = "audio_visual"
	ProjectLyricVideo  ProjectType = "lyric_video"
)

// Valid reports whether the project type is known
func (p ProjectType) Valid() bool {
	return p == ProjectMusicVideo || p == ProjectAudioVisual || p == ProjectLyricVideo
}

// ProjectStatus represents AI project generation progress
type ProjectStatus string

const (
	// ProjectDraft has not been submitted for generation
	ProjectDraft ProjectStatus = "draft"
	// ProjectProcessing has a task running at the video provider
	ProjectProcessing ProjectStatus = "processing"
	// ProjectCompleted has an output video
	ProjectCompleted ProjectStatus = "completed"
	// ProjectFailed ended with an error or poll timeout
	ProjectFailed ProjectStatus = "failed"
)

// Terminal reports whether no further polling is needed
func (s ProjectStatus) Terminal() bool {
	return s == ProjectCompleted || s == ProjectFailed
}

// UploadStatus tracks the YouTube upload of a finished project
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadCompleted UploadStatus = "completed"
	UploadFailed    UploadStatus = "failed"
)

// KlingTaskStatus is the provider-side state of a video task
type KlingTaskStatus string

const (
	KlingTaskSubmitted  KlingTaskStatus = "submitted"
	KlingTaskProcessing KlingTaskStatus = "processing"
	KlingTaskSucceed    KlingTaskStatus = "succeed"
	KlingTaskFailed     KlingTaskStatus = "failed"
)

// Notification types emitted by the platform
const (
	NotificationBookingRequest      = "booking_request"
	NotificationBookingAccepted     = "booking_accepted"
	NotificationBookingDeclined     = "booking_declined"
	NotificationBookingCancelled    = "booking_cancelled"
	NotificationBookingPaid         = "booking_paid"
	NotificationSubscriptionActive  = "subscription_active"
	NotificationSubscriptionExpired = "subscription_expired"
	NotificationVideoReady          = "ai_video_ready"
	NotificationVideoFailed         = "ai_video_failed"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
