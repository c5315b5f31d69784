// Package models provides data models for the Live Vibe marketplace.
package models

import (
	"strings"
	"time"

	apperrors "github.com/live-vibe/internal/errors"
)

// SocialLinks holds the optional social profile handles shared by artist and promoter profiles
type SocialLinks struct {
	Instagram *string `json:"instagram,omitempty" db:"instagram"`
	TikTok    *string `json:"tiktok,omitempty" db:"tiktok"`
	Pinterest *string `json:"pinterest,omitempty" db:"pinterest"`
	YouTube   *string `json:"youtube,omitempty" db:"youtube"`
	Behance   *string `json:"behance,omitempty" db:"behance"`
	Facebook  *string `json:"facebook,omitempty" db:"facebook"`
	LinkedIn  *string `json:"linkedin,omitempty" db:"linkedin"`
	Spotify   *string `json:"spotify,omitempty" db:"spotify"`
}

// ArtistProfile is the marketplace listing of an artist
type ArtistProfile struct {
	ID                   string    `json:"id" db:"id"`
	UserID               string    `json:"userId" db:"user_id"`
	Name                 string    `json:"name" db:"name"`
	PhoneNumber          *string   `json:"phoneNumber,omitempty" db:"phone_number"`
	City                 string    `json:"city" db:"city"`
	State                *string   `json:"state,omitempty" db:"state"`
	Country              string    `json:"country" db:"country"`
	TravelDistance       *int      `json:"travelDistance,omitempty" db:"travel_distance"` // miles
	ProfilePhotoURL      *string   `json:"profilePhotoUrl,omitempty" db:"profile_photo_url"`
	ArtistType           *string   `json:"artistType,omitempty" db:"artist_type"`
	VisualArtistCategory *string   `json:"visualArtistCategory,omitempty" db:"visual_artist_category"`
	PerformingArtistType *string   `json:"performingArtistType,omitempty" db:"performing_artist_type"`
	MusicGenres          []string  `json:"musicGenres" db:"music_genres"`
	Instruments          []string  `json:"instruments" db:"instruments"`
	SubscriptionPlan     string    `json:"subscriptionPlan" db:"subscription_plan"`
	SocialLinks
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Validate checks the fields required before a profile can be saved
func (p *ArtistProfile) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return apperrors.NewValidationError("userId", "User is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperrors.NewValidationError("name", "Name is required")
	}
	if strings.TrimSpace(p.City) == "" {
		return apperrors.NewValidationError("city", "City is required")
	}
	if strings.TrimSpace(p.Country) == "" {
		return apperrors.NewValidationError("country", "Country is required")
	}
	if p.TravelDistance != nil && *p.TravelDistance < 0 {
		return apperrors.NewValidationError("travelDistance", "Travel distance cannot be negative")
	}
	return nil
}

// PromoterProfile is the marketplace listing of an event organizer
type PromoterProfile struct {
	ID               string  `json:"id" db:"id"`
	UserID           string  `json:"userId" db:"user_id"`
	Name             string  `json:"name" db:"name"`
	PhoneNumber      *string `json:"phoneNumber,omitempty" db:"phone_number"`
	City             *string `json:"city,omitempty" db:"city"`
	State            *string `json:"state,omitempty" db:"state"`
	Country          *string `json:"country,omitempty" db:"country"`
	NumberOfClients  *int    `json:"numberOfClients,omitempty" db:"number_of_clients"`
	ProfilePhotoURL  *string `json:"profilePhotoUrl,omitempty" db:"profile_photo_url"`
	PromoterType     string  `json:"promoterType" db:"promoter_type"`
	SubscriptionPlan string  `json:"subscriptionPlan" db:"subscription_plan"`
	SocialLinks
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Validate checks the fields required before a profile can be saved
func (p *PromoterProfile) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return apperrors.NewValidationError("userId", "User is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperrors.NewValidationError("name", "Name is required")
	}
	if strings.TrimSpace(p.PromoterType) == "" {
		return apperrors.NewValidationError("promoterType", "Promoter type is required")
	}
	if p.NumberOfClients != nil && *p.NumberOfClients < 0 {
		return apperrors.NewValidationError("numberOfClients", "Number of clients cannot be negative")
	}
	return nil
}

// ArtistFilter narrows marketplace artist listings. Empty fields match everything.
type ArtistFilter struct {
	City       string
	ArtistType string
	Genre      string
	Limit      int
	Offset     int
}

// ArtistAvailability marks a date an artist can or cannot perform
type ArtistAvailability struct {
	ID          string    `json:"id" db:"id"`
	ArtistID    string    `json:"artistId" db:"artist_id"`
	Date        time.Time `json:"date" db:"date"`
	StartTime   *string   `json:"startTime,omitempty" db:"start_time"` // HH:MM
	EndTime     *string   `json:"endTime,omitempty" db:"end_time"`
	IsAvailable bool      `json:"isAvailable" db:"is_available"`
	BookingID   *string   `json:"bookingId,omitempty" db:"booking_id"`
	Notes       *string   `json:"notes,omitempty" db:"notes"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// Validate checks the availability slot is well formed
func (a *ArtistAvailability) Validate() error {
	if a.ArtistID == "" {
		return apperrors.NewValidationError("artistId", "Artist is required")
	}
	if a.Date.IsZero() {
		return apperrors.NewValidationError("date", "Date is required")
	}
	var start, end time.Time
	var err error
	if a.StartTime != nil {
		if start, err = time.Parse("15:04", *a.StartTime); err != nil {
			return apperrors.NewValidationError("startTime", "Start time must be HH:MM")
		}
	}
	if a.EndTime != nil {
		if end, err = time.Parse("15:04", *a.EndTime); err != nil {
			return apperrors.NewValidationError("endTime", "End time must be HH:MM")
		}
	}
	if a.StartTime != nil && a.EndTime != nil && !end.After(start) {
		return apperrors.NewValidationError("endTime", "End time must be after start time")
	}
	return nil
}
