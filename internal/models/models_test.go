package models

import (
	"testing"
	"time"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.openly.dev/pointy"
)

func TestArtistProfile_Validate(t *testing.T) {
	valid := func() *ArtistProfile {
		return &ArtistProfile{UserID: "u1", Name: "DJ Nova", City: "Austin", Country: "US"}
	}

	tests := []struct {
		name      string
		mutate    func(p *ArtistProfile)
		wantField string
	}{
		{"valid", func(p *ArtistProfile) {}, ""},
		{"missing name", func(p *ArtistProfile) { p.Name = "  " }, "name"},
		{"missing city", func(p *ArtistProfile) { p.City = "" }, "city"},
		{"missing country", func(p *ArtistProfile) { p.Country = "" }, "country"},
		{"negative travel distance", func(p *ArtistProfile) { p.TravelDistance = pointy.Int(-5) }, "travelDistance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)
			err := p.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			cat := apperrors.Categorize(err)
			assert.Equal(t, apperrors.CodeValidationFailed, cat.Code)
			assert.Equal(t, tt.wantField, cat.Details["field"])
		})
	}
}

func TestPromoterProfile_Validate(t *testing.T) {
	p := &PromoterProfile{UserID: "u1", Name: "Night Owl Events"}
	assert.Error(t, p.Validate())

	p.PromoterType = "venue"
	assert.NoError(t, p.Validate())
}

func TestEvent_Validate(t *testing.T) {
	e := &Event{Title: "Summer Jam", EventDate: time.Now().Add(48 * time.Hour), VenueName: "The Mohawk"}
	assert.NoError(t, e.Validate())

	e.BudgetMin, e.BudgetMax = 50000, 20000
	assert.Error(t, e.Validate())

	e.BudgetMin, e.BudgetMax = 0, 0
	e.VenueName = ""
	assert.Error(t, e.Validate())

	e.VenueName = "The Mohawk"
	e.Status = types.EventStatus("archived")
	assert.Error(t, e.Validate())
}

func TestBooking_Fee(t *testing.T) {
	b := &Booking{ProposedFee: 50000}
	assert.Equal(t, int64(50000), b.Fee())

	b.FinalFee = 65000
	assert.Equal(t, int64(65000), b.Fee())
}

func TestAIProject_Validate(t *testing.T) {
	p := &AIProject{
		Title:       "Midnight Drive",
		ProjectType: types.ProjectMusicVideo,
		Lyrics:      "city lights",
		Mood:        "Energetic",
		Theme:       "Urban",
		Style:       "Cinematic",
	}
	assert.NoError(t, p.Validate())

	p.Theme = ""
	err := p.Validate()
	require.Error(t, err)
	assert.Equal(t, "Theme is required", apperrors.Categorize(err).Message)

	p.Theme = "Urban"
	p.ProjectType = "podcast"
	assert.Error(t, p.Validate())
}

func TestAIGenerationUsage(t *testing.T) {
	u := &AIGenerationUsage{GenerationsUsed: 1, PlanLimit: 1}
	assert.False(t, u.CanGenerate())
	assert.Equal(t, 0, u.Remaining())

	u.PlanLimit = 10
	assert.True(t, u.CanGenerate())
	assert.Equal(t, 9, u.Remaining())

	u.PlanLimit = Unlimited
	u.GenerationsUsed = 500
	assert.True(t, u.CanGenerate())
	assert.Equal(t, Unlimited, u.Remaining())
}

func TestMonthYear(t *testing.T) {
	assert.Equal(t, "2026-03", MonthYear(time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)))
}

func TestArtistAvailability_Validate(t *testing.T) {
	a := &ArtistAvailability{ArtistID: "a1", Date: time.Now(), StartTime: pointy.String("20:00"), EndTime: pointy.String("23:30")}
	assert.NoError(t, a.Validate())

	a.EndTime = pointy.String("19:00")
	assert.Error(t, a.Validate())

	a.EndTime = pointy.String("late")
	assert.Error(t, a.Validate())
}

func TestSubscriptionPlan_Price(t *testing.T) {
	p := &SubscriptionPlan{PriceMonthly: 1500, PriceYearly: 15000}
	assert.Equal(t, int64(1500), p.Price(types.BillingMonthly))
	assert.Equal(t, int64(15000), p.Price(types.BillingYearly))
	assert.False(t, p.IsFree())
	assert.True(t, (&SubscriptionPlan{}).IsFree())
}
