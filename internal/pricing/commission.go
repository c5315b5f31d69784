// Package pricing holds the money rules of the marketplace: booking
// commission, dollar and cent conversion and subscription billing periods.
// All amounts are integer cents.
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/types"
)

// DefaultCommissionRate is charged when neither party has a plan with a reduced rate
const DefaultCommissionRate = 0.10

var hundred = decimal.NewFromInt(100)

// BookingCharge is the breakdown of what an organizer pays for a booking
type BookingCharge struct {
	ArtistFee   int64   `json:"artistFee"`
	PlatformFee int64   `json:"platformFee"`
	Total       int64   `json:"total"`
	Rate        float64 `json:"commissionRate"`
}

// CalculateBookingCharge computes platform_fee = round(fee * rate) and
// total = fee + platform_fee. Rounding is half away from zero.
func CalculateBookingCharge(fee int64, rate float64) (BookingCharge, error) {
	if fee < 0 {
		return BookingCharge{}, apperrors.NewInvalidParameterError("fee", "must not be negative")
	}
	if rate < 0 || rate >= 1 {
		return BookingCharge{}, apperrors.NewInvalidParameterError("rate", fmt.Sprintf("must be in [0, 1), got %v", rate))
	}

	platform := decimal.NewFromInt(fee).Mul(decimal.NewFromFloat(rate)).Round(0).IntPart()
	return BookingCharge{
		ArtistFee:   fee,
		PlatformFee: platform,
		Total:       fee + platform,
		Rate:        rate,
	}, nil
}

// CommissionRate picks the rate for a booking between an artist and an
// organizer. Elite plans on either side lower the rate; the lowest
// configured rate wins. Nil plans are ignored.
func CommissionRate(defaultRate float64, plans ...*models.SubscriptionPlan) float64 {
	rate := defaultRate
	for _, p := range plans {
		if p == nil || p.CommissionRate <= 0 {
			continue
		}
		if p.CommissionRate < rate {
			rate = p.CommissionRate
		}
	}
	return rate
}

// DollarsToCents converts a dollar amount to cents, rounding to the nearest cent
func DollarsToCents(dollars float64) int64 {
	return decimal.NewFromFloat(dollars).Mul(hundred).Round(0).IntPart()
}

// FormatCents renders cents as a dollar amount with two decimals, e.g. 1500 -> "15.00"
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// PeriodEnd returns the end of a billing period starting at start
func PeriodEnd(start time.Time, cycle types.BillingCycle) time.Time {
	if cycle == types.BillingYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

// YearlySavings is what a yearly subscriber saves against twelve monthly payments
func YearlySavings(plan *models.SubscriptionPlan) int64 {
	savings := plan.PriceMonthly*12 - plan.PriceYearly
	if savings < 0 || plan.PriceYearly == 0 {
		return 0
	}
	return savings
}

// MonthlyEquivalent spreads a yearly price over twelve months
func MonthlyEquivalent(yearly int64) int64 {
	return decimal.NewFromInt(yearly).Div(decimal.NewFromInt(12)).Round(0).IntPart()
}
