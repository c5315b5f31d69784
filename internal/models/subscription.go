package models

import (
	"time"

	"github.com/live-vibe/internal/types"
)

// Unlimited marks a plan allowance with no cap
const Unlimited = -1

// SubscriptionPlan is a sellable tier. Prices are in cents.
type SubscriptionPlan struct {
	ID             string         `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	Type           types.PlanType `json:"type" db:"type"`
	Tier           types.PlanTier `json:"tier" db:"tier"`
	PriceMonthly   int64          `json:"priceMonthly" db:"price_monthly"`
	PriceYearly    int64          `json:"priceYearly" db:"price_yearly"`
	Features       []string       `json:"features" db:"features"`
	CommissionRate float64        `json:"commissionRate" db:"commission_rate"`
	AIGenerations  int            `json:"aiGenerations" db:"ai_generations"`
	PortfolioLimit int            `json:"portfolioLimit" db:"portfolio_limit"`
	Active         bool           `json:"active" db:"active"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at"`

	// Square subscription plan variation ids; nil when the cadence is not
	// billed through Square Subscriptions
	SquareMonthlyPlanID *string `json:"squareMonthlyPlanId,omitempty" db:"square_monthly_plan_id"`
	SquareYearlyPlanID  *string `json:"squareYearlyPlanId,omitempty" db:"square_yearly_plan_id"`
}

// Price returns the plan price for a billing cycle
func (p *SubscriptionPlan) Price(cycle types.BillingCycle) int64 {
	if cycle == types.BillingYearly {
		return p.PriceYearly
	}
	return p.PriceMonthly
}

// SquarePlanID returns the Square plan variation for a billing cycle, or ""
func (p *SubscriptionPlan) SquarePlanID(cycle types.BillingCycle) string {
	id := p.SquareMonthlyPlanID
	if cycle == types.BillingYearly {
		id = p.SquareYearlyPlanID
	}
	if id == nil {
		return ""
	}
	return *id
}

// IsFree reports whether the plan costs nothing on either cycle
func (p *SubscriptionPlan) IsFree() bool {
	return p.PriceMonthly == 0 && p.PriceYearly == 0
}

// UserSubscription is a user's current plan
type UserSubscription struct {
	ID                   string                   `json:"id" db:"id"`
	UserID               string                   `json:"userId" db:"user_id"`
	PlanID               string                   `json:"planId" db:"plan_id"`
	Status               types.SubscriptionStatus `json:"status" db:"status"`
	BillingCycle         types.BillingCycle       `json:"billingCycle" db:"billing_cycle"`
	CurrentPeriodStart   time.Time                `json:"currentPeriodStart" db:"current_period_start"`
	CurrentPeriodEnd     time.Time                `json:"currentPeriodEnd" db:"current_period_end"`
	SquareCustomerID     *string                  `json:"squareCustomerId,omitempty" db:"square_customer_id"`
	SquareSubscriptionID *string                  `json:"squareSubscriptionId,omitempty" db:"square_subscription_id"`
	CreatedAt            time.Time                `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time                `json:"updatedAt" db:"updated_at"`
}

// SubscriptionWithPlan joins a subscription to its plan
type SubscriptionWithPlan struct {
	UserSubscription
	Plan SubscriptionPlan `json:"plan"`
}

// PaymentRecord stores one successful charge. Amounts are in cents.
type PaymentRecord struct {
	ID           string            `json:"id" db:"id"`
	UserID       string            `json:"userId" db:"user_id"`
	PaymentID    string            `json:"paymentId" db:"payment_id"`
	Amount       int64             `json:"amount" db:"amount"`
	Currency     string            `json:"currency" db:"currency"`
	Status       string            `json:"status" db:"status"`
	PaymentType  types.PaymentType `json:"paymentType" db:"payment_type"`
	BookingID    *string           `json:"bookingId,omitempty" db:"booking_id"`
	PlanID       *string           `json:"planId,omitempty" db:"plan_id"`
	BillingCycle *string           `json:"billingCycle,omitempty" db:"billing_cycle"`
	ArtistFee    *int64            `json:"artistFee,omitempty" db:"artist_fee"`
	PlatformFee  *int64            `json:"platformFee,omitempty" db:"platform_fee"`
	ReceiptURL   *string           `json:"receiptUrl,omitempty" db:"receipt_url"`
	CreatedAt    time.Time         `json:"createdAt" db:"created_at"`
}
