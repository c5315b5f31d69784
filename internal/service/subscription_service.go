package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/live-vibe/internal/adapter"
	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/pricing"
	"github.com/live-vibe/internal/storage"
	"github.com/live-vibe/internal/types"
)

// planChangeExtension is how far a plan change pushes the period end
const planChangeExtension = 30 * 24 * time.Hour

// expiryBatchSize bounds each expiry query
const expiryBatchSize = 100

// SubscriptionRepository persists user subscriptions
type SubscriptionRepository interface {
	ActiveSubscriptionReader
	Upsert(ctx context.Context, s *models.UserSubscription) error
	ChangePlan(ctx context.Context, userID, planID string, periodEnd time.Time) error
	SetStatus(ctx context.Context, userID string, status types.SubscriptionStatus) error
	ExpireDue(ctx context.Context, now time.Time, limit int) ([]*models.UserSubscription, error)
	RenewDue(ctx context.Context, now time.Time, limit int) ([]*models.UserSubscription, error)
}

// PlanAssigner mirrors a user's plan onto their profiles
type PlanAssigner interface {
	SetSubscriptionPlan(ctx context.Context, userID, planID string) error
}

// SubscriptionService sells plans and keeps subscriptions current
type SubscriptionService struct {
	tx            TxRunner
	plans         PlanReader
	subs          SubscriptionRepository
	payments      PaymentRecordRepository
	usage         UsageRepository
	profiles      PlanAssigner
	gateway       PaymentGateway
	notifications *NotificationService
	cache         *storage.CacheService
	planTTL       time.Duration
	now           func() time.Time
}

// SubscriptionDeps groups the collaborators of SubscriptionService
type SubscriptionDeps struct {
	Tx            TxRunner
	Plans         PlanReader
	Subscriptions SubscriptionRepository
	Payments      PaymentRecordRepository
	Usage         UsageRepository
	Profiles      PlanAssigner
	Gateway       PaymentGateway
	Notifications *NotificationService
	Cache         *storage.CacheService // optional
	PlanTTL       time.Duration
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(deps SubscriptionDeps) *SubscriptionService {
	tx := deps.Tx
	if tx == nil {
		tx = noTx{}
	}
	ttl := deps.PlanTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SubscriptionService{
		tx:            tx,
		plans:         deps.Plans,
		subs:          deps.Subscriptions,
		payments:      deps.Payments,
		usage:         deps.Usage,
		profiles:      deps.Profiles,
		gateway:       deps.Gateway,
		notifications: deps.Notifications,
		cache:         deps.Cache,
		planTTL:       ttl,
		now:           time.Now,
	}
}

// ListPlans lists active plans of planType (all types when empty), cheapest first
func (s *SubscriptionService) ListPlans(ctx context.Context, planType types.PlanType) ([]*models.SubscriptionPlan, error) {
	if planType != "" && planType != types.PlanTypeArtist && planType != types.PlanTypePromoter {
		return nil, apperrors.NewInvalidParameterError("type", "must be artist or promoter")
	}

	return storage.Remember(ctx, s.cache, storage.PlansKey(string(planType)), s.planTTL,
		func(ctx context.Context) ([]*models.SubscriptionPlan, error) {
			return s.plans.ListActive(ctx, planType)
		})
}

// GetPlan returns a plan by id
func (s *SubscriptionService) GetPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	return storage.Remember(ctx, s.cache, storage.PlanKey(id), s.planTTL,
		func(ctx context.Context) (*models.SubscriptionPlan, error) {
			return s.plans.GetByID(ctx, id)
		})
}

// GetCurrentSubscription returns the user's active subscription with its plan
func (s *SubscriptionService) GetCurrentSubscription(ctx context.Context, userID string) (*models.SubscriptionWithPlan, error) {
	return s.subs.GetActiveWithPlan(ctx, userID)
}

// SubscribeInput is a plan purchase
type SubscribeInput struct {
	UserID         string             `json:"-"`
	Email          string             `json:"-"`
	PlanID         string             `json:"planId"`
	BillingCycle   types.BillingCycle `json:"billingCycle"`
	SourceID       string             `json:"sourceId,omitempty"`
	IdempotencyKey string             `json:"idempotencyKey,omitempty"`
}

// Subscribe charges for a plan and activates it for the billing cycle.
// Free plans activate without a charge. When the plan has a Square plan
// variation for the cycle, the card is stored on file and a Square
// subscription starting at the period end bills the renewals.
func (s *SubscriptionService) Subscribe(ctx context.Context, in SubscribeInput) (*models.SubscriptionWithPlan, error) {
	if in.BillingCycle == "" {
		in.BillingCycle = types.BillingMonthly
	}
	if !in.BillingCycle.Valid() {
		return nil, apperrors.NewValidationError("billingCycle", "Billing cycle must be monthly or yearly")
	}
	plan, err := s.GetPlan(ctx, in.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, apperrors.NewConflictError(fmt.Sprintf("plan %s is no longer offered", plan.ID))
	}

	previous, err := s.subs.GetActiveWithPlan(ctx, in.UserID)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}

	price := plan.Price(in.BillingCycle)
	squarePlan := plan.SquarePlanID(in.BillingCycle)
	var (
		customerID *string
		cardID     string
		record     *models.PaymentRecord
	)
	if price > 0 {
		if strings.TrimSpace(in.SourceID) == "" {
			return nil, apperrors.NewValidationError("sourceId", "Payment source is required")
		}
		customer, err := s.gateway.CreateCustomer(ctx, adapter.CustomerRequest{
			GivenName:    givenName(in.Email),
			EmailAddress: in.Email,
			ReferenceID:  in.UserID,
		})
		if err != nil {
			return nil, err
		}
		customerID = &customer.ID

		source := in.SourceID
		if squarePlan != "" {
			// The nonce is single use, so the stored card pays the first period too.
			card, err := s.gateway.CreateCard(ctx, adapter.CardRequest{SourceID: in.SourceID, CustomerID: customer.ID})
			if err != nil {
				return nil, err
			}
			cardID = card.ID
			source = card.ID
		}

		payment, err := s.gateway.CreatePayment(ctx, adapter.PaymentRequest{
			SourceID:       source,
			IdempotencyKey: in.IdempotencyKey,
			AmountCents:    price,
			CustomerID:     customer.ID,
			ReferenceID:    plan.ID,
			Note:           fmt.Sprintf("Subscription: %s (%s)", plan.Name, in.BillingCycle),
			BuyerEmail:     in.Email,
		})
		if err != nil {
			logging.FromContext(ctx).WithField("planId", plan.ID).WithError(err).Warn("Subscription payment failed")
			return nil, err
		}

		cycle := string(in.BillingCycle)
		record = &models.PaymentRecord{
			UserID:       in.UserID,
			PaymentID:    payment.ID,
			Amount:       price,
			Currency:     payment.AmountMoney.Currency,
			Status:       payment.Status,
			PaymentType:  types.PaymentTypeSubscription,
			PlanID:       &plan.ID,
			BillingCycle: &cycle,
		}
		if payment.AmountMoney.Amount > 0 {
			record.Amount = payment.AmountMoney.Amount
		}
		if payment.ReceiptURL != "" {
			record.ReceiptURL = &payment.ReceiptURL
		}
	}

	start := s.now().UTC()
	sub := &models.UserSubscription{
		UserID:             in.UserID,
		PlanID:             plan.ID,
		Status:             types.SubscriptionActive,
		BillingCycle:       in.BillingCycle,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   pricing.PeriodEnd(start, in.BillingCycle),
		SquareCustomerID:   customerID,
	}
	if cardID != "" {
		sub.SquareSubscriptionID = s.startRecurring(ctx, plan.ID, adapter.SubscriptionRequest{
			PlanID:     squarePlan,
			CustomerID: *customerID,
			CardID:     cardID,
			StartDate:  sub.CurrentPeriodEnd.Format(time.DateOnly),
		})
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.subs.Upsert(ctx, sub); err != nil {
			return err
		}
		if record != nil {
			if err := s.payments.Create(ctx, record); err != nil {
				return err
			}
		}
		return s.applyPlan(ctx, in.UserID, plan.ID, plan.AIGenerations)
	})
	if err != nil {
		if sub.SquareSubscriptionID != nil {
			s.stopRecurring(ctx, *sub.SquareSubscriptionID)
		}
		return nil, err
	}
	if previous != nil && previous.SquareSubscriptionID != nil {
		s.stopRecurring(ctx, *previous.SquareSubscriptionID)
	}

	s.notifications.notify(ctx, in.UserID, types.NotificationSubscriptionActive, "Subscription Activated!",
		fmt.Sprintf("Welcome to %s! Your subscription is now active.", plan.Name),
		map[string]interface{}{"plan_id": plan.ID, "billing_cycle": in.BillingCycle})

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"userId": in.UserID,
		"planId": plan.ID,
		"cycle":  in.BillingCycle,
	}).Info("Subscription activated")
	return &models.SubscriptionWithPlan{UserSubscription: *sub, Plan: *plan}, nil
}

// startRecurring creates the Square subscription that bills renewals. A
// failure is logged and leaves the subscription prepaid until period end.
func (s *SubscriptionService) startRecurring(ctx context.Context, planID string, req adapter.SubscriptionRequest) *string {
	recurring, err := s.gateway.CreateSubscription(ctx, req)
	if err != nil {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"planId":     planID,
			"squarePlan": req.PlanID,
		}).WithError(err).Warn("Square subscription not created, renewals disabled")
		return nil
	}
	return &recurring.ID
}

// stopRecurring cancels a Square subscription, logging failures
func (s *SubscriptionService) stopRecurring(ctx context.Context, id string) {
	if _, err := s.gateway.CancelSubscription(ctx, id); err != nil {
		logging.FromContext(ctx).WithField("squareSubscriptionId", id).WithError(err).Error("Failed to cancel Square subscription")
	}
}

// ChangePlan switches the active subscription to another plan of the same
// type and extends the period 30 days from now.
func (s *SubscriptionService) ChangePlan(ctx context.Context, userID, planID string) (*models.SubscriptionWithPlan, error) {
	current, err := s.subs.GetActiveWithPlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, apperrors.NewConflictError(fmt.Sprintf("plan %s is no longer offered", plan.ID))
	}
	if plan.Type != current.Plan.Type {
		return nil, apperrors.NewInvalidParameterError("planId", fmt.Sprintf("cannot switch from a %s plan to a %s plan", current.Plan.Type, plan.Type))
	}
	if plan.ID == current.PlanID {
		return current, nil
	}

	periodEnd := s.now().UTC().Add(planChangeExtension)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.subs.ChangePlan(ctx, userID, plan.ID, periodEnd); err != nil {
			return err
		}
		return s.applyPlan(ctx, userID, plan.ID, plan.AIGenerations)
	})
	if err != nil {
		return nil, err
	}

	current.PlanID = plan.ID
	current.CurrentPeriodEnd = periodEnd
	current.Plan = *plan
	return current, nil
}

// CancelSubscription stops the active subscription and its Square billing
func (s *SubscriptionService) CancelSubscription(ctx context.Context, userID string) error {
	current, err := s.subs.GetActiveWithPlan(ctx, userID)
	if err != nil {
		return err
	}
	if current.SquareSubscriptionID != nil {
		if _, err := s.gateway.CancelSubscription(ctx, *current.SquareSubscriptionID); err != nil {
			return err
		}
	}
	if err := s.subs.SetStatus(ctx, userID, types.SubscriptionCancelled); err != nil {
		return err
	}
	logging.FromContext(ctx).WithField("userId", userID).Info("Subscription cancelled")
	return nil
}

// ExpireSubscriptions marks subscriptions whose period ended before now as
// expired, drops their users to the free allowances and notifies them. It
// returns how many subscriptions expired.
func (s *SubscriptionService) ExpireSubscriptions(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for {
		expired, err := s.subs.ExpireDue(ctx, now, expiryBatchSize)
		if err != nil {
			return total, err
		}
		for _, sub := range expired {
			s.afterExpiry(ctx, sub)
		}
		total += len(expired)
		if len(expired) < expiryBatchSize {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

// RenewSubscriptions rolls Square-billed subscriptions whose period ended
// before now into their next period. Square charges the renewal itself.
func (s *SubscriptionService) RenewSubscriptions(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for {
		renewed, err := s.subs.RenewDue(ctx, now, expiryBatchSize)
		if err != nil {
			return total, err
		}
		for _, sub := range renewed {
			logging.FromContext(ctx).WithFields(map[string]interface{}{
				"userId":    sub.UserID,
				"periodEnd": sub.CurrentPeriodEnd,
			}).Info("Subscription renewed")
		}
		total += len(renewed)
		if len(renewed) < expiryBatchSize {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

func (s *SubscriptionService) afterExpiry(ctx context.Context, sub *models.UserSubscription) {
	log := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"userId": sub.UserID,
		"planId": sub.PlanID,
	})

	fallback := ""
	if plan, err := s.GetPlan(ctx, sub.PlanID); err == nil {
		fallback = StarterPlanID(plan.Type)
	}
	if err := s.applyPlan(ctx, sub.UserID, fallback, FreeAIGenerations); err != nil {
		log.WithError(err).Warn("Failed to reset allowances of expired subscription")
	}

	s.notifications.notify(ctx, sub.UserID, types.NotificationSubscriptionExpired, "Subscription Expired",
		"Your subscription has expired. Renew to keep your plan benefits.",
		map[string]interface{}{"plan_id": sub.PlanID})
	log.Info("Subscription expired")
}

// applyPlan updates this month's AI allowance and mirrors the plan onto the
// user's profiles. An empty planID leaves the profiles untouched.
func (s *SubscriptionService) applyPlan(ctx context.Context, userID, planID string, aiGenerations int) error {
	if s.usage != nil {
		if err := s.usage.SetLimit(ctx, userID, models.MonthYear(s.now()), aiGenerations); err != nil {
			return err
		}
	}
	if s.profiles != nil && planID != "" {
		if err := s.profiles.SetSubscriptionPlan(ctx, userID, planID); err != nil {
			return err
		}
	}
	return nil
}

// StarterPlanID is the free plan of a plan type
func StarterPlanID(planType types.PlanType) string {
	if planType == types.PlanTypePromoter {
		return "vibe_discovery"
	}
	return "artist_starter"
}

// givenName derives a display name from an email address
func givenName(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return "User"
}
