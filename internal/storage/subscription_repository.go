package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/types"
)

// PlanRepository reads the subscription plan catalogue
type PlanRepository struct {
	db *PostgresDB
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *PostgresDB) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, name, type, tier, price_monthly, price_yearly, features, commission_rate,
	ai_generations, portfolio_limit, active, created_at, updated_at, square_monthly_plan_id, square_yearly_plan_id`

func scanPlan(row rowScanner) (*models.SubscriptionPlan, error) {
	var p models.SubscriptionPlan
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.Tier, &p.PriceMonthly, &p.PriceYearly, &p.Features,
		&p.CommissionRate, &p.AIGenerations, &p.PortfolioLimit, &p.Active, &p.CreatedAt, &p.UpdatedAt,
		&p.SquareMonthlyPlanID, &p.SquareYearlyPlanID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListActive lists active plans, cheapest first. An empty planType lists every type.
func (r *PlanRepository) ListActive(ctx context.Context, planType types.PlanType) ([]*models.SubscriptionPlan, error) {
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT `+planColumns+` FROM subscription_plans
		WHERE active AND ($1 = '' OR type = $1)
		ORDER BY price_monthly ASC, id ASC
	`, string(planType))
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var out []*models.SubscriptionPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetByID retrieves a plan
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	p, err := scanPlan(r.db.q(ctx).QueryRow(ctx, `SELECT `+planColumns+` FROM subscription_plans WHERE id = $1`, id))
	if err != nil {
		return nil, wrapQueryErr(err, "plan", id)
	}
	return p, nil
}

// SubscriptionRepository handles user subscriptions
type SubscriptionRepository struct {
	db *PostgresDB
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *PostgresDB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `id, user_id, plan_id, status, billing_cycle, current_period_start,
	current_period_end, square_customer_id, square_subscription_id, created_at, updated_at`

func scanSubscription(row rowScanner) (*models.UserSubscription, error) {
	var s models.UserSubscription
	err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.Status, &s.BillingCycle, &s.CurrentPeriodStart,
		&s.CurrentPeriodEnd, &s.SquareCustomerID, &s.SquareSubscriptionID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert creates or replaces the subscription of s.UserID
func (r *SubscriptionRepository) Upsert(ctx context.Context, s *models.UserSubscription) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO user_subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			billing_cycle = EXCLUDED.billing_cycle,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			square_customer_id = COALESCE(EXCLUDED.square_customer_id, user_subscriptions.square_customer_id),
			square_subscription_id = EXCLUDED.square_subscription_id,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + subscriptionColumns

	saved, err := scanSubscription(r.db.q(ctx).QueryRow(ctx, query,
		s.ID, s.UserID, s.PlanID, s.Status, s.BillingCycle, s.CurrentPeriodStart, s.CurrentPeriodEnd,
		s.SquareCustomerID, s.SquareSubscriptionID, now,
	))
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	*s = *saved
	return nil
}

// GetByUser retrieves a user's subscription in any status
func (r *SubscriptionRepository) GetByUser(ctx context.Context, userID string) (*models.UserSubscription, error) {
	s, err := scanSubscription(r.db.q(ctx).QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM user_subscriptions WHERE user_id = $1`, userID))
	if err != nil {
		return nil, wrapQueryErr(err, "subscription", userID)
	}
	return s, nil
}

// GetActiveWithPlan retrieves a user's active subscription joined with its plan
func (r *SubscriptionRepository) GetActiveWithPlan(ctx context.Context, userID string) (*models.SubscriptionWithPlan, error) {
	query := `
		SELECT s.id, s.user_id, s.plan_id, s.status, s.billing_cycle, s.current_period_start,
			s.current_period_end, s.square_customer_id, s.square_subscription_id, s.created_at, s.updated_at,
			p.id, p.name, p.type, p.tier, p.price_monthly, p.price_yearly, p.features, p.commission_rate,
			p.ai_generations, p.portfolio_limit, p.active, p.created_at, p.updated_at,
			p.square_monthly_plan_id, p.square_yearly_plan_id
		FROM user_subscriptions s JOIN subscription_plans p ON p.id = s.plan_id
		WHERE s.user_id = $1 AND s.status = 'active'
	`
	var out models.SubscriptionWithPlan
	s, p := &out.UserSubscription, &out.Plan
	err := r.db.q(ctx).QueryRow(ctx, query, userID).Scan(
		&s.ID, &s.UserID, &s.PlanID, &s.Status, &s.BillingCycle, &s.CurrentPeriodStart,
		&s.CurrentPeriodEnd, &s.SquareCustomerID, &s.SquareSubscriptionID, &s.CreatedAt, &s.UpdatedAt,
		&p.ID, &p.Name, &p.Type, &p.Tier, &p.PriceMonthly, &p.PriceYearly, &p.Features, &p.CommissionRate,
		&p.AIGenerations, &p.PortfolioLimit, &p.Active, &p.CreatedAt, &p.UpdatedAt,
		&p.SquareMonthlyPlanID, &p.SquareYearlyPlanID,
	)
	if err != nil {
		return nil, wrapQueryErr(err, "active subscription", userID)
	}
	return &out, nil
}

// ChangePlan switches the active subscription to planID and moves its period end
func (r *SubscriptionRepository) ChangePlan(ctx context.Context, userID, planID string, periodEnd time.Time) error {
	tag, err := r.db.q(ctx).Exec(ctx, `
		UPDATE user_subscriptions SET plan_id = $2, current_period_end = $3, updated_at = NOW()
		WHERE user_id = $1 AND status = 'active'
	`, userID, planID, periodEnd)
	if err != nil {
		return fmt.Errorf("failed to change plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("active subscription", userID)
	}
	return nil
}

// SetStatus changes the status of a user's subscription
func (r *SubscriptionRepository) SetStatus(ctx context.Context, userID string, status types.SubscriptionStatus) error {
	tag, err := r.db.q(ctx).Exec(ctx, `
		UPDATE user_subscriptions SET status = $2, updated_at = NOW()
		WHERE user_id = $1 AND status = 'active'
	`, userID, status)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("active subscription", userID)
	}
	return nil
}

// ExpireDue marks active subscriptions whose period ended before now as
// expired and returns them. Subscriptions billed by Square are renewed by
// RenewDue instead.
func (r *SubscriptionRepository) ExpireDue(ctx context.Context, now time.Time, limit int) ([]*models.UserSubscription, error) {
	rows, err := r.db.q(ctx).Query(ctx, `
		UPDATE user_subscriptions SET status = 'expired', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM user_subscriptions
			WHERE status = 'active' AND current_period_end < $1 AND square_subscription_id IS NULL
			ORDER BY current_period_end
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+subscriptionColumns, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to expire subscriptions: %w", err)
	}
	return collectSubscriptions(rows)
}

// RenewDue rolls Square-billed subscriptions whose period ended before now
// into their next period and returns them
func (r *SubscriptionRepository) RenewDue(ctx context.Context, now time.Time, limit int) ([]*models.UserSubscription, error) {
	rows, err := r.db.q(ctx).Query(ctx, `
		UPDATE user_subscriptions SET
			current_period_start = current_period_end,
			current_period_end = current_period_end +
				CASE billing_cycle WHEN 'yearly' THEN INTERVAL '1 year' ELSE INTERVAL '1 month' END,
			updated_at = NOW()
		WHERE id IN (
			SELECT id FROM user_subscriptions
			WHERE status = 'active' AND current_period_end < $1 AND square_subscription_id IS NOT NULL
			ORDER BY current_period_end
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+subscriptionColumns, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to renew subscriptions: %w", err)
	}
	return collectSubscriptions(rows)
}

func collectSubscriptions(rows pgx.Rows) ([]*models.UserSubscription, error) {
	defer rows.Close()

	var out []*models.UserSubscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PaymentRepository stores payment records
type PaymentRepository struct {
	db *PostgresDB
}

// NewPaymentRepository creates a new payment record repository
func NewPaymentRepository(db *PostgresDB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, user_id, payment_id, amount, currency, status, payment_type, booking_id,
	plan_id, billing_cycle, artist_fee, platform_fee, receipt_url, created_at`

// Create inserts a payment record
func (r *PaymentRepository) Create(ctx context.Context, p *models.PaymentRecord) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = time.Now().UTC()

	_, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO payment_records (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, p.ID, p.UserID, p.PaymentID, p.Amount, p.Currency, p.Status, p.PaymentType, p.BookingID,
		p.PlanID, p.BillingCycle, p.ArtistFee, p.PlatformFee, p.ReceiptURL, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment record: %w", err)
	}
	return nil
}

// ListByUser lists a user's payment records, newest first
func (r *PaymentRepository) ListByUser(ctx context.Context, userID string) ([]*models.PaymentRecord, error) {
	rows, err := r.db.q(ctx).Query(ctx,
		`SELECT `+paymentColumns+` FROM payment_records WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment records: %w", err)
	}
	defer rows.Close()

	var out []*models.PaymentRecord
	for rows.Next() {
		var p models.PaymentRecord
		if err := rows.Scan(&p.ID, &p.UserID, &p.PaymentID, &p.Amount, &p.Currency, &p.Status,
			&p.PaymentType, &p.BookingID, &p.PlanID, &p.BillingCycle, &p.ArtistFee, &p.PlatformFee,
			&p.ReceiptURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment record: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
