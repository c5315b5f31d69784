package job

import (
	"context"
	"errors"
	"time"

	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/metrics"
)

// SubscriptionExpirer closes out subscriptions whose period ended before now
type SubscriptionExpirer interface {
	RenewSubscriptions(ctx context.Context, now time.Time) (int, error)
	ExpireSubscriptions(ctx context.Context, now time.Time) (int, error)
}

// SubscriptionExpiryJob is the periodic sweep that renews Square-billed
// subscriptions and expires the other lapsed ones
type SubscriptionExpiryJob struct {
	expirer SubscriptionExpirer
	now     func() time.Time
}

// NewSubscriptionExpiryJob creates the expiry sweep
func NewSubscriptionExpiryJob(expirer SubscriptionExpirer) *SubscriptionExpiryJob {
	return &SubscriptionExpiryJob{expirer: expirer, now: time.Now}
}

// Name implements Job
func (j *SubscriptionExpiryJob) Name() string { return "subscription-expiry" }

// Run implements Job
func (j *SubscriptionExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()

	renewed, renewErr := j.expirer.RenewSubscriptions(ctx, now)
	if renewed > 0 {
		metrics.RenewedSubscriptionsCounter.Add(float64(renewed))
		logging.WithField("renewed", renewed).Info("Rolled Square-billed subscriptions forward")
	}

	n, err := j.expirer.ExpireSubscriptions(ctx, now)
	if n > 0 {
		metrics.ExpiredSubscriptionsCounter.Add(float64(n))
		logging.WithField("expired", n).Info("Expired lapsed subscriptions")
	}
	return errors.Join(renewErr, err)
}
