package service

import (
	"context"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/types"
)

// Free-tier allowances used when a user has no active subscription
const (
	FreeAIGenerations  = 1
	FreePortfolioLimit = 10
)

// planResolver finds the plan that governs a user's allowances
type planResolver struct {
	subs ActiveSubscriptionReader
}

// activePlan returns the plan of the user's active subscription, or nil
// when they have none
func (r planResolver) activePlan(ctx context.Context, userID string) (*models.SubscriptionPlan, error) {
	if r.subs == nil {
		return nil, nil
	}
	sub, err := r.subs.GetActiveWithPlan(ctx, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if sub.Status != types.SubscriptionActive {
		return nil, nil
	}
	return &sub.Plan, nil
}

// aiGenerationLimit is the monthly generation allowance of a user
func (r planResolver) aiGenerationLimit(ctx context.Context, userID string) (int, string, error) {
	plan, err := r.activePlan(ctx, userID)
	if err != nil {
		return 0, "", err
	}
	if plan == nil {
		return FreeAIGenerations, "free", nil
	}
	return plan.AIGenerations, plan.ID, nil
}

// portfolioLimit is the number of art pieces a user may keep
func (r planResolver) portfolioLimit(ctx context.Context, userID string) (int, string, error) {
	plan, err := r.activePlan(ctx, userID)
	if err != nil {
		return 0, "", err
	}
	if plan == nil {
		return FreePortfolioLimit, "free", nil
	}
	return plan.PortfolioLimit, plan.ID, nil
}
