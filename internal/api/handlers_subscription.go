package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/pricing"
	"github.com/live-vibe/internal/service"
	"github.com/live-vibe/internal/types"
)

// handleListPlans handles GET /api/plans?type=artist|promoter
func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.subscriptions.ListPlans(r.Context(), types.PlanType(r.URL.Query().Get("type")))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	views := make([]planView, 0, len(plans))
	for _, p := range plans {
		views = append(views, newPlanView(p))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"plans": views})
}

// handleGetPlan handles GET /api/plans/{id}
func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.subscriptions.GetPlan(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, newPlanView(plan))
}

// planView adds the yearly pricing figures the plan picker shows
type planView struct {
	*models.SubscriptionPlan
	YearlySavings     int64 `json:"yearlySavings"`
	MonthlyEquivalent int64 `json:"yearlyMonthlyEquivalent"`
}

func newPlanView(p *models.SubscriptionPlan) planView {
	return planView{
		SubscriptionPlan:  p,
		YearlySavings:     pricing.YearlySavings(p),
		MonthlyEquivalent: pricing.MonthlyEquivalent(p.PriceYearly),
	}
}

// handleGetSubscription handles GET /api/subscription
func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subscriptions.GetCurrentSubscription(r.Context(), mustIdentity(r).UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, sub)
}

// handleSubscribe handles POST /api/subscription
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req service.SubscribeInput
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	identity := mustIdentity(r)
	req.UserID = identity.UserID
	req.Email = identity.Email

	sub, err := s.subscriptions.Subscribe(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, sub)
}

// handleChangePlan handles PUT /api/subscription/plan
func (s *Server) handleChangePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanID string `json:"planId"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	sub, err := s.subscriptions.ChangePlan(r.Context(), mustIdentity(r).UserID, req.PlanID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, sub)
}

// handleCancelSubscription handles DELETE /api/subscription
func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	if err := s.subscriptions.CancelSubscription(r.Context(), mustIdentity(r).UserID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
