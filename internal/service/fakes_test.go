package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/live-vibe/internal/adapter"
	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/pricing"
	"github.com/live-vibe/internal/types"
)

// In-memory repositories and providers shared by the service tests

type fakeTx struct {
	calls int
}

func (f *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type storedObject struct {
	contentType string
	data        []byte
}

type fakeFiles struct {
	mu        sync.Mutex
	objects   map[string]storedObject
	uploadErr error
	deleteErr error
	deleted   []string
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{objects: map[string]storedObject{}}
}

func (f *fakeFiles) Upload(ctx context.Context, bucket, path, contentType string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.objects[bucket+"/"+path] = storedObject{contentType: contentType, data: data}
	return "https://files.test/" + bucket + "/" + path, nil
}

func (f *fakeFiles) Delete(ctx context.Context, bucket, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, bucket+"/"+path)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, bucket+"/"+path)
	return nil
}

type fakeNotificationRepo struct {
	mu        sync.Mutex
	items     []*models.Notification
	createErr error
}

func (r *fakeNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	n.ID = fmt.Sprintf("n-%d", len(r.items)+1)
	n.CreatedAt = time.Now()
	r.items = append(r.items, n)
	return nil
}

func (r *fakeNotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	var out []*models.Notification
	for i := len(r.items) - 1; i >= 0; i-- {
		n := r.items[i]
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(ctx context.Context, id, userID string) error {
	for _, n := range r.items {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return nil
		}
	}
	return apperrors.NewNotFoundError("notification", id)
}

func (r *fakeNotificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	var count int64
	for _, n := range r.items {
		if n.UserID == userID && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

// byType returns the notifications of one type sent to userID
func (r *fakeNotificationRepo) byType(userID, notificationType string) []*models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Notification
	for _, n := range r.items {
		if n.UserID == userID && n.Type == notificationType {
			out = append(out, n)
		}
	}
	return out
}

type fakePublisher struct {
	published []*models.Notification
	err       error
}

func (p *fakePublisher) PublishNotification(n *models.Notification) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, n)
	return nil
}

// fakeSubscriptions serves as both the active-plan reader and the subscription repository
type fakeSubscriptions struct {
	mu    sync.Mutex
	subs  map[string]*models.SubscriptionWithPlan
	plans map[string]*models.SubscriptionPlan
	err   error
}

func newFakeSubscriptions(plans ...*models.SubscriptionPlan) *fakeSubscriptions {
	f := &fakeSubscriptions{subs: map[string]*models.SubscriptionWithPlan{}, plans: map[string]*models.SubscriptionPlan{}}
	for _, p := range plans {
		f.plans[p.ID] = p
	}
	return f
}

// activate gives userID an active subscription to plan
func (f *fakeSubscriptions) activate(userID string, plan *models.SubscriptionPlan, periodEnd time.Time) {
	f.plans[plan.ID] = plan
	f.subs[userID] = &models.SubscriptionWithPlan{
		UserSubscription: models.UserSubscription{
			ID:               "sub-" + userID,
			UserID:           userID,
			PlanID:           plan.ID,
			Status:           types.SubscriptionActive,
			BillingCycle:     types.BillingMonthly,
			CurrentPeriodEnd: periodEnd,
		},
		Plan: *plan,
	}
}

func (f *fakeSubscriptions) GetActiveWithPlan(ctx context.Context, userID string) (*models.SubscriptionWithPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.subs[userID]
	if !ok || s.Status != types.SubscriptionActive {
		return nil, apperrors.NewNotFoundError("subscription", userID)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubscriptions) Upsert(ctx context.Context, s *models.UserSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == "" {
		s.ID = "sub-" + s.UserID
	}
	f.subs[s.UserID] = &models.SubscriptionWithPlan{UserSubscription: *s, Plan: f.plan(s.PlanID)}
	return nil
}

func (f *fakeSubscriptions) ChangePlan(ctx context.Context, userID, planID string, periodEnd time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[userID]
	if !ok {
		return apperrors.NewNotFoundError("subscription", userID)
	}
	s.PlanID = planID
	s.CurrentPeriodEnd = periodEnd
	s.Plan = f.plan(planID)
	return nil
}

func (f *fakeSubscriptions) plan(id string) models.SubscriptionPlan {
	if p, ok := f.plans[id]; ok {
		return *p
	}
	return models.SubscriptionPlan{ID: id}
}

func (f *fakeSubscriptions) SetStatus(ctx context.Context, userID string, status types.SubscriptionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[userID]
	if !ok || s.Status != types.SubscriptionActive {
		return apperrors.NewNotFoundError("subscription", userID)
	}
	s.Status = status
	return nil
}

func (f *fakeSubscriptions) ExpireDue(ctx context.Context, now time.Time, limit int) ([]*models.UserSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.subs))
	for id := range f.subs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*models.UserSubscription
	for _, id := range ids {
		s := f.subs[id]
		if s.Status != types.SubscriptionActive || !s.CurrentPeriodEnd.Before(now) || s.SquareSubscriptionID != nil {
			continue
		}
		s.Status = types.SubscriptionExpired
		cp := s.UserSubscription
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeSubscriptions) RenewDue(ctx context.Context, now time.Time, limit int) ([]*models.UserSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.UserSubscription
	for _, s := range f.subs {
		if s.Status != types.SubscriptionActive || !s.CurrentPeriodEnd.Before(now) || s.SquareSubscriptionID == nil {
			continue
		}
		s.CurrentPeriodStart = s.CurrentPeriodEnd
		s.CurrentPeriodEnd = pricing.PeriodEnd(s.CurrentPeriodEnd, s.BillingCycle)
		cp := s.UserSubscription
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakePlans struct {
	plans map[string]*models.SubscriptionPlan
	reads int
}

func newFakePlans(plans ...*models.SubscriptionPlan) *fakePlans {
	f := &fakePlans{plans: map[string]*models.SubscriptionPlan{}}
	for _, p := range plans {
		f.plans[p.ID] = p
	}
	return f
}

func (f *fakePlans) ListActive(ctx context.Context, planType types.PlanType) ([]*models.SubscriptionPlan, error) {
	f.reads++
	var out []*models.SubscriptionPlan
	for _, p := range f.plans {
		if p.Active && (planType == "" || p.Type == planType) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceMonthly < out[j].PriceMonthly })
	return out, nil
}

func (f *fakePlans) GetByID(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	f.reads++
	p, ok := f.plans[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("subscription plan", id)
	}
	return p, nil
}

type fakeGateway struct {
	mu            sync.Mutex
	attempts      []adapter.PaymentRequest
	payments      []adapter.PaymentRequest
	customers     []adapter.CustomerRequest
	cards         []adapter.CardRequest
	subscriptions []adapter.SubscriptionRequest
	cancelled     []string
	payErr        error
	subscribeErr  error
}

func (g *fakeGateway) CreatePayment(ctx context.Context, req adapter.PaymentRequest) (*adapter.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attempts = append(g.attempts, req)
	if g.payErr != nil {
		return nil, g.payErr
	}
	g.payments = append(g.payments, req)
	return &adapter.Payment{
		ID:          fmt.Sprintf("pay-%d", len(g.payments)),
		Status:      "COMPLETED",
		AmountMoney: adapter.Money{Amount: req.AmountCents, Currency: "USD"},
		ReceiptURL:  "https://squareup.test/receipt",
	}, nil
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, req adapter.CustomerRequest) (*adapter.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customers = append(g.customers, req)
	return &adapter.Customer{ID: fmt.Sprintf("cust-%d", len(g.customers)), GivenName: req.GivenName}, nil
}

func (g *fakeGateway) CreateCard(ctx context.Context, req adapter.CardRequest) (*adapter.Card, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cards = append(g.cards, req)
	return &adapter.Card{ID: fmt.Sprintf("ccof-%d", len(g.cards)), CustomerID: req.CustomerID}, nil
}

func (g *fakeGateway) CreateSubscription(ctx context.Context, req adapter.SubscriptionRequest) (*adapter.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscriptions = append(g.subscriptions, req)
	if g.subscribeErr != nil {
		return nil, g.subscribeErr
	}
	return &adapter.Subscription{
		ID:         fmt.Sprintf("sqsub-%d", len(g.subscriptions)),
		Status:     "PENDING",
		PlanID:     req.PlanID,
		CustomerID: req.CustomerID,
		StartDate:  req.StartDate,
	}, nil
}

func (g *fakeGateway) CancelSubscription(ctx context.Context, id string) (*adapter.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, id)
	return &adapter.Subscription{ID: id, Status: "ACTIVE"}, nil
}

type fakePayments struct {
	records []*models.PaymentRecord
	err     error
}

func (f *fakePayments) Create(ctx context.Context, p *models.PaymentRecord) error {
	if f.err != nil {
		return f.err
	}
	p.ID = fmt.Sprintf("rec-%d", len(f.records)+1)
	f.records = append(f.records, p)
	return nil
}

func (f *fakePayments) ListByUser(ctx context.Context, userID string) ([]*models.PaymentRecord, error) {
	var out []*models.PaymentRecord
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeUsage struct {
	mu     sync.Mutex
	rows   map[string]*models.AIGenerationUsage
	limits map[string]int
}

func newFakeUsage() *fakeUsage {
	return &fakeUsage{rows: map[string]*models.AIGenerationUsage{}, limits: map[string]int{}}
}

func usageKey(userID, month string) string { return userID + "|" + month }

func (f *fakeUsage) GetOrCreate(ctx context.Context, userID, monthYear string, planLimit int) (*models.AIGenerationUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := usageKey(userID, monthYear)
	u, ok := f.rows[k]
	if !ok {
		u = &models.AIGenerationUsage{ID: k, UserID: userID, MonthYear: monthYear, PlanLimit: planLimit}
		f.rows[k] = u
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsage) TryIncrement(ctx context.Context, userID, monthYear string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[usageKey(userID, monthYear)]
	if !ok || !u.CanGenerate() {
		return false, nil
	}
	u.GenerationsUsed++
	return true, nil
}

func (f *fakeUsage) Refund(ctx context.Context, userID, monthYear string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.rows[usageKey(userID, monthYear)]; ok && u.GenerationsUsed > 0 {
		u.GenerationsUsed--
	}
	return nil
}

func (f *fakeUsage) SetLimit(ctx context.Context, userID, monthYear string, planLimit int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := usageKey(userID, monthYear)
	f.limits[userID] = planLimit
	if u, ok := f.rows[k]; ok {
		u.PlanLimit = planLimit
		return nil
	}
	f.rows[k] = &models.AIGenerationUsage{ID: k, UserID: userID, MonthYear: monthYear, PlanLimit: planLimit}
	return nil
}

func (f *fakeUsage) used(userID, monthYear string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.rows[usageKey(userID, monthYear)]; ok {
		return u.GenerationsUsed
	}
	return 0
}

type fakePlanAssigner struct {
	assigned map[string]string
}

func (f *fakePlanAssigner) SetSubscriptionPlan(ctx context.Context, userID, planID string) error {
	if f.assigned == nil {
		f.assigned = map[string]string{}
	}
	f.assigned[userID] = planID
	return nil
}

func testPlan(id string, planType types.PlanType, monthly int64, rate float64, aiGenerations, portfolio int) *models.SubscriptionPlan {
	return &models.SubscriptionPlan{
		ID:             id,
		Name:           id,
		Type:           planType,
		PriceMonthly:   monthly,
		PriceYearly:    monthly * 10,
		CommissionRate: rate,
		AIGenerations:  aiGenerations,
		PortfolioLimit: portfolio,
		Active:         true,
	}
}

var testBuckets = Buckets{ProfilePhotos: "profile-photos", ArtPieces: "art-pieces", AIStudio: "ai-studio"}
