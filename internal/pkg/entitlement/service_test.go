package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hotspotvend/HotspotVend/app/models"
	"github.com/hotspotvend/HotspotVend/internal/pkg/payment"
	"gorm.io/gorm"
)

// fakeRepository keeps everything in memory and mimics the DB hooks the
// real repository relies on (ID/UUID assignment, guarded updates).
type fakeRepository struct {
	mu sync.Mutex

	plans         []*models.Plan
	payments      []*models.Payment
	subscriptions []*models.Subscription

	nextPaymentID uint
	nextSubID     uint

	failGrant bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{nextPaymentID: 1, nextSubID: 1}
}

func (f *fakeRepository) addPlan(plan *models.Plan) *models.Plan {
	f.mu.Lock()
	defer f.mu.Unlock()
	plan.ID = uint(len(f.plans) + 1)
	f.plans = append(f.plans, plan)
	return plan
}

func (f *fakeRepository) GetPlanByCode(code string) (*models.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.plans {
		if p.Code == code {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) GetPlanByID(id uint) (*models.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.plans {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) CreatePayment(pay *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pay.ID = f.nextPaymentID
	f.nextPaymentID++
	if pay.UUID == "" {
		pay.UUID = uuid.New().String()
	}
	pay.CreatedAt = time.Now()
	pay.UpdatedAt = pay.CreatedAt
	stored := *pay
	f.payments = append(f.payments, &stored)
	return nil
}

func (f *fakeRepository) GetPaymentByUUID(id string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.UUID == id {
			copied := *p
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FailPayment(id uint, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ID == id && p.Status == models.PaymentStatusPending {
			p.Status = models.PaymentStatusFailed
			p.FailReason = reason
			p.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepository) CompletePaymentAndGrant(paymentID uint, providerRef string, sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGrant {
		// Transaction rolled back: the payment stays pending.
		return gorm.ErrInvalidTransaction
	}
	for _, p := range f.payments {
		if p.ID == paymentID && p.Status == models.PaymentStatusPending {
			p.Status = models.PaymentStatusCompleted
			p.ProviderRef = providerRef
			p.UpdatedAt = time.Now()
			f.insertSubscriptionLocked(sub)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) CreateSubscriptionForPayment(sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertSubscriptionLocked(sub)
	return nil
}

func (f *fakeRepository) insertSubscriptionLocked(sub *models.Subscription) {
	sub.ID = f.nextSubID
	f.nextSubID++
	if sub.UUID == "" {
		sub.UUID = uuid.New().String()
	}
	stored := *sub
	f.subscriptions = append(f.subscriptions, &stored)
}

func (f *fakeRepository) HasSubscriptionForPayment(paymentID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subscriptions {
		if s.PaymentID == paymentID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepository) CurrentSubscriptionForDevice(deviceID string, now time.Time) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.Subscription
	for _, s := range f.subscriptions {
		if s.DeviceID != deviceID || s.Status != models.SubscriptionStatusActive || !s.ExpiresAt.After(now) {
			continue
		}
		if best == nil || s.ExpiresAt.After(best.ExpiresAt) {
			best = s
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *best
	return &copied, nil
}

func (f *fakeRepository) GetSubscriptionByUUID(id string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subscriptions {
		if s.UUID == id {
			copied := *s
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListActiveExpiringBefore(cutoff time.Time, limit int) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, s := range f.subscriptions {
		if s.Status == models.SubscriptionStatusActive && !s.ExpiresAt.After(cutoff) {
			out = append(out, *s)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepository) SetSubscriptionStatus(id uint, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subscriptions {
		if s.ID == id && s.Status == from {
			s.Status = to
			s.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepository) ListCompletedPaymentsWithoutSubscription(olderThan time.Time) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	granted := make(map[uint]bool)
	for _, s := range f.subscriptions {
		granted[s.PaymentID] = true
	}
	var out []models.Payment
	for _, p := range f.payments {
		if p.Status == models.PaymentStatusCompleted && !granted[p.ID] && p.UpdatedAt.Before(olderThan) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeRepository) paymentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payments)
}

func (f *fakeRepository) subscriptionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscriptions)
}

func (f *fakeRepository) paymentByID(id uint) *models.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ID == id {
			copied := *p
			return &copied
		}
	}
	return nil
}

func (f *fakeRepository) subscriptionByID(id uint) *models.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subscriptions {
		if s.ID == id {
			copied := *s
			return &copied
		}
	}
	return nil
}

// fakeGateway answers charges from a scripted result.
type fakeGateway struct {
	method          string
	requiresAccount bool

	chargeErr error
	ref       string

	mu    sync.Mutex
	calls []payment.ChargeRequest
}

func (g *fakeGateway) Method() string        { return g.method }
func (g *fakeGateway) RequiresAccount() bool { return g.requiresAccount }

func (g *fakeGateway) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	_ = ctx
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	ref := g.ref
	if ref == "" {
		ref = "ref-" + req.Reference
	}
	return &payment.ChargeResult{ProviderRef: ref}, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// fakeActuator records grant/revoke calls.
type fakeActuator struct {
	mu        sync.Mutex
	grants    []string
	revokes   []string
	grantErr  error
	revokeErr error
}

func (a *fakeActuator) Grant(ctx context.Context, deviceID string, until time.Time) error {
	_ = ctx
	_ = until
	a.mu.Lock()
	defer a.mu.Unlock()
	a.grants = append(a.grants, deviceID)
	return a.grantErr
}

func (a *fakeActuator) Revoke(ctx context.Context, deviceID string) error {
	_ = ctx
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revokes = append(a.revokes, deviceID)
	return a.revokeErr
}

func (a *fakeActuator) grantCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.grants)
}

func (a *fakeActuator) revokeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.revokes)
}

func (a *fakeActuator) revokesFor(deviceID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, d := range a.revokes {
		if d == deviceID {
			n++
		}
	}
	return n
}

// testService wires a service against fresh fakes with a controllable clock.
type testService struct {
	svc      *Service
	repo     *fakeRepository
	gateway  *fakeGateway
	actuator *fakeActuator
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(gateways ...*fakeGateway) *testService {
	repo := newFakeRepository()
	registry := payment.NewRegistry()

	var primary *fakeGateway
	if len(gateways) == 0 {
		primary = &fakeGateway{method: "wallet"}
		registry.Register(primary)
	} else {
		primary = gateways[0]
		for _, g := range gateways {
			registry.Register(g)
		}
	}

	act := &fakeActuator{}
	svc := NewService(repo, registry, act)

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc.SetClock(clock.Now)

	// Keep the sweep lock and alert dedupe in memory.
	marks := make(map[string]bool)
	var marksMu sync.Mutex
	sweepLockAcquire = func(key string, value interface{}, ttl time.Duration) (bool, error) {
		_ = value
		_ = ttl
		marksMu.Lock()
		defer marksMu.Unlock()
		if marks[key] {
			return false, nil
		}
		marks[key] = true
		return true, nil
	}
	sweepLockRelease = func(key string) error {
		marksMu.Lock()
		defer marksMu.Unlock()
		delete(marks, key)
		return nil
	}
	alertMarkFresh = func(key string, value interface{}, ttl time.Duration) (bool, error) {
		_ = value
		_ = ttl
		marksMu.Lock()
		defer marksMu.Unlock()
		if marks[key] {
			return false, nil
		}
		marks[key] = true
		return true, nil
	}

	return &testService{svc: svc, repo: repo, gateway: primary, actuator: act, clock: clock}
}

func (ts *testService) addDayPass() *models.Plan {
	return ts.repo.addPlan(&models.Plan{
		Code:            "day-pass",
		Name:            "Day Pass",
		DurationMinutes: 24 * 60,
		PriceCents:      1000,
		Currency:        "KES",
		Active:          true,
	})
}

func (ts *testService) purchaseDayPass(device string) (*PurchaseResult, error) {
	return ts.svc.Purchase(context.Background(), PurchaseInput{
		DeviceID:    device,
		PlanCode:    "day-pass",
		Method:      ts.gateway.method,
		AmountCents: 1000,
		AccountRef:  accountRefFor(ts.gateway),
	})
}

func accountRefFor(g *fakeGateway) string {
	if g.requiresAccount {
		return "254700000001"
	}
	return ""
}
