package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hotspotvend/HotspotVend/app/models"
	"github.com/stretchr/testify/assert"
)

// seedOrphanedPayment plants a completed payment with no subscription, as a
// crash between charge and grant would leave it.
func seedOrphanedPayment(ts *testService, planID uint, age time.Duration) *models.Payment {
	pay := &models.Payment{
		ID:          ts.repo.nextPaymentID,
		UUID:        uuid.New().String(),
		DeviceID:    "orphan-device",
		PlanID:      planID,
		PlanCode:    "day-pass",
		AmountCents: 1000,
		Currency:    "KES",
		Method:      "mpesa",
		Status:      models.PaymentStatusCompleted,
		ProviderRef: "MP123",
		CreatedAt:   ts.clock.Now().Add(-age),
		UpdatedAt:   ts.clock.Now().Add(-age),
	}
	ts.repo.nextPaymentID++
	ts.repo.payments = append(ts.repo.payments, pay)
	return pay
}

func TestListOrphanedPaymentsHonorsGrace(t *testing.T) {
	ts := newTestService()
	plan := ts.addDayPass()

	// One old orphan, one too fresh to flag yet.
	old := seedOrphanedPayment(ts, plan.ID, time.Hour)
	seedOrphanedPayment(ts, plan.ID, time.Minute)

	orphans, err := ts.svc.ListOrphanedPayments()
	assert.NoError(t, err)
	assert.Len(t, orphans, 1)
	assert.Equal(t, old.UUID, orphans[0].UUID)
}

func TestListOrphanedPaymentsIgnoresGranted(t *testing.T) {
	ts := newTestService()
	ts.addDayPass()

	// A clean purchase settles transactionally and must never be flagged.
	_, err := ts.purchaseDayPass("d1")
	assert.NoError(t, err)
	ts.clock.Advance(2 * time.Hour)

	orphans, err := ts.svc.ListOrphanedPayments()
	assert.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestGrantForPayment(t *testing.T) {
	ts := newTestService()
	plan := ts.addDayPass()
	pay := seedOrphanedPayment(ts, plan.ID, time.Hour)

	sub, err := ts.svc.GrantForPayment(context.Background(), pay.UUID)
	assert.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, pay.ID, sub.PaymentID)
	assert.Equal(t, "orphan-device", sub.DeviceID)

	// The customer gets the full window from the moment of the grant, not
	// backdated to the payment.
	assert.Equal(t, ts.clock.Now(), sub.StartsAt)
	assert.Equal(t, ts.clock.Now().Add(24*time.Hour), sub.ExpiresAt)
	assert.Equal(t, 1, ts.actuator.grantCount())

	// The device is online now.
	status, err := ts.svc.Status("orphan-device")
	assert.NoError(t, err)
	assert.True(t, status.Connected)

	// A second grant for the same payment is refused.
	_, err = ts.svc.GrantForPayment(context.Background(), pay.UUID)
	assert.True(t, errors.Is(err, ErrAlreadyGranted))
}

func TestGrantForPaymentRequiresCompleted(t *testing.T) {
	ts := newTestService()
	ts.addDayPass()

	// A pending payment carries no settled money.
	_, err := ts.svc.Purchase(context.Background(), PurchaseInput{
		DeviceID: "d1", PlanCode: "day-pass", Method: "wallet", AmountCents: 1000,
	})
	assert.NoError(t, err)

	pending := &models.Payment{
		ID: ts.repo.nextPaymentID, UUID: uuid.New().String(), DeviceID: "d2",
		PlanID: 1, PlanCode: "day-pass", AmountCents: 1000, Currency: "KES",
		Method: "mpesa", Status: models.PaymentStatusPending,
	}
	ts.repo.nextPaymentID++
	ts.repo.payments = append(ts.repo.payments, pending)

	_, err = ts.svc.GrantForPayment(context.Background(), pending.UUID)
	assert.True(t, errors.Is(err, ErrPaymentNotCompleted))
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestReconcileAlertsOncePerPayment(t *testing.T) {
	ts := newTestService()
	plan := ts.addDayPass()
	seedOrphanedPayment(ts, plan.ID, time.Hour)

	t.Setenv("ADMIN_ALERT_EMAIL", "ops@example.com")

	var sent []string
	ts.svc.SetAlertFunc(func(to, subject, body string) error {
		sent = append(sent, subject)
		assert.Equal(t, "ops@example.com", to)
		return nil
	})

	found, err := ts.svc.ReconcileOrphanedPayments(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, found)
	assert.Len(t, sent, 1)

	// The orphan is still there on the next pass but the alert is deduped.
	found, err = ts.svc.ReconcileOrphanedPayments(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, found)
	assert.Len(t, sent, 1)
}
