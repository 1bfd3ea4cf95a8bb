package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/hotspotvend/HotspotVend/app/models"
	"github.com/stretchr/testify/assert"
)

func TestSweepExpired(t *testing.T) {
	ts := newTestService()
	ts.addDayPass()

	ts.repo.addPlan(&models.Plan{
		Code: "hour-pass", Name: "Hour Pass", DurationMinutes: 60, PriceCents: 100, Currency: "KES", Active: true,
	})

	// d1 expires within the hour, d2 has a full day left.
	_, err := ts.svc.Purchase(context.Background(), PurchaseInput{
		DeviceID: "d1", PlanCode: "hour-pass", Method: "wallet", AmountCents: 100,
	})
	assert.NoError(t, err)
	_, err = ts.purchaseDayPass("d2")
	assert.NoError(t, err)

	// Nothing has elapsed yet, the sweep must not touch anything.
	res, err := ts.svc.SweepExpired(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, res.Expired)
	assert.Zero(t, ts.actuator.revokeCount())

	// Two hours later d1's window has elapsed, d2's has not.
	ts.clock.Advance(2 * time.Hour)
	res, err = ts.svc.SweepExpired(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, 1, res.Revoked)
	assert.Equal(t, 1, ts.actuator.revokesFor("d1"))
	assert.Equal(t, 0, ts.actuator.revokesFor("d2"))

	d1Sub := ts.repo.subscriptionByID(1)
	assert.Equal(t, models.SubscriptionStatusExpired, d1Sub.Status)
	d2Sub := ts.repo.subscriptionByID(2)
	assert.Equal(t, models.SubscriptionStatusActive, d2Sub.Status)
}

func TestSweepIdempotent(t *testing.T) {
	ts := newTestService()
	ts.addDayPass()

	_, err := ts.purchaseDayPass("d1")
	assert.NoError(t, err)

	ts.clock.Advance(25 * time.Hour)

	res, err := ts.svc.SweepExpired(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, 1, ts.actuator.revokesFor("d1"))

	// A second pass over the already expired row is a no-op: no status
	// change, no second revoke.
	res, err = ts.svc.SweepExpired(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, res.Scanned)
	assert.Zero(t, res.Expired)
	assert.Equal(t, 1, ts.actuator.revokesFor("d1"))
}

func TestSweepRevokeFailureDoesNotBlockTransition(t *testing.T) {
	ts := newTestService()
	ts.addDayPass()
	ts.actuator.revokeErr = assert.AnError

	_, err := ts.purchaseDayPass("d1")
	assert.NoError(t, err)

	ts.clock.Advance(25 * time.Hour)
	res, err := ts.svc.SweepExpired(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Zero(t, res.Revoked)

	// The row is expired even though the actuator call failed; enforcement
	// is advisory, the store is the truth.
	sub := ts.repo.subscriptionByID(1)
	assert.Equal(t, models.SubscriptionStatusExpired, sub.Status)
}

func TestSweepSkipsWhenLockHeld(t *testing.T) {
	ts := newTestService()
	ts.addDayPass()

	_, err := ts.purchaseDayPass("d1")
	assert.NoError(t, err)
	ts.clock.Advance(25 * time.Hour)

	// Another instance holds the sweep window.
	held, err := sweepLockAcquire(sweepLockKey, 1, sweepLockTTL)
	assert.NoError(t, err)
	assert.True(t, held)

	res, err := ts.svc.SweepExpired(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, res.Expired)
	assert.Zero(t, ts.actuator.revokeCount())

	// Once released, the next pass does the work.
	assert.NoError(t, sweepLockRelease(sweepLockKey))
	res, err = ts.svc.SweepExpired(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
}

func TestSweepCancelledSubscriptionNotRevokedAgain(t *testing.T) {
	ts := newTestService()
	ts.addDayPass()

	result, err := ts.purchaseDayPass("d1")
	assert.NoError(t, err)

	changed, err := ts.svc.Disconnect(context.Background(), result.Subscription.UUID)
	assert.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, ts.actuator.revokeCount())

	// Cancelled is terminal: expiry of the elapsed window must not touch it.
	ts.clock.Advance(25 * time.Hour)
	res, err := ts.svc.SweepExpired(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, res.Expired)
	assert.Equal(t, 1, ts.actuator.revokeCount())

	sub := ts.repo.subscriptionByID(result.Subscription.ID)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
}
