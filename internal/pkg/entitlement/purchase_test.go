package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hotspotvend/HotspotVend/app/models"
	"github.com/hotspotvend/HotspotVend/internal/pkg/payment"
	"github.com/stretchr/testify/assert"
)

func TestPurchaseSuccess(t *testing.T) {
	ts := newTestService()
	ts.addDayPass()

	start := ts.clock.Now()
	result, err := ts.purchaseDayPass("d1")
	assert.NoError(t, err)
	assert.NotNil(t, result)

	assert.Equal(t, models.PaymentStatusCompleted, result.Payment.Status)
	assert.NotEmpty(t, result.Payment.ProviderRef)
	assert.Equal(t, int64(1000), result.Payment.AmountCents)

	sub := result.Subscription
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "d1", sub.DeviceID)
	assert.Equal(t, result.Payment.ID, sub.PaymentID)
	assert.Equal(t, start, sub.StartsAt)
	assert.Equal(t, start.Add(24*time.Hour), sub.ExpiresAt)

	// The ledger row and the grant both landed.
	assert.Equal(t, 1, ts.repo.paymentCount())
	assert.Equal(t, 1, ts.repo.subscriptionCount())
	assert.Equal(t, 1, ts.actuator.grantCount())

	stored := ts.repo.paymentByID(result.Payment.ID)
	assert.Equal(t, models.PaymentStatusCompleted, stored.Status)
}

func TestPurchaseValidationRejectedBeforeAnyWrite(t *testing.T) {
	tests := []struct {
		name    string
		input   PurchaseInput
		wantErr error
	}{
		{
			name:    "unknown plan",
			input:   PurchaseInput{DeviceID: "d1", PlanCode: "no-such-plan", Method: "wallet", AmountCents: 1000},
			wantErr: ErrPlanNotFound,
		},
		{
			name:    "inactive plan",
			input:   PurchaseInput{DeviceID: "d1", PlanCode: "retired", Method: "wallet", AmountCents: 500},
			wantErr: ErrPlanInactive,
		},
		{
			name:    "amount mismatch",
			input:   PurchaseInput{DeviceID: "d1", PlanCode: "day-pass", Method: "wallet", AmountCents: 999},
			wantErr: ErrAmountMismatch,
		},
		{
			name:    "unsupported method",
			input:   PurchaseInput{DeviceID: "d1", PlanCode: "day-pass", Method: "cash", AmountCents: 1000},
			wantErr: ErrUnsupportedMethod,
		},
		{
			name:    "missing phone for mobile money",
			input:   PurchaseInput{DeviceID: "d1", PlanCode: "day-pass", Method: "mpesa", AmountCents: 1000},
			wantErr: ErrMissingAccount,
		},
		{
			name:    "empty device",
			input:   PurchaseInput{DeviceID: "  ", PlanCode: "day-pass", Method: "wallet", AmountCents: 1000},
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestService(
				&fakeGateway{method: "wallet"},
				&fakeGateway{method: "mpesa", requiresAccount: true},
			)
			ts.addDayPass()
			ts.repo.addPlan(&models.Plan{
				Code: "retired", Name: "Retired", DurationMinutes: 60, PriceCents: 500, Currency: "KES", Active: false,
			})

			_, err := ts.svc.Purchase(context.Background(), tt.input)
			assert.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
			assert.True(t, errors.Is(err, ErrValidation))

			// Rejected before any side effect: no ledger row, no grant, no charge.
			assert.Equal(t, 0, ts.repo.paymentCount())
			assert.Equal(t, 0, ts.repo.subscriptionCount())
			assert.Equal(t, 0, ts.gateway.callCount())
		})
	}
}

func TestPurchaseDisabled(t *testing.T) {
	ts := newTestService()
	ts.addDayPass()

	settings := models.GetAppSettings()
	settings.PurchaseEnabled = false
	defer func() { settings.PurchaseEnabled = true }()

	_, err := ts.purchaseDayPass("d1")
	assert.True(t, errors.Is(err, ErrPurchasesDisabled))
	assert.Equal(t, 0, ts.repo.paymentCount())
}

func TestPurchaseDeclined(t *testing.T) {
	gw := &fakeGateway{method: "wallet", chargeErr: &payment.DeclineError{Reason: "insufficient funds"}}
	ts := newTestService(gw)
	ts.addDayPass()

	_, err := ts.purchaseDayPass("d1")
	assert.True(t, errors.Is(err, ErrGatewayDeclined))
	assert.Contains(t, err.Error(), "insufficient funds")

	// The attempt is on the books as failed, nothing else moved.
	assert.Equal(t, 1, ts.repo.paymentCount())
	pay := ts.repo.paymentByID(1)
	assert.Equal(t, models.PaymentStatusFailed, pay.Status)
	assert.Equal(t, "insufficient funds", pay.FailReason)
	assert.Equal(t, 0, ts.repo.subscriptionCount())
	assert.Equal(t, 0, ts.actuator.grantCount())

	// Status is unchanged by the failed call.
	status, err := ts.svc.Status("d1")
	assert.NoError(t, err)
	assert.False(t, status.Connected)
}

func TestPurchaseGatewayTimeoutLeavesPaymentPending(t *testing.T) {
	gw := &fakeGateway{method: "wallet", chargeErr: payment.ErrTimeout}
	ts := newTestService(gw)
	ts.addDayPass()

	_, err := ts.purchaseDayPass("d1")
	assert.True(t, errors.Is(err, ErrGatewayTimeout))

	// No definitive verdict: never promoted, never failed.
	pay := ts.repo.paymentByID(1)
	assert.Equal(t, models.PaymentStatusPending, pay.Status)
	assert.Equal(t, 0, ts.repo.subscriptionCount())

	// The error names the payment so the client knows what to watch.
	var pending *PendingPaymentError
	assert.True(t, errors.As(err, &pending))
	assert.Equal(t, pay.UUID, pending.PaymentUUID)
}

func TestPurchaseUnknownGatewayErrorTreatedAsTimeout(t *testing.T) {
	gw := &fakeGateway{method: "wallet", chargeErr: errors.New("connection reset")}
	ts := newTestService(gw)
	ts.addDayPass()

	_, err := ts.purchaseDayPass("d1")
	assert.True(t, errors.Is(err, ErrGatewayTimeout))

	pay := ts.repo.paymentByID(1)
	assert.Equal(t, models.PaymentStatusPending, pay.Status)
}

func TestPurchaseGrantWriteFailure(t *testing.T) {
	ts := newTestService()
	ts.addDayPass()
	ts.repo.failGrant = true

	_, err := ts.purchaseDayPass("d1")
	assert.True(t, errors.Is(err, ErrEntitlementWrite))
	assert.True(t, errors.Is(err, ErrStorage))

	// The transaction rolled back: payment still pending, no subscription,
	// so the reconciliation sweep can find and settle it.
	pay := ts.repo.paymentByID(1)
	assert.Equal(t, models.PaymentStatusPending, pay.Status)
	assert.Equal(t, 0, ts.repo.subscriptionCount())
	assert.Equal(t, 0, ts.actuator.grantCount())

	var pending *PendingPaymentError
	assert.True(t, errors.As(err, &pending))
	assert.Equal(t, pay.UUID, pending.PaymentUUID)
}

func TestPurchaseChargeCarriesPaymentReference(t *testing.T) {
	ts := newTestService()
	ts.addDayPass()

	result, err := ts.purchaseDayPass("d1")
	assert.NoError(t, err)

	assert.Equal(t, 1, ts.gateway.callCount())
	call := ts.gateway.calls[0]
	assert.Equal(t, result.Payment.UUID, call.Reference)
	assert.Equal(t, int64(1000), call.AmountCents)
	assert.Equal(t, "d1", call.DeviceID)
}
