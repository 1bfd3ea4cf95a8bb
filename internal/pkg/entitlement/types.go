package entitlement

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hotspotvend/HotspotVend/app/models"
)

var validate = validator.New()

// PurchaseInput is the untrusted request shape handed to Purchase. The
// amount is the price the client believes it is paying and must match the
// catalog exactly; mismatches are rejected, never silently corrected.
type PurchaseInput struct {
	DeviceID    string `json:"device_id" validate:"required,max=191"`
	PlanCode    string `json:"plan_code" validate:"required,max=64"`
	Method      string `json:"method" validate:"required,max=32"`
	AmountCents int64  `json:"amount_cents" validate:"gte=0"`
	// AccountRef names the payer account at the provider (phone number,
	// wallet ID, voucher code). Required for methods whose gateway demands
	// an originating account.
	AccountRef string `json:"account_ref" validate:"max=191"`
}

// Validate checks the request shape before any domain rule runs.
func (in *PurchaseInput) Validate() error {
	return validate.Struct(in)
}

// PurchaseResult reports a settled purchase: the ledger row and the grant it
// produced.
type PurchaseResult struct {
	Payment      *models.Payment
	Subscription *models.Subscription
}

// DeviceStatus answers "is this device entitled right now, and until when".
// Connected comes from comparing expires_at against the clock at query time,
// never from a stored flag alone.
type DeviceStatus struct {
	DeviceID         string
	Connected        bool
	PlanCode         string
	PlanName         string
	SubscriptionUUID string
	ExpiresAt        *time.Time
	RemainingSeconds int64
	// Remaining is the human display form, e.g. "3h 27m".
	Remaining string
}

// SweepResult summarizes one sweeper pass.
type SweepResult struct {
	Scanned int
	Expired int
	Revoked int
}
