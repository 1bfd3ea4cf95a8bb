package entitlement

import (
	"errors"
	"fmt"
)

// The four failure families callers must tell apart. Every error returned by
// the service wraps exactly one of these, so handlers can map them to HTTP
// responses with errors.Is.
var (
	// ErrValidation covers requests rejected before any side effect. Safe to
	// retry immediately with corrected input.
	ErrValidation = errors.New("invalid purchase request")
	// ErrGatewayDeclined means the provider definitively refused the charge.
	// The payment attempt is recorded as failed; no entitlement exists.
	ErrGatewayDeclined = errors.New("charge declined")
	// ErrGatewayTimeout means the provider gave no definitive answer. The
	// payment attempt stays pending and is never promoted without proof.
	ErrGatewayTimeout = errors.New("charge outcome unknown")
	// ErrStorage covers database failures.
	ErrStorage = errors.New("storage failure")
)

// Refinements of ErrValidation, one per rejected precondition.
var (
	ErrPlanNotFound      = fmt.Errorf("%w: unknown plan", ErrValidation)
	ErrPlanInactive      = fmt.Errorf("%w: plan is not purchasable", ErrValidation)
	ErrAmountMismatch    = fmt.Errorf("%w: amount does not match plan price", ErrValidation)
	ErrUnsupportedMethod = fmt.Errorf("%w: unsupported payment method", ErrValidation)
	ErrMissingAccount    = fmt.Errorf("%w: payment method requires an account reference", ErrValidation)
	ErrPurchasesDisabled = fmt.Errorf("%w: purchases are currently disabled", ErrValidation)
)

// ErrEntitlementWrite is the one genuinely dangerous case: the provider
// confirmed the charge but the grant could not be stored. The transaction
// leaves the payment pending so the reconciliation sweep can find it; the
// error must never be swallowed.
var ErrEntitlementWrite = fmt.Errorf("%w: charge succeeded but entitlement could not be stored", ErrStorage)

// PendingPaymentError marks a purchase whose payment row is still pending:
// the charge may have gone through, but no entitlement exists yet. Handlers
// use the UUID to tell the client which payment to watch; errors.Is on the
// wrapped error still yields the failure family.
type PendingPaymentError struct {
	PaymentUUID string
	Err         error
}

func (e *PendingPaymentError) Error() string {
	return fmt.Sprintf("payment %s unresolved: %v", e.PaymentUUID, e.Err)
}

func (e *PendingPaymentError) Unwrap() error { return e.Err }
