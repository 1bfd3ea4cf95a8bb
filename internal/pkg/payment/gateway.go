package payment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrTimeout is returned when a provider gave no definitive answer before the
// deadline. Callers must treat the charge as still in flight, never as failed.
var ErrTimeout = errors.New("payment provider gave no definitive answer")

// DeclineError is returned when the provider actively refused the charge.
type DeclineError struct {
	Reason string
}

func (e *DeclineError) Error() string {
	if e.Reason == "" {
		return "charge declined by provider"
	}
	return fmt.Sprintf("charge declined by provider: %s", e.Reason)
}

// ChargeRequest is the provider-agnostic shape handed to a gateway.
type ChargeRequest struct {
	DeviceID    string
	PlanID      uint
	PlanCode    string
	AmountCents int64
	Currency    string
	// AccountRef identifies the payer account at the provider: the phone
	// number for mobile money, the wallet ID for wallet charges, the code
	// for vouchers.
	AccountRef string
	// Reference is our payment UUID, passed through so providers can
	// deduplicate retried charges on their side.
	Reference string
}

// ChargeResult carries the provider-side identifiers of a confirmed charge.
type ChargeResult struct {
	ProviderRef string
}

// Gateway is implemented by every charge provider.
type Gateway interface {
	// Method returns the payment method identifier this gateway serves.
	Method() string
	// RequiresAccount reports whether ChargeRequest.AccountRef is mandatory
	// for this provider.
	RequiresAccount() bool
	// Charge attempts to collect the amount. A *DeclineError means the
	// provider definitively refused; ErrTimeout (or any other error) means
	// the outcome is unknown.
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// Registry holds the configured gateways keyed by payment method.
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

// NewRegistry creates an empty gateway registry.
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]Gateway)}
}

// Register adds a gateway, replacing any previous one for the same method.
func (r *Registry) Register(g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[strings.ToLower(g.Method())] = g
}

// Get resolves a payment method to its gateway.
func (r *Registry) Get(method string) (Gateway, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[strings.ToLower(strings.TrimSpace(method))]
	return g, ok
}

// Methods lists the registered payment methods in stable order.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]string, 0, len(r.gateways))
	for m := range r.gateways {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}
