// Package entitlement owns the lifecycle that turns an untrusted purchase
// request into a durable, time-bounded grant of network access: validate,
// record the charge attempt, collect through a gateway, persist the grant,
// expire it when the clock runs out.
package entitlement

import (
	"time"

	"github.com/hotspotvend/HotspotVend/internal/pkg/actuator"
	"github.com/hotspotvend/HotspotVend/internal/pkg/payment"
	"gorm.io/gorm"
)

// Service orchestrates payments, subscriptions and the network actuator.
type Service struct {
	repo     Repository
	gateways *payment.Registry
	actuator actuator.Actuator

	// now is swappable so tests can steer the clock.
	now func() time.Time
	// alert overrides the reconciliation mailer when set.
	alert func(to, subject, body string) error
}

// SetClock replaces the time source; tests use this to simulate elapsed time.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// PaymentMethods lists the charge methods the portal currently accepts.
func (s *Service) PaymentMethods() []string {
	return s.gateways.Methods()
}

// NewService creates an entitlement service from injected collaborators.
func NewService(repo Repository, gateways *payment.Registry, act actuator.Actuator) *Service {
	return &Service{
		repo:     repo,
		gateways: gateways,
		actuator: act,
		now:      time.Now,
	}
}

// NewServiceFromDB creates an entitlement service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gateways *payment.Registry, act actuator.Actuator) *Service {
	return NewService(NewRepository(db), gateways, act)
}
