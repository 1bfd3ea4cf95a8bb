package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Subscription statuses. Active is the only entitling status; expired and
// cancelled are terminal. A device that buys again always gets a new row,
// terminal rows are never reactivated.
const (
	SubscriptionStatusPending   = "pending"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusExpired   = "expired"
)

// Subscription is one time-bounded grant of network access for one device.
// The window is computed once at creation from the plan resolved at grant
// time; the status column is bookkeeping for sweeps and admin views, while
// "is this device connected" is always answered by comparing ExpiresAt
// against the clock (see entitlement.Status).
type Subscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      string    `gorm:"type:char(36);uniqueIndex;not null" json:"uuid"`
	DeviceID  string    `gorm:"type:varchar(191);not null;index:idx_subscriptions_device_status,priority:1" json:"device_id" validate:"required,min=1,max=191"`
	PlanID    uint      `gorm:"not null;index" json:"plan_id"`
	PlanCode  string    `gorm:"type:varchar(50);not null" json:"plan_code"`
	PaymentID uint      `gorm:"not null;uniqueIndex" json:"payment_id"`
	Status    string    `gorm:"type:varchar(16);not null;default:'active';index:idx_subscriptions_device_status,priority:2;index:idx_subscriptions_status_expires,priority:1" json:"status" validate:"oneof=pending active cancelled expired"`
	StartsAt  time.Time `gorm:"not null" json:"starts_at"`
	ExpiresAt time.Time `gorm:"not null;index:idx_subscriptions_status_expires,priority:2" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the public identifier before the row is inserted.
func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == "" {
		s.UUID = uuid.New().String()
	}
	return nil
}

func (s *Subscription) Validate() error {
	v := validator.New()

	return v.Struct(s)
}

// IsCurrent reports whether this row entitles its device right now. The live
// time comparison is authoritative even when a sweep has not yet flipped the
// status column of an elapsed row.
func (s *Subscription) IsCurrent(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.ExpiresAt.After(now)
}

// IsTerminal reports whether the subscription can never entitle again.
func (s *Subscription) IsTerminal() bool {
	return s.Status == SubscriptionStatusCancelled || s.Status == SubscriptionStatusExpired
}

// Remaining returns the access time left, floored at zero.
func (s *Subscription) Remaining(now time.Time) time.Duration {
	if !s.IsCurrent(now) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// FindSubscriptionByUUID looks up a subscription by its public identifier.
func FindSubscriptionByUUID(db *gorm.DB, id string) (*Subscription, error) {
	var sub Subscription
	result := db.Where("uuid = ?", id).First(&sub)
	if result.Error != nil {
		return nil, result.Error
	}
	return &sub, nil
}
