package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment statuses. A payment is created pending and transitions exactly once
// to completed or failed; terminal rows are never reopened.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Supported charge methods.
const (
	PaymentMethodMpesa   = "mpesa"
	PaymentMethodAirtel  = "airtel"
	PaymentMethodWallet  = "wallet"
	PaymentMethodVoucher = "voucher"
)

// JSON stores raw JSON documents in a single column (payment request metadata).
type JSON json.RawMessage

// Value implements the driver.Valuer interface.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements the sql.Scanner interface.
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = JSON("{}")
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid scan source")
	}
	*j = JSON(bytes)
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = JSON(data)
	return nil
}

// Payment is one charge attempt for one device. Every purchase call writes
// exactly one row, before the gateway is invoked, so the ledger is complete
// even when the external call crashes or times out. PlanCode and AmountCents
// are captured at request time and stay fixed regardless of catalog edits.
type Payment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UUID        string    `gorm:"type:char(36);uniqueIndex;not null" json:"uuid"`
	DeviceID    string    `gorm:"type:varchar(191);not null;index:idx_payments_device_status,priority:1" json:"device_id" validate:"required,min=1,max=191"`
	PlanID      uint      `gorm:"not null;index" json:"plan_id"`
	PlanCode    string    `gorm:"type:varchar(50);not null" json:"plan_code"`
	AmountCents int64     `gorm:"not null" json:"amount_cents" validate:"gt=0"`
	Currency    string    `gorm:"type:varchar(3);not null;default:'KES'" json:"currency"`
	Method      string    `gorm:"type:varchar(20);not null;index" json:"method" validate:"oneof=mpesa airtel wallet voucher"`
	Status      string    `gorm:"type:varchar(16);not null;default:'pending';index:idx_payments_device_status,priority:2;index" json:"status" validate:"oneof=pending completed failed"`
	ProviderRef string    `gorm:"type:varchar(191);default:''" json:"provider_ref,omitempty"`
	FailReason  string    `gorm:"type:varchar(255);default:''" json:"fail_reason,omitempty"`
	Metadata    JSON      `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the public identifier before the row is inserted.
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == "" {
		p.UUID = uuid.New().String()
	}
	return nil
}

func (p *Payment) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// IsTerminal reports whether the payment has reached completed or failed.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusCompleted || p.Status == PaymentStatusFailed
}

// IsSupportedPaymentMethod reports whether the method name is one the portal
// accepts. Unknown methods are rejected before any row is written.
func IsSupportedPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodMpesa, PaymentMethodAirtel, PaymentMethodWallet, PaymentMethodVoucher:
		return true
	default:
		return false
	}
}

// FindPaymentByUUID looks up a payment by its public identifier.
func FindPaymentByUUID(db *gorm.DB, id string) (*Payment, error) {
	var payment Payment
	result := db.Where("uuid = ?", id).First(&payment)
	if result.Error != nil {
		return nil, result.Error
	}
	return &payment, nil
}
