package models

import (
	"time"

	"gorm.io/gorm"
)

// Voucher is a prepaid single-use access code sold offline (scratch cards,
// resellers). Redeeming a voucher is one of the supported charge methods; the
// voucher provider claims the row atomically so a code can never pay twice.
type Voucher struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Code        string     `gorm:"type:varchar(32);not null;uniqueIndex" json:"code"`
	PlanID      *uint      `gorm:"default:null;index" json:"plan_id,omitempty"`
	AmountCents int64      `gorm:"not null" json:"amount_cents"`
	RedeemedAt  *time.Time `gorm:"type:timestamp;default:null" json:"redeemed_at,omitempty"`
	RedeemedBy  string     `gorm:"type:varchar(191);default:''" json:"redeemed_by,omitempty"`
	ExpiresAt   *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsRedeemable reports whether the voucher can still be used at the given time.
func (v *Voucher) IsRedeemable(now time.Time) bool {
	if v.RedeemedAt != nil {
		return false
	}
	if v.ExpiresAt != nil && !v.ExpiresAt.After(now) {
		return false
	}
	return true
}

// CoversPlan reports whether the voucher may pay for the given plan. A nil
// PlanID means the voucher is unrestricted as long as the amount matches.
func (v *Voucher) CoversPlan(planID uint) bool {
	return v.PlanID == nil || *v.PlanID == planID
}

// FindVoucherByCode looks up a voucher by its code.
func FindVoucherByCode(db *gorm.DB, code string) (*Voucher, error) {
	var voucher Voucher
	result := db.Where("code = ?", code).First(&voucher)
	if result.Error != nil {
		return nil, result.Error
	}
	return &voucher, nil
}
