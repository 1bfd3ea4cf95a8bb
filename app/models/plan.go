package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Plan is a purchasable access tier. Rows are read-mostly: once a payment
// references a plan, later catalog edits never rewrite the entitlements that
// were issued from it (duration and price are copied at grant time).
type Plan struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Code            string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"code" validate:"required,min=2,max=50"`
	Name            string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Description     string    `gorm:"type:text" json:"description" validate:"max=1000"`
	DurationMinutes uint      `gorm:"not null" json:"duration_minutes" validate:"required,min=1"`
	PriceCents      int64     `gorm:"not null" json:"price_cents" validate:"required,gt=0"`
	Currency        string    `gorm:"type:varchar(3);not null;default:'KES'" json:"currency" validate:"required,len=3"`
	Active          bool      `gorm:"default:true;index" json:"active"`
	SortOrder       int       `gorm:"default:0" json:"sort_order"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Plan) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// Duration returns the access window granted by this plan.
func (p *Plan) Duration() time.Duration {
	return time.Duration(p.DurationMinutes) * time.Minute
}

// FindPlanByCode looks up a plan by its unique catalog code.
func FindPlanByCode(db *gorm.DB, code string) (*Plan, error) {
	var plan Plan
	result := db.Where("code = ?", code).First(&plan)
	if result.Error != nil {
		return nil, result.Error
	}
	return &plan, nil
}
