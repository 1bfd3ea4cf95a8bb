package repository

import (
	"strings"
	"time"

	"github.com/hotspotvend/HotspotVend/app/models"
	"gorm.io/gorm"
)

// voucherRepository implements the VoucherRepository interface
type voucherRepository struct {
	db *gorm.DB
}

// NewVoucherRepository creates a new voucher repository instance
func NewVoucherRepository(db *gorm.DB) VoucherRepository {
	return &voucherRepository{db: db}
}

// Create creates a new voucher in the database
func (r *voucherRepository) Create(voucher *models.Voucher) error {
	return r.db.Create(voucher).Error
}

// CreateBatch inserts a generated batch of vouchers in one statement
func (r *voucherRepository) CreateBatch(vouchers []models.Voucher) error {
	if len(vouchers) == 0 {
		return nil
	}
	return r.db.Create(&vouchers).Error
}

// GetByID retrieves a voucher by its ID
func (r *voucherRepository) GetByID(id uint) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.First(&voucher, id).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

// GetByCode retrieves a voucher by its code
func (r *voucherRepository) GetByCode(code string) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.Where("code = ?", strings.TrimSpace(code)).First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

// List retrieves a paginated list of vouchers, newest first
func (r *voucherRepository) List(offset, limit int) ([]models.Voucher, error) {
	var vouchers []models.Voucher
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&vouchers).Error
	return vouchers, err
}

// Count returns the total number of vouchers
func (r *voucherRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Voucher{}).Count(&count).Error
	return count, err
}

// CountRedeemed returns the number of vouchers already consumed
func (r *voucherRepository) CountRedeemed() (int64, error) {
	var count int64
	err := r.db.Model(&models.Voucher{}).Where("redeemed_at IS NOT NULL").Count(&count).Error
	return count, err
}

// Redeem consumes a voucher for a device. The guarded update makes the
// redemption first-wins: a second caller gets gorm.ErrRecordNotFound.
func (r *voucherRepository) Redeem(code, deviceID string, now time.Time) (*models.Voucher, error) {
	trimmed := strings.TrimSpace(code)
	result := r.db.Model(&models.Voucher{}).
		Where("code = ? AND redeemed_at IS NULL AND (expires_at IS NULL OR expires_at > ?)", trimmed, now).
		Updates(map[string]interface{}{
			"redeemed_at": &now,
			"redeemed_by": deviceID,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var voucher models.Voucher
	if err := r.db.Where("code = ?", trimmed).First(&voucher).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

// Delete removes an unredeemed voucher by its ID
func (r *voucherRepository) Delete(id uint) error {
	return r.db.Where("redeemed_at IS NULL").Delete(&models.Voucher{}, id).Error
}
