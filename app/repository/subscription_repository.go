package repository

import (
	"fmt"
	"time"

	"github.com/hotspotvend/HotspotVend/app/models"
	"gorm.io/gorm"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Create creates a new subscription in the database
func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

// GetByID retrieves a subscription by its ID
func (r *subscriptionRepository) GetByID(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.First(&sub, id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByUUID retrieves a subscription by its public UUID
func (r *subscriptionRepository) GetByUUID(uuid string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("uuid = ?", uuid).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByPaymentID retrieves the subscription granted for a payment, if any
func (r *subscriptionRepository) GetByPaymentID(paymentID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("payment_id = ?", paymentID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Update updates an existing subscription in the database
func (r *subscriptionRepository) Update(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

// List retrieves a paginated list of subscriptions, newest first
func (r *subscriptionRepository) List(offset, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&subs).Error
	return subs, err
}

// ListByStatus retrieves a paginated list of subscriptions in the given status
func (r *subscriptionRepository) ListByStatus(status string, offset, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("status = ?", status).Order("expires_at DESC").Offset(offset).Limit(limit).Find(&subs).Error
	return subs, err
}

// ListByDevice retrieves the subscription history of a single device
func (r *subscriptionRepository) ListByDevice(deviceID string, offset, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("device_id = ?", deviceID).Order("expires_at DESC").Offset(offset).Limit(limit).Find(&subs).Error
	return subs, err
}

// SetStatus transitions a subscription between statuses with a guard on the
// previous status, reporting whether this call won the transition
func (r *subscriptionRepository) SetStatus(id uint, from, to string) (bool, error) {
	result := r.db.Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Count returns the total number of subscriptions
func (r *subscriptionRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).Count(&count).Error
	return count, err
}

// CountActive returns the number of subscriptions currently marked active
func (r *subscriptionRepository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).Where("status = ?", models.SubscriptionStatusActive).Count(&count).Error
	return count, err
}

// GetDailyStats returns daily granted subscription counts for a date range
func (r *subscriptionRepository) GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error) {
	var results []struct {
		Date  string `json:"date"`
		Count int64  `json:"count"`
	}

	err := r.db.Model(&models.Subscription{}).
		Select("DATE_FORMAT(created_at, '%Y-%m-%d') as date, COUNT(*) as count").
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("DATE_FORMAT(created_at, '%Y-%m-%d')").
		Order("date").
		Find(&results).Error

	if err != nil {
		return nil, fmt.Errorf("failed to get daily subscription stats: %w", err)
	}

	dailyStats := make([]models.DailyStats, len(results))
	for i, result := range results {
		dailyStats[i] = models.DailyStats{
			Date:  result.Date,
			Count: int(result.Count),
		}
	}

	return dailyStats, nil
}
