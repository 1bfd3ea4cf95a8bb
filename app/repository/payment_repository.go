package repository

import (
	"fmt"
	"time"

	"github.com/hotspotvend/HotspotVend/app/models"
	"gorm.io/gorm"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create creates a new payment in the database
func (r *paymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// GetByID retrieves a payment by its ID
func (r *paymentRepository) GetByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.First(&payment, id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByUUID retrieves a payment by its public UUID
func (r *paymentRepository) GetByUUID(uuid string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("uuid = ?", uuid).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Update updates an existing payment in the database
func (r *paymentRepository) Update(payment *models.Payment) error {
	return r.db.Save(payment).Error
}

// List retrieves a paginated list of payments, newest first
func (r *paymentRepository) List(offset, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&payments).Error
	return payments, err
}

// ListByStatus retrieves a paginated list of payments in the given status
func (r *paymentRepository) ListByStatus(status string, offset, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("status = ?", status).Order("created_at DESC").Offset(offset).Limit(limit).Find(&payments).Error
	return payments, err
}

// ListByDevice retrieves the payment history of a single device
func (r *paymentRepository) ListByDevice(deviceID string, offset, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("device_id = ?", deviceID).Order("created_at DESC").Offset(offset).Limit(limit).Find(&payments).Error
	return payments, err
}

// ListCompletedBetween retrieves completed payments inside a time window,
// used by the nightly ledger archive
func (r *paymentRepository) ListCompletedBetween(start, end time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("status = ? AND updated_at >= ? AND updated_at < ?", models.PaymentStatusCompleted, start, end).
		Order("updated_at ASC").Find(&payments).Error
	return payments, err
}

// Count returns the total number of payments
func (r *paymentRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Payment{}).Count(&count).Error
	return count, err
}

// CountByStatus returns the number of payments in the given status
func (r *paymentRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Payment{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// SumCompletedCents returns the revenue collected inside a time window
func (r *paymentRepository) SumCompletedCents(start, end time.Time) (int64, error) {
	var total int64
	err := r.db.Model(&models.Payment{}).
		Where("status = ? AND updated_at >= ? AND updated_at < ?", models.PaymentStatusCompleted, start, end).
		Select("COALESCE(SUM(amount_cents), 0)").Row().Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum completed payments: %w", err)
	}
	return total, nil
}

// GetDailyStats returns daily payment counts for a date range
func (r *paymentRepository) GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error) {
	var results []struct {
		Date  string `json:"date"`
		Count int64  `json:"count"`
	}

	// Use DATE_FORMAT for MySQL compatibility and proper date formatting
	err := r.db.Model(&models.Payment{}).
		Select("DATE_FORMAT(created_at, '%Y-%m-%d') as date, COUNT(*) as count").
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("DATE_FORMAT(created_at, '%Y-%m-%d')").
		Order("date").
		Find(&results).Error

	if err != nil {
		return nil, fmt.Errorf("failed to get daily payment stats: %w", err)
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

// GetDailyRevenue returns daily completed revenue for a date range
func (r *paymentRepository) GetDailyRevenue(startDate, endDate time.Time) ([]models.DailyRevenue, error) {
	var results []struct {
		Date  string `json:"date"`
		Cents int64  `json:"cents"`
	}

	err := r.db.Model(&models.Payment{}).
		Select("DATE_FORMAT(updated_at, '%Y-%m-%d') as date, COALESCE(SUM(amount_cents), 0) as cents").
		Where("status = ? AND updated_at BETWEEN ? AND ?", models.PaymentStatusCompleted, startDate, endDate).
		Group("DATE_FORMAT(updated_at, '%Y-%m-%d')").
		Order("date").
		Find(&results).Error

	if err != nil {
		return nil, fmt.Errorf("failed to get daily revenue: %w", err)
	}

	revenue := make([]models.DailyRevenue, len(results))
	for i, result := range results {
		revenue[i] = models.DailyRevenue{
			Date:  result.Date,
			Cents: result.Cents,
		}
	}

	return revenue, nil
}
