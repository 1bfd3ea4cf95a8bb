package entitlement

import (
	"fmt"
	"time"

	"github.com/hotspotvend/HotspotVend/app/models"
	"gorm.io/gorm"
)

// Repository provides the DB operations used by the entitlement service.
type Repository interface {
	GetPlanByCode(code string) (*models.Plan, error)
	GetPlanByID(id uint) (*models.Plan, error)
	CreatePayment(payment *models.Payment) error
	GetPaymentByUUID(uuid string) (*models.Payment, error)
	// FailPayment moves a pending payment to failed with the given reason,
	// reporting whether the transition happened.
	FailPayment(id uint, reason string) (bool, error)
	// CompletePaymentAndGrant settles a charge in one transaction: the
	// pending payment becomes completed and the subscription row is created.
	// Either both commit or neither does, so a completed payment without its
	// grant cannot be produced by this path.
	CompletePaymentAndGrant(paymentID uint, providerRef string, sub *models.Subscription) error
	// CreateSubscriptionForPayment grants retroactively for an already
	// completed payment. The unique index on payment_id keeps this single-shot.
	CreateSubscriptionForPayment(sub *models.Subscription) error
	// HasSubscriptionForPayment reports whether a payment already produced
	// its grant.
	HasSubscriptionForPayment(paymentID uint) (bool, error)
	// CurrentSubscriptionForDevice returns the active subscription with the
	// latest expiry still in the future, or gorm.ErrRecordNotFound.
	CurrentSubscriptionForDevice(deviceID string, now time.Time) (*models.Subscription, error)
	GetSubscriptionByUUID(uuid string) (*models.Subscription, error)
	// ListActiveExpiringBefore returns active subscriptions whose window has
	// elapsed at the cutoff, oldest expiry first.
	ListActiveExpiringBefore(cutoff time.Time, limit int) ([]models.Subscription, error)
	// SetSubscriptionStatus transitions between statuses guarded on the
	// previous status, reporting whether this call won the transition.
	SetSubscriptionStatus(id uint, from, to string) (bool, error)
	// ListCompletedPaymentsWithoutSubscription finds ledger rows where money
	// moved but no grant exists, the input of the reconciliation sweep.
	ListCompletedPaymentsWithoutSubscription(olderThan time.Time) ([]models.Payment, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an entitlement repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetPlanByCode(code string) (*models.Plan, error) {
	return models.FindPlanByCode(r.db, code)
}

func (r *gormRepository) GetPlanByID(id uint) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) CreatePayment(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

func (r *gormRepository) GetPaymentByUUID(uuid string) (*models.Payment, error) {
	return models.FindPaymentByUUID(r.db, uuid)
}

func (r *gormRepository) FailPayment(id uint, reason string) (bool, error) {
	result := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":      models.PaymentStatusFailed,
			"fail_reason": reason,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) CompletePaymentAndGrant(paymentID uint, providerRef string, sub *models.Subscription) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", paymentID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"status":       models.PaymentStatusCompleted,
				"provider_ref": providerRef,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("payment %d is no longer pending", paymentID)
		}
		return tx.Create(sub).Error
	})
}

func (r *gormRepository) CreateSubscriptionForPayment(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) HasSubscriptionForPayment(paymentID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).Where("payment_id = ?", paymentID).Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) CurrentSubscriptionForDevice(deviceID string, now time.Time) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.
		Where("device_id = ? AND status = ? AND expires_at > ?", deviceID, models.SubscriptionStatusActive, now).
		Order("expires_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetSubscriptionByUUID(uuid string) (*models.Subscription, error) {
	return models.FindSubscriptionByUUID(r.db, uuid)
}

func (r *gormRepository) ListActiveExpiringBefore(cutoff time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	query := r.db.
		Where("status = ? AND expires_at <= ?", models.SubscriptionStatusActive, cutoff).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&subs).Error
	return subs, err
}

func (r *gormRepository) SetSubscriptionStatus(id uint, from, to string) (bool, error) {
	result := r.db.Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) ListCompletedPaymentsWithoutSubscription(olderThan time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.
		Where("status = ? AND updated_at < ?", models.PaymentStatusCompleted, olderThan).
		Where("NOT EXISTS (SELECT 1 FROM subscriptions WHERE subscriptions.payment_id = payments.id)").
		Order("updated_at ASC").
		Find(&payments).Error
	return payments, err
}
