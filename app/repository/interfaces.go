package repository

import (
	"time"

	"github.com/hotspotvend/HotspotVend/app/models"
	"gorm.io/gorm"
)

// PlanRepository defines the interface for plan catalog database operations
type PlanRepository interface {
	Create(plan *models.Plan) error
	GetByID(id uint) (*models.Plan, error)
	GetByCode(code string) (*models.Plan, error)
	GetActive() ([]models.Plan, error)
	GetAll() ([]models.Plan, error)
	Update(plan *models.Plan) error
	Delete(id uint) error
	Count() (int64, error)
	CodeExists(code string) (bool, error)
	CodeExistsExceptID(code string, id uint) (bool, error)
}

// PaymentRepository defines the interface for payment ledger database operations
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByID(id uint) (*models.Payment, error)
	GetByUUID(uuid string) (*models.Payment, error)
	Update(payment *models.Payment) error
	List(offset, limit int) ([]models.Payment, error)
	ListByStatus(status string, offset, limit int) ([]models.Payment, error)
	ListByDevice(deviceID string, offset, limit int) ([]models.Payment, error)
	ListCompletedBetween(start, end time.Time) ([]models.Payment, error)
	Count() (int64, error)
	CountByStatus(status string) (int64, error)
	SumCompletedCents(start, end time.Time) (int64, error)
	GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error)
	GetDailyRevenue(startDate, endDate time.Time) ([]models.DailyRevenue, error)
}

// SubscriptionRepository defines the interface for subscription database operations
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	GetByID(id uint) (*models.Subscription, error)
	GetByUUID(uuid string) (*models.Subscription, error)
	GetByPaymentID(paymentID uint) (*models.Subscription, error)
	Update(sub *models.Subscription) error
	List(offset, limit int) ([]models.Subscription, error)
	ListByStatus(status string, offset, limit int) ([]models.Subscription, error)
	ListByDevice(deviceID string, offset, limit int) ([]models.Subscription, error)
	// SetStatus transitions a subscription from one status to another and
	// reports whether the row was actually updated. Concurrent sweepers and
	// admin actions race on the same rows; the compare-and-set keeps each
	// transition single-shot.
	SetStatus(id uint, from, to string) (bool, error)
	Count() (int64, error)
	CountActive() (int64, error)
	GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error)
}

// VoucherRepository defines the interface for voucher database operations
type VoucherRepository interface {
	Create(voucher *models.Voucher) error
	CreateBatch(vouchers []models.Voucher) error
	GetByID(id uint) (*models.Voucher, error)
	GetByCode(code string) (*models.Voucher, error)
	List(offset, limit int) ([]models.Voucher, error)
	Count() (int64, error)
	CountRedeemed() (int64, error)
	// Redeem marks the voucher as used by the given device. The update is
	// guarded on redeemed_at IS NULL so a code can only ever be consumed once,
	// no matter how many purchases race on it.
	Redeem(code, deviceID string, now time.Time) (*models.Voucher, error)
	Delete(id uint) error
}

// SettingRepository defines the interface for application settings
type SettingRepository interface {
	Get() (*models.AppSettings, error)
	Save(settings *models.AppSettings) error
	GetValue(key string) (string, error)
	SetValue(key, value string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Plan         PlanRepository
	Payment      PaymentRepository
	Subscription SubscriptionRepository
	Voucher      VoucherRepository
	Setting      SettingRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Plan:         NewPlanRepository(db),
		Payment:      NewPaymentRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Voucher:      NewVoucherRepository(db),
		Setting:      NewSettingRepository(db),
	}
}
