package repository

import (
	"strings"

	"github.com/hotspotvend/HotspotVend/app/models"
	"gorm.io/gorm"
)

// planRepository implements the PlanRepository interface
type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan repository instance
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

// Create creates a new plan in the database
func (r *planRepository) Create(plan *models.Plan) error {
	return r.db.Create(plan).Error
}

// GetByID retrieves a plan by its ID
func (r *planRepository) GetByID(id uint) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.First(&plan, id).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetByCode retrieves a plan by its unique code
func (r *planRepository) GetByCode(code string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.Where("code = ?", strings.TrimSpace(code)).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetActive retrieves all purchasable plans ordered for display
func (r *planRepository) GetActive() ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.Where("active = ?", true).Order("sort_order ASC, price_cents ASC").Find(&plans).Error
	return plans, err
}

// GetAll retrieves every plan including retired ones
func (r *planRepository) GetAll() ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.Order("sort_order ASC, price_cents ASC").Find(&plans).Error
	return plans, err
}

// Update updates an existing plan in the database
func (r *planRepository) Update(plan *models.Plan) error {
	return r.db.Save(plan).Error
}

// Delete removes a plan by its ID
func (r *planRepository) Delete(id uint) error {
	return r.db.Delete(&models.Plan{}, id).Error
}

// Count returns the total number of plans
func (r *planRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Plan{}).Count(&count).Error
	return count, err
}

// CodeExists checks whether a plan code is already taken
func (r *planRepository) CodeExists(code string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Plan{}).Where("code = ?", strings.TrimSpace(code)).Count(&count).Error
	return count > 0, err
}

// CodeExistsExceptID checks whether a plan code is taken by a different plan
func (r *planRepository) CodeExistsExceptID(code string, id uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Plan{}).Where("code = ? AND id <> ?", strings.TrimSpace(code), id).Count(&count).Error
	return count > 0, err
}
