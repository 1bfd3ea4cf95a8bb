package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Setting represents a system setting
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:255;not null;uniqueIndex" json:"key" validate:"required,min=1,max=255"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null" json:"type" validate:"required"` // string, boolean, integer
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppSettings represents the runtime-tunable portal settings
type AppSettings struct {
	PortalName               string `json:"portal_name" validate:"required,min=1,max=255"`
	CurrencyCode             string `json:"currency_code" validate:"required,len=3"`
	PurchaseEnabled          bool   `json:"purchase_enabled"`
	SweepIntervalSeconds     int    `json:"sweep_interval_seconds" validate:"min=5"`
	ReconcileIntervalMinutes int    `json:"reconcile_interval_minutes" validate:"min=1"`
	ReconcileGraceMinutes    int    `json:"reconcile_grace_minutes" validate:"min=1"`
	RevokeWorkerCount        int    `json:"revoke_worker_count" validate:"min=1,max=32"`
	mu                       sync.RWMutex
}

// Global settings instance
var (
	appSettings *AppSettings
	settingsMu  sync.RWMutex
)

// GetAppSettings returns the current application settings
func GetAppSettings() *AppSettings {
	settingsMu.RLock()
	current := appSettings
	settingsMu.RUnlock()
	if current != nil {
		return current
	}

	// Defaults until LoadSettings has run (boot, tests)
	settingsMu.Lock()
	defer settingsMu.Unlock()
	if appSettings == nil {
		appSettings = defaultAppSettings()
	}
	return appSettings
}

func defaultAppSettings() *AppSettings {
	return &AppSettings{
		PortalName:               "HotspotVend",
		CurrencyCode:             "KES",
		PurchaseEnabled:          true,
		SweepIntervalSeconds:     60,
		ReconcileIntervalMinutes: 30,
		ReconcileGraceMinutes:    10,
		RevokeWorkerCount:        4,
	}
}

// LoadSettings loads settings from database into memory
func LoadSettings(db *gorm.DB) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	// Initialize with defaults
	appSettings = defaultAppSettings()

	// Load settings from database
	var settings []Setting
	if err := db.Find(&settings).Error; err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	// Apply loaded settings
	for _, setting := range settings {
		switch setting.Key {
		case "portal_name":
			appSettings.PortalName = setting.Value
		case "currency_code":
			appSettings.CurrencyCode = setting.Value
		case "purchase_enabled":
			appSettings.PurchaseEnabled = setting.Value == "true"
		case "sweep_interval_seconds":
			if v, err := strconv.Atoi(setting.Value); err == nil && v >= 5 {
				appSettings.SweepIntervalSeconds = v
			}
		case "reconcile_interval_minutes":
			if v, err := strconv.Atoi(setting.Value); err == nil && v >= 1 {
				appSettings.ReconcileIntervalMinutes = v
			}
		case "reconcile_grace_minutes":
			if v, err := strconv.Atoi(setting.Value); err == nil && v >= 1 {
				appSettings.ReconcileGraceMinutes = v
			}
		case "revoke_worker_count":
			if v, err := strconv.Atoi(setting.Value); err == nil && v >= 1 {
				appSettings.RevokeWorkerCount = v
			}
		}
	}

	return nil
}

// SaveSettings saves current settings to database
func SaveSettings(db *gorm.DB, settings *AppSettings) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	// Validate settings
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// Convert settings to database format
	settingsMap := map[string]interface{}{
		"portal_name":                settings.PortalName,
		"currency_code":              settings.CurrencyCode,
		"purchase_enabled":           fmt.Sprintf("%t", settings.PurchaseEnabled),
		"sweep_interval_seconds":     strconv.Itoa(settings.SweepIntervalSeconds),
		"reconcile_interval_minutes": strconv.Itoa(settings.ReconcileIntervalMinutes),
		"reconcile_grace_minutes":    strconv.Itoa(settings.ReconcileGraceMinutes),
		"revoke_worker_count":        strconv.Itoa(settings.RevokeWorkerCount),
	}

	// Save each setting
	for key, value := range settingsMap {
		var setting Setting
		result := db.Where("setting_key = ?", key).First(&setting)

		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				setting = Setting{
					Key:   key,
					Value: fmt.Sprintf("%v", value),
					Type:  getSettingType(key),
				}
				if err := db.Create(&setting).Error; err != nil {
					return fmt.Errorf("failed to create setting %s: %w", key, err)
				}
			} else {
				return fmt.Errorf("failed to query setting %s: %w", key, result.Error)
			}
		} else {
			setting.Value = fmt.Sprintf("%v", value)
			if err := db.Save(&setting).Error; err != nil {
				return fmt.Errorf("failed to update setting %s: %w", key, err)
			}
		}
	}

	// Update global settings
	appSettings = settings
	return nil
}

// getSettingType returns the type of a setting based on its key
func getSettingType(key string) string {
	switch key {
	case "portal_name", "currency_code":
		return "string"
	case "purchase_enabled":
		return "boolean"
	case "sweep_interval_seconds", "reconcile_interval_minutes", "reconcile_grace_minutes", "revoke_worker_count":
		return "integer"
	default:
		return "string"
	}
}

// Validate validates the settings
func (s *AppSettings) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// ToJSON converts settings to JSON
func (s *AppSettings) ToJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s)
}

// GetPortalName returns the portal display name
func (s *AppSettings) GetPortalName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.PortalName
}

// GetCurrencyCode returns the ISO currency code plans are priced in
func (s *AppSettings) GetCurrencyCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CurrencyCode
}

// IsPurchaseEnabled returns whether new purchases are accepted (kill switch)
func (s *AppSettings) IsPurchaseEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.PurchaseEnabled
}

// GetSweepIntervalSeconds returns the expiry sweep interval
func (s *AppSettings) GetSweepIntervalSeconds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SweepIntervalSeconds
}

// GetReconcileIntervalMinutes returns the orphan reconcile scan interval
func (s *AppSettings) GetReconcileIntervalMinutes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ReconcileIntervalMinutes
}

// GetReconcileGraceMinutes returns how old a completed payment must be before
// a missing entitlement row counts as an orphan
func (s *AppSettings) GetReconcileGraceMinutes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ReconcileGraceMinutes
}

// GetRevokeWorkerCount returns how many actuator revoke calls may run at once
func (s *AppSettings) GetRevokeWorkerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.RevokeWorkerCount
}
