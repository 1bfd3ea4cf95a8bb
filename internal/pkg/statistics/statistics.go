// Package statistics caches the portal's public teaser figures in Redis so
// the landing page can show them without hitting MySQL on every request.
package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/hotspotvend/HotspotVend/app/models"
	"github.com/hotspotvend/HotspotVend/internal/pkg/cache"
	"github.com/hotspotvend/HotspotVend/internal/pkg/database"
)

const (
	CacheKeyActiveDevices  = "statistics:subscriptions:active"
	CacheKeyPurchasesDaily = "statistics:purchases:daily:%s" // Format with date YYYY-MM-DD
	CacheKeyGrantedTotal   = "statistics:subscriptions:total"
	CacheExpiration        = 30 * time.Minute
)

// StatisticsData holds the figures shown on the portal landing page.
type StatisticsData struct {
	ActiveDevices  int
	TodayPurchases int
	TotalGrants    int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached figures are due for a refresh.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cached figures when the interval elapsed.
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next UpdateCacheIfNeeded call to refresh.
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache recomputes all portal figures and stores them in Redis.
func UpdateStatisticsCache() error {
	db := database.GetDB()
	now := time.Now().UTC()

	// Devices holding an unexpired active grant right now
	var activeDevices int64
	if err := db.Model(&models.Subscription{}).
		Where("status = ? AND expires_at > ?", models.SubscriptionStatusActive, now).
		Distinct("device_id").Count(&activeDevices).Error; err != nil {
		log.Printf("Error counting active devices: %v", err)
		return err
	}

	// Completed purchases today
	var todayPurchases int64
	today := now.Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	if err := db.Model(&models.Payment{}).
		Where("status = ? AND created_at BETWEEN ? AND ?", models.PaymentStatusCompleted, todayStart, todayEnd).
		Count(&todayPurchases).Error; err != nil {
		log.Printf("Error counting today's purchases: %v", err)
		return err
	}

	// All grants ever issued
	var totalGrants int64
	if err := db.Model(&models.Subscription{}).Count(&totalGrants).Error; err != nil {
		log.Printf("Error counting total grants: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyActiveDevices, strconv.FormatInt(activeDevices, 10), CacheExpiration); err != nil {
		log.Printf("Error caching active device count: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeyPurchasesDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todayPurchases, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's purchase count: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyGrantedTotal, strconv.FormatInt(totalGrants, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total grant count: %v", err)
		return err
	}

	return nil
}

// GetStatistics returns the portal figures, serving each from cache when
// possible and recounting lazily when a key expired.
func GetStatistics() StatisticsData {
	return StatisticsData{
		ActiveDevices:  GetActiveDevices(),
		TodayPurchases: GetTodayPurchases(),
		TotalGrants:    GetTotalGrants(),
	}
}

// GetActiveDevices returns the number of currently entitled devices from
// cache or database.
func GetActiveDevices() int {
	val, err := cache.Get(CacheKeyActiveDevices)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.Subscription{}).
			Where("status = ? AND expires_at > ?", models.SubscriptionStatusActive, time.Now().UTC()).
			Distinct("device_id").Count(&count).Error; err != nil {
			log.Printf("Error counting active devices: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyActiveDevices, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching active device count: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTodayPurchases returns the number of completed purchases today from
// cache or database.
func GetTodayPurchases() int {
	today := time.Now().UTC().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeyPurchasesDaily, today)

	val, err := cache.Get(dailyKey)
	if err != nil {
		var count int64
		db := database.GetDB()
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)

		if err := db.Model(&models.Payment{}).
			Where("status = ? AND created_at BETWEEN ? AND ?", models.PaymentStatusCompleted, todayStart, todayEnd).
			Count(&count).Error; err != nil {
			log.Printf("Error counting today's purchases: %v", err)
			return 0
		}

		if err := cache.Set(dailyKey, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching today's purchase count: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTotalGrants returns the number of grants ever issued from cache or
// database.
func GetTotalGrants() int {
	val, err := cache.Get(CacheKeyGrantedTotal)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.Subscription{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total grants: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyGrantedTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total grant count: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}
