package entitlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/hotspotvend/HotspotVend/app/models"
	"github.com/hotspotvend/HotspotVend/internal/pkg/cache"
)

const (
	sweepBatchSize    = 500
	sweepLockKey      = "entitlement:sweep:lock"
	sweepLockTTL      = 45 * time.Second
	revokeCallTimeout = 10 * time.Second
)

// Seams over the cache so tests run without Redis.
var (
	sweepLockAcquire = cache.SetNX
	sweepLockRelease = cache.Delete
)

// SweepExpired marks active subscriptions whose window has elapsed as
// expired and tells the actuator to drop each device.
//
// The sweep is bookkeeping, not the authority on access: readers decide
// connectivity from the live time comparison, so a late sweep only delays
// the status column and the actuator call, never correctness. Re-running
// over an already expired row is a no-op; the guarded status update makes
// sure each row fires its revoke from exactly one pass.
func (s *Service) SweepExpired(ctx context.Context) (*SweepResult, error) {
	res := &SweepResult{}

	// Only one instance sweeps a given window. Losing the lock is fine, the
	// winner handles the batch and the next tick retries. A cache outage
	// must not stop expiry bookkeeping, so errors fall through.
	if acquired, err := sweepLockAcquire(sweepLockKey, s.now().Unix(), sweepLockTTL); err != nil {
		log.Warnf("[Sweeper] sweep lock unavailable, proceeding without: %v", err)
	} else if !acquired {
		return res, nil
	} else {
		defer func() {
			if err := sweepLockRelease(sweepLockKey); err != nil {
				log.Debugf("[Sweeper] could not release sweep lock: %v", err)
			}
		}()
	}

	now := s.now()
	subs, err := s.repo.ListActiveExpiringBefore(now, sweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	res.Scanned = len(subs)
	if len(subs) == 0 {
		return res, nil
	}

	// Transition rows first, then revoke concurrently across devices. Only
	// rows this pass actually transitioned get a revoke, so overlapping
	// sweepers cannot double-fire.
	toRevoke := make([]models.Subscription, 0, len(subs))
	for _, sub := range subs {
		changed, err := s.repo.SetSubscriptionStatus(sub.ID, models.SubscriptionStatusActive, models.SubscriptionStatusExpired)
		if err != nil {
			log.Errorf("[Sweeper] could not expire subscription %s: %v", sub.UUID, err)
			continue
		}
		if changed {
			res.Expired++
			toRevoke = append(toRevoke, sub)
		}
	}

	if len(toRevoke) > 0 {
		res.Revoked = s.revokeAll(ctx, toRevoke)
	}

	if res.Expired > 0 {
		log.Infof("[Sweeper] expired %d subscription(s), revoked %d device(s)", res.Expired, res.Revoked)
	}
	return res, nil
}

// revokeAll fans the actuator calls out over a small worker pool. A failed
// revoke is logged and dropped, never retried here; the status transition
// already happened and must not be held hostage by network gear.
func (s *Service) revokeAll(ctx context.Context, subs []models.Subscription) int {
	workers := models.GetAppSettings().GetRevokeWorkerCount()
	if workers < 1 {
		workers = 1
	}
	if workers > len(subs) {
		workers = len(subs)
	}

	jobs := make(chan models.Subscription, len(subs))
	for _, sub := range subs {
		jobs <- sub
	}
	close(jobs)

	var mutex sync.Mutex
	revoked := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				callCtx, cancel := context.WithTimeout(ctx, revokeCallTimeout)
				err := s.actuator.Revoke(callCtx, sub.DeviceID)
				cancel()
				if err != nil {
					log.Errorf("[Sweeper] actuator revoke for device %s failed: %v", sub.DeviceID, err)
					continue
				}
				mutex.Lock()
				revoked++
				mutex.Unlock()
			}
		}()
	}
	wg.Wait()
	return revoked
}
