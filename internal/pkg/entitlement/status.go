package entitlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/hotspotvend/HotspotVend/app/models"
	"gorm.io/gorm"
)

// Status answers the portal's poll: is the device entitled right now, and for
// how much longer. Connectivity is decided by comparing expires_at against
// the clock at query time, so a delayed sweeper can never keep a lapsed
// device online or knock a paid one off. Read-only; safe to poll at high
// frequency.
func (s *Service) Status(deviceID string) (*DeviceStatus, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrValidation)
	}

	now := s.now()
	status := &DeviceStatus{DeviceID: deviceID}

	sub, err := s.repo.CurrentSubscriptionForDevice(deviceID, now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return status, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	remaining := sub.Remaining(now)
	status.Connected = true
	status.PlanCode = sub.PlanCode
	status.SubscriptionUUID = sub.UUID
	expiresAt := sub.ExpiresAt
	status.ExpiresAt = &expiresAt
	status.RemainingSeconds = int64(remaining / time.Second)
	status.Remaining = FormatRemaining(remaining)

	if plan, planErr := s.repo.GetPlanByID(sub.PlanID); planErr == nil {
		status.PlanName = plan.Name
	}

	return status, nil
}

// Disconnect cancels a subscription by admin action and tells the actuator to
// drop the device. Repeat calls on an already non-active subscription are
// no-ops. The returned bool reports whether this call performed the
// transition.
func (s *Service) Disconnect(ctx context.Context, subscriptionUUID string) (bool, error) {
	sub, err := s.repo.GetSubscriptionByUUID(strings.TrimSpace(subscriptionUUID))
	if err != nil {
		return false, err
	}
	if sub.IsTerminal() {
		return false, nil
	}

	changed, err := s.repo.SetSubscriptionStatus(sub.ID, models.SubscriptionStatusActive, models.SubscriptionStatusCancelled)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !changed {
		// Lost the race against the sweeper or another admin.
		return false, nil
	}

	if err := s.actuator.Revoke(ctx, sub.DeviceID); err != nil {
		log.Errorf("[Entitlement] actuator revoke for device %s failed: %v", sub.DeviceID, err)
	}

	log.Infof("[Entitlement] subscription %s cancelled, device %s disconnected", sub.UUID, sub.DeviceID)
	return true, nil
}

// FormatRemaining renders a duration the way the portal shows it: whole
// hours and minutes, never negative.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int(d % time.Hour / time.Minute)
	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
