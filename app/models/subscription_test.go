package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionIsCurrent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		status  string
		expires time.Time
		want    bool
	}{
		{"active with future expiry", SubscriptionStatusActive, now.Add(time.Hour), true},
		{"active but elapsed", SubscriptionStatusActive, now.Add(-time.Minute), false},
		{"active expiring exactly now", SubscriptionStatusActive, now, false},
		{"expired row with future expiry", SubscriptionStatusExpired, now.Add(time.Hour), false},
		{"cancelled row with future expiry", SubscriptionStatusCancelled, now.Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Subscription{Status: tt.status, ExpiresAt: tt.expires}
			assert.Equal(t, tt.want, s.IsCurrent(now))
		})
	}
}

func TestSubscriptionRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := Subscription{Status: SubscriptionStatusActive, ExpiresAt: now.Add(90 * time.Minute)}
	assert.Equal(t, 90*time.Minute, s.Remaining(now))

	// Remaining never goes negative, and terminal rows report zero even
	// when their window has not elapsed yet.
	s.ExpiresAt = now.Add(-time.Hour)
	assert.Equal(t, time.Duration(0), s.Remaining(now))

	s = Subscription{Status: SubscriptionStatusCancelled, ExpiresAt: now.Add(time.Hour)}
	assert.Equal(t, time.Duration(0), s.Remaining(now))
}

func TestVoucherRedeemability(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	v := Voucher{Code: "ABCD1234"}
	assert.True(t, v.IsRedeemable(now))

	v.ExpiresAt = &future
	assert.True(t, v.IsRedeemable(now))

	v.ExpiresAt = &past
	assert.False(t, v.IsRedeemable(now))

	v = Voucher{Code: "ABCD1234", RedeemedAt: &past}
	assert.False(t, v.IsRedeemable(now))
}

func TestVoucherCoversPlan(t *testing.T) {
	planID := uint(7)

	unrestricted := Voucher{}
	assert.True(t, unrestricted.CoversPlan(7))
	assert.True(t, unrestricted.CoversPlan(9))

	restricted := Voucher{PlanID: &planID}
	assert.True(t, restricted.CoversPlan(7))
	assert.False(t, restricted.CoversPlan(9))
}
