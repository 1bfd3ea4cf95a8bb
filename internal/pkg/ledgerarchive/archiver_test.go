package ledgerarchive

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hotspotvend/HotspotVend/app/models"
)

func TestDaysToArchive(t *testing.T) {
	tests := []struct {
		name         string
		lastArchived string
		yesterday    string
		expected     []string
	}{
		{"First run archives only yesterday", "", "2025-06-10", []string{"2025-06-10"}},
		{"Up to date", "2025-06-10", "2025-06-10", nil},
		{"Marker ahead of yesterday", "2025-06-11", "2025-06-10", nil},
		{"One day behind", "2025-06-09", "2025-06-10", []string{"2025-06-10"}},
		{"Outage backfill, oldest first", "2025-06-07", "2025-06-10", []string{"2025-06-08", "2025-06-09", "2025-06-10"}},
		{"Month boundary", "2025-05-30", "2025-06-01", []string{"2025-05-31", "2025-06-01"}},
		{"Broken marker starts fresh", "not-a-date", "2025-06-10", []string{"2025-06-10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, daysToArchive(tt.lastArchived, tt.yesterday))
		})
	}
}

func TestDaysToArchiveCapsBackfill(t *testing.T) {
	days := daysToArchive("2024-01-01", "2025-06-10")

	assert.Len(t, days, maxCatchUpDays)
	assert.Equal(t, "2024-01-02", days[0])
}

func TestDayBounds(t *testing.T) {
	start, end, err := dayBounds("2025-06-10")

	assert.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), end)

	_, _, err = dayBounds("10.06.2025")
	assert.Error(t, err)
}

func TestExportCSV(t *testing.T) {
	payments := []models.Payment{
		{
			UUID:        "2fd2f07e-9f96-4a22-a73c-0ae6e8f3f7a1",
			DeviceID:    "aa:bb:cc:dd:ee:ff",
			PlanCode:    "day-pass",
			Method:      models.PaymentMethodMpesa,
			AmountCents: 10000,
			Currency:    "KES",
			ProviderRef: "MPESA-REF-1",
			CreatedAt:   time.Date(2025, 6, 10, 8, 30, 0, 0, time.UTC),
		},
	}

	lines := strings.Split(strings.TrimSpace(string(exportCSV(payments))), "\n")

	assert.Len(t, lines, 2)
	assert.Equal(t, "uuid,created_at,device_id,plan_code,method,amount_cents,currency,provider_ref", lines[0])
	assert.Equal(t, "2fd2f07e-9f96-4a22-a73c-0ae6e8f3f7a1,2025-06-10T08:30:00Z,aa:bb:cc:dd:ee:ff,day-pass,mpesa,10000,KES,MPESA-REF-1", lines[1])
}

func TestExportCSVEmptyDayKeepsHeader(t *testing.T) {
	lines := strings.Split(strings.TrimSpace(string(exportCSV(nil))), "\n")

	assert.Len(t, lines, 1)
	assert.Equal(t, "uuid,created_at,device_id,plan_code,method,amount_cents,currency,provider_ref", lines[0])
}

func TestGetObjectKey(t *testing.T) {
	cfg := &Config{}
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "ledger/2025/06/payments-2025-06-10.csv", cfg.GetObjectKey(day))
}

func TestLoadConfigValidation(t *testing.T) {
	t.Setenv("S3_ARCHIVE_ENABLED", "true")
	t.Setenv("S3_ACCESS_KEY_ID", "key")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("S3_BUCKET_NAME", "")

	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("S3_BUCKET_NAME", "hotspot-ledger")
	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.True(t, cfg.IsEnabled())
	assert.Equal(t, "hotspot-ledger", cfg.GetBucketName())
}
