package models

import "time"

// DailyStats is one day's worth of a counted series for dashboard charts.
type DailyStats struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DailyRevenue is one day's completed-payment revenue in minor units.
type DailyRevenue struct {
	Date  string `json:"date"`
	Cents int64  `json:"cents"`
}

// PortalStat persists per-day portal traffic counters that are accumulated in
// Redis and flushed in batches, so the hot status-poll path never writes to
// the database.
type PortalStat struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Date        string    `gorm:"type:char(10);not null;uniqueIndex" json:"date"` // YYYY-MM-DD
	StatusPolls int64     `gorm:"not null;default:0" json:"status_polls"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
