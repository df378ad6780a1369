package models

import "time"

// WebhookDailyStat holds per-day processing counters for one provider,
// flushed periodically from Redis.
type WebhookDailyStat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Date      string    `gorm:"type:varchar(10);not null;index:ux_webhook_daily_stats_day,unique,priority:1" json:"date"` // YYYY-MM-DD
	Provider  string    `gorm:"type:varchar(20);not null;index:ux_webhook_daily_stats_day,unique,priority:2" json:"provider"`
	Processed int64     `gorm:"not null;default:0" json:"processed"`
	Failed    int64     `gorm:"not null;default:0" json:"failed"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DailyStats repräsentiert Statistiken für einen einzelnen Tag
type DailyStats struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
