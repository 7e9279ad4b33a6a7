package models

import (
	"time"
)

// AppConfig holds runtime-mutable settings as key/value rows. Values are
// re-read on every use so that administrative changes take effect without
// a restart, and so that every process sharing the database observes them.
type AppConfig struct {
	Key       string    `gorm:"type:varchar(255);primaryKey" json:"key"`
	Value     string    `gorm:"type:varchar(255);not null" json:"value"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (AppConfig) TableName() string {
	return "app_configs"
}

const (
	// ConfigGlobalDailyLimit caps admitted requests per day across all
	// users. 0 or an absent row means no global cap.
	ConfigGlobalDailyLimit = "global_daily_limit"
	// ConfigDefaultDailyLimit is the per-user limit assigned to new users.
	ConfigDefaultDailyLimit = "default_daily_limit"
)
