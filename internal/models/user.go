package models

import (
	"time"
)

type User struct {
	Username     string    `gorm:"type:varchar(255);primaryKey" json:"username"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"is_admin"`
	DailyLimit   int       `gorm:"not null;default:1000" json:"daily_limit"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
