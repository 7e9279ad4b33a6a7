package models

import (
	"time"
)

type ChatSession struct {
	SessionID string    `gorm:"type:varchar(255);primaryKey" json:"session_id"`
	Username  string    `gorm:"type:varchar(255);primaryKey" json:"username"`
	Title     string    `gorm:"type:varchar(255)" json:"title"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

type ChatMessage struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	SessionID string    `gorm:"type:varchar(255);not null;index:idx_message_session" json:"session_id"`
	Username  string    `gorm:"type:varchar(255);not null;index:idx_message_session" json:"username"`
	Role      string    `gorm:"type:varchar(32);not null" json:"role"`
	Model     string    `gorm:"type:varchar(255);not null" json:"model"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
