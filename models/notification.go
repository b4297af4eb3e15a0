package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification channels
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelInApp = "in_app"
)

// Notification task statuses
const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// Notification priorities
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// DefaultMaxAttempts is the delivery retry budget for a new task
const DefaultMaxAttempts = 3

// NotificationTask is one queued delivery. The engine only enqueues tasks;
// an external dispatcher owns status transitions and retries.
type NotificationTask struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	UserID  uint `gorm:"index" json:"user_id"`
	AlertID uint `gorm:"index" json:"alert_id"`

	Content  string `json:"content"`
	Channel  string `gorm:"index" json:"channel"`
	Priority string `json:"priority"`

	Status      string    `gorm:"index;default:'pending'" json:"status"`
	Attempts    int       `gorm:"default:0" json:"attempts"`
	MaxAttempts int       `gorm:"default:3" json:"max_attempts"`
	ScheduledAt time.Time `json:"scheduled_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserPreference holds a user's notification channel toggles. The in-app
// channel is always on and has no toggle here.
type UserPreference struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"uniqueIndex" json:"user_id"`
	EmailEnabled bool      `gorm:"default:true" json:"email_enabled"`
	SMSEnabled   bool      `gorm:"default:false" json:"sms_enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MigrateNotificationModels runs database migrations for notification models
func MigrateNotificationModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&NotificationTask{},
		&UserPreference{},
	)
}
