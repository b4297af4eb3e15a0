// Package notifications enqueues delivery tasks for triggered alerts.
// Delivery itself is owned by an external dispatcher; this package only
// creates pending tasks.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stock_alert_backend/models"
)

// TaskStore appends notification tasks
type TaskStore interface {
	CreateTask(ctx context.Context, task *models.NotificationTask) error
}

// PreferenceStore reads a user's channel toggles
type PreferenceStore interface {
	// PreferencesForUser returns nil when the user has no preference row
	PreferencesForUser(ctx context.Context, userID uint) (*models.UserPreference, error)
}

// Enqueuer creates one task per enabled channel plus a mandatory in-app task
type Enqueuer struct {
	tasks       TaskStore
	preferences PreferenceStore
	log         *logrus.Entry

	now func() time.Time
}

// NewEnqueuer creates a notification enqueuer
func NewEnqueuer(tasks TaskStore, preferences PreferenceStore, log *logrus.Logger) *Enqueuer {
	return &Enqueuer{
		tasks:       tasks,
		preferences: preferences,
		log:         log.WithField("component", "notification_enqueuer"),
		now:         time.Now,
	}
}

// EnqueueForAlert fans one triggered alert out to the user's channels. Email
// and SMS follow the user's preferences; the in-app task is always created.
// A missing preference row only skips the optional channels.
func (e *Enqueuer) EnqueueForAlert(ctx context.Context, alert *models.Alert, message string) error {
	channels := []string{models.ChannelInApp}

	prefs, err := e.preferences.PreferencesForUser(ctx, alert.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to load user preferences: %w", err)
	}
	if prefs != nil {
		if prefs.EmailEnabled {
			channels = append(channels, models.ChannelEmail)
		}
		if prefs.SMSEnabled {
			channels = append(channels, models.ChannelSMS)
		}
	}

	scheduledAt := e.now()
	for _, channel := range channels {
		task := &models.NotificationTask{
			UserID:      alert.UserID,
			AlertID:     alert.ID,
			Content:     message,
			Channel:     channel,
			Priority:    models.PriorityNormal,
			Status:      models.NotificationPending,
			Attempts:    0,
			MaxAttempts: models.DefaultMaxAttempts,
			ScheduledAt: scheduledAt,
		}
		if err := e.tasks.CreateTask(ctx, task); err != nil {
			return fmt.Errorf("failed to enqueue %s notification: %w", channel, err)
		}
	}

	e.log.WithFields(logrus.Fields{
		"alert_id": alert.ID,
		"user_id":  alert.UserID,
		"channels": len(channels),
	}).Debug("Notifications enqueued")
	return nil
}
