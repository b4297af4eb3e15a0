package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"stock_alert_backend/models"
)

// CreateTask appends one pending notification task
func (s *Store) CreateTask(ctx context.Context, task *models.NotificationTask) error {
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create notification task: %w", err)
	}
	return nil
}

// PreferencesForUser returns the user's channel toggles, or nil when the
// user has no preference row
func (s *Store) PreferencesForUser(ctx context.Context, userID uint) (*models.UserPreference, error) {
	var prefs models.UserPreference
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user preferences: %w", err)
	}
	return &prefs, nil
}
