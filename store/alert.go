package store

import (
	"context"
	"fmt"
	"time"

	"stock_alert_backend/models"
)

// ListActiveAlerts returns active alerts with their stock preloaded,
// optionally restricted to a single trigger type
func (s *Store) ListActiveAlerts(ctx context.Context, triggerType models.TriggerType) ([]models.Alert, error) {
	query := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Preload("Stock")
	if triggerType != "" {
		query = query.Where("trigger_type = ?", triggerType)
	}

	var alerts []models.Alert
	if err := query.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	return alerts, nil
}

// SetLastTriggered stamps the alert's last trigger time. This is the only
// alert field the engine mutates.
func (s *Store) SetLastTriggered(ctx context.Context, alertID uint, triggeredAt time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id = ?", alertID).
		Update("last_triggered", triggeredAt).Error
	if err != nil {
		return fmt.Errorf("failed to update last triggered: %w", err)
	}
	return nil
}

// CreateHistory appends one fired-alert record
func (s *Store) CreateHistory(ctx context.Context, record *models.AlertHistory) error {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create alert history: %w", err)
	}
	return nil
}
