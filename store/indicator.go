package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"stock_alert_backend/models"
)

// LatestIndicator returns the newest calculated value for the combination,
// or nil when none has been stored yet
func (s *Store) LatestIndicator(ctx context.Context, stockID uint, indicatorType string, period int) (*models.TechnicalIndicator, error) {
	var value models.TechnicalIndicator
	err := s.db.WithContext(ctx).
		Where("stock_id = ? AND type = ? AND period = ?", stockID, indicatorType, period).
		Order("date DESC").
		First(&value).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest indicator: %w", err)
	}
	return &value, nil
}

// IndicatorHistory returns up to limit values, newest first
func (s *Store) IndicatorHistory(ctx context.Context, stockID uint, indicatorType string, period int, limit int) ([]models.TechnicalIndicator, error) {
	var values []models.TechnicalIndicator
	err := s.db.WithContext(ctx).
		Where("stock_id = ? AND type = ? AND period = ?", stockID, indicatorType, period).
		Order("date DESC").
		Limit(limit).
		Find(&values).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load indicator history: %w", err)
	}
	return values, nil
}

// ExistsForDate reports whether a value is already stored for the calendar
// day starting at day
func (s *Store) ExistsForDate(ctx context.Context, stockID uint, indicatorType string, period int, day time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.TechnicalIndicator{}).
		Where("stock_id = ? AND type = ? AND period = ? AND date >= ? AND date < ?",
			stockID, indicatorType, period, day, day.AddDate(0, 0, 1)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check existing indicator: %w", err)
	}
	return count > 0, nil
}

// Upsert writes a calculated value, updating the existing row when one is
// already present for the same (stock, type, period, date)
func (s *Store) Upsert(ctx context.Context, value *models.TechnicalIndicator) error {
	var existing models.TechnicalIndicator
	err := s.db.WithContext(ctx).
		Where("stock_id = ? AND type = ? AND period = ? AND date = ?",
			value.StockID, value.Type, value.Period, value.Date).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.WithContext(ctx).Create(value).Error
	}
	if err != nil {
		return fmt.Errorf("failed to check existing indicator: %w", err)
	}
	return s.db.WithContext(ctx).Model(&existing).Updates(value).Error
}

// DeleteOlderThan removes indicator values dated before the cutoff and
// returns the number of deleted rows
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("date < ?", cutoff).
		Delete(&models.TechnicalIndicator{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old indicators: %w", result.Error)
	}
	return result.RowsAffected, nil
}
