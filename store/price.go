package store

import (
	"context"
	"fmt"

	"stock_alert_backend/models"
)

// ListActiveStocks returns all stocks with active status
func (s *Store) ListActiveStocks(ctx context.Context) ([]models.Stock, error) {
	var stocks []models.Stock
	err := s.db.WithContext(ctx).
		Where("status = ?", models.StockStatusActive).
		Find(&stocks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active stocks: %w", err)
	}
	return stocks, nil
}

// RecentBars returns up to limit of the newest price bars for a stock,
// ordered ascending by date
func (s *Store) RecentBars(ctx context.Context, stockID uint, limit int) ([]models.StockPrice, error) {
	var bars []models.StockPrice
	err := s.db.WithContext(ctx).
		Where("stock_id = ?", stockID).
		Order("date DESC").
		Limit(limit).
		Find(&bars).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load price bars: %w", err)
	}

	// Reverse to chronological order
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}
