package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Stock represents a tracked stock symbol
type Stock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Symbol    string    `gorm:"uniqueIndex;not null" json:"symbol"`
	Name      string    `json:"name"`
	Exchange  string    `json:"exchange"` // NSE, BSE
	Status    string    `json:"status"`   // active, delisted, suspended
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stock status constants
const (
	StockStatusActive    = "active"
	StockStatusDelisted  = "delisted"
	StockStatusSuspended = "suspended"
)

// StockPrice represents one daily price bar. Bars are ordered ascending by
// date and immutable once written; a later write for the same date is a
// correction, not a new bar.
type StockPrice struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	StockID   uint            `gorm:"index:idx_price_stock_date" json:"stock_id"`
	Stock     Stock           `gorm:"foreignKey:StockID" json:"stock,omitempty"`
	Date      time.Time       `gorm:"index:idx_price_stock_date" json:"date"`
	Open      decimal.Decimal `gorm:"type:decimal(15,2)" json:"open"`
	High      decimal.Decimal `gorm:"type:decimal(15,2)" json:"high"`
	Low       decimal.Decimal `gorm:"type:decimal(15,2)" json:"low"`
	Close     decimal.Decimal `gorm:"type:decimal(15,2)" json:"close"`
	Volume    int64           `json:"volume"`
	CreatedAt time.Time       `json:"created_at"`
}

// TechnicalIndicator stores one calculated indicator value. At most one row
// exists per (stock, type, period, date); the calculation job checks before
// writing so recomputation on the same day never duplicates.
type TechnicalIndicator struct {
	ID      uint            `gorm:"primaryKey" json:"id"`
	StockID uint            `gorm:"index:idx_ind_stock_date_type" json:"stock_id"`
	Stock   Stock           `gorm:"foreignKey:StockID" json:"stock,omitempty"`
	Date    time.Time       `gorm:"index:idx_ind_stock_date_type" json:"date"`
	Type    string          `gorm:"index:idx_ind_stock_date_type" json:"type"` // SMA, EMA, RSI, MACD, BOLLINGER
	Period  int             `json:"period"`
	Value   decimal.Decimal `gorm:"type:decimal(15,6)" json:"value"`

	// MACD parameters. SignalPeriod is recorded as configured but no signal
	// line is derived from it.
	FastPeriod   int `json:"fast_period,omitempty"`
	SlowPeriod   int `json:"slow_period,omitempty"`
	SignalPeriod int `json:"signal_period,omitempty"`

	// Bollinger bands
	UpperBand decimal.Decimal `gorm:"type:decimal(15,6)" json:"upper_band,omitempty"`
	LowerBand decimal.Decimal `gorm:"type:decimal(15,6)" json:"lower_band,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Indicator type constants
const (
	IndicatorSMA       = "SMA"
	IndicatorEMA       = "EMA"
	IndicatorRSI       = "RSI"
	IndicatorMACD      = "MACD"
	IndicatorBollinger = "BOLLINGER"
)

// ValidIndicatorTypes returns the indicator types the engine calculates
func ValidIndicatorTypes() []string {
	return []string{
		IndicatorSMA,
		IndicatorEMA,
		IndicatorRSI,
		IndicatorMACD,
		IndicatorBollinger,
	}
}

// IsValidIndicatorType checks if the indicator type is recognized
func IsValidIndicatorType(indicatorType string) bool {
	for _, valid := range ValidIndicatorTypes() {
		if indicatorType == valid {
			return true
		}
	}
	return false
}

// MigrateStockModels runs database migrations for stock-related models
func MigrateStockModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Stock{},
		&StockPrice{},
		&TechnicalIndicator{},
	)
}
