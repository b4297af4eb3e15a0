package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TriggerType is the closed set of alert trigger kinds. Unknown values are
// rejected when the evaluator is looked up, not dispatched dynamically.
type TriggerType string

const (
	TriggerPrice     TriggerType = "price"
	TriggerVolume    TriggerType = "volume"
	TriggerIndicator TriggerType = "indicator"
	TriggerNews      TriggerType = "news"
)

// Condition names per trigger type
const (
	// price conditions
	ConditionAbove        = "above"
	ConditionBelow        = "below"
	ConditionCrossesAbove = "crosses_above"
	ConditionCrossesBelow = "crosses_below"

	// volume conditions
	ConditionAboveAverage = "above_average"
	ConditionBelowAverage = "below_average"
	ConditionSpike        = "spike"

	// indicator conditions (above/below shared with price)
	ConditionCrossover  = "crossover"
	ConditionCrossunder = "crossunder"

	// news condition
	ConditionMentioned = "mentioned"
)

// Combine operators for a secondary indicator condition
const (
	CombineAnd = "AND"
	CombineOr  = "OR"
)

// ValidTriggerTypes returns the supported trigger types
func ValidTriggerTypes() []TriggerType {
	return []TriggerType{TriggerPrice, TriggerVolume, TriggerIndicator, TriggerNews}
}

// IsValidTriggerType checks if the trigger type is recognized
func IsValidTriggerType(t TriggerType) bool {
	for _, valid := range ValidTriggerTypes() {
		if t == valid {
			return true
		}
	}
	return false
}

// ValidConditions returns the condition names allowed for a trigger type
func ValidConditions(t TriggerType) []string {
	switch t {
	case TriggerPrice:
		return []string{ConditionAbove, ConditionBelow, ConditionCrossesAbove, ConditionCrossesBelow}
	case TriggerVolume:
		return []string{ConditionAboveAverage, ConditionBelowAverage, ConditionSpike}
	case TriggerIndicator:
		return []string{ConditionAbove, ConditionBelow, ConditionCrossover, ConditionCrossunder}
	case TriggerNews:
		return []string{ConditionMentioned}
	}
	return nil
}

// IsValidCondition checks if the condition is allowed for the trigger type
func IsValidCondition(t TriggerType, condition string) bool {
	for _, valid := range ValidConditions(t) {
		if condition == valid {
			return true
		}
	}
	return false
}

// Alert represents a user-defined market alert.
//
// BaselinePrice and BaselineTimestamp are captured once when the alert is
// created and are never mutated by evaluation: they anchor forward-looking
// crossover semantics for price alerts. Evaluation mutates LastTriggered only.
type Alert struct {
	ID      uint  `gorm:"primaryKey" json:"id"`
	UserID  uint  `gorm:"index" json:"user_id"`
	StockID uint  `gorm:"index" json:"stock_id"`
	Stock   Stock `gorm:"foreignKey:StockID" json:"stock,omitempty"`

	TriggerType TriggerType     `gorm:"index" json:"trigger_type"`
	Condition   string          `json:"condition"`
	Threshold   decimal.Decimal `gorm:"type:decimal(15,4)" json:"threshold"`

	BaselinePrice     decimal.Decimal `gorm:"type:decimal(15,4)" json:"baseline_price"`
	BaselineTimestamp time.Time       `json:"baseline_timestamp"`

	CooldownMinutes int        `json:"cooldown_minutes"`
	LastTriggered   *time.Time `json:"last_triggered"`

	MarketHoursOnly    bool `gorm:"default:true" json:"market_hours_only"`
	VolumeConfirmation bool `gorm:"default:false" json:"volume_confirmation"`
	IsActive           bool `gorm:"default:true" json:"is_active"`

	// news trigger: optional sentiment filter (positive, negative, neutral)
	Sentiment string `json:"sentiment,omitempty"`

	// indicator trigger: primary indicator and, for crossover/crossunder,
	// the indicator it is compared against
	IndicatorType        string `json:"indicator_type,omitempty"`
	IndicatorPeriod      int    `json:"indicator_period,omitempty"`
	CompareIndicatorType string `json:"compare_indicator_type,omitempty"`
	ComparePeriod        int    `json:"compare_period,omitempty"`

	// optional secondary indicator condition combined with the primary
	// verdict via CombineOperator (AND/OR)
	SecondaryIndicatorType string          `json:"secondary_indicator_type,omitempty"`
	SecondaryPeriod        int             `json:"secondary_period,omitempty"`
	SecondaryCondition     string          `json:"secondary_condition,omitempty"`
	SecondaryThreshold     decimal.Decimal `gorm:"type:decimal(15,4)" json:"secondary_threshold,omitempty"`
	CombineOperator        string          `json:"combine_operator,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarketContext records the market state captured when an alert fired
type MarketContext struct {
	DuringMarketHours bool  `json:"during_market_hours"`
	AlertAgeMinutes   int64 `json:"alert_age_minutes"`
}

// AlertHistory is an append-only record of a fired alert
type AlertHistory struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	AlertID uint `gorm:"index" json:"alert_id"`
	UserID  uint `gorm:"index" json:"user_id"`
	StockID uint `gorm:"index" json:"stock_id"`

	TriggerValue   decimal.Decimal `gorm:"type:decimal(15,4)" json:"trigger_value"`
	ThresholdValue decimal.Decimal `gorm:"type:decimal(15,4)" json:"threshold_value"`
	TriggeredAt    time.Time       `gorm:"index" json:"triggered_at"`

	BaselinePrice      decimal.Decimal `gorm:"type:decimal(15,4)" json:"baseline_price"`
	PriceChange        decimal.Decimal `gorm:"type:decimal(15,4)" json:"price_change"`
	PriceChangePercent decimal.Decimal `gorm:"type:decimal(10,4)" json:"price_change_percent"`
	TriggerVolume      int64           `json:"trigger_volume"`

	MarketContext MarketContext `gorm:"serializer:json" json:"market_context"`

	CreatedAt time.Time `json:"created_at"`
}

// MigrateAlertModels runs database migrations for alert-related models
func MigrateAlertModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Alert{},
		&AlertHistory{},
	)
}
