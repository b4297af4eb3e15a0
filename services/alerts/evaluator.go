// Package alerts evaluates user-defined market alerts and orchestrates
// batch runs over all active alerts.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"stock_alert_backend/models"
)

// Typed configuration errors. Both are surfaced per-alert and caught at the
// orchestrator boundary, never crashing a batch.
var (
	ErrUnknownTriggerType   = errors.New("unknown alert trigger type")
	ErrUnsupportedCondition = errors.New("unsupported alert condition")
)

// Trailing window and factors for volume-based checks
const (
	volumeLookbackDays       = 30
	newsLookbackWindow       = 24 * time.Hour
	crossoverHistorySamples  = 2
	insufficientCrossoverMsg = "Not enough data for crossover analysis"
)

var (
	volumeConfirmFactor = decimal.NewFromFloat(1.5)
	volumeSpikeFactor   = decimal.NewFromInt(2)
)

// Verdict is the outcome of evaluating a single alert's conditions
type Verdict struct {
	Triggered    bool
	Message      string
	TriggerValue decimal.Decimal
}

// PriceStore reads price bars, ordered ascending by date
type PriceStore interface {
	RecentBars(ctx context.Context, stockID uint, limit int) ([]models.StockPrice, error)
}

// IndicatorStore reads calculated indicator values
type IndicatorStore interface {
	// LatestIndicator returns the newest value, or nil when none exists
	LatestIndicator(ctx context.Context, stockID uint, indicatorType string, period int) (*models.TechnicalIndicator, error)
	// IndicatorHistory returns up to limit values, newest first
	IndicatorHistory(ctx context.Context, stockID uint, indicatorType string, period int, limit int) ([]models.TechnicalIndicator, error)
}

// NewsStore answers whether a stock has a recent news mention
type NewsStore interface {
	HasMentionSince(ctx context.Context, symbol, sentiment string, since time.Time) (bool, error)
}

type evaluateFunc func(ctx context.Context, alert *models.Alert) (Verdict, error)

// ConditionEvaluator resolves an alert's trigger type to its evaluation
// strategy. The strategy map is keyed by the closed TriggerType enum; an
// unrecognized type is a lookup error, not a dynamic dispatch miss.
type ConditionEvaluator struct {
	prices     PriceStore
	indicators IndicatorStore
	news       NewsStore
	strategies map[models.TriggerType]evaluateFunc
	log        *logrus.Entry

	now func() time.Time
}

// NewConditionEvaluator creates an evaluator wired to the given stores
func NewConditionEvaluator(prices PriceStore, indicators IndicatorStore, news NewsStore, log *logrus.Logger) *ConditionEvaluator {
	e := &ConditionEvaluator{
		prices:     prices,
		indicators: indicators,
		news:       news,
		log:        log.WithField("component", "condition_evaluator"),
		now:        time.Now,
	}
	e.strategies = map[models.TriggerType]evaluateFunc{
		models.TriggerPrice:     e.evaluatePrice,
		models.TriggerVolume:    e.evaluateVolume,
		models.TriggerIndicator: e.evaluateIndicator,
		models.TriggerNews:      e.evaluateNews,
	}
	return e
}

// Evaluate runs the alert's primary condition and, when configured, the
// secondary indicator condition combined with AND/OR. The reported trigger
// value is always the primary's.
func (e *ConditionEvaluator) Evaluate(ctx context.Context, alert *models.Alert) (Verdict, error) {
	strategy, ok := e.strategies[alert.TriggerType]
	if !ok {
		return Verdict{}, fmt.Errorf("%w: %q", ErrUnknownTriggerType, alert.TriggerType)
	}

	primary, err := strategy(ctx, alert)
	if err != nil {
		return Verdict{}, err
	}
	if alert.SecondaryIndicatorType == "" {
		return primary, nil
	}

	secondary, err := e.evaluateSecondary(ctx, alert)
	if err != nil {
		return Verdict{}, err
	}

	combined := Verdict{
		Message:      primary.Message + "; " + secondary.Message,
		TriggerValue: primary.TriggerValue,
	}
	switch alert.CombineOperator {
	case models.CombineOr:
		combined.Triggered = primary.Triggered || secondary.Triggered
	default: // AND is the default combination
		combined.Triggered = primary.Triggered && secondary.Triggered
	}
	return combined, nil
}

// evaluatePrice handles above/below threshold checks and baseline-anchored
// crossing checks. The baseline is the price captured at alert creation and
// is never mutated here, so a price that stays beyond the threshold keeps
// triggering for as long as the cooldown allows.
func (e *ConditionEvaluator) evaluatePrice(ctx context.Context, alert *models.Alert) (Verdict, error) {
	bars, err := e.prices.RecentBars(ctx, alert.StockID, volumeLookbackDays+1)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to load price bars: %w", err)
	}
	if len(bars) == 0 {
		return Verdict{Message: "No price data available"}, nil
	}

	latest := bars[len(bars)-1]
	current := latest.Close
	verdict := Verdict{TriggerValue: current}

	switch alert.Condition {
	case models.ConditionAbove:
		verdict.Triggered = current.GreaterThan(alert.Threshold)
		verdict.Message = fmt.Sprintf("Price %s is above threshold %s", current, alert.Threshold)
	case models.ConditionBelow:
		verdict.Triggered = current.LessThan(alert.Threshold)
		verdict.Message = fmt.Sprintf("Price %s is below threshold %s", current, alert.Threshold)
	case models.ConditionCrossesAbove:
		verdict.Triggered = alert.BaselinePrice.LessThanOrEqual(alert.Threshold) && current.GreaterThan(alert.Threshold)
		verdict.Message = fmt.Sprintf("Price %s crossed above %s from baseline %s", current, alert.Threshold, alert.BaselinePrice)
	case models.ConditionCrossesBelow:
		verdict.Triggered = alert.BaselinePrice.GreaterThanOrEqual(alert.Threshold) && current.LessThan(alert.Threshold)
		verdict.Message = fmt.Sprintf("Price %s crossed below %s from baseline %s", current, alert.Threshold, alert.BaselinePrice)
	default:
		return Verdict{}, fmt.Errorf("%w: price condition %q", ErrUnsupportedCondition, alert.Condition)
	}

	if !verdict.Triggered {
		verdict.Message = fmt.Sprintf("Price condition not met (current %s, threshold %s)", current, alert.Threshold)
		return verdict, nil
	}

	if alert.VolumeConfirmation {
		avg, ok := trailingAverageVolume(bars)
		if !ok {
			verdict.Triggered = false
			verdict.Message = "Volume confirmation required but no trailing volume data"
			return verdict, nil
		}
		required := avg.Mul(volumeConfirmFactor)
		if decimal.NewFromInt(latest.Volume).LessThanOrEqual(required) {
			verdict.Triggered = false
			verdict.Message = fmt.Sprintf("Price condition met but volume %d below 1.5x average %s", latest.Volume, avg.Round(0))
		}
	}
	return verdict, nil
}

// evaluateVolume compares the latest volume to the trailing 30-day average,
// computed over bars strictly before the latest
func (e *ConditionEvaluator) evaluateVolume(ctx context.Context, alert *models.Alert) (Verdict, error) {
	bars, err := e.prices.RecentBars(ctx, alert.StockID, volumeLookbackDays+1)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to load price bars: %w", err)
	}
	if len(bars) == 0 {
		return Verdict{Message: "No price data available"}, nil
	}

	latest := bars[len(bars)-1]
	current := decimal.NewFromInt(latest.Volume)
	verdict := Verdict{TriggerValue: current}

	avg, ok := trailingAverageVolume(bars)
	if !ok {
		verdict.Message = "Not enough volume history for average comparison"
		return verdict, nil
	}

	switch alert.Condition {
	case models.ConditionAboveAverage:
		verdict.Triggered = current.GreaterThan(avg)
		verdict.Message = fmt.Sprintf("Volume %d vs 30-day average %s", latest.Volume, avg.Round(0))
	case models.ConditionBelowAverage:
		verdict.Triggered = current.LessThan(avg)
		verdict.Message = fmt.Sprintf("Volume %d vs 30-day average %s", latest.Volume, avg.Round(0))
	case models.ConditionSpike:
		verdict.Triggered = current.GreaterThan(avg.Mul(volumeSpikeFactor))
		verdict.Message = fmt.Sprintf("Volume %d vs 2x 30-day average %s", latest.Volume, avg.Mul(volumeSpikeFactor).Round(0))
	default:
		return Verdict{}, fmt.Errorf("%w: volume condition %q", ErrUnsupportedCondition, alert.Condition)
	}
	return verdict, nil
}

// evaluateIndicator handles threshold checks on the latest calculated value
// and rolling-previous-sample crossover checks between two indicator series.
// Unlike price crossings this is not baseline-anchored: it compares the last
// two samples of each series.
func (e *ConditionEvaluator) evaluateIndicator(ctx context.Context, alert *models.Alert) (Verdict, error) {
	switch alert.Condition {
	case models.ConditionAbove, models.ConditionBelow:
		latest, err := e.indicators.LatestIndicator(ctx, alert.StockID, alert.IndicatorType, alert.IndicatorPeriod)
		if err != nil {
			return Verdict{}, fmt.Errorf("failed to load indicator: %w", err)
		}
		if latest == nil {
			return Verdict{Message: fmt.Sprintf("No %s-%d value calculated yet", alert.IndicatorType, alert.IndicatorPeriod)}, nil
		}

		verdict := Verdict{TriggerValue: latest.Value}
		if alert.Condition == models.ConditionAbove {
			verdict.Triggered = latest.Value.GreaterThan(alert.Threshold)
		} else {
			verdict.Triggered = latest.Value.LessThan(alert.Threshold)
		}
		verdict.Message = fmt.Sprintf("%s-%d is %s (threshold %s)", alert.IndicatorType, alert.IndicatorPeriod, latest.Value, alert.Threshold)
		return verdict, nil

	case models.ConditionCrossover, models.ConditionCrossunder:
		return e.evaluateIndicatorCrossing(ctx, alert)

	default:
		return Verdict{}, fmt.Errorf("%w: indicator condition %q", ErrUnsupportedCondition, alert.Condition)
	}
}

func (e *ConditionEvaluator) evaluateIndicatorCrossing(ctx context.Context, alert *models.Alert) (Verdict, error) {
	primary, err := e.indicators.IndicatorHistory(ctx, alert.StockID, alert.IndicatorType, alert.IndicatorPeriod, crossoverHistorySamples)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to load indicator history: %w", err)
	}
	compare, err := e.indicators.IndicatorHistory(ctx, alert.StockID, alert.CompareIndicatorType, alert.ComparePeriod, crossoverHistorySamples)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to load compare indicator history: %w", err)
	}
	if len(primary) < crossoverHistorySamples || len(compare) < crossoverHistorySamples {
		return Verdict{Message: insufficientCrossoverMsg}, nil
	}

	// Histories are newest first
	curPrimary, prevPrimary := primary[0].Value, primary[1].Value
	curCompare, prevCompare := compare[0].Value, compare[1].Value

	verdict := Verdict{TriggerValue: curPrimary}
	if alert.Condition == models.ConditionCrossover {
		// Non-strict previous comparison: a touch counts as "was at or below"
		verdict.Triggered = prevPrimary.LessThanOrEqual(prevCompare) && curPrimary.GreaterThan(curCompare)
		verdict.Message = fmt.Sprintf("%s-%d crossed above %s-%d (%s > %s)",
			alert.IndicatorType, alert.IndicatorPeriod, alert.CompareIndicatorType, alert.ComparePeriod, curPrimary, curCompare)
	} else {
		verdict.Triggered = prevPrimary.GreaterThanOrEqual(prevCompare) && curPrimary.LessThan(curCompare)
		verdict.Message = fmt.Sprintf("%s-%d crossed below %s-%d (%s < %s)",
			alert.IndicatorType, alert.IndicatorPeriod, alert.CompareIndicatorType, alert.ComparePeriod, curPrimary, curCompare)
	}
	if !verdict.Triggered {
		verdict.Message = fmt.Sprintf("No %s between %s-%d and %s-%d",
			alert.Condition, alert.IndicatorType, alert.IndicatorPeriod, alert.CompareIndicatorType, alert.ComparePeriod)
	}
	return verdict, nil
}

// evaluateNews triggers on the presence of any matching mention published
// after max(lastTriggered, now-24h). Presence-based, not count-based.
func (e *ConditionEvaluator) evaluateNews(ctx context.Context, alert *models.Alert) (Verdict, error) {
	since := e.now().Add(-newsLookbackWindow)
	if alert.LastTriggered != nil && alert.LastTriggered.After(since) {
		since = *alert.LastTriggered
	}

	found, err := e.news.HasMentionSince(ctx, alert.Stock.Symbol, alert.Sentiment, since)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to query news mentions: %w", err)
	}

	verdict := Verdict{Triggered: found}
	if found {
		verdict.Message = fmt.Sprintf("News mention found for %s", alert.Stock.Symbol)
		if alert.Sentiment != "" {
			verdict.Message += fmt.Sprintf(" (sentiment %s)", alert.Sentiment)
		}
	} else {
		verdict.Message = fmt.Sprintf("No recent news mentions for %s", alert.Stock.Symbol)
	}
	return verdict, nil
}

// evaluateSecondary checks the optional secondary indicator threshold
// condition that is combined with the primary verdict
func (e *ConditionEvaluator) evaluateSecondary(ctx context.Context, alert *models.Alert) (Verdict, error) {
	latest, err := e.indicators.LatestIndicator(ctx, alert.StockID, alert.SecondaryIndicatorType, alert.SecondaryPeriod)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to load secondary indicator: %w", err)
	}
	if latest == nil {
		return Verdict{Message: fmt.Sprintf("No %s-%d value calculated yet", alert.SecondaryIndicatorType, alert.SecondaryPeriod)}, nil
	}

	verdict := Verdict{TriggerValue: latest.Value}
	switch alert.SecondaryCondition {
	case models.ConditionAbove:
		verdict.Triggered = latest.Value.GreaterThan(alert.SecondaryThreshold)
	case models.ConditionBelow:
		verdict.Triggered = latest.Value.LessThan(alert.SecondaryThreshold)
	default:
		return Verdict{}, fmt.Errorf("%w: secondary condition %q", ErrUnsupportedCondition, alert.SecondaryCondition)
	}
	verdict.Message = fmt.Sprintf("%s-%d is %s (secondary threshold %s)",
		alert.SecondaryIndicatorType, alert.SecondaryPeriod, latest.Value, alert.SecondaryThreshold)
	return verdict, nil
}

// trailingAverageVolume averages the volume of the bars strictly before the
// latest, capped at the lookback window. Returns false when no prior bars
// exist.
func trailingAverageVolume(bars []models.StockPrice) (decimal.Decimal, bool) {
	if len(bars) < 2 {
		return decimal.Zero, false
	}
	prior := bars[:len(bars)-1]
	if len(prior) > volumeLookbackDays {
		prior = prior[len(prior)-volumeLookbackDays:]
	}

	var sum int64
	for _, bar := range prior {
		sum += bar.Volume
	}
	return decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(prior)))), true
}
