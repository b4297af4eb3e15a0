package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"stock_alert_backend/models"
	"stock_alert_backend/services/markethours"
)

// AlertStore loads active alerts and records trigger times
type AlertStore interface {
	// ListActiveAlerts returns active alerts, optionally restricted to one
	// trigger type (empty means all)
	ListActiveAlerts(ctx context.Context, triggerType models.TriggerType) ([]models.Alert, error)
	SetLastTriggered(ctx context.Context, alertID uint, triggeredAt time.Time) error
}

// HistoryStore appends fired-alert records
type HistoryStore interface {
	CreateHistory(ctx context.Context, record *models.AlertHistory) error
}

// Enqueuer fans a triggered alert out to notification tasks
type Enqueuer interface {
	EnqueueForAlert(ctx context.Context, alert *models.Alert, message string) error
}

// Evaluator produces a verdict for one alert
type Evaluator interface {
	Evaluate(ctx context.Context, alert *models.Alert) (Verdict, error)
}

// BatchResult aggregates one orchestrator run.
// Triggered + Failed <= Processed; the remainder simply did not trigger.
type BatchResult struct {
	ProcessedCount int
	TriggeredCount int
	FailedCount    int
}

// Orchestrator runs the per-alert pipeline: cooldown gate, market-hours
// gate, condition evaluation, and on trigger the history write, notification
// fan-out and LastTriggered update. Alerts are processed sequentially; a
// failure in any single alert is contained to that alert.
type Orchestrator struct {
	alerts    AlertStore
	prices    PriceStore
	history   HistoryStore
	notifier  Enqueuer
	evaluator Evaluator

	window          markethours.Window
	defaultCooldown time.Duration
	log             *logrus.Entry

	now func() time.Time
}

// NewOrchestrator creates an alert batch orchestrator
func NewOrchestrator(alerts AlertStore, prices PriceStore, history HistoryStore, notifier Enqueuer, evaluator Evaluator, window markethours.Window, defaultCooldownMinutes int, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		alerts:          alerts,
		prices:          prices,
		history:         history,
		notifier:        notifier,
		evaluator:       evaluator,
		window:          window,
		defaultCooldown: time.Duration(defaultCooldownMinutes) * time.Minute,
		log:             log.WithField("component", "alert_orchestrator"),
		now:             time.Now,
	}
}

// RunBatch evaluates all active alerts, optionally filtered by trigger type.
// No alert failure aborts the batch.
func (o *Orchestrator) RunBatch(ctx context.Context, triggerType models.TriggerType) (BatchResult, error) {
	var result BatchResult

	activeAlerts, err := o.alerts.ListActiveAlerts(ctx, triggerType)
	if err != nil {
		return result, fmt.Errorf("failed to load active alerts: %w", err)
	}

	now := o.now()
	for i := range activeAlerts {
		alert := &activeAlerts[i]
		result.ProcessedCount++

		if o.inCooldown(alert, now) {
			continue
		}
		if alert.MarketHoursOnly && !o.window.IsOpen(now) {
			continue
		}

		verdict, err := o.safeEvaluate(ctx, alert)
		if err != nil {
			result.FailedCount++
			o.log.WithField("alert_id", alert.ID).WithError(err).Warn("Alert evaluation failed")
			continue
		}
		if !verdict.Triggered {
			continue
		}

		if err := o.handleTrigger(ctx, alert, verdict, now); err != nil {
			result.FailedCount++
			o.log.WithField("alert_id", alert.ID).WithError(err).Warn("Failed to record triggered alert")
			continue
		}
		result.TriggeredCount++
	}

	o.log.WithFields(logrus.Fields{
		"processed": result.ProcessedCount,
		"triggered": result.TriggeredCount,
		"failed":    result.FailedCount,
	}).Info("Alert batch completed")
	return result, nil
}

// inCooldown reports whether the alert triggered too recently to fire again
func (o *Orchestrator) inCooldown(alert *models.Alert, now time.Time) bool {
	if alert.LastTriggered == nil {
		return false
	}
	cooldown := time.Duration(alert.CooldownMinutes) * time.Minute
	if cooldown <= 0 {
		cooldown = o.defaultCooldown
	}
	return now.Sub(*alert.LastTriggered) < cooldown
}

// safeEvaluate contains panics from a single alert's evaluation so the rest
// of the batch keeps running
func (o *Orchestrator) safeEvaluate(ctx context.Context, alert *models.Alert) (verdict Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during alert evaluation: %v", r)
		}
	}()
	return o.evaluator.Evaluate(ctx, alert)
}

// handleTrigger writes the history snapshot, enqueues notifications, and
// stamps LastTriggered. Evaluation never mutates the baseline fields.
func (o *Orchestrator) handleTrigger(ctx context.Context, alert *models.Alert, verdict Verdict, now time.Time) error {
	currentPrice, currentVolume := o.latestPrice(ctx, alert.StockID)

	change := currentPrice.Sub(alert.BaselinePrice)
	changePercent := decimal.Zero
	if !alert.BaselinePrice.IsZero() {
		changePercent = change.Div(alert.BaselinePrice).Mul(decimal.NewFromInt(100))
	}

	record := &models.AlertHistory{
		AlertID:            alert.ID,
		UserID:             alert.UserID,
		StockID:            alert.StockID,
		TriggerValue:       verdict.TriggerValue,
		ThresholdValue:     alert.Threshold,
		TriggeredAt:        now,
		BaselinePrice:      alert.BaselinePrice,
		PriceChange:        change,
		PriceChangePercent: changePercent,
		TriggerVolume:      currentVolume,
		MarketContext: models.MarketContext{
			DuringMarketHours: o.window.IsOpen(now),
			AlertAgeMinutes:   int64(now.Sub(alert.CreatedAt).Minutes()),
		},
	}
	if err := o.history.CreateHistory(ctx, record); err != nil {
		return fmt.Errorf("failed to write alert history: %w", err)
	}

	if err := o.notifier.EnqueueForAlert(ctx, alert, verdict.Message); err != nil {
		return fmt.Errorf("failed to enqueue notifications: %w", err)
	}

	if err := o.alerts.SetLastTriggered(ctx, alert.ID, now); err != nil {
		return fmt.Errorf("failed to update last triggered time: %w", err)
	}

	o.log.WithFields(logrus.Fields{
		"alert_id": alert.ID,
		"stock_id": alert.StockID,
		"value":    verdict.TriggerValue,
	}).Info("Alert triggered")
	return nil
}

// latestPrice returns the newest close and volume for the history snapshot.
// Missing price data degrades to zero values rather than failing the trigger.
func (o *Orchestrator) latestPrice(ctx context.Context, stockID uint) (decimal.Decimal, int64) {
	bars, err := o.prices.RecentBars(ctx, stockID, 1)
	if err != nil || len(bars) == 0 {
		return decimal.Zero, 0
	}
	latest := bars[len(bars)-1]
	return latest.Close, latest.Volume
}
