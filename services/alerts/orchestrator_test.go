package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"stock_alert_backend/models"
	"stock_alert_backend/services/markethours"
)

type fakeAlertStore struct {
	alerts        []models.Alert
	lastTriggered map[uint]time.Time
	err           error
}

func (f *fakeAlertStore) ListActiveAlerts(ctx context.Context, triggerType models.TriggerType) ([]models.Alert, error) {
	return f.alerts, f.err
}

func (f *fakeAlertStore) SetLastTriggered(ctx context.Context, alertID uint, triggeredAt time.Time) error {
	if f.lastTriggered == nil {
		f.lastTriggered = make(map[uint]time.Time)
	}
	f.lastTriggered[alertID] = triggeredAt
	return nil
}

type fakeHistoryStore struct {
	records []*models.AlertHistory
	err     error
}

func (f *fakeHistoryStore) CreateHistory(ctx context.Context, record *models.AlertHistory) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

type fakeEnqueuer struct {
	messages map[uint]string
}

func (f *fakeEnqueuer) EnqueueForAlert(ctx context.Context, alert *models.Alert, message string) error {
	if f.messages == nil {
		f.messages = make(map[uint]string)
	}
	f.messages[alert.ID] = message
	return nil
}

type fakeEvaluator struct {
	verdicts map[uint]Verdict
	errs     map[uint]error
	panics   map[uint]bool
	calls    []uint
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, alert *models.Alert) (Verdict, error) {
	f.calls = append(f.calls, alert.ID)
	if f.panics[alert.ID] {
		panic("nil indicator dereference")
	}
	if err := f.errs[alert.ID]; err != nil {
		return Verdict{}, err
	}
	return f.verdicts[alert.ID], nil
}

// batchNow is a Monday 11:00 UTC, inside a 9:15-15:30 UTC window
var batchNow = time.Date(2025, 6, 16, 11, 0, 0, 0, time.UTC)

func testOrchestrator(alerts *fakeAlertStore, prices PriceStore, history *fakeHistoryStore, notifier *fakeEnqueuer, evaluator Evaluator) *Orchestrator {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	window := markethours.NewWindow(time.UTC, 9, 15, 15, 30)
	o := NewOrchestrator(alerts, prices, history, notifier, evaluator, window, 60, log)
	o.now = func() time.Time { return batchNow }
	return o
}

func TestRunBatch_FailureIsolation(t *testing.T) {
	alerts := &fakeAlertStore{alerts: []models.Alert{
		{ID: 1, StockID: 1, IsActive: true},
		{ID: 2, StockID: 1, IsActive: true},
		{ID: 3, StockID: 1, IsActive: true},
	}}
	evaluator := &fakeEvaluator{
		errs:   map[uint]error{1: errors.New("store unavailable")},
		panics: map[uint]bool{2: true},
		verdicts: map[uint]Verdict{
			3: {Triggered: true, Message: "fired", TriggerValue: decimal.NewFromInt(100)},
		},
	}
	history := &fakeHistoryStore{}
	notifier := &fakeEnqueuer{}
	o := testOrchestrator(alerts, &stubPrices{}, history, notifier, evaluator)

	result, err := o.RunBatch(context.Background(), "")
	if err != nil {
		t.Fatalf("RunBatch returned error: %v", err)
	}

	if result.ProcessedCount != 3 {
		t.Errorf("ProcessedCount = %d, want 3", result.ProcessedCount)
	}
	if result.FailedCount != 2 {
		t.Errorf("FailedCount = %d, want 2 (error and panic both contained)", result.FailedCount)
	}
	if result.TriggeredCount != 1 {
		t.Errorf("TriggeredCount = %d, want 1", result.TriggeredCount)
	}
	if len(evaluator.calls) != 3 {
		t.Errorf("evaluator called %d times, want 3 (no alert aborted the batch)", len(evaluator.calls))
	}
}

func TestRunBatch_CooldownGate(t *testing.T) {
	recent := batchNow.Add(-10 * time.Minute)
	expired := batchNow.Add(-2 * time.Hour)

	tests := []struct {
		name          string
		alert         models.Alert
		wantEvaluated bool
	}{
		{"inside explicit cooldown", models.Alert{ID: 1, LastTriggered: &recent, CooldownMinutes: 60}, false},
		{"inside default cooldown when unset", models.Alert{ID: 2, LastTriggered: &recent}, false},
		{"cooldown expired", models.Alert{ID: 3, LastTriggered: &expired, CooldownMinutes: 60}, true},
		{"never triggered", models.Alert{ID: 4}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := &fakeAlertStore{alerts: []models.Alert{tt.alert}}
			evaluator := &fakeEvaluator{}
			o := testOrchestrator(alerts, &stubPrices{}, &fakeHistoryStore{}, &fakeEnqueuer{}, evaluator)

			if _, err := o.RunBatch(context.Background(), ""); err != nil {
				t.Fatalf("RunBatch returned error: %v", err)
			}
			evaluated := len(evaluator.calls) > 0
			if evaluated != tt.wantEvaluated {
				t.Errorf("evaluated = %v, want %v", evaluated, tt.wantEvaluated)
			}
		})
	}
}

func TestRunBatch_MarketHoursGate(t *testing.T) {
	alerts := &fakeAlertStore{alerts: []models.Alert{
		{ID: 1, MarketHoursOnly: true},
		{ID: 2, MarketHoursOnly: false},
	}}
	evaluator := &fakeEvaluator{}
	o := testOrchestrator(alerts, &stubPrices{}, &fakeHistoryStore{}, &fakeEnqueuer{}, evaluator)
	o.now = func() time.Time {
		return time.Date(2025, 6, 16, 20, 0, 0, 0, time.UTC) // after close
	}

	result, err := o.RunBatch(context.Background(), "")
	if err != nil {
		t.Fatalf("RunBatch returned error: %v", err)
	}

	if result.ProcessedCount != 2 {
		t.Errorf("ProcessedCount = %d, want 2", result.ProcessedCount)
	}
	if len(evaluator.calls) != 1 || evaluator.calls[0] != 2 {
		t.Errorf("only the market-hours-exempt alert should be evaluated, calls=%v", evaluator.calls)
	}
}

func TestRunBatch_TriggerRecordsHistoryAndNotifies(t *testing.T) {
	created := batchNow.Add(-90 * time.Minute)
	alerts := &fakeAlertStore{alerts: []models.Alert{{
		ID:            7,
		UserID:        3,
		StockID:       1,
		Threshold:     decimal.NewFromInt(105),
		BaselinePrice: decimal.NewFromInt(100),
		CreatedAt:     created,
	}}}
	evaluator := &fakeEvaluator{verdicts: map[uint]Verdict{
		7: {Triggered: true, Message: "Price 110 is above threshold 105", TriggerValue: decimal.NewFromInt(110)},
	}}
	history := &fakeHistoryStore{}
	notifier := &fakeEnqueuer{}
	prices := &stubPrices{bars: flatVolumeBars([]float64{110}, 9000)}
	o := testOrchestrator(alerts, prices, history, notifier, evaluator)

	result, err := o.RunBatch(context.Background(), "")
	if err != nil {
		t.Fatalf("RunBatch returned error: %v", err)
	}
	if result.TriggeredCount != 1 {
		t.Fatalf("TriggeredCount = %d, want 1", result.TriggeredCount)
	}

	if len(history.records) != 1 {
		t.Fatalf("history records = %d, want 1", len(history.records))
	}
	record := history.records[0]
	if record.AlertID != 7 || record.UserID != 3 || record.StockID != 1 {
		t.Errorf("record identity wrong: %+v", record)
	}
	if !record.TriggerValue.Equal(decimal.NewFromInt(110)) {
		t.Errorf("TriggerValue = %s, want 110", record.TriggerValue)
	}
	if !record.PriceChange.Equal(decimal.NewFromInt(10)) {
		t.Errorf("PriceChange = %s, want 10", record.PriceChange)
	}
	if !record.PriceChangePercent.Equal(decimal.NewFromInt(10)) {
		t.Errorf("PriceChangePercent = %s, want 10", record.PriceChangePercent)
	}
	if record.TriggerVolume != 9000 {
		t.Errorf("TriggerVolume = %d, want 9000", record.TriggerVolume)
	}
	if !record.MarketContext.DuringMarketHours {
		t.Error("MarketContext.DuringMarketHours = false, want true")
	}
	if record.MarketContext.AlertAgeMinutes != 90 {
		t.Errorf("AlertAgeMinutes = %d, want 90", record.MarketContext.AlertAgeMinutes)
	}

	if notifier.messages[7] != "Price 110 is above threshold 105" {
		t.Errorf("enqueued message = %q", notifier.messages[7])
	}
	if !alerts.lastTriggered[7].Equal(batchNow) {
		t.Errorf("LastTriggered = %v, want %v", alerts.lastTriggered[7], batchNow)
	}
}

func TestRunBatch_ZeroBaselineSkipsPercentChange(t *testing.T) {
	alerts := &fakeAlertStore{alerts: []models.Alert{{ID: 1, StockID: 1}}}
	evaluator := &fakeEvaluator{verdicts: map[uint]Verdict{
		1: {Triggered: true, TriggerValue: decimal.NewFromInt(50)},
	}}
	history := &fakeHistoryStore{}
	prices := &stubPrices{bars: flatVolumeBars([]float64{50}, 100)}
	o := testOrchestrator(alerts, prices, history, &fakeEnqueuer{}, evaluator)

	if _, err := o.RunBatch(context.Background(), ""); err != nil {
		t.Fatalf("RunBatch returned error: %v", err)
	}
	if len(history.records) != 1 {
		t.Fatalf("history records = %d, want 1", len(history.records))
	}
	if !history.records[0].PriceChangePercent.IsZero() {
		t.Errorf("PriceChangePercent = %s, want 0 for zero baseline", history.records[0].PriceChangePercent)
	}
}

func TestRunBatch_HistoryWriteFailureCountsAsFailed(t *testing.T) {
	alerts := &fakeAlertStore{alerts: []models.Alert{{ID: 1, StockID: 1}}}
	evaluator := &fakeEvaluator{verdicts: map[uint]Verdict{
		1: {Triggered: true, TriggerValue: decimal.NewFromInt(50)},
	}}
	history := &fakeHistoryStore{err: errors.New("disk full")}
	o := testOrchestrator(alerts, &stubPrices{}, history, &fakeEnqueuer{}, evaluator)

	result, err := o.RunBatch(context.Background(), "")
	if err != nil {
		t.Fatalf("RunBatch returned error: %v", err)
	}
	if result.FailedCount != 1 || result.TriggeredCount != 0 {
		t.Errorf("result = %+v, want 1 failed, 0 triggered", result)
	}
	if len(alerts.lastTriggered) != 0 {
		t.Error("LastTriggered must not be stamped when the history write fails")
	}
}
