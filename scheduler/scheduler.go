// Package scheduler owns the recurring timers for alert evaluation, daily
// indicator calculation and the weekly retention sweep. Each job is guarded
// against overlapping with itself; the two jobs may overlap each other.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"stock_alert_backend/models"
	"stock_alert_backend/services/alerts"
	"stock_alert_backend/services/indicators"
	"stock_alert_backend/services/markethours"
)

// AlertRunner runs one alert evaluation batch
type AlertRunner interface {
	RunBatch(ctx context.Context, triggerType models.TriggerType) (alerts.BatchResult, error)
}

// IndicatorRunner runs the daily calculation and the retention sweep
type IndicatorRunner interface {
	Run(ctx context.Context) (indicators.JobResult, error)
	PurgeOld(ctx context.Context) (int64, error)
}

// Options configures the scheduler cadence
type Options struct {
	AlertIntervalMinutes int
	IndicatorCalcTime    string // "HH:MM"
	RetentionSweepTime   string // "HH:MM", Sundays
}

// Status is a snapshot of the scheduler state for operational reporting
type Status struct {
	Running              bool       `json:"running"`
	AlertJobInFlight     bool       `json:"alert_job_in_flight"`
	IndicatorJobInFlight bool       `json:"indicator_job_in_flight"`
	AlertRuns            uint64     `json:"alert_runs"`
	AlertSkips           uint64     `json:"alert_skips"`
	IndicatorRuns        uint64     `json:"indicator_runs"`
	IndicatorSkips       uint64     `json:"indicator_skips"`
	LastAlertRun         *time.Time `json:"last_alert_run,omitempty"`
	LastIndicatorRun     *time.Time `json:"last_indicator_run,omitempty"`
}

// Scheduler manages the scheduled jobs
type Scheduler struct {
	alertRunner     AlertRunner
	indicatorRunner IndicatorRunner
	window          markethours.Window
	opts            Options
	log             *logrus.Entry

	alertGuard     flightGuard
	indicatorGuard flightGuard
	sweepGuard     flightGuard

	mu      sync.Mutex
	cron    *gocron.Scheduler
	running bool
	status  Status

	now func() time.Time
}

// New creates a scheduler for the given jobs
func New(alertRunner AlertRunner, indicatorRunner IndicatorRunner, window markethours.Window, opts Options, log *logrus.Logger) *Scheduler {
	if opts.AlertIntervalMinutes <= 0 {
		opts.AlertIntervalMinutes = 1
	}
	return &Scheduler{
		alertRunner:     alertRunner,
		indicatorRunner: indicatorRunner,
		window:          window,
		opts:            opts,
		log:             log.WithField("component", "scheduler"),
		now:             time.Now,
	}
}

// Start registers the timers and starts them asynchronously. Calling Start
// while already running logs a warning and is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Warn("Scheduler already running, ignoring start")
		return
	}

	cron := gocron.NewScheduler(s.window.Location)
	cron.Every(s.opts.AlertIntervalMinutes).Minutes().Do(s.runAlertBatch)
	cron.Every(1).Day().At(s.opts.IndicatorCalcTime).Do(s.runIndicatorCalculation)
	cron.Every(1).Week().Sunday().At(s.opts.RetentionSweepTime).Do(s.runRetentionSweep)
	cron.StartAsync()

	s.cron = cron
	s.running = true
	s.status.Running = true
	s.log.Info("Scheduler started")
}

// Stop halts the timers. Stopping an already stopped scheduler is a no-op.
// In-flight job bodies run to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Stop()
	s.cron = nil
	s.running = false
	s.status.Running = false
	s.log.Info("Scheduler stopped")
}

// Restart stops and starts the timers
func (s *Scheduler) Restart() {
	s.Stop()
	s.Start()
}

// GetStatus returns a snapshot of scheduler and job state
func (s *Scheduler) GetStatus() Status {
	s.mu.Lock()
	snapshot := s.status
	s.mu.Unlock()
	snapshot.AlertJobInFlight = s.alertGuard.inFlight()
	snapshot.IndicatorJobInFlight = s.indicatorGuard.inFlight()
	return snapshot
}

// runAlertBatch is the every-minute alert evaluation tick. The market-hours
// check inside the body is defense in depth against a misconfigured cron.
func (s *Scheduler) runAlertBatch() {
	outcome := s.guardedRun(&s.alertGuard, "alert_batch", func(ctx context.Context) error {
		if !s.window.IsOpen(s.now()) {
			return errMarketClosed
		}
		_, err := s.alertRunner.RunBatch(ctx, "")
		return err
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	switch outcome {
	case outcomeRan:
		s.status.AlertRuns++
		now := s.now()
		s.status.LastAlertRun = &now
	case outcomeSkippedBusy, outcomeSkippedClosed:
		s.status.AlertSkips++
	}
}

// runIndicatorCalculation is the daily post-close calculation, weekdays only
func (s *Scheduler) runIndicatorCalculation() {
	outcome := s.guardedRun(&s.indicatorGuard, "indicator_calculation", func(ctx context.Context) error {
		if !s.window.IsWeekday(s.now()) {
			return errMarketClosed
		}
		_, err := s.indicatorRunner.Run(ctx)
		return err
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	switch outcome {
	case outcomeRan:
		s.status.IndicatorRuns++
		now := s.now()
		s.status.LastIndicatorRun = &now
	case outcomeSkippedBusy, outcomeSkippedClosed:
		s.status.IndicatorSkips++
	}
}

// runRetentionSweep deletes indicator values past the retention window
func (s *Scheduler) runRetentionSweep() {
	s.guardedRun(&s.sweepGuard, "retention_sweep", func(ctx context.Context) error {
		_, err := s.indicatorRunner.PurgeOld(ctx)
		return err
	})
}

// errMarketClosed marks a tick that fell outside the job's schedule window
var errMarketClosed = errSentinel("outside schedule window")

type errSentinel string

func (e errSentinel) Error() string { return string(e) }

// guardedRun executes one job body under its single-flight guard. A job
// body error or panic is logged and never crashes the process or stops
// future invocations.
func (s *Scheduler) guardedRun(guard *flightGuard, job string, body func(ctx context.Context) error) runOutcome {
	if !guard.tryAcquire() {
		s.log.WithField("job", job).Warn(string(outcomeSkippedBusy))
		return outcomeSkippedBusy
	}
	defer guard.release()

	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("job", job).Errorf("Job panicked: %v", r)
		}
	}()

	if err := body(context.Background()); err != nil {
		if err == errMarketClosed {
			s.log.WithField("job", job).Debug(string(outcomeSkippedClosed))
			return outcomeSkippedClosed
		}
		s.log.WithField("job", job).WithError(err).Error("Job failed")
		return outcomeRan
	}
	return outcomeRan
}
