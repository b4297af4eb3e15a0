package indicators

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"stock_alert_backend/models"
)

// maxLookbackBars bounds how much history is loaded per stock. The longest
// window in the catalogue is SMA-200; the extra tail keeps EMA seeding stable.
const maxLookbackBars = 250

// StockStore lists the stocks the job iterates
type StockStore interface {
	ListActiveStocks(ctx context.Context) ([]models.Stock, error)
}

// PriceStore reads price bars, ordered ascending by date
type PriceStore interface {
	RecentBars(ctx context.Context, stockID uint, limit int) ([]models.StockPrice, error)
}

// IndicatorStore persists calculated values
type IndicatorStore interface {
	ExistsForDate(ctx context.Context, stockID uint, indicatorType string, period int, day time.Time) (bool, error)
	Upsert(ctx context.Context, value *models.TechnicalIndicator) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// catalogueEntry is one (type, period) combination the job calculates daily
type catalogueEntry struct {
	indicatorType string
	period        int
}

// calculationCatalogue is the fixed set of daily calculations. MACD and
// Bollinger parameters beyond the period are fixed below.
var calculationCatalogue = []catalogueEntry{
	{models.IndicatorRSI, 14},
	{models.IndicatorSMA, 20},
	{models.IndicatorSMA, 50},
	{models.IndicatorSMA, 200},
	{models.IndicatorEMA, 12},
	{models.IndicatorEMA, 20},
	{models.IndicatorEMA, 26},
	{models.IndicatorEMA, 50},
	{models.IndicatorMACD, 12}, // fast period; slow=26, signal=9
	{models.IndicatorBollinger, 20},
}

const (
	macdSlowPeriod   = 26
	macdSignalPeriod = 9
)

var bollingerMultiplier = decimal.NewFromInt(2)

// JobResult aggregates one calculation run
type JobResult struct {
	ProcessedStocks        int
	SuccessfulCalculations int
	FailedCalculations     int
	SkippedCalculations    int
}

// Job iterates active stocks and persists the indicator catalogue for today.
// Recomputation on the same calendar day is idempotent: values already stored
// for today are skipped, never duplicated.
type Job struct {
	stocks        StockStore
	prices        PriceStore
	indicators    IndicatorStore
	location      *time.Location
	retentionDays int
	log           *logrus.Entry

	now func() time.Time
}

// NewJob creates an indicator calculation job
func NewJob(stocks StockStore, prices PriceStore, indicators IndicatorStore, location *time.Location, retentionDays int, log *logrus.Logger) *Job {
	return &Job{
		stocks:        stocks,
		prices:        prices,
		indicators:    indicators,
		location:      location,
		retentionDays: retentionDays,
		log:           log.WithField("component", "indicator_job"),
		now:           time.Now,
	}
}

// Run calculates the catalogue for every active stock with at least one
// price bar. Per-stock and per-indicator failures are logged and counted
// without stopping the rest of the run.
func (j *Job) Run(ctx context.Context) (JobResult, error) {
	var result JobResult

	stocks, err := j.stocks.ListActiveStocks(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list active stocks: %w", err)
	}

	today := j.today()
	for _, stock := range stocks {
		bars, err := j.prices.RecentBars(ctx, stock.ID, maxLookbackBars)
		if err != nil {
			j.log.WithField("stock", stock.Symbol).WithError(err).Warn("Failed to load price bars")
			result.FailedCalculations++
			continue
		}
		if len(bars) == 0 {
			continue
		}
		result.ProcessedStocks++

		closes := make([]decimal.Decimal, len(bars))
		for i, bar := range bars {
			closes[i] = bar.Close
		}

		for _, entry := range calculationCatalogue {
			outcome := j.calculateOne(ctx, stock, entry, closes, today)
			switch outcome {
			case outcomeSuccess:
				result.SuccessfulCalculations++
			case outcomeSkipped:
				result.SkippedCalculations++
			case outcomeFailed:
				result.FailedCalculations++
			}
		}
	}

	j.log.WithFields(logrus.Fields{
		"stocks":  result.ProcessedStocks,
		"success": result.SuccessfulCalculations,
		"failed":  result.FailedCalculations,
		"skipped": result.SkippedCalculations,
	}).Info("Indicator calculation run completed")
	return result, nil
}

type calcOutcome int

const (
	outcomeSuccess calcOutcome = iota
	outcomeSkipped
	outcomeFailed
)

func (j *Job) calculateOne(ctx context.Context, stock models.Stock, entry catalogueEntry, closes []decimal.Decimal, today time.Time) calcOutcome {
	logEntry := j.log.WithFields(logrus.Fields{
		"stock":     stock.Symbol,
		"indicator": entry.indicatorType,
		"period":    entry.period,
	})

	exists, err := j.indicators.ExistsForDate(ctx, stock.ID, entry.indicatorType, entry.period, today)
	if err != nil {
		logEntry.WithError(err).Warn("Failed to check existing indicator")
		return outcomeFailed
	}
	if exists {
		return outcomeSkipped
	}

	value := models.TechnicalIndicator{
		StockID: stock.ID,
		Date:    today,
		Type:    entry.indicatorType,
		Period:  entry.period,
	}

	switch entry.indicatorType {
	case models.IndicatorSMA:
		value.Value, err = SMA(closes, entry.period)
	case models.IndicatorEMA:
		value.Value, err = EMA(closes, entry.period)
	case models.IndicatorRSI:
		value.Value, err = RSI(closes, entry.period)
	case models.IndicatorMACD:
		var macd MACDResult
		macd, err = MACDLine(closes, entry.period, macdSlowPeriod, macdSignalPeriod)
		if err == nil {
			value.Value = macd.Line
			value.FastPeriod = macd.FastPeriod
			value.SlowPeriod = macd.SlowPeriod
			value.SignalPeriod = macd.SignalPeriod
		}
	case models.IndicatorBollinger:
		var bands BollingerResult
		bands, err = BollingerBands(closes, entry.period, bollingerMultiplier)
		if err == nil {
			value.Value = bands.Middle
			value.UpperBand = bands.Upper
			value.LowerBand = bands.Lower
		}
	default:
		logEntry.Warn("Unknown indicator type in catalogue")
		return outcomeFailed
	}

	if errors.Is(err, ErrInsufficientData) {
		return outcomeSkipped
	}
	if err != nil {
		logEntry.WithError(err).Warn("Indicator calculation failed")
		return outcomeFailed
	}

	if err := j.indicators.Upsert(ctx, &value); err != nil {
		logEntry.WithError(err).Warn("Failed to persist indicator")
		return outcomeFailed
	}
	return outcomeSuccess
}

// PurgeOld deletes indicator values older than the retention window
func (j *Job) PurgeOld(ctx context.Context) (int64, error) {
	cutoff := j.now().In(j.location).AddDate(0, 0, -j.retentionDays)
	deleted, err := j.indicators.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention sweep failed: %w", err)
	}
	j.log.WithFields(logrus.Fields{
		"deleted": deleted,
		"cutoff":  cutoff.Format("2006-01-02"),
	}).Info("Retention sweep completed")
	return deleted, nil
}

// today returns midnight of the current day in the market timezone
func (j *Job) today() time.Time {
	now := j.now().In(j.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, j.location)
}
