// Package indicators contains the pure time-series math for technical
// indicators and the scheduled job that persists calculated values.
//
// Calculator functions are deterministic and perform no I/O. Inputs are
// closing prices ordered ascending by date. A series shorter than the
// required window yields ErrInsufficientData, never a panic.
package indicators

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInsufficientData signals that the price series is shorter than the
// window an indicator needs. Callers treat it as "no value", not a failure.
var ErrInsufficientData = errors.New("insufficient data for indicator calculation")

// SMA calculates the Simple Moving Average over the last period closes
func SMA(closes []decimal.Decimal, period int) (decimal.Decimal, error) {
	if period <= 0 {
		return decimal.Zero, fmt.Errorf("invalid SMA period %d", period)
	}
	if len(closes) < period {
		return decimal.Zero, ErrInsufficientData
	}

	sum := decimal.Zero
	for _, close := range closes[len(closes)-period:] {
		sum = sum.Add(close)
	}
	return sum.Div(decimal.NewFromInt(int64(period))), nil
}

// EMA calculates the Exponential Moving Average. The seed is the SMA of the
// first period closes; each later close is folded in chronological order with
// ema = (close-ema)*k + ema, k = 2/(period+1).
func EMA(closes []decimal.Decimal, period int) (decimal.Decimal, error) {
	if period <= 0 {
		return decimal.Zero, fmt.Errorf("invalid EMA period %d", period)
	}
	if len(closes) < period {
		return decimal.Zero, ErrInsufficientData
	}

	seed := decimal.Zero
	for _, close := range closes[:period] {
		seed = seed.Add(close)
	}
	ema := seed.Div(decimal.NewFromInt(int64(period)))

	multiplier := decimal.NewFromFloat(2.0 / float64(period+1))
	for _, close := range closes[period:] {
		ema = close.Sub(ema).Mul(multiplier).Add(ema)
	}
	return ema, nil
}

// RSI calculates the Relative Strength Index over a simple sliding window
// (not Wilder's exponential smoothing): average gain and average loss of the
// last period price changes. A window with no losses yields 100. The result
// is always within [0, 100].
func RSI(closes []decimal.Decimal, period int) (decimal.Decimal, error) {
	if period <= 0 {
		return decimal.Zero, fmt.Errorf("invalid RSI period %d", period)
	}
	if len(closes) < period+1 {
		return decimal.Zero, ErrInsufficientData
	}

	window := closes[len(closes)-period-1:]
	gains := decimal.Zero
	losses := decimal.Zero
	for i := 1; i < len(window); i++ {
		change := window[i].Sub(window[i-1])
		if change.GreaterThan(decimal.Zero) {
			gains = gains.Add(change)
		} else {
			losses = losses.Add(change.Abs())
		}
	}

	avgGain := gains.Div(decimal.NewFromInt(int64(period)))
	avgLoss := losses.Div(decimal.NewFromInt(int64(period)))

	if avgLoss.IsZero() {
		return decimal.NewFromInt(100), nil
	}

	rs := avgGain.Div(avgLoss)
	return decimal.NewFromInt(100).Sub(
		decimal.NewFromInt(100).Div(decimal.NewFromInt(1).Add(rs)),
	), nil
}

// MACDResult holds the MACD line and the periods it was configured with.
// SignalPeriod is carried through unused: no signal line is computed.
type MACDResult struct {
	Line         decimal.Decimal
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int
}

// MACDLine calculates the MACD line, EMA(fast) - EMA(slow)
func MACDLine(closes []decimal.Decimal, fastPeriod, slowPeriod, signalPeriod int) (MACDResult, error) {
	fast, err := EMA(closes, fastPeriod)
	if err != nil {
		return MACDResult{}, err
	}
	slow, err := EMA(closes, slowPeriod)
	if err != nil {
		return MACDResult{}, err
	}

	return MACDResult{
		Line:         fast.Sub(slow),
		FastPeriod:   fastPeriod,
		SlowPeriod:   slowPeriod,
		SignalPeriod: signalPeriod,
	}, nil
}

// BollingerResult holds the three Bollinger band values.
// Upper >= Middle >= Lower holds whenever the multiplier is non-negative.
type BollingerResult struct {
	Middle decimal.Decimal
	Upper  decimal.Decimal
	Lower  decimal.Decimal
}

// BollingerBands calculates Bollinger Bands: middle = SMA(period), bands at
// middle +/- multiplier * population standard deviation of the same window.
func BollingerBands(closes []decimal.Decimal, period int, stdDevMultiplier decimal.Decimal) (BollingerResult, error) {
	middle, err := SMA(closes, period)
	if err != nil {
		return BollingerResult{}, err
	}

	mean := middle.InexactFloat64()
	var variance float64
	for _, close := range closes[len(closes)-period:] {
		diff := close.InexactFloat64() - mean
		variance += diff * diff
	}
	stdDev := decimal.NewFromFloat(math.Sqrt(variance / float64(period)))

	offset := stdDev.Mul(stdDevMultiplier)
	return BollingerResult{
		Middle: middle,
		Upper:  middle.Add(offset),
		Lower:  middle.Sub(offset),
	}, nil
}
