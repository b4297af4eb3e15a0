package indicators

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// closeSeriesGen generates a positive close series long enough for the
// indicator windows under test
func closeSeriesGen(minLen, maxLen int) gopter.Gen {
	return gen.SliceOfN(maxLen, gen.Float64Range(1.0, 10000.0)).Map(func(values []float64) []decimal.Decimal {
		if len(values) < minLen {
			for len(values) < minLen {
				values = append(values, 100.0)
			}
		}
		series := make([]decimal.Decimal, len(values))
		for i, v := range values {
			series[i] = decimal.NewFromFloat(v)
		}
		return series
	})
}

func TestProperty_RSIWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("RSI values are within [0, 100]", prop.ForAll(
		func(series []decimal.Decimal) bool {
			rsi, err := RSI(series, 14)
			if errors.Is(err, ErrInsufficientData) {
				return true
			}
			if err != nil {
				return false
			}
			return rsi.GreaterThanOrEqual(decimal.Zero) &&
				rsi.LessThanOrEqual(decimal.NewFromInt(100))
		},
		closeSeriesGen(15, 60),
	))

	properties.TestingRun(t)
}

func TestProperty_BollingerBandOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("upper >= middle >= lower for non-negative multipliers", prop.ForAll(
		func(series []decimal.Decimal, multiplier float64) bool {
			bands, err := BollingerBands(series, 20, decimal.NewFromFloat(multiplier))
			if errors.Is(err, ErrInsufficientData) {
				return true
			}
			if err != nil {
				return false
			}
			return bands.Upper.GreaterThanOrEqual(bands.Middle) &&
				bands.Middle.GreaterThanOrEqual(bands.Lower)
		},
		closeSeriesGen(20, 60),
		gen.Float64Range(0.0, 4.0),
	))

	properties.TestingRun(t)
}

func TestProperty_SMAWithinSeriesRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("SMA lies between window min and max", prop.ForAll(
		func(series []decimal.Decimal) bool {
			sma, err := SMA(series, 20)
			if errors.Is(err, ErrInsufficientData) {
				return true
			}
			if err != nil {
				return false
			}

			window := series[len(series)-20:]
			min, max := window[0], window[0]
			for _, v := range window[1:] {
				if v.LessThan(min) {
					min = v
				}
				if v.GreaterThan(max) {
					max = v
				}
			}
			return sma.GreaterThanOrEqual(min) && sma.LessThanOrEqual(max)
		},
		closeSeriesGen(20, 60),
	))

	properties.TestingRun(t)
}
