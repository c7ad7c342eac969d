package calc

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"sma-signal/internal/marketdata"
)

var (
	// ErrInsufficientData indicates the series is shorter than the
	// moving-average window.
	ErrInsufficientData = errors.New("calc: insufficient data for window")
	// ErrZeroReference indicates a percentage delta against a zero
	// reference. Cannot happen for positive prices, guarded anyway.
	ErrZeroReference = errors.New("calc: zero reference value")
)

// SMAPoint is one simple-moving-average value at a date.
type SMAPoint struct {
	Date  time.Time
	Value decimal.Decimal
}

// MovingAverage computes the trailing arithmetic mean over window points.
// The result has exactly len(series)-window+1 points, the first at the
// date of series[window-1].
func MovingAverage(series []marketdata.PricePoint, window int) ([]SMAPoint, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %d", window)
	}
	if len(series) < window {
		return nil, fmt.Errorf("%w: have %d points, need %d", ErrInsufficientData, len(series), window)
	}

	windowDec := decimal.NewFromInt(int64(window))
	result := make([]SMAPoint, 0, len(series)-window+1)

	// Rolling sum keeps this linear in the series length.
	sum := decimal.Zero
	for i, p := range series {
		sum = sum.Add(p.Close)
		if i >= window {
			sum = sum.Sub(series[i-window].Close)
		}
		if i >= window-1 {
			result = append(result, SMAPoint{
				Date:  p.Date,
				Value: sum.Div(windowDec),
			})
		}
	}

	return result, nil
}

// PercentDelta returns (value-reference)/reference*100.
func PercentDelta(value, reference decimal.Decimal) (decimal.Decimal, error) {
	if reference.IsZero() {
		return decimal.Decimal{}, ErrZeroReference
	}
	return value.Sub(reference).Div(reference).Mul(decimal.NewFromInt(100)), nil
}

// ThresholdLevels derives the buy and sell levels from an SMA value.
// The configuration owner guarantees buyMult > 1 > sellMult > 0, so
// downstream logic may rely on buy > sma > sell.
func ThresholdLevels(sma, buyMult, sellMult decimal.Decimal) (buy, sell decimal.Decimal) {
	return sma.Mul(buyMult), sma.Mul(sellMult)
}
