// Package indicators computes trend indicators over the stored LTV history.
// It uses the cinar/indicator library for the moving averages.
package indicators

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// DefaultPeriod is the EMA period used for the LTV trend.
const DefaultPeriod = 6

// ErrNotEnoughData is returned when the series is shorter than the period.
var ErrNotEnoughData = errors.New("not enough data points")

// flatBand is the distance in LTV percentage points under which the trend is flat.
var flatBand = decimal.RequireFromString("0.1")

// Direction of the LTV relative to its moving average.
type Direction string

const (
	DirectionRising  Direction = "rising"
	DirectionFalling Direction = "falling"
	DirectionFlat    Direction = "flat"
)

// LTVTrend compares the latest LTV with its EMA.
type LTVTrend struct {
	Period    int
	Current   decimal.Decimal
	EMA       decimal.Decimal
	Delta     decimal.Decimal
	Direction Direction
}

// CalculateEMA calculates the exponential moving average for the given period.
func CalculateEMA(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if period < 1 {
		return nil, errors.Errorf("invalid EMA period %d", period)
	}
	if len(values) < period {
		return nil, errors.Wrapf(ErrNotEnoughData, "EMA%d: need %d, got %d", period, period, len(values))
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	out := helper.ChanToSlice(ema.Compute(helper.SliceToChan(decimalsToFloat64(values))))

	return float64ToDecimals(out), nil
}

// TrendOf derives the trend from LTV percentages ordered oldest first.
// When the series is shorter than period the whole series is used as the period,
// so two points are enough for a trend.
func TrendOf(ltvs []decimal.Decimal, period int) (LTVTrend, error) {
	if len(ltvs) < 2 {
		return LTVTrend{}, errors.Wrapf(ErrNotEnoughData, "LTV trend: got %d", len(ltvs))
	}
	if period <= 0 {
		period = DefaultPeriod
	}
	if period > len(ltvs) {
		period = len(ltvs)
	}

	emas, err := CalculateEMA(ltvs, period)
	if err != nil {
		return LTVTrend{}, errors.Wrap(err, "LTV trend")
	}
	if len(emas) == 0 {
		return LTVTrend{}, errors.Wrapf(ErrNotEnoughData, "LTV trend: EMA%d produced no values", period)
	}

	t := LTVTrend{
		Period:  period,
		Current: ltvs[len(ltvs)-1],
		EMA:     emas[len(emas)-1].Round(4),
	}
	t.Delta = t.Current.Sub(t.EMA)
	switch {
	case t.Delta.Abs().LessThan(flatBand):
		t.Direction = DirectionFlat
	case t.Delta.IsPositive():
		t.Direction = DirectionRising
	default:
		t.Direction = DirectionFalling
	}

	return t, nil
}

func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}
