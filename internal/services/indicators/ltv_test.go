package indicators

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(vals ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestCalculateEMA_Constant(t *testing.T) {
	emas, err := CalculateEMA(series(50, 50, 50, 50, 50, 50, 50, 50), 4)
	require.NoError(t, err)
	require.NotEmpty(t, emas)
	for _, v := range emas {
		assert.True(t, v.Equal(decimal.NewFromInt(50)), "got %s", v)
	}
}

func TestCalculateEMA_NotEnoughData(t *testing.T) {
	_, err := CalculateEMA(series(1, 2), 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotEnoughData))

	_, err = CalculateEMA(series(1, 2), 0)
	require.Error(t, err)
}

func TestTrendOf(t *testing.T) {
	tests := []struct {
		name string
		ltvs []decimal.Decimal
		want Direction
	}{
		{"rising", series(40, 42, 44, 46, 48, 50, 55), DirectionRising},
		{"falling", series(60, 58, 56, 54, 52, 50, 45), DirectionFalling},
		{"flat", series(50, 50, 50, 50, 50, 50, 50), DirectionFlat},
		{"short series", series(40, 60), DirectionRising},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TrendOf(tt.ltvs, DefaultPeriod)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Direction)
			assert.True(t, got.Current.Equal(tt.ltvs[len(tt.ltvs)-1]))
			assert.LessOrEqual(t, got.Period, len(tt.ltvs))
		})
	}
}

func TestTrendOf_SinglePoint(t *testing.T) {
	_, err := TrendOf(series(50), DefaultPeriod)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotEnoughData))
}
