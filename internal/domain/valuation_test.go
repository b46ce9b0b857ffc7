package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValueUSD(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		price    string
		expected string
	}{
		{name: "micro price keeps 8 places", amount: "1000000", price: "0.00005", expected: "50"},
		{name: "micro price fraction", amount: "1.23456789", price: "0.00001234", expected: "0.00001523"},
		{name: "low price keeps 6 places", amount: "3", price: "0.001234567", expected: "0.003704"},
		{name: "normal price keeps 2 places", amount: "1000", price: "0.5", expected: "500"},
		{name: "rounding half away from zero", amount: "1", price: "1.005", expected: "1.01"},
		{name: "btc", amount: "0.5", price: "60000.123", expected: "30000.06"},
		{name: "zero amount", amount: "0", price: "100", expected: "0"},
		{name: "zero price", amount: "10", price: "0", expected: "0"},
		{name: "threshold 0.0001 is not micro", amount: "1.2345678", price: "0.0001", expected: "0.000123"},
		{name: "threshold 0.01 is normal", amount: "1.234", price: "0.01", expected: "0.01"},
		{name: "negative amount", amount: "-1", price: "10", expected: "0"},
		{name: "negative price", amount: "1", price: "-10", expected: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValueUSD(decimal.RequireFromString(tt.amount), decimal.RequireFromString(tt.price))
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(got), "got %s", got)
		})
	}
}

func TestValueUSDFromStrings(t *testing.T) {
	assert.True(t, decimal.NewFromInt(500).Equal(ValueUSDFromStrings("1000", "0.5")))
	assert.True(t, ValueUSDFromStrings("abc", "1").IsZero())
	assert.True(t, ValueUSDFromStrings("1", "").IsZero())
}
