package domain

import (
	"github.com/shopspring/decimal"
)

var (
	microPriceThreshold = decimal.RequireFromString("0.0001")
	lowPriceThreshold   = decimal.RequireFromString("0.01")
)

// ValueUSD multiplies amount by price and rounds by price magnitude so that
// tokens like PEPE or SHIB keep meaningful digits:
// price < 0.0001 keeps 8 places, price < 0.01 keeps 6, otherwise 2.
// Negative inputs are outside the domain and value to zero.
func ValueUSD(amount, price decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() || price.IsNegative() {
		return decimal.Zero
	}

	value := amount.Mul(price)
	switch {
	case price.LessThan(microPriceThreshold):
		return value.Round(8)
	case price.LessThan(lowPriceThreshold):
		return value.Round(6)
	default:
		return value.Round(2)
	}
}

// ValueUSDFromStrings is ValueUSD over raw strings; malformed input values to zero.
func ValueUSDFromStrings(amount, price string) decimal.Decimal {
	a, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return decimal.Zero
	}
	return ValueUSD(a, p)
}
