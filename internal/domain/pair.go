// Package domain defines core data structures used throughout the loan monitor.
package domain

import (
	"fmt"
	"strings"
)

// Pair cryptocurrency trading pair.
type Pair struct {
	// From base currency symbol.
	From string
	// To quote currency symbol.
	To string
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}

// InstrumentID returns the dash separated instrument id, e.g. BTC-USDT.
func (p Pair) InstrumentID() string {
	return fmt.Sprintf("%s-%s", p.From, p.To)
}

// ParseInstrumentID splits BASE-QUOTE. The last dash separates the quote.
func ParseInstrumentID(instID string) (Pair, bool) {
	idx := strings.LastIndex(instID, "-")
	if idx <= 0 || idx == len(instID)-1 {
		return Pair{}, false
	}
	return Pair{From: instID[:idx], To: instID[idx+1:]}, true
}

// SplitSymbol splits a concatenated symbol (BTCUSDT) using the first quote
// that is a proper suffix of it. Quotes are tried in the given order.
// A symbol ending in a longer stablecoin code (BTCFDUSD) is not split on a
// shorter quote it contains (USD).
func SplitSymbol(symbol string, quotes []string) (Pair, bool) {
	for _, q := range quotes {
		if len(symbol) <= len(q) || !strings.HasSuffix(symbol, q) {
			continue
		}
		for s := range stablecoins {
			if len(s) > len(q) && strings.HasSuffix(symbol, s) {
				return Pair{}, false
			}
		}
		return Pair{From: strings.TrimSuffix(symbol, q), To: q}, true
	}
	return Pair{}, false
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(ccy string) string {
	return strings.ToUpper(strings.TrimSpace(ccy))
}
