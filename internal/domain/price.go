package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSource tells which resolution tier produced a price.
type PriceSource string

const (
	PriceSourceStablecoin PriceSource = "stablecoin"
	PriceSourceSession    PriceSource = "session"
	PriceSourceStore      PriceSource = "store"
	PriceSourceSnapshot   PriceSource = "snapshot"
	PriceSourceTicker     PriceSource = "ticker"
	// PriceSourceUnresolved marks the zero sentinel: no tier produced a price.
	PriceSourceUnresolved PriceSource = "unresolved"
)

// DefaultQuoteCurrencies is the quote priority used by every resolution tier.
var DefaultQuoteCurrencies = []string{"USDT", "USDC", "USD"}

var stablecoins = map[string]struct{}{
	"USDT":  {},
	"USDC":  {},
	"USD":   {},
	"DAI":   {},
	"TUSD":  {},
	"BUSD":  {},
	"USDP":  {},
	"FDUSD": {},
	"PYUSD": {},
}

// IsStablecoin reports whether the currency is pegged 1:1 to USD.
func IsStablecoin(ccy string) bool {
	_, ok := stablecoins[ccy]
	return ok
}

// PriceEntry is one durable price observation.
type PriceEntry struct {
	Currency   string
	Price      decimal.Decimal
	ObservedAt time.Time
	ExpiresAt  time.Time
}

// Fresh reports whether the entry may still be served at now.
func (e PriceEntry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// MarketSnapshot maps instrument id (BTC-USDT) to last traded price.
type MarketSnapshot map[string]decimal.Decimal

// BasePrices picks, for every base currency, the price of the first quote in
// quotes that has one. Quote order is the tie-break.
func (s MarketSnapshot) BasePrices(quotes []string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for instID := range s {
		pair, ok := ParseInstrumentID(instID)
		if !ok {
			continue
		}
		if _, seen := out[pair.From]; seen {
			continue
		}
		if price, ok := s.Lookup(pair.From, quotes); ok {
			out[pair.From] = price
		}
	}
	return out
}

// Lookup returns the first positive price of ccy across quotes, in order.
func (s MarketSnapshot) Lookup(ccy string, quotes []string) (decimal.Decimal, bool) {
	for _, q := range quotes {
		price, ok := s[Pair{From: ccy, To: q}.InstrumentID()]
		if ok && price.IsPositive() {
			return price, true
		}
	}
	return decimal.Zero, false
}

// ResolvedPrice is the resolver decision for one currency.
type ResolvedPrice struct {
	Currency string          `json:"currency"`
	Price    decimal.Decimal `json:"price"`
	Source   PriceSource     `json:"source"`
}

// Known is false for the zero sentinel.
func (p ResolvedPrice) Known() bool {
	return p.Source != PriceSourceUnresolved
}

// Prices is the resolver output keyed by currency.
type Prices map[string]ResolvedPrice

// UnresolvedPrice is the zero sentinel for ccy.
func UnresolvedPrice(ccy string) ResolvedPrice {
	return ResolvedPrice{Currency: ccy, Price: decimal.Zero, Source: PriceSourceUnresolved}
}

// Get returns the decision for ccy, or the sentinel when absent.
func (p Prices) Get(ccy string) ResolvedPrice {
	if rp, ok := p[ccy]; ok {
		return rp
	}
	return UnresolvedPrice(ccy)
}

// Unresolved lists currencies that fell to the sentinel.
func (p Prices) Unresolved() []string {
	var out []string
	for ccy, rp := range p {
		if !rp.Known() {
			out = append(out, ccy)
		}
	}
	return out
}

// CountBySource counts decisions per tier.
func (p Prices) CountBySource() map[PriceSource]int {
	out := make(map[PriceSource]int)
	for _, rp := range p {
		out[rp.Source]++
	}
	return out
}
