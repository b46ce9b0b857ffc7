package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsStablecoin(t *testing.T) {
	for _, ccy := range []string{"USDT", "USDC", "USD", "DAI", "FDUSD"} {
		assert.True(t, IsStablecoin(ccy), ccy)
	}
	assert.False(t, IsStablecoin("BTC"))
	assert.False(t, IsStablecoin("usdt"))
}

func TestPriceEntryFresh(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	e := PriceEntry{Currency: "BTC", ObservedAt: now, ExpiresAt: now.Add(time.Minute)}
	assert.True(t, e.Fresh(now))
	assert.True(t, e.Fresh(now.Add(59*time.Second)))
	assert.False(t, e.Fresh(now.Add(time.Minute)))
}

func TestMarketSnapshotLookup_QuotePriority(t *testing.T) {
	s := MarketSnapshot{
		"BTC-USDC": decimal.NewFromInt(60100),
		"BTC-USDT": decimal.NewFromInt(60000),
		"ETH-USDC": decimal.NewFromInt(3000),
		"ETH-USDT": decimal.Zero,
		"XRP-EUR":  decimal.NewFromInt(1),
	}

	price, ok := s.Lookup("BTC", DefaultQuoteCurrencies)
	assert.True(t, ok)
	assert.True(t, decimal.NewFromInt(60000).Equal(price))

	price, ok = s.Lookup("ETH", DefaultQuoteCurrencies)
	assert.True(t, ok, "zero price must not shadow a later quote")
	assert.True(t, decimal.NewFromInt(3000).Equal(price))

	_, ok = s.Lookup("XRP", DefaultQuoteCurrencies)
	assert.False(t, ok)

	base := s.BasePrices(DefaultQuoteCurrencies)
	assert.Len(t, base, 2)
	assert.True(t, decimal.NewFromInt(60000).Equal(base["BTC"]))
}

func TestPricesGet(t *testing.T) {
	p := Prices{"BTC": {Currency: "BTC", Price: decimal.NewFromInt(1), Source: PriceSourceStore}}

	assert.True(t, p.Get("BTC").Known())
	missing := p.Get("DOGE")
	assert.False(t, missing.Known())
	assert.True(t, missing.Price.IsZero())

	p["DOGE"] = missing
	assert.Equal(t, []string{"DOGE"}, p.Unresolved())
	assert.Equal(t, map[PriceSource]int{PriceSourceStore: 1, PriceSourceUnresolved: 1}, p.CountBySource())
}
