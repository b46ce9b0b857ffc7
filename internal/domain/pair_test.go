package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairFormats(t *testing.T) {
	p := Pair{From: "BTC", To: "USDT"}
	assert.Equal(t, "BTC_USDT", p.String())
	assert.Equal(t, "BTCUSDT", p.Symbol())
	assert.Equal(t, "BTC-USDT", p.InstrumentID())
}

func TestParseInstrumentID(t *testing.T) {
	p, ok := ParseInstrumentID("ETH-USDC")
	assert.True(t, ok)
	assert.Equal(t, Pair{From: "ETH", To: "USDC"}, p)

	for _, bad := range []string{"", "BTC", "-USDT", "BTC-"} {
		_, ok := ParseInstrumentID(bad)
		assert.False(t, ok, bad)
	}
}

func TestSplitSymbol(t *testing.T) {
	p, ok := SplitSymbol("SOLUSDC", DefaultQuoteCurrencies)
	assert.True(t, ok)
	assert.Equal(t, Pair{From: "SOL", To: "USDC"}, p)

	_, ok = SplitSymbol("USDT", DefaultQuoteCurrencies)
	assert.False(t, ok)

	_, ok = SplitSymbol("BTCEUR", DefaultQuoteCurrencies)
	assert.False(t, ok)

	_, ok = SplitSymbol("BTCFDUSD", DefaultQuoteCurrencies)
	assert.False(t, ok)

	p, ok = SplitSymbol("ETHUSD", DefaultQuoteCurrencies)
	assert.True(t, ok)
	assert.Equal(t, Pair{From: "ETH", To: "USD"}, p)
}
