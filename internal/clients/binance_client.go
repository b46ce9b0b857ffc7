package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient returns a Binance spot client. Market data endpoints are
// public, so empty credentials are accepted.
func NewBinanceClient(apiKey, apiSecret string) *binance.Client {
	return binance.NewClient(apiKey, apiSecret)
}
