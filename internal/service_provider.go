package internal

import (
	"fmt"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/loanmon/config"
	"github.com/vadiminshakov/loanmon/internal/clients"
	"github.com/vadiminshakov/loanmon/internal/services/pricer"
)

// newExchangeClient returns the market-data client for the configured source.
// OKX reuses the signed loan client; the others only touch public endpoints.
func newExchangeClient(conf config.Config, okx *clients.OKXClient) (any, error) {
	switch conf.MarketSource {
	case config.SourceOKX:
		return okx, nil
	case config.SourceBinance:
		return clients.NewBinanceClient("", ""), nil
	case config.SourceBybit:
		return clients.NewBybitClient("", ""), nil
	case config.SourceHyperliquid:
		c, err := clients.NewHyperliquidClient("", "")
		if err != nil {
			return nil, errors.Wrap(err, "failed to create hyperliquid client")
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported market source: %s", conf.MarketSource)
	}
}

// newMarketSource dispatches a client to its price source.
// This is the single point of truth for platform-specific pricers.
func newMarketSource(client any, conf config.Config, logger *zap.Logger) (pricer.MarketSource, error) {
	switch c := client.(type) {
	case *clients.OKXClient:
		return pricer.NewOKXPricer(c, conf.TickerPageLimit, conf.MaxTickerPages, logger), nil
	case *binance.Client:
		return pricer.NewBinancePricer(c), nil
	case *bybit.Client:
		return pricer.NewBybitPricer(c), nil
	case *clients.HyperliquidClient:
		return pricer.NewHyperliquidPricer(c.Exchange().Info()), nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}
