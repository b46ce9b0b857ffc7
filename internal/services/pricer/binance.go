package pricer

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/loanmon/internal/domain"
)

// BinancePricer fetches prices from the Binance public API.
type BinancePricer struct {
	client *binance.Client
}

func NewBinancePricer(client *binance.Client) *BinancePricer {
	return &BinancePricer{client: client}
}

func (p *BinancePricer) Name() string { return "binance" }

func (p *BinancePricer) FetchSnapshot(ctx context.Context, quotes []string) (domain.MarketSnapshot, error) {
	prices, err := p.client.NewListPricesService().Do(ctx)
	if err != nil {
		return domain.MarketSnapshot{}, errors.Wrap(err, "list binance prices")
	}

	snap := make(domain.MarketSnapshot, len(prices))
	for _, item := range prices {
		pair, ok := domain.SplitSymbol(item.Symbol, quotes)
		if !ok {
			continue
		}
		if price, ok := parsePositive(item.Price); ok {
			snap[pair.InstrumentID()] = price
		}
	}

	return snap, nil
}

func (p *BinancePricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	prices, err := p.client.NewListPricesService().Symbol(pair.Symbol()).Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "binance price %s", pair.Symbol())
	}
	if len(prices) == 0 {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "binance price %s", pair.Symbol())
	}

	price, ok := parsePositive(prices[0].Price)
	if !ok {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "binance price %s", pair.Symbol())
	}
	return price, nil
}
