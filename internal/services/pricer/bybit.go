package pricer

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/loanmon/internal/domain"
)

type BybitPricer struct {
	client *bybit.Client
}

func NewBybitPricer(client *bybit.Client) *BybitPricer {
	return &BybitPricer{client: client}
}

func (p *BybitPricer) Name() string { return "bybit" }

// FetchSnapshot lists all spot tickers. The SDK call takes no context.
func (p *BybitPricer) FetchSnapshot(ctx context.Context, quotes []string) (domain.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.MarketSnapshot{}, err
	}

	result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
	})
	if err != nil {
		return domain.MarketSnapshot{}, errors.Wrap(err, "list bybit spot tickers")
	}

	snap := make(domain.MarketSnapshot)
	if result.Result.Spot == nil {
		return snap, nil
	}
	for _, item := range result.Result.Spot.List {
		pair, ok := domain.SplitSymbol(string(item.Symbol), quotes)
		if !ok {
			continue
		}
		if price, ok := parsePositive(item.LastPrice); ok {
			snap[pair.InstrumentID()] = price
		}
	}

	return snap, nil
}

func (p *BybitPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	symbol := bybit.SymbolV5(pair.Symbol())
	result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "bybit ticker %s", pair.Symbol())
	}

	if result.Result.Spot == nil || len(result.Result.Spot.List) == 0 {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "bybit ticker %s", pair.Symbol())
	}

	price, ok := parsePositive(result.Result.Spot.List[0].LastPrice)
	if !ok {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "bybit ticker %s", pair.Symbol())
	}
	return price, nil
}
