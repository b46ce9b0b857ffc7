package pricer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/loanmon/internal/domain"
)

// ErrNoPrice is returned when a market has no usable price for a pair.
var ErrNoPrice = errors.New("no price")

// MarketSource provides last traded prices from one exchange.
type MarketSource interface {
	// Name identifies the exchange in logs.
	Name() string
	// FetchSnapshot returns every instrument quoted in one of quotes. On
	// failure the instruments collected so far are returned with the error.
	FetchSnapshot(ctx context.Context, quotes []string) (domain.MarketSnapshot, error)
	// GetPrice returns the last price of a single pair.
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

func quoteSet(quotes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(quotes))
	for _, q := range quotes {
		set[q] = struct{}{}
	}
	return set
}

func parsePositive(raw string) (decimal.Decimal, bool) {
	price, err := decimal.NewFromString(raw)
	if err != nil || !price.IsPositive() {
		return decimal.Zero, false
	}
	return price, true
}
