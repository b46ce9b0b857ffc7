package pricer

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/vadiminshakov/loanmon/internal/domain"
)

// hyperliquidQuote is the settlement currency of Hyperliquid mids.
const hyperliquidQuote = "USDC"

// HyperliquidPricer fetches mid prices from the Hyperliquid public Info API.
type HyperliquidPricer struct {
	info *hyperliquid.Info
}

func NewHyperliquidPricer(info *hyperliquid.Info) *HyperliquidPricer {
	return &HyperliquidPricer{info: info}
}

func (p *HyperliquidPricer) Name() string { return "hyperliquid" }

// FetchSnapshot maps every coin mid to COIN-USDC. Spot index keys (@N) are skipped.
func (p *HyperliquidPricer) FetchSnapshot(ctx context.Context, quotes []string) (domain.MarketSnapshot, error) {
	snap := make(domain.MarketSnapshot)
	if _, ok := quoteSet(quotes)[hyperliquidQuote]; !ok {
		return snap, nil
	}
	if p.info == nil {
		return snap, errors.New("hyperliquid info client is nil")
	}

	mids, err := p.info.AllMids(ctx)
	if err != nil {
		return snap, errors.Wrap(err, "hyperliquid mids")
	}

	for coin, mid := range mids {
		if strings.HasPrefix(coin, "@") {
			continue
		}
		if price, ok := parsePositive(mid); ok {
			snap[domain.Pair{From: coin, To: hyperliquidQuote}.InstrumentID()] = price
		}
	}

	return snap, nil
}

func (p *HyperliquidPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	if pair.To != hyperliquidQuote {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "hyperliquid quotes only %s, got %s", hyperliquidQuote, pair.To)
	}
	if p.info == nil {
		return decimal.Zero, errors.New("hyperliquid info client is nil")
	}

	mids, err := p.info.AllMids(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "hyperliquid mids")
	}

	// mids are keyed by base coin (e.g., "BTC").
	price, ok := parsePositive(mids[pair.From])
	if !ok {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "hyperliquid mid %s", pair.From)
	}
	return price, nil
}
