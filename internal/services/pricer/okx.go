package pricer

import (
	"context"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/loanmon/internal/clients"
	"github.com/vadiminshakov/loanmon/internal/domain"
)

const (
	okxTickersPath = "/api/v5/market/tickers"
	okxTickerPath  = "/api/v5/market/ticker"

	DefaultTickerPageLimit = 100
	DefaultMaxTickerPages  = 5
)

// OKXPricer reads spot tickers from OKX.
type OKXPricer struct {
	sender    clients.Sender
	pageLimit int
	maxPages  int
	logger    *zap.Logger
}

func NewOKXPricer(sender clients.Sender, pageLimit, maxPages int, l *zap.Logger) *OKXPricer {
	if pageLimit <= 0 {
		pageLimit = DefaultTickerPageLimit
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxTickerPages
	}
	return &OKXPricer{
		sender:    sender,
		pageLimit: pageLimit,
		maxPages:  maxPages,
		logger:    l.With(zap.String("component", "okx_pricer")),
	}
}

func (p *OKXPricer) Name() string { return "okx" }

// FetchSnapshot pages through spot tickers. Paging stops on an empty page,
// a short page, a page repeating an instrument already seen, or maxPages.
func (p *OKXPricer) FetchSnapshot(ctx context.Context, quotes []string) (domain.MarketSnapshot, error) {
	wanted := quoteSet(quotes)
	snap := make(domain.MarketSnapshot)
	seen := make(map[string]struct{})

	for page := 1; page <= p.maxPages; page++ {
		resp, err := p.sender.Send(ctx, http.MethodGet, okxTickersPath, map[string]string{
			"instType": "SPOT",
			"limit":    strconv.Itoa(p.pageLimit),
			"page":     strconv.Itoa(page),
		})
		if err != nil {
			return snap, errors.Wrapf(err, "fetch okx tickers page %d", page)
		}

		items := resp.Data.Array()
		if len(items) == 0 {
			break
		}

		repeated := false
		for _, item := range items {
			instID := item.Get("instId").String()
			if _, ok := seen[instID]; ok {
				repeated = true
				continue
			}
			seen[instID] = struct{}{}

			pair, ok := domain.ParseInstrumentID(instID)
			if !ok {
				continue
			}
			if _, ok := wanted[pair.To]; !ok {
				continue
			}
			if price, ok := parsePositive(item.Get("last").String()); ok {
				snap[instID] = price
			}
		}

		if repeated || len(items) < p.pageLimit {
			break
		}
	}

	p.logger.Debug("fetched ticker snapshot", zap.Int("instruments", len(snap)))
	return snap, nil
}

// GetPrice reads a single ticker.
func (p *OKXPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	resp, err := p.sender.Send(ctx, http.MethodGet, okxTickerPath, map[string]string{
		"instId": pair.InstrumentID(),
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "fetch okx ticker %s", pair.InstrumentID())
	}

	price, ok := parsePositive(resp.Data.Get("0.last").String())
	if !ok {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "okx ticker %s", pair.InstrumentID())
	}

	return price, nil
}
