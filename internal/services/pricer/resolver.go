package pricer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/loanmon/internal/domain"
)

// Failure stages reported to the Observer.
const (
	StageStore      = "store"
	StageStoreWrite = "store_write"
	StageSnapshot   = "snapshot"
	StageTicker     = "ticker"
)

const (
	DefaultStoreTTL    = 300 * time.Second
	DefaultSessionTTL  = 30 * time.Second
	DefaultTimeout     = 30 * time.Second
	defaultConcurrency = 8
)

// PriceStore is the durable cache consulted in tier 3.
type PriceStore interface {
	Get(ctx context.Context, currency string) (decimal.Decimal, bool, error)
	Put(ctx context.Context, currency string, price decimal.Decimal, ttl time.Duration) error
	PutBatch(ctx context.Context, prices map[string]decimal.Decimal, ttl time.Duration) error
}

// Observer receives resolution outcomes, e.g. for metrics.
type Observer interface {
	ObserveResolution(source domain.PriceSource)
	ObserveLookupFailure(stage string)
}

type nopObserver struct{}

func (nopObserver) ObserveResolution(domain.PriceSource) {}
func (nopObserver) ObserveLookupFailure(string)          {}

// ResolverConfig tunes the resolver. Zero values fall back to defaults.
type ResolverConfig struct {
	Quotes      []string
	StoreTTL    time.Duration
	SessionTTL  time.Duration
	Timeout     time.Duration
	Concurrency int
}

// Resolver turns currency codes into USD prices, trying in order:
// stablecoin peg, session cache, durable store, one market snapshot,
// per-currency ticker lookups. Anything left gets the zero sentinel.
type Resolver struct {
	source   MarketSource
	store    PriceStore
	session  *SessionCache
	cfg      ResolverConfig
	observer Observer
	now      func() time.Time
	logger   *zap.Logger
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

func WithObserver(o Observer) ResolverOption {
	return func(r *Resolver) {
		if o != nil {
			r.observer = o
		}
	}
}

func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

func NewResolver(source MarketSource, store PriceStore, session *SessionCache, cfg ResolverConfig, l *zap.Logger, opts ...ResolverOption) *Resolver {
	if len(cfg.Quotes) == 0 {
		cfg.Quotes = domain.DefaultQuoteCurrencies
	}
	if cfg.StoreTTL <= 0 {
		cfg.StoreTTL = DefaultStoreTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if session == nil {
		session = NewSessionCache()
	}

	r := &Resolver{
		source:   source,
		store:    store,
		session:  session,
		cfg:      cfg,
		observer: nopObserver{},
		now:      time.Now,
		logger:   l.With(zap.String("component", "price_resolver"), zap.String("source", source.Name())),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve returns a decision for every distinct non-blank currency.
// It never fails: errors degrade to the next tier and finally to the sentinel.
func (r *Resolver) Resolve(ctx context.Context, currencies []string) domain.Prices {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	now := r.now()
	out := make(domain.Prices)
	var pending []string

	for _, ccy := range dedupe(currencies) {
		if domain.IsStablecoin(ccy) {
			out[ccy] = domain.ResolvedPrice{Currency: ccy, Price: decimal.NewFromInt(1), Source: domain.PriceSourceStablecoin}
			continue
		}
		pending = append(pending, ccy)
	}

	view, sessionFresh := r.session.View(now, r.cfg.SessionTTL)
	pending = r.take(out, pending, domain.PriceSourceSession, view.Prices)
	pending = r.skipKnownMisses(out, pending, view.Misses)

	if len(pending) == 0 {
		r.finish(out)
		return out
	}

	pending = r.take(out, pending, domain.PriceSourceStore, r.fromStore(ctx, pending))

	var base map[string]decimal.Decimal
	if len(pending) > 0 && ctx.Err() == nil {
		var found map[string]decimal.Decimal
		base, found = r.fromSnapshot(ctx, pending)
		pending = r.take(out, pending, domain.PriceSourceSnapshot, found)
	}

	if len(pending) > 0 && ctx.Err() == nil {
		pending = r.take(out, pending, domain.PriceSourceTicker, r.fromTickers(ctx, pending))
	}

	for _, ccy := range pending {
		out[ccy] = domain.UnresolvedPrice(ccy)
	}
	if len(pending) > 0 {
		sort.Strings(pending)
		r.logger.Warn("prices unresolved", zap.Strings("currencies", pending), zap.Error(ctx.Err()))
	}

	// store rows carry their own expiry, so store hits stay out of the session
	resolved := make(map[string]decimal.Decimal)
	for ccy, rp := range out {
		if rp.Source == domain.PriceSourceSnapshot || rp.Source == domain.PriceSourceTicker {
			resolved[ccy] = rp.Price
		}
	}
	// an expired deadline says nothing about the currency itself
	var misses []string
	if ctx.Err() == nil {
		misses = pending
	}
	r.replaceSession(now, view, sessionFresh, base, resolved, misses)
	r.finish(out)

	return out
}

// take moves pending currencies found in prices into out and returns the rest.
func (r *Resolver) take(out domain.Prices, pending []string, source domain.PriceSource, prices map[string]decimal.Decimal) []string {
	if len(prices) == 0 {
		return pending
	}
	rest := make([]string, 0, len(pending))
	for _, ccy := range pending {
		price, ok := prices[ccy]
		if !ok || !price.IsPositive() {
			rest = append(rest, ccy)
			continue
		}
		out[ccy] = domain.ResolvedPrice{Currency: ccy, Price: price, Source: source}
	}
	return rest
}

// skipKnownMisses answers currencies that no tier could price within the
// current session with the zero sentinel and returns the rest.
func (r *Resolver) skipKnownMisses(out domain.Prices, pending []string, misses map[string]struct{}) []string {
	if len(misses) == 0 {
		return pending
	}
	rest := make([]string, 0, len(pending))
	for _, ccy := range pending {
		if _, ok := misses[ccy]; ok {
			out[ccy] = domain.UnresolvedPrice(ccy)
			continue
		}
		rest = append(rest, ccy)
	}
	if skipped := len(pending) - len(rest); skipped > 0 {
		r.logger.Debug("session misses", zap.Int("skipped", skipped))
	}
	return rest
}

func (r *Resolver) fromStore(ctx context.Context, currencies []string) map[string]decimal.Decimal {
	if r.store == nil {
		return nil
	}

	var (
		mu    sync.Mutex
		found = make(map[string]decimal.Decimal)
		g     errgroup.Group
	)
	g.SetLimit(r.cfg.Concurrency)

	for _, ccy := range currencies {
		g.Go(func() error {
			price, ok, err := r.store.Get(ctx, ccy)
			if err != nil {
				r.observer.ObserveLookupFailure(StageStore)
				r.logger.Warn("price store lookup failed", zap.String("currency", ccy), zap.Error(err))
				return nil
			}
			if ok {
				mu.Lock()
				found[ccy] = price
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Debug("store tier", zap.Int("requested", len(currencies)), zap.Int("hits", len(found)))
	return found
}

// fromSnapshot fetches one market snapshot. It returns all base prices in
// the snapshot and the subset matching currencies.
func (r *Resolver) fromSnapshot(ctx context.Context, currencies []string) (map[string]decimal.Decimal, map[string]decimal.Decimal) {
	snap, err := r.source.FetchSnapshot(ctx, r.cfg.Quotes)
	if err != nil {
		r.observer.ObserveLookupFailure(StageSnapshot)
		r.logger.Warn("market snapshot failed", zap.Int("partial_instruments", len(snap)), zap.Error(err))
	}
	if len(snap) == 0 {
		return nil, nil
	}

	base := snap.BasePrices(r.cfg.Quotes)
	found := make(map[string]decimal.Decimal)
	for _, ccy := range currencies {
		if price, ok := snap.Lookup(ccy, r.cfg.Quotes); ok {
			found[ccy] = price
		}
	}

	if r.store != nil {
		if err := r.store.PutBatch(context.WithoutCancel(ctx), base, r.cfg.StoreTTL); err != nil {
			r.observer.ObserveLookupFailure(StageStoreWrite)
			r.logger.Warn("price store batch write failed", zap.Error(err))
		}
	}

	r.logger.Debug("snapshot tier",
		zap.Int("instruments", len(snap)),
		zap.Int("requested", len(currencies)),
		zap.Int("hits", len(found)))
	return base, found
}

func (r *Resolver) fromTickers(ctx context.Context, currencies []string) map[string]decimal.Decimal {
	var (
		mu    sync.Mutex
		found = make(map[string]decimal.Decimal)
		g     errgroup.Group
	)
	g.SetLimit(r.cfg.Concurrency)

	for _, ccy := range currencies {
		g.Go(func() error {
			price, ok := r.tickerPrice(ctx, ccy)
			if !ok {
				return nil
			}
			mu.Lock()
			found[ccy] = price
			mu.Unlock()

			if r.store != nil {
				if err := r.store.Put(context.WithoutCancel(ctx), ccy, price, r.cfg.StoreTTL); err != nil {
					r.observer.ObserveLookupFailure(StageStoreWrite)
					r.logger.Warn("price store write failed", zap.String("currency", ccy), zap.Error(err))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Debug("ticker tier", zap.Int("requested", len(currencies)), zap.Int("hits", len(found)))
	return found
}

// tickerPrice tries quotes in priority order; the first positive price wins.
func (r *Resolver) tickerPrice(ctx context.Context, ccy string) (decimal.Decimal, bool) {
	for _, quote := range r.cfg.Quotes {
		if ctx.Err() != nil {
			return decimal.Zero, false
		}
		price, err := r.source.GetPrice(ctx, domain.Pair{From: ccy, To: quote})
		if err != nil {
			r.observer.ObserveLookupFailure(StageTicker)
			r.logger.Debug("ticker lookup failed",
				zap.String("currency", ccy), zap.String("quote", quote), zap.Error(err))
			continue
		}
		if price.IsPositive() {
			return price, true
		}
	}
	return decimal.Zero, false
}

// replaceSession stores the union of reused session entries, snapshot base
// prices and prices resolved in this pass, together with the currencies left
// unresolved. Reuse never extends freshness.
func (r *Resolver) replaceSession(now time.Time, view SessionView, sessionFresh bool,
	base, resolved map[string]decimal.Decimal, misses []string) {
	if len(base) == 0 && len(resolved) == 0 && len(misses) == 0 {
		return
	}

	merged := make(map[string]decimal.Decimal, len(view.Prices)+len(base)+len(resolved))
	allMisses := make([]string, 0, len(view.Misses)+len(misses))
	capturedAt := now
	if sessionFresh {
		for k, v := range view.Prices {
			merged[k] = v
		}
		for k := range view.Misses {
			allMisses = append(allMisses, k)
		}
		if view.CapturedAt.Before(capturedAt) {
			capturedAt = view.CapturedAt
		}
	}
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range resolved {
		merged[k] = v
	}
	allMisses = append(allMisses, misses...)

	r.session.ReplaceWithMisses(merged, allMisses, capturedAt)
}

func (r *Resolver) finish(out domain.Prices) {
	for _, rp := range out {
		r.observer.ObserveResolution(rp.Source)
	}
	counts := out.CountBySource()
	fields := make([]zap.Field, 0, len(counts)+1)
	fields = append(fields, zap.Int("total", len(out)))
	for source, n := range counts {
		fields = append(fields, zap.Int(string(source), n))
	}
	r.logger.Debug("prices resolved", fields...)
}

func dedupe(currencies []string) []string {
	seen := make(map[string]struct{}, len(currencies))
	out := make([]string, 0, len(currencies))
	for _, c := range currencies {
		c = domain.NormalizeCurrency(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
