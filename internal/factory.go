package internal

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/loanmon/config"
	"github.com/vadiminshakov/loanmon/internal/clients"
	"github.com/vadiminshakov/loanmon/internal/metrics"
	"github.com/vadiminshakov/loanmon/internal/services/loan"
	"github.com/vadiminshakov/loanmon/internal/services/pricer"
	"github.com/vadiminshakov/loanmon/internal/storage/loansnapshots"
	"github.com/vadiminshakov/loanmon/internal/storage/pricecache"
)

// App is a fully wired monitor together with the resources it owns.
type App struct {
	Monitor   *LoanMonitor
	Metrics   *metrics.Collector
	Snapshots *loansnapshots.WALStore
	Prices    *pricecache.Store
	Source    pricer.MarketSource
}

// NewApp wires every component from conf.
func NewApp(conf config.Config, logger *zap.Logger) (*App, error) {
	if dir := filepath.Dir(conf.PriceCacheDB); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create price cache directory")
		}
	}

	okx := clients.NewOKXClient(clients.OKXConfig{
		BaseURL:           conf.OKXBaseURL,
		APIKey:            conf.Credentials.APIKey,
		SecretKey:         conf.Credentials.SecretKey,
		Passphrase:        conf.Credentials.Passphrase,
		Simulated:         conf.Credentials.Simulated,
		RequestTimeout:    conf.RequestTimeout,
		RequestsPerSecond: conf.RequestsPerSecond,
	}, logger)

	client, err := newExchangeClient(conf, okx)
	if err != nil {
		return nil, err
	}
	source, err := newMarketSource(client, conf, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create market source")
	}

	prices, err := pricecache.New(conf.PriceCacheDB, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open price cache")
	}

	snapshots, err := loansnapshots.NewWALStore(conf.SnapshotDir)
	if err != nil {
		_ = prices.Close()
		return nil, errors.Wrap(err, "failed to open loan snapshot store")
	}

	collector := metrics.NewCollector()

	resolver := pricer.NewResolver(source, prices, pricer.NewSessionCache(), pricer.ResolverConfig{
		Quotes:     conf.QuoteCurrencies,
		StoreTTL:   conf.PriceCacheTTL,
		SessionTTL: conf.SessionCacheTTL,
		Timeout:    conf.ResolveTimeout,
	}, logger, pricer.WithObserver(collector))

	monitor := NewLoanMonitor(
		loan.NewSource(okx, logger),
		resolver,
		snapshots,
		MonitorConfig{
			DiscrepancyThreshold: conf.DiscrepancyThreshold,
			HistoryWindow:        conf.HistoryWindow,
			HistoryRows:          conf.HistoryRows,
		},
		logger,
		WithRunObserver(collector),
		WithCachePurger(prices),
	)

	logger.Info("monitor wired",
		zap.String("market_source", source.Name()),
		zap.Strings("quotes", conf.QuoteCurrencies),
		zap.Bool("signed", conf.Credentials.Complete()),
		zap.Bool("simulated", conf.Credentials.Simulated))

	return &App{
		Monitor:   monitor,
		Metrics:   collector,
		Snapshots: snapshots,
		Prices:    prices,
		Source:    source,
	}, nil
}

// Close releases the stores.
func (a *App) Close() error {
	snapErr := a.Snapshots.Close()
	if err := a.Prices.Close(); err != nil {
		return errors.Wrap(err, "close price cache")
	}
	return errors.Wrap(snapErr, "close loan snapshot store")
}
