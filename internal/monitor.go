package internal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/loanmon/internal/domain"
	"github.com/vadiminshakov/loanmon/internal/report"
	"github.com/vadiminshakov/loanmon/internal/services/indicators"
)

type loanSource interface {
	LoanInfo(ctx context.Context) (*domain.LoanInfo, error)
	AccountBalance(ctx context.Context) (domain.AccountMetrics, error)
}

type priceResolver interface {
	Resolve(ctx context.Context, currencies []string) domain.Prices
}

type snapshotStore interface {
	Append(snapshot domain.LoanSnapshot) (uint64, error)
	Query(since time.Time) ([]domain.LoanSnapshot, error)
}

type cachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type runObserver interface {
	ObserveLoan(currentLTV decimal.Decimal, tier domain.RiskTier)
	ObserveRun(d time.Duration, err error)
}

type nopRunObserver struct{}

func (nopRunObserver) ObserveLoan(decimal.Decimal, domain.RiskTier) {}
func (nopRunObserver) ObserveRun(time.Duration, error)              {}

// MonitorConfig tunes a LoanMonitor.
type MonitorConfig struct {
	DiscrepancyThreshold decimal.Decimal
	HistoryWindow        time.Duration
	HistoryRows          int
	TrendPeriod          int
}

// RunResult is the outcome of one monitoring pass.
type RunResult struct {
	Timestamp time.Time
	Loan      domain.LoanMetrics
	Account   domain.AccountMetrics
	Prices    domain.Prices
	// Snapshot is nil when there is no loan.
	Snapshot      *domain.LoanSnapshot
	SnapshotIndex uint64
}

// LoanMonitor fetches loan state, prices collateral and records snapshots.
type LoanMonitor struct {
	loans     loanSource
	resolver  priceResolver
	snapshots snapshotStore
	purger    cachePurger
	observer  runObserver
	cfg       MonitorConfig
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

type MonitorOption func(*LoanMonitor)

func WithRunObserver(o runObserver) MonitorOption {
	return func(m *LoanMonitor) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithCachePurger makes every scheduled tick drop expired price rows.
func WithCachePurger(p cachePurger) MonitorOption {
	return func(m *LoanMonitor) { m.purger = p }
}

func WithMonitorClock(now func() time.Time) MonitorOption {
	return func(m *LoanMonitor) { m.now = now }
}

func WithIDGenerator(gen func() string) MonitorOption {
	return func(m *LoanMonitor) { m.newID = gen }
}

func NewLoanMonitor(loans loanSource, resolver priceResolver, snapshots snapshotStore, cfg MonitorConfig, l *zap.Logger, opts ...MonitorOption) *LoanMonitor {
	if cfg.HistoryRows <= 0 {
		cfg.HistoryRows = 10
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 24 * time.Hour
	}
	if cfg.TrendPeriod <= 0 {
		cfg.TrendPeriod = indicators.DefaultPeriod
	}

	m := &LoanMonitor{
		loans:     loans,
		resolver:  resolver,
		snapshots: snapshots,
		observer:  nopRunObserver{},
		cfg:       cfg,
		logger:    l.With(zap.String("component", "loan_monitor")),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunOnce performs one monitoring pass. A loan-info failure fails the run and
// writes nothing; an account failure degrades to zero equity.
func (m *LoanMonitor) RunOnce(ctx context.Context) (res *RunResult, err error) {
	started := m.now()
	defer func() { m.observer.ObserveRun(m.now().Sub(started), err) }()

	var (
		info       *domain.LoanInfo
		account    domain.AccountMetrics
		accountErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = m.loans.LoanInfo(gctx)
		return errors.Wrap(err, "loan info")
	})
	g.Go(func() error {
		account, accountErr = m.loans.AccountBalance(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		m.logger.Error("monitoring run failed", zap.Error(err))
		return nil, err
	}

	if accountErr != nil {
		m.logger.Warn("account balance unavailable, using zero equity", zap.Error(accountErr))
		account = domain.AccountMetrics{}
	}

	res = &RunResult{Timestamp: started, Account: account}
	res.Prices = m.resolver.Resolve(ctx, info.CollateralCurrencies())
	res.Loan = domain.BuildLoanMetrics(info, res.Prices)

	if missing := res.Prices.Unresolved(); len(missing) > 0 {
		m.logger.Warn("collateral without price", zap.Strings("currencies", missing))
	}
	if res.Loan.DiscrepancyExceeds(m.cfg.DiscrepancyThreshold) {
		m.logger.Warn("computed collateral differs from exchange notional",
			zap.String("computed_usd", res.Loan.ComputedCollateralUSD.StringFixed(2)),
			zap.String("exchange_usd", res.Loan.CollateralUSD.StringFixed(2)),
			zap.String("discrepancy_pct", res.Loan.PriceDiscrepancyPct.StringFixed(2)))
	}

	tier := res.Loan.Risk()
	m.observer.ObserveLoan(res.Loan.CurrentLTV, tier)

	if !res.Loan.HasLoan {
		m.logger.Info("no active flexible loan")
		return res, nil
	}

	snapshot := domain.NewLoanSnapshot(m.newID(), started, res.Loan, account.TotalEquityUSD)
	idx, err := m.snapshots.Append(snapshot)
	if err != nil {
		m.logger.Error("failed to save loan snapshot", zap.Error(err))
		return nil, errors.Wrap(err, "save loan snapshot")
	}
	res.Snapshot = &snapshot
	res.SnapshotIndex = idx

	m.logger.Info("loan checked",
		zap.String("risk", string(tier)),
		zap.String("ltv", res.Loan.CurrentLTV.StringFixed(2)),
		zap.String("margin_call_ltv", res.Loan.MarginCallLTV.StringFixed(2)),
		zap.Uint64("snapshot_index", idx))

	return res, nil
}

// History returns snapshots inside the history window, newest first, and the
// LTV trend over them. The trend is nil when there are too few snapshots.
func (m *LoanMonitor) History() ([]domain.LoanSnapshot, *indicators.LTVTrend, error) {
	snaps, err := m.snapshots.Query(m.now().Add(-m.cfg.HistoryWindow))
	if err != nil {
		return nil, nil, errors.Wrap(err, "query loan history")
	}

	ltvs := make([]decimal.Decimal, 0, len(snaps))
	for i := len(snaps) - 1; i >= 0; i-- {
		ltvs = append(ltvs, snaps[i].CurrentLTV)
	}

	var trend *indicators.LTVTrend
	t, err := indicators.TrendOf(ltvs, m.cfg.TrendPeriod)
	switch {
	case err == nil:
		trend = &t
	case errors.Is(err, indicators.ErrNotEnoughData):
	default:
		m.logger.Warn("failed to compute LTV trend", zap.Error(err))
	}

	return snaps, trend, nil
}

// Report assembles the renderable view of a run with recent history.
// res may be nil for a history-only report.
func (m *LoanMonitor) Report(res *RunResult) report.Report {
	r := report.Report{
		GeneratedAt:          m.now(),
		DiscrepancyThreshold: m.cfg.DiscrepancyThreshold,
	}
	if res != nil {
		r.GeneratedAt = res.Timestamp
		r.Loan = res.Loan
		r.Account = res.Account
	}

	history, trend, err := m.History()
	if err != nil {
		m.logger.Warn("history unavailable", zap.Error(err))
		return r
	}
	if len(history) > m.cfg.HistoryRows {
		history = history[:m.cfg.HistoryRows]
	}
	r.History = history
	r.Trend = trend

	return r
}

// Run executes RunOnce on a cron schedule until ctx is cancelled. Failed runs
// are logged and the schedule continues. onResult, if set, receives every
// successful result.
func (m *LoanMonitor) Run(ctx context.Context, schedule string, onResult func(*RunResult)) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() { m.tick(ctx, onResult) })
	if err != nil {
		return errors.Wrapf(err, "invalid schedule %q", schedule)
	}

	m.logger.Info("starting monitoring loop", zap.String("schedule", schedule))
	m.tick(ctx, onResult)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	m.logger.Info("context done, stopping monitoring loop")

	return ctx.Err()
}

func (m *LoanMonitor) tick(ctx context.Context, onResult func(*RunResult)) {
	if ctx.Err() != nil {
		return
	}

	if m.purger != nil {
		n, err := m.purger.PurgeExpired(ctx)
		if err != nil {
			m.logger.Warn("failed to purge expired prices", zap.Error(err))
		} else if n > 0 {
			m.logger.Debug("purged expired prices", zap.Int64("rows", n))
		}
	}

	res, err := m.RunOnce(ctx)
	if err != nil {
		return
	}
	if onResult != nil {
		onResult(res)
	}
}
