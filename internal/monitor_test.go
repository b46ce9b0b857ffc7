package internal

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/loanmon/internal/domain"
	"github.com/vadiminshakov/loanmon/internal/services/indicators"
)

var errExchange = errors.New("exchange unavailable")

type fakeLoans struct {
	info       *domain.LoanInfo
	infoErr    error
	account    domain.AccountMetrics
	accountErr error
}

func (f *fakeLoans) LoanInfo(context.Context) (*domain.LoanInfo, error) {
	return f.info, f.infoErr
}

func (f *fakeLoans) AccountBalance(context.Context) (domain.AccountMetrics, error) {
	return f.account, f.accountErr
}

type fakeResolver struct {
	prices domain.Prices
	calls  [][]string
}

func (f *fakeResolver) Resolve(_ context.Context, currencies []string) domain.Prices {
	f.calls = append(f.calls, currencies)
	out := make(domain.Prices, len(currencies))
	for _, c := range currencies {
		out[c] = f.prices.Get(c)
	}
	return out
}

type memSnapshots struct {
	mu        sync.Mutex
	snaps     []domain.LoanSnapshot
	appendErr error
}

func (m *memSnapshots) Append(s domain.LoanSnapshot) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return 0, m.appendErr
	}
	m.snaps = append(m.snaps, s)
	return uint64(len(m.snaps)), nil
}

func (m *memSnapshots) Query(since time.Time) ([]domain.LoanSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LoanSnapshot
	for _, s := range m.snaps {
		if !s.Timestamp.Before(since) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

type recordingObserver struct {
	loans   []domain.RiskTier
	runs    int
	runErrs int
}

func (o *recordingObserver) ObserveLoan(_ decimal.Decimal, tier domain.RiskTier) {
	o.loans = append(o.loans, tier)
}

func (o *recordingObserver) ObserveRun(_ time.Duration, err error) {
	o.runs++
	if err != nil {
		o.runErrs++
	}
}

type countingPurger struct{ calls int }

func (p *countingPurger) PurgeExpired(context.Context) (int64, error) {
	p.calls++
	return 2, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func opt(s string) domain.OptionalDecimal {
	return domain.OptionalDecimal{Value: dec(s), Valid: true}
}

func sampleInfo() *domain.LoanInfo {
	return &domain.LoanInfo{
		Collateral: []domain.AssetAmount{
			{Currency: "BTC", Amount: dec("0.5")},
			{Currency: "USDT", Amount: dec("1000")},
			{Currency: "XYZ", Amount: dec("7")},
		},
		Loans:                 []domain.AssetAmount{{Currency: "USDC", Amount: dec("15000")}},
		CollateralNotionalUSD: opt("31000"),
		LoanNotionalUSD:       opt("15000"),
		CurrentLTV:            opt("0.72"),
		MarginCallLTV:         opt("0.80"),
		LiquidationLTV:        opt("0.90"),
	}
}

func samplePrices() domain.Prices {
	return domain.Prices{
		"BTC":  {Currency: "BTC", Price: dec("60000"), Source: domain.PriceSourceSnapshot},
		"USDT": {Currency: "USDT", Price: dec("1"), Source: domain.PriceSourceStablecoin},
	}
}

type monitorFixture struct {
	loans     *fakeLoans
	resolver  *fakeResolver
	snapshots *memSnapshots
	observer  *recordingObserver
	now       time.Time
	monitor   *LoanMonitor
}

func newFixture(t *testing.T, loans *fakeLoans) *monitorFixture {
	t.Helper()
	f := &monitorFixture{
		loans:     loans,
		resolver:  &fakeResolver{prices: samplePrices()},
		snapshots: &memSnapshots{},
		observer:  &recordingObserver{},
		now:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.monitor = NewLoanMonitor(f.loans, f.resolver, f.snapshots, MonitorConfig{
		DiscrepancyThreshold: decimal.NewFromInt(10),
		HistoryRows:          2,
	}, zap.NewNop(),
		WithRunObserver(f.observer),
		WithMonitorClock(func() time.Time { return f.now }),
		WithIDGenerator(func() string { return "snap-1" }),
	)
	return f
}

func TestLoanMonitor_RunOnce(t *testing.T) {
	f := newFixture(t, &fakeLoans{
		info:    sampleInfo(),
		account: domain.AccountMetrics{TotalEquityUSD: dec("5000")},
	})

	res, err := f.monitor.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, f.resolver.calls, 1)
	assert.Equal(t, []string{"BTC", "USDT", "XYZ"}, f.resolver.calls[0])

	assert.True(t, res.Loan.HasLoan)
	assert.Equal(t, domain.RiskWarning, res.Loan.Risk())
	assert.True(t, res.Loan.ComputedCollateralUSD.Equal(dec("31000")))
	assert.Equal(t, 1, res.Loan.UnpricedCount)
	assert.Equal(t, domain.PriceSourceUnresolved, res.Prices["XYZ"].Source)

	require.NotNil(t, res.Snapshot)
	assert.Equal(t, "snap-1", res.Snapshot.ID)
	assert.Equal(t, uint64(1), res.SnapshotIndex)
	assert.True(t, res.Snapshot.AccountEquityUSD.Equal(dec("5000")))
	assert.Equal(t, f.now, res.Snapshot.Timestamp)
	require.Len(t, f.snapshots.snaps, 1)

	assert.Equal(t, []domain.RiskTier{domain.RiskWarning}, f.observer.loans)
	assert.Equal(t, 1, f.observer.runs)
	assert.Zero(t, f.observer.runErrs)
}

func TestLoanMonitor_RunOnce_NoLoan(t *testing.T) {
	f := newFixture(t, &fakeLoans{})

	res, err := f.monitor.RunOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Loan.HasLoan)
	assert.Nil(t, res.Snapshot)
	assert.Empty(t, f.snapshots.snaps)
	assert.Equal(t, []domain.RiskTier{domain.RiskSafe}, f.observer.loans)
}

func TestLoanMonitor_RunOnce_LoanFailure(t *testing.T) {
	f := newFixture(t, &fakeLoans{infoErr: errExchange})

	res, err := f.monitor.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errExchange))
	assert.Nil(t, res)

	assert.Empty(t, f.resolver.calls)
	assert.Empty(t, f.snapshots.snaps)
	assert.Equal(t, 1, f.observer.runErrs)
}

func TestLoanMonitor_RunOnce_AccountFailureDegrades(t *testing.T) {
	f := newFixture(t, &fakeLoans{info: sampleInfo(), accountErr: errExchange})

	res, err := f.monitor.RunOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Account.TotalEquityUSD.IsZero())
	require.NotNil(t, res.Snapshot)
	assert.True(t, res.Snapshot.AccountEquityUSD.IsZero())
}

func TestLoanMonitor_RunOnce_SnapshotFailure(t *testing.T) {
	f := newFixture(t, &fakeLoans{info: sampleInfo()})
	f.snapshots.appendErr = errors.New("disk full")

	_, err := f.monitor.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save loan snapshot")
	assert.Equal(t, 1, f.observer.runErrs)
}

func TestLoanMonitor_HistoryAndReport(t *testing.T) {
	f := newFixture(t, &fakeLoans{info: sampleInfo()})

	ltvs := []string{"50", "52", "54", "60"}
	for i, l := range ltvs {
		f.snapshots.snaps = append(f.snapshots.snaps, domain.LoanSnapshot{
			ID:         string(rune('a' + i)),
			Timestamp:  f.now.Add(time.Duration(i-len(ltvs)) * time.Hour),
			CurrentLTV: dec(l),
		})
	}
	// outside the default 24h window
	f.snapshots.snaps = append(f.snapshots.snaps, domain.LoanSnapshot{
		ID: "old", Timestamp: f.now.Add(-48 * time.Hour), CurrentLTV: dec("10"),
	})

	history, trend, err := f.monitor.History()
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "d", history[0].ID)
	require.NotNil(t, trend)
	assert.True(t, trend.Current.Equal(dec("60")))
	assert.Equal(t, indicators.DirectionRising, trend.Direction)

	r := f.monitor.Report(nil)
	assert.Len(t, r.History, 2)
	assert.Equal(t, "d", r.History[0].ID)
	assert.NotNil(t, r.Trend)
	assert.False(t, r.Loan.HasLoan)
}

func TestLoanMonitor_History_TooShortForTrend(t *testing.T) {
	f := newFixture(t, &fakeLoans{})
	f.snapshots.snaps = []domain.LoanSnapshot{{ID: "a", Timestamp: f.now, CurrentLTV: dec("50")}}

	history, trend, err := f.monitor.History()
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Nil(t, trend)
}

func TestLoanMonitor_Run(t *testing.T) {
	f := newFixture(t, &fakeLoans{info: sampleInfo()})
	purger := &countingPurger{}
	WithCachePurger(purger)(f.monitor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var results []*RunResult
	err := f.monitor.Run(ctx, "@every 1h", func(res *RunResult) {
		results = append(results, res)
		cancel()
	})

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.True(t, results[0].Loan.HasLoan)
	assert.Equal(t, 1, purger.calls)
}

func TestLoanMonitor_Run_InvalidSchedule(t *testing.T) {
	f := newFixture(t, &fakeLoans{})

	err := f.monitor.Run(context.Background(), "not a schedule", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}
