package pricer

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/vadiminshakov/loanmon/internal/domain"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) FetchSnapshot(ctx context.Context, quotes []string) (domain.MarketSnapshot, error) {
	args := m.Called(ctx, quotes)
	snap, _ := args.Get(0).(domain.MarketSnapshot)
	return snap, args.Error(1)
}

func (m *mockSource) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	args := m.Called(ctx, pair)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type memStore struct {
	mu      sync.Mutex
	prices  map[string]decimal.Decimal
	getErr  error
	puts    int
	batches int
}

func newMemStore() *memStore {
	return &memStore{prices: make(map[string]decimal.Decimal)}
}

func (s *memStore) Get(_ context.Context, ccy string) (decimal.Decimal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return decimal.Zero, false, s.getErr
	}
	p, ok := s.prices[ccy]
	return p, ok, nil
}

func (s *memStore) Put(_ context.Context, ccy string, price decimal.Decimal, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	s.prices[ccy] = price
	return nil
}

func (s *memStore) PutBatch(_ context.Context, prices map[string]decimal.Decimal, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	for k, v := range prices {
		s.prices[k] = v
	}
	return nil
}

func (s *memStore) price(ccy string) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prices[ccy]
	return p, ok
}

type countingObserver struct {
	mu       sync.Mutex
	resolved map[domain.PriceSource]int
	failures map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{resolved: map[domain.PriceSource]int{}, failures: map[string]int{}}
}

func (o *countingObserver) ObserveResolution(source domain.PriceSource) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resolved[source]++
}

func (o *countingObserver) ObserveLookupFailure(stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures[stage]++
}

var errNetwork = errors.New("connection reset")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
