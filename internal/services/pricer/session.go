package pricer

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// SessionView is a consistent copy of the session taken at one instant.
type SessionView struct {
	Prices map[string]decimal.Decimal
	// Misses are currencies no tier could price when the session was captured.
	Misses     map[string]struct{}
	CapturedAt time.Time
}

// SessionCache is the in-process price map of the current run. It holds a
// single map with one capture time and is replaced as a whole.
type SessionCache struct {
	mu         sync.RWMutex
	prices     map[string]decimal.Decimal
	misses     map[string]struct{}
	capturedAt time.Time
}

func NewSessionCache() *SessionCache {
	return &SessionCache{}
}

// IsFresh reports whether now - capturedAt < ttl. An empty cache is never fresh.
func (c *SessionCache) IsFresh(now time.Time, ttl time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fresh(now, ttl)
}

func (c *SessionCache) fresh(now time.Time, ttl time.Duration) bool {
	return c.prices != nil && now.Sub(c.capturedAt) < ttl
}

// View returns a copy of prices and misses when fresh.
func (c *SessionCache) View(now time.Time, ttl time.Duration) (SessionView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.fresh(now, ttl) {
		return SessionView{}, false
	}

	v := SessionView{
		Prices:     make(map[string]decimal.Decimal, len(c.prices)),
		Misses:     make(map[string]struct{}, len(c.misses)),
		CapturedAt: c.capturedAt,
	}
	for k, p := range c.prices {
		v.Prices[k] = p
	}
	for k := range c.misses {
		v.Misses[k] = struct{}{}
	}
	return v, true
}

// Lookup returns a copy of the price map and its capture time when fresh.
func (c *SessionCache) Lookup(now time.Time, ttl time.Duration) (map[string]decimal.Decimal, time.Time, bool) {
	v, ok := c.View(now, ttl)
	return v.Prices, v.CapturedAt, ok
}

// Replace swaps the whole map and drops recorded misses.
func (c *SessionCache) Replace(prices map[string]decimal.Decimal, capturedAt time.Time) {
	c.ReplaceWithMisses(prices, nil, capturedAt)
}

// ReplaceWithMisses swaps prices and misses together. A currency present in
// prices is never recorded as a miss.
func (c *SessionCache) ReplaceWithMisses(prices map[string]decimal.Decimal, misses []string, capturedAt time.Time) {
	cp := make(map[string]decimal.Decimal, len(prices))
	for k, v := range prices {
		cp[k] = v
	}
	mp := make(map[string]struct{}, len(misses))
	for _, ccy := range misses {
		if _, ok := cp[ccy]; !ok {
			mp[ccy] = struct{}{}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices = cp
	c.misses = mp
	c.capturedAt = capturedAt
}

func (c *SessionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices = nil
	c.misses = nil
	c.capturedAt = time.Time{}
}

// Len counts cached prices; misses are not included.
func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prices)
}

// Misses counts recorded misses.
func (c *SessionCache) Misses() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.misses)
}
