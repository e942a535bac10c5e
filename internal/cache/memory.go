// Package cache implements the two-tier price cache: a process-local memory
// tier and a durable day-scoped tier behind the Store interface, composed by
// Tiered. Freshness is decided by FreshnessPolicy, never by the tiers
// themselves.
package cache

import (
	"sync"
	"time"

	"github.com/gary-Shen/wert-sub000/internal/quote"
)

// Memory is the tier 1 cache: a plain map with lazy expiry checked at read
// time. The TTL is supplied by the caller on every read so the same entry can
// be judged against session-dependent freshness rules.
type Memory struct {
	now func() time.Time

	mu    sync.RWMutex
	items map[string]memoryEntry
}

type memoryEntry struct {
	rec      quote.PriceRecord
	storedAt time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now, items: make(map[string]memoryEntry)}
}

// Get returns the cached record for symbol if it is younger than ttl.
// An entry exactly at the boundary counts as stale: the off-by-one favors a
// re-fetch over serving old data.
func (m *Memory) Get(symbol string, ttl time.Duration) (quote.PriceRecord, bool) {
	m.mu.RLock()
	e, ok := m.items[symbol]
	m.mu.RUnlock()
	if !ok {
		return quote.PriceRecord{}, false
	}
	if m.now().Sub(e.storedAt) >= ttl {
		m.mu.Lock()
		// Re-check: a concurrent Put may have refreshed the entry.
		if cur, ok := m.items[symbol]; ok && cur.storedAt.Equal(e.storedAt) {
			delete(m.items, symbol)
		}
		m.mu.Unlock()
		return quote.PriceRecord{}, false
	}
	return e.rec, true
}

func (m *Memory) Put(rec quote.PriceRecord) {
	m.mu.Lock()
	m.items[rec.Symbol] = memoryEntry{rec: rec, storedAt: m.now()}
	m.mu.Unlock()
}

func (m *Memory) Invalidate(symbol string) {
	m.mu.Lock()
	delete(m.items, symbol)
	m.mu.Unlock()
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
