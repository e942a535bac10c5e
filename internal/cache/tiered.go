package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gary-Shen/wert-sub000/internal/quote"
)

// ErrNoEntry is returned by Store implementations when no row exists for a
// symbol.
var ErrNoEntry = errors.New("cache: no entry")

// Store is the durable tier 2, keyed by (symbol, trading date). Writes for
// the same key replace the existing row; last write wins.
type Store interface {
	// Load returns the most recent record for symbol, or ErrNoEntry.
	Load(ctx context.Context, symbol string) (quote.PriceRecord, error)
	Save(ctx context.Context, rec quote.PriceRecord) error
	Delete(ctx context.Context, symbol string) error
}

// StoreStats is optional bookkeeping exposed by stores that can count rows.
type StoreStats struct {
	Total int `json:"total"`
	Today int `json:"today"`
}

// StatsReader is implemented by stores that can report row counts.
type StatsReader interface {
	Stats(ctx context.Context) (StoreStats, error)
}

// Tiered composes the memory tier with an optional durable store. Reads try
// memory first, then the store; a fresh store hit back-fills memory. Writes
// go through to both tiers. Store errors degrade to cache misses rather than
// failing the resolution.
type Tiered struct {
	mem    *Memory
	store  Store
	policy *FreshnessPolicy
	log    *slog.Logger
	now    func() time.Time
}

func NewTiered(store Store, policy *FreshnessPolicy, log *slog.Logger) *Tiered {
	if policy == nil {
		policy = NewFreshnessPolicy()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Tiered{mem: NewMemory(), store: store, policy: policy, log: log, now: time.Now}
}

// Get returns a fresh record for symbol from either tier, or reports a miss.
func (t *Tiered) Get(ctx context.Context, symbol string, class quote.Class) (quote.PriceRecord, string, bool) {
	ttl := t.policy.TTL(class)
	if rec, ok := t.mem.Get(symbol, ttl); ok {
		return rec, "memory", true
	}
	if t.store == nil {
		return quote.PriceRecord{}, "", false
	}
	rec, err := t.store.Load(ctx, symbol)
	if err != nil {
		if !errors.Is(err, ErrNoEntry) {
			t.log.Warn("durable cache read failed", "symbol", symbol, "err", err)
		}
		return quote.PriceRecord{}, "", false
	}
	if !t.policy.Fresh(rec, class) {
		return quote.PriceRecord{}, "", false
	}
	t.mem.Put(rec)
	return rec, "durable", true
}

// Put writes the record through both tiers, stamping CachedAt.
func (t *Tiered) Put(ctx context.Context, rec quote.PriceRecord) {
	rec.CachedAt = t.now()
	t.mem.Put(rec)
	if t.store == nil {
		return
	}
	if err := t.store.Save(ctx, rec); err != nil {
		t.log.Warn("durable cache write failed", "symbol", rec.Symbol, "err", err)
	}
}

// Invalidate drops the symbol from both tiers.
func (t *Tiered) Invalidate(ctx context.Context, symbol string) {
	t.mem.Invalidate(symbol)
	if t.store == nil {
		return
	}
	if err := t.store.Delete(ctx, symbol); err != nil {
		t.log.Warn("durable cache delete failed", "symbol", symbol, "err", err)
	}
}

// Stats reports entry counts across tiers for the admin surface.
type Stats struct {
	MemoryEntries int        `json:"memory_entries"`
	Durable       StoreStats `json:"durable"`
}

func (t *Tiered) Stats(ctx context.Context) Stats {
	s := Stats{MemoryEntries: t.mem.Len()}
	if sr, ok := t.store.(StatsReader); ok {
		if ds, err := sr.Stats(ctx); err == nil {
			s.Durable = ds
		}
	}
	return s
}
