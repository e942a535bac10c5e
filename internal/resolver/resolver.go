// Package resolver is the orchestration core: it routes symbols to markets,
// walks each market's provider chain in priority order, and keeps the
// two-tier cache and health tracker coherent along the way.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gary-Shen/wert-sub000/internal/cache"
	"github.com/gary-Shen/wert-sub000/internal/market"
	"github.com/gary-Shen/wert-sub000/internal/metrics"
	"github.com/gary-Shen/wert-sub000/internal/provider"
	"github.com/gary-Shen/wert-sub000/internal/provider/health"
	"github.com/gary-Shen/wert-sub000/internal/quote"
)

const (
	defaultBatchLimit     = 4
	defaultPerItemTimeout = 10 * time.Second
)

type Options struct {
	Registry  *market.Registry
	Providers []provider.Provider
	Cache     *cache.Tiered
	Health    *health.Tracker
	Holdings  HoldingsStore
	Catalogue CatalogueStore
	// Dim looks up authoritative asset types from the synced catalogue.
	Dim     AssetTypeLookup
	Metrics *metrics.Metrics
	Log     *slog.Logger

	// BatchLimit caps concurrent in-flight resolutions in ResolveMany.
	BatchLimit int
	// PerItemTimeout bounds each item inside a batch independently.
	PerItemTimeout time.Duration
}

type Service struct {
	registry  *market.Registry
	providers map[string]provider.Provider
	order     []string
	cache     *cache.Tiered
	health    *health.Tracker
	holdings  HoldingsStore
	catalogue CatalogueStore
	dim       AssetTypeLookup
	metrics   *metrics.Metrics
	log       *slog.Logger

	flight         singleflight.Group
	batchLimit     int
	perItemTimeout time.Duration

	// sync backoff knobs, overridden in tests
	backoffBase time.Duration
	backoffCap  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func New(opts Options) *Service {
	providers := make(map[string]provider.Provider, len(opts.Providers))
	order := make([]string, 0, len(opts.Providers))
	for _, p := range opts.Providers {
		providers[p.Name()] = p
		order = append(order, p.Name())
	}
	if opts.Health == nil {
		opts.Health = health.NewTracker(health.DefaultThreshold)
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = defaultBatchLimit
	}
	if opts.PerItemTimeout <= 0 {
		opts.PerItemTimeout = defaultPerItemTimeout
	}
	return &Service{
		registry:       opts.Registry,
		providers:      providers,
		order:          order,
		cache:          opts.Cache,
		health:         opts.Health,
		holdings:       opts.Holdings,
		catalogue:      opts.Catalogue,
		dim:            opts.Dim,
		metrics:        opts.Metrics,
		log:            opts.Log,
		batchLimit:     opts.BatchLimit,
		perItemTimeout: opts.PerItemTimeout,
		backoffBase:    time.Second,
		backoffCap:     30 * time.Second,
		sleep:          sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Health exposes the tracker for the admin surface.
func (s *Service) Health() *health.Tracker { return s.health }

// Cache exposes the tiered cache for the admin surface.
func (s *Service) Cache() *cache.Tiered { return s.cache }

// Registry exposes the market registry.
func (s *Service) Registry() *market.Registry { return s.registry }

// Holdings exposes the holdings store, nil when none is configured.
func (s *Service) Holdings() HoldingsStore { return s.holdings }

// AssetTypeLookup answers whether the synced catalogue knows a symbol and
// what kind of instrument it is (STOCK or FUND).
type AssetTypeLookup interface {
	AssetType(ctx context.Context, symbol string) (string, bool)
}

var reBareCode = regexp.MustCompile(`^[0-9]{6}$`)

// reclassify corrects the fund/equity leading-digit heuristic for bare CN
// codes using the synced catalogue. Symbols with explicit suffixes are never
// touched: the caller said what they meant.
func (s *Service) reclassify(ctx context.Context, m market.Market, canonical string) (market.Market, string) {
	code, isFund := strings.CutSuffix(canonical, ".OF")
	if !isFund {
		var isEquity bool
		code, isEquity = strings.CutSuffix(canonical, ".CN")
		if !isEquity {
			return m, canonical
		}
	}
	if isFund {
		if at, ok := s.dim.AssetType(ctx, code+".CN"); ok && at == "STOCK" {
			if em, found := s.registry.ByID(market.IDCNEquity); found {
				return em, code + ".CN"
			}
		}
		return m, canonical
	}
	if at, ok := s.dim.AssetType(ctx, code+".OF"); ok && at == "FUND" {
		if fm, found := s.registry.ByID(market.IDCNFund); found {
			return fm, code + ".OF"
		}
	}
	return m, canonical
}

// Resolve returns the current price for a raw symbol. Concurrent calls for
// the same canonical symbol are coalesced into one upstream fetch.
func (s *Service) Resolve(ctx context.Context, raw string) (quote.PriceRecord, error) {
	m, canonical, err := s.registry.Route(raw)
	if err != nil {
		s.metrics.Resolution("no_market")
		return quote.PriceRecord{}, err
	}
	if s.dim != nil && reBareCode.MatchString(strings.TrimSpace(raw)) {
		m, canonical = s.reclassify(ctx, m, canonical)
	}

	v, err, _ := s.flight.Do(canonical, func() (any, error) {
		return s.resolveCanonical(ctx, m, canonical)
	})
	if err != nil {
		return quote.PriceRecord{}, err
	}
	return v.(quote.PriceRecord), nil
}

func (s *Service) resolveCanonical(ctx context.Context, m market.Market, canonical string) (quote.PriceRecord, error) {
	if rec, tier, ok := s.cache.Get(ctx, canonical, m.Class); ok {
		s.metrics.CacheHit(tier)
		s.metrics.Resolution("cache_hit")
		return rec, nil
	}
	s.metrics.CacheMiss()

	rec, err := s.fetchCascade(ctx, m, canonical)
	if err != nil {
		s.metrics.Resolution("failed")
		return quote.PriceRecord{}, err
	}
	s.cache.Put(ctx, rec)
	s.metrics.Resolution("fetched")
	return rec, nil
}

// fetchCascade walks the market's provider chain. Unavailable providers are
// skipped; if the whole chain is down, every provider in it is reset and the
// chain is walked once more, so a full outage recovers without waiting for an
// operator.
func (s *Service) fetchCascade(ctx context.Context, m market.Market, canonical string) (quote.PriceRecord, error) {
	rec, attempted, err := s.walkChain(ctx, m, canonical)
	if err == nil {
		return rec, nil
	}
	if attempted == 0 {
		s.log.Warn("all providers unavailable, resetting chain", "market", m.ID, "symbol", canonical)
		for _, name := range m.Providers {
			s.health.Reset(name)
		}
		rec, _, err = s.walkChain(ctx, m, canonical)
		if err == nil {
			return rec, nil
		}
	}
	// A not-found is an answer about the symbol, not about the chain.
	if quote.ReasonOf(err) == quote.ReasonNotFound {
		return quote.PriceRecord{}, err
	}
	return quote.PriceRecord{}, quote.NewError(canonical, quote.ReasonExhausted, err)
}

func (s *Service) walkChain(ctx context.Context, m market.Market, canonical string) (quote.PriceRecord, int, error) {
	var lastErr error
	attempted := 0
	for _, name := range m.Providers {
		p, ok := s.providers[name]
		if !ok {
			continue
		}
		if !s.health.Available(name) {
			continue
		}
		attempted++

		start := time.Now()
		rec, err := p.Fetch(ctx, canonical)
		s.metrics.FetchDuration(name, time.Since(start).Seconds())
		if err != nil {
			reason := quote.ReasonOf(err)
			s.metrics.ProviderFetch(name, string(reason))
			// A missing symbol is an answer, not a provider fault.
			if reason != quote.ReasonNotFound {
				s.health.RecordFailure(name, err)
			}
			s.log.Warn("provider fetch failed", "provider", name, "symbol", canonical, "reason", reason, "err", err)
			lastErr = err
			continue
		}

		if rec.Currency == "" {
			rec.Currency = m.Currency
		}
		rec.Symbol = canonical
		if verr := rec.Validate(); verr != nil {
			s.metrics.ProviderFetch(name, "invalid")
			s.health.RecordFailure(name, verr)
			s.log.Warn("provider returned invalid record", "provider", name, "symbol", canonical, "err", verr)
			lastErr = verr
			continue
		}

		s.metrics.ProviderFetch(name, "ok")
		s.health.RecordSuccess(name)
		return rec, attempted, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no provider available for market %s", m.ID)
	}
	return quote.PriceRecord{}, attempted, lastErr
}

// Invalidate drops a symbol from both cache tiers so the next Resolve goes
// upstream.
func (s *Service) Invalidate(ctx context.Context, raw string) error {
	_, canonical, err := s.registry.Route(raw)
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, canonical)
	return nil
}
