package resolver

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gary-Shen/wert-sub000/internal/market"
	"github.com/gary-Shen/wert-sub000/internal/provider"
	"github.com/gary-Shen/wert-sub000/internal/quote"
)

// Result is the per-symbol outcome of a batch resolution. Exactly one of
// Record and Err is meaningful.
type Result struct {
	Record quote.PriceRecord
	Err    error
}

// ResolveMany resolves a set of raw symbols with bounded concurrency. Each
// item succeeds or fails on its own; a slow or broken symbol never sinks the
// rest of the batch. Duplicate raw symbols collapse onto one entry.
func (s *Service) ResolveMany(ctx context.Context, raws []string) map[string]Result {
	s.warmBulk(ctx, raws)

	out := make(map[string]Result, len(raws))
	seen := make(map[string]struct{}, len(raws))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchLimit)

	type keyed struct {
		raw string
		res Result
	}
	results := make(chan keyed, len(raws))

	for _, raw := range raws {
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}

		g.Go(func() error {
			rec, err := s.resolveWithin(gctx, raw, s.perItemTimeout)
			results <- keyed{raw: raw, res: Result{Record: rec, Err: err}}
			return nil
		})
	}

	g.Wait()
	close(results)
	for r := range results {
		out[r.raw] = r.res
	}
	return out
}

// warmBulk seeds the cache in one round trip per market whose top available
// provider supports batched fetches. Anything it cannot warm falls through to
// the ordinary per-symbol cascade; bulk failures only cost the round trip.
func (s *Service) warmBulk(ctx context.Context, raws []string) {
	groups := make(map[string][]string)
	markets := make(map[string]market.Market)
	grouped := make(map[string]struct{})
	for _, raw := range raws {
		m, canonical, err := s.registry.Route(raw)
		if err != nil {
			continue
		}
		if _, dup := grouped[canonical]; dup {
			continue
		}
		grouped[canonical] = struct{}{}
		if _, _, ok := s.cache.Get(ctx, canonical, m.Class); ok {
			continue
		}
		groups[m.ID] = append(groups[m.ID], canonical)
		markets[m.ID] = m
	}

	for id, symbols := range groups {
		if len(symbols) < 2 {
			continue
		}
		m := markets[id]
		for _, name := range m.Providers {
			p, ok := s.providers[name]
			if !ok || !s.health.Available(name) {
				continue
			}
			bf, isBulk := p.(provider.BulkFetcher)
			if !isBulk {
				break
			}
			recs, err := bf.FetchBulk(ctx, symbols)
			if err != nil {
				s.metrics.ProviderFetch(name, string(quote.ReasonOf(err)))
				s.health.RecordFailure(name, err)
				s.log.Warn("bulk fetch failed", "provider", name, "market", id, "err", err)
				break
			}
			s.metrics.ProviderFetch(name, "ok")
			s.health.RecordSuccess(name)
			for _, rec := range recs {
				if rec.Currency == "" {
					rec.Currency = m.Currency
				}
				if rec.Validate() == nil {
					s.cache.Put(ctx, rec)
				}
			}
			break
		}
	}
}

// resolveWithin bounds one resolution with its own deadline. The fetch runs
// in a goroutine raced against the deadline so a provider that ignores its
// context cannot hold up the batch; an overrun fetch is abandoned, not
// awaited.
func (s *Service) resolveWithin(ctx context.Context, raw string, timeout time.Duration) (quote.PriceRecord, error) {
	itemCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		rec quote.PriceRecord
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		rec, err := s.Resolve(itemCtx, raw)
		done <- outcome{rec: rec, err: err}
	}()

	select {
	case o := <-done:
		return o.rec, o.err
	case <-itemCtx.Done():
		return quote.PriceRecord{}, quote.NewError(raw, quote.ReasonTimeout, itemCtx.Err())
	}
}
