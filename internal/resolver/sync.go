package resolver

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/gary-Shen/wert-sub000/internal/provider"
	"github.com/gary-Shen/wert-sub000/internal/quote"
)

const catalogueAttempts = 3

// HoldingsStore lists the symbols currently held, which the scheduled resync
// keeps warm in the cache.
type HoldingsStore interface {
	HeldSymbols(ctx context.Context) ([]string, error)
	AddHolding(ctx context.Context, symbol string) error
	RemoveHolding(ctx context.Context, symbol string) error
}

// CatalogueStore persists the instrument dimension table.
type CatalogueStore interface {
	SaveCatalogue(ctx context.Context, rows []quote.Instrument) error
}

// SyncReport summarizes one resync pass over held symbols.
type SyncReport struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// SyncHeldSymbols re-resolves every held symbol through the normal pipeline,
// refreshing both cache tiers. Symbols no provider knows count as skipped
// rather than failed; delisted holdings are routine, outages are not.
func (s *Service) SyncHeldSymbols(ctx context.Context) (SyncReport, error) {
	if s.holdings == nil {
		return SyncReport{}, fmt.Errorf("no holdings store configured")
	}
	symbols, err := s.holdings.HeldSymbols(ctx)
	if err != nil {
		s.metrics.SyncRun("error")
		return SyncReport{}, fmt.Errorf("list held symbols: %w", err)
	}

	report := SyncReport{Total: len(symbols)}
	for _, res := range s.ResolveMany(ctx, symbols) {
		switch {
		case res.Err == nil:
			report.Success++
		case quote.IsNotFound(res.Err):
			report.Skipped++
		default:
			report.Failed++
		}
	}

	outcome := "ok"
	if report.Failed > 0 {
		outcome = "partial"
	}
	s.metrics.SyncRun(outcome)
	s.log.Info("held symbols resynced",
		"total", report.Total, "success", report.Success,
		"failed", report.Failed, "skipped", report.Skipped)
	return report, nil
}

// CatalogueReport summarizes a catalogue refresh.
type CatalogueReport struct {
	Rows     int    `json:"rows"`
	Source   string `json:"source"`
	Attempts int    `json:"attempts"`
}

// SyncCatalogue refreshes the instrument dimension table from the first
// provider that implements CatalogueFetcher, retrying with exponential
// backoff and jitter.
func (s *Service) SyncCatalogue(ctx context.Context) (CatalogueReport, error) {
	if s.catalogue == nil {
		return CatalogueReport{}, fmt.Errorf("no catalogue store configured")
	}

	var fetcher provider.CatalogueFetcher
	var source string
	for _, name := range s.order {
		if cf, ok := s.providers[name].(provider.CatalogueFetcher); ok {
			fetcher = cf
			source = name
			break
		}
	}
	if fetcher == nil {
		return CatalogueReport{}, fmt.Errorf("no provider can fetch the catalogue")
	}

	var lastErr error
	for attempt := 1; attempt <= catalogueAttempts; attempt++ {
		rows, err := fetcher.FetchCatalogue(ctx)
		if err == nil {
			if err := s.catalogue.SaveCatalogue(ctx, rows); err != nil {
				s.metrics.SyncRun("error")
				return CatalogueReport{}, fmt.Errorf("save catalogue: %w", err)
			}
			s.metrics.SyncRun("ok")
			s.log.Info("catalogue refreshed", "rows", len(rows), "source", source, "attempts", attempt)
			return CatalogueReport{Rows: len(rows), Source: source, Attempts: attempt}, nil
		}

		lastErr = err
		s.log.Warn("catalogue fetch failed", "source", source, "attempt", attempt, "err", err)
		if attempt == catalogueAttempts {
			break
		}
		if err := s.sleep(ctx, s.backoff(attempt)); err != nil {
			s.metrics.SyncRun("error")
			return CatalogueReport{}, err
		}
	}
	s.metrics.SyncRun("error")
	return CatalogueReport{}, fmt.Errorf("catalogue fetch: %w", lastErr)
}

// backoff doubles per attempt from the base, capped, with up to 10% jitter.
func (s *Service) backoff(attempt int) time.Duration {
	d := s.backoffBase << (attempt - 1)
	if d > s.backoffCap {
		d = s.backoffCap
	}
	return d + time.Duration(rand.Int63n(int64(d)/10+1))
}
