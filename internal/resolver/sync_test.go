package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gary-Shen/wert-sub000/internal/cache"
	"github.com/gary-Shen/wert-sub000/internal/market"
	"github.com/gary-Shen/wert-sub000/internal/provider"
	"github.com/gary-Shen/wert-sub000/internal/quote"
)

type syncProvider struct {
	name      string
	fetch     func(ctx context.Context, symbol string) (quote.PriceRecord, error)
	catalogue func(ctx context.Context) ([]quote.Instrument, error)
}

func (p *syncProvider) Name() string { return p.name }

func (p *syncProvider) Fetch(ctx context.Context, symbol string) (quote.PriceRecord, error) {
	return p.fetch(ctx, symbol)
}

func (p *syncProvider) FetchCatalogue(ctx context.Context) ([]quote.Instrument, error) {
	return p.catalogue(ctx)
}

type memHoldings struct{ symbols []string }

func (h *memHoldings) HeldSymbols(context.Context) ([]string, error) { return h.symbols, nil }
func (h *memHoldings) AddHolding(_ context.Context, s string) error {
	h.symbols = append(h.symbols, s)
	return nil
}
func (h *memHoldings) RemoveHolding(context.Context, string) error { return nil }

type memCatalogue struct{ saved []quote.Instrument }

func (c *memCatalogue) SaveCatalogue(_ context.Context, rows []quote.Instrument) error {
	c.saved = rows
	return nil
}

func discardLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSyncHeldSymbolsReport(t *testing.T) {
	t.Parallel()

	// Arrange: one resolvable, one unknown to the provider, one erroring.
	p := &syncProvider{name: market.ProviderTushare, fetch: func(_ context.Context, symbol string) (quote.PriceRecord, error) {
		switch symbol {
		case "600519.CN":
			return quote.PriceRecord{Symbol: symbol, Price: 1680.5, Currency: "CNY", AsOf: "2026-08-28", Source: "t"}, nil
		case "999999.CN":
			return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonNotFound, errors.New("unknown"))
		default:
			return quote.PriceRecord{}, errors.New("boom")
		}
	}}

	svc := New(Options{
		Registry:  market.NewRegistry(market.Defaults()...),
		Providers: []provider.Provider{p},
		Cache:     cache.NewTiered(nil, nil, discardLog()),
		Holdings:  &memHoldings{symbols: []string{"600519", "999999", "000001"}},
		Log:       discardLog(),
	})

	report, err := svc.SyncHeldSymbols(t.Context())

	require.NoError(t, err)
	require.Equal(t, SyncReport{Total: 3, Success: 1, Failed: 1, Skipped: 1}, report)
}

func TestSyncHeldSymbolsNoStore(t *testing.T) {
	t.Parallel()

	svc := New(Options{
		Registry: market.NewRegistry(market.Defaults()...),
		Cache:    cache.NewTiered(nil, nil, discardLog()),
		Log:      discardLog(),
	})

	_, err := svc.SyncHeldSymbols(t.Context())
	require.Error(t, err)
}

func TestSyncCatalogueRetriesWithBackoff(t *testing.T) {
	t.Parallel()

	// Arrange: two failures then success.
	attempts := 0
	p := &syncProvider{
		name:  market.ProviderTushare,
		fetch: func(_ context.Context, s string) (quote.PriceRecord, error) { return quote.PriceRecord{}, nil },
		catalogue: func(context.Context) ([]quote.Instrument, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("flaky")
			}
			return []quote.Instrument{{Symbol: "600519.CN", Name: "贵州茅台", AssetType: "STOCK"}}, nil
		},
	}

	store := &memCatalogue{}
	svc := New(Options{
		Registry:  market.NewRegistry(market.Defaults()...),
		Providers: []provider.Provider{p},
		Cache:     cache.NewTiered(nil, nil, discardLog()),
		Catalogue: store,
		Log:       discardLog(),
	})

	var slept []time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	report, err := svc.SyncCatalogue(t.Context())

	require.NoError(t, err)
	require.Equal(t, 3, report.Attempts)
	require.Equal(t, 1, report.Rows)
	require.Equal(t, market.ProviderTushare, report.Source)
	require.Len(t, store.saved, 1)

	// Assert: base then doubled, jitter within 10%.
	require.Len(t, slept, 2)
	require.GreaterOrEqual(t, slept[0], time.Second)
	require.Less(t, slept[0], 1100*time.Millisecond)
	require.GreaterOrEqual(t, slept[1], 2*time.Second)
	require.Less(t, slept[1], 2200*time.Millisecond)
}

func TestSyncCatalogueGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	attempts := 0
	p := &syncProvider{
		name:  market.ProviderTushare,
		fetch: func(_ context.Context, s string) (quote.PriceRecord, error) { return quote.PriceRecord{}, nil },
		catalogue: func(context.Context) ([]quote.Instrument, error) {
			attempts++
			return nil, errors.New("down")
		},
	}

	svc := New(Options{
		Registry:  market.NewRegistry(market.Defaults()...),
		Providers: []provider.Provider{p},
		Cache:     cache.NewTiered(nil, nil, discardLog()),
		Catalogue: &memCatalogue{},
		Log:       discardLog(),
	})
	svc.sleep = func(context.Context, time.Duration) error { return nil }

	_, err := svc.SyncCatalogue(t.Context())

	require.Error(t, err)
	require.Equal(t, catalogueAttempts, attempts)
}

func TestSyncCatalogueNoFetcher(t *testing.T) {
	t.Parallel()

	svc := New(Options{
		Registry:  market.NewRegistry(market.Defaults()...),
		Cache:     cache.NewTiered(nil, nil, discardLog()),
		Catalogue: &memCatalogue{},
		Log:       discardLog(),
	})

	_, err := svc.SyncCatalogue(t.Context())
	require.Error(t, err)
}

func TestBackoffCap(t *testing.T) {
	t.Parallel()

	svc := New(Options{
		Registry: market.NewRegistry(market.Defaults()...),
		Cache:    cache.NewTiered(nil, nil, discardLog()),
		Log:      discardLog(),
	})
	svc.backoffBase = 20 * time.Second

	d := svc.backoff(4)
	require.LessOrEqual(t, d, 33*time.Second)
	require.GreaterOrEqual(t, d, 30*time.Second)
}
