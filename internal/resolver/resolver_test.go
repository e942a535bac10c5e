package resolver_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/gary-Shen/wert-sub000/internal/cache"
	"github.com/gary-Shen/wert-sub000/internal/market"
	"github.com/gary-Shen/wert-sub000/internal/provider"
	"github.com/gary-Shen/wert-sub000/internal/provider/health"
	"github.com/gary-Shen/wert-sub000/internal/quote"
	"github.com/gary-Shen/wert-sub000/internal/resolver"
)

// fakeProvider counts calls and delegates to a configurable fetch func.
type fakeProvider struct {
	name  string
	calls atomic.Int64
	fetch func(ctx context.Context, symbol string) (quote.PriceRecord, error)
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Fetch(ctx context.Context, symbol string) (quote.PriceRecord, error) {
	f.calls.Add(1)
	return f.fetch(ctx, symbol)
}

func goodFetch(price float64) func(context.Context, string) (quote.PriceRecord, error) {
	return func(_ context.Context, symbol string) (quote.PriceRecord, error) {
		return quote.PriceRecord{Symbol: symbol, Price: price, Currency: "CNY", AsOf: "2026-08-28", Source: "fake"}, nil
	}
}

func failFetch(err error) func(context.Context, string) (quote.PriceRecord, error) {
	return func(_ context.Context, symbol string) (quote.PriceRecord, error) {
		return quote.PriceRecord{}, err
	}
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, providers ...provider.Provider) *resolver.Service {
	t.Helper()
	return resolver.New(resolver.Options{
		Registry:  market.NewRegistry(market.Defaults()...),
		Providers: providers,
		Cache:     cache.NewTiered(nil, nil, quietLog()),
		Health:    health.NewTracker(health.DefaultThreshold),
		Log:       quietLog(),
	})
}

func TestResolveCachesSecondCall(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{name: market.ProviderTushare, fetch: goodFetch(1680.50)}
	svc := newService(t, p)

	// Act: resolve the same raw symbol twice.
	first, err := svc.Resolve(t.Context(), "600519")
	require.NoError(t, err)
	second, err := svc.Resolve(t.Context(), "600519")
	require.NoError(t, err)

	// Assert: one upstream call, identical canonical records.
	require.Equal(t, int64(1), p.calls.Load())
	require.Equal(t, "600519.CN", first.Symbol)
	require.Equal(t, 1680.50, first.Price)
	require.Equal(t, "CNY", first.Currency)
	require.Equal(t, first.Symbol, second.Symbol)
	require.Equal(t, first.Price, second.Price)
}

func TestResolveFallsBackInPriorityOrder(t *testing.T) {
	t.Parallel()

	// Arrange: tushare fails, eastmoney answers.
	p1 := &fakeProvider{name: market.ProviderTushare, fetch: failFetch(errors.New("quota exceeded"))}
	p2 := &fakeProvider{name: market.ProviderEastmoney, fetch: goodFetch(1681.00)}
	svc := newService(t, p1, p2)

	rec, err := svc.Resolve(t.Context(), "600519")

	require.NoError(t, err)
	require.Equal(t, 1681.00, rec.Price)
	require.Equal(t, int64(1), p1.calls.Load())
	require.Equal(t, int64(1), p2.calls.Load())

	// The failure was recorded but tushare stays available below threshold.
	require.True(t, svc.Health().Available(market.ProviderTushare))
}

func TestResolveSkipsUnavailableProvider(t *testing.T) {
	t.Parallel()

	p1 := &fakeProvider{name: market.ProviderTushare, fetch: failFetch(errors.New("down"))}
	p2 := &fakeProvider{name: market.ProviderEastmoney, fetch: goodFetch(10.0)}
	svc := newService(t, p1, p2)

	// Arrange: push tushare past the failure threshold.
	for range health.DefaultThreshold {
		svc.Health().RecordFailure(market.ProviderTushare, errors.New("down"))
	}

	_, err := svc.Resolve(t.Context(), "600519")

	require.NoError(t, err)
	require.Equal(t, int64(0), p1.calls.Load(), "unavailable provider must be skipped")
	require.Equal(t, int64(1), p2.calls.Load())
}

func TestResolveResetsChainWhenAllDown(t *testing.T) {
	t.Parallel()

	p1 := &fakeProvider{name: market.ProviderTushare, fetch: goodFetch(42.0)}
	p2 := &fakeProvider{name: market.ProviderEastmoney, fetch: failFetch(errors.New("down"))}
	svc := newService(t, p1, p2)

	// Arrange: the whole CNE chain is marked down.
	for range health.DefaultThreshold {
		svc.Health().RecordFailure(market.ProviderTushare, errors.New("down"))
		svc.Health().RecordFailure(market.ProviderEastmoney, errors.New("down"))
	}

	// Act: with nothing available the chain resets and retries once.
	rec, err := svc.Resolve(t.Context(), "600519")

	require.NoError(t, err)
	require.Equal(t, 42.0, rec.Price)
	require.True(t, svc.Health().Available(market.ProviderTushare))
}

func TestResolveExhaustedWhenAllFail(t *testing.T) {
	t.Parallel()

	p1 := &fakeProvider{name: market.ProviderTushare, fetch: failFetch(errors.New("boom"))}
	p2 := &fakeProvider{name: market.ProviderEastmoney, fetch: failFetch(errors.New("boom"))}
	svc := newService(t, p1, p2)

	_, err := svc.Resolve(t.Context(), "600519")

	require.Error(t, err)
	require.Equal(t, quote.ReasonExhausted, quote.ReasonOf(err))
}

func TestResolveNotFoundDoesNotPenalizeProvider(t *testing.T) {
	t.Parallel()

	notFound := quote.NewError("999999.CN", quote.ReasonNotFound, errors.New("unknown code"))
	p1 := &fakeProvider{name: market.ProviderTushare, fetch: failFetch(notFound)}
	svc := newService(t, p1)

	for range health.DefaultThreshold + 2 {
		_, err := svc.Resolve(t.Context(), "999999")
		require.Error(t, err)
	}

	// Assert: repeated not-founds never trip the breaker.
	require.True(t, svc.Health().Available(market.ProviderTushare))
}

func TestResolveNoMarket(t *testing.T) {
	t.Parallel()

	svc := newService(t, &fakeProvider{name: market.ProviderTushare, fetch: goodFetch(1)})

	_, err := svc.Resolve(t.Context(), "not a symbol!!")

	require.Error(t, err)
	require.Equal(t, quote.ReasonNoMarket, quote.ReasonOf(err))
}

func TestResolveRejectsInvalidRecord(t *testing.T) {
	t.Parallel()

	p1 := &fakeProvider{name: market.ProviderTushare, fetch: func(_ context.Context, symbol string) (quote.PriceRecord, error) {
		return quote.PriceRecord{Symbol: symbol, Price: 0, Currency: "CNY", AsOf: "2026-08-28"}, nil
	}}
	p2 := &fakeProvider{name: market.ProviderEastmoney, fetch: goodFetch(7.5)}
	svc := newService(t, p1, p2)

	rec, err := svc.Resolve(t.Context(), "600519")

	// Assert: the zero price is treated as a provider failure and the chain
	// moves on.
	require.NoError(t, err)
	require.Equal(t, 7.5, rec.Price)
}

func TestResolveCoalescesConcurrentCalls(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	p := &fakeProvider{name: market.ProviderTushare, fetch: func(_ context.Context, symbol string) (quote.PriceRecord, error) {
		<-gate
		return quote.PriceRecord{Symbol: symbol, Price: 9.9, Currency: "CNY", AsOf: "2026-08-28", Source: "fake"}, nil
	}}
	svc := newService(t, p)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Resolve(t.Context(), "600519")
		}()
	}

	// Let the goroutines pile up behind the single in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int64(1), p.calls.Load(), "concurrent resolves must coalesce")
}

func TestResolveDefaultsCurrencyFromMarket(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{name: market.ProviderBinance, fetch: func(_ context.Context, symbol string) (quote.PriceRecord, error) {
		return quote.PriceRecord{Symbol: symbol, Price: 64250.1, AsOf: "2026-08-28", Source: "binance"}, nil
	}}
	svc := newService(t, p)

	rec, err := svc.Resolve(t.Context(), "BTC")

	require.NoError(t, err)
	require.Equal(t, "BTC-USDT", rec.Symbol)
	require.Equal(t, "USDT", rec.Currency)
}

// fakeDim answers asset-type lookups from a fixed map.
type fakeDim map[string]string

func (d fakeDim) AssetType(_ context.Context, symbol string) (string, bool) {
	at, ok := d[symbol]
	return at, ok
}

func TestResolveCatalogueOverridesHeuristic(t *testing.T) {
	t.Parallel()

	var fetched []string
	p := &fakeProvider{name: market.ProviderTushare, fetch: func(_ context.Context, symbol string) (quote.PriceRecord, error) {
		fetched = append(fetched, symbol)
		return quote.PriceRecord{Symbol: symbol, Price: 1.0, Currency: "CNY", AsOf: "2026-08-28", Source: "t"}, nil
	}}

	// The catalogue says 167001 (heuristic: fund) is a stock and 002594
	// (heuristic: equity) is a fund.
	svc := resolver.New(resolver.Options{
		Registry:  market.NewRegistry(market.Defaults()...),
		Providers: []provider.Provider{p},
		Cache:     cache.NewTiered(nil, nil, quietLog()),
		Dim:       fakeDim{"167001.CN": "STOCK", "002594.OF": "FUND"},
		Log:       quietLog(),
	})

	rec, err := svc.Resolve(t.Context(), "167001")
	require.NoError(t, err)
	require.Equal(t, "167001.CN", rec.Symbol)

	rec, err = svc.Resolve(t.Context(), "002594")
	require.NoError(t, err)
	require.Equal(t, "002594.OF", rec.Symbol)

	// Explicit suffixes bypass the catalogue.
	rec, err = svc.Resolve(t.Context(), "167001.OF")
	require.NoError(t, err)
	require.Equal(t, "167001.OF", rec.Symbol)

	require.Equal(t, []string{"167001.CN", "002594.OF", "167001.OF"}, fetched)
}

func TestResolveWithMockProvider(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mock := provider.NewMockProvider(ctrl)
	mock.EXPECT().Name().Return(market.ProviderYahoo).AnyTimes()
	mock.EXPECT().
		Fetch(gomock.Any(), "0700.HK").
		Return(quote.PriceRecord{Symbol: "0700.HK", Price: 325.4, Currency: "HKD", AsOf: "2026-08-28", Source: "yahoo"}, nil).
		Times(1)

	svc := newService(t, mock)

	rec, err := svc.Resolve(t.Context(), "700.hk")

	require.NoError(t, err)
	require.Equal(t, "0700.HK", rec.Symbol)
	require.Equal(t, 325.4, rec.Price)
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{name: market.ProviderTushare, fetch: goodFetch(5.0)}
	svc := newService(t, p)

	_, err := svc.Resolve(t.Context(), "600519")
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(t.Context(), "600519"))

	_, err = svc.Resolve(t.Context(), "600519")
	require.NoError(t, err)
	require.Equal(t, int64(2), p.calls.Load(), "invalidate must force a refetch")
}

func TestResolveManyIsolatesSlowSymbol(t *testing.T) {
	t.Parallel()

	// Arrange: the provider hangs on one symbol and ignores its context.
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	p := &fakeProvider{name: market.ProviderTushare, fetch: func(_ context.Context, symbol string) (quote.PriceRecord, error) {
		if symbol == "600001.CN" {
			<-block
		}
		return quote.PriceRecord{Symbol: symbol, Price: 1.0, Currency: "CNY", AsOf: "2026-08-28", Source: "fake"}, nil
	}}

	svc := resolver.New(resolver.Options{
		Registry:       market.NewRegistry(market.Defaults()...),
		Providers:      []provider.Provider{p},
		Cache:          cache.NewTiered(nil, nil, quietLog()),
		Log:            quietLog(),
		PerItemTimeout: 100 * time.Millisecond,
	})

	start := time.Now()
	results := svc.ResolveMany(t.Context(), []string{"600519", "600001", "000001"})
	elapsed := time.Since(start)

	require.Len(t, results, 3)
	require.NoError(t, results["600519"].Err)
	require.NoError(t, results["000001"].Err)
	require.Error(t, results["600001"].Err)
	require.Equal(t, quote.ReasonTimeout, quote.ReasonOf(results["600001"].Err))
	require.Less(t, elapsed, 2*time.Second, "a hung symbol must not stall the batch")
}

func TestResolveManyDeduplicates(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{name: market.ProviderTushare, fetch: goodFetch(3.0)}
	svc := newService(t, p)

	results := svc.ResolveMany(t.Context(), []string{"600519", "600519", "600519"})

	require.Len(t, results, 1)
	require.NoError(t, results["600519"].Err)
	require.Equal(t, int64(1), p.calls.Load())
}

// bulkProvider supports batched fetches on top of the single-symbol path.
type bulkProvider struct {
	*fakeProvider
	bulkCalls atomic.Int64
}

func (b *bulkProvider) FetchBulk(_ context.Context, symbols []string) (map[string]quote.PriceRecord, error) {
	b.bulkCalls.Add(1)
	out := make(map[string]quote.PriceRecord, len(symbols))
	for _, s := range symbols {
		out[s] = quote.PriceRecord{Symbol: s, Price: 100.0, Currency: "USDT", AsOf: "2026-08-28", Source: "binance"}
	}
	return out, nil
}

func TestResolveManyUsesBulkFetch(t *testing.T) {
	t.Parallel()

	p := &bulkProvider{fakeProvider: &fakeProvider{name: market.ProviderBinance, fetch: goodFetch(1)}}
	svc := newService(t, p)

	results := svc.ResolveMany(t.Context(), []string{"BTC", "ETH-USDT", "SOL"})

	require.Len(t, results, 3)
	for raw, res := range results {
		require.NoError(t, res.Err, raw)
		require.Equal(t, 100.0, res.Record.Price)
	}
	require.Equal(t, int64(1), p.bulkCalls.Load(), "one bulk round trip for the market")
	require.Equal(t, int64(0), p.calls.Load(), "warm cache must absorb per-symbol fetches")
}

func TestResolveManyBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int64
	p := &fakeProvider{name: market.ProviderTushare, fetch: func(_ context.Context, symbol string) (quote.PriceRecord, error) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return quote.PriceRecord{Symbol: symbol, Price: 1.0, Currency: "CNY", AsOf: "2026-08-28", Source: "fake"}, nil
	}}

	svc := resolver.New(resolver.Options{
		Registry:   market.NewRegistry(market.Defaults()...),
		Providers:  []provider.Provider{p},
		Cache:      cache.NewTiered(nil, nil, quietLog()),
		Log:        quietLog(),
		BatchLimit: 2,
	})

	symbols := make([]string, 0, 12)
	for i := range 12 {
		symbols = append(symbols, fmt.Sprintf("6005%02d", i))
	}
	results := svc.ResolveMany(t.Context(), symbols)

	require.Len(t, results, 12)
	require.LessOrEqual(t, peak.Load(), int64(2))
}
