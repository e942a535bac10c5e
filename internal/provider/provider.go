// Package provider defines the uniform contract every upstream data source
// implements. Providers are stateless with respect to price data; health
// accounting lives in the health subpackage and retry policy belongs to the
// resolver, never to the provider itself.
package provider

//go:generate mockgen -source=provider.go -destination=mock_provider.go -package=provider

import (
	"context"

	"github.com/gary-Shen/wert-sub000/internal/quote"
)

// Provider fetches the best known current price for one canonical symbol.
// Implementations convert the canonical symbol into whatever form their
// upstream expects, apply their own network timeout, and do not retry.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (quote.PriceRecord, error)
}

// BulkFetcher is implemented by providers whose upstream supports batched
// requests. The batch resolver falls back to per-symbol Fetch when absent.
type BulkFetcher interface {
	FetchBulk(ctx context.Context, symbols []string) (map[string]quote.PriceRecord, error)
}

// CatalogueFetcher is implemented by providers that can list the tradable
// instruments of their market (the dimension table used for search and for
// authoritative equity/fund classification).
type CatalogueFetcher interface {
	FetchCatalogue(ctx context.Context) ([]quote.Instrument, error)
}
