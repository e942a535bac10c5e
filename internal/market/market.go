// Package market partitions the instrument namespace. Each Market owns a
// slice of the raw-symbol space via its Owns predicate and maps raw symbols
// to canonical form. The registry is built once at startup and read-only
// afterwards.
package market

import (
	"strings"

	"github.com/gary-Shen/wert-sub000/internal/quote"
)

// Market is a named partition of the instrument space.
//
// Canonical must be idempotent: feeding it an already-canonical symbol
// returns the symbol unchanged. Providers are names in ascending priority
// order; the first listed is tried first.
type Market struct {
	ID        string
	Currency  string
	Class     quote.Class
	Owns      func(raw string) bool
	Canonical func(raw string) string
	Providers []string
}

// Registry routes raw symbols to markets. Markets are consulted in
// registration order; the first whose Owns predicate matches wins. Ownership
// predicates should be mutually exclusive in practice, but registration
// order breaks ties deterministically.
type Registry struct {
	markets []Market
}

func NewRegistry(markets ...Market) *Registry {
	return &Registry{markets: markets}
}

// Route normalizes a raw symbol and returns its owning market plus the
// canonical symbol. Pure function over the static registry.
func (r *Registry) Route(raw string) (Market, string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Market{}, "", quote.NewError(raw, quote.ReasonNoMarket, nil)
	}
	for _, m := range r.markets {
		if m.Owns(s) {
			return m, m.Canonical(s), nil
		}
	}
	return Market{}, "", quote.NewError(raw, quote.ReasonNoMarket, nil)
}

// All returns markets in registration order.
func (r *Registry) All() []Market { return r.markets }

func (r *Registry) ByID(id string) (Market, bool) {
	for _, m := range r.markets {
		if m.ID == id {
			return m, true
		}
	}
	return Market{}, false
}
