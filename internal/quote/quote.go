package quote

import (
	"fmt"
	"time"
)

// Class buckets instruments for cache freshness lookup. New classes can be
// added without touching cache code; unknown classes fall back to a default
// TTL.
type Class string

const (
	ClassEquity    Class = "equity"
	ClassFund      Class = "fund"
	ClassCrypto    Class = "crypto"
	ClassCatalogue Class = "catalogue"
)

// PriceRecord is the normalized shape returned by all providers.
// AsOf is the trading date the price represents (YYYY-MM-DD) and may lag the
// wall-clock date, e.g. prior close after market hours.
type PriceRecord struct {
	Symbol   string    `json:"symbol"`
	Price    float64   `json:"price"`
	Currency string    `json:"currency"`
	AsOf     string    `json:"date"`
	Source   string    `json:"source"`
	CachedAt time.Time `json:"cached_at,omitzero"`
}

// Validate rejects records that would poison the cache.
func (r PriceRecord) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("quote: empty symbol")
	}
	if r.Price <= 0 {
		return fmt.Errorf("quote: non-positive price %v for %s", r.Price, r.Symbol)
	}
	if r.AsOf == "" {
		return fmt.Errorf("quote: missing trading date for %s", r.Symbol)
	}
	return nil
}

// Instrument is one row of a market's tradable catalogue.
type Instrument struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	AssetType string `json:"assetType"` // STOCK or FUND
}
