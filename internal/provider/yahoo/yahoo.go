// Package yahoo fetches daily closes from the Yahoo Finance chart API. It
// serves as the backstop for Hong Kong listings: canonical NNNN.HK symbols
// are valid Yahoo tickers as-is.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gary-Shen/wert-sub000/internal/httpx"
	"github.com/gary-Shen/wert-sub000/internal/quote"
)

const (
	defaultEndpoint = "https://query1.finance.yahoo.com/v8/finance/chart"
	fetchTimeout    = 10 * time.Second
)

type Config struct {
	Name     string
	Endpoint string
}

type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "yahoo"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency string `json:"currency"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (p *Provider) Fetch(ctx context.Context, symbol string) (quote.PriceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/%s?interval=1d&range=5d", p.cfg.Endpoint, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return quote.PriceRecord{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	var resp chartResponse
	if err := p.client.DoJSON(ctx, req, &resp); err != nil {
		var se *httpx.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonNotFound, err)
		}
		return quote.PriceRecord{}, fmt.Errorf("yahoo chart: %w", err)
	}
	if resp.Chart.Error != nil {
		return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonNotFound,
			fmt.Errorf("yahoo: %s", resp.Chart.Error.Description))
	}
	if len(resp.Chart.Result) == 0 {
		return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonNotFound, fmt.Errorf("yahoo: empty result"))
	}

	result := resp.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonNotFound, fmt.Errorf("yahoo: no bars"))
	}

	closes := result.Indicators.Quote[0].Close
	// Walk back past null bars (holidays etc.).
	for i := len(result.Timestamp) - 1; i >= 0; i-- {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		currency := result.Meta.Currency
		if currency == "" {
			currency = "HKD"
		}
		return quote.PriceRecord{
			Symbol:   symbol,
			Price:    *closes[i],
			Currency: currency,
			AsOf:     time.Unix(result.Timestamp[i], 0).UTC().Format("2006-01-02"),
			Source:   p.cfg.Name,
		}, nil
	}
	return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonNotFound, fmt.Errorf("yahoo: only null bars"))
}
