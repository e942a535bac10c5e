// Package binance fetches spot prices from the Binance public ticker
// endpoint. Crypto symbols are canonically BASE-QUOTE; Binance wants the
// concatenated pair, so the dash is stripped on the way out.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gary-Shen/wert-sub000/internal/httpx"
	"github.com/gary-Shen/wert-sub000/internal/quote"
)

const (
	defaultEndpoint = "https://api.binance.com/api/v3/ticker/price"
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
		cfg.Name = "binance"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// pair splits "BTC-USDT" into the Binance pair "BTCUSDT" and the quote
// currency the price is denominated in.
func pair(symbol string) (string, string) {
	base, qc, ok := strings.Cut(symbol, "-")
	if !ok {
		qc = "USDT"
	}
	return base + qc, qc
}

func (p *Provider) Fetch(ctx context.Context, symbol string) (quote.PriceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	pr, currency := pair(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.Endpoint+"?symbol="+url.QueryEscape(pr), nil)
	if err != nil {
		return quote.PriceRecord{}, err
	}

	var resp tickerResponse
	if err := p.client.DoJSON(ctx, req, &resp); err != nil {
		if isUnknownSymbol(err) {
			return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonNotFound, err)
		}
		return quote.PriceRecord{}, fmt.Errorf("binance ticker: %w", err)
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonUpstream, err)
	}
	return quote.PriceRecord{
		Symbol:   symbol,
		Price:    price,
		Currency: currency,
		AsOf:     time.Now().UTC().Format("2006-01-02"),
		Source:   p.cfg.Name,
	}, nil
}

// FetchBulk grabs several tickers in one request using the symbols=[...]
// form. Unknown symbols fail the whole request on Binance's side, so this
// is only used for pairs already known to exist.
func (p *Provider) FetchBulk(ctx context.Context, symbols []string) (map[string]quote.PriceRecord, error) {
	if len(symbols) == 0 {
		return map[string]quote.PriceRecord{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	pairs := make([]string, 0, len(symbols))
	byPair := make(map[string]string, len(symbols))
	quoteOf := make(map[string]string, len(symbols))
	for _, s := range symbols {
		pr, qc := pair(s)
		pairs = append(pairs, strconv.Quote(pr))
		byPair[pr] = s
		quoteOf[s] = qc
	}

	u := p.cfg.Endpoint + "?symbols=" + url.QueryEscape("["+strings.Join(pairs, ",")+"]")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var resp []tickerResponse
	if err := p.client.DoJSON(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("binance bulk ticker: %w", err)
	}

	out := make(map[string]quote.PriceRecord, len(resp))
	today := time.Now().UTC().Format("2006-01-02")
	for _, t := range resp {
		sym, ok := byPair[t.Symbol]
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(t.Price, 64)
		if err != nil {
			continue
		}
		out[sym] = quote.PriceRecord{
			Symbol:   sym,
			Price:    price,
			Currency: quoteOf[sym],
			AsOf:     today,
			Source:   p.cfg.Name,
		}
	}
	return out, nil
}

// isUnknownSymbol detects Binance error -1121 ("Invalid symbol") inside a
// 400 response body.
func isUnknownSymbol(err error) bool {
	var se *httpx.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		return false
	}
	var ae apiError
	if json.Unmarshal([]byte(se.Body), &ae) != nil {
		return false
	}
	return ae.Code == -1121
}
