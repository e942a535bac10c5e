// Package tushare fetches CN equity closes and fund NAVs from the Tushare
// Pro HTTP API. It is the priority-1 source for both CN markets: data
// quality is high but the API is token-gated and metered per endpoint.
package tushare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gary-Shen/wert-sub000/internal/httpx"
	"github.com/gary-Shen/wert-sub000/internal/provider/ratelimit"
	"github.com/gary-Shen/wert-sub000/internal/quote"
)

const (
	defaultEndpoint = "https://api.tushare.pro"
	fetchTimeout    = 10 * time.Second
)

type Config struct {
	Name     string
	Endpoint string
	Token    string
	// MaxRequestsPerMinute meters each Tushare api_name separately, matching
	// how Tushare enforces quotas. 0 disables the limiter.
	MaxRequestsPerMinute int
	Burst                int
}

type Provider struct {
	cfg    Config
	client *httpx.Client
	limits *ratelimit.PerKey
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "tushare"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	return &Provider{cfg: cfg, client: hc, limits: ratelimit.NewPerKey(cfg.MaxRequestsPerMinute, cfg.Burst)}
}

func (p *Provider) Name() string { return p.cfg.Name }

// Fetch resolves a canonical CN symbol: NNNNNN.OF goes to fund_nav, NNNNNN.CN
// to daily with the exchange suffix re-derived from the leading digit.
func (p *Provider) Fetch(ctx context.Context, symbol string) (quote.PriceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	if strings.HasSuffix(symbol, ".OF") {
		return p.fetchFund(ctx, symbol)
	}
	return p.fetchStock(ctx, symbol)
}

// tsCode converts "600519.CN" to Tushare's exchange-qualified "600519.SH".
// The canonical form deliberately drops the exchange, so it is re-derived
// here: 6 is Shanghai, 4 and 8 are Beijing, the rest Shenzhen. The inverse
// conversion (strip the exchange, append .CN) reproduces the canonical
// symbol.
func tsCode(symbol string) string {
	code := strings.TrimSuffix(symbol, ".CN")
	switch code[0] {
	case '6':
		return code + ".SH"
	case '4', '8':
		return code + ".BJ"
	default:
		return code + ".SZ"
	}
}

func (p *Provider) fetchStock(ctx context.Context, symbol string) (quote.PriceRecord, error) {
	rows, err := p.call(ctx, "daily",
		map[string]string{"ts_code": tsCode(symbol)},
		"trade_date,close")
	if err != nil {
		return quote.PriceRecord{}, err
	}
	if len(rows) == 0 {
		return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonNotFound, fmt.Errorf("tushare: no daily rows"))
	}
	// daily returns newest first
	price, err := rows[0].float("close")
	if err != nil {
		return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonUpstream, err)
	}
	return quote.PriceRecord{
		Symbol:   symbol,
		Price:    price,
		Currency: "CNY",
		AsOf:     formatDate(rows[0].str("trade_date")),
		Source:   p.cfg.Name,
	}, nil
}

func (p *Provider) fetchFund(ctx context.Context, symbol string) (quote.PriceRecord, error) {
	rows, err := p.call(ctx, "fund_nav",
		map[string]string{"ts_code": symbol},
		"nav_date,unit_nav")
	if err != nil {
		return quote.PriceRecord{}, err
	}
	if len(rows) == 0 {
		return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonNotFound, fmt.Errorf("tushare: no nav rows"))
	}
	nav, err := rows[0].float("unit_nav")
	if err != nil {
		return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonUpstream, err)
	}
	return quote.PriceRecord{
		Symbol:   symbol,
		Price:    nav,
		Currency: "CNY",
		AsOf:     formatDate(rows[0].str("nav_date")),
		Source:   p.cfg.Name,
	}, nil
}

// FetchCatalogue lists CN equities and open funds with canonical symbols.
func (p *Provider) FetchCatalogue(ctx context.Context) ([]quote.Instrument, error) {
	stocks, err := p.call(ctx, "stock_basic",
		map[string]string{"list_status": "L"},
		"ts_code,name")
	if err != nil {
		return nil, err
	}
	funds, err := p.call(ctx, "fund_basic",
		map[string]string{"status": "L"},
		"ts_code,name")
	if err != nil {
		return nil, err
	}

	out := make([]quote.Instrument, 0, len(stocks)+len(funds))
	for _, r := range stocks {
		code, _, ok := strings.Cut(r.str("ts_code"), ".")
		if !ok {
			continue
		}
		out = append(out, quote.Instrument{Symbol: code + ".CN", Name: r.str("name"), AssetType: "STOCK"})
	}
	for _, r := range funds {
		code, _, ok := strings.Cut(r.str("ts_code"), ".")
		if !ok {
			continue
		}
		out = append(out, quote.Instrument{Symbol: code + ".OF", Name: r.str("name"), AssetType: "FUND"})
	}
	return out, nil
}

// apiRequest is the uniform Tushare Pro envelope.
type apiRequest struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields"`
}

type apiResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Fields []string `json:"fields"`
		Items  [][]any  `json:"items"`
	} `json:"data"`
}

// row is one positional item indexed by the response field list.
type row struct {
	fields map[string]int
	vals   []any
}

func (r row) str(field string) string {
	i, ok := r.fields[field]
	if !ok || i >= len(r.vals) {
		return ""
	}
	s, _ := r.vals[i].(string)
	return s
}

func (r row) float(field string) (float64, error) {
	i, ok := r.fields[field]
	if !ok || i >= len(r.vals) {
		return 0, fmt.Errorf("missing field %q", field)
	}
	switch v := r.vals[i].(type) {
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("field %q has type %T", field, v)
	}
}

func (p *Provider) call(ctx context.Context, apiName string, params map[string]string, fields string) ([]row, error) {
	if err := p.limits.Wait(ctx, apiName); err != nil {
		return nil, err
	}

	body, err := json.Marshal(apiRequest{APIName: apiName, Token: p.cfg.Token, Params: params, Fields: fields})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp apiResponse
	if err := p.client.DoJSON(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("tushare %s: %w", apiName, err)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("tushare %s: api error %d: %s", apiName, resp.Code, resp.Msg)
	}

	idx := make(map[string]int, len(resp.Data.Fields))
	for i, f := range resp.Data.Fields {
		idx[f] = i
	}
	rows := make([]row, 0, len(resp.Data.Items))
	for _, item := range resp.Data.Items {
		rows = append(rows, row{fields: idx, vals: item})
	}
	return rows, nil
}

// formatDate turns Tushare's 20260828 into 2026-08-28. Already-dashed dates
// pass through.
func formatDate(d string) string {
	if len(d) == 8 && !strings.ContainsRune(d, '-') {
		return d[:4] + "-" + d[4:6] + "-" + d[6:]
	}
	return d
}
