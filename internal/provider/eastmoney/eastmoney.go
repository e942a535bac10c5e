// Package eastmoney scrapes Eastmoney's public quote endpoints. No token is
// required, which makes it the fallback of choice when Tushare is metered
// out, at the cost of less formal stability guarantees.
package eastmoney

import (
	"context"
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
	defaultKlineEndpoint = "https://push2his.eastmoney.com/api/qt/stock/kline/get"
	defaultFundEndpoint  = "https://api.fund.eastmoney.com/f10/lsjz"
	fetchTimeout         = 10 * time.Second
)

type Config struct {
	Name          string
	KlineEndpoint string
	FundEndpoint  string
}

type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "eastmoney"
	}
	if cfg.KlineEndpoint == "" {
		cfg.KlineEndpoint = defaultKlineEndpoint
	}
	if cfg.FundEndpoint == "" {
		cfg.FundEndpoint = defaultFundEndpoint
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Fetch(ctx context.Context, symbol string) (quote.PriceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	if strings.HasSuffix(symbol, ".OF") {
		return p.fetchFund(ctx, symbol)
	}
	return p.fetchKline(ctx, symbol)
}

// secID maps a canonical symbol onto Eastmoney's market-prefixed id:
// 1 is Shanghai, 0 Shenzhen and Beijing, 116 Hong Kong.
func secID(symbol string) (string, string, error) {
	switch {
	case strings.HasSuffix(symbol, ".CN"):
		code := strings.TrimSuffix(symbol, ".CN")
		if code[0] == '6' {
			return "1." + code, "CNY", nil
		}
		return "0." + code, "CNY", nil
	case strings.HasSuffix(symbol, ".HK"):
		code := strings.TrimSuffix(symbol, ".HK")
		// Eastmoney wants 5-digit HK codes.
		for len(code) < 5 {
			code = "0" + code
		}
		return "116." + code, "HKD", nil
	default:
		return "", "", fmt.Errorf("eastmoney: unsupported symbol %q", symbol)
	}
}

type klineResponse struct {
	Data *struct {
		Klines []string `json:"klines"`
	} `json:"data"`
}

func (p *Provider) fetchKline(ctx context.Context, symbol string) (quote.PriceRecord, error) {
	sid, currency, err := secID(symbol)
	if err != nil {
		return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonNotFound, err)
	}

	q := url.Values{}
	q.Set("secid", sid)
	q.Set("klt", "101") // daily bars
	q.Set("fqt", "1")
	q.Set("fields1", "f1,f2,f3")
	q.Set("fields2", "f51,f53") // date, close
	q.Set("lmt", "1")
	q.Set("end", "20500101")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.KlineEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return quote.PriceRecord{}, err
	}

	var resp klineResponse
	if err := p.client.DoJSON(ctx, req, &resp); err != nil {
		return quote.PriceRecord{}, fmt.Errorf("eastmoney kline: %w", err)
	}
	if resp.Data == nil || len(resp.Data.Klines) == 0 {
		return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonNotFound, fmt.Errorf("eastmoney: no klines"))
	}

	last := resp.Data.Klines[len(resp.Data.Klines)-1]
	date, closeStr, ok := strings.Cut(last, ",")
	if !ok {
		return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonUpstream, fmt.Errorf("eastmoney: malformed kline %q", last))
	}
	price, err := strconv.ParseFloat(closeStr, 64)
	if err != nil {
		return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonUpstream, err)
	}
	return quote.PriceRecord{
		Symbol:   symbol,
		Price:    price,
		Currency: currency,
		AsOf:     date,
		Source:   p.cfg.Name,
	}, nil
}

type fundResponse struct {
	Data struct {
		LSJZList []struct {
			FSRQ string `json:"FSRQ"` // nav date
			DWJZ string `json:"DWJZ"` // unit nav
		} `json:"LSJZList"`
	} `json:"Data"`
}

func (p *Provider) fetchFund(ctx context.Context, symbol string) (quote.PriceRecord, error) {
	code := strings.TrimSuffix(symbol, ".OF")

	q := url.Values{}
	q.Set("fundCode", code)
	q.Set("pageIndex", "1")
	q.Set("pageSize", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.FundEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return quote.PriceRecord{}, err
	}
	// The fund endpoint rejects requests without a fund.eastmoney.com referer.
	req.Header.Set("Referer", "https://fundf10.eastmoney.com/")

	var resp fundResponse
	if err := p.client.DoJSON(ctx, req, &resp); err != nil {
		return quote.PriceRecord{}, fmt.Errorf("eastmoney fund: %w", err)
	}
	if len(resp.Data.LSJZList) == 0 {
		return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonNotFound, fmt.Errorf("eastmoney: no nav rows"))
	}

	nav, err := strconv.ParseFloat(resp.Data.LSJZList[0].DWJZ, 64)
	if err != nil {
		return quote.PriceRecord{}, quote.NewError(symbol, quote.ReasonUpstream, err)
	}
	return quote.PriceRecord{
		Symbol:   symbol,
		Price:    nav,
		Currency: "CNY",
		AsOf:     resp.Data.LSJZList[0].FSRQ,
		Source:   p.cfg.Name,
	}, nil
}
