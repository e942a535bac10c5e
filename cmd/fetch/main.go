// Command fetch resolves prices for a set of symbols once and prints them as
// JSON, bypassing the HTTP server. Useful for smoke-testing provider setup.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gary-Shen/wert-sub000/internal/cache"
	"github.com/gary-Shen/wert-sub000/internal/config"
	"github.com/gary-Shen/wert-sub000/internal/httpx"
	"github.com/gary-Shen/wert-sub000/internal/market"
	"github.com/gary-Shen/wert-sub000/internal/provider"
	"github.com/gary-Shen/wert-sub000/internal/provider/binance"
	"github.com/gary-Shen/wert-sub000/internal/provider/eastmoney"
	"github.com/gary-Shen/wert-sub000/internal/provider/tushare"
	"github.com/gary-Shen/wert-sub000/internal/provider/yahoo"
	"github.com/gary-Shen/wert-sub000/internal/quote"
	"github.com/gary-Shen/wert-sub000/internal/resolver"
)

func main() {
	var symbolsCSV string
	var configPath string
	var timeout int
	var verbose bool

	flag.StringVar(&symbolsCSV, "symbols", os.Getenv("SYMBOLS"), "comma-separated symbols (e.g. 600519,110011,0700.HK,BTC)")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yaml (optional)")
	flag.IntVar(&timeout, "timeout", 30, "overall timeout seconds")
	flag.BoolVar(&verbose, "v", false, "log provider activity")
	flag.Parse()

	symbols := splitCSV(symbolsCSV)
	if len(symbols) == 0 {
		fmt.Fprintln(os.Stderr, "no symbols provided; use -symbols 600519,0700.HK")
		os.Exit(2)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if verbose {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	var providers []provider.Provider
	if cfg.Tushare.Enabled {
		providers = append(providers, tushare.New(tushare.Config{
			Endpoint:             cfg.Tushare.Endpoint,
			Token:                cfg.Tushare.Token,
			MaxRequestsPerMinute: cfg.Tushare.MaxRequestsPerMinute,
			Burst:                cfg.Tushare.Burst,
		}, httpClient))
	}
	if cfg.Eastmoney.Enabled {
		providers = append(providers, eastmoney.New(eastmoney.Config{
			KlineEndpoint: cfg.Eastmoney.KlineEndpoint,
			FundEndpoint:  cfg.Eastmoney.FundEndpoint,
		}, httpClient))
	}
	if cfg.Yahoo.Enabled {
		providers = append(providers, yahoo.New(yahoo.Config{Endpoint: cfg.Yahoo.Endpoint}, httpClient))
	}
	if cfg.Binance.Enabled {
		providers = append(providers, binance.New(binance.Config{Endpoint: cfg.Binance.Endpoint}, httpClient))
	}
	if len(providers) == 0 {
		fmt.Fprintln(os.Stderr, "no providers enabled")
		os.Exit(1)
	}

	svc := resolver.New(resolver.Options{
		Registry:  market.NewRegistry(market.Defaults()...),
		Providers: providers,
		Cache:     cache.NewTiered(nil, nil, log),
		Log:       log,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	type line struct {
		Record *quote.PriceRecord `json:"record,omitempty"`
		Error  string             `json:"error,omitempty"`
	}
	out := make(map[string]line, len(symbols))
	failed := false
	for raw, res := range svc.ResolveMany(ctx, symbols) {
		if res.Err != nil {
			out[raw] = line{Error: res.Err.Error()}
			failed = true
			continue
		}
		rec := res.Record
		out[raw] = line{Record: &rec}
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
	if failed {
		os.Exit(1)
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
