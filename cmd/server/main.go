package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/gary-Shen/wert-sub000/internal/cache"
	"github.com/gary-Shen/wert-sub000/internal/cache/sqlitecache"
	"github.com/gary-Shen/wert-sub000/internal/config"
	"github.com/gary-Shen/wert-sub000/internal/httpx"
	"github.com/gary-Shen/wert-sub000/internal/market"
	"github.com/gary-Shen/wert-sub000/internal/metrics"
	"github.com/gary-Shen/wert-sub000/internal/provider"
	"github.com/gary-Shen/wert-sub000/internal/provider/binance"
	"github.com/gary-Shen/wert-sub000/internal/provider/eastmoney"
	"github.com/gary-Shen/wert-sub000/internal/provider/health"
	"github.com/gary-Shen/wert-sub000/internal/provider/tushare"
	"github.com/gary-Shen/wert-sub000/internal/provider/yahoo"
	"github.com/gary-Shen/wert-sub000/internal/resolver"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Error("config", "err", err)
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

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var store *sqlitecache.Cache
	if cfg.Cache.Path != "" {
		store, err = sqlitecache.Open(cfg.Cache.Path)
		if err != nil {
			log.Error("open durable cache", "path", cfg.Cache.Path, "err", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	opts := resolver.Options{
		Registry:       market.NewRegistry(market.Defaults()...),
		Providers:      providers,
		Health:         health.NewTracker(health.DefaultThreshold),
		Metrics:        metrics.New(reg),
		Log:            log,
		BatchLimit:     cfg.Resolver.BatchLimit,
		PerItemTimeout: time.Duration(cfg.Resolver.PerItemTimeoutSec) * time.Second,
	}
	if store != nil {
		opts.Cache = cache.NewTiered(store, cache.NewFreshnessPolicy(), log)
		opts.Holdings = store
		opts.Catalogue = store
		opts.Dim = store
	} else {
		opts.Cache = cache.NewTiered(nil, cache.NewFreshnessPolicy(), log)
	}
	svc := resolver.New(opts)

	srv := &server{svc: svc, log: log}
	if store != nil {
		srv.dim = store
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv.routes(mux)

	scheduler := cron.New(cron.WithSeconds())
	if store != nil {
		if _, err := scheduler.AddFunc(cfg.Sync.HoldingsSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if _, err := svc.SyncHeldSymbols(ctx); err != nil {
				log.Error("scheduled holdings sync", "err", err)
			}
		}); err != nil {
			log.Error("holdings schedule", "expr", cfg.Sync.HoldingsSchedule, "err", err)
			os.Exit(1)
		}
		if _, err := scheduler.AddFunc(cfg.Sync.CatalogueSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()
			if _, err := svc.SyncCatalogue(ctx); err != nil {
				log.Error("scheduled catalogue sync", "err", err)
			}
		}); err != nil {
			log.Error("catalogue schedule", "expr", cfg.Sync.CatalogueSchedule, "err", err)
			os.Exit(1)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(recoverPanic(limitBody(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server listening", "port", cfg.Server.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
