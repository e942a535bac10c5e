package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Port              string `yaml:"port"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
}

type Cache struct {
	// Path of the SQLite file backing the durable tier. Empty disables it.
	Path string `yaml:"path"`
}

type Tushare struct {
	Enabled              bool   `yaml:"enabled"`
	Token                string `yaml:"token"`
	Endpoint             string `yaml:"endpoint"`
	MaxRequestsPerMinute int    `yaml:"max_requests_per_minute"`
	Burst                int    `yaml:"burst"`
}

type Eastmoney struct {
	Enabled       bool   `yaml:"enabled"`
	KlineEndpoint string `yaml:"kline_endpoint"`
	FundEndpoint  string `yaml:"fund_endpoint"`
}

type Yahoo struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

type Binance struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

type Resolver struct {
	BatchLimit        int `yaml:"batch_limit"`
	PerItemTimeoutSec int `yaml:"per_item_timeout_sec"`
}

type Sync struct {
	// Cron expressions with a seconds field, robfig/cron style.
	HoldingsSchedule  string `yaml:"holdings_schedule"`
	CatalogueSchedule string `yaml:"catalogue_schedule"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	Cache     Cache     `yaml:"cache"`
	Tushare   Tushare   `yaml:"tushare"`
	Eastmoney Eastmoney `yaml:"eastmoney"`
	Yahoo     Yahoo     `yaml:"yahoo"`
	Binance   Binance   `yaml:"binance"`
	Resolver  Resolver  `yaml:"resolver"`
	Sync      Sync      `yaml:"sync"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 30},
		Cache:  Cache{Path: "wert.db"},
		Tushare: Tushare{
			Enabled:              true,
			Endpoint:             "https://api.tushare.pro",
			MaxRequestsPerMinute: 60,
			Burst:                10,
		},
		Eastmoney: Eastmoney{Enabled: true},
		Yahoo:     Yahoo{Enabled: true},
		Binance:   Binance{Enabled: true},
		Resolver:  Resolver{BatchLimit: 4, PerItemTimeoutSec: 10},
		Sync: Sync{
			// weekdays at 15:10 Beijing time, right after the CN close
			HoldingsSchedule: "0 10 15 * * MON-FRI",
			// nightly catalogue refresh
			CatalogueSchedule: "0 0 2 * * *",
		},
	}
}

// Load reads YAML config from path. If path is empty or the file does not
// exist, it returns defaults. Environment variables override select fields
// for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must not be empty")
	}
	if c.Resolver.BatchLimit <= 0 {
		return fmt.Errorf("resolver.batch_limit must be positive")
	}
	if c.Resolver.PerItemTimeoutSec <= 0 {
		return fmt.Errorf("resolver.per_item_timeout_sec must be positive")
	}
	if c.Tushare.Enabled && c.Tushare.Token == "" {
		return fmt.Errorf("tushare.token required when tushare is enabled")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
	if v := os.Getenv("TUSHARE_TOKEN"); v != "" {
		cfg.Tushare.Token = v
	}
	if v := os.Getenv("TUSHARE_ENDPOINT"); v != "" {
		cfg.Tushare.Endpoint = v
	}
	if v := os.Getenv("TUSHARE_ENABLED"); v != "" {
		cfg.Tushare.Enabled = parseBool(v, cfg.Tushare.Enabled)
	}
	if v := os.Getenv("TUSHARE_MAX_RPM"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Tushare.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("EASTMONEY_ENABLED"); v != "" {
		cfg.Eastmoney.Enabled = parseBool(v, cfg.Eastmoney.Enabled)
	}
	if v := os.Getenv("YAHOO_ENABLED"); v != "" {
		cfg.Yahoo.Enabled = parseBool(v, cfg.Yahoo.Enabled)
	}
	if v := os.Getenv("BINANCE_ENABLED"); v != "" {
		cfg.Binance.Enabled = parseBool(v, cfg.Binance.Enabled)
	}
	if v := os.Getenv("BATCH_LIMIT"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Resolver.BatchLimit = x
		}
	}
	if v := os.Getenv("HOLDINGS_SCHEDULE"); v != "" {
		cfg.Sync.HoldingsSchedule = v
	}
	if v := os.Getenv("CATALOGUE_SCHEDULE"); v != "" {
		cfg.Sync.CatalogueSchedule = v
	}
}

func parseBool(v string, fallback bool) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	}
	return fallback
}
