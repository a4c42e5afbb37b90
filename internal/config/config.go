// Package config defines all configuration for the signal scanner.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via SCANNER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Macro   MacroConfig   `mapstructure:"macro"`
	Scanner ScannerConfig `mapstructure:"scanner"`
	Store   StoreConfig   `mapstructure:"store"`
	Learner LearnerConfig `mapstructure:"learner"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig holds the prediction-exchange endpoints. Defaults match the
// production exchange (Gamma catalog + CLOB data API).
type APIConfig struct {
	GammaBaseURL string `mapstructure:"gamma_base_url"`
	CLOBBaseURL  string `mapstructure:"clob_base_url"`
	SeriesID     string `mapstructure:"series_id"` // optional catalog filter
}

// MacroConfig points at the macro price source (Binance-style klines + an
// optional trade stream used read-last-price only).
type MacroConfig struct {
	Symbol          string        `mapstructure:"symbol"` // e.g. "BTCUSDT"
	RESTBaseURL     string        `mapstructure:"rest_base_url"`
	WSURL           string        `mapstructure:"ws_url"` // empty disables streaming
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// HorizonConfig sets the indicator horizon H (minutes) per market class.
// Short-dated crypto markets use HorizonCryptoShort; crypto markets whose
// settlement is further out than CryptoShortMaxMin use HorizonCryptoLong;
// everything else (non-crypto CLOB markets) uses HorizonDefault.
type HorizonConfig struct {
	CryptoShort       float64 `mapstructure:"crypto_short"`
	CryptoLong        float64 `mapstructure:"crypto_long"`
	Default           float64 `mapstructure:"default"`
	CryptoShortMaxMin float64 `mapstructure:"crypto_short_max_minutes"`
}

// ScannerConfig controls discovery, poll cadence and decision thresholds.
type ScannerConfig struct {
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	StaggerDelay      time.Duration `mapstructure:"stagger_delay"`
	MaxMarkets        int           `mapstructure:"max_markets"`
	MinLiquidity      float64       `mapstructure:"min_liquidity"`
	Categories        []string      `mapstructure:"categories"` // allow-list; empty = all
	DiscoveryCycles   int           `mapstructure:"discovery_cycles"` // re-discover every N cycles
	BaseEdgeThreshold float64       `mapstructure:"base_edge_threshold"`
	Horizons          HorizonConfig `mapstructure:"horizons"`
}

// StoreConfig sets where signals are persisted and how outcomes are resolved.
// An empty DatabaseURL selects the in-memory store (useful for dry runs).
type StoreConfig struct {
	DatabaseURL     string        `mapstructure:"database_url"`
	ResolveInterval time.Duration `mapstructure:"resolve_interval"`
	RetentionDays   int           `mapstructure:"retention_days"`
}

// LearnerConfig controls the weight-learning feedback loop.
type LearnerConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	MinSettled      int           `mapstructure:"min_settled"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	MetricsAddr string `mapstructure:"metrics_addr"` // empty disables /metrics
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: SCANNER_DATABASE_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("SCANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if dsn := os.Getenv("SCANNER_DATABASE_URL"); dsn != "" {
		cfg.Store.DatabaseURL = dsn
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.gamma_base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("api.clob_base_url", "https://clob.polymarket.com")

	v.SetDefault("macro.symbol", "BTCUSDT")
	v.SetDefault("macro.rest_base_url", "https://api.binance.com")
	v.SetDefault("macro.refresh_interval", 15*time.Second)

	v.SetDefault("scanner.poll_interval", 30*time.Second)
	v.SetDefault("scanner.stagger_delay", 200*time.Millisecond)
	v.SetDefault("scanner.max_markets", 25)
	v.SetDefault("scanner.min_liquidity", 1000.0)
	v.SetDefault("scanner.discovery_cycles", 10)
	v.SetDefault("scanner.base_edge_threshold", 0.05)
	v.SetDefault("scanner.horizons.crypto_short", 15.0)
	v.SetDefault("scanner.horizons.crypto_long", 60.0)
	v.SetDefault("scanner.horizons.default", 240.0)
	v.SetDefault("scanner.horizons.crypto_short_max_minutes", 90.0)

	v.SetDefault("store.resolve_interval", 2*time.Minute)
	v.SetDefault("store.retention_days", 90)

	v.SetDefault("learner.refresh_interval", 10*time.Minute)
	v.SetDefault("learner.min_settled", 50)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.metrics_addr", ":9402")
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.API.GammaBaseURL == "" {
		return fmt.Errorf("api.gamma_base_url is required")
	}
	if c.API.CLOBBaseURL == "" {
		return fmt.Errorf("api.clob_base_url is required")
	}
	if c.Macro.Symbol == "" {
		return fmt.Errorf("macro.symbol is required")
	}
	if c.Scanner.PollInterval <= 0 {
		return fmt.Errorf("scanner.poll_interval must be > 0")
	}
	if c.Scanner.MaxMarkets <= 0 {
		return fmt.Errorf("scanner.max_markets must be > 0")
	}
	if c.Scanner.BaseEdgeThreshold <= 0 || c.Scanner.BaseEdgeThreshold >= 1 {
		return fmt.Errorf("scanner.base_edge_threshold must be in (0, 1)")
	}
	if c.Scanner.Horizons.CryptoShort <= 0 || c.Scanner.Horizons.CryptoLong <= 0 || c.Scanner.Horizons.Default <= 0 {
		return fmt.Errorf("scanner.horizons must all be > 0")
	}
	if c.Store.RetentionDays <= 0 {
		return fmt.Errorf("store.retention_days must be > 0")
	}
	if c.Learner.MinSettled <= 0 {
		return fmt.Errorf("learner.min_settled must be > 0")
	}
	return nil
}
