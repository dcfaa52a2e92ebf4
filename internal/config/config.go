// Package config defines the OptiPrice configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

// Config is the root configuration. Fields come from a TOML file and are then
// optionally overridden by OPTIPRICE_* environment variables.
type Config struct {
	Matcher   MatcherConfig   `toml:"matcher"`
	Store     StoreConfig     `toml:"store"`
	SQLite    SQLiteConfig    `toml:"sqlite"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Discovery DiscoveryConfig `toml:"discovery"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// MatcherConfig points at the external competitor-matching service.
type MatcherConfig struct {
	BaseURL      string   `toml:"base_url"`
	ProbeTimeout duration `toml:"probe_timeout"`
}

// StoreConfig selects the product store backend: "sqlite" or "postgres".
type StoreConfig struct {
	Driver string `toml:"driver"`
}

// SQLiteConfig holds the embedded database location.
type SQLiteConfig struct {
	Path string `toml:"path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	Prefix     string `toml:"prefix"`
}

// S3Config holds the session archive bucket. Archiving is off unless Enabled.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey enables X-API-Key auth on /api when set.
	APIKey string `toml:"api_key"`
	// RateLimit is requests per RateWindow per client; 0 disables limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// DiscoveryConfig tunes the simulated playback. StepDelays holds one entry
// per scripted line; empty keeps the stock timings.
type DiscoveryConfig struct {
	StepDelays  []duration `toml:"step_delays"`
	ResultDelay duration   `toml:"result_delay"`
}

// Delays returns the step delays followed by the result delay, or nil when
// no override is configured.
func (d DiscoveryConfig) Delays() []time.Duration {
	if len(d.StepDelays) == 0 {
		return nil
	}
	out := make([]time.Duration, 0, len(d.StepDelays)+1)
	for _, s := range d.StepDelays {
		out = append(out, s.Duration)
	}
	return append(out, d.ResultDelay.Duration)
}

// CatalogConfig holds the products seeded into an empty store.
type CatalogConfig struct {
	CacheTTL duration      `toml:"cache_ttl"`
	Products []ProductSeed `toml:"products"`
}

// ProductSeed is one catalog entry.
type ProductSeed struct {
	ID              string  `toml:"id"`
	Name            string  `toml:"name"`
	Category        string  `toml:"category"`
	Cost            float64 `toml:"cost"`
	Price           float64 `toml:"price"`
	CompetitorPrice float64 `toml:"competitor_price"`
	Elasticity      float64 `toml:"elasticity"`
	BaselineVolume  float64 `toml:"baseline_volume"`
	Stock           int64   `toml:"stock"`
}

// Product converts the seed into a domain product.
func (s ProductSeed) Product() domain.Product {
	return domain.Product{
		ID:              s.ID,
		Name:            s.Name,
		Category:        s.Category,
		Cost:            s.Cost,
		Price:           s.Price,
		CompetitorPrice: s.CompetitorPrice,
		Elasticity:      s.Elasticity,
		BaselineVolume:  s.BaselineVolume,
		Stock:           s.Stock,
	}
}

// SeedProducts returns the catalog as domain products.
func (c CatalogConfig) SeedProducts() []domain.Product {
	out := make([]domain.Product, len(c.Products))
	for i, s := range c.Products {
		out[i] = s.Product()
	}
	return out
}

// duration wraps time.Duration so TOML strings like "800ms" decode.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration. config.example.toml documents
// every field.
func Defaults() Config {
	return Config{
		Matcher: MatcherConfig{
			BaseURL:      "http://localhost:5000",
			ProbeTimeout: duration{2 * time.Second},
		},
		Store:  StoreConfig{Driver: "sqlite"},
		SQLite: SQLiteConfig{Path: "data/optiprice.db"},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "optiprice",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			Prefix:     "optiprice:",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "optiprice-sessions",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"competitor_matched", "discovery_fallback"},
		},
		Catalog: CatalogConfig{
			CacheTTL: duration{5 * time.Minute},
			Products: []ProductSeed{
				{ID: "p-001", Name: "Bodenstuhl floor chair", Category: "Living", Cost: 50, Price: 100, CompetitorPrice: 59.99, Elasticity: -2, BaselineVolume: 500, Stock: 310},
				{ID: "p-002", Name: "Ergonomic office chair", Category: "Office", Cost: 95, Price: 189, CompetitorPrice: 199, Elasticity: -1.2, BaselineVolume: 150, Stock: 85},
				{ID: "p-003", Name: "Bamboo standing desk", Category: "Office", Cost: 210, Price: 379, CompetitorPrice: 349, Elasticity: -1.5, BaselineVolume: 60, Stock: 40},
				{ID: "p-004", Name: "Memory foam seat cushion", Category: "Accessories", Cost: 8.5, Price: 24.99, CompetitorPrice: 22.49, Elasticity: -2.4, BaselineVolume: 900, Stock: 1200},
				{ID: "p-005", Name: "LED desk lamp", Category: "Lighting", Cost: 14, Price: 39.9, CompetitorPrice: 42, Elasticity: -0.9, BaselineVolume: 300, Stock: 500},
			},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server":   true,
	"discover": true,
}

var validDrivers = map[string]bool{
	"sqlite":   true,
	"postgres": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks c and returns one error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, discover)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if strings.TrimSpace(c.Matcher.BaseURL) == "" {
		errs = append(errs, "matcher: base_url must not be empty")
	}
	if c.Matcher.ProbeTimeout.Duration < 0 {
		errs = append(errs, "matcher: probe_timeout must not be negative")
	}

	if !validDrivers[strings.ToLower(c.Store.Driver)] {
		errs = append(errs, fmt.Sprintf("store: unknown driver %q (valid: sqlite, postgres)", c.Store.Driver))
	}
	switch strings.ToLower(c.Store.Driver) {
	case "sqlite":
		if c.SQLite.Path == "" {
			errs = append(errs, "sqlite: path must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty when enabled")
	}
	if c.S3.Enabled && c.S3.Region == "" {
		errs = append(errs, "s3: region must not be empty when enabled")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
		errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
	}

	if n := len(c.Discovery.StepDelays); n > 0 {
		prev := time.Duration(0)
		for i, d := range c.Discovery.StepDelays {
			if d.Duration < prev {
				errs = append(errs, fmt.Sprintf("discovery: step_delays[%d] is earlier than the step before it", i))
			}
			prev = d.Duration
		}
		if c.Discovery.ResultDelay.Duration < prev {
			errs = append(errs, "discovery: result_delay must not precede the last step")
		}
	}

	seen := make(map[string]bool, len(c.Catalog.Products))
	for i, p := range c.Catalog.Products {
		if p.ID == "" {
			errs = append(errs, fmt.Sprintf("catalog: products[%d] has no id", i))
			continue
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Sprintf("catalog: duplicate product id %q", p.ID))
		}
		seen[p.ID] = true
		if p.Cost < 0 {
			errs = append(errs, fmt.Sprintf("catalog: product %q has negative cost", p.ID))
		}
		if p.BaselineVolume < 0 || p.Stock < 0 {
			errs = append(errs, fmt.Sprintf("catalog: product %q has negative volume or stock", p.ID))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
