package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path over the defaults, loads .env when
// present, and applies OPTIPRICE_* overrides. An empty path skips the file.
// The result is not validated; call Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// A missing .env is fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides lets operators inject endpoints and secrets at deploy
// time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Matcher.BaseURL, "OPTIPRICE_MATCHER_BASE_URL")
	setDuration(&cfg.Matcher.ProbeTimeout, "OPTIPRICE_MATCHER_PROBE_TIMEOUT")

	setStr(&cfg.Store.Driver, "OPTIPRICE_STORE_DRIVER")
	setStr(&cfg.SQLite.Path, "OPTIPRICE_SQLITE_PATH")

	setStr(&cfg.Postgres.DSN, "OPTIPRICE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "OPTIPRICE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "OPTIPRICE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "OPTIPRICE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "OPTIPRICE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "OPTIPRICE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "OPTIPRICE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "OPTIPRICE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "OPTIPRICE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "OPTIPRICE_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "OPTIPRICE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OPTIPRICE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OPTIPRICE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "OPTIPRICE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "OPTIPRICE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "OPTIPRICE_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Prefix, "OPTIPRICE_REDIS_PREFIX")

	setBool(&cfg.S3.Enabled, "OPTIPRICE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "OPTIPRICE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "OPTIPRICE_S3_REGION")
	setStr(&cfg.S3.Bucket, "OPTIPRICE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "OPTIPRICE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "OPTIPRICE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "OPTIPRICE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "OPTIPRICE_S3_FORCE_PATH_STYLE")

	setInt(&cfg.Server.Port, "OPTIPRICE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "OPTIPRICE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "OPTIPRICE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "OPTIPRICE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "OPTIPRICE_SERVER_RATE_WINDOW")

	setStr(&cfg.Notify.TelegramToken, "OPTIPRICE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "OPTIPRICE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "OPTIPRICE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "OPTIPRICE_NOTIFY_EVENTS")

	setStr(&cfg.Mode, "OPTIPRICE_MODE")
	setStr(&cfg.LogLevel, "OPTIPRICE_LOG_LEVEL")
}

// Typed env helpers. Each only touches dst when the variable is set and
// parses; malformed values are ignored.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
