package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TAIBET_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TAIBET_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "TAIBET_SERVER_PORT")
	setInt(&cfg.Server.MetricsPort, "TAIBET_SERVER_METRICS_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TAIBET_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TAIBET_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMinute, "TAIBET_SERVER_RATE_LIMIT_PER_MINUTE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TAIBET_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TAIBET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TAIBET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TAIBET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TAIBET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TAIBET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TAIBET_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TAIBET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TAIBET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TAIBET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TAIBET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TAIBET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TAIBET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TAIBET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TAIBET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TAIBET_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TAIBET_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TAIBET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TAIBET_S3_REGION")
	setStr(&cfg.S3.Bucket, "TAIBET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TAIBET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TAIBET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TAIBET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TAIBET_S3_FORCE_PATH_STYLE")

	// ── TON ──
	setStr(&cfg.Ton.IndexerURL, "TAIBET_TON_INDEXER_URL")
	setStr(&cfg.Ton.APIKey, "TAIBET_TON_API_KEY")
	setStr(&cfg.Ton.DepositAddress, "TAIBET_TON_DEPOSIT_ADDRESS")
	setDuration(&cfg.Ton.PollInterval, "TAIBET_TON_POLL_INTERVAL")
	setInt(&cfg.Ton.MaxPollAttempts, "TAIBET_TON_MAX_POLL_ATTEMPTS")

	// ── Treasury ──
	setStr(&cfg.Treasury.RawSeed, "TAIBET_TREASURY_SEED")
	setStr(&cfg.Treasury.KeyPath, "TAIBET_TREASURY_KEY_PATH")
	setStr(&cfg.Treasury.KeyPassword, "TAIBET_TREASURY_KEY_PASSWORD")

	// ── Pricing ──
	setFloat64(&cfg.Pricing.MinOdds, "TAIBET_PRICING_MIN_ODDS")
	setFloat64(&cfg.Pricing.MaxOdds, "TAIBET_PRICING_MAX_ODDS")
	setFloat64(&cfg.Pricing.DefaultOdds, "TAIBET_PRICING_DEFAULT_ODDS")
	setFloat64(&cfg.Pricing.FeeRate, "TAIBET_PRICING_FEE_RATE")
	setFloat64(&cfg.Pricing.ImpactFeeCoefficient, "TAIBET_PRICING_IMPACT_FEE_COEFFICIENT")
	setFloat64(&cfg.Pricing.ImpactMinPool, "TAIBET_PRICING_IMPACT_MIN_POOL")
	setFloat64(&cfg.Pricing.ImpactMaxMultiplier, "TAIBET_PRICING_IMPACT_MAX_MULTIPLIER")
	setInt(&cfg.Pricing.MaxSettleRetries, "TAIBET_PRICING_MAX_SETTLE_RETRIES")

	// ── Sale ──
	setFloat64(&cfg.Sale.InitialPriceTON, "TAIBET_SALE_INITIAL_PRICE_TON")
	setFloat64(&cfg.Sale.BaseTAI, "TAIBET_SALE_BASE_TAI")
	setFloat64(&cfg.Sale.MaxTAI, "TAIBET_SALE_MAX_TAI")
	setFloat64(&cfg.Sale.TotalTAI, "TAIBET_SALE_TOTAL_TAI")
	setDuration(&cfg.Sale.SessionTTL, "TAIBET_SALE_SESSION_TTL")
	setFloat64(&cfg.Sale.AccelerateMax, "TAIBET_SALE_ACCELERATE_MAX")

	// ── Rain ──
	setFloat64(&cfg.Rain.AmountTAI, "TAIBET_RAIN_AMOUNT_TAI")
	setFloat64(&cfg.Rain.TicketPriceTON, "TAIBET_RAIN_TICKET_PRICE_TON")
	setFloat64(&cfg.Rain.MinBonusTAI, "TAIBET_RAIN_MIN_BONUS_TAI")
	setFloat64(&cfg.Rain.MaxBonusTAI, "TAIBET_RAIN_MAX_BONUS_TAI")
	setInt(&cfg.Rain.MaxParticipants, "TAIBET_RAIN_MAX_PARTICIPANTS")
	setDuration(&cfg.Rain.Duration, "TAIBET_RAIN_DURATION")

	// ── Jobs ──
	setStr(&cfg.Jobs.SaleCron, "TAIBET_JOBS_SALE_CRON")
	setStr(&cfg.Jobs.RainCron, "TAIBET_JOBS_RAIN_CRON")
	setStr(&cfg.Jobs.ArchiveCron, "TAIBET_JOBS_ARCHIVE_CRON")
	setInt(&cfg.Jobs.ArchiveRetentionDays, "TAIBET_JOBS_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Jobs.FeeRedriveCron, "TAIBET_JOBS_FEE_REDRIVE_CRON")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TAIBET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TAIBET_NOTIFY_TELEGRAM_CHAT_ID")
	setStringSlice(&cfg.Notify.Events, "TAIBET_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "TAIBET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
