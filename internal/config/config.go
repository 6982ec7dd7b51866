// Package config defines the taibet service configuration and provides
// validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TAIBET_* environment variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Ton      TonConfig      `toml:"ton"`
	Treasury TreasuryConfig `toml:"treasury"`
	Pricing  PricingConfig  `toml:"pricing"`
	Sale     SaleConfig     `toml:"sale"`
	Rain     RainConfig     `toml:"rain"`
	Jobs     JobsConfig     `toml:"jobs"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port               int      `toml:"port"`
	MetricsPort        int      `toml:"metrics_port"` // 0 disables the metrics listener
	CORSOrigins        []string `toml:"cors_origins"`
	APIKey             string   `toml:"api_key"`              // empty disables authentication
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"` // 0 disables rate limiting
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
}

// S3Config holds S3-compatible cold-storage parameters.
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

// TonConfig holds the TON indexer endpoint and payment-polling parameters.
type TonConfig struct {
	IndexerURL      string   `toml:"indexer_url"`
	APIKey          string   `toml:"api_key"`
	DepositAddress  string   `toml:"deposit_address"`
	PollInterval    duration `toml:"poll_interval"`
	MaxPollAttempts int      `toml:"max_poll_attempts"`
}

// TreasuryConfig locates the ed25519 voucher key used to authorize payout
// amounts. The key file is encrypted at rest; see internal/crypto.
type TreasuryConfig struct {
	// RawSeed is the hex-encoded ed25519 seed, injected via environment in
	// development. Production deployments use the encrypted key file instead.
	RawSeed     string `toml:"-"`
	KeyPath     string `toml:"key_path"`
	KeyPassword string `toml:"key_password"`
}

// PricingConfig exposes the odds/impact/fee constants as tunables.
type PricingConfig struct {
	MinOdds              float64 `toml:"min_odds"`
	MaxOdds              float64 `toml:"max_odds"`
	DefaultOdds          float64 `toml:"default_odds"`
	MinAbsolutePool      float64 `toml:"min_absolute_pool"`
	MinPoolRatio         float64 `toml:"min_pool_ratio"`
	SideCapRatio         float64 `toml:"side_cap_ratio"`
	OtherFloorRatio      float64 `toml:"other_floor_ratio"`
	FeeRate              float64 `toml:"fee_rate"`
	ImpactFeeCoefficient float64 `toml:"impact_fee_coefficient"`
	ImpactMinPool        float64 `toml:"impact_min_pool"`
	ImpactMaxMultiplier  float64 `toml:"impact_max_multiplier"`
	MaxSettleRetries     int     `toml:"max_settle_retries"`
}

// SaleConfig drives the daily subsidized token sale.
type SaleConfig struct {
	InitialPriceTON float64  `toml:"initial_price_ton"`
	BaseTAI         float64  `toml:"base_tai"`
	MaxTAI          float64  `toml:"max_tai"`
	TotalTAI        float64  `toml:"total_tai"`
	SessionTTL      duration `toml:"session_ttl"`
	AccelerateMax   float64  `toml:"accelerate_max"` // top of the random multiplier range
}

// RainConfig bounds scheduled rain drops.
type RainConfig struct {
	AmountTAI       float64  `toml:"amount_tai"`
	TicketPriceTON  float64  `toml:"ticket_price_ton"`
	MinBonusTAI     float64  `toml:"min_bonus_tai"`
	MaxBonusTAI     float64  `toml:"max_bonus_tai"`
	MaxParticipants int      `toml:"max_participants"`
	Duration        duration `toml:"duration"`
}

// JobsConfig holds cron schedules for the periodic jobs. Expressions use the
// standard 5-field format "minute hour day-of-month month day-of-week".
type JobsConfig struct {
	SaleCron             string `toml:"sale_cron"`
	RainCron             string `toml:"rain_cron"`
	ArchiveCron          string `toml:"archive_cron"`
	ArchiveRetentionDays int    `toml:"archive_retention_days"`
	FeeRedriveCron       string `toml:"fee_redrive_cron"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	Events         []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:               8000,
			MetricsPort:        9100,
			CORSOrigins:        []string{"http://localhost:3000"},
			RateLimitPerMinute: 300,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "taibet",
			User:          "taibet",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "taibet-archive",
			ForcePathStyle: true,
		},
		Ton: TonConfig{
			IndexerURL:      "https://toncenter.com/api/v2",
			PollInterval:    duration{5 * time.Second},
			MaxPollAttempts: 60,
		},
		Pricing: PricingConfig{
			MinOdds:              1.01,
			MaxOdds:              10.0,
			DefaultOdds:          2.0,
			MinAbsolutePool:      10,
			MinPoolRatio:         0.05,
			SideCapRatio:         0.95,
			OtherFloorRatio:      0.05,
			FeeRate:              0.05,
			ImpactFeeCoefficient: 0.1,
			ImpactMinPool:        100,
			ImpactMaxMultiplier:  0.5,
			MaxSettleRetries:     5,
		},
		Sale: SaleConfig{
			InitialPriceTON: 0.1,
			BaseTAI:         10_000,
			MaxTAI:          50_000,
			TotalTAI:        1_000_000,
			SessionTTL:      duration{15 * time.Minute},
			AccelerateMax:   2.0,
		},
		Rain: RainConfig{
			AmountTAI:       100_000,
			TicketPriceTON:  0.05,
			MinBonusTAI:     100,
			MaxBonusTAI:     5_000,
			MaxParticipants: 500,
			Duration:        duration{2 * time.Hour},
		},
		Jobs: JobsConfig{
			SaleCron:             "0 0 * * *",
			RainCron:             "0 12,20 * * *",
			ArchiveCron:          "0 3 1 * *",
			FeeRedriveCron:       "30 * * * *",
			ArchiveRetentionDays: 90,
		},
		Notify: NotifyConfig{
			Events: []string{"bet_placed", "purchase_confirmed", "rain_drop"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, fmt.Sprintf("server: metrics_port must be 0-65535, got %d", c.Server.MetricsPort))
	}

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
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	if c.Ton.IndexerURL == "" {
		errs = append(errs, "ton: indexer_url must not be empty")
	}
	if c.Ton.DepositAddress == "" {
		errs = append(errs, "ton: deposit_address must not be empty")
	}
	if c.Ton.PollInterval.Duration <= 0 {
		errs = append(errs, "ton: poll_interval must be positive")
	}
	if c.Ton.MaxPollAttempts < 1 {
		errs = append(errs, "ton: max_poll_attempts must be >= 1")
	}

	if c.Treasury.KeyPath != "" && c.Treasury.KeyPassword == "" {
		errs = append(errs, "treasury: key_password is required when key_path is set")
	}

	if c.Pricing.FeeRate < 0 || c.Pricing.FeeRate >= 1 {
		errs = append(errs, fmt.Sprintf("pricing: fee_rate must be in [0,1), got %v", c.Pricing.FeeRate))
	}
	if c.Pricing.MinOdds <= 0 || c.Pricing.MaxOdds < c.Pricing.MinOdds {
		errs = append(errs, "pricing: min_odds must be positive and max_odds >= min_odds")
	}
	if c.Pricing.ImpactMaxMultiplier < 0 || c.Pricing.ImpactMaxMultiplier > 1 {
		errs = append(errs, "pricing: impact_max_multiplier must be in [0,1]")
	}
	if c.Pricing.MaxSettleRetries < 1 {
		errs = append(errs, "pricing: max_settle_retries must be >= 1")
	}

	if c.Sale.InitialPriceTON <= 0 {
		errs = append(errs, "sale: initial_price_ton must be > 0")
	}
	if c.Sale.BaseTAI <= 0 || c.Sale.MaxTAI < c.Sale.BaseTAI {
		errs = append(errs, "sale: base_tai must be > 0 and max_tai >= base_tai")
	}
	if c.Sale.TotalTAI < c.Sale.MaxTAI {
		errs = append(errs, "sale: total_tai must be >= max_tai")
	}
	if c.Sale.SessionTTL.Duration <= 0 {
		errs = append(errs, "sale: session_ttl must be positive")
	}
	if c.Sale.AccelerateMax < 1 {
		errs = append(errs, "sale: accelerate_max must be >= 1")
	}

	if c.Rain.MinBonusTAI < 0 || c.Rain.MaxBonusTAI < c.Rain.MinBonusTAI {
		errs = append(errs, "rain: bonus range is invalid")
	}
	if c.Rain.MaxParticipants < 1 {
		errs = append(errs, "rain: max_participants must be >= 1")
	}
	if c.Rain.Duration.Duration <= 0 {
		errs = append(errs, "rain: duration must be positive")
	}

	if c.Jobs.ArchiveRetentionDays < 1 {
		errs = append(errs, "jobs: archive_retention_days must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
