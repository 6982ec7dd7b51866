package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	s3blob "github.com/taibet/taibet/internal/blob/s3"
	"github.com/taibet/taibet/internal/cache/redis"
	"github.com/taibet/taibet/internal/config"
	"github.com/taibet/taibet/internal/crypto"
	"github.com/taibet/taibet/internal/domain"
	"github.com/taibet/taibet/internal/notify"
	"github.com/taibet/taibet/internal/platform/ton"
	"github.com/taibet/taibet/internal/pricing"
	"github.com/taibet/taibet/internal/service"
	"github.com/taibet/taibet/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application needs.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore   domain.MarketStore
	StakeStore    domain.StakeStore
	OddsStore     domain.OddsStore
	FeePoolStore  domain.FeePoolStore
	PurchaseStore domain.PurchaseStore
	SaleStore     domain.SaleStore
	RainStore     domain.RainStore

	// Redis-backed infrastructure
	SaleCache   domain.SaleCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage; nil when S3 is disabled.
	BlobWriter domain.BlobWriter

	// Chain access
	TonClient *ton.Client

	// Treasury voucher signer; nil when no key is configured.
	Signer *crypto.Signer

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.StakeStore = postgres.NewStakeStore(pool)
	deps.OddsStore = postgres.NewOddsStore(pool)
	deps.FeePoolStore = postgres.NewFeePoolStore(pool)
	deps.PurchaseStore = postgres.NewPurchaseStore(pool)
	deps.SaleStore = postgres.NewSaleStore(pool)
	deps.RainStore = postgres.NewRainStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.SaleCache = redis.NewSaleCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// --- TON indexer ---
	deps.TonClient = ton.NewClient(cfg.Ton.IndexerURL, cfg.Ton.APIKey)

	// --- Treasury signer ---
	if cfg.Treasury.RawSeed != "" || cfg.Treasury.KeyPath != "" {
		seed, err := crypto.LoadSeed(crypto.KeyConfig{
			RawSeed:          cfg.Treasury.RawSeed,
			EncryptedKeyPath: cfg.Treasury.KeyPath,
			KeyPassword:      cfg.Treasury.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: treasury key: %w", err)
		}
		signer, err := crypto.NewSigner(seed)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: treasury signer: %w", err)
		}
		deps.Signer = signer
		logger.Info("treasury signer loaded",
			slog.String("public_key", signer.PublicKeyHex()),
		)
	} else {
		logger.Warn("no treasury key configured, payout vouchers are unsigned")
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// saleConfig converts the sale tunables into the service config.
func saleConfig(cfg config.SaleConfig) service.SaleConfig {
	return service.SaleConfig{
		InitialPriceTON: decimal.NewFromFloat(cfg.InitialPriceTON),
		BaseTAI:         decimal.NewFromFloat(cfg.BaseTAI),
		MaxTAI:          decimal.NewFromFloat(cfg.MaxTAI),
		TotalTAI:        decimal.NewFromFloat(cfg.TotalTAI),
		SessionTTL:      cfg.SessionTTL.Duration,
		AccelerateMax:   decimal.NewFromFloat(cfg.AccelerateMax),
	}
}

// purchaseConfig assembles the purchase confirmation parameters from the
// TON and sale sections.
func purchaseConfig(cfg *config.Config) service.PurchaseConfig {
	return service.PurchaseConfig{
		DepositAddress:  cfg.Ton.DepositAddress,
		PollInterval:    cfg.Ton.PollInterval.Duration,
		MaxPollAttempts: cfg.Ton.MaxPollAttempts,
		SessionTTL:      cfg.Sale.SessionTTL.Duration,
		AccelerateMax:   decimal.NewFromFloat(cfg.Sale.AccelerateMax),
	}
}

// rainConfig converts the rain tunables into the service config.
func rainConfig(cfg config.RainConfig) service.RainConfig {
	return service.RainConfig{
		AmountTAI:       decimal.NewFromFloat(cfg.AmountTAI),
		TicketPriceTON:  decimal.NewFromFloat(cfg.TicketPriceTON),
		MinBonusTAI:     decimal.NewFromFloat(cfg.MinBonusTAI),
		MaxBonusTAI:     decimal.NewFromFloat(cfg.MaxBonusTAI),
		MaxParticipants: cfg.MaxParticipants,
		Duration:        cfg.Duration.Duration,
	}
}

// pricingConfig converts the float tunables into the decimal pricing config.
func pricingConfig(cfg config.PricingConfig) pricing.Config {
	return pricing.Config{
		MinOdds:              decimal.NewFromFloat(cfg.MinOdds),
		MaxOdds:              decimal.NewFromFloat(cfg.MaxOdds),
		DefaultOdds:          decimal.NewFromFloat(cfg.DefaultOdds),
		MinAbsolutePool:      decimal.NewFromFloat(cfg.MinAbsolutePool),
		MinPoolRatio:         decimal.NewFromFloat(cfg.MinPoolRatio),
		SideCapRatio:         decimal.NewFromFloat(cfg.SideCapRatio),
		OtherFloorRatio:      decimal.NewFromFloat(cfg.OtherFloorRatio),
		FeeRate:              decimal.NewFromFloat(cfg.FeeRate),
		ImpactFeeCoefficient: decimal.NewFromFloat(cfg.ImpactFeeCoefficient),
		ImpactMinPool:        decimal.NewFromFloat(cfg.ImpactMinPool),
		ImpactMaxMultiplier:  decimal.NewFromFloat(cfg.ImpactMaxMultiplier),
	}
}
