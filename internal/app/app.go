// Package app provides top-level application lifecycle management. It wires
// together all dependencies (stores, caches, blob storage, services, jobs,
// and notifications) and runs the HTTP API, the WebSocket hub, the metrics
// listener, and the job scheduler until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taibet/taibet/internal/config"
	"github.com/taibet/taibet/internal/metrics"
	"github.com/taibet/taibet/internal/pipeline"
	"github.com/taibet/taibet/internal/sched"
	"github.com/taibet/taibet/internal/server"
	"github.com/taibet/taibet/internal/server/handler"
	"github.com/taibet/taibet/internal/server/ws"
	"github.com/taibet/taibet/internal/service"
)

// shutdownTimeout bounds how long graceful shutdown may take.
const shutdownTimeout = 15 * time.Second

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions that are called in reverse order on
// shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the
// servers and background jobs, and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// --- Services ---
	priceCfg := pricingConfig(a.cfg.Pricing)

	marketSvc := service.NewMarketService(
		deps.MarketStore, deps.StakeStore, deps.OddsStore, deps.FeePoolStore, priceCfg, a.logger,
	)
	betSvc := service.NewBetService(
		deps.MarketStore, deps.FeePoolStore, deps.SignalBus, deps.Notifier,
		priceCfg, a.cfg.Pricing.MaxSettleRetries, a.logger,
	)
	saleSvc := service.NewSaleService(deps.SaleStore, deps.SaleCache, saleConfig(a.cfg.Sale), a.logger)
	purchaseSvc := service.NewPurchaseService(
		deps.PurchaseStore, saleSvc, deps.TonClient, deps.Notifier, deps.Signer,
		purchaseConfig(a.cfg), a.logger,
	)
	defer purchaseSvc.Close()
	rainSvc := service.NewRainService(deps.RainStore, deps.Notifier, deps.Signer, rainConfig(a.cfg.Rain), a.logger)

	// --- HTTP layer ---
	hub := ws.NewHub(deps.SignalBus, a.logger)

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Markets:   handler.NewMarketHandler(marketSvc, betSvc, a.logger),
		RedPacket: handler.NewRedPacketHandler(purchaseSvc, saleSvc, a.logger),
		Rain:      handler.NewRainHandler(rainSvc, a.logger),
	}

	apiServer := server.NewServer(server.Config{
		Port:               a.cfg.Server.Port,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		APIKey:             a.cfg.Server.APIKey,
		RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
	}, handlers, hub, deps.RateLimiter, a.logger)

	// --- Scheduled jobs ---
	jobs := []sched.Job{
		{
			Name: "sale_day",
			Cron: a.cfg.Jobs.SaleCron,
			Run: func(ctx context.Context) error {
				_, err := saleSvc.EnsureDay(ctx, time.Now().UTC())
				return err
			},
		},
		{
			Name: "rain_drop",
			Cron: a.cfg.Jobs.RainCron,
			Run: func(ctx context.Context) error {
				_, err := rainSvc.EnsureActiveDrop(ctx)
				return err
			},
		},
		{
			Name: "fee_redrive",
			Cron: a.cfg.Jobs.FeeRedriveCron,
			Run: func(ctx context.Context) error {
				_, err := betSvc.RedriveFeeCredits(ctx)
				return err
			},
		},
	}
	if deps.BlobWriter != nil {
		archiver := pipeline.NewArchiver(
			deps.OddsStore, deps.PurchaseStore, deps.BlobWriter,
			a.cfg.Jobs.ArchiveRetentionDays, a.logger,
		)
		jobs = append(jobs, sched.Job{
			Name: "archive",
			Cron: a.cfg.Jobs.ArchiveCron,
			Run:  archiver.Run,
		})
	}
	runner := sched.NewRunner(deps.LockManager, a.logger, jobs...)

	// Make sure today's sale day exists before taking traffic.
	if _, err := saleSvc.EnsureDay(ctx, time.Now().UTC()); err != nil {
		return fmt.Errorf("app: bootstrap sale day: %w", err)
	}

	// --- Run everything ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return apiServer.Start() })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return runner.Start(gctx) })

	if a.cfg.Server.MetricsPort > 0 {
		metricsServer := metrics.NewServer(a.cfg.Server.MetricsPort, a.logger)
		g.Go(func() error { return metricsServer.Start() })
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return apiServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
