// Package server assembles the HTTP API: REST endpoints for markets, bets,
// the red packet sale, and rain drops, plus the WebSocket odds stream.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/taibet/taibet/internal/domain"
	"github.com/taibet/taibet/internal/metrics"
	"github.com/taibet/taibet/internal/server/handler"
	"github.com/taibet/taibet/internal/server/middleware"
	"github.com/taibet/taibet/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port               int
	CORSOrigins        []string
	APIKey             string // if empty, authentication is disabled
	RateLimitPerMinute int    // if zero, rate limiting is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Markets   *handler.MarketHandler
	RedPacket *handler.RedPacketHandler
	Rain      *handler.RainHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (rate limit, auth, logging, CORS) applied.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market and bet endpoints.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/bets", handlers.Markets.PlaceBet)
	mux.HandleFunc("GET /api/markets/{id}/odds", handlers.Markets.GetOdds)
	mux.HandleFunc("GET /api/markets/{id}/stakes", handlers.Markets.ListStakes)
	mux.HandleFunc("GET /api/wallets/{wallet}/stakes", handlers.Markets.WalletStakes)

	// DAO fee ledger.
	mux.HandleFunc("GET /api/fees/pools", handlers.Markets.FeePools)

	// Red packet sale endpoints.
	mux.HandleFunc("POST /api/redpacket/create", handlers.RedPacket.Create)
	mux.HandleFunc("POST /api/redpacket/purchase", handlers.RedPacket.Purchase)
	mux.HandleFunc("GET /api/redpacket/status", handlers.RedPacket.Status)

	// Rain drop endpoints.
	mux.HandleFunc("GET /api/rain/current", handlers.Rain.Current)
	mux.HandleFunc("POST /api/rain/claim", handlers.Rain.Claim)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux

	if limiter != nil && cfg.RateLimitPerMinute > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimitPerMinute, time.Minute)(h)
	}

	// Auth skips when APIKey is empty.
	h = middleware.Auth(cfg.APIKey)(h)

	h = middleware.Logging(logger)(h)
	h = metrics.Middleware(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
