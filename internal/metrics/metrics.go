// Package metrics provides Prometheus instrumentation and the standalone
// metrics listener.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BetsTotal counts settled bets, partitioned by side.
	BetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taibet_bets_total",
		Help: "Total number of bets settled",
	}, []string{"side"})

	// BetLatency tracks end-to-end bet settlement latency.
	BetLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "taibet_bet_latency_seconds",
		Help:    "Bet settlement latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// SettlementConflicts counts version conflicts hit during settlement,
	// including the ones absorbed by a retry.
	SettlementConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taibet_settlement_conflicts_total",
		Help: "Optimistic concurrency conflicts during bet settlement",
	})

	// OddsSnapshotsPublished counts snapshots pushed to the signal bus.
	OddsSnapshotsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taibet_odds_snapshots_published_total",
		Help: "Odds snapshots published to the fan-out bus",
	})

	// PurchasesTotal counts red packet purchase transitions by resulting state.
	PurchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taibet_purchases_total",
		Help: "Red packet purchase state transitions",
	}, []string{"state"})

	// RainClaimsTotal counts granted rain drop claims.
	RainClaimsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taibet_rain_claims_total",
		Help: "Rain drop claims granted",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taibet_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taibet_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taibet_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Middleware returns an HTTP middleware that records request metrics. The
// path label uses the raw URL path; the API surface is small enough that
// cardinality stays bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Server is the standalone /metrics listener, kept off the API port so the
// scrape endpoint never sits behind auth or rate limiting.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a metrics listener on the given port.
func NewServer(port int, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger.With(slog.String("component", "metrics")),
	}
}

// Start begins serving /metrics. It blocks until the listener fails or is
// shut down.
func (s *Server) Start() error {
	s.logger.Info("metrics: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics: listen: %w", err)
	}
	return nil
}

// Shutdown stops the metrics listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics: shutdown: %w", err)
	}
	return nil
}
