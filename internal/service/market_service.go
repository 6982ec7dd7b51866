// Package service contains the transactional core: bet settlement, the
// purchase state machine, the daily sale adjustment, and rain drops.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taibet/taibet/internal/domain"
	"github.com/taibet/taibet/internal/pricing"
)

// MarketService handles market lifecycle and read paths.
type MarketService struct {
	markets domain.MarketStore
	stakes  domain.StakeStore
	odds    domain.OddsStore
	fees    domain.FeePoolStore
	cfg     pricing.Config
	logger  *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	markets domain.MarketStore,
	stakes domain.StakeStore,
	odds domain.OddsStore,
	fees domain.FeePoolStore,
	cfg pricing.Config,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets: markets,
		stakes:  stakes,
		odds:    odds,
		fees:    fees,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "market_service")),
	}
}

// CreateMarket opens a new active market closing at closesAt.
func (s *MarketService) CreateMarket(ctx context.Context, title string, closesAt time.Time) (domain.Market, error) {
	if title == "" {
		return domain.Market{}, fmt.Errorf("market_service: %w: empty title", domain.ErrInvalidAmount)
	}
	now := time.Now().UTC()
	if !closesAt.After(now) {
		return domain.Market{}, fmt.Errorf("market_service: %w: close time in the past", domain.ErrMarketClosed)
	}

	m := domain.Market{
		ID:        uuid.New().String(),
		Title:     title,
		Status:    domain.MarketStatusActive,
		YesPool:   decimal.Zero,
		NoPool:    decimal.Zero,
		TotalPool: decimal.Zero,
		TotalFees: decimal.Zero,
		Version:   0,
		ClosesAt:  closesAt.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.markets.Create(ctx, m); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create: %w", err)
	}

	s.logger.InfoContext(ctx, "market created",
		slog.String("market_id", m.ID),
		slog.Time("closes_at", m.ClosesAt),
	)
	return m, nil
}

// GetMarket returns a market with its current quoted odds.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.MarketDetail, error) {
	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.MarketDetail{}, fmt.Errorf("market_service: get %q: %w", id, err)
	}
	return domain.MarketDetail{
		Market:  m,
		YesOdds: pricing.ComputeOdds(m.TotalPool, m.YesPool, s.cfg),
		NoOdds:  pricing.ComputeOdds(m.TotalPool, m.NoPool, s.cfg),
	}, nil
}

// ListMarkets returns a page of markets plus the next-page cursor.
func (s *MarketService) ListMarkets(ctx context.Context, q domain.MarketQuery) ([]domain.Market, string, error) {
	markets, next, err := s.markets.List(ctx, q)
	if err != nil {
		return nil, "", fmt.Errorf("market_service: list: %w", err)
	}
	return markets, next, nil
}

// OddsSince returns the snapshots after a subscriber's last seen sequence,
// in order. since=0 returns the whole retained history.
func (s *MarketService) OddsSince(ctx context.Context, marketID string, since int64, limit int) ([]domain.OddsSnapshot, error) {
	if _, err := s.markets.GetByID(ctx, marketID); err != nil {
		return nil, fmt.Errorf("market_service: odds for %q: %w", marketID, err)
	}
	snaps, err := s.odds.ListSince(ctx, marketID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("market_service: odds since %d: %w", since, err)
	}
	return snaps, nil
}

// LatestOdds returns the newest snapshot for a market.
func (s *MarketService) LatestOdds(ctx context.Context, marketID string) (domain.OddsSnapshot, error) {
	snap, err := s.odds.Latest(ctx, marketID)
	if err != nil {
		return domain.OddsSnapshot{}, fmt.Errorf("market_service: latest odds %q: %w", marketID, err)
	}
	return snap, nil
}

// MarketStakes returns the stakes settled on a market, newest first.
func (s *MarketService) MarketStakes(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Stake, error) {
	if _, err := s.markets.GetByID(ctx, marketID); err != nil {
		return nil, fmt.Errorf("market_service: stakes for %q: %w", marketID, err)
	}
	stakes, err := s.stakes.ListByMarket(ctx, marketID, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: stakes for %q: %w", marketID, err)
	}
	return stakes, nil
}

// WalletStakes returns a wallet's stakes across all markets, newest first.
func (s *MarketService) WalletStakes(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Stake, error) {
	stakes, err := s.stakes.ListByWallet(ctx, wallet, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: stakes for wallet %q: %w", wallet, err)
	}
	return stakes, nil
}

// PricingView is the client-facing subset of the pricing constants, served
// alongside odds so clients can render quote bounds and the fee rate.
type PricingView struct {
	MinOdds     decimal.Decimal `json:"min_odds"`
	MaxOdds     decimal.Decimal `json:"max_odds"`
	DefaultOdds decimal.Decimal `json:"default_odds"`
	FeeRate     decimal.Decimal `json:"fee_rate"`
}

// Pricing returns the public pricing constants.
func (s *MarketService) Pricing() PricingView {
	return PricingView{
		MinOdds:     s.cfg.MinOdds,
		MaxOdds:     s.cfg.MaxOdds,
		DefaultOdds: s.cfg.DefaultOdds,
		FeeRate:     s.cfg.FeeRate,
	}
}

// FeePoolBalances returns the cumulative DAO ledger balances.
func (s *MarketService) FeePoolBalances(ctx context.Context) (map[domain.DAOPool]decimal.Decimal, error) {
	balances, err := s.fees.Balances(ctx)
	if err != nil {
		return nil, fmt.Errorf("market_service: fee balances: %w", err)
	}
	return balances, nil
}
