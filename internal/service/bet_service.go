package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taibet/taibet/internal/domain"
	"github.com/taibet/taibet/internal/metrics"
	"github.com/taibet/taibet/internal/pricing"
)

// OddsChannelPrefix is the signal bus channel prefix for odds snapshot
// fan-out; the full channel is OddsChannelPrefix + marketID.
const OddsChannelPrefix = "odds:"

// BetService settles bets: it prices the stake, applies fees, and commits
// the market update, stake, and odds snapshot atomically under optimistic
// concurrency.
type BetService struct {
	markets    domain.MarketStore
	fees       domain.FeePoolStore
	bus        domain.SignalBus
	notifier   Notifier
	cfg        pricing.Config
	maxRetries int
	logger     *slog.Logger
}

// Notifier is the subset of the notification dispatcher the services use.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// NewBetService creates a BetService. maxRetries bounds how many times a
// version conflict is retried before surfacing to the caller.
func NewBetService(
	markets domain.MarketStore,
	fees domain.FeePoolStore,
	bus domain.SignalBus,
	notifier Notifier,
	cfg pricing.Config,
	maxRetries int,
	logger *slog.Logger,
) *BetService {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &BetService{
		markets:    markets,
		fees:       fees,
		bus:        bus,
		notifier:   notifier,
		cfg:        cfg,
		maxRetries: maxRetries,
		logger:     logger.With(slog.String("component", "bet_service")),
	}
}

// PlaceBet stakes amount on side of the given market. On success the
// returned detail carries the updated market, the post-trade odds, and the
// recorded stake. Fee ledger credits and the snapshot broadcast happen
// after commit and never roll back the bet.
func (s *BetService) PlaceBet(ctx context.Context, marketID, wallet string, side domain.Side, amount decimal.Decimal) (domain.MarketDetail, error) {
	if !side.Valid() {
		return domain.MarketDetail{}, domain.ErrInvalidSide
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.MarketDetail{}, domain.ErrInvalidAmount
	}
	if wallet == "" {
		return domain.MarketDetail{}, fmt.Errorf("bet_service: %w: empty wallet", domain.ErrInvalidAmount)
	}

	start := time.Now()

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		detail, err := s.tryPlaceBet(ctx, marketID, wallet, side, amount)
		if err == nil {
			if attempt > 0 {
				s.logger.InfoContext(ctx, "bet settled after retry",
					slog.String("market_id", marketID),
					slog.Int("attempt", attempt+1),
				)
			}
			metrics.BetsTotal.WithLabelValues(string(side)).Inc()
			metrics.BetLatency.Observe(time.Since(start).Seconds())
			return detail, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return domain.MarketDetail{}, err
		}
		metrics.SettlementConflicts.Inc()
		lastErr = err
	}

	s.logger.WarnContext(ctx, "bet settlement exhausted retries",
		slog.String("market_id", marketID),
		slog.Int("attempts", s.maxRetries),
	)
	return domain.MarketDetail{}, fmt.Errorf("bet_service: settle on %s: %w", marketID, lastErr)
}

// tryPlaceBet performs one settlement attempt against the market's current
// committed version.
func (s *BetService) tryPlaceBet(ctx context.Context, marketID, wallet string, side domain.Side, amount decimal.Decimal) (domain.MarketDetail, error) {
	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.MarketDetail{}, fmt.Errorf("bet_service: load market: %w", err)
	}

	now := time.Now().UTC()
	if !m.AcceptsBets(now) {
		return domain.MarketDetail{}, domain.ErrMarketClosed
	}

	// Platform fee first, then the impact adjustment on the remainder
	// against the chosen side's pre-trade pool.
	platformFee := amount.Mul(s.cfg.FeeRate).RoundDown(pricing.Scale)
	afterFee := amount.Sub(platformFee)

	impact := pricing.ComputeImpactAdjustedStake(afterFee, m.SidePool(side), s.cfg)
	if impact.EffectiveStake.LessThanOrEqual(decimal.Zero) {
		return domain.MarketDetail{}, domain.ErrInsufficientNetStake
	}

	net := impact.EffectiveStake
	totalFee := platformFee.Add(impact.ImpactFee)

	updated := m
	updated.TotalPool = m.TotalPool.Add(net)
	updated.TotalFees = m.TotalFees.Add(totalFee)
	updated.Version = m.Version + 1
	updated.UpdatedAt = now
	if side == domain.SideYes {
		updated.YesPool = m.YesPool.Add(net)
	} else {
		updated.NoPool = m.NoPool.Add(net)
	}

	yesOdds := pricing.ComputeOdds(updated.TotalPool, updated.YesPool, s.cfg)
	noOdds := pricing.ComputeOdds(updated.TotalPool, updated.NoPool, s.cfg)
	quoted := yesOdds
	if side == domain.SideNo {
		quoted = noOdds
	}

	stake := domain.Stake{
		ID:              uuid.New().String(),
		MarketID:        m.ID,
		Wallet:          wallet,
		Side:            side,
		GrossAmount:     amount,
		FeeAmount:       totalFee,
		NetAmount:       net,
		QuotedOdds:      quoted,
		PotentialPayout: net.Mul(quoted).RoundDown(pricing.Scale),
		CreatedAt:       now,
	}

	snapshot := domain.OddsSnapshot{
		MarketID:    m.ID,
		Sequence:    updated.Version,
		YesPool:     updated.YesPool,
		NoPool:      updated.NoPool,
		TotalPool:   updated.TotalPool,
		YesOdds:     yesOdds,
		NoOdds:      noOdds,
		TriggerSide: side,
		TriggerAmt:  amount,
		CreatedAt:   now,
	}

	err = s.markets.CommitSettlement(ctx, domain.Settlement{
		Market:      updated,
		PrevVersion: m.Version,
		Stake:       stake,
		Snapshot:    snapshot,
	})
	if err != nil {
		return domain.MarketDetail{}, err
	}

	go s.afterCommit(stake, snapshot, totalFee)

	return domain.MarketDetail{
		Market:  updated,
		YesOdds: yesOdds,
		NoOdds:  noOdds,
		Stake:   &stake,
	}, nil
}

// afterCommit runs the non-transactional tail of a settlement: fee ledger
// credit, snapshot broadcast, and the operator notification. Failures are
// logged and never undo the bet; the fee credit is idempotent on the stake
// id so it can be re-driven safely.
func (s *BetService) afterCommit(stake domain.Stake, snapshot domain.OddsSnapshot, totalFee decimal.Decimal) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	alloc := pricing.DistributeFees(totalFee)
	if err := s.fees.Credit(ctx, stake.ID, alloc); err != nil {
		// Retry once; a still-stuck credit is picked up by the scheduled
		// redrive over uncredited stakes.
		if err := s.fees.Credit(ctx, stake.ID, alloc); err != nil {
			s.logger.Error("fee credit failed",
				slog.String("stake_id", stake.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Error("snapshot encode failed", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Publish(ctx, OddsChannelPrefix+snapshot.MarketID, payload); err == nil {
		metrics.OddsSnapshotsPublished.Inc()
	} else {
		// Subscribers recover via the sequence-gap resync path.
		s.logger.Warn("snapshot publish failed",
			slog.String("market_id", snapshot.MarketID),
			slog.Int64("sequence", snapshot.Sequence),
			slog.String("error", err.Error()),
		)
	}

	if s.notifier != nil {
		msg := fmt.Sprintf("wallet %s staked %s on %s (market %s)",
			stake.Wallet, stake.GrossAmount, stake.Side, stake.MarketID)
		if err := s.notifier.Notify(ctx, "bet_placed", "Bet placed", msg); err != nil {
			s.logger.Warn("bet notification failed", slog.String("error", err.Error()))
		}
	}
}

// redriveBatchSize bounds one page of the fee credit redrive.
const redriveBatchSize = 500

// RedriveFeeCredits re-delivers ledger credits for stakes whose async credit
// never landed, paging until none remain. Credit is idempotent on the stake
// id, so racing an in-flight settlement tail is safe. Returns how many
// stakes were credited.
func (s *BetService) RedriveFeeCredits(ctx context.Context) (int, error) {
	total := 0
	for {
		stakes, err := s.fees.UncreditedStakes(ctx, redriveBatchSize)
		if err != nil {
			return total, fmt.Errorf("bet_service: list uncredited stakes: %w", err)
		}
		if len(stakes) == 0 {
			break
		}
		for _, stake := range stakes {
			if err := s.fees.Credit(ctx, stake.ID, pricing.DistributeFees(stake.FeeAmount)); err != nil {
				return total, fmt.Errorf("bet_service: redrive credit %s: %w", stake.ID, err)
			}
			total++
		}
		if len(stakes) < redriveBatchSize {
			break
		}
	}
	if total > 0 {
		s.logger.InfoContext(ctx, "fee credits re-driven", slog.Int("count", total))
	}
	return total, nil
}
