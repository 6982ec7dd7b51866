package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taibet/taibet/internal/crypto"
	"github.com/taibet/taibet/internal/domain"
	"github.com/taibet/taibet/internal/metrics"
	"github.com/taibet/taibet/internal/platform/ton"
)

// RainConfig carries the drop parameters applied to each created drop.
type RainConfig struct {
	AmountTAI       decimal.Decimal
	TicketPriceTON  decimal.Decimal
	MinBonusTAI     decimal.Decimal
	MaxBonusTAI     decimal.Decimal
	MaxParticipants int
	Duration        time.Duration
}

// RainService manages time-boxed subsidized giveaways. At most one drop is
// active at a time; the scheduler calls EnsureActiveDrop each period and it
// skips creation while an unexpired drop exists.
type RainService struct {
	rains    domain.RainStore
	notifier Notifier
	signer   *crypto.Signer // nil disables voucher signatures
	cfg      RainConfig
	logger   *slog.Logger
}

// NewRainService creates a RainService.
func NewRainService(rains domain.RainStore, notifier Notifier, signer *crypto.Signer, cfg RainConfig, logger *slog.Logger) *RainService {
	return &RainService{
		rains:    rains,
		notifier: notifier,
		signer:   signer,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "rain_service")),
	}
}

// EnsureActiveDrop expires stale drops, then creates a new drop only when
// none is active. Returns the drop in effect after the call.
func (s *RainService) EnsureActiveDrop(ctx context.Context) (domain.RainDrop, error) {
	now := time.Now().UTC()

	expired, err := s.rains.ExpireDrops(ctx, now)
	if err != nil {
		return domain.RainDrop{}, fmt.Errorf("rain_service: expire drops: %w", err)
	}
	if expired > 0 {
		s.logger.InfoContext(ctx, "rain drops expired", slog.Int64("count", expired))
	}

	active, err := s.rains.ActiveDrop(ctx, now)
	if err == nil {
		s.logger.InfoContext(ctx, "rain drop still active, skipping creation",
			slog.String("drop_id", active.ID),
			slog.Time("expires_at", active.ExpiresAt),
		)
		return active, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.RainDrop{}, fmt.Errorf("rain_service: active drop: %w", err)
	}

	drop := domain.RainDrop{
		ID:              uuid.New().String(),
		AmountTAI:       s.cfg.AmountTAI,
		TicketPriceTON:  s.cfg.TicketPriceTON,
		MinBonusTAI:     s.cfg.MinBonusTAI,
		MaxBonusTAI:     s.cfg.MaxBonusTAI,
		MaxParticipants: s.cfg.MaxParticipants,
		Claimed:         0,
		Status:          domain.DropActive,
		ExpiresAt:       now.Add(s.cfg.Duration),
		CreatedAt:       now,
	}
	if err := s.rains.CreateDrop(ctx, drop); err != nil {
		return domain.RainDrop{}, fmt.Errorf("rain_service: create drop: %w", err)
	}

	s.logger.InfoContext(ctx, "rain drop created",
		slog.String("drop_id", drop.ID),
		slog.Time("expires_at", drop.ExpiresAt),
	)

	if s.notifier != nil {
		msg := fmt.Sprintf("rain drop %s open until %s", drop.ID, drop.ExpiresAt.Format(time.RFC3339))
		if err := s.notifier.Notify(ctx, "rain_drop", "Rain drop open", msg); err != nil {
			s.logger.Warn("rain notification failed", slog.String("error", err.Error()))
		}
	}
	return drop, nil
}

// CurrentDrop returns the active drop, or ErrDropClosed when none is open.
func (s *RainService) CurrentDrop(ctx context.Context) (domain.RainDrop, error) {
	drop, err := s.rains.ActiveDrop(ctx, time.Now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.RainDrop{}, domain.ErrDropClosed
		}
		return domain.RainDrop{}, fmt.Errorf("rain_service: current drop: %w", err)
	}
	return drop, nil
}

// Claim grants the wallet a bonus from the active drop: the bonus is drawn
// uniformly from the drop's range and returned with an unsigned payout
// payload. One claim per wallet per drop; capacity is enforced by the
// store's guarded counter.
func (s *RainService) Claim(ctx context.Context, wallet string) (domain.RainClaim, error) {
	if wallet == "" {
		return domain.RainClaim{}, fmt.Errorf("rain_service: %w: empty wallet", domain.ErrInvalidAmount)
	}

	drop, err := s.CurrentDrop(ctx)
	if err != nil {
		return domain.RainClaim{}, err
	}

	span := drop.MaxBonusTAI.Sub(drop.MinBonusTAI)
	bonus := drop.MinBonusTAI.Add(span.Mul(decimal.NewFromFloat(rand.Float64())))

	claimID := uuid.New().String()
	payload, err := ton.BuildPayoutPayload(claimID, wallet, bonus, "",
		voucherSig(s.signer, claimID, wallet, bonus), time.Now().UTC().Add(payoutValidity))
	if err != nil {
		return domain.RainClaim{}, fmt.Errorf("rain_service: build payout: %w", err)
	}

	claim := domain.RainClaim{
		ID:            claimID,
		DropID:        drop.ID,
		Wallet:        wallet,
		BonusTAI:      bonus,
		PayoutPayload: payload,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.rains.CreateClaim(ctx, claim); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) || errors.Is(err, domain.ErrDropClosed) {
			return domain.RainClaim{}, err
		}
		return domain.RainClaim{}, fmt.Errorf("rain_service: create claim: %w", err)
	}

	metrics.RainClaimsTotal.Inc()
	s.logger.InfoContext(ctx, "rain claim granted",
		slog.String("drop_id", drop.ID),
		slog.String("wallet", wallet),
		slog.String("bonus_tai", bonus.String()),
	)
	return claim, nil
}
