package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taibet/taibet/internal/domain"
)

// Adjustment step thresholds over the previous day's sold volume, and the
// percent applied to the previous day's price.
var adjustSteps = []struct {
	below   decimal.Decimal // exclusive upper bound on sold TAI
	percent int
}{
	{decimal.NewFromInt(500_000), -30},
	{decimal.NewFromInt(800_000), 0},
	{decimal.NewFromInt(950_000), 30},
}

// lastStepPercent applies when sold volume reaches the top threshold.
const lastStepPercent = 50

// SaleConfig carries the bootstrap parameters for the daily sale.
type SaleConfig struct {
	InitialPriceTON decimal.Decimal
	BaseTAI         decimal.Decimal
	MaxTAI          decimal.Decimal
	TotalTAI        decimal.Decimal
	SessionTTL      time.Duration
	AccelerateMax   decimal.Decimal
}

// SaleService manages the one-row-per-day subsidized sale and its dynamic
// price adjustment.
type SaleService struct {
	sales  domain.SaleStore
	cache  domain.SaleCache
	cfg    SaleConfig
	logger *slog.Logger
}

// NewSaleService creates a SaleService.
func NewSaleService(sales domain.SaleStore, cache domain.SaleCache, cfg SaleConfig, logger *slog.Logger) *SaleService {
	return &SaleService{
		sales:  sales,
		cache:  cache,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "sale_service")),
	}
}

// SaleCodeFor formats the natural identity of a sale day.
func SaleCodeFor(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// AdjustPercentFor returns the price adjustment step for the previous day's
// sold volume.
func AdjustPercentFor(soldTAI decimal.Decimal) int {
	for _, step := range adjustSteps {
		if soldTAI.LessThan(step.below) {
			return step.percent
		}
	}
	return lastStepPercent
}

// EnsureDay creates the sale day for the given date if it does not exist
// yet and returns it. The new day's price is the previous day's price moved
// by the adjustment step for the previous day's sold volume; with no prior
// day the configured initial price applies. Safe to call repeatedly: an
// existing row is returned unchanged.
func (s *SaleService) EnsureDay(ctx context.Context, date time.Time) (domain.SaleDay, error) {
	saleCode := SaleCodeFor(date)

	existing, err := s.sales.GetDay(ctx, saleCode)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.SaleDay{}, fmt.Errorf("sale_service: get day %s: %w", saleCode, err)
	}

	price := s.cfg.InitialPriceTON
	percent := 0
	prev, err := s.sales.MostRecent(ctx)
	switch {
	case err == nil:
		percent = AdjustPercentFor(prev.SoldTAI)
		factor := decimal.NewFromInt(int64(100 + percent)).Div(decimal.NewFromInt(100))
		price = prev.PriceTON.Mul(factor)
	case errors.Is(err, domain.ErrNotFound):
		// First day of the sale.
	default:
		return domain.SaleDay{}, fmt.Errorf("sale_service: most recent day: %w", err)
	}

	dayStart := date.UTC().Truncate(24 * time.Hour)
	day := domain.SaleDay{
		SaleCode:      saleCode,
		PriceTON:      price,
		BaseTAI:       s.cfg.BaseTAI,
		MaxTAI:        s.cfg.MaxTAI,
		TotalTAI:      s.cfg.TotalTAI,
		SoldTAI:       decimal.Zero,
		SoldOut:       false,
		Accelerate:    s.cfg.AccelerateMax.GreaterThan(decimal.NewFromInt(1)),
		AdjustPercent: percent,
		ExpiresAt:     dayStart.Add(24 * time.Hour),
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.sales.CreateDay(ctx, day); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// A concurrent run won the insert; use its row.
			return s.sales.GetDay(ctx, saleCode)
		}
		return domain.SaleDay{}, fmt.Errorf("sale_service: create day %s: %w", saleCode, err)
	}

	if err := s.cache.Set(ctx, day); err != nil {
		s.logger.WarnContext(ctx, "sale cache set failed",
			slog.String("sale_code", saleCode),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "sale day created",
		slog.String("sale_code", saleCode),
		slog.String("price_ton", price.String()),
		slog.Int("adjust_percent", percent),
	)
	return day, nil
}

// CurrentDay returns today's sale day, creating it on first access if the
// scheduled job has not run yet. Reads go through the cache.
func (s *SaleService) CurrentDay(ctx context.Context) (domain.SaleDay, error) {
	saleCode := SaleCodeFor(time.Now())

	day, err := s.cache.Get(ctx, saleCode)
	if err == nil {
		return day, nil
	}

	day, err = s.EnsureDay(ctx, time.Now())
	if err != nil {
		return domain.SaleDay{}, err
	}

	if err := s.cache.Set(ctx, day); err != nil {
		s.logger.WarnContext(ctx, "sale cache set failed",
			slog.String("sale_code", saleCode),
			slog.String("error", err.Error()),
		)
	}
	return day, nil
}

// RecordSold adds a confirmed purchase amount to the day's sold total and
// invalidates the cached view.
func (s *SaleService) RecordSold(ctx context.Context, saleCode string, amount decimal.Decimal) error {
	if err := s.sales.AddSold(ctx, saleCode, amount); err != nil {
		return fmt.Errorf("sale_service: record sold on %s: %w", saleCode, err)
	}
	if err := s.cache.Invalidate(ctx, saleCode); err != nil {
		s.logger.WarnContext(ctx, "sale cache invalidate failed",
			slog.String("sale_code", saleCode),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// ReleaseSold hands a reserved amount back to the day's inventory and
// invalidates the cached view. Called when a purchase reserved inventory but
// did not reach the paid state.
func (s *SaleService) ReleaseSold(ctx context.Context, saleCode string, amount decimal.Decimal) error {
	if err := s.sales.ReleaseSold(ctx, saleCode, amount); err != nil {
		return fmt.Errorf("sale_service: release sold on %s: %w", saleCode, err)
	}
	if err := s.cache.Invalidate(ctx, saleCode); err != nil {
		s.logger.WarnContext(ctx, "sale cache invalidate failed",
			slog.String("sale_code", saleCode),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
