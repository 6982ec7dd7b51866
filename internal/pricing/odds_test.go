package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestComputeOdds_EmptyMarketQuotesDefault(t *testing.T) {
	cfg := DefaultConfig()
	odds := ComputeOdds(d(0), d(0), cfg)
	if !odds.Equal(cfg.DefaultOdds) {
		t.Errorf("expected default odds %s for empty market, got %s", cfg.DefaultOdds, odds)
	}
}

func TestComputeOdds_EqualPools(t *testing.T) {
	cfg := DefaultConfig()
	odds := ComputeOdds(d(1000), d(500), cfg)
	if !odds.Equal(d(2)) {
		t.Errorf("equal pools should quote 2.0, got %s", odds)
	}
}

func TestComputeOdds_ZeroSidePoolStaysFinite(t *testing.T) {
	cfg := DefaultConfig()
	odds := ComputeOdds(d(1000), d(0), cfg)
	if odds.GreaterThan(cfg.MaxOdds) {
		t.Errorf("odds %s exceed max %s", odds, cfg.MaxOdds)
	}
	if odds.LessThan(cfg.MinOdds) {
		t.Errorf("odds %s below min %s", odds, cfg.MinOdds)
	}
}

func TestComputeOdds_WithinBoundsAcrossSweep(t *testing.T) {
	cfg := DefaultConfig()
	totals := []float64{0, 1, 10, 100, 1000, 50_000, 1_000_000}
	ratios := []float64{0, 0.01, 0.05, 0.25, 0.5, 0.75, 0.95, 0.99, 1}

	for _, total := range totals {
		for _, ratio := range ratios {
			side := d(total * ratio)
			odds := ComputeOdds(d(total), side, cfg)
			if odds.LessThan(cfg.MinOdds) || odds.GreaterThan(cfg.MaxOdds) {
				t.Errorf("odds out of [%s,%s] for total=%v side=%s: %s",
					cfg.MinOdds, cfg.MaxOdds, total, side, odds)
			}
		}
	}
}

func TestComputeOdds_OneSidedPoolPricesMajorityAtFloor(t *testing.T) {
	cfg := DefaultConfig()
	// The whole pool sits on one side; that side's odds must collapse to the
	// configured minimum.
	odds := ComputeOdds(d(100_000), d(100_000), cfg)
	if !odds.Equal(cfg.MinOdds) {
		t.Errorf("fully one-sided majority should price at floor %s, got %s", cfg.MinOdds, odds)
	}
}

func TestComputeOdds_MinorityCappedByOtherFloor(t *testing.T) {
	cfg := DefaultConfig()
	// The empty opposing side is still floored, so the minority quote cannot
	// reach near-certain pricing.
	odds := ComputeOdds(d(100_000), d(0), cfg)
	if odds.GreaterThan(cfg.MaxOdds) {
		t.Errorf("minority odds %s exceed cap %s", odds, cfg.MaxOdds)
	}
}

func TestComputeOdds_MoreImbalanceNeverLowersMinorityOdds(t *testing.T) {
	cfg := DefaultConfig()
	total := d(10_000)
	prev := decimal.Zero
	for _, sideShare := range []float64{0.5, 0.4, 0.3, 0.2, 0.1, 0.05} {
		odds := ComputeOdds(total, total.Mul(d(sideShare)), cfg)
		if odds.LessThan(prev) {
			t.Errorf("odds should be non-decreasing as the side shrinks: share=%v odds=%s prev=%s",
				sideShare, odds, prev)
		}
		prev = odds
	}
}
