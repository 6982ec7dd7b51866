package pricing

import "github.com/shopspring/decimal"

// ComputeOdds quotes the payout multiplier for a unit stake on the side whose
// committed pool is sidePool, given the market's total pool.
//
// The side's pool is floored at max(MinAbsolutePool, MinPoolRatio*total) and
// capped at min(SideCapRatio, 1-OtherFloorRatio)*total before dividing, so
// raw fair odds total/effectiveSide stay finite and bounded even for empty
// or fully one-sided pools. The result is clamped to [MinOdds, MaxOdds];
// an entirely empty market quotes DefaultOdds.
func ComputeOdds(totalPool, sidePool decimal.Decimal, cfg Config) decimal.Decimal {
	if totalPool.LessThanOrEqual(decimal.Zero) {
		return cfg.DefaultOdds
	}

	eff := sidePool

	floor := cfg.MinPoolRatio.Mul(totalPool)
	if cfg.MinAbsolutePool.GreaterThan(floor) {
		floor = cfg.MinAbsolutePool
	}
	if eff.LessThan(floor) {
		eff = floor
	}

	cap := cfg.SideCapRatio
	if other := decimal.NewFromInt(1).Sub(cfg.OtherFloorRatio); other.LessThan(cap) {
		cap = other
	}
	if capPool := cap.Mul(totalPool); eff.GreaterThan(capPool) && capPool.GreaterThan(decimal.Zero) {
		eff = capPool
	}

	odds := totalPool.DivRound(eff, Scale)
	return clampOdds(odds, cfg)
}

func clampOdds(odds decimal.Decimal, cfg Config) decimal.Decimal {
	if odds.LessThan(cfg.MinOdds) {
		return cfg.MinOdds
	}
	if odds.GreaterThan(cfg.MaxOdds) {
		return cfg.MaxOdds
	}
	return odds
}
