package pricing

import "github.com/shopspring/decimal"

// ImpactResult is the outcome of the impact-adjusted stake calculation.
type ImpactResult struct {
	// EffectiveStake is the part of the stake that enters the pool and earns
	// payout-proportional odds. Zero means the fee would have consumed the
	// whole stake and the caller must reject with ErrInsufficientNetStake.
	EffectiveStake decimal.Decimal
	// ImpactFee is the anti-manipulation surcharge deducted from the stake.
	ImpactFee decimal.Decimal
	// ImpactMultiplier is the applied fee share of the stake, after the cap.
	ImpactMultiplier decimal.Decimal
}

// ComputeImpactAdjustedStake converts a raw stake into a pool contribution
// plus an impact fee that grows with the stake's size relative to the
// pre-trade pool. Without it a large bettor would be priced against the
// pre-trade pool, buying cheap odds while instantly moving the market
// against everyone after them.
//
//	multiplier = min(ImpactFeeCoefficient * stake / max(poolBefore, ImpactMinPool), ImpactMaxMultiplier)
//	fee        = stake * multiplier
func ComputeImpactAdjustedStake(stake, poolBefore decimal.Decimal, cfg Config) ImpactResult {
	if stake.LessThanOrEqual(decimal.Zero) {
		return ImpactResult{EffectiveStake: decimal.Zero, ImpactFee: decimal.Zero, ImpactMultiplier: decimal.Zero}
	}

	denom := poolBefore
	if denom.LessThan(cfg.ImpactMinPool) {
		denom = cfg.ImpactMinPool
	}

	mult := decimal.Zero
	if denom.GreaterThan(decimal.Zero) {
		mult = cfg.ImpactFeeCoefficient.Mul(stake).DivRound(denom, Scale)
	}
	if mult.GreaterThan(cfg.ImpactMaxMultiplier) {
		mult = cfg.ImpactMaxMultiplier
	}

	fee := stake.Mul(mult).RoundDown(Scale)
	effective := stake.Sub(fee)
	if effective.LessThanOrEqual(decimal.Zero) {
		return ImpactResult{EffectiveStake: decimal.Zero, ImpactFee: fee, ImpactMultiplier: mult}
	}

	return ImpactResult{EffectiveStake: effective, ImpactFee: fee, ImpactMultiplier: mult}
}
