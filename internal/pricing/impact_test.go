package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeImpactAdjustedStake_ZeroCoefficientPassesThrough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ImpactFeeCoefficient = decimal.Zero

	res := ComputeImpactAdjustedStake(d(95), d(0), cfg)
	if !res.EffectiveStake.Equal(d(95)) {
		t.Errorf("expected effective stake 95, got %s", res.EffectiveStake)
	}
	if !res.ImpactFee.IsZero() {
		t.Errorf("expected zero impact fee, got %s", res.ImpactFee)
	}
}

func TestComputeImpactAdjustedStake_EffectiveNeverExceedsStake(t *testing.T) {
	cfg := DefaultConfig()
	stakes := []float64{0.01, 1, 50, 1000, 100_000}
	pools := []float64{0, 10, 500, 1_000_000}

	for _, s := range stakes {
		for _, p := range pools {
			res := ComputeImpactAdjustedStake(d(s), d(p), cfg)
			if res.EffectiveStake.GreaterThan(d(s)) {
				t.Errorf("effective %s exceeds stake %v (pool %v)", res.EffectiveStake, s, p)
			}
			if res.ImpactFee.LessThan(decimal.Zero) {
				t.Errorf("negative impact fee %s (stake %v pool %v)", res.ImpactFee, s, p)
			}
			if !res.EffectiveStake.Add(res.ImpactFee).Equal(d(s)) && !res.EffectiveStake.IsZero() {
				t.Errorf("effective+fee should equal stake: %s + %s != %v",
					res.EffectiveStake, res.ImpactFee, s)
			}
		}
	}
}

func TestComputeImpactAdjustedStake_LargeStakeSmallPoolPaysMore(t *testing.T) {
	cfg := DefaultConfig()
	small := ComputeImpactAdjustedStake(d(100), d(100_000), cfg)
	large := ComputeImpactAdjustedStake(d(100), d(100), cfg)
	if large.ImpactMultiplier.LessThanOrEqual(small.ImpactMultiplier) {
		t.Errorf("stake against a small pool should pay a larger multiplier: small=%s large=%s",
			small.ImpactMultiplier, large.ImpactMultiplier)
	}
}

func TestComputeImpactAdjustedStake_MultiplierCapped(t *testing.T) {
	cfg := DefaultConfig()
	// A stake vastly larger than the pool hits the multiplier cap instead of
	// consuming the whole stake.
	res := ComputeImpactAdjustedStake(d(1_000_000), d(1), cfg)
	if !res.ImpactMultiplier.Equal(cfg.ImpactMaxMultiplier) {
		t.Errorf("expected capped multiplier %s, got %s", cfg.ImpactMaxMultiplier, res.ImpactMultiplier)
	}
	if res.EffectiveStake.LessThanOrEqual(decimal.Zero) {
		t.Errorf("capped multiplier below 1 must leave a positive effective stake, got %s", res.EffectiveStake)
	}
}

func TestComputeImpactAdjustedStake_FullConsumptionSignalsRejection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ImpactMaxMultiplier = decimal.NewFromInt(1)
	cfg.ImpactFeeCoefficient = decimal.NewFromInt(1000)

	res := ComputeImpactAdjustedStake(d(500), d(1), cfg)
	if !res.EffectiveStake.IsZero() {
		t.Errorf("fee consuming the stake must yield zero effective stake, got %s", res.EffectiveStake)
	}
}

func TestComputeImpactAdjustedStake_NonPositiveStake(t *testing.T) {
	cfg := DefaultConfig()
	for _, s := range []float64{0, -5} {
		res := ComputeImpactAdjustedStake(d(s), d(1000), cfg)
		if !res.EffectiveStake.IsZero() || !res.ImpactFee.IsZero() {
			t.Errorf("non-positive stake %v should produce zeros, got %+v", s, res)
		}
	}
}
