// Package pricing implements the bonding-curve odds engine, the
// impact-adjusted stake calculator, and the DAO fee split for binary
// prediction markets.
//
// All functions are pure and deterministic over shopspring/decimal inputs —
// never float64 for money. Constants are injected through Config so pricing
// can be tuned without touching the engine.
package pricing

import "github.com/shopspring/decimal"

// Scale is the number of decimal places odds and fee amounts are rounded to.
// Nine matches the nano-unit precision of on-chain TON/TAI amounts.
const Scale int32 = 9

// Fee split in basis points of 10_000. Amounts are floored per pool so the
// distributed sum never exceeds the input fee.
const (
	CreateBps   = 500
	JuryBps     = 1000
	InviteBps   = 500
	PlatformBps = 500
	ReserveBps  = 2500

	bpsDenominator = 10_000
)

// Config holds the tunable pricing constants.
type Config struct {
	// MinOdds and MaxOdds clamp every quoted payout multiplier.
	MinOdds decimal.Decimal
	MaxOdds decimal.Decimal
	// DefaultOdds is quoted while the market has no pool at all.
	DefaultOdds decimal.Decimal

	// MinAbsolutePool and MinPoolRatio floor the effective side pool so a
	// near-empty side cannot produce division blow-ups or absurd odds.
	MinAbsolutePool decimal.Decimal
	MinPoolRatio    decimal.Decimal

	// SideCapRatio bounds a side's implied probability; OtherFloorRatio
	// symmetrically reserves probability mass for the opposing side so
	// early imbalance cannot force near-certain pricing.
	SideCapRatio    decimal.Decimal
	OtherFloorRatio decimal.Decimal

	// FeeRate is the platform fee taken off the gross stake before impact
	// adjustment.
	FeeRate decimal.Decimal

	// ImpactFeeCoefficient scales the anti-manipulation impact fee with the
	// stake's size relative to the pre-trade pool. ImpactMinPool bounds the
	// denominator for young pools; ImpactMaxMultiplier caps the fee share.
	ImpactFeeCoefficient decimal.Decimal
	ImpactMinPool        decimal.Decimal
	ImpactMaxMultiplier  decimal.Decimal
}

// DefaultConfig returns the production pricing constants.
func DefaultConfig() Config {
	return Config{
		MinOdds:              decimal.NewFromFloat(1.01),
		MaxOdds:              decimal.NewFromFloat(10.0),
		DefaultOdds:          decimal.NewFromFloat(2.0),
		MinAbsolutePool:      decimal.NewFromInt(10),
		MinPoolRatio:         decimal.NewFromFloat(0.05),
		SideCapRatio:         decimal.NewFromFloat(0.95),
		OtherFloorRatio:      decimal.NewFromFloat(0.05),
		FeeRate:              decimal.NewFromFloat(0.05),
		ImpactFeeCoefficient: decimal.NewFromFloat(0.1),
		ImpactMinPool:        decimal.NewFromInt(100),
		ImpactMaxMultiplier:  decimal.NewFromFloat(0.5),
	}
}
