package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusDraft   MarketStatus = "draft"
	MarketStatusActive  MarketStatus = "active"
	MarketStatusSettled MarketStatus = "settled"
)

// Side is a binary outcome choice on a market.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Valid reports whether s is one of the two accepted sides.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Market is a binary prediction market with shared yes/no stake pools.
// Pool fields are mutated only by the settlement transaction. Version is
// the optimistic-lock counter and the source of the per-market odds
// snapshot sequence.
type Market struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Status    MarketStatus    `json:"status"`
	YesPool   decimal.Decimal `json:"yes_pool"`
	NoPool    decimal.Decimal `json:"no_pool"`
	TotalPool decimal.Decimal `json:"total_pool"`
	TotalFees decimal.Decimal `json:"total_fees"`
	Version   int64           `json:"version"`
	ClosesAt  time.Time       `json:"closes_at"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AcceptsBets reports whether the market can take a new stake at the given
// time: it must be active and not past its close time.
func (m Market) AcceptsBets(now time.Time) bool {
	return m.Status == MarketStatusActive && now.Before(m.ClosesAt)
}

// SidePool returns the committed pool for the given side.
func (m Market) SidePool(side Side) decimal.Decimal {
	if side == SideYes {
		return m.YesPool
	}
	return m.NoPool
}

// MarketDetail is the market view returned after a settled bet: the updated
// market plus the odds quoted against the post-trade pools.
type MarketDetail struct {
	Market  Market          `json:"market"`
	YesOdds decimal.Decimal `json:"yes_odds"`
	NoOdds  decimal.Decimal `json:"no_odds"`
	Stake   *Stake          `json:"stake,omitempty"`
}
