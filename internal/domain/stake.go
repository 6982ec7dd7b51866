package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stake is a single committed wager. Rows are immutable once written: the
// settlement transaction inserts them together with the market pool update
// and never touches them again.
type Stake struct {
	ID              string          `json:"id"`
	MarketID        string          `json:"market_id"`
	Wallet          string          `json:"wallet"`
	Side            Side            `json:"side"`
	GrossAmount     decimal.Decimal `json:"gross_amount"`
	FeeAmount       decimal.Decimal `json:"fee_amount"` // platform fee + impact fee
	NetAmount       decimal.Decimal `json:"net_amount"` // contribution that entered the pool
	QuotedOdds      decimal.Decimal `json:"quoted_odds"`
	PotentialPayout decimal.Decimal `json:"potential_payout"`
	CreatedAt       time.Time       `json:"created_at"`
}
