package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OddsSnapshot records the market pools and quoted odds immediately after a
// settlement. Sequence is strictly increasing per market with no gaps: it is
// taken from the market row's version counter inside the same transaction
// that mutates the pools, never from wall-clock time.
//
// The snapshot log is append-only and is the source of truth for live odds
// streams: subscribers detect a sequence gap and resync via ListSince.
type OddsSnapshot struct {
	MarketID    string          `json:"market_id"`
	Sequence    int64           `json:"sequence"`
	YesPool     decimal.Decimal `json:"yes_pool"`
	NoPool      decimal.Decimal `json:"no_pool"`
	TotalPool   decimal.Decimal `json:"total_pool"`
	YesOdds     decimal.Decimal `json:"yes_odds"`
	NoOdds      decimal.Decimal `json:"no_odds"`
	TriggerSide Side            `json:"trigger_side"`
	TriggerAmt  decimal.Decimal `json:"trigger_amount"`
	CreatedAt   time.Time       `json:"created_at"`
}
