package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DropStatus is the lifecycle state of a rain drop.
type DropStatus string

const (
	DropActive  DropStatus = "active"
	DropExpired DropStatus = "expired"
)

// RainDrop is a time-boxed subsidized token giveaway with a participant cap.
// At most one drop is active at any time; the scheduler skips creation while
// an unexpired drop exists.
type RainDrop struct {
	ID              string          `json:"id"`
	AmountTAI       decimal.Decimal `json:"amount_tai"`
	TicketPriceTON  decimal.Decimal `json:"ticket_price_ton"`
	MinBonusTAI     decimal.Decimal `json:"min_bonus_tai"`
	MaxBonusTAI     decimal.Decimal `json:"max_bonus_tai"`
	MaxParticipants int             `json:"max_participants"`
	Claimed         int             `json:"claimed"`
	Status          DropStatus      `json:"status"`
	ExpiresAt       time.Time       `json:"expires_at"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Open reports whether the drop still accepts claims.
func (d RainDrop) Open(now time.Time) bool {
	return d.Status == DropActive && now.Before(d.ExpiresAt) && d.Claimed < d.MaxParticipants
}

// RainClaim is one wallet's claim against a drop. A wallet can claim each
// drop at most once; the bonus is drawn from the drop's configured range.
type RainClaim struct {
	ID            string          `json:"id"`
	DropID        string          `json:"drop_id"`
	Wallet        string          `json:"wallet"`
	BonusTAI      decimal.Decimal `json:"bonus_tai"`
	PayoutPayload string          `json:"payout_payload"`
	CreatedAt     time.Time       `json:"created_at"`
}
