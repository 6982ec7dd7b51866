package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseState is the server-side state of a subsidized token purchase.
//
// Transitions: pending → awaiting_signature → completed, or pending →
// expired when no matching payment arrives before the poll budget runs out.
// Terminal states are never left; resubmitting the signature of a completed
// purchase is a no-op.
type PurchaseState string

const (
	PurchasePending           PurchaseState = "pending"
	PurchaseAwaitingSignature PurchaseState = "awaiting_signature"
	PurchaseCompleted         PurchaseState = "completed"
	PurchaseExpired           PurchaseState = "expired"
)

// Terminal reports whether the state can no longer change.
func (s PurchaseState) Terminal() bool {
	return s == PurchaseCompleted || s == PurchaseExpired
}

// PurchaseSession reserves a unique on-chain memo for one buyer. The memo is
// the correlation id between the session and the TON transfer that pays for
// it; a memo is consumed by exactly one purchase and never reused, even
// after the session expires.
type PurchaseSession struct {
	ID         string          `json:"id"`
	Wallet     string          `json:"wallet"`
	Memo       string          `json:"memo"`
	PriceTON   decimal.Decimal `json:"price_ton"`
	BaseTAI    decimal.Decimal `json:"base_tai"`
	MaxTAI     decimal.Decimal `json:"max_tai"`
	Accelerate bool            `json:"accelerate"`
	ExpiresAt  time.Time       `json:"expires_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Expired reports whether the session TTL has passed.
func (s PurchaseSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Purchase tracks a session through payment confirmation and payout
// distribution. PayoutPayload is the unsigned transaction returned to the
// client for signing; the server never holds the buyer's key.
type Purchase struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id"`
	Wallet        string          `json:"wallet"`
	Memo          string          `json:"memo"`
	State         PurchaseState   `json:"state"`
	AmountTAI     decimal.Decimal `json:"amount_tai"`
	Multiplier    decimal.Decimal `json:"multiplier"`
	PayoutPayload string          `json:"payout_payload,omitempty"`
	SignedTxHash  string          `json:"signed_tx_hash,omitempty"`
	PaymentTxHash string          `json:"payment_tx_hash,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// SaleDay is one calendar day of the subsidized token sale. SaleCode is the
// date in YYYY-MM-DD form and is the natural identity used instead of any
// process-global "current sale" state.
type SaleDay struct {
	SaleCode      string          `json:"sale_code"`
	PriceTON      decimal.Decimal `json:"price_ton"`
	BaseTAI       decimal.Decimal `json:"base_tai"`
	MaxTAI        decimal.Decimal `json:"max_tai"`
	TotalTAI      decimal.Decimal `json:"total_tai"`
	SoldTAI       decimal.Decimal `json:"sold_tai"`
	SoldOut       bool            `json:"sold_out"`
	Accelerate    bool            `json:"accelerate"`
	AdjustPercent int             `json:"adjust_percent"`
	ExpiresAt     time.Time       `json:"expires_at"`
	CreatedAt     time.Time       `json:"created_at"`
}
