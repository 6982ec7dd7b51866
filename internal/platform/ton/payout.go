package ton

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PayoutIntent is the unsigned token payout handed to the client wallet for
// signing. The server never signs or broadcasts the transfer itself; the
// client returns only the hash of the signed transaction. Voucher carries
// the treasury's ed25519 authorization over (ref, wallet, amount).
type PayoutIntent struct {
	Ref        string          `json:"ref"` // purchase or claim id
	Wallet     string          `json:"wallet"`
	AmountTAI  decimal.Decimal `json:"amount_tai"`
	Memo       string          `json:"memo,omitempty"`
	Voucher    string          `json:"voucher,omitempty"` // base64 signature
	ValidUntil int64           `json:"valid_until"`       // unix seconds
}

// BuildPayoutPayload encodes a payout intent as a base64 JSON payload.
func BuildPayoutPayload(ref, wallet string, amount decimal.Decimal, memo, voucherSig string, validUntil time.Time) (string, error) {
	intent := PayoutIntent{
		Ref:        ref,
		Wallet:     wallet,
		AmountTAI:  amount,
		Memo:       memo,
		Voucher:    voucherSig,
		ValidUntil: validUntil.Unix(),
	}
	raw, err := json.Marshal(intent)
	if err != nil {
		return "", fmt.Errorf("ton: encode payout intent: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodePayoutPayload parses a payload produced by BuildPayoutPayload.
func DecodePayoutPayload(payload string) (PayoutIntent, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return PayoutIntent{}, fmt.Errorf("ton: decode payout payload: %w", err)
	}
	var intent PayoutIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return PayoutIntent{}, fmt.Errorf("ton: parse payout intent: %w", err)
	}
	return intent, nil
}
