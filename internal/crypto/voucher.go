package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Voucher authorizes one payout. The signature covers the ref, wallet, and
// amount so a client cannot replay the payload against a different wallet
// or amount.
type Voucher struct {
	Ref       string
	Wallet    string
	AmountTAI decimal.Decimal
}

// message is the canonical byte form that is signed. Field order and the
// separator are fixed; changing either invalidates outstanding vouchers.
func (v Voucher) message() []byte {
	return []byte(v.Ref + "\x00" + v.Wallet + "\x00" + v.AmountTAI.String())
}

// Signer signs payout vouchers with the treasury ed25519 key.
type Signer struct {
	priv ed25519.PrivateKey
}

// NewSigner builds a Signer from a hex-encoded 32-byte seed, typically
// obtained through LoadSeed.
func NewSigner(seedHex string) (*Signer, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode signer seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypto: expected %d-byte seed, got %d bytes", ed25519.SeedSize, len(seed))
	}
	return &Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// Sign returns the base64-encoded signature over the voucher.
func (s *Signer) Sign(v Voucher) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(s.priv, v.message()))
}

// PublicKeyHex returns the hex-encoded public key for verifiers.
func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.priv.Public().(ed25519.PublicKey))
}

// Verify checks a base64 signature over the voucher against a hex-encoded
// public key.
func Verify(pubHex string, v Voucher, sigB64 string) error {
	pub, err := hex.DecodeString(pubHex)
	if err != nil {
		return fmt.Errorf("crypto: decode public key: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("crypto: expected %d-byte public key, got %d bytes", ed25519.PublicKeySize, len(pub))
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return fmt.Errorf("crypto: decode signature: %w", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), v.message(), sig) {
		return errors.New("crypto: voucher signature invalid")
	}
	return nil
}
