package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockHeld      = errors.New("lock already held")

	// ErrMarketNotFound is returned when a bet references an unknown market.
	ErrMarketNotFound = errors.New("market not found")
	// ErrMarketClosed is returned when a market no longer accepts bets.
	ErrMarketClosed = errors.New("market closed")
	// ErrInvalidSide is returned for a side outside {yes,no}.
	ErrInvalidSide = errors.New("invalid side")
	// ErrInvalidAmount is returned for a non-positive or non-finite stake.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientNetStake is returned when the impact fee would consume
	// the whole stake, leaving nothing to enter the pool.
	ErrInsufficientNetStake = errors.New("insufficient net stake")
	// ErrConflict signals an optimistic-lock version mismatch. The settlement
	// retries it transparently up to a bound before surfacing it.
	ErrConflict = errors.New("persistence conflict")

	// ErrPaymentTimeout is returned when confirmation polling exhausts its
	// attempt budget without observing a matching payment. Recoverable: the
	// client starts a fresh session; the old memo is never reused.
	ErrPaymentTimeout = errors.New("payment timeout")
	// ErrSessionExpired is returned for operations on a session past its TTL.
	ErrSessionExpired = errors.New("purchase session expired")
	// ErrMemoUsed is returned when a memo is already bound to a purchase.
	ErrMemoUsed = errors.New("memo already used")
	// ErrSoldOut is returned when the day's sale inventory is exhausted.
	ErrSoldOut = errors.New("sale sold out")

	// ErrDropClosed is returned when no claimable rain drop exists for the
	// caller, either by expiry, capacity, or a prior claim.
	ErrDropClosed = errors.New("rain drop closed")
)
