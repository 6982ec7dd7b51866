package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination for list queries. Cursor is an opaque token
// returned by the previous page (empty for the first page).
type ListOpts struct {
	Limit  int
	Cursor string
}

// MarketQuery filters and orders market listings.
type MarketQuery struct {
	ListOpts
	Status MarketStatus // empty = all
	Sort   string       // "created_at" (default), "close_time", "total_pool"
}

// Settlement bundles everything one successful bet must persist atomically:
// the market row update (guarded by the prior version), the immutable stake,
// and the odds snapshot whose sequence equals the market's new version.
type Settlement struct {
	Market      Market // updated pools; Version already incremented
	PrevVersion int64  // expected committed version, for the optimistic check
	Stake       Stake
	Snapshot    OddsSnapshot
}

// MarketStore persists markets and applies settlements.
type MarketStore interface {
	Create(ctx context.Context, m Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	List(ctx context.Context, q MarketQuery) ([]Market, string, error)

	// CommitSettlement applies s as a single atomic unit. It returns
	// ErrConflict when the market row's version no longer matches
	// s.PrevVersion; the caller re-reads and retries up to a bound.
	CommitSettlement(ctx context.Context, s Settlement) error
}

// StakeStore reads immutable stake rows.
type StakeStore interface {
	GetByID(ctx context.Context, id string) (Stake, error)
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Stake, error)
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]Stake, error)
}

// OddsStore reads the append-only odds snapshot log. Snapshots are written
// only through MarketStore.CommitSettlement.
type OddsStore interface {
	Latest(ctx context.Context, marketID string) (OddsSnapshot, error)
	// ListSince returns snapshots with sequence > since in ascending order,
	// capped at limit. Used by stream subscribers to close sequence gaps.
	ListSince(ctx context.Context, marketID string, since int64, limit int) ([]OddsSnapshot, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]OddsSnapshot, error)
	// DeleteBefore removes at most limit snapshots created before the
	// cutoff, in ListBefore order, so a caller deletes exactly the rows it
	// just read.
	DeleteBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// FeePoolStore maintains the five cumulative DAO reward ledgers.
type FeePoolStore interface {
	// Credit applies alloc to the ledgers exactly once per stake: a repeat
	// call with the same stakeID is a no-op, so at-least-once delivery from
	// the async settlement path is safe.
	Credit(ctx context.Context, stakeID string, alloc FeeAllocation) error
	Balances(ctx context.Context) (map[DAOPool]decimal.Decimal, error)
	// UncreditedStakes returns stakes with no ledger credit yet, oldest
	// first. Feeds the redrive job that re-delivers credits the async
	// settlement tail failed to land.
	UncreditedStakes(ctx context.Context, limit int) ([]Stake, error)
}

// PurchaseStore persists purchase sessions and the purchase state machine.
type PurchaseStore interface {
	CreateSession(ctx context.Context, s PurchaseSession) error
	GetSession(ctx context.Context, wallet, memo string) (PurchaseSession, error)

	// CreatePurchase binds a memo to a purchase. ErrMemoUsed when the memo
	// already belongs to one.
	CreatePurchase(ctx context.Context, p Purchase) error
	GetPurchase(ctx context.Context, id string) (Purchase, error)
	GetPurchaseByMemo(ctx context.Context, wallet, memo string) (Purchase, error)

	// MarkPaid moves a pending purchase to awaiting_signature. The update is
	// conditional on state=pending so concurrent confirmation polls cannot
	// double-credit; the loser gets ErrAlreadyExists.
	MarkPaid(ctx context.Context, id, paymentTxHash, payoutPayload string, amount, multiplier decimal.Decimal) error

	// Complete records the signed payout hash. Completing an already
	// completed purchase with any signature returns the stored row and nil.
	Complete(ctx context.Context, id, signedTxHash string) (Purchase, error)

	// Expire moves a still-pending purchase to its terminal expired state.
	Expire(ctx context.Context, id string) error

	ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]Purchase, error)
	// DeleteTerminalBefore removes at most limit terminal purchases before
	// the cutoff, in ListTerminalBefore order.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// SaleStore persists one SaleDay row per calendar day.
type SaleStore interface {
	GetDay(ctx context.Context, saleCode string) (SaleDay, error)
	// CreateDay inserts a new day, returning ErrAlreadyExists if the code is
	// taken; the price adjustment job relies on this for idempotence.
	CreateDay(ctx context.Context, d SaleDay) error
	// MostRecent returns the latest day by sale code.
	MostRecent(ctx context.Context) (SaleDay, error)
	// AddSold increments sold_tai, failing with ErrSoldOut when the
	// increment would exceed total_tai or the day is already sold out.
	AddSold(ctx context.Context, saleCode string, amount decimal.Decimal) error
	// ReleaseSold decrements sold_tai, clearing sold_out when the total
	// drops back under total_tai. Compensates an AddSold whose purchase
	// did not go through.
	ReleaseSold(ctx context.Context, saleCode string, amount decimal.Decimal) error
}

// RainStore persists rain drops and their claims.
type RainStore interface {
	CreateDrop(ctx context.Context, d RainDrop) error
	// ActiveDrop returns the most recent active, unexpired drop.
	ActiveDrop(ctx context.Context, now time.Time) (RainDrop, error)
	// ExpireDrops marks active drops past their deadline as expired and
	// returns how many were transitioned.
	ExpireDrops(ctx context.Context, now time.Time) (int64, error)
	// CreateClaim inserts a claim and increments the drop's claimed counter
	// in one transaction. ErrAlreadyExists for a repeat wallet,
	// ErrDropClosed when capacity is exhausted.
	CreateClaim(ctx context.Context, c RainClaim) error
	ListClaims(ctx context.Context, dropID string, opts ListOpts) ([]RainClaim, error)
}
