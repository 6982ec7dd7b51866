package domain

import "github.com/shopspring/decimal"

// DAOPool names one of the five reward ledgers that protocol fees are split
// into. Pool balances are cumulative; they are decremented only by external
// claim operations, never by the settlement path.
type DAOPool string

const (
	PoolCreate   DAOPool = "create"
	PoolJury     DAOPool = "jury"
	PoolInvite   DAOPool = "invite"
	PoolPlatform DAOPool = "platform"
	PoolReserve  DAOPool = "reserve"
)

// DAOPools lists all ledgers in a stable order.
var DAOPools = []DAOPool{PoolCreate, PoolJury, PoolInvite, PoolPlatform, PoolReserve}

// FeeAllocation is the result of splitting a fee across the DAO ledgers.
// Each amount is floored individually so the sum never exceeds the input
// fee; the flooring remainder stays in the market's total_fees and is not
// tracked separately.
type FeeAllocation struct {
	Create   decimal.Decimal `json:"create"`
	Jury     decimal.Decimal `json:"jury"`
	Invite   decimal.Decimal `json:"invite"`
	Platform decimal.Decimal `json:"platform"`
	Reserve  decimal.Decimal `json:"reserve"`
}

// ByPool returns the allocation keyed by ledger name.
func (a FeeAllocation) ByPool() map[DAOPool]decimal.Decimal {
	return map[DAOPool]decimal.Decimal{
		PoolCreate:   a.Create,
		PoolJury:     a.Jury,
		PoolInvite:   a.Invite,
		PoolPlatform: a.Platform,
		PoolReserve:  a.Reserve,
	}
}

// Sum returns the total of all five allocations.
func (a FeeAllocation) Sum() decimal.Decimal {
	return a.Create.Add(a.Jury).Add(a.Invite).Add(a.Platform).Add(a.Reserve)
}
