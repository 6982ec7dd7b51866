package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/taibet/taibet/internal/domain"
)

// DistributeFees splits totalFee into the five DAO reward ledgers by the
// fixed basis-point table. Every allocation is floored individually, so the
// sum of the allocations never exceeds totalFee; the flooring remainder is
// implicit slack and is not tracked.
//
// The split is pure: the caller is responsible for crediting the ledgers
// atomically and retrying the whole credit on partial failure.
func DistributeFees(totalFee decimal.Decimal) domain.FeeAllocation {
	if totalFee.LessThanOrEqual(decimal.Zero) {
		return domain.FeeAllocation{
			Create:   decimal.Zero,
			Jury:     decimal.Zero,
			Invite:   decimal.Zero,
			Platform: decimal.Zero,
			Reserve:  decimal.Zero,
		}
	}

	return domain.FeeAllocation{
		Create:   share(totalFee, CreateBps),
		Jury:     share(totalFee, JuryBps),
		Invite:   share(totalFee, InviteBps),
		Platform: share(totalFee, PlatformBps),
		Reserve:  share(totalFee, ReserveBps),
	}
}

func share(total decimal.Decimal, bps int64) decimal.Decimal {
	return total.Mul(decimal.NewFromInt(bps)).
		Div(decimal.NewFromInt(bpsDenominator)).
		RoundDown(Scale)
}
