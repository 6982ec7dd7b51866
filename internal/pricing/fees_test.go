package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDistributeFees_SumNeverExceedsTotal(t *testing.T) {
	fees := []float64{0, 0.000000001, 0.5, 1, 3.333333333, 100, 12_345.678901234, 1e9}

	for _, f := range fees {
		alloc := DistributeFees(d(f))
		if alloc.Sum().GreaterThan(d(f)) {
			t.Errorf("allocations %s exceed total fee %v", alloc.Sum(), f)
		}
		for pool, amt := range alloc.ByPool() {
			if amt.LessThan(decimal.Zero) {
				t.Errorf("pool %s got negative allocation %s for fee %v", pool, amt, f)
			}
		}
	}
}

func TestDistributeFees_KnownSplit(t *testing.T) {
	alloc := DistributeFees(d(10_000))

	want := map[string]decimal.Decimal{
		"create":   d(500),
		"jury":     d(1000),
		"invite":   d(500),
		"platform": d(500),
		"reserve":  d(2500),
	}
	got := map[string]decimal.Decimal{
		"create":   alloc.Create,
		"jury":     alloc.Jury,
		"invite":   alloc.Invite,
		"platform": alloc.Platform,
		"reserve":  alloc.Reserve,
	}
	for pool, w := range want {
		if !got[pool].Equal(w) {
			t.Errorf("pool %s: expected %s, got %s", pool, w, got[pool])
		}
	}
}

func TestDistributeFees_ZeroAndNegative(t *testing.T) {
	for _, f := range []float64{0, -10} {
		alloc := DistributeFees(d(f))
		if !alloc.Sum().IsZero() {
			t.Errorf("fee %v should allocate nothing, got %s", f, alloc.Sum())
		}
	}
}

func TestDistributeFees_FloorsEachPool(t *testing.T) {
	// A fee whose bps shares do not divide evenly must floor each pool so
	// the remainder is left behind rather than over-credited.
	fee := decimal.RequireFromString("0.000000019")
	alloc := DistributeFees(fee)
	if alloc.Sum().GreaterThan(fee) {
		t.Errorf("floored allocations %s exceed fee %s", alloc.Sum(), fee)
	}
}
