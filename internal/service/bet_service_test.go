package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taibet/taibet/internal/domain"
	"github.com/taibet/taibet/internal/pricing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newTestBetService(store *fakeMarketStore, cfg pricing.Config, maxRetries int) *BetService {
	return NewBetService(store, newFakeFeePoolStore(), fakeBus{}, nil, cfg, maxRetries, testLogger())
}

func activeMarket(id string) domain.Market {
	now := time.Now().UTC()
	return domain.Market{
		ID:        id,
		Title:     "test market",
		Status:    domain.MarketStatusActive,
		YesPool:   decimal.Zero,
		NoPool:    decimal.Zero,
		TotalPool: decimal.Zero,
		TotalFees: decimal.Zero,
		ClosesAt:  now.Add(time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPlaceBet_FirstBetAppliesPlatformFeeOnly(t *testing.T) {
	store := newFakeMarketStore()
	if err := store.Create(context.Background(), activeMarket("m1")); err != nil {
		t.Fatal(err)
	}

	cfg := pricing.DefaultConfig()
	cfg.FeeRate = d(0.05)
	cfg.ImpactFeeCoefficient = decimal.Zero

	svc := newTestBetService(store, cfg, 3)
	detail, err := svc.PlaceBet(context.Background(), "m1", "w1", domain.SideYes, d(100))
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}

	if !detail.Stake.FeeAmount.Equal(d(5)) {
		t.Errorf("expected fee 5, got %s", detail.Stake.FeeAmount)
	}
	if !detail.Stake.NetAmount.Equal(d(95)) {
		t.Errorf("expected net 95, got %s", detail.Stake.NetAmount)
	}
	if !detail.Market.YesPool.Equal(d(95)) {
		t.Errorf("expected yes pool 95, got %s", detail.Market.YesPool)
	}
	if !detail.Market.TotalFees.Equal(d(5)) {
		t.Errorf("expected total fees 5, got %s", detail.Market.TotalFees)
	}
	if detail.Market.Version != 1 {
		t.Errorf("expected version 1, got %d", detail.Market.Version)
	}
}

func TestPlaceBet_SequencesAreGapFree(t *testing.T) {
	store := newFakeMarketStore()
	if err := store.Create(context.Background(), activeMarket("m1")); err != nil {
		t.Fatal(err)
	}

	svc := newTestBetService(store, pricing.DefaultConfig(), 3)

	const n = 10
	sides := []domain.Side{domain.SideYes, domain.SideNo}
	for i := 0; i < n; i++ {
		if _, err := svc.PlaceBet(context.Background(), "m1", "w1", sides[i%2], d(50)); err != nil {
			t.Fatalf("bet %d: %v", i+1, err)
		}
	}

	snaps := store.snapshotsFor("m1")
	if len(snaps) != n {
		t.Fatalf("expected %d snapshots, got %d", n, len(snaps))
	}
	for i, snap := range snaps {
		if snap.Sequence != int64(i+1) {
			t.Errorf("snapshot %d has sequence %d, want %d", i, snap.Sequence, i+1)
		}
	}
}

func TestPlaceBet_ConcurrentBetsProduceGapFreeSequences(t *testing.T) {
	store := newFakeMarketStore()
	if err := store.Create(context.Background(), activeMarket("m1")); err != nil {
		t.Fatal(err)
	}

	// Real contention: every bet races the version check and retries on
	// conflict, so the budget must cover the worst-case pile-up.
	const n = 16
	svc := newTestBetService(store, pricing.DefaultConfig(), n*n)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		side := domain.SideYes
		if i%2 == 1 {
			side = domain.SideNo
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceBet(context.Background(), "m1", "w1", side, d(50))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent bet: %v", err)
		}
	}

	snaps := store.snapshotsFor("m1")
	if len(snaps) != n {
		t.Fatalf("expected %d snapshots, got %d", n, len(snaps))
	}
	seen := make(map[int64]bool, n)
	for _, snap := range snaps {
		if snap.Sequence < 1 || snap.Sequence > n {
			t.Errorf("sequence %d outside [1, %d]", snap.Sequence, n)
		}
		if seen[snap.Sequence] {
			t.Errorf("sequence %d emitted twice", snap.Sequence)
		}
		seen[snap.Sequence] = true
	}
	if len(seen) != n {
		t.Errorf("got %d distinct sequences, want %d", len(seen), n)
	}
}

func TestPlaceBet_RetriesConflictThenSucceeds(t *testing.T) {
	store := newFakeMarketStore()
	if err := store.Create(context.Background(), activeMarket("m1")); err != nil {
		t.Fatal(err)
	}
	store.conflicts = 2

	svc := newTestBetService(store, pricing.DefaultConfig(), 3)
	if _, err := svc.PlaceBet(context.Background(), "m1", "w1", domain.SideYes, d(10)); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
}

func TestPlaceBet_SurfacesConflictAfterRetryBudget(t *testing.T) {
	store := newFakeMarketStore()
	if err := store.Create(context.Background(), activeMarket("m1")); err != nil {
		t.Fatal(err)
	}
	store.conflicts = 10

	svc := newTestBetService(store, pricing.DefaultConfig(), 3)
	_, err := svc.PlaceBet(context.Background(), "m1", "w1", domain.SideYes, d(10))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPlaceBet_RejectsClosedMarket(t *testing.T) {
	store := newFakeMarketStore()
	m := activeMarket("m1")
	m.ClosesAt = time.Now().UTC().Add(-time.Minute)
	if err := store.Create(context.Background(), m); err != nil {
		t.Fatal(err)
	}

	svc := newTestBetService(store, pricing.DefaultConfig(), 3)
	_, err := svc.PlaceBet(context.Background(), "m1", "w1", domain.SideYes, d(10))
	if !errors.Is(err, domain.ErrMarketClosed) {
		t.Fatalf("expected ErrMarketClosed, got %v", err)
	}
}

func TestPlaceBet_RejectsInvalidInput(t *testing.T) {
	store := newFakeMarketStore()
	if err := store.Create(context.Background(), activeMarket("m1")); err != nil {
		t.Fatal(err)
	}
	svc := newTestBetService(store, pricing.DefaultConfig(), 3)

	if _, err := svc.PlaceBet(context.Background(), "m1", "w1", domain.Side("maybe"), d(10)); !errors.Is(err, domain.ErrInvalidSide) {
		t.Errorf("expected ErrInvalidSide, got %v", err)
	}
	if _, err := svc.PlaceBet(context.Background(), "m1", "w1", domain.SideYes, d(0)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if _, err := svc.PlaceBet(context.Background(), "m1", "w1", domain.SideYes, d(-3)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for negative, got %v", err)
	}
	if _, err := svc.PlaceBet(context.Background(), "missing", "w1", domain.SideYes, d(10)); !errors.Is(err, domain.ErrMarketNotFound) {
		t.Errorf("expected ErrMarketNotFound, got %v", err)
	}
}

func TestRedriveFeeCredits_CreditsMissedStakes(t *testing.T) {
	store := newFakeMarketStore()
	fees := newFakeFeePoolStore()
	svc := NewBetService(store, fees, fakeBus{}, nil, pricing.DefaultConfig(), 3, testLogger())

	// Stakes whose settlement tail never landed a ledger credit.
	for i := 0; i < 3; i++ {
		fees.uncredited = append(fees.uncredited, domain.Stake{
			ID:        fmt.Sprintf("s%d", i),
			FeeAmount: d(10),
		})
	}

	credited, err := svc.RedriveFeeCredits(context.Background())
	if err != nil {
		t.Fatalf("redrive: %v", err)
	}
	if credited != 3 {
		t.Fatalf("credited %d stakes, want 3", credited)
	}

	balances, err := fees.Balances(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var total decimal.Decimal
	for _, b := range balances {
		total = total.Add(b)
	}
	want := pricing.DistributeFees(d(30)).Sum()
	if !total.Equal(want) {
		t.Errorf("ledger total %s, want %s", total, want)
	}

	// A second run finds nothing; credits are idempotent per stake.
	credited, err = svc.RedriveFeeCredits(context.Background())
	if err != nil {
		t.Fatalf("second redrive: %v", err)
	}
	if credited != 0 {
		t.Errorf("second redrive credited %d stakes, want 0", credited)
	}
}

func TestPlaceBet_ImpactFeeRejectsWhenStakeConsumed(t *testing.T) {
	store := newFakeMarketStore()
	if err := store.Create(context.Background(), activeMarket("m1")); err != nil {
		t.Fatal(err)
	}

	cfg := pricing.DefaultConfig()
	cfg.ImpactMaxMultiplier = decimal.NewFromInt(1)
	cfg.ImpactFeeCoefficient = decimal.NewFromInt(1000)

	svc := newTestBetService(store, cfg, 3)
	_, err := svc.PlaceBet(context.Background(), "m1", "w1", domain.SideYes, d(100))
	if !errors.Is(err, domain.ErrInsufficientNetStake) {
		t.Fatalf("expected ErrInsufficientNetStake, got %v", err)
	}
}
