package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/taibet/taibet/internal/domain"
)

func newTestRainService(store *fakeRainStore) *RainService {
	cfg := RainConfig{
		AmountTAI:       d(10_000),
		TicketPriceTON:  d(0.5),
		MinBonusTAI:     d(10),
		MaxBonusTAI:     d(100),
		MaxParticipants: 3,
		Duration:        time.Hour,
	}
	return NewRainService(store, nil, nil, cfg, testLogger())
}

func TestEnsureActiveDrop_SkipsWhileActive(t *testing.T) {
	store := newFakeRainStore()
	svc := newTestRainService(store)

	first, err := svc.EnsureActiveDrop(context.Background())
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	second, err := svc.EnsureActiveDrop(context.Background())
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("duplicate run created a new drop: %s vs %s", second.ID, first.ID)
	}
	if len(store.drops) != 1 {
		t.Errorf("expected 1 drop, got %d", len(store.drops))
	}
}

func TestEnsureActiveDrop_ReplacesExpiredDrop(t *testing.T) {
	store := newFakeRainStore()
	svc := newTestRainService(store)

	first, err := svc.EnsureActiveDrop(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Force the drop past its deadline.
	stale := store.drops[first.ID]
	stale.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	store.drops[first.ID] = stale

	second, err := svc.EnsureActiveDrop(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.ID == first.ID {
		t.Error("expired drop was not replaced")
	}
	if store.drops[first.ID].Status != domain.DropExpired {
		t.Errorf("stale drop not expired, status %s", store.drops[first.ID].Status)
	}
}

func TestClaim_BonusWithinRangeAndPayload(t *testing.T) {
	store := newFakeRainStore()
	svc := newTestRainService(store)

	if _, err := svc.EnsureActiveDrop(context.Background()); err != nil {
		t.Fatal(err)
	}

	claim, err := svc.Claim(context.Background(), "w1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claim.BonusTAI.LessThan(d(10)) || claim.BonusTAI.GreaterThan(d(100)) {
		t.Errorf("bonus %s outside [10,100]", claim.BonusTAI)
	}
	if claim.PayoutPayload == "" {
		t.Error("expected payout payload")
	}
}

func TestClaim_OncePerWalletAndCapacityBounded(t *testing.T) {
	store := newFakeRainStore()
	svc := newTestRainService(store)

	if _, err := svc.EnsureActiveDrop(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Claim(context.Background(), "w1"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Claim(context.Background(), "w1"); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("repeat wallet: expected ErrAlreadyExists, got %v", err)
	}

	// Fill the remaining capacity (max participants 3).
	for i := 2; i <= 3; i++ {
		if _, err := svc.Claim(context.Background(), fmt.Sprintf("w%d", i)); err != nil {
			t.Fatalf("claim w%d: %v", i, err)
		}
	}
	if _, err := svc.Claim(context.Background(), "w4"); !errors.Is(err, domain.ErrDropClosed) {
		t.Errorf("over capacity: expected ErrDropClosed, got %v", err)
	}
}

func TestClaim_NoActiveDrop(t *testing.T) {
	svc := newTestRainService(newFakeRainStore())
	if _, err := svc.Claim(context.Background(), "w1"); !errors.Is(err, domain.ErrDropClosed) {
		t.Errorf("expected ErrDropClosed, got %v", err)
	}
}
