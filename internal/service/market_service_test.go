package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taibet/taibet/internal/domain"
	"github.com/taibet/taibet/internal/pricing"
)

// fakeStakeStore serves stakes from a slice.
type fakeStakeStore struct {
	stakes []domain.Stake
}

func (f *fakeStakeStore) GetByID(_ context.Context, id string) (domain.Stake, error) {
	for _, st := range f.stakes {
		if st.ID == id {
			return st, nil
		}
	}
	return domain.Stake{}, domain.ErrNotFound
}

func (f *fakeStakeStore) ListByMarket(_ context.Context, marketID string, _ domain.ListOpts) ([]domain.Stake, error) {
	var out []domain.Stake
	for _, st := range f.stakes {
		if st.MarketID == marketID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (f *fakeStakeStore) ListByWallet(_ context.Context, wallet string, _ domain.ListOpts) ([]domain.Stake, error) {
	var out []domain.Stake
	for _, st := range f.stakes {
		if st.Wallet == wallet {
			out = append(out, st)
		}
	}
	return out, nil
}

// fakeOddsStore serves snapshots from a slice, newest last.
type fakeOddsStore struct {
	snaps []domain.OddsSnapshot
}

func (f *fakeOddsStore) Latest(_ context.Context, marketID string) (domain.OddsSnapshot, error) {
	for i := len(f.snaps) - 1; i >= 0; i-- {
		if f.snaps[i].MarketID == marketID {
			return f.snaps[i], nil
		}
	}
	return domain.OddsSnapshot{}, domain.ErrNotFound
}

func (f *fakeOddsStore) ListSince(_ context.Context, marketID string, since int64, limit int) ([]domain.OddsSnapshot, error) {
	var out []domain.OddsSnapshot
	for _, snap := range f.snaps {
		if snap.MarketID == marketID && snap.Sequence > since {
			out = append(out, snap)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeOddsStore) ListBefore(context.Context, time.Time, int) ([]domain.OddsSnapshot, error) {
	return nil, nil
}

func (f *fakeOddsStore) DeleteBefore(context.Context, time.Time, int) (int64, error) {
	return 0, nil
}

func newTestMarketService(markets *fakeMarketStore, stakes *fakeStakeStore, odds *fakeOddsStore) *MarketService {
	return NewMarketService(markets, stakes, odds, newFakeFeePoolStore(), pricing.DefaultConfig(), testLogger())
}

func TestCreateMarket_Validation(t *testing.T) {
	svc := newTestMarketService(newFakeMarketStore(), &fakeStakeStore{}, &fakeOddsStore{})
	ctx := context.Background()
	future := time.Now().Add(time.Hour)

	if _, err := svc.CreateMarket(ctx, "", future); err == nil {
		t.Fatal("CreateMarket with empty title: expected error, got nil")
	}
	if _, err := svc.CreateMarket(ctx, "closes in the past", time.Now().Add(-time.Hour)); !errors.Is(err, domain.ErrMarketClosed) {
		t.Fatalf("CreateMarket in the past: got %v, want ErrMarketClosed", err)
	}

	m, err := svc.CreateMarket(ctx, "will it rain", future)
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	if m.Status != domain.MarketStatusActive {
		t.Fatalf("Status = %q, want active", m.Status)
	}
	if !m.TotalPool.IsZero() || m.Version != 0 {
		t.Fatalf("new market not empty: pool=%s version=%d", m.TotalPool, m.Version)
	}
}

func TestGetMarket_QuotesDefaultOddsOnEmptyPools(t *testing.T) {
	store := newFakeMarketStore()
	svc := newTestMarketService(store, &fakeStakeStore{}, &fakeOddsStore{})
	ctx := context.Background()

	m, err := svc.CreateMarket(ctx, "empty market", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}

	detail, err := svc.GetMarket(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	want := pricing.DefaultConfig().DefaultOdds
	if !detail.YesOdds.Equal(want) || !detail.NoOdds.Equal(want) {
		t.Fatalf("odds = %s/%s, want %s on both sides", detail.YesOdds, detail.NoOdds, want)
	}
}

func TestMarketStakes(t *testing.T) {
	store := newFakeMarketStore()
	stakes := &fakeStakeStore{}
	svc := newTestMarketService(store, stakes, &fakeOddsStore{})
	ctx := context.Background()

	m, err := svc.CreateMarket(ctx, "staked market", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	stakes.stakes = []domain.Stake{
		{ID: "s1", MarketID: m.ID, Wallet: "w1", NetAmount: decimal.NewFromInt(95)},
		{ID: "s2", MarketID: "other", Wallet: "w1", NetAmount: decimal.NewFromInt(50)},
		{ID: "s3", MarketID: m.ID, Wallet: "w2", NetAmount: decimal.NewFromInt(10)},
	}

	got, err := svc.MarketStakes(ctx, m.ID, domain.ListOpts{Limit: 50})
	if err != nil {
		t.Fatalf("MarketStakes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("MarketStakes returned %d stakes, want 2", len(got))
	}

	if _, err := svc.MarketStakes(ctx, "missing", domain.ListOpts{}); !errors.Is(err, domain.ErrMarketNotFound) {
		t.Fatalf("MarketStakes(missing): got %v, want ErrMarketNotFound", err)
	}

	byWallet, err := svc.WalletStakes(ctx, "w1", domain.ListOpts{Limit: 50})
	if err != nil {
		t.Fatalf("WalletStakes: %v", err)
	}
	if len(byWallet) != 2 {
		t.Fatalf("WalletStakes returned %d stakes, want 2", len(byWallet))
	}
}

func TestOddsSince_UnknownMarket(t *testing.T) {
	svc := newTestMarketService(newFakeMarketStore(), &fakeStakeStore{}, &fakeOddsStore{})

	if _, err := svc.OddsSince(context.Background(), "missing", 0, 10); !errors.Is(err, domain.ErrMarketNotFound) {
		t.Fatalf("OddsSince(missing): got %v, want ErrMarketNotFound", err)
	}
}
