package service

import (
	"context"
	"testing"
	"time"
)

func TestAdjustPercentFor_StepTable(t *testing.T) {
	cases := []struct {
		sold float64
		want int
	}{
		{0, -30},
		{499_999, -30},
		{500_000, 0},
		{600_000, 0},
		{799_999, 0},
		{800_000, 30},
		{949_999, 30},
		{950_000, 50},
		{2_000_000, 50},
	}
	for _, tc := range cases {
		if got := AdjustPercentFor(d(tc.sold)); got != tc.want {
			t.Errorf("sold %v: expected %d%%, got %d%%", tc.sold, tc.want, got)
		}
	}
}

func TestEnsureDay_FirstDayUsesInitialPrice(t *testing.T) {
	svc := newTestSaleService(newFakeSaleStore())

	day, err := svc.EnsureDay(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ensure day: %v", err)
	}
	if !day.PriceTON.Equal(d(1)) {
		t.Errorf("expected initial price 1, got %s", day.PriceTON)
	}
	if day.AdjustPercent != 0 {
		t.Errorf("first day must not adjust, got %d%%", day.AdjustPercent)
	}
}

func TestEnsureDay_AdjustsFromPreviousDaySales(t *testing.T) {
	cases := []struct {
		sold      float64
		wantPrice float64
	}{
		{100_000, 0.7},   // -30%
		{600_000, 1.0},   // 0%
		{900_000, 1.3},   // +30%
		{1_000_000, 1.5}, // +50%
	}

	for _, tc := range cases {
		store := newFakeSaleStore()
		svc := newTestSaleService(store)

		yesterday := time.Now().AddDate(0, 0, -1)
		prev, err := svc.EnsureDay(context.Background(), yesterday)
		if err != nil {
			t.Fatal(err)
		}
		if err := store.AddSold(context.Background(), prev.SaleCode, d(tc.sold)); err != nil {
			t.Fatal(err)
		}

		day, err := svc.EnsureDay(context.Background(), time.Now())
		if err != nil {
			t.Fatal(err)
		}
		if !day.PriceTON.Equal(d(tc.wantPrice)) {
			t.Errorf("sold %v: expected price %v, got %s", tc.sold, tc.wantPrice, day.PriceTON)
		}
	}
}

func TestEnsureDay_IdempotentPerDate(t *testing.T) {
	store := newFakeSaleStore()
	svc := newTestSaleService(store)

	first, err := svc.EnsureDay(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}

	// Simulate sales happening, then a duplicate job run.
	if err := store.AddSold(context.Background(), first.SaleCode, d(123)); err != nil {
		t.Fatal(err)
	}
	second, err := svc.EnsureDay(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if !second.PriceTON.Equal(first.PriceTON) {
		t.Errorf("duplicate run changed the price: %s vs %s", second.PriceTON, first.PriceTON)
	}
	if !second.SoldTAI.Equal(d(123)) {
		t.Errorf("duplicate run must return the live row, got sold %s", second.SoldTAI)
	}
}

func TestRecordSold_SoldOutGuard(t *testing.T) {
	store := newFakeSaleStore()
	svc := newTestSaleService(store)

	day, err := svc.EnsureDay(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.RecordSold(context.Background(), day.SaleCode, d(999_999)); err != nil {
		t.Fatalf("record within inventory: %v", err)
	}
	err = svc.RecordSold(context.Background(), day.SaleCode, d(2))
	if err == nil {
		t.Fatal("expected sold-out rejection")
	}

	got, err := store.GetDay(context.Background(), day.SaleCode)
	if err != nil {
		t.Fatal(err)
	}
	if got.SoldTAI.GreaterThan(got.TotalTAI) {
		t.Errorf("sold %s exceeds inventory %s", got.SoldTAI, got.TotalTAI)
	}
}
