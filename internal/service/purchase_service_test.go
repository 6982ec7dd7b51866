package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taibet/taibet/internal/domain"
	"github.com/taibet/taibet/internal/platform/ton"
)

func newTestSaleService(store *fakeSaleStore) *SaleService {
	cfg := SaleConfig{
		InitialPriceTON: d(1),
		BaseTAI:         d(1000),
		MaxTAI:          d(3000),
		TotalTAI:        d(1_000_000),
		SessionTTL:      time.Minute,
		AccelerateMax:   d(3),
	}
	return NewSaleService(store, fakeSaleCache{}, cfg, testLogger())
}

func newTestPurchaseService(store *fakePurchaseStore, sales *SaleService, chain ChainClient, cfg PurchaseConfig) *PurchaseService {
	if cfg.DepositAddress == "" {
		cfg.DepositAddress = "EQdeposit"
	}
	return NewPurchaseService(store, sales, chain, nil, nil, cfg, testLogger())
}

// waitForState polls the store until the purchase reaches want or the
// deadline passes.
func waitForState(t *testing.T, store *fakePurchaseStore, id string, want domain.PurchaseState) domain.Purchase {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		p, err := store.GetPurchase(context.Background(), id)
		if err == nil && p.State == want {
			return p
		}
		time.Sleep(5 * time.Millisecond)
	}
	p, _ := store.GetPurchase(context.Background(), id)
	t.Fatalf("purchase %s never reached %s (last state %s)", id, want, p.State)
	return domain.Purchase{}
}

func TestPurchase_PaymentConfirmedAndCompleted(t *testing.T) {
	store := newFakePurchaseStore()
	sales := newTestSaleService(newFakeSaleStore())
	chain := newFakeChain()
	svc := newTestPurchaseService(store, sales, chain, PurchaseConfig{
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 200,
		SessionTTL:      time.Minute,
		AccelerateMax:   d(3),
	})
	defer svc.Close()

	sess, err := svc.StartSession(context.Background(), "w1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	chain.put(sess.Memo, ton.Transfer{
		TxHash:    "tx1",
		AmountTON: sess.PriceTON,
		Comment:   sess.Memo,
	})

	id := store.byMemo[sess.Memo]
	p := waitForState(t, store, id, domain.PurchaseAwaitingSignature)

	if p.PayoutPayload == "" {
		t.Error("expected payout payload after confirmation")
	}
	if p.AmountTAI.LessThan(d(1000)) || p.AmountTAI.GreaterThan(d(3000)) {
		t.Errorf("amount %s outside [base, max]", p.AmountTAI)
	}

	completed, err := svc.Confirm(context.Background(), "w1", sess.Memo, "signed1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if completed.State != domain.PurchaseCompleted {
		t.Fatalf("expected completed, got %s", completed.State)
	}

	// Resubmitting the signature is a no-op returning the stored row.
	again, err := svc.Confirm(context.Background(), "w1", sess.Memo, "signed-other")
	if err != nil {
		t.Fatalf("idempotent confirm: %v", err)
	}
	if again.SignedTxHash != "signed1" {
		t.Errorf("resubmission must not overwrite the recorded hash, got %q", again.SignedTxHash)
	}
}

func TestPurchase_TimeoutExpiresAndMemoStaysConsumed(t *testing.T) {
	store := newFakePurchaseStore()
	sales := newTestSaleService(newFakeSaleStore())
	svc := newTestPurchaseService(store, sales, newFakeChain(), PurchaseConfig{
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 3,
		SessionTTL:      time.Minute,
	})
	defer svc.Close()

	sess, err := svc.StartSession(context.Background(), "w1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	id := store.byMemo[sess.Memo]
	waitForState(t, store, id, domain.PurchaseExpired)

	_, err = svc.Confirm(context.Background(), "w1", sess.Memo, "")
	if !errors.Is(err, domain.ErrPaymentTimeout) {
		t.Fatalf("expected ErrPaymentTimeout, got %v", err)
	}

	// The memo can never bind a second purchase.
	err = store.CreatePurchase(context.Background(), domain.Purchase{
		ID: "p2", Wallet: "w1", Memo: sess.Memo, State: domain.PurchasePending,
	})
	if !errors.Is(err, domain.ErrMemoUsed) {
		t.Fatalf("expected ErrMemoUsed for reused memo, got %v", err)
	}
}

func TestPurchase_DoubleConfirmationSingleCredit(t *testing.T) {
	saleStore := newFakeSaleStore()
	sales := newTestSaleService(saleStore)
	store := newFakePurchaseStore()
	chain := newFakeChain()
	svc := newTestPurchaseService(store, sales, chain, PurchaseConfig{
		PollInterval:    time.Hour, // keep the background poller quiet
		MaxPollAttempts: 1,
		SessionTTL:      time.Minute,
	})
	defer svc.Close()

	sess, err := svc.StartSession(context.Background(), "w1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	chain.put(sess.Memo, ton.Transfer{TxHash: "tx1", AmountTON: sess.PriceTON, Comment: sess.Memo})

	// Two racing lazy confirmations through the public path.
	if _, err := svc.Confirm(context.Background(), "w1", sess.Memo, ""); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if _, err := svc.Confirm(context.Background(), "w1", sess.Memo, ""); err != nil {
		t.Fatalf("second confirm: %v", err)
	}

	day, err := saleStore.GetDay(context.Background(), SaleCodeFor(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	p, _ := store.GetPurchase(context.Background(), store.byMemo[sess.Memo])
	if !day.SoldTAI.Equal(p.AmountTAI) {
		t.Errorf("sold %s but purchase credited %s: double credit", day.SoldTAI, p.AmountTAI)
	}
}

func TestPurchase_RacingConfirmationsChargeInventoryOnce(t *testing.T) {
	saleStore := newFakeSaleStore()
	sales := newTestSaleService(saleStore)
	store := newFakePurchaseStore()
	chain := newFakeChain()
	svc := newTestPurchaseService(store, sales, chain, PurchaseConfig{
		PollInterval:    time.Hour,
		MaxPollAttempts: 1,
		SessionTTL:      time.Minute,
	})
	defer svc.Close()

	sess, err := svc.StartSession(context.Background(), "w1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	transfer := ton.Transfer{TxHash: "tx1", AmountTON: sess.PriceTON, Comment: sess.Memo}
	id := store.byMemo[sess.Memo]

	// The background poller and a lazy status check can both observe the
	// transfer while the purchase is still pending and run the confirmation
	// concurrently. The loser of the paid transition must hand its inventory
	// reservation back.
	if _, err := svc.confirmPayment(context.Background(), id, sess, transfer); err != nil {
		t.Fatalf("first confirmation: %v", err)
	}
	won, err := svc.confirmPayment(context.Background(), id, sess, transfer)
	if err != nil {
		t.Fatalf("second confirmation: %v", err)
	}
	if !won {
		t.Fatal("losing confirmation must report the purchase as past pending")
	}

	p, err := store.GetPurchase(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if p.State != domain.PurchaseAwaitingSignature {
		t.Fatalf("state = %s, want awaiting_signature", p.State)
	}

	day, err := saleStore.GetDay(context.Background(), SaleCodeFor(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if !day.SoldTAI.Equal(p.AmountTAI) {
		t.Errorf("sold %s but purchase credited %s: inventory charged twice", day.SoldTAI, p.AmountTAI)
	}
}

func TestPurchase_UnderpaymentStaysPending(t *testing.T) {
	store := newFakePurchaseStore()
	sales := newTestSaleService(newFakeSaleStore())
	chain := newFakeChain()
	svc := newTestPurchaseService(store, sales, chain, PurchaseConfig{
		PollInterval:    time.Hour,
		MaxPollAttempts: 1,
		SessionTTL:      time.Minute,
	})
	defer svc.Close()

	sess, err := svc.StartSession(context.Background(), "w1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	chain.put(sess.Memo, ton.Transfer{
		TxHash:    "tx1",
		AmountTON: sess.PriceTON.Sub(decimal.NewFromFloat(0.001)),
		Comment:   sess.Memo,
	})

	p, err := svc.Confirm(context.Background(), "w1", sess.Memo, "")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if p.State != domain.PurchasePending {
		t.Fatalf("underpaid purchase must stay pending, got %s", p.State)
	}
}

func TestPurchase_SoldOutDayRejectsNewSessions(t *testing.T) {
	saleStore := newFakeSaleStore()
	sales := newTestSaleService(saleStore)
	svc := newTestPurchaseService(newFakePurchaseStore(), sales, newFakeChain(), PurchaseConfig{
		PollInterval:    time.Hour,
		MaxPollAttempts: 1,
		SessionTTL:      time.Minute,
	})
	defer svc.Close()

	// Materialize today's day and exhaust it.
	if _, err := sales.CurrentDay(context.Background()); err != nil {
		t.Fatal(err)
	}
	code := SaleCodeFor(time.Now())
	if err := saleStore.AddSold(context.Background(), code, d(1_000_000)); err != nil {
		t.Fatal(err)
	}

	_, err := svc.StartSession(context.Background(), "w1")
	if !errors.Is(err, domain.ErrSoldOut) {
		t.Fatalf("expected ErrSoldOut, got %v", err)
	}
}
