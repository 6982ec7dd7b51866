package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/taibet/taibet/internal/crypto"
	"github.com/taibet/taibet/internal/domain"
	"github.com/taibet/taibet/internal/metrics"
	"github.com/taibet/taibet/internal/platform/ton"
)

// payoutValidity is how long an unsigned payout payload stays signable.
const payoutValidity = 24 * time.Hour

// voucherSig signs the payout voucher when a treasury signer is configured.
func voucherSig(signer *crypto.Signer, ref, wallet string, amount decimal.Decimal) string {
	if signer == nil {
		return ""
	}
	return signer.Sign(crypto.Voucher{Ref: ref, Wallet: wallet, AmountTAI: amount})
}

// ChainClient is the subset of the TON indexer the purchase path needs.
type ChainClient interface {
	FindTransferByMemo(ctx context.Context, account, memo string) (ton.Transfer, error)
}

// PurchaseConfig carries the payment confirmation parameters.
type PurchaseConfig struct {
	DepositAddress  string
	PollInterval    time.Duration
	MaxPollAttempts int
	SessionTTL      time.Duration
	AccelerateMax   decimal.Decimal
}

// PurchaseService drives the purchase state machine: session creation with
// a reserved memo, payment confirmation against the chain indexer, payout
// payload construction, and idempotent completion.
type PurchaseService struct {
	purchases domain.PurchaseStore
	sales     *SaleService
	chain     ChainClient
	notifier  Notifier
	signer    *crypto.Signer // nil disables voucher signatures
	cfg       PurchaseConfig
	logger    *slog.Logger

	mu      sync.Mutex
	pollers map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewPurchaseService creates a PurchaseService.
func NewPurchaseService(
	purchases domain.PurchaseStore,
	sales *SaleService,
	chain ChainClient,
	notifier Notifier,
	signer *crypto.Signer,
	cfg PurchaseConfig,
	logger *slog.Logger,
) *PurchaseService {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = 60
	}
	return &PurchaseService{
		purchases: purchases,
		sales:     sales,
		chain:     chain,
		notifier:  notifier,
		signer:    signer,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "purchase_service")),
		pollers:   make(map[string]context.CancelFunc),
	}
}

// StartSession opens a purchase session for the wallet against today's sale
// day, binds a fresh memo to a pending purchase, and starts the payment
// poller for it.
func (s *PurchaseService) StartSession(ctx context.Context, wallet string) (domain.PurchaseSession, error) {
	if wallet == "" {
		return domain.PurchaseSession{}, fmt.Errorf("purchase_service: %w: empty wallet", domain.ErrInvalidAmount)
	}

	day, err := s.sales.CurrentDay(ctx)
	if err != nil {
		return domain.PurchaseSession{}, fmt.Errorf("purchase_service: current sale day: %w", err)
	}
	if day.SoldOut {
		return domain.PurchaseSession{}, domain.ErrSoldOut
	}

	now := time.Now().UTC()
	sess := domain.PurchaseSession{
		ID:         uuid.New().String(),
		Wallet:     wallet,
		Memo:       uuid.New().String(),
		PriceTON:   day.PriceTON,
		BaseTAI:    day.BaseTAI,
		MaxTAI:     day.MaxTAI,
		Accelerate: day.Accelerate,
		ExpiresAt:  now.Add(s.cfg.SessionTTL),
		CreatedAt:  now,
	}
	if err := s.purchases.CreateSession(ctx, sess); err != nil {
		return domain.PurchaseSession{}, fmt.Errorf("purchase_service: create session: %w", err)
	}

	purchase := domain.Purchase{
		ID:         uuid.New().String(),
		SessionID:  sess.ID,
		Wallet:     wallet,
		Memo:       sess.Memo,
		State:      domain.PurchasePending,
		AmountTAI:  decimal.Zero,
		Multiplier: decimal.NewFromInt(1),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.purchases.CreatePurchase(ctx, purchase); err != nil {
		return domain.PurchaseSession{}, fmt.Errorf("purchase_service: create purchase: %w", err)
	}

	s.startPoller(purchase.ID, sess)
	metrics.PurchasesTotal.WithLabelValues(string(domain.PurchasePending)).Inc()

	s.logger.InfoContext(ctx, "purchase session opened",
		slog.String("purchase_id", purchase.ID),
		slog.String("wallet", wallet),
		slog.Time("expires_at", sess.ExpiresAt),
	)
	return sess, nil
}

// Confirm advances the purchase bound to (wallet, memo). With an empty
// signature it reports (and lazily re-checks) payment status; with a
// signature it completes an awaiting_signature purchase. Completion is
// idempotent: resubmitting against a completed purchase returns the stored
// row.
func (s *PurchaseService) Confirm(ctx context.Context, wallet, memo, signedTxHash string) (domain.Purchase, error) {
	p, err := s.purchases.GetPurchaseByMemo(ctx, wallet, memo)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("purchase_service: lookup %s/%s: %w", wallet, memo, err)
	}

	switch p.State {
	case domain.PurchaseCompleted:
		return p, nil

	case domain.PurchaseExpired:
		return p, domain.ErrPaymentTimeout

	case domain.PurchasePending:
		// The poller may have missed the transfer (or the process restarted);
		// check once on demand before reporting.
		sess, err := s.purchases.GetSession(ctx, wallet, memo)
		if err != nil {
			return domain.Purchase{}, fmt.Errorf("purchase_service: session %s/%s: %w", wallet, memo, err)
		}
		if sess.Expired(time.Now().UTC()) {
			if err := s.purchases.Expire(ctx, p.ID); err != nil {
				s.logger.WarnContext(ctx, "expire failed", slog.String("purchase_id", p.ID), slog.String("error", err.Error()))
			}
			return p, domain.ErrSessionExpired
		}
		if transfer, err := s.chain.FindTransferByMemo(ctx, s.cfg.DepositAddress, memo); err == nil {
			if _, err := s.confirmPayment(ctx, p.ID, sess, transfer); err != nil {
				return domain.Purchase{}, err
			}
		}
		return s.purchases.GetPurchase(ctx, p.ID)

	case domain.PurchaseAwaitingSignature:
		if signedTxHash == "" {
			return p, nil
		}
		completed, err := s.purchases.Complete(ctx, p.ID, signedTxHash)
		if err != nil {
			return domain.Purchase{}, fmt.Errorf("purchase_service: complete %s: %w", p.ID, err)
		}
		metrics.PurchasesTotal.WithLabelValues(string(domain.PurchaseCompleted)).Inc()
		s.logger.InfoContext(ctx, "purchase completed",
			slog.String("purchase_id", p.ID),
			slog.String("amount_tai", completed.AmountTAI.String()),
		)
		return completed, nil

	default:
		return domain.Purchase{}, fmt.Errorf("purchase_service: purchase %s in unknown state %q", p.ID, p.State)
	}
}

// GetPurchase returns a purchase by id.
func (s *PurchaseService) GetPurchase(ctx context.Context, id string) (domain.Purchase, error) {
	p, err := s.purchases.GetPurchase(ctx, id)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("purchase_service: get %s: %w", id, err)
	}
	return p, nil
}

// Close stops all running payment pollers and waits for them to exit.
func (s *PurchaseService) Close() {
	s.mu.Lock()
	for _, cancel := range s.pollers {
		cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// startPoller launches the bounded confirmation loop for one purchase.
func (s *PurchaseService) startPoller(purchaseID string, sess domain.PurchaseSession) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.pollers[purchaseID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.pollers, purchaseID)
			s.mu.Unlock()
		}()
		s.poll(ctx, purchaseID, sess)
	}()
}

// poll checks the chain for the session's memo at a fixed interval until
// payment is observed, the attempt budget runs out, or the service closes.
func (s *PurchaseService) poll(ctx context.Context, purchaseID string, sess domain.PurchaseSession) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= s.cfg.MaxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if sess.Expired(time.Now().UTC()) {
			break
		}

		transfer, err := s.chain.FindTransferByMemo(ctx, s.cfg.DepositAddress, sess.Memo)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn("payment poll failed",
					slog.String("purchase_id", purchaseID),
					slog.Int("attempt", attempt),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		confirmed, err := s.confirmPayment(ctx, purchaseID, sess, transfer)
		if err != nil {
			s.logger.Error("payment confirmation failed",
				slog.String("purchase_id", purchaseID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if confirmed {
			return
		}
	}

	// Budget exhausted without a matching payment. The memo stays consumed;
	// the client starts over with a fresh session.
	if err := s.purchases.Expire(ctx, purchaseID); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("purchase expire failed",
			slog.String("purchase_id", purchaseID),
			slog.String("error", err.Error()),
		)
		return
	}
	metrics.PurchasesTotal.WithLabelValues(string(domain.PurchaseExpired)).Inc()
	s.logger.Info("purchase expired, payment not observed",
		slog.String("purchase_id", purchaseID),
		slog.String("memo", sess.Memo),
	)
}

// confirmPayment moves a pending purchase to awaiting_signature: it draws
// the (possibly accelerated) token amount, reserves it against the day's
// inventory, and stores the unsigned payout payload. The pending-state
// guard in MarkPaid decides the single winner; a confirmation that reserved
// inventory but did not win the transition releases its reservation, so the
// day is only ever charged the winning amount. The bool reports whether the
// purchase reached a post-pending state.
func (s *PurchaseService) confirmPayment(ctx context.Context, purchaseID string, sess domain.PurchaseSession, transfer ton.Transfer) (bool, error) {
	if transfer.AmountTON.LessThan(sess.PriceTON) {
		// Underpayment: leave the purchase pending, the client can top up
		// with the same memo within the session window.
		s.logger.Warn("underpaid transfer ignored",
			slog.String("purchase_id", purchaseID),
			slog.String("paid_ton", transfer.AmountTON.String()),
			slog.String("price_ton", sess.PriceTON.String()),
		)
		return false, nil
	}

	multiplier := decimal.NewFromInt(1)
	if sess.Accelerate && s.cfg.AccelerateMax.GreaterThan(decimal.NewFromInt(1)) {
		span := s.cfg.AccelerateMax.Sub(decimal.NewFromInt(1))
		multiplier = decimal.NewFromInt(1).Add(span.Mul(decimal.NewFromFloat(rand.Float64())))
	}
	amount := sess.BaseTAI.Mul(multiplier)
	if amount.GreaterThan(sess.MaxTAI) {
		amount = sess.MaxTAI
	}

	saleCode := SaleCodeFor(sess.CreatedAt)
	if err := s.sales.RecordSold(ctx, saleCode, amount); err != nil {
		if errors.Is(err, domain.ErrSoldOut) {
			if expireErr := s.purchases.Expire(ctx, purchaseID); expireErr != nil {
				return false, fmt.Errorf("purchase_service: expire after sold out: %w", expireErr)
			}
			s.logger.Info("purchase expired, day sold out",
				slog.String("purchase_id", purchaseID),
				slog.String("sale_code", saleCode),
			)
			return true, nil
		}
		return false, err
	}

	payload, err := ton.BuildPayoutPayload(purchaseID, sess.Wallet, amount, sess.Memo,
		voucherSig(s.signer, purchaseID, sess.Wallet, amount), time.Now().UTC().Add(payoutValidity))
	if err != nil {
		s.releaseSold(ctx, saleCode, amount, purchaseID)
		return false, fmt.Errorf("purchase_service: build payout: %w", err)
	}

	if err := s.purchases.MarkPaid(ctx, purchaseID, transfer.TxHash, payload, amount, multiplier); err != nil {
		s.releaseSold(ctx, saleCode, amount, purchaseID)
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Another confirmation won the race; its amount stands.
			return true, nil
		}
		return false, fmt.Errorf("purchase_service: mark paid %s: %w", purchaseID, err)
	}

	metrics.PurchasesTotal.WithLabelValues(string(domain.PurchaseAwaitingSignature)).Inc()
	s.logger.InfoContext(ctx, "payment confirmed",
		slog.String("purchase_id", purchaseID),
		slog.String("tx_hash", transfer.TxHash),
		slog.String("amount_tai", amount.String()),
		slog.String("multiplier", multiplier.String()),
	)

	if s.notifier != nil {
		msg := fmt.Sprintf("purchase %s confirmed: %s TAI to %s", purchaseID, amount, sess.Wallet)
		if err := s.notifier.Notify(ctx, "purchase_confirmed", "Purchase confirmed", msg); err != nil {
			s.logger.Warn("purchase notification failed", slog.String("error", err.Error()))
		}
	}
	return true, nil
}

// releaseSold hands a reservation back to the day's inventory. A failed
// release leaves sold_tai inflated by one session amount; that is logged
// loudly but not surfaced, the confirmation outcome already stands.
func (s *PurchaseService) releaseSold(ctx context.Context, saleCode string, amount decimal.Decimal, purchaseID string) {
	if err := s.sales.ReleaseSold(ctx, saleCode, amount); err != nil {
		s.logger.Error("inventory release failed",
			slog.String("purchase_id", purchaseID),
			slog.String("sale_code", saleCode),
			slog.String("amount_tai", amount.String()),
			slog.String("error", err.Error()),
		)
	}
}
