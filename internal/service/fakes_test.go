package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taibet/taibet/internal/domain"
	"github.com/taibet/taibet/internal/platform/ton"
)

// fakeMarketStore is an in-memory domain.MarketStore that honors the
// optimistic version check.
type fakeMarketStore struct {
	mu        sync.Mutex
	markets   map[string]domain.Market
	stakes    []domain.Stake
	snapshots []domain.OddsSnapshot

	// conflicts forces the next N settlements to fail with ErrConflict.
	conflicts int
}

func newFakeMarketStore() *fakeMarketStore {
	return &fakeMarketStore{markets: make(map[string]domain.Market)}
}

func (f *fakeMarketStore) Create(_ context.Context, m domain.Market) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.markets[m.ID]; ok {
		return domain.ErrAlreadyExists
	}
	f.markets[m.ID] = m
	return nil
}

func (f *fakeMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrMarketNotFound
	}
	return m, nil
}

func (f *fakeMarketStore) List(_ context.Context, _ domain.MarketQuery) ([]domain.Market, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Market, 0, len(f.markets))
	for _, m := range f.markets {
		out = append(out, m)
	}
	return out, "", nil
}

func (f *fakeMarketStore) CommitSettlement(_ context.Context, s domain.Settlement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflicts > 0 {
		f.conflicts--
		return domain.ErrConflict
	}
	m, ok := f.markets[s.Market.ID]
	if !ok {
		return domain.ErrMarketNotFound
	}
	if m.Version != s.PrevVersion {
		return domain.ErrConflict
	}
	f.markets[s.Market.ID] = s.Market
	f.stakes = append(f.stakes, s.Stake)
	f.snapshots = append(f.snapshots, s.Snapshot)
	return nil
}

func (f *fakeMarketStore) snapshotsFor(marketID string) []domain.OddsSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.OddsSnapshot
	for _, snap := range f.snapshots {
		if snap.MarketID == marketID {
			out = append(out, snap)
		}
	}
	return out
}

// fakeFeePoolStore records idempotent credits. Stakes seeded into uncredited
// show up in UncreditedStakes until credited.
type fakeFeePoolStore struct {
	mu         sync.Mutex
	credits    map[string]domain.FeeAllocation
	balances   map[domain.DAOPool]decimal.Decimal
	uncredited []domain.Stake
}

func newFakeFeePoolStore() *fakeFeePoolStore {
	balances := make(map[domain.DAOPool]decimal.Decimal)
	for _, p := range domain.DAOPools {
		balances[p] = decimal.Zero
	}
	return &fakeFeePoolStore{
		credits:  make(map[string]domain.FeeAllocation),
		balances: balances,
	}
}

func (f *fakeFeePoolStore) Credit(_ context.Context, stakeID string, alloc domain.FeeAllocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.credits[stakeID]; ok {
		return nil
	}
	f.credits[stakeID] = alloc
	for pool, amt := range alloc.ByPool() {
		f.balances[pool] = f.balances[pool].Add(amt)
	}
	return nil
}

func (f *fakeFeePoolStore) UncreditedStakes(_ context.Context, limit int) ([]domain.Stake, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Stake
	for _, st := range f.uncredited {
		if _, ok := f.credits[st.ID]; ok {
			continue
		}
		out = append(out, st)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeFeePoolStore) Balances(_ context.Context) (map[domain.DAOPool]decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[domain.DAOPool]decimal.Decimal, len(f.balances))
	for k, v := range f.balances {
		out[k] = v
	}
	return out, nil
}

// fakeBus discards published payloads.
type fakeBus struct{}

func (fakeBus) Publish(context.Context, string, []byte) error { return nil }
func (fakeBus) Subscribe(ctx context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	go func() { <-ctx.Done(); close(ch) }()
	return ch, nil
}

// fakePurchaseStore is an in-memory domain.PurchaseStore.
type fakePurchaseStore struct {
	mu        sync.Mutex
	sessions  map[string]domain.PurchaseSession // by memo
	purchases map[string]domain.Purchase        // by id
	byMemo    map[string]string                 // memo -> purchase id
}

func newFakePurchaseStore() *fakePurchaseStore {
	return &fakePurchaseStore{
		sessions:  make(map[string]domain.PurchaseSession),
		purchases: make(map[string]domain.Purchase),
		byMemo:    make(map[string]string),
	}
}

func (f *fakePurchaseStore) CreateSession(_ context.Context, s domain.PurchaseSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[s.Memo]; ok {
		return domain.ErrMemoUsed
	}
	f.sessions[s.Memo] = s
	return nil
}

func (f *fakePurchaseStore) GetSession(_ context.Context, wallet, memo string) (domain.PurchaseSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[memo]
	if !ok || s.Wallet != wallet {
		return domain.PurchaseSession{}, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakePurchaseStore) CreatePurchase(_ context.Context, p domain.Purchase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byMemo[p.Memo]; ok {
		return domain.ErrMemoUsed
	}
	f.purchases[p.ID] = p
	f.byMemo[p.Memo] = p.ID
	return nil
}

func (f *fakePurchaseStore) GetPurchase(_ context.Context, id string) (domain.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.purchases[id]
	if !ok {
		return domain.Purchase{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePurchaseStore) GetPurchaseByMemo(_ context.Context, wallet, memo string) (domain.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byMemo[memo]
	if !ok {
		return domain.Purchase{}, domain.ErrNotFound
	}
	p := f.purchases[id]
	if p.Wallet != wallet {
		return domain.Purchase{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePurchaseStore) MarkPaid(_ context.Context, id, paymentTxHash, payoutPayload string, amount, multiplier decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.purchases[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.State != domain.PurchasePending {
		return domain.ErrAlreadyExists
	}
	p.State = domain.PurchaseAwaitingSignature
	p.PaymentTxHash = paymentTxHash
	p.PayoutPayload = payoutPayload
	p.AmountTAI = amount
	p.Multiplier = multiplier
	p.UpdatedAt = time.Now().UTC()
	f.purchases[id] = p
	return nil
}

func (f *fakePurchaseStore) Complete(_ context.Context, id, signedTxHash string) (domain.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.purchases[id]
	if !ok {
		return domain.Purchase{}, domain.ErrNotFound
	}
	if p.State == domain.PurchaseCompleted {
		return p, nil
	}
	if p.State != domain.PurchaseAwaitingSignature {
		return domain.Purchase{}, domain.ErrConflict
	}
	p.State = domain.PurchaseCompleted
	p.SignedTxHash = signedTxHash
	p.UpdatedAt = time.Now().UTC()
	f.purchases[id] = p
	return p, nil
}

func (f *fakePurchaseStore) Expire(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.purchases[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.State == domain.PurchasePending {
		p.State = domain.PurchaseExpired
		p.UpdatedAt = time.Now().UTC()
		f.purchases[id] = p
	}
	return nil
}

func (f *fakePurchaseStore) ListTerminalBefore(context.Context, time.Time, int) ([]domain.Purchase, error) {
	return nil, nil
}

func (f *fakePurchaseStore) DeleteTerminalBefore(context.Context, time.Time, int) (int64, error) {
	return 0, nil
}

// fakeSaleStore is an in-memory domain.SaleStore.
type fakeSaleStore struct {
	mu   sync.Mutex
	days map[string]domain.SaleDay
}

func newFakeSaleStore() *fakeSaleStore {
	return &fakeSaleStore{days: make(map[string]domain.SaleDay)}
}

func (f *fakeSaleStore) GetDay(_ context.Context, saleCode string) (domain.SaleDay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.days[saleCode]
	if !ok {
		return domain.SaleDay{}, domain.ErrNotFound
	}
	return d, nil
}

func (f *fakeSaleStore) CreateDay(_ context.Context, d domain.SaleDay) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.days[d.SaleCode]; ok {
		return domain.ErrAlreadyExists
	}
	f.days[d.SaleCode] = d
	return nil
}

func (f *fakeSaleStore) MostRecent(_ context.Context) (domain.SaleDay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest domain.SaleDay
	found := false
	for _, d := range f.days {
		if !found || d.SaleCode > latest.SaleCode {
			latest = d
			found = true
		}
	}
	if !found {
		return domain.SaleDay{}, domain.ErrNotFound
	}
	return latest, nil
}

func (f *fakeSaleStore) AddSold(_ context.Context, saleCode string, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.days[saleCode]
	if !ok {
		return domain.ErrNotFound
	}
	next := d.SoldTAI.Add(amount)
	if d.SoldOut || next.GreaterThan(d.TotalTAI) {
		return domain.ErrSoldOut
	}
	d.SoldTAI = next
	d.SoldOut = next.GreaterThanOrEqual(d.TotalTAI)
	f.days[saleCode] = d
	return nil
}

func (f *fakeSaleStore) ReleaseSold(_ context.Context, saleCode string, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.days[saleCode]
	if !ok {
		return domain.ErrNotFound
	}
	d.SoldTAI = d.SoldTAI.Sub(amount)
	if d.SoldTAI.IsNegative() {
		d.SoldTAI = decimal.Zero
	}
	d.SoldOut = d.SoldTAI.GreaterThanOrEqual(d.TotalTAI)
	f.days[saleCode] = d
	return nil
}

// fakeSaleCache is a pass-through miss cache.
type fakeSaleCache struct{}

func (fakeSaleCache) Get(context.Context, string) (domain.SaleDay, error) {
	return domain.SaleDay{}, domain.ErrNotFound
}
func (fakeSaleCache) Set(context.Context, domain.SaleDay) error   { return nil }
func (fakeSaleCache) Invalidate(context.Context, string) error    { return nil }

// fakeRainStore is an in-memory domain.RainStore.
type fakeRainStore struct {
	mu     sync.Mutex
	drops  map[string]domain.RainDrop
	claims map[string]map[string]domain.RainClaim // dropID -> wallet -> claim
}

func newFakeRainStore() *fakeRainStore {
	return &fakeRainStore{
		drops:  make(map[string]domain.RainDrop),
		claims: make(map[string]map[string]domain.RainClaim),
	}
}

func (f *fakeRainStore) CreateDrop(_ context.Context, d domain.RainDrop) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drops[d.ID] = d
	return nil
}

func (f *fakeRainStore) ActiveDrop(_ context.Context, now time.Time) (domain.RainDrop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.drops {
		if d.Status == domain.DropActive && d.ExpiresAt.After(now) {
			return d, nil
		}
	}
	return domain.RainDrop{}, domain.ErrNotFound
}

func (f *fakeRainStore) ExpireDrops(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, d := range f.drops {
		if d.Status == domain.DropActive && !d.ExpiresAt.After(now) {
			d.Status = domain.DropExpired
			f.drops[id] = d
			n++
		}
	}
	return n, nil
}

func (f *fakeRainStore) CreateClaim(_ context.Context, c domain.RainClaim) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drops[c.DropID]
	if !ok {
		return domain.ErrNotFound
	}
	if d.Status != domain.DropActive || d.Claimed >= d.MaxParticipants {
		return domain.ErrDropClosed
	}
	if f.claims[c.DropID] == nil {
		f.claims[c.DropID] = make(map[string]domain.RainClaim)
	}
	if _, ok := f.claims[c.DropID][c.Wallet]; ok {
		return domain.ErrAlreadyExists
	}
	f.claims[c.DropID][c.Wallet] = c
	d.Claimed++
	f.drops[c.DropID] = d
	return nil
}

func (f *fakeRainStore) ListClaims(_ context.Context, dropID string, _ domain.ListOpts) ([]domain.RainClaim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.RainClaim
	for _, c := range f.claims[dropID] {
		out = append(out, c)
	}
	return out, nil
}

// fakeChain serves transfers by memo.
type fakeChain struct {
	mu        sync.Mutex
	transfers map[string]ton.Transfer // memo -> transfer
}

func newFakeChain() *fakeChain {
	return &fakeChain{transfers: make(map[string]ton.Transfer)}
}

func (f *fakeChain) put(memo string, t ton.Transfer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers[memo] = t
}

func (f *fakeChain) FindTransferByMemo(_ context.Context, _, memo string) (ton.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[memo]
	if !ok {
		return ton.Transfer{}, domain.ErrNotFound
	}
	return t, nil
}
