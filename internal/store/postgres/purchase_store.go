package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/taibet/taibet/internal/domain"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint errors.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// PurchaseStore implements domain.PurchaseStore using PostgreSQL. Memo
// uniqueness is enforced by the schema on both sessions and purchases, so a
// consumed memo can never be bound twice regardless of request interleaving.
type PurchaseStore struct {
	pool *pgxpool.Pool
}

// NewPurchaseStore creates a new PurchaseStore backed by the given connection pool.
func NewPurchaseStore(pool *pgxpool.Pool) *PurchaseStore {
	return &PurchaseStore{pool: pool}
}

// CreateSession inserts a new purchase session with its reserved memo.
func (s *PurchaseStore) CreateSession(ctx context.Context, sess domain.PurchaseSession) error {
	const query = `
		INSERT INTO purchase_sessions (
			id, wallet, memo, price_ton, base_tai, max_tai,
			accelerate, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	_, err := s.pool.Exec(ctx, query,
		sess.ID, sess.Wallet, sess.Memo, sess.PriceTON,
		sess.BaseTAI, sess.MaxTAI, sess.Accelerate, sess.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrMemoUsed
		}
		return fmt.Errorf("postgres: create session %s: %w", sess.ID, err)
	}
	return nil
}

// GetSession retrieves a session by wallet and memo.
func (s *PurchaseStore) GetSession(ctx context.Context, wallet, memo string) (domain.PurchaseSession, error) {
	const query = `
		SELECT id, wallet, memo, price_ton, base_tai, max_tai,
		       accelerate, expires_at, created_at
		FROM purchase_sessions WHERE wallet = $1 AND memo = $2`

	var sess domain.PurchaseSession
	err := s.pool.QueryRow(ctx, query, wallet, memo).Scan(
		&sess.ID, &sess.Wallet, &sess.Memo, &sess.PriceTON,
		&sess.BaseTAI, &sess.MaxTAI, &sess.Accelerate,
		&sess.ExpiresAt, &sess.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PurchaseSession{}, domain.ErrNotFound
		}
		return domain.PurchaseSession{}, fmt.Errorf("postgres: get session %s/%s: %w", wallet, memo, err)
	}
	return sess, nil
}

const purchaseColumns = `
	id, session_id, wallet, memo, state, amount_tai, multiplier,
	payout_payload, signed_tx_hash, payment_tx_hash, created_at, updated_at`

// CreatePurchase binds a memo to a new pending purchase.
func (s *PurchaseStore) CreatePurchase(ctx context.Context, p domain.Purchase) error {
	const query = `
		INSERT INTO purchases (
			id, session_id, wallet, memo, state, amount_tai, multiplier,
			payout_payload, signed_tx_hash, payment_tx_hash, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.SessionID, p.Wallet, p.Memo, string(p.State),
		p.AmountTAI, p.Multiplier,
		p.PayoutPayload, p.SignedTxHash, p.PaymentTxHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrMemoUsed
		}
		return fmt.Errorf("postgres: create purchase %s: %w", p.ID, err)
	}
	return nil
}

// GetPurchase retrieves a purchase by id.
func (s *PurchaseStore) GetPurchase(ctx context.Context, id string) (domain.Purchase, error) {
	query := "SELECT" + purchaseColumns + " FROM purchases WHERE id = $1"
	p, err := scanPurchase(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Purchase{}, domain.ErrNotFound
		}
		return domain.Purchase{}, fmt.Errorf("postgres: get purchase %s: %w", id, err)
	}
	return p, nil
}

// GetPurchaseByMemo retrieves a purchase by wallet and memo.
func (s *PurchaseStore) GetPurchaseByMemo(ctx context.Context, wallet, memo string) (domain.Purchase, error) {
	query := "SELECT" + purchaseColumns + " FROM purchases WHERE wallet = $1 AND memo = $2"
	p, err := scanPurchase(s.pool.QueryRow(ctx, query, wallet, memo))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Purchase{}, domain.ErrNotFound
		}
		return domain.Purchase{}, fmt.Errorf("postgres: get purchase %s/%s: %w", wallet, memo, err)
	}
	return p, nil
}

// MarkPaid moves a pending purchase to awaiting_signature. The state guard
// in the WHERE clause makes concurrent confirmations race-safe: exactly one
// caller updates the row, the rest get ErrAlreadyExists.
func (s *PurchaseStore) MarkPaid(ctx context.Context, id, paymentTxHash, payoutPayload string, amount, multiplier decimal.Decimal) error {
	const query = `
		UPDATE purchases SET
			state           = 'awaiting_signature',
			payment_tx_hash = $1,
			payout_payload  = $2,
			amount_tai      = $3,
			multiplier      = $4,
			updated_at      = NOW()
		WHERE id = $5 AND state = 'pending'`

	tag, err := s.pool.Exec(ctx, query, paymentTxHash, payoutPayload, amount, multiplier, id)
	if err != nil {
		return fmt.Errorf("postgres: mark purchase %s paid: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetPurchase(ctx, id); err != nil {
			return err
		}
		return domain.ErrAlreadyExists
	}
	return nil
}

// Complete records the signed payout hash and moves the purchase to its
// terminal completed state. Completing an already completed purchase returns
// the stored row unchanged, so signature resubmission is idempotent.
func (s *PurchaseStore) Complete(ctx context.Context, id, signedTxHash string) (domain.Purchase, error) {
	const query = `
		UPDATE purchases SET
			state          = 'completed',
			signed_tx_hash = $1,
			updated_at     = NOW()
		WHERE id = $2 AND state = 'awaiting_signature'`

	tag, err := s.pool.Exec(ctx, query, signedTxHash, id)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("postgres: complete purchase %s: %w", id, err)
	}

	p, err := s.GetPurchase(ctx, id)
	if err != nil {
		return domain.Purchase{}, err
	}
	if tag.RowsAffected() == 0 && p.State != domain.PurchaseCompleted {
		return domain.Purchase{}, domain.ErrConflict
	}
	return p, nil
}

// Expire moves a still-pending purchase to expired.
func (s *PurchaseStore) Expire(ctx context.Context, id string) error {
	const query = `
		UPDATE purchases SET state = 'expired', updated_at = NOW()
		WHERE id = $1 AND state = 'pending'`

	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("postgres: expire purchase %s: %w", id, err)
	}
	return nil
}

// ListTerminalBefore returns completed or expired purchases last updated
// before the cutoff, oldest first. Used by the archiver.
func (s *PurchaseStore) ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Purchase, error) {
	if limit <= 0 || limit > 10_000 {
		limit = 1000
	}
	query := "SELECT" + purchaseColumns + `
		FROM purchases
		WHERE state IN ('completed', 'expired') AND updated_at < $1
		ORDER BY updated_at ASC, id LIMIT $2`

	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal purchases: %w", err)
	}
	defer rows.Close()

	var purchases []domain.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list terminal purchases: %w", err)
	}
	return purchases, nil
}

// DeleteTerminalBefore removes at most limit terminal purchases before the
// cutoff, walking the same order as ListTerminalBefore so the archiver
// deletes exactly the rows it uploaded.
func (s *PurchaseStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	const query = `
		DELETE FROM purchases WHERE ctid IN (
			SELECT ctid FROM purchases
			WHERE state IN ('completed', 'expired') AND updated_at < $1
			ORDER BY updated_at ASC, id
			LIMIT $2)`

	tag, err := s.pool.Exec(ctx, query, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete terminal purchases: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanPurchase(row pgx.Row) (domain.Purchase, error) {
	var p domain.Purchase
	var state string
	err := row.Scan(
		&p.ID, &p.SessionID, &p.Wallet, &p.Memo, &state,
		&p.AmountTAI, &p.Multiplier,
		&p.PayoutPayload, &p.SignedTxHash, &p.PaymentTxHash,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Purchase{}, err
	}
	p.State = domain.PurchaseState(state)
	return p, nil
}
