package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/taibet/taibet/internal/domain"
)

// FeePoolStore implements domain.FeePoolStore using PostgreSQL. Ledger
// credits are idempotent per stake: a fee_credits row with the stake id as
// primary key is inserted in the same transaction as the balance updates,
// so a repeat credit for the same stake rolls back without effect.
type FeePoolStore struct {
	pool *pgxpool.Pool
}

// NewFeePoolStore creates a new FeePoolStore backed by the given connection pool.
func NewFeePoolStore(pool *pgxpool.Pool) *FeePoolStore {
	return &FeePoolStore{pool: pool}
}

// Credit applies alloc to the five ledgers exactly once for stakeID.
func (s *FeePoolStore) Credit(ctx context.Context, stakeID string, alloc domain.FeeAllocation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin fee credit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		"INSERT INTO fee_credits (stake_id) VALUES ($1) ON CONFLICT (stake_id) DO NOTHING",
		stakeID)
	if err != nil {
		return fmt.Errorf("postgres: record fee credit %s: %w", stakeID, err)
	}
	if tag.RowsAffected() == 0 {
		// Already credited by an earlier delivery.
		return nil
	}

	for pool, amt := range alloc.ByPool() {
		if amt.IsZero() {
			continue
		}
		if _, err := tx.Exec(ctx,
			"UPDATE fee_pools SET balance = balance + $1 WHERE pool = $2",
			amt, string(pool)); err != nil {
			return fmt.Errorf("postgres: credit pool %s: %w", pool, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit fee credit %s: %w", stakeID, err)
	}
	return nil
}

// UncreditedStakes returns stakes that have no fee_credits row, oldest
// first. A stake settled moments ago may appear here while its async credit
// is still in flight; re-crediting it is harmless because Credit is
// idempotent.
func (s *FeePoolStore) UncreditedStakes(ctx context.Context, limit int) ([]domain.Stake, error) {
	if limit <= 0 || limit > 10_000 {
		limit = 1000
	}
	const query = `
		SELECT s.id, s.market_id, s.wallet, s.side, s.gross_amount, s.fee_amount,
		       s.net_amount, s.quoted_odds, s.potential_payout, s.created_at
		FROM stakes s
		LEFT JOIN fee_credits fc ON fc.stake_id = s.id
		WHERE fc.stake_id IS NULL
		ORDER BY s.created_at ASC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: uncredited stakes: %w", err)
	}
	defer rows.Close()

	var stakes []domain.Stake
	for rows.Next() {
		st, err := scanStake(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan uncredited stake: %w", err)
		}
		stakes = append(stakes, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: uncredited stakes: %w", err)
	}
	return stakes, nil
}

// Balances returns the current balance of every ledger.
func (s *FeePoolStore) Balances(ctx context.Context) (map[domain.DAOPool]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx, "SELECT pool, balance FROM fee_pools")
	if err != nil {
		return nil, fmt.Errorf("postgres: fee pool balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[domain.DAOPool]decimal.Decimal, len(domain.DAOPools))
	for rows.Next() {
		var pool string
		var balance decimal.Decimal
		if err := rows.Scan(&pool, &balance); err != nil {
			return nil, fmt.Errorf("postgres: scan fee pool: %w", err)
		}
		balances[domain.DAOPool(pool)] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: fee pool balances: %w", err)
	}
	return balances, nil
}
