package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibet/taibet/internal/domain"
)

// StakeStore implements domain.StakeStore using PostgreSQL. Stakes are
// written only by MarketStore.CommitSettlement; this store is read-only.
type StakeStore struct {
	pool *pgxpool.Pool
}

// NewStakeStore creates a new StakeStore backed by the given connection pool.
func NewStakeStore(pool *pgxpool.Pool) *StakeStore {
	return &StakeStore{pool: pool}
}

const stakeColumns = `
	id, market_id, wallet, side, gross_amount, fee_amount,
	net_amount, quoted_odds, potential_payout, created_at`

// GetByID retrieves a stake by its id.
func (s *StakeStore) GetByID(ctx context.Context, id string) (domain.Stake, error) {
	query := "SELECT" + stakeColumns + " FROM stakes WHERE id = $1"

	st, err := scanStake(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Stake{}, domain.ErrNotFound
		}
		return domain.Stake{}, fmt.Errorf("postgres: get stake %s: %w", id, err)
	}
	return st, nil
}

// ListByMarket returns the newest stakes for a market.
func (s *StakeStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Stake, error) {
	query := "SELECT" + stakeColumns + `
		FROM stakes WHERE market_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`
	return s.list(ctx, query, marketID, listLimit(opts))
}

// ListByWallet returns the newest stakes placed by a wallet.
func (s *StakeStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Stake, error) {
	query := "SELECT" + stakeColumns + `
		FROM stakes WHERE wallet = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`
	return s.list(ctx, query, wallet, listLimit(opts))
}

func (s *StakeStore) list(ctx context.Context, query string, args ...any) ([]domain.Stake, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list stakes: %w", err)
	}
	defer rows.Close()

	var stakes []domain.Stake
	for rows.Next() {
		st, err := scanStake(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan stake: %w", err)
		}
		stakes = append(stakes, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list stakes: %w", err)
	}
	return stakes, nil
}

func scanStake(row pgx.Row) (domain.Stake, error) {
	var st domain.Stake
	var side string
	err := row.Scan(
		&st.ID, &st.MarketID, &st.Wallet, &side,
		&st.GrossAmount, &st.FeeAmount, &st.NetAmount,
		&st.QuotedOdds, &st.PotentialPayout, &st.CreatedAt,
	)
	if err != nil {
		return domain.Stake{}, err
	}
	st.Side = domain.Side(side)
	return st, nil
}

func listLimit(opts domain.ListOpts) int {
	if opts.Limit <= 0 || opts.Limit > 200 {
		return 50
	}
	return opts.Limit
}
