package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibet/taibet/internal/domain"
)

// OddsStore implements domain.OddsStore using PostgreSQL. The snapshot log
// is append-only; rows are inserted by MarketStore.CommitSettlement and
// removed only by the retention archiver.
type OddsStore struct {
	pool *pgxpool.Pool
}

// NewOddsStore creates a new OddsStore backed by the given connection pool.
func NewOddsStore(pool *pgxpool.Pool) *OddsStore {
	return &OddsStore{pool: pool}
}

const oddsColumns = `
	market_id, sequence, yes_pool, no_pool, total_pool,
	yes_odds, no_odds, trigger_side, trigger_amount, created_at`

// Latest returns the highest-sequence snapshot for a market.
func (s *OddsStore) Latest(ctx context.Context, marketID string) (domain.OddsSnapshot, error) {
	query := "SELECT" + oddsColumns + `
		FROM odds_snapshots WHERE market_id = $1
		ORDER BY sequence DESC LIMIT 1`

	snap, err := scanSnapshot(s.pool.QueryRow(ctx, query, marketID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OddsSnapshot{}, domain.ErrNotFound
		}
		return domain.OddsSnapshot{}, fmt.Errorf("postgres: latest snapshot for %s: %w", marketID, err)
	}
	return snap, nil
}

// ListSince returns snapshots with sequence > since in ascending order.
func (s *OddsStore) ListSince(ctx context.Context, marketID string, since int64, limit int) ([]domain.OddsSnapshot, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query := "SELECT" + oddsColumns + `
		FROM odds_snapshots WHERE market_id = $1 AND sequence > $2
		ORDER BY sequence ASC LIMIT $3`
	return s.list(ctx, query, marketID, since, limit)
}

// ListBefore returns snapshots created before the cutoff, oldest first. Used
// by the archiver to page through expiring rows.
func (s *OddsStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.OddsSnapshot, error) {
	if limit <= 0 || limit > 10_000 {
		limit = 1000
	}
	query := "SELECT" + oddsColumns + `
		FROM odds_snapshots WHERE created_at < $1
		ORDER BY created_at ASC, market_id, sequence LIMIT $2`
	return s.list(ctx, query, cutoff, limit)
}

// DeleteBefore removes at most limit snapshots created before the cutoff,
// walking the same order as ListBefore so the archiver deletes exactly the
// rows it uploaded.
func (s *OddsStore) DeleteBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	const query = `
		DELETE FROM odds_snapshots WHERE ctid IN (
			SELECT ctid FROM odds_snapshots
			WHERE created_at < $1
			ORDER BY created_at ASC, market_id, sequence
			LIMIT $2)`

	tag, err := s.pool.Exec(ctx, query, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete snapshots before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

func (s *OddsStore) list(ctx context.Context, query string, args ...any) ([]domain.OddsSnapshot, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.OddsSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list snapshots: %w", err)
	}
	return snaps, nil
}

func scanSnapshot(row pgx.Row) (domain.OddsSnapshot, error) {
	var snap domain.OddsSnapshot
	var side string
	err := row.Scan(
		&snap.MarketID, &snap.Sequence,
		&snap.YesPool, &snap.NoPool, &snap.TotalPool,
		&snap.YesOdds, &snap.NoOdds,
		&side, &snap.TriggerAmt, &snap.CreatedAt,
	)
	if err != nil {
		return domain.OddsSnapshot{}, err
	}
	snap.TriggerSide = domain.Side(side)
	return snap, nil
}
