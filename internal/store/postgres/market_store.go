package postgres

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibet/taibet/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// Create inserts a new market.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, title, status, yes_pool, no_pool, total_pool, total_fees,
			version, closes_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.Title, string(m.Status),
		m.YesPool, m.NoPool, m.TotalPool, m.TotalFees,
		m.Version, m.ClosesAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create market %s: %w", m.ID, err)
	}
	return nil
}

// GetByID retrieves a market by its id.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	const query = `
		SELECT id, title, status, yes_pool, no_pool, total_pool, total_fees,
		       version, closes_at, created_at, updated_at
		FROM markets WHERE id = $1`

	m, err := scanMarket(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrMarketNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// List returns a page of markets matching q plus the cursor for the next
// page (empty when the page is the last one).
func (s *MarketStore) List(ctx context.Context, q domain.MarketQuery) ([]domain.Market, string, error) {
	limit := q.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	sortCol, desc := sortColumn(q.Sort)

	var (
		conds []string
		args  []any
	)
	if q.Status != "" {
		args = append(args, string(q.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if q.Cursor != "" {
		val, id, err := decodeCursor(q.Cursor)
		if err != nil {
			return nil, "", fmt.Errorf("postgres: list markets: %w", err)
		}
		op := ">"
		if desc {
			op = "<"
		}
		args = append(args, val, id)
		conds = append(conds, fmt.Sprintf("(%s, id) %s ($%d::%s, $%d)",
			sortCol, op, len(args)-1, sortCast(q.Sort), len(args)))
	}

	query := `
		SELECT id, title, status, yes_pool, no_pool, total_pool, total_fees,
		       version, closes_at, created_at, updated_at
		FROM markets`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	args = append(args, limit+1)
	query += fmt.Sprintf(" ORDER BY %s %s, id %s LIMIT $%d", sortCol, dir, dir, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, "", fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("postgres: list markets: %w", err)
	}

	var next string
	if len(markets) > limit {
		markets = markets[:limit]
		last := markets[len(markets)-1]
		next = encodeCursor(sortValue(last, q.Sort), last.ID)
	}
	return markets, next, nil
}

// CommitSettlement applies one settlement as a single transaction: the
// market row update guarded by the expected version, the immutable stake
// insert, and the odds snapshot insert. A version mismatch rolls back and
// returns domain.ErrConflict.
func (s *MarketStore) CommitSettlement(ctx context.Context, st domain.Settlement) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin settlement: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const updateMarket = `
		UPDATE markets SET
			yes_pool   = $1,
			no_pool    = $2,
			total_pool = $3,
			total_fees = $4,
			version    = $5,
			updated_at = NOW()
		WHERE id = $6 AND version = $7`

	tag, err := tx.Exec(ctx, updateMarket,
		st.Market.YesPool, st.Market.NoPool, st.Market.TotalPool,
		st.Market.TotalFees, st.Market.Version,
		st.Market.ID, st.PrevVersion,
	)
	if err != nil {
		return fmt.Errorf("postgres: settlement update market %s: %w", st.Market.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}

	const insertStake = `
		INSERT INTO stakes (
			id, market_id, wallet, side, gross_amount, fee_amount,
			net_amount, quoted_odds, potential_payout, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`

	if _, err := tx.Exec(ctx, insertStake,
		st.Stake.ID, st.Stake.MarketID, st.Stake.Wallet, string(st.Stake.Side),
		st.Stake.GrossAmount, st.Stake.FeeAmount, st.Stake.NetAmount,
		st.Stake.QuotedOdds, st.Stake.PotentialPayout,
	); err != nil {
		return fmt.Errorf("postgres: settlement insert stake %s: %w", st.Stake.ID, err)
	}

	const insertSnapshot = `
		INSERT INTO odds_snapshots (
			market_id, sequence, yes_pool, no_pool, total_pool,
			yes_odds, no_odds, trigger_side, trigger_amount, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`

	if _, err := tx.Exec(ctx, insertSnapshot,
		st.Snapshot.MarketID, st.Snapshot.Sequence,
		st.Snapshot.YesPool, st.Snapshot.NoPool, st.Snapshot.TotalPool,
		st.Snapshot.YesOdds, st.Snapshot.NoOdds,
		string(st.Snapshot.TriggerSide), st.Snapshot.TriggerAmt,
	); err != nil {
		return fmt.Errorf("postgres: settlement insert snapshot %s/%d: %w",
			st.Snapshot.MarketID, st.Snapshot.Sequence, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit settlement: %w", err)
	}
	return nil
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status string
	err := row.Scan(
		&m.ID, &m.Title, &status,
		&m.YesPool, &m.NoPool, &m.TotalPool, &m.TotalFees,
		&m.Version, &m.ClosesAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	return m, nil
}

func sortColumn(sort string) (col string, desc bool) {
	switch sort {
	case "close_time":
		return "closes_at", false
	case "total_pool":
		return "total_pool", true
	default:
		return "created_at", true
	}
}

func sortCast(sort string) string {
	switch sort {
	case "total_pool":
		return "numeric"
	default:
		return "timestamptz"
	}
}

func sortValue(m domain.Market, sort string) string {
	switch sort {
	case "close_time":
		return m.ClosesAt.UTC().Format(time.RFC3339Nano)
	case "total_pool":
		return m.TotalPool.String()
	default:
		return m.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
}

// encodeCursor packs the last row's sort value and id into an opaque token.
func encodeCursor(val, id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(val + "|" + id))
}

func decodeCursor(cursor string) (val, id string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", "", fmt.Errorf("invalid cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid cursor")
	}
	return parts[0], parts[1], nil
}
