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

// RainStore implements domain.RainStore using PostgreSQL.
type RainStore struct {
	pool *pgxpool.Pool
}

// NewRainStore creates a new RainStore backed by the given connection pool.
func NewRainStore(pool *pgxpool.Pool) *RainStore {
	return &RainStore{pool: pool}
}

const dropColumns = `
	id, amount_tai, ticket_price_ton, min_bonus_tai, max_bonus_tai,
	max_participants, claimed, status, expires_at, created_at`

// CreateDrop inserts a new rain drop.
func (s *RainStore) CreateDrop(ctx context.Context, d domain.RainDrop) error {
	const query = `
		INSERT INTO rain_drops (
			id, amount_tai, ticket_price_ton, min_bonus_tai, max_bonus_tai,
			max_participants, claimed, status, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`

	_, err := s.pool.Exec(ctx, query,
		d.ID, d.AmountTAI, d.TicketPriceTON, d.MinBonusTAI, d.MaxBonusTAI,
		d.MaxParticipants, d.Claimed, string(d.Status), d.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create rain drop %s: %w", d.ID, err)
	}
	return nil
}

// ActiveDrop returns the most recent active, unexpired drop.
func (s *RainStore) ActiveDrop(ctx context.Context, now time.Time) (domain.RainDrop, error) {
	query := "SELECT" + dropColumns + `
		FROM rain_drops
		WHERE status = 'active' AND expires_at > $1
		ORDER BY created_at DESC LIMIT 1`

	d, err := scanDrop(s.pool.QueryRow(ctx, query, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RainDrop{}, domain.ErrNotFound
		}
		return domain.RainDrop{}, fmt.Errorf("postgres: active rain drop: %w", err)
	}
	return d, nil
}

// ExpireDrops marks active drops past their deadline as expired.
func (s *RainStore) ExpireDrops(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"UPDATE rain_drops SET status = 'expired' WHERE status = 'active' AND expires_at <= $1",
		now)
	if err != nil {
		return 0, fmt.Errorf("postgres: expire rain drops: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CreateClaim inserts a claim and bumps the drop's claimed counter in one
// transaction. The counter update is guarded against the participant cap so
// concurrent claimants cannot overfill the drop.
func (s *RainStore) CreateClaim(ctx context.Context, c domain.RainClaim) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin rain claim: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const bump = `
		UPDATE rain_drops SET claimed = claimed + 1
		WHERE id = $1 AND status = 'active'
		  AND expires_at > NOW() AND claimed < max_participants`

	tag, err := tx.Exec(ctx, bump, c.DropID)
	if err != nil {
		return fmt.Errorf("postgres: bump rain drop %s: %w", c.DropID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDropClosed
	}

	const insert = `
		INSERT INTO rain_claims (id, drop_id, wallet, bonus_tai, payout_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`

	if _, err := tx.Exec(ctx, insert,
		c.ID, c.DropID, c.Wallet, c.BonusTAI, c.PayoutPayload,
	); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: insert rain claim %s: %w", c.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit rain claim %s: %w", c.ID, err)
	}
	return nil
}

// ListClaims returns claims against a drop, newest first.
func (s *RainStore) ListClaims(ctx context.Context, dropID string, opts domain.ListOpts) ([]domain.RainClaim, error) {
	const query = `
		SELECT id, drop_id, wallet, bonus_tai, payout_payload, created_at
		FROM rain_claims WHERE drop_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, dropID, listLimit(opts))
	if err != nil {
		return nil, fmt.Errorf("postgres: list rain claims: %w", err)
	}
	defer rows.Close()

	var claims []domain.RainClaim
	for rows.Next() {
		var c domain.RainClaim
		if err := rows.Scan(&c.ID, &c.DropID, &c.Wallet, &c.BonusTAI, &c.PayoutPayload, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan rain claim: %w", err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list rain claims: %w", err)
	}
	return claims, nil
}

func scanDrop(row pgx.Row) (domain.RainDrop, error) {
	var d domain.RainDrop
	var status string
	err := row.Scan(
		&d.ID, &d.AmountTAI, &d.TicketPriceTON, &d.MinBonusTAI, &d.MaxBonusTAI,
		&d.MaxParticipants, &d.Claimed, &status, &d.ExpiresAt, &d.CreatedAt,
	)
	if err != nil {
		return domain.RainDrop{}, err
	}
	d.Status = domain.DropStatus(status)
	return d, nil
}
