package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/taibet/taibet/internal/domain"
)

// SaleStore implements domain.SaleStore using PostgreSQL. The sale_code
// primary key (the calendar date) is the natural identity of a day; the
// daily adjustment job leans on the insert conflict for idempotence.
type SaleStore struct {
	pool *pgxpool.Pool
}

// NewSaleStore creates a new SaleStore backed by the given connection pool.
func NewSaleStore(pool *pgxpool.Pool) *SaleStore {
	return &SaleStore{pool: pool}
}

const saleColumns = `
	sale_code, price_ton, base_tai, max_tai, total_tai, sold_tai,
	sold_out, accelerate, adjust_percent, expires_at, created_at`

// GetDay retrieves one sale day by its code.
func (s *SaleStore) GetDay(ctx context.Context, saleCode string) (domain.SaleDay, error) {
	query := "SELECT" + saleColumns + " FROM sale_days WHERE sale_code = $1"
	day, err := scanSaleDay(s.pool.QueryRow(ctx, query, saleCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SaleDay{}, domain.ErrNotFound
		}
		return domain.SaleDay{}, fmt.Errorf("postgres: get sale day %s: %w", saleCode, err)
	}
	return day, nil
}

// CreateDay inserts a new sale day. ErrAlreadyExists when the code is taken.
func (s *SaleStore) CreateDay(ctx context.Context, d domain.SaleDay) error {
	const query = `
		INSERT INTO sale_days (
			sale_code, price_ton, base_tai, max_tai, total_tai, sold_tai,
			sold_out, accelerate, adjust_percent, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`

	_, err := s.pool.Exec(ctx, query,
		d.SaleCode, d.PriceTON, d.BaseTAI, d.MaxTAI, d.TotalTAI, d.SoldTAI,
		d.SoldOut, d.Accelerate, d.AdjustPercent, d.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create sale day %s: %w", d.SaleCode, err)
	}
	return nil
}

// MostRecent returns the latest sale day by code.
func (s *SaleStore) MostRecent(ctx context.Context) (domain.SaleDay, error) {
	query := "SELECT" + saleColumns + " FROM sale_days ORDER BY sale_code DESC LIMIT 1"
	day, err := scanSaleDay(s.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SaleDay{}, domain.ErrNotFound
		}
		return domain.SaleDay{}, fmt.Errorf("postgres: most recent sale day: %w", err)
	}
	return day, nil
}

// AddSold increments sold_tai by amount. The guard in the WHERE clause
// rejects the increment when it would exceed total_tai or the day is
// already closed, returning ErrSoldOut.
func (s *SaleStore) AddSold(ctx context.Context, saleCode string, amount decimal.Decimal) error {
	const query = `
		UPDATE sale_days SET
			sold_tai = sold_tai + $1,
			sold_out = (sold_tai + $1 >= total_tai)
		WHERE sale_code = $2 AND NOT sold_out AND sold_tai + $1 <= total_tai`

	tag, err := s.pool.Exec(ctx, query, amount, saleCode)
	if err != nil {
		return fmt.Errorf("postgres: add sold %s to day %s: %w", amount, saleCode, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetDay(ctx, saleCode); err != nil {
			return err
		}
		return domain.ErrSoldOut
	}
	return nil
}

// ReleaseSold decrements sold_tai by amount, floored at zero, and recomputes
// sold_out. Used to hand back a reservation whose purchase lost the paid
// transition or failed before it.
func (s *SaleStore) ReleaseSold(ctx context.Context, saleCode string, amount decimal.Decimal) error {
	const query = `
		UPDATE sale_days SET
			sold_tai = GREATEST(sold_tai - $1, 0),
			sold_out = (GREATEST(sold_tai - $1, 0) >= total_tai)
		WHERE sale_code = $2`

	tag, err := s.pool.Exec(ctx, query, amount, saleCode)
	if err != nil {
		return fmt.Errorf("postgres: release sold %s on day %s: %w", amount, saleCode, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanSaleDay(row pgx.Row) (domain.SaleDay, error) {
	var d domain.SaleDay
	err := row.Scan(
		&d.SaleCode, &d.PriceTON, &d.BaseTAI, &d.MaxTAI,
		&d.TotalTAI, &d.SoldTAI, &d.SoldOut, &d.Accelerate,
		&d.AdjustPercent, &d.ExpiresAt, &d.CreatedAt,
	)
	if err != nil {
		return domain.SaleDay{}, err
	}
	return d, nil
}
