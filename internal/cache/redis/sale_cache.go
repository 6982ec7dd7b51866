package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibet/taibet/internal/domain"
)

// saleCacheTTL bounds staleness if an invalidation is lost; the daily job
// rewrites the entry anyway.
const saleCacheTTL = 26 * time.Hour

// SaleCache implements domain.SaleCache with JSON values keyed by sale code.
type SaleCache struct {
	rdb *redis.Client
}

// NewSaleCache creates a SaleCache backed by the given Client.
func NewSaleCache(c *Client) *SaleCache {
	return &SaleCache{rdb: c.Underlying()}
}

func saleKey(saleCode string) string {
	return "sale:" + saleCode
}

// Get returns the cached sale day, or domain.ErrNotFound on a miss.
func (sc *SaleCache) Get(ctx context.Context, saleCode string) (domain.SaleDay, error) {
	raw, err := sc.rdb.Get(ctx, saleKey(saleCode)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.SaleDay{}, domain.ErrNotFound
		}
		return domain.SaleDay{}, fmt.Errorf("redis: get sale %s: %w", saleCode, err)
	}

	var day domain.SaleDay
	if err := json.Unmarshal(raw, &day); err != nil {
		return domain.SaleDay{}, fmt.Errorf("redis: decode sale %s: %w", saleCode, err)
	}
	return day, nil
}

// Set caches the sale day under its code.
func (sc *SaleCache) Set(ctx context.Context, d domain.SaleDay) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("redis: encode sale %s: %w", d.SaleCode, err)
	}
	if err := sc.rdb.Set(ctx, saleKey(d.SaleCode), raw, saleCacheTTL).Err(); err != nil {
		return fmt.Errorf("redis: set sale %s: %w", d.SaleCode, err)
	}
	return nil
}

// Invalidate drops the cached entry for the given sale code.
func (sc *SaleCache) Invalidate(ctx context.Context, saleCode string) error {
	if err := sc.rdb.Del(ctx, saleKey(saleCode)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate sale %s: %w", saleCode, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SaleCache = (*SaleCache)(nil)
