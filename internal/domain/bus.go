package domain

import (
	"context"
	"io"
	"time"
)

// SignalBus is the fan-out channel between the settlement path and real-time
// subscribers (the WebSocket hub). Payloads are opaque bytes, JSON in
// practice.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel of payloads for the given channel name.
	// The subscription and the returned channel close with ctx.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager provides distributed locks so scheduled jobs survive duplicate
// invocation near a period boundary (restarts, multiple instances).
type LockManager interface {
	// Acquire obtains the lock or returns ErrLockHeld. The returned function
	// releases it and is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter enforces a per-key request budget over a sliding window.
type RateLimiter interface {
	// Allow reports whether the key has budget left in the current window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SaleCache caches the public SaleDay view keyed by sale code.
type SaleCache interface {
	Get(ctx context.Context, saleCode string) (SaleDay, error)
	Set(ctx context.Context, d SaleDay) error
	Invalidate(ctx context.Context, saleCode string) error
}

// BlobWriter writes archive objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
}
