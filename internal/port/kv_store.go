package port

import (
	"context"
	"time"
)

// KVStore is the shared, TTL-capable key-value store. Writes replace the
// whole value. Get returns domain.ErrNotFound for a missing or expired key.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
}

// Purger is implemented by stores that need explicit expiry sweeps.
type Purger interface {
	Purge(ctx context.Context) (int, error)
}
