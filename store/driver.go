package store

import (
	"context"
	"time"
)

// Driver is an interface for the backing key-value store client.
// It contains every primitive the cache layer and the memory governor need;
// implementations live under store/db.
type Driver interface {
	// Basic key operations.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Bulk operations.
	Keys(ctx context.Context, pattern string) ([]string, error)
	MGet(ctx context.Context, keys ...string) ([]*string, error)
	// MSet writes all entries with the given TTL in a single pipeline.
	MSet(ctx context.Context, entries map[string]string, ttl time.Duration) error

	// Set collections, used by the tag index.
	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	// Introspection, used by the governor and stats.
	DBSize(ctx context.Context) (int64, error)
	MemoryUsed(ctx context.Context) (int64, error)
	// IdleTime reports how long a key has gone without access.
	IdleTime(ctx context.Context, key string) (time.Duration, error)

	Ping(ctx context.Context) error
	Close() error
}
