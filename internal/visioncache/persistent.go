package visioncache

import (
	"context"
	"time"
)

// PersistentTier is the durable key-value store backing the cache's
// second tier. Implementations must be safe for concurrent use.
type PersistentTier interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
	IncrementHits(ctx context.Context, key string) error
	Len(ctx context.Context) (int, error)
	// PruneExpired removes entries older than ttl and reports how many
	// were removed.
	PruneExpired(ctx context.Context, ttl time.Duration) (int, error)
}
