package visioncache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "vrtest:visioncache:"

type redisEntry struct {
	Value     Response  `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Hits      int64     `json:"hits"`
}

// redisTier is the persistent tier backed by go-redis, following this
// codebase's redis-config-driven client construction.
type redisTier struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTier wraps an already-configured go-redis client.
func NewRedisTier(client *redis.Client, ttl time.Duration) PersistentTier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisTier{client: client, ttl: ttl}
}

func (r *redisTier) fullKey(key string) string { return redisKeyPrefix + key }

func (r *redisTier) Get(ctx context.Context, key string) (*Entry, error) {
	raw, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}

	var re redisEntry
	if err := json.Unmarshal(raw, &re); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	return &Entry{
		Key:       key,
		Value:     re.Value,
		Timestamp: re.Timestamp,
		Provider:  re.Provider,
		Model:     re.Model,
		Hits:      re.Hits,
	}, nil
}

func (r *redisTier) Set(ctx context.Context, key string, entry Entry) error {
	re := redisEntry{Value: entry.Value, Timestamp: entry.Timestamp, Provider: entry.Provider, Model: entry.Model, Hits: entry.Hits}
	raw, err := json.Marshal(re)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	if err := r.client.Set(ctx, r.fullKey(key), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return nil
}

func (r *redisTier) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return nil
}

func (r *redisTier) IncrementHits(ctx context.Context, key string) error {
	entry, err := r.Get(ctx, key)
	if err != nil || entry == nil {
		return err
	}
	entry.Hits++
	return r.Set(ctx, key, *entry)
}

func (r *redisTier) Len(ctx context.Context) (int, error) {
	var cursor uint64
	count := 0
	for {
		keys, next, err := r.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStoreIO, err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return count, nil
}

// PruneExpired is a no-op for Redis: TTL-based expiry is enforced by the
// server itself via the per-key expiration set in Set.
func (r *redisTier) PruneExpired(_ context.Context, _ time.Duration) (int, error) {
	return 0, nil
}
