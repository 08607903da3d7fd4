package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTier is the shared primary tier backed by a Redis server.
// Per-key set-with-TTL is atomic on the server side.
type RedisTier struct {
	client *redis.Client
}

// NewRedisTier pings the server once and returns nil when it is
// unreachable, so the engine degrades to process-local caching.
func NewRedisTier(ctx context.Context, addr, password string, db int) *RedisTier {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[WARN] redis unavailable at %s, falling back to memory cache: %v", addr, err)
		_ = client.Close()
		return nil
	}
	log.Printf("[INFO] redis cache connected: %s", addr)
	return &RedisTier{client: client}
}

func (r *RedisTier) Get(ctx context.Context, key string) (string, bool, error) {
	payload, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return payload, true, nil
}

func (r *RedisTier) Set(ctx context.Context, key, payload string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisTier) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeletePrefix scans for matching keys in batches and deletes them.
func (r *RedisTier) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del batch: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis del batch: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *RedisTier) Close() error {
	return r.client.Close()
}
