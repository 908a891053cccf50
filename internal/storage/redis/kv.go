package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/gomarketplace/internal/storage"
	"github.com/utafrali/gomarketplace/pkg/database"
)

// KV implements storage.KV using Redis strings.
type KV struct {
	client *redis.Client
	ttl    time.Duration
}

// NewKV creates a Redis-backed store. A zero ttl stores values without expiry.
func NewKV(client *redis.Client, ttl time.Duration) *KV {
	return &KV{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the value stored under key.
func (s *KV) Get(ctx context.Context, key string) (string, error) {
	ctx, end := database.TraceCall(ctx, "redis", "GET", key)

	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		end(nil)
		return "", storage.ErrNotFound
	}
	end(err)
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

// Set stores value under key with the configured TTL.
func (s *KV) Set(ctx context.Context, key, value string) error {
	ctx, end := database.TraceCall(ctx, "redis", "SET", key)

	err := s.client.Set(ctx, key, value, s.ttl).Err()
	end(err)
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *KV) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
