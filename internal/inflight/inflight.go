// Package inflight contains a guard against duplicate concurrent submissions.
package inflight

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:generate mockgen -destination=./mock/inflight.go -package=mock -source=inflight.go

// Guard marks keys as taken for a while.
type Guard interface {
	// Acquire returns false if the key is already taken.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release frees the key.
	Release(ctx context.Context, key string) error
}

const keyPrefix = "inflight:"

type redisGuard struct {
	c redis.UniversalClient
}

// NewRedisGuard creates guard over redis SETNX.
func NewRedisGuard(c redis.UniversalClient) Guard {
	return redisGuard{c: c}
}

func (g redisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.c.SetNX(ctx, keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to setnx: %w", err)
	}

	return ok, nil
}

func (g redisGuard) Release(ctx context.Context, key string) error {
	if err := g.c.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to del: %w", err)
	}

	return nil
}
