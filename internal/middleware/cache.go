// Package middleware contains http middlewares backed by external storages.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("layer", "api").WithField("package", "middleware")

const cacheKeyPrefix = "cache:"

// Storage ...
type Storage interface {
	// Get returns nil content if key is missing.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, content []byte, duration time.Duration) error
	Delete(ctx context.Context, key string) error
}

type redisStorage struct {
	c redis.UniversalClient
}

// NewRedisStorage ...
func NewRedisStorage(c redis.UniversalClient) Storage {
	return redisStorage{c: c}
}

func (s redisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.c.Get(ctx, cacheKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get: %w", err)
	}

	return b, nil
}

func (s redisStorage) Set(ctx context.Context, key string, content []byte, duration time.Duration) error {
	if err := s.c.Set(ctx, cacheKeyPrefix+key, content, duration).Err(); err != nil {
		return fmt.Errorf("failed to set: %w", err)
	}

	return nil
}

func (s redisStorage) Delete(ctx context.Context, key string) error {
	if err := s.c.Del(ctx, cacheKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to del: %w", err)
	}

	return nil
}

// Cached caches successful json responses by request uri.
// Storage failures are logged and the handler is called directly.
func Cached(storage Storage, ttl time.Duration, handler func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content, err := storage.Get(r.Context(), r.RequestURI)
		if err != nil {
			log.WithError(err).Warn("failed to get cached response")
		}

		if content != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			_, _ = w.Write(content)
			return
		}

		c := httptest.NewRecorder()
		handler(c, r)

		for k, v := range c.Header() {
			w.Header()[k] = v
		}

		w.WriteHeader(c.Code)
		content = c.Body.Bytes()

		if c.Code == http.StatusOK {
			if err := storage.Set(r.Context(), r.RequestURI, content, ttl); err != nil {
				log.WithError(err).Warn("failed to cache response")
			}
		}

		_, _ = w.Write(content)
	}
}
