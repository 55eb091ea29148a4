package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedEstimator wraps an Estimator with a redis read-through cache.
// Travel legs are stable on the cache TTL timescale, and the upstream
// matrix API is the slowest call in a ranking pass.
type CachedEstimator struct {
	inner  Estimator
	client *redis.Client
	ttl    time.Duration
}

// NewCachedEstimator creates a cache in front of an estimator
func NewCachedEstimator(inner Estimator, address, password string, ttl time.Duration) (*CachedEstimator, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &CachedEstimator{
		inner:  inner,
		client: client,
		ttl:    ttl,
	}, nil
}

func legKey(origin, destination string) string {
	return fmt.Sprintf("travel:%s|%s", origin, destination)
}

// Estimate returns a cached leg when present, otherwise queries the
// inner estimator and stores the result. Cache errors degrade to a
// direct lookup and are never returned to the caller.
func (c *CachedEstimator) Estimate(ctx context.Context, origin, destination string) (Estimate, error) {
	key := legKey(origin, destination)

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var est Estimate
		if err := json.Unmarshal([]byte(cached), &est); err == nil {
			return est, nil
		}
		slog.Warn("dropping unreadable cached travel leg", "key", key)
		c.client.Del(ctx, key)
	} else if err != redis.Nil {
		slog.Warn("travel cache read failed", "key", key, "error", err)
	}

	est, err := c.inner.Estimate(ctx, origin, destination)
	if err != nil {
		return Estimate{}, err
	}

	payload, err := json.Marshal(est)
	if err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			slog.Warn("travel cache write failed", "key", key, "error", err)
		}
	}

	return est, nil
}

// Close releases the redis connection
func (c *CachedEstimator) Close() error {
	return c.client.Close()
}
