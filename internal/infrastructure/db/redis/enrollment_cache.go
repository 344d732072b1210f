package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EnrollmentCache stages short lived values shared by every instance of the
// service, e.g. a two-factor secret waiting for confirmation.
type EnrollmentCache struct {
	client *redis.Client
}

// NewEnrollmentCache creates an EnrollmentCache wrapping the given Redis client.
func NewEnrollmentCache(client *redis.Client) *EnrollmentCache {
	return &EnrollmentCache{client: client}
}

func (c *EnrollmentCache) Stage(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("stage %s: %w", key, err)
	}
	return nil
}

// Fetch reports ok=false for a missing or expired key.
func (c *EnrollmentCache) Fetch(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetch %s: %w", key, err)
	}
	return value, true, nil
}

func (c *EnrollmentCache) Drop(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
