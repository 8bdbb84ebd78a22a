// Package cache holds the Redis-backed principal to user id cache.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "spotlight:principal:"

// IdentityCache maps external principal ids to internal user ids.
type IdentityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdentityCache connects to redisURL and verifies the connection.
func NewIdentityCache(redisURL string, ttl time.Duration) (*IdentityCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewIdentityCacheWithClient(client, ttl), nil
}

// NewIdentityCacheWithClient wraps an existing client.
func NewIdentityCacheWithClient(client *redis.Client, ttl time.Duration) *IdentityCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &IdentityCache{client: client, ttl: ttl}
}

func (c *IdentityCache) key(principal string) string {
	return keyPrefix + principal
}

// Get returns the cached user id for principal. found is false on a miss.
func (c *IdentityCache) Get(ctx context.Context, principal string) (userID string, found bool, err error) {
	userID, err = c.client.Get(ctx, c.key(principal)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get principal %s: %w", principal, err)
	}
	return userID, true, nil
}

// Set caches principal -> userID with the configured TTL.
func (c *IdentityCache) Set(ctx context.Context, principal, userID string) error {
	if err := c.client.Set(ctx, c.key(principal), userID, c.ttl).Err(); err != nil {
		return fmt.Errorf("set principal %s: %w", principal, err)
	}
	return nil
}

// Delete drops the entry for principal. Missing entries are not an error.
func (c *IdentityCache) Delete(ctx context.Context, principal string) error {
	if err := c.client.Del(ctx, c.key(principal)).Err(); err != nil {
		return fmt.Errorf("delete principal %s: %w", principal, err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (c *IdentityCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *IdentityCache) Close() error {
	return c.client.Close()
}
