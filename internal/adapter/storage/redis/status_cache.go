package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// StatusCache implements ports.StatusCache using Redis. Tagged entries are
// tracked in per-tag sets so a payment mutation can drop every cached view
// of it in one call.
type StatusCache struct {
	client    *goredis.Client
	prefix    string
	tagPrefix string
}

// NewStatusCache creates a new Redis-backed status cache.
func NewStatusCache(client *goredis.Client) *StatusCache {
	return &StatusCache{
		client:    client,
		prefix:    "cache:",
		tagPrefix: "cachetag:",
	}
}

// Get retrieves a cached value. Returns nil, nil on a miss.
func (c *StatusCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis cache get: %w", err)
	}
	return val, nil
}

// Set stores a value with TTL.
func (c *StatusCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis cache set: %w", err)
	}
	return nil
}

// SetTagged stores a value and registers the key under each tag. Tag sets
// outlive the entry slightly so invalidation still finds expired keys.
func (c *StatusCache) SetTagged(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	fullKey := c.prefix + key
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, fullKey, value, ttl)
	for _, tag := range tags {
		tagKey := c.tagPrefix + tag
		pipe.SAdd(ctx, tagKey, fullKey)
		pipe.Expire(ctx, tagKey, ttl+time.Minute)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis cache set tagged: %w", err)
	}
	return nil
}

// InvalidateTags deletes every cached entry registered under the given tags,
// and the tag sets themselves.
func (c *StatusCache) InvalidateTags(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		tagKey := c.tagPrefix + tag
		keys, err := c.client.SMembers(ctx, tagKey).Result()
		if err != nil {
			return fmt.Errorf("redis cache tag members: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis cache invalidate: %w", err)
			}
		}
		if err := c.client.Del(ctx, tagKey).Err(); err != nil {
			return fmt.Errorf("redis cache tag delete: %w", err)
		}
	}
	return nil
}
