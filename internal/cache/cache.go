// Package cache implements the read-through entity cache (spec §5). It is
// a soft dependency: when REDIS_URL is unset, NewNoop provides the same
// interface with every call a harmless no-op, so the rest of the system
// never branches on whether caching is enabled.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is implemented by both the real Redis-backed client and the noop
// fallback, so callers depend on the interface rather than the backend.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// InvalidateNamespace drops every cached key under a prefix, used after
	// writes so stale list pages never outlive the record they describe.
	InvalidateNamespace(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
}

// Key builds the "<entity>:<org_id>:<id>" convention for a single record.
func Key(entity, orgID, id string) string {
	return fmt.Sprintf("%s:%s:%s", entity, orgID, id)
}

// ListKey builds the "<entity>:<org_id>:list:<fingerprint>" convention for
// a cached listing page, where fingerprint is a hash of the query params.
func ListKey(entity, orgID, fingerprint string) string {
	return fmt.Sprintf("%s:%s:list:%s", entity, orgID, fingerprint)
}

// NamespacePrefix returns the prefix that covers every cached key — single
// records and list pages alike — for one entity within one organization.
func NamespacePrefix(entity, orgID string) string {
	return fmt.Sprintf("%s:%s:", entity, orgID)
}

type redisCache struct {
	client *redis.Client
	logger *slog.Logger
}

// New connects to Redis at addr and returns a Cache. Callers should treat
// connection failures as non-fatal per §5 and fall back to NewNoop.
func New(addr string, logger *slog.Logger) (Cache, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &redisCache{client: client, logger: logger.With("component", "cache")}, nil
}

func (c *redisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (c *redisCache) InvalidateNamespace(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan %s: %w", prefix, err)
	}
	return c.Delete(ctx, keys...)
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
