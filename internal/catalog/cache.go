package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache tags used by the catalog.
const (
	TagProducts   = "products"
	TagCategories = "categories"
)

// ProductTag is the cache tag of a single product.
func ProductTag(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

// Cache is a tagged read-through cache for public catalog responses.
type Cache interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) error
	InvalidateTags(ctx context.Context, tags ...string) (int, error)
}

// RedisCache stores JSON values under "catalog:cache:*" and tracks the keys
// of every tag in a redis set.
type RedisCache struct {
	redis *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{redis: client}
}

func cacheKey(key string) string { return "catalog:cache:" + key }
func tagKey(tag string) string   { return "catalog:tag:" + tag }

func (c *RedisCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, cacheKey(key), data, ttl)
	for _, tag := range tags {
		pipe.SAdd(ctx, tagKey(tag), cacheKey(key))
		// Tag sets outlive their entries so invalidation still finds them.
		pipe.Expire(ctx, tagKey(tag), 2*ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisCache) InvalidateTags(ctx context.Context, tags ...string) (int, error) {
	removed := 0
	for _, tag := range tags {
		keys, err := c.redis.SMembers(ctx, tagKey(tag)).Result()
		if err != nil {
			return removed, err
		}

		pipe := c.redis.TxPipeline()
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, tagKey(tag))
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, err
		}
		removed += len(keys)
	}
	return removed, nil
}

// TagsForPath maps a storefront path to the cache tags it depends on.
func TagsForPath(path string) []string {
	path = "/" + strings.Trim(strings.TrimSpace(path), "/")
	switch {
	case path == "/" || path == "/products":
		return []string{TagProducts, TagCategories}
	case strings.HasPrefix(path, "/products/"):
		id := strings.TrimPrefix(path, "/products/")
		return []string{"product:" + id}
	case path == "/categories":
		return []string{TagCategories}
	}
	return nil
}

// noopCache disables caching.
type noopCache struct{}

// NoopCache returns a Cache that never stores anything.
func NoopCache() Cache { return noopCache{} }

func (noopCache) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (noopCache) Set(context.Context, string, interface{}, time.Duration, ...string) error {
	return nil
}
func (noopCache) InvalidateTags(context.Context, ...string) (int, error) { return 0, nil }
