package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const catalogPrefix = "catalog:"

// CatalogCache stores rendered catalog reads (priced services, categories)
// as JSON. Admin writes call Invalidate so readers never see a stale price
// for longer than one request.
type CatalogCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewCatalogCache creates a new CatalogCache.
func NewCatalogCache(redis *RedisClient, ttl time.Duration) *CatalogCache {
	return &CatalogCache{redis: redis, ttl: ttl}
}

// ServicesKey is the key of the active service list, optionally scoped to a category.
func ServicesKey(categoryID int) string {
	if categoryID == 0 {
		return catalogPrefix + "services:all"
	}
	return fmt.Sprintf("%sservices:category:%d", catalogPrefix, categoryID)
}

// CategoriesKey is the key of the active category list.
func CategoriesKey() string {
	return catalogPrefix + "categories"
}

// Get decodes the cached value into dst. It reports false on a miss.
// A nil cache always misses.
func (c *CatalogCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	if c == nil || c.redis == nil {
		return false, nil
	}
	raw, err := c.redis.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		// Corrupt entry: drop it and treat as a miss.
		_ = c.redis.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

// Set stores value under key with the cache TTL.
func (c *CatalogCache) Set(ctx context.Context, key string, value interface{}) error {
	if c == nil || c.redis == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog entry: %w", err)
	}
	return c.redis.Set(ctx, key, string(data), c.ttl)
}

// Invalidate drops every cached catalog entry. Failures are logged only.
func (c *CatalogCache) Invalidate(ctx context.Context) {
	if c == nil || c.redis == nil {
		return
	}
	if err := c.redis.DeletePattern(ctx, catalogPrefix+"*"); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate catalog cache")
	}
}
