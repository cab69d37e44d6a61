package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nordkit/commerce-core/internal/domain"
)

// VariantCache is a cache-aside layer over VariantRepo keyed by variant ID.
// Reservation writes invalidate rather than update, since the repo's row
// locking is the source of truth for availability.
type VariantCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewVariantCache(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *VariantCache {
	return &VariantCache{rdb: rdb, ttl: ttl, log: log}
}

func variantCacheKey(id string) string { return "variant:" + id }

func (c *VariantCache) Get(ctx context.Context, id string) (*domain.ProductVariant, bool) {
	raw, err := c.rdb.Get(ctx, variantCacheKey(id)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Warn("variant cache get failed", slog.String("id", id), slog.Any("error", err))
		return nil, false
	}
	var v domain.ProductVariant
	if err := json.Unmarshal(raw, &v); err != nil {
		c.log.Warn("variant cache decode failed", slog.String("id", id), slog.Any("error", err))
		return nil, false
	}
	return &v, true
}

func (c *VariantCache) Set(ctx context.Context, v domain.ProductVariant) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("variant cache encode failed", slog.String("id", v.ID), slog.Any("error", err))
		return
	}
	if err := c.rdb.Set(ctx, variantCacheKey(v.ID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("variant cache set failed", slog.String("id", v.ID), slog.Any("error", err))
	}
}

func (c *VariantCache) Invalidate(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, variantCacheKey(id)).Err(); err != nil {
		c.log.Warn("variant cache invalidate failed", slog.String("id", id), slog.Any("error", err))
	}
}

// CachedVariantRepo wraps VariantRepo with the cache-aside pattern: reads
// hit the cache first and populate it on miss, best-effort; every mutation
// on the variant (reserve/confirm/release) should call Invalidate after
// commit rather than attempting to update the cached value in place.
type CachedVariantRepo struct {
	repo  *VariantRepo
	cache *VariantCache
	log   *slog.Logger
}

func NewCachedVariantRepo(repo *VariantRepo, cache *VariantCache, log *slog.Logger) *CachedVariantRepo {
	return &CachedVariantRepo{repo: repo, cache: cache, log: log}
}

func (c *CachedVariantRepo) GetByID(ctx context.Context, id string) (*domain.ProductVariant, error) {
	if v, ok := c.cache.Get(ctx, id); ok {
		return v, nil
	}
	v, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, *v)
	return v, nil
}
