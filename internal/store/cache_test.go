package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/nordkit/commerce-core/internal/domain"
	"github.com/nordkit/commerce-core/internal/logging"
)

func newTestCache(t *testing.T) *VariantCache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewVariantCache(rdb, time.Minute, logging.New("test"))
}

func TestVariantCacheMissThenHit(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "variant-1")
	require.False(t, ok, "empty cache should miss")

	v := domain.ProductVariant{ID: "variant-1", SKU: "SKU-1", Quantity: 10, ReservedQuantity: 2, Version: 3}
	cache.Set(ctx, v)

	got, ok := cache.Get(ctx, "variant-1")
	require.True(t, ok)
	require.Equal(t, v, *got)
}

func TestVariantCacheInvalidate(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, domain.ProductVariant{ID: "variant-1", SKU: "SKU-1", Quantity: 5})
	cache.Invalidate(ctx, "variant-1")

	_, ok := cache.Get(ctx, "variant-1")
	require.False(t, ok, "invalidated entry should miss")
}
