package users

import (
	"context"
	"time"

	"github.com/streamspace-dev/realtime-gateway/internal/cache"
)

// CachedStore wraps a Store with a read-through Redis cache on GetByID,
// using the same instance and TTL-based Get/Set pattern as
// internal/cache (spec SPEC_FULL.md section 3 user-repository
// supplement). Safe to wrap around either MemStore or PostgresStore;
// when the cache is disabled every call just falls through.
type CachedStore struct {
	inner Store
	cache *cache.Cache
	ttl   time.Duration
}

// NewCachedStore wraps inner with c, caching GetByID lookups for ttl.
func NewCachedStore(inner Store, c *cache.Cache, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, cache: c, ttl: ttl}
}

func userCacheKey(id string) string {
	return "user:byid:" + id
}

func (c *CachedStore) GetByID(ctx context.Context, id string) (User, error) {
	if c.cache.IsEnabled() {
		var cached User
		if err := c.cache.Get(ctx, userCacheKey(id), &cached); err == nil {
			return cached, nil
		}
	}

	u, err := c.inner.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	if c.cache.IsEnabled() {
		_ = c.cache.Set(ctx, userCacheKey(id), u, c.ttl)
	}
	return u, nil
}

func (c *CachedStore) GetOrCreateByName(ctx context.Context, name string) (User, error) {
	u, err := c.inner.GetOrCreateByName(ctx, name)
	if err != nil {
		return User{}, err
	}
	if c.cache.IsEnabled() {
		_ = c.cache.Set(ctx, userCacheKey(u.ID), u, c.ttl)
	}
	return u, nil
}

func (c *CachedStore) GetOrCreateByID(ctx context.Context, id, name string) (User, error) {
	u, err := c.inner.GetOrCreateByID(ctx, id, name)
	if err != nil {
		return User{}, err
	}
	if c.cache.IsEnabled() {
		_ = c.cache.Set(ctx, userCacheKey(u.ID), u, c.ttl)
	}
	return u, nil
}

func (c *CachedStore) Close() error {
	return c.inner.Close()
}
