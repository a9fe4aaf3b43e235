package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace-dev/realtime-gateway/internal/cache"
)

func TestCachedStore_DisabledCacheFallsThrough(t *testing.T) {
	disabled, err := cache.NewCache(cache.Config{Enabled: false})
	require.NoError(t, err)

	inner := NewMemStore()
	cached := NewCachedStore(inner, disabled, time.Minute)

	u, err := cached.GetOrCreateByName(context.Background(), "Alice")
	require.NoError(t, err)

	found, err := cached.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, found)
}

func TestCachedStore_GetOrCreateByID_HonorsSuppliedID(t *testing.T) {
	disabled, err := cache.NewCache(cache.Config{Enabled: false})
	require.NoError(t, err)

	cached := NewCachedStore(NewMemStore(), disabled, time.Minute)

	u, err := cached.GetOrCreateByID(context.Background(), "u1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	found, err := cached.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, u, found)
}
