package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCacheTest(t *testing.T) (*Cache, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	c, err := NewCache(Config{Host: mr.Host(), Port: mr.Port(), Enabled: true})
	require.NoError(t, err)

	return c, func() {
		c.Close()
		mr.Close()
	}
}

func TestCache_DisabledIsNoop(t *testing.T) {
	c, err := NewCache(Config{Enabled: false})
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.IsEnabled())
	assert.NoError(t, c.Set(context.Background(), "k", "v", time.Minute))

	var out string
	err = c.Get(context.Background(), "k", &out)
	assert.Error(t, err)
}

func TestCache_SetGetDelete(t *testing.T) {
	c, cleanup := setupCacheTest(t)
	defer cleanup()
	ctx := context.Background()

	type user struct {
		ID   string
		Name string
	}
	u := user{ID: "u1", Name: "Alice"}

	require.NoError(t, c.Set(ctx, "user:byid:u1", u, time.Minute))

	var got user
	require.NoError(t, c.Get(ctx, "user:byid:u1", &got))
	assert.Equal(t, u, got)

	require.NoError(t, c.Delete(ctx, "user:byid:u1"))

	err := c.Get(ctx, "user:byid:u1", &got)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCache_GetMissReturnsErrNotFound(t *testing.T) {
	c, cleanup := setupCacheTest(t)
	defer cleanup()

	var out string
	err := c.Get(context.Background(), "nope", &out)
	assert.True(t, errors.Is(err, ErrNotFound))
}
