package token

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace-dev/realtime-gateway/internal/cache"
)

func setupRevokerTest(t *testing.T) (*Revoker, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	c, err := cache.NewCache(cache.Config{Host: mr.Host(), Port: mr.Port(), Enabled: true})
	require.NoError(t, err)

	return NewRevoker(c), func() {
		c.Close()
		mr.Close()
	}
}

func TestRevoker_UntrackedSessionIsNotRevoked(t *testing.T) {
	r, cleanup := setupRevokerTest(t)
	defer cleanup()

	assert.False(t, r.IsRevoked(context.Background(), "jti-never-seen"))
}

func TestRevoker_TrackedButNotRevokedStaysLive(t *testing.T) {
	r, cleanup := setupRevokerTest(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, r.Track(ctx, "jti-1", time.Hour))
	assert.False(t, r.IsRevoked(ctx, "jti-1"))
}

func TestRevoker_RevokeMarksSessionRevoked(t *testing.T) {
	r, cleanup := setupRevokerTest(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, r.Track(ctx, "jti-2", time.Hour))
	require.NoError(t, r.Revoke(ctx, "jti-2", time.Hour))

	assert.True(t, r.IsRevoked(ctx, "jti-2"))
	// A different, never-revoked session is unaffected.
	assert.False(t, r.IsRevoked(ctx, "jti-3"))
}

func TestRevoker_DisabledCacheTreatsEverythingAsLive(t *testing.T) {
	c, err := cache.NewCache(cache.Config{Enabled: false})
	require.NoError(t, err)
	r := NewRevoker(c)
	ctx := context.Background()

	require.NoError(t, r.Track(ctx, "jti-4", time.Hour))
	require.NoError(t, r.Revoke(ctx, "jti-4", time.Hour))
	assert.False(t, r.IsRevoked(ctx, "jti-4"))
}
