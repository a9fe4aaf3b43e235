package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace-dev/realtime-gateway/internal/store"
)

func TestRouter_ResolveIsSticky(t *testing.T) {
	s := store.NewFakeStore()
	ctx := context.Background()
	require.NoError(t, s.RegisterWorker(ctx, "w0"))
	require.NoError(t, s.RegisterWorker(ctx, "w1"))

	r := New(s, time.Minute, 30*time.Second)

	first, err := r.Resolve(ctx, "chat:room-7")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		got, err := r.Resolve(ctx, "chat:room-7")
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestRouter_NoWorkersAvailable(t *testing.T) {
	s := store.NewFakeStore()
	r := New(s, time.Minute, 30*time.Second)

	_, err := r.Resolve(context.Background(), "chat")
	assert.ErrorIs(t, err, ErrNoActiveWorkers)
}

func TestRouter_RebindsAfterWorkerDeath(t *testing.T) {
	s := store.NewFakeStore()
	ctx := context.Background()
	workerTimeout := 30 * time.Millisecond

	require.NoError(t, s.RegisterWorker(ctx, "w0"))
	r := New(s, time.Minute, workerTimeout)

	first, err := r.Resolve(ctx, "chat:room-7")
	require.NoError(t, err)
	assert.Equal(t, "w0", first)

	// w0 stops heartbeating and ages past workerTimeout, then w1 joins.
	time.Sleep(workerTimeout * 2)
	require.NoError(t, s.RegisterWorker(ctx, "w1"))

	// The cache still holds w0 and has not expired, so Resolve would
	// return the stale value (the optimization-only cache behavior of
	// spec section 4.B step 1); drop it so Resolve consults the store.
	r.InvalidateCache("chat:room-7")

	second, err := r.Resolve(ctx, "chat:room-7")
	require.NoError(t, err)
	assert.Equal(t, "w1", second, "must rebind to the surviving worker once the bound worker is dead")
}

func TestRouter_CacheTTLExpires(t *testing.T) {
	s := store.NewFakeStore()
	ctx := context.Background()
	require.NoError(t, s.RegisterWorker(ctx, "w0"))

	r := New(s, 10*time.Millisecond, 30*time.Second)
	_, err := r.Resolve(ctx, "chat")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_, ok := r.cached("chat")
	assert.False(t, ok, "cache entry should expire after its TTL")
}
