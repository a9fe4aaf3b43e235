package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisStoreTest spins up a miniredis instance and points a RedisStore
// at it, the same way the teacher's agent_hub_redis_test.go exercises the
// real go-redis client against a fake in-process Redis server rather than a
// live one.
func setupRedisStoreTest(t *testing.T) (*RedisStore, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := newRedisStoreFromClient(client)

	return s, func() {
		s.Close()
		mr.Close()
	}
}

func TestRedisStore_WorkerRegistryLifecycle(t *testing.T) {
	s, cleanup := setupRedisStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.GetHeartbeat(ctx, "w1")
	assert.ErrorIs(t, err, ErrHeartbeatNotFound)

	require.NoError(t, s.RegisterWorker(ctx, "w1"))
	hb, err := s.GetHeartbeat(ctx, "w1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), hb, time.Second)

	ids, err := s.ListActiveWorkers(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "w1")

	require.NoError(t, s.UnregisterWorker(ctx, "w1"))
	_, err = s.GetHeartbeat(ctx, "w1")
	assert.ErrorIs(t, err, ErrHeartbeatNotFound)
}

func TestRedisStore_BindingSetNXRace(t *testing.T) {
	s, cleanup := setupRedisStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.GetBinding(ctx, "chat")
	assert.ErrorIs(t, err, ErrBindingNotFound)

	ok, err := s.SetBindingIfAbsent(ctx, "chat", "w1")
	require.NoError(t, err)
	assert.True(t, ok, "first writer should win")

	ok, err = s.SetBindingIfAbsent(ctx, "chat", "w2")
	require.NoError(t, err)
	assert.False(t, ok, "second writer must not clobber the existing binding")

	w, err := s.GetBinding(ctx, "chat")
	require.NoError(t, err)
	assert.Equal(t, "w1", w)

	require.NoError(t, s.SetBinding(ctx, "chat", "w2"))
	w, err = s.GetBinding(ctx, "chat")
	require.NoError(t, err)
	assert.Equal(t, "w2", w, "unconditional SetBinding must overwrite")
}

func TestRedisStore_StreamAppendAndRead(t *testing.T) {
	s, cleanup := setupRedisStoreTest(t)
	defer cleanup()
	ctx := context.Background()
	key := WorkerStreamKey("w1")

	seq1, err := s.AppendRecord(ctx, key, []byte(`{"n":1}`))
	require.NoError(t, err)
	seq2, err := s.AppendRecord(ctx, key, []byte(`{"n":2}`))
	require.NoError(t, err)
	assert.NotEqual(t, seq1, seq2)

	records, err := s.ReadRecords(ctx, key, "0", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, `{"n":1}`, string(records[0].Payload))
	assert.Equal(t, `{"n":2}`, string(records[1].Payload))
}
