package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeStore_WorkerRegistryLifecycle(t *testing.T) {
	s := NewFakeStore()
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

func TestFakeStore_Binding(t *testing.T) {
	s := NewFakeStore()
	ctx := context.Background()

	_, err := s.GetBinding(ctx, "chat")
	assert.ErrorIs(t, err, ErrBindingNotFound)

	require.NoError(t, s.SetBinding(ctx, "chat", "w1"))
	w, err := s.GetBinding(ctx, "chat")
	require.NoError(t, err)
	assert.Equal(t, "w1", w)

	ok, err := s.SetBindingIfAbsent(ctx, "chat", "w2")
	require.NoError(t, err)
	assert.False(t, ok, "should not win when a binding already exists")

	require.NoError(t, s.DeleteBinding(ctx, "chat"))
	ok, err = s.SetBindingIfAbsent(ctx, "chat", "w2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFakeStore_AppendAndReadRecords(t *testing.T) {
	s := NewFakeStore()
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

	// Reading again from the last seen cursor yields nothing until a new
	// append arrives, and returns an empty batch (not an error) on
	// timeout — per spec section 4.A.
	empty, err := s.ReadRecords(ctx, key, records[1].Seq, 10, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFakeStore_ReadRecordsUnblocksOnAppend(t *testing.T) {
	s := NewFakeStore()
	ctx := context.Background()
	key := WorkerStreamKey("w1")

	resultCh := make(chan []Record, 1)
	go func() {
		records, err := s.ReadRecords(ctx, key, "$", 10, 2*time.Second)
		require.NoError(t, err)
		resultCh <- records
	}()

	time.Sleep(50 * time.Millisecond)
	_, err := s.AppendRecord(ctx, key, []byte(`{"n":1}`))
	require.NoError(t, err)

	select {
	case records := <-resultCh:
		require.Len(t, records, 1)
	case <-time.After(time.Second):
		t.Fatal("ReadRecords did not unblock after append")
	}
}

func TestKeyNaming(t *testing.T) {
	assert.Equal(t, "channel:route:chat", ChannelRouteKey("chat"))
	assert.Equal(t, "messages:worker:w1", WorkerStreamKey("w1"))
	assert.Equal(t, "workers:active", ActiveWorkersKey)
}
