package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace-dev/realtime-gateway/internal/store"
)

func discardLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func marshalRecord(t *testing.T, rec Record) []byte {
	t.Helper()
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	return b
}

func TestRuntime_ChannelLifecycleOrdering(t *testing.T) {
	s := store.NewFakeStore()
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var events []EventType

	handlers := EventHandlers{
		OnChannelActive:   func(e Event) { mu.Lock(); events = append(events, e.Type); mu.Unlock() },
		OnChannelMessage:  func(e Event) { mu.Lock(); events = append(events, e.Type); mu.Unlock() },
		OnChannelInactive: func(e Event) { mu.Lock(); events = append(events, e.Type); mu.Unlock() },
	}

	cfg := Config{
		WorkerID:                 "w0",
		BatchSize:                10,
		BlockTime:                50 * time.Millisecond,
		HeartbeatInterval:        10 * time.Millisecond,
		ChannelInactivityTimeout: 60 * time.Millisecond,
		SweepInterval:            10 * time.Millisecond,
		StartPosition:            "earliest",
	}
	rt := New(cfg, s, handlers, nil, discardLogger())

	done := make(chan struct{})
	go func() {
		_ = rt.Run(ctx)
		close(done)
	}()

	streamKey := store.WorkerStreamKey("w0")
	for i := 0; i < 3; i++ {
		_, err := s.AppendRecord(context.Background(), streamKey, marshalRecord(t, Record{
			ID: "m", Channel: "chat:room-42", UserID: "u1", Text: "hi", Timestamp: time.Now(),
		}))
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) >= 4 // 1 active + 3 message
	}, 2*time.Second, 10*time.Millisecond)

	// Let the inactivity sweeper retire the channel before we tear down.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 5
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, EventChannelActive, events[0])
	assert.Equal(t, EventChannelMessage, events[1])
	assert.Equal(t, EventChannelMessage, events[2])
	assert.Equal(t, EventChannelMessage, events[3])
	assert.Equal(t, EventChannelInactive, events[4])
}

func TestRuntime_UnknownTypeDefaultsToMessage(t *testing.T) {
	rec := Record{Type: ""}
	assert.Equal(t, "message", rec.EffectiveType())
	rec.Type = "join"
	assert.Equal(t, "join", rec.EffectiveType())
}

func TestRuntime_RegistersAndUnregistersWorker(t *testing.T) {
	s := store.NewFakeStore()
	ctx, cancel := context.WithCancel(context.Background())

	cfg := Config{
		WorkerID:                 "w0",
		BatchSize:                10,
		BlockTime:                20 * time.Millisecond,
		HeartbeatInterval:        10 * time.Millisecond,
		ChannelInactivityTimeout: time.Second,
		SweepInterval:            50 * time.Millisecond,
		StartPosition:            "latest",
	}
	rt := New(cfg, s, EventHandlers{}, nil, discardLogger())

	done := make(chan struct{})
	go func() {
		_ = rt.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := s.GetHeartbeat(context.Background(), "w0")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	_, err := s.GetHeartbeat(context.Background(), "w0")
	assert.ErrorIs(t, err, store.ErrHeartbeatNotFound)
}
