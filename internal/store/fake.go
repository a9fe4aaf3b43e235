package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// FakeStore is an in-memory Store used by router, proxy, and worker tests
// so they don't need a live Redis instance. It preserves the same
// semantics as RedisStore: sorted-set-by-score heartbeats, string
// bindings, and per-stream append-only records with a blocking read.
type FakeStore struct {
	mu sync.Mutex

	heartbeats map[string]time.Time
	bindings   map[string]string
	streams    map[string][]Record

	// waiters are notified after AppendRecord so ReadRecords can unblock
	// instead of busy-polling.
	waiters map[string][]chan struct{}
}

// NewFakeStore returns an empty in-memory Store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		heartbeats: make(map[string]time.Time),
		bindings:   make(map[string]string),
		streams:    make(map[string][]Record),
		waiters:    make(map[string][]chan struct{}),
	}
}

func (f *FakeStore) Close() error { return nil }

func (f *FakeStore) RegisterWorker(ctx context.Context, id string) error {
	return f.UpdateHeartbeat(ctx, id)
}

func (f *FakeStore) UpdateHeartbeat(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats[id] = time.Now()
	return nil
}

func (f *FakeStore) UnregisterWorker(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.heartbeats, id)
	return nil
}

func (f *FakeStore) ListActiveWorkers(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.heartbeats))
	for id := range f.heartbeats {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *FakeStore) GetHeartbeat(ctx context.Context, id string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.heartbeats[id]
	if !ok {
		return time.Time{}, ErrHeartbeatNotFound
	}
	return t, nil
}

func (f *FakeStore) GetBinding(ctx context.Context, channel string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.bindings[channel]
	if !ok {
		return "", ErrBindingNotFound
	}
	return w, nil
}

func (f *FakeStore) SetBinding(ctx context.Context, channel, workerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindings[channel] = workerID
	return nil
}

func (f *FakeStore) SetBindingIfAbsent(ctx context.Context, channel, workerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.bindings[channel]; exists {
		return false, nil
	}
	f.bindings[channel] = workerID
	return true, nil
}

func (f *FakeStore) DeleteBinding(ctx context.Context, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bindings, channel)
	return nil
}

func (f *FakeStore) AppendRecord(ctx context.Context, streamKey string, payload []byte) (string, error) {
	f.mu.Lock()
	seq := time.Now().UnixNano()
	record := Record{Seq: formatSeq(seq), Payload: payload}
	f.streams[streamKey] = append(f.streams[streamKey], record)
	waiters := f.waiters[streamKey]
	f.waiters[streamKey] = nil
	f.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	return record.Seq, nil
}

func (f *FakeStore) ReadRecords(ctx context.Context, streamKey, fromCursor string, maxCount int64, block time.Duration) ([]Record, error) {
	deadline := time.Now().Add(block)
	for {
		f.mu.Lock()
		cursorN, _ := strconv.ParseInt(fromCursor, 10, 64)
		var batch []Record
		for _, rec := range f.streams[streamKey] {
			recN, _ := strconv.ParseInt(rec.Seq, 10, 64)
			if fromCursor != "$" && recN > cursorN {
				batch = append(batch, rec)
				if int64(len(batch)) >= maxCount && maxCount > 0 {
					break
				}
			}
		}
		if len(batch) > 0 {
			f.mu.Unlock()
			return batch, nil
		}
		if fromCursor == "$" {
			// "$" only ever means "nothing queued before this read
			// began"; once we've looked, switch the caller's effective
			// position to "now" so a later append is observed.
			fromCursor = formatSeq(time.Now().UnixNano())
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			f.mu.Unlock()
			return nil, nil
		}
		waiter := make(chan struct{})
		f.waiters[streamKey] = append(f.waiters[streamKey], waiter)
		f.mu.Unlock()

		select {
		case <-waiter:
		case <-time.After(remaining):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func formatSeq(n int64) string {
	const base = "0123456789"
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = base[n%10]
		n /= 10
	}
	return string(buf[i:])
}
