package worker

import (
	"context"
	"sync"
	"time"
)

// ChannelLifecycle is the in-process lifecycle state from spec section 3:
// "(channel, state, firstMessageAt, lastMessageAt, messageCount)".
type ChannelLifecycle struct {
	Channel        string
	State          string // "active" | "inactive"
	FirstMessageAt time.Time
	LastMessageAt  time.Time
	MessageCount   int
}

const (
	StateActive   = "active"
	StateInactive = "inactive"
)

// LifecycleTracker owns the channel-lifecycle state for one worker;
// discarded on worker exit (spec section 3 ownership rules). Grounded on
// internal/tracker.ConnectionTracker's in-memory-map-plus-ticker shape,
// generalized from connection heartbeats to channel message activity.
type LifecycleTracker struct {
	mu       sync.Mutex
	channels map[string]*ChannelLifecycle

	inactivityTimeout time.Duration
	sweepInterval     time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewLifecycleTracker builds a tracker with the given inactivity timeout
// and sweep interval (spec section 4.D defaults: 30s / 5s).
func NewLifecycleTracker(inactivityTimeout, sweepInterval time.Duration) *LifecycleTracker {
	return &LifecycleTracker{
		channels:          make(map[string]*ChannelLifecycle),
		inactivityTimeout: inactivityTimeout,
		sweepInterval:     sweepInterval,
		stop:              make(chan struct{}),
		done:              make(chan struct{}),
	}
}

// RecordMessage records a message on channel. If the channel was not yet
// tracked, it creates the entry (state=active, messageCount=0) first —
// `created` reports that so the caller can emit channel:active before
// incrementing — then increments messageCount and advances lastMessageAt
// (spec section 4.D dispatch rules: active-then-message ordering).
func (t *LifecycleTracker) RecordMessage(channel string) (created ChannelLifecycle, becameActive bool, after ChannelLifecycle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, existed := t.channels[channel]
	now := time.Now()

	if !existed {
		entry = &ChannelLifecycle{
			Channel:        channel,
			State:          StateActive,
			FirstMessageAt: now,
			LastMessageAt:  now,
			MessageCount:   0,
		}
		t.channels[channel] = entry
		created = *entry
		becameActive = true
	}

	entry.MessageCount++
	entry.LastMessageAt = now
	entry.State = StateActive

	return created, becameActive, *entry
}

// Remove drops a channel from tracking without emitting any event. The
// sweeper and TeardownAll drop retired channels themselves and do not
// call it.
func (t *LifecycleTracker) Remove(channel string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.channels, channel)
}

// Snapshot returns every tracked channel's current state.
func (t *LifecycleTracker) Snapshot() []ChannelLifecycle {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ChannelLifecycle, 0, len(t.channels))
	for _, e := range t.channels {
		out = append(out, *e)
	}
	return out
}

// sweepOnce marks and removes any channel whose LastMessageAt is older
// than inactivityTimeout, returning the entries that transitioned so the
// caller can emit channel:inactive for each (spec section 4.D "Inactivity
// sweeper").
func (t *LifecycleTracker) sweepOnce() []ChannelLifecycle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var inactive []ChannelLifecycle
	cutoff := time.Now().Add(-t.inactivityTimeout)
	for channel, entry := range t.channels {
		if entry.LastMessageAt.Before(cutoff) {
			entry.State = StateInactive
			inactive = append(inactive, *entry)
			delete(t.channels, channel)
		}
	}
	return inactive
}

// StartSweeper runs the periodic inactivity sweep until ctx is canceled or
// Stop is called, invoking onInactive for each channel it retires.
func (t *LifecycleTracker) StartSweeper(ctx context.Context, onInactive func(ChannelLifecycle)) {
	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()
	defer close(t.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			for _, entry := range t.sweepOnce() {
				onInactive(entry)
			}
		}
	}
}

// Stop halts the sweeper goroutine and waits for it to exit.
func (t *LifecycleTracker) Stop() {
	close(t.stop)
	<-t.done
}

// TeardownAll marks every tracked channel inactive immediately (spec
// section 4.D: "On graceful stop: ... mark all tracked channels
// inactive"), returning the entries for emission.
func (t *LifecycleTracker) TeardownAll() []ChannelLifecycle {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]ChannelLifecycle, 0, len(t.channels))
	for channel, entry := range t.channels {
		entry.State = StateInactive
		out = append(out, *entry)
		delete(t.channels, channel)
	}
	return out
}
