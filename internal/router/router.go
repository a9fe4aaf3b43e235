// Package router implements the Sticky Channel Router (spec section 4.B):
// given a channel name, resolve the worker id that owns it, rebinding
// atomically when the previous owner is no longer live. Grounded on the
// realtime-message-gateway reference router, which uses the same
// cache-then-verify-then-rebind shape over a Redis-backed registry.
package router

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/streamspace-dev/realtime-gateway/internal/store"
)

// ErrNoActiveWorkers is returned when the registry has no live workers to
// bind a channel to.
var ErrNoActiveWorkers = errors.New("router: no active workers available")

type cacheEntry struct {
	workerID  string
	expiresAt time.Time
}

// Router is a pure function over the routing store plus a local cache; it
// never depends on the handlers that call it (spec section 9, "cyclic
// references" note).
type Router struct {
	store         store.Store
	cacheTTL      time.Duration
	workerTimeout time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry

	// rrIndex is the process-wide monotonic round-robin counter (spec
	// section 4.B: "a router-local counter").
	rrIndex uint64
}

// New builds a Router over the given routing store.
func New(s store.Store, cacheTTL, workerTimeout time.Duration) *Router {
	return &Router{
		store:         s,
		cacheTTL:      cacheTTL,
		workerTimeout: workerTimeout,
		cache:         make(map[string]cacheEntry),
	}
}

// Resolve returns the worker id that owns channel, creating or repairing
// the binding as needed (spec section 4.B algorithm).
func (r *Router) Resolve(ctx context.Context, channel string) (string, error) {
	if workerID, ok := r.cached(channel); ok {
		return workerID, nil
	}

	workerID, err := r.store.GetBinding(ctx, channel)
	switch {
	case err == nil:
		if r.isLive(ctx, workerID) {
			r.setCache(channel, workerID)
			return workerID, nil
		}
		// Binding exists but the owner is dead: overwrite it.
		return r.rebind(ctx, channel, true)
	case errors.Is(err, store.ErrBindingNotFound):
		return r.rebind(ctx, channel, false)
	default:
		return "", err
	}
}

// InvalidateCache drops the local cache entry for channel. Callers that
// observe evidence of staleness (spec section 4.B cache policy) may use
// this to force the next Resolve to consult the store.
func (r *Router) InvalidateCache(channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, channel)
}

func (r *Router) cached(channel string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[channel]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.workerID, true
}

func (r *Router) setCache(channel, workerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[channel] = cacheEntry{workerID: workerID, expiresAt: time.Now().Add(r.cacheTTL)}
}

func (r *Router) isLive(ctx context.Context, workerID string) bool {
	hb, err := r.store.GetHeartbeat(ctx, workerID)
	if err != nil {
		return false
	}
	return time.Since(hb) < r.workerTimeout
}

// rebind performs the rebind protocol: list live workers, pick one by
// round-robin, and write the binding. When replacingDead is false (no
// binding existed yet), SetBindingIfAbsent protects against two callback
// processes racing to create the first binding for the same channel — the
// loser simply reads back the winner's binding. When replacingDead is
// true, the existing binding names a worker we have already verified is
// not live, so SetBindingIfAbsent would never succeed and we overwrite
// unconditionally instead.
func (r *Router) rebind(ctx context.Context, channel string, replacingDead bool) (string, error) {
	live, err := r.liveWorkers(ctx)
	if err != nil {
		return "", err
	}
	if len(live) == 0 {
		return "", ErrNoActiveWorkers
	}

	idx := atomic.AddUint64(&r.rrIndex, 1) - 1
	selected := live[idx%uint64(len(live))]

	if replacingDead {
		if err := r.store.SetBinding(ctx, channel, selected); err != nil {
			return "", err
		}
	} else {
		won, err := r.store.SetBindingIfAbsent(ctx, channel, selected)
		if err != nil {
			return "", err
		}
		if !won {
			// Someone else bound this channel concurrently; use whatever
			// they wrote, even if it differs from our pick.
			existing, err := r.store.GetBinding(ctx, channel)
			if err != nil {
				return "", err
			}
			selected = existing
		}
	}

	r.setCache(channel, selected)
	return selected, nil
}

func (r *Router) liveWorkers(ctx context.Context) ([]string, error) {
	ids, err := r.store.ListActiveWorkers(ctx)
	if err != nil {
		return nil, err
	}
	live := make([]string, 0, len(ids))
	for _, id := range ids {
		if r.isLive(ctx, id) {
			live = append(live, id)
		}
	}
	return live, nil
}
