package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamspace-dev/realtime-gateway/internal/store"
)

// Config holds the per-process settings a Runtime needs (spec section 4.D
// defaults and section 6 "Worker process" environment).
type Config struct {
	WorkerID string

	BatchSize int64
	BlockTime time.Duration

	HeartbeatInterval        time.Duration
	WorkerTimeout            time.Duration
	ChannelInactivityTimeout time.Duration
	SweepInterval            time.Duration

	// StartPosition is "earliest" (beginning of stream) or "latest"
	// (only messages appended after join).
	StartPosition string
}

func (c Config) initialCursor() string {
	if c.StartPosition == "earliest" {
		return "0"
	}
	return "$"
}

// Runtime is one worker process's runtime: registration/heartbeat,
// consume loop, dispatch, and the inactivity sweeper (spec section 4.D).
type Runtime struct {
	cfg      Config
	store    store.Store
	handlers EventHandlers
	sink     *EventSink

	lifecycle *LifecycleTracker
	log       *zerolog.Logger
}

// New builds a Runtime. Pass the same EventSink to multiple runtimes only
// if you want a shared broadcast point; typically each Runtime owns its
// own sink via NewEventSink().
func New(cfg Config, s store.Store, handlers EventHandlers, sink *EventSink, log *zerolog.Logger) *Runtime {
	return &Runtime{
		cfg:       cfg,
		store:     s,
		handlers:  handlers,
		sink:      sink,
		lifecycle: NewLifecycleTracker(cfg.ChannelInactivityTimeout, cfg.SweepInterval),
		log:       log,
	}
}

// Run registers the worker, runs the heartbeat, sweeper, and consume loop
// until ctx is canceled, then performs a graceful stop (spec section 4.D
// "On graceful stop"). It returns once every background task has exited.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.store.RegisterWorker(ctx, r.cfg.WorkerID); err != nil {
		return err
	}
	r.log.Info().Str("workerId", r.cfg.WorkerID).Msg("worker registered")

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.heartbeatLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.lifecycle.StartSweeper(ctx, r.emitInactive)
	}()

	r.consumeLoop(ctx)

	wg.Wait()
	r.gracefulStop(ctx)
	return nil
}

func (r *Runtime) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.store.UpdateHeartbeat(ctx, r.cfg.WorkerID); err != nil {
				r.log.Warn().Err(err).Msg("heartbeat update failed")
			}
		}
	}
}

// consumeLoop implements spec section 4.D "Consume loop": read, dispatch,
// unconditionally advance the cursor even on dispatch error.
func (r *Runtime) consumeLoop(ctx context.Context) {
	streamKey := store.WorkerStreamKey(r.cfg.WorkerID)
	cursor := r.cfg.initialCursor()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		records, err := r.store.ReadRecords(ctx, streamKey, cursor, r.cfg.BatchSize, r.cfg.BlockTime)
		if err != nil {
			r.log.Warn().Err(err).Msg("read records failed, backing off")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, rec := range records {
			r.dispatch(rec)
			cursor = rec.Seq // unconditional advance, spec section 4.D
		}
	}
}

func (r *Runtime) dispatch(raw store.Record) {
	var rec Record
	if err := json.Unmarshal(raw.Payload, &rec); err != nil {
		r.log.Error().Err(err).Str("seq", raw.Seq).Msg("malformed stream payload")
		if r.handlers.OnError != nil {
			r.handlers.OnError(err)
		}
		return
	}

	switch rec.EffectiveType() {
	case "join":
		r.emit(Event{Type: EventPresenceJoin, Channel: rec.Channel, Record: rec})
	case "leave":
		r.emit(Event{Type: EventPresenceLeave, Channel: rec.Channel, Record: rec})
	default:
		created, becameActive, after := r.lifecycle.RecordMessage(rec.Channel)
		if becameActive {
			r.emit(Event{Type: EventChannelActive, Channel: rec.Channel, Record: rec, Lifecycle: created})
		}
		r.emit(Event{Type: EventChannelMessage, Channel: rec.Channel, Record: rec, Lifecycle: after})
	}
}

func (r *Runtime) emitInactive(entry ChannelLifecycle) {
	r.emit(Event{Type: EventChannelInactive, Channel: entry.Channel, Lifecycle: entry})
}

// emit fans an event out to both halves of the event surface: the
// awaited callback interface and the broadcast sink (spec section 4.D
// "Event surface"). A panicking handler is recovered and routed to
// OnError rather than killing the worker (spec section 7 ConsumerError).
func (r *Runtime) emit(ev Event) {
	r.handlers.dispatch(ev)
	if r.sink != nil {
		r.sink.Publish(ev)
	}
}

func (r *Runtime) gracefulStop(ctx context.Context) {
	for _, entry := range r.lifecycle.TeardownAll() {
		r.emitInactive(entry)
	}

	unregisterCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.UnregisterWorker(unregisterCtx, r.cfg.WorkerID); err != nil {
		r.log.Warn().Err(err).Msg("unregister worker failed during shutdown")
	}
	r.log.Info().Str("workerId", r.cfg.WorkerID).Msg("worker stopped")
}
