// Command worker runs one Worker Runtime process, registering under a
// worker id, consuming its stream, and dispatching channel-lifecycle
// events (spec section 4.D). Exit 0 on graceful stop, 1 on fatal error
// (spec section 6 "CLI").
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/streamspace-dev/realtime-gateway/internal/config"
	"github.com/streamspace-dev/realtime-gateway/internal/logger"
	"github.com/streamspace-dev/realtime-gateway/internal/store"
	"github.com/streamspace-dev/realtime-gateway/internal/worker"
)

func main() {
	cfg := config.LoadWorker()
	logger.Initialize(cfg.LogLevel, cfg.LogPretty)
	log := logger.Worker()

	routingStore, err := store.NewRedisStore(cfg.Store)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to routing store")
		os.Exit(1)
	}
	defer routingStore.Close()

	sink := worker.NewEventSink()
	defer sink.Close()

	handlers := worker.EventHandlers{
		OnChannelActive: func(e worker.Event) {
			log.Info().Str("channel", e.Channel).Msg("channel:active")
		},
		OnChannelMessage: func(e worker.Event) {
			log.Debug().Str("channel", e.Channel).Str("messageId", e.Record.ID).Msg("channel:message")
		},
		OnChannelInactive: func(e worker.Event) {
			log.Info().Str("channel", e.Channel).Int("messageCount", e.Lifecycle.MessageCount).Msg("channel:inactive")
		},
		OnPresenceJoin: func(e worker.Event) {
			log.Debug().Str("channel", e.Channel).Msg("presence:join")
		},
		OnPresenceLeave: func(e worker.Event) {
			log.Debug().Str("channel", e.Channel).Msg("presence:leave")
		},
		OnError: func(err error) {
			log.Error().Err(err).Msg("consumer error")
		},
	}

	rt := worker.New(worker.Config{
		WorkerID:                 cfg.WorkerID,
		BatchSize:                int64(cfg.BatchSize),
		BlockTime:                cfg.BlockTime,
		HeartbeatInterval:        cfg.HeartbeatInterval,
		WorkerTimeout:            cfg.WorkerTimeout,
		ChannelInactivityTimeout: cfg.ChannelInactivityTimeout,
		SweepInterval:            cfg.SweepInterval,
		StartPosition:            cfg.StartPosition,
	}, routingStore, handlers, sink, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("workerId", cfg.WorkerID).Msg("worker starting")
	if err := rt.Run(ctx); err != nil {
		log.Error().Err(err).Msg("worker exited with error")
		os.Exit(1)
	}
	os.Exit(0)
}
