// Command callback runs the Proxy Callbacks + Token Issuance process: the
// HTTP server the broker invokes on connect/subscribe/publish, plus
// /auth/login and /health (spec sections 4.C, 4.E, 6).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/streamspace-dev/realtime-gateway/internal/apperrors"
	"github.com/streamspace-dev/realtime-gateway/internal/cache"
	"github.com/streamspace-dev/realtime-gateway/internal/config"
	"github.com/streamspace-dev/realtime-gateway/internal/logger"
	"github.com/streamspace-dev/realtime-gateway/internal/proxy"
	"github.com/streamspace-dev/realtime-gateway/internal/router"
	"github.com/streamspace-dev/realtime-gateway/internal/store"
	"github.com/streamspace-dev/realtime-gateway/internal/token"
	"github.com/streamspace-dev/realtime-gateway/internal/users"
)

func main() {
	cfg := config.LoadCallback()
	logger.Initialize(cfg.LogLevel, cfg.LogPretty)
	log := logger.Proxy()

	routingStore, err := store.NewRedisStore(cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to routing store")
	}
	defer routingStore.Close()

	userStore := newUserStore(cfg, log)
	defer userStore.Close()

	sessionCache, err := cache.NewCache(cache.Config{
		Host:     cfg.Store.Host,
		Port:     cfg.Store.Port,
		Password: cfg.Store.Password,
		DB:       cfg.Store.DB,
		Enabled:  true,
	})
	if err != nil {
		log.Warn().Err(err).Msg("session revocation cache unavailable, continuing without it")
		sessionCache, _ = cache.NewCache(cache.Config{Enabled: false})
	}
	defer sessionCache.Close()
	revoker := token.NewRevoker(sessionCache)

	r := router.New(routingStore, cfg.RouteCacheTTL, cfg.WorkerTimeout)
	issuer := token.NewIssuer(cfg.SessionSecret, cfg.BrokerSecret, cfg.TokenTTL)

	handlers := proxy.New(userStore, r, routingStore, issuer, revoker, log)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(apperrors.Recovery(log))
	engine.Use(corsMiddleware(cfg.FrontendOrigin))
	handlers.Register(engine)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: engine,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("callback server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("callback server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("callback server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
}

// newUserStore picks the Postgres-backed repository when configured,
// otherwise falls back to the in-memory one (spec section 3 allows either
// "the callback process or its external user repository" to own users),
// and wraps either in a Redis read-through cache on the same routing-store
// instance (SPEC_FULL.md section 3 supplement).
func newUserStore(cfg config.Callback, log *zerolog.Logger) users.Store {
	var backing users.Store
	if cfg.Postgres.Host == "" {
		log.Warn().Msg("no POSTGRES_HOST configured, using in-memory user store")
		backing = users.NewMemStore()
	} else {
		store, err := users.NewPostgresStore(cfg.Postgres)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to user repository")
		}
		backing = store
	}

	userCache, err := cache.NewCache(cache.Config{
		Host:     cfg.Store.Host,
		Port:     cfg.Store.Port,
		Password: cfg.Store.Password,
		DB:       cfg.Store.DB,
		Enabled:  true,
	})
	if err != nil {
		log.Warn().Err(err).Msg("user cache unavailable, continuing without it")
		userCache, _ = cache.NewCache(cache.Config{Enabled: false})
	}

	return users.NewCachedStore(backing, userCache, 5*time.Minute)
}

func corsMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
