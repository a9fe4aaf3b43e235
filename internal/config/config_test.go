package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCallback_Defaults(t *testing.T) {
	clearGatewayEnv(t)

	cfg := LoadCallback()
	assert.Equal(t, "localhost", cfg.Store.Host)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 45*time.Second, cfg.RouteCacheTTL)
}

func TestLoadCallback_FileOverridesDefaults(t *testing.T) {
	clearGatewayEnv(t)

	path := writeConfigFile(t, `
redis:
  host: redis.internal
  port: "6390"
callback:
  listenAddr: ":9090"
  routeCacheTTL: 90s
`)
	t.Setenv("CONFIG_FILE", path)

	cfg := LoadCallback()
	assert.Equal(t, "redis.internal", cfg.Store.Host)
	assert.Equal(t, "6390", cfg.Store.Port)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 90*time.Second, cfg.RouteCacheTTL)
}

func TestLoadCallback_EnvWinsOverFile(t *testing.T) {
	clearGatewayEnv(t)

	path := writeConfigFile(t, `
callback:
  listenAddr: ":9090"
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LISTEN_ADDR", ":7070")

	cfg := LoadCallback()
	assert.Equal(t, ":7070", cfg.ListenAddr)
}

func TestLoadWorker_FileOverridesDefaults(t *testing.T) {
	clearGatewayEnv(t)

	path := writeConfigFile(t, `
worker:
  workerId: worker-from-file
  batchSize: "200"
  startPosition: earliest
`)
	t.Setenv("CONFIG_FILE", path)

	cfg := LoadWorker()
	require.Equal(t, "worker-from-file", cfg.WorkerID)
	assert.Equal(t, 200, cfg.BatchSize)
	assert.Equal(t, "earliest", cfg.StartPosition)
}

func TestLoadWorker_GeneratesIDWhenUnset(t *testing.T) {
	clearGatewayEnv(t)

	cfg := LoadWorker()
	assert.NotEmpty(t, cfg.WorkerID)
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB",
		"LISTEN_ADDR", "LOG_LEVEL", "LOG_PRETTY", "FRONTEND_ORIGIN",
		"SESSION_SECRET", "BROKER_SECRET", "TOKEN_TTL", "ROUTE_CACHE_TTL",
		"WORKER_TIMEOUT", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER",
		"POSTGRES_PASSWORD", "POSTGRES_DB", "POSTGRES_SSLMODE",
		"WORKER_ID", "BATCH_SIZE", "BLOCK_TIME", "HEARTBEAT_INTERVAL",
		"CHANNEL_INACTIVITY_TIMEOUT", "SWEEP_INTERVAL", "START_POSITION",
	} {
		t.Setenv(key, "")
	}
}
