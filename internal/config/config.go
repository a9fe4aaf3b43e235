// Package config centralizes environment-variable driven configuration
// for both the callback and worker binaries, following the getEnv/
// getEnvInt pattern the gateway has always used for process startup. An
// optional CONFIG_FILE YAML document can supply the fallback values
// getStr/getInt/getDuration/getBool reach for when an environment
// variable is absent; explicit environment variables always win over the
// file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// fileOverrides is the optional CONFIG_FILE document. Every field is a
// string so a duration like "45s" round-trips the same whether it came
// from YAML or from the environment; numeric/bool fields are parsed the
// same way getInt/getBool parse their environment counterparts.
type fileOverrides struct {
	Redis struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		Password string `yaml:"password"`
		DB       string `yaml:"db"`
	} `yaml:"redis"`

	Callback struct {
		ListenAddr     string `yaml:"listenAddr"`
		LogLevel       string `yaml:"logLevel"`
		LogPretty      string `yaml:"logPretty"`
		FrontendOrigin string `yaml:"frontendOrigin"`
		SessionSecret  string `yaml:"sessionSecret"`
		BrokerSecret   string `yaml:"brokerSecret"`
		TokenTTL       string `yaml:"tokenTTL"`
		RouteCacheTTL  string `yaml:"routeCacheTTL"`
		WorkerTimeout  string `yaml:"workerTimeout"`
		Postgres       struct {
			Host     string `yaml:"host"`
			Port     string `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			DBName   string `yaml:"dbName"`
			SSLMode  string `yaml:"sslMode"`
		} `yaml:"postgres"`
	} `yaml:"callback"`

	Worker struct {
		WorkerID                 string `yaml:"workerId"`
		LogLevel                 string `yaml:"logLevel"`
		LogPretty                string `yaml:"logPretty"`
		BatchSize                string `yaml:"batchSize"`
		BlockTime                string `yaml:"blockTime"`
		HeartbeatInterval        string `yaml:"heartbeatInterval"`
		WorkerTimeout            string `yaml:"workerTimeout"`
		ChannelInactivityTimeout string `yaml:"channelInactivityTimeout"`
		SweepInterval            string `yaml:"sweepInterval"`
		StartPosition            string `yaml:"startPosition"`
	} `yaml:"worker"`
}

// loadFileOverrides reads CONFIG_FILE if set. A missing CONFIG_FILE is
// not an error -- the file is entirely optional; a CONFIG_FILE that is
// set but unreadable or malformed is.
func loadFileOverrides() (fileOverrides, error) {
	var f fileOverrides
	path := getEnv("CONFIG_FILE", "")
	if path == "" {
		return f, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return f, err
	}
	return f, nil
}

// getStr resolves key from the environment, then from file, then fallback.
func getStr(key, fromFile, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fromFile != "" {
		return fromFile
	}
	return fallback
}

func getInt(key, fromFile string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if fromFile != "" {
		if n, err := strconv.Atoi(fromFile); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key, fromFile string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	if fromFile != "" {
		if d, err := time.ParseDuration(fromFile); err == nil {
			return d
		}
	}
	return fallback
}

func getBool(key, fromFile string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	if fromFile != "" {
		if b, err := strconv.ParseBool(fromFile); err == nil {
			return b
		}
	}
	return fallback
}

// StoreConfig describes how to reach the routing store (Redis).
type StoreConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Callback holds every setting the callback process (proxy + token
// issuance + /auth/login) needs at startup.
type Callback struct {
	Store StoreConfig

	ListenAddr string
	LogLevel   string
	LogPretty  bool

	FrontendOrigin string

	SessionSecret string
	BrokerSecret  string
	TokenTTL      time.Duration

	// RouteCacheTTL is the sticky-router's process-local cache lifetime.
	RouteCacheTTL time.Duration
	WorkerTimeout time.Duration

	// Postgres holds the supplemental user-repository connection, empty
	// Host means "no external repository, in-memory only".
	Postgres PostgresConfig
}

// PostgresConfig configures the supplemental user repository.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// LoadCallback reads the callback process's configuration from the
// environment (falling back to CONFIG_FILE, then to the defaults named
// in spec section 6).
func LoadCallback() Callback {
	f, err := loadFileOverrides()
	if err != nil {
		panic("config: CONFIG_FILE set but could not be read: " + err.Error())
	}

	return Callback{
		Store: StoreConfig{
			Host:     getStr("REDIS_HOST", f.Redis.Host, "localhost"),
			Port:     getStr("REDIS_PORT", f.Redis.Port, "6379"),
			Password: getStr("REDIS_PASSWORD", f.Redis.Password, ""),
			DB:       getInt("REDIS_DB", f.Redis.DB, 0),
		},
		ListenAddr:     getStr("LISTEN_ADDR", f.Callback.ListenAddr, ":8080"),
		LogLevel:       getStr("LOG_LEVEL", f.Callback.LogLevel, "info"),
		LogPretty:      getBool("LOG_PRETTY", f.Callback.LogPretty, false),
		FrontendOrigin: getStr("FRONTEND_ORIGIN", f.Callback.FrontendOrigin, "*"),
		SessionSecret:  getStr("SESSION_SECRET", f.Callback.SessionSecret, "dev-session-secret-change-me"),
		BrokerSecret:   getStr("BROKER_SECRET", f.Callback.BrokerSecret, "dev-broker-secret-change-me"),
		TokenTTL:       getDuration("TOKEN_TTL", f.Callback.TokenTTL, 1*time.Hour),
		RouteCacheTTL:  getDuration("ROUTE_CACHE_TTL", f.Callback.RouteCacheTTL, 45*time.Second),
		WorkerTimeout:  getDuration("WORKER_TIMEOUT", f.Callback.WorkerTimeout, 30*time.Second),
		Postgres: PostgresConfig{
			Host:     getStr("POSTGRES_HOST", f.Callback.Postgres.Host, ""),
			Port:     getStr("POSTGRES_PORT", f.Callback.Postgres.Port, "5432"),
			User:     getStr("POSTGRES_USER", f.Callback.Postgres.User, "gateway"),
			Password: getStr("POSTGRES_PASSWORD", f.Callback.Postgres.Password, ""),
			DBName:   getStr("POSTGRES_DB", f.Callback.Postgres.DBName, "gateway"),
			SSLMode:  getStr("POSTGRES_SSLMODE", f.Callback.Postgres.SSLMode, "disable"),
		},
	}
}

// Worker holds every setting a single worker-runtime process needs.
type Worker struct {
	Store StoreConfig

	WorkerID string

	LogLevel  string
	LogPretty bool

	BatchSize int
	BlockTime time.Duration

	HeartbeatInterval        time.Duration
	WorkerTimeout            time.Duration
	ChannelInactivityTimeout time.Duration
	SweepInterval            time.Duration

	// StartPosition is "earliest" or "latest".
	StartPosition string
}

// LoadWorker reads the worker process's configuration from the
// environment (falling back to CONFIG_FILE, then to the defaults named
// in spec section 4.D).
func LoadWorker() Worker {
	f, err := loadFileOverrides()
	if err != nil {
		panic("config: CONFIG_FILE set but could not be read: " + err.Error())
	}

	workerID := getStr("WORKER_ID", f.Worker.WorkerID, "")
	if workerID == "" {
		workerID = uuid.New().String()
	}

	return Worker{
		Store: StoreConfig{
			Host:     getStr("REDIS_HOST", f.Redis.Host, "localhost"),
			Port:     getStr("REDIS_PORT", f.Redis.Port, "6379"),
			Password: getStr("REDIS_PASSWORD", f.Redis.Password, ""),
			DB:       getInt("REDIS_DB", f.Redis.DB, 0),
		},
		WorkerID:                 workerID,
		LogLevel:                 getStr("LOG_LEVEL", f.Worker.LogLevel, "info"),
		LogPretty:                getBool("LOG_PRETTY", f.Worker.LogPretty, false),
		BatchSize:                getInt("BATCH_SIZE", f.Worker.BatchSize, 50),
		BlockTime:                getDuration("BLOCK_TIME", f.Worker.BlockTime, 3*time.Second),
		HeartbeatInterval:        getDuration("HEARTBEAT_INTERVAL", f.Worker.HeartbeatInterval, 10*time.Second),
		WorkerTimeout:            getDuration("WORKER_TIMEOUT", f.Worker.WorkerTimeout, 30*time.Second),
		ChannelInactivityTimeout: getDuration("CHANNEL_INACTIVITY_TIMEOUT", f.Worker.ChannelInactivityTimeout, 30*time.Second),
		SweepInterval:            getDuration("SWEEP_INTERVAL", f.Worker.SweepInterval, 5*time.Second),
		StartPosition:            getStr("START_POSITION", f.Worker.StartPosition, "latest"),
	}
}
