package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Global logger instance
var (
	Log zerolog.Logger
)

// Initialize sets up the global logger with configuration
func Initialize(level string, pretty bool) {
	// Parse log level
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// Configure output format
	if pretty {
		// Pretty console output for development
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	// Set global logger
	Log = log.With().
		Str("service", "realtime-gateway").
		Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("logger initialized")
}

// GetLogger returns the global logger instance
func GetLogger() *zerolog.Logger {
	return &Log
}

// Store creates a logger for routing-store events
func Store() *zerolog.Logger {
	l := Log.With().Str("component", "store").Logger()
	return &l
}

// Router creates a logger for sticky-channel-router events
func Router() *zerolog.Logger {
	l := Log.With().Str("component", "router").Logger()
	return &l
}

// Proxy creates a logger for proxy-callback events
func Proxy() *zerolog.Logger {
	l := Log.With().Str("component", "proxy").Logger()
	return &l
}

// Worker creates a logger for worker-runtime events
func Worker() *zerolog.Logger {
	l := Log.With().Str("component", "worker").Logger()
	return &l
}

// Token creates a logger for token-issuance events
func Token() *zerolog.Logger {
	l := Log.With().Str("component", "token").Logger()
	return &l
}
