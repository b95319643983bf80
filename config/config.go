// Package config loads the connection pool service's configuration from
// the environment, following the shape of the teacher's config.Load:
// godotenv for an optional .env file, then plain os.Getenv reads with
// defaults.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/alfreddev/connpool/pool"
)

// ServiceConfig holds everything cmd/connpoold needs to boot: the pool's
// own Config plus the ambient server/connector knobs spec.md leaves
// unspecified (listen address, dial timeouts, log level, poll interval).
type ServiceConfig struct {
	// Server
	ListenAddr string
	Env        string

	// Pool
	Pool pool.Config

	// Connector
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	KeepAliveInterval   time.Duration

	// Observability
	LogLevel     string
	PollInterval time.Duration

	// RedisURL, when set, lets cmd/connpoold publish pool snapshots to a
	// Redis pub/sub channel for a fleet-wide dashboard to aggregate
	// across instances (see cmd/connpoold/broadcast.go).
	RedisURL string
}

// Load reads ServiceConfig from the environment, loading a .env file first
// if one is present.
func Load() (*ServiceConfig, error) {
	_ = godotenv.Load()

	cfg := &ServiceConfig{
		ListenAddr: getEnv("CONNPOOL_ADDR", ":8080"),
		Env:        getEnv("ENV", "development"),
		Pool: pool.Config{
			MaxSockets:       uint32(getEnvInt("CONNPOOL_MAX_SOCKETS", 32)),
			KeepAlive:        getEnvBool("CONNPOOL_KEEPALIVE", true),
			Pipelining:       getEnvBool("CONNPOOL_PIPELINING", false),
			MaxWaitQueueSize: getEnvInt("CONNPOOL_MAX_WAIT_QUEUE", 64),
		},
		DialTimeout:         getEnvDuration("CONNPOOL_DIAL_TIMEOUT_SEC", 10*time.Second),
		TLSHandshakeTimeout: getEnvDuration("CONNPOOL_TLS_HANDSHAKE_TIMEOUT_SEC", 10*time.Second),
		KeepAliveInterval:   getEnvDuration("CONNPOOL_TCP_KEEPALIVE_SEC", 30*time.Second),
		LogLevel:            getEnv("CONNPOOL_LOG_LEVEL", "info"),
		PollInterval:        getEnvDuration("CONNPOOL_POLL_INTERVAL_SEC", 30*time.Second),
		RedisURL:            getEnv("REDIS_URL", ""),
	}

	if err := cfg.Pool.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
