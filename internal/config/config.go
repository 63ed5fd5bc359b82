package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string
	LogLevel    string

	// Grid lifecycle
	BaseTTL       time.Duration
	LikeExtension time.Duration
	SweepInterval time.Duration

	// Durable-write path
	WriteQueueSize      int
	StoreQueryTimeout   time.Duration
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration

	// Fan-out
	SessionSendBuffer int
}

func Load() Config {
	return Config{
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         getEnvRequired("DATABASE_URL"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		BaseTTL:             getEnvDuration("BASE_TTL", time.Hour),
		LikeExtension:       getEnvDuration("LIKE_EXTENSION", 5*time.Minute),
		SweepInterval:       getEnvDuration("SWEEP_INTERVAL", time.Minute),
		WriteQueueSize:      getEnvInt("WRITE_QUEUE_SIZE", 256),
		StoreQueryTimeout:   getEnvDuration("STORE_QUERY_TIMEOUT", 5*time.Second),
		BreakerMaxFailures:  getEnvInt("BREAKER_MAX_FAILURES", 5),
		BreakerResetTimeout: getEnvDuration("BREAKER_RESET_TIMEOUT", 30*time.Second),
		SessionSendBuffer:   getEnvInt("SESSION_SEND_BUFFER", 64),
	}
}

func getEnvRequired(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic("required environment variable " + key + " is not set")
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return n
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return d
	}
	return fallback
}
