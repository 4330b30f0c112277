package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds realtime engine configuration.
type Config struct {
	APIBaseURL string // REST collaborator base URL
	WSBaseURL  string // WebSocket endpoint base, e.g. "ws://localhost:8000"
	ListenAddr string // introspection API listen address

	ConnectTimeout       time.Duration
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int

	RedisAddr     string // Redis address for the cross-instance bridge
	RedisPassword string
	RedisDB       int
	RedisPrefix   string // pub/sub channel prefix
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		APIBaseURL:           "http://localhost:8000",
		WSBaseURL:            "ws://localhost:8000",
		ListenAddr:           ":4000",
		ConnectTimeout:       10 * time.Second,
		ReconnectBaseDelay:   time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		MaxReconnectAttempts: 5,
		RedisAddr:            "localhost:6379",
		RedisPrefix:          "schedulr:rt:",
	}
}

// FromEnv loads configuration from environment variables, falling back to
// defaults for any missing values.
func FromEnv() *Config {
	cfg := Default()

	if v := os.Getenv("REALTIME_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("REALTIME_WS_URL"); v != "" {
		cfg.WSBaseURL = v
	}
	if v := os.Getenv("REALTIME_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("REALTIME_CONNECT_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ConnectTimeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("REALTIME_RECONNECT_BASE_DELAY_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReconnectBaseDelay = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("REALTIME_RECONNECT_MAX_DELAY_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReconnectMaxDelay = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("REALTIME_MAX_RECONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxReconnectAttempts = n
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = n
		}
	}
	if v := os.Getenv("REDIS_RT_PREFIX"); v != "" {
		cfg.RedisPrefix = v
	}
	return cfg
}
