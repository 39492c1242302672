package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings. Values come from environment variables
// with sensible defaults; a .env file is honored outside production.
type Config struct {
	Env       string
	HTTP      HTTPConfig
	SessionDB SessionDBConfig
	LogStore  LogStoreConfig
	WebSocket WebSocketConfig
}

type HTTPConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// SessionDBConfig configures the relational store holding session records
// and the read-only catalog tables.
type SessionDBConfig struct {
	Driver string // "sqlite" or "postgres"
	DSN    string
}

// LogStoreConfig configures the independent append-oriented session log
// store. It is deliberately a separate database from the session records.
type LogStoreConfig struct {
	Path string
}

type WebSocketConfig struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

// Load reads configuration from the environment, loading .env first when not
// running in production.
func Load() *Config {
	if env := os.Getenv("APP_ENV"); env == "" || env == "dev" || env == "development" {
		_ = godotenv.Load()
	}

	return &Config{
		Env: getEnv("APP_ENV", "dev"),
		HTTP: HTTPConfig{
			Addr:         getEnv("HTTP_ADDR", ":8080"),
			ReadTimeout:  durationEnv("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: durationEnv("HTTP_WRITE_TIMEOUT", 30*time.Second),
		},
		SessionDB: SessionDBConfig{
			Driver: getEnv("SESSION_DB_DRIVER", "sqlite"),
			DSN:    getEnv("SESSION_DB_DSN", "./doubt_sessions.db"),
		},
		LogStore: LogStoreConfig{
			Path: getEnv("SESSION_LOG_PATH", "./session_logs.db"),
		},
		WebSocket: WebSocketConfig{
			PingInterval: durationEnv("WS_PING_INTERVAL", 30*time.Second),
			ReadTimeout:  durationEnv("WS_READ_TIMEOUT", 60*time.Second),
			WriteTimeout: durationEnv("WS_WRITE_TIMEOUT", 5*time.Second),
			SendBuffer:   intEnv("WS_SEND_BUFFER", 100),
		},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("HTTP addr cannot be empty")
	}
	if c.SessionDB.Driver != "sqlite" && c.SessionDB.Driver != "postgres" {
		return fmt.Errorf("session DB driver must be sqlite or postgres, got %q", c.SessionDB.Driver)
	}
	if c.SessionDB.DSN == "" {
		return fmt.Errorf("session DB DSN cannot be empty")
	}
	if c.LogStore.Path == "" {
		return fmt.Errorf("session log path cannot be empty")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("websocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket read timeout must exceed ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket write timeout must be positive")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("websocket send buffer must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}
