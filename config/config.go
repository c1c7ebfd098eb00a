// Package config reads host configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment  string
	LogLevel     slog.Level
	SaveDir      string
	Store        string // "file", "redis" or "sqlite"
	RedisURL     string
	SQLitePath   string
	GeminiAPIKey string
	GeminiModel  string
	VocabFile    string
	Tick         time.Duration

	NarratorTimeout time.Duration
}

// Load reads envFiles (default ".env") if present, then builds a Config
// from the environment. Existing environment variables win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	tick, err := time.ParseDuration(getEnv("FABLECORE_TICK", "250ms"))
	if err != nil {
		return nil, fmt.Errorf("FABLECORE_TICK: %w", err)
	}

	narratorTimeout, err := time.ParseDuration(getEnv("FABLECORE_NARRATOR_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("FABLECORE_NARRATOR_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Environment:  getEnv("FABLECORE_ENV", "development"),
		LogLevel:     parseLogLevel(getEnv("LOG_LEVEL", "warn")),
		SaveDir:      getEnv("FABLECORE_SAVE_DIR", "saves"),
		Store:        strings.ToLower(getEnv("FABLECORE_STORE", "file")),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SQLitePath:   getEnv("FABLECORE_SQLITE_PATH", "fablecore.db"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		VocabFile:    os.Getenv("FABLECORE_VOCAB"),
		Tick:         tick,

		NarratorTimeout: narratorTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no host can run with.
func (c *Config) Validate() error {
	switch c.Store {
	case "file", "redis", "sqlite":
	default:
		return fmt.Errorf("FABLECORE_STORE must be file, redis or sqlite, got %q", c.Store)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("FABLECORE_TICK must be positive, got %s", c.Tick)
	}
	if c.NarratorTimeout <= 0 {
		return fmt.Errorf("FABLECORE_NARRATOR_TIMEOUT must be positive, got %s", c.NarratorTimeout)
	}
	return nil
}

// Production reports whether logs should be machine-readable.
func (c *Config) Production() bool { return c.Environment == "production" }

// NarratorEnabled reports whether an AI narrator can be configured.
func (c *Config) NarratorEnabled() bool { return c.GeminiAPIKey != "" }

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
