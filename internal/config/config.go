// Package config loads process configuration from the environment. A .env
// file in the working directory, when present, is loaded first; variables
// already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/meemee/studio"
)

// Store backends selectable with STORE.
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the full process configuration.
type Config struct {
	Store       string
	RedisURL    string
	DatabaseURL string

	RendererAPIKey    string
	RendererBaseURL   string
	RendererModel     string
	RendererRateLimit float64

	BotToken     string
	TemplatesDir string
	HTTPAddr     string
	LogLevel     slog.Level
	FreeQuota    int64

	Engine studio.Config
}

// Load reads .env (if any) and the environment and validates the result.
func Load() (Config, error) {
	_ = godotenv.Load() //nolint:errcheck // a missing .env is fine
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Engine tunables default to
// studio.DefaultConfig.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(k, def string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return def
	}

	c := Config{
		RedisURL:        get("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:     get("DATABASE_URL", ""),
		RendererAPIKey:  get("RENDERER_API_KEY", ""),
		RendererBaseURL: get("RENDERER_BASE_URL", ""),
		RendererModel:   get("RENDERER_MODEL", ""),
		BotToken:        get("BOT_TOKEN", ""),
		TemplatesDir:    get("TEMPLATES_DIR", "templates"),
		HTTPAddr:        get("HTTP_ADDR", ":8080"),
		Engine:          studio.DefaultConfig(),
	}

	c.Store = get("STORE", "")
	if c.Store == "" {
		c.Store = StoreRedis
		if c.DatabaseURL != "" {
			c.Store = StorePostgres
		}
	}

	var errs []error
	parse := func(key string, fn func(string) error) {
		if v := get(key, ""); v != "" {
			if err := fn(v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}

	parse("POLL_INTERVAL", func(v string) (err error) {
		c.Engine.PollInterval, err = positiveDuration(v)
		return err
	})
	parse("POLL_MAX_ATTEMPTS", func(v string) (err error) {
		c.Engine.MaxPollAttempts, err = positiveInt(v)
		return err
	})
	parse("RECOVERY_STALE_AFTER", func(v string) (err error) {
		c.Engine.StaleThreshold, err = positiveDuration(v)
		return err
	})
	parse("RENDERER_RATE_LIMIT", func(v string) (err error) {
		c.RendererRateLimit, err = strconv.ParseFloat(v, 64)
		if err == nil && c.RendererRateLimit < 0 {
			err = errors.New("must not be negative")
		}
		return err
	})
	c.FreeQuota = 1
	parse("FREE_QUOTA_PER_USER", func(v string) (err error) {
		c.FreeQuota, err = strconv.ParseInt(v, 10, 64)
		if err == nil && c.FreeQuota < 0 {
			err = errors.New("must not be negative")
		}
		return err
	})
	parse("LOG_LEVEL", func(v string) error {
		return c.LogLevel.UnmarshalText([]byte(v))
	})

	switch c.Store {
	case StoreRedis, StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE: unknown backend %q", c.Store))
	}
	if c.RendererAPIKey == "" {
		errs = append(errs, errors.New("RENDERER_API_KEY is required"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

func positiveDuration(v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}

func positiveInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}
