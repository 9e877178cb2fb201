// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	engine "github.com/CaptainGlac1er/rocket-learn/engine"
)

// Config holds every runtime setting of the observation feed.
type Config struct {
	ListenAddr string

	// MaxPlayers bounds the roster of every episode; it fixes the entity matrix height.
	MaxPlayers int

	LogLevel  string
	LogFormat string // "text" or "json"

	JWTSecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RolloutPrefix string        // list key prefix; the episode id is appended
	RolloutTTL    time.Duration // 0 keeps lists forever

	DatabaseURL string // empty disables the episode ledger

	ShutdownTimeout time.Duration
}

// Default returns the configuration used when no environment overrides are set.
func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		MaxPlayers:      engine.MaxPlayers,
		LogLevel:        "info",
		LogFormat:       "text",
		RedisAddr:       "localhost:6379",
		RolloutPrefix:   "rollout:",
		RolloutTTL:      time.Hour,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables already set in the environment.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, falling back to Default for unset keys.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var err error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" || err != nil {
			return
		}
		n, perr := strconv.Atoi(v)
		if perr != nil {
			err = fmt.Errorf("%s: %w", key, perr)
			return
		}
		*dst = n
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" || err != nil {
			return
		}
		d, perr := time.ParseDuration(v)
		if perr != nil {
			err = fmt.Errorf("%s: %w", key, perr)
			return
		}
		*dst = d
	}

	str("OBSFEED_LISTEN_ADDR", &cfg.ListenAddr)
	num("OBSFEED_MAX_PLAYERS", &cfg.MaxPlayers)
	str("OBSFEED_LOG_LEVEL", &cfg.LogLevel)
	str("OBSFEED_LOG_FORMAT", &cfg.LogFormat)
	str("OBSFEED_JWT_SECRET", &cfg.JWTSecret)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("REDIS_PASSWORD", &cfg.RedisPassword)
	num("REDIS_DB", &cfg.RedisDB)
	str("OBSFEED_ROLLOUT_PREFIX", &cfg.RolloutPrefix)
	dur("OBSFEED_ROLLOUT_TTL", &cfg.RolloutTTL)
	str("DATABASE_URL", &cfg.DatabaseURL)
	dur("OBSFEED_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if c.MaxPlayers < 2 || c.MaxPlayers > engine.MaxPlayers {
		return fmt.Errorf("max players must be in [2, %d], got %d", engine.MaxPlayers, c.MaxPlayers)
	}
	if c.JWTSecret == "" {
		return errors.New("OBSFEED_JWT_SECRET is required")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.RolloutTTL < 0 {
		return fmt.Errorf("rollout ttl must not be negative, got %s", c.RolloutTTL)
	}
	return nil
}
