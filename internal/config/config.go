package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Game    GameConfig
	Store   StoreConfig
	Catalog CatalogConfig
	Logging LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port          string `env:"PORT" envDefault:"8080"`
	Host          string `env:"HOST" envDefault:"0.0.0.0"`
	Env           string `env:"ENV" envDefault:"development"` // "development" or "production"
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
}

// GameConfig holds game-related configuration
type GameConfig struct {
	CodeLength       int           `env:"GAME_CODE_LENGTH" envDefault:"6"`
	StaleGameTimeout time.Duration `env:"STALE_GAME_TIMEOUT" envDefault:"2h"`
	CleanupInterval  time.Duration `env:"CLEANUP_INTERVAL" envDefault:"10m"`
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Driver       string `env:"STORE_DRIVER" envDefault:"memory"` // "memory", "sqlite" or "postgres"
	DSN          string `env:"STORE_DSN"`
	SnapshotPath string `env:"SNAPSHOT_PATH" envDefault:"data/game-state.json"`
}

// CatalogConfig holds the optional catalog override
type CatalogConfig struct {
	Path string `env:"CATALOG_PATH"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// Load reads .env files when present, then parses configuration from the
// environment. Variables already set win over file values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("STORE_DSN is required for driver %s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}

	if c.Game.CodeLength < 4 || c.Game.CodeLength > 16 {
		return fmt.Errorf("GAME_CODE_LENGTH must be between 4 and 16, got %d", c.Game.CodeLength)
	}
	if c.Game.StaleGameTimeout <= 0 {
		return fmt.Errorf("STALE_GAME_TIMEOUT must be positive, got %s", c.Game.StaleGameTimeout)
	}
	if c.Game.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive, got %s", c.Game.CleanupInterval)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// BaseURL returns the public URL invite links point to
func (c *Config) BaseURL() string {
	if c.Server.PublicBaseURL != "" {
		return c.Server.PublicBaseURL
	}
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return "http://" + host + ":" + c.Server.Port
}
