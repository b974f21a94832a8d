// Package config loads service settings from a YAML file and the
// environment. Environment variables win over the file, the file wins over
// defaults.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Suggest SuggestConfig `yaml:"suggest"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
	Ingest  IngestConfig  `yaml:"ingest"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"` // postgres connection string
	SQLitePath string `yaml:"sqlite_path"`
}

// SuggestConfig holds request defaults for the suggestion engine.
type SuggestConfig struct {
	Threshold    float64 `yaml:"threshold"`
	TopK         int     `yaml:"top_k"`
	IncludeSplit bool    `yaml:"include_split"`
	ListLimit    int     `yaml:"list_limit"`
}

// AuthConfig guards mutating routes. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

type IngestConfig struct {
	Timezone string `yaml:"timezone"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver:     DriverSQLite,
			SQLitePath: "va-tasks.db",
		},
		Suggest: SuggestConfig{
			Threshold:    0.45,
			TopK:         5,
			IncludeSplit: true,
			ListLimit:    200,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Ingest: IngestConfig{
			Timezone: "America/Phoenix",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	if addr := os.Getenv("VA_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if origins := os.Getenv("VA_CORS_ORIGINS"); origins != "" {
		c.Server.CORSOrigins = splitList(origins)
	}
	if driver := os.Getenv("VA_STORE_DRIVER"); driver != "" {
		c.Store.Driver = driver
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Store.DSN = dsn
	}
	if path := os.Getenv("VA_SQLITE_PATH"); path != "" {
		c.Store.SQLitePath = path
	}
	if secret := os.Getenv("VA_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if level := os.Getenv("VA_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("VA_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if tz := os.Getenv("VA_TIMEZONE"); tz != "" {
		c.Ingest.Timezone = tz
	}
	if v := os.Getenv("VA_SUGGEST_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("VA_SUGGEST_THRESHOLD: %w", err)
		}
		c.Suggest.Threshold = f
	}
	return nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("config: store.dsn (or DATABASE_URL) is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == DriverSQLite && c.Store.SQLitePath == "" {
		return errors.New("config: store.sqlite_path is required for sqlite")
	}
	if math.IsNaN(c.Suggest.Threshold) || c.Suggest.Threshold < 0 || c.Suggest.Threshold > 1 {
		return fmt.Errorf("config: suggest.threshold %v outside [0, 1]", c.Suggest.Threshold)
	}
	if c.Suggest.TopK < 1 || c.Suggest.TopK > 20 {
		return fmt.Errorf("config: suggest.top_k %d outside [1, 20]", c.Suggest.TopK)
	}
	if c.Suggest.ListLimit < 1 {
		return fmt.Errorf("config: suggest.list_limit must be positive, got %d", c.Suggest.ListLimit)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: unknown logging.format %q", c.Logging.Format)
	}
	if _, err := time.LoadLocation(c.Ingest.Timezone); err != nil {
		return fmt.Errorf("config: ingest.timezone: %w", err)
	}
	return nil
}

// Location resolves the ingest timezone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Ingest.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
