// Package config loads the command-line configuration: one or more catalog
// sources read from YAML, with RSE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/coregx/rse/internal/cache"
	"github.com/coregx/rse/internal/dialects"
	"github.com/coregx/rse/internal/logger"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Defaults applied by Load.
const (
	DefaultTimeout = 30 * time.Second
	DefaultBackoff = 200 * time.Millisecond
	DefaultCatalog = "default"
)

// Config is the command-line configuration.
type Config struct {
	Log           LogConfig     `yaml:"log"`
	Timeout       time.Duration `yaml:"timeout"`
	// Retries is how many times a failed extraction is rerun when the
	// failure was a lost connection.
	Retries       int           `yaml:"retries"`
	Backoff       time.Duration `yaml:"backoff"`
	CacheCapacity int           `yaml:"cache_capacity"`
	Sources       []Source      `yaml:"sources"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Source is one database whose catalog is extracted.
type Source struct {
	// Catalog names the extracted catalog.
	Catalog string   `yaml:"catalog"`
	Dialect string   `yaml:"dialect"`
	// Driver overrides the database/sql driver chosen for the dialect.
	Driver  string   `yaml:"driver,omitempty"`
	DSN     string   `yaml:"dsn"`
	Schemas []string `yaml:"schemas,omitempty"`
	Tables  []string `yaml:"tables,omitempty"`
}

// DriverName returns the database/sql driver used for the source.
func (s Source) DriverName() string {
	if s.Driver != "" {
		return s.Driver
	}
	switch strings.ToLower(s.Dialect) {
	case "postgres", "postgresql":
		return "postgres"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return strings.ToLower(s.Dialect)
	}
}

// Load reads the YAML file at path, when path is not empty, and then
// applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnv overrides settings from RSE_* variables. Source variables target
// the only configured source, creating it when none is configured.
func (c *Config) applyEnv() error {
	if v := os.Getenv("RSE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("RSE_LOG_JSON"); v != "" {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return fmt.Errorf("RSE_LOG_JSON: %w", err)
		}
		c.Log.JSON = b
	}
	if v := os.Getenv("RSE_TIMEOUT"); v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return fmt.Errorf("RSE_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("RSE_RETRIES"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("RSE_RETRIES: %w", err)
		}
		c.Retries = n
	}
	if v := os.Getenv("RSE_CACHE_CAPACITY"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("RSE_CACHE_CAPACITY: %w", err)
		}
		c.CacheCapacity = n
	}

	dialect, dsn := os.Getenv("RSE_DIALECT"), os.Getenv("RSE_DSN")
	catalog, schemas := os.Getenv("RSE_CATALOG"), os.Getenv("RSE_SCHEMAS")
	if dialect == "" && dsn == "" && catalog == "" && schemas == "" {
		return nil
	}
	if len(c.Sources) > 1 {
		return fmt.Errorf("%w: RSE_* source overrides need exactly one configured source, have %d", ErrInvalid, len(c.Sources))
	}
	if len(c.Sources) == 0 {
		c.Sources = append(c.Sources, Source{})
	}
	s := &c.Sources[0]
	if dialect != "" {
		s.Dialect = dialect
	}
	if dsn != "" {
		s.DSN = dsn
	}
	if catalog != "" {
		s.Catalog = catalog
	}
	if schemas != "" {
		s.Schemas = splitList(schemas)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Backoff == 0 {
		c.Backoff = DefaultBackoff
	}
	if c.CacheCapacity == 0 {
		c.CacheCapacity = cache.DefaultCommandCacheCapacity
	}
	for i := range c.Sources {
		if c.Sources[i].Catalog == "" {
			c.Sources[i].Catalog = DefaultCatalog
		}
	}
}

// Validate checks the configuration is usable, including the DSN syntax of
// every source for its driver.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalid, c.Timeout)
	}
	if c.Retries < 0 {
		return fmt.Errorf("%w: negative retries %d", ErrInvalid, c.Retries)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: no sources configured", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if seen[s.Catalog] {
			return fmt.Errorf("%w: duplicate catalog %q", ErrInvalid, s.Catalog)
		}
		seen[s.Catalog] = true
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the dialect is registered and the DSN parses.
func (s Source) Validate() error {
	if _, err := dialects.Lookup(s.Dialect); err != nil {
		return fmt.Errorf("%w: source %q: %w", ErrInvalid, s.Catalog, err)
	}
	if s.DSN == "" {
		return fmt.Errorf("%w: source %q: empty dsn", ErrInvalid, s.Catalog)
	}
	switch strings.ToLower(s.Dialect) {
	case "mysql":
		if _, err := mysql.ParseDSN(s.DSN); err != nil {
			return fmt.Errorf("%w: source %q: %w", ErrInvalid, s.Catalog, err)
		}
	case "postgres", "postgresql":
		if strings.HasPrefix(s.DSN, "postgres://") || strings.HasPrefix(s.DSN, "postgresql://") {
			if _, err := pq.ParseURL(s.DSN); err != nil {
				return fmt.Errorf("%w: source %q: %w", ErrInvalid, s.Catalog, err)
			}
		}
	}
	return nil
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
