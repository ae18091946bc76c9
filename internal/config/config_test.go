package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// clearEnv blanks every RSE_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	for _, k := range []string{
		"RSE_LOG_LEVEL", "RSE_LOG_JSON", "RSE_TIMEOUT", "RSE_RETRIES", "RSE_CACHE_CAPACITY",
		"RSE_DIALECT", "RSE_DSN", "RSE_CATALOG", "RSE_SCHEMAS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
log:
  level: debug
  json: true
timeout: 45s
retries: 2
sources:
  - catalog: shop
    dialect: mysql
    dsn: "app:secret@tcp(localhost:3306)/shop"
    schemas: [shop]
    tables: [orders, customers]
  - catalog: billing
    dialect: postgres
    dsn: "postgres://app@localhost/billing?sslmode=disable"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, DefaultBackoff, cfg.Backoff)
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, []string{"orders", "customers"}, cfg.Sources[0].Tables)
	assert.Equal(t, "postgres", cfg.Sources[1].DriverName())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, 1000, cfg.CacheCapacity)
	assert.Empty(t, cfg.Sources)
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RSE_DIALECT", "sqlite3")
	t.Setenv("RSE_DSN", "file:test.db")
	t.Setenv("RSE_SCHEMAS", "main, ,aux")
	t.Setenv("RSE_TIMEOUT", "5s")
	t.Setenv("RSE_CACHE_CAPACITY", "64")
	t.Setenv("RSE_LOG_JSON", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Len(t, cfg.Sources, 1)
	s := cfg.Sources[0]
	assert.Equal(t, DefaultCatalog, s.Catalog)
	assert.Equal(t, "sqlite3", s.DriverName())
	assert.Equal(t, []string{"main", "aux"}, s.Schemas)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 64, cfg.CacheCapacity)
	assert.True(t, cfg.Log.JSON)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesSingleSource(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
sources:
  - catalog: shop
    dialect: mysql
    dsn: "app@tcp(db:3306)/shop"
`)
	t.Setenv("RSE_DSN", "app@tcp(replica:3306)/shop")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "app@tcp(replica:3306)/shop", cfg.Sources[0].DSN)
	assert.Equal(t, "shop", cfg.Sources[0].Catalog)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "malformed yaml", body: "sources: [", env: nil},
		{name: "bad timeout", body: "", env: map[string]string{"RSE_TIMEOUT": "soon"}},
		{name: "bad retries", body: "", env: map[string]string{"RSE_RETRIES": "many"}},
		{
			name: "ambiguous source override",
			body: "sources:\n  - {catalog: a, dialect: mysql, dsn: x}\n  - {catalog: b, dialect: mysql, dsn: y}\n",
			env:  map[string]string{"RSE_DSN": "z"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Log:     LogConfig{Level: "info"},
			Timeout: time.Second,
			Sources: []Source{{Catalog: "c", Dialect: "mysql", DSN: "u@tcp(h:3306)/db"}},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "loud" }},
		{name: "negative timeout", mutate: func(c *Config) { c.Timeout = -time.Second }},
		{name: "negative retries", mutate: func(c *Config) { c.Retries = -1 }},
		{name: "unknown dialect", mutate: func(c *Config) { c.Sources[0].Dialect = "oracle" }},
		{name: "empty dsn", mutate: func(c *Config) { c.Sources[0].DSN = "" }},
		{name: "mysql dsn without database", mutate: func(c *Config) { c.Sources[0].DSN = "u@tcp(h:3306)" }},
		{name: "postgres url", mutate: func(c *Config) {
			c.Sources[0].Dialect = "postgres"
			c.Sources[0].DSN = "postgres://%zz"
		}},
		{name: "duplicate catalog", mutate: func(c *Config) { c.Sources = append(c.Sources, c.Sources[0]) }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}

func TestSource_PostgresKeywordDSN(t *testing.T) {
	s := Source{Catalog: "c", Dialect: "postgresql", DSN: "host=localhost dbname=app sslmode=disable"}
	assert.NoError(t, s.Validate())
}
