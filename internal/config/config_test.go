package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/entityorm/internal/orm/dialect"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(oldWd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, dialect.SQLite, cfg.Database.Dialect)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.DSN)
	assert.False(t, cfg.Serialization.Strict)
	assert.False(t, cfg.Validation.Strict)
	assert.Equal(t, -1, cfg.Select.FetchDepth)
	assert.True(t, cfg.Select.OptimisticLocking)
	assert.Empty(t, cfg.Cache.RedisAddr)
	assert.Equal(t, "entityorm:", cfg.Cache.Prefix)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "info", cfg.Log.Level)

	d, err := cfg.Dialect()
	require.NoError(t, err)
	assert.Equal(t, dialect.SQLite, d.Name())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	content := `
database:
  dialect: postgres
  driver: pgx
  dsn: postgres://localhost/scott
serialization:
  strict: true
validation:
  strict: true
select:
  fetch_depth: 2
  optimistic_locking: false
cache:
  redis_addr: localhost:6379
  prefix: "scott:"
  ttl: 30s
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "entityorm.yaml"), []byte(content), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DatabaseConfig{Dialect: "postgres", Driver: "pgx", DSN: "postgres://localhost/scott"}, cfg.Database)
	assert.True(t, cfg.Serialization.Strict)
	assert.True(t, cfg.Validation.Strict)
	assert.Equal(t, SelectConfig{FetchDepth: 2, OptimisticLocking: false}, cfg.Select)
	assert.Equal(t, CacheConfig{RedisAddr: "localhost:6379", Prefix: "scott:", TTL: 30 * time.Second}, cfg.Cache)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  dialect: mysql\n  driver: mysql\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Dialect)
	assert.Equal(t, ":memory:", cfg.Database.DSN)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ENTITYORM_DATABASE_DSN", "file:scott.db")
	t.Setenv("ENTITYORM_SELECT_FETCH_DEPTH", "3")
	t.Setenv("ENTITYORM_SERIALIZATION_STRICT", "true")
	t.Setenv("ENTITYORM_CACHE_TTL", "1m")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "file:scott.db", cfg.Database.DSN)
	assert.Equal(t, 3, cfg.Select.FetchDepth)
	assert.True(t, cfg.Serialization.Strict)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown dialect", "database:\n  dialect: oracle\n"},
		{"empty driver", "database:\n  driver: \"\"\n"},
		{"fetch depth", "select:\n  fetch_depth: -2\n"},
		{"negative ttl", "cache:\n  ttl: -1s\n"},
		{"log level", "log:\n  level: loud\n"},
		{"malformed", "database: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "entityorm.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestConfig_Logger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := &Config{Log: LogConfig{Level: level}}
		logger, err := cfg.Logger()
		require.NoError(t, err, level)
		assert.NotNil(t, logger)
	}

	_, err := (&Config{Log: LogConfig{Level: "loud"}}).Logger()
	assert.Error(t, err)
}
