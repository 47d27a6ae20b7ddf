// Package config loads the entityorm configuration from an optional
// entityorm.yaml file and ENTITYORM_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/entityorm/internal/orm/dialect"
)

// EnvPrefix prefixes environment variable overrides, ENTITYORM_DATABASE_DSN
// overriding database.dsn
const EnvPrefix = "ENTITYORM"

// Config represents the entityorm configuration
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Serialization SerializationConfig `mapstructure:"serialization"`
	Validation    ValidationConfig    `mapstructure:"validation"`
	Select        SelectConfig        `mapstructure:"select"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Log           LogConfig           `mapstructure:"log"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Dialect string `mapstructure:"dialect"`
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
}

// SerializationConfig represents entity serialization configuration
type SerializationConfig struct {
	Strict bool `mapstructure:"strict"`
}

// ValidationConfig represents entity validation configuration
type ValidationConfig struct {
	Strict bool `mapstructure:"strict"`
}

// SelectConfig represents select defaults
type SelectConfig struct {
	// FetchDepth overrides the foreign key fetch depth of demo selects, -1
	// keeping the definition defaults
	FetchDepth        int  `mapstructure:"fetch_depth"`
	OptimisticLocking bool `mapstructure:"optimistic_locking"`
}

// CacheConfig represents entity cache configuration, the memory store being
// used when RedisAddr is empty
type CacheConfig struct {
	RedisAddr string        `mapstructure:"redis_addr"`
	Prefix    string        `mapstructure:"prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads the configuration from path, or from entityorm.yaml in the
// working directory if path is empty. A missing entityorm.yaml leaves the
// defaults in place.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("entityorm")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.dialect", dialect.SQLite)
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", ":memory:")
	v.SetDefault("serialization.strict", false)
	v.SetDefault("validation.strict", false)
	v.SetDefault("select.fetch_depth", -1)
	v.SetDefault("select.optimistic_locking", true)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.prefix", "entityorm:")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("log.level", "info")
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if _, err := dialect.Get(cfg.Database.Dialect); err != nil {
		return fmt.Errorf("database.dialect: %w", err)
	}
	if cfg.Database.Driver == "" {
		return fmt.Errorf("database.driver must be set")
	}
	if cfg.Select.FetchDepth < -1 {
		return fmt.Errorf("select.fetch_depth must be -1 or greater, got: %d", cfg.Select.FetchDepth)
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got: %s", cfg.Cache.TTL)
	}
	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Dialect returns the configured SQL dialect
func (c *Config) Dialect() (dialect.Dialect, error) {
	return dialect.Get(c.Database.Dialect)
}

// Logger builds a development logger for the debug level, a production
// logger otherwise
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	if level == zapcore.DebugLevel {
		return zap.NewDevelopment()
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	return config.Build()
}
