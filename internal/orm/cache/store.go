package cache

import (
	"context"
	"errors"
	"time"
)

// Store defines the interface for the byte level cache backends
type Store interface {
	// Get retrieves a value from the store
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL, the default TTL when ttl is 0
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes values from the store
	Delete(ctx context.Context, keys ...string) error

	// Clear removes all values under the store prefix
	Clear(ctx context.Context) error
}

// Config holds common configuration for cache backends
type Config struct {
	// DefaultTTL is the default time-to-live for cached items
	DefaultTTL time.Duration
	// Prefix is prepended to all cache keys
	Prefix string
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 5 * time.Minute,
		Prefix:     "entityorm:",
	}
}

// ErrCacheMiss is returned when a key is not found in the store
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	var miss ErrCacheMiss
	return errors.As(err, &miss)
}
