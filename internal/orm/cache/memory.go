package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements an in-memory store with TTL support
type MemoryStore struct {
	data   sync.Map
	config Config
	cancel context.CancelFunc
}

// item is a value held by the memory store
type item struct {
	value      []byte
	expiration time.Time
}

func (i item) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

// NewMemoryStore creates an in-memory store, removing expired items every
// cleanup interval until closed
func NewMemoryStore(config Config, cleanup time.Duration) *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())
	m := &MemoryStore{
		config: config,
		cancel: cancel,
	}
	go m.cleanupExpired(ctx, cleanup)
	return m
}

// Get retrieves a value from the store
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullKey := m.config.Prefix + key
	value, ok := m.data.Load(fullKey)
	if !ok {
		return nil, ErrCacheMiss{Key: key}
	}
	stored := value.(item)
	if stored.expired(time.Now()) {
		m.data.Delete(fullKey)
		return nil, ErrCacheMiss{Key: key}
	}
	return stored.value, nil
}

// Set stores a value with a TTL, negative TTLs never expire
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}
	stored := item{value: append([]byte(nil), value...)}
	if ttl > 0 {
		stored.expiration = time.Now().Add(ttl)
	}
	m.data.Store(m.config.Prefix+key, stored)
	return nil
}

// Delete removes values from the store
func (m *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, key := range keys {
		m.data.Delete(m.config.Prefix + key)
	}
	return nil
}

// Clear removes all values under the store prefix
func (m *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data.Range(func(key, _ any) bool {
		if strings.HasPrefix(key.(string), m.config.Prefix) {
			m.data.Delete(key)
		}
		return true
	})
	return nil
}

// Close stops the background cleanup goroutine
func (m *MemoryStore) Close() error {
	m.cancel()
	return nil
}

func (m *MemoryStore) cleanupExpired(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.data.Range(func(key, value any) bool {
				if value.(item).expired(now) {
					m.data.Delete(key)
				}
				return true
			})
		}
	}
}
