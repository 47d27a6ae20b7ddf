// Package cache provides an entity cache keyed by primary key, storing
// entities encoded with the serialize codec in Redis or in memory.
//
// Concurrent GetOrLoad calls for the same key share a single load.
package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/conduit-lang/entityorm/internal/orm/database"
	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
	"github.com/conduit-lang/entityorm/internal/orm/serialize"
)

// Loader loads the entity identified by key on a cache miss. A nil entity
// with a nil error is reported as database.ErrNotFound.
type Loader func(ctx context.Context, key *entity.Key) (entity.Entity, error)

// EntityCache caches entities by primary key
type EntityCache struct {
	store  Store
	codec  *serialize.Codec
	ttl    time.Duration
	logger *zap.Logger
	group  singleflight.Group
}

// Option configures an EntityCache
type Option func(*EntityCache)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *EntityCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTTL sets the time-to-live of cached entities, the store default when 0
func WithTTL(ttl time.Duration) Option {
	return func(c *EntityCache) {
		c.ttl = ttl
	}
}

// New creates an entity cache on store, encoding entities with codec
func New(store Store, codec *serialize.Codec, opts ...Option) *EntityCache {
	c := &EntityCache{
		store:  store,
		codec:  codec,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the cache key of key: domain, entity type and key values
func Key(key *entity.Key) string {
	return key.Type().Domain + ":" + key.Type().Name + ":" + key.String()
}

// Put caches entities under their primary key
func (c *EntityCache) Put(ctx context.Context, entities ...entity.Entity) error {
	for _, e := range entities {
		key := e.PrimaryKey()
		if !key.Primary() || key.IsNull() {
			return schema.ContractViolation("cannot cache %s without a primary key value", e.Type())
		}
		data, err := c.codec.MarshalEntity(e)
		if err != nil {
			return fmt.Errorf("failed to cache %s: %w", key, err)
		}
		if err := c.store.Set(ctx, Key(key), data, c.ttl); err != nil {
			return fmt.Errorf("failed to cache %s: %w", key, err)
		}
	}
	return nil
}

// Get returns the cached entity identified by key, false on a cache miss
func (c *EntityCache) Get(ctx context.Context, key *entity.Key) (entity.Entity, bool, error) {
	data, err := c.store.Get(ctx, Key(key))
	if IsCacheMiss(err) {
		c.logger.Debug("cache miss", zap.Stringer("key", key))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s from cache: %w", key, err)
	}
	e, err := c.codec.UnmarshalEntity(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return e, true, nil
}

// Delete removes the entities identified by keys
func (c *EntityCache) Delete(ctx context.Context, keys ...*entity.Key) error {
	cacheKeys := make([]string, len(keys))
	for i, key := range keys {
		cacheKeys[i] = Key(key)
	}
	if err := c.store.Delete(ctx, cacheKeys...); err != nil {
		return fmt.Errorf("failed to evict from cache: %w", err)
	}
	return nil
}

// GetOrLoad returns the cached entity identified by key, loading and caching
// it on a miss. Load failures and missing entities are not cached.
func (c *EntityCache) GetOrLoad(ctx context.Context, key *entity.Key, loader Loader) (entity.Entity, error) {
	if e, ok, err := c.Get(ctx, key); err != nil || ok {
		return e, err
	}
	value, err, shared := c.group.Do(Key(key), func() (any, error) {
		e, err := loader(ctx, key)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, fmt.Errorf("failed to load %s: %w", key, database.ErrNotFound)
		}
		if err := c.Put(ctx, e); err != nil {
			c.logger.Warn("failed to cache loaded entity", zap.Stringer("key", key), zap.Error(err))
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	e := value.(entity.Entity)
	if shared {
		return e.Copy(), nil
	}
	return e, nil
}
