// Package ttl implements the key/value cache with per-entry expiry that sits in
// front of the upstream provider. TTL is the only eviction mechanism: stale
// entries are reclaimed when they are read, or by Purge.
package ttl

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"goflare.io/gridiron/internal/models"
	"goflare.io/gridiron/internal/utils"
)

// DefaultTTL is used when Set receives a non-positive ttl and no default was configured.
const DefaultTTL = 120 * time.Second

// Cache wraps a Store with a clock, a default TTL and hit/miss counters.
type Cache struct {
	store      Store
	defaultTTL time.Duration
	now        func() time.Time
	metrics    *models.Metrics
	logger     *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithDefaultTTL sets the TTL used when Set is called without one.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Cache on top of store. A nil store gets a single-shard MemoryStore.
func New(store Store, opts ...Option) *Cache {
	if store == nil {
		store = NewMemoryStore(1)
	}
	c := &Cache{
		store:      store,
		defaultTTL: DefaultTTL,
		now:        time.Now,
		metrics:    models.NewMetrics(),
		logger:     zap.NewNop(),
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores value under key for ttl, overwriting any earlier entry.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	entry := models.NewEntry(key, value, c.now(), utils.ResolveTTL(c.defaultTTL, ttl))
	if err := c.store.Set(ctx, entry); err != nil {
		return err
	}
	c.metrics.Sets.Inc()
	c.logger.Debug("cache set", zap.String("key", key), zap.Time("expiresAt", entry.ExpiresAt))
	return nil
}

// Get returns the value stored under key while it is fresh. A stale entry is
// purged and reported as absent.
func (c *Cache) Get(ctx context.Context, key string) (any, bool) {
	entry, lookup := c.store.Get(ctx, key, c.now())
	switch lookup {
	case Hit:
		c.metrics.Hits.Inc()
		return entry.Data, true
	case Expired:
		c.metrics.Expirations.Inc()
		c.logger.Debug("cache entry expired", zap.String("key", key))
	}
	c.metrics.Misses.Inc()
	return nil, false
}

// TTL returns the remaining lifetime of a fresh entry.
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, bool) {
	now := c.now()
	entry, lookup := c.store.Get(ctx, key, now)
	if lookup != Hit {
		return 0, false
	}
	return entry.Remaining(now), true
}

// Purge removes all stale entries and returns how many were removed.
func (c *Cache) Purge(ctx context.Context) int {
	removed := c.store.Purge(ctx, c.now())
	if removed > 0 {
		c.metrics.Expirations.Add(int64(removed))
		c.logger.Debug("purged expired entries", zap.Int("removed", removed))
	}
	return removed
}

// StartJanitor purges stale entries every interval until ctx is done or the
// cache is closed. A non-positive interval leaves reclamation lazy.
func (c *Cache) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Purge(ctx)
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			}
		}
	}()
}

// Len returns the number of resident entries, including unread stale ones.
func (c *Cache) Len() int {
	return c.store.Len()
}

// Clear drops every entry.
func (c *Cache) Clear(ctx context.Context) {
	c.store.Flush(ctx)
}

// Metrics returns a snapshot of the cache counters.
func (c *Cache) Metrics() models.Snapshot {
	c.metrics.Size.Store(int64(c.store.Len()))
	return c.metrics.Snapshot()
}

// Close stops the janitor and releases the store.
func (c *Cache) Close() error {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.wg.Wait()
		c.store.Close()
	})
	return nil
}
