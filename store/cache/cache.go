package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config contains the configuration for the cache.
type Config struct {
	// DefaultTTL is the default time-to-live for cache entries.
	DefaultTTL time.Duration
	// CleanupInterval is how often the cache runs cleanup.
	CleanupInterval time.Duration
	// MaxItems is the maximum number of items allowed in the cache.
	MaxItems int
	// OnEviction is called when an item is evicted from the cache.
	OnEviction func(key string, value any)
}

// DefaultConfig returns a default configuration for the cache.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxItems:        1000,
	}
}

type item struct {
	value      any
	expiration time.Time
}

// Cache is a thread-safe in-memory cache with TTL and a size bound.
type Cache struct {
	data      sync.Map
	config    Config
	itemCount int64
	stopChan  chan struct{}
	closeOnce sync.Once
}

// New creates a new cache with the given configuration and starts its cleanup loop.
func New(config Config) *Cache {
	c := &Cache{
		config:   config,
		stopChan: make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go c.cleanupLoop()
	}
	return c
}

// Set adds a value to the cache with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	c.SetWithTTL(ctx, key, value, c.config.DefaultTTL)
}

// SetWithTTL adds a value to the cache with a custom TTL.
func (c *Cache) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) {
	if _, loaded := c.data.Swap(key, item{value: value, expiration: time.Now().Add(ttl)}); !loaded {
		if atomic.AddInt64(&c.itemCount, 1) > int64(c.config.MaxItems) && c.config.MaxItems > 0 {
			c.evictOne(key)
		}
	}
}

// Get retrieves a value from the cache.
func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	value, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}
	it := value.(item)
	if time.Now().After(it.expiration) {
		c.remove(key, it)
		return nil, false
	}
	return it.value, true
}

// Delete removes a value from the cache.
func (c *Cache) Delete(_ context.Context, key string) {
	if value, loaded := c.data.LoadAndDelete(key); loaded {
		atomic.AddInt64(&c.itemCount, -1)
		if c.config.OnEviction != nil {
			c.config.OnEviction(key, value.(item).value)
		}
	}
}

// Size returns the number of items in the cache.
func (c *Cache) Size() int64 {
	return atomic.LoadInt64(&c.itemCount)
}

// Close stops the cleanup loop.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
	})
	return nil
}

func (c *Cache) remove(key string, it item) {
	if c.data.CompareAndDelete(key, it) {
		atomic.AddInt64(&c.itemCount, -1)
		if c.config.OnEviction != nil {
			c.config.OnEviction(key, it.value)
		}
	}
}

// evictOne drops the entry closest to expiry, skipping the key just written.
func (c *Cache) evictOne(keep string) {
	var (
		victim     string
		victimItem item
		found      bool
	)
	c.data.Range(func(k, v any) bool {
		key := k.(string)
		if key == keep {
			return true
		}
		it := v.(item)
		if !found || it.expiration.Before(victimItem.expiration) {
			victim, victimItem, found = key, it, true
		}
		return true
	})
	if found {
		c.remove(victim, victimItem)
	}
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Cache) cleanup() {
	now := time.Now()
	c.data.Range(func(k, v any) bool {
		if it := v.(item); now.After(it.expiration) {
			c.remove(k.(string), it)
		}
		return true
	})
}
