package cache

import (
	"sync"
	"time"
)

const cleanupInterval = 10 * time.Minute

// cacheItem represents a single item in the cache with expiration
type cacheItem[V any] struct {
	value      V
	expiration time.Time
}

// MemoryCache is a thread-safe in-memory cache with TTL support
type MemoryCache[K comparable, V any] struct {
	data  map[K]cacheItem[V]
	ttl   time.Duration
	mutex sync.RWMutex
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

// NewMemoryCache creates a cache whose entries live for ttl. Close stops the
// background cleanup.
func NewMemoryCache[K comparable, V any](ttl time.Duration) *MemoryCache[K, V] {
	c := &MemoryCache[K, V]{
		data: make(map[K]cacheItem[V]),
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}
	go c.cleanupExpired()
	return c
}

// Get retrieves a value from the cache
func (c *MemoryCache[K, V]) Get(key K) (V, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists || c.now().After(item.expiration) {
		var zero V
		return zero, false
	}
	return item.value, true
}

// Set stores a value in the cache
func (c *MemoryCache[K, V]) Set(key K, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = cacheItem[V]{value: value, expiration: c.now().Add(c.ttl)}
}

// Delete removes a value from the cache
func (c *MemoryCache[K, V]) Delete(key K) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
}

// Size returns the current number of items in the cache, expired ones included
func (c *MemoryCache[K, V]) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Close stops the cleanup goroutine.
func (c *MemoryCache[K, V]) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache[K, V]) removeExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	for key, item := range c.data {
		if now.After(item.expiration) {
			delete(c.data, key)
		}
	}
}

// cleanupExpired removes expired entries from the cache periodically
func (c *MemoryCache[K, V]) cleanupExpired() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}
