package cache

import (
	"context"
	"sync"
	"time"

	"github.com/compintel/backend/internal/domain"
)

// defaultCleanupInterval is how often expired entries are swept
const defaultCleanupInterval = 10 * time.Minute

// cacheItem represents a single item in the cache with expiration
type cacheItem[V any] struct {
	Value      V
	Expiration time.Time
}

// MemoryCache is a thread-safe in-memory cache with TTL support
type MemoryCache[V any] struct {
	data  map[string]cacheItem[V]
	mutex sync.RWMutex
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

// NewMemoryCache creates a new in-memory cache and starts its cleanup loop
func NewMemoryCache[V any]() *MemoryCache[V] {
	return newMemoryCache[V](defaultCleanupInterval, time.Now)
}

func newMemoryCache[V any](interval time.Duration, now func() time.Time) *MemoryCache[V] {
	cache := &MemoryCache[V]{
		data: make(map[string]cacheItem[V]),
		now:  now,
		stop: make(chan struct{}),
	}

	go cache.cleanupExpired(interval)

	return cache
}

// Get retrieves a value from the cache
func (c *MemoryCache[V]) Get(ctx context.Context, key string) (V, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var zero V
	item, exists := c.data[key]
	if !exists {
		return zero, domain.ErrCacheMiss
	}

	if c.now().After(item.Expiration) {
		return zero, domain.ErrCacheMiss
	}

	return item.Value, nil
}

// Set stores a value in the cache with TTL
func (c *MemoryCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = cacheItem[V]{
		Value:      value,
		Expiration: c.now().Add(ttl),
	}

	return nil
}

// Delete removes a value from the cache
func (c *MemoryCache[V]) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// Exists checks if a key exists in the cache and is not expired
func (c *MemoryCache[V]) Exists(ctx context.Context, key string) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists {
		return false, nil
	}

	return !c.now().After(item.Expiration), nil
}

// cleanupExpired removes expired entries from the cache periodically
func (c *MemoryCache[V]) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *MemoryCache[V]) removeExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	for key, item := range c.data {
		if now.After(item.Expiration) {
			delete(c.data, key)
		}
	}
}

// Close stops the cleanup loop
func (c *MemoryCache[V]) Close() {
	c.once.Do(func() { close(c.stop) })
}

// Size returns the number of stored items, expired ones included until swept
func (c *MemoryCache[V]) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// RunStore keeps completed scrape runs in memory until they expire
type RunStore struct {
	*MemoryCache[*domain.BatchResult]
}

// NewRunStore creates an in-memory run store
func NewRunStore() *RunStore {
	return &RunStore{MemoryCache: NewMemoryCache[*domain.BatchResult]()}
}

// Get returns the stored run or domain.ErrRunNotFound
func (s *RunStore) Get(ctx context.Context, runID string) (*domain.BatchResult, error) {
	run, err := s.MemoryCache.Get(ctx, runID)
	if err != nil {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}

var _ domain.RunRepository = (*RunStore)(nil)
