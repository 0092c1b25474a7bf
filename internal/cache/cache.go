package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/city-weather-service/internal/models"
)

// Cache defines the interface for weather response caching implementations.
// Get never returns an entry at or past its absolute expiry.
type Cache interface {
	Get(ctx context.Context, key string) (models.WeatherResponse, bool, error)
	Set(ctx context.Context, key string, value models.WeatherResponse, ttl time.Duration) error
}

// Backend is a Cache with an explicit lifecycle, owned by main.
type Backend interface {
	Cache
	Ping(ctx context.Context) error
	Close() error
}

// InMemoryCache implements Cache with a process-local map and absolute expiry.
// Expired entries are dropped lazily on access. Values are deep-copied on the
// way in and out, so callers never share pointers with a stored entry. Safe for concurrent use;
// concurrent Sets for one key are last-writer-wins.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time
}

// Option configures an InMemoryCache.
type Option func(*InMemoryCache)

// WithClock overrides the time source used to stamp and check expiry.
func WithClock(now func() time.Time) Option {
	return func(c *InMemoryCache) {
		c.now = now
	}
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache(opts ...Option) *InMemoryCache {
	c := &InMemoryCache{
		data: make(map[string]entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns (value, true, nil) on hit and (zero, false, nil) on miss or expiry.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.WeatherResponse, bool, error) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return models.WeatherResponse{}, false, nil
	}

	now := c.now()
	if e.expired(now) {
		c.mu.Lock()
		// A concurrent Set may have refreshed the key since the read lock was released.
		if cur, ok := c.data[key]; ok && cur.expired(now) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return models.WeatherResponse{}, false, nil
	}
	return e.Value.Clone(), true, nil
}

// Set stores value until now+ttl.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.WeatherResponse, ttl time.Duration) error {
	e := newEntry(value.Clone(), c.now(), ttl)
	c.mu.Lock()
	c.data[key] = e
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet dropped.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Ping always succeeds; the map lives in process.
func (c *InMemoryCache) Ping(ctx context.Context) error {
	return nil
}

// Close drops all entries.
func (c *InMemoryCache) Close() error {
	c.mu.Lock()
	c.data = make(map[string]entry)
	c.mu.Unlock()
	return nil
}
