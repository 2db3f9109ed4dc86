package catalog

import (
	"sync"
	"time"
)

// Cache holds the active documents list between store round trips
type Cache interface {
	// Get returns the cached documents, nil on a miss or after expiry
	Get() []*Document

	// Set stores documents in the cache
	Set(docs []*Document)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()

	// IsValid returns true if the cache holds unexpired data
	IsValid() bool
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Zero means entries only expire on Invalidate.
	TTL time.Duration
}

// DefaultCacheConfig invalidates on mutations only
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}

// InMemoryCache is a Cache for a single process. Safe for concurrent use.
type InMemoryCache struct {
	docs     []*Document
	cachedAt time.Time
	config   CacheConfig
	mu       sync.RWMutex
	valid    bool
}

// NewInMemoryCache creates an empty cache
func NewInMemoryCache(config CacheConfig) *InMemoryCache {
	return &InMemoryCache{config: config}
}

func (c *InMemoryCache) Get() []*Document {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.fresh() {
		return nil
	}

	out := make([]*Document, len(c.docs))
	copy(out, c.docs)
	return out
}

func (c *InMemoryCache) Set(docs []*Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.docs = make([]*Document, len(docs))
	copy(c.docs, docs)
	c.cachedAt = time.Now()
	c.valid = true
}

func (c *InMemoryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.valid = false
	c.docs = nil
}

func (c *InMemoryCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fresh()
}

// fresh must be called with mu held
func (c *InMemoryCache) fresh() bool {
	if !c.valid {
		return false
	}
	if c.config.TTL > 0 {
		return time.Since(c.cachedAt) <= c.config.TTL
	}
	return true
}
