package memory

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUCache is a byte-budgeted LRU cache. The package's Cache interface
// accounts capacity in bytes (a cache holds compressed vectors, decoded
// filter segments, etc. of wildly different sizes), but golang-lru's
// Cache[K,V] budgets by entry count. LRUCache reconciles the two: the
// inner hashicorp cache owns the recency order and entry storage, sized
// generously high so it never evicts on count, while LRUCache tracks
// the byte total itself and evicts the oldest entry whenever a Put
// would push it over capacity.
type LRUCache struct {
	name     string
	capacity int64

	mu    sync.RWMutex
	size  int64
	inner *lru.Cache[string, *cacheItem]
}

// cacheItem is what the inner LRU actually stores.
type cacheItem struct {
	value interface{}
	size  int64
}

// innerCapacity bounds the hashicorp cache's own entry count. It only
// needs to be larger than any realistic number of live entries under
// the byte budget this package enforces -- its own LRU eviction should
// never be the one that fires.
const innerCapacity = 1 << 20

// NewLRUCache creates a new LRU cache with the specified capacity in bytes.
func NewLRUCache(name string, capacity int64) *LRUCache {
	c := &LRUCache{name: name, capacity: capacity}
	inner, err := lru.NewWithEvict[string, *cacheItem](innerCapacity, func(_ string, evicted *cacheItem) {
		c.size -= evicted.size
	})
	if err != nil {
		// Only returns an error for a non-positive size, which innerCapacity never is.
		panic(fmt.Sprintf("memory: failed to construct LRU cache %q: %v", name, err))
	}
	c.inner = inner
	return c
}

// Name returns the cache identifier
func (c *LRUCache) Name() string {
	return c.name
}

// Size returns current cache size in bytes
func (c *LRUCache) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// Capacity returns the maximum cache capacity in bytes
func (c *LRUCache) Capacity() int64 {
	return c.capacity
}

// Get retrieves a value from the cache and marks it as recently used
func (c *LRUCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.inner.Get(key)
	if !ok {
		return nil, false
	}
	return item.value, true
}

// Put adds or updates a value in the cache, evicting least-recently-used
// entries as needed to stay within the byte capacity.
func (c *LRUCache) Put(key string, value interface{}, size int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if size > c.capacity {
		return false
	}

	if _, exists := c.inner.Peek(key); exists {
		c.inner.Remove(key) // onEvict callback untracks its old size
	}

	for c.size+size > c.capacity {
		if _, _, ok := c.inner.RemoveOldest(); !ok {
			break
		}
	}

	c.inner.Add(key, &cacheItem{value: value, size: size})
	c.size += size
	return true
}

// Remove removes an item from the cache
func (c *LRUCache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Remove(key)
}

// Clear removes all items from the cache
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Purge()
	c.size = 0
}

// Evict removes items to free the specified number of bytes.
// Returns the actual number of bytes freed.
func (c *LRUCache) Evict(bytes int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var freed int64
	for freed < bytes {
		_, item, ok := c.inner.RemoveOldest()
		if !ok {
			break
		}
		freed += item.size
	}
	return freed
}

// Len returns the number of items in the cache
func (c *LRUCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inner.Len()
}

// Keys returns all keys in the cache (for testing/debugging)
func (c *LRUCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inner.Keys()
}

// Stats returns cache statistics
func (c *LRUCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		Name:     c.name,
		Size:     c.size,
		Capacity: c.capacity,
		Items:    c.inner.Len(),
	}
}

// CacheStats represents cache statistics
type CacheStats struct {
	Name     string
	Size     int64
	Capacity int64
	Items    int
}

// String returns a string representation of cache stats
func (s CacheStats) String() string {
	return fmt.Sprintf("Cache{name=%s, size=%d, capacity=%d, items=%d}",
		s.Name, s.Size, s.Capacity, s.Items)
}
