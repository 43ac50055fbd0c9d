package fingerprint

import (
	"container/list"
	"sync"
)

// OUICache is an LRU of prefix -> vendor lookups.
type OUICache struct {
	capacity int
	items    map[string]*list.Element
	order    *list.List
	mu       sync.Mutex

	hits   int64
	misses int64
}

type cacheEntry struct {
	prefix string
	vendor string
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Size   int
	Hits   int64
	Misses int64
}

// NewOUICache creates a cache holding at most capacity prefixes.
func NewOUICache(capacity int) *OUICache {
	if capacity <= 0 {
		capacity = 1
	}
	return &OUICache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached vendor and marks it most recently used.
func (c *OUICache) Get(prefix string) (string, bool) {
	// promotion mutates the list, so a read lock is not enough here
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[prefix]
	if !ok {
		c.misses++
		return "", false
	}
	c.hits++
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).vendor, true
}

// Set stores a vendor, evicting the least recently used entry when full.
func (c *OUICache) Set(prefix, vendor string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[prefix]; ok {
		elem.Value.(*cacheEntry).vendor = vendor
		c.order.MoveToFront(elem)
		return
	}

	c.items[prefix] = c.order.PushFront(&cacheEntry{prefix: prefix, vendor: vendor})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).prefix)
	}
}

// Stats returns a snapshot of size and hit counters.
func (c *OUICache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Size: c.order.Len(), Hits: c.hits, Misses: c.misses}
}

// Clear drops every entry and resets the counters.
func (c *OUICache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order = list.New()
	c.hits, c.misses = 0, 0
}
