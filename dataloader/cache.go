package dataloader

import (
	"container/list"
	"fmt"
	"sync"
)

// Cache is a bounded LRU cache for decoded image data, keyed by image path.
type Cache struct {
	mu          sync.Mutex
	items       map[string][]float32
	lru         *list.List
	lruMap      map[string]*list.Element
	maxSize     int
	currentSize int

	// Statistics
	hits   int64
	misses int64
}

// NewCache creates a cache holding at most maxSize decoded images.
func NewCache(maxSize int) *Cache {
	return &Cache{
		items:   make(map[string][]float32),
		lru:     list.New(),
		lruMap:  make(map[string]*list.Element),
		maxSize: maxSize,
	}
}

// Get retrieves an item from the cache
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if data, exists := c.items[key]; exists {
		if elem, ok := c.lruMap[key]; ok {
			c.lru.MoveToFront(elem)
		}
		c.hits++
		return data, true
	}

	c.misses++
	return nil, false
}

// Put adds an item to the cache, evicting the least recently used entries
// when the cache is full.
func (c *Cache) Put(key string, data []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; exists {
		if elem, ok := c.lruMap[key]; ok {
			c.lru.MoveToFront(elem)
		}
		return
	}

	elem := c.lru.PushFront(key)
	c.lruMap[key] = elem
	c.items[key] = data
	c.currentSize++

	for c.currentSize > c.maxSize && c.lru.Len() > 0 {
		oldest := c.lru.Back()
		if oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// removeElement removes an element from the cache
func (c *Cache) removeElement(elem *list.Element) {
	key := elem.Value.(string)
	c.lru.Remove(elem)
	delete(c.lruMap, key)
	delete(c.items, key)
	c.currentSize--
}

// Clear empties the cache. Statistics stay cumulative.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string][]float32)
	c.lru = list.New()
	c.lruMap = make(map[string]*list.Element)
	c.currentSize = 0
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Size:    c.currentSize,
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total) * 100
	}
	return stats
}

// CacheStats holds cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    int64
	Misses  int64
	HitRate float64
}

// String returns a string representation of cache stats
func (cs CacheStats) String() string {
	return fmt.Sprintf("Cache: %d/%d items, Hits: %d, Misses: %d, Hit Rate: %.1f%%",
		cs.Size, cs.MaxSize, cs.Hits, cs.Misses, cs.HitRate)
}
