// Package snippet resolves the matched and surrounding text of search matches
// in the background. A cost-bounded LRU Cache holds resolved snippets, a Pool
// bounds the number of concurrently running extraction jobs, and a Fetcher ties
// both together behind a lookup that never blocks its caller.
package snippet

import (
	"math"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/adalundhe/docsearch/core/search/results"
)

// DefaultCacheCost is the default total cost budget of a Cache.
const DefaultCacheCost = 1 << 16

// Key identifies the snippet of one match of one view.
type Key struct {
	View  results.ViewID
	Match results.Match
}

// Entry is a resolved snippet.
type Entry struct {
	MatchedText     string `json:"matched_text"`
	SurroundingText string `json:"surrounding_text"`
}

// Cost is the combined length of both texts.
func (e Entry) Cost() int64 {
	return int64(len(e.MatchedText) + len(e.SurroundingText))
}

// IsEmpty reports whether the entry carries no text at all.
func (e Entry) IsEmpty() bool {
	return e.MatchedText == "" && e.SurroundingText == ""
}

type cacheItem struct {
	entry Entry
	cost  int64
}

// Cache is a least-recently-used cache bounded by the total cost of its
// entries rather than their number. It is not safe for concurrent use; the
// Fetcher serializes access to it.
type Cache struct {
	lru      *simplelru.LRU[Key, cacheItem]
	capacity int64
	cost     int64
	stats    *CacheStats
}

// NewCache creates a Cache holding at most capacity cost units. A
// non-positive capacity selects DefaultCacheCost.
func NewCache(capacity int64) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCost
	}

	c := &Cache{
		capacity: capacity,
		stats:    NewCacheStats(),
	}

	// Entry count is unbounded; eviction is driven by cost in Add.
	lru, _ := simplelru.NewLRU[Key, cacheItem](math.MaxInt, c.onEvict)
	c.lru = lru

	return c
}

func (c *Cache) onEvict(_ Key, item cacheItem) {
	c.cost -= item.cost
}

// Get returns the entry stored for key and marks it most recently used.
func (c *Cache) Get(key Key) (Entry, bool) {
	item, ok := c.lru.Get(key)
	if !ok {
		c.stats.RecordMiss()
		return Entry{}, false
	}
	c.stats.RecordHit()
	return item.entry, true
}

// Contains reports whether key is cached without touching recency.
func (c *Cache) Contains(key Key) bool {
	return c.lru.Contains(key)
}

// Add stores entry under key, replacing any previous entry, and evicts least
// recently used entries until the total cost fits the capacity again. An
// entry that alone exceeds the capacity is not stored and Add returns false.
func (c *Cache) Add(key Key, entry Entry) bool {
	cost := entry.Cost()
	if cost > c.capacity {
		return false
	}

	c.lru.Remove(key)
	c.lru.Add(key, cacheItem{entry: entry, cost: cost})
	c.cost += cost
	c.stats.RecordSet()

	for c.cost > c.capacity {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
		c.stats.RecordEviction()
	}

	return true
}

// Remove drops key from the cache.
func (c *Cache) Remove(key Key) bool {
	return c.lru.Remove(key)
}

// RemoveView drops every entry of view and returns how many were removed.
func (c *Cache) RemoveView(view results.ViewID) int {
	removed := 0
	for _, key := range c.lru.Keys() {
		if key.View == view {
			c.lru.Remove(key)
			removed++
		}
	}
	return removed
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
	c.cost = 0
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Cost returns the total cost of the cached entries.
func (c *Cache) Cost() int64 {
	return c.cost
}

// Capacity returns the cost budget.
func (c *Cache) Capacity() int64 {
	return c.capacity
}

// Stats returns a snapshot of the cache statistics.
func (c *Cache) Stats() *CacheStats {
	return c.stats.Snapshot()
}
