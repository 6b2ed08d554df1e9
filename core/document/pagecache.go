package document

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto"
)

const (
	// DefaultPageCacheCost is the default budget, in bytes of page text.
	DefaultPageCacheCost = 16 << 20

	pageCacheCounters    = 1e5
	pageCacheBufferItems = 64
)

// PageCache holds the normalized text of document pages, shared by all
// documents. Cost is the length of the page text.
type PageCache struct {
	cache  *ristretto.Cache
	mu     sync.RWMutex
	closed bool
}

// PageCacheStats is a snapshot of the page cache counters.
type PageCacheStats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	KeysAdded   uint64  `json:"keys_added"`
	KeysEvicted uint64  `json:"keys_evicted"`
	CostAdded   uint64  `json:"cost_added"`
	CostEvicted uint64  `json:"cost_evicted"`
	HitRatio    float64 `json:"hit_ratio"`
	MaxCost     int64   `json:"max_cost"`
}

// NewPageCache creates a PageCache with a budget of maxCost bytes.
func NewPageCache(maxCost int64) (*PageCache, error) {
	if maxCost <= 0 {
		maxCost = DefaultPageCacheCost
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        pageCacheCounters,
		MaxCost:            maxCost,
		BufferItems:        pageCacheBufferItems,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create page cache: %w", err)
	}

	return &PageCache{cache: cache}, nil
}

func pageKey(path string, version uint64, page int) string {
	return fmt.Sprintf("%s\x00%d\x00%d", path, version, page)
}

// Get returns the cached text of page.
func (pc *PageCache) Get(path string, version uint64, page int) (string, bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	if pc.closed {
		return "", false
	}

	value, ok := pc.cache.Get(pageKey(path, version, page))
	if !ok {
		return "", false
	}
	text, ok := value.(string)
	return text, ok
}

// Set stores the text of page. The store is applied asynchronously and may
// be rejected by the admission policy.
func (pc *PageCache) Set(path string, version uint64, page int, text string) bool {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	if pc.closed {
		return false
	}

	cost := int64(len(text))
	if cost == 0 {
		cost = 1
	}
	return pc.cache.Set(pageKey(path, version, page), text, cost)
}

// Delete drops pages 1..count of one document version.
func (pc *PageCache) Delete(path string, version uint64, count int) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	if pc.closed {
		return
	}

	for page := 1; page <= count; page++ {
		pc.cache.Del(pageKey(path, version, page))
	}
}

// Wait blocks until pending sets have been applied.
func (pc *PageCache) Wait() {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	if !pc.closed {
		pc.cache.Wait()
	}
}

// Stats returns the cache counters.
func (pc *PageCache) Stats() PageCacheStats {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	if pc.closed {
		return PageCacheStats{}
	}

	m := pc.cache.Metrics
	return PageCacheStats{
		Hits:        m.Hits(),
		Misses:      m.Misses(),
		KeysAdded:   m.KeysAdded(),
		KeysEvicted: m.KeysEvicted(),
		CostAdded:   m.CostAdded(),
		CostEvicted: m.CostEvicted(),
		HitRatio:    m.Ratio(),
		MaxCost:     pc.cache.MaxCost(),
	}
}

// Close releases the cache.
func (pc *PageCache) Close() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.closed {
		return
	}
	pc.closed = true
	pc.cache.Close()
}
