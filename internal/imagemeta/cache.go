package imagemeta

import (
	"fmt"
	"time"

	"archive-indexer/internal/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a bounded, LRU-evicted map from (path, size, mtime) to
// previously extracted metadata. It is shared across concurrent
// extraction workers; entries are immutable once inserted so no
// cross-key locking is needed beyond what the LRU provides.
type Cache struct {
	lru *lru.Cache[string, Metadata]
}

// NewCache creates a metadata cache holding at most capacity entries.
func NewCache(capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	l, err := lru.New[string, Metadata](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata cache: %w", err)
	}
	return &Cache{lru: l}, nil
}

// CacheKey builds the lookup key for a file. The modification time is
// truncated to whole seconds so that filesystems with differing
// timestamp precision produce stable keys.
func CacheKey(path string, size int64, modTime time.Time) string {
	return fmt.Sprintf("%s|%d|%d", path, size, modTime.Unix())
}

// Get returns the cached metadata for key, refreshing its recency.
func (c *Cache) Get(key string) (Metadata, bool) {
	meta, ok := c.lru.Get(key)
	if ok {
		metrics.MetadataCacheHits.Inc()
	} else {
		metrics.MetadataCacheMisses.Inc()
	}
	return meta, ok
}

// Put stores metadata under key, evicting the least recently used
// entry if the cache is at capacity.
func (c *Cache) Put(key string, meta Metadata) {
	c.lru.Add(key, meta)
	metrics.MetadataCacheSize.Set(float64(c.lru.Len()))
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}
