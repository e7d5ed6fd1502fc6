package state

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hupe1980/plugmesh/core"
)

// DefaultCacheSize bounds the number of cached snapshots.
const DefaultCacheSize = 1024

// Cache stores composed snapshots keyed by message id. Least recently used
// entries are evicted once the size bound is reached.
type Cache struct {
	entries *lru.Cache[string, *core.State]
}

// NewCache creates a cache holding at most size snapshots.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}

	entries, err := lru.New[string, *core.State](size)
	if err != nil {
		return nil, err
	}

	return &Cache{entries: entries}, nil
}

// Get returns the snapshot stored for messageID.
func (c *Cache) Get(messageID string) (*core.State, bool) {
	return c.entries.Get(messageID)
}

// Put replaces the snapshot stored for messageID.
func (c *Cache) Put(messageID string, s *core.State) {
	c.entries.Add(messageID, s)
}

// Delete drops the snapshot stored for messageID.
func (c *Cache) Delete(messageID string) {
	c.entries.Remove(messageID)
}

// Len returns the number of cached snapshots.
func (c *Cache) Len() int {
	return c.entries.Len()
}
