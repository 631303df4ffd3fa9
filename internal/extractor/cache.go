package extractor

import (
	"sync"

	"github.com/ibeckermayer/xmedia/internal/types"
)

// MediaCache stores the items extracted for a post
type MediaCache interface {
	Get(postID string) ([]types.MediaReference, bool, error)
	Set(postID string, items []types.MediaReference, source types.SourceKind) error
}

// MemoryCache is a process-local MediaCache. Last write wins.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string][]types.MediaReference
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string][]types.MediaReference)}
}

func (c *MemoryCache) Get(postID string) ([]types.MediaReference, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items, ok := c.items[postID]
	return types.CloneItems(items), ok, nil
}

func (c *MemoryCache) Set(postID string, items []types.MediaReference, _ types.SourceKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[postID] = types.CloneItems(items)
	return nil
}

// Len returns the number of cached posts
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
