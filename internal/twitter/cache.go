package twitter

import (
	"container/list"
	"sync"
)

// DefaultRequestCacheSize bounds the number of cached API responses
const DefaultRequestCacheSize = 16

type cacheEntry struct {
	key     string
	body    []byte
	element *list.Element
}

// RequestCache keeps successful response bodies keyed by full request URL.
// When full, the oldest inserted entry is evicted before a new one is stored.
type RequestCache struct {
	lock    sync.Mutex
	entries map[string]*cacheEntry
	order   *list.List // oldest at Front, newest at Back
	maxSize int
}

// NewRequestCache creates a cache holding at most maxSize responses
func NewRequestCache(maxSize int) *RequestCache {
	if maxSize <= 0 {
		maxSize = DefaultRequestCacheSize
	}
	return &RequestCache{
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Set stores body under key
func (rc *RequestCache) Set(key string, body []byte) {
	rc.lock.Lock()
	defer rc.lock.Unlock()

	if entry, exists := rc.entries[key]; exists {
		entry.body = body
		return
	}

	for len(rc.entries) >= rc.maxSize {
		oldest := rc.order.Front()
		if oldest == nil {
			break
		}
		delete(rc.entries, oldest.Value.(*cacheEntry).key)
		rc.order.Remove(oldest)
	}

	entry := &cacheEntry{key: key, body: body}
	entry.element = rc.order.PushBack(entry)
	rc.entries[key] = entry
}

// Get returns the body stored under key
func (rc *RequestCache) Get(key string) ([]byte, bool) {
	rc.lock.Lock()
	defer rc.lock.Unlock()

	entry, exists := rc.entries[key]
	if !exists {
		return nil, false
	}
	return entry.body, true
}

// Len returns the number of cached responses
func (rc *RequestCache) Len() int {
	rc.lock.Lock()
	defer rc.lock.Unlock()
	return len(rc.entries)
}

// Clear drops every cached response
func (rc *RequestCache) Clear() {
	rc.lock.Lock()
	defer rc.lock.Unlock()
	rc.entries = make(map[string]*cacheEntry)
	rc.order.Init()
}
