// Package cache provides the query response cache: an exact-match store
// keyed by a normalized query fingerprint, with TTL expiry and LRU eviction.
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/alti-global/prism/internal/models"
)

// Store is the cache surface the pipeline consumes. The memory backend
// ignores ctx; the Redis backend honours it.
type Store interface {
	Get(ctx context.Context, key string) (models.QueryResponse, bool)
	Set(ctx context.Context, key string, response models.QueryResponse)
	Stats() Stats
}

// Fingerprint derives the cache key for a query: sha256 of the normalized
// text joined with domain and prompt name, truncated to 32 hex characters.
func Fingerprint(text, domain, promptName string) string {
	sum := sha256.Sum256([]byte(Normalize(text) + "|" + domain + "|" + promptName))
	return hex.EncodeToString(sum[:])[:32]
}

// Normalize trims, lowercases and collapses internal whitespace so
// trivially different phrasings share a fingerprint.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
	MaxSize   int   `json:"max_size"`
}

type cacheEntry struct {
	key       string
	response  models.QueryResponse
	expiresAt time.Time
}

// ResponseCache is an in-memory TTL + LRU cache of query responses.
type ResponseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[string]*list.Element
	order   *list.List // front = most recently used

	hits      int64
	misses    int64
	evictions int64

	now func() time.Time
}

// NewResponseCache creates a cache holding at most maxSize entries, each
// valid for ttl.
func NewResponseCache(ttl time.Duration, maxSize int) *ResponseCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &ResponseCache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Get returns the cached response for key, if present and unexpired.
// Expired entries are removed on access.
func (c *ResponseCache) Get(_ context.Context, key string) (models.QueryResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return models.QueryResponse{}, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.entries, key)
		c.misses++
		return models.QueryResponse{}, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	return entry.response, true
}

// Set stores a response under key, evicting the least recently used entry
// when the cache is full.
func (c *ResponseCache) Set(_ context.Context, key string, response models.QueryResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.response = response
		entry.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	if len(c.entries) >= c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
			c.evictions++
		}
	}

	elem := c.order.PushFront(&cacheEntry{
		key:       key,
		response:  response,
		expiresAt: c.now().Add(c.ttl),
	})
	c.entries[key] = elem
}

// Clear empties the cache, keeping counters.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Stats returns a snapshot of cache counters.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
		MaxSize:   c.maxSize,
	}
}
