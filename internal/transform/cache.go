package transform

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

type cacheEntry struct {
	result    *Result
	createdAt time.Time
	expiresAt time.Time // ttl captured at insertion
}

// resultCache is a bounded LRU of successful results with per-entry expiry.
// Its size never exceeds capacity and expired entries are never returned.
type resultCache struct {
	mu  sync.Mutex
	lru *simplelru.LRU[string, cacheEntry]
	now func() time.Time
}

func newResultCache(capacity int, now func() time.Time) *resultCache {
	if capacity <= 0 {
		capacity = 1
	}
	lru, err := simplelru.NewLRU[string, cacheEntry](capacity, nil)
	if err != nil {
		panic("transform: failed to create result cache: " + err.Error())
	}
	return &resultCache{lru: lru, now: now}
}

// get returns the result for key and marks it most recently used. An expired
// entry is removed and reported as a miss.
func (c *resultCache) get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false
	}
	return e.result, true
}

// add stores result and returns whether an entry was evicted to make room.
func (c *resultCache) add(key string, result *Result, ttl time.Duration) bool {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Add(key, cacheEntry{result: result, createdAt: now, expiresAt: now.Add(ttl)})
}

func (c *resultCache) resize(capacity int) int {
	if capacity <= 0 {
		capacity = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Resize(capacity)
}

// purgeExpired drops every expired entry and returns how many were removed.
func (c *resultCache) purgeExpired() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if ok && !now.Before(e.expiresAt) {
			c.lru.Remove(key)
			removed++
		}
	}
	return removed
}

func (c *resultCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// keys returns the cached keys from least to most recently used.
func (c *resultCache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}
