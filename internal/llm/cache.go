// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"container/list"
	"crypto/md5"
	"encoding/hex"
	"sync"
)

// PromptKey returns the content address of a prompt.
func PromptKey(prompt string) string {
	sum := md5.Sum([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// ResponseCache maps prompt keys to raw responses. When full, the entry that
// was inserted first is evicted; reads do not refresh an entry's position.
// It is safe for concurrent use.
type ResponseCache struct {
	mu      sync.Mutex
	max     int
	entries map[string]string

	// order holds keys, oldest insertion at the front.
	order *list.List
}

// NewResponseCache returns a cache bounded to max entries (DefaultCacheSize
// when max <= 0).
func NewResponseCache(max int) *ResponseCache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &ResponseCache{max: max, entries: make(map[string]string), order: list.New()}
}

// Get returns the cached response for key.
func (c *ResponseCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put stores a response, evicting the oldest insertion when at capacity.
// Overwriting an existing key keeps its original position.
func (c *ResponseCache) Put(key, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		c.entries[key] = response
		return
	}
	for c.order.Len() >= c.max {
		oldest := c.order.Remove(c.order.Front()).(string)
		delete(c.entries, oldest)
	}
	c.entries[key] = response
	c.order.PushBack(key)
}

// Len returns the number of cached responses.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]string)
	c.order.Init()
}
