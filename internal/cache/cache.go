package cache

import (
	"sync"
	"time"
)

// Clock returns the current time. Injectable for deterministic tests.
type Clock func() time.Time

// entry stores one cached value with expiry. failed entries carry no
// value and act as negative markers.
type entry struct {
	value     any
	failed    bool
	expiresAt time.Time
}

// Cache is a process-wide TTL store with a positive and a negative
// family. A key belongs to exactly one family at a time: writing a
// positive value clears a negative marker and vice versa. Concurrent
// duplicate writes race last-writer-wins, which is acceptable because
// all cached values are idempotent reads.
type Cache struct {
	clock Clock

	mu    sync.RWMutex
	items map[string]entry
}

// New creates a Cache. A nil clock defaults to time.Now.
func New(clock Clock) *Cache {
	if clock == nil {
		clock = time.Now
	}
	return &Cache{
		clock: clock,
		items: make(map[string]entry),
	}
}

// Get returns the positive value for key if present and unexpired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || e.failed || !c.clock().Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Put stores a positive value, replacing any negative marker for key.
func (c *Cache) Put(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.items[key] = entry{value: value, expiresAt: c.clock().Add(ttl)}
	c.mu.Unlock()
}

// MarkFailed records a resolution failure, replacing any positive value
// for key.
func (c *Cache) MarkFailed(key string, ttl time.Duration) {
	c.mu.Lock()
	c.items[key] = entry{failed: true, expiresAt: c.clock().Add(ttl)}
	c.mu.Unlock()
}

// Failed reports whether key carries an unexpired negative marker.
func (c *Cache) Failed(key string) bool {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	return ok && e.failed && c.clock().Before(e.expiresAt)
}

// Delete removes key from either family.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Purge drops every expired entry and returns how many were removed.
func (c *Cache) Purge() int {
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries in both families, expired included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
