package cache

import (
	"sort"
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTL is a bounded key-value store whose entries expire after a fixed age.
// It is a call-volume reducer only and never the source of truth.
type TTL[V any] struct {
	mu       sync.Mutex
	entries  map[string]entry[V]
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// New creates a cache holding at most capacity entries for ttl each
func New[V any](capacity int, ttl time.Duration) *TTL[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &TTL[V]{
		entries:  make(map[string]entry[V], capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (c *TTL[V]) WithClock(now func() time.Time) *TTL[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// Get returns the value when it is younger than the TTL. A stale entry is evicted.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Set stores value with a fresh timestamp. When the cache is full the
// oldest tenth of the entries (at least one) is dropped first.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
}

func (c *TTL[V]) evictOldest() {
	n := c.capacity / 10
	if n < 1 {
		n = 1
	}

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].storedAt.Before(c.entries[keys[j]].storedAt)
	})

	for _, k := range keys[:min(n, len(keys))] {
		delete(c.entries, k)
	}
}

// Clear drops every entry
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V], c.capacity)
}

// Len reports the number of stored entries, stale ones included
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Key joins a symbol and a kind into a composite cache key
func Key(symbol, kind string) string {
	return symbol + "_" + kind
}

// NewPriceCache holds last prices for 2 seconds
func NewPriceCache() *TTL[float64] {
	return New[float64](500, 2*time.Second)
}

// NewOHLCVCache holds candle windows for 5 minutes
func NewOHLCVCache[V any]() *TTL[V] {
	return New[V](100, 300*time.Second)
}

// NewIndicatorCache holds indicator results for 1 minute
func NewIndicatorCache[V any]() *TTL[V] {
	return New[V](200, 60*time.Second)
}
