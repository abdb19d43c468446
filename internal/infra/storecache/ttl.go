package storecache

import (
	"sync"
	"time"
)

type ttlEntry[V any] struct {
	expiresAt time.Time
	value     V
}

// TTLCache is a map whose entries expire ttl after they were set.
type TTLCache[K comparable, V any] struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[K]ttlEntry[V]
}

func NewTTLCache[K comparable, V any](ttl time.Duration, now func() time.Time) *TTLCache[K, V] {
	if now == nil {
		now = time.Now
	}
	return &TTLCache[K, V]{
		ttl:   ttl,
		now:   now,
		items: make(map[K]ttlEntry[V]),
	}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		// Only drop the entry we saw; a concurrent Set may have refreshed it.
		if cur, ok := c.items[key]; ok && cur.expiresAt.Equal(entry.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return entry.value, true
}

func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	c.items[key] = ttlEntry[V]{expiresAt: c.now().Add(c.ttl), value: value}
	c.mu.Unlock()
}

func (c *TTLCache[K, V]) Delete(keys ...K) {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.items, k)
	}
	c.mu.Unlock()
}

func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
