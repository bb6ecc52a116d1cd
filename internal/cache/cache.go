// Package cache implements the gateway's read-through response cache for
// read-only methods, keyed on a canonical fingerprint of (method, params).
package cache

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrMiss is returned by Get when fingerprint is absent or its entry has expired.
var ErrMiss = errors.New("cache: miss")

// entry is a single cached value. size is tracked so the global byte ceiling
// can be enforced without re-measuring every entry on eviction.
type entry struct {
	value     []byte
	insertedAt time.Time
	expiresAt time.Time
	size      int
	elem      *list.Element // position in the least-recently-inserted list
}

// Cache is a bounded, in-process response cache with least-recently-inserted
// eviction under a global byte ceiling. Concurrent cache misses for the same
// fingerprint are coalesced via singleflight so only one backend call is made.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	order    *list.List // front = oldest insertion
	size     int
	maxBytes int
	now      func() time.Time
	group    singleflight.Group
}

// New constructs a Cache bounded by maxBytes total entry size.
func New(maxBytes int) *Cache {
	return &Cache{
		entries:  make(map[string]*entry),
		order:    list.New(),
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

// Get returns the cached value for fingerprint, or ErrMiss if absent or expired.
func (c *Cache) Get(fingerprint string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		return nil, ErrMiss
	}
	if c.now().After(e.expiresAt) {
		c.removeLocked(fingerprint, e)
		return nil, ErrMiss
	}
	return e.value, nil
}

// Put inserts value for fingerprint with the given ttl, evicting expired and
// then least-recently-inserted entries until the cache fits within maxBytes.
func (c *Cache) Put(fingerprint string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[fingerprint]; ok {
		c.removeLocked(fingerprint, old)
	}

	e := &entry{
		value:      value,
		insertedAt: c.now(),
		expiresAt:  c.now().Add(ttl),
		size:       len(value),
	}
	e.elem = c.order.PushBack(fingerprint)
	c.entries[fingerprint] = e
	c.size += e.size

	c.evictLocked()
}

func (c *Cache) evictLocked() {
	now := c.now()
	if c.size > c.maxBytes {
		for el := c.order.Front(); el != nil; {
			next := el.Next()
			key := el.Value.(string)
			if e := c.entries[key]; e != nil && now.After(e.expiresAt) {
				c.removeLocked(key, e)
			}
			el = next
		}
	}
	for front := c.order.Front(); front != nil && c.size > c.maxBytes; front = c.order.Front() {
		key := front.Value.(string)
		e := c.entries[key]
		if e == nil {
			c.order.Remove(front)
			continue
		}
		if e.expiresAt.After(now) && c.size <= c.maxBytes {
			break
		}
		c.removeLocked(key, e)
	}
}

func (c *Cache) removeLocked(key string, e *entry) {
	delete(c.entries, key)
	c.order.Remove(e.elem)
	c.size -= e.size
}

// GetOrLoad returns the cached value for fingerprint if present; otherwise it
// calls load exactly once across all concurrent callers sharing fingerprint,
// caches the result for ttl on success, and returns it to every waiter.
func (c *Cache) GetOrLoad(fingerprint string, ttl time.Duration, load func() ([]byte, error)) ([]byte, error, bool) {
	if v, err := c.Get(fingerprint); err == nil {
		return v, nil, true
	}
	v, err, shared := c.group.Do(fingerprint, func() (any, error) {
		value, loadErr := load()
		if loadErr != nil {
			return nil, loadErr
		}
		c.Put(fingerprint, value, ttl)
		return value, nil
	})
	if err != nil {
		return nil, err, shared
	}
	return v.([]byte), nil, shared
}
