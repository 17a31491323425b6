// Package pincode resolves postal PIN codes for villages through a two-tier
// cache with the external postal lookup service as the final fallback.
package pincode

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/groundwater-etl/internal/observability"
)

// clock is swappable so cache-expiry tests can advance time deterministically.
var clock = clockwork.NewRealClock()

// SetClock swaps the cache time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Cache is one tier of the PIN cache. Implementations never surface errors:
// a failing tier degrades to a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, pin string, ttl time.Duration)
}

// TieredCache consults the local tier first, then the distributed tier,
// backfilling the local tier on a distributed hit. Writes go to both tiers.
type TieredCache struct {
	local       Cache
	distributed Cache
	localTTL    time.Duration
	metrics     *observability.Metrics
}

// NewTieredCache combines a local and a distributed tier. distributed may be
// nil, leaving a purely process-local cache.
func NewTieredCache(local, distributed Cache, localTTL time.Duration, metrics *observability.Metrics) *TieredCache {
	return &TieredCache{local: local, distributed: distributed, localTTL: localTTL, metrics: metrics}
}

func (t *TieredCache) Get(ctx context.Context, key string) (string, bool) {
	if pin, ok := t.local.Get(ctx, key); ok {
		t.metrics.PinCacheLookups.WithLabelValues("local", "hit").Inc()
		return pin, true
	}
	t.metrics.PinCacheLookups.WithLabelValues("local", "miss").Inc()
	if t.distributed == nil {
		return "", false
	}
	pin, ok := t.distributed.Get(ctx, key)
	if !ok {
		return "", false
	}
	t.local.Set(ctx, key, pin, t.localTTL)
	return pin, true
}

func (t *TieredCache) Set(ctx context.Context, key, pin string, ttl time.Duration) {
	t.local.Set(ctx, key, pin, ttl)
	if t.distributed != nil {
		t.distributed.Set(ctx, key, pin, ttl)
	}
}

// LocalCache is a thread-safe in-process cache with per-entry expiry and an
// LRU bound on entry count.
type LocalCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key       string
	pin       string
	expiresAt time.Time
	prev      *entry
	next      *entry
}

// NewLocalCache creates a LocalCache holding at most maxEntries entries.
func NewLocalCache(maxEntries int) *LocalCache {
	return &LocalCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *LocalCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if clock.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.remove(e)
		return "", false
	}
	c.moveToFront(e)
	return e.pin, true
}

func (c *LocalCache) Set(_ context.Context, key, pin string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := clock.Now().Add(ttl)
	if e, ok := c.entries[key]; ok {
		e.pin = pin
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, pin: pin, expiresAt: expiresAt}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *LocalCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *LocalCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *LocalCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *LocalCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
