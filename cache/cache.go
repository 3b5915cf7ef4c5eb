// Package cache provides the in-memory TTL cache that sits between page
// assembly and the CMS content API.
//
// Entries are keyed by operation name plus a normalized parameter set, so
// "posts in category 4, page 1" issued from several sections of the same page
// resolves to one entry. The store is bounded by entry count and evicts in
// insertion order (size-bounded FIFO, not LRU): reading an entry never
// changes which entry is evicted next.
package cache

import (
	"container/list"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL           = 30 * time.Minute
	DefaultMaxSize       = 1000
	DefaultSweepInterval = 5 * time.Minute
)

type entry struct {
	key      string
	value    any
	storedAt time.Time
	ttl      time.Duration
}

// validAt reports whether the entry is still fresh at now.
func (e *entry) validAt(now time.Time) bool {
	return now.Sub(e.storedAt) < e.ttl
}

// Stats is a diagnostic snapshot of the cache.
type Stats struct {
	TotalEntries   int     `json:"totalEntries"`
	ValidEntries   int     `json:"validEntries"`
	ExpiredEntries int     `json:"expiredEntries"`
	HitRate        float64 `json:"hitRate"`
	Hits           uint64  `json:"hits"`
	Misses         uint64  `json:"misses"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithDefaultTTL sets the TTL used by Set when no TTL is given.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithMaxSize bounds the number of stored entries.
func WithMaxSize(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithSweepInterval sets how often Start purges expired entries.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// WithClock replaces time.Now. Used by tests to step over TTL boundaries.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Cache is a process-scoped TTL cache. Create one at startup and pass it to
// everything that needs it; tests build their own isolated instances.
// All methods are safe for concurrent use.
type Cache struct {
	defaultTTL    time.Duration
	maxSize       int
	sweepInterval time.Duration
	now           func() time.Time

	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List // insertion order, front = oldest
	hits    uint64
	misses  uint64
	flights singleflight.Group

	cancel context.CancelFunc
	done   chan struct{}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		defaultTTL:    DefaultTTL,
		maxSize:       DefaultMaxSize,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		items:         make(map[string]*list.Element),
		order:         list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored for (op, params) if present and unexpired.
// Expired entries are removed on the way out. Params that cannot be keyed
// are reported as a miss.
func (c *Cache) Get(op string, params any) (any, bool) {
	key, err := Key(op, params)
	if err != nil {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}
	return c.getKey(key)
}

func (c *Cache) getKey(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := elem.Value.(*entry)
	if !e.validAt(c.now()) {
		c.removeElement(elem)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.value, true
}

// peek returns a valid value for key without touching hit/miss counters
// or evicting.
func (c *Cache) peek(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := elem.Value.(*entry)
	if !e.validAt(c.now()) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under (op, params). A ttl <= 0 uses the default TTL.
// Setting an existing key replaces it and counts as a fresh insertion.
// Params that cannot be keyed are ignored.
func (c *Cache) Set(op string, params any, value any, ttl time.Duration) {
	key, err := Key(op, params)
	if err != nil {
		return
	}
	c.setKey(key, value, ttl)
}

func (c *Cache) setKey(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	for c.order.Len() >= c.maxSize {
		c.removeElement(c.order.Front())
	}
	c.items[key] = c.order.PushBack(&entry{
		key:      key,
		value:    value,
		storedAt: c.now(),
		ttl:      ttl,
	})
}

// Clear removes every parameterization of op. An empty op removes
// everything. Returns the number of entries removed.
func (c *Cache) Clear(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if op == "" {
		n := c.order.Len()
		c.items = make(map[string]*list.Element)
		c.order.Init()
		return n
	}

	prefix := op + keySeparator
	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if strings.HasPrefix(elem.Value.(*entry).key, prefix) {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Cleanup removes all currently expired entries and returns how many were
// removed.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if !elem.Value.(*entry).validAt(now) {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Stats returns a snapshot of entry counts. HitRate is the share of stored
// entries that are still valid, 0 for an empty cache.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	s := Stats{
		TotalEntries: c.order.Len(),
		Hits:         c.hits,
		Misses:       c.misses,
	}
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		if elem.Value.(*entry).validAt(now) {
			s.ValidEntries++
		} else {
			s.ExpiredEntries++
		}
	}
	if s.TotalEntries > 0 {
		s.HitRate = float64(s.ValidEntries) / float64(s.TotalEntries)
	}
	return s
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// removeElement must be called with mu held.
func (c *Cache) removeElement(elem *list.Element) {
	e := c.order.Remove(elem).(*entry)
	delete(c.items, e.key)
}

// Start begins the background sweep loop that purges expired entries every
// sweep interval. Safe to call once.
func (c *Cache) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Cleanup(); n > 0 {
					slog.Info("expired cache entries purged", "count", n)
				}
			}
		}
	}()
}

// Stop signals the sweep loop to stop and waits for it.
func (c *Cache) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}
