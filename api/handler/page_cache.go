package handler

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// PageCache holds assembled page responses (encoded JSON) for a short TTL.
// Assembling a page fans out to many accessors and runs the section
// allocation again; clients and edge caches tend to request the same page in
// bursts, so a few seconds of reuse removes most of that work. A nil or
// disabled PageCache never hits.
type PageCache struct {
	cache *ttlcache.Cache[string, []byte]
}

// NewPageCache starts a page cache with the given TTL. ttl <= 0 returns a
// disabled cache.
func NewPageCache(ttl time.Duration) *PageCache {
	if ttl <= 0 {
		return &PageCache{}
	}
	cache := ttlcache.New[string, []byte](
		ttlcache.WithTTL[string, []byte](ttl),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go cache.Start() // starts the automatic expired-item eviction loop
	return &PageCache{cache: cache}
}

func (p *PageCache) get(key string) ([]byte, bool) {
	if p == nil || p.cache == nil {
		return nil, false
	}
	item := p.cache.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (p *PageCache) set(key string, body []byte) {
	if p == nil || p.cache == nil {
		return
	}
	p.cache.Set(key, body, ttlcache.DefaultTTL)
}

// Purge drops every cached page.
func (p *PageCache) Purge() {
	if p == nil || p.cache == nil {
		return
	}
	p.cache.DeleteAll()
}

// Len returns the number of cached pages.
func (p *PageCache) Len() int {
	if p == nil || p.cache == nil {
		return 0
	}
	return p.cache.Len()
}

// Stop ends the eviction loop.
func (p *PageCache) Stop() {
	if p == nil || p.cache == nil {
		return
	}
	p.cache.Stop()
}
