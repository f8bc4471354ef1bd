// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package spatialcache is the Spatial Cache (C2): an advisory record of
which viewport tiles, at which LOD level, have already been loaded and
are still fresh. A hit lets the active loading strategy skip a fetch at
that level; a miss never blocks — the cache only ever advises.
*/
package spatialcache

import (
	"container/list"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/citescape-io/citescape/pkg/logging"
)

// Key identifies one cached tile: the quantized spatial hash of a
// viewport region at a specific LOD level. Two viewports that quantize
// to the same hash at the same level share a cache entry.
type Key struct {
	LODLevel int
	Hash     string
}

// Tile is the cached record for a Key: when it was populated and how
// many nodes it carried, per spec.md's "(spatial_hash, lod_level,
// timestamp, node_count)" loaded-region tuple.
type Tile struct {
	NodeCount int
	LoadedAt  time.Time
}

// Option configures a Cache at construction, following the teacher's
// functional-options pattern.
type Option func(*options)

type options struct {
	ttl        time.Duration
	maxRegions int
	now        func() time.Time
	log        *slog.Logger
}

// WithTTL overrides the default 10s tile freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithMaxRegions overrides the default 100-entry cap (R_max).
func WithMaxRegions(n int) Option {
	return func(o *options) { o.maxRegions = n }
}

// withClock overrides the time source; used by tests.
func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger attaches a logger that records tile evictions tagged with
// the tile's spatial hash and LOD level. Nil (the default) disables
// eviction logging entirely.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

func defaultOptions() options {
	return options{
		ttl:        10 * time.Second,
		maxRegions: 100,
		now:        time.Now,
	}
}

// Stats reports cumulative cache performance counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// HitRate returns Hits / (Hits + Misses), or 0 if there have been no
// lookups yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry struct {
	key  Key
	tile Tile
}

// Cache is a thread-safe, TTL-bounded, size-capped map from Key to Tile.
//
// Eviction policy (per spec.md §4.2): on every insertion, first purge
// expired entries, then — if still over MaxRegions — remove oldest
// entries (by LoadedAt) until the cap is satisfied.
//
// Thread safety: all methods are safe for concurrent use.
type Cache struct {
	opts options

	mu    sync.Mutex
	items map[Key]*list.Element
	order *list.List // Front = oldest, Back = newest

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates an empty Cache with the given options applied over the
// defaults (10s TTL, 100-entry cap).
func New(opts ...Option) *Cache {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache{
		opts:  o,
		items: make(map[Key]*list.Element),
		order: list.New(),
	}
}

// Lookup reports whether an unexpired tile exists for key. A miss is
// returned for both "never cached" and "cached but expired" — the
// caller always just issues a fetch either way.
func (c *Cache) Lookup(key Key) (Tile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return Tile{}, false
	}
	e := elem.Value.(*entry)
	if c.opts.now().Sub(e.tile.LoadedAt) > c.opts.ttl {
		c.removeElem(elem)
		c.misses.Add(1)
		return Tile{}, false
	}
	c.hits.Add(1)
	return e.tile, true
}

// Record inserts or refreshes the tile for key, stamped with the
// current time, then runs the eviction pass.
func (c *Cache) Record(key Key, nodeCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.now()
	if elem, ok := c.items[key]; ok {
		c.order.Remove(elem)
		delete(c.items, key)
	}
	e := &entry{key: key, tile: Tile{NodeCount: nodeCount, LoadedAt: now}}
	c.items[key] = c.order.PushBack(e)
	c.evict()
}

// Invalidate drops the entry for key, if any, so a stale hit doesn't
// mask a region whose nodes are gone. The coordinator's refresh and
// eviction paths do not call it.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeElem(elem)
	}
}

// Clear empties the cache. coordinator.Refresh does not call it.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[Key]*list.Element)
	c.order.Init()
}

// Stats returns a snapshot of cumulative counters and current size.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	size := len(c.items)
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      size,
	}
}

// evict must be called with mu held. It purges expired entries first,
// then trims oldest-first until at or under MaxRegions.
func (c *Cache) evict() {
	now := c.opts.now()
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		e := elem.Value.(*entry)
		if now.Sub(e.tile.LoadedAt) > c.opts.ttl {
			c.removeElem(elem)
		}
		elem = next
	}
	for len(c.items) > c.opts.maxRegions {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.removeElem(oldest)
	}
}

// removeElem must be called with mu held.
func (c *Cache) removeElem(elem *list.Element) {
	e := elem.Value.(*entry)
	delete(c.items, e.key)
	c.order.Remove(elem)
	c.evictions.Add(1)
	if c.opts.log != nil {
		c.opts.log.Debug("tile evicted", logging.TileAttr(e.key.Hash), logging.LODAttr(e.key.LODLevel))
	}
}
