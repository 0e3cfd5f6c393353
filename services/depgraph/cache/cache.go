// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides a generic in-memory expiring cache.
//
// Entries carry a TTL fixed at the cache level and expire lazily on
// read; Cleanup removes expired entries eagerly. GetOrFetch collapses
// concurrent fetches of the same key via singleflight so an analysis
// fan-out never downloads the same blob twice.
//
// State is per-process only. Nothing is persisted across restarts.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Expiring is a TTL cache from string keys to values of type V.
//
// Thread Safety:
//
//	Expiring is safe for concurrent use. The entry map is guarded by an
//	RWMutex; counters are atomics.
type Expiring[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
	flight  singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64

	// now is swappable for tests.
	now func() time.Time
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// NewExpiring creates a cache whose entries live for ttl after Set.
// A non-positive ttl disables expiry.
func NewExpiring[V any](ttl time.Duration) *Expiring[V] {
	return &Expiring[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value for key if present and not expired.
// Expired entries are removed on read.
func (c *Expiring[V]) Get(key string) (V, bool) {
	if v, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return v, true
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// lookup is Get without counter updates, for internal re-checks that
// must not skew the hit/miss accounting.
func (c *Expiring[V]) lookup(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && !c.expired(e) {
		return e.value, true
	}

	if ok {
		// Lazy expiry. Re-check under the write lock in case of a
		// concurrent Set.
		c.mu.Lock()
		if cur, still := c.entries[key]; still && c.expired(cur) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}

	var zero V
	return zero, false
}

// Set stores value under key, resetting its TTL.
func (c *Expiring[V]) Set(key string, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

// GetOrFetch returns the cached value for key, or runs fetch to obtain
// and store it. Concurrent calls for the same key share one fetch.
func (c *Expiring[V]) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		// Another flight member may have populated the entry between
		// our miss and this call. Counter-free lookup so one GetOrFetch
		// never counts more than one miss.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		fetched, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, fetched)
		return fetched, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Delete removes key if present.
func (c *Expiring[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Cleanup removes all expired entries and returns how many were removed.
func (c *Expiring[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *Expiring[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats reports cumulative hit and miss counts.
func (c *Expiring[V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Expiring[V]) expired(e entry[V]) bool {
	if c.ttl <= 0 {
		return false
	}
	return c.now().Sub(e.storedAt) > c.ttl
}
