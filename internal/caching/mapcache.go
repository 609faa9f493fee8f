// Package caching holds the process-wide cache of recently-unloaded room
// maps (spec.md §9 Open Question 4), backed by Ristretto the same way the
// teacher repo's internal/caching wraps it for room state.
package caching

import (
	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"

	"github.com/ddnet/maproom/mapmodel"
)

// MapCache holds *mapmodel.Map snapshots keyed by room name, costed by
// their approximate serialized byte size so a handful of large maps don't
// crowd out many small ones. It is a pure latency optimization: a miss
// always falls back to a full parse from disk (Room.load), so this cache
// never needs explicit invalidation beyond eviction and overwrite-on-save.
type MapCache struct {
	cache *ristretto.Cache
}

// NewMapCache builds a cache with the given maximum total cost (in bytes).
// Ristretto wants NumCounters around 10x the number of items it expects to
// hold; we size it off maxCost assuming maps average a few hundred KB.
func NewMapCache(maxCostBytes int64) (*MapCache, error) {
	estimatedItems := maxCostBytes / (256 * 1024)
	if estimatedItems < 100 {
		estimatedItems = 100
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: estimatedItems * 10,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create ristretto cache")
	}
	return &MapCache{cache: cache}, nil
}

// Put stores a snapshot of m under room, costed by its approximate
// serialized size. Called when a Room's last user leaves.
func (c *MapCache) Put(room string, m *mapmodel.Map, approxBytes int64) {
	c.cache.SetWithTTL(room, m.Clone(), approxBytes, 0)
	c.cache.Wait()
}

// Get returns a fresh clone of the cached snapshot for room, if present.
// Room.load() checks here before touching the filesystem.
func (c *MapCache) Get(room string) (*mapmodel.Map, bool) {
	v, ok := c.cache.Get(room)
	if !ok {
		return nil, false
	}
	m, ok := v.(*mapmodel.Map)
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// Invalidate drops any cached snapshot for room — called after a map is
// saved under a new name or a room is deleted, so a stale snapshot can
// never resurrect deleted content.
func (c *MapCache) Invalidate(room string) {
	c.cache.Del(room)
}

// Close releases Ristretto's background goroutines.
func (c *MapCache) Close() {
	c.cache.Close()
}
