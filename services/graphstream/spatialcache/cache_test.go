// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package spatialcache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_MissThenHitAfterRecord(t *testing.T) {
	c := New()
	key := Key{LODLevel: 0, Hash: "0:0:0:0"}

	_, hit := c.Lookup(key)
	require.False(t, hit)

	c.Record(key, 42)
	tile, hit := c.Lookup(key)
	require.True(t, hit)
	require.Equal(t, 42, tile.NodeCount)

	stats := c.Stats()
	require.EqualValues(t, 1, stats.Hits)
	require.EqualValues(t, 1, stats.Misses)
	require.Equal(t, 1, stats.Size)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	c := New(WithTTL(10*time.Second), withClock(clock))

	key := Key{LODLevel: 1, Hash: "a"}
	c.Record(key, 5)

	now = now.Add(5 * time.Second)
	_, hit := c.Lookup(key)
	require.True(t, hit, "within TTL should still hit")

	now = now.Add(6 * time.Second)
	_, hit = c.Lookup(key)
	require.False(t, hit, "past TTL should miss")

	require.Equal(t, 0, c.Stats().Size)
}

func TestCache_EvictsOldestWhenOverCapacity(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tick := 0
	clock := func() time.Time {
		tick++
		return now.Add(time.Duration(tick) * time.Millisecond)
	}
	c := New(WithMaxRegions(2), WithTTL(time.Hour), withClock(clock))

	c.Record(Key{LODLevel: 0, Hash: "a"}, 1)
	c.Record(Key{LODLevel: 0, Hash: "b"}, 1)
	c.Record(Key{LODLevel: 0, Hash: "c"}, 1)

	require.Equal(t, 2, c.Stats().Size)

	_, hitA := c.Lookup(Key{LODLevel: 0, Hash: "a"})
	_, hitC := c.Lookup(Key{LODLevel: 0, Hash: "c"})
	assert.False(t, hitA, "oldest entry should have been evicted")
	assert.True(t, hitC, "newest entry should still be present")
}

func TestCache_RecordRefreshesExistingKey(t *testing.T) {
	c := New()
	key := Key{LODLevel: 0, Hash: "a"}
	c.Record(key, 1)
	c.Record(key, 2)

	require.Equal(t, 1, c.Stats().Size)
	tile, hit := c.Lookup(key)
	require.True(t, hit)
	require.Equal(t, 2, tile.NodeCount)
}

func TestCache_Invalidate(t *testing.T) {
	c := New()
	key := Key{LODLevel: 0, Hash: "a"}
	c.Record(key, 1)
	c.Invalidate(key)

	_, hit := c.Lookup(key)
	require.False(t, hit)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(WithMaxRegions(50))
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key{LODLevel: i % 4, Hash: string(rune('a' + i%26))}
			c.Record(key, i)
			c.Lookup(key)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Stats().Size, 50)
}

func TestQuantizeHash_SameCellSameHash(t *testing.T) {
	b1 := Bounds{MinX: 0, MaxX: 10, MinY: 0, MaxY: 10}
	b2 := Bounds{MinX: 2, MaxX: 12, MinY: 1, MaxY: 11}
	require.Equal(t, QuantizeHash(b1, 0), QuantizeHash(b2, 0))
}

func TestQuantizeHash_DifferentLevelsDiffer(t *testing.T) {
	b := Bounds{MinX: 0, MaxX: 10, MinY: 0, MaxY: 10}
	require.NotEqual(t, QuantizeHash(b, 0), QuantizeHash(b, 3))
}

func TestCellSize_DoublesPerLevel(t *testing.T) {
	require.Equal(t, BaseCellSize, CellSize(0))
	require.Equal(t, BaseCellSize*2, CellSize(1))
	require.Equal(t, BaseCellSize*4, CellSize(2))
}
