// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package priority

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImportance_HigherDegreeCloserRecentScoresHigher(t *testing.T) {
	w := DefaultWeights()
	now := int64(10_000)

	far := Record{Degree: 5, DistanceFromView: 90, LastSeenMillis: 0}
	near := Record{Degree: 80, DistanceFromView: 1, LastSeenMillis: now}

	require.Greater(t, Importance(near, now, w), Importance(far, now, w))
}

func TestImportance_ViewportBonusDominates(t *testing.T) {
	w := DefaultWeights()
	now := int64(0)

	inView := Record{Degree: 0, DistanceFromView: 1000, LastSeenMillis: -1_000_000, InViewport: true}
	bestCase := Record{Degree: 100, DistanceFromView: 0, LastSeenMillis: now, InViewport: false}

	require.Greater(t, Importance(inView, now, w), Importance(bestCase, now, w))
}

func TestHeap_MinElementHasMinImportance(t *testing.T) {
	h := New(0, DefaultWeights())
	now := int64(0)
	for i := 0; i < 20; i++ {
		h.AddOrUpdate(Record{
			NodeId:           fmt.Sprintf("n%d", i),
			Degree:           i * 5,
			DistanceFromView: float64(i),
			LastSeenMillis:   now,
		}, now)
	}

	popped := h.PopLowestN(1)
	require.Len(t, popped, 1)

	remaining := h.ByLOD(0)
	for _, r := range remaining {
		require.LessOrEqual(t, popped[0].Importance(), r.Importance())
	}
}

func TestHeap_SlotMapIsBijectionWithHeapArray(t *testing.T) {
	h := New(0, DefaultWeights())
	now := int64(0)
	for i := 0; i < 30; i++ {
		h.AddOrUpdate(Record{NodeId: fmt.Sprintf("n%d", i), LastSeenMillis: now}, now)
	}
	h.Remove("n5")
	h.Touch("n10", now+1, true)

	require.NoError(t, h.CheckIntegrity())
	require.Equal(t, 29, h.Stats().Size)
}

func TestHeap_CapTriggersEvictionOfLowestImportance(t *testing.T) {
	h := New(3, DefaultWeights())
	now := int64(0)

	h.AddOrUpdate(Record{NodeId: "low", Degree: 0, DistanceFromView: 1000, LastSeenMillis: -1_000_000}, now)
	h.AddOrUpdate(Record{NodeId: "mid", Degree: 50, DistanceFromView: 10, LastSeenMillis: now}, now)
	h.AddOrUpdate(Record{NodeId: "high", Degree: 100, DistanceFromView: 0, LastSeenMillis: now}, now)

	evicted := h.AddOrUpdate(Record{NodeId: "highest", Degree: 100, DistanceFromView: 0, LastSeenMillis: now, InViewport: true}, now)
	require.Equal(t, []string{"low"}, evicted, "lowest-importance node is evicted on overflow")
	require.Equal(t, 3, h.Stats().Size)
}

func TestHeap_TouchUpdatesRecencyAndRefixes(t *testing.T) {
	h := New(0, DefaultWeights())
	now := int64(0)
	h.AddOrUpdate(Record{NodeId: "a", LastSeenMillis: -10_000_000}, now)

	ok := h.Touch("a", now, true)
	require.True(t, ok)

	stats := h.Stats()
	require.Equal(t, 1, stats.Size)
	require.Greater(t, stats.MinImportance, 0.0)
}

func TestHeap_ByLODFiltersLevel(t *testing.T) {
	h := New(0, DefaultWeights())
	now := int64(0)
	h.AddOrUpdate(Record{NodeId: "p1", LODLevel: 0, LastSeenMillis: now}, now)
	h.AddOrUpdate(Record{NodeId: "t1", LODLevel: 1, LastSeenMillis: now}, now)

	papers := h.ByLOD(0)
	require.Len(t, papers, 1)
	require.Equal(t, "p1", papers[0].NodeId)
}

func TestHeap_RebuildRestoresIntegrityAfterCorruption(t *testing.T) {
	h := New(0, DefaultWeights())
	now := int64(0)
	h.AddOrUpdate(Record{NodeId: "a", LastSeenMillis: now}, now)

	h.Rebuild([]Record{{NodeId: "a", LastSeenMillis: now}, {NodeId: "b", LastSeenMillis: now}}, now)
	require.NoError(t, h.CheckIntegrity())
	require.Equal(t, 2, h.Stats().Size)
}

func TestHeap_ConcurrentAddUpdateRemove(t *testing.T) {
	h := New(50, DefaultWeights())
	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("n%d", i%60)
			h.AddOrUpdate(Record{NodeId: id, Degree: i % 100, LastSeenMillis: int64(i)}, int64(i))
			if i%7 == 0 {
				h.Touch(id, int64(i), i%2 == 0)
			}
			if i%11 == 0 {
				h.Remove(id)
			}
		}(i)
	}
	wg.Wait()

	require.NoError(t, h.CheckIntegrity())
	require.LessOrEqual(t, h.Stats().Size, 50)
}
