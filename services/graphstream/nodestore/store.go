// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nodestore

import (
	"math"
	"sync"
)

// DefaultCellSize is the grid spatial index's cell edge length, in
// world units (spec.md's "typical 5 world units").
const DefaultCellSize = 5.0

// EdgeRemover is the capability a Store uses to drop edges incident to
// a removed node. The Edge Store implements this; Store is otherwise
// independent of it.
type EdgeRemover interface {
	RemoveForNodes(ids []string)
}

type cellKey struct{ cx, cy int64 }

// Store is the Node Store (C5): a map of loaded nodes plus a coarse
// grid spatial index supporting near-O(k) bounds queries.
//
// Thread safety: all methods are safe for concurrent use.
type Store struct {
	cellSize float64
	edges    EdgeRemover

	mu    sync.RWMutex
	nodes map[string]Node
	grid  map[cellKey]map[string]struct{}
}

// New creates an empty Store. edges may be nil if incident-edge removal
// is handled elsewhere (e.g. in tests).
func New(edges EdgeRemover) *Store {
	return &Store{
		cellSize: DefaultCellSize,
		edges:    edges,
		nodes:    make(map[string]Node),
		grid:     make(map[cellKey]map[string]struct{}),
	}
}

func (s *Store) cellOf(x, y float64) cellKey {
	return cellKey{
		cx: int64(math.Floor(x / s.cellSize)),
		cy: int64(math.Floor(y / s.cellSize)),
	}
}

// Add inserts or refreshes a batch of nodes. Re-adding a known id is a
// no-op on its coordinates/degree/cluster (which are immutable once
// set) but refreshes LastSeen. Returns the ids that were newly inserted
// (as opposed to refreshed).
func (s *Store) Add(batch []Node) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := make([]string, 0, len(batch))
	for _, n := range batch {
		existing, ok := s.nodes[n.Id]
		if ok {
			if n.LastSeen > existing.LastSeen {
				existing.LastSeen = n.LastSeen
				s.nodes[n.Id] = existing
			}
			continue
		}
		s.nodes[n.Id] = n
		cell := s.cellOf(n.X, n.Y)
		if s.grid[cell] == nil {
			s.grid[cell] = make(map[string]struct{})
		}
		s.grid[cell][n.Id] = struct{}{}
		inserted = append(inserted, n.Id)
	}
	return inserted
}

// Remove deletes nodes by id, drops them from the spatial grid, and
// asks the configured EdgeRemover to drop their incident edges.
func (s *Store) Remove(ids []string) {
	s.mu.Lock()
	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		n, ok := s.nodes[id]
		if !ok {
			continue
		}
		delete(s.nodes, id)
		cell := s.cellOf(n.X, n.Y)
		if set, ok := s.grid[cell]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(s.grid, cell)
			}
		}
		removed = append(removed, id)
	}
	s.mu.Unlock()

	if s.edges != nil && len(removed) > 0 {
		s.edges.RemoveForNodes(removed)
	}
}

// Has reports whether id is currently loaded.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok
}

// Get returns the node for id, if loaded.
func (s *Store) Get(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	return n, ok
}

// Count returns the total number of loaded nodes.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// IdsInBounds returns the ids of every loaded node within b, using the
// grid index to visit only the cells overlapping b.
func (s *Store) IdsInBounds(b Bounds) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	minCX := int64(math.Floor(b.MinX / s.cellSize))
	maxCX := int64(math.Floor(b.MaxX / s.cellSize))
	minCY := int64(math.Floor(b.MinY / s.cellSize))
	maxCY := int64(math.Floor(b.MaxY / s.cellSize))

	var ids []string
	for cx := minCX; cx <= maxCX; cx++ {
		for cy := minCY; cy <= maxCY; cy++ {
			set, ok := s.grid[cellKey{cx, cy}]
			if !ok {
				continue
			}
			for id := range set {
				n := s.nodes[id]
				if b.Contains(n.X, n.Y) {
					ids = append(ids, id)
				}
			}
		}
	}
	return ids
}

// CountInBounds is a convenience wrapper over IdsInBounds.
func (s *Store) CountInBounds(b Bounds) int {
	return len(s.IdsInBounds(b))
}

// All returns every loaded node. Used by full-refresh and stats paths;
// callers must not mutate the result's sharing of coordinates.
func (s *Store) All() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out
}

// Clear empties the store (used by coordinator.refresh()).
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]Node)
	s.grid = make(map[cellKey]map[string]struct{})
}
