// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package treestate

import "sync"

// Manager is the Tree State Manager (C9).
//
// Thread safety: all methods are safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	fragments  map[string]*Fragment
	parentOf   map[string]string // child -> parent, across all ingested fragments
	roots      map[string]struct{}
	brokenByID map[string][]BrokenEdge // node id -> broken edges touching it
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{
		fragments:  make(map[string]*Fragment),
		parentOf:   make(map[string]string),
		roots:      make(map[string]struct{}),
		brokenByID: make(map[string][]BrokenEdge),
	}
}

// MarkRoot records id as a known DAG root (backends identify these
// explicitly; they have no parent in the backbone).
func (m *Manager) MarkRoot(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roots[id] = struct{}{}
}

// AddFragment ingests a fragment: its tree edges extend the global
// parent index and its broken edges become enrichment candidates.
func (m *Manager) AddFragment(f Fragment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fragments[f.Id] = &f
	for _, e := range f.TreeEdges {
		m.parentOf[e.Child] = e.Parent
	}
	for _, b := range f.BrokenEdges {
		m.brokenByID[b.Source] = append(m.brokenByID[b.Source], b)
		m.brokenByID[b.Target] = append(m.brokenByID[b.Target], b)
	}
}

// RemoveFragment drops a fragment. Parent-index entries contributed
// solely by that fragment are left in place (other fragments — or a
// later repair — may still rely on the same backbone edge); callers
// that need strict teardown should not share tree edges across
// fragments that can be removed independently.
func (m *Manager) RemoveFragment(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.fragments, id)
}

// IsConnected reports whether node has a tree-edge path, within
// currently known parent links, to a marked root.
func (m *Manager) IsConnected(node string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pathToRootLocked(node)
	return ok
}

// PathToRoot returns the chain [node, parent(node), ..., root], or
// ok=false if node's ancestry does not currently reach a known root.
func (m *Manager) PathToRoot(node string) ([]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathToRootLocked(node)
}

func (m *Manager) pathToRootLocked(node string) ([]string, bool) {
	path := []string{node}
	visited := map[string]struct{}{node: {}}
	cur := node
	for {
		if _, isRoot := m.roots[cur]; isRoot {
			return path, true
		}
		parent, ok := m.parentOf[cur]
		if !ok {
			return path, false
		}
		if _, cycle := visited[parent]; cycle {
			return path, false
		}
		visited[parent] = struct{}{}
		path = append(path, parent)
		cur = parent
	}
}

// FindDisconnected returns every node id, across all ingested
// fragments, that is not currently connected to a known root.
func (m *Manager) FindDisconnected() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, f := range m.fragments {
		for _, id := range f.NodeIds {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if _, ok := m.pathToRootLocked(id); !ok {
				out = append(out, id)
			}
		}
	}
	return out
}

// BrokenEdgesFor returns every broken edge touching node.
func (m *Manager) BrokenEdgesFor(node string) []BrokenEdge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]BrokenEdge, len(m.brokenByID[node]))
	copy(out, m.brokenByID[node])
	return out
}

// EnrichmentPriority selects which class of broken edge
// EnrichmentCandidates surfaces first.
type EnrichmentPriority int

const (
	// PriorityAll returns every known broken edge.
	PriorityAll EnrichmentPriority = iota
	// PriorityNearest returns only broken edges whose target falls
	// inside one of the currently tracked fragments' bounds (i.e. the
	// target has likely already loaded nearby and a repair fetch is
	// cheap).
	PriorityNearest
)

// EnrichmentCandidates returns broken edges worth repairing next,
// de-duplicated by source/target pair.
func (m *Manager) EnrichmentCandidates(priority EnrichmentPriority) []BrokenEdge {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []BrokenEdge
	for _, list := range m.brokenByID {
		for _, b := range list {
			if _, dup := seen[b.key()]; dup {
				continue
			}
			seen[b.key()] = struct{}{}
			if priority == PriorityNearest && !m.isNearbyLocked(b) {
				continue
			}
			out = append(out, b)
		}
	}
	return out
}

func (m *Manager) isNearbyLocked(b BrokenEdge) bool {
	for _, f := range m.fragments {
		if f.Bounds.Contains(b.TargetCoordX, b.TargetCoordY) {
			return true
		}
	}
	return false
}

// ResolveBrokenEdge removes a broken edge once its target has been
// loaded and the path repaired, so it no longer appears as a candidate.
func (m *Manager) ResolveBrokenEdge(source, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.brokenByID[source] = removeBroken(m.brokenByID[source], source, target)
	m.brokenByID[target] = removeBroken(m.brokenByID[target], source, target)
}

func removeBroken(list []BrokenEdge, source, target string) []BrokenEdge {
	out := list[:0]
	for _, b := range list {
		if b.Source == source && b.Target == target {
			continue
		}
		out = append(out, b)
	}
	return out
}
