// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"context"
	"sync"
	"time"

	"github.com/citescape-io/citescape/services/graphstream/backend"
	"github.com/citescape-io/citescape/services/graphstream/coordinator"
	"github.com/citescape-io/citescape/services/graphstream/edgestore"
	"github.com/citescape-io/citescape/services/graphstream/nodestore"
)

// StyleFunc derives a node's un-highlighted base style, e.g. from its
// cluster id. A nil StyleFunc falls back to a zero-value Style for
// every node.
type StyleFunc func(nodestore.Node) Style

// Manager is the Search & Highlight feature. It satisfies
// coordinator.Highlighter.
//
// Thread safety: all methods are safe for concurrent use.
type Manager struct {
	cfg    Config
	client *backend.Client
	nodes  *nodestore.Store
	edges  *edgestore.Store
	style  StyleFunc

	mu               sync.Mutex
	overrides        map[string]override
	highlightedPairs [][2]string
}

// New creates a Manager. style may be nil.
func New(cfg Config, client *backend.Client, nodes *nodestore.Store, edges *edgestore.Store, style StyleFunc) *Manager {
	if cfg.TopK <= 0 {
		cfg = DefaultConfig()
	}
	return &Manager{
		cfg: cfg, client: client, nodes: nodes, edges: edges, style: style,
		overrides: make(map[string]override),
	}
}

// StyleFor returns id's current applied style, if search has it
// overridden.
func (m *Manager) StyleFor(id string) (Style, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ov, ok := m.overrides[id]
	return ov.applied, ok
}

// Highlight resolves query against the backend, loads the top results
// (and each focus result's immediate neighbors) into the graph, and
// applies focus/neighbor styling. Any previous highlight is cleared
// first.
func (m *Manager) Highlight(ctx context.Context, query string) (coordinator.HighlightResult, error) {
	results, err := m.client.Search(ctx, backend.SearchParams{Query: query, Limit: m.cfg.TopK})
	if err != nil {
		return coordinator.HighlightResult{}, err
	}
	if len(results) == 0 {
		return coordinator.HighlightResult{}, ErrNoResults
	}

	m.Clear()

	var matched []string
	var focusIds []string
	var centerX, centerY float64
	for i, r := range results {
		n, err := m.ensureNode(ctx, r.Id)
		if err != nil {
			continue
		}
		isFocus := len(focusIds) < m.cfg.FocusCap
		m.applyOverride(n.Id, isFocus)
		matched = append(matched, n.Id)
		if len(matched) == 1 {
			centerX, centerY = n.X, n.Y
		}
		if isFocus {
			focusIds = append(focusIds, n.Id)
			m.loadNeighbors(ctx, n.Id)
		}
	}
	if len(matched) == 0 {
		return coordinator.HighlightResult{}, ErrNoResults
	}

	m.highlightFocusEdges(focusIds, matched)

	return coordinator.HighlightResult{
		FocusId: matched[0], MatchedIds: matched,
		CenterX: centerX, CenterY: centerY,
	}, nil
}

// Clear restores every overridden node to its captured pre-highlight
// style and un-highlights any edges Highlight recolored.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pair := range m.highlightedPairs {
		m.edges.SetHighlight(pair[0], pair[1], false)
	}
	m.highlightedPairs = nil
	m.overrides = make(map[string]override)
}

func (m *Manager) ensureNode(ctx context.Context, id string) (nodestore.Node, error) {
	if n, ok := m.nodes.Get(id); ok {
		return n, nil
	}
	wire, err := m.client.SearchNode(ctx, id)
	if err != nil {
		return nodestore.Node{}, err
	}
	n := nodestore.Node{
		Id: wire.Id, X: wire.X, Y: wire.Y, Degree: wire.Degree,
		ClusterId: wire.ClusterId, Label: wire.Label, TreeLevel: -1,
		LastSeen: time.Now().UnixMilli(),
	}
	m.nodes.Add([]nodestore.Node{n})
	return n, nil
}

func (m *Manager) loadNeighbors(ctx context.Context, id string) {
	wireEdges, err := m.client.EdgesForNode(ctx, id)
	if err != nil {
		return
	}
	var toAdd []edgestore.Edge
	for _, e := range wireEdges {
		neighbor := e.To
		if neighbor == id {
			neighbor = e.From
		}
		if _, err := m.ensureNode(ctx, neighbor); err != nil {
			continue
		}
		kind := edgestore.KindExtra
		if e.Tree {
			kind = edgestore.KindTree
		}
		toAdd = append(toAdd, edgestore.Edge{From: e.From, To: e.To, Kind: kind})
	}
	if len(toAdd) > 0 {
		m.edges.Add(toAdd)
	}
}

func (m *Manager) applyOverride(id string, isFocus bool) {
	n, ok := m.nodes.Get(id)
	if !ok {
		return
	}
	base := Style{}
	if m.style != nil {
		base = m.style(n)
	}
	applied := Style{Color: m.cfg.NeighborColor, Size: m.cfg.NeighborSize}
	if isFocus {
		applied = Style{Color: m.cfg.FocusColor, Size: m.cfg.FocusSize}
	}

	m.mu.Lock()
	m.overrides[id] = override{original: base, applied: applied}
	m.mu.Unlock()
}

// highlightFocusEdges recolors and thickens every loaded edge between a
// focus node and any result node, via Highlight rather than a style
// override (edges don't carry per-instance color/size in edgestore.Edge
// today, so "thickened" is represented purely by the Highlight flag —
// a render layer maps Highlight to its own thicker stroke).
//
// Per spec.md §4.10, a render layer that needs highlighted edges drawn
// "on top" achieves that by removing and re-adding them in a later
// draw-order position; we model that exact remove-then-reinsert here
// even though edgestore's map-backed storage has no draw order of its
// own to move an edge within.
func (m *Manager) highlightFocusEdges(focusIds, matched []string) {
	matchedSet := make(map[string]struct{}, len(matched))
	for _, id := range matched {
		matchedSet[id] = struct{}{}
	}

	var toReinsert []edgestore.Edge
	for _, focus := range focusIds {
		for _, e := range m.edges.ForNodes([]string{focus}) {
			other := e.To
			if other == focus {
				other = e.From
			}
			if _, ok := matchedSet[other]; !ok {
				continue
			}
			toReinsert = append(toReinsert, e)
		}
	}

	pairs := make([][2]string, 0, len(toReinsert))
	for _, e := range toReinsert {
		pairs = append(pairs, [2]string{e.From, e.To})
		m.edges.Remove([][2]string{{e.From, e.To}})
		m.edges.Add([]edgestore.Edge{{From: e.From, To: e.To, Kind: e.Kind, Highlight: true}})
	}

	m.mu.Lock()
	m.highlightedPairs = append(m.highlightedPairs, pairs...)
	m.mu.Unlock()
}
