// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/citescape-io/citescape/services/graphstream/backend"
	"github.com/citescape-io/citescape/services/graphstream/edgestore"
	"github.com/citescape-io/citescape/services/graphstream/nodestore"
	"github.com/citescape-io/citescape/services/graphstream/treestate"
)

// TreeFirstConfig tunes the atomic tree-in-box fetch and its repair
// pass.
type TreeFirstConfig struct {
	MaxNodes int
	// MaxRepairExpansion bounds how many times a disconnected node's
	// neighborhood is re-queried with a wider box while attempting to
	// find a path to a loaded root, before the node is dropped.
	MaxRepairExpansion int
	RepairBoxRadius    float64
}

// DefaultTreeFirstConfig returns spec-reasonable defaults.
func DefaultTreeFirstConfig() TreeFirstConfig {
	return TreeFirstConfig{MaxNodes: 400, MaxRepairExpansion: 2, RepairBoxRadius: 25}
}

// TreeFirst is the tree-first loading strategy: a single atomic
// tree-in-box fetch per tile, with disconnected-fragment repair before
// commit. No dwell-time enrichment pass runs after commit: nothing
// fetches extra edges for broken edges or emits
// tree:enrichment-completed.
type TreeFirst struct {
	cfg    TreeFirstConfig
	client *backend.Client
	tree   *treestate.Manager
}

// NewTreeFirst creates a TreeFirst strategy.
func NewTreeFirst(cfg TreeFirstConfig, client *backend.Client, tree *treestate.Manager) *TreeFirst {
	return &TreeFirst{cfg: cfg, client: client, tree: tree}
}

// Initialize is a no-op; tree state is built incrementally as
// fragments are ingested.
func (t *TreeFirst) Initialize(Bounds) error { return nil }

// Cleanup is a no-op. Ingested fragments stay in the tree state
// manager; neither this strategy nor the coordinator's eviction pass
// calls treestate.Manager.RemoveFragment.
func (t *TreeFirst) Cleanup() {}

// LoadViewport fetches the DAG-backbone fragment for bounds at level,
// repairs any disconnected nodes before returning, and records the
// fragment in the tree state manager.
func (t *TreeFirst) LoadViewport(ctx context.Context, bounds Bounds, level Level, filter Filter) (Result, error) {
	start := time.Now()

	maxNodes := t.cfg.MaxNodes
	if level.MaxNodes > 0 && level.MaxNodes < maxNodes {
		maxNodes = level.MaxNodes
	}

	resp, err := t.client.TreeInBox(ctx, backend.TreeInBoxRequest{
		MinX: bounds.MinX, MaxX: bounds.MaxX, MinY: bounds.MinY, MaxY: bounds.MaxY,
		MaxNodes: maxNodes, MinDegree: level.MinDegree, EdgeType: backend.EdgeTypeTree,
		VisibleClusters: filter.VisibleClusters,
	})
	if err != nil {
		return Result{}, err
	}

	fragId := fmt.Sprintf("f-%d-%d", level.Index, time.Now().UnixNano())
	nodeIds := make([]string, 0, len(resp.Nodes))
	nodeById := make(map[string]backend.Node, len(resp.Nodes))
	for _, n := range resp.Nodes {
		nodeIds = append(nodeIds, n.Id)
		nodeById[n.Id] = n
	}

	treeEdges := make([]treestate.TreeEdge, 0, len(resp.TreeEdges))
	for _, e := range resp.TreeEdges {
		treeEdges = append(treeEdges, treestate.TreeEdge{Parent: e.From, Child: e.To})
	}

	frag := treestate.Fragment{
		Id:        fragId,
		Bounds:    treestate.Bounds(bounds),
		LODLevel:  level.Index,
		NodeIds:   nodeIds,
		TreeEdges: treeEdges,
		Ts:        time.Now(),
	}
	t.tree.AddFragment(frag)

	t.repairDisconnected(ctx, nodeIds, nodeById)

	outNodes := make([]nodestore.Node, 0, len(nodeIds))
	for _, id := range nodeIds {
		n, ok := nodeById[id]
		if !ok {
			continue // dropped: repair could not connect it to a root
		}
		outNodes = append(outNodes, nodestore.Node{
			Id: n.Id, X: n.X, Y: n.Y, Degree: n.Degree, ClusterId: n.ClusterId,
			Label: n.Label, TreeLevel: level.Index, LastSeen: time.Now().UnixMilli(),
		})
	}
	outEdges := make([]edgestore.Edge, 0, len(resp.TreeEdges))
	for _, e := range resp.TreeEdges {
		outEdges = append(outEdges, edgestore.Edge{From: e.From, To: e.To, Kind: edgestore.KindTree})
	}

	connectivity := 1.0
	if n := len(nodeIds); n > 0 {
		connected := 0
		for _, id := range nodeIds {
			if t.tree.IsConnected(id) {
				connected++
			}
		}
		connectivity = float64(connected) / float64(n)
	}

	return Result{
		Nodes:   outNodes,
		Edges:   outEdges,
		HasMore: resp.HasMore,
		Stats: Stats{
			NodeCount:    len(outNodes),
			EdgeCount:    len(outEdges),
			LoadTimeMs:   msSince(start),
			Connectivity: connectivity,
		},
	}, nil
}

// repairDisconnected finds nodes the fragment left without a path to a
// known root and attempts, up to MaxRepairExpansion times, to pull in
// a connecting tree-in-box fetch around the node's own coordinates. A
// node that cannot be repaired is dropped from nodeById (and therefore
// from the committed result) and reported via the disconnected list —
// callers inspect treestate.Manager.FindDisconnected after commit.
func (t *TreeFirst) repairDisconnected(ctx context.Context, nodeIds []string, nodeById map[string]backend.Node) {
	for _, id := range nodeIds {
		if t.tree.IsConnected(id) {
			continue
		}
		n, ok := nodeById[id]
		if !ok {
			continue
		}
		repaired := false
		radius := t.cfg.RepairBoxRadius
		for attempt := 0; attempt < t.cfg.MaxRepairExpansion; attempt++ {
			resp, err := t.client.TreeInBox(ctx, backend.TreeInBoxRequest{
				MinX: n.X - radius, MaxX: n.X + radius,
				MinY: n.Y - radius, MaxY: n.Y + radius,
				MaxNodes: 50, EdgeType: backend.EdgeTypeTree,
			})
			if err != nil {
				radius *= 2
				continue
			}
			var edges []treestate.TreeEdge
			var ids []string
			for _, e := range resp.TreeEdges {
				edges = append(edges, treestate.TreeEdge{Parent: e.From, Child: e.To})
			}
			for _, rn := range resp.Nodes {
				ids = append(ids, rn.Id)
				nodeById[rn.Id] = rn
			}
			t.tree.AddFragment(treestate.Fragment{
				Id:        fmt.Sprintf("repair-%s-%d", id, attempt),
				NodeIds:   ids,
				TreeEdges: edges,
				Ts:        time.Now(),
			})
			if t.tree.IsConnected(id) {
				repaired = true
				break
			}
			radius *= 2
		}
		if !repaired {
			delete(nodeById, id)
		}
	}
}
