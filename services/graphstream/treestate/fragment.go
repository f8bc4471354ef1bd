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
Package treestate is the Tree State Manager (C9): it tracks the
fragments the tree-first loading strategy ingests, the precomputed
DAG-backbone edges inside each, and the broken edges whose target lay
outside the fragment at ingest time — enough state to answer
connectivity queries and to drive dwell-time enrichment.
*/
package treestate

import "time"

// TreeEdge is a directed backbone edge, parent -> child, as returned
// by a tree-in-box response.
type TreeEdge struct {
	Parent string
	Child  string
}

// BrokenEdge is an edge whose target fell outside the fragment's
// bounds at ingest time — a connectivity gap the strategy may later
// repair by fetching a tree path to the target.
type BrokenEdge struct {
	Source       string
	Target       string
	TargetCoordX float64
	TargetCoordY float64
	Reason       string
}

func (b BrokenEdge) key() string { return b.Source + "->" + b.Target }

// Bounds is the fragment's source rectangle, duplicated here (rather
// than imported from viewport) to keep this package dependency-free.
type Bounds struct {
	MinX, MaxX, MinY, MaxY float64
}

// Contains reports whether (x,y) lies within b.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Fragment is one ingested tree-in-box result.
type Fragment struct {
	Id          string
	Bounds      Bounds
	LODLevel    int
	NodeIds     []string
	TreeEdges   []TreeEdge
	BrokenEdges map[string]BrokenEdge
	Ts          time.Time
}
