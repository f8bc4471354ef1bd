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
Package strategy implements the Loading Strategy (C8): the pluggable
policy that turns "the camera is looking at this rectangle, at this
level of detail" into backend fetches and store mutations. Two
variants are provided — Standard (paginated flat fetch) and TreeFirst
(single atomic DAG-backbone fetch with disconnected-node repair; no
dwell-time enrichment pass) — both satisfying the same Strategy
interface.
*/
package strategy

import (
	"context"

	"github.com/citescape-io/citescape/services/graphstream/edgestore"
	"github.com/citescape-io/citescape/services/graphstream/nodestore"
)

// Bounds is a world-space rectangle, duplicated locally (rather than
// imported from viewport) to keep this package's dependency surface
// limited to the stores and backend it actually drives.
type Bounds struct {
	MinX, MaxX, MinY, MaxY float64
}

// Level is the subset of an LOD level's static configuration the
// loading strategies need.
type Level struct {
	Index     int
	MaxNodes  int
	MinDegree int
	LoadEdges bool
}

// Filter is the currently active cluster-visibility and quality filter,
// applied to every fetch this call makes.
type Filter struct {
	VisibleClusters []string
	MinDegree       int
}

// Stats summarizes one LoadViewport call.
type Stats struct {
	NodeCount    int
	EdgeCount    int
	LoadTimeMs   float64
	Connectivity float64 // tree-first only; 1.0 for standard
}

// Result is what LoadViewport returns.
type Result struct {
	Nodes   []nodestore.Node
	Edges   []edgestore.Edge
	HasMore bool
	Stats   Stats
}

// Strategy is the interface both loading variants satisfy.
type Strategy interface {
	Initialize(bounds Bounds) error
	LoadViewport(ctx context.Context, bounds Bounds, level Level, filter Filter) (Result, error)
	Cleanup()
}
