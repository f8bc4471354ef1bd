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
Package nodestore is the Node Store (C5): the in-memory set of loaded
nodes, backed by a coarse grid spatial index for fast bounds queries.
*/
package nodestore

// Node is a loaded citation-graph node. Coordinates are immutable once
// inserted: a given Id always projects to the same world point.
type Node struct {
	Id        string
	X, Y      float64
	Degree    int
	ClusterId string
	Label     string
	TreeLevel int  // -1 when not part of the DAG backbone
	LastSeen  int64 // Unix millis
}

// Bounds is an axis-aligned world-space rectangle.
type Bounds struct {
	MinX, MaxX, MinY, MaxY float64
}

// Contains reports whether (x, y) lies within b, inclusive of edges.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}
