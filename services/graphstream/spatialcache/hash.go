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
	"fmt"
	"math"
)

// Bounds is an axis-aligned world-space rectangle, mirroring the
// viewport service's output.
type Bounds struct {
	MinX, MaxX, MinY, MaxY float64
}

// BaseCellSize is the grid cell edge length at LOD level 0. Cell size
// doubles per level, so coarser (more zoomed-out) levels share tiles
// across a wider area and hit the cache more often.
const BaseCellSize = 50.0

// CellSize returns the quantization grid cell size for a LOD level.
func CellSize(lodLevel int) float64 {
	return BaseCellSize * math.Pow(2, float64(lodLevel))
}

// QuantizeHash maps a viewport's bounds at a LOD level to a stable
// string hash: two viewports that land in the same grid cell at the
// same level produce identical hashes and therefore share a Tile. The
// level is part of the hash, so different levels never collide.
func QuantizeHash(b Bounds, lodLevel int) string {
	cell := CellSize(lodLevel)
	minCellX := int64(math.Floor(b.MinX / cell))
	maxCellX := int64(math.Floor(b.MaxX / cell))
	minCellY := int64(math.Floor(b.MinY / cell))
	maxCellY := int64(math.Floor(b.MaxY / cell))
	return fmt.Sprintf("%d:%d:%d:%d:%d", lodLevel, minCellX, maxCellX, minCellY, maxCellY)
}

// LookupKey builds the Key for a viewport at a LOD level.
func LookupKey(b Bounds, lodLevel int) Key {
	return Key{LODLevel: lodLevel, Hash: QuantizeHash(b, lodLevel)}
}
