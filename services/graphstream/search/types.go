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
Package search is the Search & Highlight feature (C11): it resolves a
text query against the backend's full-text index, pulls the matched
nodes (and each focus result's immediate neighbors) into the loaded
graph, and applies a temporary visual override that a later
clearSearchHighlight call restores exactly.
*/
package search

import "errors"

// ErrNoResults is returned when a query matches nothing the backend
// will return, or every match fails to load.
var ErrNoResults = errors.New("search: no results")

// Style is a node or edge's color/size as far as this package is
// concerned; the rendering layer (out of scope here) owns the richer
// attribute set this overlays.
type Style struct {
	Color string
	Size  float64
}

// Config tunes the highlight fan-out per spec.md §4.10.
type Config struct {
	// TopK bounds how many search results are pulled into focus/neighbor
	// styling at all.
	TopK int

	// FocusCap bounds how many of TopK results get full "focus" styling
	// (and have their immediate neighbors loaded); the rest get the
	// lighter "neighbor" styling only.
	FocusCap int

	FocusColor    string
	FocusSize     float64
	NeighborColor string
	NeighborSize  float64
}

// DefaultConfig returns spec-reasonable defaults: top 5 results, 3 of
// them promoted to full focus styling.
func DefaultConfig() Config {
	return Config{
		TopK: 5, FocusCap: 3,
		FocusColor: "#ff6b35", FocusSize: 2.0,
		NeighborColor: "#ffd23f", NeighborSize: 1.3,
	}
}

type override struct {
	original Style
	applied  Style
}
