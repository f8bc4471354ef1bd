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
Package coordinator is the Graph Coordinator (C10): the single-writer
orchestrator that owns the idle/loading/evicting state machine and
wires the viewport service, LOD resolver, node/edge stores, priority
heap, and loading strategy into one coherent client runtime surface.
*/
package coordinator

import (
	"context"
	"time"

	"github.com/citescape-io/citescape/services/graphstream/strategy"
)

// State is the coordinator's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateEvicting
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateEvicting:
		return "evicting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// LoadingStatus is embedded in Stats.
type LoadingStatus struct {
	State    string
	Message  string
	Progress float64
}

// Stats is the client-facing snapshot getStats() returns.
type Stats struct {
	NodeCount     int
	EdgeCount     int
	IsLoading     bool
	HasMore       bool
	LODLevel      string
	Connectivity  float64
	LoadingStatus LoadingStatus

	// Tree-first only.
	TreeEdges          int
	ExtraEdges         int
	DisconnectedNodes  int
	ConnectivityRatio  float64
	EnrichmentProgress float64
}

// BoundsFetcher is the capability Initialize uses to discover the
// backend's world bounds on first load.
type BoundsFetcher interface {
	WorldBounds(ctx context.Context) (strategy.Bounds, int, error) // bounds, total node count, error
}

// HighlightResult is what a successful search-and-highlight resolves
// to: the matched node plus whatever neighbors it pulled into focus.
type HighlightResult struct {
	FocusId    string
	MatchedIds []string
	CenterX    float64
	CenterY    float64
}

// Highlighter is the capability SearchAndHighlight and
// ClearSearchHighlight delegate to. The search package's Manager
// satisfies it.
type Highlighter interface {
	Highlight(ctx context.Context, query string) (HighlightResult, error)
	Clear()
}

// Config tunes the coordinator's resource and timing budgets.
type Config struct {
	MaxTotalNodes      int
	CleanupThreshold   float64 // carried from config; not read by the coordinator, which evicts only when the priority heap exceeds its capacity
	LoadingHardTimeout time.Duration
	DwellDelay         time.Duration
	CoordinateScale    float64
	InitialRatio       float64
}

// DefaultConfig returns the spec's defaults.
func DefaultConfig() Config {
	return Config{
		MaxTotalNodes:      20_000,
		CleanupThreshold:   0.9,
		LoadingHardTimeout: 15 * time.Second,
		DwellDelay:         1200 * time.Millisecond,
		CoordinateScale:    1.0,
		InitialRatio:       1.0,
	}
}
