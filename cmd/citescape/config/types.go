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
Package config provides configuration types and loading for the citescape
viewport-streaming graph engine.

# Overview

This package defines the configuration schema enumerated by the engine's
specification, grouped into:
  - LOD thresholds and per-level node/degree/edge-loading limits
  - Spatial cache sizing and staleness
  - Loading strategy batching and retry behavior
  - Memory/eviction caps
  - Viewport camera defaults
  - Tree-first dwell/enrichment timing
  - Visual defaults for nodes, edges, and search highlighting

# Configuration File

The configuration is stored at ~/.citescape/citescape.yaml and is created
automatically on first run with sensible defaults.
*/
package config

// -----------------------------------------------------------------------------
// Root configuration
// -----------------------------------------------------------------------------

// Config is the root configuration structure for the citescape engine.
type Config struct {
	// Meta contains versioning and audit information.
	Meta Meta `yaml:"meta"`

	LOD         LODConfig         `yaml:"lod"`
	Performance PerformanceConfig `yaml:"performance"`
	Memory      MemoryConfig      `yaml:"memory"`
	Viewport    ViewportConfig    `yaml:"viewport"`
	Tree        TreeConfig        `yaml:"tree"`
	Visual      VisualConfig      `yaml:"visual"`
}

// Meta contains metadata for configuration versioning and auditing.
type Meta struct {
	// Version is the configuration schema version, used for migration.
	Version string `yaml:"version" validate:"required"`

	// CreatedAt is the Unix millisecond timestamp when config was created.
	CreatedAt int64 `yaml:"created_at"`

	// ModifiedAt is the Unix millisecond timestamp when config was last modified.
	ModifiedAt int64 `yaml:"modified_at"`

	// ModifiedBy identifies who or what modified the config.
	ModifiedBy string `yaml:"modified_by"`
}

// CurrentConfigVersion is the current configuration schema version.
const CurrentConfigVersion = "1.0.0"

// -----------------------------------------------------------------------------
// LOD (level-of-detail) configuration
// -----------------------------------------------------------------------------

// LODConfig holds the camera-ratio thresholds that select a detail level,
// plus the per-level node/degree/edge-loading limits.
type LODConfig struct {
	// Thresholds are ascending camera-ratio boundaries between LOD levels.
	Thresholds LODThresholds `yaml:"thresholds" validate:"required"`

	// MaxNodes caps the node count requested per level.
	MaxNodes map[string]int `yaml:"maxNodes" validate:"required"`

	// MinDegree is the minimum node degree eligible for loading at a level.
	MinDegree map[string]int `yaml:"minDegree" validate:"required"`

	// LoadEdges toggles whether edges are fetched at a level.
	LoadEdges map[string]bool `yaml:"loadEdges" validate:"required"`
}

// LODThresholds are the ascending camera-ratio boundaries between the four
// named LOD levels: paper, topic, field, universe.
type LODThresholds struct {
	Paper   float64 `yaml:"paper" validate:"gt=0"`
	Topic   float64 `yaml:"topic" validate:"gtfield=Paper"`
	Field   float64 `yaml:"field" validate:"gtfield=Topic"`
	Universe float64 `yaml:"universe" validate:"gtfield=Field"`
}

// -----------------------------------------------------------------------------
// Performance configuration
// -----------------------------------------------------------------------------

// PerformanceConfig groups the cache, loading, and API performance knobs.
type PerformanceConfig struct {
	Cache   CachePerfConfig   `yaml:"cache"`
	Loading LoadingPerfConfig `yaml:"loading"`
	API     APIPerfConfig     `yaml:"api"`
}

// CachePerfConfig configures the spatial cache's sizing and staleness.
type CachePerfConfig struct {
	// TTLMillis is how long a cached tile is considered fresh.
	TTLMillis int64 `yaml:"ttl_ms" validate:"gt=0"`

	// MaxRegions caps the number of cached tile regions.
	MaxRegions int `yaml:"maxRegions" validate:"gt=0"`

	// OverlapThreshold is the fractional overlap above which two regions
	// are considered the same cached area.
	OverlapThreshold float64 `yaml:"overlapThreshold" validate:"gte=0,lte=1"`
}

// LoadingPerfConfig configures batching and early-termination behavior of
// the loading strategies.
type LoadingPerfConfig struct {
	BatchSize             int  `yaml:"batchSize" validate:"gt=0"`
	MinBatchSize          int  `yaml:"minBatchSize" validate:"gt=0"`
	MaxBatchSize          int  `yaml:"maxBatchSize" validate:"gtefield=MinBatchSize"`
	MaxConcurrentBatches  int  `yaml:"maxConcurrentBatches" validate:"gt=0"`
	MaxEmptyBatches       int  `yaml:"maxEmptyBatches" validate:"gt=0"`
	EarlyTermination      bool `yaml:"earlyTermination"`
	SmartTermination      bool `yaml:"smartTermination"`
	AdaptiveBatching      bool `yaml:"adaptiveBatching"`
}

// APIPerfConfig configures backend HTTP timeouts and retries.
type APIPerfConfig struct {
	TimeoutMillis  int64 `yaml:"timeout_ms" validate:"gt=0"`
	MaxRetries     int   `yaml:"maxRetries" validate:"gte=0"`
	RetryDelayMillis int64 `yaml:"retryDelay_ms" validate:"gte=0"`
}

// -----------------------------------------------------------------------------
// Memory configuration
// -----------------------------------------------------------------------------

// MemoryConfig caps the total loaded graph size and governs eviction.
type MemoryConfig struct {
	// MaxTotalNodes is the hard cap on loaded node count.
	MaxTotalNodes int `yaml:"maxTotalNodes" validate:"gt=0"`

	// CleanupThreshold is a fraction of MaxTotalNodes (e.g. 0.9). It is
	// validated and copied into the coordinator's Config, but eviction
	// does not consult it: nodes are evicted only once the priority heap
	// holds more than MaxTotalNodes.
	CleanupThreshold float64 `yaml:"cleanupThreshold" validate:"gt=0,lte=1"`

	// AggressiveCleanup is loaded and validated but not read by the
	// engine; eviction always stops as soon as the heap is back at
	// MaxTotalNodes.
	AggressiveCleanup bool `yaml:"aggressiveCleanup"`
}

// -----------------------------------------------------------------------------
// Viewport configuration
// -----------------------------------------------------------------------------

// ViewportConfig holds the camera's initial placement and world scale.
type ViewportConfig struct {
	// CoordinateScale converts backend world units to camera world units.
	CoordinateScale float64 `yaml:"coordinateScale" validate:"gt=0"`

	// InitialRatio is the starting camera ratio (zoom proxy) before any
	// user interaction.
	InitialRatio float64 `yaml:"initialRatio" validate:"gt=0"`

	// InitialBounds is used when the backend bounds are unreachable.
	InitialBounds Bounds `yaml:"initialBounds"`
}

// Bounds is an axis-aligned rectangle in world coordinates.
type Bounds struct {
	XMin float64 `yaml:"xMin"`
	XMax float64 `yaml:"xMax"`
	YMin float64 `yaml:"yMin"`
	YMax float64 `yaml:"yMax"`
}

// -----------------------------------------------------------------------------
// Tree-first configuration
// -----------------------------------------------------------------------------

// TreeConfig configures the tree-first loading strategy's dwell-triggered
// enrichment pass.
type TreeConfig struct {
	// DwellDelayMillis is how long the camera must be still before
	// enrichment fires.
	DwellDelayMillis int64 `yaml:"dwellDelay_ms" validate:"gt=0"`

	// EnrichmentPriority weights enrichment fetches against normal loads.
	EnrichmentPriority float64 `yaml:"enrichmentPriority" validate:"gte=0"`
}

// -----------------------------------------------------------------------------
// Visual configuration
// -----------------------------------------------------------------------------

// VisualConfig carries rendering defaults tracked by the engine for a
// caller's benefit; the engine itself never renders.
type VisualConfig struct {
	Nodes  NodeVisualConfig  `yaml:"nodes"`
	Edges  EdgeVisualConfig  `yaml:"edges"`
	Search SearchVisualConfig `yaml:"search"`
}

// NodeVisualConfig holds default node appearance and the cluster-color
// legend the engine maintains for callers (storage only, no rendering).
type NodeVisualConfig struct {
	DefaultSize  float64           `yaml:"defaultSize" validate:"gt=0"`
	DefaultColor string            `yaml:"defaultColor" validate:"required"`
	ClusterColors map[string]string `yaml:"clusterColors,omitempty"`
}

// EdgeVisualConfig holds default edge appearance.
type EdgeVisualConfig struct {
	DefaultColor string  `yaml:"defaultColor" validate:"required"`
	DefaultSize  float64 `yaml:"defaultSize" validate:"gt=0"`
}

// SearchVisualConfig holds the highlight styling applied by search/focus.
type SearchVisualConfig struct {
	FocusNodeColor    string  `yaml:"focusNodeColor" validate:"required"`
	NeighborNodeColor string  `yaml:"neighborNodeColor" validate:"required"`
	FocusEdgeColor    string  `yaml:"focusEdgeColor" validate:"required"`
	FocusEdgeSize     float64 `yaml:"focusEdgeSize" validate:"gt=0"`
	FadeOpacity       float64 `yaml:"fadeOpacity" validate:"gte=0,lte=1"`
}

// -----------------------------------------------------------------------------
// Defaults
// -----------------------------------------------------------------------------

// Default returns the default citescape configuration. Used when no
// configuration file exists on first run.
func Default() Config {
	return Config{
		Meta: Meta{Version: CurrentConfigVersion},
		LOD: LODConfig{
			Thresholds: LODThresholds{Paper: 1.0, Topic: 4.0, Field: 16.0, Universe: 64.0},
			MaxNodes: map[string]int{
				"paper": 2000, "topic": 1200, "field": 600, "universe": 300,
			},
			MinDegree: map[string]int{
				"paper": 0, "topic": 2, "field": 5, "universe": 10,
			},
			LoadEdges: map[string]bool{
				"paper": true, "topic": true, "field": false, "universe": false,
			},
		},
		Performance: PerformanceConfig{
			Cache: CachePerfConfig{
				TTLMillis:        60_000,
				MaxRegions:       64,
				OverlapThreshold: 0.6,
			},
			Loading: LoadingPerfConfig{
				BatchSize:            200,
				MinBatchSize:         50,
				MaxBatchSize:         500,
				MaxConcurrentBatches: 4,
				MaxEmptyBatches:      3,
				EarlyTermination:     true,
				SmartTermination:     true,
				AdaptiveBatching:     true,
			},
			API: APIPerfConfig{
				TimeoutMillis:    5_000,
				MaxRetries:       1,
				RetryDelayMillis: 250,
			},
		},
		Memory: MemoryConfig{
			MaxTotalNodes:     20_000,
			CleanupThreshold:  0.9,
			AggressiveCleanup: true,
		},
		Viewport: ViewportConfig{
			CoordinateScale: 1.0,
			InitialRatio:    8.0,
			InitialBounds:   Bounds{XMin: -500, XMax: 500, YMin: -500, YMax: 500},
		},
		Tree: TreeConfig{
			DwellDelayMillis:   1200,
			EnrichmentPriority: 0.5,
		},
		Visual: VisualConfig{
			Nodes: NodeVisualConfig{
				DefaultSize:  4.0,
				DefaultColor: "#8888ff",
			},
			Edges: EdgeVisualConfig{
				DefaultColor: "#cccccc",
				DefaultSize:  1.0,
			},
			Search: SearchVisualConfig{
				FocusNodeColor:    "#ff5500",
				NeighborNodeColor: "#ffaa00",
				FocusEdgeColor:    "#ff5500",
				FocusEdgeSize:     2.0,
				FadeOpacity:       0.2,
			},
		},
	}
}
