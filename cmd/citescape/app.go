// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"time"

	"github.com/citescape-io/citescape/pkg/logging"
	"github.com/citescape-io/citescape/services/graphstream/backend"
	"github.com/citescape-io/citescape/services/graphstream/coordinator"
	"github.com/citescape-io/citescape/services/graphstream/edgestore"
	"github.com/citescape-io/citescape/services/graphstream/events"
	"github.com/citescape-io/citescape/services/graphstream/lod"
	"github.com/citescape-io/citescape/services/graphstream/metrics"
	"github.com/citescape-io/citescape/services/graphstream/nodestore"
	"github.com/citescape-io/citescape/services/graphstream/priority"
	"github.com/citescape-io/citescape/services/graphstream/reqcoord"
	"github.com/citescape-io/citescape/services/graphstream/search"
	"github.com/citescape-io/citescape/services/graphstream/spatialcache"
	"github.com/citescape-io/citescape/services/graphstream/strategy"
	"github.com/citescape-io/citescape/services/graphstream/treestate"
	"github.com/citescape-io/citescape/services/graphstream/viewport"

	cfgpkg "github.com/citescape-io/citescape/cmd/citescape/config"
)

// engine bundles the composed Graph Coordinator runtime: everything a
// CLI command needs to drive the viewport and read back its state.
type engine struct {
	log    *logging.Logger
	bus    *events.Bus
	coord  *coordinator.Coordinator
	search *search.Manager
	nodes  *nodestore.Store
	edges  *edgestore.Store
	vp     *viewport.Service
}

// buildEngine wires together every Graph Coordinator collaborator from
// a loaded Config, following the strategy named by strategyName
// ("standard" or "tree-first").
func buildEngine(cfg cfgpkg.Config, backendURL, strategyName string, log *logging.Logger) (*engine, error) {
	client := backend.NewClient(backendURL)

	edges := edgestore.New(nil)
	nodes := nodestore.New(edges)

	levels := []lod.Level{
		{Name: "paper", Threshold: cfg.LOD.Thresholds.Paper, MaxNodes: cfg.LOD.MaxNodes["paper"], MinDegree: cfg.LOD.MinDegree["paper"], LoadEdges: cfg.LOD.LoadEdges["paper"]},
		{Name: "topic", Threshold: cfg.LOD.Thresholds.Topic, MaxNodes: cfg.LOD.MaxNodes["topic"], MinDegree: cfg.LOD.MinDegree["topic"], LoadEdges: cfg.LOD.LoadEdges["topic"]},
		{Name: "field", Threshold: cfg.LOD.Thresholds.Field, MaxNodes: cfg.LOD.MaxNodes["field"], MinDegree: cfg.LOD.MinDegree["field"], LoadEdges: cfg.LOD.LoadEdges["field"]},
		{Name: "universe", Threshold: cfg.LOD.Thresholds.Universe, MaxNodes: cfg.LOD.MaxNodes["universe"], MinDegree: cfg.LOD.MinDegree["universe"], LoadEdges: cfg.LOD.LoadEdges["universe"]},
	}
	resolver := lod.NewResolver(levels)

	heap := priority.New(cfg.Memory.MaxTotalNodes, priority.DefaultWeights())

	vp := viewport.New(viewport.Config{Logger: log.Slog()}, viewport.Camera{
		CenterX: (cfg.Viewport.InitialBounds.XMin + cfg.Viewport.InitialBounds.XMax) / 2,
		CenterY: (cfg.Viewport.InitialBounds.YMin + cfg.Viewport.InitialBounds.YMax) / 2,
		Ratio:   cfg.Viewport.InitialRatio,
	}, viewport.Corner{Width: 1920, Height: 1080})

	cache := spatialcache.New(
		spatialcache.WithTTL(msToDuration(cfg.Performance.Cache.TTLMillis)),
		spatialcache.WithMaxRegions(cfg.Performance.Cache.MaxRegions),
		spatialcache.WithLogger(log.Slog()),
	)

	var strat strategy.Strategy
	switch strategyName {
	case "tree-first":
		strat = strategy.NewTreeFirst(strategy.TreeFirstConfig{
			MaxNodes: cfg.LOD.MaxNodes["paper"],
		}, client, treestate.New())
	default:
		strat = strategy.NewStandard(strategy.StandardConfig{
			BatchSize:        cfg.Performance.Loading.BatchSize,
			MinBatchSize:     cfg.Performance.Loading.MinBatchSize,
			MaxBatchSize:     cfg.Performance.Loading.MaxBatchSize,
			MaxEmptyBatches:  cfg.Performance.Loading.MaxEmptyBatches,
			EarlyTermination: cfg.Performance.Loading.EarlyTermination,
			SmartTermination: cfg.Performance.Loading.SmartTermination,
			AdaptiveBatching: cfg.Performance.Loading.AdaptiveBatching,
		}, client, cache)
	}

	reqs := reqcoord.New(reqcoord.Config{}, log.Slog())
	bus := events.New()

	style := func(n nodestore.Node) search.Style {
		color := cfg.Visual.Nodes.DefaultColor
		if c, ok := cfg.Visual.Nodes.ClusterColors[n.ClusterId]; ok {
			color = c
		}
		return search.Style{Color: color, Size: cfg.Visual.Nodes.DefaultSize}
	}
	searchMgr := search.New(search.Config{
		TopK: 5, FocusCap: 3,
		FocusColor: cfg.Visual.Search.FocusNodeColor, FocusSize: cfg.Visual.Search.FocusEdgeSize,
		NeighborColor: cfg.Visual.Search.NeighborNodeColor, NeighborSize: 1.3,
	}, client, nodes, edges, style)

	coordCfg := coordinator.DefaultConfig()
	coordCfg.MaxTotalNodes = cfg.Memory.MaxTotalNodes
	coordCfg.CleanupThreshold = cfg.Memory.CleanupThreshold
	coordCfg.CoordinateScale = cfg.Viewport.CoordinateScale
	coordCfg.InitialRatio = cfg.Viewport.InitialRatio
	coordCfg.DwellDelay = msToDuration(cfg.Tree.DwellDelayMillis)

	coord := coordinator.New(
		coordCfg, resolver, vp, nodes, edges, heap, strat, reqs, bus,
		coordinator.NewBackendBoundsFetcher(client), searchMgr, log.Slog(),
	)

	bus.On(events.Error, func(ev events.Event) {
		if p, ok := ev.Payload.(events.ErrorPayload); ok {
			log.Error("coordinator error", "context", p.Context, "error", p.Err)
		}
	})
	bus.On(events.StatsUpdated, func(ev events.Event) {
		if s, ok := ev.Payload.(coordinator.Stats); ok {
			log.Debug("stats", "nodes", s.NodeCount, "edges", s.EdgeCount, "lod", s.LODLevel)
		}
	})

	if instruments, err := metrics.NewInstruments(); err != nil {
		log.Warn("metrics instruments disabled", "error", err)
	} else {
		instruments.Attach(bus)
	}

	return &engine{log: log, bus: bus, coord: coord, search: searchMgr, nodes: nodes, edges: edges, vp: vp}, nil
}

// msToDuration adapts a millisecond count from config (an int64, for
// clean YAML round-tripping) to a time.Duration.
func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (e *engine) summary() string {
	s := e.coord.GetStats()
	return fmt.Sprintf("nodes=%d edges=%d lod=%s state=%s", s.NodeCount, s.EdgeCount, s.LODLevel, s.LoadingStatus.State)
}
