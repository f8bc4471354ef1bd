// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/citescape-io/citescape/pkg/logging"
	"github.com/citescape-io/citescape/services/graphstream/cancel"
	"github.com/citescape-io/citescape/services/graphstream/edgestore"
	"github.com/citescape-io/citescape/services/graphstream/events"
	"github.com/citescape-io/citescape/services/graphstream/lod"
	"github.com/citescape-io/citescape/services/graphstream/nodestore"
	"github.com/citescape-io/citescape/services/graphstream/priority"
	"github.com/citescape-io/citescape/services/graphstream/reqcoord"
	"github.com/citescape-io/citescape/services/graphstream/strategy"
	"github.com/citescape-io/citescape/services/graphstream/viewport"
)

// worldBoundsResult bundles BoundsFetcher.WorldBounds's multiple return
// values so it can travel through reqcoord.Execute's single any return.
type worldBoundsResult struct {
	bounds strategy.Bounds
	total  int
}

// Coordinator is the Graph Coordinator (C10): the single-writer
// orchestrator that drives the idle/loading/evicting state machine,
// fetches through the Request Coordinator, commits results into the
// node/edge stores and priority heap, and reports everything on the
// typed event bus.
//
// The coordinator is polymorphic over its collaborators: it depends on
// the LoD resolver, viewport service, node/edge stores, and priority
// heap as concrete types (each already has exactly one production
// implementation), and on strategy.Strategy, BoundsFetcher, and
// Highlighter as interfaces (these vary by deployment: standard vs.
// tree-first loading, the live backend vs. a test double, a present vs.
// absent search feature).
type Coordinator struct {
	cfg Config
	log *slog.Logger

	resolver       *lod.Resolver
	vp             *viewport.Service
	nodes          *nodestore.Store
	edges          *edgestore.Store
	importanceHeap *priority.Heap
	strat          strategy.Strategy
	reqs           *reqcoord.Coordinator
	bus            *events.Bus
	bounds         BoundsFetcher
	search         Highlighter

	mu            sync.Mutex
	state         State
	generation    uint64
	worldBounds   strategy.Bounds
	lastLevelName string
	hardTimer     *time.Timer
	dwellTimer    *time.Timer
	destroyed     bool
}

// New wires a Coordinator from its collaborators. search may be nil if
// the deployment has no search/highlight feature; SearchAndHighlight
// then emits search:failed and returns an error, and
// ClearSearchHighlight returns without doing anything.
func New(
	cfg Config,
	resolver *lod.Resolver,
	vp *viewport.Service,
	nodes *nodestore.Store,
	edges *edgestore.Store,
	importanceHeap *priority.Heap,
	strat strategy.Strategy,
	reqs *reqcoord.Coordinator,
	bus *events.Bus,
	bounds BoundsFetcher,
	search Highlighter,
	log *slog.Logger,
) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		cfg: cfg, log: log,
		resolver: resolver, vp: vp, nodes: nodes, edges: edges,
		importanceHeap: importanceHeap, strat: strat, reqs: reqs, bus: bus,
		bounds: bounds, search: search,
		state: StateIdle,
	}
	vp.OnViewportChange(func(viewport.Bounds) { c.UpdateViewport(false) })
	return c
}

// State reports the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Initialize fetches the backend's world bounds and performs the first
// viewport load. It must be called once before any other method.
func (c *Coordinator) Initialize(ctx context.Context) error {
	res := c.reqs.Queue(reqcoord.KindBounds, "world-bounds", reqcoord.Priority{UserInitiated: true}, func(tok *cancel.Token) (any, error) {
		b, total, err := c.bounds.WorldBounds(tok.Context())
		if err != nil {
			return nil, err
		}
		return worldBoundsResult{bounds: b, total: total}, nil
	})
	if res.Err != nil {
		c.emitError(res.Err, "initialize: world bounds")
		return res.Err
	}
	if res.Cancelled {
		return nil
	}

	wb := res.Value.(worldBoundsResult)
	c.mu.Lock()
	c.worldBounds = wb.bounds
	c.mu.Unlock()

	if err := c.strat.Initialize(wb.bounds); err != nil {
		c.emitError(err, "initialize: strategy")
		return err
	}

	c.bus.Emit(events.Event{Kind: events.Initialized, Payload: wb})
	c.UpdateViewport(true)
	return nil
}

// Destroy stops all in-flight work and tears down timers. It is safe to
// call more than once.
func (c *Coordinator) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.stopTimersLocked()
	c.mu.Unlock()

	c.reqs.EmergencyReset()
	c.strat.Cleanup()
	c.bus.Emit(events.Event{Kind: events.Destroyed})
}

func (c *Coordinator) stopTimersLocked() {
	if c.hardTimer != nil {
		c.hardTimer.Stop()
	}
	if c.dwellTimer != nil {
		c.dwellTimer.Stop()
	}
}

// Reset recovers from StateError back to StateIdle, per the state
// diagram's error--reset-->idle transition. It is a no-op outside
// StateError.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateError {
		c.state = StateIdle
	}
}

// UpdateViewport loads whatever the viewport service currently reports
// as the visible bounds, at the LOD level the current camera ratio
// resolves to. force bypasses the "already loading" guard, used by
// Initialize and CenterOn to get an immediate load instead of waiting
// for the next debounced viewport-changed notification.
func (c *Coordinator) UpdateViewport(force bool) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	if c.state == StateLoading && !force {
		c.mu.Unlock()
		return
	}
	c.state = StateLoading
	c.generation++
	gen := c.generation
	c.stopTimersLocked()
	c.hardTimer = time.AfterFunc(c.cfg.LoadingHardTimeout, func() { c.onHardTimeout(gen) })
	c.mu.Unlock()

	vb := c.vp.GetCurrentBounds()
	bounds := strategy.Bounds(vb)
	level := c.resolver.Resolve(c.vp.CameraRatio())
	stratLevel := strategy.Level{
		Index: c.resolver.Index(level.Name), MaxNodes: level.MaxNodes,
		MinDegree: level.MinDegree, LoadEdges: level.LoadEdges,
	}

	c.mu.Lock()
	c.lastLevelName = level.Name
	c.mu.Unlock()

	c.log.Debug("loading viewport", logging.LODAttr(stratLevel.Index))
	c.bus.Emit(events.Event{Kind: events.LoadingStarted})

	key := fmt.Sprintf("viewport-%d", gen)
	pri := reqcoord.Priority{UserInitiated: true, LODLevel: stratLevel.Index}
	res := c.reqs.Queue(reqcoord.KindNodes, key, pri, func(tok *cancel.Token) (any, error) {
		return c.strat.LoadViewport(tok.Context(), bounds, stratLevel, strategy.Filter{})
	})

	c.mu.Lock()
	stale := gen != c.generation
	c.mu.Unlock()
	if stale {
		return // a newer UpdateViewport already superseded this one
	}

	if res.Cancelled {
		c.finishLoad(gen, StateIdle)
		return
	}
	if res.Err != nil {
		c.emitError(res.Err, "update-viewport")
		c.bus.Emit(events.Event{Kind: events.LoadingFailed, Payload: res.Err})
		c.finishLoad(gen, StateIdle)
		return
	}

	result := res.Value.(strategy.Result)
	c.commit(result, bounds, stratLevel)
	c.bus.Emit(events.Event{Kind: events.LoadingCompleted, Payload: result.Stats})
	c.finishLoad(gen, StateIdle)
}

func (c *Coordinator) finishLoad(gen uint64, next State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	if c.hardTimer != nil {
		c.hardTimer.Stop()
	}
	if c.state != StateError {
		c.state = next
	}
}

// commit writes a load result into the node/edge stores and priority
// heap, evicting whatever the heap's capacity forces out.
func (c *Coordinator) commit(result strategy.Result, bounds strategy.Bounds, level strategy.Level) {
	c.mu.Lock()
	c.state = StateEvicting
	c.mu.Unlock()

	cx, cy := (bounds.MinX+bounds.MaxX)/2, (bounds.MinY+bounds.MaxY)/2
	now := time.Now().UnixMilli()

	inserted := c.nodes.Add(result.Nodes)
	if len(inserted) > 0 {
		c.bus.Emit(events.Event{Kind: events.NodesAdded, Payload: inserted})
	}

	var evicted []string
	for _, n := range result.Nodes {
		dist := math.Hypot(n.X-cx, n.Y-cy)
		ev := c.importanceHeap.AddOrUpdate(priority.Record{
			NodeId: n.Id, Degree: n.Degree, DistanceFromView: dist,
			LastSeenMillis: now, LODLevel: level.Index, InViewport: true,
		}, now)
		evicted = append(evicted, ev...)
	}
	if len(evicted) > 0 {
		c.nodes.Remove(evicted)
		for _, id := range evicted {
			c.log.Debug("evicted node", logging.NodeAttr(id), logging.LODAttr(level.Index))
		}
		c.bus.Emit(events.Event{Kind: events.NodesRemoved, Payload: evicted})
	}

	if len(result.Edges) > 0 {
		inserted, _ := c.edges.Add(result.Edges)
		if inserted > 0 {
			c.bus.Emit(events.Event{Kind: events.EdgesAdded, Payload: inserted})
		}
	}

	c.mu.Lock()
	stats := c.statsLocked()
	c.mu.Unlock()
	c.bus.Emit(events.Event{Kind: events.StatsUpdated, Payload: stats})
}

// Refresh discards everything loaded and re-runs Initialize against the
// current viewport, used when the underlying graph data may have
// changed out from under a live session.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.nodes.Clear()
	c.edges.Clear()
	c.importanceHeap.Rebuild(nil, time.Now().UnixMilli())
	return c.Initialize(ctx)
}

// CenterOn moves the viewport's camera to (x, y) and forces an
// immediate (non-debounced) reload, used for "jump to node" navigation.
func (c *Coordinator) CenterOn(x, y float64, ratio *float64) {
	c.vp.CenterOn(x, y, ratio)
	c.UpdateViewport(true)
}

// SearchAndHighlight resolves query through the configured Highlighter
// and centers the viewport on the match. It emits search:failed (and
// returns an error) if no Highlighter was configured.
func (c *Coordinator) SearchAndHighlight(ctx context.Context, query string) (HighlightResult, error) {
	if c.search == nil {
		err := fmt.Errorf("coordinator: no search highlighter configured")
		c.bus.Emit(events.Event{Kind: events.SearchFailed, Payload: events.ErrorPayload{Err: err, Context: "search"}})
		return HighlightResult{}, err
	}
	res, err := c.search.Highlight(ctx, query)
	if err != nil {
		c.bus.Emit(events.Event{Kind: events.SearchFailed, Payload: events.ErrorPayload{Err: err, Context: "search"}})
		return HighlightResult{}, err
	}
	c.bus.Emit(events.Event{Kind: events.SearchHighlighted, Payload: res})
	c.CenterOn(res.CenterX, res.CenterY, nil)
	return res, nil
}

// ClearSearchHighlight restores pre-highlight styling via the
// configured Highlighter, if any.
func (c *Coordinator) ClearSearchHighlight() {
	if c.search == nil {
		return
	}
	c.search.Clear()
	c.bus.Emit(events.Event{Kind: events.SearchCleared})
}

// GetStats returns a snapshot of the coordinator's current state,
// node/edge counts, and heap occupancy.
func (c *Coordinator) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

func (c *Coordinator) statsLocked() Stats {
	hs := c.importanceHeap.Stats()
	progress := 1.0
	if hs.Cap > 0 {
		progress = float64(hs.Size) / float64(hs.Cap)
	}
	return Stats{
		NodeCount:    c.nodes.Count(),
		EdgeCount:    c.edges.Count(),
		IsLoading:    c.state == StateLoading || c.state == StateEvicting,
		LODLevel:     c.lastLevelName,
		Connectivity: 1,
		LoadingStatus: LoadingStatus{
			State:    c.state.String(),
			Progress: progress,
		},
	}
}

func (c *Coordinator) onHardTimeout(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.state != StateLoading {
		c.mu.Unlock()
		return
	}
	c.state = StateError
	c.mu.Unlock()

	err := fmt.Errorf("coordinator: viewport load exceeded %s", c.cfg.LoadingHardTimeout)
	c.reqs.CancelKey(fmt.Sprintf("viewport-%d", gen))
	c.emitError(err, "loading-hard-timeout")
}

func (c *Coordinator) emitError(err error, context string) {
	c.bus.Emit(events.Event{Kind: events.Error, Payload: events.ErrorPayload{Err: err, Context: context}})
}
