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
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/citescape-io/citescape/services/graphstream/backend"
	"github.com/citescape-io/citescape/services/graphstream/edgestore"
	"github.com/citescape-io/citescape/services/graphstream/nodestore"
	"github.com/citescape-io/citescape/services/graphstream/spatialcache"
)

// edgeFanOutChunkSize bounds how many node ids go into one EdgeBatch
// call. A viewport carrying more ids than this fans out across several
// concurrent requests instead of one oversized one.
const edgeFanOutChunkSize = 200

// StandardConfig tunes the flat paginated fetch loop.
type StandardConfig struct {
	BatchSize            int
	MinBatchSize         int
	MaxBatchSize         int
	MaxEmptyBatches      int
	EarlyTermination     bool
	SmartTermination     bool
	AdaptiveBatching     bool
	MaxRetriesEarly      int // before any batch has succeeded
	MaxRetriesOnceStarted int // once at least one batch has succeeded
}

// DefaultStandardConfig returns spec-mandated defaults.
func DefaultStandardConfig() StandardConfig {
	return StandardConfig{
		BatchSize:             200,
		MinBatchSize:          100,
		MaxBatchSize:          500,
		MaxEmptyBatches:       2,
		EarlyTermination:      true,
		SmartTermination:      true,
		AdaptiveBatching:      true,
		MaxRetriesEarly:       2,
		MaxRetriesOnceStarted: 1,
	}
}

// Standard is the flat paginated loading strategy.
type Standard struct {
	cfg    StandardConfig
	client *backend.Client
	cache  *spatialcache.Cache
}

// NewStandard creates a Standard strategy.
func NewStandard(cfg StandardConfig, client *backend.Client, cache *spatialcache.Cache) *Standard {
	return &Standard{cfg: cfg, client: client, cache: cache}
}

// Initialize is a no-op for Standard; nothing to warm.
func (s *Standard) Initialize(Bounds) error { return nil }

// Cleanup is a no-op for Standard; it holds no per-call resources.
func (s *Standard) Cleanup() {}

// LoadViewport fetches nodes (and, if the level requires it, edges)
// within bounds at level, respecting filter and the spatial cache.
func (s *Standard) LoadViewport(ctx context.Context, bounds Bounds, level Level, filter Filter) (Result, error) {
	start := time.Now()

	key := spatialcache.LookupKey(spatialcache.Bounds(bounds), level.Index)
	if _, hit := s.cache.Lookup(key); hit {
		return Result{Stats: Stats{Connectivity: 1, LoadTimeMs: msSince(start)}}, nil
	}

	minDegree := level.MinDegree
	if filter.MinDegree > minDegree {
		minDegree = filter.MinDegree
	}

	var allNodes []nodestore.Node
	batchSize := s.cfg.BatchSize
	offset := 0
	emptyBatches := 0
	anySucceeded := false
	retriesUsed := 0
	hasMore := true
	backendFailed := false

	for hasMore {
		if ctx.Err() != nil {
			break
		}
		if level.MaxNodes > 0 && len(allNodes) >= level.MaxNodes {
			hasMore = false
			break
		}

		page, err := s.fetchPage(ctx, bounds, offset, batchSize, minDegree, filter.VisibleClusters, &retriesUsed, anySucceeded)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			// Non-timeout backend error: leave this tile out of the
			// cache so later lookups miss, and stop the loop.
			backendFailed = true
			hasMore = false
			break
		}

		if len(page) == 0 {
			emptyBatches++
			if s.cfg.EarlyTermination && emptyBatches >= s.cfg.MaxEmptyBatches {
				hasMore = false
				break
			}
			offset += batchSize
			continue
		}
		emptyBatches = 0
		anySucceeded = true

		for _, n := range page {
			allNodes = append(allNodes, nodestore.Node{
				Id: n.Id, X: n.X, Y: n.Y, Degree: n.Degree,
				ClusterId: n.ClusterId, Label: n.Label,
				LastSeen: time.Now().UnixMilli(),
			})
		}
		offset += len(page)

		if s.cfg.SmartTermination && len(page) < batchSize {
			hasMore = false
			break
		}
		if s.cfg.AdaptiveBatching {
			batchSize = growBatch(batchSize, s.cfg.MaxBatchSize)
		}
	}

	var edges []edgestore.Edge
	if level.LoadEdges && len(allNodes) > 0 {
		edges = s.fetchEdges(ctx, allNodes, bounds)
	}

	if !backendFailed {
		s.cache.Record(key, len(allNodes))
	}

	return Result{
		Nodes:   allNodes,
		Edges:   edges,
		HasMore: hasMore,
		Stats: Stats{
			NodeCount:    len(allNodes),
			EdgeCount:    len(edges),
			LoadTimeMs:   msSince(start),
			Connectivity: 1,
		},
	}, nil
}

func (s *Standard) fetchPage(ctx context.Context, b Bounds, offset, limit, minDegree int, clusters []string, retriesUsed *int, anySucceeded bool) ([]backend.Node, error) {
	maxRetries := s.cfg.MaxRetriesEarly
	if anySucceeded {
		maxRetries = s.cfg.MaxRetriesOnceStarted
	}

	for {
		nodes, err := s.client.NodesInBox(ctx, backend.BoxParams{
			MinX: b.MinX, MaxX: b.MaxX, MinY: b.MinY, MaxY: b.MaxY,
			Limit: limit, Offset: offset, VisibleClusters: clusters, MinDegree: minDegree,
		})
		if err == nil {
			return nodes, nil
		}
		if !isTimeout(err) || *retriesUsed >= maxRetries {
			return nil, err
		}
		*retriesUsed++
		backoff := time.Duration(*retriesUsed) * 250 * time.Millisecond
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// fetchEdges splits ids into chunks of edgeFanOutChunkSize and fetches
// each chunk's edge batch concurrently via an errgroup: the first
// chunk to fail cancels the group's context, so a single bad chunk
// doesn't block on requests for chunks that would have succeeded. A
// group-level failure yields no edges for the level rather than a
// partial, silently-incomplete set.
func (s *Standard) fetchEdges(ctx context.Context, nodes []nodestore.Node, b Bounds) []edgestore.Edge {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if b.MinX <= n.X && n.X <= b.MaxX && b.MinY <= n.Y && n.Y <= b.MaxY {
			ids = append(ids, n.Id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var out []edgestore.Edge

	for start := 0; start < len(ids); start += edgeFanOutChunkSize {
		end := start + edgeFanOutChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		g.Go(func() error {
			wire, err := s.client.EdgeBatch(gctx, backend.EdgeBatchRequest{NodeIds: chunk, Priority: backend.EdgeTypeAll})
			if err != nil {
				return err
			}
			edges := make([]edgestore.Edge, 0, len(wire))
			for _, e := range wire {
				kind := edgestore.KindExtra
				if e.Tree {
					kind = edgestore.KindTree
				}
				edges = append(edges, edgestore.Edge{From: e.From, To: e.To, Kind: kind})
			}
			mu.Lock()
			out = append(out, edges...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil
	}
	return out
}

func growBatch(current, max int) int {
	next := current + current/2
	if next > max {
		return max
	}
	return next
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, http.ErrHandlerTimeout)
}
