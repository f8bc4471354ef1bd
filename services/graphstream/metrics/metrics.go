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
Package metrics instruments the Graph Coordinator's event bus with
OpenTelemetry counters and histograms, so a debug server or an OTLP
collector can observe loading latency, node/edge churn, and eviction
pressure without the coordinator itself knowing metrics exist.
*/
package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/citescape-io/citescape/services/graphstream/events"
)

var meter = otel.Meter("citescape.graphstream")

// Instruments holds the coordinator's OTel instruments. Zero value is
// unusable; build one with NewInstruments.
type Instruments struct {
	loadingDuration metric.Float64Histogram
	loadingTotal    metric.Int64Counter
	loadingFailures metric.Int64Counter
	nodesLoaded     metric.Int64Counter
	nodesEvicted    metric.Int64Counter
	edgesLoaded     metric.Int64Counter
	searchTotal     metric.Int64Counter
	searchFailures  metric.Int64Counter

	mu            sync.Mutex
	loadStartedAt time.Time
}

// NewInstruments registers the coordinator's OTel instruments against
// the global MeterProvider. Call once per process.
func NewInstruments() (*Instruments, error) {
	in := &Instruments{}
	var err error

	in.loadingDuration, err = meter.Float64Histogram(
		"citescape_viewport_load_duration_seconds",
		metric.WithDescription("Duration of a viewport load, from loading-started to loading-completed/failed"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	in.loadingTotal, err = meter.Int64Counter(
		"citescape_viewport_loads_total",
		metric.WithDescription("Total viewport loads completed"),
	)
	if err != nil {
		return nil, err
	}
	in.loadingFailures, err = meter.Int64Counter(
		"citescape_viewport_load_failures_total",
		metric.WithDescription("Total viewport loads that failed"),
	)
	if err != nil {
		return nil, err
	}
	in.nodesLoaded, err = meter.Int64Counter(
		"citescape_nodes_loaded_total",
		metric.WithDescription("Total nodes added to the loaded graph"),
	)
	if err != nil {
		return nil, err
	}
	in.nodesEvicted, err = meter.Int64Counter(
		"citescape_nodes_evicted_total",
		metric.WithDescription("Total nodes evicted by the priority heap"),
	)
	if err != nil {
		return nil, err
	}
	in.edgesLoaded, err = meter.Int64Counter(
		"citescape_edges_loaded_total",
		metric.WithDescription("Total edges added to the loaded graph"),
	)
	if err != nil {
		return nil, err
	}
	in.searchTotal, err = meter.Int64Counter(
		"citescape_search_highlights_total",
		metric.WithDescription("Total search-and-highlight resolutions"),
	)
	if err != nil {
		return nil, err
	}
	in.searchFailures, err = meter.Int64Counter(
		"citescape_search_failures_total",
		metric.WithDescription("Total search-and-highlight failures"),
	)
	if err != nil {
		return nil, err
	}
	return in, nil
}

// Attach subscribes the instruments to a coordinator's event bus. The
// returned func unsubscribes all of them.
func (in *Instruments) Attach(bus *events.Bus) func() {
	ctx := context.Background()

	subs := []events.Subscription{
		bus.On(events.LoadingStarted, func(events.Event) {
			in.mu.Lock()
			in.loadStartedAt = time.Now()
			in.mu.Unlock()
		}),
		bus.On(events.LoadingCompleted, func(events.Event) {
			in.recordLoadEnd(ctx)
			in.loadingTotal.Add(ctx, 1)
		}),
		bus.On(events.LoadingFailed, func(events.Event) {
			in.recordLoadEnd(ctx)
			in.loadingFailures.Add(ctx, 1)
		}),
		bus.On(events.NodesAdded, func(ev events.Event) {
			if ids, ok := ev.Payload.([]string); ok {
				in.nodesLoaded.Add(ctx, int64(len(ids)))
			}
		}),
		bus.On(events.NodesRemoved, func(ev events.Event) {
			if ids, ok := ev.Payload.([]string); ok {
				in.nodesEvicted.Add(ctx, int64(len(ids)))
			}
		}),
		bus.On(events.EdgesAdded, func(ev events.Event) {
			if n, ok := ev.Payload.(int); ok {
				in.edgesLoaded.Add(ctx, int64(n))
			}
		}),
		bus.On(events.SearchHighlighted, func(events.Event) {
			in.searchTotal.Add(ctx, 1)
		}),
		bus.On(events.SearchFailed, func(events.Event) {
			in.searchFailures.Add(ctx, 1)
		}),
	}

	return func() {
		for _, sub := range subs {
			bus.Off(sub)
		}
	}
}

func (in *Instruments) recordLoadEnd(ctx context.Context) {
	in.mu.Lock()
	started := in.loadStartedAt
	in.mu.Unlock()
	if started.IsZero() {
		return
	}
	in.loadingDuration.Record(ctx, time.Since(started).Seconds())
}
