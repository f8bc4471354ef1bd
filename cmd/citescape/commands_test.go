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
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/citescape-io/citescape/services/graphstream/backend"
	"github.com/citescape-io/citescape/services/graphstream/edgestore"
	"github.com/citescape-io/citescape/services/graphstream/events"
	"github.com/citescape-io/citescape/services/graphstream/nodestore"
	"github.com/citescape-io/citescape/services/graphstream/search"
)

func newTestEngine(t *testing.T) *engine {
	t.Helper()
	edges := edgestore.New(nil)
	nodes := nodestore.New(edges)
	client := backend.NewClient("http://127.0.0.1:0")
	style := func(nodestore.Node) search.Style { return search.Style{} }
	return &engine{
		bus:    events.New(),
		search: search.New(search.Config{TopK: 5, FocusCap: 3}, client, nodes, edges, style),
		nodes:  nodes,
		edges:  edges,
	}
}

func TestHandleSearch_EmptyQueryIsRejected(t *testing.T) {
	eng := newTestEngine(t)
	// handleSearch only writes to stderr and returns on empty query; it
	// must not panic or attempt to call the coordinator.
	require.NotPanics(t, func() {
		handleSearch(context.Background(), eng, "")
	})
}

func TestHandlePan_RejectsTooFewArguments(t *testing.T) {
	eng := newTestEngine(t)
	// Fewer than two numeric fields means handlePan must bail out before
	// touching eng.coord, which is nil in this fixture.
	require.NotPanics(t, func() {
		handlePan(eng, []string{"1.0"})
	})
}
