// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/citescape-io/citescape/services/graphstream/events"
)

func TestInstruments_AttachRecordsLoadLifecycle(t *testing.T) {
	in, err := NewInstruments()
	require.NoError(t, err)

	bus := events.New()
	detach := in.Attach(bus)
	defer detach()

	bus.Emit(events.Event{Kind: events.LoadingStarted})
	bus.Emit(events.Event{Kind: events.NodesAdded, Payload: []string{"a", "b"}})
	bus.Emit(events.Event{Kind: events.EdgesAdded, Payload: 3})
	bus.Emit(events.Event{Kind: events.LoadingCompleted})
}

func TestInstruments_DetachStopsReceivingEvents(t *testing.T) {
	in, err := NewInstruments()
	require.NoError(t, err)

	bus := events.New()
	detach := in.Attach(bus)
	detach()

	// After detaching, emitting events must not panic even though no
	// handler remains subscribed.
	bus.Emit(events.Event{Kind: events.LoadingStarted})
}
