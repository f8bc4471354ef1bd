// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBus_EmitDeliversToSubscriber(t *testing.T) {
	b := New()
	var got []Event
	b.On(NodesAdded, func(ev Event) { got = append(got, ev) })

	b.Emit(Event{Kind: NodesAdded, Payload: []string{"a", "b"}})
	require.Len(t, got, 1)
	require.Equal(t, []string{"a", "b"}, got[0].Payload)
}

func TestBus_OffRemovesHandler(t *testing.T) {
	b := New()
	calls := 0
	sub := b.On(Destroyed, func(Event) { calls++ })

	b.Emit(Event{Kind: Destroyed})
	b.Off(sub)
	b.Emit(Event{Kind: Destroyed})

	require.Equal(t, 1, calls)
}

func TestBus_MultipleHandlersAllCalled(t *testing.T) {
	b := New()
	var a, c int
	b.On(StatsUpdated, func(Event) { a++ })
	b.On(StatsUpdated, func(Event) { c++ })

	b.Emit(Event{Kind: StatsUpdated})
	require.Equal(t, 1, a)
	require.Equal(t, 1, c)
}

func TestBus_UnrelatedKindNotDelivered(t *testing.T) {
	b := New()
	calls := 0
	b.On(Error, func(Event) { calls++ })

	b.Emit(Event{Kind: NodesAdded})
	require.Equal(t, 0, calls)
}
