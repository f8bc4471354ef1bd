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
Package reqcoord is the Request Coordinator (C1): the process-wide
gatekeeper for every backend fetch. It deduplicates by key, orders
queued work by priority, caps how many fetches run at once, throttles
how fast new fetches start, and drops requests that have sat in the
queue too long to still be useful.
*/
package reqcoord

import (
	"errors"
	"time"

	"github.com/citescape-io/citescape/services/graphstream/cancel"
)

// Kind is the category of a queued request; base priority is assigned
// per kind (bounds > nodes > edges > stats).
type Kind int

const (
	KindBounds Kind = iota
	KindNodes
	KindEdges
	KindStats
)

func (k Kind) basePriority() int {
	switch k {
	case KindBounds:
		return 300
	case KindNodes:
		return 200
	case KindEdges:
		return 100
	default:
		return 0
	}
}

// ErrStale is returned when a queued request aged past its staleness
// budget before it could run.
var ErrStale = errors.New("reqcoord: request went stale before execution")

// ErrCancelled is returned when a request's token was cancelled, either
// directly, by kind, or by an emergency reset. It is not treated as a
// failure by callers that accept an empty result.
var ErrCancelled = errors.New("reqcoord: request cancelled")

// Execute is the work function a caller supplies to Queue. It receives
// the request's own cancellation token and returns a result or error.
type Execute func(tok *cancel.Token) (any, error)

// Priority carries the inputs to the priority formula: base-by-kind
// plus a user-initiated bump plus a decreasing bonus for finer LOD.
type Priority struct {
	UserInitiated bool
	LODLevel      int // 0 = finest; higher levels score lower
}

func (p Priority) score(kind Kind) int {
	s := kind.basePriority()
	if p.UserInitiated {
		s += 50
	}
	s += 10 - p.LODLevel
	return s
}

// Config tunes the coordinator's concurrency, throttle, and staleness
// budgets. Zero-valued fields fall back to DefaultConfig's values.
type Config struct {
	MaxConcurrent   int
	ThrottleMinGap  time.Duration
	StaleAfter      time.Duration
	QueuePollPeriod time.Duration
}

// DefaultConfig returns spec-mandated defaults: C_max=3, 100ms throttle,
// 15s staleness, polling at 10ms.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:   3,
		ThrottleMinGap:  100 * time.Millisecond,
		StaleAfter:      15 * time.Second,
		QueuePollPeriod: 10 * time.Millisecond,
	}
}

// Result is what Queue returns: either a value or a non-nil error. A
// cancelled or stale request has Cancelled set and Err set to
// ErrCancelled or ErrStale — callers check Cancelled.
type Result struct {
	Value     any
	Err       error
	Cancelled bool
}
