// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reqcoord

import "github.com/citescape-io/citescape/services/graphstream/cancel"

// request is one queued or running unit of work.
type request struct {
	key      string
	kind     Kind
	priority Priority
	execute  Execute

	tok        *cancel.Token
	enqueuedAt int64 // unix millis
	seq        uint64
	score      int

	resultCh chan Result
	index    int // slot in the priority queue's array; -1 when not queued
}

// requestQueue is a max-heap over score, broken by FIFO (lower seq
// wins) so ties resolve in arrival order, exactly as spec.md requires
// ("highest-priority first, FIFO within ties").
type requestQueue []*request

func (q requestQueue) Len() int { return len(q) }

func (q requestQueue) Less(i, j int) bool {
	if q[i].score != q[j].score {
		return q[i].score > q[j].score
	}
	return q[i].seq < q[j].seq
}

func (q requestQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *requestQueue) Push(x any) {
	r := x.(*request)
	r.index = len(*q)
	*q = append(*q, r)
}

func (q *requestQueue) Pop() any {
	old := *q
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	r.index = -1
	*q = old[:n-1]
	return r
}
