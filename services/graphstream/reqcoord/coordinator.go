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

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/citescape-io/citescape/services/graphstream/cancel"
)

// Coordinator is the Request Coordinator (C1): a process-wide singleton
// whose lifecycle matches its owning Graph Coordinator.
//
// Thread safety: Queue and the cancellation methods are safe for
// concurrent use.
type Coordinator struct {
	cfg    Config
	log    *slog.Logger
	group  *cancel.Group
	sem    *semaphore.Weighted
	limit  *rate.Limiter
	seq    atomic.Uint64
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	byKey   map[string]*request
	queue   requestQueue
	wake    chan struct{}
	closed  bool
	stopped chan struct{}
}

// New creates a Coordinator and starts its dispatch loop. Call Destroy
// to stop the loop and cancel everything in flight.
func New(cfg Config, log *slog.Logger) *Coordinator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if cfg.ThrottleMinGap <= 0 {
		cfg.ThrottleMinGap = DefaultConfig().ThrottleMinGap
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultConfig().StaleAfter
	}
	if cfg.QueuePollPeriod <= 0 {
		cfg.QueuePollPeriod = DefaultConfig().QueuePollPeriod
	}
	if log == nil {
		log = slog.Default()
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	c := &Coordinator{
		cfg:     cfg,
		log:     log,
		group:   cancel.NewGroup(ctx),
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		limit:   rate.NewLimiter(rate.Every(cfg.ThrottleMinGap), 1),
		ctx:     ctx,
		cancel:  cancelFn,
		byKey:   make(map[string]*request),
		queue:   requestQueue{},
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go c.dispatchLoop()
	return c
}

// Queue submits work under key with the given kind and priority,
// blocking until it runs (or is dropped stale/cancelled) and returns.
// If a request with the same key is already active or queued, it is
// cancelled and replaced.
func (c *Coordinator) Queue(kind Kind, key string, pri Priority, execute Execute) Result {
	r := &request{
		key:        key,
		kind:       kind,
		priority:   pri,
		execute:    execute,
		enqueuedAt: time.Now().UnixMilli(),
		seq:        c.seq.Add(1),
		index:      -1,
		resultCh:   make(chan Result, 1),
	}
	r.score = pri.score(kind)

	tok, err := c.group.Spawn(key)
	if err != nil {
		return Result{Err: err}
	}
	r.tok = tok

	c.mu.Lock()
	if existing, ok := c.byKey[key]; ok {
		existing.tok.Cancel(cancel.ReasonUser, "superseded by newer request for same key")
		if existing.index >= 0 {
			heap.Remove(&c.queue, existing.index)
		}
	}
	c.byKey[key] = r
	heap.Push(&c.queue, r)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}

	select {
	case res := <-r.resultCh:
		return res
	case <-c.ctx.Done():
		return Result{Cancelled: true, Err: ErrCancelled}
	}
}

// CancelKey cancels the active or queued request for key, if any.
func (c *Coordinator) CancelKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.byKey[key]; ok {
		r.tok.Cancel(cancel.ReasonUser, "cancelled by key")
	}
}

// CancelKind cancels every active or queued request of the given kind.
func (c *Coordinator) CancelKind(kind Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.byKey {
		if r.kind == kind {
			r.tok.Cancel(cancel.ReasonUser, "cancelled by kind")
		}
	}
}

// EmergencyReset cancels everything in flight and empties the queue.
func (c *Coordinator) EmergencyReset() {
	c.group.CancelAll(cancel.ReasonDestroy, "emergency reset")
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.queue) > 0 {
		heap.Pop(&c.queue)
	}
	c.byKey = make(map[string]*request)
}

// Destroy stops the dispatch loop and cancels everything transitively.
func (c *Coordinator) Destroy() {
	c.EmergencyReset()
	c.mu.Lock()
	already := c.closed
	c.closed = true
	c.mu.Unlock()
	if already {
		return
	}
	c.cancel()
	<-c.stopped
}

// dispatchLoop pulls the highest-priority non-stale request, waits for
// a concurrency slot and the throttle interval, then runs it.
func (c *Coordinator) dispatchLoop() {
	defer close(c.stopped)
	ticker := time.NewTicker(c.cfg.QueuePollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
		case <-ticker.C:
		}
		c.drainReady()
	}
}

func (c *Coordinator) drainReady() {
	for {
		r := c.popNext()
		if r == nil {
			return
		}
		if c.isStale(r) {
			r.resultCh <- Result{Cancelled: true, Err: ErrStale}
			c.forget(r)
			continue
		}
		if r.tok.State() != cancel.StateRunning {
			r.resultCh <- Result{Cancelled: true, Err: ErrCancelled}
			c.forget(r)
			continue
		}

		if !c.sem.TryAcquire(1) {
			c.requeue(r)
			return
		}
		if err := c.limit.Wait(c.ctx); err != nil {
			c.sem.Release(1)
			c.requeue(r)
			return
		}
		go c.run(r)
	}
}

func (c *Coordinator) run(r *request) {
	defer c.sem.Release(1)
	defer r.tok.MarkDone()

	val, err := r.execute(r.tok)

	c.mu.Lock()
	if current, ok := c.byKey[r.key]; ok && current == r {
		delete(c.byKey, r.key)
	}
	c.mu.Unlock()

	if r.tok.State() == cancel.StateCancelling {
		r.tok.MarkCancelled()
		r.resultCh <- Result{Cancelled: true, Err: ErrCancelled}
		return
	}
	r.resultCh <- Result{Value: val, Err: err}
}

func (c *Coordinator) popNext() *request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil
	}
	return heap.Pop(&c.queue).(*request)
}

func (c *Coordinator) requeue(r *request) {
	c.mu.Lock()
	heap.Push(&c.queue, r)
	c.mu.Unlock()
}

func (c *Coordinator) forget(r *request) {
	c.mu.Lock()
	if current, ok := c.byKey[r.key]; ok && current == r {
		delete(c.byKey, r.key)
	}
	c.mu.Unlock()
	r.tok.MarkCancelled()
}

func (c *Coordinator) isStale(r *request) bool {
	age := time.Since(time.UnixMilli(r.enqueuedAt))
	return age > c.cfg.StaleAfter
}
