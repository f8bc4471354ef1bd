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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/citescape-io/citescape/services/graphstream/cancel"
)

func fastConfig() Config {
	return Config{
		MaxConcurrent:   2,
		ThrottleMinGap:  time.Millisecond,
		StaleAfter:      2 * time.Second,
		QueuePollPeriod: time.Millisecond,
	}
}

func TestCoordinator_RunsSubmittedWork(t *testing.T) {
	c := New(fastConfig(), nil)
	defer c.Destroy()

	res := c.Queue(KindNodes, "k1", Priority{}, func(tok *cancel.Token) (any, error) {
		return "done", nil
	})
	require.NoError(t, res.Err)
	require.Equal(t, "done", res.Value)
}

func TestCoordinator_DedupCancelsSuperseded(t *testing.T) {
	c := New(fastConfig(), nil)
	defer c.Destroy()

	var wg sync.WaitGroup
	wg.Add(1)

	var firstCancelled atomic.Bool
	go func() {
		defer wg.Done()
		res := c.Queue(KindNodes, "same-key", Priority{}, func(tok *cancel.Token) (any, error) {
			<-tok.Done()
			firstCancelled.Store(true)
			return nil, nil
		})
		require.True(t, res.Cancelled)
	}()

	time.Sleep(20 * time.Millisecond) // let the first request start running
	res2 := c.Queue(KindNodes, "same-key", Priority{}, func(tok *cancel.Token) (any, error) {
		return "second", nil
	})
	wg.Wait()

	require.NoError(t, res2.Err)
	require.Equal(t, "second", res2.Value)
	require.True(t, firstCancelled.Load())
}

func TestCoordinator_ConcurrencyCapIsRespected(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxConcurrent = 2
	c := New(cfg, nil)
	defer c.Destroy()

	var running atomic.Int32
	var maxSeen atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Queue(KindEdges, string(rune('a'+i)), Priority{}, func(tok *cancel.Token) (any, error) {
				n := running.Add(1)
				for {
					old := maxSeen.Load()
					if n <= old || maxSeen.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil, nil
			})
		}(i)
	}
	wg.Wait()
	require.LessOrEqual(t, int(maxSeen.Load()), 2)
}

func TestCoordinator_HigherPriorityRunsFirstWhenSlotsAreScarce(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxConcurrent = 1
	c := New(cfg, nil)
	defer c.Destroy()

	// Occupy the single slot so subsequent submissions must queue.
	started := make(chan struct{})
	release := make(chan struct{})
	go c.Queue(KindEdges, "blocker", Priority{}, func(tok *cancel.Token) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	var order []string
	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Queue(KindEdges, "low", Priority{LODLevel: 9}, func(tok *cancel.Token) (any, error) {
			mu.Lock()
			order = append(order, "low")
			mu.Unlock()
			return nil, nil
		})
	}()
	time.Sleep(5 * time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Queue(KindBounds, "high", Priority{UserInitiated: true}, func(tok *cancel.Token) (any, error) {
			mu.Lock()
			order = append(order, "high")
			mu.Unlock()
			return nil, nil
		})
	}()
	time.Sleep(5 * time.Millisecond)

	close(release)
	wg.Wait()

	require.Equal(t, []string{"high", "low"}, order)
}

func TestCoordinator_StaleRequestDropped(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxConcurrent = 1
	cfg.StaleAfter = 10 * time.Millisecond
	c := New(cfg, nil)
	defer c.Destroy()

	started := make(chan struct{})
	release := make(chan struct{})
	go c.Queue(KindEdges, "blocker", Priority{}, func(tok *cancel.Token) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- c.Queue(KindEdges, "will-go-stale", Priority{}, func(tok *cancel.Token) (any, error) {
			return "ran", nil
		})
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)

	res := <-resultCh
	require.ErrorIs(t, res.Err, ErrStale)
}

func TestCoordinator_EmergencyResetCancelsEverything(t *testing.T) {
	c := New(fastConfig(), nil)
	defer c.Destroy()

	resultCh := make(chan Result, 1)
	started := make(chan struct{})
	go func() {
		resultCh <- c.Queue(KindNodes, "k", Priority{}, func(tok *cancel.Token) (any, error) {
			close(started)
			<-tok.Done()
			return nil, nil
		})
	}()
	<-started

	c.EmergencyReset()
	res := <-resultCh
	require.True(t, res.Cancelled)
}
