// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package viewport

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		DebounceDelay:    20 * time.Millisecond,
		StabilityEpsilon: 1e-6,
		FallbackBounds:   Bounds{MinX: -500, MaxX: 500, MinY: -500, MaxY: 500},
	}
}

func TestService_GetCurrentBounds_Basic(t *testing.T) {
	svc := New(testConfig(), Camera{CenterX: 0, CenterY: 0, Ratio: 1}, Corner{Width: 100, Height: 100})
	b := svc.GetCurrentBounds()
	require.True(t, b.IsFinite())
	require.Greater(t, b.Area(), 0.0)
	require.InDelta(t, -50, b.MinX, 0.001)
	require.InDelta(t, 50, b.MaxX, 0.001)
}

func TestService_ZeroDimensionCorner_ReturnsFallback(t *testing.T) {
	cfg := testConfig()
	svc := New(cfg, Camera{CenterX: 0, CenterY: 0, Ratio: 1}, Corner{Width: 0, Height: 0})
	b := svc.GetCurrentBounds()
	require.Equal(t, cfg.FallbackBounds, b)
}

func TestService_NonFiniteCamera_ResetsToFallback(t *testing.T) {
	cfg := testConfig()
	svc := New(cfg, Camera{CenterX: math.NaN(), CenterY: 0, Ratio: 1}, Corner{Width: 100, Height: 100})
	b := svc.GetCurrentBounds()
	require.Equal(t, cfg.FallbackBounds, b)
}

func TestService_CenterOn_MovesCameraAndDebounces(t *testing.T) {
	svc := New(testConfig(), Camera{CenterX: 0, CenterY: 0, Ratio: 1}, Corner{Width: 100, Height: 100})

	var mu sync.Mutex
	var received []Bounds
	svc.OnViewportChange(func(b Bounds) {
		mu.Lock()
		received = append(received, b)
		mu.Unlock()
	})

	for i := 0; i < 5; i++ {
		svc.CenterOn(float64(i), 0, nil)
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1, "rapid moves should coalesce into a single debounced notification")
	require.InDelta(t, -46, received[0].MinX, 0.001) // centered on x=4
}

func TestService_RotatedAndFlippedProjection(t *testing.T) {
	svc := New(testConfig(), Camera{CenterX: 0, CenterY: 0, Ratio: 1, RotationRadians: math.Pi / 2}, Corner{Width: 100, Height: 200})
	b := svc.GetCurrentBounds()
	require.True(t, b.IsFinite())
	require.Greater(t, b.Area(), 0.0)
}

func TestService_HasMovedSignificantly(t *testing.T) {
	svc := New(testConfig(), Camera{CenterX: 0, CenterY: 0, Ratio: 1}, Corner{Width: 100, Height: 100})
	require.True(t, svc.HasMovedSignificantly(), "never-sent viewport always counts as moved")

	svc.fireNotify() // simulate a delivered notification
	require.False(t, svc.HasMovedSignificantly())

	svc.CenterOn(1000, 1000, nil)
	require.True(t, svc.HasMovedSignificantly())
}
