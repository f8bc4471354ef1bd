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
Package viewport is the Viewport Service (C3): it owns the camera,
projects screen corners to world bounds, guards against pathological
cameras (non-finite or zero-area bounds), and delivers debounced change
notifications to the Graph Coordinator.
*/
package viewport

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// Bounds is an axis-aligned world-space rectangle.
type Bounds struct {
	MinX, MaxX, MinY, MaxY float64
}

// Area returns the rectangle's area; zero or negative indicates a
// degenerate viewport.
func (b Bounds) Area() float64 {
	return (b.MaxX - b.MinX) * (b.MaxY - b.MinY)
}

// IsFinite reports whether every field is a finite real number.
func (b Bounds) IsFinite() bool {
	return isFinite(b.MinX) && isFinite(b.MaxX) && isFinite(b.MinY) && isFinite(b.MaxY)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Camera is the viewport's position, zoom (ratio), rotation, and flip
// state, in world-space terms.
type Camera struct {
	CenterX, CenterY float64
	Ratio            float64 // positive real; larger = more zoomed out
	RotationRadians  float64
	FlipX, FlipY     bool
}

// Corner describes the client-side screen dimensions used to project
// to world bounds.
type Corner struct {
	Width, Height float64
}

// Config configures a Service.
type Config struct {
	// DebounceDelay is how long the camera must be unchanged before a
	// change notification fires. Default 120–500ms per spec.md; callers
	// should source this from performance config, not hardcode it.
	DebounceDelay time.Duration

	// StabilityEpsilon is the minimum camera movement (world units, on
	// center; ratio delta uses the same epsilon) that counts as "moved".
	StabilityEpsilon float64

	// FallbackBounds is returned (and the camera reset to it) whenever
	// the camera produces non-finite or zero-area bounds.
	FallbackBounds Bounds

	// Logger receives warnings about pathological camera states.
	Logger *slog.Logger
}

// ChangeCallback is invoked (debounced) after the viewport settles on a
// new, stable set of bounds.
type ChangeCallback func(Bounds)

// Service is the Viewport Service (C3). It is safe for concurrent use;
// SetCamera/SetViewportSize may be called from any goroutine, and
// onViewportChange callbacks fire from an internal timer goroutine.
type Service struct {
	cfg Config

	mu       sync.Mutex
	camera   Camera
	corner   Corner
	lastSent Bounds
	haveSent bool

	timer   *time.Timer
	pending bool

	callbacksMu sync.Mutex
	callbacks   []ChangeCallback
}

// New creates a Service with an initial camera and screen size.
func New(cfg Config, initial Camera, corner Corner) *Service {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 200 * time.Millisecond
	}
	if cfg.StabilityEpsilon <= 0 {
		cfg.StabilityEpsilon = 1e-6
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Service{cfg: cfg, camera: initial, corner: corner}
	if !s.validCamera(initial, corner) {
		s.camera = s.resetCamera()
	}
	return s
}

// OnViewportChange registers a callback invoked (debounced) whenever
// GetCurrentBounds settles on a materially different rectangle.
func (s *Service) OnViewportChange(cb ChangeCallback) {
	s.callbacksMu.Lock()
	defer s.callbacksMu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// GetCurrentBounds projects the current camera and screen corners to
// world bounds. A pathological result resets the camera to the
// configured fallback and returns that fallback instead of propagating
// NaN/Inf or a zero-area rectangle.
func (s *Service) GetCurrentBounds() Bounds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentBoundsLocked()
}

func (s *Service) currentBoundsLocked() Bounds {
	b := project(s.camera, s.corner)
	if !b.IsFinite() || b.Area() <= 0 {
		s.cfg.Logger.Warn("pathological camera detected, resetting to fallback bounds",
			slog.Float64("center_x", s.camera.CenterX),
			slog.Float64("center_y", s.camera.CenterY),
			slog.Float64("ratio", s.camera.Ratio))
		s.camera = s.resetCamera()
		return s.cfg.FallbackBounds
	}
	return b
}

// resetCamera must be called with mu held (or before any lock exists, in
// New). Returns the camera that projects to FallbackBounds.
func (s *Service) resetCamera() Camera {
	fb := s.cfg.FallbackBounds
	return Camera{
		CenterX: (fb.MinX + fb.MaxX) / 2,
		CenterY: (fb.MinY + fb.MaxY) / 2,
		Ratio:   1,
	}
}

func (s *Service) validCamera(cam Camera, corner Corner) bool {
	b := project(cam, corner)
	return b.IsFinite() && b.Area() > 0
}

// project converts the camera and screen corners to world bounds by
// transforming all four screen corners (handles rotation and flip) and
// taking the resulting axis-aligned bounding box.
func project(cam Camera, corner Corner) Bounds {
	if !isFinite(cam.CenterX) || !isFinite(cam.CenterY) || !isFinite(cam.Ratio) || cam.Ratio <= 0 {
		return Bounds{}
	}
	if corner.Width <= 0 || corner.Height <= 0 {
		return Bounds{}
	}

	halfW := corner.Width / 2 * cam.Ratio
	halfH := corner.Height / 2 * cam.Ratio

	corners := [4][2]float64{
		{-halfW, -halfH}, {halfW, -halfH}, {halfW, halfH}, {-halfW, halfH},
	}

	sin, cos := math.Sin(cam.RotationRadians), math.Cos(cam.RotationRadians)
	fx, fy := 1.0, 1.0
	if cam.FlipX {
		fx = -1
	}
	if cam.FlipY {
		fy = -1
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		x, y := c[0]*fx, c[1]*fy
		rx := x*cos - y*sin
		ry := x*sin + y*cos
		wx := cam.CenterX + rx
		wy := cam.CenterY + ry
		minX, maxX = math.Min(minX, wx), math.Max(maxX, wx)
		minY, maxY = math.Min(minY, wy), math.Max(maxY, wy)
	}
	return Bounds{MinX: minX, MaxX: maxX, MinY: minY, MaxY: maxY}
}

// CenterOn moves the camera to (x, y), optionally adjusting its ratio,
// and schedules a debounced change notification.
func (s *Service) CenterOn(x, y float64, ratio *float64) {
	s.mu.Lock()
	s.camera.CenterX = x
	s.camera.CenterY = y
	if ratio != nil {
		s.camera.Ratio = *ratio
	}
	s.mu.Unlock()
	s.scheduleNotify()
}

// SetCamera replaces the full camera state (used by pan/zoom/rotate
// gestures) and schedules a debounced change notification.
func (s *Service) SetCamera(cam Camera) {
	s.mu.Lock()
	s.camera = cam
	s.mu.Unlock()
	s.scheduleNotify()
}

// SetViewportSize updates the screen dimensions (e.g. on window resize)
// and schedules a debounced change notification.
func (s *Service) SetViewportSize(corner Corner) {
	s.mu.Lock()
	s.corner = corner
	s.mu.Unlock()
	s.scheduleNotify()
}

// CameraRatio returns the camera's current zoom ratio, which the LOD
// resolver maps to a detail level.
func (s *Service) CameraRatio() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera.Ratio
}

// HasMovedSignificantly reports whether the camera has changed by more
// than StabilityEpsilon since the last time GetCurrentBounds was
// delivered via a change notification.
func (s *Service) HasMovedSignificantly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveSent {
		return true
	}
	b := s.currentBoundsLocked()
	eps := s.cfg.StabilityEpsilon
	return math.Abs(b.MinX-s.lastSent.MinX) > eps ||
		math.Abs(b.MaxX-s.lastSent.MaxX) > eps ||
		math.Abs(b.MinY-s.lastSent.MinY) > eps ||
		math.Abs(b.MaxY-s.lastSent.MaxY) > eps
}

func (s *Service) scheduleNotify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.DebounceDelay, s.fireNotify)
}

func (s *Service) fireNotify() {
	s.mu.Lock()
	s.pending = false
	b := s.currentBoundsLocked()
	s.lastSent = b
	s.haveSent = true
	s.mu.Unlock()

	s.callbacksMu.Lock()
	callbacks := make([]ChangeCallback, len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.callbacksMu.Unlock()
	for _, cb := range callbacks {
		cb(b)
	}
}
