// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging wraps log/slog for citescape's CLI and engine
// components: stderr by default, an optional JSON log file, and a
// small set of attribute constructors for the fields the Graph
// Coordinator and Spatial Cache attach to nearly every log line —
// node_id, lod_level, tile_hash — so every component spells them the
// same way instead of each caller inventing its own key.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Level represents log severity, ordered Debug < Info < Warn < Error.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures a Logger. A zero-value Config logs Debug+ to stderr
// as text.
type Config struct {
	// Level is the minimum level that reaches any sink.
	Level Level

	// Service tags every log line with a "service" attribute.
	Service string

	// JSON switches stderr output from text to JSON.
	JSON bool

	// LogDir, if set, additionally writes JSON logs to
	// "{LogDir}/{Service}_{YYYY-MM-DD}.log". Supports a leading "~" for
	// home-directory expansion. The directory is created (0750) if
	// missing; a failure to create it or open the file is non-fatal —
	// the logger falls back to stderr-only.
	LogDir string
}

// Logger wraps slog.Logger with optional simultaneous file output and
// proper Close semantics for the file handle.
type Logger struct {
	slog *slog.Logger
	file *os.File
}

// New builds a Logger from config.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	var stderrHandler slog.Handler
	if config.JSON {
		stderrHandler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		stderrHandler = slog.NewTextHandler(os.Stderr, opts)
	}

	l := &Logger{}
	handler := stderrHandler

	if config.LogDir != "" {
		if file, fileHandler := openFileHandler(config, opts); file != nil {
			l.file = file
			handler = &multiHandler{handlers: []slog.Handler{stderrHandler, fileHandler}}
		}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	l.slog = slog.New(handler)
	return l
}

func openFileHandler(config Config, opts *slog.HandlerOptions) (*os.File, slog.Handler) {
	dir := expandHome(config.LogDir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, nil
	}
	service := config.Service
	if service == "" {
		service = "citescape"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil
	}
	return file, slog.NewJSONHandler(file, opts)
}

func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// Default returns an Info-level, stderr-only, text-format Logger
// tagged with service "citescape".
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "citescape"})
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a child Logger carrying args on every subsequent line,
// sharing the parent's file handle.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), file: l.file}
}

// WithNode returns a child Logger tagged with the node the caller is
// about to act on.
func (l *Logger) WithNode(nodeID string) *Logger {
	return l.With(NodeAttrKey, nodeID)
}

// WithLOD returns a child Logger tagged with a level-of-detail index.
func (l *Logger) WithLOD(level int) *Logger {
	return l.With(LODAttrKey, level)
}

// Slog exposes the underlying *slog.Logger for components that take a
// plain slog.Logger rather than this wrapper (most of
// services/graphstream does, so the two compose directly).
func (l *Logger) Slog() *slog.Logger { return l.slog }

// Close syncs and closes the log file, if one is open. Safe to call on
// a Logger with no file configured.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return fmt.Errorf("sync log file: %w", err)
	}
	return l.file.Close()
}

// Attribute keys shared across the Graph Coordinator and Spatial Cache
// so a node_id, a lod_level, and a tile_hash
// are always spelled the same way regardless of which component logs
// them.
const (
	NodeAttrKey = "node_id"
	LODAttrKey  = "lod_level"
	TileAttrKey = "tile_hash"
)

// NodeAttr builds the structured attribute a log line attaches when it
// concerns a specific graph node.
func NodeAttr(nodeID string) slog.Attr { return slog.String(NodeAttrKey, nodeID) }

// LODAttr builds the structured attribute for the level-of-detail
// index a log line concerns.
func LODAttr(level int) slog.Attr { return slog.Int(LODAttrKey, level) }

// TileAttr builds the structured attribute for the spatial cache tile
// hash a log line concerns.
func TileAttr(hash string) slog.Attr { return slog.String(TileAttrKey, hash) }

// multiHandler fans a record out to multiple slog handlers, used to
// write stderr and a JSON log file simultaneously in potentially
// different formats.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
