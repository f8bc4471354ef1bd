// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, tt.level.String())
		})
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, LevelDebug.toSlogLevel())
	require.Equal(t, slog.LevelInfo, LevelInfo.toSlogLevel())
	require.Equal(t, slog.LevelWarn, LevelWarn.toSlogLevel())
	require.Equal(t, slog.LevelError, LevelError.toSlogLevel())
	require.Equal(t, slog.LevelInfo, Level(99).toSlogLevel(), "an unrecognized level falls back to Info")
}

// newBufferedLogger builds a Logger whose stderr handler writes JSON
// into buf instead of os.Stderr, so assertions can inspect structured
// output without capturing the real stderr fd.
func newBufferedLogger(buf *bytes.Buffer, level Level) *Logger {
	opts := &slog.HandlerOptions{Level: level.toSlogLevel()}
	handler := slog.NewJSONHandler(buf, opts)
	return &Logger{slog: slog.New(handler)}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferedLogger(&buf, LevelWarn)

	log.Debug("should not appear")
	log.Info("should not appear either")
	log.Warn("this warn line appears")
	log.Error("this error line appears")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	require.Equal(t, "this warn line appears", lines[0]["msg"])
	require.Equal(t, "this error line appears", lines[1]["msg"])
}

func TestLogger_With_AttachesAttrsToSubsequentLines(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferedLogger(&buf, LevelDebug)

	child := log.With("request_id", "r-1")
	child.Info("handled")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "r-1", lines[0]["request_id"])
}

func TestLogger_WithNode(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferedLogger(&buf, LevelDebug)

	log.WithNode("paper-42").Info("loaded")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "paper-42", lines[0][NodeAttrKey])
}

func TestLogger_WithLOD(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferedLogger(&buf, LevelDebug)

	log.WithLOD(2).Info("resolved")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.EqualValues(t, 2, lines[0][LODAttrKey])
}

func TestNodeAttr_LODAttr_TileAttr(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferedLogger(&buf, LevelDebug)

	log.Info("tile evicted", NodeAttr("n-1"), LODAttr(3), TileAttr("1:2:3:4"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "n-1", lines[0][NodeAttrKey])
	require.EqualValues(t, 3, lines[0][LODAttrKey])
	require.Equal(t, "1:2:3:4", lines[0][TileAttrKey])
}

func TestLogger_Slog_ExposesUnderlyingLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferedLogger(&buf, LevelDebug)

	log.Slog().Info("via raw slog")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "via raw slog", lines[0]["msg"])
}

func TestNew_TextVsJSON(t *testing.T) {
	jsonLogger := New(Config{Level: LevelInfo, Service: "citescape", JSON: true})
	require.NotNil(t, jsonLogger)
	require.NoError(t, jsonLogger.Close())

	textLogger := New(Config{Level: LevelInfo, Service: "citescape"})
	require.NotNil(t, textLogger)
	require.NoError(t, textLogger.Close())
}

func TestDefault(t *testing.T) {
	log := Default()
	require.NotNil(t, log)
	require.NoError(t, log.Close(), "a Logger with no LogDir has nothing to sync or close")
}

func TestNew_LogDirWritesToFile(t *testing.T) {
	dir := t.TempDir()
	log := New(Config{Level: LevelDebug, Service: "citescape-test", LogDir: dir})
	log.Info("line one")
	require.NoError(t, log.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasPrefix(entries[0].Name(), "citescape-test_"))

	contents, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(contents), "line one")
	require.Contains(t, string(contents), `"service":"citescape-test"`)
}

func TestNew_LogDirFailureFallsBackToStderrOnly(t *testing.T) {
	// A file, not a directory: MkdirAll on a path through it fails, so
	// New must fall back to stderr-only rather than erroring out.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	log := New(Config{Level: LevelInfo, Service: "citescape", LogDir: filepath.Join(blocker, "logs")})
	require.NotNil(t, log)
	require.NoError(t, log.Close(), "no file was ever opened, so Close is a no-op")
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "logs"), expandHome("~/logs"))
	require.Equal(t, "/var/log/citescape", expandHome("/var/log/citescape"))
}

func TestMultiHandler_FansOutToEveryHandler(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	}}
	log := slog.New(h)
	log.Info("fan out")

	require.Contains(t, a.String(), "fan out")
	require.Contains(t, b.String(), "fan out")
}

func TestMultiHandler_EnabledIsTrueIfAnyHandlerEnabled(t *testing.T) {
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}}
	require.True(t, h.Enabled(context.Background(), slog.LevelDebug), "the debug-level handler still accepts it")
	require.False(t, h.Enabled(context.Background(), slog.LevelError+100), "no handler accepts a level this high")
}

func TestMultiHandler_WithAttrsAppliesToEveryHandler(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	}}
	tagged := h.WithAttrs([]slog.Attr{slog.String("service", "citescape")})
	slog.New(tagged).Info("tagged")

	require.Contains(t, a.String(), `"service":"citescape"`)
	require.Contains(t, b.String(), `"service":"citescape"`)
}

func TestMultiHandler_WithGroupAppliesToEveryHandler(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	}}
	grouped := h.WithGroup("req")
	slog.New(grouped).Info("grouped", "id", "r-1")

	require.Contains(t, a.String(), `"req":{"id":"r-1"}`)
	require.Contains(t, b.String(), `"req":{"id":"r-1"}`)
}
