// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCreateDefault(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, ".citescape", "citescape.yaml")

	require.NoError(t, createDefault(configPath))
	require.FileExists(t, configPath)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)

	var cfg Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	require.Equal(t, CurrentConfigVersion, cfg.Meta.Version)
	require.Equal(t, 1.0, cfg.LOD.Thresholds.Paper)
	require.Less(t, cfg.LOD.Thresholds.Paper, cfg.LOD.Thresholds.Topic)
	require.Less(t, cfg.LOD.Thresholds.Topic, cfg.LOD.Thresholds.Field)
	require.Less(t, cfg.LOD.Thresholds.Field, cfg.LOD.Thresholds.Universe)
}

func TestCreateDefault_NestedDirectoryCreation(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "deep", "nested", "path", "citescape.yaml")

	require.NoError(t, createDefault(configPath))
	require.DirExists(t, filepath.Dir(configPath))
}

func TestReadAndValidate_AcceptsDefault(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "citescape.yaml")
	require.NoError(t, createDefault(configPath))

	cfg, err := readAndValidate(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, 20_000, cfg.Memory.MaxTotalNodes)
}

func TestReadAndValidate_RejectsDescendingThresholds(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "citescape.yaml")

	bad := Default()
	bad.LOD.Thresholds.Universe = 0.5 // violates gtfield=Field
	data, err := yaml.Marshal(bad)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configPath, data, 0644))

	_, err = readAndValidate(configPath)
	require.Error(t, err)
}

func TestReadAndValidate_RejectsMissingRequiredColor(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "citescape.yaml")

	bad := Default()
	bad.Visual.Nodes.DefaultColor = ""
	data, err := yaml.Marshal(bad)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configPath, data, 0644))

	_, err = readAndValidate(configPath)
	require.Error(t, err)
}

func TestWatcher_HotReloadsOnValidEdit(t *testing.T) {
	tempDir := t.TempDir()
	origHome := os.Getenv("HOME")
	require.NoError(t, os.Setenv("HOME", tempDir))
	t.Cleanup(func() { os.Setenv("HOME", origHome) })

	once = sync.Once{}
	loadErr = nil
	require.NoError(t, Load())

	path, err := configPath()
	require.NoError(t, err)

	w, err := NewWatcher()
	require.NoError(t, err)
	defer w.Close()

	reloaded := make(chan *Config, 1)
	w.OnReload(func(c *Config) { reloaded <- c })

	updated := Default()
	updated.Memory.MaxTotalNodes = 5
	data, err := yaml.Marshal(updated)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	select {
	case c := <-reloaded:
		require.Equal(t, 5, c.Memory.MaxTotalNodes)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for hot-reload")
	}
}
