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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// global points at the current validated Config. Replaced atomically
	// on hot-reload; readers should call Current() rather than deref it
	// directly.
	global atomic.Pointer[Config]
	once   sync.Once
	loadErr error

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Current returns the currently loaded configuration. Load must have been
// called (directly, or via Load()) before this returns a non-nil result.
func Current() *Config {
	return global.Load()
}

// Load ensures the config is loaded into the process-wide singleton. Safe
// to call repeatedly and concurrently; only the first call does I/O.
func Load() error {
	once.Do(func() {
		loadErr = loadInternal()
	})
	return loadErr
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".citescape", "citescape.yaml"), nil
}

func loadInternal() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("First run detected, creating the config at %s\n", path)
		if err := createDefault(path); err != nil {
			return err
		}
	}
	cfg, err := readAndValidate(path)
	if err != nil {
		return err
	}
	global.Store(cfg)
	return nil
}

func readAndValidate(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config at %s failed validation: %w", path, err)
	}
	return &cfg, nil
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	defaultCfg := Default()
	now := time.Now().UnixMilli()
	defaultCfg.Meta.CreatedAt = now
	defaultCfg.Meta.ModifiedAt = now
	defaultCfg.Meta.ModifiedBy = "citescape-cli"
	data, err := yaml.Marshal(defaultCfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Watcher watches the config file for external edits and hot-swaps global
// when a new revision passes validation. A bad edit is logged and
// ignored — the last good config stays live.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onReload []func(*Config)
	mu       sync.Mutex
	done     chan struct{}
}

// NewWatcher starts watching the config file in use by Load. Load must
// have been called first.
func NewWatcher() (*Watcher, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching config directory: %w", err)
	}
	w := &Watcher{
		path:    path,
		watcher: fw,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// OnReload registers a callback invoked after a successful hot-reload.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := readAndValidate(w.path)
	if err != nil {
		slog.Warn("config hot-reload rejected, keeping previous config",
			"path", w.path, "error", err)
		return
	}
	global.Store(cfg)
	slog.Info("config hot-reloaded", "path", w.path)

	w.mu.Lock()
	callbacks := make([]func(*Config), len(w.onReload))
	copy(callbacks, w.onReload)
	w.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
}
