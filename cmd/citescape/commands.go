// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	cfgpkg "github.com/citescape-io/citescape/cmd/citescape/config"
	"github.com/citescape-io/citescape/pkg/logging"
)

var (
	backendURL   string
	strategyName string
	jsonLogs     bool
)

func init() {
	runCmd.Flags().StringVar(&backendURL, "backend", "http://localhost:8080", "base URL of the graph backend")
	runCmd.Flags().StringVar(&strategyName, "strategy", "standard", "loading strategy: standard or tree-first")
	searchCmd.Flags().StringVar(&backendURL, "backend", "http://localhost:8080", "base URL of the graph backend")
	searchCmd.Flags().StringVar(&strategyName, "strategy", "standard", "loading strategy: standard or tree-first")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit logs as JSON instead of text")

	rootCmd.AddCommand(runCmd, searchCmd, configCmd)
	configCmd.AddCommand(configInitCmd)
}

// cfgLoadOrDefault loads ~/.citescape/citescape.yaml, writing the
// default config on first run.
func cfgLoadOrDefault() error {
	if err := cfgpkg.Load(); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return nil
}

func cfgCurrent() *cfgpkg.Config { return cfgpkg.Current() }

// newLogger builds the process-wide logger. JSON output is forced when
// stdout isn't a terminal, matching the teacher's CLI/daemon split.
func newLogger() *logging.Logger {
	useJSON := jsonLogs || !isatty.IsTerminal(os.Stdout.Fd())
	return logging.New(logging.Config{Level: logging.LevelInfo, Service: "citescape", JSON: useJSON})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Initialize the graph engine against a backend and drive it from stdin",
	Long: `run loads the world bounds and first viewport from the backend, then
reads commands from stdin:

  pan <x> <y> [ratio]   recenter the camera and reload
  search <query>        resolve a query and highlight the match
  clear                 clear the current search highlight
  stats                 print the current coordinator stats
  quit                  exit
`,
	RunE: runRunCommand,
}

func runRunCommand(cmd *cobra.Command, args []string) error {
	if err := cfgLoadOrDefault(); err != nil {
		return err
	}
	cfg := *cfgCurrent()

	log := newLogger()
	defer log.Close()

	eng, err := buildEngine(cfg, backendURL, strategyName, log)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := eng.coord.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}
	fmt.Println(eng.summary())

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "quit", "exit":
			eng.coord.Destroy()
			return nil
		case "stats":
			fmt.Println(eng.summary())
		case "clear":
			eng.coord.ClearSearchHighlight()
		case "pan":
			handlePan(eng, fields[1:])
		case "search":
			handleSearch(ctx, eng, strings.TrimSpace(strings.TrimPrefix(line, "search")))
		default:
			fmt.Fprintf(os.Stderr, "unrecognized command: %s\n", fields[0])
		}
	}
	eng.coord.Destroy()
	return scanner.Err()
}

func handlePan(eng *engine, args []string) {
	var x, y, ratio float64
	n, _ := fmt.Sscan(strings.Join(args, " "), &x, &y, &ratio)
	if n < 2 {
		fmt.Fprintln(os.Stderr, "usage: pan <x> <y> [ratio]")
		return
	}
	var r *float64
	if n == 3 {
		r = &ratio
	}
	eng.coord.CenterOn(x, y, r)
	fmt.Println(eng.summary())
}

func handleSearch(ctx context.Context, eng *engine, query string) {
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: search <query>")
		return
	}
	res, err := eng.coord.SearchAndHighlight(ctx, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "search failed: %v\n", err)
		return
	}
	fmt.Printf("focus=%s matched=%v\n", res.FocusId, res.MatchedIds)
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Resolve a single search query against a running backend and print the highlight result",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSearchCommand,
}

func runSearchCommand(cmd *cobra.Command, args []string) error {
	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	if query == "" {
		if !isatty.IsTerminal(os.Stdin.Fd()) {
			return fmt.Errorf("search requires a query argument when stdin isn't a terminal")
		}
		input := huh.NewInput().Title("Search the citation graph").Placeholder("e.g. attention is all you need").Value(&query)
		if err := huh.NewForm(huh.NewGroup(input)).Run(); err != nil {
			return err
		}
	}

	if err := cfgLoadOrDefault(); err != nil {
		return err
	}
	cfg := *cfgCurrent()

	log := newLogger()
	defer log.Close()

	eng, err := buildEngine(cfg, backendURL, strategyName, log)
	if err != nil {
		return err
	}
	defer eng.coord.Destroy()

	ctx := context.Background()
	if err := eng.coord.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}
	handleSearch(ctx, eng, query)
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or initialize the citescape configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the default configuration file if it doesn't already exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cfgLoadOrDefault()
	},
}
