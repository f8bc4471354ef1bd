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
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var traceDebug bool

var otelShutdown func(context.Context) error

var rootCmd = &cobra.Command{
	Use:   "citescape",
	Short: "A viewport-driven streaming client for the citescape citation graph",
	Long: `citescape streams a citation graph to the viewport: as you pan and
zoom, it resolves a level of detail, fetches only what the viewport can
see, and evicts what falls out of budget.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		shutdown, err := setupOTel(traceDebug)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		otelShutdown = shutdown
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if otelShutdown == nil {
			return nil
		}
		return otelShutdown(context.Background())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&traceDebug, "trace-debug", false, "print OpenTelemetry spans to stderr as they complete")
}
