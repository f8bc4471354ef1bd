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
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/citescape-io/citescape/services/graphstream/coordinator"
)

func init() {
	dashboardCmd.Flags().StringVar(&backendURL, "backend", "http://localhost:8080", "base URL of the graph backend")
	dashboardCmd.Flags().StringVar(&strategyName, "strategy", "standard", "loading strategy: standard or tree-first")
	rootCmd.AddCommand(dashboardCmd)
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show a live terminal dashboard of the loaded graph's stats",
	RunE:  runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("dashboard requires an interactive terminal; use 'citescape run' for a pipeable interface")
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

	go func() {
		_ = eng.coord.Initialize(context.Background())
	}()

	p := tea.NewProgram(newDashboardModel(eng))
	_, err = p.Run()
	return err
}

var (
	dashboardBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	dashboardTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dashboardHint  = lipgloss.NewStyle().Faint(true)
)

type statsTickMsg time.Time

type dashboardModel struct {
	eng     *engine
	spinner spinner.Model
	stats   coordinator.Stats
}

func newDashboardModel(eng *engine) dashboardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return dashboardModel{eng: eng, spinner: sp}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickStats())
}

func tickStats() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg { return statsTickMsg(t) })
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case statsTickMsg:
		m.stats = m.eng.coord.GetStats()
		return m, tickStats()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m dashboardModel) View() string {
	status := m.stats.LoadingStatus.State
	if status == "" {
		status = "idle"
	}
	indicator := ""
	if m.stats.IsLoading {
		indicator = m.spinner.View() + " "
	}

	body := fmt.Sprintf(
		"%snodes   %d\nedges   %d\nlod     %s\nstate   %s\nprogress %.0f%%",
		indicator, m.stats.NodeCount, m.stats.EdgeCount, m.stats.LODLevel, status, m.stats.LoadingStatus.Progress*100,
	)

	return dashboardTitle.Render("citescape") + "\n" +
		dashboardBox.Render(body) + "\n" +
		dashboardHint.Render("q to quit")
}
