// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tui renders live batch progress while the supervisor spawns
// workers: a progress bar over the whole batch, the active worker state and
// the most recent status message.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	events "github.com/stint-run/stint/internal/progress"
)

const percentFull = 100.0

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	doneStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

// EventMsg wraps a progress event for the bubbletea update loop.
type EventMsg struct {
	Event events.Event
}

// DoneMsg tells the TUI that supervision is over.
type DoneMsg struct {
	Err error
}

// Model is the bubbletea model for a supervised batch.
type Model struct {
	batchID    string
	spinner    spinner.Model
	bar        progress.Model
	percentage float64
	message    string
	workers    int
	finished   bool
	failed     bool
	err        error
}

// NewModel creates the TUI model.
func NewModel(batchID string) *Model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	bar := progress.New(progress.WithDefaultGradient())

	return &Model{
		batchID: batchID,
		spinner: sp,
		bar:     bar,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, 60)

		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case EventMsg:
		m.apply(msg.Event)

		return m, nil

	case DoneMsg:
		m.err = msg.Err
		if msg.Err != nil {
			m.failed = true
		}

		return m, tea.Quit
	}

	var cmd tea.Cmd

	var pm tea.Model

	pm, cmd = m.bar.Update(msg)
	if bar, ok := pm.(progress.Model); ok {
		m.bar = bar
	}

	return m, cmd
}

func (m *Model) apply(e events.Event) {
	switch e.Type {
	case events.EventWorkerSpawned:
		m.workers++
	case events.EventWorkerExited, events.EventOperation, events.EventSetAdvanced:
		if e.Percentage > 0 {
			m.percentage = e.Percentage
		}

		if e.Message != "" {
			m.message = e.Message
		}
	case events.EventBatchFinished:
		m.percentage = percentFull
		m.finished = true
	case events.EventBatchFailed:
		m.failed = true

		if e.Message != "" {
			m.message = e.Message
		}
	case events.EventBatchStarted:
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("batch "+m.batchID) + "\n\n")

	switch {
	case m.finished:
		b.WriteString(doneStyle.Render("done") + " ")
	case m.failed:
		b.WriteString(failStyle.Render("failed") + " ")
	default:
		b.WriteString(m.spinner.View())
	}

	b.WriteString(m.bar.ViewAs(m.percentage / percentFull))
	b.WriteString(fmt.Sprintf(" %.1f%%\n", m.percentage))
	b.WriteString(fmt.Sprintf("workers spawned: %d\n", m.workers))

	if m.message != "" {
		b.WriteString(messageStyle.Render(m.message) + "\n")
	}

	return b.String()
}
