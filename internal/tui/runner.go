// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	events "github.com/stint-run/stint/internal/progress"
)

// Reporter forwards progress events into the running TUI program.
type Reporter struct {
	program *tea.Program
	mu      sync.RWMutex
	closed  bool
}

// Report implements progress.Reporter.
func (r *Reporter) Report(e events.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || r.program == nil {
		return
	}

	r.program.Send(EventMsg{Event: e})
}

// Close implements progress.Reporter.
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
}

// Runner couples a TUI program with the supervision of one batch.
type Runner struct {
	program  *tea.Program
	reporter *Reporter
}

// NewRunner creates a TUI for the given batch id.
func NewRunner(batchID string) *Runner {
	program := tea.NewProgram(NewModel(batchID))

	return &Runner{
		program:  program,
		reporter: &Reporter{program: program},
	}
}

// Reporter returns the progress reporter feeding this TUI.
func (r *Runner) Reporter() events.Reporter {
	return r.reporter
}

// Run displays the TUI while supervise executes in the background, and
// returns the supervision error once both have finished.
func (r *Runner) Run(ctx context.Context, supervise func(context.Context) error) error {
	var (
		wg   sync.WaitGroup
		sErr error
	)

	wg.Add(1)

	go func() {
		defer wg.Done()

		sErr = supervise(ctx)
		r.reporter.Close()
		r.program.Send(DoneMsg{Err: sErr})
	}()

	if _, err := r.program.Run(); err != nil {
		wg.Wait()

		return err
	}

	wg.Wait()

	return sErr
}
