// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package worker runs one process invocation of the batch engine: it loads
// the batch from the store, drains operations from the active set's queue
// until the set or batch completes or the memory ceiling is approached, and
// persists the batch again on the way out. The finalizer also lives here and
// runs once, when 100% completion is observed.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stint-run/stint/internal/batch"
	"github.com/stint-run/stint/internal/ctxlog"
	"github.com/stint-run/stint/internal/opqueue"
	"github.com/stint-run/stint/internal/opregistry"
	"github.com/stint-run/stint/internal/progress"
	"github.com/stint-run/stint/internal/settings"
	"github.com/stint-run/stint/internal/store"
)

// Report is the worker's result document, written to stdout as YAML and
// inspected by the supervisor to decide whether to keep spawning.
type Report struct {
	Finished   bool    `yaml:"batch_process_finished"`
	Percentage float64 `yaml:"percentage"`
	Message    string  `yaml:"message,omitempty"`
}

// Worker executes one pass over a batch.
type Worker struct {
	Store    *store.Store
	Registry *opregistry.Registry
	Settings *settings.Store
	Reporter progress.Reporter
	Sink     batch.ErrorSink

	// MemoryCeiling is an advisory byte limit. Zero disables the check.
	MemoryCeiling uint64
}

// Run processes operations for the batch with the given id until the batch
// completes, the memory ceiling is approached, or a storage error occurs.
// The batch snapshot is persisted on every exit path except after the
// finalizer has torn it down.
func (w *Worker) Run(ctx context.Context, id string) (*Report, error) {
	logger := ctxlog.Logger(ctx).With("batch", id)

	if w.Reporter == nil {
		w.Reporter = progress.NullReporter{}
	}

	if w.Sink == nil {
		w.Sink = &batch.SlogSink{Logger: logger}
	}

	b, err := w.Store.Read(id)
	if err != nil {
		return nil, err
	}

	b.Running = true

	finalized := false

	defer func() {
		if finalized {
			return
		}

		if uerr := w.Store.Update(b); uerr != nil {
			ctxlog.Error(ctx, "failed to persist batch on exit", "batch", id, "error", uerr)
		}
	}()

	finished, err := w.loop(ctx, b, logger)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Finished:   finished,
		Percentage: b.Percentage(),
	}

	if s := b.ActiveSet(); s != nil {
		report.Message = s.StatusMessage("")
	}

	if finished {
		b.Running = false

		if err := w.Finalize(ctx, b); err != nil {
			return report, err
		}

		finalized = true
	}

	return report, nil
}

func (w *Worker) loop(ctx context.Context, b *batch.Batch, logger *slog.Logger) (bool, error) {
	for {
		s := b.ActiveSet()
		if s == nil {
			return true, nil
		}

		if s.Started.IsZero() {
			w.beginSet(ctx, s)
		}

		// Re-loading is cheap: the registry remembers files it has already
		// interpreted, and a fresh process resuming mid-set needs the set's
		// extra code even though the set began in an earlier process.
		w.loadCode(s)

		q := opqueue.Open(w.Store.DB(), s.ID)

		op, claimed, err := q.Claim()
		if err != nil {
			return false, err
		}

		if !claimed && s.Remaining != 0 {
			return false, fmt.Errorf("%w: set %s has %d remaining but an empty queue",
				store.ErrCorruptBatch, s.ID, s.Remaining)
		}

		bc := batch.NewContext(s, logger, w.Sink)

		if claimed {
			w.invoke(ctx, op, bc)
			s.Fold(bc)
		}

		if bc.Fraction >= 1 {
			if claimed {
				if err := q.Delete(op); err != nil {
					return false, err
				}

				s.Remaining--
				s.Sandbox = make(map[string]any)
			}

			s.Fraction = 0
		} else {
			s.Fraction = bc.Fraction
		}

		_, pct := s.Progress()
		w.Reporter.Report(progress.Event{
			Type:       progress.EventOperation,
			BatchID:    b.ID,
			SetID:      s.ID,
			Message:    s.StatusMessage(bc.Message),
			Percentage: pct,
			Timestamp:  time.Now(),
		})

		done, err := w.advance(ctx, b)
		if err != nil {
			return false, err
		}

		if done {
			return true, nil
		}

		if w.overMemoryCeiling() {
			now := time.Now()
			s.Elapsed = now.Sub(s.Started)

			ctxlog.Warn(ctx, "memory ceiling approached, yielding to a fresh process",
				"batch", b.ID, "ceiling", w.MemoryCeiling)

			return false, nil
		}
	}
}

// beginSet records the first touch of a set: start time and init message.
func (w *Worker) beginSet(ctx context.Context, s *batch.Set) {
	if s.Started.IsZero() {
		s.Started = time.Now()
	}

	if s.InitMessage != "" {
		ctxlog.Info(ctx, s.InitMessage, "set", s.ID)
	}
}

// loadCode interprets the set's extra code file. A file that fails to load is
// tolerated; operations that depended on it surface as unknown-operation
// errors.
func (w *Worker) loadCode(s *batch.Set) {
	if s.Code == "" {
		return
	}

	if err := w.Registry.LoadFile(s.Code); err != nil {
		w.Sink.RecordError(0, err.Error())
	}
}

// invoke runs one operation with errors tolerated: the errors-fatal setting
// is forced off for the duration of the call and restored regardless of
// outcome, and a panic inside the operation is recorded, not propagated.
func (w *Worker) invoke(ctx context.Context, op batch.Operation, bc *batch.Context) {
	fn, err := w.Registry.Operation(op.Name)
	if err != nil {
		w.Sink.RecordError(0, err.Error())

		return
	}

	prev := w.Settings.SetErrorsFatal(false)
	defer w.Settings.SetErrorsFatal(prev)

	msg, err := w.call(ctx, fn, op, bc)
	if msg != "" {
		ctxlog.Info(ctx, msg, "operation", op.Name)
	}

	if err != nil {
		w.Sink.RecordError(1, fmt.Sprintf("operation %s: %v", op.Name, err))
	}
}

func (w *Worker) call(ctx context.Context, fn opregistry.OperationFunc, op batch.Operation, bc *batch.Context) (msg string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation %s panicked: %v", op.Name, r)
		}
	}()

	return fn(ctx, op.Args, bc)
}

// advance moves the cursor forward across every set whose work is exhausted,
// running control operations at the boundary. It reports true when the whole
// batch is complete.
func (w *Worker) advance(ctx context.Context, b *batch.Batch) (bool, error) {
	for b.ActiveSet() != nil && b.ActiveSet().Remaining == 0 {
		s := b.ActiveSet()

		if s.Control != nil {
			if err := w.runControl(ctx, b, s); err != nil {
				w.Sink.RecordError(0, err.Error())
			}

			s.Control = nil
		}

		if !b.Advance(time.Now()) {
			return true, nil
		}

		next := b.ActiveSet()
		w.beginSet(ctx, next)

		w.Reporter.Report(progress.Event{
			Type:      progress.EventSetAdvanced,
			BatchID:   b.ID,
			SetID:     next.ID,
			Message:   next.InitMessage,
			Timestamp: time.Now(),
		})
	}

	return false, nil
}

// runControl executes a set's control operation: the single sanctioned
// mutation of the set list, inserting new sets immediately after the cursor.
func (w *Worker) runControl(ctx context.Context, b *batch.Batch, s *batch.Set) error {
	fn, err := w.Registry.Control(s.Control.Name)
	if err != nil {
		return err
	}

	specs, err := fn(ctx, s.Control.Args)
	if err != nil {
		return fmt.Errorf("control operation %s: %w", s.Control.Name, err)
	}

	sets, err := Materialize(w.Store.DB(), specs)
	if err != nil {
		return err
	}

	b.InsertSets(sets...)

	return nil
}

func (w *Worker) overMemoryCeiling() bool {
	if w.MemoryCeiling == 0 {
		return false
	}

	return memoryUsage()*2 > w.MemoryCeiling
}
