// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package supervisor runs in the original process. It persists the initial
// batch, then repeatedly spawns a fresh worker process until one of them
// reports the batch finished. "Parallelism" here is strictly serial hand-off:
// the next worker is never spawned before the previous one has exited and
// persisted its progress.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stint-run/stint/internal/batch"
	"github.com/stint-run/stint/internal/ctxlog"
	"github.com/stint-run/stint/internal/progress"
	"github.com/stint-run/stint/internal/store"
	"github.com/stint-run/stint/internal/worker"
)

// FinishedKey is the result-context entry a worker sets when the batch has
// reached 100% completion.
const FinishedKey = "batch_process_finished"

var (
	// ErrNoResult is returned when a worker exits without any result.
	ErrNoResult = errors.New("worker returned no result")
	// ErrWorkerFailed is returned when a worker signals an explicit error.
	ErrWorkerFailed = errors.New("worker reported an error")
	// ErrNoSets is returned when a batch is started with no work.
	ErrNoSets = errors.New("batch has no sets")
	// ErrStopRequested is returned when a stop was requested and supervision
	// halted at a worker hand-off boundary.
	ErrStopRequested = errors.New("stop requested")
)

// Supervisor owns a batch's lifetime from construction to the finished
// signal.
type Supervisor struct {
	StatePath string
	Spawner   Spawner
	Reporter  progress.Reporter

	// WorkerCommand builds the process invocation for one worker pass over
	// the given batch id.
	WorkerCommand func(id string) (name string, args []string)

	// StopRequested is polled before each worker pass. When it reports true,
	// supervision halts at the hand-off boundary with the batch left in its
	// persisted state, ready to resume.
	StopRequested func() bool
}

// Start builds and persists a new batch from the given set specs and returns
// its freshly assigned stable id. The state file is closed again before
// returning: between worker passes nothing in this process holds it.
func (sv *Supervisor) Start(ctx context.Context, specs []batch.SetSpec) (string, error) {
	if len(specs) == 0 {
		return "", ErrNoSets
	}

	st, err := store.Open(sv.StatePath)
	if err != nil {
		return "", err
	}

	defer st.Close() //nolint:errcheck

	b := &batch.Batch{
		ID:      uuid.NewString(),
		Running: true,
	}

	sets, err := worker.Materialize(st.DB(), specs)
	if err != nil {
		return "", err
	}

	b.Sets = sets

	if err := st.Create(b); err != nil {
		return "", err
	}

	ctxlog.Debug(ctx, "batch created", "batch", b.ID, "sets", len(b.Sets))

	return b.ID, nil
}

// Supervise spawns worker processes for the batch until one reports the
// finished flag, returns no result, or signals an error. The first two
// error conditions are terminal: the batch is left in its current persisted
// state rather than retried indefinitely.
func (sv *Supervisor) Supervise(ctx context.Context, id string) error {
	reporter := sv.Reporter
	if reporter == nil {
		reporter = progress.NullReporter{}
	}

	reporter.Report(progress.Event{
		Type:      progress.EventBatchStarted,
		BatchID:   id,
		Timestamp: time.Now(),
	})

	for {
		if err := ctx.Err(); err != nil {
			reporter.Report(progress.Event{
				Type:      progress.EventBatchFailed,
				BatchID:   id,
				Message:   err.Error(),
				Timestamp: time.Now(),
			})

			return err
		}

		if sv.StopRequested != nil && sv.StopRequested() {
			ctxlog.Info(ctx, "stop requested, halting at hand-off boundary", "batch", id)
			reporter.Report(progress.Event{
				Type:      progress.EventBatchFailed,
				BatchID:   id,
				Message:   ErrStopRequested.Error(),
				Timestamp: time.Now(),
			})

			return fmt.Errorf("%w: batch %s", ErrStopRequested, id)
		}

		name, args := sv.WorkerCommand(id)

		reporter.Report(progress.Event{
			Type:      progress.EventWorkerSpawned,
			BatchID:   id,
			Timestamp: time.Now(),
		})

		res, err := sv.Spawner.Spawn(ctx, name, args, SpawnOptions{})
		if err != nil {
			reporter.Report(progress.Event{
				Type:      progress.EventBatchFailed,
				BatchID:   id,
				Message:   err.Error(),
				Timestamp: time.Now(),
			})

			return err
		}

		if res == nil {
			reporter.Report(progress.Event{
				Type:      progress.EventBatchFailed,
				BatchID:   id,
				Timestamp: time.Now(),
			})

			return ErrNoResult
		}

		if res.Err {
			reporter.Report(progress.Event{
				Type:      progress.EventBatchFailed,
				BatchID:   id,
				Timestamp: time.Now(),
			})

			return fmt.Errorf("%w: batch %s", ErrWorkerFailed, id)
		}

		pct := floatValue(res.Context["percentage"])
		msg, _ := res.Context["message"].(string)

		reporter.Report(progress.Event{
			Type:       progress.EventWorkerExited,
			BatchID:    id,
			Message:    msg,
			Percentage: pct,
			Timestamp:  time.Now(),
		})

		if finished, _ := res.Context[FinishedKey].(bool); finished {
			reporter.Report(progress.Event{
				Type:       progress.EventBatchFinished,
				BatchID:    id,
				Percentage: 100,
				Timestamp:  time.Now(),
			})

			return nil
		}

		ctxlog.Debug(ctx, "worker yielded, spawning successor", "batch", id, "percentage", pct)
	}
}

// floatValue copes with the numeric types a decoded YAML document may carry.
func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	default:
		return 0
	}
}
