// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stint-run/stint/internal/batch"
	"github.com/stint-run/stint/internal/ctxlog"
	"github.com/stint-run/stint/internal/opqueue"
	"github.com/stint-run/stint/internal/progress"
)

// Finalize runs once, after the batch reaches 100% completion. For each set
// in order it invokes the finish callback if one is registered, then tears
// down the persisted snapshot and every queue. Callback failures do not stop
// the teardown; they are aggregated and returned.
func (w *Worker) Finalize(ctx context.Context, b *batch.Batch) error {
	var errs *multierror.Error

	for _, s := range b.Sets {
		if err := w.finishSet(ctx, s); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if err := w.Store.Delete(b.ID); err != nil {
		errs = multierror.Append(errs, err)
	}

	for _, s := range b.Sets {
		if err := opqueue.Open(w.Store.DB(), s.ID).Destroy(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	w.Reporter.Report(progress.Event{
		Type:       progress.EventBatchFinished,
		BatchID:    b.ID,
		Percentage: 100,
		Timestamp:  time.Now(),
	})

	return errs.ErrorOrNil()
}

// finishSet invokes one set's finishing callback. An unset or unregistered
// callback is skipped, not an error.
func (w *Worker) finishSet(ctx context.Context, s *batch.Set) error {
	if s.Finish == "" {
		return nil
	}

	// The callback may be registered by the set's extra code, so load that
	// before resolving.
	if s.Code != "" {
		if err := w.Registry.LoadFile(s.Code); err != nil {
			return err
		}
	}

	fn, ok := w.Registry.Finish(s.Finish)
	if !ok {
		ctxlog.Debug(ctx, "finish callback not registered, skipping",
			"set", s.ID, "finish", s.Finish)

		return nil
	}

	ops, err := opqueue.Open(w.Store.DB(), s.ID).ListAll()
	if err != nil {
		return err
	}

	if err := fn(ctx, s.Success, s.Results, ops, batch.FormatElapsed(s.Elapsed)); err != nil {
		return fmt.Errorf("finish callback %s: %w", s.Finish, err)
	}

	return nil
}
