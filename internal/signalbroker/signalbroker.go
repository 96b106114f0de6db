// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package signalbroker listens for OS termination signals. The first signal
// of a type is a request to stop after the current operation; the second
// cancels the context and forces shutdown.
package signalbroker

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/stint-run/stint/internal/ctxlog"
)

// stopRequested records that at least one termination signal arrived. It is
// process-wide state, like signal delivery itself.
var stopRequested atomic.Bool

// StopRequested reports whether a termination signal has been received.
// Long-running loops poll it at their checkpoints to wind down cleanly.
func StopRequested() bool {
	return stopRequested.Load()
}

var termSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
	os.Interrupt,
}

// New creates a channel receiving the signals that should terminate the
// process.
func New(ctx context.Context, sigs ...os.Signal) chan os.Signal {
	ch := make(chan os.Signal, 1)

	if len(sigs) == 0 {
		sigs = termSignals
	}

	ctxlog.Debug(ctx, "signalbroker listening", "signals", sigs)
	signal.Notify(ch, sigs...)

	return ch
}

// Watch cancels the context when a second signal of the same type arrives.
func Watch(ctx context.Context, sigCh chan os.Signal, cancel context.CancelFunc) {
	seen := make(map[os.Signal]struct{})

	for sig := range sigCh {
		stopRequested.Store(true)

		if _, ok := seen[sig]; ok {
			ctxlog.Info(ctx, "second signal received, terminating", "signal", sig.String())
			close(sigCh)
			cancel()

			return
		}

		ctxlog.Info(ctx, "signal received, will stop at the next checkpoint", "signal", sig.String())

		seen[sig] = struct{}{}
	}
}
