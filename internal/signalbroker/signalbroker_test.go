// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stint-run/stint/internal/ctxlog"
	"github.com/stretchr/testify/assert"
)

func quietContext() context.Context {
	return ctxlog.New(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestWatchFirstSignalDoesNotCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(quietContext())
	defer cancel()

	sigCh := make(chan os.Signal, 1)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()
		Watch(ctx, sigCh, cancel)
	}()

	sigCh <- os.Interrupt

	time.Sleep(50 * time.Millisecond)

	select {
	case <-ctx.Done():
		t.Fatal("context must survive the first signal")
	default:
	}

	close(sigCh)
	wg.Wait()
}

func TestWatchFirstSignalMarksStopRequested(t *testing.T) {
	ctx, cancel := context.WithCancel(quietContext())
	defer cancel()

	sigCh := make(chan os.Signal, 1)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()
		Watch(ctx, sigCh, cancel)
	}()

	sigCh <- os.Interrupt

	// The flag is process-wide and sticky, so only the transition to true is
	// observable here.
	assert.Eventually(t, StopRequested, 2*time.Second, 10*time.Millisecond,
		"the first signal must record a stop request")

	close(sigCh)
	wg.Wait()
}

func TestWatchSecondSignalCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(quietContext())

	sigCh := make(chan os.Signal, 2)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()
		Watch(ctx, sigCh, cancel)
	}()

	sigCh <- os.Interrupt
	sigCh <- os.Interrupt

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context must be cancelled after the second signal")
	}

	_, open := <-sigCh
	assert.False(t, open, "signal channel must be closed after the second signal")

	wg.Wait()
}

func TestWatchDifferentSignalsDoNotCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(quietContext())
	defer cancel()

	sigCh := make(chan os.Signal, 2)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()
		Watch(ctx, sigCh, cancel)
	}()

	sigCh <- os.Interrupt
	sigCh <- os.Kill

	time.Sleep(50 * time.Millisecond)

	select {
	case <-ctx.Done():
		t.Fatal("distinct signal types must not cancel")
	default:
	}

	close(sigCh)
	wg.Wait()
}
