// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/goccy/go-yaml"
	"github.com/stint-run/stint/internal/ctxlog"
)

var (
	// ErrCouldNotStartProcess is returned when the worker process could not be
	// started.
	ErrCouldNotStartProcess = errors.New("could not start process")
	// ErrFailedToCreatePipe is returned when the stdout pipe could not be
	// created.
	ErrFailedToCreatePipe = errors.New("failed to create pipe")
	// ErrFailedToReadBuffer is returned when the worker's stdout could not be
	// read.
	ErrFailedToReadBuffer = errors.New("failed to read buffer")
	// ErrBadResultDocument is returned when the worker's stdout is not a
	// result document.
	ErrBadResultDocument = errors.New("worker did not produce a result document")
)

// SpawnResult is what a finished worker process hands back: the decoded
// result document plus an error signal. The supervisor inspects the
// FinishedKey entry and the error signal to decide whether to keep looping.
type SpawnResult struct {
	Context map[string]any
	Err     bool
}

// SpawnOptions carries optional process attributes.
type SpawnOptions struct {
	Dir string
	Env map[string]string
}

// Spawner starts one worker process and waits for it to exit. Exactly one
// worker is ever live at a time; this collaborator exists to bound a single
// process's memory growth, not to achieve concurrency.
type Spawner interface {
	Spawn(ctx context.Context, name string, args []string, opts SpawnOptions) (*SpawnResult, error)
}

// ExecSpawner runs worker processes directly on the operating system. The
// child inherits stderr so its log output is visible; stdout is captured in
// full and decoded as the YAML result document.
type ExecSpawner struct{}

// Spawn implements Spawner.
func (ExecSpawner) Spawn(ctx context.Context, name string, args []string, opts SpawnOptions) (*SpawnResult, error) {
	logger := ctxlog.Logger(ctx)
	logger.Debug("spawning worker", "path", name, "args", args)

	rOut, wOut, err := os.Pipe()
	if err != nil {
		return nil, errors.Join(ErrFailedToCreatePipe, err)
	}

	env := os.Environ()
	for k, v := range opts.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	argv := slices.Concat([]string{filepath.Base(name)}, args)

	ps, err := os.StartProcess(name, argv, &os.ProcAttr{
		Dir:   opts.Dir,
		Env:   env,
		Files: []*os.File{os.Stdin, wOut, os.Stderr},
	})
	if err != nil {
		wOut.Close() //nolint:errcheck
		rOut.Close() //nolint:errcheck

		return nil, errors.Join(ErrCouldNotStartProcess, err)
	}

	logger.Debug("worker started", "pid", ps.Pid)

	// The write end belongs to the child now.
	wOut.Close() //nolint:errcheck

	out := &bytes.Buffer{}
	readDone := make(chan error, 1)

	go func() {
		_, cpErr := io.Copy(out, rOut)
		readDone <- cpErr
	}()

	type waitOutcome struct {
		state *os.ProcessState
		err   error
	}

	waitDone := make(chan waitOutcome, 1)

	go func() {
		state, waitErr := ps.Wait()
		waitDone <- waitOutcome{state: state, err: waitErr}
	}()

	var state *os.ProcessState

	select {
	case <-ctx.Done():
		logger.Debug("cancelled, killing worker", "pid", ps.Pid)
		ps.Kill() //nolint:errcheck
		<-waitDone
		rOut.Close() //nolint:errcheck

		return nil, ctx.Err()
	case w := <-waitDone:
		if w.err != nil {
			rOut.Close() //nolint:errcheck

			return nil, w.err
		}

		state = w.state
	}

	if cpErr := <-readDone; cpErr != nil {
		rOut.Close() //nolint:errcheck

		return nil, errors.Join(ErrFailedToReadBuffer, cpErr)
	}

	rOut.Close() //nolint:errcheck

	res := &SpawnResult{Err: !state.Success()}

	if len(bytes.TrimSpace(out.Bytes())) == 0 {
		if res.Err {
			return res, nil
		}

		return nil, ErrBadResultDocument
	}

	if err := yaml.Unmarshal(out.Bytes(), &res.Context); err != nil {
		return nil, errors.Join(ErrBadResultDocument, err)
	}

	return res, nil
}
