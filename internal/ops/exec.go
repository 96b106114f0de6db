// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package ops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/stint-run/stint/internal/batch"
	"github.com/stint-run/stint/internal/ctxlog"
)

var (
	// ErrCouldNotStartProcess is returned when the child process could not be
	// started.
	ErrCouldNotStartProcess = errors.New("could not start process")
	// ErrFailedToCreatePipe is returned when the output pipe could not be
	// created.
	ErrFailedToCreatePipe = errors.New("failed to create pipe")
	// ErrNonZeroExit is returned when the child process exits unsuccessfully.
	ErrNonZeroExit = errors.New("process exited with non-zero code")
)

const maxOutputBytes = 1 << 20

// execOperation runs one operating-system command to completion as a single
// batch operation. Args: [path, argv...], all strings. The command's
// combined output and exit code are appended to the set's results.
func execOperation(ctx context.Context, args []any, bc *batch.Context) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("%w: exec needs a command path", ErrBadArgs)
	}

	path, err := stringArg(args, 0)
	if err != nil {
		return "", err
	}

	argv := make([]string, 0, len(args))
	argv = append(argv, filepath.Base(path))

	for i := 1; i < len(args); i++ {
		a, err := stringArg(args, i)
		if err != nil {
			return "", err
		}

		argv = append(argv, a)
	}

	ctxlog.Debug(ctx, "exec operation", "path", path, "args", argv[1:])

	rOut, wOut, err := os.Pipe()
	if err != nil {
		return "", errors.Join(ErrFailedToCreatePipe, err)
	}

	ps, err := os.StartProcess(path, argv, &os.ProcAttr{
		Env:   os.Environ(),
		Files: []*os.File{os.Stdin, wOut, wOut},
	})
	if err != nil {
		wOut.Close() //nolint:errcheck
		rOut.Close() //nolint:errcheck

		return "", errors.Join(ErrCouldNotStartProcess, err)
	}

	wOut.Close() //nolint:errcheck

	out := &bytes.Buffer{}
	readDone := make(chan error, 1)

	go func() {
		_, cpErr := io.Copy(out, io.LimitReader(rOut, maxOutputBytes))
		readDone <- cpErr
	}()

	state, err := ps.Wait()

	<-readDone
	rOut.Close() //nolint:errcheck

	if err != nil {
		return "", err
	}

	bc.Results = append(bc.Results, map[string]any{
		"op":     "exec",
		"path":   path,
		"exit":   state.ExitCode(),
		"output": out.String(),
	})

	if !state.Success() {
		return "", fmt.Errorf("%w: %s: %d", ErrNonZeroExit, path, state.ExitCode())
	}

	return fmt.Sprintf("ran %s", path), nil
}
