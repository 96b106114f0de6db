// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package run contains the command that builds and supervises a batch from a
// definition file.
package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-getter/v2"
	"github.com/spf13/afero"
	"github.com/stint-run/stint/internal/ctxlog"
	"github.com/stint-run/stint/internal/definition"
	"github.com/stint-run/stint/internal/progress"
	"github.com/stint-run/stint/internal/signalbroker"
	"github.com/stint-run/stint/internal/store"
	"github.com/stint-run/stint/internal/supervisor"
	"github.com/stint-run/stint/internal/tui"
	"github.com/urfave/cli/v3"
)

const (
	fileArg           = "file"
	stateFlag         = "state"
	memoryCeilingFlag = "memory-ceiling"
	tuiFlag           = "tui"
)

var (
	// ErrGetDefinition is returned when the definition file cannot be
	// fetched.
	ErrGetDefinition = errors.New("failed to get definition file")
	// ErrNoExecutable is returned when the current executable path cannot be
	// determined for worker spawning.
	ErrNoExecutable = errors.New("failed to determine executable path")
)

// RunCmd builds a batch from a definition file, persists it and supervises
// worker processes until it finishes.
var RunCmd = &cli.Command{
	Name: "run",
	Description: `Run a batch job defined in a YAML or HCL file.

The definition URL supports Hashicorp's go-getter syntax, so jobs can be
fetched from local paths, git repositories, HTTP and more.

The job is executed by a sequence of freshly spawned worker processes; each
worker yields when the memory ceiling is approached and the next one resumes
from the persisted state.`,
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      fileArg,
			UsageText: "DEFINITION",
			Config: cli.StringConfig{
				TrimSpace: true,
			},
		},
	},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     stateFlag,
			Usage:    "Path of the durable state file shared with workers",
			Value:    "",
			OnlyOnce: true,
		},
		&cli.Uint64Flag{
			Name:    memoryCeilingFlag,
			Aliases: []string{"m"},
			Usage: "Advisory per-worker memory ceiling in bytes; a worker yields to a " +
				"fresh process when its doubled usage exceeds this. 0 disables the check.",
			Value: 0,
		},
		&cli.BoolFlag{
			Name:        tuiFlag,
			Aliases:     []string{"t"},
			Usage:       "Show live progress in a terminal UI",
			Value:       false,
			DefaultText: "false",
			OnlyOnce:    true,
		},
	},
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	src := cmd.StringArg(fileArg)
	if src == "" {
		return cli.Exit("Please provide a definition file to run", 1)
	}

	statePath := cmd.String(stateFlag)
	if statePath == "" {
		var err error
		if statePath, err = store.DefaultPath(); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

	path, cleanup, err := fetchDefinition(ctx, src)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to get definition %s: %s", src, err.Error()), 1)
	}

	defer cleanup()

	def, err := definition.Load(afero.NewOsFs(), path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load definition %s: %s", src, err.Error()), 1)
	}

	exe, err := os.Executable()
	if err != nil {
		return cli.Exit(errors.Join(ErrNoExecutable, err).Error(), 1)
	}

	ceiling := cmd.Uint64(memoryCeilingFlag)

	sv := &supervisor.Supervisor{
		StatePath:     statePath,
		Spawner:       supervisor.ExecSpawner{},
		StopRequested: signalbroker.StopRequested,
		WorkerCommand: func(id string) (string, []string) {
			return exe, []string{
				"worker",
				"--id", id,
				"--state", statePath,
				"--memory-ceiling", strconv.FormatUint(ceiling, 10),
			}
		},
	}

	id, err := sv.Start(ctx, def.Specs())
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to start batch: %s", err.Error()), 1)
	}

	ctxlog.Info(ctx, "batch started", "batch", id, "definition", def.Name)

	if cmd.Bool(tuiFlag) {
		runner := tui.NewRunner(id)
		sv.Reporter = runner.Reporter()

		return runner.Run(ctx, func(ctx context.Context) error {
			return sv.Supervise(ctx, id)
		})
	}

	sv.Reporter = &logReporter{ctx: ctx}

	return sv.Supervise(ctx, id)
}

// logReporter narrates supervision through the context logger when no TUI is
// attached.
type logReporter struct {
	ctx context.Context
}

// Report implements progress.Reporter.
func (r *logReporter) Report(e progress.Event) {
	switch e.Type {
	case progress.EventWorkerExited:
		ctxlog.Info(r.ctx, "worker yielded",
			"batch", e.BatchID, "percentage", fmt.Sprintf("%.1f", e.Percentage), "message", e.Message)
	case progress.EventBatchFinished:
		ctxlog.Info(r.ctx, "batch finished", "batch", e.BatchID)
	case progress.EventBatchFailed:
		ctxlog.Error(r.ctx, "batch failed", "batch", e.BatchID, "message", e.Message)
	case progress.EventBatchStarted, progress.EventWorkerSpawned,
		progress.EventOperation, progress.EventSetAdvanced:
		ctxlog.Debug(r.ctx, e.Type.String(), "batch", e.BatchID, "message", e.Message)
	}
}

// Close implements progress.Reporter.
func (r *logReporter) Close() {}

// fetchDefinition resolves the definition source to a local file, fetching
// remote URLs with go-getter.
func fetchDefinition(ctx context.Context, src string) (string, func(), error) {
	if _, err := os.Stat(src); err == nil {
		return src, func() {}, nil
	}

	tmpDir, err := os.MkdirTemp("", "stint-getter-*")
	if err != nil {
		return "", nil, errors.Join(ErrGetDefinition, err)
	}

	cleanup := func() {
		os.RemoveAll(tmpDir) //nolint:errcheck
	}

	wd, err := os.Getwd()
	if err != nil {
		cleanup()

		return "", nil, errors.Join(ErrGetDefinition, err)
	}

	client := getter.Client{
		DisableSymlinks: true,
	}

	req := &getter.Request{
		Src:     src,
		Dst:     filepath.Join(tmpDir, filepath.Base(src)),
		Pwd:     wd,
		GetMode: getter.ModeFile,
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := client.Get(fetchCtx, req)
	if err != nil {
		cleanup()

		return "", nil, errors.Join(ErrGetDefinition, err)
	}

	return res.Dst, cleanup, nil
}
