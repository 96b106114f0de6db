// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cmd contains the command-line interface (CLI) for the module.
package cmd

import (
	"os"

	"github.com/stint-run/stint/cmd/cancel"
	"github.com/stint-run/stint/cmd/run"
	"github.com/stint-run/stint/cmd/status"
	"github.com/stint-run/stint/cmd/worker"
	"github.com/urfave/cli/v3"
)

// RootCmd is the root command for the CLI.
var RootCmd = &cli.Command{
	Commands: []*cli.Command{
		run.RunCmd,
		worker.WorkerCmd,
		status.StatusCmd,
		cancel.CancelCmd,
	},
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "stint",
	Description: `Stint executes long-running administrative batch jobs as an ordered
collection of operation sets, resumably, across a sequence of short-lived worker
processes. Each worker persists the batch before it exits, so a job survives
process hand-offs with no data loss and no duplicated work.`,
	Usage:                 "stint run myjob.yaml",
	EnableShellCompletion: true,
}
