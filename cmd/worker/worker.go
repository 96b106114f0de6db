// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package worker contains the hidden command the supervisor spawns: one
// worker pass over a persisted batch. Log output goes to stderr; stdout
// carries exactly one YAML result document for the supervisor to decode.
package worker

import (
	"context"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
	"github.com/stint-run/stint/internal/opregistry"
	"github.com/stint-run/stint/internal/ops"
	"github.com/stint-run/stint/internal/settings"
	"github.com/stint-run/stint/internal/store"
	"github.com/stint-run/stint/internal/worker"
	"github.com/urfave/cli/v3"
)

const (
	idFlag            = "id"
	stateFlag         = "state"
	memoryCeilingFlag = "memory-ceiling"
)

// WorkerCmd runs one worker pass. It is spawned by `stint run` and not meant
// to be invoked by hand, but doing so against a valid state file is
// harmless: it performs one pass and persists.
var WorkerCmd = &cli.Command{
	Name:   "worker",
	Hidden: true,
	Usage:  "run one worker pass over a persisted batch (spawned by `stint run`)",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     idFlag,
			Usage:    "Batch id to process",
			Required: true,
			OnlyOnce: true,
		},
		&cli.StringFlag{
			Name:     stateFlag,
			Usage:    "Path of the durable state file",
			OnlyOnce: true,
		},
		&cli.Uint64Flag{
			Name:  memoryCeilingFlag,
			Usage: "Advisory memory ceiling in bytes; 0 disables the check",
			Value: 0,
		},
	},
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	statePath := cmd.String(stateFlag)
	if statePath == "" {
		var err error
		if statePath, err = store.DefaultPath(); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

	st, err := store.Open(statePath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	defer st.Close() //nolint:errcheck

	w := &worker.Worker{
		Store:         st,
		Registry:      opregistry.New(afero.NewOsFs(), ops.Register),
		Settings:      settings.New(),
		MemoryCeiling: cmd.Uint64(memoryCeilingFlag),
	}

	report, err := w.Run(ctx, cmd.String(idFlag))
	if err != nil {
		return cli.Exit(fmt.Sprintf("worker pass failed: %s", err.Error()), 1)
	}

	raw, err := yaml.Marshal(report)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to encode result: %s", err.Error()), 1)
	}

	if _, err := cmd.Writer.Write(raw); err != nil {
		return cli.Exit(fmt.Sprintf("failed to write result: %s", err.Error()), 1)
	}

	return nil
}
