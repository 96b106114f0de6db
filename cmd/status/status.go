// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package status contains the command that inspects persisted batches.
package status

import (
	"context"
	"fmt"
	"os"

	"github.com/TylerBrock/colorjson"
	"github.com/stint-run/stint/internal/batch"
	"github.com/stint-run/stint/internal/color"
	"github.com/stint-run/stint/internal/store"
	"github.com/urfave/cli/v3"
)

const (
	idArg     = "id"
	stateFlag = "state"
)

// StatusCmd shows the persisted state of one batch, or lists all batch ids
// when no id is given. It opens the state file read-only, so it is safe
// while a job is running.
var StatusCmd = &cli.Command{
	Name:        "status",
	Description: "Show the progress of a persisted batch, or list all batches.",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      idArg,
			UsageText: "[BATCH-ID]",
			Config: cli.StringConfig{
				TrimSpace: true,
			},
		},
	},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     stateFlag,
			Usage:    "Path of the durable state file",
			OnlyOnce: true,
		},
	},
	Action: actionFunc,
}

func actionFunc(_ context.Context, cmd *cli.Command) error {
	statePath := cmd.String(stateFlag)
	if statePath == "" {
		var err error
		if statePath, err = store.DefaultPath(); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

	st, err := store.OpenReadOnly(statePath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	defer st.Close() //nolint:errcheck

	id := cmd.StringArg(idArg)
	if id == "" {
		return listBatches(cmd, st)
	}

	b, err := st.Read(id)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return render(cmd, statusView(b))
}

func listBatches(cmd *cli.Command, st *store.Store) error {
	ids, err := st.List()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return render(cmd, map[string]any{"batches": ids})
}

func statusView(b *batch.Batch) map[string]any {
	sets := make([]any, 0, len(b.Sets))

	for i, s := range b.Sets {
		current, pct := s.Progress()
		sets = append(sets, map[string]any{
			"id":         s.ID,
			"active":     i == b.Active,
			"success":    s.Success,
			"total":      s.Total,
			"remaining":  s.Remaining,
			"current":    current,
			"percentage": pct,
			"elapsed":    batch.FormatElapsed(s.Elapsed),
		})
	}

	return map[string]any{
		"id":         b.ID,
		"running":    b.Running,
		"finished":   b.Finished(),
		"percentage": b.Percentage(),
		"sets":       sets,
	}
}

func render(cmd *cli.Command, v map[string]any) error {
	f := colorjson.NewFormatter()
	f.Indent = 2
	f.DisabledColor = !color.Enabled(os.Stdout)

	out, err := f.Marshal(v)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to render status: %s", err.Error()), 1)
	}

	fmt.Fprintln(cmd.Writer, string(out))

	return nil
}
