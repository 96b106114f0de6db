// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cancel contains the command that tears down a persisted batch.
package cancel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/peterh/liner"
	"github.com/stint-run/stint/internal/ctxlog"
	"github.com/stint-run/stint/internal/opqueue"
	"github.com/stint-run/stint/internal/store"
	"github.com/urfave/cli/v3"
)

const (
	idArg     = "id"
	stateFlag = "state"
	yesFlag   = "yes"
)

// ErrAborted is returned when the user declines the confirmation prompt.
var ErrAborted = errors.New("cancelled by user")

// CancelCmd deletes a persisted batch and destroys its queues. Finish
// callbacks do not run; a cancelled batch is abandoned, not completed.
var CancelCmd = &cli.Command{
	Name:        "cancel",
	Description: "Abandon a persisted batch: delete its snapshot and destroy its queues.",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      idArg,
			UsageText: "BATCH-ID",
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
		&cli.BoolFlag{
			Name:     yesFlag,
			Aliases:  []string{"y"},
			Usage:    "Skip the confirmation prompt",
			OnlyOnce: true,
		},
	},
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg(idArg)
	if id == "" {
		return cli.Exit("Please provide a batch id to cancel", 1)
	}

	if !cmd.Bool(yesFlag) {
		if err := confirm(id); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

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

	b, err := st.Read(id)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var errs *multierror.Error

	for _, s := range b.Sets {
		if derr := opqueue.Open(st.DB(), s.ID).Destroy(); derr != nil {
			errs = multierror.Append(errs, derr)
		}
	}

	if derr := st.Delete(id); derr != nil {
		errs = multierror.Append(errs, derr)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ctxlog.Info(ctx, "batch cancelled", "batch", id)

	return nil
}

func confirm(id string) error {
	line := liner.NewLiner()
	defer line.Close() //nolint:errcheck

	answer, err := line.Prompt(fmt.Sprintf("Abandon batch %s and destroy its state? (y/N) ", id))
	if errors.Is(err, liner.ErrPromptAborted) {
		return ErrAborted
	}

	if err != nil {
		return err
	}

	if strings.ToLower(strings.TrimSpace(answer)) != "y" {
		return ErrAborted
	}

	return nil
}
