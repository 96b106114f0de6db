// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ops provides the built-in operations, control operations and
// finish callbacks available to every batch definition without extra code.
package ops

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/stint-run/stint/internal/batch"
	"github.com/stint-run/stint/internal/ctxlog"
	"github.com/stint-run/stint/internal/opregistry"
)

var (
	// ErrBadArgs is returned when an operation's stored arguments do not
	// match its contract.
	ErrBadArgs = errors.New("invalid operation arguments")
)

// Register adds all built-in names to the registry.
func Register(r *opregistry.Registry) {
	r.RegisterOperation("log", logOperation)
	r.RegisterOperation("record", recordOperation)
	r.RegisterOperation("sleep", sleepOperation)
	r.RegisterOperation("exec", execOperation)
	r.RegisterControl("append_sets", appendSetsControl)
	r.RegisterFinish("log_summary", logSummaryFinish)
}

// logOperation writes its argument as the set's status message.
// Args: [message].
func logOperation(_ context.Context, args []any, bc *batch.Context) (string, error) {
	msg, err := stringArg(args, 0)
	if err != nil {
		return "", err
	}

	bc.SetMessage(msg)

	return "", nil
}

// recordOperation appends its argument to the set's results accumulator.
// Args: [value].
func recordOperation(_ context.Context, args []any, bc *batch.Context) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("%w: record needs a value", ErrBadArgs)
	}

	bc.Results = append(bc.Results, args[0])

	return "", nil
}

// sleepOperation sleeps in steps, one step per invocation, reporting a
// fractional completion so the worker re-invokes it with the accumulated
// sandbox until all steps are done. Args: [step_duration, steps].
func sleepOperation(ctx context.Context, args []any, bc *batch.Context) (string, error) {
	durStr, err := stringArg(args, 0)
	if err != nil {
		return "", err
	}

	dur, err := time.ParseDuration(durStr)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadArgs, err)
	}

	steps := 1
	if len(args) > 1 {
		steps, err = intArg(args, 1)
		if err != nil {
			return "", err
		}
	}

	done := intSandbox(bc.Sandbox, "done")

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(dur):
	}

	done++
	bc.Sandbox["done"] = done
	bc.Fraction = float64(done) / float64(steps)

	return fmt.Sprintf("slept %d/%d", done, steps), nil
}

// appendSetsControl is the built-in control operation: each argument is a
// set definition in the same shape as a definition file's set entry, and the
// described sets are appended to the batch at the set-advance point.
func appendSetsControl(_ context.Context, args []any) ([]batch.SetSpec, error) {
	specs := make([]batch.SetSpec, 0, len(args))

	for i, arg := range args {
		raw, err := yaml.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: set %d: %w", ErrBadArgs, i, err)
		}

		var sd setShape
		if err := yaml.Unmarshal(raw, &sd); err != nil {
			return nil, fmt.Errorf("%w: set %d: %w", ErrBadArgs, i, err)
		}

		spec := batch.SetSpec{
			InitMessage:     sd.InitMessage,
			ProgressMessage: sd.ProgressMessage,
			Finish:          sd.Finish,
			Code:            sd.Code,
		}

		for _, od := range sd.Operations {
			spec.Operations = append(spec.Operations, batch.Operation{Name: od.Op, Args: od.Args})
		}

		specs = append(specs, spec)
	}

	return specs, nil
}

// setShape mirrors definition.SetDefinition without importing it, so control
// arguments round-trip through plain YAML shapes.
type setShape struct {
	InitMessage     string    `yaml:"init_message"`
	ProgressMessage string    `yaml:"progress_message"`
	Finish          string    `yaml:"finish"`
	Code            string    `yaml:"code"`
	Operations      []opShape `yaml:"operations"`
}

type opShape struct {
	Op   string `yaml:"op"`
	Args []any  `yaml:"args"`
}

// logSummaryFinish logs a one-line completion summary for the set.
func logSummaryFinish(ctx context.Context, success bool, results []any, ops []batch.Operation, elapsed string) error {
	ctxlog.Info(ctx, "set finished",
		"success", success,
		"results", len(results),
		"operations", len(ops),
		"elapsed", elapsed,
	)

	return nil
}

func stringArg(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%w: missing argument %d", ErrBadArgs, i)
	}

	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: argument %d is %T, want string", ErrBadArgs, i, args[i])
	}

	return s, nil
}

func intArg(args []any, i int) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%w: missing argument %d", ErrBadArgs, i)
	}

	switch n := args[i].(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: argument %d is %T, want integer", ErrBadArgs, i, args[i])
	}
}

func intSandbox(sandbox map[string]any, key string) int {
	switch n := sandbox[key].(type) {
	case int:
		return n
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
