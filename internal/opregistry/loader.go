// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package opregistry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/afero"
	"github.com/stint-run/stint/internal/batch"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Extra-code files are plain Go source interpreted at run time. A file may
// declare either or both of:
//
//	func Operations() map[string]func(args []any, sandbox map[string]any) (float64, string, error)
//	func Finishers() map[string]func(success bool, results []any, operations []string, elapsed string)
//
// An operation func receives the stored arguments and the set's live sandbox,
// and returns its completion fraction (>= 1 means done), an informational
// message, and an error. Errors are tolerated by the worker loop.
const (
	operationsFuncName = "Operations"
	finishersFuncName  = "Finishers"
)

var (
	// ErrLoadCode is returned when an extra-code file cannot be interpreted.
	ErrLoadCode = errors.New("failed to load extra code")
	// ErrCodeContract is returned when an extra-code file declares the wrong
	// shapes.
	ErrCodeContract = errors.New("extra code does not match the loader contract")
)

type extraOperation = func(args []any, sandbox map[string]any) (float64, string, error)

type extraFinisher = func(success bool, results []any, operations []string, elapsed string)

// LoadFile interprets an extra-code file and registers everything it
// declares. Loading the same path twice is a no-op, so a set's code can be
// ensured loaded on every worker pass.
func (r *Registry) LoadFile(path string) error {
	r.mu.Lock()
	if _, ok := r.loaded[path]; ok {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	src, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoadCode, path, err)
	}

	if len(strings.TrimSpace(string(src))) == 0 {
		return fmt.Errorf("%w: %s is empty", ErrLoadCode, path)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoadCode, path, err)
	}

	if _, err := i.Eval(string(src)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoadCode, path, err)
	}

	if err := r.loadOperations(i, path); err != nil {
		return err
	}

	if err := r.loadFinishers(i, path); err != nil {
		return err
	}

	r.mu.Lock()
	r.loaded[path] = struct{}{}
	r.mu.Unlock()

	return nil
}

func (r *Registry) loadOperations(i *interp.Interpreter, path string) error {
	v, err := i.Eval(operationsFuncName)
	if err != nil {
		// The file declares no operations; that is fine.
		return nil
	}

	m, err := callMapFunc[extraOperation](v, operationsFuncName)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCodeContract, path, err)
	}

	for name, fn := range m {
		r.RegisterOperation(name, wrapExtraOperation(fn))
	}

	return nil
}

func (r *Registry) loadFinishers(i *interp.Interpreter, path string) error {
	v, err := i.Eval(finishersFuncName)
	if err != nil {
		return nil
	}

	m, err := callMapFunc[extraFinisher](v, finishersFuncName)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCodeContract, path, err)
	}

	for name, fn := range m {
		r.RegisterFinish(name, wrapExtraFinisher(fn))
	}

	return nil
}

// callMapFunc reflect-calls a nullary interpreted function and converts its
// single return value to map[string]T.
func callMapFunc[T any](v reflect.Value, name string) (map[string]T, error) {
	if !v.IsValid() || v.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", name)
	}

	results := v.Call(nil)
	if len(results) != 1 {
		return nil, fmt.Errorf("%s must return a single map", name)
	}

	m, ok := results[0].Interface().(map[string]T)
	if !ok {
		return nil, fmt.Errorf("%s returned %T", name, results[0].Interface())
	}

	return m, nil
}

func wrapExtraOperation(fn extraOperation) OperationFunc {
	return func(_ context.Context, args []any, bc *batch.Context) (string, error) {
		fraction, msg, err := fn(args, bc.Sandbox)
		bc.Fraction = fraction

		return msg, err
	}
}

func wrapExtraFinisher(fn extraFinisher) FinishFunc {
	return func(_ context.Context, success bool, results []any, ops []batch.Operation, elapsed string) error {
		names := make([]string, 0, len(ops))
		for _, op := range ops {
			names = append(names, op.Name)
		}

		fn(success, results, names, elapsed)

		return nil
	}
}
