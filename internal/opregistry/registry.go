// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package opregistry resolves the serializable operation references stored in
// queues back to executable logic. Every queued operation is a stable name
// plus plain argument values; the worker process looks the name up here
// before invoking it. Registrations come from compiled-in operation packages
// and from extra-code files interpreted at run time.
package opregistry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/afero"
	"github.com/stint-run/stint/internal/batch"
)

var (
	// ErrUnknownOperation is returned when an operation name is not registered.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrUnknownControl is returned when a control operation name is not registered.
	ErrUnknownControl = errors.New("unknown control operation")
)

// OperationFunc is the executable logic behind a queued operation. It
// receives the operation's stored arguments and the per-invocation batch
// context. A non-empty returned message is surfaced as informational output,
// on a separate channel from the context's own message field.
type OperationFunc func(ctx context.Context, args []any, bc *batch.Context) (string, error)

// ControlFunc is the logic behind a control operation: its only effect is to
// describe new sets to append to the batch. It runs at the set-advance point
// and nowhere else.
type ControlFunc func(ctx context.Context, args []any) ([]batch.SetSpec, error)

// FinishFunc is a set's finishing callback, invoked once by the finalizer
// with the set's success flag, accumulated results, every operation that was
// enqueued, and the humanized elapsed time.
type FinishFunc func(ctx context.Context, success bool, results []any, ops []batch.Operation, elapsed string) error

// Registry maps names to operations, control operations and finish
// callbacks.
type Registry struct {
	mu       sync.RWMutex
	ops      map[string]OperationFunc
	controls map[string]ControlFunc
	finishes map[string]FinishFunc
	loaded   map[string]struct{}
	fs       afero.Fs
}

// RegisterFunc registers names into a registry. Operation packages export one
// so binaries can assemble a registry declaratively.
type RegisterFunc func(r *Registry)

// New creates a registry, applying the given registration functions. The
// filesystem is used by the extra-code loader.
func New(fs afero.Fs, registrations ...RegisterFunc) *Registry {
	r := &Registry{
		ops:      make(map[string]OperationFunc),
		controls: make(map[string]ControlFunc),
		finishes: make(map[string]FinishFunc),
		loaded:   make(map[string]struct{}),
		fs:       fs,
	}

	for _, reg := range registrations {
		reg(r)
	}

	return r
}

// RegisterOperation adds an operation under the given name, replacing any
// previous registration.
func (r *Registry) RegisterOperation(name string, fn OperationFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops[name] = fn
}

// RegisterControl adds a control operation under the given name.
func (r *Registry) RegisterControl(name string, fn ControlFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.controls[name] = fn
}

// RegisterFinish adds a finish callback under the given name.
func (r *Registry) RegisterFinish(name string, fn FinishFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finishes[name] = fn
}

// Operation resolves an operation name.
func (r *Registry) Operation(name string) (OperationFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.ops[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}

	return fn, nil
}

// Control resolves a control operation name.
func (r *Registry) Control(name string) (ControlFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.controls[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownControl, name)
	}

	return fn, nil
}

// Finish resolves a finish callback name. A missing callback is not an
// error; the finalizer simply skips it.
func (r *Registry) Finish(name string) (FinishFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.finishes[name]

	return fn, ok
}
