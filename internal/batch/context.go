// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package batch

import (
	"log/slog"
)

// ErrorSink receives operation errors. Recording an error never aborts the
// batch; tolerated failures are surfaced here and the loop moves on.
type ErrorSink interface {
	RecordError(code int, message string)
}

// SlogSink is an ErrorSink that forwards to a slog.Logger.
type SlogSink struct {
	Logger *slog.Logger
	count  int
}

// RecordError implements ErrorSink.
func (s *SlogSink) RecordError(code int, message string) {
	s.count++
	s.Logger.Error(message, "code", code)
}

// Count returns the number of errors recorded so far.
func (s *SlogSink) Count() int {
	return s.count
}

// Context is the ephemeral record passed into one operation invocation. It is
// rebuilt for every invocation: Sandbox and Results are mutable views into
// the owning set, Fraction defaults to fully complete and Message is empty.
//
// SetMessage and SetErrorMessage are side-effecting writes: the text is
// forwarded to the logging and error collaborators at the moment it is set,
// not merely stored.
type Context struct {
	Sandbox  map[string]any
	Results  []any
	Fraction float64
	Message  string

	logger *slog.Logger
	sink   ErrorSink
}

// NewContext builds a Context for one invocation against the given set.
func NewContext(s *Set, logger *slog.Logger, sink ErrorSink) *Context {
	if s.Sandbox == nil {
		s.Sandbox = make(map[string]any)
	}

	return &Context{
		Sandbox:  s.Sandbox,
		Results:  s.Results,
		Fraction: 1,
		logger:   logger,
		sink:     sink,
	}
}

// SetMessage records a human-readable status message and logs it.
func (c *Context) SetMessage(msg string) {
	c.Message = msg
	c.logger.Info(msg)
}

// SetErrorMessage records an operation error message through the error
// collaborator. The batch keeps running.
func (c *Context) SetErrorMessage(msg string) {
	c.sink.RecordError(0, msg)
}

// Fold writes the context's sandbox and results back into the owning set.
// Called exactly once, when the invocation returns; nothing else aliases the
// set's state while the context is live.
func (s *Set) Fold(c *Context) {
	s.Sandbox = c.Sandbox
	s.Results = c.Results
}
