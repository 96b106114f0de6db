// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package settings is the runtime configuration collaborator for the worker
// loop. It currently carries a single flag: whether errors raised inside an
// operation invocation abort the process. The worker forces the flag to
// non-fatal around each invocation and restores the prior value afterwards,
// so one failing operation never terminates the whole batch.
package settings

import "sync"

// Store holds mutable runtime settings.
type Store struct {
	mu          sync.Mutex
	errorsFatal bool
}

// New creates a Store with errors fatal by default.
func New() *Store {
	return &Store{errorsFatal: true}
}

// ErrorsFatal reports whether operation errors abort the process.
func (s *Store) ErrorsFatal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.errorsFatal
}

// SetErrorsFatal sets the flag and returns the previous value, so callers
// can restore it.
func (s *Store) SetErrorsFatal(v bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.errorsFatal
	s.errorsFatal = v

	return prev
}
