// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package batch

import (
	"slices"
	"time"
)

// Operation is one unit of queued work: the registered name of its logic plus
// a fixed list of plain, serializable arguments. Live code references are
// never persisted; the name is resolved through the operation registry in
// whichever process claims the operation.
type Operation struct {
	Name string `msgpack:"name"`
	Args []any  `msgpack:"args"`
}

// Set is a group of operations sharing a sandbox, a results accumulator and
// an optional finish callback. Its queue lives in durable storage and is
// addressed by the set ID.
type Set struct {
	ID              string         `msgpack:"id"`
	Sandbox         map[string]any `msgpack:"sandbox"`
	Results         []any          `msgpack:"results"`
	Total           int            `msgpack:"total"`
	Remaining       int            `msgpack:"remaining"`
	Success         bool           `msgpack:"success"`
	Started         time.Time      `msgpack:"started"`
	Elapsed         time.Duration  `msgpack:"elapsed"`
	Fraction        float64        `msgpack:"fraction"`
	InitMessage     string         `msgpack:"init_message"`
	ProgressMessage string         `msgpack:"progress_message"`
	Finish          string         `msgpack:"finish"`
	Code            string         `msgpack:"code"`
	Control         *Operation     `msgpack:"control,omitempty"`
}

// Batch is the whole job: an ordered list of sets, a stable identifier
// assigned once by the supervisor, and the cursor of the currently active
// set. The cursor only ever moves forward.
type Batch struct {
	ID      string `msgpack:"id"`
	Sets    []*Set `msgpack:"sets"`
	Active  int    `msgpack:"active"`
	Running bool   `msgpack:"running"`
}

// NewSet creates an empty set with the given stable id.
func NewSet(id string) *Set {
	return &Set{
		ID:      id,
		Sandbox: make(map[string]any),
		Results: make([]any, 0),
	}
}

// ActiveSet returns the set under the cursor, or nil if the cursor is out of
// range.
func (b *Batch) ActiveSet() *Set {
	if b.Active < 0 || b.Active >= len(b.Sets) {
		return nil
	}

	return b.Sets[b.Active]
}

// Finished reports whether every set has completed successfully.
func (b *Batch) Finished() bool {
	for _, s := range b.Sets {
		if !s.Success {
			return false
		}
	}

	return true
}

// InsertSets inserts sets immediately after the cursor. This is the single
// sanctioned post-construction mutation of the set list, applied by a control
// operation at the set-advance point.
func (b *Batch) InsertSets(sets ...*Set) {
	if len(sets) == 0 {
		return
	}

	b.Sets = slices.Insert(b.Sets, b.Active+1, sets...)
}

// Advance marks the active set successful, records its elapsed time and
// moves the cursor to the next set if one exists. It returns false when
// there is no further set, i.e. the whole batch is done.
func (b *Batch) Advance(now time.Time) bool {
	s := b.ActiveSet()
	if s != nil {
		s.Success = true

		if !s.Started.IsZero() {
			s.Elapsed = now.Sub(s.Started)
		}
	}

	if b.Active+1 >= len(b.Sets) {
		return false
	}

	b.Active++
	b.Sets[b.Active].Started = now

	return true
}
