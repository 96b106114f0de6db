// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package batch

// SetSpec describes a set before it is materialized: definition loaders
// produce these from YAML/HCL files, and control operations return them to
// append work to a running batch. Materializing a spec (assigning the stable
// id, creating and populating the queue) is the builder's job.
type SetSpec struct {
	InitMessage     string
	ProgressMessage string
	Finish          string
	Code            string
	Control         *Operation
	Operations      []Operation
}

// Materialize converts the spec into a set with the given stable id. The
// operation queue is created and populated separately.
func (sp SetSpec) Materialize(id string) *Set {
	s := NewSet(id)
	s.InitMessage = sp.InitMessage
	s.ProgressMessage = sp.ProgressMessage
	s.Finish = sp.Finish
	s.Code = sp.Code
	s.Control = sp.Control
	s.Total = len(sp.Operations)
	s.Remaining = len(sp.Operations)

	return s
}
