// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import (
	"github.com/google/uuid"
	"github.com/stint-run/stint/internal/batch"
	"github.com/stint-run/stint/internal/opqueue"
	bolt "go.etcd.io/bbolt"
)

// Materialize turns set specs into sets with populated durable queues. The
// supervisor uses it when building the initial batch and the worker uses it
// when a control operation appends sets at the set-advance point.
func Materialize(db *bolt.DB, specs []batch.SetSpec) ([]*batch.Set, error) {
	sets := make([]*batch.Set, 0, len(specs))

	for _, spec := range specs {
		s := spec.Materialize(uuid.NewString())

		q, err := opqueue.Create(db, s.ID)
		if err != nil {
			return nil, err
		}

		for _, op := range spec.Operations {
			if err := q.Enqueue(op); err != nil {
				return nil, err
			}
		}

		sets = append(sets, s)
	}

	return sets, nil
}
