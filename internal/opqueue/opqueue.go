// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package opqueue provides the durable FIFO operation queue backing a batch
// set. Claim returns the head of the queue without removing it; an operation
// only leaves the queue when Delete marks it fully processed. Re-claiming the
// same head is how a partially-complete operation is resumed, in the same
// process or the next one.
//
// There is never more than one active worker per batch, so the queue needs
// completion marking, not contention safety.
package opqueue

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/stint-run/stint/internal/batch"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

var (
	// ErrNoQueue is returned when the queue's buckets do not exist.
	ErrNoQueue = errors.New("operation queue does not exist")
	// ErrNotClaimed is returned when Delete is called without a prior Claim.
	ErrNotClaimed = errors.New("no claimed operation to delete")
	// ErrEncode is returned when an operation cannot be serialized.
	ErrEncode = errors.New("failed to encode operation")
	// ErrDecode is returned when a stored operation cannot be deserialized.
	ErrDecode = errors.New("failed to decode operation")
)

var (
	rootBucket    = []byte("queues")
	pendingBucket = []byte("pending")
	allBucket     = []byte("all")
)

// Queue is a handle on one set's durable operation queue.
type Queue struct {
	db *bolt.DB
	id string

	// key of the operation returned by the last Claim, consumed by Delete.
	claimed []byte
}

// Create makes the buckets for a new queue and returns a handle on it.
func Create(db *bolt.DB, id string) (*Queue, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(rootBucket)
		if err != nil {
			return err
		}

		q, err := root.CreateBucketIfNotExists([]byte(id))
		if err != nil {
			return err
		}

		if _, err := q.CreateBucketIfNotExists(pendingBucket); err != nil {
			return err
		}

		_, err = q.CreateBucketIfNotExists(allBucket)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create queue %s: %w", id, err)
	}

	return &Queue{db: db, id: id}, nil
}

// Open returns a handle on an existing queue.
func Open(db *bolt.DB, id string) *Queue {
	return &Queue{db: db, id: id}
}

// Enqueue appends an operation to the queue.
func (q *Queue) Enqueue(op batch.Operation) error {
	raw, err := msgpack.Marshal(op)
	if err != nil {
		return errors.Join(ErrEncode, err)
	}

	return q.db.Update(func(tx *bolt.Tx) error {
		pending, all, err := q.buckets(tx)
		if err != nil {
			return err
		}

		seq, err := all.NextSequence()
		if err != nil {
			return err
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		if err := pending.Put(key, raw); err != nil {
			return err
		}

		return all.Put(key, raw)
	})
}

// Claim returns the operation at the head of the queue, or false if the
// queue is empty. The operation stays at the head until Delete is called.
func (q *Queue) Claim() (batch.Operation, bool, error) {
	var (
		op  batch.Operation
		got bool
	)

	err := q.db.View(func(tx *bolt.Tx) error {
		pending, _, err := q.buckets(tx)
		if err != nil {
			return err
		}

		k, v := pending.Cursor().First()
		if k == nil {
			return nil
		}

		if err := msgpack.Unmarshal(v, &op); err != nil {
			return errors.Join(ErrDecode, err)
		}

		q.claimed = append([]byte(nil), k...)
		got = true

		return nil
	})
	if err != nil {
		return batch.Operation{}, false, err
	}

	return op, got, nil
}

// Delete permanently marks the claimed operation as processed.
func (q *Queue) Delete(_ batch.Operation) error {
	if q.claimed == nil {
		return ErrNotClaimed
	}

	err := q.db.Update(func(tx *bolt.Tx) error {
		pending, _, err := q.buckets(tx)
		if err != nil {
			return err
		}

		return pending.Delete(q.claimed)
	})
	if err != nil {
		return err
	}

	q.claimed = nil

	return nil
}

// ListAll returns every operation ever enqueued, in order, including ones
// already processed. Used for finish-callback reporting.
func (q *Queue) ListAll() ([]batch.Operation, error) {
	var ops []batch.Operation

	err := q.db.View(func(tx *bolt.Tx) error {
		_, all, err := q.buckets(tx)
		if err != nil {
			return err
		}

		return all.ForEach(func(_, v []byte) error {
			var op batch.Operation
			if err := msgpack.Unmarshal(v, &op); err != nil {
				return errors.Join(ErrDecode, err)
			}

			ops = append(ops, op)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return ops, nil
}

// Len returns the number of pending operations.
func (q *Queue) Len() (int, error) {
	var n int

	err := q.db.View(func(tx *bolt.Tx) error {
		pending, _, err := q.buckets(tx)
		if err != nil {
			return err
		}

		n = pending.Stats().KeyN

		return nil
	})
	if err != nil {
		return 0, err
	}

	return n, nil
}

// Destroy releases all storage held by the queue.
func (q *Queue) Destroy() error {
	return q.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(rootBucket)
		if root == nil {
			return nil
		}

		if root.Bucket([]byte(q.id)) == nil {
			return nil
		}

		return root.DeleteBucket([]byte(q.id))
	})
}

func (q *Queue) buckets(tx *bolt.Tx) (pending, all *bolt.Bucket, err error) {
	root := tx.Bucket(rootBucket)
	if root == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoQueue, q.id)
	}

	qb := root.Bucket([]byte(q.id))
	if qb == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoQueue, q.id)
	}

	return qb.Bucket(pendingBucket), qb.Bucket(allBucket), nil
}
