// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package store persists batch snapshots between worker processes. Only a
// serialized snapshot ever crosses the store boundary, never a live batch
// value. The underlying bolt file holds an exclusive lock, so a process opens
// the store for its ownership window and closes it before handing off.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stint-run/stint/internal/batch"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

var (
	// ErrNoBatch is returned when no snapshot exists for the given id.
	ErrNoBatch = errors.New("no batch found")
	// ErrCorruptBatch is returned when a stored snapshot cannot be decoded.
	ErrCorruptBatch = errors.New("stored batch cannot be decoded")
	// ErrBatchExists is returned when Create finds a snapshot already stored.
	ErrBatchExists = errors.New("batch already exists")
)

var batchBucket = []byte("batches")

const (
	fileMode    = 0o600
	dirMode     = 0o750
	openTimeout = 5 * time.Second
)

// Store is a handle on the durable state file.
type Store struct {
	db *bolt.DB
}

// DefaultPath returns the state file location: $STINT_STATE_DIR/state.db or
// the user cache directory.
func DefaultPath() (string, error) {
	if dir := os.Getenv("STINT_STATE_DIR"); dir != "" {
		return filepath.Join(dir, "state.db"), nil
	}

	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine state directory: %w", err)
	}

	return filepath.Join(dir, "stint", "state.db"), nil
}

// Open opens (creating if necessary) the state file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open state file %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// OpenReadOnly opens the state file without taking the writer lock, for
// inspection while a job may be running.
func OpenReadOnly(path string) (*Store, error) {
	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: openTimeout, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open state file %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying bolt handle so operation queues share the same
// file and transactions domain.
func (s *Store) DB() *bolt.DB {
	return s.db
}

// Close releases the state file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create stores the first snapshot of a batch.
func (s *Store) Create(b *batch.Batch) error {
	raw, err := msgpack.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode batch %s: %w", b.ID, err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists(batchBucket)
		if err != nil {
			return err
		}

		if bkt.Get([]byte(b.ID)) != nil {
			return fmt.Errorf("%w: %s", ErrBatchExists, b.ID)
		}

		return bkt.Put([]byte(b.ID), raw)
	})
}

// Read loads the snapshot for id. A missing or undecodable snapshot is fatal
// to the calling worker pass, reported as ErrNoBatch / ErrCorruptBatch.
func (s *Store) Read(id string) (*batch.Batch, error) {
	var raw []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(batchBucket)
		if bkt == nil {
			return fmt.Errorf("%w: %s", ErrNoBatch, id)
		}

		v := bkt.Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNoBatch, id)
		}

		raw = append([]byte(nil), v...)

		return nil
	})
	if err != nil {
		return nil, err
	}

	b := &batch.Batch{}
	if err := msgpack.Unmarshal(raw, b); err != nil {
		return nil, errors.Join(ErrCorruptBatch, err)
	}

	return b, nil
}

// Update overwrites the snapshot for an existing batch.
func (s *Store) Update(b *batch.Batch) error {
	raw, err := msgpack.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode batch %s: %w", b.ID, err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists(batchBucket)
		if err != nil {
			return err
		}

		return bkt.Put([]byte(b.ID), raw)
	})
}

// Delete removes the snapshot for id. Deleting an absent snapshot is not an
// error.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(batchBucket)
		if bkt == nil {
			return nil
		}

		return bkt.Delete([]byte(id))
	})
}

// List returns the ids of all stored batches.
func (s *Store) List() ([]string, error) {
	var ids []string

	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(batchBucket)
		if bkt == nil {
			return nil
		}

		return bkt.ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}
