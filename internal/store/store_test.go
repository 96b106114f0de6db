// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stint-run/stint/internal/batch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	st, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, st.Close())
	})

	return st
}

func sampleBatch() *batch.Batch {
	return &batch.Batch{
		ID: "batch-1",
		Sets: []*batch.Set{
			{
				ID:        "set-a",
				Sandbox:   map[string]any{"cursor": int64(42), "token": "abc"},
				Results:   []any{"r1", "r2"},
				Total:     5,
				Remaining: 3,
				Fraction:  0.5,
				Started:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				Finish:    "wrap_up",
			},
			{
				ID:        "set-b",
				Total:     2,
				Remaining: 2,
			},
		},
		Active:  0,
		Running: true,
	}
}

func TestRoundTrip(t *testing.T) {
	st := testStore(t)

	in := sampleBatch()
	require.NoError(t, st.Create(in))

	out, err := st.Read("batch-1")
	require.NoError(t, err)

	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Active, out.Active)
	assert.Equal(t, in.Running, out.Running)
	require.Len(t, out.Sets, 2)

	// Set identity, ordering and resume state all survive the trip.
	assert.Equal(t, "set-a", out.Sets[0].ID)
	assert.Equal(t, "set-b", out.Sets[1].ID)
	assert.Equal(t, 3, out.Sets[0].Remaining)
	assert.InDelta(t, 0.5, out.Sets[0].Fraction, 1e-9)
	assert.EqualValues(t, 42, out.Sets[0].Sandbox["cursor"])
	assert.Equal(t, "abc", out.Sets[0].Sandbox["token"])
	assert.Equal(t, "wrap_up", out.Sets[0].Finish)
	assert.True(t, in.Sets[0].Started.Equal(out.Sets[0].Started))
}

func TestCreateDuplicate(t *testing.T) {
	st := testStore(t)

	require.NoError(t, st.Create(sampleBatch()))
	assert.ErrorIs(t, st.Create(sampleBatch()), ErrBatchExists)
}

func TestReadMissing(t *testing.T) {
	st := testStore(t)

	_, err := st.Read("nope")
	assert.ErrorIs(t, err, ErrNoBatch)
}

func TestUpdateOverwrites(t *testing.T) {
	st := testStore(t)

	b := sampleBatch()
	require.NoError(t, st.Create(b))

	b.Sets[0].Remaining = 0
	b.Sets[0].Success = true
	b.Active = 1
	require.NoError(t, st.Update(b))

	out, err := st.Read(b.ID)
	require.NoError(t, err)
	assert.Zero(t, out.Sets[0].Remaining)
	assert.True(t, out.Sets[0].Success)
	assert.Equal(t, 1, out.Active)
}

func TestDeleteIsIdempotent(t *testing.T) {
	st := testStore(t)

	b := sampleBatch()
	require.NoError(t, st.Create(b))
	require.NoError(t, st.Delete(b.ID))

	_, err := st.Read(b.ID)
	assert.ErrorIs(t, err, ErrNoBatch)

	assert.NoError(t, st.Delete(b.ID))
	assert.NoError(t, st.Delete("never-existed"))
}

func TestList(t *testing.T) {
	st := testStore(t)

	ids, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	a := sampleBatch()
	require.NoError(t, st.Create(a))

	b := sampleBatch()
	b.ID = "batch-2"
	require.NoError(t, st.Create(b))

	ids, err = st.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"batch-1", "batch-2"}, ids)
}
