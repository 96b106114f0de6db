// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package ops

import (
	"context"
	"runtime"
	"testing"

	"github.com/stint-run/stint/internal/batch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestExecOperationCapturesOutput(t *testing.T) {
	requireShell(t)

	bc := testContext(batch.NewSet("s"))

	msg, err := execOperation(context.Background(), []any{"/bin/sh", "-c", "echo hello"}, bc)
	require.NoError(t, err)
	assert.Equal(t, "ran /bin/sh", msg)

	require.Len(t, bc.Results, 1)
	res, ok := bc.Results[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0, res["exit"])
	assert.Equal(t, "hello\n", res["output"])
}

func TestExecOperationNonZeroExit(t *testing.T) {
	requireShell(t)

	bc := testContext(batch.NewSet("s"))

	_, err := execOperation(context.Background(), []any{"/bin/sh", "-c", "echo oops; exit 3"}, bc)
	assert.ErrorIs(t, err, ErrNonZeroExit)

	// The attempt is still recorded.
	require.Len(t, bc.Results, 1)
	res, ok := bc.Results[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, res["exit"])
}

func TestExecOperationMissingBinary(t *testing.T) {
	requireShell(t)

	bc := testContext(batch.NewSet("s"))

	_, err := execOperation(context.Background(), []any{"/no/such/binary"}, bc)
	assert.ErrorIs(t, err, ErrCouldNotStartProcess)
	assert.Empty(t, bc.Results)
}

func TestExecOperationArgValidation(t *testing.T) {
	bc := testContext(batch.NewSet("s"))

	_, err := execOperation(context.Background(), nil, bc)
	assert.ErrorIs(t, err, ErrBadArgs)

	_, err = execOperation(context.Background(), []any{"/bin/sh", 42}, bc)
	assert.ErrorIs(t, err, ErrBadArgs)
}
