// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package supervisor

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func requireShell(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestExecSpawnerDecodesResultDocument(t *testing.T) {
	requireShell(t)
	defer goleak.VerifyNone(t)

	res, err := ExecSpawner{}.Spawn(context.Background(), "/bin/sh", []string{
		"-c", `printf 'batch_process_finished: true\npercentage: 100\nmessage: all done\n'`,
	}, SpawnOptions{})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.False(t, res.Err)
	assert.Equal(t, true, res.Context["batch_process_finished"])
	assert.Equal(t, "all done", res.Context["message"])
	assert.InDelta(t, 100.0, floatValue(res.Context["percentage"]), 1e-9)
}

func TestExecSpawnerFailedProcessWithoutOutput(t *testing.T) {
	requireShell(t)

	res, err := ExecSpawner{}.Spawn(context.Background(), "/bin/sh", []string{"-c", "exit 3"}, SpawnOptions{})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Err)
}

func TestExecSpawnerSilentSuccessIsBadDocument(t *testing.T) {
	requireShell(t)

	_, err := ExecSpawner{}.Spawn(context.Background(), "/bin/sh", []string{"-c", "exit 0"}, SpawnOptions{})
	assert.ErrorIs(t, err, ErrBadResultDocument)
}

func TestExecSpawnerKillsChildOnCancel(t *testing.T) {
	requireShell(t)
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())

	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := ExecSpawner{}.Spawn(ctx, "/bin/sh", []string{"-c", "sleep 30"}, SpawnOptions{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecSpawnerMissingBinary(t *testing.T) {
	requireShell(t)

	_, err := ExecSpawner{}.Spawn(context.Background(), "/no/such/binary", nil, SpawnOptions{})
	assert.ErrorIs(t, err, ErrCouldNotStartProcess)
}
