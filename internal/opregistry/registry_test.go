// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package opregistry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stint-run/stint/internal/batch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRegistered(t *testing.T) {
	called := false

	r := New(afero.NewMemMapFs(), func(r *Registry) {
		r.RegisterOperation("touch", func(context.Context, []any, *batch.Context) (string, error) {
			called = true

			return "", nil
		})
	})

	fn, err := r.Operation("touch")
	require.NoError(t, err)

	_, err = fn(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, called)
}

func TestResolveUnknown(t *testing.T) {
	r := New(afero.NewMemMapFs())

	_, err := r.Operation("nope")
	assert.ErrorIs(t, err, ErrUnknownOperation)

	_, err = r.Control("nope")
	assert.ErrorIs(t, err, ErrUnknownControl)

	_, ok := r.Finish("nope")
	assert.False(t, ok)
}

const extraCode = `package main

func Operations() map[string]func(args []any, sandbox map[string]any) (float64, string, error) {
	return map[string]func(args []any, sandbox map[string]any) (float64, string, error){
		"count_to": func(args []any, sandbox map[string]any) (float64, string, error) {
			limit := args[0].(int)

			n, _ := sandbox["n"].(int)
			n++
			sandbox["n"] = n

			return float64(n) / float64(limit), "counted", nil
		},
	}
}

func Finishers() map[string]func(success bool, results []any, operations []string, elapsed string) {
	return map[string]func(success bool, results []any, operations []string, elapsed string){
		"count_done": func(success bool, results []any, operations []string, elapsed string) {},
	}
}
`

func TestLoadFileRegistersInterpretedCode(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/extra.go", []byte(extraCode), 0o600))

	r := New(fs)
	require.NoError(t, r.LoadFile("/extra.go"))

	fn, err := r.Operation("count_to")
	require.NoError(t, err)

	s := batch.NewSet("s")
	bc := newTestContext(s)

	msg, err := fn(context.Background(), []any{2}, bc)
	require.NoError(t, err)
	assert.Equal(t, "counted", msg)
	assert.InDelta(t, 0.5, bc.Fraction, 1e-9)
	assert.Equal(t, 1, bc.Sandbox["n"])

	// Second invocation sees the mutated sandbox and completes.
	_, err = fn(context.Background(), []any{2}, bc)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, bc.Fraction, 1e-9)

	ffn, ok := r.Finish("count_done")
	require.True(t, ok)
	assert.NoError(t, ffn(context.Background(), true, nil, []batch.Operation{{Name: "count_to"}}, "1s"))
}

func TestLoadFileIsIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/extra.go", []byte(extraCode), 0o600))

	r := New(fs)
	require.NoError(t, r.LoadFile("/extra.go"))
	require.NoError(t, r.LoadFile("/extra.go"))
}

func TestLoadFileMissing(t *testing.T) {
	r := New(afero.NewMemMapFs())
	assert.ErrorIs(t, r.LoadFile("/absent.go"), ErrLoadCode)
}

func TestLoadFileEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/empty.go", []byte("  \n"), 0o600))

	r := New(fs)
	assert.ErrorIs(t, r.LoadFile("/empty.go"), ErrLoadCode)
}

func TestLoadFileBrokenSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/broken.go", []byte("package main\n\nfunc {"), 0o600))

	r := New(fs)
	assert.ErrorIs(t, r.LoadFile("/broken.go"), ErrLoadCode)
}

func TestLoadFileContractViolation(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := "package main\n\nfunc Operations() int { return 1 }\n"
	require.NoError(t, afero.WriteFile(fs, "/wrong.go", []byte(src), 0o600))

	r := New(fs)
	assert.ErrorIs(t, r.LoadFile("/wrong.go"), ErrCodeContract)
}

func newTestContext(s *batch.Set) *batch.Context {
	return batch.NewContext(s, discardLogger(), &batch.SlogSink{Logger: discardLogger()})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
