// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package definition

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlDefinition = `
name: nightly import
sets:
  - init_message: importing records
    progress_message: "Imported @current of @total"
    finish: import_summary
    operations:
      - op: import_chunk
        args: [records.csv, 100]
      - op: import_chunk
        args: [records.csv, 200]
  - control:
      op: discover_more
      args: [records.csv]
    operations:
      - op: cleanup
`

func TestLoadYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/job.yaml", []byte(yamlDefinition), 0o600))

	def, err := Load(fs, "/job.yaml")
	require.NoError(t, err)

	assert.Equal(t, "nightly import", def.Name)
	require.Len(t, def.Sets, 2)

	first := def.Sets[0]
	assert.Equal(t, "importing records", first.InitMessage)
	assert.Equal(t, "Imported @current of @total", first.ProgressMessage)
	assert.Equal(t, "import_summary", first.Finish)
	require.Len(t, first.Operations, 2)
	assert.Equal(t, "import_chunk", first.Operations[0].Op)
	require.Len(t, first.Operations[0].Args, 2)
	assert.Equal(t, "records.csv", first.Operations[0].Args[0])
	assert.EqualValues(t, 100, first.Operations[0].Args[1])

	second := def.Sets[1]
	require.NotNil(t, second.Control)
	assert.Equal(t, "discover_more", second.Control.Op)
	assert.Nil(t, second.Operations[0].Args)
}

func TestSpecs(t *testing.T) {
	def, err := FromYAML([]byte(yamlDefinition))
	require.NoError(t, err)

	specs := def.Specs()
	require.Len(t, specs, 2)

	assert.Equal(t, "import_summary", specs[0].Finish)
	require.Len(t, specs[0].Operations, 2)
	assert.Equal(t, "import_chunk", specs[0].Operations[0].Name)

	require.NotNil(t, specs[1].Control)
	assert.Equal(t, "discover_more", specs[1].Control.Name)

	s := specs[0].Materialize("set-1")
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 2, s.Remaining)
}

const hclDefinitionSrc = `
name = "nightly import"

set {
  init_message = "importing records"
  finish       = "import_summary"

  operation "import_chunk" {
    args = ["records.csv", 100]
  }

  operation "import_chunk" {
    args = ["records.csv", 2.5, true, { mode = "strict" }]
  }
}

set {
  control "discover_more" {
    args = ["records.csv"]
  }

  operation "cleanup" {}
}
`

func TestLoadHCL(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/job.hcl", []byte(hclDefinitionSrc), 0o600))

	def, err := Load(fs, "/job.hcl")
	require.NoError(t, err)

	assert.Equal(t, "nightly import", def.Name)
	require.Len(t, def.Sets, 2)

	first := def.Sets[0]
	assert.Equal(t, "importing records", first.InitMessage)
	require.Len(t, first.Operations, 2)

	assert.Equal(t, []any{"records.csv", int64(100)}, first.Operations[0].Args)

	rich := first.Operations[1].Args
	require.Len(t, rich, 4)
	assert.Equal(t, "records.csv", rich[0])
	assert.InDelta(t, 2.5, rich[1].(float64), 1e-9)
	assert.Equal(t, true, rich[2])
	assert.Equal(t, map[string]any{"mode": "strict"}, rich[3])

	second := def.Sets[1]
	require.NotNil(t, second.Control)
	assert.Equal(t, "discover_more", second.Control.Op)
	assert.Equal(t, "cleanup", second.Operations[0].Op)
	assert.Nil(t, second.Operations[0].Args)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/job.toml", []byte("x = 1"), 0o600))

	_, err := Load(fs, "/job.toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/absent.yaml")
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	_, err := FromYAML([]byte("name: empty"))
	assert.ErrorIs(t, err, ErrNoSets)

	_, err = FromYAML([]byte(`
sets:
  - operations:
      - args: [1]
`))
	assert.ErrorIs(t, err, ErrMissingOpName)

	_, err = FromYAML([]byte("sets: ["))
	assert.ErrorIs(t, err, ErrDecode)
}
