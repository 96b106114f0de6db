// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package definition loads batch definitions from YAML or HCL files and
// turns them into set specs ready for materialization.
package definition

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
	"github.com/stint-run/stint/internal/batch"
)

var (
	// ErrUnsupportedFormat is returned for file extensions other than
	// .yaml/.yml/.hcl.
	ErrUnsupportedFormat = errors.New("unsupported definition format")
	// ErrDecode is returned when a definition file cannot be decoded.
	ErrDecode = errors.New("failed to decode batch definition")
	// ErrNoSets is returned when a definition declares no sets.
	ErrNoSets = errors.New("definition declares no sets")
	// ErrMissingOpName is returned when an operation has no name.
	ErrMissingOpName = errors.New("operation is missing its name")
)

// Definition is a whole batch definition file.
type Definition struct {
	Name string          `yaml:"name"`
	Sets []SetDefinition `yaml:"sets"`
}

// SetDefinition is one set in a definition file.
type SetDefinition struct {
	InitMessage     string                `yaml:"init_message"`
	ProgressMessage string                `yaml:"progress_message"`
	Finish          string                `yaml:"finish"`
	Code            string                `yaml:"code"`
	Control         *OperationDefinition  `yaml:"control"`
	Operations      []OperationDefinition `yaml:"operations"`
}

// OperationDefinition is one queued operation: a registered name plus plain
// argument values.
type OperationDefinition struct {
	Op   string `yaml:"op"`
	Args []any  `yaml:"args"`
}

// Load reads a definition file from the filesystem, dispatching on the file
// extension.
func Load(fs afero.Fs, path string) (*Definition, error) {
	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition %s: %w", path, err)
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return FromYAML(src)
	case ".hcl":
		return FromHCL(path, src)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// FromYAML decodes a YAML definition.
func FromYAML(src []byte) (*Definition, error) {
	def := &Definition{}
	if err := yaml.Unmarshal(src, def); err != nil {
		return nil, errors.Join(ErrDecode, err)
	}

	if err := def.validate(); err != nil {
		return nil, err
	}

	return def, nil
}

// Specs converts the definition into materializable set specs.
func (d *Definition) Specs() []batch.SetSpec {
	specs := make([]batch.SetSpec, 0, len(d.Sets))

	for _, sd := range d.Sets {
		spec := batch.SetSpec{
			InitMessage:     sd.InitMessage,
			ProgressMessage: sd.ProgressMessage,
			Finish:          sd.Finish,
			Code:            sd.Code,
		}

		if sd.Control != nil {
			spec.Control = &batch.Operation{Name: sd.Control.Op, Args: sd.Control.Args}
		}

		for _, od := range sd.Operations {
			spec.Operations = append(spec.Operations, batch.Operation{Name: od.Op, Args: od.Args})
		}

		specs = append(specs, spec)
	}

	return specs
}

func (d *Definition) validate() error {
	if len(d.Sets) == 0 {
		return ErrNoSets
	}

	for i, sd := range d.Sets {
		for j, od := range sd.Operations {
			if od.Op == "" {
				return fmt.Errorf("%w: set %d operation %d", ErrMissingOpName, i, j)
			}
		}

		if sd.Control != nil && sd.Control.Op == "" {
			return fmt.Errorf("%w: set %d control", ErrMissingOpName, i)
		}
	}

	return nil
}
