// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package definition

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

type hclDefinition struct {
	Name string   `hcl:"name,optional"`
	Sets []hclSet `hcl:"set,block"`
}

type hclSet struct {
	InitMessage     string         `hcl:"init_message,optional"`
	ProgressMessage string         `hcl:"progress_message,optional"`
	Finish          string         `hcl:"finish,optional"`
	Code            string         `hcl:"code,optional"`
	Control         *hclOperation  `hcl:"control,block"`
	Operations      []hclOperation `hcl:"operation,block"`
}

type hclOperation struct {
	Op   string    `hcl:"op,label"`
	Args cty.Value `hcl:"args,optional"`
}

// FromHCL decodes an HCL definition. Arguments are arbitrary HCL expressions
// evaluated without a context, then lowered to plain serializable values.
func FromHCL(filename string, src []byte) (*Definition, error) {
	file, diags := hclsyntax.ParseConfig(src, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, errors.Join(ErrDecode, diags)
	}

	var cfg hclDefinition
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, errors.Join(ErrDecode, diags)
	}

	def := &Definition{Name: cfg.Name}

	for _, hs := range cfg.Sets {
		sd := SetDefinition{
			InitMessage:     hs.InitMessage,
			ProgressMessage: hs.ProgressMessage,
			Finish:          hs.Finish,
			Code:            hs.Code,
		}

		if hs.Control != nil {
			od, err := hs.Control.toOperation()
			if err != nil {
				return nil, err
			}

			sd.Control = &od
		}

		for _, ho := range hs.Operations {
			od, err := ho.toOperation()
			if err != nil {
				return nil, err
			}

			sd.Operations = append(sd.Operations, od)
		}

		def.Sets = append(def.Sets, sd)
	}

	if err := def.validate(); err != nil {
		return nil, err
	}

	return def, nil
}

func (ho hclOperation) toOperation() (OperationDefinition, error) {
	od := OperationDefinition{Op: ho.Op}

	if ho.Args.IsNull() {
		return od, nil
	}

	args, err := ctyToGo(ho.Args)
	if err != nil {
		return od, fmt.Errorf("operation %s: %w", ho.Op, err)
	}

	list, ok := args.([]any)
	if !ok {
		return od, fmt.Errorf("%w: operation %s args must be a list", ErrDecode, ho.Op)
	}

	od.Args = list

	return od, nil
}

// ctyToGo lowers a cty value to the plain Go values the queue codec stores.
func ctyToGo(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}

	t := v.Type()

	switch {
	case t == cty.String:
		return v.AsString(), nil
	case t == cty.Bool:
		return v.True(), nil
	case t == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			i, _ := bf.Int64()
			return i, nil
		}

		f, _ := bf.Float64()

		return f, nil
	case t.IsTupleType() || t.IsListType() || t.IsSetType():
		var out []any

		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()

			gv, err := ctyToGo(ev)
			if err != nil {
				return nil, err
			}

			out = append(out, gv)
		}

		return out, nil
	case t.IsObjectType() || t.IsMapType():
		out := make(map[string]any)

		for it := v.ElementIterator(); it.Next(); {
			kv, ev := it.Element()

			gv, err := ctyToGo(ev)
			if err != nil {
				return nil, err
			}

			out[kv.AsString()] = gv
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported argument type %s", ErrDecode, t.FriendlyName())
	}
}
