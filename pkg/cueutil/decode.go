// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Result holds a decoded document together with the unified CUE value.
type Result[T any] struct {
	Value   *T
	Unified cue.Value
}

// Validate unifies data with the definition at defPath in schema and reports
// every violation. It returns the unified value for callers that want to
// inspect it further.
func Validate(schema, data []byte, defPath string, opts ...Option) (cue.Value, error) {
	o := newOptions(opts)

	if err := CheckFileSize(data, o.maxFileSize, o.filename); err != nil {
		return cue.Value{}, err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileBytes(schema)
	if err := schemaValue.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("internal error: failed to compile schema: %w", err)
	}
	def := schemaValue.LookupPath(cue.ParsePath(defPath))
	if err := def.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("internal error: schema definition %s not found: %w", defPath, err)
	}

	doc := ctx.CompileBytes(data, cue.Filename(o.filename))
	if err := doc.Err(); err != nil {
		return cue.Value{}, FormatError(err, o.filename)
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Concrete(o.concrete)); err != nil {
		return cue.Value{}, FormatError(err, o.filename)
	}
	return unified, nil
}

// Decode validates data like Validate and decodes the unified value into T.
// Fields of the document that T does not declare are ignored.
func Decode[T any](schema, data []byte, defPath string, opts ...Option) (*Result[T], error) {
	unified, err := Validate(schema, data, defPath, opts...)
	if err != nil {
		return nil, err
	}

	var out T
	if err := unified.Decode(&out); err != nil {
		return nil, FormatError(err, newOptions(opts).filename)
	}
	return &Result[T]{Value: &out, Unified: unified}, nil
}
