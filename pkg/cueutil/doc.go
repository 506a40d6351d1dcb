// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates JSON and CUE documents against embedded CUE
// schemas and decodes them into Go structs.
//
// Every JSON document is also valid CUE, so package descriptors and the
// tool configuration share one flow:
//
//  1. Compile the embedded schema and look up its root definition
//  2. Compile the document and unify it with that definition
//  3. Validate (optionally requiring concrete values) and decode
//
// # Usage
//
//	//go:embed package_schema.cue
//	var packageSchema []byte
//
//	res, err := cueutil.Decode[header](packageSchema, data, "#Package",
//	    cueutil.WithFilename("package.json"))
//	if err != nil {
//	    return nil, err // each problem is prefixed with its field path
//	}
package cueutil
