// SPDX-License-Identifier: MPL-2.0

package config

import (
	"reflect"
	"slices"
	"strings"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// These tests keep the Go struct tags, the CUE schema and the key list in
// step, so that a field added to one is not silently ignored by the others.

func cueFields(t *testing.T, val cue.Value) []string {
	t.Helper()

	iter, err := val.Fields(cue.Optional(true))
	if err != nil {
		t.Fatalf("failed to iterate CUE fields: %v", err)
	}
	var fields []string
	for iter.Next() {
		fields = append(fields, strings.TrimSuffix(iter.Selector().String(), "?"))
	}
	slices.Sort(fields)
	return fields
}

func jsonFields(typ reflect.Type) []string {
	var fields []string
	for i := range typ.NumField() {
		tag, _, _ := strings.Cut(typ.Field(i).Tag.Get("json"), ",")
		if tag == "" || tag == "-" {
			continue
		}
		fields = append(fields, tag)
	}
	slices.Sort(fields)
	return fields
}

func schemaValue(t *testing.T, path string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString(configSchema).LookupPath(cue.ParsePath(path))
	if v.Err() != nil {
		t.Fatalf("schema lookup %s: %v", path, v.Err())
	}
	return v
}

func TestSchemaSync_Config(t *testing.T) {
	t.Parallel()

	got := cueFields(t, schemaValue(t, "#Config"))
	want := jsonFields(reflect.TypeFor[Config]())
	if !slices.Equal(got, want) {
		t.Errorf("#Config fields = %v, Config json tags = %v", got, want)
	}
}

func TestSchemaSync_UI(t *testing.T) {
	t.Parallel()

	got := cueFields(t, schemaValue(t, "#Config.ui"))
	want := jsonFields(reflect.TypeFor[UIConfig]())
	if !slices.Equal(got, want) {
		t.Errorf("#Config.ui fields = %v, UIConfig json tags = %v", got, want)
	}
}

func TestSchemaSync_Keys(t *testing.T) {
	t.Parallel()

	var leaves []string
	for _, field := range jsonFields(reflect.TypeFor[Config]()) {
		if field == "ui" {
			for _, sub := range jsonFields(reflect.TypeFor[UIConfig]()) {
				leaves = append(leaves, "ui."+sub)
			}
			continue
		}
		leaves = append(leaves, field)
	}
	keys := Keys()
	slices.Sort(keys)
	if !slices.Equal(leaves, keys) {
		t.Errorf("Keys() = %v, want %v", keys, leaves)
	}
}
