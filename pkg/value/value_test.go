// SPDX-License-Identifier: MPL-2.0

package value

import (
	"slices"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParse_PreservesKeyOrder(t *testing.T) {
	t.Parallel()

	input := `{"zeta":1,"alpha":{"y":true,"x":null},"mid":["b","a"],"num":2.50}`
	v, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := v.Map().Keys(); !slices.Equal(got, []string{"zeta", "alpha", "mid", "num"}) {
		t.Errorf("Keys() = %v", got)
	}

	out, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(out) != input {
		t.Errorf("round trip mismatch:\n got %s\nwant %s", out, input)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	for _, input := range []string{`{"a":}`, `[1,2`, `{"a":1} {"b":2}`} {
		if _, err := Parse([]byte(input)); err == nil {
			t.Errorf("Parse(%q) expected error", input)
		}
	}
}

func TestEncodeIndent(t *testing.T) {
	t.Parallel()

	m := NewMap()
	m.Set("name", String("<b>&"))
	m.Set("list", Strings("x"))

	out, err := EncodeIndent(FromMap(m), "  ")
	if err != nil {
		t.Fatalf("EncodeIndent() error = %v", err)
	}
	want := "{\n  \"name\": \"<b>&\",\n  \"list\": [\n    \"x\"\n  ]\n}\n"
	if string(out) != want {
		t.Errorf("EncodeIndent() =\n%s\nwant\n%s", out, want)
	}
}

func TestMapSetDelete(t *testing.T) {
	t.Parallel()

	m := NewMap()
	m.Set("a", Int(1))
	m.Set("b", Int(2))
	m.Set("a", Int(3))
	m.Delete("missing")
	if got := m.Keys(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Keys() = %v", got)
	}
	m.Delete("a")
	if m.Has("a") || m.Len() != 1 {
		t.Errorf("Delete did not remove key: %v", m.Keys())
	}

	var zero Map
	zero.Set("k", Bool(true))
	if v, _ := zero.Get("k"); !v.Truthy() {
		t.Error("zero Map should accept Set")
	}
}

func TestSoftMerge(t *testing.T) {
	t.Parallel()

	base, err := Parse([]byte(`{"files":["lib"],"opts":{"a":1,"b":{"c":1}},"keep":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	over, err := Parse([]byte(`{"files":["src"],"opts":{"b":{"d":2},"e":3},"new":true}`))
	if err != nil {
		t.Fatal(err)
	}

	merged := SoftMerge(base, over)
	out, err := merged.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	want := `{"files":["src"],"opts":{"a":1,"b":{"c":1,"d":2},"e":3},"keep":"x","new":true}`
	if string(out) != want {
		t.Errorf("SoftMerge() =\n %s\nwant\n %s", out, want)
	}

	// Inputs are untouched.
	if files := base.Map(); files == nil {
		t.Fatal("base lost its map")
	}
	if v, _ := base.Map().Get("files"); !slices.Equal(v.AsStrings(), []string{"lib"}) {
		t.Errorf("base mutated: %v", v.AsStrings())
	}
}

func TestSoftMerge_ScalarOverMap(t *testing.T) {
	t.Parallel()

	got := SoftMerge(FromMap(NewMap()), String("x"))
	if s, ok := got.Str(); !ok || s != "x" {
		t.Errorf("SoftMerge(map, scalar) = %v", got.Interface())
	}
}

func TestFromAnyAndInterface(t *testing.T) {
	t.Parallel()

	v, err := FromAny(map[string]any{"b": []any{"x", 1.5, true, nil}, "a": "s"})
	if err != nil {
		t.Fatalf("FromAny() error = %v", err)
	}
	if got := v.Map().Keys(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("FromAny keys = %v, want sorted", got)
	}

	back, ok := v.Interface().(map[string]any)
	if !ok {
		t.Fatalf("Interface() = %T", v.Interface())
	}
	list, _ := back["b"].([]any)
	if len(list) != 4 || list[1] != 1.5 {
		t.Errorf("Interface() list = %v", list)
	}

	if _, err := FromAny(struct{}{}); err == nil {
		t.Error("FromAny(struct{}) expected error")
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()

	a, _ := Parse([]byte(`{"a":1,"b":2}`))
	b, _ := Parse([]byte(`{"b":2,"a":1}`))
	if a.Equal(b) {
		t.Error("maps with different key order should not be Equal")
	}
	if !a.Equal(a.Clone()) {
		t.Error("clone should be Equal")
	}
}

func TestMarshalYAML_Ordered(t *testing.T) {
	t.Parallel()

	v, _ := Parse([]byte(`{"z":{"k":[1,"two"]},"a":false}`))
	out, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	text := string(out)
	if strings.Index(text, "z:") > strings.Index(text, "a:") {
		t.Errorf("YAML keys out of order:\n%s", text)
	}
	if !strings.Contains(text, "- two") {
		t.Errorf("YAML missing list item:\n%s", text)
	}
}
