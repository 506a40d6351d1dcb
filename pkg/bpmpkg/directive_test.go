// SPDX-License-Identifier: MPL-2.0

package bpmpkg

import (
	"slices"
	"testing"

	"github.com/bpmkit/bpm/pkg/value"
)

func TestParseDirective(t *testing.T) {
	t.Parallel()

	raw, err := value.Parse([]byte(`{
		"files": ["lib", "vendor/extra.js"],
		"modes": "production",
		"minifier": {"ugly": ">= 2.0", "terse": ""},
		"include": ["core"],
		"exclude": ["jquery"],
		"strict": true,
		"banner": {"text": "hi"}
	}`))
	if err != nil {
		t.Fatal(err)
	}

	d := ParseDirective(raw)
	if !slices.Equal(d.Files, []string{"lib", "vendor/extra.js"}) {
		t.Errorf("Files = %v", d.Files)
	}
	if d.HasAssets {
		t.Error("HasAssets should be false")
	}
	if !slices.Equal(d.Modes, []string{"production"}) {
		t.Errorf("Modes = %v", d.Modes)
	}
	wantMin := DependencyList{{Name: "ugly", Constraint: ">= 2.0"}, {Name: "terse", Constraint: AnyVersion}}
	if !slices.Equal(d.Minifier, wantMin) {
		t.Errorf("Minifier = %v", d.Minifier)
	}
	if !d.Excludes("jquery") || d.Excludes("core") {
		t.Errorf("Exclude = %v", d.Exclude)
	}
	if got := d.Settings.Keys(); !slices.Equal(got, []string{"strict", "banner"}) {
		t.Errorf("Settings keys = %v", got)
	}
}

func TestDirectiveAppliesTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		modes []string
		mode  string
		want  bool
	}{
		{nil, ModeDebug, true},
		{[]string{ModeAny}, ModeProduction, true},
		{[]string{ModeDebug}, ModeDebug, true},
		{[]string{ModeDebug}, ModeProduction, false},
		{[]string{"staging", ModeProduction}, ModeProduction, true},
	}
	for _, tt := range tests {
		d := BuildDirective{Modes: tt.modes}
		if got := d.AppliesTo(tt.mode); got != tt.want {
			t.Errorf("AppliesTo(%v, %q) = %v, want %v", tt.modes, tt.mode, got, tt.want)
		}
	}
}

func TestNormalizeMinifier(t *testing.T) {
	t.Parallel()

	if got := NormalizeMinifier(value.String("ugly")); !slices.Equal(got, DependencyList{{Name: "ugly", Constraint: AnyVersion}}) {
		t.Errorf("string minifier = %v", got)
	}
	if got := NormalizeMinifier(value.String("")); got != nil {
		t.Errorf("empty minifier = %v", got)
	}
	if got := NormalizeMinifier(value.Null()); got != nil {
		t.Errorf("null minifier = %v", got)
	}
}

func TestPluginRef(t *testing.T) {
	t.Parallel()

	ref := parsePluginRef("format:coffee", value.String("plugins/coffee.js"))
	if ref.Main != "plugins/coffee.js" || ref.MIME != DefaultMIME {
		t.Errorf("ref = %+v", ref)
	}
	if ext, ok := ref.FormatExtension(); !ok || ext != "coffee" {
		t.Errorf("FormatExtension() = %q, %v", ext, ok)
	}

	raw, _ := value.Parse([]byte(`{"main": "p.js", "mime": "text/css", "dependencies": {"less": "1.0"}}`))
	ref = parsePluginRef(CapabilityPreprocessor, raw)
	if ref.MIME != "text/css" || len(ref.Dependencies) != 1 {
		t.Errorf("ref = %+v", ref)
	}
	if _, ok := ref.FormatExtension(); ok {
		t.Error("preprocessor is not a format")
	}
}
