// SPDX-License-Identifier: MPL-2.0

package bpmpkg

import (
	"slices"
	"strings"

	"github.com/bpmkit/bpm/pkg/value"
)

const (
	// ModeDebug builds unminified composites and includes test bundles.
	ModeDebug = "debug"
	// ModeProduction minifies composites and omits test bundles.
	ModeProduction = "production"
	// ModeAny matches every build mode in a directive's modes list.
	ModeAny = "*"

	// AnyVersion is the constraint implied by an unversioned reference.
	AnyVersion = ">= 0"

	// CapabilityFormatPrefix prefixes format compiler capabilities; the rest
	// of the key is the source file extension (e.g. "format:coffee").
	CapabilityFormatPrefix = "format:"
	// CapabilityPreprocessor runs before other processing of a file.
	CapabilityPreprocessor = "preprocessor"
	// CapabilityPostprocessor runs after format compilation and preprocessing.
	CapabilityPostprocessor = "postprocessor"
	// CapabilityTransport wraps compiled modules for loading in the browser.
	CapabilityTransport = "transport"
	// CapabilityMinifier minifies composite artifacts in production builds.
	CapabilityMinifier = "minifier"

	// DefaultMIME is the content type processors apply to unless declared.
	DefaultMIME = "application/javascript"
)

const (
	directiveFiles    = "files"
	directiveAssets   = "assets"
	directiveModes    = "modes"
	directiveMinifier = "minifier"
	directiveInclude  = "include"
	directiveExclude  = "exclude"
)

type (
	// BuildDirective describes how a package contributes to one output file.
	BuildDirective struct {
		// Files lists logical directory names or literal subpaths.
		Files []string
		// Assets lists raw directories copied verbatim. A directive with
		// assets replaces the whole output entry.
		Assets    []string
		HasAssets bool
		// Modes lists the build modes the directive applies to. Empty means all.
		Modes []string
		// Minifier is the normalized minifier requirement (name -> constraint).
		Minifier DependencyList
		// Include names other packages whose matching directive is merged in.
		Include []string
		// Exclude names packages the consuming project drops from this output.
		Exclude []string
		// Settings holds the remaining free-form keys in document order.
		Settings *value.Map
	}

	// PluginRef describes one provided plugin capability.
	PluginRef struct {
		Capability   string
		Main         string
		MIME         string
		Dependencies DependencyList
	}
)

// ParseDirective interprets a raw directive value. Unknown keys end up in
// Settings; values of the wrong shape are ignored (the schema rejects them
// when the descriptor is loaded).
func ParseDirective(v value.Value) BuildDirective {
	d := BuildDirective{Settings: value.NewMap()}
	m := v.Map()
	for k, item := range m.All() {
		switch k {
		case directiveFiles:
			d.Files = item.AsStrings()
		case directiveAssets:
			d.Assets = item.AsStrings()
			d.HasAssets = true
		case directiveModes:
			d.Modes = item.AsStrings()
		case directiveMinifier:
			d.Minifier = NormalizeMinifier(item)
		case directiveInclude:
			d.Include = item.AsStrings()
		case directiveExclude:
			d.Exclude = item.AsStrings()
		default:
			d.Settings.Set(k, item.Clone())
		}
	}
	return d
}

// NormalizeMinifier turns a minifier reference into a name -> constraint
// list. A bare package name implies any version.
func NormalizeMinifier(v value.Value) DependencyList {
	if s, ok := v.Str(); ok {
		if s == "" {
			return nil
		}
		return DependencyList{{Name: s, Constraint: AnyVersion}}
	}
	var out DependencyList
	for name, c := range v.Map().All() {
		constraint, ok := c.Str()
		if !ok || constraint == "" {
			constraint = AnyVersion
		}
		out = append(out, Dependency{Name: name, Constraint: constraint})
	}
	return out
}

// AppliesTo reports whether the directive is active in mode.
func (d BuildDirective) AppliesTo(mode string) bool {
	if len(d.Modes) == 0 {
		return true
	}
	return slices.Contains(d.Modes, ModeAny) || slices.Contains(d.Modes, mode)
}

// Excludes reports whether the directive excludes package name.
func (d BuildDirective) Excludes(name string) bool {
	return slices.Contains(d.Exclude, name)
}

func parsePluginRef(capability string, v value.Value) PluginRef {
	ref := PluginRef{Capability: capability}
	if s, ok := v.Str(); ok {
		ref.Main = s
	} else {
		m := v.Map()
		if main, ok := m.Get("main"); ok {
			ref.Main, _ = main.Str()
		}
		if mime, ok := m.Get("mime"); ok {
			ref.MIME, _ = mime.Str()
		}
		if deps, ok := m.Get("dependencies"); ok {
			for name, c := range deps.Map().All() {
				constraint, _ := c.Str()
				ref.Dependencies = append(ref.Dependencies, Dependency{Name: name, Constraint: constraint})
			}
		}
	}
	if ref.MIME == "" {
		ref.MIME = DefaultMIME
	}
	return ref
}

// FormatExtension returns the source extension of a format capability and
// whether the reference is one.
func (r PluginRef) FormatExtension() (string, bool) {
	return strings.CutPrefix(r.Capability, CapabilityFormatPrefix)
}
