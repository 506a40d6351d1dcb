// SPDX-License-Identifier: MPL-2.0

// Package buildmanifest merges the build directives of a resolved package set
// into a build manifest: for every output file, the packages that contribute
// to it and the directories they contribute.
//
// A manifest is computed for one build mode and is never patched; callers
// rebuild it from the current resolution whenever anything changes. Its
// canonical encoding is byte-stable so that two manifests can be compared by
// diffing their encodings.
package buildmanifest

import (
	"fmt"
	"slices"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/bpmkit/bpm/pkg/bpmpkg"
	"github.com/bpmkit/bpm/pkg/value"
)

const (
	// LibrariesOutput is the primary library bundle.
	LibrariesOutput = "bpm_libs.js"
	// StylesOutput is the primary stylesheet bundle.
	StylesOutput = "bpm_styles.css"
	// TestsOutput is the per-package test bundle, emitted as <name>/bpm_tests.js
	// in debug builds.
	TestsOutput = "bpm_tests.js"
)

type (
	// Manifest maps output paths to their merged entries.
	Manifest struct {
		Mode    string
		entries map[string]*Entry
	}

	// Entry is the merged build recipe for one output file.
	Entry struct {
		Output string
		// Contributions are kept in the order packages were merged.
		Contributions []Contribution
		// Assets is set when a directive replaced the entry with a list of
		// directories copied verbatim.
		Assets *Contribution
		// Minifier is the normalized provides.minifier requirement.
		Minifier bpmpkg.DependencyList
		// Settings is the free-form build configuration passed to plugins.
		Settings *value.Map
	}

	// Contribution lists the directories one package contributes.
	Contribution struct {
		Package string
		Version string
		Paths   []string
	}
)

func newManifest(mode string) *Manifest {
	return &Manifest{Mode: mode, entries: make(map[string]*Entry)}
}

// Outputs returns the output paths sorted.
func (m *Manifest) Outputs() []string {
	out := make([]string, 0, len(m.entries))
	for k := range m.entries {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Entry returns the entry for output.
func (m *Manifest) Entry(output string) (*Entry, bool) {
	e, ok := m.entries[output]
	return e, ok
}

// Len returns the number of outputs.
func (m *Manifest) Len() int {
	return len(m.entries)
}

func (m *Manifest) entry(output string) *Entry {
	e, ok := m.entries[output]
	if !ok {
		e = &Entry{Output: output, Settings: value.NewMap()}
		m.entries[output] = e
	}
	return e
}

// Packages returns the contributing package names sorted.
func (e *Entry) Packages() []string {
	var names []string
	for _, c := range e.Contributions {
		names = append(names, c.Package)
	}
	slices.Sort(names)
	return names
}

// Contribution returns what pkg contributes to the entry.
func (e *Entry) Contribution(pkg string) (Contribution, bool) {
	for _, c := range e.Contributions {
		if c.Package == pkg {
			return c, true
		}
	}
	return Contribution{}, false
}

// IsAssets reports whether the entry copies directories verbatim.
func (e *Entry) IsAssets() bool {
	return e.Assets != nil
}

func (e *Entry) contribute(pkg *bpmpkg.Package, paths []string) {
	for i := range e.Contributions {
		c := &e.Contributions[i]
		if c.Package != pkg.Name {
			continue
		}
		for _, p := range paths {
			if !slices.Contains(c.Paths, p) {
				c.Paths = append(c.Paths, p)
			}
		}
		return
	}
	e.Contributions = append(e.Contributions, Contribution{
		Package: pkg.Name,
		Version: pkg.Version,
		Paths:   slices.Clone(paths),
	})
}

// Document returns the manifest as an ordered value: outputs sorted, every
// entry's contributions in merge order.
func (m *Manifest) Document() value.Value {
	outputs := value.NewMap()
	for _, name := range m.Outputs() {
		outputs.Set(name, m.entries[name].document())
	}

	doc := value.NewMap()
	doc.Set("mode", value.String(m.Mode))
	doc.Set("outputs", value.FromMap(outputs))
	return value.FromMap(doc)
}

func (e *Entry) document() value.Value {
	doc := value.NewMap()
	if e.Assets != nil {
		doc.Set("assets", contributionDoc(*e.Assets))
	} else {
		packages := make([]value.Value, 0, len(e.Contributions))
		for _, c := range e.Contributions {
			packages = append(packages, contributionDoc(c))
		}
		doc.Set("packages", value.List(packages...))
	}
	if len(e.Minifier) > 0 {
		minifier := value.NewMap()
		for _, d := range e.Minifier {
			minifier.Set(d.Name, value.String(d.Constraint))
		}
		provides := value.NewMap()
		provides.Set(bpmpkg.CapabilityMinifier, value.FromMap(minifier))
		doc.Set("provides", value.FromMap(provides))
	}
	if e.Settings.Len() > 0 {
		doc.Set("settings", value.FromMap(e.Settings.Clone()))
	}
	return value.FromMap(doc)
}

func contributionDoc(c Contribution) value.Value {
	doc := value.NewMap()
	doc.Set("name", value.String(c.Package))
	doc.Set("version", value.String(c.Version))
	doc.Set("paths", value.Strings(c.Paths...))
	return value.FromMap(doc)
}

// Encode returns the canonical JSON encoding of the manifest. Merging an
// unchanged resolution twice encodes to identical bytes.
func (m *Manifest) Encode() ([]byte, error) {
	return value.EncodeIndent(m.Document(), "  ")
}

// EncodeYAML renders the manifest as YAML for people to read.
func (m *Manifest) EncodeYAML() ([]byte, error) {
	data, err := yaml.Marshal(m.Document())
	if err != nil {
		return nil, fmt.Errorf("failed to encode build manifest: %w", err)
	}
	return data, nil
}

// Diff returns a unified diff between the canonical encodings of a and b.
// Identical manifests produce an empty diff.
func Diff(a, b *Manifest) (string, error) {
	left, err := a.Encode()
	if err != nil {
		return "", err
	}
	right, err := b.Encode()
	if err != nil {
		return "", err
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(left)),
		B:        difflib.SplitLines(string(right)),
		FromFile: a.Mode,
		ToFile:   b.Mode,
		Context:  3,
	})
}
