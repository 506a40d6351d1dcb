// SPDX-License-Identifier: MPL-2.0

package bpmpkg

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bpmkit/bpm/internal/fsutil"
	"github.com/bpmkit/bpm/pkg/cueutil"
	"github.com/bpmkit/bpm/pkg/value"
)

const (
	// DescriptorFile is the name of the package descriptor in a package root.
	DescriptorFile = "package.json"

	keyName            = "name"
	keyVersion         = "version"
	keySummary         = "summary"
	keyDescription     = "description"
	keyAuthor          = "author"
	keyHomepage        = "homepage"
	keyDependencies    = "dependencies"
	keyDevDependencies = "dependencies:development"
	keyDirectories     = "directories"
	keyBuild           = "bpm:build"
	keyProvides        = "bpm:provides"
	keyBin             = "bin"
	keyEngines         = "engines"
	keyKeywords        = "keywords"
	keyLicenses        = "licenses"
)

//go:embed package_schema.cue
var packageSchema []byte

// ErrPackageNotFound is returned when a directory holds no package.json.
var ErrPackageNotFound = errors.New("package descriptor not found")

// knownKeys are the top-level descriptor fields bpm interprets. Everything
// else is kept verbatim in Package.Extra.
var knownKeys = []string{
	keyName, keyVersion, keySummary, keyDescription, keyAuthor, keyHomepage,
	keyDependencies, keyDevDependencies, keyDirectories, keyBuild, keyProvides,
	keyBin, keyEngines, keyKeywords, keyLicenses,
}

// defaultDirectories maps the logical directory names bpm knows about to
// their conventional location when a package does not declare them.
var defaultDirectories = map[string]string{
	"lib":       "lib",
	"tests":     "tests",
	"resources": "resources",
	"assets":    "assets",
	"css":       "css",
}

type (
	// Package is a parsed package descriptor.
	//
	// The typed fields mirror the descriptor document. Edits must go through
	// Package methods so that the ordered document stays in sync.
	Package struct {
		Name        string
		Version     string
		Summary     string
		Description string
		Author      string
		Homepage    string

		Dependencies            DependencyList
		DevelopmentDependencies DependencyList

		// Directories maps a logical directory name to one or more paths
		// relative to Root.
		Directories map[string][]string

		// Build is the raw bpm:build map (output file -> directive). It is
		// kept untyped because the build merger soft-merges it over the
		// default directives before interpreting it.
		Build *value.Map

		// Provides lists the plugin capabilities this package offers, keyed by
		// capability (e.g. "format:coffee", "minifier").
		Provides map[string]PluginRef

		Bin      map[string]string
		Engines  []string
		Keywords []string

		// Extra holds unrecognized top-level fields in document order.
		Extra *value.Map

		// Root is the absolute path of the package directory.
		Root string

		doc *value.Map
	}

	// Dependency is one entry of a dependency mapping.
	Dependency struct {
		Name       string
		Constraint string
	}

	// DependencyList is an ordered name -> constraint mapping.
	DependencyList []Dependency

	// header is the subset of the descriptor decoded through the schema.
	header struct {
		Name        string `json:"name"`
		Version     string `json:"version"`
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Homepage    string `json:"homepage"`
	}
)

// Get returns the constraint for name.
func (l DependencyList) Get(name string) (string, bool) {
	for _, d := range l {
		if d.Name == name {
			return d.Constraint, true
		}
	}
	return "", false
}

// Names returns the dependency names in declaration order.
func (l DependencyList) Names() []string {
	names := make([]string, len(l))
	for i, d := range l {
		names[i] = d.Name
	}
	return names
}

// Merge appends the entries of other whose names are not present yet.
func (l DependencyList) Merge(other DependencyList) DependencyList {
	out := slices.Clone(l)
	for _, d := range other {
		if _, ok := out.Get(d.Name); !ok {
			out = append(out, d)
		}
	}
	return out
}

// Load reads and validates <root>/package.json.
func Load(root string) (*Package, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve package root: %w", err)
	}

	path := filepath.Join(absRoot, DescriptorFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data, absRoot)
}

// Parse parses descriptor bytes for a package rooted at root.
func Parse(data []byte, root string) (*Package, error) {
	filename := filepath.Join(root, DescriptorFile)

	res, err := cueutil.Decode[header](packageSchema, data, "#Package", cueutil.WithFilename(filename))
	if err != nil {
		return nil, err
	}

	doc, err := value.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if doc.Map() == nil {
		return nil, fmt.Errorf("%s: descriptor must be a JSON object", filename)
	}

	h := res.Value
	p := &Package{
		Name:        h.Name,
		Version:     h.Version,
		Summary:     h.Summary,
		Description: h.Description,
		Homepage:    h.Homepage,
		Root:        root,
		doc:         doc.Map(),
	}
	p.load()
	return p, nil
}

// load populates the typed fields from the ordered document.
func (p *Package) load() {
	doc := p.doc

	p.Author = ""
	if v, ok := doc.Get(keyAuthor); ok {
		if s, ok := v.Str(); ok {
			p.Author = s
		} else if name, ok := v.Map().Get("name"); ok {
			p.Author, _ = name.Str()
		}
	}

	p.Dependencies = dependencyList(doc, keyDependencies)
	p.DevelopmentDependencies = dependencyList(doc, keyDevDependencies)

	p.Directories = make(map[string][]string)
	if v, ok := doc.Get(keyDirectories); ok {
		for name, paths := range v.Map().All() {
			p.Directories[name] = paths.AsStrings()
		}
	}

	p.Build = value.NewMap()
	if v, ok := doc.Get(keyBuild); ok && v.Map() != nil {
		p.Build = v.Map().Clone()
	}

	p.Provides = make(map[string]PluginRef)
	if v, ok := doc.Get(keyProvides); ok {
		for capability, ref := range v.Map().All() {
			p.Provides[capability] = parsePluginRef(capability, ref)
		}
	}

	p.Bin = make(map[string]string)
	if v, ok := doc.Get(keyBin); ok {
		for name, target := range v.Map().All() {
			p.Bin[name], _ = target.Str()
		}
	}

	p.Engines = nil
	if v, ok := doc.Get(keyEngines); ok {
		if m := v.Map(); m != nil {
			p.Engines = m.Keys()
		} else {
			p.Engines = v.AsStrings()
		}
	}

	p.Keywords = nil
	if v, ok := doc.Get(keyKeywords); ok {
		p.Keywords = v.AsStrings()
	}

	p.Extra = value.NewMap()
	for k, v := range doc.All() {
		if !slices.Contains(knownKeys, k) {
			p.Extra.Set(k, v.Clone())
		}
	}
}

func dependencyList(doc *value.Map, key string) DependencyList {
	v, ok := doc.Get(key)
	if !ok {
		return nil
	}
	var out DependencyList
	for name, c := range v.Map().All() {
		constraint, _ := c.Str()
		out = append(out, Dependency{Name: name, Constraint: constraint})
	}
	return out
}

// ID returns "name@version".
func (p *Package) ID() string {
	return p.Name + "@" + p.Version
}

// String returns "name (version)", the form used in manifest headers.
func (p *Package) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.Version)
}

// Directory returns the paths, relative to Root, behind a logical directory
// name. Undeclared names resolve to a directory of the same name.
func (p *Package) Directory(name string) []string {
	if paths, ok := p.Directories[name]; ok && len(paths) > 0 {
		return paths
	}
	if def, ok := defaultDirectories[name]; ok {
		return []string{def}
	}
	return []string{name}
}

// DirectoryNames returns the declared and conventional logical directory
// names, sorted.
func (p *Package) DirectoryNames() []string {
	names := make([]string, 0, len(p.Directories)+len(defaultDirectories))
	for name := range p.Directories {
		names = append(names, name)
	}
	for name := range defaultDirectories {
		if _, ok := p.Directories[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// BuildDependencies derives the packages needed at build time: every
// directive's minifier followed by the dependencies of provided plugins.
func (p *Package) BuildDependencies() DependencyList {
	var out DependencyList
	for _, v := range p.Build.All() {
		out = out.Merge(ParseDirective(v).Minifier)
	}
	for _, capability := range p.Capabilities() {
		out = out.Merge(p.Provides[capability].Dependencies)
	}
	return out
}

// AllDependencies returns runtime, development and build dependencies with
// the first declaration of a name winning.
func (p *Package) AllDependencies() DependencyList {
	return p.Dependencies.Merge(p.DevelopmentDependencies).Merge(p.BuildDependencies())
}

// Capabilities returns the provided capability keys sorted.
func (p *Package) Capabilities() []string {
	keys := make([]string, 0, len(p.Provides))
	for k := range p.Provides {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Metadata returns a serializable snapshot of the descriptor document.
func (p *Package) Metadata() value.Value {
	return value.FromMap(p.doc.Clone())
}

// SetDependency adds or updates a runtime (or development) dependency.
// A name moves between the two sets when it is re-added with the other kind.
func (p *Package) SetDependency(name, constraint string, development bool) {
	key, other := keyDependencies, keyDevDependencies
	if development {
		key, other = other, key
	}
	removeFromSection(p.doc, other, name)

	section := value.NewMap()
	if v, ok := p.doc.Get(key); ok && v.Map() != nil {
		section = v.Map().Clone()
	}
	section.Set(name, value.String(constraint))
	p.doc.Set(key, value.FromMap(section))
	p.load()
}

// RemoveDependency drops name from both dependency sets. It reports whether
// anything was removed.
func (p *Package) RemoveDependency(name string) bool {
	removed := removeFromSection(p.doc, keyDependencies, name)
	removed = removeFromSection(p.doc, keyDevDependencies, name) || removed
	if removed {
		p.load()
	}
	return removed
}

func removeFromSection(doc *value.Map, key, name string) bool {
	v, ok := doc.Get(key)
	if !ok || !v.Map().Has(name) {
		return false
	}
	section := v.Map().Clone()
	section.Delete(name)
	doc.Set(key, value.FromMap(section))
	return true
}

// Encode serializes the descriptor with two-space indentation, preserving the
// original key order and unrecognized fields.
func (p *Package) Encode() ([]byte, error) {
	return value.EncodeIndent(value.FromMap(p.doc), "  ")
}

// Save writes the descriptor back to <Root>/package.json.
func (p *Package) Save() error {
	data, err := p.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", p.Name, err)
	}
	return fsutil.WriteFileAtomic(filepath.Join(p.Root, DescriptorFile), data)
}
