// SPDX-License-Identifier: MPL-2.0

package buildmanifest

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/bpmkit/bpm/pkg/bpmpkg"
	"github.com/bpmkit/bpm/pkg/resolve"
	"github.com/bpmkit/bpm/pkg/value"
)

// ErrUnknownInclude is returned when a directive includes a package that is
// not part of the resolution.
var ErrUnknownInclude = errors.New("included package not resolved")

type (
	// IncludeError reports an include naming an unresolved package.
	IncludeError struct {
		Package string
		Output  string
		Include string
	}

	merger struct {
		mode     string
		project  *bpmpkg.Project
		set      *resolve.Set
		manifest *Manifest
		// projectDirectives are the project's effective directives, consulted
		// for exclusions.
		projectDirectives *value.Map
	}
)

// Error implements the error interface.
func (e *IncludeError) Error() string {
	return fmt.Sprintf("%s: directive for %s includes %s, which is not a resolved package", e.Package, e.Output, e.Include)
}

// Unwrap returns ErrUnknownInclude for use with errors.Is.
func (e *IncludeError) Unwrap() error {
	return ErrUnknownInclude
}

// Build merges the directives of every package in set, in resolution order,
// followed by the project itself.
//
// Packages that were resolved only as build-time dependencies never
// contribute files. Development dependencies contribute in every mode except
// production.
func Build(project *bpmpkg.Project, set *resolve.Set, mode string) (*Manifest, error) {
	m := &merger{
		mode:              mode,
		project:           project,
		set:               set,
		manifest:          newManifest(mode),
		projectDirectives: Directives(project.Package, mode),
	}

	if set != nil {
		view := resolve.ViewAll
		if mode == bpmpkg.ModeProduction {
			view = resolve.ViewRuntime
		}
		reachable := set.Reachable(view)
		for _, pkg := range set.Packages {
			if !reachable[pkg.Name] {
				slog.Debug("package does not contribute to this build", "name", pkg.Name, "mode", mode)
				continue
			}
			if err := m.mergePackage(pkg); err != nil {
				return nil, err
			}
		}
	}

	if err := m.mergePackage(project.Package); err != nil {
		return nil, err
	}
	return m.manifest, nil
}

func (m *merger) mergePackage(pkg *bpmpkg.Package) error {
	for output, raw := range Directives(pkg, m.mode).All() {
		d := bpmpkg.ParseDirective(raw)
		if !d.AppliesTo(m.mode) {
			continue
		}
		if pkg.Name != m.project.Name && m.excluded(output, pkg.Name) {
			slog.Debug("package excluded by project", "name", pkg.Name, "output", output)
			continue
		}
		if err := m.apply(pkg, output, d); err != nil {
			return err
		}
	}
	return nil
}

func (m *merger) excluded(output, name string) bool {
	raw, ok := m.projectDirectives.Get(output)
	if !ok {
		return false
	}
	d := bpmpkg.ParseDirective(raw)
	return d.AppliesTo(m.mode) && d.Excludes(name)
}

func (m *merger) apply(pkg *bpmpkg.Package, output string, d bpmpkg.BuildDirective) error {
	e := m.manifest.entry(output)
	e.Settings = value.SoftMergeMaps(e.Settings, d.Settings)

	if d.HasAssets {
		e.Assets = &Contribution{Package: pkg.Name, Version: pkg.Version, Paths: d.Assets}
		e.Contributions = nil
		return nil
	}

	m.contribute(e, pkg, d.Files)
	if len(d.Minifier) > 0 {
		e.Minifier = d.Minifier
	}

	seen := map[string]bool{pkg.Name: true}
	for _, name := range d.Include {
		if err := m.include(e, pkg.Name, name, seen); err != nil {
			return err
		}
	}
	return nil
}

// include merges the file contributions of name's directive for the same
// kind of output as e. Exclusions do not apply to included packages.
func (m *merger) include(e *Entry, from, name string, seen map[string]bool) error {
	if seen[name] {
		return nil
	}
	seen[name] = true

	pkg, ok := m.lookup(name)
	if !ok {
		return &IncludeError{Package: from, Output: e.Output, Include: name}
	}

	raw, ok := Directives(pkg, m.mode).Get(outputKind(e.Output))
	if !ok {
		return nil
	}
	d := bpmpkg.ParseDirective(raw)
	if !d.AppliesTo(m.mode) || d.HasAssets {
		return nil
	}

	m.contribute(e, pkg, d.Files)
	for _, next := range d.Include {
		if err := m.include(e, name, next, seen); err != nil {
			return err
		}
	}
	return nil
}

func (m *merger) contribute(e *Entry, pkg *bpmpkg.Package, files []string) {
	if len(files) == 0 {
		return
	}
	if e.Assets != nil {
		slog.Warn("ignoring file contribution to an asset output", "output", e.Output, "package", pkg.Name)
		return
	}
	e.contribute(pkg, files)
}

func (m *merger) lookup(name string) (*bpmpkg.Package, bool) {
	if name == m.project.Name {
		return m.project.Package, true
	}
	if m.set == nil {
		return nil, false
	}
	return m.set.Get(name)
}

// outputKind maps an output file to the default output of the same kind, so
// that an include on any script output pulls in the package's library files.
func outputKind(output string) string {
	switch path.Ext(output) {
	case ".js":
		return LibrariesOutput
	case ".css":
		return StylesOutput
	default:
		return output
	}
}

// Directives returns pkg's bpm:build map soft-merged over the default
// directives for mode.
//
// A default directive is synthesized only when at least one of its
// directories exists: the package's lib directory feeds the library bundle,
// css and resources feed the stylesheet bundle and, in debug builds, tests
// feed <name>/bpm_tests.js.
func Directives(pkg *bpmpkg.Package, mode string) *value.Map {
	defaults := value.NewMap()
	if dirs := existingDirs(pkg, "lib"); len(dirs) > 0 {
		defaults.Set(LibrariesOutput, filesDirective(dirs))
	}
	if dirs := existingDirs(pkg, "css", "resources"); len(dirs) > 0 {
		defaults.Set(StylesOutput, filesDirective(dirs))
	}
	if mode == bpmpkg.ModeDebug {
		if dirs := existingDirs(pkg, "tests"); len(dirs) > 0 {
			d := filesDirective(dirs).Map()
			d.Set("modes", value.Strings(bpmpkg.ModeDebug))
			defaults.Set(TestsOutputFor(pkg.Name), value.FromMap(d))
		}
	}
	return value.SoftMergeMaps(defaults, pkg.Build)
}

// TestsOutputFor returns the test bundle output of package name.
func TestsOutputFor(name string) string {
	return name + "/" + TestsOutput
}

func filesDirective(dirs []string) value.Value {
	d := value.NewMap()
	d.Set("files", value.Strings(dirs...))
	return value.FromMap(d)
}

// existingDirs returns the logical directory names among names that exist
// under the package root.
func existingDirs(pkg *bpmpkg.Package, names ...string) []string {
	var out []string
	for _, name := range names {
		for _, rel := range pkg.Directory(name) {
			if info, err := os.Stat(filepath.Join(pkg.Root, filepath.FromSlash(rel))); err == nil && info.IsDir() {
				out = append(out, name)
				break
			}
		}
	}
	return out
}
