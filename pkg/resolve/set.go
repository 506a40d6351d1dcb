// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"cmp"
	"slices"

	"github.com/bpmkit/bpm/internal/dag"
	"github.com/bpmkit/bpm/pkg/bpmpkg"
)

type (
	// Set is a resolved dependency set. Packages are ordered so that every
	// package comes after all of its dependencies.
	Set struct {
		Packages []*bpmpkg.Package

		byName map[string]*bpmpkg.Package
		local  map[string]bool
		graph  *dag.Graph
		// buildOnly marks edges that exist only because of build-time
		// dependencies; keyed by "pkg\x00dep".
		buildOnly map[string]bool

		runtimeRoots []string
		devRoots     []string
	}

	// View selects which top-level dependencies a sorted view starts from.
	View int
)

const (
	// ViewAll starts from runtime and development dependencies.
	ViewAll View = iota
	// ViewRuntime starts from runtime dependencies only.
	ViewRuntime
	// ViewDevelopment starts from development dependencies only.
	ViewDevelopment
)

func newSet() *Set {
	return &Set{
		byName:    make(map[string]*bpmpkg.Package),
		local:     make(map[string]bool),
		graph:     dag.New(),
		buildOnly: make(map[string]bool),
	}
}

// Len returns the number of resolved packages.
func (s *Set) Len() int {
	return len(s.Packages)
}

// Get returns the resolved package called name.
func (s *Set) Get(name string) (*bpmpkg.Package, bool) {
	p, ok := s.byName[name]
	return p, ok
}

// Names returns the package names in resolution order.
func (s *Set) Names() []string {
	names := make([]string, len(s.Packages))
	for i, p := range s.Packages {
		names[i] = p.Name
	}
	return names
}

// IsLocal reports whether name was resolved from the project's vendored
// packages.
func (s *Set) IsLocal(name string) bool {
	return s.local[name]
}

// DirectDependencies returns the resolved packages that name depends on at
// runtime, sorted by name.
func (s *Set) DirectDependencies(name string) []*bpmpkg.Package {
	var out []*bpmpkg.Package
	for _, dep := range s.graph.Dependencies(name) {
		if s.buildOnly[edgeKey(name, dep)] {
			continue
		}
		if p, ok := s.byName[dep]; ok {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b *bpmpkg.Package) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// Dependents returns every resolved package that depends on name at runtime,
// directly or transitively, sorted by name.
func (s *Set) Dependents(name string) []string {
	var out []string
	for _, p := range s.Packages {
		if p.Name == name {
			continue
		}
		if slices.Contains(s.sorted([]string{p.Name}), name) {
			out = append(out, p.Name)
		}
	}
	slices.Sort(out)
	return out
}

// SortedDeps returns the project's runtime and development dependencies and
// everything they need, in depth-first post-order.
func (s *Set) SortedDeps() []*bpmpkg.Package {
	return s.SortedView(ViewAll)
}

// SortedRuntimeDeps is SortedDeps restricted to runtime dependencies.
func (s *Set) SortedRuntimeDeps() []*bpmpkg.Package {
	return s.SortedView(ViewRuntime)
}

// SortedDevelopmentDeps is SortedDeps restricted to development dependencies.
func (s *Set) SortedDevelopmentDeps() []*bpmpkg.Package {
	return s.SortedView(ViewDevelopment)
}

// SortedView walks each top-level dependency selected by view, appending a
// package only after the packages it depends on. The walk shares one seen-set
// across roots, so it terminates on cyclic graphs instead of reporting them.
func (s *Set) SortedView(view View) []*bpmpkg.Package {
	names := s.sorted(s.roots(view))
	out := make([]*bpmpkg.Package, 0, len(names))
	for _, name := range names {
		if p, ok := s.byName[name]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Reachable reports which packages the view's roots reach without following
// build-time edges. Packages pulled in only as minifiers or plugin
// dependencies are absent.
func (s *Set) Reachable(view View) map[string]bool {
	out := make(map[string]bool)
	for _, name := range s.sorted(s.roots(view)) {
		out[name] = true
	}
	return out
}

func (s *Set) roots(view View) []string {
	switch view {
	case ViewRuntime:
		return s.runtimeRoots
	case ViewDevelopment:
		return s.devRoots
	default:
		return append(slices.Clone(s.runtimeRoots), s.devRoots...)
	}
}

func (s *Set) sorted(roots []string) []string {
	seen := make(map[string]bool)
	follow := func(node, dep string) bool { return !s.buildOnly[edgeKey(node, dep)] }

	var out []string
	for _, root := range roots {
		out = s.graph.PostOrder(root, seen, follow, out)
	}
	return out
}

// SoftDependencies returns the resolved packages the project does not
// declare directly, sorted by name. They were pulled in only to satisfy
// another package and become removable once nothing needs them.
func SoftDependencies(project *bpmpkg.Project, set *Set) []string {
	hard := project.HardDependencies()
	var soft []string
	for _, p := range set.Packages {
		if _, ok := hard.Get(p.Name); !ok {
			soft = append(soft, p.Name)
		}
	}
	slices.Sort(soft)
	return soft
}

func edgeKey(node, dep string) string {
	return node + "\x00" + dep
}
