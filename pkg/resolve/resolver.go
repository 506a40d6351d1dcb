// SPDX-License-Identifier: MPL-2.0

// Package resolve computes the set of packages a project needs.
//
// Resolution walks dependency declarations breadth-first. The first version
// bound to a name wins; every later requirement on that name must be
// satisfied by it. Vendored packages take precedence over the package
// store, and the resulting [Set] is ordered dependency-first so that scripts
// load in a valid order.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bpmkit/bpm/pkg/bpmpkg"
	"github.com/bpmkit/bpm/pkg/semver"
	"github.com/bpmkit/bpm/pkg/store"
)

type (
	// Resolver resolves a project's dependencies against its vendored
	// packages and a package store.
	Resolver struct {
		Project *bpmpkg.Project
		Store   store.PackageStore

		// Prerelease allows prerelease versions to satisfy constraints.
		Prerelease bool
		// Prefetch installs the top-level non-vendored dependencies
		// concurrently before resolution walks them.
		Prefetch bool

		mu     sync.Mutex
		cached *Set
	}

	request struct {
		bpmpkg.Dependency
		// from is the requesting package; empty for the project.
		from  string
		build bool
	}

	binding struct {
		pkg        *bpmpkg.Package
		constraint string
	}

	// source locates one package for a requirement.
	source func(ctx context.Context, name, constraint string) (*bpmpkg.Package, error)
)

// New creates a Resolver for project backed by s.
func New(project *bpmpkg.Project, s store.PackageStore) *Resolver {
	return &Resolver{Project: project, Store: s}
}

// Resolve resolves deps and everything they transitively require. A nil
// deps resolves the project's runtime, development and build dependencies.
func (r *Resolver) Resolve(ctx context.Context, deps bpmpkg.DependencyList) (*Set, error) {
	return r.resolve(ctx, deps, r.fromStore)
}

// ResolveProject resolves the project's dependencies, reusing the cached
// dependency manifest where its entries still satisfy the requirements. The
// manifest is rewritten when the result differs from it. The set is kept in
// memory until Expire is called.
func (r *Resolver) ResolveProject(ctx context.Context) (*Set, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		return r.cached, nil
	}

	manifest, err := r.Project.LoadDependencyManifest()
	if err != nil {
		return nil, err
	}

	fromManifest := func(ctx context.Context, name, constraint string) (*bpmpkg.Package, error) {
		entry, ok := manifest.Get(name)
		if ok && satisfies(entry.Version, constraint) {
			if p, err := bpmpkg.Load(entry.Path); err == nil && p.Name == name && p.Version == entry.Version {
				return p, nil
			}
			slog.Debug("stale dependency manifest entry", "name", name, "path", entry.Path)
		}
		return r.fromStore(ctx, name, constraint)
	}

	set, err := r.resolve(ctx, nil, fromManifest)
	if err != nil {
		return nil, err
	}

	if next := manifestFor(set); !sameManifest(manifest, next) {
		if err := r.Project.SaveDependencyManifest(next); err != nil {
			return nil, err
		}
		slog.Debug("dependency manifest rewritten", "packages", next.Len())
	}

	r.cached = set
	return set, nil
}

// Expire drops the in-memory resolution so that the next ResolveProject
// recomputes it. Call it whenever the project's dependencies change.
func (r *Resolver) Expire() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = nil
}

func (r *Resolver) resolve(ctx context.Context, deps bpmpkg.DependencyList, lookup source) (*Set, error) {
	set := newSet()
	if deps == nil {
		deps = r.Project.AllDependencies()
		set.runtimeRoots = r.Project.Dependencies.Names()
		set.devRoots = r.Project.DevelopmentDependencies.Names()
	} else {
		set.runtimeRoots = deps.Names()
	}

	if r.Prefetch {
		r.prefetch(ctx, deps)
	}

	queue := make([]request, 0, len(deps))
	for _, d := range deps {
		queue = append(queue, request{Dependency: d})
	}

	bound := make(map[string]binding)
	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		req := queue[0]
		queue = queue[1:]

		if req.Name == r.Project.Name {
			continue
		}
		if req.from != "" {
			set.addEdge(req.from, req.Name, req.build)
		}

		if b, ok := bound[req.Name]; ok {
			if !satisfies(b.pkg.Version, req.Constraint) {
				return nil, &PackageConflictError{
					Name:            req.Name,
					FirstVersion:    b.pkg.Version,
					FirstConstraint: b.constraint,
					Constraint:      req.Constraint,
					RequiredBy:      req.from,
				}
			}
			continue
		}

		pkg, local, err := r.locate(ctx, req, lookup)
		if err != nil {
			if req.from != "" {
				return nil, fmt.Errorf("dependency of %s: %w", req.from, err)
			}
			return nil, err
		}

		bound[req.Name] = binding{pkg: pkg, constraint: req.Constraint}
		set.add(pkg, local)
		slog.Debug("resolved package", "name", pkg.Name, "version", pkg.Version, "local", local)

		for _, d := range pkg.Dependencies {
			queue = append(queue, request{Dependency: d, from: pkg.Name})
		}
		if local {
			for _, d := range pkg.DevelopmentDependencies {
				queue = append(queue, request{Dependency: d, from: pkg.Name})
			}
		}
		for _, d := range pkg.BuildDependencies() {
			queue = append(queue, request{Dependency: d, from: pkg.Name, build: true})
		}
	}

	order, err := set.graph.Sort()
	if err != nil {
		return nil, fmt.Errorf("failed to order dependencies: %w", err)
	}
	for _, name := range order {
		if p, ok := set.byName[name]; ok {
			set.Packages = append(set.Packages, p)
		}
	}
	return set, nil
}

// locate finds a package for req: vendored packages first, then lookup.
func (r *Resolver) locate(ctx context.Context, req request, lookup source) (*bpmpkg.Package, bool, error) {
	if vp, ok := r.Project.Vendored(req.Name); ok {
		if !satisfies(vp.Version, req.Constraint) {
			return nil, false, &LocalPackageConflictError{
				Name:          req.Name,
				Constraint:    constraintString(req.Constraint),
				ActualVersion: vp.Version,
			}
		}
		return vp, true, nil
	}

	pkg, err := lookup(ctx, req.Name, req.Constraint)
	if err != nil {
		return nil, false, err
	}
	return pkg, false, nil
}

// fromStore installs a package through the store. A package the remote
// does not have is still accepted when a satisfying copy is installed.
func (r *Resolver) fromStore(ctx context.Context, name, constraint string) (*bpmpkg.Package, error) {
	refs, err := r.Store.Install(ctx, name, constraint, r.Prerelease)
	var ref store.ResolvedRef
	switch {
	case err == nil && len(refs) > 0:
		ref = refs[0]
		for _, candidate := range refs {
			if candidate.Name == name {
				ref = candidate
				break
			}
		}
	case err == nil || errors.Is(err, store.ErrRemoteNotFound):
		installed, ok, lerr := r.Store.Installed(name, constraint, r.Prerelease)
		if lerr != nil {
			return nil, lerr
		}
		if !ok {
			return nil, &PackageNotFoundError{Name: name, Constraint: constraintString(constraint)}
		}
		slog.Debug("package missing remotely, using installed copy", "name", name, "version", installed.Version)
		ref = installed
	default:
		return nil, fmt.Errorf("failed to install %s: %w", name, err)
	}

	pkg, err := bpmpkg.Load(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s@%s: %w", name, ref.Version, err)
	}
	return pkg, nil
}

func (r *Resolver) prefetch(ctx context.Context, deps bpmpkg.DependencyList) {
	var reqs []store.Request
	for _, d := range deps {
		if _, ok := r.Project.Vendored(d.Name); ok || d.Name == r.Project.Name {
			continue
		}
		reqs = append(reqs, store.Request{Name: d.Name, Constraint: d.Constraint})
	}
	if len(reqs) < 2 {
		return
	}
	if _, err := store.Prefetch(ctx, r.Store, reqs, r.Prerelease); err != nil {
		// Resolution reports the failure with full context.
		slog.Debug("prefetch failed", "error", err)
	}
}

// FindNonLocalDependencies expands deps by replacing every vendored package
// with its own runtime and development dependencies, recursively, so that
// only packages that must be fetched remain.
func (r *Resolver) FindNonLocalDependencies(deps bpmpkg.DependencyList) (bpmpkg.DependencyList, error) {
	var out bpmpkg.DependencyList
	seen := make(map[string]bool)

	var expand func(deps bpmpkg.DependencyList) error
	expand = func(deps bpmpkg.DependencyList) error {
		for _, d := range deps {
			vp, ok := r.Project.Vendored(d.Name)
			if !ok {
				if _, dup := out.Get(d.Name); !dup {
					out = append(out, d)
				}
				continue
			}
			if !satisfies(vp.Version, d.Constraint) {
				return &LocalPackageConflictError{
					Name:          d.Name,
					Constraint:    constraintString(d.Constraint),
					ActualVersion: vp.Version,
				}
			}
			if seen[d.Name] {
				continue
			}
			seen[d.Name] = true
			if err := expand(vp.Dependencies.Merge(vp.DevelopmentDependencies)); err != nil {
				return err
			}
		}
		return nil
	}

	if err := expand(deps); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Set) add(p *bpmpkg.Package, local bool) {
	s.byName[p.Name] = p
	s.local[p.Name] = local
	s.graph.AddNode(p.Name)
}

func (s *Set) addEdge(from, to string, build bool) {
	key := edgeKey(from, to)
	known := false
	for _, dep := range s.graph.Dependencies(from) {
		if dep == to {
			known = true
			break
		}
	}
	switch {
	case !build:
		delete(s.buildOnly, key)
	case !known:
		s.buildOnly[key] = true
	}
	s.graph.AddDependency(from, to)
}

func manifestFor(set *Set) *bpmpkg.DependencyManifest {
	m := bpmpkg.NewDependencyManifest()
	for _, p := range set.Packages {
		m.Set(p.Name, p.Version, p.Root)
	}
	return m
}

func sameManifest(a, b *bpmpkg.DependencyManifest) bool {
	if a.Len() != b.Len() {
		return false
	}
	for name, entry := range a.Entries {
		if other, ok := b.Get(name); !ok || other != entry {
			return false
		}
	}
	return true
}

func satisfies(version, constraint string) bool {
	ok, err := semver.Satisfies(version, constraint)
	return err == nil && ok
}

func constraintString(constraint string) string {
	c, err := semver.ParseConstraint(constraint)
	if err != nil {
		return constraint
	}
	return c.String()
}
