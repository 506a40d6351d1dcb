// SPDX-License-Identifier: MPL-2.0

// Package pipeline routes asset lookups across the packages of a build.
//
// A [Router] owns one [SubPipeline] per resolved package plus one for the
// project. Logical paths whose first segment names a package are served by
// that package's sub-pipeline; the outputs of the build manifest are
// synthesized by concatenating the contributing packages' files.
package pipeline

import (
	"context"
	"path"
	"slices"
	"strings"

	"github.com/bpmkit/bpm/pkg/bpmpkg"
	"github.com/bpmkit/bpm/pkg/buildmanifest"
	"github.com/bpmkit/bpm/pkg/plugin"
	"github.com/bpmkit/bpm/pkg/resolve"
)

type (
	// Router serves the assets of one build.
	Router struct {
		project  *bpmpkg.Project
		manifest *buildmanifest.Manifest
		index    *packageIndex
		bridge   *plugin.Bridge
		cache    *MinifyCache
		subs     map[string]*SubPipeline

		hostFactory plugin.HostFactory
		scriptCache int
	}

	// Option configures a Router.
	Option func(*Router)

	// Asset is a resolved logical path.
	Asset struct {
		LogicalPath string
		// Package owns the file; empty for composite outputs.
		Package string
		// Path is the source file; empty for composite outputs.
		Path        string
		ContentType string
		Composite   bool
	}

	// BuiltAsset is an asset together with its processed body.
	BuiltAsset struct {
		Asset
		Body string
	}

	// packageIndex looks packages up across the resolved set and the
	// project.
	packageIndex struct {
		project *bpmpkg.Project
		set     *resolve.Set
	}
)

// WithMinifyCache shares a minification cache between routers.
func WithMinifyCache(c *MinifyCache) Option {
	return func(r *Router) { r.cache = c }
}

// WithScriptCacheSize bounds the plugin script cache of the router's bridge.
func WithScriptCacheSize(n int) Option {
	return func(r *Router) { r.scriptCache = n }
}

// WithHostFactory sets the script host used for plugins.
func WithHostFactory(f plugin.HostFactory) Option {
	return func(r *Router) { r.hostFactory = f }
}

// New creates a Router for a project, its resolved set and the manifest
// merged from them. It fails when a package uses more than one transport
// compiler.
func New(project *bpmpkg.Project, set *resolve.Set, manifest *buildmanifest.Manifest, opts ...Option) (*Router, error) {
	r := &Router{
		project:  project,
		manifest: manifest,
		index:    &packageIndex{project: project, set: set},
		subs:     make(map[string]*SubPipeline),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewMinifyCache(DefaultMinifyCacheSize)
	}

	var bridgeOpts []plugin.Option
	if r.hostFactory != nil {
		bridgeOpts = append(bridgeOpts, plugin.WithHostFactory(r.hostFactory))
	}
	if r.scriptCache > 0 {
		bridgeOpts = append(bridgeOpts, plugin.WithScriptCacheSize(r.scriptCache))
	}
	r.bridge = plugin.NewBridge(r.index, bridgeOpts...)

	for _, pkg := range r.index.all() {
		sub, err := newSubPipeline(pkg, r.index.usedPlugins(pkg), r.bridge)
		if err != nil {
			return nil, err
		}
		r.subs[pkg.Name] = sub
	}
	return r, nil
}

// Resolve maps a logical path to an asset. Manifest outputs are composite;
// a path whose first segment names a package is looked up in that package;
// anything else is looked up in the project.
func (r *Router) Resolve(logical string) (Asset, error) {
	logical = strings.TrimPrefix(path.Clean("/"+logical), "/")

	if e, ok := r.manifest.Entry(logical); ok && !e.IsAssets() {
		return Asset{LogicalPath: logical, ContentType: ContentType(logical), Composite: true}, nil
	}

	sub := r.subs[r.project.Name]
	rest := logical
	if name, tail, ok := strings.Cut(logical, "/"); ok {
		if s, ok := r.subs[name]; ok {
			sub, rest = s, tail
		}
	}

	file, err := sub.Find(rest)
	if err != nil {
		return Asset{}, &AssetNotFoundError{Path: logical}
	}
	return Asset{
		LogicalPath: logical,
		Package:     sub.Package.Name,
		Path:        file,
		ContentType: sub.Registry.OutputType(file),
	}, nil
}

// FindAsset resolves and builds a logical path.
func (r *Router) FindAsset(ctx context.Context, logical string) (*BuiltAsset, error) {
	asset, err := r.Resolve(logical)
	if err != nil {
		return nil, err
	}

	var body string
	if asset.Composite {
		body, err = r.buildComposite(ctx, asset.LogicalPath)
	} else {
		body, err = r.subs[asset.Package].Process(ctx, asset.Path, r.moduleID(asset.Path), &artifact{router: r, output: asset.LogicalPath})
	}
	if err != nil {
		return nil, err
	}
	return &BuiltAsset{Asset: asset, Body: body}, nil
}

// BuildableAssets lists the composite outputs of the manifest, sorted.
func (r *Router) BuildableAssets() []string {
	var out []string
	for _, output := range r.manifest.Outputs() {
		if e, _ := r.manifest.Entry(output); !e.IsAssets() {
			out = append(out, output)
		}
	}
	return out
}

// Expire drops the cached plugin scripts and minified bodies.
func (r *Router) Expire() {
	r.bridge.Expire()
	r.cache.Purge()
}

// moduleID returns the module id of a file, or its path when no package
// claims it.
func (r *Router) moduleID(file string) string {
	_, id, err := r.ModuleForPath(file)
	if err != nil {
		return file
	}
	return id
}

// Get implements plugin.Packages.
func (x *packageIndex) Get(name string) (*bpmpkg.Package, bool) {
	if name == x.project.Name {
		return x.project.Package, true
	}
	if x.set == nil {
		return nil, false
	}
	return x.set.Get(name)
}

// DirectDependencies implements plugin.Packages.
func (x *packageIndex) DirectDependencies(name string) []*bpmpkg.Package {
	if name != x.project.Name {
		if x.set == nil {
			return nil
		}
		return x.set.DirectDependencies(name)
	}

	var out []*bpmpkg.Package
	for _, dep := range slices.Sorted(slices.Values(x.project.Dependencies.Names())) {
		if p, ok := x.Get(dep); ok && dep != name {
			out = append(out, p)
		}
	}
	return out
}

// loadAfter returns the packages whose files precede name's in a bundle:
// its direct runtime dependencies and, for the project, its development
// dependencies as well.
func (x *packageIndex) loadAfter(name string) []*bpmpkg.Package {
	deps := x.DirectDependencies(name)
	if name != x.project.Name {
		return deps
	}
	for _, dev := range slices.Sorted(slices.Values(x.project.DevelopmentDependencies.Names())) {
		if p, ok := x.Get(dev); ok && dev != name {
			deps = append(deps, p)
		}
	}
	return deps
}

// all returns the resolved packages in resolution order, then the project.
func (x *packageIndex) all() []*bpmpkg.Package {
	var out []*bpmpkg.Package
	if x.set != nil {
		out = append(out, x.set.Packages...)
	}
	return append(out, x.project.Package)
}

// usedPlugins returns pkg itself followed by its direct runtime
// dependencies sorted by name: the packages whose bpm:provides apply to
// pkg's files.
func (x *packageIndex) usedPlugins(pkg *bpmpkg.Package) []*bpmpkg.Package {
	return append([]*bpmpkg.Package{pkg}, x.DirectDependencies(pkg.Name)...)
}
