// SPDX-License-Identifier: MPL-2.0

// Package plugin runs package-supplied plugin scripts.
//
// A plugin is a script a package declares under bpm:provides for one
// capability: a format compiler, a pre- or postprocessor, a transport
// compiler or a minifier. [Bridge.Invoke] loads the script together with the
// library code of the packages it depends on into a fresh [ScriptHost] and
// calls the method that implements the capability.
package plugin

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bpmkit/bpm/pkg/bpmpkg"
	"github.com/bpmkit/bpm/pkg/value"
)

// DefaultScriptCacheSize bounds the number of assembled plugin scripts kept
// in memory.
const DefaultScriptCacheSize = 64

const (
	globalData    = "__bpm_data"
	globalContext = "__bpm_context"
	globalPlugin  = "__bpm_plugin"
)

// methods maps capabilities to the script method implementing them.
var methods = map[string]string{
	bpmpkg.CapabilityPreprocessor:  "preprocess",
	bpmpkg.CapabilityPostprocessor: "postprocess",
	bpmpkg.CapabilityTransport:     "compileTransport",
	bpmpkg.CapabilityMinifier:      "minify",
}

type (
	// Packages looks up resolved packages and their runtime dependencies.
	Packages interface {
		Get(name string) (*bpmpkg.Package, bool)
		DirectDependencies(name string) []*bpmpkg.Package
	}

	// Bridge invokes plugins provided by a set of packages.
	Bridge struct {
		packages Packages
		newHost  HostFactory

		mu      sync.Mutex
		scripts *lru.Cache[string, string]
	}

	// Option configures a Bridge.
	Option func(*Bridge)

	// Call describes one plugin invocation.
	Call struct {
		// Plugin is the name of the package providing the capability.
		Plugin     string
		Capability string
		// Asset is the artifact being built, reported on failure.
		Asset string
		// Module is the module the data belongs to, when it differs from
		// Asset.
		Module  string
		Data    any
		Context *Context
	}

	// Context is the record a plugin receives next to its data. It belongs to
	// the one artifact being built.
	Context struct {
		// Package is a metadata snapshot of the package owning the asset.
		Package  value.Value
		ModuleID string
		Settings *value.Map
		// Minify minifies body with the enclosing artifact's minifier. Nil
		// returns body unchanged.
		Minify func(body string) (string, error)
	}
)

// WithHostFactory sets the factory creating one ScriptHost per invocation.
func WithHostFactory(f HostFactory) Option {
	return func(b *Bridge) { b.newHost = f }
}

// WithScriptCacheSize bounds the assembled script cache.
func WithScriptCacheSize(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.scripts, _ = lru.New[string, string](n)
		}
	}
}

// NewBridge creates a Bridge over packages. Scripts run in goja unless
// another host factory is configured.
func NewBridge(packages Packages, opts ...Option) *Bridge {
	b := &Bridge{packages: packages, newHost: NewGojaHost}
	b.scripts, _ = lru.New[string, string](DefaultScriptCacheSize)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Method returns the script method implementing capability.
func Method(capability string) (string, bool) {
	if strings.HasPrefix(capability, bpmpkg.CapabilityFormatPrefix) {
		return "compileFormat", true
	}
	m, ok := methods[capability]
	return m, ok
}

// Invoke runs the capability of call.Plugin on call.Data and returns the
// script's result.
func (b *Bridge) Invoke(ctx context.Context, call Call) (any, error) {
	pkg, ok := b.packages.Get(call.Plugin)
	if !ok {
		return nil, &CapabilityNotFoundError{Plugin: call.Plugin, Capability: call.Capability}
	}
	ref, ok := pkg.Provides[call.Capability]
	if !ok {
		return nil, &CapabilityNotFoundError{Plugin: call.Plugin, Capability: call.Capability}
	}
	method, ok := Method(call.Capability)
	if !ok {
		return nil, &CapabilityNotFoundError{Plugin: call.Plugin, Capability: call.Capability}
	}

	script, err := b.script(pkg, ref)
	if err != nil {
		return nil, &InvocationError{Plugin: call.Plugin, Asset: call.Asset, Module: call.Module, Err: err}
	}

	globals := map[string]any{
		globalData:    call.Data,
		globalContext: call.Context.record(),
	}
	expr := fmt.Sprintf("%s\n%s.%s(%s, %s);\n", script, globalPlugin, method, globalData, globalContext)

	slog.Debug("invoking plugin", "plugin", call.Plugin, "capability", call.Capability, "asset", call.Asset)
	result, err := b.newHost().Evaluate(ctx, expr, globals)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &InvocationError{Plugin: call.Plugin, Asset: call.Asset, Module: call.Module, Err: err}
	}
	return result, nil
}

// Expire drops every cached plugin script.
func (b *Bridge) Expire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts.Purge()
}

func (c *Context) record() map[string]any {
	if c == nil {
		c = &Context{}
	}
	minify := c.Minify
	if minify == nil {
		minify = func(body string) (string, error) { return body, nil }
	}
	settings := map[string]any{}
	if c.Settings != nil {
		if m, ok := value.FromMap(c.Settings).Interface().(map[string]any); ok {
			settings = m
		}
	}
	return map[string]any{
		"package":  c.Package.Interface(),
		"moduleId": c.ModuleID,
		"settings": settings,
		"minify":   minify,
	}
}

// script assembles the text publishing the plugin's exports as __bpm_plugin:
// the library code of its dependencies, dependency-first, followed by the
// entry module wrapped in a CommonJS-style closure.
func (b *Bridge) script(pkg *bpmpkg.Package, ref bpmpkg.PluginRef) (string, error) {
	key := pkg.ID() + "\x00" + ref.Capability

	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.scripts.Get(key); ok {
		return s, nil
	}

	entry, err := os.ReadFile(filepath.Join(pkg.Root, filepath.FromSlash(entryPath(ref.Main))))
	if err != nil {
		return "", fmt.Errorf("failed to read plugin entry %s: %w", ref.Main, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "var %s = (function() {\n", globalPlugin)
	for _, dep := range b.dependencies(pkg, ref) {
		lib, err := libraryCode(dep)
		if err != nil {
			return "", err
		}
		sb.WriteString(lib)
	}
	sb.WriteString("var module = { exports: {} };\n")
	sb.WriteString("(function(module, exports) {\n")
	sb.Write(entry)
	sb.WriteString("\n})(module, module.exports);\n")
	sb.WriteString("return module.exports;\n")
	sb.WriteString("})();\n")

	s := sb.String()
	b.scripts.Add(key, s)
	return s, nil
}

// dependencies returns the transitive runtime dependencies of pkg and of the
// plugin's declared dependencies, each after the packages it needs.
func (b *Bridge) dependencies(pkg *bpmpkg.Package, ref bpmpkg.PluginRef) []*bpmpkg.Package {
	var out []*bpmpkg.Package
	seen := map[string]bool{pkg.Name: true}

	var visit func(p *bpmpkg.Package)
	visit = func(p *bpmpkg.Package) {
		if seen[p.Name] {
			return
		}
		seen[p.Name] = true
		for _, dep := range b.packages.DirectDependencies(p.Name) {
			visit(dep)
		}
		out = append(out, p)
	}

	for _, dep := range b.packages.DirectDependencies(pkg.Name) {
		visit(dep)
	}
	for _, name := range ref.Dependencies.Names() {
		if dep, ok := b.packages.Get(name); ok {
			visit(dep)
		}
	}
	return out
}

// entryPath adds the .js extension to an extensionless entry.
func entryPath(main string) string {
	if path.Ext(main) == "" {
		return main + ".js"
	}
	return main
}

// libraryCode concatenates the .js files under the package's lib directories
// in lexical order.
func libraryCode(pkg *bpmpkg.Package) (string, error) {
	var files []string
	for _, rel := range pkg.Directory("lib") {
		dir := filepath.Join(pkg.Root, filepath.FromSlash(rel))
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) && p == dir {
					return fs.SkipDir
				}
				return err
			}
			if !d.IsDir() && filepath.Ext(p) == ".js" {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to read library of %s: %w", pkg.Name, err)
		}
	}
	slices.Sort(files)

	var sb strings.Builder
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", f, err)
		}
		sb.Write(data)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
