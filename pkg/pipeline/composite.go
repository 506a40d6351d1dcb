// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bpmkit/bpm/pkg/bpmpkg"
	"github.com/bpmkit/bpm/pkg/buildmanifest"
	"github.com/bpmkit/bpm/pkg/plugin"
	"github.com/bpmkit/bpm/pkg/value"
)

// DefaultMinifyCacheSize bounds the number of minified bodies kept.
const DefaultMinifyCacheSize = 128

const headerRule = "==========================================================================="

type (
	// MinifyCache remembers minified composite bodies keyed by output path,
	// the minifier package's name and version, and a fingerprint of the
	// unminified body. It may outlive a Router.
	MinifyCache struct {
		entries *lru.Cache[string, string]
	}

	// artifact is the output currently being built. It is handed to every
	// plugin invoked for it so that nested minify calls reach the right
	// minifier.
	artifact struct {
		router *Router
		output string
		// entry is nil for plain files.
		entry *buildmanifest.Entry
	}
)

// NewMinifyCache creates a cache holding up to size bodies.
func NewMinifyCache(size int) *MinifyCache {
	if size <= 0 {
		size = DefaultMinifyCacheSize
	}
	entries, _ := lru.New[string, string](size)
	return &MinifyCache{entries: entries}
}

// Len returns the number of cached bodies.
func (c *MinifyCache) Len() int {
	return c.entries.Len()
}

// Purge drops every cached body.
func (c *MinifyCache) Purge() {
	c.entries.Purge()
}

func (c *MinifyCache) key(output, minifier, body string) string {
	sum := sha256.Sum256([]byte(body))
	return output + "\x00" + minifier + "\x00" + hex.EncodeToString(sum[:])
}

func (a *artifact) settings() *value.Map {
	if a.entry == nil {
		return value.NewMap()
	}
	return a.entry.Settings
}

func (a *artifact) minifyFunc(ctx context.Context) func(string) (string, error) {
	return func(body string) (string, error) {
		return a.minify(ctx, body)
	}
}

// minify applies the output's minifier in production builds. Debug builds
// and outputs without a minifier return body unchanged.
func (a *artifact) minify(ctx context.Context, body string) (string, error) {
	r := a.router
	if r.manifest.Mode != bpmpkg.ModeProduction || a.entry == nil || len(a.entry.Minifier) == 0 {
		return body, nil
	}
	minifier := a.entry.Minifier[0].Name

	id := minifier
	if pkg, ok := r.index.Get(minifier); ok {
		id = pkg.ID()
	}
	key := r.cache.key(a.output, id, body)
	if cached, ok := r.cache.entries.Get(key); ok {
		slog.Debug("minify cache hit", "output", a.output)
		return cached, nil
	}

	result, err := r.bridge.Invoke(ctx, plugin.Call{
		Plugin:     minifier,
		Capability: bpmpkg.CapabilityMinifier,
		Asset:      a.output,
		Data:       body,
		Context: &plugin.Context{
			Package:  r.project.Metadata(),
			ModuleID: a.output,
			Settings: a.settings(),
		},
	})
	if err != nil {
		return "", err
	}
	out, ok := result.(string)
	if !ok {
		return "", &plugin.InvocationError{
			Plugin: minifier,
			Asset:  a.output,
			Err:    fmt.Errorf("minify returned %T instead of a string", result),
		}
	}
	r.cache.entries.Add(key, out)
	return out, nil
}

// buildComposite concatenates the files contributed to output. The header
// comment is kept out of minification and prepended afterwards.
func (r *Router) buildComposite(ctx context.Context, output string) (string, error) {
	e, _ := r.manifest.Entry(output)
	a := &artifact{router: r, output: output, entry: e}
	contentType := ContentType(output)

	var body strings.Builder
	for _, name := range r.contributionOrder(e) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		sub, ok := r.subs[name]
		if !ok {
			return "", &AssetNotFoundError{Path: name + "/"}
		}
		c, _ := e.Contribution(name)
		for _, rel := range c.Paths {
			files, err := sub.Files(rel)
			if err != nil {
				return "", err
			}
			for _, file := range files {
				if sub.Registry.OutputType(file) != contentType {
					continue
				}
				out, err := sub.Process(ctx, file, r.moduleID(file), a)
				if err != nil {
					return "", err
				}
				body.WriteString(out)
				if !strings.HasSuffix(out, "\n") {
					body.WriteString("\n")
				}
			}
		}
	}

	minified, err := a.minify(ctx, body.String())
	if err != nil {
		return "", err
	}
	return Header(e) + minified, nil
}

// contributionOrder walks the contributors of e by name, emitting every
// package after the contributors it depends on. The project also follows
// its development dependencies.
func (r *Router) contributionOrder(e *buildmanifest.Entry) []string {
	names := e.Packages()
	contributes := make(map[string]bool, len(names))
	for _, name := range names {
		contributes[name] = true
	}

	var out []string
	seen := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		for _, dep := range r.index.loadAfter(name) {
			visit(dep.Name)
		}
		if contributes[name] {
			out = append(out, name)
		}
	}
	for _, name := range names {
		visit(name)
	}
	return out
}

// Header returns the comment block opening a composite output: the output
// name and its contributors as "name (version)", sorted, or "(none)".
func Header(e *buildmanifest.Entry) string {
	var listed []string
	for _, name := range e.Packages() {
		c, _ := e.Contribution(name)
		listed = append(listed, fmt.Sprintf("%s (%s)", c.Package, c.Version))
	}
	manifest := "(none)"
	if len(listed) > 0 {
		manifest = strings.Join(listed, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "/* %s\n", headerRule)
	fmt.Fprintf(&sb, "   bpm combined asset: %s\n", e.Output)
	fmt.Fprintf(&sb, "   MANIFEST: %s\n", manifest)
	sb.WriteString("   Generated by bpm. Changes are overwritten by the next build.\n")
	fmt.Fprintf(&sb, "   %s */\n", headerRule)
	return sb.String()
}
