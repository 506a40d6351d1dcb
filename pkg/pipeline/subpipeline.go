// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bpmkit/bpm/pkg/bpmpkg"
	"github.com/bpmkit/bpm/pkg/plugin"
)

// searchDirs are the logical directories a sub-pipeline searches, after the
// package root, when resolving a logical path.
var searchDirs = []string{"lib", "css", "resources", "assets"}

// SubPipeline finds and processes the files of one package.
type SubPipeline struct {
	Package  *bpmpkg.Package
	Registry *Registry

	bridge *plugin.Bridge
}

func newSubPipeline(pkg *bpmpkg.Package, plugins []*bpmpkg.Package, bridge *plugin.Bridge) (*SubPipeline, error) {
	reg, err := NewRegistry(pkg.Name, plugins)
	if err != nil {
		return nil, err
	}
	return &SubPipeline{Package: pkg, Registry: reg, bridge: bridge}, nil
}

// Find resolves a path relative to the package to a file. The package root
// is searched first, then its library and style directories. A path without
// extension matches any file with that base name.
func (s *SubPipeline) Find(logical string) (string, error) {
	rel := filepath.FromSlash(path.Clean(logical))
	if !filepath.IsLocal(rel) {
		return "", &AssetNotFoundError{Path: logical}
	}

	bases := []string{""}
	for _, name := range searchDirs {
		bases = append(bases, s.Package.Directory(name)...)
	}
	for _, base := range bases {
		if p, ok := findFile(filepath.Join(s.Package.Root, filepath.FromSlash(base), rel)); ok {
			return p, nil
		}
	}
	return "", &AssetNotFoundError{Path: logical}
}

// Files returns the regular files under rel, a logical directory name or a
// literal subpath, sorted by path. A missing directory yields no files.
func (s *SubPipeline) Files(rel string) ([]string, error) {
	var files []string
	for _, dir := range s.Package.Directory(rel) {
		root := filepath.Join(s.Package.Root, filepath.FromSlash(dir))
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list %s of %s: %w", rel, s.Package.Name, err)
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// Process reads file and runs it through the format compiler for its
// extension and the transforms registered for the resulting content type.
func (s *SubPipeline) Process(ctx context.Context, file, moduleID string, a *artifact) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file, err)
	}
	body := string(data)

	pctx := &plugin.Context{
		Package:  s.Package.Metadata(),
		ModuleID: moduleID,
		Settings: a.settings(),
		Minify:   a.minifyFunc(ctx),
	}

	contentType := ContentType(file)
	if f, ok := s.Registry.Format(filepath.Ext(file)); ok {
		if body, err = s.apply(ctx, f.Transform, body, a.output, moduleID, pctx); err != nil {
			return "", err
		}
		contentType = f.Output
	}
	for _, t := range s.Registry.Transforms(contentType) {
		if body, err = s.apply(ctx, t, body, a.output, moduleID, pctx); err != nil {
			return "", err
		}
	}
	return body, nil
}

// apply runs t on body. Failures name the artifact being built and the
// module within it.
func (s *SubPipeline) apply(ctx context.Context, t Transform, body, asset, module string, pctx *plugin.Context) (string, error) {
	result, err := s.bridge.Invoke(ctx, plugin.Call{
		Plugin:     t.Plugin,
		Capability: t.Capability,
		Asset:      asset,
		Module:     module,
		Data:       body,
		Context:    pctx,
	})
	if err != nil {
		return "", err
	}
	out, ok := result.(string)
	if !ok {
		return "", &plugin.InvocationError{
			Plugin: t.Plugin,
			Asset:  asset,
			Module: module,
			Err:    fmt.Errorf("%s returned %T instead of a string", t.Capability, result),
		}
	}
	return out, nil
}

// findFile returns base when it is a regular file, or else the first file in
// its directory named base plus an extension.
func findFile(base string) (string, bool) {
	if info, err := os.Stat(base); err == nil && info.Mode().IsRegular() {
		return base, true
	}

	entries, err := os.ReadDir(filepath.Dir(base))
	if err != nil {
		return "", false
	}
	prefix := filepath.Base(base) + "."
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasPrefix(entry.Name(), prefix) {
			return filepath.Join(filepath.Dir(base), entry.Name()), true
		}
	}
	return "", false
}
