// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bpmkit/bpm/pkg/bpmpkg"
)

const (
	libraryDir = "lib"
	mainModule = "main"
)

// ResolveModule maps a module id to a file.
//
// Ids have the form "pkg/~dir/path", where dir is a logical directory of
// pkg, or "pkg/path", which is looked up in the library directory and then
// the package root. A bare "pkg" is "pkg/lib/main".
func (r *Router) ResolveModule(id string) (string, error) {
	name, rest, _ := strings.Cut(id, "/")
	pkg, ok := r.index.Get(name)
	if !ok {
		return "", &AssetNotFoundError{Path: id}
	}

	dirs := pkg.Directory(libraryDir)
	fallback := true
	if alias, ok := strings.CutPrefix(rest, "~"); ok {
		var dir string
		dir, rest, _ = strings.Cut(alias, "/")
		dirs = pkg.Directory(dir)
		fallback = false
	}
	if rest == "" {
		rest = mainModule
	}
	rel := filepath.FromSlash(path.Clean(rest))
	if !filepath.IsLocal(rel) {
		return "", &AssetNotFoundError{Path: id}
	}

	if fallback {
		dirs = append(slices.Clone(dirs), ".")
	}
	for _, dir := range dirs {
		if file, ok := findFile(filepath.Join(pkg.Root, filepath.FromSlash(dir), rel)); ok {
			return file, nil
		}
	}
	return "", &AssetNotFoundError{Path: id}
}

// ModuleForPath returns the package owning an absolute file path and the
// module id of the file. The package with the deepest root wins, and within
// it the most specific logical directory.
func (r *Router) ModuleForPath(abs string) (pkgName, id string, err error) {
	abs = filepath.Clean(abs)

	var owner *bpmpkg.Package
	var ownerRel string
	for _, pkg := range r.index.all() {
		rel, ok := within(pkg.Root, abs)
		if !ok {
			continue
		}
		if owner == nil || len(pkg.Root) > len(owner.Root) {
			owner, ownerRel = pkg, rel
		}
	}
	if owner == nil {
		return "", "", &PathNotInPackageError{Path: abs}
	}

	alias, tail := "", ownerRel
	best := -1
	for _, name := range owner.DirectoryNames() {
		for _, dir := range owner.Directory(name) {
			dir = path.Clean(filepath.ToSlash(dir))
			if rest, ok := strings.CutPrefix(ownerRel, dir+"/"); ok && len(dir) > best {
				alias, tail, best = name, rest, len(dir)
			}
		}
	}

	tail = strings.TrimSuffix(tail, path.Ext(tail))
	switch alias {
	case libraryDir, "":
		id = owner.Name + "/" + tail
	default:
		id = owner.Name + "/~" + alias + "/" + tail
	}
	return owner.Name, id, nil
}

// within returns abs relative to root, slash-separated, when abs lies
// inside root.
func within(root, abs string) (string, bool) {
	rel, err := filepath.Rel(filepath.Clean(root), abs)
	if err != nil || !filepath.IsLocal(rel) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
