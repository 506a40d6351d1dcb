// SPDX-License-Identifier: MPL-2.0

package bpmpkg

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
)

const (
	// VendoredDir holds packages bundled physically inside a project.
	VendoredDir = "packages"
	// StateDir holds bpm's per-project caches.
	StateDir = ".bpm"
	// DependencyManifestFile caches the resolved dependency set.
	DependencyManifestFile = "dependencies.json"
	// BuildManifestFile stores the last previewed build manifest.
	BuildManifestFile = "build_manifest.json"
	// PreviewDir receives placeholder files for every buildable output.
	PreviewDir = "assets"
)

// Project is the consuming package together with its vendored packages.
type Project struct {
	*Package

	vendored map[string]*Package
}

// LoadProject loads the project at root and every vendored package under
// <root>/packages. Vendored directories without a package.json are skipped.
func LoadProject(root string) (*Project, error) {
	pkg, err := Load(root)
	if err != nil {
		return nil, err
	}

	p := &Project{Package: pkg, vendored: make(map[string]*Package)}

	entries, err := os.ReadDir(filepath.Join(pkg.Root, VendoredDir))
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("failed to read vendored packages: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(pkg.Root, VendoredDir, entry.Name())
		vp, err := Load(dir)
		if err != nil {
			if errors.Is(err, ErrPackageNotFound) {
				slog.Debug("skipping vendored directory without descriptor", "dir", dir)
				continue
			}
			return nil, fmt.Errorf("failed to load vendored package %s: %w", entry.Name(), err)
		}
		if prev, dup := p.vendored[vp.Name]; dup {
			return nil, fmt.Errorf("vendored package %s found twice: %s and %s", vp.Name, prev.Root, vp.Root)
		}
		p.vendored[vp.Name] = vp
	}
	return p, nil
}

// Vendored returns the vendored package called name.
func (p *Project) Vendored(name string) (*Package, bool) {
	vp, ok := p.vendored[name]
	return vp, ok
}

// VendoredNames returns the vendored package names sorted.
func (p *Project) VendoredNames() []string {
	names := make([]string, 0, len(p.vendored))
	for name := range p.vendored {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// HardDependencies returns the project's directly declared runtime and
// development dependencies.
func (p *Project) HardDependencies() DependencyList {
	return p.Dependencies.Merge(p.DevelopmentDependencies)
}

// AddDependency declares name as a hard dependency and persists package.json.
func (p *Project) AddDependency(name, constraint string, development bool) error {
	if constraint == "" {
		constraint = AnyVersion
	}
	p.SetDependency(name, constraint, development)
	if err := p.Save(); err != nil {
		return err
	}
	slog.Debug("dependency added", "name", name, "constraint", constraint, "development", development)
	return nil
}

// RemoveDependency drops name from the hard dependencies and persists
// package.json. It reports whether name was declared.
func (p *Project) RemoveDependency(name string) (bool, error) {
	if !p.Package.RemoveDependency(name) {
		return false, nil
	}
	if err := p.Save(); err != nil {
		return true, err
	}
	slog.Debug("dependency removed", "name", name)
	return true, nil
}

// StatePath returns the path of file inside the project's state directory.
func (p *Project) StatePath(file string) string {
	return filepath.Join(p.Root, StateDir, file)
}

// LoadDependencyManifest reads the cached dependency manifest.
func (p *Project) LoadDependencyManifest() (*DependencyManifest, error) {
	return LoadDependencyManifest(p.StatePath(DependencyManifestFile))
}

// SaveDependencyManifest replaces the cached dependency manifest.
func (p *Project) SaveDependencyManifest(m *DependencyManifest) error {
	return m.Save(p.StatePath(DependencyManifestFile))
}
