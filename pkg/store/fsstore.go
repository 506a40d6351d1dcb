// SPDX-License-Identifier: MPL-2.0

package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/bpmkit/bpm/pkg/semver"
)

// FSStore keeps installed packages under CacheDir/<name>-<version> and
// fetches missing ones from Fetcher.
type FSStore struct {
	CacheDir string
	// Fetcher is the remote source. A nil Fetcher makes the store
	// local-only.
	Fetcher Fetcher

	// mu serializes installs so that concurrent prefetches of the same
	// package do not race on the cache directory.
	mu sync.Mutex
}

// NewFSStore creates a store over cacheDir with an optional fetcher.
func NewFSStore(cacheDir string, fetcher Fetcher) *FSStore {
	return &FSStore{CacheDir: cacheDir, Fetcher: fetcher}
}

// Install implements PackageStore.
func (s *FSStore) Install(ctx context.Context, name, constraint string, prerelease bool) ([]ResolvedRef, error) {
	c, err := semver.ParseConstraint(constraint)
	if err != nil {
		return nil, err
	}

	if s.Fetcher == nil {
		ref, ok, err := s.Installed(name, constraint, prerelease)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &NotFoundError{Name: name, Constraint: c.String()}
		}
		return []ResolvedRef{ref}, nil
	}

	versions, err := s.Fetcher.Versions(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of %s: %w", name, err)
	}
	version, err := semver.Highest(c, versions, prerelease)
	if err != nil {
		if errors.Is(err, semver.ErrNoMatchingVersion) {
			return nil, &NotFoundError{Name: name, Constraint: c.String()}
		}
		return nil, err
	}

	dst := s.packageDir(name, version)
	if err := s.fetch(ctx, name, version, dst); err != nil {
		return nil, err
	}
	return []ResolvedRef{{Name: name, Version: version, Path: dst}}, nil
}

func (s *FSStore) fetch(ctx context.Context, name, version, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(dst); err == nil {
		slog.Debug("package already installed", "name", name, "version", version)
		return nil
	}

	if err := os.MkdirAll(s.CacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.MkdirTemp(s.CacheDir, ".fetch-"+name+"-")
	if err != nil {
		return fmt.Errorf("failed to create temporary directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }() // no-op after a successful rename

	slog.Debug("fetching package", "name", name, "version", version)
	if err := s.Fetcher.Fetch(ctx, name, version, tmp); err != nil {
		return fmt.Errorf("failed to fetch %s@%s: %w", name, version, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("failed to install %s@%s: %w", name, version, err)
	}
	return nil
}

// Installed implements PackageStore.
func (s *FSStore) Installed(name, constraint string, prerelease bool) (ResolvedRef, bool, error) {
	c, err := semver.ParseConstraint(constraint)
	if err != nil {
		return ResolvedRef{}, false, err
	}

	versions, err := s.installedVersions(name)
	if err != nil {
		return ResolvedRef{}, false, err
	}
	version, err := semver.Highest(c, versions, prerelease)
	if err != nil {
		if errors.Is(err, semver.ErrNoMatchingVersion) {
			return ResolvedRef{}, false, nil
		}
		return ResolvedRef{}, false, err
	}
	return ResolvedRef{Name: name, Version: version, Path: s.packageDir(name, version)}, true, nil
}

// installedVersions lists the cached versions of name. Entries for other
// packages sharing the prefix (e.g. "foo-bar-1.0" for "foo") do not parse as
// versions and are skipped.
func (s *FSStore) installedVersions(name string) ([]string, error) {
	entries, err := os.ReadDir(s.CacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read package cache: %w", err)
	}

	var versions []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rest, ok := strings.CutPrefix(entry.Name(), name+"-")
		if !ok {
			continue
		}
		if _, err := semver.ParseVersion(rest); err == nil {
			versions = append(versions, rest)
		}
	}
	return versions, nil
}

// installedNames maps every cached package name to its highest version.
func (s *FSStore) installedNames() (map[string]string, error) {
	entries, err := os.ReadDir(s.CacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read package cache: %w", err)
	}

	out := make(map[string]string)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name, version, ok := splitPackageDir(entry.Name())
		if !ok {
			continue
		}
		if prev, ok := out[name]; !ok || compareVersions(version, prev) > 0 {
			out[name] = version
		}
	}
	return out, nil
}

// Search implements PackageStore. Names from the cache and the remote are
// matched fuzzily; an empty pattern lists everything sorted by name.
func (s *FSStore) Search(pattern string) ([]SearchResult, error) {
	latest, err := s.installedNames()
	if err != nil {
		return nil, err
	}

	if s.Fetcher != nil {
		names, err := s.Fetcher.Names()
		if err != nil {
			return nil, fmt.Errorf("failed to list remote packages: %w", err)
		}
		for _, name := range names {
			versions, err := s.Fetcher.Versions(context.Background(), name)
			if err != nil || len(versions) == 0 {
				continue
			}
			semver.Sort(versions)
			top := versions[len(versions)-1]
			if prev, ok := latest[name]; !ok || compareVersions(top, prev) > 0 {
				latest[name] = top
			}
		}
	}

	names := make([]string, 0, len(latest))
	for name := range latest {
		names = append(names, name)
	}
	slices.Sort(names)

	if pattern != "" {
		matches := fuzzy.Find(pattern, names)
		ordered := make([]string, len(matches))
		for i, m := range matches {
			ordered[i] = m.Str
		}
		names = ordered
	}

	results := make([]SearchResult, len(names))
	for i, name := range names {
		results[i] = SearchResult{Name: name, Version: latest[name], Platform: PlatformBrowser}
	}
	return results, nil
}

// splitPackageDir splits "<name>-<version>" at the first dash that is
// followed by a valid version, so "core-ui-2.0.0" and "core-2.0.0-beta.1"
// both split correctly.
func splitPackageDir(dir string) (name, version string, ok bool) {
	for i := 1; i < len(dir); i++ {
		if dir[i] != '-' {
			continue
		}
		if _, err := semver.ParseVersion(dir[i+1:]); err == nil {
			return dir[:i], dir[i+1:], true
		}
	}
	return "", "", false
}

func (s *FSStore) packageDir(name, version string) string {
	return filepath.Join(s.CacheDir, name+"-"+version)
}

func compareVersions(a, b string) int {
	va, errA := semver.ParseVersion(a)
	vb, errB := semver.ParseVersion(b)
	if errA != nil || errB != nil {
		return cmp.Compare(a, b)
	}
	return va.Compare(vb)
}
