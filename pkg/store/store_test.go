// SPDX-License-Identifier: MPL-2.0

package store

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/bpmkit/bpm/internal/testutil"
	"github.com/bpmkit/bpm/internal/testutil/pkgtest"
)

type countingFetcher struct {
	DirFetcher
	fetches atomic.Int32
}

func (f *countingFetcher) Fetch(ctx context.Context, name, version, dst string) error {
	f.fetches.Add(1)
	return f.DirFetcher.Fetch(ctx, name, version, dst)
}

func newMirror(t *testing.T) string {
	t.Helper()

	mirror := t.TempDir()
	for _, v := range []string{"1.0.0", "1.2.0", "2.0.0-beta.1"} {
		pkgtest.Write(t, filepath.Join(mirror, "core", v), "core", v,
			pkgtest.WithFile("lib/core.js", "core "+v))
	}
	pkgtest.Write(t, filepath.Join(mirror, "widgets", "0.3.0"), "widgets", "0.3.0")
	pkgtest.Write(t, filepath.Join(mirror, "dom", "2.1.0"), "dom", "2.1.0")
	return mirror
}

func TestFSStore_Install(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{DirFetcher: DirFetcher{Root: newMirror(t)}}
	s := NewFSStore(t.TempDir(), fetcher)
	ctx := context.Background()

	refs, err := s.Install(ctx, "core", ">= 1.0", false)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if len(refs) != 1 || refs[0].Version != "1.2.0" {
		t.Fatalf("Install() = %+v, want core 1.2.0", refs)
	}
	if got := testutil.MustReadFile(t, filepath.Join(refs[0].Path, "lib", "core.js")); got != "core 1.2.0" {
		t.Errorf("installed content = %q", got)
	}

	if _, err := s.Install(ctx, "core", "~> 1.2", false); err != nil {
		t.Fatal(err)
	}
	if n := fetcher.fetches.Load(); n != 1 {
		t.Errorf("fetches = %d, want 1 (second install served from cache)", n)
	}

	refs, err = s.Install(ctx, "core", ">= 1.0", true)
	if err != nil {
		t.Fatal(err)
	}
	if refs[0].Version != "2.0.0-beta.1" {
		t.Errorf("prerelease install = %s", refs[0].Version)
	}
}

func TestFSStore_InstallNotFound(t *testing.T) {
	t.Parallel()

	s := NewFSStore(t.TempDir(), DirFetcher{Root: newMirror(t)})
	ctx := context.Background()

	tests := []struct {
		name       string
		constraint string
	}{
		{"missing", ">= 0"},
		{"core", "= 3.0"},
	}
	for _, tt := range tests {
		_, err := s.Install(ctx, tt.name, tt.constraint, false)
		if !errors.Is(err, ErrRemoteNotFound) {
			t.Errorf("Install(%s, %s) error = %v, want ErrRemoteNotFound", tt.name, tt.constraint, err)
		}
	}

	if _, err := s.Install(ctx, "core", "=> 1", false); err == nil {
		t.Error("expected invalid constraint error")
	}
}

func TestFSStore_Installed(t *testing.T) {
	t.Parallel()

	cache := t.TempDir()
	pkgtest.Write(t, filepath.Join(cache, "core-1.0.0"), "core", "1.0.0")
	pkgtest.Write(t, filepath.Join(cache, "core-1.1.0"), "core", "1.1.0")
	pkgtest.Write(t, filepath.Join(cache, "core-ui-2.0.0"), "core-ui", "2.0.0")
	s := NewFSStore(cache, nil)

	ref, ok, err := s.Installed("core", ">= 1.0", false)
	if err != nil || !ok {
		t.Fatalf("Installed() = %v, %v", ok, err)
	}
	if ref.Version != "1.1.0" || ref.Path != filepath.Join(cache, "core-1.1.0") {
		t.Errorf("Installed() = %+v", ref)
	}

	if _, ok, _ := s.Installed("core", "= 2.0", false); ok {
		t.Error("Installed(core = 2.0) should miss")
	}

	// A local-only store installs from the cache.
	refs, err := s.Install(context.Background(), "core-ui", "", false)
	if err != nil || refs[0].Version != "2.0.0" {
		t.Errorf("Install(core-ui) = %+v, %v", refs, err)
	}
	if _, err := s.Install(context.Background(), "dom", "", false); !errors.Is(err, ErrRemoteNotFound) {
		t.Errorf("Install(dom) error = %v", err)
	}
}

func TestFSStore_Search(t *testing.T) {
	t.Parallel()

	cache := t.TempDir()
	pkgtest.Write(t, filepath.Join(cache, "widgets-0.4.0"), "widgets", "0.4.0")
	s := NewFSStore(cache, DirFetcher{Root: newMirror(t)})

	all, err := s.Search("")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	names := make([]string, len(all))
	for i, r := range all {
		names[i] = r.Name
		if r.Platform != PlatformBrowser {
			t.Errorf("Platform = %q", r.Platform)
		}
	}
	if !slices.Equal(names, []string{"core", "dom", "widgets"}) {
		t.Errorf("Search(\"\") = %v", names)
	}
	for _, r := range all {
		if r.Name == "widgets" && r.Version != "0.4.0" {
			t.Errorf("widgets version = %s, want the installed 0.4.0", r.Version)
		}
		if r.Name == "core" && r.Version != "2.0.0-beta.1" {
			t.Errorf("core version = %s", r.Version)
		}
	}

	matches, err := s.Search("wdg")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Name != "widgets" {
		t.Errorf("Search(wdg) = %+v", matches)
	}
}

func TestPrefetch_SortedByName(t *testing.T) {
	t.Parallel()

	s := NewFSStore(t.TempDir(), DirFetcher{Root: newMirror(t)})
	refs, err := Prefetch(context.Background(), s, []Request{
		{Name: "widgets", Constraint: ">= 0"},
		{Name: "core", Constraint: "~> 1.0"},
		{Name: "dom", Constraint: ""},
	}, false)
	if err != nil {
		t.Fatalf("Prefetch() error = %v", err)
	}
	var names []string
	for _, r := range refs {
		names = append(names, r.Name)
	}
	if !slices.Equal(names, []string{"core", "dom", "widgets"}) {
		t.Errorf("Prefetch() order = %v", names)
	}

	if _, err := Prefetch(context.Background(), s, []Request{{Name: "ghost"}}, false); !errors.Is(err, ErrRemoteNotFound) {
		t.Errorf("Prefetch(ghost) error = %v", err)
	}
}

func TestSplitPackageDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dir, name, version string
		ok                 bool
	}{
		{"core-1.0.0", "core", "1.0.0", true},
		{"core-ui-2.0.0", "core-ui", "2.0.0", true},
		{"core-2.0.0-beta.1", "core", "2.0.0-beta.1", true},
		{"core", "", "", false},
		{"-1.0.0", "", "", false},
	}
	for _, tt := range tests {
		name, version, ok := splitPackageDir(tt.dir)
		if name != tt.name || version != tt.version || ok != tt.ok {
			t.Errorf("splitPackageDir(%q) = %q, %q, %v", tt.dir, name, version, ok)
		}
	}
}
