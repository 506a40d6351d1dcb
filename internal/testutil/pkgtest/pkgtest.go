// SPDX-License-Identifier: MPL-2.0

package pkgtest

import (
	"encoding/json"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/bpmkit/bpm/internal/testutil"
)

type (
	// Option configures a test package.
	Option func(*fixture)

	fixture struct {
		deps    [][2]string
		devDeps [][2]string
		fields  [][2]string
		files   map[string]string
	}
)

// WithDependency declares a runtime dependency.
func WithDependency(name, constraint string) Option {
	return func(s *fixture) { s.deps = append(s.deps, [2]string{name, constraint}) }
}

// WithDevDependency declares a development dependency.
func WithDevDependency(name, constraint string) Option {
	return func(s *fixture) { s.devDeps = append(s.devDeps, [2]string{name, constraint}) }
}

// WithField adds a top-level descriptor field. rawJSON is inserted verbatim.
func WithField(key, rawJSON string) Option {
	return func(s *fixture) { s.fields = append(s.fields, [2]string{key, rawJSON}) }
}

// WithFile writes a file relative to the package root.
func WithFile(rel, content string) Option {
	return func(s *fixture) { s.files[rel] = content }
}

// Write creates a package named name at dir and returns dir.
//
// Usage:
//
//	root := pkgtest.Write(t, filepath.Join(tmp, "a"), "a", "1.0.0",
//	    pkgtest.WithDependency("b", ">= 1.0"),
//	    pkgtest.WithFile("lib/a.js", "a();"),
//	)
func Write(t testing.TB, dir, name, version string, opts ...Option) string {
	t.Helper()

	s := &fixture{files: make(map[string]string)}
	for _, opt := range opts {
		opt(s)
	}

	testutil.MustWriteFile(t, filepath.Join(dir, "package.json"), descriptor(name, version, s))

	rels := make([]string, 0, len(s.files))
	for rel := range s.files {
		rels = append(rels, rel)
	}
	slices.Sort(rels)
	for _, rel := range rels {
		testutil.MustWriteFile(t, filepath.Join(dir, filepath.FromSlash(rel)), s.files[rel])
	}
	return dir
}

// descriptor renders the package.json text for a package.
func descriptor(name, version string, s *fixture) string {
	fields := [][2]string{
		{"name", quote(name)},
		{"version", quote(version)},
		{"summary", quote("test package " + name)},
	}
	if len(s.deps) > 0 {
		fields = append(fields, [2]string{"dependencies", object(s.deps)})
	}
	if len(s.devDeps) > 0 {
		fields = append(fields, [2]string{"dependencies:development", object(s.devDeps)})
	}
	fields = append(fields, s.fields...)

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = "  " + quote(f[0]) + ": " + f[1]
	}
	return "{\n" + strings.Join(parts, ",\n") + "\n}\n"
}

func object(entries [][2]string) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = quote(e[0]) + ": " + quote(e[1])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
