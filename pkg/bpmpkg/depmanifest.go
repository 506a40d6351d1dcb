// SPDX-License-Identifier: MPL-2.0

package bpmpkg

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/bpmkit/bpm/internal/fsutil"
)

type (
	// DependencyManifest caches a resolved dependency set so that later
	// commands can skip resolution. It is always rewritten as a whole.
	DependencyManifest struct {
		Entries map[string]ManifestEntry
	}

	// ManifestEntry is the resolved location of one package.
	ManifestEntry struct {
		Version string `json:"version"`
		Path    string `json:"path"`
	}
)

// NewDependencyManifest creates an empty manifest.
func NewDependencyManifest() *DependencyManifest {
	return &DependencyManifest{Entries: make(map[string]ManifestEntry)}
}

// LoadDependencyManifest reads a manifest. A missing file yields an empty
// manifest.
func LoadDependencyManifest(path string) (*DependencyManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDependencyManifest(), nil
		}
		return nil, fmt.Errorf("failed to read dependency manifest: %w", err)
	}

	m := NewDependencyManifest()
	if err := json.Unmarshal(data, &m.Entries); err != nil {
		return nil, fmt.Errorf("failed to parse dependency manifest %s: %w", path, err)
	}
	if m.Entries == nil {
		m.Entries = make(map[string]ManifestEntry)
	}
	return m, nil
}

// Set records the resolved version and path of name.
func (m *DependencyManifest) Set(name, version, path string) {
	m.Entries[name] = ManifestEntry{Version: version, Path: path}
}

// Get returns the entry for name.
func (m *DependencyManifest) Get(name string) (ManifestEntry, bool) {
	e, ok := m.Entries[name]
	return e, ok
}

// Names returns the recorded package names sorted.
func (m *DependencyManifest) Names() []string {
	names := make([]string, 0, len(m.Entries))
	for name := range m.Entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of entries.
func (m *DependencyManifest) Len() int {
	return len(m.Entries)
}

// Save writes the manifest atomically. Keys are sorted by encoding/json.
func (m *DependencyManifest) Save(path string) error {
	data, err := json.MarshalIndent(m.Entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dependency manifest: %w", err)
	}
	return fsutil.WriteFileAtomic(path, append(data, '\n'))
}
