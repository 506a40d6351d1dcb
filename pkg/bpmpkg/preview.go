// SPDX-License-Identifier: MPL-2.0

package bpmpkg

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/bpmkit/bpm/internal/fsutil"
)

type (
	// PreviewSource is a build manifest that can be previewed.
	PreviewSource interface {
		// Encode returns the canonical encoding of the manifest.
		Encode() ([]byte, error)
		// Outputs lists the buildable output paths.
		Outputs() []string
	}

	// PreviewResult describes what RebuildPreview changed.
	PreviewResult struct {
		Changed bool
		// Diff is a unified diff between the previous and current manifest.
		Diff string
		// Placeholders lists the placeholder files written, relative to the
		// project root.
		Placeholders []string
	}
)

// RebuildPreview stores the manifest under .bpm and, when it differs from the
// previously stored one, regenerates a placeholder file under assets/ for
// every output so that pages referencing the bundles load before the first
// build. An unchanged manifest leaves the project untouched.
func (p *Project) RebuildPreview(m PreviewSource) (*PreviewResult, error) {
	current, err := m.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode build manifest: %w", err)
	}

	manifestPath := p.StatePath(BuildManifestFile)
	previous, err := os.ReadFile(manifestPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read previous build manifest: %w", err)
	}
	if bytes.Equal(previous, current) {
		return &PreviewResult{}, nil
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(previous)),
		B:        difflib.SplitLines(string(current)),
		FromFile: BuildManifestFile + " (previous)",
		ToFile:   BuildManifestFile,
		Context:  3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to diff build manifest: %w", err)
	}

	res := &PreviewResult{Changed: true, Diff: diff}
	for _, output := range m.Outputs() {
		rel := path.Join(PreviewDir, output)
		full := filepath.Join(p.Root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create preview directory: %w", err)
		}
		if err := os.WriteFile(full, placeholder(output), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write preview %s: %w", rel, err)
		}
		res.Placeholders = append(res.Placeholders, rel)
	}

	if err := fsutil.WriteFileAtomic(manifestPath, current); err != nil {
		return nil, err
	}
	return res, nil
}

func placeholder(output string) []byte {
	text := fmt.Sprintf("bpm preview of %s; run \"bpm build\" to generate it", output)
	switch path.Ext(output) {
	case ".css":
		return []byte("/* " + text + " */\n")
	case ".js":
		return []byte("// " + text + "\n")
	default:
		return nil
	}
}
