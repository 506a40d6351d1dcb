// SPDX-License-Identifier: MPL-2.0

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bpmkit/bpm/internal/fsutil"
)

// DirFetcher serves packages from a mirror directory laid out as
// <Root>/<name>/<version>/package.json.
type DirFetcher struct {
	Root string
}

// Versions implements Fetcher.
func (f DirFetcher) Versions(_ context.Context, name string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(f.Root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Name: name, Constraint: "*"}
		}
		return nil, fmt.Errorf("failed to read mirror: %w", err)
	}

	var versions []string
	for _, entry := range entries {
		if entry.IsDir() {
			versions = append(versions, entry.Name())
		}
	}
	return versions, nil
}

// Fetch implements Fetcher.
func (f DirFetcher) Fetch(ctx context.Context, name, version, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src := filepath.Join(f.Root, name, version)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return &NotFoundError{Name: name, Constraint: "= " + version}
		}
		return err
	}
	return fsutil.CopyDir(src, dst)
}

// Names implements Fetcher.
func (f DirFetcher) Names() ([]string, error) {
	entries, err := os.ReadDir(f.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read mirror: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
