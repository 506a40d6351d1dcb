// SPDX-License-Identifier: MPL-2.0

// Package store resolves package names and version constraints to package
// directories on disk.
//
// [PackageStore] is the capability the dependency resolver consumes. [FSStore]
// implements it with an installed-package cache directory in front of an
// optional remote [Fetcher]; [DirFetcher] serves a mirror directory laid out
// as <mirror>/<name>/<version>/.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// PlatformBrowser is the platform reported for every bpm package.
const PlatformBrowser = "browser"

// ErrRemoteNotFound is matched by errors reporting that no remote source has
// a package (or a version of it satisfying the constraint).
var ErrRemoteNotFound = errors.New("package not available remotely")

type (
	// PackageStore installs packages and answers which ones are present.
	PackageStore interface {
		// Install makes the highest version of name satisfying constraint
		// available on disk, fetching it when it is not installed yet.
		Install(ctx context.Context, name, constraint string, prerelease bool) ([]ResolvedRef, error)
		// Installed returns the highest installed version of name satisfying
		// constraint without fetching anything.
		Installed(name, constraint string, prerelease bool) (ResolvedRef, bool, error)
		// Search lists packages whose name matches pattern.
		Search(pattern string) ([]SearchResult, error)
	}

	// Fetcher is a remote package source.
	Fetcher interface {
		// Versions lists the versions available for name. Unknown packages
		// yield an error matching ErrRemoteNotFound.
		Versions(ctx context.Context, name string) ([]string, error)
		// Fetch writes the package contents of name@version into dst.
		Fetch(ctx context.Context, name, version, dst string) error
		// Names lists every package the source offers.
		Names() ([]string, error)
	}

	// ResolvedRef is a package installed on disk.
	ResolvedRef struct {
		Name    string
		Version string
		Path    string
	}

	// SearchResult is one match of Search.
	SearchResult struct {
		Name     string
		Version  string
		Platform string
	}

	// NotFoundError reports that no source has a version of Name matching
	// Constraint.
	NotFoundError struct {
		Name       string
		Constraint string
	}
)

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no version of %s matching %q is available", e.Name, e.Constraint)
}

func (e *NotFoundError) Unwrap() error { return ErrRemoteNotFound }

// DefaultCacheDir returns ~/.bpm/packages.
func DefaultCacheDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".bpm", "packages"), nil
}
