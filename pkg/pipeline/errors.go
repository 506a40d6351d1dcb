// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrAssetNotFound is returned when a logical path or module id matches
	// no file.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrPathNotInPackage is returned when a filesystem path lies outside
	// every known package.
	ErrPathNotInPackage = errors.New("path not within any known package")

	// ErrTooManyTransports is returned when a package uses more than one
	// transport compiler.
	ErrTooManyTransports = errors.New("too many transport plugins")
)

type (
	// AssetNotFoundError names the path that could not be resolved.
	AssetNotFoundError struct {
		Path string
	}

	// PathNotInPackageError names a filesystem path outside all packages.
	PathNotInPackageError struct {
		Path string
	}

	// TooManyTransportsError names the package and the two transport
	// plugins competing for it.
	TooManyTransportsError struct {
		Package string
		First   string
		Second  string
	}
)

// Error implements the error interface.
func (e *AssetNotFoundError) Error() string {
	return fmt.Sprintf("asset not found: %s", e.Path)
}

// Unwrap returns ErrAssetNotFound for use with errors.Is.
func (e *AssetNotFoundError) Unwrap() error {
	return ErrAssetNotFound
}

// Error implements the error interface.
func (e *PathNotInPackageError) Error() string {
	return fmt.Sprintf("%s is not within any known package", e.Path)
}

// Unwrap returns ErrPathNotInPackage for use with errors.Is.
func (e *PathNotInPackageError) Unwrap() error {
	return ErrPathNotInPackage
}

// Error implements the error interface.
func (e *TooManyTransportsError) Error() string {
	return fmt.Sprintf("package %s uses more than one transport plugin: %s and %s", e.Package, e.First, e.Second)
}

// Unwrap returns ErrTooManyTransports for use with errors.Is.
func (e *TooManyTransportsError) Unwrap() error {
	return ErrTooManyTransports
}
