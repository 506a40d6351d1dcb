// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"fmt"
)

var (
	// ErrPackageNotFound is matched by *PackageNotFoundError.
	ErrPackageNotFound = errors.New("package not found")
	// ErrPackageConflict is matched by every conflict error, including
	// vendored package mismatches.
	ErrPackageConflict = errors.New("package conflict")
	// ErrLocalPackageConflict is matched by *LocalPackageConflictError.
	ErrLocalPackageConflict = errors.New("local package conflict")
)

type (
	// PackageNotFoundError reports a package present in no source.
	PackageNotFoundError struct {
		Name       string
		Constraint string
	}

	// PackageConflictError reports a requirement that the version already
	// bound to Name does not satisfy.
	PackageConflictError struct {
		Name string
		// FirstVersion is the version Name was bound to.
		FirstVersion string
		// FirstConstraint is the requirement that bound it.
		FirstConstraint string
		// Constraint is the requirement that cannot be satisfied.
		Constraint string
		// RequiredBy names the package holding Constraint; empty for the project.
		RequiredBy string
	}

	// LocalPackageConflictError reports a vendored package whose version does
	// not satisfy a requirement.
	LocalPackageConflictError struct {
		Name          string
		Constraint    string
		ActualVersion string
	}
)

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("package %s (%s) not found locally or remotely", e.Name, e.Constraint)
}

func (e *PackageNotFoundError) Unwrap() error { return ErrPackageNotFound }

func (e *PackageConflictError) Error() string {
	by := e.RequiredBy
	if by == "" {
		by = "the project"
	}
	return fmt.Sprintf("conflict for package %s: resolved version %s (from %q) does not satisfy %q required by %s",
		e.Name, e.FirstVersion, e.FirstConstraint, e.Constraint, by)
}

func (e *PackageConflictError) Unwrap() error { return ErrPackageConflict }

func (e *LocalPackageConflictError) Error() string {
	return fmt.Sprintf("vendored package %s is version %s, which does not satisfy %q",
		e.Name, e.ActualVersion, e.Constraint)
}

func (e *LocalPackageConflictError) Unwrap() []error {
	return []error{ErrLocalPackageConflict, ErrPackageConflict}
}
