// SPDX-License-Identifier: MPL-2.0

// Package semver parses package versions and version constraints.
//
// Constraints are one or more comma-separated clauses that must all hold:
//
//	= 1.0        exact
//	!= 1.0       anything but
//	>= 1.2, < 2  range
//	~> 1.2       pessimistic: >= 1.2, < 2.0
//	~1.2.3       patch-level: >= 1.2.3, < 1.3.0
//	^1.2.3       compatible: >= 1.2.3, < 2.0.0
//
// An empty constraint or "*" matches every version.
package semver

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var (
	// ErrInvalidVersion is the sentinel error wrapped by InvalidVersionError.
	ErrInvalidVersion = errors.New("invalid version")
	// ErrInvalidConstraint is the sentinel error wrapped by InvalidConstraintError.
	ErrInvalidConstraint = errors.New("invalid version constraint")
	// ErrNoMatchingVersion is returned by Highest when no candidate satisfies the constraint.
	ErrNoMatchingVersion = errors.New("no matching version")

	versionRegex = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:-?([0-9A-Za-z\-\.]+))?(?:\+([0-9A-Za-z\-\.]+))?$`)
	clauseRegex  = regexp.MustCompile(`^(~>|>=|<=|!=|[~^><=])?\s*(\S+)$`)
)

type (
	// Version is a parsed package version.
	Version struct {
		Major      int
		Minor      int
		Patch      int
		Prerelease string
		Original   string

		// segments is the number of numeric components written in Original.
		segments int
	}

	// Constraint is a conjunction of version clauses.
	Constraint struct {
		clauses  []clause
		Original string
	}

	clause struct {
		op      string
		version *Version
	}

	// InvalidVersionError is returned when a version string cannot be parsed.
	InvalidVersionError struct {
		Value string
	}

	// InvalidConstraintError is returned when a constraint string cannot be parsed.
	InvalidConstraintError struct {
		Value  string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version %q", e.Value)
}

// Unwrap returns ErrInvalidVersion so callers can use errors.Is.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// Error implements the error interface.
func (e *InvalidConstraintError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid version constraint %q: %s", e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid version constraint %q", e.Value)
}

// Unwrap returns ErrInvalidConstraint so callers can use errors.Is.
func (e *InvalidConstraintError) Unwrap() error { return ErrInvalidConstraint }

// ParseVersion parses a version string such as "1.2.3", "v2.0" or "1.0.0-beta.1".
func ParseVersion(s string) (*Version, error) {
	s = strings.TrimSpace(s)
	matches := versionRegex.FindStringSubmatch(s)
	if matches == nil {
		return nil, &InvalidVersionError{Value: s}
	}

	v := &Version{Original: s, segments: 1}

	var err error
	if v.Major, err = strconv.Atoi(matches[1]); err != nil {
		return nil, &InvalidVersionError{Value: s}
	}
	if matches[2] != "" {
		v.segments = 2
		if v.Minor, err = strconv.Atoi(matches[2]); err != nil {
			return nil, &InvalidVersionError{Value: s}
		}
	}
	if matches[3] != "" {
		v.segments = 3
		if v.Patch, err = strconv.Atoi(matches[3]); err != nil {
			return nil, &InvalidVersionError{Value: s}
		}
	}
	if matches[4] != "" {
		v.Prerelease = strings.TrimPrefix(matches[4], ".")
	}

	return v, nil
}

// String returns the version as originally written.
func (v *Version) String() string {
	return v.Original
}

// IsPrerelease reports whether the version carries a prerelease tag.
func (v *Version) IsPrerelease() bool {
	return v.Prerelease != ""
}

// Compare compares two versions.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
func (v *Version) Compare(other *Version) int {
	if c := compareInt(v.Major, other.Major); c != 0 {
		return c
	}
	if c := compareInt(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := compareInt(v.Patch, other.Patch); c != 0 {
		return c
	}

	// Prerelease versions have lower precedence
	switch {
	case v.Prerelease == other.Prerelease:
		return 0
	case v.Prerelease == "":
		return 1
	case other.Prerelease == "":
		return -1
	}
	return comparePrerelease(v.Prerelease, other.Prerelease)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// comparePrerelease compares dot-separated identifiers; numeric identifiers
// compare numerically and sort before alphanumeric ones.
func comparePrerelease(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aErr := strconv.Atoi(as[i])
		bn, bErr := strconv.Atoi(bs[i])
		switch {
		case aErr == nil && bErr == nil:
			if c := compareInt(an, bn); c != 0 {
				return c
			}
		case aErr == nil:
			return -1
		case bErr == nil:
			return 1
		default:
			if c := strings.Compare(as[i], bs[i]); c != 0 {
				return c
			}
		}
	}
	return compareInt(len(as), len(bs))
}

// ParseConstraint parses a constraint string. Empty and "*" match any version.
func ParseConstraint(s string) (*Constraint, error) {
	s = strings.TrimSpace(s)
	c := &Constraint{Original: s}
	if s == "" || s == "*" {
		return c, nil
	}

	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, &InvalidConstraintError{Value: s, Reason: "empty clause"}
		}
		matches := clauseRegex.FindStringSubmatch(part)
		if matches == nil {
			return nil, &InvalidConstraintError{Value: s}
		}
		op := matches[1]
		if op == "" {
			op = "="
		}
		version, err := ParseVersion(matches[2])
		if err != nil {
			return nil, &InvalidConstraintError{Value: s, Reason: err.Error()}
		}
		c.clauses = append(c.clauses, clause{op: op, version: version})
	}

	return c, nil
}

// MustParseConstraint is like ParseConstraint but panics on error.
// Intended for constants and tests.
func MustParseConstraint(s string) *Constraint {
	c, err := ParseConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the constraint as originally written, or ">= 0" for the
// match-anything constraint.
func (c *Constraint) String() string {
	if c.Original == "" {
		return ">= 0"
	}
	return c.Original
}

// IsAny reports whether the constraint matches every version.
func (c *Constraint) IsAny() bool {
	return len(c.clauses) == 0
}

// Matches checks if a version satisfies every clause of the constraint.
func (c *Constraint) Matches(v *Version) bool {
	for _, cl := range c.clauses {
		if !cl.matches(v) {
			return false
		}
	}
	return true
}

func (cl clause) matches(v *Version) bool {
	target := cl.version
	switch cl.op {
	case "=":
		return v.Compare(target) == 0

	case "!=":
		return v.Compare(target) != 0

	case "^":
		// ^1.2.3 := >=1.2.3 <2.0.0
		// ^0.2.3 := >=0.2.3 <0.3.0
		// ^0.0.3 := >=0.0.3 <0.0.4
		if v.Compare(target) < 0 {
			return false
		}
		if target.Major != 0 {
			return v.Major == target.Major
		}
		if target.Minor != 0 {
			return v.Major == 0 && v.Minor == target.Minor
		}
		return v.Major == 0 && v.Minor == 0 && v.Patch == target.Patch

	case "~":
		// ~1.2.3 := >=1.2.3 <1.3.0
		if v.Compare(target) < 0 {
			return false
		}
		return v.Major == target.Major && v.Minor == target.Minor

	case "~>":
		// ~> 1.2   := >=1.2 <2.0
		// ~> 1.2.3 := >=1.2.3 <1.3.0
		if v.Compare(target) < 0 {
			return false
		}
		if target.segments <= 2 {
			return v.Major == target.Major
		}
		return v.Major == target.Major && v.Minor == target.Minor

	case ">":
		return v.Compare(target) > 0

	case ">=":
		return v.Compare(target) >= 0

	case "<":
		return v.Compare(target) < 0

	case "<=":
		return v.Compare(target) <= 0

	default:
		return false
	}
}

// Satisfies reports whether version satisfies constraint.
func Satisfies(version, constraint string) (bool, error) {
	v, err := ParseVersion(version)
	if err != nil {
		return false, err
	}
	c, err := ParseConstraint(constraint)
	if err != nil {
		return false, err
	}
	return c.Matches(v), nil
}

// Highest returns the greatest candidate that satisfies c. Prerelease
// candidates are only considered when prerelease is true or the constraint
// itself names a prerelease.
func Highest(c *Constraint, candidates []string, prerelease bool) (string, error) {
	allowPre := prerelease || slices.ContainsFunc(c.clauses, func(cl clause) bool {
		return cl.version.IsPrerelease()
	})

	var best *Version
	for _, candidate := range candidates {
		v, err := ParseVersion(candidate)
		if err != nil {
			continue
		}
		if v.IsPrerelease() && !allowPre {
			continue
		}
		if !c.Matches(v) {
			continue
		}
		if best == nil || v.Compare(best) > 0 {
			best = v
		}
	}

	if best == nil {
		return "", fmt.Errorf("%w for %s among %d candidates", ErrNoMatchingVersion, c, len(candidates))
	}
	return best.Original, nil
}

// Sort orders version strings ascending. Unparseable entries sort last in
// their original relative order.
func Sort(versions []string) {
	slices.SortStableFunc(versions, func(a, b string) int {
		va, errA := ParseVersion(a)
		vb, errB := ParseVersion(b)
		switch {
		case errA != nil && errB != nil:
			return 0
		case errA != nil:
			return 1
		case errB != nil:
			return -1
		}
		return va.Compare(vb)
	})
}
