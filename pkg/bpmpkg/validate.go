// SPDX-License-Identifier: MPL-2.0

package bpmpkg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bpmkit/bpm/pkg/cueutil"
	"github.com/bpmkit/bpm/pkg/semver"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("package validation failed")

type (
	// ValidationIssue is one problem found while validating a package.
	// Issues are collected and reported together rather than failing on the
	// first one.
	//
	//nolint:errname // an issue is collected, not returned
	ValidationIssue struct {
		// Type categorizes the issue ("schema", "version", "dependency",
		// "directory", "build").
		Type    string
		Message string
		// Field is the descriptor field the issue refers to (optional).
		Field string
	}

	// ValidationResult collects every issue found in one package.
	ValidationResult struct {
		Valid  bool
		Name   string
		Root   string
		Issues []ValidationIssue
	}

	// ValidationError reports an invalid package with all of its issues.
	ValidationError struct {
		Name   string
		Issues []ValidationIssue
	}
)

func (v ValidationIssue) Error() string {
	if v.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", v.Type, v.Field, v.Message)
	}
	return fmt.Sprintf("[%s] %s", v.Type, v.Message)
}

// AddIssue records an issue and marks the result invalid.
func (r *ValidationResult) AddIssue(issueType, message, field string) {
	r.Issues = append(r.Issues, ValidationIssue{Type: issueType, Message: message, Field: field})
	r.Valid = false
}

// Err returns nil for a valid result and a *ValidationError otherwise.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Name: r.Name, Issues: slices.Clone(r.Issues)}
}

func (e *ValidationError) Error() string {
	lines := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		lines[i] = issue.Error()
	}
	name := e.Name
	if name == "" {
		name = "package"
	}
	return fmt.Sprintf("%s is invalid:\n  %s", name, strings.Join(lines, "\n  "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Validate checks the loaded descriptor: version and constraints must parse,
// declared directories must exist under Root, and a directive may not mix
// files with assets.
func (p *Package) Validate() *ValidationResult {
	r := &ValidationResult{Valid: true, Name: p.Name, Root: p.Root}

	if _, err := semver.ParseVersion(p.Version); err != nil {
		r.AddIssue("version", err.Error(), keyVersion)
	}

	checkConstraints := func(field string, deps DependencyList) {
		for _, d := range deps {
			if _, err := semver.ParseConstraint(d.Constraint); err != nil {
				r.AddIssue("dependency", err.Error(), field+"."+d.Name)
			}
		}
	}
	checkConstraints(keyDependencies, p.Dependencies)
	checkConstraints(keyDevDependencies, p.DevelopmentDependencies)

	names := make([]string, 0, len(p.Directories))
	for name := range p.Directories {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		for _, dir := range p.Directories[name] {
			full := filepath.Join(p.Root, filepath.FromSlash(dir))
			info, err := os.Stat(full)
			switch {
			case err != nil:
				r.AddIssue("directory", fmt.Sprintf("declared directory %q does not exist", dir), keyDirectories+"."+name)
			case !info.IsDir():
				r.AddIssue("directory", fmt.Sprintf("declared directory %q is not a directory", dir), keyDirectories+"."+name)
			}
		}
	}

	for output, raw := range p.Build.All() {
		d := ParseDirective(raw)
		field := keyBuild + "." + output
		if d.HasAssets && len(d.Files) > 0 {
			r.AddIssue("build", "a directive cannot declare both files and assets", field)
		}
		for _, dep := range d.Minifier {
			if _, err := semver.ParseConstraint(dep.Constraint); err != nil {
				r.AddIssue("build", err.Error(), field+".minifier."+dep.Name)
			}
		}
	}

	for _, capability := range p.Capabilities() {
		ref := p.Provides[capability]
		field := keyProvides + "." + capability
		if !isKnownCapability(capability) {
			r.AddIssue("build", fmt.Sprintf("unknown plugin capability %q", capability), field)
			continue
		}
		if _, err := os.Stat(filepath.Join(p.Root, filepath.FromSlash(ref.Main))); err != nil {
			r.AddIssue("build", fmt.Sprintf("plugin entry %q does not exist", ref.Main), field)
		}
	}

	return r
}

// ValidatePath loads and validates the package at root. Schema violations
// are folded into the result instead of being returned as an error; only an
// unreadable descriptor is an error.
func ValidatePath(root string) (*ValidationResult, error) {
	p, err := Load(root)
	if err != nil {
		var schemaErr *cueutil.SchemaError
		if !errors.As(err, &schemaErr) {
			return nil, err
		}
		r := &ValidationResult{Valid: true, Root: root}
		for _, problem := range schemaErr.Problems {
			r.AddIssue("schema", problem, "")
		}
		return r, nil
	}
	return p.Validate(), nil
}

func isKnownCapability(capability string) bool {
	switch capability {
	case CapabilityPreprocessor, CapabilityPostprocessor, CapabilityTransport, CapabilityMinifier:
		return true
	}
	ext, ok := strings.CutPrefix(capability, CapabilityFormatPrefix)
	return ok && ext != ""
}
