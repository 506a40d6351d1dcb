// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bpmkit/bpm/pkg/resolve"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "load project"},
			expected: "failed to load project",
		},
		{
			name:     "operation with resource",
			err:      &ActionableError{Operation: "load project", Resource: "./package.json"},
			expected: "failed to load project: ./package.json",
		},
		{
			name:     "operation with cause",
			err:      &ActionableError{Operation: "parse config", Cause: errors.New("syntax error at line 5")},
			expected: "failed to parse config: syntax error at line 5",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "build",
				Resource:  "bpm_libs.js",
				Cause:     errors.New("asset not found"),
			},
			expected: "failed to build: bpm_libs.js: asset not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	root := errors.New("root cause")
	err := &ActionableError{
		Operation:   "resolve dependencies",
		Suggestions: []string{"Run 'bpm deps'", "Relax the constraint"},
		Cause:       fmt.Errorf("middle: %w", root),
	}

	plain := err.Format(false)
	if !strings.Contains(plain, "\n  • Run 'bpm deps'\n  • Relax the constraint") {
		t.Errorf("Format(false) lacks suggestions:\n%s", plain)
	}
	if strings.Contains(plain, "Error chain") {
		t.Error("Format(false) should not include the error chain")
	}

	verbose := err.Format(true)
	if !strings.Contains(verbose, "1. middle: root cause") || !strings.Contains(verbose, "2. root cause") {
		t.Errorf("Format(true) lacks the chain:\n%s", verbose)
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without operation should return nil")
	}
	if NewErrorContext().BuildError() != nil {
		t.Error("BuildError() without operation should return nil")
	}

	cause := &resolve.PackageNotFoundError{Name: "ghost", Constraint: "~> 1.0"}
	err := NewErrorContext().
		WithOperation("add package").
		WithResource("ghost").
		WithSuggestion("Check the name").
		Wrap(cause).
		BuildError()

	var ae *ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("BuildError() = %T", err)
	}
	if ae.Operation != "add package" || ae.Resource != "ghost" || len(ae.Suggestions) != 1 {
		t.Errorf("ActionableError = %+v", ae)
	}
	if !errors.Is(err, resolve.ErrPackageNotFound) {
		t.Error("the cause should stay reachable through errors.Is")
	}
	if i, ok := ae.Issue(); !ok || i.Id() != PackageNotFoundId {
		t.Errorf("Issue() = %v, %v", i, ok)
	}
}

func TestWrapWithContext(t *testing.T) {
	t.Parallel()

	if WrapWithContext(nil, "op", "res") != nil {
		t.Error("WrapWithContext(nil) should return nil")
	}
	err := WrapWithContext(errors.New("boom"), "emit", "dist")
	if err.Error() != "failed to emit: dist: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
}
