// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"errors"
	"fmt"

	"github.com/bpmkit/bpm/pkg/bpmpkg"
)

var (
	// ErrCapabilityNotFound is returned when a plugin package does not
	// provide the capability it was invoked for.
	ErrCapabilityNotFound = errors.New("plugin capability not found")

	// ErrMinifierNotFound is the capability-not-found error of minifiers.
	ErrMinifierNotFound = errors.New("minifier not found")

	// ErrInvocation is returned when a plugin script fails.
	ErrInvocation = errors.New("plugin invocation failed")
)

type (
	// CapabilityNotFoundError names a plugin package lacking a capability.
	CapabilityNotFoundError struct {
		Plugin     string
		Capability string
	}

	// InvocationError reports a plugin failure while building an asset.
	InvocationError struct {
		Plugin string
		Asset  string
		// Module is the module being transformed when it is not the asset
		// itself, such as one file of a bundle.
		Module string
		Err    error
	}
)

// Error implements the error interface.
func (e *CapabilityNotFoundError) Error() string {
	if e.Capability == bpmpkg.CapabilityMinifier {
		return fmt.Sprintf("package %s does not provide a minifier", e.Plugin)
	}
	return fmt.Sprintf("package %s does not provide %s", e.Plugin, e.Capability)
}

// Unwrap returns ErrCapabilityNotFound, and ErrMinifierNotFound as well for
// minifiers.
func (e *CapabilityNotFoundError) Unwrap() []error {
	if e.Capability == bpmpkg.CapabilityMinifier {
		return []error{ErrCapabilityNotFound, ErrMinifierNotFound}
	}
	return []error{ErrCapabilityNotFound}
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	if e.Asset == "" {
		return fmt.Sprintf("plugin %s failed: %v", e.Plugin, e.Err)
	}
	if e.Module != "" && e.Module != e.Asset {
		return fmt.Sprintf("plugin %s failed while building %s (module %s): %v", e.Plugin, e.Asset, e.Module, e.Err)
	}
	return fmt.Sprintf("plugin %s failed while building %s: %v", e.Plugin, e.Asset, e.Err)
}

// Unwrap returns both ErrInvocation and the underlying failure.
func (e *InvocationError) Unwrap() []error {
	return []error{ErrInvocation, e.Err}
}
