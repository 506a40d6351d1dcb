// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

type (
	// ScriptHost evaluates plugin script text. A host keeps no state between
	// Evaluate calls that the script itself does not carry.
	ScriptHost interface {
		// Evaluate runs script with globals bound and returns the value of
		// its last expression.
		Evaluate(ctx context.Context, script string, globals map[string]any) (any, error)
	}

	// HostFactory creates the host used for one invocation.
	HostFactory func() ScriptHost

	// GojaHost evaluates scripts in a fresh goja runtime per call.
	GojaHost struct{}
)

// NewGojaHost returns a ScriptHost backed by goja.
func NewGojaHost() ScriptHost {
	return GojaHost{}
}

// Evaluate implements ScriptHost. Cancelling ctx interrupts the running
// script.
func (GojaHost) Evaluate(ctx context.Context, script string, globals map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	for name, v := range globals {
		if err := vm.Set(name, v); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	result, err := vm.RunString(script)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if cause, ok := interrupted.Value().(error); ok {
				return nil, cause
			}
		}
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.Export(), nil
}
