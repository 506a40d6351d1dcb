// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"fmt"
	"strings"
)

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ConfigFilePath forces loading from a specific config file when set.
	ConfigFilePath string
	// ConfigDirPath overrides the config directory lookup when set.
	ConfigDirPath string
	// BaseDir is searched for config.cue and .env after the config
	// directory. It defaults to the working directory.
	BaseDir string
}

// Provider loads configuration from explicit options.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
}

type fileProvider struct{}

// NewProvider creates a configuration provider.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads configuration from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return loadWithOptions(ctx, opts)
}

// Validate rejects whitespace-only paths; empty paths mean "use the default".
func (o LoadOptions) Validate() error {
	var errs []error
	for _, f := range []struct{ name, value string }{
		{"ConfigFilePath", o.ConfigFilePath},
		{"ConfigDirPath", o.ConfigDirPath},
		{"BaseDir", o.BaseDir},
	} {
		if f.value != "" && strings.TrimSpace(f.value) == "" {
			errs = append(errs, fmt.Errorf("%s: whitespace-only path", f.name))
		}
	}
	if len(errs) > 0 {
		return &InvalidLoadOptionsError{FieldErrors: errs}
	}
	return nil
}
