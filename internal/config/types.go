// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bpmkit/bpm/pkg/bpmpkg"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// ModeDebug and ModeProduction mirror the build modes of package
	// directives.
	ModeDebug      BuildMode = bpmpkg.ModeDebug
	ModeProduction BuildMode = bpmpkg.ModeProduction
)

var (
	// ErrInvalidBuildMode is returned when a BuildMode value is not recognized.
	ErrInvalidBuildMode = errors.New("invalid build mode")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidCacheSize is returned for a non-positive cache size.
	ErrInvalidCacheSize = errors.New("invalid cache size")
	// ErrInvalidCacheDir is returned when the cache directory is whitespace-only.
	ErrInvalidCacheDir = errors.New("invalid cache dir")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidLoadOptions is the sentinel error wrapped by InvalidLoadOptionsError.
	ErrInvalidLoadOptions = errors.New("invalid load options")
)

type (
	// BuildMode selects the default mode of builds.
	BuildMode string

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidValueError reports a field holding an unrecognized value. It
	// wraps the field's sentinel for errors.Is() compatibility.
	InvalidValueError struct {
		Field string
		Value string
		Err   error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig and collects the field-level errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// InvalidLoadOptionsError is returned when LoadOptions hold
	// whitespace-only paths.
	InvalidLoadOptionsError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// CacheDir holds installed packages and the mirror download cache.
		CacheDir string `json:"cache_dir" mapstructure:"cache_dir"`
		// Mirror is a directory laid out as <name>/<version>/ that packages
		// are fetched from. Empty disables remote lookups.
		Mirror string `json:"mirror" mapstructure:"mirror"`
		// DefaultMode is the build mode used when no --mode flag is given.
		DefaultMode BuildMode `json:"default_mode" mapstructure:"default_mode"`
		// Prerelease lets dependency resolution pick prerelease versions.
		Prerelease bool `json:"prerelease" mapstructure:"prerelease"`
		// MinifyCacheSize bounds the number of minified bodies kept per process.
		MinifyCacheSize int `json:"minify_cache_size" mapstructure:"minify_cache_size"`
		// PluginCacheSize bounds the number of assembled plugin scripts kept
		// per build.
		PluginCacheSize int `json:"plugin_cache_size" mapstructure:"plugin_cache_size"`
		// UI configures the user interface
		UI UIConfig `json:"ui" mapstructure:"ui"`

		// Source is the config file the values were read from, empty when
		// only defaults and environment applied.
		Source string `json:"-" mapstructure:"-"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		CacheDir:        DefaultCacheDir(),
		DefaultMode:     ModeDebug,
		MinifyCacheSize: 128,
		PluginCacheSize: 64,
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}

// IsValid reports whether m is a known build mode.
func (m BuildMode) IsValid() (bool, []error) {
	switch m {
	case ModeDebug, ModeProduction:
		return true, nil
	}
	return false, []error{&InvalidValueError{Field: "default_mode", Value: string(m), Err: ErrInvalidBuildMode}}
}

// IsValid reports whether c is a known color scheme.
func (c ColorScheme) IsValid() (bool, []error) {
	switch c {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	}
	return false, []error{&InvalidValueError{Field: "ui.color_scheme", Value: string(c), Err: ErrInvalidColorScheme}}
}

// IsValid returns whether the Config has valid fields, collecting every
// field error.
func (c *Config) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(c.CacheDir) == "" {
		errs = append(errs, &InvalidValueError{Field: "cache_dir", Value: c.CacheDir, Err: ErrInvalidCacheDir})
	}
	if valid, fieldErrs := c.DefaultMode.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.MinifyCacheSize <= 0 {
		errs = append(errs, &InvalidValueError{
			Field: "minify_cache_size",
			Value: fmt.Sprint(c.MinifyCacheSize),
			Err:   ErrInvalidCacheSize,
		})
	}
	if c.PluginCacheSize <= 0 {
		errs = append(errs, &InvalidValueError{
			Field: "plugin_cache_size",
			Value: fmt.Sprint(c.PluginCacheSize),
			Err:   ErrInvalidCacheSize,
		})
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: %s %q", e.Field, e.Err, e.Value)
}

func (e *InvalidValueError) Unwrap() error { return e.Err }

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig and the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Error implements the error interface for InvalidLoadOptionsError.
func (e *InvalidLoadOptionsError) Error() string {
	return fmt.Sprintf("invalid load options: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidLoadOptions for errors.Is() compatibility.
func (e *InvalidLoadOptionsError) Unwrap() error { return ErrInvalidLoadOptions }
