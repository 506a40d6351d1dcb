// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
)

func TestConfig_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   []error
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:   "bad mode",
			mutate: func(c *Config) { c.DefaultMode = "fast" },
			want:   []error{ErrInvalidBuildMode},
		},
		{
			name:   "bad color scheme",
			mutate: func(c *Config) { c.UI.ColorScheme = "sepia" },
			want:   []error{ErrInvalidColorScheme},
		},
		{
			name: "several",
			mutate: func(c *Config) {
				c.CacheDir = " "
				c.MinifyCacheSize = 0
			},
			want: []error{ErrInvalidCacheDir, ErrInvalidCacheSize},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)
			valid, errs := cfg.IsValid()
			if valid != (len(tt.want) == 0) {
				t.Fatalf("IsValid() = %v, %v", valid, errs)
			}
			if valid {
				return
			}

			var ce *InvalidConfigError
			if !errors.As(errs[0], &ce) {
				t.Fatalf("error = %T, want *InvalidConfigError", errs[0])
			}
			if len(ce.FieldErrors) != len(tt.want) {
				t.Errorf("FieldErrors = %v", ce.FieldErrors)
			}
			for _, target := range append(tt.want, ErrInvalidConfig) {
				if !errors.Is(errs[0], target) {
					t.Errorf("error %v does not match %v", errs[0], target)
				}
			}
		})
	}
}

func TestInvalidValueError(t *testing.T) {
	t.Parallel()

	_, errs := ColorScheme("sepia").IsValid()
	if got := errs[0].Error(); got != `ui.color_scheme: invalid color scheme "sepia"` {
		t.Errorf("Error() = %q", got)
	}
}

func TestLoadOptions_Validate(t *testing.T) {
	t.Parallel()

	if err := (LoadOptions{}).Validate(); err != nil {
		t.Errorf("empty options should be valid: %v", err)
	}
	if err := (LoadOptions{ConfigFilePath: "/tmp/config.cue", BaseDir: "."}).Validate(); err != nil {
		t.Errorf("valid options rejected: %v", err)
	}

	err := LoadOptions{ConfigFilePath: "  ", ConfigDirPath: "\t"}.Validate()
	var le *InvalidLoadOptionsError
	if !errors.As(err, &le) || len(le.FieldErrors) != 2 {
		t.Fatalf("Validate() = %v", err)
	}
	if !errors.Is(err, ErrInvalidLoadOptions) {
		t.Error("error should wrap ErrInvalidLoadOptions")
	}
}
