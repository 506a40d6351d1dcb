// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bpmkit/bpm/internal/fsutil"
	"github.com/bpmkit/bpm/internal/issue"
	"github.com/bpmkit/bpm/pkg/cueutil"
	"github.com/bpmkit/bpm/pkg/store"
)

const (
	// AppName is the application name.
	AppName = "bpm"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes the environment variables overriding config keys.
	EnvPrefix = "BPM"
	// DotEnvFile is read from the base directory when present.
	DotEnvFile = ".env"
)

//go:embed config_schema.cue
var configSchema string

// keys lists every configuration key, in the order GenerateCUE writes them.
var keys = []string{
	"cache_dir",
	"mirror",
	"default_mode",
	"prerelease",
	"minify_cache_size",
	"plugin_cache_size",
	"ui.verbose",
	"ui.color_scheme",
}

// ConfigDir returns the bpm configuration directory under the platform's
// user config directory.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

// DefaultCacheDir returns the store's default package cache, or a directory
// relative to the working directory when there is no home directory.
func DefaultCacheDir() string {
	dir, err := store.DefaultCacheDir()
	if err != nil {
		return filepath.Join(".bpm", "packages")
	}
	return dir
}

// EnvName returns the environment variable overriding key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Keys returns every configuration key.
func Keys() []string {
	return append([]string(nil), keys...)
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("mirror", defaults.Mirror)
	v.SetDefault("default_mode", string(defaults.DefaultMode))
	v.SetDefault("prerelease", defaults.Prerelease)
	v.SetDefault("minify_cache_size", defaults.MinifyCacheSize)
	v.SetDefault("plugin_cache_size", defaults.PluginCacheSize)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("ui.color_scheme", string(defaults.UI.ColorScheme))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = "."
	}

	resolvedPath, err := findConfigFile(opts, baseDir)
	if err != nil {
		return nil, err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'bpm config show' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
	}

	if err := loadDotEnv(v, filepath.Join(baseDir, DotEnvFile)); err != nil {
		return nil, issue.WrapWithContext(err, "load environment file", filepath.Join(baseDir, DotEnvFile))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Source = resolvedPath
	cfg.CacheDir = expandHome(cfg.CacheDir)
	cfg.Mirror = expandHome(cfg.Mirror)

	if valid, errs := cfg.IsValid(); !valid {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Check the BPM_* environment variables and the config file").
			Wrap(errs[0]).
			BuildError()
	}
	return &cfg, nil
}

// findConfigFile returns the config file to load: the explicit path, the
// file in the config directory, then the file in baseDir. It returns ""
// when none exists.
func findConfigFile(opts LoadOptions, baseDir string) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'bpm config init' to create a default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		var err error
		if cfgDir, err = ConfigDir(); err != nil {
			return "", err
		}
	}

	for _, dir := range []string{cfgDir, baseDir} {
		p := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(p) {
			return p, nil
		}
	}
	return "", nil
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// The file decodes to map[string]any rather than a struct so that Viper keeps
// its defaults and environment overrides for the keys the file leaves unset.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// loadDotEnv applies the BPM_* entries of a .env file. Variables already set
// in the process environment take precedence over the file.
func loadDotEnv(v *viper.Viper, path string) error {
	if !fileExists(path) {
		return nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return err
	}
	for _, key := range keys {
		name := EnvName(key)
		val, ok := env[name]
		if !ok {
			continue
		}
		if _, set := os.LookupEnv(name); set {
			continue
		}
		v.Set(key, val)
	}
	return nil
}

func expandHome(p string) string {
	rest, ok := strings.CutPrefix(p, "~")
	if !ok || (rest != "" && !strings.HasPrefix(rest, "/") && !strings.HasPrefix(rest, string(filepath.Separator))) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, rest)
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a default config file into dir unless one
// exists, and returns its path.
func CreateDefaultConfig(dir string) (string, error) {
	cfgPath := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(cfgPath) {
		return cfgPath, nil
	}
	if err := Save(DefaultConfig(), cfgPath); err != nil {
		return "", err
	}
	return cfgPath, nil
}

// Save writes cfg as CUE to path.
func Save(cfg *Config, path string) error {
	if err := fsutil.WriteFileAtomic(path, []byte(GenerateCUE(cfg))); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// bpm configuration file\n")
	sb.WriteString("// Every key may be overridden by a BPM_* environment variable.\n\n")

	fmt.Fprintf(&sb, "cache_dir: %q\n", cfg.CacheDir)
	if cfg.Mirror != "" {
		fmt.Fprintf(&sb, "mirror: %q\n", cfg.Mirror)
	}
	fmt.Fprintf(&sb, "default_mode: %q\n", cfg.DefaultMode)
	fmt.Fprintf(&sb, "prerelease: %v\n", cfg.Prerelease)
	fmt.Fprintf(&sb, "minify_cache_size: %d\n", cfg.MinifyCacheSize)
	fmt.Fprintf(&sb, "plugin_cache_size: %d\n", cfg.PluginCacheSize)

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	sb.WriteString("}\n")

	return sb.String()
}
