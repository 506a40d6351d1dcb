// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bpmkit/bpm/internal/config"
	"github.com/bpmkit/bpm/internal/issue"
)

// newConfigCommand creates the `bpm config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage bpm configuration",
		Long: `Manage bpm configuration.

Configuration is stored in:
  - Linux: ~/.config/bpm/config.cue
  - macOS: ~/Library/Application Support/bpm/config.cue
  - Windows: %APPDATA%\bpm\config.cue

A config.cue in the project directory is used when the user config file is
absent. Every key can be overridden by a BPM_* environment variable, either
exported or listed in the project's .env file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				if rendered, rerr := issue.Get(issue.ConfigLoadFailedId).Render("dark"); rerr == nil {
					fmt.Fprint(app.stderr, rendered)
				}
				return err
			}
			showConfig(app, cfg)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			path, err := config.CreateDefaultConfig(dir)
			if err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
			fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Config directory: %s\n", dir)
			fmt.Fprintf(app.stdout, "Config file: %s\n", filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(app *App, cfg *config.Config) {
	keyStyle := PackageStyle
	valueStyle := SuccessStyle
	w := app.stdout

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if cfg.Source != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), cfg.Source)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	mirror := SubtitleStyle.Render("(none)")
	if cfg.Mirror != "" {
		mirror = valueStyle.Render(cfg.Mirror)
	}
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("cache_dir"), valueStyle.Render(cfg.CacheDir))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("mirror"), mirror)
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("default_mode"), valueStyle.Render(string(cfg.DefaultMode)))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("prerelease"), valueStyle.Render(fmt.Sprintf("%v", cfg.Prerelease)))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("minify_cache_size"), valueStyle.Render(fmt.Sprintf("%d", cfg.MinifyCacheSize)))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("plugin_cache_size"), valueStyle.Render(fmt.Sprintf("%d", cfg.PluginCacheSize)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(w, "  verbose: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.UI.Verbose)))
	fmt.Fprintf(w, "  color_scheme: %s\n", valueStyle.Render(string(cfg.UI.ColorScheme)))
}
