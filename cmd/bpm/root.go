// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/bpmkit/bpm/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// newRootCommand builds the command tree around app.
func newRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bpm",
		Short: "Browser package manager and asset bundler",
		Long: TitleStyle.Render("bpm") + SubtitleStyle.Render(" - browser package manager and asset bundler") + `

bpm resolves the dependencies declared in a project's package.json, merges
the build directives of every resolved package and builds the combined
script and style bundles, running the plugins packages provide.

` + SubtitleStyle.Render("Examples:") + `
  bpm add jquery "~> 1.9"    Declare and install a dependency
  bpm deps                   List resolved dependencies in load order
  bpm build --mode production
  bpm manifest --diff        Compare the debug and production manifests`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			verbose := app.flags.verbose
			if !cmd.Flags().Changed("verbose") {
				if cfg, err := app.loadConfig(cmd.Context()); err == nil {
					verbose = cfg.UI.Verbose
				}
			}
			setupLogging(app.stderr, verbose)
			return nil
		},
	}
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&app.flags.configPath, "config", "", "config file (default is <user config dir>/bpm/config.cue)")
	flags.StringVarP(&app.flags.projectDir, "project", "C", "", "project directory (default is the working directory)")

	rootCmd.AddCommand(
		newAddCommand(app),
		newRemoveCommand(app),
		newDepsCommand(app),
		newBuildCommand(app),
		newManifestCommand(app),
		newPreviewCommand(app),
		newSearchCommand(app),
		newValidateCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd := newRootCommand(app)

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			renderError(w, err, app.flags.verbose)
		}),
	)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display. Actionable errors
// list their suggestions; verbose mode adds the error chain.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
