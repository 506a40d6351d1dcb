// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "search [pattern]",
		Short: "Search installed and mirrored packages",
		Long: `Search the package cache and the configured mirror. Names are matched
fuzzily, best match first; without a pattern every package is listed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}

			results, err := app.NewStore(cfg).Search(pattern)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("no packages found"))
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(app.stdout, "%s %s %s\n", PackageStyle.Render(r.Name), r.Version, SubtitleStyle.Render("("+r.Platform+")"))
			}
			return nil
		},
	}
}
