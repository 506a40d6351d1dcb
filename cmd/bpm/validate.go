// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bpmkit/bpm/pkg/bpmpkg"
)

// newValidateCommand creates the `bpm validate` command. Without arguments it
// validates the project and every vendored package.
func newValidateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path...]",
		Short: "Validate package descriptors",
		Long: `Validate package.json descriptors: the schema, the version and the
dependency constraints, the declared directories and the build directives.

Without arguments, validates the project and every package under packages/.
Every issue is reported, not just the first one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			roots := args
			if len(roots) == 0 {
				var err error
				if roots, err = projectPackageRoots(app.flags.projectDir); err != nil {
					return err
				}
			}

			invalid := 0
			for _, root := range roots {
				res, err := bpmpkg.ValidatePath(root)
				if err != nil {
					return err
				}
				renderValidation(app, res)
				if !res.Valid {
					invalid++
				}
			}

			if invalid > 0 {
				fmt.Fprintf(app.stderr, "\n%s %d of %d package(s) invalid\n", ErrorStyle.Render("✗"), invalid, len(roots))
				return &ExitError{Code: ExitInvalid}
			}
			return nil
		},
	}
}

// projectPackageRoots returns the project directory followed by every
// vendored package directory that has a descriptor.
func projectPackageRoots(dir string) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	roots := []string{dir}

	vendored := filepath.Join(dir, bpmpkg.VendoredDir)
	entries, err := os.ReadDir(vendored)
	if err != nil {
		if os.IsNotExist(err) {
			return roots, nil
		}
		return nil, fmt.Errorf("failed to read vendored packages: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		root := filepath.Join(vendored, entry.Name())
		if _, err := os.Stat(filepath.Join(root, bpmpkg.DescriptorFile)); err == nil {
			roots = append(roots, root)
		}
	}
	return roots, nil
}

func renderValidation(app *App, res *bpmpkg.ValidationResult) {
	name := res.Name
	if name == "" {
		name = res.Root
	}
	if res.Valid {
		fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("✓"), PackageStyle.Render(name))
		return
	}
	fmt.Fprintf(app.stdout, "%s %s %s\n", ErrorStyle.Render("✗"), PackageStyle.Render(name), SubtitleStyle.Render(res.Root))
	for i, is := range res.Issues {
		fmt.Fprintf(app.stdout, "  %d. %s\n", i+1, is.Error())
	}
}
