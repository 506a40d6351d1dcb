// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bpmkit/bpm/internal/issue"
	"github.com/bpmkit/bpm/pkg/bpmpkg"
	"github.com/bpmkit/bpm/pkg/resolve"
	"github.com/bpmkit/bpm/pkg/semver"
	"github.com/bpmkit/bpm/pkg/store"
)

// ErrSelfDependency is returned when a project declares itself as a
// dependency.
var ErrSelfDependency = errors.New("self dependency")

func newAddCommand(app *App) *cobra.Command {
	var development bool
	cmd := &cobra.Command{
		Use:   "add <name> [constraint]",
		Short: "Declare a dependency and install it",
		Long: `Declare a dependency in package.json and install it.

Vendored packages under packages/ are used as-is; only the packages they
do not cover are fetched. The constraint defaults to any version.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			constraint := bpmpkg.AnyVersion
			if len(args) == 2 {
				constraint = args[1]
			}
			if _, err := semver.ParseConstraint(constraint); err != nil {
				return err
			}

			s, err := app.open(cmd.Context())
			if err != nil {
				return err
			}
			set, err := addDependency(cmd.Context(), s, args[0], constraint, development)
			if err != nil {
				return err
			}
			p, ok := set.Get(args[0])
			if !ok {
				return fmt.Errorf("%s was declared but did not resolve", args[0])
			}
			fmt.Fprintf(app.stdout, "%s %s (%s)\n", SuccessStyle.Render("added"), PackageStyle.Render(args[0]), p.Version)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&development, "development", "D", false, "declare a development dependency")
	return cmd
}

// addDependency installs the non-vendored packages name needs, declares it
// and re-resolves the project. The declaration is reverted when resolution
// fails; a failed revert is joined into the returned error.
func addDependency(ctx context.Context, s *session, name, constraint string, development bool) (*resolve.Set, error) {
	if name == s.project.Name {
		return nil, issue.NewErrorContext().
			WithOperation("add " + name).
			WithResource(s.project.Root).
			Wrap(fmt.Errorf("%w: %s cannot depend on itself", ErrSelfDependency, name)).
			BuildError()
	}

	nonLocal, err := s.resolver.FindNonLocalDependencies(bpmpkg.DependencyList{{Name: name, Constraint: constraint}})
	if err != nil {
		return nil, err
	}
	reqs := make([]store.Request, len(nonLocal))
	for i, d := range nonLocal {
		reqs[i] = store.Request{Name: d.Name, Constraint: d.Constraint}
	}
	if _, err := store.Prefetch(ctx, s.store, reqs, s.cfg.Prerelease); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("install " + name).
			WithSuggestion("Check the package name with 'bpm search'").
			WithSuggestion("Check the mirror setting with 'bpm config show'").
			Wrap(err).
			BuildError()
	}

	previous, hadRuntime := s.project.Dependencies.Get(name)
	previousDev, hadDev := s.project.DevelopmentDependencies.Get(name)
	if err := s.project.AddDependency(name, constraint, development); err != nil {
		return nil, err
	}

	s.resolver.Expire()
	set, err := s.resolver.ResolveProject(ctx)
	if err == nil {
		return set, nil
	}

	slog.Debug("reverting dependency declaration", "name", name, "error", err)
	var revertErr error
	switch {
	case hadRuntime:
		revertErr = s.project.AddDependency(name, previous, false)
	case hadDev:
		revertErr = s.project.AddDependency(name, previousDev, true)
	default:
		_, revertErr = s.project.RemoveDependency(name)
	}
	s.resolver.Expire()
	if revertErr != nil {
		return nil, errors.Join(err, fmt.Errorf("failed to revert the declaration of %s: %w", name, revertErr))
	}
	return nil, err
}

func newRemoveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a dependency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context())
			if err != nil {
				return err
			}
			removed, err := s.project.RemoveDependency(args[0])
			if err != nil {
				return err
			}
			if !removed {
				return issue.NewErrorContext().
					WithOperation("remove " + args[0]).
					WithResource(s.project.Root).
					WithSuggestion("List the declared dependencies with 'bpm deps --direct'").
					Wrap(fmt.Errorf("%s is not a dependency of %s", args[0], s.project.Name)).
					BuildError()
			}

			s.resolver.Expire()
			set, err := s.resolver.ResolveProject(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("removed"), PackageStyle.Render(args[0]))
			if dependents := set.Dependents(args[0]); len(dependents) > 0 {
				fmt.Fprintf(app.stdout, "%s %s is still required by %s\n",
					SubtitleStyle.Render("note:"), args[0], strings.Join(dependents, ", "))
			}
			return nil
		},
	}
}

func newDepsCommand(app *App) *cobra.Command {
	var (
		runtimeOnly bool
		devOnly     bool
		direct      bool
		nonLocal    bool
	)
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "List resolved dependencies in load order",
		Long: `List the project's resolved dependencies, every package after the
packages it depends on. Vendored packages are marked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.open(cmd.Context())
			if err != nil {
				return err
			}

			if nonLocal {
				deps, err := s.resolver.FindNonLocalDependencies(s.project.HardDependencies())
				if err != nil {
					return err
				}
				for _, d := range deps {
					fmt.Fprintf(app.stdout, "%s %s\n", PackageStyle.Render(d.Name), d.Constraint)
				}
				return nil
			}

			set, err := s.resolver.ResolveProject(cmd.Context())
			if err != nil {
				return err
			}

			view := resolve.ViewAll
			switch {
			case runtimeOnly:
				view = resolve.ViewRuntime
			case devOnly:
				view = resolve.ViewDevelopment
			}
			pkgs := set.SortedView(view)
			if direct {
				pkgs = directOnly(s.project, pkgs)
			}

			soft := make(map[string]bool)
			for _, name := range resolve.SoftDependencies(s.project, set) {
				soft[name] = true
			}
			for _, p := range pkgs {
				line := PackageStyle.Render(p.Name) + " " + p.Version
				if set.IsLocal(p.Name) {
					line += SubtitleStyle.Render(" (vendored)")
				}
				if soft[p.Name] {
					line += SubtitleStyle.Render(" (indirect)")
				}
				fmt.Fprintln(app.stdout, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&runtimeOnly, "runtime", false, "only runtime dependencies")
	cmd.Flags().BoolVar(&devOnly, "development", false, "only development dependencies")
	cmd.Flags().BoolVar(&direct, "direct", false, "only dependencies declared by the project")
	cmd.Flags().BoolVar(&nonLocal, "non-local", false, "list the declared dependencies that must be fetched, expanding vendored packages")
	cmd.MarkFlagsMutuallyExclusive("runtime", "development")
	return cmd
}

func directOnly(project *bpmpkg.Project, pkgs []*bpmpkg.Package) []*bpmpkg.Package {
	declared := project.HardDependencies()
	var out []*bpmpkg.Package
	for _, p := range pkgs {
		if _, ok := declared.Get(p.Name); ok {
			out = append(out, p)
		}
	}
	return out
}
