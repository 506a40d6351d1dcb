// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bpmkit/bpm/internal/watch"
	"github.com/bpmkit/bpm/pkg/bpmpkg"
	"github.com/bpmkit/bpm/pkg/buildmanifest"
	"github.com/bpmkit/bpm/pkg/pipeline"
	"github.com/bpmkit/bpm/pkg/resolve"
)

func newBuildCommand(app *App) *cobra.Command {
	var (
		mode   string
		outDir string
		watchF bool
	)
	cmd := &cobra.Command{
		Use:   "build [logical-path...]",
		Short: "Build the project's bundles",
		Long: `Build every output of the build manifest into the output directory.

With logical paths such as "bpm_libs.js" or "jquery/lib/main.js", the built
bodies of those assets are printed instead. --watch rebuilds whenever a
source file or package.json changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) > 0 {
				return printAssets(ctx, app, mode, args)
			}
			b := &builder{app: app, mode: mode, outDir: outDir}
			if err := b.emit(ctx); err != nil {
				return err
			}
			if !watchF {
				return nil
			}

			root := app.flags.projectDir
			if root == "" {
				root = "."
			}
			w, err := watch.New(watch.Config{
				Root:   root,
				Ignore: []string{filepath.ToSlash(outDir) + "/**", bpmpkg.PreviewDir + "/**"},
				OnChange: func(ctx context.Context, changed []string) error {
					fmt.Fprintf(app.stdout, "%s %d file(s) changed\n", SubtitleStyle.Render("rebuilding:"), len(changed))
					return b.emit(ctx)
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, SubtitleStyle.Render("watching for changes, press Ctrl+C to stop"))
			return w.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "build mode: debug or production (default from config)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "dist", "output directory, relative to the project")
	cmd.Flags().BoolVarP(&watchF, "watch", "w", false, "rebuild when sources change")
	return cmd
}

// builder emits the project's bundles for one build command. Its minify
// cache is shared by every rebuild the command performs.
type builder struct {
	app    *App
	mode   string
	outDir string
	cache  *pipeline.MinifyCache
}

// emit builds every manifest output into the output directory. The project
// is reloaded each time so that a watched rebuild sees descriptor changes.
func (b *builder) emit(ctx context.Context) error {
	app := b.app
	s, err := app.open(ctx)
	if err != nil {
		return err
	}
	mode, err := s.mode(b.mode)
	if err != nil {
		return err
	}
	if b.cache == nil {
		b.cache = pipeline.NewMinifyCache(s.cfg.MinifyCacheSize)
	}
	router, err := s.router(ctx, mode, b.cache)
	if err != nil {
		return err
	}

	dir := b.outDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(s.project.Root, dir)
	}
	written, err := router.Emit(ctx, dir)
	for _, output := range written {
		fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("wrote"), output)
	}
	return err
}

func printAssets(ctx context.Context, app *App, modeFlag string, logical []string) error {
	s, err := app.open(ctx)
	if err != nil {
		return err
	}
	mode, err := s.mode(modeFlag)
	if err != nil {
		return err
	}
	router, err := s.router(ctx, mode, nil)
	if err != nil {
		return err
	}
	for _, path := range logical {
		built, err := router.FindAsset(ctx, path)
		if err != nil {
			return err
		}
		fmt.Fprint(app.stdout, built.Body)
	}
	return nil
}

func newManifestCommand(app *App) *cobra.Command {
	var (
		mode   string
		format string
		diff   bool
	)
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Show the merged build manifest",
		Long: `Show the build manifest merged from every resolved package: each output
with the packages and directories contributing to it.

--diff compares the debug manifest against the production manifest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := app.open(ctx)
			if err != nil {
				return err
			}
			set, err := s.resolver.ResolveProject(ctx)
			if err != nil {
				return err
			}

			if diff {
				debug, err := buildmanifest.Build(s.project, set, bpmpkg.ModeDebug)
				if err != nil {
					return err
				}
				production, err := buildmanifest.Build(s.project, set, bpmpkg.ModeProduction)
				if err != nil {
					return err
				}
				d, err := buildmanifest.Diff(debug, production)
				if err != nil {
					return err
				}
				if d == "" {
					fmt.Fprintln(app.stdout, SubtitleStyle.Render("debug and production manifests are identical"))
					return nil
				}
				fmt.Fprint(app.stdout, renderDiff(d))
				return nil
			}

			buildMode, err := s.mode(mode)
			if err != nil {
				return err
			}
			m, err := buildmanifest.Build(s.project, set, buildMode)
			if err != nil {
				return err
			}

			var data []byte
			switch format {
			case "json":
				data, err = m.Encode()
			case "yaml":
				data, err = m.EncodeYAML()
			default:
				return fmt.Errorf("unknown format %q: use json or yaml", format)
			}
			if err != nil {
				return err
			}
			_, err = app.stdout.Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "build mode: debug or production (default from config)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	cmd.Flags().BoolVar(&diff, "diff", false, "diff the debug manifest against the production manifest")
	cmd.MarkFlagsMutuallyExclusive("diff", "mode")
	return cmd
}

func newPreviewCommand(app *App) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Refresh placeholder bundles after dependency changes",
		Long: `Store the current build manifest and, when it changed since the last
preview, write a placeholder under assets/ for every output so pages
referencing the bundles load before the first build.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := app.open(ctx)
			if err != nil {
				return err
			}
			buildMode, err := s.mode(mode)
			if err != nil {
				return err
			}
			_, m, err := s.manifest(ctx, buildMode)
			if err != nil {
				return err
			}

			res, err := s.project.RebuildPreview(m)
			if err != nil {
				return err
			}
			if !res.Changed {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("build manifest is up to date"))
				return nil
			}
			fmt.Fprint(app.stdout, renderDiff(res.Diff))
			for _, rel := range res.Placeholders {
				fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("wrote"), rel)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "build mode: debug or production (default from config)")
	return cmd
}

// router resolves the project, merges its build manifest for mode and builds
// the asset router over it. A nil cache gives the router a cache of its own.
func (s *session) router(ctx context.Context, mode string, cache *pipeline.MinifyCache) (*pipeline.Router, error) {
	set, m, err := s.manifest(ctx, mode)
	if err != nil {
		return nil, err
	}
	if cache == nil {
		cache = pipeline.NewMinifyCache(s.cfg.MinifyCacheSize)
	}
	opts := []pipeline.Option{
		pipeline.WithMinifyCache(cache),
		pipeline.WithScriptCacheSize(s.cfg.PluginCacheSize),
	}
	if s.newHost != nil {
		opts = append(opts, pipeline.WithHostFactory(s.newHost))
	}
	return pipeline.New(s.project, set, m, opts...)
}

// manifest resolves the project and merges its build manifest for mode.
func (s *session) manifest(ctx context.Context, mode string) (*resolve.Set, *buildmanifest.Manifest, error) {
	set, err := s.resolver.ResolveProject(ctx)
	if err != nil {
		return nil, nil, err
	}
	m, err := buildmanifest.Build(s.project, set, mode)
	if err != nil {
		return nil, nil, err
	}
	return set, m, nil
}
