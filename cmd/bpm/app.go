// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/bpmkit/bpm/internal/config"
	"github.com/bpmkit/bpm/internal/issue"
	"github.com/bpmkit/bpm/pkg/bpmpkg"
	"github.com/bpmkit/bpm/pkg/plugin"
	"github.com/bpmkit/bpm/pkg/resolve"
	"github.com/bpmkit/bpm/pkg/store"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives the App and reaches configuration, the package store and the
	// project through it.
	App struct {
		Config   config.Provider
		NewStore StoreFactory
		// NewHost creates the script host plugins run in. Nil uses the
		// pipeline's default.
		NewHost plugin.HostFactory
		stdout  io.Writer
		stderr  io.Writer

		flags *globalFlags
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config   config.Provider
		NewStore StoreFactory
		NewHost  plugin.HostFactory
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// StoreFactory creates the package store for a configuration.
	StoreFactory func(cfg *config.Config) store.PackageStore

	globalFlags struct {
		verbose    bool
		configPath string
		projectDir string
	}

	// session is the state one command works on: the effective
	// configuration, the project and a resolver over the store.
	session struct {
		cfg      *config.Config
		project  *bpmpkg.Project
		store    store.PackageStore
		resolver *resolve.Resolver
		newHost  plugin.HostFactory
	}
)

// NewApp creates an App, filling unset dependencies with defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:   deps.Config,
		NewStore: deps.NewStore,
		NewHost:  deps.NewHost,
		stdout:   deps.Stdout,
		stderr:   deps.Stderr,
		flags:    &globalFlags{},
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.NewStore == nil {
		app.NewStore = defaultStore
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// defaultStore caches packages under cfg.CacheDir and fetches from the
// configured mirror, if any.
func defaultStore(cfg *config.Config) store.PackageStore {
	var fetcher store.Fetcher
	if cfg.Mirror != "" {
		fetcher = store.DirFetcher{Root: cfg.Mirror}
	}
	return store.NewFSStore(cfg.CacheDir, fetcher)
}

func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	return a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: a.flags.configPath,
		BaseDir:        a.flags.projectDir,
	})
}

// open loads the configuration and the project for a command.
func (a *App) open(ctx context.Context) (*session, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	dir := a.flags.projectDir
	if dir == "" {
		dir = "."
	}
	project, err := bpmpkg.LoadProject(dir)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load project").
			WithResource(dir).
			WithSuggestion("Run bpm from a directory containing package.json, or pass --project").
			Wrap(err).
			BuildError()
	}

	s := a.NewStore(cfg)
	r := resolve.New(project, s)
	r.Prerelease = cfg.Prerelease
	r.Prefetch = true
	return &session{cfg: cfg, project: project, store: s, resolver: r, newHost: a.NewHost}, nil
}

// mode returns the build mode from a flag value, falling back to the
// configured default.
func (s *session) mode(flag string) (string, error) {
	if flag == "" {
		return string(s.cfg.DefaultMode), nil
	}
	if valid, errs := config.BuildMode(flag).IsValid(); !valid {
		return "", errs[0]
	}
	return flag, nil
}
