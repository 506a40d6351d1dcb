// SPDX-License-Identifier: MPL-2.0

// Package watch rebuilds a project when its package sources change.
//
// A Watcher registers every directory under a project root, filters the
// events through glob patterns and, once the tree has been quiet for the
// debounce period, hands the set of changed paths to a rebuild callback.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Config.Debounce is unset.
const DefaultDebounce = 300 * time.Millisecond

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watcher already running")

// defaultIgnores never trigger a rebuild: bpm's own state, VCS metadata and
// editor scratch files.
var defaultIgnores = []string{
	".bpm/**",
	"**/.git/**",
	"**/node_modules/**",
	"**/*.swp",
	"**/*~",
	"**/.DS_Store",
}

type (
	// Config configures a Watcher.
	Config struct {
		// Root is the project directory. Empty means the working directory.
		Root string
		// Include limits rebuilds to paths matching one of these
		// doublestar globs, relative to Root. Empty includes everything.
		Include []string
		// Ignore adds globs to the built-in ignores, typically the build
		// output directory.
		Ignore []string
		// Debounce is the quiet period before OnChange fires.
		Debounce time.Duration
		// OnChange receives the changed paths relative to Root, sorted. Its
		// error is logged; watching continues.
		OnChange func(ctx context.Context, changed []string) error
	}

	// Watcher watches a project tree. Run may be called once.
	Watcher struct {
		cfg      Config
		root     string
		ignores  []string
		debounce time.Duration
		fsw      *fsnotify.Watcher
		started  atomic.Bool
	}

	// batch accumulates changed paths until the debounce timer fires.
	batch struct {
		mu      sync.Mutex
		pending map[string]struct{}
		timer   *time.Timer
		busy    atomic.Bool
	}
)

// New validates cfg and registers every non-ignored directory under Root.
func New(cfg Config) (*Watcher, error) {
	root := cfg.Root
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}

	for _, pat := range slices.Concat(cfg.Include, cfg.Ignore) {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid watch pattern %q", pat)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		root:     abs,
		ignores:  slices.Concat(defaultIgnores, cfg.Ignore),
		debounce: cfg.Debounce,
		fsw:      fsw,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}

	if err := w.addTree(abs); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run dispatches debounced rebuilds until ctx is canceled. It returns nil on
// cancellation and an error when the underlying watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	b := &batch{pending: make(map[string]struct{})}
	defer func() {
		b.stop()
		if err := w.fsw.Close(); err != nil {
			slog.Warn("failed to close file watcher", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("file watcher closed its event channel")
			}
			rel, err := filepath.Rel(w.root, evt.Name)
			if err != nil {
				continue
			}
			if w.ignored(rel) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					if err := w.addTree(evt.Name); err != nil {
						slog.Warn("failed to watch new directory", "dir", evt.Name, "error", err)
					}
				}
			}
			if !w.included(rel) {
				continue
			}
			b.add(filepath.ToSlash(rel), w.debounce, func() { w.fire(ctx, b) })

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("file watcher closed its error channel")
			}
			if isFatal(err) {
				return fmt.Errorf("file watcher failed: %w", err)
			}
			slog.Warn("file watcher error", "error", err)
		}
	}
}

// fire runs OnChange for the pending paths. A rebuild still in progress
// defers the batch by another debounce period instead of overlapping.
func (w *Watcher) fire(ctx context.Context, b *batch) {
	if ctx.Err() != nil {
		return
	}
	if !b.busy.CompareAndSwap(false, true) {
		slog.Debug("rebuild in progress, deferring changes")
		b.reset(w.debounce)
		return
	}
	defer b.busy.Store(false)

	changed := b.drain()
	if len(changed) == 0 || w.cfg.OnChange == nil {
		return
	}
	slog.Debug("sources changed", "count", len(changed))
	if err := w.cfg.OnChange(ctx, changed); err != nil {
		slog.Error("rebuild failed", "error", err)
	}
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			slog.Debug("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil //nolint:nilerr // outside the root
		}
		if rel != "." && (w.ignored(rel) || w.ignored(rel+"/")) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) ignored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) included(rel string) bool {
	return len(w.cfg.Include) == 0 || matchAny(w.cfg.Include, rel)
}

func matchAny(patterns []string, rel string) bool {
	name := filepath.ToSlash(rel)
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}

func (b *batch) add(rel string, debounce time.Duration, fire func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[rel] = struct{}{}
	if b.timer == nil {
		b.timer = time.AfterFunc(debounce, fire)
		return
	}
	b.timer.Reset(debounce)
}

func (b *batch) reset(debounce time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Reset(debounce)
	}
}

func (b *batch) drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	changed := slices.Sorted(maps.Keys(b.pending))
	clear(b.pending)
	return changed
}

func (b *batch) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
}
