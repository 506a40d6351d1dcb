// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

// startWatcher runs a watcher over dir and returns a channel of the change
// sets it reports.
func startWatcher(t *testing.T, cfg Config) <-chan []string {
	t.Helper()

	changes := make(chan []string, 10)
	cfg.OnChange = func(_ context.Context, changed []string) error {
		changes <- changed
		return nil
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 50 * time.Millisecond
	}
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
	return changes
}

func write(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x();"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_CoalescesChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "lib"), 0o755); err != nil {
		t.Fatal(err)
	}
	changes := startWatcher(t, Config{Root: dir, Debounce: 150 * time.Millisecond})

	for _, name := range []string{"a.js", "b.js", "c.js"} {
		write(t, filepath.Join(dir, "lib", name))
		time.Sleep(10 * time.Millisecond)
	}

	var got []string
	select {
	case got = <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rebuild")
	}
	for _, want := range []string{"lib/a.js", "lib/b.js", "lib/c.js"} {
		if !slices.Contains(got, want) {
			t.Errorf("changed = %v, missing %q", got, want)
		}
	}
	if !slices.IsSorted(got) {
		t.Errorf("changed = %v, want sorted", got)
	}
}

func TestWatcher_IgnoresOutputAndState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, sub := range []string{"dist", ".bpm", "lib"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	changes := startWatcher(t, Config{Root: dir, Ignore: []string{"dist/**"}})

	write(t, filepath.Join(dir, "dist", "bpm_libs.js"))
	write(t, filepath.Join(dir, ".bpm", "dependencies.json"))
	select {
	case got := <-changes:
		t.Fatalf("ignored writes triggered a rebuild: %v", got)
	case <-time.After(300 * time.Millisecond):
	}

	write(t, filepath.Join(dir, "lib", "main.js"))
	select {
	case got := <-changes:
		if !slices.Equal(got, []string{"lib/main.js"}) {
			t.Errorf("changed = %v, want [lib/main.js]", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rebuild")
	}
}

func TestWatcher_Include(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	changes := startWatcher(t, Config{Root: dir, Include: []string{"**/*.css"}})

	write(t, filepath.Join(dir, "notes.txt"))
	write(t, filepath.Join(dir, "site.css"))

	select {
	case got := <-changes:
		if !slices.Equal(got, []string{"site.css"}) {
			t.Errorf("changed = %v, want [site.css]", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rebuild")
	}
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	changes := startWatcher(t, Config{Root: dir, Include: []string{"**/*.js"}})

	if err := os.MkdirAll(filepath.Join(dir, "vendor"), 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	write(t, filepath.Join(dir, "vendor", "late.js"))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-changes:
			if slices.Contains(got, "vendor/late.js") {
				return
			}
		case <-deadline:
			t.Fatal("change in a directory created after start was not reported")
		}
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Root: t.TempDir(), Include: []string{"[unterminated"}}); err == nil {
		t.Error("New() should reject an invalid glob")
	}
}

func TestRun_Twice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Go(func() { _ = w.Run(ctx) })

	time.Sleep(20 * time.Millisecond)
	if err := w.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}
	cancel()
	wg.Wait()
}
