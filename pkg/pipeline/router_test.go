// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/bpmkit/bpm/internal/testutil"
	"github.com/bpmkit/bpm/internal/testutil/pkgtest"
	"github.com/bpmkit/bpm/pkg/bpmpkg"
	"github.com/bpmkit/bpm/pkg/buildmanifest"
	"github.com/bpmkit/bpm/pkg/plugin"
	"github.com/bpmkit/bpm/pkg/resolve"
	"github.com/bpmkit/bpm/pkg/store"
)

type (
	// countingHost stands in for a minifier: it wraps the data it receives.
	countingHost struct {
		calls *int
		seen  *[]string
	}

	project struct {
		root string
	}
)

func (h countingHost) Evaluate(_ context.Context, _ string, globals map[string]any) (any, error) {
	*h.calls++
	data, _ := globals["__bpm_data"].(string)
	*h.seen = append(*h.seen, data)
	return "MIN(" + data + ")", nil
}

func newProject(t *testing.T) project {
	t.Helper()
	return project{root: filepath.Join(t.TempDir(), "app")}
}

func (p project) vendor(t *testing.T, name string, opts ...pkgtest.Option) string {
	t.Helper()
	return pkgtest.Write(t, filepath.Join(p.root, bpmpkg.VendoredDir, name), name, "1.0.0", opts...)
}

// router writes the project descriptor, resolves it from its vendored
// packages and returns a router for mode.
func (p project) router(t *testing.T, mode string, routerOpts []Option, opts ...pkgtest.Option) *Router {
	t.Helper()
	r, err := p.newRouter(t, mode, routerOpts, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func (p project) newRouter(t *testing.T, mode string, routerOpts []Option, opts ...pkgtest.Option) (*Router, error) {
	t.Helper()
	pkgtest.Write(t, p.root, "app", "1.0.0", opts...)
	proj, err := bpmpkg.LoadProject(p.root)
	if err != nil {
		t.Fatalf("LoadProject() error = %v", err)
	}
	set, err := resolve.New(proj, store.NewFSStore(t.TempDir(), nil)).Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	m, err := buildmanifest.Build(proj, set, mode)
	if err != nil {
		t.Fatalf("buildmanifest.Build() error = %v", err)
	}
	return New(proj, set, m, routerOpts...)
}

func TestComposite_DependencyOrder(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	p.vendor(t, "a", pkgtest.WithDependency("b", ">= 0"), pkgtest.WithFile("lib/a.js", "var fromA = 1;"))
	p.vendor(t, "b", pkgtest.WithFile("lib/b.js", "var fromB = 1;"))
	r := p.router(t, bpmpkg.ModeDebug, nil,
		pkgtest.WithDependency("a", ">= 0"),
		pkgtest.WithFile("lib/main.js", "var fromApp = 1;"))

	built, err := r.FindAsset(context.Background(), buildmanifest.LibrariesOutput)
	if err != nil {
		t.Fatalf("FindAsset() error = %v", err)
	}
	if !built.Composite {
		t.Error("library bundle should be composite")
	}
	if !strings.Contains(built.Body, "MANIFEST: a (1.0.0), app (1.0.0), b (1.0.0)\n") {
		t.Errorf("header does not list contributors alphabetically:\n%s", built.Body)
	}

	b, a, app := strings.Index(built.Body, "fromB"), strings.Index(built.Body, "fromA"), strings.Index(built.Body, "fromApp")
	if b < 0 || a < 0 || app < 0 || b >= a || a >= app {
		t.Errorf("body order wrong (b=%d a=%d app=%d):\n%s", b, a, app, built.Body)
	}
}

func TestComposite_ProjectFollowsDevelopmentDependencies(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	p.vendor(t, "zest", pkgtest.WithFile("lib/zest.js", "var fromZest = 1;"))
	r := p.router(t, bpmpkg.ModeDebug, nil,
		pkgtest.WithDevDependency("zest", ">= 0"),
		pkgtest.WithFile("lib/main.js", "var fromApp = 1;"))

	built, err := r.FindAsset(context.Background(), buildmanifest.LibrariesOutput)
	if err != nil {
		t.Fatalf("FindAsset() error = %v", err)
	}
	zest, app := strings.Index(built.Body, "fromZest"), strings.Index(built.Body, "fromApp")
	if zest < 0 || app < 0 || zest >= app {
		t.Errorf("development dependency should precede the project (zest=%d app=%d):\n%s", zest, app, built.Body)
	}
}

func TestComposite_EmptyEntry(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	r := p.router(t, bpmpkg.ModeDebug, nil, pkgtest.WithField("bpm:build", `{"empty.js": {"files": []}}`))

	built, err := r.FindAsset(context.Background(), "empty.js")
	if err != nil {
		t.Fatalf("FindAsset() error = %v", err)
	}
	e, _ := r.manifest.Entry("empty.js")
	if built.Body != Header(e) {
		t.Errorf("body = %q, want header only", built.Body)
	}
	if !strings.Contains(built.Body, "MANIFEST: (none)\n") {
		t.Errorf("header should read (none):\n%s", built.Body)
	}
}

func minifierProject(t *testing.T) (project, []pkgtest.Option) {
	t.Helper()
	p := newProject(t)
	p.vendor(t, "ugly",
		pkgtest.WithField("bpm:provides", `{"minifier": "minify.js"}`),
		pkgtest.WithFile("minify.js", `exports.minify = function(body) { return body.replace(/\s+/g, ""); };`))
	p.vendor(t, "a",
		pkgtest.WithFile("lib/a.js", "var a = 1;"),
		pkgtest.WithField("bpm:build", `{"out.js": {"files": ["lib"], "minifier": "ugly"}}`))
	return p, []pkgtest.Option{pkgtest.WithDependency("a", ">= 0")}
}

func TestComposite_MinifiesOncePerFingerprint(t *testing.T) {
	t.Parallel()

	p, opts := minifierProject(t)
	calls := 0
	var seen []string
	cache := NewMinifyCache(8)
	routerOpts := []Option{
		WithMinifyCache(cache),
		WithHostFactory(func() plugin.ScriptHost { return countingHost{calls: &calls, seen: &seen} }),
	}

	r := p.router(t, bpmpkg.ModeProduction, routerOpts, opts...)
	built, err := r.FindAsset(context.Background(), "out.js")
	if err != nil {
		t.Fatalf("FindAsset() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("minifier called %d times, want 1", calls)
	}
	if strings.Contains(seen[0], "MANIFEST") || !strings.Contains(seen[0], "var a = 1;") {
		t.Errorf("minifier input = %q, want the body without header", seen[0])
	}
	e, _ := r.manifest.Entry("out.js")
	if want := Header(e) + "MIN(" + seen[0] + ")"; built.Body != want {
		t.Errorf("body = %q, want %q", built.Body, want)
	}

	if _, err := r.FindAsset(context.Background(), "out.js"); err != nil {
		t.Fatal(err)
	}
	again := p.router(t, bpmpkg.ModeProduction, routerOpts, opts...)
	if _, err := again.FindAsset(context.Background(), "out.js"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("minifier called %d times across unchanged builds, want 1", calls)
	}
	if cache.Len() != 1 {
		t.Errorf("cache.Len() = %d", cache.Len())
	}
}

func TestRouter_ExpireRecomputesMinifiedBodies(t *testing.T) {
	t.Parallel()

	p, opts := minifierProject(t)
	calls := 0
	var seen []string
	cache := NewMinifyCache(8)
	r := p.router(t, bpmpkg.ModeProduction, []Option{
		WithMinifyCache(cache),
		WithHostFactory(func() plugin.ScriptHost { return countingHost{calls: &calls, seen: &seen} }),
	}, opts...)

	ctx := context.Background()
	if _, err := r.FindAsset(ctx, "out.js"); err != nil {
		t.Fatal(err)
	}
	r.Expire()
	if cache.Len() != 0 {
		t.Errorf("cache.Len() after Expire = %d, want 0", cache.Len())
	}
	if _, err := r.FindAsset(ctx, "out.js"); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("minifier called %d times, want a recompute after Expire", calls)
	}
}

func TestMinifyCache_KeyIncludesMinifier(t *testing.T) {
	t.Parallel()

	c := NewMinifyCache(4)
	tests := []struct {
		name string
		a, b [3]string
	}{
		{name: "minifier version", a: [3]string{"out.js", "squeeze@1.0.0", "x"}, b: [3]string{"out.js", "squeeze@1.1.0", "x"}},
		{name: "minifier name", a: [3]string{"out.js", "squeeze@1.0.0", "x"}, b: [3]string{"out.js", "crush@1.0.0", "x"}},
		{name: "body", a: [3]string{"out.js", "squeeze@1.0.0", "x"}, b: [3]string{"out.js", "squeeze@1.0.0", "y"}},
		{name: "output", a: [3]string{"a.js", "squeeze@1.0.0", "x"}, b: [3]string{"b.js", "squeeze@1.0.0", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if c.key(tt.a[0], tt.a[1], tt.a[2]) == c.key(tt.b[0], tt.b[1], tt.b[2]) {
				t.Errorf("key(%v) == key(%v)", tt.a, tt.b)
			}
		})
	}
}

func TestComposite_DebugNeverMinifies(t *testing.T) {
	t.Parallel()

	p, opts := minifierProject(t)
	calls := 0
	var seen []string
	r := p.router(t, bpmpkg.ModeDebug,
		[]Option{WithHostFactory(func() plugin.ScriptHost { return countingHost{calls: &calls, seen: &seen} })},
		opts...)

	built, err := r.FindAsset(context.Background(), "out.js")
	if err != nil {
		t.Fatalf("FindAsset() error = %v", err)
	}
	if calls != 0 {
		t.Errorf("minifier called %d times in debug", calls)
	}
	if !strings.Contains(built.Body, "var a = 1;") {
		t.Errorf("debug body should be unminified:\n%s", built.Body)
	}
}

func TestComposite_MinifyWithGoja(t *testing.T) {
	t.Parallel()

	p, opts := minifierProject(t)
	r := p.router(t, bpmpkg.ModeProduction, nil, opts...)

	built, err := r.FindAsset(context.Background(), "out.js")
	if err != nil {
		t.Fatalf("FindAsset() error = %v", err)
	}
	e, _ := r.manifest.Entry("out.js")
	if want := Header(e) + "vara=1;"; built.Body != want {
		t.Errorf("body = %q, want %q", built.Body, want)
	}
}

func TestComposite_NestedMinifyFromPreprocessor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode string
		want string
	}{
		{mode: bpmpkg.ModeProduction, want: "VAR A;"},
		{mode: bpmpkg.ModeDebug, want: "var a;"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			t.Parallel()

			p := newProject(t)
			p.vendor(t, "shout",
				pkgtest.WithField("bpm:provides", `{"minifier": "shout.js"}`),
				pkgtest.WithFile("shout.js", `exports.minify = function(body) { return body.toUpperCase(); };`))
			p.vendor(t, "pre",
				pkgtest.WithField("bpm:provides", `{"preprocessor": "pre.js"}`),
				pkgtest.WithFile("pre.js", `exports.preprocess = function(src, ctx) { return ctx.minify(src); };`))
			p.vendor(t, "a",
				pkgtest.WithDependency("pre", ">= 0"),
				pkgtest.WithFile("lib/a.js", "var a;"),
				pkgtest.WithField("bpm:build", `{"out.js": {"files": ["lib"], "minifier": "shout"}}`))
			r := p.router(t, tt.mode, nil, pkgtest.WithDependency("a", ">= 0"))

			built, err := r.FindAsset(context.Background(), "out.js")
			if err != nil {
				t.Fatalf("FindAsset() error = %v", err)
			}
			if !strings.Contains(built.Body, tt.want) {
				t.Errorf("body lacks %q:\n%s", tt.want, built.Body)
			}
		})
	}
}

func TestComposite_MissingMinifierCapability(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	p.vendor(t, "plain", pkgtest.WithFile("lib/plain.js", "plain();"))
	p.vendor(t, "a",
		pkgtest.WithFile("lib/a.js", "a();"),
		pkgtest.WithField("bpm:build", `{"out.js": {"files": ["lib"], "minifier": "plain"}}`))
	r := p.router(t, bpmpkg.ModeProduction, nil, pkgtest.WithDependency("a", ">= 0"))

	_, err := r.FindAsset(context.Background(), "out.js")
	if !errors.Is(err, plugin.ErrMinifierNotFound) {
		t.Errorf("FindAsset() error = %v, want ErrMinifierNotFound", err)
	}
}

func TestComposite_PluginFailureNamesOutput(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	p.vendor(t, "lint",
		pkgtest.WithField("bpm:provides", `{"preprocessor": "lint.js"}`),
		pkgtest.WithFile("lint.js", `exports.preprocess = function() { throw new Error("unterminated string"); };`))
	p.vendor(t, "a",
		pkgtest.WithDependency("lint", ">= 0"),
		pkgtest.WithFile("lib/a.js", "var a = 'oops;"))
	r := p.router(t, bpmpkg.ModeDebug, nil, pkgtest.WithDependency("a", ">= 0"))

	_, err := r.FindAsset(context.Background(), buildmanifest.LibrariesOutput)
	var ie *plugin.InvocationError
	if !errors.As(err, &ie) {
		t.Fatalf("FindAsset() error = %v, want an InvocationError", err)
	}
	if ie.Plugin != "lint" || ie.Asset != buildmanifest.LibrariesOutput || ie.Module != "a/a" {
		t.Errorf("InvocationError = %+v, want lint failing on a/a while building %s", ie, buildmanifest.LibrariesOutput)
	}
	if msg := err.Error(); !strings.Contains(msg, buildmanifest.LibrariesOutput) || !strings.Contains(msg, "a/a") {
		t.Errorf("error %q should name the output and the module", msg)
	}
}

func TestFormatCompiler(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	p.vendor(t, "coffee",
		pkgtest.WithField("bpm:provides", `{"format:coffee": "compile.js"}`),
		pkgtest.WithFile("compile.js",
			`exports.compileFormat = function(src, ctx) { return "/*" + ctx.moduleId + "*/" + src.toUpperCase(); };`))
	r := p.router(t, bpmpkg.ModeDebug, nil,
		pkgtest.WithDependency("coffee", ">= 0"),
		pkgtest.WithFile("lib/app.coffee", "x();"),
		pkgtest.WithFile("lib/readme.txt", "not a script"))

	built, err := r.FindAsset(context.Background(), buildmanifest.LibrariesOutput)
	if err != nil {
		t.Fatalf("FindAsset() error = %v", err)
	}
	if !strings.Contains(built.Body, "/*app/app*/X();") {
		t.Errorf("coffee file not compiled:\n%s", built.Body)
	}
	if strings.Contains(built.Body, "not a script") {
		t.Error("files of another content type must be filtered out")
	}

	asset, err := r.Resolve("app")
	if err != nil {
		t.Fatalf("Resolve(app) error = %v", err)
	}
	if asset.ContentType != "application/javascript" {
		t.Errorf("compiled content type = %q", asset.ContentType)
	}
}

func TestNew_TooManyTransports(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	p.vendor(t, "t1", pkgtest.WithField("bpm:provides", `{"transport": "t.js"}`), pkgtest.WithFile("t.js", ""))
	p.vendor(t, "t2", pkgtest.WithField("bpm:provides", `{"transport": "t.js"}`), pkgtest.WithFile("t.js", ""))

	_, err := p.newRouter(t, bpmpkg.ModeDebug, nil,
		pkgtest.WithDependency("t1", ">= 0"),
		pkgtest.WithDependency("t2", ">= 0"))
	if !errors.Is(err, ErrTooManyTransports) {
		t.Fatalf("New() error = %v, want ErrTooManyTransports", err)
	}
	var tm *TooManyTransportsError
	if !errors.As(err, &tm) || tm.Package != "app" || tm.First != "t1" || tm.Second != "t2" {
		t.Errorf("TooManyTransportsError = %+v", tm)
	}
}

func TestResolve_Routing(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	p.vendor(t, "a", pkgtest.WithFile("lib/util.js", "util();"))
	r := p.router(t, bpmpkg.ModeDebug, nil,
		pkgtest.WithDependency("a", ">= 0"),
		pkgtest.WithFile("lib/main.js", "main();"))

	tests := []struct {
		logical string
		pkg     string
		file    string
		compose bool
		wantErr bool
	}{
		{logical: "a/util", pkg: "a", file: "util.js"},
		{logical: "a/lib/util.js", pkg: "a", file: "util.js"},
		{logical: "main", pkg: "app", file: "main.js"},
		{logical: "app/main", pkg: "app", file: "main.js"},
		{logical: buildmanifest.LibrariesOutput, compose: true},
		{logical: "ghost/util", wantErr: true},
		{logical: "a/../../outside", wantErr: true},
	}
	for _, tt := range tests {
		asset, err := r.Resolve(tt.logical)
		if tt.wantErr {
			if !errors.Is(err, ErrAssetNotFound) {
				t.Errorf("Resolve(%q) error = %v, want ErrAssetNotFound", tt.logical, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Resolve(%q) error = %v", tt.logical, err)
			continue
		}
		if asset.Composite != tt.compose || asset.Package != tt.pkg || (tt.file != "" && filepath.Base(asset.Path) != tt.file) {
			t.Errorf("Resolve(%q) = %+v", tt.logical, asset)
		}
	}

	if got := r.BuildableAssets(); !slices.Equal(got, []string{buildmanifest.LibrariesOutput}) {
		t.Errorf("BuildableAssets() = %v", got)
	}

	built, err := r.FindAsset(context.Background(), "a/util")
	if err != nil || built.Body != "util();" {
		t.Errorf("FindAsset(a/util) = %v, %v", built, err)
	}
}

func TestEmit(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	p.vendor(t, "a",
		pkgtest.WithFile("lib/a.js", "a();"),
		pkgtest.WithFile("img/logo.svg", "<svg/>"),
		pkgtest.WithField("bpm:build", `{"images": {"assets": ["img"]}}`))
	r := p.router(t, bpmpkg.ModeDebug, nil, pkgtest.WithDependency("a", ">= 0"))

	out := t.TempDir()
	written, err := r.Emit(context.Background(), out)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if !slices.Equal(written, []string{buildmanifest.LibrariesOutput, "images"}) {
		t.Errorf("Emit() = %v", written)
	}
	if got := testutil.MustReadFile(t, filepath.Join(out, buildmanifest.LibrariesOutput)); !strings.Contains(got, "a();") {
		t.Errorf("bpm_libs.js = %q", got)
	}
	if got := testutil.MustReadFile(t, filepath.Join(out, "images", "logo.svg")); got != "<svg/>" {
		t.Errorf("images/logo.svg = %q", got)
	}

	// Emitting again overwrites.
	if _, err := r.Emit(context.Background(), out); err != nil {
		t.Fatalf("second Emit() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "images", "logo.svg")); err != nil {
		t.Error(err)
	}
}
