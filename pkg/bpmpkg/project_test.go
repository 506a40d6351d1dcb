// SPDX-License-Identifier: MPL-2.0

package bpmpkg

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/bpmkit/bpm/internal/testutil"
	"github.com/bpmkit/bpm/internal/testutil/pkgtest"
)

func newTestProject(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	pkgtest.Write(t, root, "app", "0.1.0",
		pkgtest.WithDependency("core", ">= 1.0"),
		pkgtest.WithDevDependency("jasmine", ">= 0"),
		pkgtest.WithField("x-app", `{"port": 8080}`),
	)
	pkgtest.Write(t, filepath.Join(root, VendoredDir, "core"), "core", "1.4.0")
	pkgtest.Write(t, filepath.Join(root, VendoredDir, "widgets"), "widgets", "0.3.0")
	testutil.MustMkdirAll(t, filepath.Join(root, VendoredDir, "scratch"))
	return root
}

func TestLoadProject(t *testing.T) {
	t.Parallel()

	p, err := LoadProject(newTestProject(t))
	if err != nil {
		t.Fatalf("LoadProject() error = %v", err)
	}
	if got := p.VendoredNames(); !slices.Equal(got, []string{"core", "widgets"}) {
		t.Errorf("VendoredNames() = %v", got)
	}
	core, ok := p.Vendored("core")
	if !ok || core.Version != "1.4.0" {
		t.Errorf("Vendored(core) = %v, %v", core, ok)
	}
	if got := p.HardDependencies().Names(); !slices.Equal(got, []string{"core", "jasmine"}) {
		t.Errorf("HardDependencies() = %v", got)
	}
}

func TestProject_AddRemoveDependency(t *testing.T) {
	t.Parallel()

	root := newTestProject(t)
	p, err := LoadProject(root)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.AddDependency("dom", "", false); err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}
	removed, err := p.RemoveDependency("jasmine")
	if err != nil || !removed {
		t.Fatalf("RemoveDependency() = %v, %v", removed, err)
	}
	if removed, _ := p.RemoveDependency("nope"); removed {
		t.Error("RemoveDependency(nope) = true")
	}

	reloaded, err := LoadProject(root)
	if err != nil {
		t.Fatal(err)
	}
	if c, ok := reloaded.Dependencies.Get("dom"); !ok || c != AnyVersion {
		t.Errorf("dom constraint = %q, %v", c, ok)
	}
	if len(reloaded.DevelopmentDependencies) != 0 {
		t.Errorf("DevelopmentDependencies = %v", reloaded.DevelopmentDependencies)
	}
	if !reloaded.Extra.Has("x-app") {
		t.Error("unknown field lost on save")
	}
}

func TestDependencyManifest_SaveLoad(t *testing.T) {
	t.Parallel()

	p, err := LoadProject(newTestProject(t))
	if err != nil {
		t.Fatal(err)
	}

	empty, err := p.LoadDependencyManifest()
	if err != nil {
		t.Fatalf("LoadDependencyManifest() error = %v", err)
	}
	if empty.Len() != 0 {
		t.Errorf("missing manifest should be empty, got %v", empty.Names())
	}

	m := NewDependencyManifest()
	m.Set("zeta", "1.0.0", "/cache/zeta-1.0.0")
	m.Set("alpha", "2.0.0", "/cache/alpha-2.0.0")
	if err := p.SaveDependencyManifest(m); err != nil {
		t.Fatalf("SaveDependencyManifest() error = %v", err)
	}

	text := testutil.MustReadFile(t, p.StatePath(DependencyManifestFile))
	if strings.Index(text, "alpha") > strings.Index(text, "zeta") {
		t.Errorf("manifest keys not sorted:\n%s", text)
	}

	loaded, err := p.LoadDependencyManifest()
	if err != nil {
		t.Fatal(err)
	}
	if e, ok := loaded.Get("alpha"); !ok || e.Version != "2.0.0" || e.Path != "/cache/alpha-2.0.0" {
		t.Errorf("Get(alpha) = %+v, %v", e, ok)
	}
	if _, err := os.Stat(p.StatePath(DependencyManifestFile) + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

type fakeManifest struct {
	body    string
	outputs []string
}

func (f fakeManifest) Encode() ([]byte, error) { return []byte(f.body), nil }
func (f fakeManifest) Outputs() []string        { return f.outputs }

func TestRebuildPreview(t *testing.T) {
	t.Parallel()

	p, err := LoadProject(newTestProject(t))
	if err != nil {
		t.Fatal(err)
	}

	first := fakeManifest{body: "{\n  \"bpm_libs.js\": {}\n}\n", outputs: []string{"bpm_libs.js", "app/bpm_tests.js"}}
	res, err := p.RebuildPreview(first)
	if err != nil {
		t.Fatalf("RebuildPreview() error = %v", err)
	}
	if !res.Changed {
		t.Fatal("first preview should report a change")
	}
	if !slices.Equal(res.Placeholders, []string{"assets/bpm_libs.js", "assets/app/bpm_tests.js"}) {
		t.Errorf("Placeholders = %v", res.Placeholders)
	}
	content := testutil.MustReadFile(t, filepath.Join(p.Root, "assets", "app", "bpm_tests.js"))
	if !strings.HasPrefix(content, "// bpm preview") {
		t.Errorf("placeholder content = %q", content)
	}

	again, err := p.RebuildPreview(first)
	if err != nil {
		t.Fatal(err)
	}
	if again.Changed || again.Diff != "" {
		t.Errorf("unchanged manifest should be a no-op, got %+v", again)
	}

	second := fakeManifest{body: "{\n  \"bpm_styles.css\": {}\n}\n", outputs: []string{"bpm_styles.css"}}
	changed, err := p.RebuildPreview(second)
	if err != nil {
		t.Fatal(err)
	}
	if !changed.Changed {
		t.Fatal("changed manifest should report a change")
	}
	if !strings.Contains(changed.Diff, "-  \"bpm_libs.js\": {}") || !strings.Contains(changed.Diff, "+  \"bpm_styles.css\": {}") {
		t.Errorf("Diff =\n%s", changed.Diff)
	}
}
