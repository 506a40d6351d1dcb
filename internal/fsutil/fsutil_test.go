// SPDX-License-Identifier: MPL-2.0

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bpmkit/bpm/internal/testutil"
)

func TestCopyDir_SkipsSymlinks(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(src, "lib", "a.js"), "a")
	outside := filepath.Join(t.TempDir(), "secret")
	testutil.MustWriteFile(t, outside, "secret")
	if err := os.Symlink(outside, filepath.Join(src, "lib", "link.js")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "copy")
	if err := CopyDir(src, dst); err != nil {
		t.Fatalf("CopyDir() error = %v", err)
	}
	if testutil.MustReadFile(t, filepath.Join(dst, "lib", "a.js")) != "a" {
		t.Error("regular file not copied")
	}
	if _, err := os.Lstat(filepath.Join(dst, "lib", "link.js")); !os.IsNotExist(err) {
		t.Error("symlink should have been skipped")
	}
}

func TestCopyDir_Overwrites(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(src, "logo.svg"), "new")
	dst := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dst, "logo.svg"), "old")

	if err := CopyDir(src, dst); err != nil {
		t.Fatalf("CopyDir() error = %v", err)
	}
	if got := testutil.MustReadFile(t, filepath.Join(dst, "logo.svg")); got != "new" {
		t.Errorf("logo.svg = %q, want overwritten", got)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "state.json")
	if err := WriteFileAtomic(path, []byte("{}\n")); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if got := testutil.MustReadFile(t, path); got != "{}\n" {
		t.Errorf("content = %q", got)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}
