// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bpmkit/bpm/internal/fsutil"
)

// Emit builds every composite output into outDir and copies the directories
// of asset outputs verbatim. It returns the outputs written, sorted.
//
// A failed emit may leave earlier outputs in place; the next successful
// build overwrites them.
func (r *Router) Emit(ctx context.Context, outDir string) ([]string, error) {
	var written []string
	for _, output := range r.manifest.Outputs() {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		e, _ := r.manifest.Entry(output)
		dst := filepath.Join(outDir, filepath.FromSlash(output))
		if e.IsAssets() {
			if err := r.copyAssets(e.Assets.Package, e.Assets.Paths, dst); err != nil {
				return written, err
			}
		} else {
			built, err := r.FindAsset(ctx, output)
			if err != nil {
				return written, fmt.Errorf("failed to build %s: %w", output, err)
			}
			if err := fsutil.WriteFileAtomic(dst, []byte(built.Body)); err != nil {
				return written, err
			}
		}
		slog.Debug("emitted output", "output", output, "dir", outDir)
		written = append(written, output)
	}
	return written, nil
}

func (r *Router) copyAssets(owner string, paths []string, dst string) error {
	pkg, ok := r.index.Get(owner)
	if !ok {
		return &AssetNotFoundError{Path: owner + "/"}
	}
	for _, rel := range paths {
		for _, dir := range pkg.Directory(rel) {
			src := filepath.Join(pkg.Root, filepath.FromSlash(dir))
			if _, err := os.Stat(src); os.IsNotExist(err) {
				slog.Warn("asset directory missing", "package", owner, "dir", dir)
				continue
			}
			if err := fsutil.CopyDir(src, dst); err != nil {
				return fmt.Errorf("failed to copy %s of %s: %w", dir, owner, err)
			}
		}
	}
	return nil
}
