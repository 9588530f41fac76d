package processor

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"webpify/pkg/imgutil"
)

// Walk visits every image under root whose extension is in exts, in
// traversal order, skipping images whose compact variant already exists and
// files whose header names a format that is not transcoded (a WebP saved as
// .png). A root that is a single file is considered on its own.
func Walk(ctx context.Context, root string, exts []string, fn func(Job) error) error {
	return walkFiles(ctx, root, func(path string) bool {
		return imgutil.HasFileExt(path, exts) && !fileExists(imgutil.CompactFile(path)) && !misnamed(path)
	}, fn)
}

// misnamed reports whether path carries a recognised header of a format the
// transcoder does not take. Unreadable or unknown headers are left to the
// converter, which reports them.
func misnamed(path string) bool {
	kind, err := imgutil.SniffFile(path)
	return err == nil && kind != imgutil.KindUnknown && !kind.Raster()
}

// WalkText visits every file under root whose extension is in exts.
func WalkText(ctx context.Context, root string, exts []string, fn func(Job) error) error {
	return walkFiles(ctx, root, func(path string) bool {
		return imgutil.HasFileExt(path, exts)
	}, fn)
}

// Discover collects the images Walk would visit.
func Discover(ctx context.Context, root string, exts []string) ([]string, error) {
	var paths []string
	err := Walk(ctx, root, exts, func(job Job) error {
		paths = append(paths, job.Path)
		return nil
	})
	return paths, err
}

func walkFiles(ctx context.Context, root string, match func(string) bool, fn func(Job) error) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		if !match(absRoot) {
			return nil
		}
		return fn(Job{
			Path:    absRoot,
			RelPath: filepath.Base(absRoot),
			Display: filepath.Base(absRoot),
		})
	}

	fsys := os.DirFS(absRoot)
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		fullPath := filepath.Join(absRoot, filepath.FromSlash(path))
		if !match(fullPath) {
			return nil
		}
		return fn(Job{
			Path:    fullPath,
			RelPath: path,
			Display: path,
		})
	})
}
