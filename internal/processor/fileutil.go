package processor

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// WriteFileAtomic writes data to a temp file in the destination directory
// and renames it over destPath, so readers never see a partial file.
func WriteFileAtomic(destPath string, data []byte, perm fs.FileMode) error {
	destDir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(destDir, ".webpify-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile.Name())

	if err := tmpFile.Chmod(perm); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return replaceFile(tmpFile.Name(), destPath)
}

// RemoveFiles deletes each path. Paths that are already gone are not an
// error; the first other failure is returned after every path was tried.
func RemoveFiles(paths []string) (int, error) {
	removed := 0
	var firstErr error
	for _, p := range paths {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, fs.ErrNotExist):
		default:
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return removed, firstErr
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func replaceFile(tmpPath, destPath string) error {
	if err := os.Rename(tmpPath, destPath); err == nil {
		return nil
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmpPath, destPath)
}

var siblingExts = []string{".jpeg", ".jpg", ".png", ".JPEG", ".JPG", ".PNG"}

// VariantOwner returns the raster that owns the WebP sibling of path. Rasters
// sharing a stem ("a.jpg" and "a.png") would derive the same "a.webp"; the
// lexically smallest existing one owns it, so the choice does not depend on
// processing order.
func VariantOwner(path string) string {
	self, err := os.Stat(path)
	if err != nil {
		return path
	}
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	owner := path
	for _, ext := range siblingExts {
		candidate := stem + ext
		if candidate == path || candidate >= owner {
			continue
		}
		info, err := os.Stat(candidate)
		if err != nil || !info.Mode().IsRegular() || os.SameFile(self, info) {
			continue
		}
		owner = candidate
	}
	return owner
}
