package imgutil

import (
	"path/filepath"
	"strings"
)

// CompactExt is the extension of the compact variant written next to a raster image.
const CompactExt = ".webp"

// RasterExts lists the extensions eligible for transcoding, without the dot.
var RasterExts = []string{"jpg", "jpeg", "png"}

// IsRasterPath reports whether p ends in one of RasterExts, ignoring case.
// A query string or fragment after the path is ignored.
func IsRasterPath(p string) bool {
	return HasExt(p, RasterExts)
}

// HasExt reports whether p (minus any query or fragment) ends in one of exts.
func HasExt(p string, exts []string) bool {
	base, _ := splitSuffix(p)
	return HasFileExt(base, exts)
}

// HasFileExt is HasExt for file system paths, where '?' and '#' are
// ordinary characters.
func HasFileExt(path string, exts []string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
			return true
		}
	}
	return false
}

// IsCompactPath reports whether p already points at a compact variant.
func IsCompactPath(p string) bool {
	base, _ := splitSuffix(p)
	return strings.EqualFold(filepath.Ext(base), CompactExt)
}

// CompactPath swaps the extension of p for CompactExt. It works on both file
// system paths and URL-ish references, keeping any "?query" or "#fragment".
func CompactPath(p string) string {
	base, suffix := splitSuffix(p)
	ext := filepath.Ext(base)
	if ext == "" {
		return p
	}
	return strings.TrimSuffix(base, ext) + CompactExt + suffix
}

// CompactFile swaps the extension of a file system path for CompactExt.
func CompactFile(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path
	}
	return strings.TrimSuffix(path, ext) + CompactExt
}

// StripQuery drops a trailing "?query" or "#fragment" from a reference.
func StripQuery(p string) string {
	base, _ := splitSuffix(p)
	return base
}

func splitSuffix(p string) (string, string) {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		return p[:i], p[i:]
	}
	return p, ""
}
