package rewrite

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"webpify/internal/errs"
)

// Resolver maps an import specifier, as written in importer, to a file.
type Resolver interface {
	Resolve(spec, importer string) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(spec, importer string) (string, error)

func (f ResolverFunc) Resolve(spec, importer string) (string, error) {
	return f(spec, importer)
}

// AliasResolver resolves relative specifiers against the importing file,
// aliased ones ("@/assets/x.png") against their alias directory, and bare
// ones against Root/node_modules.
type AliasResolver struct {
	Root    string
	Aliases map[string]string
}

func (r AliasResolver) Resolve(spec, importer string) (string, error) {
	candidates := r.candidates(spec, importer)
	for _, c := range candidates {
		abs, err := filepath.Abs(c)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.Mode().IsRegular() {
			return abs, nil
		}
	}
	return "", errs.Resolution(spec, fmt.Errorf("no file found (tried %s)", strings.Join(candidates, ", ")))
}

func (r AliasResolver) candidates(spec, importer string) []string {
	native := filepath.FromSlash(spec)
	switch {
	case strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		return []string{filepath.Join(filepath.Dir(importer), native)}
	case strings.HasPrefix(spec, "/"):
		return []string{native, filepath.Join(r.Root, native)}
	}

	if target, rest, ok := r.matchAlias(spec); ok {
		if !filepath.IsAbs(target) {
			target = filepath.Join(r.Root, target)
		}
		return []string{filepath.Join(target, filepath.FromSlash(rest))}
	}
	return []string{filepath.Join(r.Root, "node_modules", native)}
}

// matchAlias picks the longest alias that prefixes spec at a path boundary.
func (r AliasResolver) matchAlias(spec string) (string, string, bool) {
	names := make([]string, 0, len(r.Aliases))
	for name := range r.Aliases {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	for _, name := range names {
		if spec == name {
			return r.Aliases[name], "", true
		}
		if strings.HasPrefix(spec, name+"/") {
			return r.Aliases[name], strings.TrimPrefix(spec, name+"/"), true
		}
	}
	return "", "", false
}

// CachedResolver memoizes successful resolutions. Loaders ask for the same
// asset from many files, and resolution hits the file system.
type CachedResolver struct {
	next  Resolver
	cache *lru.Cache[string, string]
}

func NewCachedResolver(next Resolver, size int) (*CachedResolver, error) {
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &CachedResolver{next: next, cache: cache}, nil
}

func (c *CachedResolver) Resolve(spec, importer string) (string, error) {
	key := spec
	if strings.HasPrefix(spec, ".") {
		key = filepath.Dir(importer) + "\x00" + spec
	}
	if path, ok := c.cache.Get(key); ok {
		return path, nil
	}
	path, err := c.next.Resolve(spec, importer)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, path)
	return path, nil
}

// Purge drops every cached resolution.
func (c *CachedResolver) Purge() {
	c.cache.Purge()
}
