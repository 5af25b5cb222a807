// Package fsresolver is a small filesystem-backed RequestResolver for hosts
// that have no bundler resolver to delegate to. It probes the joined path,
// the path plus each extension, then the directory's main files.
package fsresolver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/anvil-platform/federation/internal/resolver"
)

var (
	DefaultExtensions = []string{".js", ".mjs", ".cjs", ".json", ".ts", ".tsx"}
	DefaultMainFiles  = []string{"index"}
)

const defaultCacheSize = 4096

// StatFunc reports file info for an absolute path.
type StatFunc func(path string) (fs.FileInfo, error)

type Options struct {
	Extensions []string
	MainFiles  []string
	// CacheSize is the number of stat results kept. Zero uses a default.
	CacheSize int
	// Stat defaults to os.Stat.
	Stat StatFunc
}

type entryKind int

const (
	kindMissing entryKind = iota
	kindFile
	kindDir
)

type Resolver struct {
	extensions []string
	mainFiles  []string
	stat       StatFunc
	cache      *lru.Cache[string, entryKind]
}

var _ resolver.RequestResolver = (*Resolver)(nil)

func New(opts Options) (*Resolver, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, entryKind](size)
	if err != nil {
		return nil, fmt.Errorf("fsresolver: create stat cache: %w", err)
	}
	r := &Resolver{
		extensions: opts.Extensions,
		mainFiles:  opts.MainFiles,
		stat:       opts.Stat,
		cache:      cache,
	}
	if r.extensions == nil {
		r.extensions = DefaultExtensions
	}
	if r.mainFiles == nil {
		r.mainFiles = DefaultMainFiles
	}
	if r.stat == nil {
		r.stat = os.Stat
	}
	return r, nil
}

// Purge drops cached stat results, e.g. after the host saw files change.
func (r *Resolver) Purge() {
	r.cache.Purge()
}

func (r *Resolver) ResolveRequest(ctx context.Context, contextPath, request string) (resolver.Resolution, error) {
	res := resolver.Resolution{Trace: resolver.NewDependencyTrace()}

	base := filepath.Join(contextPath, filepath.FromSlash(request))
	if !filepath.IsAbs(base) {
		abs, err := filepath.Abs(base)
		if err != nil {
			return res, fmt.Errorf("fsresolver: absolute path for %q: %w", base, err)
		}
		base = abs
	}

	candidates := make([]string, 0, 1+len(r.extensions))
	candidates = append(candidates, base)
	for _, ext := range r.extensions {
		candidates = append(candidates, base+ext)
	}

	for _, candidate := range candidates {
		found, err := r.probe(ctx, candidate, &res.Trace)
		if err != nil {
			return res, err
		}
		if found {
			res.Path, res.Found = candidate, true
			return res, nil
		}
	}

	// Directory requests fall through to main files.
	kind, err := r.lookup(base)
	if err != nil {
		return res, err
	}
	if kind != kindDir {
		return res, nil
	}
	for _, main := range r.mainFiles {
		for _, ext := range r.extensions {
			candidate := filepath.Join(base, main+ext)
			found, err := r.probe(ctx, candidate, &res.Trace)
			if err != nil {
				return res, err
			}
			if found {
				res.Path, res.Found = candidate, true
				return res, nil
			}
		}
	}
	return res, nil
}

// probe reports whether path is a regular file and records it in trace.
func (r *Resolver) probe(ctx context.Context, path string, trace *resolver.DependencyTrace) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	kind, err := r.lookup(path)
	if err != nil {
		return false, err
	}
	switch kind {
	case kindFile:
		trace.Files.Insert(path)
		return true, nil
	case kindDir:
		trace.Contexts.Insert(path)
	default:
		trace.Missing.Insert(path)
	}
	return false, nil
}

func (r *Resolver) lookup(path string) (entryKind, error) {
	if kind, ok := r.cache.Get(path); ok {
		return kind, nil
	}
	info, err := r.stat(path)
	var kind entryKind
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = kindMissing
	case err != nil:
		return kindMissing, fmt.Errorf("fsresolver: stat %s: %w", path, err)
	case info.IsDir():
		kind = kindDir
	default:
		kind = kindFile
	}
	r.cache.Add(path, kind)
	return kind, nil
}
