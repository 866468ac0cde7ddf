// Package file implements delimiter listing over a local directory tree.
//
// Keys are slash-separated paths relative to BaseDir. Directories surface as
// common prefixes, regular files as objects. The provider is used for local
// fixtures and offline browsing.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/3leaps/nimbusview/pkg/provider"
)

// DefaultMaxKeys is the page size used when the caller does not set one.
const DefaultMaxKeys = 1000

// Provider implements provider.Provider for local filesystem paths.
type Provider struct {
	baseDir string
}

var _ provider.Provider = (*Provider)(nil)

type Config struct {
	BaseDir string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("base dir is required")
	}
	return nil
}

func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := filepath.Clean(cfg.BaseDir)
	st, err := os.Stat(base)
	if err != nil {
		return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderFile, Bucket: base, Err: provider.ErrBucketNotFound}
	}
	if !st.IsDir() {
		return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderFile, Bucket: base, Err: fmt.Errorf("not a directory")}
	}
	return &Provider{baseDir: base}, nil
}

func (p *Provider) Close() error { return nil }

type listedKey struct {
	key   string
	isDir bool
	info  os.FileInfo
}

// ListWithDelimiter lists one directory level under opts.Prefix.
//
// The continuation token is the last key returned; the next page starts
// strictly after it. Only "/" is supported as delimiter.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Delimiter != "" && opts.Delimiter != "/" {
		return nil, p.wrapError(opts.Prefix, fmt.Errorf("unsupported delimiter %q", opts.Delimiter))
	}
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	prefix := strings.TrimPrefix(opts.Prefix, "/")
	if opts.ContinuationToken != "" && !strings.HasPrefix(opts.ContinuationToken, prefix) {
		return nil, &provider.ProviderError{Op: "ListWithDelimiter", Provider: provider.ProviderFile, Bucket: p.baseDir, Key: prefix, Err: provider.ErrInvalidCursor}
	}

	keys, err := p.collectLevel(prefix)
	if err != nil {
		return nil, p.wrapError(prefix, err)
	}

	start := 0
	if opts.ContinuationToken != "" {
		start = sort.Search(len(keys), func(i int) bool { return keys[i].key > opts.ContinuationToken })
	}
	end := start + maxKeys
	if end > len(keys) {
		end = len(keys)
	}

	res := &provider.ListWithDelimiterResult{}
	for _, k := range keys[start:end] {
		if k.isDir {
			res.CommonPrefixes = append(res.CommonPrefixes, k.key)
			continue
		}
		res.Objects = append(res.Objects, provider.ObjectSummary{
			Key:             k.key,
			Size:            k.info.Size(),
			HasSize:         true,
			LastModified:    k.info.ModTime().UTC(),
			HasLastModified: true,
		})
	}
	if end < len(keys) {
		res.IsTruncated = true
		res.ContinuationToken = keys[end-1].key
	}
	return res, nil
}

// collectLevel returns the sorted keys directly under prefix.
func (p *Provider) collectLevel(prefix string) ([]listedKey, error) {
	dirPart := ""
	namePart := prefix
	if idx := strings.LastIndex(prefix, "/"); idx >= 0 {
		dirPart = prefix[:idx+1]
		namePart = prefix[idx+1:]
	}

	dir, err := p.fullPath(dirPart)
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	keys := make([]listedKey, 0, len(dirEntries))
	for _, d := range dirEntries {
		if !strings.HasPrefix(d.Name(), namePart) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		if d.IsDir() {
			keys = append(keys, listedKey{key: dirPart + d.Name() + "/", isDir: true, info: info})
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		keys = append(keys, listedKey{key: dirPart + d.Name(), info: info})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].key < keys[j].key })
	return keys, nil
}

func (p *Provider) fullPath(key string) (string, error) {
	key = strings.TrimLeft(key, "/")
	// Prevent path traversal.
	clean := filepath.Clean("/" + key)
	clean = strings.TrimPrefix(clean, "/")
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid key path")
	}
	return filepath.Join(p.baseDir, filepath.FromSlash(clean)), nil
}

func (p *Provider) wrapError(key string, err error) error {
	wrapped := &provider.ProviderError{Op: "ListWithDelimiter", Provider: provider.ProviderFile, Bucket: p.baseDir, Key: key, Err: err}
	switch {
	case os.IsNotExist(err):
		wrapped.Err = provider.ErrNotFound
	case os.IsPermission(err):
		wrapped.Err = provider.ErrAccessDenied
	}
	return wrapped
}
