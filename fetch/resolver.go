package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/git-pkgs/npm2maven/client"
	"github.com/git-pkgs/npm2maven/internal/core"
)

// ErrNoDownloadURL is returned when neither the registry nor the URL
// convention yields a tarball location.
var ErrNoDownloadURL = errors.New("no download URL available")

// PackageFetcher is the part of core.Registry the resolver needs.
type PackageFetcher interface {
	FetchPackage(ctx context.Context, name, version string) (*core.Package, error)
}

// Resolver works out where a version's tarball lives.
type Resolver struct {
	registry PackageFetcher
	urls     client.URLBuilder
}

// NewResolver returns a Resolver. registry may be nil, in which case only the
// URL convention of urls is used. A nil urls means the public registry.
func NewResolver(registry PackageFetcher, urls client.URLBuilder) *Resolver {
	if urls == nil {
		urls = client.NewNpmURLs("")
	}
	return &Resolver{registry: registry, urls: urls}
}

// TarballInfo describes a downloadable tarball.
type TarballInfo struct {
	Version   string // concrete version, never a dist-tag when a registry was consulted
	URL       string
	Filename  string
	Integrity string // sha512-... or empty
	Shasum    string // hex sha1 or empty
}

// Resolve returns the tarball location for name@version. The registry's
// dist.tarball wins over the URL convention since mirrors rewrite it.
func (r *Resolver) Resolve(ctx context.Context, name core.Name, version string) (*TarballInfo, error) {
	if r.registry != nil {
		pkg, err := r.registry.FetchPackage(ctx, name.NpmFullName, version)
		if err != nil {
			return nil, fmt.Errorf("fetching package: %w", err)
		}
		return FromDist(name, pkg.Version, pkg.Dist, r.urls)
	}
	return FromDist(name, version, core.Dist{}, r.urls)
}

// FromDist builds a TarballInfo from an already fetched dist block, falling
// back to the registry's URL convention when the block has no tarball.
func FromDist(name core.Name, version string, dist core.Dist, urls client.URLBuilder) (*TarballInfo, error) {
	url := dist.Tarball
	if url == "" && urls != nil {
		url = urls.Tarball(name.NpmFullName, version)
	}
	if url == "" {
		return nil, fmt.Errorf("%s@%s: %w", name, version, ErrNoDownloadURL)
	}
	return &TarballInfo{
		Version:   version,
		URL:       url,
		Filename:  filenameFromURL(url),
		Integrity: dist.Integrity,
		Shasum:    dist.Shasum,
	}, nil
}

func filenameFromURL(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		return url[idx+1:]
	}
	return url
}
