// Package npm provides a registry client for npmjs.com and compatible registries.
package npm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/Masterminds/semver"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/git-pkgs/npm2maven/client"
	"github.com/git-pkgs/npm2maven/internal/core"
)

const (
	DefaultURL = client.DefaultRegistryURL
	ecosystem  = "npm"

	defaultLatestCacheSize = 4096
	defaultLatestCacheTTL  = 5 * time.Minute
)

var _ core.Registry = (*Registry)(nil)

type Registry struct {
	client *core.Client
	urls   *client.NpmURLs
	latest *expirable.LRU[string, string]
	group  singleflight.Group

	cacheSize int
	cacheTTL  time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithLatestCache sizes the cache of "latest" dist-tag lookups. A size of zero
// or less disables caching.
func WithLatestCache(size int, ttl time.Duration) Option {
	return func(r *Registry) {
		r.cacheSize = size
		r.cacheTTL = ttl
	}
}

func New(baseURL string, c *core.Client, opts ...Option) *Registry {
	if c == nil {
		c = core.DefaultClient()
	}
	r := &Registry{
		client:    c,
		urls:      client.NewNpmURLs(baseURL),
		cacheSize: defaultLatestCacheSize,
		cacheTTL:  defaultLatestCacheTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cacheSize > 0 {
		r.latest = expirable.NewLRU[string, string](r.cacheSize, nil, r.cacheTTL)
	}
	return r
}

func (r *Registry) URLs() core.URLBuilder {
	return r.urls
}

func (r *Registry) FetchProject(ctx context.Context, name string) (*core.Project, error) {
	var resp projectResponse
	if err := r.getJSON(ctx, r.urls.Project(name), name, "", &resp); err != nil {
		return nil, err
	}

	p := &core.Project{
		Name:        coalesceString(resp.Name, resp.ID, name),
		Description: resp.Description,
		DistTags:    resp.DistTags,
		Versions:    sortVersions(resp.Versions),
		Time:        make(map[string]time.Time, len(resp.Time)),
	}
	for k, v := range resp.Time {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			p.Time[k] = ts
		}
	}
	return p, nil
}

func (r *Registry) FetchPackage(ctx context.Context, name, version string) (*core.Package, error) {
	n, err := core.ParseName(name)
	if err != nil {
		return nil, err
	}
	if version == "" {
		version = "latest"
	}

	var v versionInfo
	if err := r.getJSON(ctx, r.urls.Package(name, version), name, version, &v); err != nil {
		return nil, err
	}

	pkg := &core.Package{
		Name:         n,
		Version:      v.Version,
		Description:  v.Description,
		Homepage:     extractString(v.Homepage),
		License:      extractLicense(v.License),
		Author:       extractPerson(v.Author),
		Repository:   extractRepository(v.Repository),
		Bugs:         extractBugs(v.Bugs),
		Maintainers:  extractPeople(v.Maintainers),
		Dependencies: []core.Dependency(v.Dependencies),
		Dist: core.Dist{
			Tarball:   v.Dist.Tarball,
			Shasum:    v.Dist.Shasum,
			Integrity: v.Dist.Integrity,
		},
	}
	if pkg.Version == "" {
		pkg.Version = version
	}
	return pkg, nil
}

// LatestVersion returns the version the "latest" dist-tag points at. Results
// are cached and concurrent lookups for one name share a single request, which
// is not cancelled when the caller that started it goes away.
func (r *Registry) LatestVersion(ctx context.Context, name string) (string, error) {
	if r.latest != nil {
		if v, ok := r.latest.Get(name); ok {
			latestLookups.WithLabelValues("hit").Inc()
			return v, nil
		}
	}
	latestLookups.WithLabelValues("miss").Inc()

	ch := r.group.DoChan(name, func() (any, error) {
		p, err := r.FetchProject(context.WithoutCancel(ctx), name)
		if err != nil {
			return "", err
		}
		latest := p.Latest()
		if latest == "" {
			return "", &core.NotFoundError{Ecosystem: ecosystem, Name: name, Version: "latest"}
		}
		if r.latest != nil {
			r.latest.Add(name, latest)
		}
		return latest, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Exists reports whether the registry has a package document for name.
func (r *Registry) Exists(ctx context.Context, name string) (bool, error) {
	status, err := r.client.Head(ctx, r.urls.Project(name))
	if status == http.StatusNotFound {
		registryRequests.WithLabelValues("not_found").Inc()
		return false, nil
	}
	if err != nil {
		registryRequests.WithLabelValues("error").Inc()
		return false, fmt.Errorf("npm registry %s: %w", name, err)
	}
	registryRequests.WithLabelValues("ok").Inc()
	return true, nil
}

func (r *Registry) getJSON(ctx context.Context, url, name, version string, v any) error {
	err := r.client.GetJSON(ctx, url, v)
	if err == nil {
		registryRequests.WithLabelValues("ok").Inc()
		return nil
	}
	var httpErr *core.HTTPError
	if errors.As(err, &httpErr) && httpErr.IsNotFound() {
		registryRequests.WithLabelValues("not_found").Inc()
		return &core.NotFoundError{Ecosystem: ecosystem, Name: name, Version: version}
	}
	registryRequests.WithLabelValues("error").Inc()
	return fmt.Errorf("npm registry %s: %w", name, err)
}

// sortVersions orders semver-parsable versions ascending, followed by anything
// else in lexical order.
func sortVersions(versions map[string]rawJSON) []string {
	type parsed struct {
		raw string
		v   *semver.Version
	}
	var good []parsed
	var rest []string
	for k := range versions {
		if v, err := semver.NewVersion(k); err == nil {
			good = append(good, parsed{k, v})
		} else {
			rest = append(rest, k)
		}
	}
	sort.Slice(good, func(i, j int) bool { return good[i].v.LessThan(good[j].v) })
	sort.Strings(rest)

	out := make([]string, 0, len(versions))
	for _, p := range good {
		out = append(out, p.raw)
	}
	return append(out, rest...)
}

func coalesceString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
