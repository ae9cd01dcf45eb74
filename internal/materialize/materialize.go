// Package materialize turns one npm package version into a set of Maven
// repository artifacts: descriptor, tarball and binary jar. The sources jar
// and the checksum files follow from the store's Written events.
package materialize

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/git-pkgs/npm2maven/client"
	"github.com/git-pkgs/npm2maven/fetch"
	"github.com/git-pkgs/npm2maven/internal/archive"
	"github.com/git-pkgs/npm2maven/internal/core"
	"github.com/git-pkgs/npm2maven/internal/deps"
	"github.com/git-pkgs/npm2maven/internal/pom"
	"github.com/git-pkgs/npm2maven/internal/store"
)

// DependencyTranslator is implemented by *deps.Translator.
type DependencyTranslator interface {
	TranslateAll(ctx context.Context, declared []core.Dependency) ([]core.Descriptor, error)
}

// PackageFetcher is the part of core.Registry the materializer needs.
type PackageFetcher interface {
	FetchPackage(ctx context.Context, name, version string) (*core.Package, error)
}

// Result lists the primary artifacts of one materialization. Created is
// false when every file was already present.
type Result struct {
	Name    core.Name
	Version string
	POM     string
	Tarball string
	Jar     string
	Created bool
}

// Materializer writes npm packages into a Store.
type Materializer struct {
	registry   PackageFetcher
	store      *store.Store
	translator DependencyTranslator
	downloader fetch.Downloader
	urls       client.URLBuilder
	verify     bool
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithTranslator replaces the dependency translator. The default resolves
// open ranges through the registry when it implements core.LatestVersioner.
func WithTranslator(t DependencyTranslator) Option {
	return func(m *Materializer) {
		m.translator = t
	}
}

// WithDownloader sets the tarball downloader.
func WithDownloader(d fetch.Downloader) Option {
	return func(m *Materializer) {
		m.downloader = d
	}
}

// WithURLs sets the URL convention used when a version record has no
// dist.tarball.
func WithURLs(u client.URLBuilder) Option {
	return func(m *Materializer) {
		m.urls = u
	}
}

// WithIntegrity toggles checking downloads against dist.integrity and
// dist.shasum. On by default.
func WithIntegrity(on bool) Option {
	return func(m *Materializer) {
		m.verify = on
	}
}

// New returns a Materializer reading from registry and writing to s.
func New(registry PackageFetcher, s *store.Store, opts ...Option) *Materializer {
	m := &Materializer{
		registry: registry,
		store:    s,
		verify:   true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.translator == nil {
		var latest core.LatestVersioner
		if lv, ok := registry.(core.LatestVersioner); ok {
			latest = lv
		}
		m.translator = deps.New(latest)
	}
	if m.downloader == nil {
		m.downloader = fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(), 0)
	}
	if m.urls == nil {
		m.urls = client.NewNpmURLs("")
	}
	return m
}

// Descriptor fetches name@version and returns its synthesized pom together
// with the package record. Nothing is written.
func (m *Materializer) Descriptor(ctx context.Context, name, version string) (*core.Package, []byte, error) {
	if _, err := core.ParseName(name); err != nil {
		return nil, nil, err
	}
	pkg, err := m.registry.FetchPackage(ctx, name, version)
	if err != nil {
		return nil, nil, err
	}
	descs, err := m.translator.TranslateAll(ctx, pkg.Dependencies)
	if err != nil {
		return pkg, nil, err
	}
	data, err := pom.Synthesize(pkg, descs)
	if err != nil {
		return pkg, nil, err
	}
	return pkg, data, nil
}

// Materialize writes the pom, tarball and binary jar for name@version.
// version may be a dist-tag; the result carries the concrete version.
//
// Dependencies are translated and the pom is built before anything is
// written, so a failed lookup or translation leaves the repository as it was.
// The tarball is stored before the pom so a published pom always has its
// tarball next to it.
func (m *Materializer) Materialize(ctx context.Context, name, version string) (*Result, error) {
	log := slog.With("request_id", uuid.NewString(), "package", name, "version", version)
	start := time.Now()

	res, err := m.materialize(ctx, log, name, version)
	duration.Observe(time.Since(start).Seconds())
	if err != nil {
		materializations.WithLabelValues("error").Inc()
		log.ErrorContext(ctx, "materialization failed", "error", err)
		return nil, err
	}
	if res.Created {
		materializations.WithLabelValues("created").Inc()
	} else {
		materializations.WithLabelValues("exists").Inc()
	}
	log.InfoContext(ctx, "materialized",
		"coordinates", res.Name.Coordinates(), "resolved", res.Version, "created", res.Created,
		"elapsed", time.Since(start))
	return res, nil
}

func (m *Materializer) materialize(ctx context.Context, log *slog.Logger, name, version string) (*Result, error) {
	pkg, pomData, err := m.Descriptor(ctx, name, version)
	if err != nil {
		return nil, err
	}
	n, v := pkg.Name, pkg.Version
	log.DebugContext(ctx, "descriptor ready", "dependencies", len(pkg.Dependencies), "resolved", v)

	res := &Result{Name: n, Version: v}

	res.Tarball, err = m.storeTarball(ctx, log, pkg, res)
	if err != nil {
		return nil, err
	}

	var created bool
	res.POM, created, err = m.store.CreateBytes(ctx, n, v, store.FileName(n, v, store.ExtPOM), pomData)
	if err != nil {
		return nil, fmt.Errorf("%w: storing pom: %w", core.ErrSerialization, err)
	}
	res.Created = res.Created || created

	res.Jar = m.store.Path(n, v, store.FileName(n, v, store.ExtJar))
	created, err = archive.TranscodeFile(ctx, res.Tarball, res.Jar,
		archive.WithRename(archive.StaticResources(n.NpmFullName)),
		archive.WithLocks(m.store.Locks()),
		archive.WithKind("binary"))
	if err != nil {
		return nil, err
	}
	if created {
		m.store.Finalize(ctx, res.Jar)
		res.Created = true
	}
	return res, nil
}

func (m *Materializer) storeTarball(ctx context.Context, log *slog.Logger, pkg *core.Package, res *Result) (string, error) {
	n, v := pkg.Name, pkg.Version
	fileName := store.FileName(n, v, store.ExtTgz)
	if p := m.store.Path(n, v, fileName); m.store.Exists(p) {
		log.DebugContext(ctx, "tarball already stored", "path", p)
		return p, nil
	}

	info, err := fetch.FromDist(n, v, pkg.Dist, m.urls)
	if err != nil {
		return "", err
	}
	p, created, err := m.store.CreateFile(ctx, n, v, fileName, func(w io.Writer) error {
		dl, err := m.downloader.Fetch(ctx, info.URL)
		if err != nil {
			return err
		}
		body := dl.Body
		if m.verify {
			body = fetch.Verify(body, info.URL, info.Integrity, info.Shasum)
		}
		defer body.Close()
		_, err = io.Copy(w, body)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("storing tarball %s: %w", info.URL, err)
	}
	res.Created = res.Created || created
	return p, nil
}
