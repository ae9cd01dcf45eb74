// Package deps translates a package's declared npm dependencies into Maven
// dependency descriptors.
package deps

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/git-pkgs/npm2maven/internal/core"
	"github.com/git-pkgs/npm2maven/internal/version"
)

const defaultConcurrency = 16

// VersionTranslator converts one dependency's version expression.
type VersionTranslator interface {
	Translate(ctx context.Context, name core.Name, expr string) (string, error)
}

// Translator fans a dependency list out to the coordinate mapper and the
// version translator.
type Translator struct {
	versions    VersionTranslator
	concurrency int64
}

// Option configures a Translator.
type Option func(*Translator)

// WithConcurrency bounds the number of in-flight entries.
func WithConcurrency(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.concurrency = int64(n)
		}
	}
}

// New returns a Translator that resolves open ranges through latest.
func New(latest core.LatestVersioner, opts ...Option) *Translator {
	return NewWithVersions(version.NewTranslator(latest), opts...)
}

// NewWithVersions returns a Translator using an explicit VersionTranslator.
func NewWithVersions(v VersionTranslator, opts ...Option) *Translator {
	t := &Translator{versions: v, concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TranslateAll translates every entry concurrently. The result has one
// descriptor per entry, in input order. If any entry fails the call returns a
// *core.ResolutionError listing every failure together with the descriptors
// that did translate.
func (t *Translator) TranslateAll(ctx context.Context, declared []core.Dependency) ([]core.Descriptor, error) {
	if len(declared) == 0 {
		return []core.Descriptor{}, nil
	}

	results := make([]core.Descriptor, len(declared))
	failures := make([]*core.DependencyError, len(declared))
	sem := semaphore.NewWeighted(t.concurrency)
	var wg sync.WaitGroup

	for i, d := range declared {
		wg.Add(1)
		go func(i int, d core.Dependency) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				failures[i] = &core.DependencyError{Name: d.Name, Requirements: d.Requirements, Err: err}
				return
			}
			defer sem.Release(1)

			desc, err := t.translate(ctx, d)
			if err != nil {
				failures[i] = asDependencyError(d, err)
				return
			}
			results[i] = desc
		}(i, d)
	}
	wg.Wait()

	var resolved []core.Descriptor
	var failed []*core.DependencyError
	for i := range declared {
		if failures[i] != nil {
			failed = append(failed, failures[i])
			continue
		}
		resolved = append(resolved, results[i])
	}

	if len(failed) > 0 {
		translations.WithLabelValues("error").Add(float64(len(failed)))
		translations.WithLabelValues("ok").Add(float64(len(resolved)))
		return nil, &core.ResolutionError{Failures: failed, Resolved: resolved}
	}
	translations.WithLabelValues("ok").Add(float64(len(resolved)))
	return resolved, nil
}

func (t *Translator) translate(ctx context.Context, d core.Dependency) (core.Descriptor, error) {
	name, err := core.ParseName(d.Name)
	if err != nil {
		return core.Descriptor{}, err
	}
	v, err := t.versions.Translate(ctx, name, d.Requirements)
	if err != nil {
		return core.Descriptor{}, err
	}
	return core.Descriptor{
		GroupID:    name.MvnGroupID,
		ArtifactID: name.MvnArtifactID,
		Version:    v,
	}, nil
}

func asDependencyError(d core.Dependency, err error) *core.DependencyError {
	var de *core.DependencyError
	if errors.As(err, &de) {
		return de
	}
	return &core.DependencyError{Name: d.Name, Requirements: d.Requirements, Err: err}
}
