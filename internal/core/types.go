// Package core provides the shared types, errors and collaborator contracts.
package core

import (
	"context"
	"time"
)

// Package is a single published npm version, as read from the registry.
// The core only reads it; callers own it.
type Package struct {
	Name         Name
	Version      string
	Description  string
	Homepage     string
	License      string
	Author       *Person
	Repository   *Repository
	Bugs         *Bugs
	Maintainers  []Person
	Dependencies []Dependency // declaration order from the package document
	Dist         Dist
}

// Person is an author or maintainer.
type Person struct {
	Name  string
	Email string
	URL   string
}

// Repository is the declared source control location.
type Repository struct {
	Type string
	URL  string
}

// Bugs is the declared issue tracker.
type Bugs struct {
	URL   string
	Email string
}

// Dist describes the published tarball.
type Dist struct {
	Tarball   string
	Shasum    string
	Integrity string // sha512-...
}

// Dependency is one declared (name, version expression) pair.
type Dependency struct {
	Name         string
	Requirements string
}

// Project is the package-level document: every version and the dist-tags.
type Project struct {
	Name        string
	Description string
	DistTags    map[string]string
	Versions    []string
	Time        map[string]time.Time
}

// Latest returns the "latest" dist-tag, or "" when the registry does not declare one.
func (p *Project) Latest() string {
	if p == nil {
		return ""
	}
	return p.DistTags["latest"]
}

// SearchResult is one hit from a registry text search.
type SearchResult struct {
	Name        Name
	Version     string
	Description string
	Date        time.Time
	Homepage    string
	Score       float64
}

// SearchResults is one page of a registry text search.
type SearchResults struct {
	Total   int
	Page    int
	Results []SearchResult
}

// Registry is the npm registry collaborator.
type Registry interface {
	// FetchProject retrieves the package-level document.
	FetchProject(ctx context.Context, name string) (*Project, error)

	// FetchPackage retrieves one version. version may be a dist-tag such as "latest".
	FetchPackage(ctx context.Context, name, version string) (*Package, error)

	// LatestVersion returns the version the "latest" dist-tag points at.
	LatestVersion(ctx context.Context, name string) (string, error)
}

// LatestVersioner is the subset of Registry the version translator needs.
type LatestVersioner interface {
	LatestVersion(ctx context.Context, name string) (string, error)
}

// Descriptor is a translated Maven dependency.
type Descriptor struct {
	GroupID    string
	ArtifactID string
	Version    string
}
