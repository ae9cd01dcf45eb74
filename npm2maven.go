// Package npm2maven materializes npm packages as Maven artifacts.
//
// Every npm package is given Maven coordinates under the org.mvnpm group,
// its dependency ranges are translated to Maven version ranges, and its
// tarball is repackaged as a jar. The result is a directory laid out like a
// Maven repository that any Maven or Gradle build can resolve from.
//
// Basic usage:
//
//	reg := npm2maven.New("", npm2maven.DefaultClient())
//	m := npm2maven.NewMaterializer(reg, "repository")
//	res, err := m.Materialize(ctx, "@lit/reactive-element", "latest")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(res.POM)
package npm2maven

import (
	"context"
	"fmt"
	"io"

	"github.com/git-pkgs/npm2maven/client"
	"github.com/git-pkgs/npm2maven/internal/archive"
	"github.com/git-pkgs/npm2maven/internal/core"
	"github.com/git-pkgs/npm2maven/internal/deps"
	"github.com/git-pkgs/npm2maven/internal/materialize"
	"github.com/git-pkgs/npm2maven/internal/npm"
	"github.com/git-pkgs/npm2maven/internal/pom"
	"github.com/git-pkgs/npm2maven/internal/store"
	"github.com/git-pkgs/npm2maven/internal/version"
)

// Re-export types from internal/core
type (
	// Name is an npm package name together with its Maven coordinates.
	Name = core.Name

	// Registry is the npm registry collaborator.
	Registry = core.Registry

	// Package is one version document from the npm registry.
	Package = core.Package

	// Project is the package-level document from the npm registry.
	Project = core.Project

	// Dependency is a declared npm dependency.
	Dependency = core.Dependency

	// Descriptor is a translated Maven dependency.
	Descriptor = core.Descriptor

	// PURL is a parsed Package URL.
	PURL = core.PURL

	// SearchResults is one page of a registry text search.
	SearchResults = core.SearchResults

	// SearchResult is one search hit.
	SearchResult = core.SearchResult

	// Result describes the files a materialization produced.
	Result = materialize.Result

	// Materializer writes package versions into a repository directory.
	Materializer = materialize.Materializer
)

// Re-export types from client
type (
	// Client is an HTTP client with retry logic for registry APIs.
	Client = client.Client

	// URLBuilder constructs URLs for a registry.
	URLBuilder = client.URLBuilder

	// RateLimiter controls request pacing.
	RateLimiter = client.RateLimiter
)

// GroupPrefix is the Maven group every npm package lives under.
const GroupPrefix = core.GroupPrefix

// Re-export errors
var (
	ErrNotFound             = client.ErrNotFound
	ErrInvalidIdentity      = core.ErrInvalidIdentity
	ErrDependencyResolution = core.ErrDependencyResolution
	ErrSerialization        = core.ErrSerialization
	ErrTranscode            = core.ErrTranscode
	ErrDerivation           = core.ErrDerivation
)

// Error types
type (
	HTTPError       = client.HTTPError
	NotFoundError   = client.NotFoundError
	RateLimitError  = client.RateLimitError
	IdentityError   = core.IdentityError
	DependencyError = core.DependencyError
	ResolutionError = core.ResolutionError
	TranscodeError  = core.TranscodeError
)

// New creates an npm registry client.
// If baseURL is empty, the public npm registry is used.
// If c is nil, DefaultClient() is used.
func New(baseURL string, c *Client) Registry {
	if c == nil {
		c = DefaultClient()
	}
	return npm.New(baseURL, c)
}

// Search runs a full-text query against reg, which must come from New.
// page is 1-based.
func Search(ctx context.Context, reg Registry, text string, page int) (*SearchResults, error) {
	r, ok := reg.(*npm.Registry)
	if !ok {
		return nil, fmt.Errorf("search: unsupported registry %T", reg)
	}
	return r.Search(ctx, text, page)
}

// NewMaterializer returns a Materializer that writes into the repository at root.
// Dependency ranges are resolved against reg.
func NewMaterializer(reg Registry, root string) *Materializer {
	var opts []materialize.Option
	if u, ok := reg.(interface{ URLs() URLBuilder }); ok {
		opts = append(opts, materialize.WithURLs(u.URLs()))
	}
	return materialize.New(reg, store.New(root), opts...)
}

// DefaultClient returns a client with sensible defaults:
// - 30s timeout
// - 5 retries with exponential backoff
// - Retry on 429 and 5xx responses
func DefaultClient() *Client {
	return client.DefaultClient()
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	return client.NewClient(opts...)
}

// Option configures a Client.
type Option = client.Option

// WithTimeout sets the HTTP client timeout.
var WithTimeout = client.WithTimeout

// WithMaxRetries sets the maximum number of retries.
var WithMaxRetries = client.WithMaxRetries

// WithToken sends a bearer token with every request.
var WithToken = client.WithToken

// WithRequestsPerSecond paces requests.
var WithRequestsPerSecond = client.WithRequestsPerSecond

// BuildURLs returns a map of all non-empty URLs for a package.
// Keys are "registry", "download", "docs", and "purl".
func BuildURLs(urls URLBuilder, name, version string) map[string]string {
	return client.BuildURLs(urls, name, version)
}

// DefaultURL returns the public npm registry URL.
func DefaultURL() string {
	return client.DefaultRegistryURL
}

// ParseName maps an npm package name ("name" or "@scope/name") to its Maven coordinates.
func ParseName(name string) (Name, error) {
	return core.ParseName(name)
}

// EscapeSegment makes s safe for a Maven groupId or artifactId segment.
func EscapeSegment(s string) string {
	return core.EscapeSegment(s)
}

// NameFromCoordinates maps an org.mvnpm groupId and artifactId back to the npm package.
func NameFromCoordinates(groupID, artifactID string) (Name, error) {
	return core.NameFromCoordinates(groupID, artifactID)
}

// ParsePURL parses a Package URL string into its components.
func ParsePURL(purl string) (*PURL, error) {
	return core.ParsePURL(purl)
}

// NameFromPURL maps an npm or org.mvnpm Maven purl to a Name and its version.
func NameFromPURL(purl string) (Name, string, error) {
	return core.NameFromPURL(purl)
}

// ConvertVersion rewrites an npm version expression as a Maven version or range.
// Open-ended ranges are left open; TranslateVersion closes them.
func ConvertVersion(expr string) string {
	return version.Convert(expr)
}

// TranslateVersion rewrites an npm version expression for the named package,
// closing an open upper bound at the package's latest version.
func TranslateVersion(ctx context.Context, reg Registry, name Name, expr string) (string, error) {
	return version.NewTranslator(reg).Translate(ctx, name, expr)
}

// TranslateDependencies translates declared npm dependencies into Maven
// descriptors in declaration order. Failures are collected into a single
// ResolutionError.
func TranslateDependencies(ctx context.Context, reg Registry, declared []Dependency) ([]Descriptor, error) {
	return deps.New(reg).TranslateAll(ctx, declared)
}

// SynthesizeDescriptor renders the pom for pkg with the given dependencies.
func SynthesizeDescriptor(pkg *Package, descriptors []Descriptor) ([]byte, error) {
	return pom.Synthesize(pkg, descriptors)
}

// WriteDescriptor writes the pom for pkg to w.
func WriteDescriptor(w io.Writer, pkg *Package, descriptors []Descriptor) error {
	return pom.Write(w, pkg, descriptors)
}

// TranscodeArchive copies every regular file of a gzipped tarball into a jar.
func TranscodeArchive(ctx context.Context, r io.Reader, w io.Writer) error {
	return archive.Transcode(ctx, r, w)
}

// TranscodeFile writes the jar form of the tarball at src to dst unless dst
// already exists. It reports whether dst was created.
func TranscodeFile(ctx context.Context, src, dst string) (bool, error) {
	return archive.TranscodeFile(ctx, src, dst)
}

// ParseTarget reads "name", "name@version", "@scope/name@version" or an npm purl.
func ParseTarget(s string) (Name, string, error) {
	return core.ParseTarget(s)
}

// BulkFetchPackages fetches package records for multiple targets in parallel.
// Targets use the ParseTarget forms; a missing version means "latest".
// Individual fetch errors are silently ignored - those targets are omitted from results.
func BulkFetchPackages(ctx context.Context, reg Registry, targets []string) map[string]*Package {
	return core.BulkFetchPackages(ctx, reg, targets)
}

// BulkFetchPackagesWithConcurrency fetches packages with a custom concurrency limit.
func BulkFetchPackagesWithConcurrency(ctx context.Context, reg Registry, targets []string, concurrency int) map[string]*Package {
	return core.BulkFetchPackagesWithConcurrency(ctx, reg, targets, concurrency)
}

// BulkFetchLatestVersions looks up the "latest" dist-tag for multiple names in parallel.
func BulkFetchLatestVersions(ctx context.Context, reg Registry, names []string) map[string]string {
	return core.BulkFetchLatestVersions(ctx, reg, names)
}

// BulkFetchLatestVersionsWithConcurrency fetches latest versions with a custom concurrency limit.
func BulkFetchLatestVersionsWithConcurrency(ctx context.Context, reg Registry, names []string, concurrency int) map[string]string {
	return core.BulkFetchLatestVersionsWithConcurrency(ctx, reg, names, concurrency)
}
