package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultRegistryURL is the public npm registry.
const DefaultRegistryURL = "https://registry.npmjs.org"

// URLBuilder constructs URLs for an npm registry.
type URLBuilder interface {
	// Project is the package-level document (all versions, dist-tags).
	Project(name string) string
	// Package is the document for one version or dist-tag.
	Package(name, version string) string
	// Tarball is the conventional tarball location for a version.
	Tarball(name, version string) string
	// Page is the human-facing package page.
	Page(name, version string) string
}

// NpmURLs is the URLBuilder for registries laid out like registry.npmjs.org.
type NpmURLs struct {
	BaseURL string
}

// NewNpmURLs returns a builder rooted at baseURL, or the public registry when empty.
func NewNpmURLs(baseURL string) *NpmURLs {
	if baseURL == "" {
		baseURL = DefaultRegistryURL
	}
	return &NpmURLs{BaseURL: strings.TrimSuffix(baseURL, "/")}
}

// escapeName keeps the leading '@' of a scope and escapes the '/' that
// separates it from the package, which is what the registry expects.
func escapeName(name string) string {
	return url.PathEscape(name)
}

func (u *NpmURLs) Project(name string) string {
	return fmt.Sprintf("%s/%s", u.BaseURL, escapeName(name))
}

func (u *NpmURLs) Package(name, version string) string {
	if version == "" {
		version = "latest"
	}
	return fmt.Sprintf("%s/%s/%s", u.BaseURL, escapeName(name), url.PathEscape(version))
}

func (u *NpmURLs) Tarball(name, version string) string {
	if version == "" {
		return ""
	}
	shortName := name
	if _, after, ok := strings.Cut(name, "/"); ok {
		shortName = after
	}
	return fmt.Sprintf("%s/%s/-/%s-%s.tgz", u.BaseURL, name, shortName, version)
}

func (u *NpmURLs) Page(name, version string) string {
	if version != "" {
		return fmt.Sprintf("https://www.npmjs.com/package/%s/v/%s", name, version)
	}
	return fmt.Sprintf("https://www.npmjs.com/package/%s", name)
}

// Search is the registry's full-text search endpoint.
func (u *NpmURLs) Search(text string, from, size int) string {
	q := url.Values{}
	q.Set("text", text)
	q.Set("from", strconv.Itoa(from))
	q.Set("size", strconv.Itoa(size))
	return u.BaseURL + "/-/v1/search?" + q.Encode()
}

// BuildURLs returns a map of all non-empty URLs for a package.
// Keys are "project", "package", "tarball" and "page".
func BuildURLs(urls URLBuilder, name, version string) map[string]string {
	result := make(map[string]string)
	if v := urls.Project(name); v != "" {
		result["project"] = v
	}
	if v := urls.Package(name, version); v != "" {
		result["package"] = v
	}
	if v := urls.Tarball(name, version); v != "" {
		result["tarball"] = v
	}
	if v := urls.Page(name, version); v != "" {
		result["page"] = v
	}
	return result
}
