package core

import (
	"fmt"
	"strings"

	packageurl "github.com/package-url/packageurl-go"
)

// PURL wraps packageurl.PackageURL with npm-specific helpers.
type PURL struct {
	packageurl.PackageURL
}

// FullName returns the package name in the format expected by the registry.
// For npm: "@babel/core", for maven: "org.mvnpm:lodash"
func (p PURL) FullName() string {
	if p.Namespace == "" {
		return p.Name
	}
	switch p.Type {
	case "npm":
		// packageurl-go keeps @ in namespace, so "@babel" + "/" + "core" = "@babel/core"
		return p.Namespace + "/" + p.Name
	case "maven":
		return p.Namespace + ":" + p.Name
	default:
		return p.Namespace + "/" + p.Name
	}
}

// ParsePURL parses a Package URL string into its components.
// Supports both package PURLs (pkg:npm/lodash) and version PURLs (pkg:npm/lodash@4.17.21).
func ParsePURL(purl string) (*PURL, error) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return nil, err
	}
	return &PURL{p}, nil
}

// NameFromPURL returns the npm Name and version carried by an npm PURL or by
// a Maven PURL under the org.mvnpm group.
func NameFromPURL(purl string) (Name, string, error) {
	p, err := ParsePURL(purl)
	if err != nil {
		return Name{}, "", err
	}
	var n Name
	switch p.Type {
	case "npm":
		n, err = ParseName(p.FullName())
	case "maven":
		n, err = NameFromCoordinates(p.Namespace, p.Name)
	default:
		return Name{}, "", fmt.Errorf("unsupported purl type %q, want npm or maven", p.Type)
	}
	if err != nil {
		return Name{}, "", err
	}
	return n, p.Version, nil
}

// NpmPURL returns the npm Package URL for n at version.
func (n Name) NpmPURL(version string) string {
	return packageurl.NewPackageURL("npm", n.NpmNamespace, n.NpmName, version, nil, "").ToString()
}

// MavenPURL returns the Maven Package URL for n at version.
func (n Name) MavenPURL(version string) string {
	return packageurl.NewPackageURL("maven", n.MvnGroupID, n.MvnArtifactID, version, nil, "").ToString()
}

// LooksLikePURL reports whether s should be parsed with ParsePURL rather than ParseName.
func LooksLikePURL(s string) bool {
	return strings.HasPrefix(s, "pkg:")
}
