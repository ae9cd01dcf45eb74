package core

import (
	"context"
	"strings"
	"sync"
)

const defaultConcurrency = 15

// ParseTarget reads a command-line package reference: "name", "name@version",
// "@scope/name", "@scope/name@version" or an npm purl. The version is empty
// when none is given.
func ParseTarget(s string) (Name, string, error) {
	s = strings.TrimSpace(s)
	if LooksLikePURL(s) {
		return NameFromPURL(s)
	}
	name, version := s, ""
	// The first '@' of a scoped name is not a version separator.
	if i := strings.LastIndex(s, "@"); i > 0 {
		name, version = s[:i], s[i+1:]
	}
	n, err := ParseName(name)
	if err != nil {
		return Name{}, "", err
	}
	return n, version, nil
}

// BulkFetchPackages fetches package records for multiple targets in parallel.
// Targets use the ParseTarget forms; a missing version means "latest".
// Individual fetch errors are silently ignored - those targets are omitted from results.
// Returns a map of target to Package.
func BulkFetchPackages(ctx context.Context, reg Registry, targets []string) map[string]*Package {
	return BulkFetchPackagesWithConcurrency(ctx, reg, targets, defaultConcurrency)
}

// BulkFetchPackagesWithConcurrency fetches packages with a custom concurrency limit.
func BulkFetchPackagesWithConcurrency(ctx context.Context, reg Registry, targets []string, concurrency int) map[string]*Package {
	results := make(map[string]*Package)
	var mu sync.Mutex
	sem := make(chan struct{}, max(concurrency, 1))
	var wg sync.WaitGroup

	for _, target := range targets {
		wg.Add(1)
		go func(t string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			n, version, err := ParseTarget(t)
			if err != nil {
				return
			}
			if version == "" {
				version = "latest"
			}
			pkg, err := reg.FetchPackage(ctx, n.NpmFullName, version)
			if err == nil && pkg != nil {
				mu.Lock()
				results[t] = pkg
				mu.Unlock()
			}
		}(target)
	}

	wg.Wait()
	return results
}

// BulkFetchLatestVersions looks up the "latest" dist-tag for multiple names in parallel.
// Returns a map of name to version; names that fail are omitted.
func BulkFetchLatestVersions(ctx context.Context, reg LatestVersioner, names []string) map[string]string {
	return BulkFetchLatestVersionsWithConcurrency(ctx, reg, names, defaultConcurrency)
}

// BulkFetchLatestVersionsWithConcurrency fetches latest versions with a custom concurrency limit.
func BulkFetchLatestVersionsWithConcurrency(ctx context.Context, reg LatestVersioner, names []string, concurrency int) map[string]string {
	results := make(map[string]string)
	var mu sync.Mutex
	sem := make(chan struct{}, max(concurrency, 1))
	var wg sync.WaitGroup

	for _, name := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			version, err := reg.LatestVersion(ctx, n)
			if err == nil && version != "" {
				mu.Lock()
				results[n] = version
				mu.Unlock()
			}
		}(name)
	}

	wg.Wait()
	return results
}
