package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/git-pkgs/npm2maven/client"
	"github.com/git-pkgs/npm2maven/internal/core"
)

type fakePackages struct {
	pkgs map[string]*core.Package
}

func (f fakePackages) FetchPackage(_ context.Context, name, version string) (*core.Package, error) {
	if p, ok := f.pkgs[name+"@"+version]; ok {
		return p, nil
	}
	return nil, &core.NotFoundError{Ecosystem: "npm", Name: name, Version: version}
}

func TestResolveByConvention(t *testing.T) {
	r := NewResolver(nil, nil)

	tests := []struct {
		name    string
		version string
		want    TarballInfo
	}{
		{
			name:    "lodash",
			version: "4.17.21",
			want: TarballInfo{
				Version:  "4.17.21",
				URL:      "https://registry.npmjs.org/lodash/-/lodash-4.17.21.tgz",
				Filename: "lodash-4.17.21.tgz",
			},
		},
		{
			name:    "@babel/core",
			version: "7.23.0",
			want: TarballInfo{
				Version:  "7.23.0",
				URL:      "https://registry.npmjs.org/@babel/core/-/core-7.23.0.tgz",
				Filename: "core-7.23.0.tgz",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := r.Resolve(context.Background(), core.MustParseName(tt.name), tt.version)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, *info); diff != "" {
				t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolvePrefersRegistryDist(t *testing.T) {
	reg := fakePackages{pkgs: map[string]*core.Package{
		"lit@latest": {
			Version: "3.1.0",
			Dist: core.Dist{
				Tarball:   "https://mirror.example.com/lit/-/lit-3.1.0.tgz",
				Integrity: "sha512-abc",
				Shasum:    "deadbeef",
			},
		},
		"bare@1.0.0": {Version: "1.0.0"},
	}}
	r := NewResolver(reg, client.NewNpmURLs("http://localhost:4873/"))

	info, err := r.Resolve(context.Background(), core.MustParseName("lit"), "latest")
	if err != nil {
		t.Fatal(err)
	}
	want := TarballInfo{
		Version:   "3.1.0",
		URL:       "https://mirror.example.com/lit/-/lit-3.1.0.tgz",
		Filename:  "lit-3.1.0.tgz",
		Integrity: "sha512-abc",
		Shasum:    "deadbeef",
	}
	if diff := cmp.Diff(want, *info); diff != "" {
		t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
	}

	info, err = r.Resolve(context.Background(), core.MustParseName("bare"), "1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if info.URL != "http://localhost:4873/bare/-/bare-1.0.0.tgz" {
		t.Errorf("fallback URL = %q", info.URL)
	}
}

func TestResolveNotFound(t *testing.T) {
	r := NewResolver(fakePackages{}, nil)
	_, err := r.Resolve(context.Background(), core.MustParseName("nope"), "1.0.0")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve = %v, want ErrNotFound", err)
	}
}

func TestFromDistNoURL(t *testing.T) {
	_, err := FromDist(core.MustParseName("x"), "", core.Dist{}, client.NewNpmURLs(""))
	if !errors.Is(err, ErrNoDownloadURL) {
		t.Errorf("FromDist = %v, want ErrNoDownloadURL", err)
	}
}

func TestFilenameFromURL(t *testing.T) {
	tests := map[string]string{
		"https://registry.npmjs.org/a/-/a-1.0.0.tgz":         "a-1.0.0.tgz",
		"https://cdn.example.com/a-1.0.0.tgz?token=abc#frag": "a-1.0.0.tgz",
		"a-1.0.0.tgz": "a-1.0.0.tgz",
	}
	for in, want := range tests {
		if got := filenameFromURL(in); got != want {
			t.Errorf("filenameFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}
