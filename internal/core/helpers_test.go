package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		input       string
		wantName    string
		wantVersion string
		wantErr     bool
	}{
		{"left-pad", "left-pad", "", false},
		{"left-pad@1.3.0", "left-pad", "1.3.0", false},
		{"@lit/reactive-element", "@lit/reactive-element", "", false},
		{"@lit/reactive-element@2.0.4", "@lit/reactive-element", "2.0.4", false},
		{"vue@next", "vue", "next", false},
		{"pkg:npm/%40babel/core@7.24.0", "@babel/core", "7.24.0", false},
		{"pkg:npm/lodash", "lodash", "", false},
		{"@scope-only", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			n, v, err := ParseTarget(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTarget(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if n.NpmFullName != tt.wantName || v != tt.wantVersion {
				t.Errorf("ParseTarget(%q) = (%q, %q), want (%q, %q)", tt.input, n.NpmFullName, v, tt.wantName, tt.wantVersion)
			}
		})
	}
}

type fakeRegistry struct {
	mu       sync.Mutex
	versions map[string]string // name -> latest
	calls    []string
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeRegistry) record(call string) func() {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	n := f.inflight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return func() { f.inflight.Add(-1) }
}

func (f *fakeRegistry) FetchProject(_ context.Context, name string) (*Project, error) {
	v, ok := f.versions[name]
	if !ok {
		return nil, &NotFoundError{Ecosystem: "npm", Name: name}
	}
	return &Project{Name: name, DistTags: map[string]string{"latest": v}}, nil
}

func (f *fakeRegistry) FetchPackage(_ context.Context, name, version string) (*Package, error) {
	defer f.record(name + "@" + version)()
	latest, ok := f.versions[name]
	if !ok {
		return nil, &NotFoundError{Ecosystem: "npm", Name: name, Version: version}
	}
	if version == "latest" {
		version = latest
	}
	return &Package{Name: Name{NpmFullName: name}, Version: version}, nil
}

func (f *fakeRegistry) LatestVersion(_ context.Context, name string) (string, error) {
	defer f.record(name)()
	v, ok := f.versions[name]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return v, nil
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{versions: map[string]string{
		"left-pad":              "1.3.0",
		"@lit/reactive-element": "2.0.4",
		"tslib":                 "2.6.2",
	}}
}

func TestBulkFetchPackages(t *testing.T) {
	reg := newFakeRegistry()
	got := BulkFetchPackages(context.Background(), reg, []string{
		"left-pad@1.0.0",
		"@lit/reactive-element",
		"missing@1.0.0",
		"@broken",
	})

	versions := make(map[string]string, len(got))
	for target, pkg := range got {
		versions[target] = pkg.Version
	}
	want := map[string]string{
		"left-pad@1.0.0":        "1.0.0",
		"@lit/reactive-element": "2.0.4",
	}
	if diff := cmp.Diff(want, versions); diff != "" {
		t.Errorf("BulkFetchPackages mismatch (-want +got):\n%s", diff)
	}
	// "@broken" never reaches the registry.
	if len(reg.calls) != 3 {
		t.Errorf("registry calls = %v, want 3", reg.calls)
	}
}

func TestBulkFetchLatestVersions(t *testing.T) {
	reg := newFakeRegistry()
	got := BulkFetchLatestVersions(context.Background(), reg, []string{"left-pad", "tslib", "nope"})
	want := map[string]string{"left-pad": "1.3.0", "tslib": "2.6.2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BulkFetchLatestVersions mismatch (-want +got):\n%s", diff)
	}
}

func TestBulkFetchConcurrencyLimit(t *testing.T) {
	reg := newFakeRegistry()
	names := make([]string, 0, 40)
	for i := range 40 {
		names = append(names, fmt.Sprintf("pkg-%d", i))
	}
	BulkFetchLatestVersionsWithConcurrency(context.Background(), reg, names, 2)
	if peak := reg.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
	if len(reg.calls) != 40 {
		t.Errorf("calls = %d, want 40", len(reg.calls))
	}
}
