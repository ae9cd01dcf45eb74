package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultClient_UserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	var v map[string]any
	_ = DefaultClient().GetJSON(context.Background(), server.URL, &v)

	if gotUA != "npm2maven" {
		t.Errorf("default User-Agent = %q, want %q", gotUA, "npm2maven")
	}
}

func TestClient_WithUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	base := DefaultClient()
	var v map[string]any
	_ = base.WithUserAgent("custom-agent/2.0").GetJSON(context.Background(), server.URL, &v)

	if gotUA != "custom-agent/2.0" {
		t.Errorf("User-Agent = %q, want %q", gotUA, "custom-agent/2.0")
	}
	if base.userAgent != "npm2maven" {
		t.Errorf("WithUserAgent modified the receiver: %q", base.userAgent)
	}
}

func TestClient_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"lodash","dist-tags":{"latest":"4.17.21"}}`))
	}))
	defer server.Close()

	var got struct {
		Name     string            `json:"name"`
		DistTags map[string]string `json:"dist-tags"`
	}
	if err := DefaultClient().GetJSON(context.Background(), server.URL, &got); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if got.Name != "lodash" || got.DistTags["latest"] != "4.17.21" {
		t.Errorf("GetJSON decoded %+v", got)
	}
}

func TestClient_NotFoundIsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	var v map[string]any
	err := NewClient(WithBaseDelay(time.Millisecond)).GetJSON(context.Background(), server.URL, &v)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || !httpErr.IsNotFound() {
		t.Fatalf("GetJSON = %v, want 404 HTTPError", err)
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("attempts = %d, want 1", n)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	var got struct {
		OK bool `json:"ok"`
	}
	if err := NewClient(WithBaseDelay(time.Millisecond)).GetJSON(context.Background(), server.URL, &got); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if !got.OK {
		t.Errorf("decoded %+v, want ok", got)
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
}

func TestClient_MaxRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	var v map[string]any
	err := NewClient(WithMaxRetries(2), WithBaseDelay(time.Millisecond)).GetJSON(context.Background(), server.URL, &v)

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("GetJSON = %v, want RateLimitError", err)
	}
	// Initial attempt + 2 retries = 3 total
	if n := attempts.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
}

func TestClient_Head_UserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := DefaultClient().WithUserAgent("head-test/1.0")
	status, err := client.Head(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	if gotUA != "head-test/1.0" {
		t.Errorf("Head User-Agent = %q, want %q", gotUA, "head-test/1.0")
	}
}

func TestClient_Token(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	var v map[string]any
	if err := NewClient(WithToken("npm_abc")).GetJSON(context.Background(), server.URL, &v); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer npm_abc" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer npm_abc")
	}
}

func TestNpmURLs(t *testing.T) {
	urls := NewNpmURLs("https://registry.example.com/")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"project", urls.Project("lodash"), "https://registry.example.com/lodash"},
		{"project scoped", urls.Project("@babel/core"), "https://registry.example.com/@babel%2Fcore"},
		{"package", urls.Package("lodash", "4.17.21"), "https://registry.example.com/lodash/4.17.21"},
		{"package latest", urls.Package("lodash", ""), "https://registry.example.com/lodash/latest"},
		{"tarball", urls.Tarball("lodash", "4.17.21"), "https://registry.example.com/lodash/-/lodash-4.17.21.tgz"},
		{"tarball scoped", urls.Tarball("@babel/core", "7.24.0"), "https://registry.example.com/@babel/core/-/core-7.24.0.tgz"},
		{"tarball no version", urls.Tarball("lodash", ""), ""},
		{"page", urls.Page("lodash", "4.17.21"), "https://www.npmjs.com/package/lodash/v/4.17.21"},
		{"search", urls.Search("web components", 20, 20), "https://registry.example.com/-/v1/search?from=20&size=20&text=web+components"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestBuildURLs(t *testing.T) {
	got := BuildURLs(NewNpmURLs(""), "lodash", "")
	if _, ok := got["tarball"]; ok {
		t.Errorf("tarball present without a version: %v", got)
	}
	if got["project"] != "https://registry.npmjs.org/lodash" {
		t.Errorf("project = %q", got["project"])
	}
}
