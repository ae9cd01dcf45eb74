package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/git-pkgs/npm2maven/internal/core"
)

func TestFetchSuccess(t *testing.T) {
	content := "test dl content"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/gzip")
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.Header().Set("ETag", `"abc123"`)
		_, _ = w.Write([]byte(content))
	}))
	defer server.Close()

	f := NewFetcher()
	defer f.Close()
	dl, err := f.Fetch(context.Background(), server.URL+"/test.tgz")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer func() { _ = dl.Body.Close() }()

	if dl.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", dl.Size, len(content))
	}
	if dl.ContentType != "application/gzip" {
		t.Errorf("ContentType = %q, want %q", dl.ContentType, "application/gzip")
	}
	if dl.ETag != `"abc123"` {
		t.Errorf("ETag = %q, want %q", dl.ETag, `"abc123"`)
	}

	body, err := io.ReadAll(dl.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(body) != content {
		t.Errorf("body = %q, want %q", string(body), content)
	}
}

func TestFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewFetcher()
	defer f.Close()
	_, err := f.Fetch(context.Background(), server.URL+"/missing.tgz")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch = %v, want ErrNotFound", err)
	}
}

func TestFetchRetries(t *testing.T) {
	tests := []struct {
		name         string
		failures     int32
		status       int
		maxRetries   int
		wantAttempts int32
		wantErr      error
	}{
		{"rate limited then ok", 2, http.StatusTooManyRequests, 5, 3, nil},
		{"unavailable then ok", 1, http.StatusServiceUnavailable, 5, 2, nil},
		{"bad gateway then ok", 1, http.StatusBadGateway, 5, 2, nil},
		{"always unavailable", 100, http.StatusServiceUnavailable, 2, 3, ErrUpstreamDown},
		{"no retries", 100, http.StatusInternalServerError, 0, 1, ErrUpstreamDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if attempts.Add(1) <= tt.failures {
					w.WriteHeader(tt.status)
					return
				}
				_, _ = w.Write([]byte("tarball"))
			}))
			defer server.Close()

			f := NewFetcher(WithMaxRetries(tt.maxRetries), WithBaseDelay(5*time.Millisecond))
			defer f.Close()
			dl, err := f.Fetch(context.Background(), server.URL+"/pkg-1.0.0.tgz")
			if dl != nil {
				_ = dl.Body.Close()
			}
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Fetch = %v, want %v", err, tt.wantErr)
			}
			if got := attempts.Load(); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
		})
	}
}

func TestFetchContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte("success"))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	f := NewFetcher()
	defer f.Close()
	_, err := f.Fetch(ctx, server.URL+"/test.tgz")
	if err == nil {
		t.Error("expected error on context cancellation")
	}
}

func TestFetchUnknownSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Chunked encoding, no Content-Length
		w.Header().Set("Transfer-Encoding", "chunked")
		_, _ = w.Write([]byte("chunk1"))
	}))
	defer server.Close()

	f := NewFetcher()
	defer f.Close()
	dl, err := f.Fetch(context.Background(), server.URL+"/test.tgz")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer func() { _ = dl.Body.Close() }()

	if dl.Size != -1 {
		t.Errorf("Size = %d, want -1 for unknown", dl.Size)
	}
}

func TestHead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Method = %s, want HEAD", r.Method)
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", "12345")
	}))
	defer server.Close()

	f := NewFetcher()
	defer f.Close()
	size, contentType, err := f.Head(context.Background(), server.URL+"/test.tgz")
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}

	if size != 12345 {
		t.Errorf("size = %d, want 12345", size)
	}
	if contentType != "application/octet-stream" {
		t.Errorf("contentType = %q, want %q", contentType, "application/octet-stream")
	}
}

func TestHeadNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewFetcher()
	defer f.Close()
	_, _, err := f.Head(context.Background(), server.URL+"/missing.tgz")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Head = %v, want ErrNotFound", err)
	}
}

func TestFetchUserAgent(t *testing.T) {
	var receivedUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewFetcher(WithUserAgent("custom-agent/2.0"))
	defer f.Close()
	dl, _ := f.Fetch(context.Background(), server.URL+"/test.tgz")
	if dl != nil {
		_ = dl.Body.Close()
	}

	if receivedUA != "custom-agent/2.0" {
		t.Errorf("User-Agent = %q, want %q", receivedUA, "custom-agent/2.0")
	}
}

func TestFetchLargeTarball(t *testing.T) {
	// 1MB dl
	content := strings.Repeat("x", 1024*1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(content))
	}))
	defer server.Close()

	f := NewFetcher()
	defer f.Close()
	dl, err := f.Fetch(context.Background(), server.URL+"/large.tgz")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer func() { _ = dl.Body.Close() }()

	body, err := io.ReadAll(dl.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(body) != len(content) {
		t.Errorf("body length = %d, want %d", len(body), len(content))
	}
}

func TestFetchDNSCaching(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewFetcher()
	defer f.Close()

	// Make multiple requests to the same host
	for i := range 3 {
		dl, err := f.Fetch(context.Background(), server.URL+"/test.tgz")
		if err != nil {
			t.Fatalf("Fetch %d failed: %v", i+1, err)
		}
		_ = dl.Body.Close()
	}

	if requestCount != 3 {
		t.Errorf("requestCount = %d, want 3", requestCount)
	}
}

func TestFetchBearerToken(t *testing.T) {
	var got []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	host := strings.TrimPrefix(server.URL, "http://")
	f := NewFetcher(WithBearerToken(host, "s3cret"))
	defer f.Close()

	dl, err := f.Fetch(context.Background(), server.URL+"/private.tgz")
	if err != nil {
		t.Fatal(err)
	}
	_ = dl.Body.Close()

	other := NewFetcher(WithBearerToken("registry.example.com", "s3cret"))
	defer other.Close()
	dl, err = other.Fetch(context.Background(), server.URL+"/public.tgz")
	if err != nil {
		t.Fatal(err)
	}
	_ = dl.Body.Close()

	if len(got) != 2 || got[0] != "Bearer s3cret" || got[1] != "" {
		t.Errorf("Authorization headers = %q, want [\"Bearer s3cret\" \"\"]", got)
	}
}

func TestFetchClientErrorNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("forbidden"))
	}))
	defer server.Close()

	f := NewFetcher(WithBaseDelay(time.Millisecond))
	defer f.Close()
	_, err := f.Fetch(context.Background(), server.URL+"/x.tgz")

	var httpErr *core.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusForbidden || httpErr.Body != "forbidden" {
		t.Fatalf("Fetch = %v, want HTTP 403 error", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	f := NewFetcher()
	f.Close()
	f.Close()
}
