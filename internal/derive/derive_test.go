package derive

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/git-pkgs/npm2maven/internal/core"
	"github.com/git-pkgs/npm2maven/internal/event"
	"github.com/git-pkgs/npm2maven/internal/pathlock"
	"github.com/git-pkgs/npm2maven/internal/store"
)

func tgz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func setup(t *testing.T) (*store.Store, *event.Bus) {
	t.Helper()
	bus := event.NewBus()
	locks := pathlock.New()
	s := store.New(t.TempDir(), store.WithBus(bus), store.WithLocks(locks))
	bus.Subscribe(NewTrigger(s, locks).Handle)
	return s, bus
}

func TestSourcesPath(t *testing.T) {
	if got, want := SourcesPath("/r/x/1.0.0/x-1.0.0.tgz"), "/r/x/1.0.0/x-1.0.0-sources.jar"; got != want {
		t.Errorf("SourcesPath = %q, want %q", got, want)
	}
}

func TestTgzWriteDerivesSourcesJar(t *testing.T) {
	s, bus := setup(t)
	name := core.MustParseName("x")

	p, _, err := s.CreateBytes(context.Background(), name, "1.0.0", "x-1.0.0.tgz",
		tgz(t, map[string]string{"package/index.js": "hi"}))
	if err != nil {
		t.Fatal(err)
	}
	bus.Wait()

	jar := SourcesPath(p)
	data, err := os.ReadFile(jar)
	if err != nil {
		t.Fatalf("sources jar missing: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "package/index.js" {
		t.Errorf("jar entries = %v", zr.File)
	}
	for _, suffix := range []string{".sha1", ".md5"} {
		if !s.Exists(jar + suffix) {
			t.Errorf("sources jar %s missing", suffix)
		}
	}
}

func TestNonTgzIgnored(t *testing.T) {
	s, bus := setup(t)
	name := core.MustParseName("x")

	p, _, err := s.CreateBytes(context.Background(), name, "1.0.0", "x-1.0.0.pom", []byte("<project/>"))
	if err != nil {
		t.Fatal(err)
	}
	bus.Wait()

	entries, err := os.ReadDir(filepath.Dir(p))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".jar" {
			t.Errorf("unexpected jar %s", e.Name())
		}
	}
}

func TestDerivationFailureIsContained(t *testing.T) {
	s, bus := setup(t)
	name := core.MustParseName("x")

	p, created, err := s.CreateBytes(context.Background(), name, "1.0.0", "x-1.0.0.tgz", []byte("not gzip"))
	if err != nil || !created {
		t.Fatalf("primary write = %v, %v; want success", created, err)
	}
	bus.Wait()

	jar := SourcesPath(p)
	for _, f := range []string{jar, jar + ".sha1", jar + ".md5"} {
		if s.Exists(f) {
			t.Errorf("%s exists after failed derivation", filepath.Base(f))
		}
	}
}

type countingFinalizer struct{ n int }

func (c *countingFinalizer) Finalize(context.Context, string) { c.n++ }

func TestDeriveOnce(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "x-1.0.0.tgz")
	if err := os.WriteFile(src, tgz(t, map[string]string{"a.txt": "hi"}), 0o644); err != nil {
		t.Fatal(err)
	}
	fin := &countingFinalizer{}
	tr := NewTrigger(fin, nil)

	for i, want := range []bool{true, false} {
		_, ok, err := tr.Derive(context.Background(), src)
		if err != nil || ok != want {
			t.Errorf("Derive #%d = %v, %v; want %v", i+1, ok, err, want)
		}
	}
	if fin.n != 1 {
		t.Errorf("Finalize calls = %d, want 1", fin.n)
	}
}
