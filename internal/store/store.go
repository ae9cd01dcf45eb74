// Package store persists generated artifacts in a Maven repository layout on
// the local filesystem.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/git-pkgs/npm2maven/internal/core"
	"github.com/git-pkgs/npm2maven/internal/digest"
	"github.com/git-pkgs/npm2maven/internal/event"
	"github.com/git-pkgs/npm2maven/internal/pathlock"
)

// File extensions used in the repository.
const (
	ExtPOM = "pom"
	ExtTgz = "tgz"
	ExtJar = "jar"
)

// Store is a Maven repository rooted at a directory.
//
// Every file created through the store is written to a temporary sibling and
// renamed into place, then gets its checksum files and a Written event.
type Store struct {
	root    string
	bus     *event.Bus
	digests *digest.Generator
	locks   *pathlock.Registry
}

// Option configures a Store.
type Option func(*Store)

// WithBus publishes a Written event for every completed file.
func WithBus(b *event.Bus) Option {
	return func(s *Store) {
		s.bus = b
	}
}

// WithDigests sets the checksum and signature generator.
func WithDigests(g *digest.Generator) Option {
	return func(s *Store) {
		s.digests = g
	}
}

// WithLocks sets the per-path lock registry. Defaults to pathlock.Default.
func WithLocks(r *pathlock.Registry) Option {
	return func(s *Store) {
		s.locks = r
	}
}

// New returns a Store rooted at root.
func New(root string, opts ...Option) *Store {
	s := &Store{
		root:    filepath.Clean(root),
		digests: digest.New(),
		locks:   pathlock.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the repository root directory.
func (s *Store) Root() string {
	return s.root
}

// Locks returns the lock registry shared with derived-file writers.
func (s *Store) Locks() *pathlock.Registry {
	return s.locks
}

// Dir returns the version directory for name@version:
// <root>/<group path>/<artifact>/<version>. name must carry its coordinates,
// as returned by core.ParseName.
func (s *Store) Dir(name core.Name, version string) string {
	return filepath.Join(s.root, filepath.FromSlash(name.MvnPath), version)
}

// FileName returns "<artifact>-<version>.<ext>".
func FileName(name core.Name, version, ext string) string {
	return name.MvnArtifactID + "-" + version + "." + ext
}

// Path returns the full path of fileName in name@version's directory.
func (s *Store) Path(name core.Name, version, fileName string) string {
	return filepath.Join(s.Dir(name, version), fileName)
}

// Key returns p relative to the root with forward slashes, the form used for
// object keys and repository URLs.
func (s *Store) Key(p string) (string, error) {
	rel, err := filepath.Rel(s.root, p)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside the repository root", p)
	}
	return rel, nil
}

// Exists reports whether p is present.
func (s *Store) Exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// CreateFile writes fileName for name@version unless it already exists.
// write receives the destination stream; if it fails nothing is left at the
// final path. The returned bool is false when the file was already present.
func (s *Store) CreateFile(ctx context.Context, name core.Name, version, fileName string, write func(io.Writer) error) (string, bool, error) {
	dst := s.Path(name, version, fileName)

	unlock := s.locks.Lock(dst)
	created, err := s.create(dst, write)
	unlock()
	if err != nil {
		files.WithLabelValues("error").Inc()
		return dst, false, err
	}
	if !created {
		files.WithLabelValues("exists").Inc()
		return dst, false, nil
	}
	files.WithLabelValues("created").Inc()

	s.Finalize(ctx, dst)
	return dst, true, nil
}

// CreateBytes is CreateFile for in-memory content.
func (s *Store) CreateBytes(ctx context.Context, name core.Name, version, fileName string, data []byte) (string, bool, error) {
	return s.CreateFile(ctx, name, version, fileName, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(data))
		return err
	})
}

// Finalize generates checksum files for p and announces it on the bus.
// Checksum failures are logged; the artifact itself stays valid.
func (s *Store) Finalize(ctx context.Context, p string) {
	if s.digests != nil {
		if _, err := s.digests.Generate(ctx, p); err != nil {
			slog.WarnContext(ctx, "auxiliary file generation failed",
				"path", p, "error", fmt.Errorf("%w: %w", core.ErrDerivation, err))
		}
	}
	if s.bus != nil {
		s.bus.Publish(ctx, event.Written{Path: p})
	}
}

func (s *Store) create(dst string, write func(io.Writer) error) (created bool, err error) {
	if _, err := os.Stat(dst); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return false, fmt.Errorf("writing %s: %w", dst, err)
	}
	if err = tmp.Close(); err != nil {
		return false, err
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return false, err
	}
	return true, nil
}
