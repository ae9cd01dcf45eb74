// Package archive converts npm tarballs (.tgz) into jar (zip) archives.
//
// Entries are streamed one at a time through a fixed buffer; the tarball is
// never held in memory as a whole.
package archive

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/git-pkgs/npm2maven/internal/core"
	"github.com/git-pkgs/npm2maven/internal/pathlock"
)

const bufferSize = 4096

// RenameFunc maps a tar entry name to a jar entry name. Returning false
// drops the entry.
type RenameFunc func(name string) (string, bool)

type options struct {
	rename RenameFunc
	locks  *pathlock.Registry
	kind   string
}

// Option configures a transcode.
type Option func(*options)

// WithRename rewrites entry names on the way through.
func WithRename(fn RenameFunc) Option {
	return func(o *options) {
		o.rename = fn
	}
}

// WithLocks sets the registry used by TranscodeFile. Defaults to
// pathlock.Default.
func WithLocks(r *pathlock.Registry) Option {
	return func(o *options) {
		o.locks = r
	}
}

// WithKind labels the transcode in metrics ("sources", "binary").
func WithKind(kind string) Option {
	return func(o *options) {
		o.kind = kind
	}
}

func newOptions(opts []Option) *options {
	o := &options{locks: pathlock.Default, kind: "sources"}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StaticResources returns a RenameFunc that moves the tarball's top-level
// directory (usually "package/") under META-INF/resources/_static/<npmName>/,
// the layout servlet containers serve as static web resources.
func StaticResources(npmName string) RenameFunc {
	prefix := "META-INF/resources/_static/" + npmName + "/"
	return func(name string) (string, bool) {
		name = strings.TrimPrefix(name, "./")
		_, rest, ok := strings.Cut(name, "/")
		if !ok || rest == "" {
			return "", false
		}
		return prefix + rest, true
	}
}

// Transcode reads a gzip-compressed tar stream from r and writes a zip
// archive to w. Regular files and directories are copied in stream order;
// links and special files are skipped. Names and sizes are preserved unless
// a rename is configured.
func Transcode(ctx context.Context, r io.Reader, w io.Writer, opts ...Option) error {
	o := newOptions(opts)
	start := time.Now()
	err := transcode(ctx, r, w, o)
	observe(o.kind, start, err)
	if err != nil {
		return &core.TranscodeError{Err: err}
	}
	return nil
}

func transcode(ctx context.Context, r io.Reader, w io.Writer, o *options) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	zw := zip.NewWriter(w)
	buf := make([]byte, bufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		name := hdr.Name
		switch hdr.Typeflag {
		case tar.TypeReg:
		case tar.TypeDir:
			if !strings.HasSuffix(name, "/") {
				name += "/"
			}
		default:
			continue
		}
		if o.rename != nil {
			var keep bool
			if name, keep = o.rename(name); !keep {
				continue
			}
		}

		fh := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: hdr.ModTime,
		}
		if hdr.Typeflag == tar.TypeDir {
			fh.Method = zip.Store
			fh.SetMode(fs.ModeDir | 0o755)
		} else {
			fh.SetMode(hdr.FileInfo().Mode().Perm())
		}

		fw, err := zw.CreateHeader(fh)
		if err != nil {
			return fmt.Errorf("creating entry %s: %w", name, err)
		}
		if hdr.Typeflag == tar.TypeDir {
			continue
		}
		n, err := io.CopyBuffer(onlyWriter{fw}, onlyReader{tr}, buf)
		if err != nil {
			return fmt.Errorf("copying entry %s: %w", name, err)
		}
		if n != hdr.Size {
			return fmt.Errorf("entry %s: copied %d bytes, header declares %d", name, n, hdr.Size)
		}
		entries.WithLabelValues(o.kind).Inc()
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing zip: %w", err)
	}
	return nil
}

// TranscodeFile transcodes the tarball at src into dst. It returns false
// without doing anything when dst already exists. Concurrent calls for the
// same dst are serialized; the output is written to a temporary sibling and
// renamed into place, so dst is either absent or complete.
func TranscodeFile(ctx context.Context, src, dst string, opts ...Option) (bool, error) {
	o := newOptions(opts)

	unlock := o.locks.Lock(dst)
	defer unlock()

	if _, err := os.Stat(dst); err == nil {
		skipped.WithLabelValues(o.kind).Inc()
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, &core.TranscodeError{Src: src, Dst: dst, Err: err}
	}

	if err := transcodeFile(ctx, src, dst, o); err != nil {
		return false, &core.TranscodeError{Src: src, Dst: dst, Err: err}
	}
	return true, nil
}

func transcodeFile(ctx context.Context, src, dst string, o *options) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+path.Base(filepath.ToSlash(dst))+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	start := time.Now()
	bw := bufio.NewWriter(tmp)
	err = transcode(ctx, bufio.NewReader(in), bw, o)
	if err == nil {
		err = bw.Flush()
	}
	observe(o.kind, start, err)
	if err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// onlyReader and onlyWriter hide ReaderFrom/WriterTo so io.CopyBuffer uses
// the supplied buffer.
type onlyReader struct{ io.Reader }

type onlyWriter struct{ io.Writer }
