// Package derive produces the sources jar whenever an npm tarball lands in
// the store.
package derive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/git-pkgs/npm2maven/internal/archive"
	"github.com/git-pkgs/npm2maven/internal/core"
	"github.com/git-pkgs/npm2maven/internal/event"
	"github.com/git-pkgs/npm2maven/internal/pathlock"
)

// TgzSuffix marks the primary archive; SourcesSuffix replaces it on the
// derived one.
const (
	TgzSuffix     = ".tgz"
	SourcesSuffix = "-sources.jar"
)

// Finalizer generates auxiliary files for a new artifact and announces it.
type Finalizer interface {
	Finalize(ctx context.Context, path string)
}

// Trigger reacts to Written events.
type Trigger struct {
	finalizer Finalizer
	locks     *pathlock.Registry
}

// NewTrigger returns a Trigger. finalizer may be nil, in which case no
// auxiliary files are produced.
func NewTrigger(finalizer Finalizer, locks *pathlock.Registry) *Trigger {
	if locks == nil {
		locks = pathlock.Default
	}
	return &Trigger{finalizer: finalizer, locks: locks}
}

// SourcesPath returns the sources jar path for a tarball path.
func SourcesPath(tgz string) string {
	return strings.TrimSuffix(tgz, TgzSuffix) + SourcesSuffix
}

// Handle is an event.Handler. Anything but a .tgz is ignored. Failures are
// logged and never returned.
func (t *Trigger) Handle(ctx context.Context, ev event.Written) {
	if !strings.HasSuffix(ev.Path, TgzSuffix) {
		return
	}
	dst, ok, err := t.Derive(ctx, ev.Path)
	switch {
	case err != nil:
		derivations.WithLabelValues("error").Inc()
		slog.ErrorContext(ctx, "sources jar derivation failed",
			"tgz", ev.Path, "error", fmt.Errorf("%w: %w", core.ErrDerivation, err))
	case ok:
		derivations.WithLabelValues("created").Inc()
		slog.InfoContext(ctx, "sources jar created", "path", dst)
	default:
		derivations.WithLabelValues("exists").Inc()
		slog.DebugContext(ctx, "sources jar already present", "path", dst)
	}
}

// Derive transcodes tgz into its sibling sources jar and, only when a new
// jar was written, finalizes it. It reports whether the jar was created.
func (t *Trigger) Derive(ctx context.Context, tgz string) (string, bool, error) {
	dst := SourcesPath(tgz)
	ok, err := archive.TranscodeFile(ctx, tgz, dst, archive.WithLocks(t.locks), archive.WithKind("sources"))
	if err != nil || !ok {
		return dst, false, err
	}
	if t.finalizer != nil {
		t.finalizer.Finalize(ctx, dst)
	}
	return dst, true, nil
}
