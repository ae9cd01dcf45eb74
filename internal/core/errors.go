package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/git-pkgs/npm2maven/client"
)

// ErrNotFound is returned when a package or version is not found.
var ErrNotFound = client.ErrNotFound

type (
	HTTPError      = client.HTTPError
	NotFoundError  = client.NotFoundError
	RateLimitError = client.RateLimitError
)

var (
	// ErrInvalidIdentity is returned for a malformed npm package name.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrDependencyResolution is returned when one or more dependencies could not be translated.
	ErrDependencyResolution = errors.New("dependency resolution failed")

	// ErrSerialization is returned when a descriptor could not be written.
	ErrSerialization = errors.New("serialization failed")

	// ErrTranscode is returned when an archive could not be copied.
	ErrTranscode = errors.New("transcode failed")

	// ErrDerivation is returned when a secondary artifact could not be produced.
	// It is logged, never surfaced to a materialization caller.
	ErrDerivation = errors.New("derivation failed")
)

// IdentityError reports a name that cannot be mapped to coordinates.
type IdentityError struct {
	Name   string
	Reason string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("invalid package name %q: %s", e.Name, e.Reason)
}

func (e *IdentityError) Unwrap() error {
	return ErrInvalidIdentity
}

// DependencyError is a single dependency that failed to translate.
type DependencyError struct {
	Name         string
	Requirements string
	Err          error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency %s@%q: %v", e.Name, e.Requirements, e.Err)
}

func (e *DependencyError) Unwrap() []error {
	return []error{ErrDependencyResolution, e.Err}
}

// ResolutionError aggregates every failed dependency of one translation.
// Resolved holds the descriptors that did translate, in input order.
type ResolutionError struct {
	Failures []*DependencyError
	Resolved []Descriptor
}

func (e *ResolutionError) Error() string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Name
	}
	return fmt.Sprintf("%v: %d of %d dependencies failed (%s)",
		ErrDependencyResolution, len(e.Failures), len(e.Failures)+len(e.Resolved), strings.Join(names, ", "))
}

func (e *ResolutionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	errs = append(errs, ErrDependencyResolution)
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

// TranscodeError reports an archive copy failure. Dst may be left partially written.
type TranscodeError struct {
	Src string
	Dst string
	Err error
}

func (e *TranscodeError) Error() string {
	if e.Src == "" && e.Dst == "" {
		return fmt.Sprintf("transcode: %v", e.Err)
	}
	return fmt.Sprintf("transcode %s -> %s: %v", e.Src, e.Dst, e.Err)
}

func (e *TranscodeError) Unwrap() []error {
	return []error{ErrTranscode, e.Err}
}
