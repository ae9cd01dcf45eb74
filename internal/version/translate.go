package version

import (
	"context"
	"regexp"

	"github.com/Masterminds/semver"

	"github.com/git-pkgs/npm2maven/internal/core"
)

// openRange matches "[X,)": at least X, no upper bound.
var openRange = regexp.MustCompile(`^\[([^\[\](),]+),\)$`)

// Translator converts version expressions and closes open-ended ranges at
// the package's current latest version.
type Translator struct {
	latest core.LatestVersioner
}

// NewTranslator returns a Translator that asks latest for upper bounds.
// A nil latest leaves open ranges open.
func NewTranslator(latest core.LatestVersioner) *Translator {
	return &Translator{latest: latest}
}

// Translate converts expr for the dependency name. Only "[X,)" needs the
// registry: it becomes "[X,latest]". The result for that form depends on the
// registry state at call time.
func (t *Translator) Translate(ctx context.Context, name core.Name, expr string) (string, error) {
	converted := Convert(expr)

	m := openRange.FindStringSubmatch(converted)
	if m == nil || t.latest == nil {
		return converted, nil
	}

	latest, err := t.latest.LatestVersion(ctx, name.NpmFullName)
	if err != nil {
		return "", &core.DependencyError{Name: name.NpmFullName, Requirements: expr, Err: err}
	}

	// A latest tag behind the lower bound (prerelease-only lines) would
	// produce an empty range.
	if lo, err := semver.NewVersion(m[1]); err == nil {
		if hi, err := semver.NewVersion(latest); err == nil && hi.LessThan(lo) {
			return converted, nil
		}
	}
	return "[" + m[1] + "," + latest + "]", nil
}
