// Package version converts npm version expressions into Maven version
// requirements and resolves open-ended ranges against the registry.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver"
)

// Any is the Maven range matching every version.
const Any = "[,)"

var (
	spaceRun = regexp.MustCompile(`\s+`)
	// An operator followed by whitespace: ">= 1.2.3" -> ">=1.2.3".
	looseOperator = regexp.MustCompile(`(>=|<=|>|<|=|\^|~>|~)\s+`)
	hyphenRange   = regexp.MustCompile(`^(\S+)\s+-\s+(\S+)$`)
	comparator    = regexp.MustCompile(`^(>=|<=|>|<|=)?v?(.+)$`)
)

// Normalize trims, collapses internal whitespace and glues operators to their operand.
func Normalize(expr string) string {
	s := spaceRun.ReplaceAllString(strings.TrimSpace(expr), " ")
	return looseOperator.ReplaceAllString(s, "$1")
}

// Convert turns an npm version expression into Maven syntax. It never fails:
// forms it does not understand are passed through with whitespace removed.
func Convert(expr string) string {
	s := Normalize(expr)

	clauses := strings.Split(s, "||")
	out := make([]string, 0, len(clauses))
	for _, c := range clauses {
		r := convertClause(strings.TrimSpace(c))
		if len(clauses) > 1 && !isRange(r) {
			// Maven only unions ranges; pin exact versions.
			r = "[" + r + "]"
		}
		out = append(out, r)
	}
	return strings.Join(out, ",")
}

func convertClause(s string) string {
	switch s {
	case "", "*", "x", "X", "latest":
		return Any
	}

	if m := hyphenRange.FindStringSubmatch(s); m != nil {
		lo, ok1 := parsePartial(m[1])
		hi, ok2 := parsePartial(m[2])
		if ok1 && ok2 {
			if hi.wild() {
				return "[" + lo.floor() + "," + hi.next() + ")"
			}
			return "[" + lo.floor() + "," + hi.floor() + "]"
		}
		return strip(s)
	}

	parts := strings.Split(s, " ")
	if len(parts) == 2 {
		if r, ok := combine(parts[0], parts[1]); ok {
			return r
		}
		return strip(s)
	}
	if len(parts) > 2 {
		return strip(s)
	}

	switch {
	case strings.HasPrefix(s, "^"):
		return caret(s[1:], s)
	case strings.HasPrefix(s, "~>"):
		return tilde(s[2:], s)
	case strings.HasPrefix(s, "~"):
		return tilde(s[1:], s)
	}

	return single(s)
}

// single converts one comparator, an exact version or an x-range.
func single(s string) string {
	m := comparator.FindStringSubmatch(s)
	if m == nil {
		return strip(s)
	}
	op, ver := m[1], m[2]
	p, ok := parsePartial(ver)
	if !ok {
		return strip(s)
	}

	switch op {
	case ">=":
		return "[" + p.floor() + ",)"
	case ">":
		if p.wild() {
			return "[" + p.next() + ",)"
		}
		return "(" + p.floor() + ",)"
	case "<":
		return "(," + p.floor() + ")"
	case "<=":
		if p.wild() {
			return "(," + p.next() + ")"
		}
		return "(," + p.floor() + "]"
	}

	// Exact or x-range.
	if p.wild() {
		if p.parts == 0 {
			return Any
		}
		return "[" + p.floor() + "," + p.next() + ")"
	}
	return p.raw
}

// combine joins a lower and an upper comparator into one interval.
func combine(a, b string) (string, bool) {
	lo, hi := single(a), single(b)
	if strings.HasPrefix(hi, "[") || (strings.HasPrefix(hi, "(") && !strings.HasPrefix(hi, "(,")) {
		lo, hi = hi, lo
	}
	if !strings.HasSuffix(lo, ",)") || !strings.HasPrefix(hi, "(,") {
		return "", false
	}
	return strings.TrimSuffix(lo, ")") + strings.TrimPrefix(hi, "(,"), true
}

func caret(ver, orig string) string {
	p, ok := parsePartial(ver)
	if !ok {
		return strip(orig)
	}
	var upper string
	switch {
	case p.major > 0 || p.parts < 2:
		upper = fmt.Sprintf("%d.0.0", p.major+1)
	case p.minor > 0 || p.parts < 3:
		upper = fmt.Sprintf("0.%d.0", p.minor+1)
	default:
		upper = fmt.Sprintf("0.0.%d", p.patch+1)
	}
	return "[" + p.floor() + "," + upper + ")"
}

func tilde(ver, orig string) string {
	p, ok := parsePartial(ver)
	if !ok {
		return strip(orig)
	}
	var upper string
	if p.parts < 2 {
		upper = fmt.Sprintf("%d.0.0", p.major+1)
	} else {
		upper = fmt.Sprintf("%d.%d.0", p.major, p.minor+1)
	}
	return "[" + p.floor() + "," + upper + ")"
}

func isRange(s string) bool {
	return strings.HasPrefix(s, "[") || strings.HasPrefix(s, "(")
}

func strip(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

// partial is a possibly incomplete version such as "1", "1.2", "1.2.x" or "1.2.3-beta.1".
type partial struct {
	raw                 string
	major, minor, patch int64
	parts               int // number of numeric components given
}

func (p partial) wild() bool {
	return p.parts < 3
}

// floor is the lowest full version the partial matches.
func (p partial) floor() string {
	if p.parts == 3 {
		return p.raw
	}
	return fmt.Sprintf("%d.%d.%d", p.major, p.minor, p.patch)
}

// next is the first version above everything the partial matches.
func (p partial) next() string {
	switch p.parts {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%d.0.0", p.major+1)
	default:
		return fmt.Sprintf("%d.%d.0", p.major, p.minor+1)
	}
}

func parsePartial(s string) (partial, bool) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "="), "v")
	if s == "" {
		return partial{}, false
	}
	if v, err := semver.NewVersion(s); err == nil && strings.Count(release(s), ".") == 2 && !hasWildcard(s) {
		return partial{raw: s, major: v.Major(), minor: v.Minor(), patch: v.Patch(), parts: 3}, true
	}

	p := partial{raw: s}
	nums := [3]*int64{&p.major, &p.minor, &p.patch}
	for i, seg := range strings.SplitN(s, ".", 3) {
		if isWildcard(seg) {
			return p, true
		}
		n, err := strconv.ParseInt(seg, 10, 64)
		if err != nil || n < 0 {
			return partial{}, false
		}
		*nums[i] = n
		p.parts = i + 1
	}
	if p.parts == 3 {
		// A full version semver refused to parse.
		return partial{}, false
	}
	return p, true
}

// release drops any prerelease or build suffix.
func release(s string) string {
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		return s[:i]
	}
	return s
}

func isWildcard(seg string) bool {
	return seg == "x" || seg == "X" || seg == "*"
}

func hasWildcard(s string) bool {
	for _, seg := range strings.Split(s, ".") {
		if isWildcard(seg) {
			return true
		}
	}
	return false
}
