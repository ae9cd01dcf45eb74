package core

import (
	"fmt"
	"strings"
)

const (
	// GroupPrefix is the Maven group every npm package lives under.
	GroupPrefix = "org.mvnpm"

	scopeGroup = GroupPrefix + ".at."
	hexDigits  = "0123456789abcdef"
)

// Name is an npm package name together with its Maven coordinates.
//
// A Name built from only NpmFullName is completed by Resolve. A Name with any
// other field set is taken as given, which is how override identities are made.
type Name struct {
	NpmFullName   string
	NpmNamespace  string // "@scope", or "" for unscoped packages
	NpmName       string
	MvnGroupID    string
	MvnArtifactID string
	MvnPath       string
	DisplayName   string
}

// ParseName maps an npm package name ("name" or "@scope/name") to its coordinates.
func ParseName(fullName string) (Name, error) {
	full := strings.TrimSpace(fullName)
	if full == "" {
		return Name{}, &IdentityError{Name: fullName, Reason: "empty name"}
	}

	n := Name{NpmFullName: full, DisplayName: full}
	if strings.HasPrefix(full, "@") {
		scope, local, ok := strings.Cut(full[1:], "/")
		if !ok {
			return Name{}, &IdentityError{Name: fullName, Reason: "scoped name without package part"}
		}
		if scope == "" || local == "" || strings.Contains(local, "/") {
			return Name{}, &IdentityError{Name: fullName, Reason: "malformed scope"}
		}
		n.NpmNamespace = "@" + scope
		n.NpmName = local
		n.MvnGroupID = scopeGroup + EscapeSegment(scope)
	} else {
		if strings.Contains(full, "/") {
			return Name{}, &IdentityError{Name: fullName, Reason: "unscoped name contains '/'"}
		}
		n.NpmName = full
		n.MvnGroupID = GroupPrefix
	}
	n.MvnArtifactID = EscapeSegment(n.NpmName)
	n.MvnPath = strings.ReplaceAll(n.MvnGroupID, ".", "/") + "/" + n.MvnArtifactID
	return n, nil
}

// MustParseName is ParseName for names known to be valid. It panics otherwise.
func MustParseName(fullName string) Name {
	n, err := ParseName(fullName)
	if err != nil {
		panic(err)
	}
	return n
}

// Resolve completes a Name that only carries NpmFullName. Names with any
// derived field already set are returned unchanged.
func (n Name) Resolve() (Name, error) {
	if n.NpmNamespace != "" || n.NpmName != "" || n.MvnGroupID != "" ||
		n.MvnArtifactID != "" || n.MvnPath != "" || n.DisplayName != "" {
		return n, nil
	}
	return ParseName(n.NpmFullName)
}

func (n Name) String() string {
	return n.NpmFullName
}

// Coordinates returns "groupId:artifactId".
func (n Name) Coordinates() string {
	return n.MvnGroupID + ":" + n.MvnArtifactID
}

// EscapeSegment makes s safe for a Maven groupId or artifactId segment.
//
// ASCII letters, digits, '.' and '-' are kept. '_' becomes "__" and every
// other byte becomes '_' followed by two lowercase hex digits, so distinct
// inputs never produce the same output.
func EscapeSegment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-':
			b.WriteByte(c)
		case c == '_':
			b.WriteString("__")
		default:
			b.WriteByte('_')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
	return b.String()
}

// UnescapeSegment reverses EscapeSegment.
func UnescapeSegment(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '_' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(s) && s[i+1] == '_' {
			b.WriteByte('_')
			i++
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("truncated escape at offset %d in %q", i, s)
		}
		hi, lo := unhex(s[i+1]), unhex(s[i+2])
		if hi < 0 || lo < 0 {
			return "", fmt.Errorf("bad escape %q in %q", s[i:i+3], s)
		}
		b.WriteByte(byte(hi<<4 | lo))
		i += 2
	}
	return b.String(), nil
}

func unhex(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c - 'a' + 10)
	}
	return -1
}

// NameFromCoordinates maps an org.mvnpm groupId and artifactId back to the
// npm package they were derived from.
func NameFromCoordinates(groupID, artifactID string) (Name, error) {
	coords := groupID + ":" + artifactID
	local, err := UnescapeSegment(artifactID)
	if err != nil {
		return Name{}, &IdentityError{Name: coords, Reason: err.Error()}
	}
	switch {
	case groupID == GroupPrefix:
		return ParseName(local)
	case strings.HasPrefix(groupID, scopeGroup):
		scope, err := UnescapeSegment(strings.TrimPrefix(groupID, scopeGroup))
		if err != nil {
			return Name{}, &IdentityError{Name: coords, Reason: err.Error()}
		}
		return ParseName("@" + scope + "/" + local)
	}
	return Name{}, &IdentityError{Name: coords, Reason: "group is not under " + GroupPrefix}
}
