package npm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/git-pkgs/npm2maven/internal/core"
)

type rawJSON = json.RawMessage

type projectResponse struct {
	ID          string             `json:"_id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	DistTags    map[string]string  `json:"dist-tags"`
	Versions    map[string]rawJSON `json:"versions"`
	Time        map[string]string  `json:"time"`
}

type versionInfo struct {
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	Description  string        `json:"description"`
	License      interface{}   `json:"license"`
	Homepage     interface{}   `json:"homepage"`
	Repository   interface{}   `json:"repository"`
	Bugs         interface{}   `json:"bugs"`
	Author       interface{}   `json:"author"`
	Maintainers  []interface{} `json:"maintainers"`
	Dependencies orderedDeps   `json:"dependencies"`
	Dist         distInfo      `json:"dist"`
}

type distInfo struct {
	Shasum    string `json:"shasum"`
	Tarball   string `json:"tarball"`
	Integrity string `json:"integrity"`
}

// orderedDeps decodes a JSON object of name -> range while keeping the
// document order, which a map would lose.
type orderedDeps []core.Dependency

func (d *orderedDeps) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		// null, or the legacy array form: nothing usable.
		*d = nil
		return nil
	}

	var out orderedDeps
	seen := make(map[string]int)
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("dependencies: unexpected key %v", kt)
		}
		var val interface{}
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("dependencies[%s]: %w", key, err)
		}
		req, _ := val.(string)
		if i, dup := seen[key]; dup {
			out[i].Requirements = req
			continue
		}
		seen[key] = len(out)
		out = append(out, core.Dependency{Name: key, Requirements: req})
	}
	*d = out
	return nil
}

func extractString(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	if arr, ok := v.([]interface{}); ok && len(arr) > 0 {
		if s, ok := arr[0].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func extractLicense(v interface{}) string {
	switch l := v.(type) {
	case string:
		return l
	case map[string]interface{}:
		if t, ok := l["type"].(string); ok {
			return t
		}
	case []interface{}:
		var licenses []string
		for _, item := range l {
			switch li := item.(type) {
			case string:
				licenses = append(licenses, li)
			case map[string]interface{}:
				if t, ok := li["type"].(string); ok {
					licenses = append(licenses, t)
				}
			}
		}
		return strings.Join(licenses, ",")
	}
	return ""
}

// personPattern matches the "Name <email> (url)" shorthand; email and url are optional.
var personPattern = regexp.MustCompile(`^([^<(]*?)\s*(?:<([^>]*)>)?\s*(?:\(([^)]*)\))?\s*$`)

func extractPerson(v interface{}) *core.Person {
	switch p := v.(type) {
	case string:
		p = strings.TrimSpace(p)
		if p == "" {
			return nil
		}
		m := personPattern.FindStringSubmatch(p)
		if m == nil {
			return &core.Person{Name: p}
		}
		return &core.Person{Name: m[1], Email: m[2], URL: m[3]}
	case map[string]interface{}:
		name, _ := p["name"].(string)
		email, _ := p["email"].(string)
		url, _ := p["url"].(string)
		if name == "" && email == "" && url == "" {
			return nil
		}
		return &core.Person{Name: name, Email: email, URL: url}
	}
	return nil
}

func extractPeople(vs []interface{}) []core.Person {
	if len(vs) == 0 {
		return nil
	}
	people := make([]core.Person, 0, len(vs))
	for _, v := range vs {
		if p := extractPerson(v); p != nil {
			people = append(people, *p)
		}
	}
	return people
}

func extractRepository(v interface{}) *core.Repository {
	switch r := v.(type) {
	case string:
		if r = strings.TrimSpace(r); r != "" {
			return &core.Repository{URL: r}
		}
	case map[string]interface{}:
		url, _ := r["url"].(string)
		typ, _ := r["type"].(string)
		if url != "" {
			return &core.Repository{Type: typ, URL: url}
		}
	case []interface{}:
		if len(r) > 0 {
			return extractRepository(r[0])
		}
	}
	return nil
}

func extractBugs(v interface{}) *core.Bugs {
	switch b := v.(type) {
	case string:
		if b = strings.TrimSpace(b); b != "" {
			return &core.Bugs{URL: b}
		}
	case map[string]interface{}:
		url, _ := b["url"].(string)
		email, _ := b["email"].(string)
		if url != "" || email != "" {
			return &core.Bugs{URL: url, Email: email}
		}
	}
	return nil
}
