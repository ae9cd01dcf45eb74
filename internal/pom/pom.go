// Package pom builds Maven project descriptors for npm packages.
package pom

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/git-pkgs/npm2maven/internal/core"
)

const (
	modelVersion = "4.0.0"
	packaging    = "jar"

	gitPlus = "git+"
	dotGit  = ".git"

	namespace      = "http://maven.apache.org/POM/4.0.0"
	xsiNamespace   = "http://www.w3.org/2001/XMLSchema-instance"
	schemaLocation = "http://maven.apache.org/POM/4.0.0 https://maven.apache.org/xsd/maven-4.0.0.xsd"
)

// Project is the subset of the Maven POM model this tool emits.
type Project struct {
	XMLName        xml.Name `xml:"project"`
	XMLNS          string   `xml:"xmlns,attr"`
	XSI            string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`

	ModelVersion    string           `xml:"modelVersion"`
	GroupID         string           `xml:"groupId"`
	ArtifactID      string           `xml:"artifactId"`
	Version         string           `xml:"version"`
	Packaging       string           `xml:"packaging"`
	Name            string           `xml:"name"`
	Description     string           `xml:"description,omitempty"`
	URL             string           `xml:"url,omitempty"`
	Organization    *Organization    `xml:"organization,omitempty"`
	Licenses        []License        `xml:"licenses>license,omitempty"`
	Developers      []Developer      `xml:"developers>developer,omitempty"`
	SCM             *SCM             `xml:"scm,omitempty"`
	IssueManagement *IssueManagement `xml:"issueManagement,omitempty"`
	Properties      *Properties      `xml:"properties,omitempty"`
	Dependencies    []Dependency     `xml:"dependencies>dependency,omitempty"`
}

type Organization struct {
	Name string `xml:"name"`
	URL  string `xml:"url,omitempty"`
}

type License struct {
	Name string `xml:"name"`
}

type Developer struct {
	Name  string `xml:"name,omitempty"`
	Email string `xml:"email,omitempty"`
}

type SCM struct {
	Connection          string `xml:"connection"`
	DeveloperConnection string `xml:"developerConnection"`
	URL                 string `xml:"url"`
}

type IssueManagement struct {
	URL string `xml:"url"`
}

type Dependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

// Property is one entry of a <properties> block.
type Property struct {
	Key   string
	Value string
}

// Properties keeps insertion order, which encoding/xml cannot do with a map.
type Properties struct {
	Entries []Property
}

// Get returns the value stored under key.
func (p *Properties) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, e := range p.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

func (p *Properties) set(key, value string) {
	for i, e := range p.Entries {
		if e.Key == key {
			p.Entries[i].Value = value
			return
		}
	}
	p.Entries = append(p.Entries, Property{Key: key, Value: value})
}

func (p Properties) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, entry := range p.Entries {
		if err := e.EncodeElement(entry.Value, xml.StartElement{Name: xml.Name{Local: entry.Key}}); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

func (p *Properties) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var v string
			if err := d.DecodeElement(&v, &t); err != nil {
				return err
			}
			p.Entries = append(p.Entries, Property{Key: t.Name.Local, Value: v})
		case xml.EndElement:
			return nil
		}
	}
}

// PropertyKey is the property name that holds a dependency's version.
func PropertyKey(groupID, artifactID string) string {
	return groupID + "-" + artifactID + ".version"
}

// NewProject maps an npm package record and its translated dependencies onto
// a POM model. Dependency versions are moved into properties and referenced
// by placeholder.
func NewProject(pkg *core.Package, deps []core.Descriptor) (*Project, error) {
	name, err := pkg.Name.Resolve()
	if err != nil {
		return nil, err
	}

	p := &Project{
		XMLNS:           namespace,
		XSI:             xsiNamespace,
		SchemaLocation:  schemaLocation,
		ModelVersion:    modelVersion,
		GroupID:         name.MvnGroupID,
		ArtifactID:      name.MvnArtifactID,
		Version:         pkg.Version,
		Packaging:       packaging,
		Name:            name.DisplayName,
		Description:     pkg.Description,
		URL:             pkg.Homepage,
		Organization:    organization(pkg, name),
		Licenses:        licenses(pkg.License),
		Developers:      developers(pkg.Maintainers),
		SCM:             scm(pkg.Repository),
		IssueManagement: issueManagement(pkg.Bugs),
	}

	if len(deps) > 0 {
		props := &Properties{}
		p.Dependencies = make([]Dependency, 0, len(deps))
		for _, d := range deps {
			key := PropertyKey(d.GroupID, d.ArtifactID)
			props.set(key, d.Version)
			p.Dependencies = append(p.Dependencies, Dependency{
				GroupID:    d.GroupID,
				ArtifactID: d.ArtifactID,
				Version:    "${" + key + "}",
			})
		}
		p.Properties = props
	}
	return p, nil
}

// Write serializes the descriptor for pkg to w.
func Write(w io.Writer, pkg *core.Package, deps []core.Descriptor) error {
	p, err := NewProject(pkg, deps)
	if err != nil {
		return err
	}
	if err := p.Encode(w); err != nil {
		return fmt.Errorf("%w: pom for %s@%s: %w", core.ErrSerialization, pkg.Name.NpmFullName, pkg.Version, err)
	}
	return nil
}

// Synthesize returns the serialized descriptor for pkg.
func Synthesize(pkg *core.Package, deps []core.Descriptor) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, pkg, deps); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes p as an indented XML document.
func (p *Project) Encode(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(p); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Decode parses a POM document.
func Decode(r io.Reader) (*Project, error) {
	var p Project
	if err := xml.NewDecoder(r).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func organization(pkg *core.Package, name core.Name) *Organization {
	o := &Organization{Name: name.DisplayName, URL: pkg.Homepage}
	if pkg.Author != nil && pkg.Author.Name != "" {
		o.Name = pkg.Author.Name
	}
	return o
}

func licenses(license string) []License {
	if license == "" {
		return nil
	}
	return []License{{Name: license}}
}

func developers(maintainers []core.Person) []Developer {
	if len(maintainers) == 0 {
		return nil
	}
	out := make([]Developer, 0, len(maintainers))
	for _, m := range maintainers {
		out = append(out, Developer{Name: m.Name, Email: m.Email})
	}
	return out
}

func issueManagement(bugs *core.Bugs) *IssueManagement {
	if bugs == nil || bugs.URL == "" {
		return nil
	}
	return &IssueManagement{URL: bugs.URL}
}

// scm strips a leading "git+", then puts exactly one ".git" on the
// connection fields and none on the browsable URL.
func scm(repo *core.Repository) *SCM {
	if repo == nil || repo.URL == "" {
		return nil
	}
	u := strings.TrimPrefix(repo.URL, gitPlus)
	browse := strings.TrimSuffix(u, dotGit)
	conn := browse + dotGit
	return &SCM{
		Connection:          conn,
		DeveloperConnection: conn,
		URL:                 browse,
	}
}
