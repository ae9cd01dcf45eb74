package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/npm2maven/internal/core"
)

var infoJSON bool

var infoCmd = &cobra.Command{
	Use:   "info <name|purl> [version]",
	Short: "Show a package's dist-tags, versions, Maven coordinates and tarball",
	Long: `Fetches the package document and summarizes it. The tarball of the given
version (default "latest") is resolved and checked with a HEAD request.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "print the summary as JSON")
	rootCmd.AddCommand(infoCmd)
}

type projectInfo struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Coordinates string            `json:"coordinates"`
	Latest      string            `json:"latest,omitempty"`
	DistTags    map[string]string `json:"dist_tags"`
	Versions    int               `json:"versions"`
	Version     string            `json:"version,omitempty"`
	Tarball     string            `json:"tarball,omitempty"`
	Size        int64             `json:"size,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	name, ver, err := parseTarget(args)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.Registry.Timeout))
	defer cancel()

	p, err := a.registry.FetchProject(ctx, name.NpmFullName)
	if err != nil {
		return err
	}
	info := projectInfo{
		Name:        name.NpmFullName,
		Description: p.Description,
		Coordinates: name.Coordinates(),
		Latest:      p.Latest(),
		DistTags:    p.DistTags,
		Versions:    len(p.Versions),
	}
	a.describeTarball(ctx, name, ver, &info)

	if infoJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	cmd.Printf("%s\n", info.Name)
	if info.Description != "" {
		cmd.Printf("  %s\n", info.Description)
	}
	cmd.Printf("  coordinates: %s\n", info.Coordinates)
	cmd.Printf("  versions:    %d\n", info.Versions)
	if info.Tarball != "" {
		cmd.Printf("  tarball:     %s (%s, %d bytes)\n", info.Tarball, info.Version, info.Size)
	}
	tags := make([]string, 0, len(info.DistTags))
	for t := range info.DistTags {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	for _, t := range tags {
		cmd.Printf("  %s: %s\n", t, info.DistTags[t])
	}
	return nil
}

// describeTarball fills in the tarball location and size for ver. Failures
// are logged and leave the fields empty.
func (a *app) describeTarball(ctx context.Context, name core.Name, ver string, info *projectInfo) {
	tb, err := a.resolver.Resolve(ctx, name, ver)
	if err != nil {
		slog.WarnContext(ctx, "resolving tarball", "package", name.NpmFullName, "version", ver, "error", err)
		return
	}
	info.Tarball = tb.URL
	info.Version = tb.Version
	size, contentType, err := a.breaker.Head(ctx, tb.URL)
	if err != nil {
		slog.WarnContext(ctx, "checking tarball", "url", tb.URL, "error", err)
		return
	}
	info.Size = size
	info.ContentType = contentType
}
