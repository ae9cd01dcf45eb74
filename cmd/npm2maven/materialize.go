package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var materializeJSON bool

var materializeCmd = &cobra.Command{
	Use:   "materialize <name|purl> [version]",
	Short: "Write a package version into the repository",
	Long: `Fetches the npm package, translates its dependencies and writes the pom,
tarball, binary jar and sources jar, each with .sha1 and .md5 files (and .asc
when a signing key is configured). version defaults to "latest" and may be
any dist-tag. The whole run is bounded by registry.materialize_timeout.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runMaterialize,
}

func init() {
	materializeCmd.Flags().BoolVar(&materializeJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(materializeCmd)
}

func runMaterialize(cmd *cobra.Command, args []string) error {
	name, ver, err := parseTarget(args)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if d := time.Duration(cfg.Registry.MaterializeTimeout); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	res, err := a.materializer.Materialize(ctx, name.NpmFullName, ver)
	if err != nil {
		slog.DebugContext(ctx, "materialize failed", "package", name.NpmFullName, "breakers", a.breaker.BreakerStates())
		return err
	}

	if materializeJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"coordinates": res.Name.Coordinates() + ":" + res.Version,
			"pom":         res.POM,
			"tarball":     res.Tarball,
			"jar":         res.Jar,
			"created":     res.Created,
		})
	}
	cmd.Printf("%s:%s\n", res.Name.Coordinates(), res.Version)
	for _, p := range []string{res.POM, res.Tarball, res.Jar} {
		cmd.Printf("  %s\n", p)
	}
	return nil
}
