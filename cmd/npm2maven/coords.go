package main

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/npm2maven/internal/core"
	"github.com/git-pkgs/npm2maven/internal/store"
)

var coordsCmd = &cobra.Command{
	Use:   "coords <name|purl> [version]",
	Short: "Print the Maven coordinates, repository path and purls of a package",
	Long: `Maps an npm name to its Maven coordinates without contacting the registry.
Scoped packages land under org.mvnpm.at.<scope>; characters outside
[A-Za-z0-9.-] are escaped. --check additionally asks the registry whether
the package exists.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCoords,
}

var coordsCheck bool

func init() {
	coordsCmd.Flags().BoolVar(&coordsCheck, "check", false, "check that the package exists in the registry")
	rootCmd.AddCommand(coordsCmd)
}

func runCoords(cmd *cobra.Command, args []string) error {
	name, ver, err := parseTarget(args)
	if err != nil {
		return err
	}
	cmd.Printf("groupId:    %s\n", name.MvnGroupID)
	cmd.Printf("artifactId: %s\n", name.MvnArtifactID)
	cmd.Printf("path:       %s\n", name.MvnPath)
	cmd.Printf("npm purl:   %s\n", name.NpmPURL(""))
	cmd.Printf("maven purl: %s\n", name.MavenPURL(""))
	if len(args) > 1 || ver != "latest" {
		cmd.Printf("pom:        %s\n", path.Join(name.MvnPath, ver, store.FileName(name, ver, store.ExtPOM)))
	}
	if !coordsCheck {
		return nil
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.Registry.Timeout))
	defer cancel()
	ok, err := a.registry.Exists(ctx, name.NpmFullName)
	if err != nil {
		return err
	}
	cmd.Printf("exists:     %t\n", ok)
	if !ok {
		return fmt.Errorf("%s: %w", name, core.ErrNotFound)
	}
	return nil
}
