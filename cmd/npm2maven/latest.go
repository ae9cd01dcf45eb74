package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/npm2maven/internal/core"
)

var latestCmd = &cobra.Command{
	Use:   "latest <name|purl>...",
	Short: "Print the latest version and Maven coordinates of each package",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLatest,
}

func init() {
	rootCmd.AddCommand(latestCmd)
}

func runLatest(cmd *cobra.Command, args []string) error {
	names := make([]core.Name, 0, len(args))
	for _, arg := range args {
		n, _, err := core.ParseTarget(arg)
		if err != nil {
			return err
		}
		names = append(names, n)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.Registry.Timeout))
	defer cancel()

	full := make([]string, len(names))
	for i, n := range names {
		full[i] = n.NpmFullName
	}
	versions := core.BulkFetchLatestVersionsWithConcurrency(ctx, a.registry, full, cfg.Dependencies.Concurrency)

	var missing int
	for _, n := range names {
		v, ok := versions[n.NpmFullName]
		if !ok {
			cmd.PrintErrf("%s: no latest version\n", n.NpmFullName)
			missing++
			continue
		}
		cmd.Printf("%s\t%s:%s\n", n.NpmFullName, n.Coordinates(), v)
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d packages could not be resolved", missing, len(names))
	}
	return nil
}
