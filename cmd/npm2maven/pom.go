package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var pomCmd = &cobra.Command{
	Use:   "pom <name|purl> [version]",
	Short: "Print the pom for a package version without writing anything",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runPOM,
}

func init() {
	rootCmd.AddCommand(pomCmd)
}

func runPOM(cmd *cobra.Command, args []string) error {
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

	_, data, err := a.materializer.Descriptor(ctx, name.NpmFullName, ver)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
