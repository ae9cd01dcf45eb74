package main

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	searchPage int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search <text>...",
	Short: "Search the registry and show the Maven coordinates of each hit",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "result page, starting at 1")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print the results as JSON")
	rootCmd.AddCommand(searchCmd)
}

type searchHit struct {
	Name        string    `json:"name"`
	Coordinates string    `json:"coordinates"`
	Version     string    `json:"version"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date,omitzero"`
	Score       float64   `json:"score"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.Registry.Timeout))
	defer cancel()

	res, err := a.registry.Search(ctx, strings.Join(args, " "), searchPage)
	if err != nil {
		return err
	}

	hits := make([]searchHit, 0, len(res.Results))
	for _, r := range res.Results {
		hits = append(hits, searchHit{
			Name:        r.Name.NpmFullName,
			Coordinates: r.Name.Coordinates(),
			Version:     r.Version,
			Description: r.Description,
			Date:        r.Date,
			Score:       r.Score,
		})
	}

	if searchJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"total":   res.Total,
			"page":    res.Page,
			"results": hits,
		})
	}
	for _, h := range hits {
		cmd.Printf("%s\t%s:%s\t%s\n", h.Name, h.Coordinates, h.Version, h.Description)
	}
	cmd.PrintErrf("page %d, %d of %d results\n", res.Page, len(hits), res.Total)
	return nil
}
