package npm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/git-pkgs/npm2maven/internal/core"
)

// SearchPageSize is the number of hits requested per search page.
const SearchPageSize = 20

type searchResponse struct {
	Objects []searchObject `json:"objects"`
	Total   int            `json:"total"`
}

type searchObject struct {
	Package struct {
		Name        string `json:"name"`
		Version     string `json:"version"`
		Description string `json:"description"`
		Date        string `json:"date"`
		Links       struct {
			Homepage string `json:"homepage"`
		} `json:"links"`
	} `json:"package"`
	Score struct {
		Final float64 `json:"final"`
	} `json:"score"`
}

// Search runs a full-text query against the registry. page is 1-based.
// Hits whose names cannot be mapped to Maven coordinates are dropped.
func (r *Registry) Search(ctx context.Context, text string, page int) (*core.SearchResults, error) {
	if page < 1 {
		page = 1
	}
	var resp searchResponse
	url := r.urls.Search(text, (page-1)*SearchPageSize, SearchPageSize)
	if err := r.client.GetJSON(ctx, url, &resp); err != nil {
		registryRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("npm search %q: %w", text, err)
	}
	registryRequests.WithLabelValues("ok").Inc()

	out := &core.SearchResults{
		Total:   resp.Total,
		Page:    page,
		Results: make([]core.SearchResult, 0, len(resp.Objects)),
	}
	for _, o := range resp.Objects {
		n, err := core.ParseName(o.Package.Name)
		if err != nil {
			slog.DebugContext(ctx, "skipping search hit", "name", o.Package.Name, "error", err)
			continue
		}
		res := core.SearchResult{
			Name:        n,
			Version:     o.Package.Version,
			Description: o.Package.Description,
			Homepage:    o.Package.Links.Homepage,
			Score:       o.Score.Final,
		}
		if ts, err := time.Parse(time.RFC3339, o.Package.Date); err == nil {
			res.Date = ts
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}
