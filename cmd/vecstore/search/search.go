// Package searchcmder provides the search command for querying a running
// vecstore server.
package searchcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/vecstore/api"
	apisearch "github.com/papercomputeco/vecstore/api/search"
	"github.com/papercomputeco/vecstore/pkg/config"
	"github.com/papercomputeco/vecstore/pkg/utils"
	"github.com/papercomputeco/vecstore/pkg/vector"
)

var (
	rankStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	collectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const requestTimeout = 30 * time.Second

type searchCommander struct {
	query      string
	collection string
	topK       int
	quiet      bool
	filters    []string

	apiTarget string
}

const searchLongDesc string = `Search a running vecstore server by text.

The text is embedded by the server's configured embedder. With --collection
the search runs against one collection and may carry metadata filters;
without it every collection is searched.

Use --quiet to output only matching ids, one per line.

Examples:
  vecstore search "how to configure logging" --collection documents
  vecstore search "retry policy" -c documents --filter lang=go --top 10
  vecstore search "error handling" --api-target http://vec.internal:8081
  vecstore search "charm CLI" --quiet`

const searchShortDesc string = "Search a running vecstore server"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("api-target") {
				return nil
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.apiTarget = cfg.APITarget()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cmder.collection, "collection", "c", "", "Collection to search (default: all collections)")
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 5, "Number of results to return")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only ids, one per line (for piping)")
	cmd.Flags().StringArrayVarP(&cmder.filters, "filter", "f", nil, "Metadata equality filter key=value (repeatable, requires --collection)")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", config.NewDefaultConfig().APITarget(), "vecstore API server URL")

	return cmd
}

// hit is a result tagged with the collection it came from.
type hit struct {
	collection string
	vector.SearchResult
}

func (c *searchCommander) run(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	filter, err := ParseFilters(c.filters)
	if err != nil {
		return err
	}
	if len(filter) > 0 && c.collection == "" {
		return fmt.Errorf("--filter requires --collection")
	}

	var hits []hit
	if c.collection != "" {
		out, err := QueryAPI(ctx, c.apiTarget, c.collection, apisearch.Input{Text: c.query, TopK: c.topK, Filter: filter})
		if err != nil {
			return err
		}
		for _, r := range out.Results {
			hits = append(hits, hit{collection: out.Collection, SearchResult: r})
		}
	} else {
		out, err := SearchAPI(ctx, c.apiTarget, apisearch.MultiInput{Text: c.query, TopK: c.topK})
		if err != nil {
			return err
		}
		hits = mergeResults(out.Results, c.topK)
	}

	if len(hits) == 0 {
		if !c.quiet {
			fmt.Fprintln(w, "No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, h := range hits {
			fmt.Fprintln(w, h.ID)
		}
		return nil
	}

	fmt.Fprintf(w, "\n%s %s\n\n",
		headerStyle.Render("Search Results for:"),
		idStyle.Render(fmt.Sprintf("%q", c.query)),
	)
	for i, h := range hits {
		printHit(w, i+1, h)
	}
	return nil
}

func printHit(w io.Writer, rank int, h hit) {
	fmt.Fprintf(w, "  %s  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", h.Score)),
		collectionStyle.Render(h.collection),
		idStyle.Render(h.ID),
	)

	if len(h.Metadata) > 0 {
		keys := make([]string, 0, len(h.Metadata))
		for k := range h.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, h.Metadata[k]))
		}
		fmt.Fprintf(w, "  %s\n", dimStyle.Render(utils.Truncate(strings.Join(parts, " "), 96)))
	}
	fmt.Fprintln(w)
}

// mergeResults flattens per-collection results into one ranking. Ties keep
// collection name order.
func mergeResults(results map[string][]vector.SearchResult, topK int) []hit {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	var hits []hit
	for _, name := range names {
		for _, r := range results[name] {
			hits = append(hits, hit{collection: name, SearchResult: r})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// ParseFilters turns key=value pairs into an equality filter. Values that
// parse as JSON scalars (numbers, booleans) keep their type.
func ParseFilters(pairs []string) (vector.Filter, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	filter := make(vector.Filter, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q: expected key=value", p)
		}

		var scalar any
		if err := json.Unmarshal([]byte(value), &scalar); err == nil {
			switch scalar.(type) {
			case float64, bool:
				filter[key] = scalar
				continue
			}
		}
		filter[key] = value
	}
	return filter, nil
}

// QueryAPI calls POST /v1/collections/{name}/query.
func QueryAPI(ctx context.Context, apiTarget, collection string, in apisearch.Input) (*apisearch.Output, error) {
	var out apisearch.Output
	if err := post(ctx, apiTarget, "/v1/collections/"+url.PathEscape(collection)+"/query", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchAPI calls POST /v1/search.
func SearchAPI(ctx context.Context, apiTarget string, in apisearch.MultiInput) (*apisearch.MultiOutput, error) {
	var out apisearch.MultiOutput
	if err := post(ctx, apiTarget, "/v1/search", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func post(ctx context.Context, apiTarget, path string, in, out any) error {
	target, err := url.Parse(apiTarget)
	if err != nil {
		return fmt.Errorf("invalid API target URL: %w", err)
	}
	target.Path = strings.TrimSuffix(target.Path, "/") + path

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to vecstore API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse search response: %w", err)
	}
	return nil
}
