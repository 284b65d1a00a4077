// Package statscmder provides the stats command that shows a running
// server's performance counters.
package statscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/vecstore/pkg/cliui"
	"github.com/papercomputeco/vecstore/pkg/config"
	"github.com/papercomputeco/vecstore/pkg/store"
)

const requestTimeout = 10 * time.Second

const statsLongDesc string = `Show performance statistics of a running vecstore server.

Reports the active mode and backend, query and cache counters, and memory
use. Use --json for the raw response.

Examples:
  vecstore stats
  vecstore stats --json
  vecstore stats --api-target http://vec.internal:8081`

const statsShortDesc string = "Show server performance statistics"

func NewStatsCmd() *cobra.Command {
	var (
		apiTarget string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
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
			apiTarget = cfg.APITarget()
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			raw, stats, err := FetchStats(ctx, apiTarget)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				_, err := w.Write(append(raw, '\n'))
				return err
			}
			return render(w, stats)
		},
	}

	cmd.Flags().StringVar(&apiTarget, "api-target", config.NewDefaultConfig().APITarget(), "vecstore API server URL")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON response")

	return cmd
}

// FetchStats calls GET /v1/stats and returns both the raw body and the
// decoded snapshot.
func FetchStats(ctx context.Context, apiTarget string) ([]byte, *store.PerformanceStats, error) {
	target, err := url.Parse(apiTarget)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	target.Path = strings.TrimSuffix(target.Path, "/") + "/v1/stats"

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating stats request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to vecstore API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("stats request failed (HTTP %d): %s", resp.StatusCode, string(raw))
	}

	var stats store.PerformanceStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, nil, fmt.Errorf("failed to parse stats response: %w", err)
	}
	return raw, &stats, nil
}

func render(w io.Writer, s *store.PerformanceStats) error {
	avg := time.Duration(s.Performance.AvgQueryMillis * float64(time.Millisecond))

	rows := [][]string{
		{"Mode", string(s.Mode)},
		{"Backend", s.Backend},
		{"Collections", strconv.Itoa(s.Collections)},
		{"Queries", strconv.FormatUint(s.Performance.Queries, 10)},
		{"Avg query", cliui.FormatDuration(avg)},
		{"Backend errors", strconv.FormatUint(s.Performance.BackendErrors, 10)},
		{"Vectors upserted", strconv.FormatUint(s.Performance.VectorsUpserted, 10)},
		{"Vectors deleted", strconv.FormatUint(s.Performance.VectorsDeleted, 10)},
		{"Cache hit rate", fmt.Sprintf("%.1f%% (%d hits, %d misses)", s.Cache.HitRate*100, s.Cache.Hits, s.Cache.Misses)},
		{"Local cache entries", strconv.Itoa(s.Cache.LocalEntries)},
		{"Distributed cache", strconv.FormatBool(s.Cache.RemoteEnabled)},
		{"Heap in use", fmt.Sprintf("%.1f MiB", float64(s.Memory.HeapInuseBytes)/(1<<20))},
		{"Goroutines", strconv.Itoa(s.Memory.Goroutines)},
	}
	if s.Worker != nil {
		rows = append(rows, []string{"Cache jobs dropped", strconv.FormatUint(s.Worker.Dropped, 10)})
	}

	table := cliui.MarkdownTable([]string{"Metric", "Value"}, rows)
	rendered, err := cliui.RenderMarkdown(table)
	if err != nil {
		rendered = table
	}
	_, err = fmt.Fprint(w, rendered)
	return err
}
