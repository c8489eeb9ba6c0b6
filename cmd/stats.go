package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cindralabs/riskcore/internal/observability"
	"github.com/cindralabs/riskcore/internal/stats"
)

// newStatsCmd creates the `stats` command, which reduces the stored entity
// population into grouped counts for reporting.
func newStatsCmd() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregates stored entities into grouped counts, sums and averages",
		RunE: func(cmd *cobra.Command, args []string) error {
			groupBy, _ := cmd.Flags().GetStringSlice("group-by")
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")

			logger := observability.GetLogger()
			entityStore, cleanup, err := initializeStore(cmd.Context(), appConfig.Database().URL, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			entities, err := entityStore.ListAll(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list entities: %w", err)
			}

			counts := stats.Aggregate(entities, groupBy, nil)
			return renderStats(cmd.OutOrStdout(), counts, asJSON)
		},
	}

	statsCmd.Flags().StringSlice("group-by", []string{stats.DimSeverity}, "Dimensions to group by (severity, status, class, category, time_bucket).")
	statsCmd.Flags().Int("limit", 0, "Maximum entities to aggregate; 0 means all.")
	statsCmd.Flags().Bool("json", false, "Emit the aggregation as JSON instead of a table.")

	return statsCmd
}

// renderStats writes one line per group, dimensions first, then the count and
// any numeric rollups.
func renderStats(out io.Writer, counts stats.FacetedCounts, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(counts)
	}

	fmt.Fprintf(out, "Total: %d\n", counts.Total)
	for _, g := range counts.Groups {
		parts := make([]string, 0, len(counts.GroupBy))
		for _, dim := range counts.GroupBy {
			parts = append(parts, dim+"="+g.Key[dim])
		}
		fmt.Fprintf(out, "  %-40s %d", strings.Join(parts, " "), g.Count)

		fields := make([]string, 0, len(g.Averages))
		for field := range g.Averages {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			fmt.Fprintf(out, "  avg_%s=%.1f", field, g.Averages[field])
		}
		fmt.Fprintln(out)
	}
	return nil
}
