package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := apiClient.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("server unhealthy: %w", err)
		}
		cmd.Printf("%s: %s\n", serverURL, status)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show query and ingestion statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := apiClient.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch stats: %w", err)
		}
		cmd.Printf("Queries:      %d (%d failed, %d with no results)\n", s.TotalQueries, s.FailedQueries, s.ZeroResultCount)
		cmd.Printf("Expanded:     %d (%d from cache)\n", s.ExpandedQueries, s.ExpansionCacheHit)
		cmd.Printf("Latency:      avg %.1fms, p50 %dms, p95 %dms, p99 %dms\n", s.AvgLatencyMs, s.P50LatencyMs, s.P95LatencyMs, s.P99LatencyMs)
		cmd.Printf("Documents:    %d ingested, %d failed, %d deleted\n", s.DocsIngested, s.FailedIngests, s.DocsDeleted)
		cmd.Printf("Chunks:       %d (%d images)\n", s.ChunksIngested, s.ImagesEnriched)
		if len(s.TopQueries) > 0 {
			cmd.Println("\nTop queries:")
			for _, q := range s.TopQueries {
				cmd.Printf("  %5d  %s\n", q.Count, q.Query)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statsCmd)
}
