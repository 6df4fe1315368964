package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/query"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question about stored documents",
	Long: `Runs a hybrid vector and keyword search over the stored chunks and prints
the generated answer followed by the supporting snippets.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var (
	queryDocumentID string
	queryTopK       int
	queryJSON       bool
)

func init() {
	queryCmd.Flags().StringVarP(&queryDocumentID, "document", "d", "", "restrict the search to one document id")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of snippets (default: server setting)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the raw response as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	resp, err := apiClient.Query(cmd.Context(), query.Request{
		Text:       strings.Join(args, " "),
		DocumentID: queryDocumentID,
		TopK:       queryTopK,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if resp.TotalResults == 0 {
		cmd.Println("No results found")
		return nil
	}
	if resp.Result != "" {
		cmd.Printf("%s\n\n", resp.Result)
	}
	cmd.Printf("Sources (%d):\n", resp.TotalResults)
	for i, s := range resp.Snippets {
		cmd.Printf("\n[%d] %s chunk %s, page %v (score %.4f)\n", i+1, s.DocumentID, s.ChunkIndex, s.Metadata["page_no"], s.RelevanceScore)
		cmd.Printf("    %s\n", preview(s.Content, 200))
	}
	return nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
