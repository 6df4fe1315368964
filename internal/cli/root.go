// Package cli implements the docqa command-line client.
package cli

import (
	"cmp"
	"context"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/client"
)

var (
	serverURL      string
	requestTimeout time.Duration

	apiClient *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Upload documents and ask questions about them",
	Long: `docqa talks to a running docqa server. It uploads PDF, DOCX, JSON and
text files, lists and deletes stored documents, and answers questions with
hybrid search over the stored chunks.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		apiClient = client.New(serverURL, &http.Client{Timeout: requestTimeout})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url",
		cmp.Or(os.Getenv("DOCQA_URL"), "http://localhost:8000"), "base URL of the docqa server")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", 2*time.Minute, "per-request timeout")
}

// Execute runs the root command. Cancelling ctx aborts in-flight requests.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
