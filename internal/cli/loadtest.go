package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/client"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/query"
)

var defaultLoadQueries = []string{
	"what is the total revenue",
	"summarise the main findings",
	"which risks are mentioned",
	"who signed the agreement",
	"what does the chart show",
	"list the key dates",
	"what are the payment terms",
	"describe the methodology",
}

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Send concurrent queries and report latency",
	Long: `Runs a fixed set of questions against POST /query from concurrent
workers for a fixed duration and prints throughput, latency percentiles and
status codes.`,
	Args: cobra.NoArgs,
	RunE: runLoadtest,
}

var (
	loadConcurrency int
	loadDuration    time.Duration
	loadDocumentID  string
	loadQueries     []string
)

func init() {
	loadtestCmd.Flags().IntVarP(&loadConcurrency, "concurrency", "c", 10, "number of concurrent workers")
	loadtestCmd.Flags().DurationVar(&loadDuration, "duration", 30*time.Second, "test duration")
	loadtestCmd.Flags().StringVarP(&loadDocumentID, "document", "d", "", "restrict queries to one document id")
	loadtestCmd.Flags().StringSliceVarP(&loadQueries, "query", "q", nil, "question to send (repeatable)")
	rootCmd.AddCommand(loadtestCmd)
}

type loadStats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies:   make([]time.Duration, 0, 10000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

// record counts one finished request. status is 0 for transport errors.
func (s *loadStats) record(d time.Duration, status int) {
	s.totalRequests.Add(1)
	if status == 0 {
		s.errorCount.Add(1)
		return
	}
	if status == http.StatusOK {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, d)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[status]; !ok {
		s.statusCodes[status] = &atomic.Int64{}
	}
	s.statusCodes[status].Add(1)
	s.statusCodesMu.Unlock()
}

func runLoadtest(cmd *cobra.Command, args []string) error {
	queries := loadQueries
	if len(queries) == 0 {
		queries = defaultLoadQueries
	}
	if loadConcurrency <= 0 {
		return errors.New("concurrency must be positive")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== docqa Load Test ===")
	fmt.Fprintf(out, "Target:      %s\n", serverURL)
	fmt.Fprintf(out, "Concurrency: %d\n", loadConcurrency)
	fmt.Fprintf(out, "Duration:    %s\n", loadDuration)
	fmt.Fprintf(out, "Queries:     %d unique\n\n", len(queries))

	c := client.New(serverURL, &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        loadConcurrency * 2,
			MaxIdleConnsPerHost: loadConcurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	})
	stats := generateLoad(cmd.Context(), c, loadConcurrency, loadDuration, queries, loadDocumentID)
	return printLoadReport(out, stats, loadDuration)
}

func generateLoad(ctx context.Context, c *client.Client, concurrency int, duration time.Duration, queries []string, docID string) *loadStats {
	stats := newLoadStats()
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; ctx.Err() == nil; i++ {
				start := time.Now()
				_, err := c.Query(ctx, query.Request{Text: queries[i%len(queries)], DocumentID: docID})
				if ctx.Err() != nil {
					return
				}
				stats.record(time.Since(start), statusOf(err))
			}
		}()
	}
	wg.Wait()
	return stats
}

func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func printLoadReport(out io.Writer, stats *loadStats, duration time.Duration) error {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	failed := stats.errorCount.Load()

	fmt.Fprintln(out, "=== Results ===")
	fmt.Fprintf(out, "Total Requests:  %d\n", total)
	fmt.Fprintf(out, "Successful:      %d\n", success)
	fmt.Fprintf(out, "Errors:          %d\n", failed)
	if total > 0 {
		fmt.Fprintf(out, "Error Rate:      %.2f%%\n", float64(failed)/float64(total)*100)
		fmt.Fprintf(out, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.latenciesMu.Lock()
	latencies := slices.Clone(stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Fprintln(out)
		fmt.Fprintln(out, "=== Latency ===")
		fmt.Fprintf(out, "Min:    %s\n", latencies[0])
		fmt.Fprintf(out, "Avg:    %s\n", avg)
		fmt.Fprintf(out, "P50:    %s\n", latencyPercentile(latencies, 50))
		fmt.Fprintf(out, "P90:    %s\n", latencyPercentile(latencies, 90))
		fmt.Fprintf(out, "P95:    %s\n", latencyPercentile(latencies, 95))
		fmt.Fprintf(out, "P99:    %s\n", latencyPercentile(latencies, 99))
		fmt.Fprintf(out, "Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Fprintf(out, "  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		return errors.New("no requests completed, is the server running?")
	}
	return nil
}

func latencyPercentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}
