package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/kafka"
)

const (
	// maxLatencySamples bounds the latency window used for percentiles.
	maxLatencySamples = 10000
	// maxTrackedQueries bounds each per-query count map. When a new query
	// arrives at the cap, the less frequent half is dropped.
	maxTrackedQueries = 5000
)

type AggregatedStats struct {
	TotalQueries      int64            `json:"total_queries"`
	FailedQueries     int64            `json:"failed_queries"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	ExpandedQueries   int64            `json:"expanded_queries"`
	ExpansionCacheHit int64            `json:"expansion_cache_hits"`
	DocsIngested      int64            `json:"docs_ingested"`
	FailedIngests     int64            `json:"failed_ingests"`
	DocsDeleted       int64            `json:"docs_deleted"`
	ChunksIngested    int64            `json:"chunks_ingested"`
	ImagesEnriched    int64            `json:"images_enriched"`
	IngestsByType     map[string]int64 `json:"ingests_by_type"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds events into running stats. It is a Tracker itself, so it
// can be fed directly when Kafka is disabled.
type Aggregator struct {
	mu                sync.RWMutex
	totalQueries      atomic.Int64
	failedQueries     atomic.Int64
	zeroResults       atomic.Int64
	expanded          atomic.Int64
	expansionCached   atomic.Int64
	docsIngested      atomic.Int64
	failedIngests     atomic.Int64
	docsDeleted       atomic.Int64
	chunksIngested    atomic.Int64
	imagesEnriched    atomic.Int64
	latencies         []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	ingestsByType     map[string]int64
	startTime         time.Time

	logger *slog.Logger
}

var _ Tracker = (*Aggregator)(nil)

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		ingestsByType:     make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

func (a *Aggregator) Track(event any) {
	switch e := event.(type) {
	case QueryEvent:
		a.recordQuery(e)
	case *QueryEvent:
		a.recordQuery(*e)
	case IngestEvent:
		a.recordIngest(e)
	case *IngestEvent:
		a.recordIngest(*e)
	default:
		a.logger.Warn("ignoring unknown analytics event", "type", fmt.Sprintf("%T", event))
	}
}

// HandleEvent decodes analytics events consumed from Kafka.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var head struct {
			Type EventType `json:"type"`
		}
		if err := json.Unmarshal(value, &head); err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch head.Type {
		case EventQuery:
			e, err := kafka.DecodeJSON[QueryEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode query event", "error", err)
				return nil
			}
			agg.recordQuery(e)
		case EventIngest, EventDelete:
			e, err := kafka.DecodeJSON[IngestEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode ingest event", "error", err)
				return nil
			}
			agg.recordIngest(e)
		default:
			agg.logger.Warn("ignoring analytics event", "type", head.Type)
		}
		return nil
	}
}

func (a *Aggregator) recordQuery(e QueryEvent) {
	a.totalQueries.Add(1)
	if e.Failed {
		a.failedQueries.Add(1)
	}
	if e.Expanded {
		a.expanded.Add(1)
	}
	if e.ExpansionCached {
		a.expansionCached.Add(1)
	}
	zero := !e.Failed && e.Results == 0
	if zero {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	if len(a.latencies) >= maxLatencySamples {
		a.latencies = append(a.latencies[:0], a.latencies[maxLatencySamples/2:]...)
	}
	a.latencies = append(a.latencies, e.LatencyMs)
	countQuery(a.queryCounts, e.Query)
	if zero {
		countQuery(a.zeroResultQueries, e.Query)
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordIngest(e IngestEvent) {
	if e.Type == EventDelete {
		a.docsDeleted.Add(1)
		return
	}
	if e.Failed {
		a.failedIngests.Add(1)
		return
	}
	a.docsIngested.Add(1)
	a.chunksIngested.Add(int64(e.Chunks))
	a.imagesEnriched.Add(int64(e.Images))
	a.mu.Lock()
	a.ingestsByType[e.FileType]++
	a.mu.Unlock()
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalQueries:      a.totalQueries.Load(),
		FailedQueries:     a.failedQueries.Load(),
		ZeroResultCount:   a.zeroResults.Load(),
		ExpandedQueries:   a.expanded.Load(),
		ExpansionCacheHit: a.expansionCached.Load(),
		DocsIngested:      a.docsIngested.Load(),
		FailedIngests:     a.failedIngests.Load(),
		DocsDeleted:       a.docsDeleted.Load(),
		ChunksIngested:    a.chunksIngested.Load(),
		ImagesEnriched:    a.imagesEnriched.Load(),
		IngestsByType:     make(map[string]int64, len(a.ingestsByType)),
	}
	for k, v := range a.ingestsByType {
		stats.IngestsByType[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func countQuery(counts map[string]int64, query string) {
	if _, ok := counts[query]; !ok && len(counts) >= maxTrackedQueries {
		for _, qc := range topN(counts, len(counts))[maxTrackedQueries/2:] {
			delete(counts, qc.Query)
		}
	}
	counts[query]++
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
