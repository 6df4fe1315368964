package query

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/docqa/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/tracing"
)

type Searcher interface {
	HybridSearch(ctx context.Context, req store.SearchRequest) (*store.SearchResult, error)
}

type TextExpander interface {
	Expand(ctx context.Context, text string) (string, error)
	Model() string
}

type ExpansionCache interface {
	GetOrCompute(ctx context.Context, model, text string, compute func() (string, error)) (string, bool, error)
}

type Options struct {
	Expander     TextExpander
	Cache        ExpansionCache
	Tracker      analytics.Tracker
	Metrics      *metrics.Metrics
	DefaultLimit int
	MaxResults   int
}

type Orchestrator struct {
	searcher Searcher
	opts     Options
	logger   *slog.Logger
}

func New(searcher Searcher, opts Options) *Orchestrator {
	if opts.Tracker == nil {
		opts.Tracker = analytics.Nop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNop()
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 5
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 50
	}
	return &Orchestrator{
		searcher: searcher,
		opts:     opts,
		logger:   slog.Default().With("component", "query"),
	}
}

type expansion struct {
	text     string
	expanded bool
	cached   bool
}

// Query expands req.Text, searches and maps the hits. Expansion failures fall
// back to the raw text; search and generation failures are returned. A
// document with no chunks yields an empty response, not an error.
func (o *Orchestrator) Query(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query text is required")
	}
	if req.TopK < 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "top_k must not be negative")
	}
	limit := req.TopK
	if limit == 0 {
		limit = o.opts.DefaultLimit
	}
	limit = min(limit, o.opts.MaxResults)

	ctx, span := tracing.StartSpan(ctx, "query", logger.RequestID(ctx))
	span.SetAttr("document_id", req.DocumentID)
	span.SetAttr("limit", limit)
	log := logger.FromContext(ctx)

	exp := o.expand(ctx, text)

	searchCtx, searchSpan := tracing.StartChildSpan(ctx, "search")
	res, err := o.searcher.HybridSearch(searchCtx, store.SearchRequest{
		Query:       exp.text,
		DocumentID:  req.DocumentID,
		Limit:       limit,
		GroupedTask: text,
	})
	searchSpan.End(err)

	event := analytics.QueryEvent{
		Type:            analytics.EventQuery,
		Query:           text,
		DocumentID:      req.DocumentID,
		Expanded:        exp.expanded,
		ExpansionCached: exp.cached,
		Timestamp:       time.Now().UTC(),
		RequestID:       logger.RequestID(ctx),
	}
	if err != nil {
		span.End(err)
		span.Log(log)
		event.Failed = true
		event.LatencyMs = time.Since(start).Milliseconds()
		o.opts.Tracker.Track(event)
		o.opts.Metrics.QueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("searching: %w", err)
	}

	resp := &Response{Result: res.Generated, Snippets: make([]Snippet, len(res.Hits))}
	for i, h := range res.Hits {
		resp.Snippets[i] = toSnippet(h)
	}
	resp.TotalResults = len(resp.Snippets)

	elapsed := time.Since(start)
	span.SetAttr("results", resp.TotalResults)
	span.End(nil)
	span.Log(log)
	event.Results = resp.TotalResults
	event.LatencyMs = elapsed.Milliseconds()
	o.opts.Tracker.Track(event)

	resultType := "hits"
	if resp.TotalResults == 0 {
		resultType = "zero"
	}
	o.opts.Metrics.QueriesTotal.WithLabelValues(resultType).Inc()
	o.opts.Metrics.QueryLatency.Observe(elapsed.Seconds())
	o.opts.Metrics.QueryResultsCount.Observe(float64(resp.TotalResults))
	log.Info("query executed",
		"document_id", req.DocumentID,
		"results", resp.TotalResults,
		"expanded", exp.expanded,
		"expansion_cached", exp.cached,
		"latency_ms", elapsed.Milliseconds(),
	)
	return resp, nil
}

func (o *Orchestrator) expand(ctx context.Context, text string) expansion {
	if o.opts.Expander == nil {
		o.opts.Metrics.QueryExpansions.WithLabelValues("disabled").Inc()
		return expansion{text: text}
	}
	ctx, span := tracing.StartChildSpan(ctx, "expand")
	compute := func() (string, error) { return o.opts.Expander.Expand(ctx, text) }

	var (
		out    string
		cached bool
		err    error
	)
	if o.opts.Cache != nil {
		out, cached, err = o.opts.Cache.GetOrCompute(ctx, o.opts.Expander.Model(), text, compute)
		if cached {
			o.opts.Metrics.ExpansionCacheHits.Inc()
		} else {
			o.opts.Metrics.ExpansionCacheMisses.Inc()
		}
	} else {
		out, err = compute()
	}
	span.End(err)

	switch {
	case err != nil:
		logger.FromContext(ctx).Warn("query expansion failed, using raw query", "error", err)
		o.opts.Metrics.QueryExpansions.WithLabelValues("fallback").Inc()
		return expansion{text: text}
	case strings.TrimSpace(out) == "":
		o.opts.Metrics.QueryExpansions.WithLabelValues("empty").Inc()
		return expansion{text: text}
	case cached:
		o.opts.Metrics.QueryExpansions.WithLabelValues("cached").Inc()
	default:
		o.opts.Metrics.QueryExpansions.WithLabelValues("expanded").Inc()
	}
	return expansion{text: out, expanded: true, cached: cached}
}

func toSnippet(h store.Hit) Snippet {
	return Snippet{
		Content:    h.Chunk.Data,
		DocumentID: h.Chunk.DocumentID,
		ChunkIndex: strconv.Itoa(h.Chunk.ChunkID),
		Metadata: map[string]any{
			"distance":        h.Distance,
			"score":           h.Score,
			"vector_score":    h.VectorScore,
			"keyword_score":   h.KeywordScore,
			"page_no":         h.Chunk.PageNo,
			"chunk_data_type": h.Chunk.DataType,
			"file_type":       h.Chunk.FileType,
		},
		RelevanceScore: h.Score,
	}
}
