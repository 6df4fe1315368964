package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/chunker"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/docid"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/enrichment"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/extractor"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/docqa/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/ingestion/pipeline"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/query"
	queryhandler "github.com/Adithya-Monish-Kumar-K/docqa/internal/query/handler"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/router"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/store/memory"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/health"
)

type stubVision struct{}

func (stubVision) ExtractText(context.Context, []byte) (string, error) { return "TOTAL 42", nil }
func (stubVision) Caption(context.Context, []byte) (string, error)     { return "a receipt", nil }

// newServer runs the whole service in process over the memory store.
func newServer(t *testing.T) *Client {
	t.Helper()
	registry, err := extractor.NewRegistry(map[string]string{
		"txt":  "text/plain",
		"json": "application/json",
	})
	require.NoError(t, err)
	ch, err := chunker.New(1000, 200)
	require.NoError(t, err)

	st := memory.New(memory.Options{})
	agg := analytics.NewAggregator()
	enricher := enrichment.New(stubVision{}, config.EnrichmentConfig{MaxConcurrency: 2}, nil, nil)
	ingest := pipeline.New(registry, enricher, ch, st, pipeline.Options{Tracker: agg, MaxUploadBytes: 1 << 20})
	orchestrator := query.New(st, query.Options{Tracker: agg})

	srv := httptest.NewServer(router.New(router.Handlers{
		Documents: ingesthandler.New(ingest, 1<<20),
		Query:     queryhandler.New(orchestrator),
		Analytics: analytics.NewHandler(agg, nil),
		Health:    health.NewChecker(),
	}, router.Options{}))
	t.Cleanup(srv.Close)
	return New(srv.URL, srv.Client())
}

func TestDocumentLifecycle(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()

	status, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", status)

	meta, err := c.Upload(ctx, "report.txt", "text/plain", []byte("Quarterly revenue grew twelve percent on strong invoicing."))
	require.NoError(t, err)
	assert.Equal(t, docid.Generate("report.txt"), meta.DocumentID)
	assert.Equal(t, 1, meta.TotalChunks)

	_, err = c.Upload(ctx, "items.json", "application/json", []byte(`[{"sku":"a-1"},{"sku":"b-2"}]`))
	require.NoError(t, err)

	docs, err := c.ListDocuments(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	resp, err := c.Query(ctx, query.Request{Text: "revenue", DocumentID: meta.DocumentID})
	require.NoError(t, err)
	require.Equal(t, 1, resp.TotalResults)
	assert.Equal(t, meta.DocumentID, resp.Snippets[0].DocumentID)
	assert.Equal(t, "0", resp.Snippets[0].ChunkIndex)
	assert.Empty(t, resp.Result)

	got, err := c.GetDocument(ctx, meta.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "report.txt", got.FileName)

	require.NoError(t, c.DeleteDocument(ctx, meta.DocumentID))
	_, err = c.GetDocument(ctx, meta.DocumentID)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	resp, err = c.Query(ctx, query.Request{Text: "revenue", DocumentID: meta.DocumentID})
	require.NoError(t, err)
	assert.Zero(t, resp.TotalResults)
	assert.Empty(t, resp.Snippets)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalQueries)
}

func TestUploadRejected(t *testing.T) {
	c := newServer(t)

	_, err := c.Upload(context.Background(), "image.bin", "application/octet-stream", []byte{1, 2, 3})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Error While Uploading File", apiErr.Message)
	assert.NotEmpty(t, apiErr.Detail)
}

func TestQueryRejected(t *testing.T) {
	c := newServer(t)

	_, err := c.Query(context.Background(), query.Request{Text: ""})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Error While Executing Query", apiErr.Message)
}

func TestUndecodableResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).ListDocuments(context.Background(), 10, 0)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}
