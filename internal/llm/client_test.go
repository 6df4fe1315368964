package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docqa/pkg/errors"
)

func newTestClient(t *testing.T, dims int, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(config.OpenAIConfig{BaseURL: srv.URL, APIKey: "sk", EmbeddingModel: "emb", Timeout: 5 * time.Second}, dims, nil)
	require.NoError(t, err)
	c.retry.InitialDelay = time.Millisecond
	return c
}

func TestComplete(t *testing.T) {
	c := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Equal(t, 1024, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"expanded"}}]}`))
	})
	out, err := c.Complete(context.Background(), CompletionRequest{
		Model:     "gpt-4o-mini",
		Messages:  []Message{{Role: "system", Content: "s"}, {Role: "user", Content: "u"}},
		MaxTokens: 1024,
	})
	require.NoError(t, err)
	assert.Equal(t, "expanded", out)
}

func TestCompleteAPIError(t *testing.T) {
	c := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	})
	_, err := c.Complete(context.Background(), CompletionRequest{Model: "m"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "bad key", apiErr.Message)
	assert.ErrorIs(t, err, apperrors.ErrExternalService)
}

func TestRetryOn429(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})
	out, err := c.Complete(context.Background(), CompletionRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedOrdersByIndex(t *testing.T) {
	c := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Input)
		assert.Equal(t, 2, req.Dimensions)
		w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	})
	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestEmbedDimensionMismatch(t *testing.T) {
	c := newTestClient(t, 3, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":0,"embedding":[1,0]}]}`))
	})
	_, err := c.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, apperrors.ErrExternalService)
}

func TestEmbedEmpty(t *testing.T) {
	c := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	vecs, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}
