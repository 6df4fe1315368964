package vision

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(config.VisionConfig{Endpoint: srv.URL, APIKey: "key"}, srv.Client())
	require.NoError(t, err)
	c.retry.InitialDelay = 1
	return c
}

func TestExtractText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vision/v3.2/ocr", r.URL.Path)
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		assert.Equal(t, "true", r.URL.Query().Get("detectOrientation"))
		assert.Equal(t, "key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "img", string(body))
		w.Write([]byte(`{"regions":[{"lines":[{"words":[{"text":"Hello"},{"text":"world"}]},{"words":[{"text":"again"}]}]}]}`))
	})
	text, err := c.ExtractText(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nagain", text)
}

func TestCaptionPicksHighestConfidence(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vision/v3.2/analyze", r.URL.Path)
		assert.Equal(t, "Description", r.URL.Query().Get("visualFeatures"))
		w.Write([]byte(`{"description":{"captions":[{"text":"a dog","confidence":0.4},{"text":"a cat on a mat","confidence":0.9}]}}`))
	})
	caption, err := c.Caption(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "a cat on a mat", caption)
}

func TestCaptionNoCandidates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"description":{"captions":[]}}`))
	})
	_, err := c.Caption(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrNoCaption)
}

func TestStatusErrorNotRetriedOn4xx(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad image", http.StatusBadRequest)
	})
	_, err := c.ExtractText(context.Background(), []byte("img"))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"regions":[]}`))
	})
	text, err := c.ExtractText(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(config.VisionConfig{}, nil)
	assert.Error(t, err)
}

func TestIsServiceFailure(t *testing.T) {
	assert.False(t, IsServiceFailure(nil))
	assert.False(t, IsServiceFailure(ErrNoCaption))
	assert.False(t, IsServiceFailure(&StatusError{StatusCode: 400}))
	assert.True(t, IsServiceFailure(&StatusError{StatusCode: 429}))
	assert.True(t, IsServiceFailure(&StatusError{StatusCode: 503}))
	assert.True(t, IsServiceFailure(errors.New("dial tcp")))
}
