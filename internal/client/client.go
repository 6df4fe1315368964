// Package client is a Go client for the docqa HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/query"
)

// APIError is a non-success envelope returned by the server.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%d: %s: %s", e.StatusCode, e.Message, e.Detail)
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for baseURL. hc may be nil.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: hc}
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// Upload sends data as a multipart upload under fileName.
func (c *Client) Upload(ctx context.Context, fileName, contentType string, data []byte) (*ingestion.DocumentMetadata, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("writing form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	var meta ingestion.DocumentMetadata
	if err := c.do(ctx, http.MethodPost, "/documents/upload", mw.FormDataContentType(), &body, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *Client) Query(ctx context.Context, req query.Request) (*query.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}
	var resp query.Response
	if err := c.do(ctx, http.MethodPost, "/query", "application/json", bytes.NewReader(payload), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListDocuments(ctx context.Context, limit, offset int) ([]ingestion.DocumentMetadata, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	var docs []ingestion.DocumentMetadata
	if err := c.do(ctx, http.MethodGet, "/documents?"+q.Encode(), "", nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) GetDocument(ctx context.Context, docID string) (*ingestion.DocumentMetadata, error) {
	var meta ingestion.DocumentMetadata
	if err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(docID), "", nil, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *Client) DeleteDocument(ctx context.Context, docID string) error {
	return c.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(docID), "", nil, nil)
}

func (c *Client) Stats(ctx context.Context) (*analytics.AggregatedStats, error) {
	var stats analytics.AggregatedStats
	if err := c.do(ctx, http.MethodGet, "/analytics", "", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Health returns the status reported by /health.
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("checking health: %w", err)
	}
	defer resp.Body.Close()
	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return out.Status, &APIError{StatusCode: resp.StatusCode, Message: out.Status}
	}
	return out.Status, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Detail: "undecodable response body"}
	}
	if resp.StatusCode != http.StatusOK || env.Status != http.StatusOK {
		return &APIError{StatusCode: max(env.Status, resp.StatusCode), Message: env.Message, Detail: env.Error}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}
