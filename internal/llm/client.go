// Package llm is an OpenAI-compatible client for chat completions and
// embeddings.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docqa/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/resilience"
)

// maxEmbeddingBatch bounds the inputs sent in one embeddings request.
const maxEmbeddingBatch = 128

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return apperrors.ErrExternalService }

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes a single chat completion.
type CompletionRequest struct {
	Model     string
	Messages  []Message
	MaxTokens int
}

// Client talks to the chat completions and embeddings endpoints.
type Client struct {
	baseURL        string
	apiKey         string
	embeddingModel string
	dimensions     int
	http           *http.Client
	breaker        *resilience.CircuitBreaker
	retry          resilience.RetryConfig
	logger         *slog.Logger
}

// New creates a Client. dimensions, when positive, is requested from the
// embeddings endpoint and checked on every returned vector.
func New(cfg config.OpenAIConfig, dimensions int, breaker *resilience.CircuitBreaker) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("openai", resilience.CircuitBreakerConfig{})
	}
	return &Client{
		baseURL:        strings.TrimSuffix(base, "/"),
		apiKey:         cfg.APIKey,
		embeddingModel: cfg.EmbeddingModel,
		dimensions:     dimensions,
		http:           &http.Client{Timeout: cfg.Timeout},
		breaker:        breaker,
		retry: resilience.RetryConfig{
			MaxAttempts:  4,
			InitialDelay: 250 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Retryable:    retryable,
		},
		logger: slog.Default().With("component", "openai"),
	}, nil
}

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete returns the content of the first choice.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	var out chatResponse
	body := chatRequest{Model: req.Model, Messages: req.Messages, MaxTokens: req.MaxTokens}
	if err := c.do(ctx, "/chat/completions", body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: completion returned no choices", apperrors.ErrExternalService)
	}
	return out.Choices[0].Message.Content, nil
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input, in input order.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for start := 0; start < len(inputs); start += maxEmbeddingBatch {
		end := min(start+maxEmbeddingBatch, len(inputs))
		var resp embeddingResponse
		req := embeddingRequest{Model: c.embeddingModel, Input: inputs[start:end], Dimensions: c.dimensions}
		if err := c.do(ctx, "/embeddings", req, &resp); err != nil {
			return nil, err
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", apperrors.ErrExternalService, len(resp.Data), end-start)
		}
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= end-start {
				return nil, fmt.Errorf("%w: embedding index %d out of range", apperrors.ErrExternalService, d.Index)
			}
			if c.dimensions > 0 && len(d.Embedding) != c.dimensions {
				return nil, fmt.Errorf("%w: embedding has %d dimensions, want %d", apperrors.ErrExternalService, len(d.Embedding), c.dimensions)
			}
			out[start+d.Index] = d.Embedding
		}
	}
	return out, nil
}

// Dimensions reports the configured vector size.
func (c *Client) Dimensions() int { return c.dimensions }

func (c *Client) do(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", path, err)
	}
	return c.breaker.Execute(func() error {
		return resilience.Retry(ctx, "openai "+path, c.retry, func() error {
			return c.once(ctx, path, payload, out)
		})
	})
}

func (c *Client) once(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrExternalService, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", apperrors.ErrExternalService, err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
		if ra, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			apiErr.RetryAfter = time.Duration(ra) * time.Second
		}
		c.logger.Warn("openai request failed", "path", path, "status", resp.StatusCode, "error", apiErr.Message)
		if apiErr.RetryAfter > 0 && retryable(apiErr) {
			select {
			case <-time.After(min(apiErr.RetryAfter, 10*time.Second)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return apiErr
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resilience.Permanent(fmt.Errorf("%w: decoding response: %w", apperrors.ErrExternalService, err))
	}
	return nil
}

func errorMessage(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	if len(body) > 256 {
		body = body[:256]
	}
	return string(body)
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
