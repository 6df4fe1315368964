// Package vision is a client for the Azure Computer Vision v3.2 OCR and
// image-description endpoints.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docqa/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/resilience"
)

// ErrNoCaption is returned when the service produced no caption candidates.
var ErrNoCaption = errors.New("no caption candidates")

// StatusError is a non-200 response from the service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vision service returned %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return apperrors.ErrExternalService }

// Client calls the OCR and analyze endpoints.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	retry    resilience.RetryConfig
	logger   *slog.Logger
}

// New creates a Client. hc may be nil.
func New(cfg config.VisionConfig, hc *http.Client) (*Client, error) {
	if cfg.Endpoint == "" || cfg.APIKey == "" {
		return nil, errors.New("vision endpoint and api key are required")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("parsing vision endpoint: %w", err)
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/") + "/",
		apiKey:   cfg.APIKey,
		http:     hc,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			Retryable:    retryable,
		},
		logger: slog.Default().With("component", "vision"),
	}, nil
}

type ocrResponse struct {
	Regions []struct {
		Lines []struct {
			Words []struct {
				Text string `json:"text"`
			} `json:"words"`
		} `json:"lines"`
	} `json:"regions"`
}

// ExtractText runs OCR and returns one line of text per recognised line.
func (c *Client) ExtractText(ctx context.Context, image []byte) (string, error) {
	var out ocrResponse
	params := url.Values{"language": {"en"}, "detectOrientation": {"true"}}
	if err := c.post(ctx, "vision/v3.2/ocr", params, image, &out); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, region := range out.Regions {
		for _, line := range region.Lines {
			words := make([]string, 0, len(line.Words))
			for _, w := range line.Words {
				words = append(words, w.Text)
			}
			sb.WriteString(strings.Join(words, " "))
			sb.WriteByte('\n')
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

type analyzeResponse struct {
	Description struct {
		Captions []struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
		} `json:"captions"`
	} `json:"description"`
}

// Caption returns the highest-confidence description of the image.
func (c *Client) Caption(ctx context.Context, image []byte) (string, error) {
	var out analyzeResponse
	params := url.Values{"visualFeatures": {"Description"}, "language": {"en"}}
	if err := c.post(ctx, "vision/v3.2/analyze", params, image, &out); err != nil {
		return "", err
	}
	captions := out.Description.Captions
	if len(captions) == 0 {
		return "", ErrNoCaption
	}
	best := captions[0]
	for _, cand := range captions[1:] {
		if cand.Confidence > best.Confidence {
			best = cand
		}
	}
	if best.Text == "" {
		return "", ErrNoCaption
	}
	return best.Text, nil
}

func (c *Client) post(ctx context.Context, path string, params url.Values, body []byte, out any) error {
	u := c.endpoint + path + "?" + params.Encode()
	return resilience.Retry(ctx, "vision "+path, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
		if err != nil {
			return resilience.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrExternalService, err)
		}
		defer resp.Body.Close()
		payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("%w: reading response: %w", apperrors.ErrExternalService, err)
		}
		if resp.StatusCode != http.StatusOK {
			c.logger.Warn("vision request failed", "path", path, "status", resp.StatusCode)
			return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(payload), 256)}
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return resilience.Permanent(fmt.Errorf("%w: decoding response: %w", apperrors.ErrExternalService, err))
		}
		return nil
	})
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// IsServiceFailure reports whether err says the service itself is unhealthy,
// as opposed to an empty result or a rejected image.
func IsServiceFailure(err error) bool {
	if err == nil || errors.Is(err, ErrNoCaption) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}
