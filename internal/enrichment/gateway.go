// Package enrichment resolves image jobs into text by running OCR and
// captioning against an image-analysis service. Failures degrade to
// placeholder text; they never fail the batch.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/extractor"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/vision"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/resilience"
)

// Analyzer is the image-analysis capability.
type Analyzer interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
	Caption(ctx context.Context, image []byte) (string, error)
}

// Placeholder texts used when a modality fails.
const (
	OCRProcessingError     = "OCR processing error"
	CaptionGenerationError = "Caption generation error"
	NoCaption              = "No caption generated"
)

// Format joins OCR text and caption into the text of an image item.
func Format(ocrText, caption string) string {
	return fmt.Sprintf("Image text: %s\nImage description: %s", ocrText, caption)
}

// Gateway fans image jobs out to an Analyzer.
type Gateway struct {
	analyzer       Analyzer
	limiter        *rate.Limiter
	maxConcurrency int
	callTimeout    time.Duration
	breaker        *resilience.CircuitBreaker
	metrics        *metrics.Metrics
}

// New builds a Gateway. A nil breaker or metrics gets a private default.
func New(analyzer Analyzer, cfg config.EnrichmentConfig, breaker *resilience.CircuitBreaker, m *metrics.Metrics) *Gateway {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := max(cfg.Burst, 1)
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("vision", resilience.CircuitBreakerConfig{
			IsFailure: vision.IsServiceFailure,
		})
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Gateway{
		analyzer:       analyzer,
		limiter:        rate.NewLimiter(limit, burst),
		maxConcurrency: max(cfg.MaxConcurrency, 1),
		callTimeout:    cfg.CallTimeout,
		breaker:        breaker,
		metrics:        m,
	}
}

// Enrich resolves every job into an image item at the job's position. The
// result is in job order regardless of completion order. The returned slice
// has exactly len(jobs) items.
func (g *Gateway) Enrich(ctx context.Context, jobs []extractor.ImageJob) []extractor.ContentItem {
	if len(jobs) == 0 {
		return nil
	}
	log := logger.FromContext(ctx).With("component", "enrichment")
	out := make([]extractor.ContentItem, len(jobs))

	var eg errgroup.Group
	eg.SetLimit(g.maxConcurrency)
	for i, job := range jobs {
		eg.Go(func() error {
			out[i] = extractor.ContentItem{
				Position: job.Position,
				Kind:     extractor.KindImage,
				Text:     g.enrichOne(ctx, log, job),
			}
			return nil
		})
	}
	_ = eg.Wait()
	log.Info("images enriched", "count", len(jobs))
	return out
}

func (g *Gateway) enrichOne(ctx context.Context, log *slog.Logger, job extractor.ImageJob) string {
	var ocrText, caption string
	done := make(chan struct{})
	go func() {
		defer close(done)
		text, err := g.call(ctx, func(ctx context.Context) (string, error) {
			return g.analyzer.ExtractText(ctx, job.Data)
		})
		ocrText = g.resolve("ocr", text, err, log, job)
	}()
	text, err := g.call(ctx, func(ctx context.Context) (string, error) {
		return g.analyzer.Caption(ctx, job.Data)
	})
	caption = g.resolve("caption", text, err, log, job)
	<-done
	return Format(ocrText, caption)
}

// call waits for the rate limiter, then runs fn behind the breaker and a
// per-call deadline.
func (g *Gateway) call(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	var out string
	err := g.breaker.Execute(func() error {
		var err error
		out, err = resilience.Call(ctx, g.callTimeout, "vision", fn)
		return err
	})
	return out, err
}

func (g *Gateway) resolve(modality, text string, err error, log *slog.Logger, job extractor.ImageJob) string {
	if err == nil {
		g.metrics.EnrichmentCalls.WithLabelValues(modality, "ok").Inc()
		return text
	}
	if modality == "caption" && errors.Is(err, vision.ErrNoCaption) {
		g.metrics.EnrichmentCalls.WithLabelValues(modality, "empty").Inc()
		return NoCaption
	}
	g.metrics.EnrichmentCalls.WithLabelValues(modality, "error").Inc()
	log.Warn("image analysis failed", "modality", modality, "position", job.Position, "index", job.Index, "error", err)

	var se *vision.StatusError
	statusErr := errors.As(err, &se)
	switch {
	case modality == "ocr" && statusErr:
		return fmt.Sprintf("OCR Error: %d", se.StatusCode)
	case modality == "ocr":
		return OCRProcessingError
	case statusErr:
		return fmt.Sprintf("Caption Error: %d", se.StatusCode)
	default:
		return CaptionGenerationError
	}
}
