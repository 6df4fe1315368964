// Package pipeline runs the ingestion stages for one upload: validate,
// extract, enrich, chunk and store. It also serves the document lookup and
// delete operations that share the same store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/chunker"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/docid"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/extractor"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/docqa/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/tracing"
)

const (
	StageValidate = "validate"
	StageExtract  = "extract"
	StageEnrich   = "enrich"
	StageChunk    = "chunk"
	StageStore    = "store"
)

// StageError records which stage an ingest failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

type Extractor interface {
	Extract(data []byte, mimeType string) (*extractor.Result, error)
}

type Enricher interface {
	Enrich(ctx context.Context, jobs []extractor.ImageJob) []extractor.ContentItem
}

// Locker serialises ingests of the same document id.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type Options struct {
	Locker         Locker
	LockTTL        time.Duration
	Events         EventPublisher
	Tracker        analytics.Tracker
	Metrics        *metrics.Metrics
	MaxUploadBytes int64
	Now            func() time.Time
}

type Orchestrator struct {
	extractor Extractor
	enricher  Enricher
	chunker   *chunker.Chunker
	store     store.Store
	opts      Options
	logger    *slog.Logger
}

func New(ex Extractor, en Enricher, ch *chunker.Chunker, st store.Store, opts Options) *Orchestrator {
	if opts.Tracker == nil {
		opts.Tracker = analytics.Nop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	return &Orchestrator{
		extractor: ex,
		enricher:  en,
		chunker:   ch,
		store:     st,
		opts:      opts,
		logger:    slog.Default().With("component", "ingestion"),
	}
}

// Ingest stores up under the id derived from its file name, replacing any
// chunks previously stored under that id. Validation failures never reach the
// store.
func (o *Orchestrator) Ingest(ctx context.Context, up ingestion.Upload) (*ingestion.DocumentMetadata, error) {
	start := time.Now()
	docID := docid.Generate(up.FileName)
	ctx, span := tracing.StartSpan(ctx, "ingest", logger.RequestID(ctx))
	span.SetAttr("doc_id", docID)
	log := logger.FromContext(ctx).With("doc_id", docID, "file_name", up.FileName)

	meta, images, err := o.ingest(ctx, docID, up)
	span.End(err)
	span.Log(log)

	event := analytics.IngestEvent{
		Type:       analytics.EventIngest,
		DocumentID: docID,
		FileType:   up.ContentType,
		SizeBytes:  len(up.Data),
		Images:     images,
		LatencyMs:  time.Since(start).Milliseconds(),
		Timestamp:  o.opts.Now().UTC(),
		RequestID:  logger.RequestID(ctx),
	}
	if err != nil {
		var se *StageError
		if errors.As(err, &se) {
			event.Stage = se.Stage
		}
		event.Failed = true
		o.opts.Tracker.Track(event)
		status := "failed"
		if apperrors.IsValidation(err) {
			status = "rejected"
		}
		o.opts.Metrics.DocumentsIngested.WithLabelValues(status).Inc()
		log.Warn("ingestion failed", "stage", event.Stage, "error", err)
		return nil, err
	}

	event.Chunks = meta.TotalChunks
	o.opts.Tracker.Track(event)
	o.opts.Metrics.DocumentsIngested.WithLabelValues("success").Inc()
	o.opts.Metrics.ChunksCreated.Add(float64(meta.TotalChunks))
	o.publish(ctx, ingestion.DocumentEvent{
		Type:        ingestion.EventDocumentIngested,
		DocumentID:  docID,
		FileName:    meta.FileName,
		FileType:    meta.FileType,
		TotalChunks: meta.TotalChunks,
		Timestamp:   o.opts.Now().UTC(),
	})
	log.Info("document ingested",
		"chunks", meta.TotalChunks,
		"images", images,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return meta, nil
}

func (o *Orchestrator) ingest(ctx context.Context, docID string, up ingestion.Upload) (*ingestion.DocumentMetadata, int, error) {
	if err := o.stage(ctx, StageValidate, func(context.Context) error {
		return validator.ValidateUpload(&up, o.opts.MaxUploadBytes)
	}); err != nil {
		return nil, 0, err
	}

	var extracted *extractor.Result
	if err := o.stage(ctx, StageExtract, func(context.Context) error {
		var err error
		extracted, err = o.extractor.Extract(up.Data, up.ContentType)
		return err
	}); err != nil {
		return nil, 0, err
	}

	if o.opts.Locker != nil {
		release, err := o.opts.Locker.Lock(ctx, "ingest-lock:"+docID, o.opts.LockTTL)
		if err != nil {
			if errors.Is(err, redis.ErrLockHeld) {
				err = apperrors.Newf(apperrors.ErrDocumentLocked, http.StatusConflict, "document %s is being ingested", docID)
			} else {
				err = fmt.Errorf("acquiring ingest lock: %w", err)
			}
			return nil, 0, &StageError{Stage: StageStore, Err: err}
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				o.logger.Warn("failed to release ingest lock", "doc_id", docID, "error", err)
			}
		}()
	}

	items := extracted.Items
	if len(extracted.Images) > 0 {
		_ = o.stage(ctx, StageEnrich, func(ctx context.Context) error {
			items = append(items, o.enricher.Enrich(ctx, extracted.Images)...)
			return nil
		})
	}

	var chunks []chunker.Chunk
	_ = o.stage(ctx, StageChunk, func(context.Context) error {
		chunks = o.chunker.Chunk(items, docID, up.ContentType)
		return nil
	})

	doc := store.Document{
		ID:          docID,
		FileName:    up.FileName,
		FileType:    up.ContentType,
		UploadedAt:  o.opts.Now().UTC(),
		TotalChunks: len(chunks),
		AdditionalInfo: map[string]any{
			"size_bytes":    len(up.Data),
			"content_items": len(items),
			"images":        len(extracted.Images),
		},
	}
	if err := o.stage(ctx, StageStore, func(ctx context.Context) error {
		return o.store.Replace(ctx, doc, chunks)
	}); err != nil {
		return nil, len(extracted.Images), err
	}
	meta := ingestion.MetadataFromDocument(doc)
	return &meta, len(extracted.Images), nil
}

// stage times fn under a child span and wraps its error in a StageError.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, name)
	err := fn(ctx)
	span.End(err)
	o.opts.Metrics.IngestDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		return &StageError{Stage: name, Err: err}
	}
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, ev ingestion.DocumentEvent) {
	if o.opts.Events == nil {
		return
	}
	err := o.opts.Events.Publish(ctx, kafka.Event{Key: ev.DocumentID, Type: ev.Type, Value: ev})
	if err != nil {
		o.logger.Error("failed to publish document event",
			"type", ev.Type,
			"doc_id", ev.DocumentID,
			"error", err,
		)
	}
}

func (o *Orchestrator) Get(ctx context.Context, docID string) (*ingestion.DocumentMetadata, error) {
	doc, err := o.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, notFound(err, docID)
	}
	meta := ingestion.MetadataFromDocument(*doc)
	return &meta, nil
}

// List pages through stored documents newest first.
func (o *Orchestrator) List(ctx context.Context, limit, offset int) ([]ingestion.DocumentMetadata, error) {
	docs, err := o.store.ListDocuments(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]ingestion.DocumentMetadata, len(docs))
	for i, d := range docs {
		out[i] = ingestion.MetadataFromDocument(d)
	}
	return out, nil
}

// Delete removes the document's chunks and metadata.
func (o *Orchestrator) Delete(ctx context.Context, docID string) error {
	if err := o.store.DeleteDocument(ctx, docID); err != nil {
		return notFound(err, docID)
	}
	o.opts.Tracker.Track(analytics.IngestEvent{
		Type:       analytics.EventDelete,
		DocumentID: docID,
		Timestamp:  o.opts.Now().UTC(),
		RequestID:  logger.RequestID(ctx),
	})
	o.publish(ctx, ingestion.DocumentEvent{
		Type:       ingestion.EventDocumentDeleted,
		DocumentID: docID,
		Timestamp:  o.opts.Now().UTC(),
	})
	logger.FromContext(ctx).Info("document deleted", "doc_id", docID)
	return nil
}

func notFound(err error, docID string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %s not found", docID)
	}
	return err
}
