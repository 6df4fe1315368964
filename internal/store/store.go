// Package store defines the chunk store contract shared by the PostgreSQL and
// in-memory backends, plus the hybrid score fusion and grouped-answer logic
// both backends use.
package store

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/chunker"
	apperrors "github.com/Adithya-Monish-Kumar-K/docqa/pkg/errors"
)

// ErrNotFound is returned by document lookups for unknown ids.
var ErrNotFound = apperrors.ErrDocumentNotFound

// Document is the stored metadata row for one ingested file.
type Document struct {
	ID             string
	FileName       string
	FileType       string
	UploadedAt     time.Time
	TotalChunks    int
	AdditionalInfo map[string]any
}

// SearchRequest is a hybrid query. An empty DocumentID searches every
// document. GroupedTask, when set, is answered over the returned hits.
type SearchRequest struct {
	Query       string
	DocumentID  string
	Limit       int
	GroupedTask string
}

// Hit is one retrieved chunk with its scores. Distance is the cosine distance
// to the query vector (1 when the chunk was found by keyword only). Score is
// the fused relevance in [0, 1].
type Hit struct {
	Chunk        chunker.Chunk
	Distance     float64
	Score        float64
	VectorScore  float64
	KeywordScore float64
}

// SearchResult is the ranked hits plus the generated answer.
type SearchResult struct {
	Hits      []Hit
	Generated string
}

// Store persists chunks and answers hybrid queries over them.
type Store interface {
	EnsureSchema(ctx context.Context) error
	// DeleteByDocumentID removes every chunk of the document.
	DeleteByDocumentID(ctx context.Context, docID string) error
	// InsertMany appends chunks without touching existing ones.
	InsertMany(ctx context.Context, chunks []chunker.Chunk) error
	// Replace atomically swaps the document's chunk set and metadata. Readers
	// see either the old set or the new one, never a mix.
	Replace(ctx context.Context, doc Document, chunks []chunker.Chunk) error
	HybridSearch(ctx context.Context, req SearchRequest) (*SearchResult, error)
	GetDocument(ctx context.Context, docID string) (*Document, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]Document, error)
	// DeleteDocument removes the metadata and every chunk of the document.
	DeleteDocument(ctx context.Context, docID string) error
	Ping(ctx context.Context) error
	Close() error
}

// Embedder turns texts into vectors, one per input in input order.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Generator answers a task over retrieved hits.
type Generator interface {
	Generate(ctx context.Context, task string, hits []Hit) (string, error)
}
