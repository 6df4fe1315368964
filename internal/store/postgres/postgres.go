// Package postgres stores chunks in PostgreSQL with pgvector embeddings and a
// generated full-text column, and answers hybrid queries by fusing one vector
// query with one full-text query.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/chunker"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/store"
	pgclient "github.com/Adithya-Monish-Kumar-K/docqa/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/resilience"
)

// maxQueryTerms caps the OR query built from an expanded query.
const maxQueryTerms = 64

type Options struct {
	Embedder   store.Embedder
	Generator  store.Generator
	Breaker    *resilience.CircuitBreaker
	Alpha      float64
	Candidates int
	Dimensions int
}

type Store struct {
	db     *pgclient.Client
	opts   Options
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

func New(db *pgclient.Client, opts Options) *Store {
	if opts.Candidates <= 0 {
		opts.Candidates = 50
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = 1536
	}
	return &Store{
		db:     db,
		opts:   opts,
		logger: slog.Default().With("component", "postgres-store"),
	}
}

// EnsureSchema creates the extension, tables and indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
			return err
		}
		for _, stmt := range schemaStatements(s.opts.Dimensions) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("executing %q: %w", firstLine(stmt), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	s.logger.Info("schema ready", "dimensions", s.opts.Dimensions)
	return nil
}

func (s *Store) DeleteByDocumentID(ctx context.Context, docID string) error {
	return s.guard(func() error {
		if _, err := s.db.DB.ExecContext(ctx, `DELETE FROM document_chunks WHERE doc_id = $1`, docID); err != nil {
			return fmt.Errorf("deleting chunks of %s: %w", docID, err)
		}
		return nil
	})
}

func (s *Store) InsertMany(ctx context.Context, chunks []chunker.Chunk) error {
	vectors, err := s.embed(ctx, chunks)
	if err != nil {
		return err
	}
	return s.guard(func() error {
		return s.db.InTx(ctx, func(tx *sql.Tx) error {
			return copyChunks(ctx, tx, chunks, vectors)
		})
	})
}

// Replace embeds first, then deletes, inserts and upserts the metadata row in
// one transaction.
func (s *Store) Replace(ctx context.Context, doc store.Document, chunks []chunker.Chunk) error {
	vectors, err := s.embed(ctx, chunks)
	if err != nil {
		return err
	}
	info, err := json.Marshal(orEmpty(doc.AdditionalInfo))
	if err != nil {
		return fmt.Errorf("encoding additional info: %w", err)
	}
	return s.guard(func() error {
		err := s.db.InTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE doc_id = $1`, doc.ID); err != nil {
				return fmt.Errorf("deleting previous chunks: %w", err)
			}
			if err := copyChunks(ctx, tx, chunks, vectors); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, upsertDocumentSQL,
				doc.ID, doc.FileName, doc.FileType, doc.UploadedAt, doc.TotalChunks, string(info))
			if err != nil {
				return fmt.Errorf("upserting document: %w", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("replacing document %s: %w", doc.ID, err)
		}
		return nil
	})
}

func (s *Store) embed(ctx context.Context, chunks []chunker.Chunk) ([][]float32, error) {
	if s.opts.Embedder == nil || len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Data
	}
	vectors, err := s.opts.Embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	return vectors, nil
}

func copyChunks(ctx context.Context, tx *sql.Tx, chunks []chunker.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("document_chunks",
		"doc_id", "chunk_id", "page_no", "chunk_data_type", "chunk_data", "file_type", "embedding"))
	if err != nil {
		return fmt.Errorf("preparing copy: %w", err)
	}
	defer stmt.Close()
	for i, c := range chunks {
		var embedding any
		if vectors != nil {
			embedding = pgvector.NewVector(vectors[i])
		}
		if _, err := stmt.ExecContext(ctx, c.DocumentID, c.ChunkID, c.PageNo, c.DataType, c.Data, c.FileType, embedding); err != nil {
			return fmt.Errorf("copying chunk %d: %w", c.ChunkID, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flushing copy: %w", err)
	}
	return nil
}

// HybridSearch runs the vector and full-text queries concurrently and fuses
// their candidates.
func (s *Store) HybridSearch(ctx context.Context, req store.SearchRequest) (*store.SearchResult, error) {
	alpha := s.opts.Alpha
	var queryVec []float32
	if s.opts.Embedder != nil {
		vecs, err := s.opts.Embedder.Embed(ctx, []string{req.Query})
		if err != nil {
			return nil, fmt.Errorf("embedding query: %w", err)
		}
		if len(vecs) == 1 {
			queryVec = vecs[0]
		}
	}
	if queryVec == nil {
		alpha = 0
	}

	var vector, keyword []store.Candidate
	err := s.guard(func() error {
		g, gctx := errgroup.WithContext(ctx)
		if queryVec != nil {
			g.Go(func() error {
				var err error
				vector, err = s.queryCandidates(gctx, vectorSearchSQL, true,
					pgvector.NewVector(queryVec), req.DocumentID, s.opts.Candidates)
				return err
			})
		}
		if terms := orQuery(req.Query); terms != "" {
			g.Go(func() error {
				var err error
				keyword, err = s.queryCandidates(gctx, keywordSearchSQL, false,
					terms, req.DocumentID, s.opts.Candidates)
				return err
			})
		}
		return g.Wait()
	})
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}

	hits := store.Fuse(vector, keyword, alpha, req.Limit)
	generated, err := store.Answer(ctx, s.opts.Generator, req.GroupedTask, hits)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("hybrid search",
		"vector_candidates", len(vector),
		"keyword_candidates", len(keyword),
		"hits", len(hits),
	)
	return &store.SearchResult{Hits: hits, Generated: generated}, nil
}

// queryCandidates scans chunk rows whose last column is a cosine distance
// (isDistance) or a text rank.
func (s *Store) queryCandidates(ctx context.Context, query string, isDistance bool, args ...any) ([]store.Candidate, error) {
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Candidate
	for rows.Next() {
		var c chunker.Chunk
		var v float64
		if err := rows.Scan(&c.DocumentID, &c.ChunkID, &c.PageNo, &c.DataType, &c.Data, &c.FileType, &v); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		cand := store.Candidate{Chunk: c, Score: v, Distance: 1}
		if isDistance {
			cand.Score, cand.Distance = 1-v, v
		}
		out = append(out, cand)
	}
	return out, rows.Err()
}

// orQuery turns free text into a to_tsquery expression that matches any of
// its words. Words are reduced to letters and digits so the expression is
// always well formed.
func orQuery(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
		if len(terms) == maxQueryTerms {
			break
		}
	}
	return strings.Join(terms, " | ")
}

func (s *Store) GetDocument(ctx context.Context, docID string) (*store.Document, error) {
	row := s.db.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE doc_id = $1`, docID)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", docID, err)
	}
	return doc, nil
}

// ListDocuments pages through documents newest first. A non-positive limit
// returns every row after offset.
func (s *Store) ListDocuments(ctx context.Context, limit, offset int) ([]store.Document, error) {
	lim := sql.NullInt64{Int64: int64(limit), Valid: limit > 0}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at DESC, doc_id LIMIT $1 OFFSET $2`,
		lim, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := []store.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("listing documents: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	var removed int64
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM document_chunks WHERE doc_id = $1`,
			`DELETE FROM documents WHERE doc_id = $1`,
		} {
			res, err := tx.ExecContext(ctx, q, docID)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", docID, err)
	}
	if removed == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) guard(fn func() error) error {
	if s.opts.Breaker == nil {
		return fn()
	}
	return s.opts.Breaker.Execute(fn)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*store.Document, error) {
	var doc store.Document
	var info []byte
	if err := row.Scan(&doc.ID, &doc.FileName, &doc.FileType, &doc.UploadedAt, &doc.TotalChunks, &info); err != nil {
		return nil, err
	}
	if len(info) > 0 {
		if err := json.Unmarshal(info, &doc.AdditionalInfo); err != nil {
			return nil, fmt.Errorf("decoding additional info: %w", err)
		}
	}
	return &doc, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
