// Package memory is an in-process Store. Keyword relevance comes from BM25
// over the tokenizer's terms; vector relevance comes from the configured
// Embedder and is skipped when there is none.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/chunker"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/store"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/store/memory/ranker"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/store/memory/tokenizer"
)

type Options struct {
	Embedder   store.Embedder
	Generator  store.Generator
	Alpha      float64
	Candidates int
}

type entry struct {
	key    string
	chunk  chunker.Chunk
	freq   map[string]int
	length int
	vector []float32
}

type Store struct {
	mu         sync.RWMutex
	chunks     map[string][]*entry
	docs       map[string]store.Document
	embedder   store.Embedder
	generator  store.Generator
	alpha      float64
	candidates int
	logger     *slog.Logger
}

var _ store.Store = (*Store)(nil)

func New(opts Options) *Store {
	if opts.Candidates <= 0 {
		opts.Candidates = 50
	}
	return &Store{
		chunks:     make(map[string][]*entry),
		docs:       make(map[string]store.Document),
		embedder:   opts.Embedder,
		generator:  opts.Generator,
		alpha:      opts.Alpha,
		candidates: opts.Candidates,
		logger:     slog.Default().With("component", "memory-store"),
	}
}

func (s *Store) EnsureSchema(context.Context) error { return nil }

func (s *Store) DeleteByDocumentID(_ context.Context, docID string) error {
	s.mu.Lock()
	delete(s.chunks, docID)
	s.mu.Unlock()
	return nil
}

func (s *Store) InsertMany(ctx context.Context, chunks []chunker.Chunk) error {
	entries, err := s.index(ctx, chunks)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.chunks[e.chunk.DocumentID] = append(s.chunks[e.chunk.DocumentID], e)
	}
	return nil
}

func (s *Store) Replace(ctx context.Context, doc store.Document, chunks []chunker.Chunk) error {
	entries, err := s.index(ctx, chunks)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[doc.ID] = entries
	doc.AdditionalInfo = maps.Clone(doc.AdditionalInfo)
	s.docs[doc.ID] = doc
	return nil
}

// index tokenizes and embeds chunks outside the lock.
func (s *Store) index(ctx context.Context, chunks []chunker.Chunk) ([]*entry, error) {
	entries := make([]*entry, len(chunks))
	for i, c := range chunks {
		freq, length := tokenizer.Frequencies(c.Data)
		entries[i] = &entry{key: entryKey(c), chunk: c, freq: freq, length: length}
	}
	if s.embedder == nil || len(chunks) == 0 {
		return entries, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Data
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(entries) {
		return nil, fmt.Errorf("embedding chunks: got %d vectors for %d chunks", len(vectors), len(entries))
	}
	for i, v := range vectors {
		entries[i].vector = v
	}
	return entries, nil
}

func (s *Store) HybridSearch(ctx context.Context, req store.SearchRequest) (*store.SearchResult, error) {
	var queryVec []float32
	alpha := s.alpha
	if s.embedder != nil {
		vecs, err := s.embedder.Embed(ctx, []string{req.Query})
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

	s.mu.RLock()
	var pool []*entry
	if req.DocumentID != "" {
		pool = slices.Clone(s.chunks[req.DocumentID])
	} else {
		for _, es := range s.chunks {
			pool = append(pool, es...)
		}
	}
	s.mu.RUnlock()

	hits := store.Fuse(s.vectorCandidates(pool, queryVec), s.keywordCandidates(pool, req.Query), alpha, req.Limit)
	generated, err := store.Answer(ctx, s.generator, req.GroupedTask, hits)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("hybrid search", "query_len", len(req.Query), "pool", len(pool), "hits", len(hits))
	return &store.SearchResult{Hits: hits, Generated: generated}, nil
}

func (s *Store) keywordCandidates(pool []*entry, query string) []store.Candidate {
	terms := tokenizer.Unique(query)
	if len(terms) == 0 || len(pool) == 0 {
		return nil
	}
	byKey := make(map[string]*entry, len(pool))
	postings := make(map[string][]ranker.Posting, len(terms))
	total := 0
	for _, e := range pool {
		byKey[e.key] = e
		total += e.length
		for _, t := range terms {
			if f := e.freq[t]; f > 0 {
				postings[t] = append(postings[t], ranker.Posting{Key: e.key, Frequency: f})
			}
		}
	}
	params := ranker.Params{TotalChunks: len(pool), AvgLength: float64(total) / float64(len(pool))}
	scored := ranker.Rank(postings, params, func(key string) int { return byKey[key].length }, s.candidates)

	out := make([]store.Candidate, len(scored))
	for i, sc := range scored {
		out[i] = store.Candidate{Chunk: byKey[sc.Key].chunk, Score: sc.Score, Distance: 1}
	}
	return out
}

func (s *Store) vectorCandidates(pool []*entry, query []float32) []store.Candidate {
	if query == nil {
		return nil
	}
	out := make([]store.Candidate, 0, len(pool))
	for _, e := range pool {
		if len(e.vector) != len(query) {
			continue
		}
		sim := cosine(query, e.vector)
		out = append(out, store.Candidate{Chunk: e.chunk, Score: sim, Distance: 1 - sim})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return entryKey(out[i].Chunk) < entryKey(out[j].Chunk)
	})
	if len(out) > s.candidates {
		out = out[:s.candidates]
	}
	return out
}

func (s *Store) GetDocument(_ context.Context, docID string) (*store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docID]
	if !ok {
		return nil, store.ErrNotFound
	}
	doc.AdditionalInfo = maps.Clone(doc.AdditionalInfo)
	return &doc, nil
}

// ListDocuments pages through documents newest first.
func (s *Store) ListDocuments(_ context.Context, limit, offset int) ([]store.Document, error) {
	s.mu.RLock()
	docs := slices.Collect(maps.Values(s.docs))
	s.mu.RUnlock()
	slices.SortFunc(docs, func(a, b store.Document) int {
		return cmp.Or(b.UploadedAt.Compare(a.UploadedAt), cmp.Compare(a.ID, b.ID))
	})
	if offset >= len(docs) {
		return []store.Document{}, nil
	}
	docs = docs[max(offset, 0):]
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (s *Store) DeleteDocument(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, hasDoc := s.docs[docID]
	_, hasChunks := s.chunks[docID]
	if !hasDoc && !hasChunks {
		return store.ErrNotFound
	}
	delete(s.docs, docID)
	delete(s.chunks, docID)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func entryKey(c chunker.Chunk) string {
	return fmt.Sprintf("%s/%08d", c.DocumentID, c.ChunkID)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
