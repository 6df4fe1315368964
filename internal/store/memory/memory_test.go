package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/chunker"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/store"
)

// topicEmbedder maps text onto three topic axes by keyword presence.
type topicEmbedder struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (e *topicEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		in = strings.ToLower(in)
		v := []float32{0.01, 0.01, 0.01}
		for axis, word := range []string{"invoice", "weather", "recipe"} {
			if strings.Contains(in, word) {
				v[axis] = 1
			}
		}
		out[i] = v
	}
	return out, nil
}

type echoGenerator struct{ tasks []string }

func (g *echoGenerator) Generate(_ context.Context, task string, hits []store.Hit) (string, error) {
	g.tasks = append(g.tasks, task)
	return "answer over " + hits[0].Chunk.DocumentID, nil
}

func chunks(doc string, texts ...string) []chunker.Chunk {
	out := make([]chunker.Chunk, len(texts))
	for i, t := range texts {
		out[i] = chunker.Chunk{DocumentID: doc, PageNo: "0", ChunkID: i, DataType: chunker.DataTypeText, Data: t, FileType: "txt"}
	}
	return out
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Replace(ctx, store.Document{ID: "fin", FileName: "fin.txt", FileType: "txt", UploadedAt: time.Unix(100, 0), TotalChunks: 2},
		chunks("fin", "Invoice 42 total due in March", "Payment terms for the invoice are net thirty")))
	require.NoError(t, s.Replace(ctx, store.Document{ID: "met", FileName: "met.txt", FileType: "txt", UploadedAt: time.Unix(200, 0), TotalChunks: 1},
		chunks("met", "Weather forecast: rain in March")))
}

func TestHybridSearchKeywordOnly(t *testing.T) {
	s := New(Options{Alpha: store.DefaultAlpha})
	seed(t, s)

	res, err := s.HybridSearch(context.Background(), store.SearchRequest{Query: "invoice payment", Limit: 5})
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "fin", res.Hits[0].Chunk.DocumentID)
	assert.Equal(t, 1, res.Hits[0].Chunk.ChunkID, "chunk matching both terms ranks first")
	assert.Equal(t, 1.0, res.Hits[0].Score)
	assert.Empty(t, res.Generated)
}

func TestHybridSearchWithVectors(t *testing.T) {
	emb := &topicEmbedder{}
	s := New(Options{Embedder: emb, Alpha: store.DefaultAlpha})
	seed(t, s)

	res, err := s.HybridSearch(context.Background(), store.SearchRequest{Query: "what is the weather like", Limit: 1})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "met", res.Hits[0].Chunk.DocumentID)
	assert.InDelta(t, 0, res.Hits[0].Distance, 1e-6)
}

func TestHybridSearchScopedToDocument(t *testing.T) {
	s := New(Options{Alpha: store.DefaultAlpha})
	seed(t, s)

	res, err := s.HybridSearch(context.Background(), store.SearchRequest{Query: "March", DocumentID: "met", Limit: 5})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "met", res.Hits[0].Chunk.DocumentID)
}

func TestHybridSearchScopedRanksDenserChunkFirst(t *testing.T) {
	s := New(Options{Alpha: store.DefaultAlpha})
	require.NoError(t, s.Replace(context.Background(), store.Document{ID: "plan", FileName: "plan.txt", FileType: "txt", TotalChunks: 2},
		chunks("plan",
			"The pricing page lists the plans we offer to customers this year",
			"pricing pricing pricing pricing pricing pricing for every tier")))

	res, err := s.HybridSearch(context.Background(), store.SearchRequest{Query: "pricing", DocumentID: "plan", Limit: 5})
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, 1, res.Hits[0].Chunk.ChunkID)
	assert.Greater(t, res.Hits[0].KeywordScore, res.Hits[1].KeywordScore)
	assert.Greater(t, res.Hits[0].Score, res.Hits[1].Score)
}

func TestHybridSearchGeneratesGroupedAnswer(t *testing.T) {
	gen := &echoGenerator{}
	s := New(Options{Generator: gen, Alpha: store.DefaultAlpha})
	seed(t, s)

	res, err := s.HybridSearch(context.Background(), store.SearchRequest{Query: "rain", Limit: 5, GroupedTask: "Will it rain?"})
	require.NoError(t, err)
	assert.Equal(t, "answer over met", res.Generated)
	assert.Equal(t, []string{"Will it rain?"}, gen.tasks)

	res, err = s.HybridSearch(context.Background(), store.SearchRequest{Query: "zebra", Limit: 5, GroupedTask: "Zebras?"})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Empty(t, res.Generated)
	assert.Len(t, gen.tasks, 1)
}

func TestReplaceSwapsChunkSet(t *testing.T) {
	s := New(Options{})
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, store.Document{ID: "fin", FileName: "fin.txt", TotalChunks: 1}, chunks("fin", "Receipt only")))
	res, err := s.HybridSearch(ctx, store.SearchRequest{Query: "invoice", DocumentID: "fin", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)

	doc, err := s.GetDocument(ctx, "fin")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.TotalChunks)
}

func TestReplaceEmbeddingFailureKeepsOldSet(t *testing.T) {
	emb := &topicEmbedder{}
	s := New(Options{Embedder: emb})
	seed(t, s)
	emb.err = errors.New("quota")

	err := s.Replace(context.Background(), store.Document{ID: "fin"}, chunks("fin", "new"))
	require.Error(t, err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Len(t, s.chunks["fin"], 2)
}

func TestInsertManyAndDeleteByDocumentID(t *testing.T) {
	s := New(Options{})
	ctx := context.Background()
	require.NoError(t, s.InsertMany(ctx, chunks("x", "alpha beta")))
	second := chunks("x", "gamma")
	second[0].ChunkID = 1
	require.NoError(t, s.InsertMany(ctx, second))

	res, err := s.HybridSearch(ctx, store.SearchRequest{Query: "alpha gamma", Limit: 5})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 2)

	require.NoError(t, s.DeleteByDocumentID(ctx, "x"))
	res, err = s.HybridSearch(ctx, store.SearchRequest{Query: "alpha gamma", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestDocuments(t *testing.T) {
	s := New(Options{})
	seed(t, s)
	ctx := context.Background()

	docs, err := s.ListDocuments(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "met", docs[0].ID, "newest first")

	docs, err = s.ListDocuments(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "fin", docs[0].ID)

	docs, err = s.ListDocuments(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, s.DeleteDocument(ctx, "fin"))
	_, err = s.GetDocument(ctx, "fin")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteDocument(ctx, "fin"), store.ErrNotFound)
}
