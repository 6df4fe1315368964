package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/chunker"
	"github.com/Adithya-Monish-Kumar-K/docqa/internal/llm"
)

func chunk(doc string, id int, data string) chunker.Chunk {
	return chunker.Chunk{DocumentID: doc, PageNo: "1", ChunkID: id, DataType: chunker.DataTypeText, Data: data, FileType: "txt"}
}

func TestFuse(t *testing.T) {
	a, b, c, d := chunk("doc1", 0, "a"), chunk("doc1", 1, "b"), chunk("doc2", 0, "c"), chunk("doc1", 2, "d")
	vector := []Candidate{
		{Chunk: a, Score: 0.9, Distance: 0.1},
		{Chunk: b, Score: 0.5, Distance: 0.5},
		{Chunk: c, Score: 0.1, Distance: 0.9},
	}
	keyword := []Candidate{
		{Chunk: b, Score: 3},
		{Chunk: d, Score: 1},
	}

	hits := Fuse(vector, keyword, 0.75, 3)
	require.Len(t, hits, 3)
	assert.Equal(t, a, hits[0].Chunk)
	assert.InDelta(t, 0.75, hits[0].Score, 1e-9)
	assert.InDelta(t, 0.1, hits[0].Distance, 1e-9)
	assert.Equal(t, b, hits[1].Chunk)
	assert.InDelta(t, 0.625, hits[1].Score, 1e-9)
	assert.Equal(t, d, hits[2].Chunk, "ties order by document then chunk id")
	assert.Equal(t, 1.0, hits[2].Distance)
}

func TestFuseUnlimited(t *testing.T) {
	hits := Fuse([]Candidate{{Chunk: chunk("d", 0, "x"), Score: 1}}, []Candidate{{Chunk: chunk("d", 1, "y"), Score: 1}}, 0.5, 0)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Chunk.ChunkID)
	assert.Equal(t, hits[0].Score, hits[1].Score)
}

func TestFuseEmpty(t *testing.T) {
	assert.Empty(t, Fuse(nil, nil, DefaultAlpha, 5))
}

func TestNormaliseEqualScores(t *testing.T) {
	got := normalise([]Candidate{{Score: 2}, {Score: 2}})
	assert.Equal(t, []float64{1, 1}, got)
}

type fakeCompleter struct {
	req  llm.CompletionRequest
	out  string
	err  error
	hits int
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.hits++
	f.req = req
	return f.out, f.err
}

func TestGroupedAnswerer(t *testing.T) {
	fc := &fakeCompleter{out: "  The total is 42 [1].\n"}
	g := NewGroupedAnswerer(fc, "gpt-4o", 1024)
	hits := []Hit{{Chunk: chunk("abc", 3, "Total: 42")}}

	got, err := g.Generate(context.Background(), "What is the total?", hits)
	require.NoError(t, err)
	assert.Equal(t, "The total is 42 [1].", got)
	assert.Equal(t, "gpt-4o", fc.req.Model)
	assert.Equal(t, 1024, fc.req.MaxTokens)
	require.Len(t, fc.req.Messages, 2)
	assert.Contains(t, fc.req.Messages[1].Content, "What is the total?")
	assert.Contains(t, fc.req.Messages[1].Content, "[1] document abc, page 1, text chunk 3:\nTotal: 42")
}

func TestAnswerSkipsWithoutHits(t *testing.T) {
	fc := &fakeCompleter{out: "unused"}
	g := NewGroupedAnswerer(fc, "m", 10)

	got, err := Answer(context.Background(), g, "task", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, fc.hits)

	got, err = Answer(context.Background(), nil, "task", []Hit{{}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAnswerPropagatesFailure(t *testing.T) {
	boom := errors.New("boom")
	g := NewGroupedAnswerer(&fakeCompleter{err: boom}, "m", 10)
	_, err := Answer(context.Background(), g, "task", []Hit{{Chunk: chunk("d", 0, "x")}})
	assert.ErrorIs(t, err, boom)
}
