package store

import (
	"container/heap"
	"math"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/chunker"
)

// DefaultAlpha weights the vector side of the fusion.
const DefaultAlpha = 0.75

// Candidate is a chunk returned by one retrieval side with its raw score.
// Higher scores are better on both sides.
type Candidate struct {
	Chunk    chunker.Chunk
	Score    float64
	Distance float64
}

type chunkKey struct {
	doc string
	id  int
}

// Fuse merges vector and keyword candidates with relative score fusion: each
// side is min-max normalised to [0, 1] and the fused score is
// alpha*vector + (1-alpha)*keyword. A chunk missing from one side scores 0
// there. Ties break on (document id, chunk id). At most limit hits return.
func Fuse(vector, keyword []Candidate, alpha float64, limit int) []Hit {
	merged := make(map[chunkKey]*Hit, len(vector)+len(keyword))
	get := func(c Candidate) *Hit {
		k := chunkKey{c.Chunk.DocumentID, c.Chunk.ChunkID}
		h, ok := merged[k]
		if !ok {
			h = &Hit{Chunk: c.Chunk, Distance: 1}
			merged[k] = h
		}
		return h
	}
	for i, v := range normalise(vector) {
		h := get(vector[i])
		h.VectorScore = v
		h.Distance = vector[i].Distance
	}
	for i, v := range normalise(keyword) {
		get(keyword[i]).KeywordScore = v
	}

	hits := &hitHeap{}
	for _, h := range merged {
		h.Score = round4(alpha*h.VectorScore + (1-alpha)*h.KeywordScore)
		heap.Push(hits, *h)
		if limit > 0 && hits.Len() > limit {
			heap.Pop(hits)
		}
	}
	out := make([]Hit, hits.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(hits).(Hit)
	}
	return out
}

// normalise maps scores to [0, 1]. A single candidate, or a side where every
// score is equal, normalises to 1.
func normalise(cs []Candidate) []float64 {
	out := make([]float64, len(cs))
	if len(cs) == 0 {
		return out
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range cs {
		lo, hi = math.Min(lo, c.Score), math.Max(hi, c.Score)
	}
	for i, c := range cs {
		if hi == lo {
			out[i] = 1
			continue
		}
		out[i] = (c.Score - lo) / (hi - lo)
	}
	return out
}

func round4(f float64) float64 { return math.Round(f*10000) / 10000 }

// hitHeap is a min-heap on rank: the worst hit sits at the root.
type hitHeap []Hit

func (h hitHeap) Len() int { return len(h) }

func (h hitHeap) Less(i, j int) bool { return worse(h[i], h[j]) }

func (h hitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x any) { *h = append(*h, x.(Hit)) }

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// worse reports whether a ranks below b.
func worse(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.Chunk.DocumentID != b.Chunk.DocumentID {
		return a.Chunk.DocumentID > b.Chunk.DocumentID
	}
	return a.Chunk.ChunkID > b.Chunk.ChunkID
}
