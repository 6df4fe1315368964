// Package ranker scores keyword matches with Okapi BM25.
package ranker

import (
	"math"
	"sort"
)

const (
	k1 = 1.2
	b  = 0.75
)

// Posting records how often a term occurs in one chunk.
type Posting struct {
	Key       string
	Frequency int
}

type Scored struct {
	Key   string
	Score float64
}

type Params struct {
	TotalChunks int
	AvgLength   float64
}

// Rank sums the BM25 contribution of every term for each chunk that contains
// at least one of them. Results are ordered by score, then key. A limit of
// zero keeps everything.
func Rank(postingsPerTerm map[string][]Posting, params Params, length func(key string) int, limit int) []Scored {
	scores := make(map[string]float64)
	for _, postings := range postingsPerTerm {
		idf := idf(params.TotalChunks, len(postings))
		for _, p := range postings {
			scores[p.Key] += idf * tfNorm(float64(p.Frequency), float64(length(p.Key)), params.AvgLength)
		}
	}
	out := make([]Scored, 0, len(scores))
	for key, score := range scores {
		out = append(out, Scored{Key: key, Score: math.Round(score*10000) / 10000})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// idf stays positive when a term occurs in every chunk, so term frequency
// still separates chunks of a small pool.
func idf(total, docFreq int) float64 {
	n := float64(docFreq)
	return math.Log(1 + (float64(total)-n+0.5)/(n+0.5))
}

func tfNorm(tf, length, avg float64) float64 {
	if avg == 0 {
		return 0
	}
	return (tf * (k1 + 1)) / (tf + k1*(1-b+b*length/avg))
}
