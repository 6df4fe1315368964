package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankPrefersRarerAndDenserTerms(t *testing.T) {
	lengths := map[string]int{"a": 10, "b": 10, "c": 10}
	postings := map[string][]Posting{
		"common": {{Key: "a", Frequency: 1}, {Key: "b", Frequency: 1}, {Key: "c", Frequency: 1}},
		"rare":   {{Key: "b", Frequency: 3}},
	}
	got := Rank(postings, Params{TotalChunks: 3, AvgLength: 10}, func(k string) int { return lengths[k] }, 0)
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].Key)
	assert.Equal(t, got[1].Score, got[2].Score)
	assert.Equal(t, "a", got[1].Key, "ties break on key")
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestRankLimit(t *testing.T) {
	postings := map[string][]Posting{"x": {{Key: "a", Frequency: 1}, {Key: "b", Frequency: 2}}}
	got := Rank(postings, Params{TotalChunks: 2, AvgLength: 5}, func(string) int { return 5 }, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Key)
}

func TestRankTermInEveryChunk(t *testing.T) {
	lengths := map[string]int{"0": 40, "1": 40}
	postings := map[string][]Posting{"pricing": {{Key: "0", Frequency: 1}, {Key: "1", Frequency: 6}}}
	got := Rank(postings, Params{TotalChunks: 2, AvgLength: 40}, func(k string) int { return lengths[k] }, 0)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].Key)
	assert.Greater(t, got[1].Score, 0.0)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestIDFPositive(t *testing.T) {
	assert.Greater(t, idf(1, 1), 0.0)
	assert.Greater(t, idf(10, 1), idf(10, 10))
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil, Params{}, func(string) int { return 0 }, 5))
}
