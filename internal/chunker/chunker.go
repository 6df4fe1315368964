// Package chunker merges extracted content items into reading order and cuts
// them into fixed-size overlapping windows.
package chunker

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/extractor"
)

const (
	DataTypeText  = "text"
	DataTypeImage = "image"
)

// Chunk is the unit of storage and retrieval.
type Chunk struct {
	DocumentID string `json:"docId"`
	PageNo     string `json:"pageNo"`
	ChunkID    int    `json:"chunkId,string"`
	DataType   string `json:"chunkDataType"`
	Data       string `json:"chunkData"`
	FileType   string `json:"fileType"`
}

// Chunker holds a validated window configuration.
type Chunker struct {
	size    int
	overlap int
}

// New validates the window. overlap >= size would never advance.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk sorts items by (Position, Kind) and slides the window over each item's
// text, measured in runes. An item stops at the first window that reaches its
// end, so no window is wholly contained in its predecessor. Chunk ids run
// across the whole document.
func (c *Chunker) Chunk(items []extractor.ContentItem, docID, fileType string) []Chunk {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b extractor.ContentItem) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.Kind, b.Kind))
	})

	texts := make([][]rune, len(sorted))
	total := 0
	for i, item := range sorted {
		texts[i] = []rune(item.Text)
		total += c.WindowCount(len(texts[i]))
	}

	chunks := make([]Chunk, 0, total)
	step := c.size - c.overlap
	for i, item := range sorted {
		runes := texts[i]
		for start := 0; start < len(runes); start += step {
			end := min(start+c.size, len(runes))
			chunks = append(chunks, Chunk{
				DocumentID: docID,
				PageNo:     strconv.Itoa(item.Position),
				ChunkID:    len(chunks),
				DataType:   dataType(item.Kind),
				Data:       string(runes[start:end]),
				FileType:   fileType,
			})
			if end == len(runes) {
				break
			}
		}
	}
	return chunks
}

// WindowCount is the number of chunks a text of n runes produces.
func (c *Chunker) WindowCount(n int) int {
	if n <= 0 {
		return 0
	}
	if n <= c.size {
		return 1
	}
	step := c.size - c.overlap
	return (n - c.overlap + step - 1) / step
}

func dataType(k extractor.Kind) string {
	if k == extractor.KindImage {
		return DataTypeImage
	}
	return DataTypeText
}
