package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/extractor"
)

func BenchmarkChunk(b *testing.B) {
	c, err := New(1000, 200)
	if err != nil {
		b.Fatal(err)
	}
	for _, pages := range []int{1, 10, 100} {
		items := make([]extractor.ContentItem, pages)
		for i := range items {
			items[i] = extractor.ContentItem{Position: i + 1, Kind: extractor.KindText, Text: strings.Repeat("lorem ipsum dolor sit amet ", 120)}
		}
		b.Run(fmt.Sprintf("pages_%d", pages), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_ = c.Chunk(items, "a1b2c3d4e5", "application/pdf")
			}
		})
	}
}
