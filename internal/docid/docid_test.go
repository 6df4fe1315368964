package docid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"empty", "", "e3b0c44298"},
		{"abc", "abc", "ba7816bf8f"},
		{"hello", "hello", "2cf24dba5f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.filename)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, Length)
			assert.Equal(t, got, Generate(tt.filename))
		})
	}
}

func TestGenerateDistinct(t *testing.T) {
	seen := make(map[string]string)
	for _, name := range []string{"report.pdf", "report.docx", "Report.pdf", "notes.txt", "data.json"} {
		id := Generate(name)
		if prev, ok := seen[id]; ok {
			t.Fatalf("collision between %q and %q", prev, name)
		}
		seen[id] = name
	}
}
