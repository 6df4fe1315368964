// Package query answers questions over stored chunks: it expands the
// question, runs a hybrid search and returns the generated answer with the
// supporting snippets.
package query

// Request is the body of POST /query. An empty DocumentID searches every
// document; TopK <= 0 uses the configured default.
type Request struct {
	Text       string `json:"text"`
	DocumentID string `json:"document_id,omitempty"`
	TopK       int    `json:"top_k,omitempty"`
}

// Snippet is one retrieved chunk.
type Snippet struct {
	Content        string         `json:"content"`
	DocumentID     string         `json:"document_id"`
	ChunkIndex     string         `json:"chunk_index"`
	Metadata       map[string]any `json:"metadata"`
	RelevanceScore float64        `json:"relevance_score"`
}

type Response struct {
	Result       string    `json:"result"`
	Snippets     []Snippet `json:"snippets"`
	TotalResults int       `json:"total_results"`
}
