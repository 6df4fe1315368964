package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"unicode/utf8"
)

type textExtractor struct{}

func (textExtractor) Extract(data []byte) (*Result, error) {
	if !utf8.Valid(data) {
		return nil, malformed("text", errors.New("content is not valid UTF-8"))
	}
	return &Result{Items: []ContentItem{{Position: 0, Kind: KindText, Text: string(data)}}}, nil
}

// jsonExtractor emits one item per element of a top-level array, otherwise one
// item for the whole value. Elements are re-serialised compactly with their
// original key order.
type jsonExtractor struct{}

func (jsonExtractor) Extract(data []byte) (*Result, error) {
	var root json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, malformed("JSON", err)
	}

	var elems []json.RawMessage
	if trimmed := bytes.TrimSpace(root); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(root, &elems); err != nil {
			return nil, malformed("JSON", err)
		}
	} else {
		elems = []json.RawMessage{root}
	}

	res := &Result{Items: make([]ContentItem, 0, len(elems))}
	for i, e := range elems {
		var buf bytes.Buffer
		if err := json.Compact(&buf, e); err != nil {
			return nil, malformed("JSON", err)
		}
		res.Items = append(res.Items, ContentItem{Position: i, Kind: KindText, Text: buf.String()})
	}
	return res, nil
}
