// Package extractor turns uploaded file bytes into position-tagged content
// items. Text is returned directly; qualifying images are returned as jobs for
// the enrichment stage, tagged with the position they must be merged back at.
package extractor

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/docqa/pkg/errors"
)

// Kind discriminates text items from image-derived items. Text sorts before
// Image at the same position.
type Kind int

const (
	KindText Kind = iota
	KindImage
)

func (k Kind) String() string {
	if k == KindImage {
		return "image"
	}
	return "text"
}

// ContentItem is one unit of extracted text at a position: a page number, a
// paragraph index or a JSON array index depending on the format.
type ContentItem struct {
	Position int
	Kind     Kind
	Text     string
}

// ImageJob is an embedded image awaiting OCR and captioning.
type ImageJob struct {
	Position int
	Index    int
	Data     []byte
	Format   string
	Width    int
	Height   int
}

// Result is everything extracted from one file.
type Result struct {
	Items  []ContentItem
	Images []ImageJob
}

// Extractor parses one file format.
type Extractor interface {
	Extract(data []byte) (*Result, error)
}

// builtin maps the extension keys of the supported-types table to parsers.
var builtin = map[string]func(logger *slog.Logger) Extractor{
	"txt":  func(*slog.Logger) Extractor { return textExtractor{} },
	"json": func(*slog.Logger) Extractor { return jsonExtractor{} },
	"pdf":  func(l *slog.Logger) Extractor { return &pdfExtractor{logger: l} },
	"docx": func(l *slog.Logger) Extractor { return &docxExtractor{logger: l} },
}

// Registry dispatches on MIME type.
type Registry struct {
	byMIME map[string]Extractor
	logger *slog.Logger
}

// NewRegistry builds a registry from an extension -> MIME table. Every
// extension must have a built-in parser.
func NewRegistry(supported map[string]string) (*Registry, error) {
	logger := slog.Default().With("component", "extractor")
	r := &Registry{byMIME: make(map[string]Extractor, len(supported)), logger: logger}
	for ext, mimeType := range supported {
		factory, ok := builtin[strings.ToLower(ext)]
		if !ok {
			return nil, fmt.Errorf("no parser for extension %q", ext)
		}
		r.byMIME[strings.ToLower(mimeType)] = factory(logger.With("format", ext))
	}
	return r, nil
}

// Types returns the accepted MIME types in sorted order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.byMIME))
	for m := range r.byMIME {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Extract parses data as mimeType. Unsupported types and malformed payloads
// are rejected with a 400-class AppError.
func (r *Registry) Extract(data []byte, mimeType string) (*Result, error) {
	ext, ok := r.byMIME[baseType(mimeType)]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnsupportedType, http.StatusBadRequest,
			"%q is not one of %s", mimeType, strings.Join(r.Types(), ", "))
	}
	res, err := ext.Extract(data)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("extracted", "mime", mimeType, "items", len(res.Items), "images", len(res.Images))
	return res, nil
}

func baseType(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mt
}

func malformed(format string, err error) error {
	return apperrors.Newf(apperrors.ErrMalformedPayload, http.StatusBadRequest, "invalid %s file: %v", format, err)
}
