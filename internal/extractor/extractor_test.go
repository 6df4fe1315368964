package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/extractor/extractortest"
	apperrors "github.com/Adithya-Monish-Kumar-K/docqa/pkg/errors"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var supported = map[string]string{
	"pdf":  "application/pdf",
	"docx": docxMIME,
	"json": "application/json",
	"txt":  "text/plain",
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(supported)
	require.NoError(t, err)
	return r
}

func TestNewRegistryRejectsUnknownExtension(t *testing.T) {
	_, err := NewRegistry(map[string]string{"xlsx": "application/vnd.ms-excel"})
	assert.Error(t, err)
}

func TestUnsupportedType(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Extract([]byte("data"), "application/octet-stream")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedType)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "application/pdf")
}

func TestMediaTypeParametersIgnored(t *testing.T) {
	r := newRegistry(t)
	res, err := r.Extract([]byte("hello"), "Text/Plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, []ContentItem{{Position: 0, Kind: KindText, Text: "hello"}}, res.Items)
}

func TestText(t *testing.T) {
	r := newRegistry(t)
	res, err := r.Extract([]byte("line one\nline two"), "text/plain")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "line one\nline two", res.Items[0].Text)
	assert.Empty(t, res.Images)

	_, err = r.Extract([]byte{0xff, 0xfe, 0x00}, "text/plain")
	assert.ErrorIs(t, err, apperrors.ErrMalformedPayload)
}

func TestJSON(t *testing.T) {
	r := newRegistry(t)
	tests := []struct {
		name  string
		input string
		want  []ContentItem
	}{
		{
			name:  "array elements",
			input: `[{"b": 1, "a": 2}, "two", 3]`,
			want: []ContentItem{
				{Position: 0, Kind: KindText, Text: `{"b":1,"a":2}`},
				{Position: 1, Kind: KindText, Text: `"two"`},
				{Position: 2, Kind: KindText, Text: `3`},
			},
		},
		{
			name:  "single object",
			input: ` {"k": [1, 2]} `,
			want:  []ContentItem{{Position: 0, Kind: KindText, Text: `{"k":[1,2]}`}},
		},
		{
			name:  "empty array",
			input: `[]`,
			want:  []ContentItem{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Extract([]byte(tt.input), "application/json")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Items)
		})
	}
}

func TestJSONMalformed(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Extract([]byte(`{"a":`), "application/json")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMalformedPayload)
	assert.Contains(t, err.Error(), "invalid JSON file")
}

func TestPDF(t *testing.T) {
	r := newRegistry(t)
	data := extractortest.PDF(
		extractortest.PDFPage{Text: "First page text"},
		extractortest.PDFPage{Images: []extractortest.PDFImage{
			{Width: 300, Height: 300},
			{Width: 100, Height: 400},
			{Width: 400, Height: 400, Filter: "DCTDecode"},
			{Width: 260, Height: 120, Filter: "DCTDecode"},
		}},
		extractortest.PDFPage{Text: "Third page"},
	)
	res, err := r.Extract(data, "application/pdf")
	require.NoError(t, err)

	require.Len(t, res.Items, 2)
	assert.Equal(t, 1, res.Items[0].Position)
	assert.Contains(t, res.Items[0].Text, "First page text")
	assert.Equal(t, 3, res.Items[1].Position)
	assert.Contains(t, res.Items[1].Text, "Third page")

	require.Len(t, res.Images, 2)
	byFormat := map[string]ImageJob{}
	for i, img := range res.Images {
		assert.Equal(t, 2, img.Position)
		assert.Equal(t, i, img.Index)
		byFormat[img.Format] = img
	}

	flate, ok := byFormat["png"]
	require.True(t, ok, "raw samples are rendered as png")
	w, h, format, err := probeImage(flate.Data)
	require.NoError(t, err)
	assert.Equal(t, [3]any{300, 300, "png"}, [3]any{w, h, format})

	dct, ok := byFormat["jpeg"]
	require.True(t, ok, "DCT streams are kept as jpeg")
	assert.Equal(t, 400, dct.Width)
	assert.Equal(t, 400, dct.Height)
	w, h, format, err = probeImage(dct.Data)
	require.NoError(t, err)
	assert.Equal(t, [3]any{400, 400, "jpeg"}, [3]any{w, h, format})
}

func TestPDFJPEGOnlyPage(t *testing.T) {
	r := newRegistry(t)
	data := extractortest.PDF(
		extractortest.PDFPage{Text: "hello"},
		extractortest.PDFPage{Images: []extractortest.PDFImage{{Width: 300, Height: 300, Filter: "DCTDecode"}}},
	)
	res, err := r.Extract(data, "application/pdf")
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	require.Len(t, res.Images, 1)
	assert.Equal(t, 2, res.Images[0].Position)
	assert.Equal(t, "jpeg", res.Images[0].Format)
	assert.Equal(t, extractortest.JPEG(300, 300), res.Images[0].Data)
}

func TestPDFMalformed(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Extract([]byte("%PDF-1.4 not really"), "application/pdf")
	assert.ErrorIs(t, err, apperrors.ErrMalformedPayload)
}

func TestDOCX(t *testing.T) {
	r := newRegistry(t)
	data := extractortest.DOCX(
		extractortest.DOCXBlock{Text: "Intro paragraph"},
		extractortest.DOCXBlock{Text: "   "},
		extractortest.DOCXBlock{Images: [][]byte{extractortest.PNG(300, 260), extractortest.PNG(50, 50)}},
		extractortest.DOCXBlock{Cells: [][]string{{"a", "b"}, {"c", "d"}}},
		extractortest.DOCXBlock{Text: "Closing"},
	)
	res, err := r.Extract(data, docxMIME)
	require.NoError(t, err)

	require.Len(t, res.Items, 3)
	assert.Equal(t, ContentItem{Position: 0, Kind: KindText, Text: "Intro paragraph"}, res.Items[0])
	assert.Equal(t, 3, res.Items[1].Position)
	for _, cell := range []string{"a", "b", "c", "d"} {
		assert.Contains(t, res.Items[1].Text, cell)
	}
	assert.Equal(t, ContentItem{Position: 4, Kind: KindText, Text: "Closing"}, res.Items[2])

	require.Len(t, res.Images, 1)
	assert.Equal(t, 2, res.Images[0].Position)
	assert.Equal(t, "png", res.Images[0].Format)
	assert.Equal(t, 300, res.Images[0].Width)
	assert.Equal(t, 260, res.Images[0].Height)
}

func TestDOCXMalformed(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Extract([]byte("PK not a zip"), docxMIME)
	assert.ErrorIs(t, err, apperrors.ErrMalformedPayload)
}

func TestQualifies(t *testing.T) {
	assert.True(t, qualifies(251, 251))
	assert.False(t, qualifies(250, 300))
	assert.False(t, qualifies(300, 250))
}
