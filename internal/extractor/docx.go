package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
)

// docxExtractor walks the direct children of w:body. Child i (paragraph or
// table) becomes a text item at position i when it has text, and every image
// it references becomes a job at position i.
type docxExtractor struct {
	logger *slog.Logger
}

const maxDocxPart = 64 << 20

func (e *docxExtractor) Extract(data []byte) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, malformed("DOCX", err)
	}
	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[strings.ToLower(f.Name)] = f
	}
	doc, ok := parts["word/document.xml"]
	if !ok {
		return nil, malformed("DOCX", errors.New("missing word/document.xml"))
	}

	rels := map[string]string{}
	if f, ok := parts["word/_rels/document.xml.rels"]; ok {
		if rels, err = readRelationships(f); err != nil {
			return nil, malformed("DOCX", err)
		}
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, malformed("DOCX", err)
	}
	defer rc.Close()
	elems, err := readBody(io.LimitReader(rc, maxDocxPart))
	if err != nil {
		return nil, malformed("DOCX", err)
	}

	res := &Result{}
	imageIndex := 0
	for _, el := range elems {
		if text := strings.TrimSpace(el.text); text != "" {
			res.Items = append(res.Items, ContentItem{Position: el.index, Kind: KindText, Text: text})
		}
		for _, relID := range el.images {
			target, ok := rels[relID]
			if !ok {
				e.logger.Warn("image relationship not found", "rel", relID)
				continue
			}
			f, ok := parts[strings.ToLower(target)]
			if !ok {
				e.logger.Warn("image part not found", "target", target)
				continue
			}
			img, err := readPart(f)
			if err != nil {
				return nil, malformed("DOCX", err)
			}
			width, height, format, err := probeImage(img)
			if err != nil {
				e.logger.Warn("skipping undecodable image", "target", target, "error", err)
				continue
			}
			if !qualifies(width, height) {
				continue
			}
			res.Images = append(res.Images, ImageJob{
				Position: el.index,
				Index:    imageIndex,
				Data:     img,
				Format:   format,
				Width:    width,
				Height:   height,
			})
			imageIndex++
		}
	}
	return res, nil
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxDocxPart))
}

type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

// readRelationships maps image relationship ids to zip part names.
func readRelationships(f *zip.File) (map[string]string, error) {
	raw, err := readPart(f)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Relationships []relationship `xml:"Relationship"`
	}
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing relationships: %w", err)
	}
	out := make(map[string]string, len(doc.Relationships))
	for _, r := range doc.Relationships {
		if r.TargetMode == "External" || !strings.HasSuffix(r.Type, "/image") {
			continue
		}
		if strings.HasPrefix(r.Target, "/") {
			out[r.ID] = strings.TrimPrefix(r.Target, "/")
		} else {
			out[r.ID] = path.Join("word", r.Target)
		}
	}
	return out, nil
}

type bodyElement struct {
	index  int
	text   string
	images []string
}

// readBody streams word/document.xml and collects text and image references
// per direct child of w:body.
func readBody(r io.Reader) ([]bodyElement, error) {
	dec := xml.NewDecoder(r)
	var (
		out    []bodyElement
		cur    *bodyElement
		buf    strings.Builder
		inBody bool
		depth  int
		index  int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !inBody {
				inBody = t.Name.Local == "body"
				continue
			}
			depth++
			if depth == 1 {
				cur = &bodyElement{index: index}
				buf.Reset()
			}
			switch t.Name.Local {
			case "t", "instrText":
				var s string
				if err := dec.DecodeElement(&s, &t); err != nil {
					return nil, fmt.Errorf("parsing text run: %w", err)
				}
				buf.WriteString(s)
				depth--
			case "tab":
				buf.WriteByte('\t')
			case "br", "cr":
				buf.WriteByte('\n')
			case "blip":
				if id := attr(t, "embed"); id != "" {
					cur.images = append(cur.images, id)
				}
			case "imagedata":
				if id := attr(t, "id"); id != "" {
					cur.images = append(cur.images, id)
				}
			}
		case xml.EndElement:
			if !inBody {
				continue
			}
			if depth == 0 {
				inBody = false
				continue
			}
			switch t.Name.Local {
			case "p", "tr":
				if depth > 1 {
					buf.WriteByte('\n')
				}
			case "tc":
				buf.WriteByte('\t')
			}
			depth--
			if depth == 0 {
				cur.text = buf.String()
				out = append(out, *cur)
				cur = nil
				index++
			}
		}
	}
	return out, nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
