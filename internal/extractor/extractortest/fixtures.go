// Package extractortest builds small PDF, DOCX and PNG fixtures for tests of
// the extraction pipeline.
package extractortest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
)

// PNG returns a solid-gray PNG of the given size.
func PNG(width, height int) []byte {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.Set(0, 0, color.Gray{Y: 0})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// JPEG returns a solid-gray baseline JPEG of the given size.
func JPEG(width, height int) []byte {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0x60
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// PDFImage is an 8-bit grayscale image XObject. With Filter "DCTDecode" the
// stream holds a real JPEG; any other non-empty Filter is written verbatim
// over raw samples. Each image on a page gets its own gray level so no two
// streams are identical.
type PDFImage struct {
	Width, Height int
	Filter        string
}

// PDFPage is one page of a generated PDF.
type PDFPage struct {
	Text   string
	Images []PDFImage
}

// PDF assembles a minimal PDF 1.4 file with one Helvetica font and a correct
// cross-reference table. Text must not contain parentheses or backslashes.
func PDF(pages ...PDFPage) []byte {
	var objs []string
	add := func(body string) int {
		objs = append(objs, body)
		return len(objs)
	}
	stream := func(dict string, data []byte) string {
		return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
	}

	catalog := add("")
	pagesObj := add("")
	font := add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var kids []string
	for _, p := range pages {
		var content strings.Builder
		if p.Text != "" {
			fmt.Fprintf(&content, "BT /F1 12 Tf 72 720 Td (%s) Tj ET\n", p.Text)
		}
		var xobjs []string
		for i, img := range p.Images {
			dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8",
				img.Width, img.Height)
			data := bytes.Repeat([]byte{byte(0x40 + 0x20*i)}, img.Width*img.Height)
			if img.Filter == "DCTDecode" {
				data = JPEG(img.Width, img.Height)
			}
			if img.Filter != "" {
				dict += " /Filter /" + img.Filter
			}
			id := add(stream(dict, data))
			name := fmt.Sprintf("Im%d", i+1)
			xobjs = append(xobjs, fmt.Sprintf("/%s %d 0 R", name, id))
			fmt.Fprintf(&content, "q %d 0 0 %d 0 0 cm /%s Do Q\n", img.Width, img.Height, name)
		}
		contents := add(stream("", []byte(content.String())))
		resources := fmt.Sprintf("/Font << /F1 %d 0 R >>", font)
		if len(xobjs) > 0 {
			resources += " /XObject << " + strings.Join(xobjs, " ") + " >>"
		}
		page := add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources << %s >> /Contents %d 0 R >>",
			pagesObj, resources, contents))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}
	objs[catalog-1] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj)
	objs[pagesObj-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, catalog, xref)
	return buf.Bytes()
}

// DOCXBlock is one direct child of w:body: a paragraph with optional inline
// images, or a table when Cells is set.
type DOCXBlock struct {
	Text   string
	Images [][]byte
	Cells  [][]string
}

// DOCX assembles a minimal WordprocessingML package.
func DOCX(blocks ...DOCXBlock) []byte {
	var body, rels strings.Builder
	media := map[string][]byte{}
	n := 0
	for _, b := range blocks {
		if b.Cells != nil {
			body.WriteString("<w:tbl>")
			for _, row := range b.Cells {
				body.WriteString("<w:tr>")
				for _, cell := range row {
					fmt.Fprintf(&body, "<w:tc><w:p><w:r><w:t>%s</w:t></w:r></w:p></w:tc>", cell)
				}
				body.WriteString("</w:tr>")
			}
			body.WriteString("</w:tbl>")
			continue
		}
		body.WriteString("<w:p>")
		if b.Text != "" {
			fmt.Fprintf(&body, `<w:r><w:t xml:space="preserve">%s</w:t></w:r>`, b.Text)
		}
		for _, img := range b.Images {
			n++
			id := fmt.Sprintf("rIdImg%d", n)
			target := fmt.Sprintf("media/image%d.png", n)
			media["word/"+target] = img
			fmt.Fprintf(&rels, `<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="%s"/>`, id, target)
			fmt.Fprintf(&body, `<w:r><w:drawing><wp:inline><a:graphic><a:graphicData><pic:pic><pic:blipFill><a:blip r:embed="%s"/></pic:blipFill></pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r>`, id)
		}
		body.WriteString("</w:p>")
	}

	files := map[string][]byte{
		"[Content_Types].xml": []byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="png" ContentType="image/png"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`),
		"word/document.xml": []byte(`<?xml version="1.0" encoding="UTF-8"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
			`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
			`xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" ` +
			`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
			`xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">` +
			`<w:body>` + body.String() + `<w:sectPr/></w:body></w:document>`),
		"word/_rels/document.xml.rels": []byte(`<?xml version="1.0" encoding="UTF-8"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` + rels.String() + `</Relationships>`),
	}
	for name, data := range media {
		files[name] = data
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write(data); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
