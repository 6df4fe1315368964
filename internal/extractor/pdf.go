package extractor

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// pdfcpu otherwise writes a config.yml under the user config dir.
	api.DisableConfigDir()
}

// pdfExtractor emits one text item per page (position = 1-based page number)
// and one image job per qualifying image XObject on that page.
//
// Text comes from ledongthuc/pdf. Images come from pdfcpu, which hands
// DCTDecode streams back as the JPEG they already are and renders Flate or
// unfiltered samples to PNG. Anything that does not decode as PNG, JPEG or
// GIF (JPX, CCITT, CMYK renders) is skipped with a warning.
type pdfExtractor struct {
	logger *slog.Logger
}

func (e *pdfExtractor) Extract(data []byte) (res *Result, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, malformed("PDF", fmt.Errorf("%v", p))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, malformed("PDF", err)
	}

	res = &Result{}
	for pageNo := 1; pageNo <= r.NumPage(); pageNo++ {
		page := r.Page(pageNo)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, malformed("PDF", fmt.Errorf("page %d: %w", pageNo, err))
		}
		if strings.TrimSpace(text) != "" {
			res.Items = append(res.Items, ContentItem{Position: pageNo, Kind: KindText, Text: text})
		}
	}

	images, err := e.images(data)
	if err != nil {
		e.logger.Warn("skipping pdf images", "error", err)
	}
	res.Images = images
	return res, nil
}

// images returns the qualifying images ordered by page, then object number.
func (e *pdfExtractor) images(data []byte) (jobs []ImageJob, err error) {
	defer func() {
		if p := recover(); p != nil {
			jobs, err = nil, fmt.Errorf("image extraction: %v", p)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pages, err := api.ExtractImagesRaw(bytes.NewReader(data), nil, conf)
	if err != nil {
		return nil, fmt.Errorf("reading pdf images: %w", err)
	}

	var found []model.Image
	for _, byObj := range pages {
		for _, img := range byObj {
			found = append(found, img)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].PageNr != found[j].PageNr {
			return found[i].PageNr < found[j].PageNr
		}
		return found[i].ObjNr < found[j].ObjNr
	})

	perPage := make(map[int]int)
	for _, img := range found {
		if img.Reader == nil || img.Thumb || !qualifies(img.Width, img.Height) {
			continue
		}
		raw, err := io.ReadAll(img)
		if err != nil {
			e.logger.Warn("skipping pdf image", "page", img.PageNr, "name", img.Name, "error", err)
			continue
		}
		width, height, format, err := probeImage(raw)
		if err != nil {
			e.logger.Warn("skipping pdf image", "page", img.PageNr, "name", img.Name,
				"filter", img.Filter, "file_type", img.FileType, "error", err)
			continue
		}
		if !qualifies(width, height) {
			continue
		}
		jobs = append(jobs, ImageJob{
			Position: img.PageNr,
			Index:    perPage[img.PageNr],
			Data:     raw,
			Format:   format,
			Width:    width,
			Height:   height,
		})
		perPage[img.PageNr]++
	}
	return jobs, nil
}
