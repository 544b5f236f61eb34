/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

// Package pdfmodel ties the object model (pdfcore) to the text-extraction
// layer (fontmetrics, contentstream, span): it loads a document, resolves
// each page's font resources into fontmetrics.Font records keyed by
// resource tag, tokenizes each page's content streams, and runs the
// text-positioning simulator to produce the page's TextSpan stream. This
// is the single entry point the rest of the pipeline builds on.
package pdfmodel

import (
	"golang.org/x/xerrors"

	"github.com/resumeforge/pdfedit/contentstream"
	"github.com/resumeforge/pdfedit/fontmetrics"
	"github.com/resumeforge/pdfedit/pdfcore"
	"github.com/resumeforge/pdfedit/pdferr"
	"github.com/resumeforge/pdfedit/span"
)

// Document wraps a loaded pdfcore.Document together with the per-page data
// every later stage needs: decoded content blocks, resolved fonts, and
// extracted text spans.
type Document struct {
	Core        *pdfcore.Document
	Pages       []*PageData
	PageHeights []float64
}

// PageData is everything extracted from one page.
type PageData struct {
	Page    *pdfcore.Page
	Streams []*pdfcore.ContentStreamObject
	Blocks  [][]contentstream.ContentBlock // one slice per stream, same index as Streams
	Fonts   map[pdfcore.Name]*fontmetrics.Font
	Spans   []span.TextSpan
}

// Load parses a PDF, rejecting encrypted or malformed input, and extracts
// every page's fonts, content blocks, and text spans eagerly so later
// stages operate on plain in-memory structures rather than re-walking the
// object graph.
func Load(data []byte) (*Document, error) {
	core, err := pdfcore.Load(data)
	if err != nil {
		return nil, err
	}

	root, err := core.Root()
	if err != nil {
		return nil, xerrors.Errorf("%w: %v", pdferr.ErrInvalidPdf, err)
	}
	if _, encrypted := core.Trailer().Get("Encrypt").(*pdfcore.Reference); encrypted {
		return nil, pdferr.ErrEncryptedPdf
	}
	if _, encrypted := core.Trailer().Get("Encrypt").(*pdfcore.Dictionary); encrypted {
		return nil, pdferr.ErrEncryptedPdf
	}
	_ = root

	pages, err := core.Pages()
	if err != nil {
		return nil, xerrors.Errorf("%w: %v", pdferr.ErrInvalidPdf, err)
	}

	doc := &Document{Core: core}
	for i, page := range pages {
		pd, err := loadPage(i, page)
		if err != nil {
			return nil, xerrors.Errorf("pdfmodel: page %d: %w", i, err)
		}
		doc.Pages = append(doc.Pages, pd)
		_, _, _, y1 := page.MediaBox()
		doc.PageHeights = append(doc.PageHeights, y1)
	}
	return doc, nil
}

func loadPage(index int, page *pdfcore.Page) (*PageData, error) {
	streams, err := page.ContentStreams()
	if err != nil {
		return nil, err
	}

	fonts := map[pdfcore.Name]*fontmetrics.Font{}
	for _, tag := range page.FontTags() {
		dict, ok := page.FontDict(tag)
		if !ok {
			continue
		}
		objNum, _ := page.FontObjectNumber(tag)
		font, err := fontmetrics.Parse(objNum, dict)
		if err != nil {
			// An unusable font is not fatal to the whole document: it is
			// left out of the registry, so the extractor emits no spans
			// for text drawn with it and that text is never a patch
			// target.
			continue
		}
		fonts[tag] = font
	}

	var allBlocks [][]contentstream.ContentBlock
	extractor := span.NewExtractor(fonts)
	var spans []span.TextSpan
	for streamIdx, stm := range streams {
		blocks, err := contentstream.Parse(stm.Content)
		if err != nil {
			// A stream that doesn't tokenize is left untouched rather than
			// failing the whole page: it contributes no spans (and so is
			// never a patch target), but its slot in Streams/Blocks stays
			// index-aligned with every other stream on the page.
			allBlocks = append(allBlocks, nil)
			continue
		}
		allBlocks = append(allBlocks, blocks)
		streamSpans := extractor.Extract(index, blocks)
		for i := range streamSpans {
			streamSpans[i].StreamIndex = streamIdx
		}
		spans = append(spans, streamSpans...)
	}

	return &PageData{
		Page:    page,
		Streams: streams,
		Blocks:  allBlocks,
		Fonts:   fonts,
		Spans:   spans,
	}, nil
}

// AllSpans concatenates every page's spans, in page order.
func (d *Document) AllSpans() []span.TextSpan {
	var out []span.TextSpan
	for _, p := range d.Pages {
		out = append(out, p.Spans...)
	}
	return out
}
