/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

// Package span extracts a flat, ordered sequence of TextSpan records from a
// page's content stream and groups them into visual lines. It is the
// simulator half of the CMap & width engine's consumer: it walks the text
// matrix the way a renderer would, but instead of painting glyphs it
// records their position, font, and decoded text.
package span

import (
	"sort"

	"github.com/resumeforge/pdfedit/contentstream"
	"github.com/resumeforge/pdfedit/fontmetrics"
	"github.com/resumeforge/pdfedit/pdfcore"
)

// TextSpan is an atomic run of text from a content stream: immutable once
// extracted, and returned by Extract in content-stream order
// (GroupVisualLines is what sorts spans by y, then x).
type TextSpan struct {
	PageIndex  int
	Origin     [2]float64
	BBox       [4]float64
	FontID     int64 // stable id into the document's font registry
	FontSize   float64
	Color      uint32 // 24-bit RGB, high byte unused
	Bold       bool
	Italic     bool
	Symbolic   bool
	RenderMode int // the PDF Tr operand: 0 fill, 3 invisible, 7 clip, etc.
	Invisible  bool
	Text       string

	// ContentBlockIndex ties this span back to the ContentBlock that
	// rendered it, so the patcher can find the bytes to rewrite without
	// re-running the text-positioning simulation. It indexes into the
	// blocks of the single stream named by StreamIndex, not into a
	// page-wide flattened sequence.
	ContentBlockIndex int

	// StreamIndex is the index, within the page's ContentStreams() slice,
	// of the stream this span was rendered from. Extract only ever sees
	// one stream's blocks at a time and so never sets this itself; the
	// caller stamps it in after each call when a page has more than one
	// content stream.
	StreamIndex int
}

// IsBulletChar reports whether this span, after stripping zero-width
// padding, is one of the recognized bullet-marker glyphs.
func (s TextSpan) IsBulletChar() bool {
	clean := stripZWS(s.Text)
	switch clean {
	case "●", "•", "◦", "○", "■", "▪":
		return true
	}
	return false
}

// IsZWSOnly reports whether the span carries no visible content once
// zero-width characters and spaces are stripped.
func (s TextSpan) IsZWSOnly() bool {
	return stripZWS(s.Text) == "" || allSpace(stripZWS(s.Text))
}

func allSpace(s string) bool {
	for _, r := range s {
		if r != ' ' {
			return false
		}
	}
	return true
}

var zeroWidthChars = map[rune]bool{
	'​': true, '‌': true, '‍': true, '﻿': true, '⁠': true,
}

func stripZWS(s string) string {
	var b []rune
	for _, r := range s {
		if !zeroWidthChars[r] {
			b = append(b, r)
		}
	}
	return string(b)
}

// Extractor simulates the text-positioning machine over a page's content
// stream, fed by a registry of parsed fonts keyed by resource tag.
type Extractor struct {
	fonts map[pdfcore.Name]*fontmetrics.Font
}

// NewExtractor builds an Extractor with the page's font resources already
// resolved into fontmetrics.Font records.
func NewExtractor(fonts map[pdfcore.Name]*fontmetrics.Font) *Extractor {
	return &Extractor{fonts: fonts}
}

// state mirrors the subset of the PDF graphics/text state the extractor
// needs to place and describe a span.
type state struct {
	ctm                                     [6]float64
	tm, tlm                                 [6]float64
	fontTag                                 pdfcore.Name
	fontSize                                float64
	charSpace, wordSpace, leading, textRise float64
	hscale                                  float64
	renderMode                              int
	fillColor                               uint32
}

func identity() [6]float64 { return [6]float64{1, 0, 0, 1, 0, 0} }

func mul(a, b [6]float64) [6]float64 {
	return [6]float64{
		a[0]*b[0] + a[1]*b[2],
		a[0]*b[1] + a[1]*b[3],
		a[2]*b[0] + a[3]*b[2],
		a[2]*b[1] + a[3]*b[3],
		a[4]*b[0] + a[5]*b[2] + b[4],
		a[4]*b[1] + a[5]*b[3] + b[5],
	}
}

func apply(m [6]float64, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// Extract walks `blocks` (already tokenized by contentstream.Parse) and
// returns every TextSpan the page's Tj/TJ operators render, plus the
// ContentBlock each span came from (by index into `blocks`, already set on
// the span).
func (e *Extractor) Extract(pageIndex int, blocks []contentstream.ContentBlock) []TextSpan {
	st := state{ctm: identity(), tm: identity(), tlm: identity(), hscale: 1.0}
	var gsStack []state
	var spans []TextSpan

	newline := func(tx, ty float64) {
		st.tlm = mul([6]float64{1, 0, 0, 1, tx, ty}, st.tlm)
		st.tm = st.tlm
	}

	for i, blk := range blocks {
		switch blk.Operator {
		case "q":
			gsStack = append(gsStack, st)
		case "Q":
			if n := len(gsStack); n > 0 {
				st = gsStack[n-1]
				gsStack = gsStack[:n-1]
			}
		case "cm":
			if len(blk.Operands) == 6 {
				m := toMatrix(blk.Operands)
				st.ctm = mul(m, st.ctm)
			}
		case "BT":
			st.tm = identity()
			st.tlm = identity()
		case "Tm":
			if len(blk.Operands) == 6 {
				st.tm = toMatrix(blk.Operands)
				st.tlm = st.tm
			}
		case "Td":
			if len(blk.Operands) == 2 {
				newline(blk.Operands[0], blk.Operands[1])
			}
		case "TD":
			if len(blk.Operands) == 2 {
				st.leading = -blk.Operands[1]
				newline(blk.Operands[0], blk.Operands[1])
			}
		case "T*":
			newline(0, -st.leading)
		case "TL":
			if len(blk.Operands) == 1 {
				st.leading = blk.Operands[0]
			}
		case "Tc":
			if len(blk.Operands) == 1 {
				st.charSpace = blk.Operands[0]
			}
		case "Tw":
			if len(blk.Operands) == 1 {
				st.wordSpace = blk.Operands[0]
			}
		case "Tz":
			if len(blk.Operands) == 1 {
				st.hscale = blk.Operands[0] / 100.0
			}
		case "Ts":
			if len(blk.Operands) == 1 {
				st.textRise = blk.Operands[0]
			}
		case "Tr":
			if len(blk.Operands) == 1 {
				st.renderMode = int(blk.Operands[0])
			}
		case "Tf":
			if len(blk.Operands) == 1 && blk.FontTag != "" {
				st.fontTag = blk.FontTag
				st.fontSize = blk.Operands[0]
			}
		case "rg":
			if len(blk.Operands) == 3 {
				st.fillColor = rgbColor(blk.Operands[0], blk.Operands[1], blk.Operands[2])
			}
		case "g":
			if len(blk.Operands) == 1 {
				v := blk.Operands[0]
				st.fillColor = rgbColor(v, v, v)
			}
		case "k":
			if len(blk.Operands) == 4 {
				st.fillColor = cmykColor(blk.Operands[0], blk.Operands[1], blk.Operands[2], blk.Operands[3])
			}
		case "sc", "scn":
			if len(blk.Operands) == 3 {
				st.fillColor = rgbColor(blk.Operands[0], blk.Operands[1], blk.Operands[2])
			} else if len(blk.Operands) == 1 {
				v := blk.Operands[0]
				st.fillColor = rgbColor(v, v, v)
			}
		case "Tj":
			s, adv := e.showText(pageIndex, i, st, blk.Text)
			if s != nil {
				spans = append(spans, *s)
			}
			newTm := mul([6]float64{1, 0, 0, 1, adv, 0}, st.tm)
			st.tm = newTm
		case "TJ":
			for _, el := range blk.TJArray {
				if el.IsAdjustment {
					dx := -el.Adjustment / 1000.0 * st.fontSize * st.hscale
					st.tm = mul([6]float64{1, 0, 0, 1, dx, 0}, st.tm)
					continue
				}
				s, adv := e.showText(pageIndex, i, st, el.Text)
				if s != nil {
					spans = append(spans, *s)
				}
				st.tm = mul([6]float64{1, 0, 0, 1, adv, 0}, st.tm)
			}
		case "'":
			newline(0, -st.leading)
			s, adv := e.showText(pageIndex, i, st, blk.Text)
			if s != nil {
				spans = append(spans, *s)
			}
			st.tm = mul([6]float64{1, 0, 0, 1, adv, 0}, st.tm)
		}
	}
	return spans
}

func toMatrix(ops []float64) [6]float64 {
	var m [6]float64
	copy(m[:], ops)
	return m
}

func rgbColor(r, g, b float64) uint32 {
	return uint32(clamp255(r))<<16 | uint32(clamp255(g))<<8 | uint32(clamp255(b))
}

func cmykColor(c, m, y, k float64) uint32 {
	r := (1 - c) * (1 - k)
	g := (1 - m) * (1 - k)
	b := (1 - y) * (1 - k)
	return rgbColor(r, g, b)
}

func clamp255(v float64) int {
	n := int(v*255 + 0.5)
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return n
}

// showText decodes `raw` through the current font, emits a TextSpan at the
// current text-matrix origin, and returns the horizontal advance (in
// unscaled text space) to apply afterward.
func (e *Extractor) showText(pageIndex, blockIndex int, st state, raw []byte) (*TextSpan, float64) {
	font := e.fonts[st.fontTag]
	if font == nil || st.fontSize == 0 {
		return nil, 0
	}
	text := font.Decode(raw)
	widthUnits := font.Measure(raw, 1000) // glyph-space units, not yet scaled by size
	nChars := countCodes(font, raw)
	adv := (widthUnits/1000.0*st.fontSize + float64(nChars)*st.charSpace + spaceCount(raw)*st.wordSpace) * st.hscale

	trm := mul(mul([6]float64{st.fontSize * st.hscale, 0, 0, st.fontSize, 0, st.textRise}, st.tm), st.ctm)
	ox, oy := apply(trm, 0, 0)
	ex, ey := apply(trm, widthUnits/1000.0, 0)

	x0, x1 := ox, ex
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	y0, y1 := oy, ey
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	// A flat text run has zero geometric height in the baseline direction;
	// approximate a bounding box using the font size as ascent/descent,
	// matching how the classifier actually uses bbox (line grouping on y,
	// overflow checks on x1).
	y1 += st.fontSize * 0.8
	y0 -= st.fontSize * 0.2

	s := &TextSpan{
		PageIndex:         pageIndex,
		Origin:            [2]float64{ox, oy},
		BBox:              [4]float64{x0, y0, x1, y1},
		FontID:            font.ID,
		FontSize:          st.fontSize,
		Color:             st.fillColor,
		Bold:              font.Bold,
		Italic:            font.Italic,
		Symbolic:          font.IsSymbolic,
		RenderMode:        st.renderMode,
		Invisible:         st.renderMode == 3 || st.renderMode == 7,
		Text:              text,
		ContentBlockIndex: blockIndex,
	}
	return s, adv
}

func countCodes(font *fontmetrics.Font, raw []byte) int {
	w := font.ByteWidth()
	if w <= 0 {
		return 0
	}
	return len(raw) / w
}

func spaceCount(raw []byte) float64 {
	var n float64
	for _, b := range raw {
		if b == 0x20 {
			n++
		}
	}
	return n
}

// GroupVisualLines clusters spans by page and y-origin (tolerance 3
// user-space units), sorted x-ascending within a line. This is physical
// grouping only; it carries no section/semantic meaning.
func GroupVisualLines(spans []TextSpan) [][]TextSpan {
	if len(spans) == 0 {
		return nil
	}
	sorted := append([]TextSpan(nil), spans...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PageIndex != sorted[j].PageIndex {
			return sorted[i].PageIndex < sorted[j].PageIndex
		}
		if sorted[i].Origin[1] != sorted[j].Origin[1] {
			return sorted[i].Origin[1] > sorted[j].Origin[1] // PDF y grows upward; read top to bottom
		}
		return sorted[i].Origin[0] < sorted[j].Origin[0]
	})

	var lines [][]TextSpan
	current := []TextSpan{sorted[0]}
	for _, sp := range sorted[1:] {
		prev := current[len(current)-1]
		if sp.PageIndex == prev.PageIndex && absf(sp.Origin[1]-prev.Origin[1]) < 3 {
			current = append(current, sp)
		} else {
			lines = append(lines, current)
			current = []TextSpan{sp}
		}
	}
	lines = append(lines, current)

	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].Origin[0] < line[j].Origin[0] })
	}
	return lines
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
