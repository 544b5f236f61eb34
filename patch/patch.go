/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

// Package patch rewrites a page's content streams in place to replace the
// text of one semantic element (a bullet line, a skill line's content, a
// title line's tech-stack parenthetical) with new text, refusing any
// replacement it cannot apply safely rather than guessing. It never
// rewrites a protected run (dates, emails, employment-status words,
// locations) and never widens a line beyond the width budget computed for
// it.
package patch

import (
	"bytes"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/resumeforge/pdfedit/contentstream"
	"github.com/resumeforge/pdfedit/fontmetrics"
	"github.com/resumeforge/pdfedit/pdfcore"
	"github.com/resumeforge/pdfedit/pdferr"
	"github.com/resumeforge/pdfedit/pdfmodel"
	"github.com/resumeforge/pdfedit/protected"
	"github.com/resumeforge/pdfedit/span"
)

// Target is one proposed text substitution against a semantic element
// already grouped by classify/semantic. Spans must be the exact TextSpans
// that render the element's current text, in render order; the target's
// font and width budget are those computed for the originating line.
//
// Lines, when non-empty, makes this a multi-line target: a wrapped bullet
// whose visual lines are rewritten independently, each against its own
// spans and width budget, instead of concentrating every word into the
// first matched content block and zeroing the rest. When Lines is set,
// Spans/NewText/MaxWidth are ignored.
type Target struct {
	ID        string
	PageIndex int
	Spans     []span.TextSpan
	NewText   string
	Font      *fontmetrics.Font
	FontSize  float64
	MaxWidth  float64
	Lines     []LineTarget
}

// LineTarget is one visual line of a multi-line Target: the spans that
// render that line's current text, the text it should carry instead, and
// the width budget computed for that line alone.
type LineTarget struct {
	Spans    []span.TextSpan
	NewText  string
	MaxWidth float64
}

// lines returns tgt's per-line view, synthesizing a single line from the
// legacy Spans/NewText/MaxWidth fields when Lines wasn't set.
func (tgt Target) lines() []LineTarget {
	if len(tgt.Lines) > 0 {
		return tgt.Lines
	}
	return []LineTarget{{Spans: tgt.Spans, NewText: tgt.NewText, MaxWidth: tgt.MaxWidth}}
}

// Change records one replacement actually written into a content stream.
type Change struct {
	ID           string
	OriginalText string
	NewText      string
}

// Dropped records a replacement that could not be applied, with a
// pdferr-classified reason.
type Dropped struct {
	ID     string
	Reason string
}

// maxBoundaryGapPts is the largest x-gap, in user-space units, tolerated
// between two consecutive spans of one target; a bigger gap means the
// spans likely belong to two visually distinct runs that were only
// classified together by accident, which the patcher refuses to bridge.
const maxBoundaryGapPts = 200.0

// widthTolerancePts is the overflow the patcher still accepts as "fits",
// matching the verifier's own overflow tolerance.
const widthTolerancePts = 0.5

// Apply rewrites every stream touched by a target whose replacement passes
// all safety checks, and reports every target it had to drop. Modifications
// are grouped per content-stream object so each stream is rewritten once
// even when several targets share it.
func Apply(doc *pdfmodel.Document, targets []Target) ([]pdfcore.Modification, []Change, []Dropped) {
	type pageStream struct {
		page, stream int
	}
	edits := map[pageStream][]blockEdit{}
	var changes []Change
	var dropped []Dropped

	for _, tgt := range targets {
		reason, ok := validate(doc, tgt)
		if !ok {
			dropped = append(dropped, Dropped{ID: tgt.ID, Reason: reason})
			continue
		}

		var originalParts, newParts []string
		for _, ln := range tgt.lines() {
			originalParts = append(originalParts, normalizeText(spansText(ln.Spans)))
			newParts = append(newParts, ln.NewText)

			encoded, _ := tgt.Font.Encode(ln.NewText)
			streamIdx := ln.Spans[0].StreamIndex
			key := pageStream{page: tgt.PageIndex, stream: streamIdx}
			for i, bi := range distinctBlocks(ln.Spans) {
				edits[key] = append(edits[key], blockEdit{blockIdx: bi, newBytes: encoded, primary: i == 0})
			}
		}
		changes = append(changes, Change{
			ID:           tgt.ID,
			OriginalText: strings.Join(originalParts, " "),
			NewText:      strings.Join(newParts, " "),
		})
	}

	var mods []pdfcore.Modification
	keys := make([]pageStream, 0, len(edits))
	for k := range edits {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].page != keys[j].page {
			return keys[i].page < keys[j].page
		}
		return keys[i].stream < keys[j].stream
	})

	for _, k := range keys {
		page := doc.Pages[k.page]
		stmObj := page.Streams[k.stream]
		blocks := page.Blocks[k.stream]
		newContent, err := rewriteStream(stmObj.Content, blocks, edits[k])
		if err != nil {
			// Catastrophic failure on this one stream: leave it untouched
			// rather than fail the whole document; every target that
			// landed on it simply produces no Modification.
			continue
		}
		encodedContent, clearFilter := pdfcore.EncodeStreamLike(stmObj.Stream, newContent)
		mods = append(mods, pdfcore.Modification{
			ObjectNumber: stmObj.ObjectNumber,
			NewContent:   encodedContent,
			ClearFilter:  clearFilter,
		})
	}
	return mods, changes, dropped
}

// validate runs every safety check before a target's bytes are computed for
// real, returning the pdferr-classified drop reason on the first failure. A
// multi-line target is checked one visual line at a time, each against its
// own spans and width budget.
func validate(doc *pdfmodel.Document, tgt Target) (string, bool) {
	if tgt.Font == nil {
		return pdferr.DropReason(pdferr.ErrMatchFailed), false
	}
	if tgt.PageIndex < 0 || tgt.PageIndex >= len(doc.Pages) {
		return pdferr.DropReason(pdferr.ErrMatchFailed), false
	}
	for _, ln := range tgt.lines() {
		if reason, ok := validateLine(doc, tgt, ln); !ok {
			return reason, false
		}
	}
	return "", true
}

func validateLine(doc *pdfmodel.Document, tgt Target, ln LineTarget) (string, bool) {
	if len(ln.Spans) == 0 {
		return pdferr.DropReason(pdferr.ErrMatchFailed), false
	}
	streamIdx := ln.Spans[0].StreamIndex
	page := doc.Pages[tgt.PageIndex]
	if streamIdx < 0 || streamIdx >= len(page.Blocks) {
		return pdferr.DropReason(pdferr.ErrMatchFailed), false
	}
	blocks := page.Blocks[streamIdx]

	original := spansText(ln.Spans)
	// A replaceable line that already carries protected content (a date
	// mentioned in bullet prose, an email in a summary line) is left
	// alone entirely rather than risk rewriting part of it: the match
	// boundary guard is enforced at element granularity, not by trying to
	// carve the protected run out of the replacement.
	if protected.ContainsAny(normalizeText(original)) {
		return pdferr.DropReason(pdferr.ErrProtectedBoundary), false
	}
	if !boundaryOK(ln.Spans) {
		return pdferr.DropReason(pdferr.ErrProtectedBoundary), false
	}

	for _, s := range ln.Spans {
		if s.StreamIndex != streamIdx {
			return pdferr.DropReason(pdferr.ErrMatchFailed), false
		}
	}
	for _, bi := range distinctBlocks(ln.Spans) {
		if bi < 0 || bi >= len(blocks) {
			return pdferr.DropReason(pdferr.ErrMatchFailed), false
		}
		switch blocks[bi].Operator {
		case "Tj", "'", "\"", "TJ":
		default:
			return pdferr.DropReason(pdferr.ErrMatchFailed), false
		}
	}

	encoded, missing := tgt.Font.Encode(ln.NewText)
	if len(missing) > 0 {
		return pdferr.DropReason(pdferr.ErrUnmappableGlyph), false
	}
	width := tgt.Font.Measure(encoded, tgt.FontSize)
	if width > ln.MaxWidth+widthTolerancePts {
		return pdferr.DropReason(pdferr.ErrBudgetExceeded), false
	}
	return "", true
}

// boundaryOK reports whether every consecutive pair of spans in the target
// sits within maxBoundaryGapPts of each other on the same page, refusing to
// bridge what looks like two unrelated runs glued together by
// misclassification.
func boundaryOK(spans []span.TextSpan) bool {
	for i := 1; i < len(spans); i++ {
		if spans[i].PageIndex != spans[i-1].PageIndex {
			continue
		}
		gap := spans[i].Origin[0] - spans[i-1].BBox[2]
		if gap < 0 {
			gap = -gap
		}
		if gap > maxBoundaryGapPts {
			return false
		}
	}
	return true
}

// distinctBlocks collects the ContentBlockIndex values touched by spans, in
// order, collapsing consecutive repeats (several TJ elements of one
// operator share one index).
func distinctBlocks(spans []span.TextSpan) []int {
	var out []int
	for _, s := range spans {
		if len(out) == 0 || out[len(out)-1] != s.ContentBlockIndex {
			out = append(out, s.ContentBlockIndex)
		}
	}
	return out
}

func spansText(spans []span.TextSpan) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

// normalizeText NFC-normalizes and collapses whitespace, for comparison
// only; it is never used to construct bytes written back to the stream.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// blockEdit is one content-block rewrite: the primary edit carries the new
// encoded bytes, every other block sharing a target is zeroed out (same
// operator, empty operand) rather than left with stale text.
type blockEdit struct {
	blockIdx int
	newBytes []byte
	primary  bool
}

// rewriteStream applies every blockEdit as a byte-range substitution over
// the operand region contentstream.Parse recorded for each block, working
// in descending-offset order so earlier splices don't invalidate later
// offsets.
func rewriteStream(content []byte, blocks []contentstream.ContentBlock, edits []blockEdit) ([]byte, error) {
	type splice struct {
		start, end int
		operand    []byte
	}
	var splices []splice
	for _, e := range edits {
		if e.blockIdx < 0 || e.blockIdx >= len(blocks) {
			return nil, pdferr.ErrStreamPatchFailed
		}
		blk := blocks[e.blockIdx]
		var operand []byte
		switch blk.Operator {
		case "Tj", "'", "\"":
			if e.primary {
				operand = append([]byte("("), escapeLiteral(e.newBytes)...)
				operand = append(operand, ')', ' ')
			} else {
				operand = []byte("() ")
			}
		case "TJ":
			// The TJ kerning-array rewrite always collapses the run into a
			// single string element rather than distributing the new
			// bytes across the original array and zeroing the rest: that
			// would require re-deriving per-glyph kerning for text with a
			// different glyph sequence, which isn't something the patcher
			// can verify stays visually equivalent.
			if e.primary {
				operand = append([]byte("[("), escapeLiteral(e.newBytes)...)
				operand = append(operand, ')', ']', ' ')
			} else {
				operand = []byte("[()] ")
			}
		default:
			return nil, pdferr.ErrStreamPatchFailed
		}
		splices = append(splices, splice{start: blk.OperandStart, end: blk.OperandEnd, operand: operand})
	}

	sort.Slice(splices, func(i, j int) bool { return splices[i].start > splices[j].start })

	out := append([]byte(nil), content...)
	for _, s := range splices {
		if s.start < 0 || s.end > len(out) || s.start > s.end {
			return nil, pdferr.ErrStreamPatchFailed
		}
		var buf bytes.Buffer
		buf.Write(out[:s.start])
		buf.Write(s.operand)
		buf.Write(out[s.end:])
		out = buf.Bytes()
	}
	return out, nil
}

// escapeLiteral backslash-escapes the three bytes that are syntactically
// significant inside a PDF literal string.
func escapeLiteral(data []byte) []byte {
	var out []byte
	for _, b := range data {
		switch b {
		case '(', ')', '\\':
			out = append(out, '\\', b)
		default:
			out = append(out, b)
		}
	}
	return out
}
