/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

// Package verify inspects a patched document against the one it was
// derived from and reports whether the edit kept every invariant the
// patcher is supposed to hold: protected content untouched, fonts
// unchanged, no garbled text introduced, and no line now overflowing its
// page margin. A report is advisory — the engine never rolls an edit back
// because of what it finds here, it just surfaces the finding.
package verify

import (
	"bytes"
	"regexp"
	"sort"
	"strings"

	"github.com/trimmer-io/go-xmp/xmp"

	"github.com/resumeforge/pdfedit/cmap"
	"github.com/resumeforge/pdfedit/pdfmodel"
	"github.com/resumeforge/pdfedit/protected"
)

// Report bundles the four checks plus the supplemental metadata detail
// folded into Protected.
type Report struct {
	Protected ProtectedReport
	Fonts     FontsReport
	Garbled   GarbledReport
	Overflow  OverflowReport
}

// OK reports whether every sub-check passed.
func (r Report) OK() bool {
	return r.Protected.OK && r.Fonts.OK && r.Garbled.OK && r.Overflow.OK
}

// ProtectedReport lists protected-content values present in the original
// that no longer appear anywhere in the output.
type ProtectedReport struct {
	OK      bool
	Missing map[protected.Kind][]string
	Details map[string]string
}

// FontsReport compares each page's PostScript-name inventory.
type FontsReport struct {
	OK      bool
	Missing map[int][]string // page index -> PostScript names dropped
	Added   map[int][]string // page index -> PostScript names introduced
}

// GarbledReport lists spans whose text looks corrupted after patching.
type GarbledReport struct {
	OK       bool
	Findings []string
}

// OverflowReport lists spans whose right edge now extends past the page's
// inferred right margin.
type OverflowReport struct {
	OK       bool
	Findings []string
}

const overflowTolerancePts = 0.5

// slashCompounds is the whitelist of real words containing a slash; a token
// containing one is not flagged by the garbled check's mid-word
// case-boundary scan.
var slashCompounds = map[string]bool{
	"min/max": true, "read/write": true, "and/or": true, "i/o": true, "ci/cd": true,
}

var midWordBoundary = regexp.MustCompile(`[a-z][A-Z]`)

// Verify compares `output` (the document produced by a patch.Apply run)
// against `original` (the document it was derived from). pageRightMargin,
// if non-nil, supplies a tighter per-page right margin than the page's
// MediaBox edge (the caller — the edit driver — can compute this from the
// classified body-text lines); a page beyond the slice's length falls back
// to its own MediaBox right edge.
func Verify(original, output *pdfmodel.Document, pageRightMargin []float64) Report {
	return Report{
		Protected: verifyProtected(original, output),
		Fonts:     verifyFonts(original, output),
		Garbled:   verifyGarbled(output, original),
		Overflow:  verifyOverflow(output, pageRightMargin),
	}
}

func verifyProtected(original, output *pdfmodel.Document) ProtectedReport {
	origSets := protected.Sets(allText(original))
	outSets := protected.Sets(allText(output))

	missing := map[protected.Kind][]string{}
	ok := true
	for kind, values := range origSets {
		for v := range values {
			if !outSets[kind][v] {
				missing[kind] = append(missing[kind], v)
				ok = false
			}
		}
	}
	for kind := range missing {
		sort.Strings(missing[kind])
	}

	report := ProtectedReport{OK: ok, Missing: missing}
	VerifyMetadata(&report, documentMetadata(original), documentMetadata(output))
	return report
}

// documentMetadata returns a document's catalog /Metadata packet bytes, or
// nil when it carries none or wasn't loaded from a pdfcore source (a test
// building a pdfmodel.Document literal directly, with no Core).
func documentMetadata(doc *pdfmodel.Document) []byte {
	if doc == nil || doc.Core == nil {
		return nil
	}
	data, ok := doc.Core.Metadata()
	if !ok {
		return nil
	}
	return data
}

// VerifyMetadata compares the original and output XMP metadata packets (or
// DocInfo dictionaries serialized the same way by the caller) for
// byte-for-byte preservation, folding the result into a protected report's
// detail map rather than a fifth top-level sub-report. Both packets are
// parsed with xmp.Read first so a packet that isn't well-formed XMP is
// reported as such rather than silently compared as opaque bytes; the
// equality check itself then compares the packets' raw bytes.
func VerifyMetadata(report *ProtectedReport, originalXMP, outputXMP []byte) {
	if report.Details == nil {
		report.Details = map[string]string{}
	}
	if len(originalXMP) == 0 && len(outputXMP) == 0 {
		report.Details["metadata_preserved"] = boolString(true)
		return
	}
	if _, err := xmp.Read(bytes.NewReader(originalXMP)); err != nil {
		report.Details["metadata_preserved"] = "unparseable_original"
		return
	}
	if _, err := xmp.Read(bytes.NewReader(outputXMP)); err != nil {
		report.Details["metadata_preserved"] = "unparseable_output"
		report.OK = false
		return
	}
	preserved := bytes.Equal(originalXMP, outputXMP)
	report.Details["metadata_preserved"] = boolString(preserved)
	if !preserved {
		report.OK = false
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func verifyFonts(original, output *pdfmodel.Document) FontsReport {
	missing := map[int][]string{}
	added := map[int][]string{}
	ok := true

	n := len(original.Pages)
	if len(output.Pages) > n {
		n = len(output.Pages)
	}
	for i := 0; i < n; i++ {
		origNames := fontNames(original, i)
		outNames := fontNames(output, i)
		for name := range origNames {
			if !outNames[name] {
				missing[i] = append(missing[i], name)
				ok = false
			}
		}
		for name := range outNames {
			if !origNames[name] {
				added[i] = append(added[i], name)
				ok = false
			}
		}
		sort.Strings(missing[i])
		sort.Strings(added[i])
	}
	return FontsReport{OK: ok, Missing: missing, Added: added}
}

func fontNames(doc *pdfmodel.Document, pageIndex int) map[string]bool {
	out := map[string]bool{}
	if pageIndex >= len(doc.Pages) {
		return out
	}
	for _, font := range doc.Pages[pageIndex].Fonts {
		out[font.PostScript] = true
	}
	return out
}

// verifyGarbled scans output's spans for text that looks corrupted by
// patching. A mid-word case boundary ("JavaScript", "GitHub") is only a
// finding when that exact token never appeared anywhere in original's text:
// original's own vocabulary is the ground truth for what counts as a real
// word in this document, so unchanged tokens are never flagged no matter
// how unusual their casing looks in isolation.
func verifyGarbled(doc, original *pdfmodel.Document) GarbledReport {
	vocab := vocabulary(original)
	var findings []string
	for _, sp := range doc.AllSpans() {
		if strings.ContainsRune(sp.Text, cmap.MissingCodeRune) {
			findings = append(findings, "unmappable glyph rendered in output: "+quote(sp.Text))
			continue
		}
		for _, tok := range strings.Fields(sp.Text) {
			if midWordBoundary.MatchString(tok) && !hasKnownAcronymBoundary(tok) && !vocab[tok] {
				findings = append(findings, "suspicious mid-word case boundary: "+quote(tok))
			}
			if isIsolatedPunctuation(tok) {
				findings = append(findings, "isolated punctuation token: "+quote(tok))
			}
		}
	}
	return GarbledReport{OK: len(findings) == 0, Findings: findings}
}

// vocabulary collects every whitespace-delimited token that appears anywhere
// in doc's extracted text, used to tell an unchanged word from one patching
// actually garbled. Returns an empty set for a nil document (verifyGarbled's
// tests exercise it without an original).
func vocabulary(doc *pdfmodel.Document) map[string]bool {
	vocab := map[string]bool{}
	if doc == nil {
		return vocab
	}
	for _, sp := range doc.AllSpans() {
		for _, tok := range strings.Fields(sp.Text) {
			vocab[tok] = true
		}
	}
	return vocab
}

// hasKnownAcronymBoundary reports whether text contains one of the
// whitelisted slash-compounds (e.g. "min/max"); any case boundary in such a
// token is then not flagged.
func hasKnownAcronymBoundary(text string) bool {
	lower := strings.ToLower(text)
	for compound := range slashCompounds {
		if strings.Contains(lower, compound) {
			return true
		}
	}
	return false
}

func isIsolatedPunctuation(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return false
		}
	}
	switch tok {
	case "-", "–", "—", "•", "●", "◦", "○", "■", "▪":
		return false
	}
	return true
}

func quote(s string) string {
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return "\"" + s + "\""
}

func verifyOverflow(doc *pdfmodel.Document, pageRightMargin []float64) OverflowReport {
	var findings []string
	for pageIdx, page := range doc.Pages {
		margin := pageRightEdge(page)
		if pageIdx < len(pageRightMargin) {
			margin = pageRightMargin[pageIdx]
		}
		for _, sp := range page.Spans {
			if sp.BBox[2] > margin+overflowTolerancePts {
				findings = append(findings, quote(sp.Text))
			}
		}
	}
	return OverflowReport{OK: len(findings) == 0, Findings: findings}
}

func pageRightEdge(page *pdfmodel.PageData) float64 {
	if page.Page == nil {
		return 1e9 // no MediaBox available: don't flag anything
	}
	_, _, x1, _ := page.Page.MediaBox()
	return x1
}

func allText(doc *pdfmodel.Document) string {
	var b strings.Builder
	for _, sp := range doc.AllSpans() {
		b.WriteString(sp.Text)
		b.WriteByte(' ')
	}
	return b.String()
}
