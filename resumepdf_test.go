/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

// Package resumepdf holds end-to-end coverage for the full pipeline: a
// synthetic single-page PDF is loaded, patched, reloaded, and verified the
// same way the resumeedit CLI drives the engine, exercising cmap, span,
// patch, and verify together rather than each package's own unit tests in
// isolation.
package resumepdf

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumeforge/pdfedit/cmap"
	"github.com/resumeforge/pdfedit/fontmetrics"
	"github.com/resumeforge/pdfedit/patch"
	"github.com/resumeforge/pdfedit/pdfcore"
	"github.com/resumeforge/pdfedit/pdfmodel"
	"github.com/resumeforge/pdfedit/span"
	"github.com/resumeforge/pdfedit/verify"
)

// buildPDF assembles the smallest well-formed single-page PDF around a
// caller-supplied content stream, one Helvetica font resource, US Letter
// media box. It mirrors pdfmodel's own minimalPDF test builder, generalized
// to an arbitrary content body so each scenario below can lay out its own
// lines.
func buildPDF(t *testing.T, content string) []byte {
	t.Helper()
	var b strings.Builder
	offsets := make([]int, 0, 6)
	write := func(s string) { b.WriteString(s) }

	offsets = append(offsets, b.Len())
	write("%PDF-1.4\n")

	record := func(s string) {
		offsets = append(offsets, b.Len())
		write(s)
	}
	record("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	record("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	record("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>\nendobj\n")
	record("4 0 obj\n<< /Length " + itoa(len(content)) + " >>\nstream\n" + content + "\nendstream\nendobj\n")
	record("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xrefStart := b.Len()
	write("xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i < 6; i++ {
		write(pad10(offsets[i]) + " 00000 n \n")
	}
	write("trailer\n<< /Size 6 /Root 1 0 R >>\n")
	write("startxref\n" + itoa(xrefStart) + "\n%%EOF")

	return []byte(b.String())
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func pad10(n int) string {
	s := itoa(n)
	for len(s) < 10 {
		s = "0" + s
	}
	return s
}

// resumeContent is a one-page layout carrying one bullet line, one short
// line used for a forced budget failure, a title line and an adjacent date
// on the same baseline, and a title line with a tech-stack parenthetical.
const resumeContent = `BT /F1 10 Tf 72 700 Td (Built distributed backend systems) Tj ET
BT /F1 10 Tf 72 680 Td (Hi) Tj ET
BT /F1 12 Tf 72 660 Td (Software Engineer) Tj ET
BT /F1 12 Tf 300 660 Td (2020 - Present) Tj ET
BT /F1 10 Tf 72 640 Td (Backend Engineer \(Python, Django, Redis\)) Tj ET`

func loadResume(t *testing.T) *pdfmodel.Document {
	t.Helper()
	doc, err := pdfmodel.Load(buildPDF(t, resumeContent))
	require.NoError(t, err)
	return doc
}

func findSpan(t *testing.T, doc *pdfmodel.Document, text string) span.TextSpan {
	t.Helper()
	for _, s := range doc.AllSpans() {
		if s.Text == text {
			return s
		}
	}
	t.Fatalf("no span with text %q", text)
	return span.TextSpan{}
}

func resolveFont(t *testing.T, doc *pdfmodel.Document, s span.TextSpan) *fontmetrics.Font {
	t.Helper()
	for _, f := range doc.Pages[s.PageIndex].Fonts {
		if f.ID == s.FontID {
			return f
		}
	}
	t.Fatalf("no font for span %+v", s)
	return nil
}

// 1. Round-trip CMap: decode(encode(c)) == c for every rune in coverage.
func TestInvariantRoundTripCMap(t *testing.T) {
	codeToRune := make(map[cmap.CharCode]rune, 95)
	for c := cmap.CharCode(0x20); c <= 0x7e; c++ {
		codeToRune[c] = rune(c)
	}
	m := cmap.NewIdentity(codeToRune, 8)
	for r := range m.Coverage() {
		code, ok := m.UnicodeToCharcode(r)
		require.True(t, ok, "rune %q in coverage but has no charcode", r)
		decoded := m.Decode([]byte{byte(code)})
		assert.Equal(t, string(r), decoded, "round trip %q", r)
	}
}

// 2. Width monotonicity: a prefix never measures wider than the full string.
func TestInvariantWidthMonotonicity(t *testing.T) {
	codeToRune := make(map[cmap.CharCode]rune, 95)
	for c := cmap.CharCode(0x20); c <= 0x7e; c++ {
		codeToRune[c] = rune(c)
	}
	font := fontmetrics.NewForTest(cmap.NewIdentity(codeToRune, 8), 600)
	full := "Built distributed backend systems"
	for i := 1; i <= len(full); i++ {
		prefix := full[:i]
		wPrefix, _ := font.MeasureText(prefix, 10)
		wFull, _ := font.MeasureText(full, 10)
		require.LessOrEqualf(t, wPrefix, wFull, "measure(%q) > measure(%q)", prefix, full)
	}
}

// 3. Patcher identity + scenario 1 (self-identity): an empty replacement set
// leaves the document logically unchanged and the verifier reports OK.
func TestPatcherIdentityEmptyReplacementSet(t *testing.T) {
	doc := loadResume(t)
	mods, changes, dropped := patch.Apply(doc, nil)
	require.Empty(t, mods)
	require.Empty(t, changes)
	require.Empty(t, dropped)

	out, err := doc.Core.Save(mods)
	require.NoError(t, err)
	outDoc, err := pdfmodel.Load(out)
	require.NoError(t, err)

	// Testable property 3: the body (everything before the xref section) is
	// copied through byte-for-byte on a no-op apply, not merely re-rendered
	// to equivalent text. Only the regenerated xref/trailer tail may differ.
	src := doc.Core.SourceBytes()
	bodyEnd := doc.Core.BodyEnd()
	require.Greater(t, bodyEnd, int64(0))
	require.LessOrEqual(t, bodyEnd, int64(len(src)))
	require.LessOrEqual(t, bodyEnd, int64(len(out)))
	assert.True(t, bytes.Equal(src[:bodyEnd], out[:bodyEnd]),
		"body bytes changed on a no-op apply: expected byte-identical output outside the xref/trailer")

	origTexts := spanTexts(doc.AllSpans())
	reloadedTexts := spanTexts(outDoc.AllSpans())
	if diff := cmp.Diff(origTexts, reloadedTexts); diff != "" {
		t.Errorf("span texts changed on a no-op apply (-want +got):\n%s", diff)
	}

	report := verify.Verify(doc, outDoc, nil)
	assert.True(t, report.OK(), "expected a passing report for a no-op apply, got %+v", report)
}

func spanTexts(spans []span.TextSpan) []string {
	texts := make([]string, len(spans))
	for i, s := range spans {
		texts[i] = s.Text
	}
	return texts
}

// 2 (scenario): vowel-swap bullet, same length and character set, must be
// accepted with width unchanged within tolerance and the neighboring date
// line untouched.
func TestScenarioVowelSwapBullet(t *testing.T) {
	doc := loadResume(t)
	bulletSpan := findSpan(t, doc, "Built distributed backend systems")
	font := resolveFont(t, doc, bulletSpan)
	originalWidth, _ := font.MeasureText(bulletSpan.Text, bulletSpan.FontSize)

	tgt := patch.Target{
		ID: "experience-b1", PageIndex: bulletSpan.PageIndex, Spans: []span.TextSpan{bulletSpan},
		NewText: "Bailt distribatad beckand systams", Font: font, FontSize: bulletSpan.FontSize,
		MaxWidth: originalWidth,
	}
	mods, changes, dropped := patch.Apply(doc, []patch.Target{tgt})
	require.Empty(t, dropped)
	require.Len(t, changes, 1)
	assert.Equal(t, tgt.NewText, changes[0].NewText)

	newWidth, missing := font.MeasureText(tgt.NewText, bulletSpan.FontSize)
	require.Empty(t, missing, "replacement should be fully encodable")
	assert.LessOrEqual(t, newWidth, originalWidth+0.5)

	out, err := doc.Core.Save(mods)
	require.NoError(t, err)
	outDoc, err := pdfmodel.Load(out)
	require.NoError(t, err)

	dateSpan := findSpan(t, outDoc, "2020 - Present")
	assert.Equal(t, "2020 - Present", dateSpan.Text)
}

// 3 (scenario): a replacement that measures wider than the budget is
// dropped, and the targeted element's bytes are left untouched.
func TestScenarioOverBudgetDrop(t *testing.T) {
	doc := loadResume(t)
	shortSpan := findSpan(t, doc, "Hi")
	font := resolveFont(t, doc, shortSpan)

	tgt := patch.Target{
		ID: "experience-b2", PageIndex: shortSpan.PageIndex, Spans: []span.TextSpan{shortSpan},
		NewText: strings.Repeat("way too much text to fit on one line ", 6),
		Font:    font, FontSize: shortSpan.FontSize, MaxWidth: 180,
	}
	mods, changes, dropped := patch.Apply(doc, []patch.Target{tgt})
	assert.Empty(t, mods)
	assert.Empty(t, changes)
	require.Len(t, dropped, 1)
	assert.Equal(t, "BudgetExceeded", dropped[0].Reason)
}

// 4 (scenario): editing a title on a line that also carries a date leaves
// the date's bytes untouched and the verifier's protected-content check
// passing, because the title's Target never includes the date's span.
func TestScenarioDateAdjacentTitleEdit(t *testing.T) {
	doc := loadResume(t)
	titleSpan := findSpan(t, doc, "Software Engineer")
	font := resolveFont(t, doc, titleSpan)
	originalWidth, _ := font.MeasureText(titleSpan.Text, titleSpan.FontSize)

	tgt := patch.Target{
		ID: "title-1", PageIndex: titleSpan.PageIndex, Spans: []span.TextSpan{titleSpan},
		NewText: "Senior Engineer", Font: font, FontSize: titleSpan.FontSize,
		MaxWidth: originalWidth + 40,
	}
	mods, changes, dropped := patch.Apply(doc, []patch.Target{tgt})
	require.Empty(t, dropped)
	require.Len(t, changes, 1)

	out, err := doc.Core.Save(mods)
	require.NoError(t, err)
	outDoc, err := pdfmodel.Load(out)
	require.NoError(t, err)

	dateSpan := findSpan(t, outDoc, "2020 - Present")
	assert.Equal(t, "2020 - Present", dateSpan.Text)
	newTitle := findSpan(t, outDoc, "Senior Engineer")
	assert.Equal(t, "Senior Engineer", newTitle.Text, "title not rewritten")

	report := verify.Verify(doc, outDoc, nil)
	assert.True(t, report.Protected.OK, "expected protected_content check to pass, got %+v", report.Protected)
}

// 5 (scenario): a replacement the font cannot encode is dropped with
// UnmappableGlyph and produces no modification.
func TestScenarioUnmappableGlyphDrop(t *testing.T) {
	doc := loadResume(t)
	bulletSpan := findSpan(t, doc, "Built distributed backend systems")
	font := resolveFont(t, doc, bulletSpan)

	tgt := patch.Target{
		ID: "experience-b1", PageIndex: bulletSpan.PageIndex, Spans: []span.TextSpan{bulletSpan},
		NewText: "日本語", Font: font, FontSize: bulletSpan.FontSize, MaxWidth: 10000,
	}
	mods, changes, dropped := patch.Apply(doc, []patch.Target{tgt})
	assert.Empty(t, mods)
	assert.Empty(t, changes)
	require.Len(t, dropped, 1)
	assert.Equal(t, "UnmappableGlyph", dropped[0].Reason)
}

// 6 (scenario): rewriting a title's tech-stack parenthetical replaces the
// whole rendered line (this patcher's block-granularity, see the design
// notes on whole-block rewrites) while the prefix's text content survives
// unchanged and parentheses are preserved.
func TestScenarioTitleTechStackRewrite(t *testing.T) {
	doc := loadResume(t)
	lineSpan := findSpan(t, doc, "Backend Engineer (Python, Django, Redis)")
	font := resolveFont(t, doc, lineSpan)

	newLine := "Backend Engineer (Go, gRPC, Postgres)"
	tgt := patch.Target{
		ID: "title-2", PageIndex: lineSpan.PageIndex, Spans: []span.TextSpan{lineSpan},
		NewText: newLine, Font: font, FontSize: lineSpan.FontSize, MaxWidth: 10000,
	}
	mods, changes, dropped := patch.Apply(doc, []patch.Target{tgt})
	require.Empty(t, dropped)
	require.Len(t, changes, 1)
	assert.Contains(t, string(mods[0].NewContent), "(Backend Engineer \\(Go, gRPC, Postgres\\))")

	out, err := doc.Core.Save(mods)
	require.NoError(t, err)
	outDoc, err := pdfmodel.Load(out)
	require.NoError(t, err)

	rewritten := findSpan(t, outDoc, newLine)
	assert.True(t, strings.HasPrefix(rewritten.Text, "Backend Engineer ("), "prefix text not preserved: %q", rewritten.Text)
	assert.True(t, strings.HasSuffix(rewritten.Text, ")"), "closing paren not preserved: %q", rewritten.Text)
}

// 4. Font inventory preservation: an accepted edit never changes the set of
// PostScript names present on a page.
func TestInvariantFontInventoryPreservation(t *testing.T) {
	doc := loadResume(t)
	bulletSpan := findSpan(t, doc, "Built distributed backend systems")
	font := resolveFont(t, doc, bulletSpan)
	tgt := patch.Target{
		ID: "experience-b1", PageIndex: bulletSpan.PageIndex, Spans: []span.TextSpan{bulletSpan},
		NewText: "Shipped internal tools", Font: font, FontSize: bulletSpan.FontSize, MaxWidth: 10000,
	}
	mods, _, dropped := patch.Apply(doc, []patch.Target{tgt})
	require.Empty(t, dropped)
	out, err := doc.Core.Save(mods)
	require.NoError(t, err)
	outDoc, err := pdfmodel.Load(out)
	require.NoError(t, err)
	report := verify.Verify(doc, outDoc, nil)
	assert.True(t, report.Fonts.OK, "expected the font inventory check to pass, got %+v", report.Fonts)
}

// 6. Width containment: every accepted replacement measures no more than
// 0.5pt past the original line's width.
func TestInvariantWidthContainment(t *testing.T) {
	doc := loadResume(t)
	bulletSpan := findSpan(t, doc, "Built distributed backend systems")
	font := resolveFont(t, doc, bulletSpan)
	originalWidth, _ := font.MeasureText(bulletSpan.Text, bulletSpan.FontSize)

	tgt := patch.Target{
		ID: "experience-b1", PageIndex: bulletSpan.PageIndex, Spans: []span.TextSpan{bulletSpan},
		NewText: "Built and shipped backend services", Font: font, FontSize: bulletSpan.FontSize,
		MaxWidth: originalWidth,
	}
	mods, changes, dropped := patch.Apply(doc, []patch.Target{tgt})
	if len(dropped) != 0 {
		require.Empty(t, changes)
		require.Empty(t, mods)
		return // replacement measured over budget and was correctly refused
	}
	newWidth, _ := font.MeasureText(tgt.NewText, bulletSpan.FontSize)
	assert.LessOrEqual(t, newWidth, originalWidth+0.5)
}

// 7. Bullet-shape invariant: an accepted single-line bullet replacement
// still renders as exactly one text line (one span) in the output.
func TestInvariantBulletShapePreserved(t *testing.T) {
	doc := loadResume(t)
	bulletSpan := findSpan(t, doc, "Built distributed backend systems")
	font := resolveFont(t, doc, bulletSpan)
	tgt := patch.Target{
		ID: "experience-b1", PageIndex: bulletSpan.PageIndex, Spans: []span.TextSpan{bulletSpan},
		NewText: "Shipped internal tools company-wide", Font: font, FontSize: bulletSpan.FontSize, MaxWidth: 10000,
	}
	mods, _, dropped := patch.Apply(doc, []patch.Target{tgt})
	require.Empty(t, dropped)
	out, err := doc.Core.Save(mods)
	require.NoError(t, err)
	outDoc, err := pdfmodel.Load(out)
	require.NoError(t, err)

	lines := span.GroupVisualLines(outDoc.AllSpans())
	count := 0
	for _, l := range lines {
		for _, s := range l {
			if s.Text == tgt.NewText {
				count++
			}
		}
	}
	assert.Equal(t, 1, count, "expected the rewritten bullet on exactly one visual line")
}

// 8. Non-interference: two replacements targeting disjoint elements produce
// the same content-stream splices regardless of the order they're given in.
func TestInvariantNonInterferenceOnDisjointTargets(t *testing.T) {
	doc := loadResume(t)
	bulletSpan := findSpan(t, doc, "Built distributed backend systems")
	techSpan := findSpan(t, doc, "Backend Engineer (Python, Django, Redis)")
	bulletFont := resolveFont(t, doc, bulletSpan)
	techFont := resolveFont(t, doc, techSpan)

	bulletTgt := patch.Target{
		ID: "experience-b1", PageIndex: bulletSpan.PageIndex, Spans: []span.TextSpan{bulletSpan},
		NewText: "Shipped internal tools", Font: bulletFont, FontSize: bulletSpan.FontSize, MaxWidth: 10000,
	}
	techTgt := patch.Target{
		ID: "title-2", PageIndex: techSpan.PageIndex, Spans: []span.TextSpan{techSpan},
		NewText: "Backend Engineer (Go, gRPC, Postgres)", Font: techFont, FontSize: techSpan.FontSize, MaxWidth: 10000,
	}

	modsForward, _, droppedForward := patch.Apply(doc, []patch.Target{bulletTgt, techTgt})
	modsReverse, _, droppedReverse := patch.Apply(doc, []patch.Target{techTgt, bulletTgt})
	require.Empty(t, droppedForward)
	require.Empty(t, droppedReverse)
	require.Len(t, modsReverse, len(modsForward))

	type splice struct {
		ObjectNumber int64
		NewContent   string
	}
	toSplices := func(mods []pdfcore.Modification) []splice {
		out := make([]splice, len(mods))
		for i, m := range mods {
			out[i] = splice{ObjectNumber: m.ObjectNumber, NewContent: string(m.NewContent)}
		}
		return out
	}
	if diff := cmp.Diff(toSplices(modsForward), toSplices(modsReverse)); diff != "" {
		t.Errorf("modifications differ by target order (-forward +reverse):\n%s", diff)
	}
}

// 5. Protected-content preservation: a date present in the input is still
// extractable from the output after an unrelated edit elsewhere on the page.
func TestInvariantProtectedContentPreservation(t *testing.T) {
	doc := loadResume(t)
	bulletSpan := findSpan(t, doc, "Built distributed backend systems")
	font := resolveFont(t, doc, bulletSpan)
	tgt := patch.Target{
		ID: "experience-b1", PageIndex: bulletSpan.PageIndex, Spans: []span.TextSpan{bulletSpan},
		NewText: "Shipped internal tools", Font: font, FontSize: bulletSpan.FontSize, MaxWidth: 10000,
	}
	mods, _, dropped := patch.Apply(doc, []patch.Target{tgt})
	require.Empty(t, dropped)
	out, err := doc.Core.Save(mods)
	require.NoError(t, err)
	outDoc, err := pdfmodel.Load(out)
	require.NoError(t, err)
	report := verify.Verify(doc, outDoc, nil)
	assert.True(t, report.Protected.OK, "expected protected_content check to pass, got %+v", report.Protected)
}
