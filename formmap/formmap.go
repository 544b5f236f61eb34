/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

// Package formmap exposes a document's editable elements as a flat list of
// fields with stable ids, and drives the patch/verify pipeline to turn a
// caller-supplied set of replacements into a new PDF. It is the one layer
// above the engine an embedding application talks to: everything below
// (classify, semantic, budget, patch, verify) stays internal indices that
// never leak into the public FormMap.
package formmap

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/xerrors"

	"github.com/resumeforge/pdfedit/budget"
	"github.com/resumeforge/pdfedit/classify"
	"github.com/resumeforge/pdfedit/fontmetrics"
	"github.com/resumeforge/pdfedit/patch"
	"github.com/resumeforge/pdfedit/pdferr"
	"github.com/resumeforge/pdfedit/pdfmodel"
	"github.com/resumeforge/pdfedit/protected"
	"github.com/resumeforge/pdfedit/semantic"
	"github.com/resumeforge/pdfedit/span"
	"github.com/resumeforge/pdfedit/verify"
)

// FormMap is the public snapshot of a document's editable fields, safe to
// cache against the source PDF's content hash: it carries no pointers back
// into the document's internal structures.
type FormMap struct {
	Fields          []Field `json:"fields"`
	FontQuality     string  `json:"font_quality"` // "good" or "limited"
	FontCoveragePct float64 `json:"font_coverage_pct"`
}

// Index holds the internal spans/font/budget data BuildFormMap resolved
// for each field, kept separate from FormMap so the public snapshot stays
// serializable. ApplyEdits needs the Index that produced a FormMap (or one
// rebuilt from the same document) to apply replacements against it.
type Index struct {
	targets map[string]fieldTarget
}

type fieldTarget struct {
	pageIndex   int
	spans       []span.TextSpan
	lines       []bulletLine // bullet fields only: one entry per wrapped visual line
	font        *fontmetrics.Font
	fontSize    float64
	budget      budget.Budget
	fieldType   FieldType
	section     string
	original    string
	titlePrefix string // title fields only: text preceding the rewritten parenthetical
}

// bulletLine is one visual line of a (possibly wrapped) bullet point: the
// spans that render it and the width budget computed from that line alone,
// rather than the bullet's first line stretched across every line.
type bulletLine struct {
	spans  []span.TextSpan
	budget budget.Budget
}

// Replacement is one caller-proposed edit against a field id.
type Replacement struct {
	FieldID   string `json:"field_id"`
	NewText   string `json:"new_text"`
	Reasoning string `json:"reasoning"`
}

// Change records one replacement actually written into the output PDF.
type Change struct {
	FieldID      string    `json:"field_id"`
	FieldType    FieldType `json:"field_type"`
	Section      string    `json:"section"`
	OriginalText string    `json:"original_text"`
	NewText      string    `json:"new_text"`
	Reasoning    string    `json:"reasoning"`
}

// Dropped records a replacement that could not be applied.
type Dropped struct {
	FieldID string `json:"field_id"`
	Reason  string `json:"reason"`
}

// proseSections is the vocabulary of sections whose non-header body text is
// exposed as editable "header" fields (a resume summary/objective
// paragraph, not a section title). Section titles themselves stay
// Structure lines that never become fields.
var proseSections = map[string]bool{
	"SUMMARY": true, "PROFESSIONAL SUMMARY": true, "OBJECTIVE": true, "ABOUT": true,
}

// ContentHash derives the cache key a caller uses to store/retrieve a
// FormMap against its source PDF: a FormMap built from pdfBytes stays valid
// only as long as ContentHash(pdfBytes) matches the key it was cached under
// (§3's "once the source changes, the cache is invalid"). blake2b-256 is
// used rather than the stdlib's sha256 because the cache key never leaves
// this process or needs interoperability with another hash scheme, and
// blake2b is faster on the multi-megabyte PDFs this hashes whole.
func ContentHash(pdfBytes []byte) string {
	sum := blake2b.Sum256(pdfBytes)
	return hex.EncodeToString(sum[:])
}

// BuildFormMap classifies and groups a loaded document's spans, producing
// the public field list plus the internal Index ApplyEdits needs.
func BuildFormMap(doc *pdfmodel.Document) (*FormMap, *Index) {
	idx := &Index{targets: map[string]fieldTarget{}}

	lines := span.GroupVisualLines(doc.AllSpans())
	classified := classify.Classify(lines, doc.PageHeights)
	bullets, skills, titleSkills := semantic.Group(classified)

	var fields []Field
	bulletSeq := map[string]int{}

	for _, bp := range bullets {
		if len(bp.TextLines) == 0 {
			continue
		}
		font, fontSize, ok := resolveFont(doc, bp.TextLines[0].Spans)
		if !ok {
			continue
		}
		section := bp.SectionName
		n := bulletSeq[section] + 1
		bulletSeq[section] = n
		id := fmt.Sprintf("%s-b%d", slugify(section), n)

		var spans []span.TextSpan
		bulletLines := make([]bulletLine, len(bp.TextLines))
		for i, l := range bp.TextLines {
			spans = append(spans, l.Spans...)
			bulletLines[i] = bulletLine{spans: l.Spans, budget: budget.New(font, fontSize, spanWidth(l.Spans))}
		}
		lineTexts := bp.LineTexts()
		text := strings.Join(lineTexts, " ")
		// The aggregate budget (used to decide whether a replacement needs
		// compacting at all, and as Compact's fit target) is the sum of
		// every visual line's own budget: each line's MaxWidth already
		// carries the font's slack factor, so the lines are summed as-is
		// rather than re-deriving slack from a combined width.
		bgt := budget.Budget{Font: font, FontSize: fontSize, MaxWidth: sumBudgetWidth(bulletLines)}

		idx.targets[id] = fieldTarget{
			pageIndex: bp.TextLines[0].PageIndex, spans: spans, lines: bulletLines,
			font: font, fontSize: fontSize, budget: bgt,
			fieldType: FieldBullet, section: section, original: text,
		}
		fields = append(fields, Field{
			ID: id, Type: FieldBullet, Section: section, Text: text,
			MaxChars: maxChars(text), LineCount: len(bp.TextLines), CharPerLine: charPerLine(lineTexts),
		})
	}

	for i, sk := range skills {
		if len(sk.ContentSpans) == 0 {
			continue
		}
		font, fontSize, ok := resolveFont(doc, sk.ContentSpans)
		if !ok {
			continue
		}
		id := fmt.Sprintf("skill-%d", i+1)
		text := sk.ContentText()
		bgt := budget.New(font, fontSize, spanWidth(sk.ContentSpans))

		idx.targets[id] = fieldTarget{
			pageIndex: sk.ContentSpans[0].PageIndex, spans: sk.ContentSpans,
			font: font, fontSize: fontSize, budget: bgt,
			fieldType: FieldSkill, section: sk.SectionName, original: text,
		}
		fields = append(fields, Field{
			ID: id, Type: FieldSkill, Section: sk.SectionName, Text: text,
			MaxChars: maxChars(text), Label: sk.LabelText(),
		})
	}

	for i, ts := range titleSkills {
		if len(ts.FullSpans) == 0 {
			continue
		}
		font, fontSize, ok := resolveFont(doc, ts.FullSpans)
		if !ok {
			continue
		}
		id := fmt.Sprintf("title-%d", i+1)
		bgt := budget.New(font, fontSize, spanWidth(ts.FullSpans))

		idx.targets[id] = fieldTarget{
			pageIndex: ts.FullSpans[0].PageIndex, spans: ts.FullSpans,
			font: font, fontSize: fontSize, budget: bgt,
			fieldType: FieldTitle, section: "Title", original: ts.SkillsPart,
			titlePrefix: ts.TitlePart,
		}
		fields = append(fields, Field{
			ID: id, Type: FieldTitle, Section: "Title", Text: ts.SkillsPart,
			MaxChars: maxChars(ts.SkillsPart), Label: ts.TitlePart,
		})
	}

	headerSeq := 0
	for _, cl := range classified {
		if cl.Type != classify.Structure || cl.CleanText == "" {
			continue
		}
		if !proseSections[strings.ToUpper(strings.TrimSpace(cl.Section))] {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(cl.CleanText), strings.TrimSpace(cl.Section)) {
			continue // the section's own header line, not its body
		}
		font, fontSize, ok := resolveFont(doc, cl.Spans)
		if !ok {
			continue
		}
		headerSeq++
		id := fmt.Sprintf("header-%d", headerSeq)
		bgt := budget.New(font, fontSize, spanWidth(cl.Spans))

		idx.targets[id] = fieldTarget{
			pageIndex: cl.PageIndex, spans: cl.Spans, font: font, fontSize: fontSize,
			budget: bgt, fieldType: FieldHeader, section: cl.Section, original: cl.CleanText,
		}
		fields = append(fields, Field{
			ID: id, Type: FieldHeader, Section: cl.Section, Text: cl.CleanText,
			MaxChars: maxChars(cl.CleanText),
		})
	}

	for i := range fields {
		fields[i].Protected = protected.ContainsAny(fields[i].Text)
	}

	quality, pct := fontQuality(fields, idx)
	return &FormMap{Fields: fields, FontQuality: quality, FontCoveragePct: pct}, idx
}

// ApplyEdits turns a set of field replacements into a new PDF: each
// replacement is compacted to its field's width budget if it doesn't fit
// as given, handed to patch.Apply as a Target, and the resulting bytes are
// re-loaded and run back through verify so the caller gets a report
// alongside the new document.
func ApplyEdits(doc *pdfmodel.Document, idx *Index, replacements []Replacement) ([]byte, []Change, []Dropped, verify.Report, error) {
	var targets []patch.Target
	var preDropped []Dropped
	meta := map[string]fieldTarget{}
	reasoning := map[string]string{}

	for _, r := range replacements {
		tgt, ok := idx.targets[r.FieldID]
		if !ok {
			continue
		}
		meta[r.FieldID] = tgt
		reasoning[r.FieldID] = r.Reasoning

		if tgt.fieldType == FieldBullet {
			pt, ok := bulletTarget(r, tgt)
			if !ok {
				preDropped = append(preDropped, Dropped{FieldID: r.FieldID, Reason: pdferr.DropReason(pdferr.ErrBudgetExceeded)})
				continue
			}
			targets = append(targets, pt)
			continue
		}

		newText := r.NewText
		if tgt.fieldType == FieldTitle {
			newText = tgt.titlePrefix + " (" + r.NewText + ")"
		}
		if !tgt.budget.Fits(newText) {
			if compacted, ok := budget.Compact(newText, tgt.budget); ok {
				newText = compacted
			}
		}
		targets = append(targets, patch.Target{
			ID: r.FieldID, PageIndex: tgt.pageIndex, Spans: tgt.spans,
			NewText: newText, Font: tgt.font, FontSize: tgt.fontSize, MaxWidth: tgt.budget.MaxWidth,
		})
	}

	mods, patchChanges, patchDropped := patch.Apply(doc, targets)

	newBytes, err := doc.Core.Save(mods)
	if err != nil {
		return nil, nil, nil, verify.Report{}, xerrors.Errorf("formmap: save: %w", err)
	}

	var changes []Change
	for _, c := range patchChanges {
		tgt := meta[c.ID]
		changes = append(changes, Change{
			FieldID: c.ID, FieldType: tgt.fieldType, Section: tgt.section,
			OriginalText: c.OriginalText, NewText: c.NewText, Reasoning: reasoning[c.ID],
		})
	}
	dropped := append([]Dropped(nil), preDropped...)
	for _, d := range patchDropped {
		dropped = append(dropped, Dropped{FieldID: d.ID, Reason: d.Reason})
	}

	outputDoc, err := pdfmodel.Load(newBytes)
	if err != nil {
		return newBytes, changes, dropped, verify.Report{}, xerrors.Errorf("formmap: reload output: %w", err)
	}
	report := verify.Verify(doc, outputDoc, nil)
	return newBytes, changes, dropped, report, nil
}

func resolveFont(doc *pdfmodel.Document, spans []span.TextSpan) (*fontmetrics.Font, float64, bool) {
	if len(spans) == 0 {
		return nil, 0, false
	}
	s := spans[0]
	if s.PageIndex < 0 || s.PageIndex >= len(doc.Pages) {
		return nil, 0, false
	}
	for _, f := range doc.Pages[s.PageIndex].Fonts {
		if f.ID == s.FontID {
			return f, s.FontSize, true
		}
	}
	return nil, 0, false
}

// bulletTarget distributes a bullet replacement's text across its original
// visual lines, budgeting and rewriting each one independently instead of
// concentrating the whole replacement into the first line and collapsing
// the rest. If the text as given doesn't pack into tgt's line count, it is
// compacted once against the aggregate budget and redistribution is
// retried; reports false if no wrapping fits within that many lines.
func bulletTarget(r Replacement, tgt fieldTarget) (patch.Target, bool) {
	if len(tgt.lines) == 0 {
		return patch.Target{}, false
	}
	lineBudgets := make([]budget.Budget, len(tgt.lines))
	for i, l := range tgt.lines {
		lineBudgets[i] = l.budget
	}

	candidate := r.NewText
	lineTexts, ok := budget.DistributeLines(candidate, lineBudgets)
	if !ok {
		compacted, cok := budget.Compact(candidate, tgt.budget)
		if !cok {
			return patch.Target{}, false
		}
		candidate = compacted
		lineTexts, ok = budget.DistributeLines(candidate, lineBudgets)
		if !ok {
			return patch.Target{}, false
		}
	}

	lines := make([]patch.LineTarget, len(tgt.lines))
	for i, l := range tgt.lines {
		lines[i] = patch.LineTarget{Spans: l.spans, NewText: lineTexts[i], MaxWidth: l.budget.MaxWidth}
	}
	return patch.Target{
		ID: r.FieldID, PageIndex: tgt.pageIndex, Font: tgt.font, FontSize: tgt.fontSize, Lines: lines,
	}, true
}

func sumBudgetWidth(lines []bulletLine) float64 {
	var sum float64
	for _, l := range lines {
		sum += l.budget.MaxWidth
	}
	return sum
}

// spanWidth returns the bounding-box width spanned by the non-padding spans
// in the slice, the measurement budget.New scales by SlackFactor.
func spanWidth(spans []span.TextSpan) float64 {
	var minX, maxX float64
	first := true
	for _, s := range spans {
		if s.IsZWSOnly() {
			continue
		}
		if first {
			minX, maxX = s.BBox[0], s.BBox[2]
			first = false
			continue
		}
		if s.BBox[0] < minX {
			minX = s.BBox[0]
		}
		if s.BBox[2] > maxX {
			maxX = s.BBox[2]
		}
	}
	return maxX - minX
}

func charPerLine(lines []string) int {
	if len(lines) == 0 {
		return 0
	}
	total := 0
	for _, l := range lines {
		total += len(l)
	}
	return total / len(lines)
}

// maxChars allows a replacement up to 30% longer than the original, the
// same slack sanitize_bullet_replacements gave the source's own length
// check before the width budget gets the final say.
func maxChars(text string) int {
	n := int(float64(len(text)) * 1.3)
	if n < 8 {
		n = 8
	}
	return n
}

func fontQuality(fields []Field, idx *Index) (string, float64) {
	var total, covered int
	good := true
	for _, f := range fields {
		tgt, ok := idx.targets[f.ID]
		if !ok || tgt.font == nil {
			good = false
			continue
		}
		coverage := tgt.font.Coverage()
		for _, r := range f.Text {
			total++
			if coverage[r] {
				covered++
			} else {
				good = false
			}
		}
	}
	pct := 100.0
	if total > 0 {
		pct = 100 * float64(covered) / float64(total)
	}
	if good {
		return "good", pct
	}
	return "limited", pct
}
