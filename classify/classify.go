/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

// Package classify labels each visual line produced by span.GroupVisualLines
// with a role — section header, bullet marker, bullet text, skill content,
// or zero-width padding — by walking the lines in document order and
// tracking which resume section each line falls under. The rules run in a
// fixed priority order; once a line matches one it is never reconsidered
// against a later rule.
package classify

import (
	"strings"

	"github.com/resumeforge/pdfedit/span"
)

// LineType is the role assigned to one visual line.
type LineType int

const (
	// Structure is a line left untouched: section headers, company names,
	// dates, locations, job titles.
	Structure LineType = iota
	// BulletMarker is a line consisting solely of a bullet glyph, with its
	// text following on a separate visual line.
	BulletMarker
	// BulletText is modifiable bullet-point body text.
	BulletText
	// SkillContent is a "Label: value, value, ..." line inside a skills
	// section, split later into a bold label and its regular-weight body.
	SkillContent
	// ZWSPadding is a line with no visible content once zero-width
	// characters are stripped.
	ZWSPadding
)

func (t LineType) String() string {
	switch t {
	case Structure:
		return "STRUCTURE"
	case BulletMarker:
		return "BULLET_MARKER"
	case BulletText:
		return "BULLET_TEXT"
	case SkillContent:
		return "SKILL_CONTENT"
	case ZWSPadding:
		return "ZWS_PADDING"
	default:
		return "UNKNOWN"
	}
}

// ClassifiedLine is one visual line together with its assigned role and the
// section it was found under.
type ClassifiedLine struct {
	Spans       []span.TextSpan
	Type        LineType
	PageIndex   int
	YPos        float64
	Section     string
	CleanText   string
}

// sectionHeaders is the vocabulary of recognized section titles, matched
// case-insensitively against a line's full text or its text followed by a
// space (so "EXPERIENCE 2019-Present" still counts as the header line).
var sectionHeaders = map[string]bool{
	"SKILLS": true, "TECHNICAL SKILLS": true, "CORE COMPETENCIES": true, "TECHNOLOGIES": true,
	"EXPERIENCE": true, "WORK EXPERIENCE": true, "PROFESSIONAL EXPERIENCE": true, "EMPLOYMENT": true,
	"PROJECTS": true, "PROJECT EXPERIENCE": true, "TECHNICAL PROJECTS": true,
	"EDUCATION": true, "CERTIFICATIONS": true, "CERTIFICATES": true,
	"SUMMARY": true, "PROFESSIONAL SUMMARY": true, "OBJECTIVE": true, "ABOUT": true,
	"ACHIEVEMENTS": true, "AWARDS": true, "PUBLICATIONS": true, "VOLUNTEER": true,
	"LANGUAGES": true, "INTERESTS": true, "REFERENCES": true,
	"CONTACT": true, "CONTACT INFORMATION": true,
	"AWARDS & ACHIEVEMENTS": true,
}

var skillSections = map[string]bool{
	"SKILLS": true, "TECHNICAL SKILLS": true, "CORE COMPETENCIES": true, "TECHNOLOGIES": true,
}

var bulletSections = map[string]bool{
	"WORK EXPERIENCE": true, "EXPERIENCE": true, "PROFESSIONAL EXPERIENCE": true,
	"PROJECTS": true, "PROJECT EXPERIENCE": true, "TECHNICAL PROJECTS": true,
	"AWARDS": true, "ACHIEVEMENTS": true, "AWARDS & ACHIEVEMENTS": true,
	"CERTIFICATIONS": true, "PUBLICATIONS": true,
}

const (
	bulletYTolerance           = 15.0
	continuationTopBandPts     = 120.0
	skillContinuationTolerance = 15.0
)

// normalizeHeaderText strips zero-width characters and trailing punctuation
// (a colon, dash, or other separator a header line is often followed by)
// before matching against sectionHeaders, so "Skills:" and "Technical
// Skills —" are recognized the same as their bare vocabulary entry.
func normalizeHeaderText(cleanUpper string) string {
	s := strings.ReplaceAll(cleanUpper, "​", "")
	s = strings.TrimRight(strings.TrimSpace(s), ":;.,-–— ")
	return strings.TrimSpace(s)
}

func matchesHeader(cleanUpper string) bool {
	norm := normalizeHeaderText(cleanUpper)
	if sectionHeaders[norm] {
		return true
	}
	for h := range sectionHeaders {
		if strings.HasPrefix(norm, h+" ") {
			return true
		}
	}
	return false
}

func lineText(spans []span.TextSpan) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return strings.TrimSpace(strings.ReplaceAll(b.String(), "​", ""))
}

func nonZWSP(spans []span.TextSpan) []span.TextSpan {
	var out []span.TextSpan
	for _, s := range spans {
		if !s.IsZWSOnly() {
			out = append(out, s)
		}
	}
	return out
}

// Classify assigns a LineType and section name to every visual line,
// preserving the order the lines were extracted in. pageHeights holds each
// page's MediaBox height (indexed by PageIndex), used to tell whether a
// line sits near the top of a page for the page-break continuation rule.
func Classify(lines [][]span.TextSpan, pageHeights []float64) []ClassifiedLine {
	bulletYPositions := make(map[roundedY]bool)
	var sizes []float64
	for _, line := range lines {
		for _, sp := range line {
			if sp.IsBulletChar() {
				bulletYPositions[roundY(sp.Origin[1])] = true
			}
			if !sp.IsZWSOnly() {
				sizes = append(sizes, sp.FontSize)
			}
		}
	}
	medianSize := median(sizes)

	var out []ClassifiedLine
	currentSection := "HEADER"

	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		pageIndex := line[0].PageIndex
		yPos := line[0].Origin[1]
		clean := lineText(line)
		cleanUpper := strings.ToUpper(clean)

		if clean == "" {
			out = append(out, ClassifiedLine{Spans: line, Type: ZWSPadding, PageIndex: pageIndex, YPos: yPos, Section: currentSection})
			continue
		}

		nz := nonZWSP(line)
		if matchesHeader(cleanUpper) {
			currentSection = clean
			out = append(out, ClassifiedLine{Spans: line, Type: Structure, PageIndex: pageIndex, YPos: yPos, Section: currentSection, CleanText: clean})
			continue
		}
		if len(nz) > 0 && len(clean) < 40 && nz[0].Bold && nz[0].FontSize > medianSize+0.5 {
			currentSection = clean
			out = append(out, ClassifiedLine{Spans: line, Type: Structure, PageIndex: pageIndex, YPos: yPos, Section: currentSection, CleanText: clean})
			continue
		}

		if len(nz) > 0 && allBulletChars(nz) {
			out = append(out, ClassifiedLine{Spans: line, Type: BulletMarker, PageIndex: pageIndex, YPos: yPos, Section: currentSection})
			continue
		}

		hasBulletSpan := anyBulletChar(line)
		textSpans := nonBulletText(line)

		sectionUpper := normalizeHeaderText(strings.ToUpper(currentSection))
		if skillSections[sectionUpper] && len(nz) > 0 {
			nonBullet := excludeBulletChars(nz)
			hasBold, hasRegular := false, false
			for _, s := range nonBullet {
				if s.Bold {
					hasBold = true
				} else {
					hasRegular = true
				}
			}
			if hasBold && hasRegular {
				out = append(out, ClassifiedLine{Spans: line, Type: SkillContent, PageIndex: pageIndex, YPos: yPos, Section: currentSection})
				continue
			}
			if !hasBold && hasRegular {
				if prev := lastOfType(out, SkillContent); prev != nil && absf(yPos-prev.YPos) < skillContinuationTolerance {
					out = append(out, ClassifiedLine{Spans: line, Type: SkillContent, PageIndex: pageIndex, YPos: yPos, Section: currentSection})
					continue
				}
			}
		}

		isBulletSection := bulletSections[strings.TrimSpace(sectionUpper)]

		if hasBulletSpan && len(textSpans) > 0 && isBulletSection {
			out = append(out, ClassifiedLine{Spans: line, Type: BulletText, PageIndex: pageIndex, YPos: yPos, Section: currentSection})
			continue
		}
		if bulletYPositions[roundY(yPos)] && len(textSpans) > 0 && !hasBulletSpan && isBulletSection {
			out = append(out, ClassifiedLine{Spans: line, Type: BulletText, PageIndex: pageIndex, YPos: yPos, Section: currentSection})
			continue
		}

		if len(nz) > 0 && isBulletSection {
			if prev := lastOfType(out, BulletText); prev != nil {
				sameP := pageIndex == prev.PageIndex
				yClose := sameP && absf(yPos-prev.YPos) < bulletYTolerance
				pageBreak := !sameP && pageIndex == prev.PageIndex+1 && pageIndex < len(pageHeights) &&
					yPos > pageHeights[pageIndex]-continuationTopBandPts
				if yClose || pageBreak {
					lastTextX, ok := firstTextX(prev.Spans)
					if ok && absf(nz[0].Origin[0]-lastTextX) < bulletYTolerance {
						out = append(out, ClassifiedLine{Spans: line, Type: BulletText, PageIndex: pageIndex, YPos: yPos, Section: currentSection})
						continue
					}
				}
			}
		}

		if sectionUpper == "PROJECTS" || sectionUpper == "PROJECT EXPERIENCE" || sectionUpper == "TECHNICAL PROJECTS" {
			if len(nz) > 0 && nz[0].Origin[0] < 20 {
				first := nz[0]
				if !first.Bold {
					out = append(out, ClassifiedLine{Spans: line, Type: BulletText, PageIndex: pageIndex, YPos: yPos, Section: currentSection})
					continue
				}
				firstBoldText := strings.TrimSpace(strings.ReplaceAll(first.Text, "​", ""))
				likelyTitle := strings.Contains(firstBoldText, ":") || strings.Contains(firstBoldText, "|") || strings.Contains(firstBoldText, "–")
				if !likelyTitle {
					if prev := lastOfType(out, BulletText); prev != nil && absf(yPos-prev.YPos) < bulletYTolerance {
						out = append(out, ClassifiedLine{Spans: line, Type: BulletText, PageIndex: pageIndex, YPos: yPos, Section: currentSection})
						continue
					}
				}
			}
		}

		out = append(out, ClassifiedLine{Spans: line, Type: Structure, PageIndex: pageIndex, YPos: yPos, Section: currentSection, CleanText: clean})
	}
	return out
}

type roundedY int64

func roundY(y float64) roundedY {
	return roundedY(y*10 + 0.5)
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 10
	}
	sorted := append([]float64(nil), vals...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return sorted[len(sorted)/2]
}

func allBulletChars(spans []span.TextSpan) bool {
	for _, s := range spans {
		if !s.IsBulletChar() {
			return false
		}
	}
	return true
}

func anyBulletChar(spans []span.TextSpan) bool {
	for _, s := range spans {
		if s.IsBulletChar() {
			return true
		}
	}
	return false
}

func nonBulletText(spans []span.TextSpan) []span.TextSpan {
	var out []span.TextSpan
	for _, s := range spans {
		if !s.IsBulletChar() && !s.IsZWSOnly() && strings.TrimSpace(s.Text) != "" {
			out = append(out, s)
		}
	}
	return out
}

func excludeBulletChars(spans []span.TextSpan) []span.TextSpan {
	var out []span.TextSpan
	for _, s := range spans {
		if !s.IsBulletChar() {
			out = append(out, s)
		}
	}
	return out
}

func lastOfType(lines []ClassifiedLine, t LineType) *ClassifiedLine {
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i].Type == t {
			return &lines[i]
		}
	}
	return nil
}

func firstTextX(spans []span.TextSpan) (float64, bool) {
	for _, s := range spans {
		if !s.IsBulletChar() && !s.IsZWSOnly() && strings.TrimSpace(s.Text) != "" {
			return s.Origin[0], true
		}
	}
	return 0, false
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
