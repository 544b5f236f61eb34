/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

// Package semantic groups classify.ClassifiedLine records into the editable
// units a downstream rewriter acts on: multi-line bullet points, skill
// lines split into a bold label and its regular-weight body, and title
// lines that carry an inline parenthetical tech-stack list.
package semantic

import (
	"regexp"
	"strings"

	"github.com/resumeforge/pdfedit/classify"
	"github.com/resumeforge/pdfedit/span"
)

// BulletPoint is one logical bullet: an optional standalone marker line
// plus the ordered visual lines that make up its wrapped text.
type BulletPoint struct {
	MarkerLine  *classify.ClassifiedLine
	TextLines   []classify.ClassifiedLine
	SectionName string
}

// LineTexts returns the clean text of each wrapped line, in order.
func (b BulletPoint) LineTexts() []string {
	out := make([]string, len(b.TextLines))
	for i, l := range b.TextLines {
		out[i] = lineText(l.Spans)
	}
	return out
}

// SkillLine is a "Label: value, value, ..." line split into its bold label
// spans and its regular-weight content spans.
type SkillLine struct {
	LabelSpans   []span.TextSpan
	ContentSpans []span.TextSpan
	SectionName  string
}

// LabelText and ContentText return the concatenated text of each span set.
func (s SkillLine) LabelText() string   { return spansText(s.LabelSpans) }
func (s SkillLine) ContentText() string { return spansText(s.ContentSpans) }

// TitleSkillLine is an experience-section STRUCTURE line carrying an inline
// "(Tech1, Tech2, ...)" tech-stack list alongside a job title.
type TitleSkillLine struct {
	FullSpans  []span.TextSpan
	TitlePart  string
	SkillsPart string
	FullText   string
}

var techStackParen = regexp.MustCompile(`\(([^)]*,\s*[^)]+)\)`)

var titleSkillSections = map[string]bool{
	"WORK EXPERIENCE": true, "EXPERIENCE": true, "PROFESSIONAL EXPERIENCE": true,
}

// Group walks classified lines in order and produces the three grouped
// collections. A STRUCTURE line under a section header updates the current
// section and, when it carries a tech-stack parenthetical in an experience
// section, contributes a TitleSkillLine.
func Group(lines []classify.ClassifiedLine) ([]BulletPoint, []SkillLine, []TitleSkillLine) {
	var bullets []BulletPoint
	var skills []SkillLine
	var titleSkills []TitleSkillLine
	currentSection := "HEADER"
	var current *BulletPoint

	flush := func() {
		if current != nil && len(current.TextLines) > 0 {
			bullets = append(bullets, *current)
		}
		current = nil
	}

	for i := range lines {
		cl := lines[i]
		if cl.Type == classify.Structure {
			clean := cl.CleanText
			cleanUpper := strings.ToUpper(clean)
			if matchesHeaderVocab(cleanUpper) {
				currentSection = clean
			}
			if m := techStackParen.FindStringSubmatchIndex(clean); m != nil && titleSkillSections[strings.TrimSpace(strings.ToUpper(currentSection))] {
				titlePart := strings.TrimSpace(clean[:m[0]])
				skillsPart := strings.TrimSpace(clean[m[2]:m[3]])
				if len(strings.Split(skillsPart, ",")) >= 2 {
					var full []span.TextSpan
					for _, s := range cl.Spans {
						if !s.IsZWSOnly() && strings.TrimSpace(s.Text) != "" {
							full = append(full, s)
						}
					}
					if len(full) > 0 {
						titleSkills = append(titleSkills, TitleSkillLine{
							FullSpans:  full,
							TitlePart:  titlePart,
							SkillsPart: skillsPart,
							FullText:   strings.TrimSpace(clean),
						})
					}
				}
			}
		}

		switch cl.Type {
		case classify.BulletMarker:
			flush()
			marker := cl
			current = &BulletPoint{MarkerLine: &marker, SectionName: currentSection}

		case classify.BulletText:
			if anyBulletChar(cl.Spans) {
				flush()
				current = &BulletPoint{SectionName: currentSection}
			} else if current == nil {
				current = &BulletPoint{SectionName: currentSection}
			}
			current.TextLines = append(current.TextLines, cl)

		case classify.SkillContent:
			var labelSpans, contentSpans []span.TextSpan
			for _, s := range cl.Spans {
				if s.IsZWSOnly() || s.IsBulletChar() {
					continue
				}
				if s.Bold {
					labelSpans = append(labelSpans, s)
				} else {
					contentSpans = append(contentSpans, s)
				}
			}
			if len(contentSpans) > 0 {
				skills = append(skills, SkillLine{LabelSpans: labelSpans, ContentSpans: contentSpans, SectionName: currentSection})
			}

		default:
			flush()
		}
	}
	flush()
	return bullets, skills, titleSkills
}

func anyBulletChar(spans []span.TextSpan) bool {
	for _, s := range spans {
		if s.IsBulletChar() {
			return true
		}
	}
	return false
}

func lineText(spans []span.TextSpan) string {
	return spansText(spans)
}

func spansText(spans []span.TextSpan) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return strings.TrimSpace(b.String())
}

var sectionHeaderVocab = map[string]bool{
	"SKILLS": true, "TECHNICAL SKILLS": true, "CORE COMPETENCIES": true, "TECHNOLOGIES": true,
	"EXPERIENCE": true, "WORK EXPERIENCE": true, "PROFESSIONAL EXPERIENCE": true, "EMPLOYMENT": true,
	"PROJECTS": true, "PROJECT EXPERIENCE": true, "TECHNICAL PROJECTS": true,
	"EDUCATION": true, "CERTIFICATIONS": true, "CERTIFICATES": true,
	"SUMMARY": true, "PROFESSIONAL SUMMARY": true, "OBJECTIVE": true, "ABOUT": true,
	"ACHIEVEMENTS": true, "AWARDS": true, "PUBLICATIONS": true, "VOLUNTEER": true,
	"LANGUAGES": true, "INTERESTS": true, "REFERENCES": true,
	"CONTACT": true, "CONTACT INFORMATION": true,
	"AWARDS & ACHIEVEMENTS": true, "AWARDS & ACHIEVEMENTS:": true,
}

func matchesHeaderVocab(cleanUpper string) bool {
	if sectionHeaderVocab[cleanUpper] {
		return true
	}
	for h := range sectionHeaderVocab {
		if strings.HasPrefix(cleanUpper, h+" ") {
			return true
		}
	}
	return false
}
