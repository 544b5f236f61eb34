/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

package formmap

import (
	"regexp"
	"strings"
)

// FieldType names the kind of editable unit a Field represents.
type FieldType string

const (
	FieldHeader FieldType = "header"
	FieldBullet FieldType = "bullet"
	FieldSkill  FieldType = "skill"
	FieldTitle  FieldType = "title"
)

// Field is one editable element exposed to a caller building a replacement
// set: a stable id, its type and section, its current text, and the
// constraints a replacement must respect.
type Field struct {
	ID          string    `json:"id"`
	Type        FieldType `json:"type"`
	Section     string    `json:"section"`
	Text        string    `json:"text"`
	MaxChars    int       `json:"max_chars"`
	LineCount   int       `json:"line_count,omitempty"`
	CharPerLine int       `json:"char_per_line,omitempty"`
	Label       string    `json:"label,omitempty"`
	Protected   bool      `json:"protected"`
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns a section name into the lowercase, hyphenated form used in
// bullet field ids ("Work Experience" -> "work-experience").
func slugify(s string) string {
	s = slugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "section"
	}
	return s
}
