/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

package semantic

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumeforge/pdfedit/classify"
	"github.com/resumeforge/pdfedit/span"
)

func mkSpan(x, y, size float64, bold bool, text string) span.TextSpan {
	return span.TextSpan{Origin: [2]float64{x, y}, FontSize: size, Bold: bold, Text: text}
}

func TestGroupBulletMarkerThenText(t *testing.T) {
	lines := []classify.ClassifiedLine{
		{Type: classify.Structure, CleanText: "EXPERIENCE", Section: "EXPERIENCE"},
		{Type: classify.BulletMarker, Spans: []span.TextSpan{mkSpan(90, 660, 10, false, "●")}, Section: "EXPERIENCE"},
		{Type: classify.BulletText, Spans: []span.TextSpan{mkSpan(105, 660, 10, false, "Led the migration")}, Section: "EXPERIENCE"},
		{Type: classify.BulletText, Spans: []span.TextSpan{mkSpan(105, 648, 10, false, "to a new platform")}, Section: "EXPERIENCE"},
	}
	bullets, _, _ := Group(lines)
	require.Len(t, bullets, 1)
	require.Len(t, bullets[0].TextLines, 2)

	want := []string{"Led the migration", "to a new platform"}
	if diff := cmp.Diff(want, bullets[0].LineTexts()); diff != "" {
		t.Errorf("bullet line texts mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupSkillLine(t *testing.T) {
	lines := []classify.ClassifiedLine{
		{Type: classify.Structure, CleanText: "SKILLS", Section: "SKILLS"},
		{
			Type: classify.SkillContent,
			Spans: []span.TextSpan{
				mkSpan(72, 680, 10, true, "Languages: "),
				mkSpan(140, 680, 10, false, "Go, Python, SQL"),
			},
			Section: "SKILLS",
		},
	}
	_, skills, _ := Group(lines)
	require.Len(t, skills, 1)
	assert.Equal(t, "Languages:", skills[0].LabelText())
	assert.Equal(t, "Go, Python, SQL", skills[0].ContentText())
}

func TestGroupTitleSkillLine(t *testing.T) {
	lines := []classify.ClassifiedLine{
		{Type: classify.Structure, CleanText: "EXPERIENCE", Section: "EXPERIENCE"},
		{
			Type:      classify.Structure,
			CleanText: "Backend Engineer (Go, Kubernetes, Postgres)",
			Section:   "EXPERIENCE",
			Spans: []span.TextSpan{
				mkSpan(72, 700, 11, true, "Backend Engineer (Go, Kubernetes, Postgres)"),
			},
		},
	}
	_, _, titleSkills := Group(lines)
	require.Len(t, titleSkills, 1)
	assert.Equal(t, "Backend Engineer", titleSkills[0].TitlePart)
	assert.Equal(t, "Go, Kubernetes, Postgres", titleSkills[0].SkillsPart)
}
