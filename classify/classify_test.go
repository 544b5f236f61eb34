/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

package classify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/resumeforge/pdfedit/span"
)

func mkSpan(page int, x, y, size float64, bold bool, text string) span.TextSpan {
	return span.TextSpan{PageIndex: page, Origin: [2]float64{x, y}, FontSize: size, Bold: bold, Text: text}
}

func TestClassifySectionHeader(t *testing.T) {
	lines := [][]span.TextSpan{
		{mkSpan(0, 72, 700, 14, true, "EXPERIENCE")},
		{mkSpan(0, 72, 680, 10, true, "Acme Corp"), mkSpan(0, 200, 680, 10, false, "2020-Present")},
		{mkSpan(0, 90, 660, 10, false, "●"), mkSpan(0, 105, 660, 10, false, "Built the thing")},
	}
	got := Classify(lines, []float64{792})
	require.Equal(t, Structure, got[0].Type)
	require.Equal(t, "EXPERIENCE", got[0].Section)
	require.Equal(t, BulletText, got[2].Type)
}

func TestClassifySkillContent(t *testing.T) {
	lines := [][]span.TextSpan{
		{mkSpan(0, 72, 700, 12, true, "SKILLS")},
		{mkSpan(0, 72, 680, 10, true, "Languages: "), mkSpan(0, 130, 680, 10, false, "Go, Python, SQL")},
	}
	got := Classify(lines, []float64{792})
	require.Equal(t, SkillContent, got[1].Type)
}

func TestClassifyZWSPadding(t *testing.T) {
	lines := [][]span.TextSpan{
		{mkSpan(0, 72, 700, 10, false, "​")},
	}
	got := Classify(lines, []float64{792})
	require.Equal(t, ZWSPadding, got[0].Type)
}

func TestClassifyBulletMarkerAlone(t *testing.T) {
	lines := [][]span.TextSpan{
		{mkSpan(0, 72, 700, 12, true, "WORK EXPERIENCE")},
		{mkSpan(0, 90, 680, 10, false, "●")},
		{mkSpan(0, 105, 680, 10, false, "Shipped a service used by millions")},
	}
	got := Classify(lines, []float64{792})
	require.Equal(t, BulletMarker, got[1].Type, "marker-only line")
}
