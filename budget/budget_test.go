/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumeforge/pdfedit/cmap"
	"github.com/resumeforge/pdfedit/fontmetrics"
)

func TestSlackFactor(t *testing.T) {
	assert.Equal(t, 1.00, SlackFactor("ABCDEF+Courier"), "courier should have no slack")
	assert.Equal(t, 1.08, SlackFactor("Times-Roman"), "times should have 1.08 slack")
	assert.Equal(t, 1.15, SlackFactor("Calibri"), "proportional sans should have 1.15 slack")
}

func TestCompactPhraseAndWordSubstitution(t *testing.T) {
	// 6 units per char at size 10: the original (83 chars) measures 498 and
	// the phrase-only candidate (69 chars) 414, so only the candidate that
	// also applies the word substitution (65 chars, 390) fits in 400.
	b := Budget{Font: identityFont(), FontSize: 10, MaxWidth: 400}
	got, ok := Compact("Utilized machine learning to rank search results for millions of daily active users", b)
	require.True(t, ok, "expected a fit")
	assert.Equal(t, "used ML to rank search results for millions of daily active users", got)
}

func TestCompactReturnsOriginalWhenItFits(t *testing.T) {
	b := Budget{Font: identityFont(), FontSize: 10, MaxWidth: 10000}
	got, ok := Compact("Short line", b)
	require.True(t, ok)
	assert.Equal(t, "Short line", got)
}

// identityFont returns a Font whose coverage includes all ASCII letters and
// whose glyph width is uniform, enough to exercise Compact's control flow
// without needing a real PDF font dictionary.
func identityFont() *fontmetrics.Font {
	codeToRune := make(map[cmap.CharCode]rune, 95)
	for c := cmap.CharCode(0x20); c <= 0x7e; c++ {
		codeToRune[c] = rune(c)
	}
	return fontmetrics.NewForTest(cmap.NewIdentity(codeToRune, 8), 600)
}
