/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

// Package budget computes how much replacement text can fit in the space an
// original line occupied, and — when a proposed replacement overflows —
// deterministically shortens it without fabricating content: phrase and
// word substitutions first, then filler-word removal, then clause
// trimming as a last resort, always preserving at least 70% of the
// original character count.
package budget

import (
	"regexp"
	"strings"

	"github.com/resumeforge/pdfedit/fontmetrics"
)

// SlackFactor returns the width-tolerance multiplier applied to a line's
// original bounding-box width before comparing it against a replacement's
// measured width. Narrower fonts (Courier-class monospace) get none;
// proportional text faces get a small allowance because the bounding box
// measured from content-stream spans is itself an approximation.
func SlackFactor(postscriptName string) float64 {
	lower := strings.ToLower(postscriptName)
	switch {
	case strings.Contains(lower, "courier") || strings.Contains(lower, "mono"):
		return 1.00
	case strings.Contains(lower, "times") || strings.Contains(lower, "georgia") || strings.Contains(lower, "garamond"):
		return 1.08
	default:
		return 1.15
	}
}

// Budget is the width allowance for one line being rewritten.
type Budget struct {
	Font     *fontmetrics.Font
	FontSize float64
	MaxWidth float64 // original bbox width * SlackFactor
}

// New builds a Budget from a line's original font, size, and measured
// bounding-box width.
func New(font *fontmetrics.Font, fontSize, originalWidth float64) Budget {
	return Budget{Font: font, FontSize: fontSize, MaxWidth: originalWidth * SlackFactor(font.PostScript)}
}

// Fits reports whether text, measured at the budget's font and size, stays
// within MaxWidth and contains no character outside the font's coverage.
func (b Budget) Fits(text string) bool {
	width, missing := b.Font.MeasureText(text, b.FontSize)
	return len(missing) == 0 && width <= b.MaxWidth
}

// Width returns the measured width of text at the budget's font and size.
func (b Budget) Width(text string) float64 {
	w, _ := b.Font.MeasureText(text, b.FontSize)
	return w
}

// DistributeLines greedily packs text's words across budgets, one visual
// line per budget, in order, never splitting a word across two lines. It
// reports false if the words can't be packed into exactly len(budgets)
// lines: a single word too wide for the budget of the line it would start,
// or words left over once every line is full. Callers that get false back
// should try Compact(text, a wider aggregate budget) and redistribute the
// result before giving up.
func DistributeLines(text string, budgets []Budget) ([]string, bool) {
	words := strings.Fields(text)
	if len(words) == 0 || len(budgets) == 0 {
		return nil, false
	}

	lines := make([]string, len(budgets))
	wi := 0
	for li, b := range budgets {
		var cur string
		for wi < len(words) {
			candidate := words[wi]
			if cur != "" {
				candidate = cur + " " + words[wi]
			}
			if !b.Fits(candidate) {
				if cur == "" {
					return nil, false
				}
				break
			}
			cur = candidate
			wi++
		}
		lines[li] = cur
	}
	if wi < len(words) {
		return nil, false
	}
	return lines, true
}

var wsRun = regexp.MustCompile(`\s+`)

var phraseReplacements = []struct{ from, to string }{
	{"application programming interfaces", "APIs"},
	{"application programming interface", "API"},
	{"machine learning", "ML"},
	{"artificial intelligence", "AI"},
	{"with respect to", "for"},
	{"in order to", "to"},
	{"as well as", "and"},
	{"real-time", "realtime"},
	{"real time", "realtime"},
	{"approximately", "~"},
	{"percent", "%"},
	{"through", "via"},
}

var wordReplacements = []struct{ from, to string }{
	{"implemented", "built"},
	{"implementation", "build"},
	{"developed", "built"},
	{"utilized", "used"},
	{"leveraged", "used"},
	{"optimized", "improved"},
	{"facilitated", "enabled"},
}

var fillerWords = []string{"the", "a", "an", "that", "which", "very", "really", "successfully"}

func wordBoundaryReplace(s, from, to string) string {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(from) + `\b`)
	return re.ReplaceAllString(s, to)
}

func applyReplacements(s string, table []struct{ from, to string }) string {
	out := s
	for _, r := range table {
		out = wordBoundaryReplace(out, r.from, r.to)
	}
	return strings.TrimSpace(wsRun.ReplaceAllString(out, " "))
}

// Compact tries, in order, phrase substitution, word substitution, filler
// removal, and clause trimming, returning the first candidate that fits
// within maxChars of the original length (at least 70%, floor 8) and whose
// measured width is within the budget. Reports false if nothing safe fits.
func Compact(text string, b Budget) (string, bool) {
	original := strings.TrimSpace(text)
	if original == "" {
		return "", false
	}
	if b.Fits(original) {
		return original, true
	}

	minChars := len(original) * 7 / 10
	if minChars < 8 {
		minChars = 8
	}

	c1 := applyReplacements(original, phraseReplacements)
	c2 := applyReplacements(c1, wordReplacements)

	c3 := c2
	for _, fw := range fillerWords {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(fw) + `\b\s*`)
		c3 = re.ReplaceAllString(c3, "")
	}
	c3 = strings.Trim(strings.TrimSpace(wsRun.ReplaceAllString(c3, " ")), " ,;")

	candidates := []string{c1, c2, c3}

	c4 := c3
	for _, sep := range []string{"; ", ", ", " - "} {
		if b.Fits(c4) {
			break
		}
		parts := strings.Split(c4, sep)
		for len(parts) > 1 && len(strings.Join(parts[:len(parts)-1], sep)) >= minChars {
			trial := strings.Trim(strings.Join(parts[:len(parts)-1], sep), " ,;")
			if trial != "" && b.Fits(trial) {
				return trial, true
			}
			parts = parts[:len(parts)-1]
		}
		c4 = strings.Join(parts, sep)
	}
	candidates = append(candidates, c4)

	for _, cand := range candidates {
		cand = strings.TrimSpace(cand)
		if cand != "" && len(cand) >= minChars && b.Fits(cand) {
			return cand, true
		}
	}
	return "", false
}
