/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

package fontmetrics

import (
	"strings"

	"github.com/resumeforge/pdfedit/cmap"
)

// standard14Widths returns the built-in AFM-derived width table (in
// 1000-unit glyph space) for one of the 14 standard PDF fonts, keyed by
// the font's BaseFont name, for use when a simple font has no /Widths
// entries or no ToUnicode (or embedded-program) mapping. Courier is a fixed-pitch
// family so every glyph shares one width; Helvetica and Times reuse the
// upright family's metrics for their bold/italic/bold-italic variants,
// which is accurate within a point or two for the ASCII range resumes
// actually use and keeps this fallback a last resort rather than the
// common path (real documents almost always carry /Widths).
func standard14Widths(baseFont string) (map[rune]float64, bool) {
	name := stripSubsetTag(baseFont)
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "courier"):
		return courierWidths(), true
	case strings.Contains(lower, "times"):
		return timesWidths(), true
	case strings.Contains(lower, "helvetica"), strings.Contains(lower, "arial"):
		return helveticaWidths(), true
	}
	return nil, false
}

// stripSubsetTag removes a subset prefix like "ABCDEF+" some embedders add
// to BaseFont even when the program itself isn't actually subsetted.
func stripSubsetTag(name string) string {
	if len(name) > 7 && name[6] == '+' {
		allUpper := true
		for i := 0; i < 6; i++ {
			if name[i] < 'A' || name[i] > 'Z' {
				allUpper = false
				break
			}
		}
		if allUpper {
			return name[7:]
		}
	}
	return name
}

func courierWidths() map[rune]float64 {
	w := make(map[rune]float64, 95)
	for r := rune(0x20); r <= 0x7e; r++ {
		w[r] = 600
	}
	return w
}

// helveticaWidths holds Adobe's public AFM widths for Helvetica over the
// printable ASCII range.
func helveticaWidths() map[rune]float64 {
	return map[rune]float64{
		' ': 278, '!': 278, '"': 355, '#': 556, '$': 556, '%': 889, '&': 667, '\'': 191,
		'(': 333, ')': 333, '*': 389, '+': 584, ',': 278, '-': 333, '.': 278, '/': 278,
		'0': 556, '1': 556, '2': 556, '3': 556, '4': 556, '5': 556, '6': 556, '7': 556,
		'8': 556, '9': 556, ':': 278, ';': 278, '<': 584, '=': 584, '>': 584, '?': 556,
		'@': 1015, 'A': 667, 'B': 667, 'C': 722, 'D': 722, 'E': 667, 'F': 611, 'G': 778,
		'H': 722, 'I': 278, 'J': 500, 'K': 667, 'L': 556, 'M': 833, 'N': 722, 'O': 778,
		'P': 667, 'Q': 778, 'R': 722, 'S': 667, 'T': 611, 'U': 722, 'V': 667, 'W': 944,
		'X': 667, 'Y': 667, 'Z': 611, '[': 278, '\\': 278, ']': 278, '^': 469, '_': 556,
		'`': 333, 'a': 556, 'b': 556, 'c': 500, 'd': 556, 'e': 556, 'f': 278, 'g': 556,
		'h': 556, 'i': 222, 'j': 222, 'k': 500, 'l': 222, 'm': 833, 'n': 556, 'o': 556,
		'p': 556, 'q': 556, 'r': 333, 's': 500, 't': 278, 'u': 556, 'v': 500, 'w': 722,
		'x': 500, 'y': 500, 'z': 500, '{': 334, '|': 260, '}': 334, '~': 584,
	}
}

// timesWidths holds Adobe's public AFM widths for Times-Roman over the
// printable ASCII range.
func timesWidths() map[rune]float64 {
	return map[rune]float64{
		' ': 250, '!': 333, '"': 408, '#': 500, '$': 500, '%': 833, '&': 778, '\'': 180,
		'(': 333, ')': 333, '*': 500, '+': 564, ',': 250, '-': 333, '.': 250, '/': 278,
		'0': 500, '1': 500, '2': 500, '3': 500, '4': 500, '5': 500, '6': 500, '7': 500,
		'8': 500, '9': 500, ':': 278, ';': 278, '<': 564, '=': 564, '>': 564, '?': 444,
		'@': 921, 'A': 722, 'B': 667, 'C': 667, 'D': 722, 'E': 611, 'F': 556, 'G': 722,
		'H': 722, 'I': 333, 'J': 389, 'K': 722, 'L': 611, 'M': 889, 'N': 722, 'O': 722,
		'P': 556, 'Q': 722, 'R': 667, 'S': 556, 'T': 611, 'U': 722, 'V': 722, 'W': 944,
		'X': 722, 'Y': 722, 'Z': 611, '[': 333, '\\': 278, ']': 333, '^': 469, '_': 500,
		'`': 333, 'a': 444, 'b': 500, 'c': 444, 'd': 500, 'e': 444, 'f': 333, 'g': 500,
		'h': 500, 'i': 278, 'j': 278, 'k': 500, 'l': 278, 'm': 778, 'n': 500, 'o': 500,
		'p': 500, 'q': 500, 'r': 333, 's': 389, 't': 278, 'u': 500, 'v': 500, 'w': 722,
		'x': 500, 'y': 500, 'z': 444, '{': 480, '|': 200, '}': 480, '~': 541,
	}
}

// identityLatin1 builds an identity CMap over the printable ASCII range
// for standard-14 fonts that have no /ToUnicode of their own: encode and
// decode both treat charcode and rune as identical, which matches the
// behavior of (Win)AnsiEncoding in that range.
func identityLatin1() *cmap.Map {
	codeToRune := make(map[cmap.CharCode]rune, 95)
	for c := cmap.CharCode(0x20); c <= 0x7e; c++ {
		codeToRune[c] = rune(c)
	}
	return cmap.NewIdentity(codeToRune, 8)
}
