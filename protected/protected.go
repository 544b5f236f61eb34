/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

// Package protected recognizes the runs of text a resume edit must never
// alter or split across: dates, bare years, email addresses, the
// "Present"/"Current"/"Now" employment-status words, and "City, ST"
// locations. Both the patcher's match-boundary guard and the verifier's
// protected-content check are built on the same pattern set, so a date
// format considered protected on read is considered protected on write.
package protected

import "github.com/dlclark/regexp2"

// Kind names one protected-content category, used in verification reports.
type Kind string

const (
	KindDate     Kind = "date"
	KindYear     Kind = "year"
	KindEmail    Kind = "email"
	KindStatus   Kind = "status"
	KindLocation Kind = "location"
)

type pattern struct {
	kind Kind
	re   *regexp2.Regexp
}

// patterns is evaluated in order; a span of text can match more than one,
// each match recorded separately since the verifier reports per-kind sets.
var patterns = []pattern{
	{KindDate, regexp2.MustCompile(
		`\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:t|tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s*\d{4}\b`,
		regexp2.IgnoreCase)},
	{KindDate, regexp2.MustCompile(
		`\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:t|tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?\s+\d{4}\b`,
		regexp2.IgnoreCase)},
	{KindDate, regexp2.MustCompile(`\b\d{1,2}/\d{4}\b`, regexp2.None)},
	// A bare four-digit year, but not one that's part of a longer run of
	// digits on either side (a phone number, an object id, a zip+4) — the
	// lookaround stdlib regexp can't express.
	{KindYear, regexp2.MustCompile(`(?<!\d)(?:19|20)\d{2}(?!\d)`, regexp2.None)},
	{KindEmail, regexp2.MustCompile(`\b[\w.+-]+@[\w-]+\.[a-zA-Z]{2,}\b`, regexp2.None)},
	{KindStatus, regexp2.MustCompile(`\b(?:Present|Current|Now)\b`, regexp2.IgnoreCase)},
	// "City, ST": one or two capitalized words followed by a comma and a
	// two-letter state/province code. A longer capitalized run (a company
	// name before the city) is not excluded; its last one or two words match.
	{KindLocation, regexp2.MustCompile(`\b[A-Z][a-zA-Z]+(?:\s[A-Z][a-zA-Z]+)?,\s*[A-Z]{2}\b`, regexp2.None)},
}

// Match is one occurrence of protected content.
type Match struct {
	Kind  Kind
	Text  string
	Start int
	End   int
}

// FindAll returns every protected-content occurrence in text, in order of
// appearance, across all pattern kinds.
func FindAll(text string) []Match {
	var out []Match
	for _, p := range patterns {
		m, err := p.re.FindStringMatch(text)
		for err == nil && m != nil {
			g := m.Groups()[0]
			out = append(out, Match{Kind: p.kind, Text: g.String(), Start: g.Index, End: g.Index + g.Length})
			m, err = p.re.FindNextMatch(m)
		}
	}
	return out
}

// ContainsAny reports whether text contains any protected-content run.
func ContainsAny(text string) bool {
	for _, p := range patterns {
		if ok, _ := p.re.MatchString(text); ok {
			return true
		}
	}
	return false
}

// Sets groups every match in text by kind into a set of distinct matched
// strings, used by the verifier to compare an original/output pair for
// set-containment rather than exact positional equality (replacement text
// may shift a date a few bytes without actually altering it).
func Sets(text string) map[Kind]map[string]bool {
	out := map[Kind]map[string]bool{}
	for _, m := range FindAll(text) {
		if out[m.Kind] == nil {
			out[m.Kind] = map[string]bool{}
		}
		out[m.Kind][m.Text] = true
	}
	return out
}
