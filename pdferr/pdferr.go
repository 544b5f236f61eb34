/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

// Package pdferr defines the sentinel error kinds shared by every stage of
// the edit pipeline, so callers can classify failures with errors.Is instead
// of matching on message text.
package pdferr

import "errors"

// Fatal errors: returned from Load, reject the document outright.
var (
	// ErrInvalidPdf is returned when the input is not a well-formed PDF
	// (bad header, unparsable xref/trailer, truncated object table).
	ErrInvalidPdf = errors.New("pdferr: invalid pdf")

	// ErrEncryptedPdf is returned when the trailer carries an /Encrypt
	// entry. Decryption is unsupported; the document is rejected.
	ErrEncryptedPdf = errors.New("pdferr: encrypted pdf unsupported")
)

// Per-element errors: recorded as a dropped Change, processing continues.
var (
	// ErrUnsupportedFont is returned when a font lacks a usable encoding
	// (no ToUnicode, no standard encoding, no embedded program cmap).
	ErrUnsupportedFont = errors.New("pdferr: unsupported font encoding")

	// ErrUnmappableGlyph is returned when a replacement string contains a
	// character outside the target font's coverage set.
	ErrUnmappableGlyph = errors.New("pdferr: unmappable glyph")

	// ErrBudgetExceeded is returned when the measured width of a
	// replacement exceeds the original line's glyph-space budget.
	ErrBudgetExceeded = errors.New("pdferr: replacement exceeds width budget")

	// ErrMatchFailed is returned when no content-block sequence decodes to
	// the target semantic element's original text.
	ErrMatchFailed = errors.New("pdferr: no matching content block sequence")

	// ErrProtectedBoundary is returned when extending a match would cross
	// a protected run (date, email, location, "Present"/"Current"/"Now").
	ErrProtectedBoundary = errors.New("pdferr: match crosses protected content")
)

// Per-stream errors: the stream is left untouched, other streams proceed.
var (
	// ErrStreamPatchFailed is returned when a content stream cannot be
	// parsed or rewritten.
	ErrStreamPatchFailed = errors.New("pdferr: content stream patch failed")
)

// DropReason maps a per-element error to the stable reason code recorded in
// a Change entry.
func DropReason(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFont):
		return "UnsupportedFont"
	case errors.Is(err, ErrUnmappableGlyph):
		return "UnmappableGlyph"
	case errors.Is(err, ErrBudgetExceeded):
		return "BudgetExceeded"
	case errors.Is(err, ErrMatchFailed):
		return "MatchFailed"
	case errors.Is(err, ErrProtectedBoundary):
		return "ProtectedBoundary"
	case errors.Is(err, ErrStreamPatchFailed):
		return "StreamPatchFailed"
	default:
		return "Unknown"
	}
}
