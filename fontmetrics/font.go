/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

// Package fontmetrics turns a PDF font resource dictionary into a typed
// Font record: a stable id, its PostScript name, byte width,
// forward/reverse ToUnicode mapping, default/array widths, coverage set,
// and bold/italic/symbolic attributes. It is the engine behind a font's
// encode/measure pair.
package fontmetrics

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/unidoc/unitype"
	"golang.org/x/xerrors"

	"github.com/resumeforge/pdfedit/cmap"
	"github.com/resumeforge/pdfedit/pdfcore"
	"github.com/resumeforge/pdfedit/pdferr"
)

// Font descriptor flag bits (PDF32000-1:2008 9.8.2, Table 123).
const (
	flagSymbolic  = 0x00004
	flagItalic    = 0x00040
	flagForceBold = 0x40000
)

// Font is the full parsed description of one font resource.
type Font struct {
	ID           int64 // stable id: the font resource's indirect object number
	PostScript   string
	IsCID        bool
	IsSymbolic   bool
	Bold         bool
	Italic       bool
	byteWidth    int
	toUnicode    *cmap.Map
	defaultWidth float64
	widths       map[cmap.CharCode]float64
	stdWidths    map[rune]float64 // standard-14 fallback AFM widths, nil otherwise
}

// ByteWidth returns 1 for simple fonts, 2 for Type0/CID fonts.
func (f *Font) ByteWidth() int { return f.byteWidth }

// Coverage returns the set of runes this font can encode, i.e. those with a
// reverse ToUnicode mapping (or, for a standard-14 fallback with no
// ToUnicode, those in the builtin AFM width table, since PDFDocEncoding is
// effectively ASCII+Latin-1 for those fonts).
func (f *Font) Coverage() map[rune]bool {
	if f.toUnicode != nil {
		return f.toUnicode.Coverage()
	}
	out := make(map[rune]bool, len(f.stdWidths))
	for r := range f.stdWidths {
		out[r] = true
	}
	return out
}

// Encode converts `text` into the byte string this font's content stream
// operators expect, returning runes it could not place. The caller decides
// whether to drop them; this package never makes that call itself.
func (f *Font) Encode(text string) (encoded []byte, missing []rune) {
	for _, r := range text {
		if f.toUnicode != nil {
			if code, ok := f.toUnicode.UnicodeToCharcode(r); ok {
				encoded = appendCode(encoded, code, f.byteWidth)
				continue
			}
		} else if f.stdWidths != nil {
			if _, ok := f.stdWidths[r]; ok {
				// Standard-14, non-embedded: charcode equals the
				// StandardEncoding/WinAnsiEncoding byte, which for the
				// printable ASCII range resumes actually use is just the
				// rune's low byte.
				if r < 256 {
					encoded = appendCode(encoded, cmap.CharCode(r), f.byteWidth)
					continue
				}
			}
		}
		missing = append(missing, r)
	}
	return encoded, missing
}

func appendCode(b []byte, code cmap.CharCode, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		b = append(b, byte(code>>(8*i)))
	}
	return b
}

// Decode decodes raw content-stream operand bytes into Unicode text via
// this font's forward ToUnicode mapping.
func (f *Font) Decode(data []byte) string {
	if f.toUnicode != nil {
		return f.toUnicode.Decode(data)
	}
	// No ToUnicode and no embedded cmap fallback: treat bytes as
	// Latin-1/ASCII, which is correct for an unembedded standard-14 font
	// using (Win)AnsiEncoding, the only case stdWidths is set without a
	// cmap.
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

// Measure returns the width, in user-space units at `sizePt`, of already
// font-encoded `data` (charcodes, not Unicode text).
func (f *Font) Measure(data []byte, sizePt float64) float64 {
	var total float64
	width := f.byteWidth
	for i := 0; i+width <= len(data); i += width {
		var code cmap.CharCode
		for j := 0; j < width; j++ {
			code = code<<8 | cmap.CharCode(data[i+j])
		}
		total += f.glyphWidth(code)
	}
	return total * sizePt / 1000.0
}

// MeasureText measures a Unicode string directly by encoding it first; used
// by the width-budget calculator, which never needs the intermediate bytes.
func (f *Font) MeasureText(text string, sizePt float64) (width float64, missing []rune) {
	encoded, missing := f.Encode(text)
	return f.Measure(encoded, sizePt), missing
}

func (f *Font) glyphWidth(code cmap.CharCode) float64 {
	if w, ok := f.widths[code]; ok {
		return w
	}
	if f.stdWidths != nil && f.toUnicode != nil {
		if s, ok := f.toUnicode.CharcodeToUnicode(code); ok {
			for _, r := range s {
				if w, ok := f.stdWidths[r]; ok {
					return w
				}
			}
		}
	}
	return f.defaultWidth
}

// NewForTest builds a minimal Font directly from a ToUnicode map and a flat
// default glyph width, for tests in other packages that need a Font but not
// a full PDF font dictionary to parse one from.
func NewForTest(toUnicode *cmap.Map, defaultWidth float64) *Font {
	return &Font{byteWidth: toUnicode.ByteWidth(), toUnicode: toUnicode, defaultWidth: defaultWidth}
}

// Parse builds a Font record from a font resource dictionary. `objNum` is
// the font's indirect object number, used as the stable id referenced by
// TextSpans and ContentBlocks so neither holds a live pointer into the
// Document past the edit's lifetime.
func Parse(objNum int64, dict *pdfcore.Dictionary) (*Font, error) {
	subtype, _ := nameOf(dict.Get("Subtype"))
	f := &Font{ID: objNum}

	switch subtype {
	case "Type0":
		return parseComposite(f, dict)
	default:
		return parseSimple(f, dict)
	}
}

func nameOf(obj pdfcore.Object) (string, bool) {
	n, ok := obj.(*pdfcore.Name)
	if !ok {
		return "", false
	}
	return string(*n), true
}

func parseDescriptorFlags(f *Font, descriptor *pdfcore.Dictionary) {
	if descriptor == nil {
		return
	}
	if flagsObj := descriptor.Get("Flags"); flagsObj != nil {
		if n, err := pdfcore.ToInt64(flagsObj); err == nil {
			f.IsSymbolic = n&flagSymbolic != 0
			f.Italic = n&flagItalic != 0
			f.Bold = n&flagForceBold != 0
		}
	}
}

func inferBoldItalicFromName(f *Font, baseFont string) {
	lower := strings.ToLower(baseFont)
	if strings.Contains(lower, "bold") {
		f.Bold = true
	}
	if strings.Contains(lower, "italic") || strings.Contains(lower, "oblique") {
		f.Italic = true
	}
}

func parseSimple(f *Font, dict *pdfcore.Dictionary) (*Font, error) {
	f.byteWidth = 1

	baseFont, _ := nameOf(dict.Get("BaseFont"))
	f.PostScript = baseFont
	inferBoldItalicFromName(f, baseFont)

	descriptor, _ := dict.Get("FontDescriptor").(*pdfcore.Dictionary)
	if dref, ok := dict.Get("FontDescriptor").(*pdfcore.Reference); ok {
		descriptor, _ = dref.Resolve().(*pdfcore.Dictionary)
	}
	parseDescriptorFlags(f, descriptor)

	f.widths = map[cmap.CharCode]float64{}
	firstChar, _ := pdfcore.ToInt64(dict.Get("FirstChar"))
	if widthsArr, ok := arrayOf(dict.Get("Widths")); ok {
		vals, _ := widthsArr.ToFloat64Slice()
		for i, w := range vals {
			f.widths[cmap.CharCode(firstChar)+cmap.CharCode(i)] = w
		}
	}

	if tu, err := parseToUnicode(dict, 8); err == nil {
		f.toUnicode = tu
	} else if descriptor != nil {
		if tu, err := toUnicodeFromEmbeddedProgram(descriptor); err == nil {
			f.toUnicode = tu
		}
	}

	if len(f.widths) == 0 || f.toUnicode == nil {
		if std, ok := standard14Widths(baseFont); ok {
			f.stdWidths = std
			f.defaultWidth = 500
			if f.toUnicode == nil {
				f.toUnicode = identityLatin1()
			}
		}
	}

	if f.toUnicode == nil && len(f.widths) == 0 {
		return nil, xerrors.Errorf("%w: %s has neither ToUnicode nor widths nor a standard-14 fallback",
			pdferr.ErrUnsupportedFont, baseFont)
	}
	return f, nil
}

func parseComposite(f *Font, dict *pdfcore.Dictionary) (*Font, error) {
	f.byteWidth = 2
	f.IsCID = true

	baseFont, _ := nameOf(dict.Get("BaseFont"))
	f.PostScript = baseFont
	inferBoldItalicFromName(f, baseFont)

	descFontsArr, _ := arrayOf(dict.Get("DescendantFonts"))
	var descFont *pdfcore.Dictionary
	if descFontsArr != nil && descFontsArr.Len() > 0 {
		obj := descFontsArr.Get(0)
		if ref, ok := obj.(*pdfcore.Reference); ok {
			descFont, _ = ref.Resolve().(*pdfcore.Dictionary)
		} else {
			descFont, _ = obj.(*pdfcore.Dictionary)
		}
	}

	f.widths = map[cmap.CharCode]float64{}
	f.defaultWidth = 1000
	if descFont != nil {
		if dw, err := pdfcore.ToInt64(descFont.Get("DW")); err == nil {
			f.defaultWidth = float64(dw)
		}
		parseCIDWidthArray(f, descFont.Get("W"))

		descriptor, _ := descFont.Get("FontDescriptor").(*pdfcore.Dictionary)
		if dref, ok := descFont.Get("FontDescriptor").(*pdfcore.Reference); ok {
			descriptor, _ = dref.Resolve().(*pdfcore.Dictionary)
		}
		parseDescriptorFlags(f, descriptor)
	}

	tu, err := parseToUnicode(dict, 16)
	if err != nil {
		return nil, xerrors.Errorf("%w: Type0 font %s missing usable ToUnicode: %v",
			pdferr.ErrUnsupportedFont, baseFont, err)
	}
	f.toUnicode = tu
	return f, nil
}

// parseCIDWidthArray parses the /W entry: a flat array alternating between
// "c [w1 w2 ... wn]" (consecutive explicit widths starting at c) and
// "c_first c_last w" (a uniform width over a range) forms.
func parseCIDWidthArray(f *Font, wObj pdfcore.Object) {
	arr, ok := arrayOf(wObj)
	if !ok {
		return
	}
	elems := arr.Elements()
	i := 0
	for i < len(elems) {
		c, err := pdfcore.ToInt64(elems[i])
		if err != nil {
			i++
			continue
		}
		i++
		if i >= len(elems) {
			break
		}
		if sub, ok := elems[i].(*pdfcore.Array); ok {
			vals, _ := sub.ToFloat64Slice()
			for j, w := range vals {
				f.widths[cmap.CharCode(c)+cmap.CharCode(j)] = w
			}
			i++
			continue
		}
		cLast, err := pdfcore.ToInt64(elems[i])
		if err != nil {
			i++
			continue
		}
		i++
		if i >= len(elems) {
			break
		}
		w, _ := pdfcore.ToFloat64(elems[i])
		i++
		for code := c; code <= cLast; code++ {
			f.widths[cmap.CharCode(code)] = w
		}
	}
}

func arrayOf(obj pdfcore.Object) (*pdfcore.Array, bool) {
	switch t := obj.(type) {
	case *pdfcore.Array:
		return t, true
	case *pdfcore.Reference:
		a, ok := t.Resolve().(*pdfcore.Array)
		return a, ok
	}
	return nil, false
}

func parseToUnicode(dict *pdfcore.Dictionary, nbits int) (*cmap.Map, error) {
	obj := dict.Get("ToUnicode")
	if ref, ok := obj.(*pdfcore.Reference); ok {
		obj = ref.Resolve()
	}
	stm, ok := obj.(*pdfcore.Stream)
	if !ok {
		return nil, fmt.Errorf("no ToUnicode stream")
	}
	data, err := pdfcore.DecodeStream(stm)
	if err != nil {
		return nil, err
	}
	return cmap.Parse(data, nbits)
}

// toUnicodeFromEmbeddedProgram is the fallback tried whenever a simple font
// has no usable /ToUnicode, before any standard-14 lookup: it confirms the
// embedded program parses as a well-formed font via unitype and, for the
// common case of a non-symbolic embedded TrueType program, assumes the
// codespace follows WinAnsiEncoding/ASCII, so charcode and rune coincide in
// the printable range. Recovering the program's own cmap subtable
// byte-for-byte needs unitype APIs beyond Parse, left out here rather than
// guessed at.
func toUnicodeFromEmbeddedProgram(descriptor *pdfcore.Dictionary) (*cmap.Map, error) {
	var raw []byte
	for _, key := range []pdfcore.Name{"FontFile2", "FontFile3", "FontFile"} {
		obj := descriptor.Get(key)
		ref, ok := obj.(*pdfcore.Reference)
		if !ok {
			continue
		}
		stm, ok := ref.Resolve().(*pdfcore.Stream)
		if !ok {
			continue
		}
		data, err := pdfcore.DecodeStream(stm)
		if err == nil {
			raw = data
			break
		}
	}
	if raw == nil {
		return nil, fmt.Errorf("no embedded font program")
	}
	if _, err := unitype.Parse(bytes.NewReader(raw)); err != nil {
		return nil, xerrors.Errorf("unitype parse: %w", err)
	}

	codeToRune := make(map[cmap.CharCode]rune, 95)
	for c := cmap.CharCode(0x20); c <= 0x7e; c++ {
		codeToRune[c] = rune(c)
	}
	return cmap.NewIdentity(codeToRune, 8), nil
}
