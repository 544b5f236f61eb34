/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

// Package pdfcore implements the PDF object model: primitives, the object
// parser, the cross-reference table, and the writer. It is the load-bearing
// layer beneath pdfmodel, cmap, fontmetrics, contentstream and patch.
package pdfcore

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"unicode/utf16"

	"github.com/resumeforge/pdfedit/common"
)

// Object is the interface every primitive PDF object implements.
type Object interface {
	// String returns a debug representation.
	String() string
	// WriteString returns the exact bytes to emit when serializing the
	// object back into a PDF file.
	WriteString() string
}

// Bool is the PDF boolean primitive.
type Bool bool

// Integer is the PDF integer numeric primitive.
type Integer int64

// Float is the PDF real numeric primitive.
type Float float64

// String is the PDF string primitive (literal or hex).
type String struct {
	val   string
	isHex bool
}

// Name is the PDF name primitive, e.g. /Type.
type Name string

// Array is the PDF array primitive.
type Array struct {
	vec []Object
}

// Dictionary is the PDF dictionary primitive. Key order is preserved for
// deterministic output.
type Dictionary struct {
	dict map[Name]Object
	keys []Name

	// spans records, for a dictionary parsed directly out of source bytes,
	// the [start,end) byte range of each "/Key value" entry relative to the
	// start of the enclosing indirect object. Save uses this to patch a
	// stream's /Length (and, rarely, /Filter) in place without
	// re-serializing the surrounding dictionary. Dictionaries built with
	// MakeDict carry no spans.
	spans map[Name][2]int64
}

// Null is the PDF null primitive.
type Null struct{}

// Reference is an indirect reference, "n g R".
type Reference struct {
	doc              *Document
	ObjectNumber     int64
	GenerationNumber int64
}

// Indirect wraps a direct object with an object number/generation, as held
// in the object table between "n g obj" and "endobj".
type Indirect struct {
	Reference
	Object
}

// Stream is an indirect stream object: a dictionary plus raw (still
// filter-encoded) bytes.
type Stream struct {
	Reference
	*Dictionary
	Raw []byte

	// RawStart and RawEnd are Raw's [start,end) byte range in the source,
	// relative to the start of the enclosing indirect object ("N G obj").
	// Both are zero for streams built in memory (MakeDict-based), which
	// Save's splice path never targets since those never appear in a
	// Document's xref table.
	RawStart, RawEnd int64
}

// MakeDict creates an empty dictionary.
func MakeDict() *Dictionary {
	return &Dictionary{dict: map[Name]Object{}}
}

// MakeName creates a Name object.
func MakeName(s string) *Name {
	n := Name(s)
	return &n
}

// MakeInteger creates an Integer object.
func MakeInteger(v int64) *Integer {
	i := Integer(v)
	return &i
}

// MakeFloat creates a Float object.
func MakeFloat(v float64) *Float {
	f := Float(v)
	return &f
}

// MakeBool creates a Bool object.
func MakeBool(v bool) *Bool {
	b := Bool(v)
	return &b
}

// MakeArray creates an Array from the given objects.
func MakeArray(objects ...Object) *Array {
	return &Array{vec: append([]Object{}, objects...)}
}

// MakeString creates a literal String object. `s` is a raw byte sequence,
// not necessarily UTF-8 (PDF strings are PDFDocEncoding or UTF-16BE).
func MakeString(s string) *String {
	return &String{val: s}
}

// MakeHexString creates a String object that serializes in hex form.
func MakeHexString(s string) *String {
	return &String{val: s, isHex: true}
}

// MakeNull creates a Null object.
func MakeNull() *Null {
	return &Null{}
}

// Resolve follows the reference through its owning Document. Returns a Null
// object if the reference cannot be resolved, rather than propagating an
// error through every object-graph walk.
func (ref *Reference) Resolve() Object {
	if ref.doc == nil {
		return MakeNull()
	}
	obj, err := ref.doc.resolve(ref.ObjectNumber, ref.GenerationNumber)
	if err != nil {
		common.Log.Debug("resolve %d %d R failed: %v", ref.ObjectNumber, ref.GenerationNumber, err)
		return MakeNull()
	}
	return obj
}

func (b *Bool) String() string { return strconv.FormatBool(bool(*b)) }
func (b *Bool) WriteString() string {
	return strconv.FormatBool(bool(*b))
}

func (i *Integer) String() string      { return strconv.FormatInt(int64(*i), 10) }
func (i *Integer) WriteString() string { return strconv.FormatInt(int64(*i), 10) }

func (f *Float) String() string      { return strconv.FormatFloat(float64(*f), 'f', -1, 64) }
func (f *Float) WriteString() string { return strconv.FormatFloat(float64(*f), 'f', -1, 64) }

// Str returns the raw string content (as distinct from String(), which is
// reserved for debug output by convention).
func (s *String) Str() string { return s.val }

// Bytes returns the raw bytes of the string.
func (s *String) Bytes() []byte { return []byte(s.val) }

func (s *String) String() string { return s.val }

// Decoded returns the UTF-16BE- or PDFDocEncoding-decoded text, used for
// document metadata (title, author) rather than page content text, which
// instead goes through a font's ToUnicode CMap.
func (s *String) Decoded() string {
	b := []byte(s.val)
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		return utf16BEToString(b[2:])
	}
	return pdfDocEncodingToString(b)
}

func (s *String) WriteString() string {
	var buf bytes.Buffer
	if s.isHex {
		buf.WriteByte('<')
		buf.WriteString(hex.EncodeToString(s.Bytes()))
		buf.WriteByte('>')
		return buf.String()
	}
	esc := map[byte]string{
		'\n': `\n`, '\r': `\r`, '\t': `\t`, '\b': `\b`, '\f': `\f`,
		'(': `\(`, ')': `\)`, '\\': `\\`,
	}
	buf.WriteByte('(')
	for i := 0; i < len(s.val); i++ {
		c := s.val[i]
		if e, ok := esc[c]; ok {
			buf.WriteString(e)
		} else {
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
	return buf.String()
}

func (n *Name) String() string { return string(*n) }
func (n *Name) WriteString() string {
	var buf bytes.Buffer
	buf.WriteByte('/')
	for i := 0; i < len(*n); i++ {
		c := (*n)[i]
		if c <= 0x20 || c >= 0x7f || c == '#' || isDelimiter(c) {
			fmt.Fprintf(&buf, "#%.2x", c)
		} else {
			buf.WriteByte(c)
		}
	}
	return buf.String()
}

// Elements returns the array's elements.
func (a *Array) Elements() []Object {
	if a == nil {
		return nil
	}
	return a.vec
}

// Len returns the number of elements.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.vec)
}

// Get returns the i-th element, or nil if out of range.
func (a *Array) Get(i int) Object {
	if a == nil || i < 0 || i >= len(a.vec) {
		return nil
	}
	return a.vec[i]
}

// Append adds objects to the end of the array.
func (a *Array) Append(objects ...Object) {
	a.vec = append(a.vec, objects...)
}

// ToFloat64Slice converts a numeric array to []float64; an error occurs if
// any element isn't a number.
func (a *Array) ToFloat64Slice() ([]float64, error) {
	out := make([]float64, 0, a.Len())
	for _, obj := range a.Elements() {
		v, err := ToFloat64(obj)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (a *Array) String() string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, obj := range a.vec {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(obj.String())
	}
	buf.WriteByte(']')
	return buf.String()
}

func (a *Array) WriteString() string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, obj := range a.vec {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(obj.WriteString())
	}
	buf.WriteByte(']')
	return buf.String()
}

// Set sets a key in the dictionary, preserving first-insertion key order.
func (d *Dictionary) Set(key Name, val Object) {
	if _, exists := d.dict[key]; !exists {
		d.keys = append(d.keys, key)
	}
	if d.dict == nil {
		d.dict = map[Name]Object{}
	}
	d.dict[key] = val
}

// Remove deletes `key` from the dictionary, if present.
func (d *Dictionary) Remove(key Name) {
	if d == nil {
		return
	}
	if _, exists := d.dict[key]; !exists {
		return
	}
	delete(d.dict, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Get returns the value for `key`, or nil if absent.
func (d *Dictionary) Get(key Name) Object {
	if d == nil {
		return nil
	}
	return d.dict[key]
}

// setSpan records the source byte range of key's "/Key value" entry,
// relative to the start of the indirect object the dictionary was parsed
// from. Called only by the parser.
func (d *Dictionary) setSpan(key Name, start, end int64) {
	if d.spans == nil {
		d.spans = map[Name][2]int64{}
	}
	d.spans[key] = [2]int64{start, end}
}

// Span returns the [start,end) byte range of key's "/Key value" entry as
// parsed from source bytes, relative to the start of the enclosing indirect
// object. ok is false for dictionaries built in memory or for keys whose
// span wasn't recorded (absent from source, or the dictionary predates
// span tracking).
func (d *Dictionary) Span(key Name) (start, end int64, ok bool) {
	if d == nil || d.spans == nil {
		return 0, 0, false
	}
	s, found := d.spans[key]
	return s[0], s[1], found
}

// Keys returns the dictionary's keys in insertion order.
func (d *Dictionary) Keys() []Name {
	if d == nil {
		return nil
	}
	return d.keys
}

func (d *Dictionary) String() string {
	var buf bytes.Buffer
	buf.WriteString("Dict(")
	for _, k := range d.keys {
		fmt.Fprintf(&buf, "%s: %s, ", k, d.dict[k].String())
	}
	buf.WriteByte(')')
	return buf.String()
}

func (d *Dictionary) WriteString() string {
	var buf bytes.Buffer
	buf.WriteString("<<")
	for _, k := range d.keys {
		buf.WriteString((&k).WriteString())
		buf.WriteByte(' ')
		buf.WriteString(d.dict[k].WriteString())
		buf.WriteByte(' ')
	}
	buf.WriteString(">>")
	return buf.String()
}

func (n *Null) String() string      { return "null" }
func (n *Null) WriteString() string { return "null" }

func (r *Reference) String() string {
	return fmt.Sprintf("Ref(%d %d)", r.ObjectNumber, r.GenerationNumber)
}
func (r *Reference) WriteString() string {
	return fmt.Sprintf("%d %d R", r.ObjectNumber, r.GenerationNumber)
}

// ToFloat64 coerces a numeric Object (Integer or Float) to float64.
func ToFloat64(obj Object) (float64, error) {
	switch t := obj.(type) {
	case *Integer:
		return float64(*t), nil
	case *Float:
		return float64(*t), nil
	default:
		return 0, fmt.Errorf("pdfcore: not a number: %T", obj)
	}
}

// ToInt64 coerces a numeric Object to int64, truncating floats.
func ToInt64(obj Object) (int64, error) {
	switch t := obj.(type) {
	case *Integer:
		return int64(*t), nil
	case *Float:
		return int64(*t), nil
	default:
		return 0, fmt.Errorf("pdfcore: not a number: %T", obj)
	}
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func utf16BEToString(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	u16 := make([]uint16, len(b)/2)
	for i := range u16 {
		u16[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return string(utf16.Decode(u16))
}

// pdfDocEncodingToString decodes PDFDocEncoding, which agrees with Latin-1
// for every code point a resume document's metadata realistically uses.
func pdfDocEncodingToString(b []byte) string {
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}
