/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

package pdfcore

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/resumeforge/pdfedit/common"
)

var (
	reReference   = regexp.MustCompile(`^\s*(\d+)\s+(\d+)\s+R`)
	reNumeric     = regexp.MustCompile(`^[\+-]?\.?\d+\.?\d*`)
	reExponential = regexp.MustCompile(`^[\+-]?\.?\d+\.?\d*[eE][\+-]?\d+`)
)

// lexer is a small recursive-descent object reader over a buffered byte
// stream, tracking the byte offset of every token relative to where reading
// started (the start of an indirect object), so Save can later locate a
// stream's raw bytes and a dictionary entry's source range.
type lexer struct {
	r      *bufio.Reader
	offset int64
}

func newLexer(r io.Reader) *lexer {
	return &lexer{r: bufio.NewReaderSize(r, 4096)}
}

func (lx *lexer) readByte() (byte, error) {
	b, err := lx.r.ReadByte()
	if err == nil {
		lx.offset++
	}
	return b, err
}

func (lx *lexer) unreadByte() error {
	err := lx.r.UnreadByte()
	if err == nil {
		lx.offset--
	}
	return err
}

func isWhitespace(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func (lx *lexer) skipSpaces() (int, error) {
	n := 0
	for {
		b, err := lx.readByte()
		if err != nil {
			return n, err
		}
		if !isWhitespace(b) {
			lx.unreadByte()
			return n, nil
		}
		n++
	}
}

func (lx *lexer) skipComments() error {
	for {
		bb, err := lx.r.Peek(1)
		if err != nil {
			return nil
		}
		if bb[0] == '%' {
			for {
				b, err := lx.readByte()
				if err != nil || b == '\n' || b == '\r' {
					break
				}
			}
			lx.skipSpaces()
			continue
		}
		return nil
	}
}

func (lx *lexer) skipWhitespaceAndComments() {
	lx.skipSpaces()
	lx.skipComments()
	lx.skipSpaces()
}

// parseObject reads one direct object (no "n g obj" wrapper).
func (lx *lexer) parseObject(doc *Document) (Object, error) {
	lx.skipWhitespaceAndComments()
	bb, err := lx.r.Peek(2)
	if err != nil {
		if err != io.EOF || len(bb) == 0 {
			return nil, err
		}
		if len(bb) == 1 {
			bb = append(bb, ' ')
		}
	}

	switch {
	case bb[0] == '/':
		name, err := lx.parseName()
		return &name, err
	case bb[0] == '(':
		return lx.parseLiteralString()
	case bb[0] == '[':
		return lx.parseArray(doc)
	case bb[0] == '<' && bb[1] == '<':
		return lx.parseDict(doc)
	case bb[0] == '<':
		return lx.parseHexString()
	default:
		peek, _ := lx.r.Peek(16)
		s := string(peek)
		switch {
		case len(s) >= 4 && s[:4] == "null":
			lx.advance(4)
			return MakeNull(), nil
		case len(s) >= 5 && s[:5] == "false":
			lx.advance(5)
			b := Bool(false)
			return &b, nil
		case len(s) >= 4 && s[:4] == "true":
			lx.advance(4)
			b := Bool(true)
			return &b, nil
		}
		if m := reReference.FindString(s); m != "" {
			lx.advance(len(m))
			return lx.makeReference(doc, m)
		}
		if m := reExponential.FindString(s); m != "" {
			return lx.parseNumber()
		}
		if m := reNumeric.FindString(s); m != "" {
			return lx.parseNumber()
		}
		return nil, fmt.Errorf("pdfcore: unexpected token %q", s)
	}
}

func (lx *lexer) advance(n int) {
	buf := make([]byte, n)
	io.ReadFull(lx.r, buf)
	lx.offset += int64(n)
}

func (lx *lexer) makeReference(doc *Document, m string) (Object, error) {
	sub := reReference.FindStringSubmatch(m)
	num, _ := strconv.ParseInt(sub[1], 10, 64)
	gen, _ := strconv.ParseInt(sub[2], 10, 64)
	return &Reference{doc: doc, ObjectNumber: num, GenerationNumber: gen}, nil
}

func (lx *lexer) parseName() (Name, error) {
	b, err := lx.readByte() // consume '/'
	if err != nil || b != '/' {
		return "", fmt.Errorf("pdfcore: expected name")
	}
	var out []byte
	for {
		c, err := lx.readByte()
		if err != nil {
			break
		}
		if isWhitespace(c) || isDelimiter(c) {
			lx.unreadByte()
			break
		}
		if c == '#' {
			hexd := make([]byte, 2)
			for i := range hexd {
				hexd[i], _ = lx.readByte()
			}
			v, err := strconv.ParseUint(string(hexd), 16, 8)
			if err == nil {
				out = append(out, byte(v))
				continue
			}
		}
		out = append(out, c)
	}
	return Name(out), nil
}

func (lx *lexer) parseNumber() (Object, error) {
	var out []byte
	isFloat := false
	for {
		b, err := lx.readByte()
		if err != nil {
			break
		}
		if b >= '0' && b <= '9' || b == '+' || b == '-' {
			out = append(out, b)
		} else if b == '.' {
			isFloat = true
			out = append(out, b)
		} else if b == 'e' || b == 'E' {
			isFloat = true
			out = append(out, b)
		} else {
			lx.unreadByte()
			break
		}
	}
	if isFloat {
		v, err := strconv.ParseFloat(string(out), 64)
		f := Float(v)
		return &f, err
	}
	v, err := strconv.ParseInt(string(out), 10, 64)
	if err != nil {
		// Overflow or malformed; fall back to float parse.
		fv, ferr := strconv.ParseFloat(string(out), 64)
		if ferr == nil {
			f := Float(fv)
			return &f, nil
		}
		return nil, err
	}
	i := Integer(v)
	return &i, nil
}

func (lx *lexer) parseLiteralString() (*String, error) {
	lx.readByte() // consume '('
	var out []byte
	depth := 1
	for {
		c, err := lx.readByte()
		if err != nil {
			return nil, err
		}
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return MakeString(string(out)), nil
			}
			out = append(out, c)
		case '\\':
			esc, err := lx.readByte()
			if err != nil {
				return nil, err
			}
			switch esc {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '(', ')', '\\':
				out = append(out, esc)
			case '\r':
				// line continuation; optionally followed by \n
				if next, err := lx.r.Peek(1); err == nil && len(next) > 0 && next[0] == '\n' {
					lx.readByte()
				}
			case '\n':
				// line continuation, no char emitted
			default:
				if esc >= '0' && esc <= '7' {
					digits := []byte{esc}
					for i := 0; i < 2; i++ {
						p, err := lx.r.Peek(1)
						if err != nil || p[0] < '0' || p[0] > '7' {
							break
						}
						b, _ := lx.readByte()
						digits = append(digits, b)
					}
					v, _ := strconv.ParseUint(string(digits), 8, 16)
					out = append(out, byte(v))
				} else {
					out = append(out, esc)
				}
			}
		default:
			out = append(out, c)
		}
	}
}

func (lx *lexer) parseHexString() (*String, error) {
	lx.readByte() // consume '<'
	var hexDigits []byte
	for {
		c, err := lx.readByte()
		if err != nil {
			return nil, err
		}
		if c == '>' {
			break
		}
		if isWhitespace(c) {
			continue
		}
		hexDigits = append(hexDigits, c)
	}
	if len(hexDigits)%2 != 0 {
		hexDigits = append(hexDigits, '0')
	}
	out := make([]byte, len(hexDigits)/2)
	for i := range out {
		v, err := strconv.ParseUint(string(hexDigits[2*i:2*i+2]), 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return MakeHexString(string(out)), nil
}

func (lx *lexer) parseArray(doc *Document) (*Array, error) {
	lx.readByte() // consume '['
	arr := MakeArray()
	for {
		lx.skipWhitespaceAndComments()
		bb, err := lx.r.Peek(1)
		if err != nil {
			return arr, err
		}
		if bb[0] == ']' {
			lx.readByte()
			return arr, nil
		}
		obj, err := lx.parseObject(doc)
		if err != nil {
			return arr, err
		}
		arr.Append(obj)
	}
}

func (lx *lexer) parseDict(doc *Document) (Object, error) {
	lx.readByte()
	lx.readByte() // consume '<<'
	d := MakeDict()
	for {
		lx.skipWhitespaceAndComments()
		bb, err := lx.r.Peek(2)
		if err != nil {
			return d, err
		}
		if bb[0] == '>' && bb[1] == '>' {
			lx.advance(2)
			break
		}
		if bb[0] != '/' {
			return nil, fmt.Errorf("pdfcore: expected name key in dict, got %q", bb)
		}
		entryStart := lx.offset
		key, err := lx.parseName()
		if err != nil {
			return nil, err
		}
		lx.skipWhitespaceAndComments()
		val, err := lx.parseObject(doc)
		if err != nil {
			return nil, err
		}
		d.Set(key, val)
		d.setSpan(key, entryStart, lx.offset)
	}

	lx.skipSpaces()
	peek, _ := lx.r.Peek(6)
	if string(peek) == "stream" {
		return lx.parseStream(doc, d)
	}
	return d, nil
}

func (lx *lexer) parseStream(doc *Document, d *Dictionary) (*Stream, error) {
	lx.advance(len("stream"))
	// Per spec: CRLF or LF (not bare CR) follows the "stream" keyword.
	b, _ := lx.readByte()
	if b == '\r' {
		b, _ = lx.readByte()
	}
	if b != '\n' {
		lx.unreadByte()
	}

	length := 0
	if lenObj := d.Get("Length"); lenObj != nil {
		if ref, ok := lenObj.(*Reference); ok {
			resolved := ref.Resolve()
			if n, err := ToInt64(resolved); err == nil {
				length = int(n)
			}
		} else if n, err := ToInt64(lenObj); err == nil {
			length = int(n)
		}
	}

	rawStart := lx.offset
	raw := make([]byte, length)
	n, err := io.ReadFull(lx.r, raw)
	lx.offset += int64(n)
	if err != nil && err != io.ErrUnexpectedEOF {
		common.Log.Debug("stream read short: %v", err)
	}
	raw = raw[:n]
	rawEnd := lx.offset

	lx.skipSpaces()
	peek, _ := lx.r.Peek(9)
	if string(peek) == "endstream" {
		lx.advance(9)
	}

	return &Stream{Dictionary: d, Raw: raw, RawStart: rawStart, RawEnd: rawEnd}, nil
}
