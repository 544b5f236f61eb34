/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

// Package contentstream tokenizes a page's decoded content stream into a
// flat sequence of ContentBlock records: one per drawing operator, each
// carrying its decoded operands and the exact byte range of the operands
// the patcher is allowed to rewrite. Unlike a general PDF object parser,
// this tokenizer only needs to recognize the operand types content-stream
// operators actually use (numbers, names, strings, arrays of strings and
// numbers); inline dictionaries (marked-content property lists) are
// skipped over, and references and streams never appear.
package contentstream

import (
	"bytes"
	"strconv"

	"github.com/resumeforge/pdfedit/pdfcore"
)

// TJElement is one element of a TJ operator's array operand: either a
// string to show or a numeric kerning adjustment (thousandths of an em).
type TJElement struct {
	Text         []byte
	IsAdjustment bool
	Adjustment   float64
}

// ContentBlock is one operator invocation, with enough state attached to
// attribute a text-showing operator to a (font, size, origin) and, for
// Tj/TJ/', the exact byte range of its string operand so the patcher can
// substitute bytes without re-parsing the stream.
type ContentBlock struct {
	Operator string
	Operands []float64    // numeric operands, in source order (cm, Td, rg, Tf's size, ...)
	FontTag  pdfcore.Name // set on Tf
	Text     []byte       // the decoded Tj/'/" operand, or nil
	TJArray  []TJElement

	// OperandStart/OperandEnd bound the operator's full operand region in
	// the original byte stream (from just after the previous operator's
	// keyword to just before this operator's keyword), used by the patcher
	// to splice in replacement bytes for Tj/TJ operators specifically.
	OperandStart, OperandEnd int
}

// Parse tokenizes a decoded content stream into ContentBlocks.
func Parse(data []byte) ([]ContentBlock, error) {
	p := &parser{data: data}
	return p.run()
}

type parser struct {
	data   []byte
	offset int
}

func (p *parser) run() ([]ContentBlock, error) {
	var blocks []ContentBlock
	var nums []float64
	var lastName pdfcore.Name
	var lastText []byte
	var lastArray []TJElement
	opStart := 0

	for {
		p.skipSpace()
		tokStart := p.offset
		if p.offset >= len(p.data) {
			break
		}
		c := p.data[p.offset]
		switch {
		case c == '%':
			p.skipLine()
			continue
		case c == '/':
			lastName = p.readName()
			continue
		case c == '(':
			lastText = p.readLiteralString()
			continue
		case c == '<' && p.peekAt(1) == '<':
			p.skipDict()
			continue
		case c == '<':
			lastText = p.readHexString()
			continue
		case c == '[':
			lastArray = p.readTJArray()
			continue
		case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
			nums = append(nums, p.readNumber())
			continue
		case isInlineImageStart(p.data, p.offset):
			p.skipInlineImage()
			opStart = p.offset
			continue
		default:
			op := p.readOperator()
			if op == "" {
				p.offset++
				continue
			}
			blk := ContentBlock{
				Operator:     op,
				Operands:     nums,
				OperandStart: opStart,
				OperandEnd:   tokStart,
			}
			if op == "Tf" {
				blk.FontTag = lastName
			}
			if op == "Tj" || op == "'" || op == "\"" {
				blk.Text = lastText
			}
			if op == "TJ" {
				blk.TJArray = lastArray
			}
			blocks = append(blocks, blk)
			nums = nil
			lastName = ""
			lastText = nil
			lastArray = nil
			opStart = p.offset
		}
	}
	return blocks, nil
}

func (p *parser) peekAt(n int) byte {
	if p.offset+n >= len(p.data) {
		return 0
	}
	return p.data[p.offset+n]
}

func (p *parser) skipSpace() {
	for p.offset < len(p.data) {
		c := p.data[p.offset]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == 0 {
			p.offset++
			continue
		}
		break
	}
}

func (p *parser) skipLine() {
	for p.offset < len(p.data) && p.data[p.offset] != '\n' {
		p.offset++
	}
}

func (p *parser) readName() pdfcore.Name {
	start := p.offset + 1
	p.offset++
	for p.offset < len(p.data) && !isDelim(p.data[p.offset]) {
		p.offset++
	}
	return pdfcore.Name(p.data[start:p.offset])
}

func (p *parser) readNumber() float64 {
	start := p.offset
	if p.data[p.offset] == '+' || p.data[p.offset] == '-' {
		p.offset++
	}
	for p.offset < len(p.data) && (p.data[p.offset] == '.' || (p.data[p.offset] >= '0' && p.data[p.offset] <= '9')) {
		p.offset++
	}
	v, _ := strconv.ParseFloat(string(p.data[start:p.offset]), 64)
	return v
}

func (p *parser) readLiteralString() []byte {
	p.offset++ // consume '('
	var out []byte
	depth := 1
	for p.offset < len(p.data) {
		c := p.data[p.offset]
		if c == '\\' && p.offset+1 < len(p.data) {
			p.offset++
			out = append(out, decodeEscape(p.data, &p.offset)...)
			continue
		}
		if c == '(' {
			depth++
		} else if c == ')' {
			depth--
			if depth == 0 {
				p.offset++
				break
			}
		}
		out = append(out, c)
		p.offset++
	}
	return out
}

func decodeEscape(data []byte, offset *int) []byte {
	c := data[*offset]
	*offset++
	switch c {
	case 'n':
		return []byte{'\n'}
	case 'r':
		return []byte{'\r'}
	case 't':
		return []byte{'\t'}
	case 'b':
		return []byte{'\b'}
	case 'f':
		return []byte{'\f'}
	case '(', ')', '\\':
		return []byte{c}
	case '\r':
		if *offset < len(data) && data[*offset] == '\n' {
			*offset++
		}
		return nil
	case '\n':
		return nil
	default:
		if c >= '0' && c <= '7' {
			v := int(c - '0')
			for i := 0; i < 2 && *offset < len(data) && data[*offset] >= '0' && data[*offset] <= '7'; i++ {
				v = v*8 + int(data[*offset]-'0')
				*offset++
			}
			return []byte{byte(v)}
		}
		return []byte{c}
	}
}

func (p *parser) readHexString() []byte {
	p.offset++ // consume '<'
	start := p.offset
	for p.offset < len(p.data) && p.data[p.offset] != '>' {
		p.offset++
	}
	hexDigits := p.data[start:p.offset]
	if p.offset < len(p.data) {
		p.offset++ // consume '>'
	}
	var digits []byte
	for _, c := range hexDigits {
		if isHexDigit(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 != 0 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	for i := range out {
		v, _ := strconv.ParseUint(string(digits[2*i:2*i+2]), 16, 8)
		out[i] = byte(v)
	}
	return out
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (p *parser) readTJArray() []TJElement {
	p.offset++ // consume '['
	var els []TJElement
	for p.offset < len(p.data) {
		p.skipSpace()
		if p.offset >= len(p.data) {
			break
		}
		c := p.data[p.offset]
		if c == ']' {
			p.offset++
			break
		}
		if c == '(' {
			els = append(els, TJElement{Text: p.readLiteralString()})
			continue
		}
		if c == '<' {
			els = append(els, TJElement{Text: p.readHexString()})
			continue
		}
		if c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9') {
			els = append(els, TJElement{IsAdjustment: true, Adjustment: p.readNumber()})
			continue
		}
		p.offset++
	}
	return els
}

func (p *parser) skipDict() {
	depth := 0
	for p.offset < len(p.data) {
		if p.data[p.offset] == '<' && p.peekAt(1) == '<' {
			depth++
			p.offset += 2
			continue
		}
		if p.data[p.offset] == '>' && p.peekAt(1) == '>' {
			depth--
			p.offset += 2
			if depth == 0 {
				return
			}
			continue
		}
		p.offset++
	}
}

func (p *parser) readOperator() string {
	start := p.offset
	for p.offset < len(p.data) && !isDelim(p.data[p.offset]) && !isSpace(p.data[p.offset]) {
		p.offset++
	}
	return string(p.data[start:p.offset])
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return isSpace(c)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == 0
}

// isInlineImageStart reports whether the tokenizer is sitting on a "BI"
// (begin inline image) operator, whose binary data would otherwise be
// misread as content-stream syntax.
func isInlineImageStart(data []byte, offset int) bool {
	return offset+1 < len(data) && data[offset] == 'B' && data[offset+1] == 'I' &&
		(offset+2 >= len(data) || isSpace(data[offset+2]))
}

func (p *parser) skipInlineImage() {
	idx := bytes.Index(p.data[p.offset:], []byte("EI"))
	if idx < 0 {
		p.offset = len(p.data)
		return
	}
	p.offset += idx + 2
}
