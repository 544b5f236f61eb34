/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

package pdfmodel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF builds the smallest well-formed single-page PDF with one
// Helvetica text run, enough to exercise Load's font-resolution and
// span-extraction path end to end.
func minimalPDF(t *testing.T) []byte {
	t.Helper()
	content := "BT /F1 12 Tf 72 700 Td (Hello) Tj ET"
	var b strings.Builder
	offsets := make([]int, 0, 6)
	write := func(s string) { b.WriteString(s) }

	offsets = append(offsets, b.Len())
	write("%PDF-1.4\n")

	record := func(s string) {
		offsets = append(offsets, b.Len())
		write(s)
	}
	record("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	record("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	record("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>\nendobj\n")
	record("4 0 obj\n<< /Length " + itoa(len(content)) + " >>\nstream\n" + content + "\nendstream\nendobj\n")
	record("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xrefStart := b.Len()
	write("xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i < 6; i++ {
		write(pad10(offsets[i]) + " 00000 n \n")
	}
	write("trailer\n<< /Size 6 /Root 1 0 R >>\n")
	write("startxref\n" + itoa(xrefStart) + "\n%%EOF")

	return []byte(b.String())
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func pad10(n int) string {
	s := itoa(n)
	for len(s) < 10 {
		s = "0" + s
	}
	return s
}

func TestLoadExtractsSpans(t *testing.T) {
	doc, err := Load(minimalPDF(t))
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)

	spans := doc.AllSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "Hello", spans[0].Text)
}
