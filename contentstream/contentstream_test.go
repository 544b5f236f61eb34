/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

package contentstream

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumeforge/pdfedit/pdfcore"
)

func TestParseOperands(t *testing.T) {
	data := []byte("q\n1 0 0 1 72 700 cm\nBT\n/F1 12 Tf\n(Hello) Tj\nET\nQ\n")
	blocks, err := Parse(data)
	require.NoError(t, err)

	want := []string{"q", "cm", "BT", "Tf", "Tj", "ET", "Q"}
	got := make([]string, len(blocks))
	for i := range blocks {
		got[i] = blocks[i].Operator
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("operator sequence mismatch (-want +got):\n%s", diff)
	}

	cm := blocks[1]
	require.Len(t, cm.Operands, 6)
	assert.Equal(t, 72.0, cm.Operands[4])
	assert.Equal(t, 700.0, cm.Operands[5])

	tf := blocks[3]
	assert.Equal(t, pdfcore.Name("F1"), tf.FontTag)
	require.Len(t, tf.Operands, 1)
	assert.Equal(t, 12.0, tf.Operands[0])

	tj := blocks[4]
	assert.Equal(t, "Hello", string(tj.Text))
}

func TestParseTJArray(t *testing.T) {
	data := []byte("BT\n/F1 10 Tf\n[(A) -250 (B) (C)] TJ\nET\n")
	blocks, err := Parse(data)
	require.NoError(t, err)

	var tj *ContentBlock
	for i := range blocks {
		if blocks[i].Operator == "TJ" {
			tj = &blocks[i]
		}
	}
	require.NotNil(t, tj, "no TJ block found")
	require.Len(t, tj.TJArray, 4)
	assert.Equal(t, "A", string(tj.TJArray[0].Text))
	assert.True(t, tj.TJArray[1].IsAdjustment)
	assert.Equal(t, -250.0, tj.TJArray[1].Adjustment)
	assert.Equal(t, "B", string(tj.TJArray[2].Text))
	assert.Equal(t, "C", string(tj.TJArray[3].Text))
}

func TestParseHexString(t *testing.T) {
	blocks, err := Parse([]byte("<48656C6C6F> Tj\n"))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Hello", string(blocks[0].Text))
}

func TestParseEscapedLiteral(t *testing.T) {
	blocks, err := Parse([]byte(`(Smith \050Jr.\051) Tj` + "\n"))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Smith (Jr.)", string(blocks[0].Text))
}

func TestParseSkipsInlineImage(t *testing.T) {
	data := []byte("BI /W 1 /H 1 /BPC 8 ID \x00\x01\x02 EI\n(after) Tj\n")
	blocks, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "after", string(blocks[0].Text))
}
