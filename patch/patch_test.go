/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

package patch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumeforge/pdfedit/cmap"
	"github.com/resumeforge/pdfedit/contentstream"
	"github.com/resumeforge/pdfedit/fontmetrics"
	"github.com/resumeforge/pdfedit/pdfcore"
	"github.com/resumeforge/pdfedit/pdfmodel"
	"github.com/resumeforge/pdfedit/span"
)

func identityFont() *fontmetrics.Font {
	codeToRune := make(map[cmap.CharCode]rune, 95)
	for c := cmap.CharCode(0x20); c <= 0x7e; c++ {
		codeToRune[c] = rune(c)
	}
	return fontmetrics.NewForTest(cmap.NewIdentity(codeToRune, 8), 600)
}

func buildDoc(t *testing.T, content string) (*pdfmodel.Document, []contentstream.ContentBlock) {
	t.Helper()
	blocks, err := contentstream.Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	stm := &pdfcore.Stream{Dictionary: pdfcore.MakeDict(), Raw: []byte(content)}
	page := &pdfmodel.PageData{
		Streams: []*pdfcore.ContentStreamObject{{ObjectNumber: 4, Stream: stm, Content: []byte(content)}},
		Blocks:  [][]contentstream.ContentBlock{blocks},
	}
	return &pdfmodel.Document{Pages: []*pdfmodel.PageData{page}}, blocks
}

func TestApplyRewritesSingleTjOperand(t *testing.T) {
	content := "BT /F1 12 Tf 72 700 Td (Hello World) Tj ET"
	doc, blocks := buildDoc(t, content)
	font := identityFont()

	spans := []span.TextSpan{{
		PageIndex: 0, StreamIndex: 0, ContentBlockIndex: blockIndexOf(blocks, "Tj"),
		Text: "Hello World", FontSize: 12,
	}}

	tgt := Target{
		ID: "bullet-1", PageIndex: 0, Spans: spans, NewText: "Hi Earth",
		Font: font, FontSize: 12, MaxWidth: 10000,
	}

	mods, changes, dropped := Apply(doc, []Target{tgt})
	require.Empty(t, dropped)
	require.Len(t, changes, 1)
	require.Len(t, mods, 1)
	assert.Contains(t, string(mods[0].NewContent), "(Hi Earth) Tj")
	assert.NotContains(t, string(mods[0].NewContent), "Hello World")
}

func TestApplyDropsOnProtectedContent(t *testing.T) {
	content := "BT /F1 12 Tf 72 700 Td (Since 2019) Tj ET"
	doc, blocks := buildDoc(t, content)
	font := identityFont()

	spans := []span.TextSpan{{
		PageIndex: 0, StreamIndex: 0, ContentBlockIndex: blockIndexOf(blocks, "Tj"),
		Text: "Since 2019", FontSize: 12,
	}}
	tgt := Target{ID: "bullet-2", PageIndex: 0, Spans: spans, NewText: "Since then", Font: font, FontSize: 12, MaxWidth: 10000}

	mods, changes, dropped := Apply(doc, []Target{tgt})
	assert.Empty(t, mods)
	assert.Empty(t, changes)
	require.Len(t, dropped, 1)
	assert.Equal(t, "ProtectedBoundary", dropped[0].Reason)
}

func TestApplyDropsOnBudgetExceeded(t *testing.T) {
	content := "BT /F1 12 Tf 72 700 Td (Hi) Tj ET"
	doc, blocks := buildDoc(t, content)
	font := identityFont()

	spans := []span.TextSpan{{
		PageIndex: 0, StreamIndex: 0, ContentBlockIndex: blockIndexOf(blocks, "Tj"),
		Text: "Hi", FontSize: 12,
	}}
	tgt := Target{
		ID: "bullet-3", PageIndex: 0, Spans: spans,
		NewText: strings.Repeat("way too much text to fit ", 20),
		Font:    font, FontSize: 12, MaxWidth: 1,
	}

	_, _, dropped := Apply(doc, []Target{tgt})
	require.Len(t, dropped, 1)
	assert.Equal(t, "BudgetExceeded", dropped[0].Reason)
}

func TestApplyRewritesEachWrappedLineIndependently(t *testing.T) {
	content := "BT /F1 12 Tf 72 700 Td (Built distributed) Tj ET\n" +
		"BT /F1 12 Tf 72 688 Td (backend systems) Tj ET"
	doc, blocks := buildDoc(t, content)
	font := identityFont()

	tjBlocks := blockIndicesOf(blocks, "Tj")
	require.Len(t, tjBlocks, 2)
	line1 := []span.TextSpan{{
		PageIndex: 0, StreamIndex: 0, ContentBlockIndex: tjBlocks[0],
		Text: "Built distributed", FontSize: 12,
	}}
	line2 := []span.TextSpan{{
		PageIndex: 0, StreamIndex: 0, ContentBlockIndex: tjBlocks[1],
		Text: "backend systems", FontSize: 12,
	}}

	w1, _ := font.MeasureText("Built distributed", 12)
	w2, _ := font.MeasureText("backend systems", 12)

	tgt := Target{
		ID: "bullet-wrapped", PageIndex: 0, Font: font, FontSize: 12,
		Lines: []LineTarget{
			{Spans: line1, NewText: "Shipped distributed", MaxWidth: w1 + 200},
			{Spans: line2, NewText: "backend platforms", MaxWidth: w2 + 200},
		},
	}

	mods, changes, dropped := Apply(doc, []Target{tgt})
	require.Empty(t, dropped)
	require.Len(t, changes, 1)
	require.Len(t, mods, 1)
	out := string(mods[0].NewContent)
	assert.Contains(t, out, "(Shipped distributed) Tj")
	assert.Contains(t, out, "(backend platforms) Tj")
	assert.NotContains(t, out, "Built distributed")
	assert.NotContains(t, out, "backend systems")
	assert.Equal(t, "Built distributed backend systems", changes[0].OriginalText)
	assert.Equal(t, "Shipped distributed backend platforms", changes[0].NewText)
}

func TestApplyDropsWrappedLineThatExceedsItsOwnBudget(t *testing.T) {
	content := "BT /F1 12 Tf 72 700 Td (Built distributed) Tj ET\n" +
		"BT /F1 12 Tf 72 688 Td (backend systems) Tj ET"
	doc, blocks := buildDoc(t, content)
	font := identityFont()

	tjBlocks := blockIndicesOf(blocks, "Tj")
	require.Len(t, tjBlocks, 2)
	line1 := []span.TextSpan{{PageIndex: 0, StreamIndex: 0, ContentBlockIndex: tjBlocks[0], Text: "Built distributed", FontSize: 12}}
	line2 := []span.TextSpan{{PageIndex: 0, StreamIndex: 0, ContentBlockIndex: tjBlocks[1], Text: "backend systems", FontSize: 12}}

	tgt := Target{
		ID: "bullet-wrapped-overflow", PageIndex: 0, Font: font, FontSize: 12,
		Lines: []LineTarget{
			{Spans: line1, NewText: "Shipped distributed", MaxWidth: 1},
			{Spans: line2, NewText: "backend platforms", MaxWidth: 1},
		},
	}

	_, _, dropped := Apply(doc, []Target{tgt})
	require.Len(t, dropped, 1)
	assert.Equal(t, "BudgetExceeded", dropped[0].Reason)
}

func blockIndexOf(blocks []contentstream.ContentBlock, op string) int {
	for i, b := range blocks {
		if b.Operator == op {
			return i
		}
	}
	return -1
}

func blockIndicesOf(blocks []contentstream.ContentBlock, op string) []int {
	var out []int
	for i, b := range blocks {
		if b.Operator == op {
			out = append(out, i)
		}
	}
	return out
}
