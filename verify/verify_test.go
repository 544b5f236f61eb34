/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumeforge/pdfedit/contentstream"
	"github.com/resumeforge/pdfedit/fontmetrics"
	"github.com/resumeforge/pdfedit/pdfcore"
	"github.com/resumeforge/pdfedit/pdfmodel"
	"github.com/resumeforge/pdfedit/protected"
	"github.com/resumeforge/pdfedit/span"
)

func buildPage(t *testing.T, content string) *pdfmodel.PageData {
	t.Helper()
	blocks, err := contentstream.Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	spans := []span.TextSpan{{
		Text: content, BBox: [4]float64{72, 700, 72 + float64(len(content))*6, 712},
	}}
	return &pdfmodel.PageData{
		Blocks: [][]contentstream.ContentBlock{blocks},
		Fonts:  map[pdfcore.Name]*fontmetrics.Font{"F1": {PostScript: "Helvetica"}},
		Spans:  spans,
	}
}

func TestVerifyProtectedFlagsDroppedDate(t *testing.T) {
	original := &pdfmodel.Document{Pages: []*pdfmodel.PageData{buildPage(t, "Worked there since 2019")}}
	output := &pdfmodel.Document{Pages: []*pdfmodel.PageData{buildPage(t, "Worked there for a while")}}

	r := Verify(original, output, nil)
	require.False(t, r.Protected.OK, "expected protected check to fail: year 2019 was dropped")
	assert.NotEmpty(t, r.Protected.Missing[protected.KindYear])
}

func TestVerifyProtectedPassesWhenDatePreserved(t *testing.T) {
	original := &pdfmodel.Document{Pages: []*pdfmodel.PageData{buildPage(t, "Worked there since 2019")}}
	output := &pdfmodel.Document{Pages: []*pdfmodel.PageData{buildPage(t, "Employed there since 2019")}}

	r := Verify(original, output, nil)
	assert.True(t, r.Protected.OK, "expected protected check to pass, missing=%+v", r.Protected.Missing)
}

func TestVerifyFontsFlagsDroppedFont(t *testing.T) {
	original := &pdfmodel.Document{Pages: []*pdfmodel.PageData{buildPage(t, "x")}}
	output := &pdfmodel.Document{Pages: []*pdfmodel.PageData{buildPage(t, "x")}}
	output.Pages[0].Fonts = map[pdfcore.Name]*fontmetrics.Font{}

	r := Verify(original, output, nil)
	require.False(t, r.Fonts.OK, "expected fonts check to fail: Helvetica was dropped")
	require.Len(t, r.Fonts.Missing[0], 1)
	assert.Equal(t, "Helvetica", r.Fonts.Missing[0][0])
}

func TestVerifyGarbledFlagsReplacementChar(t *testing.T) {
	doc := &pdfmodel.Document{Pages: []*pdfmodel.PageData{{
		Spans: []span.TextSpan{{Text: "Hello � World"}},
	}}}
	r := verifyGarbled(doc, nil)
	assert.False(t, r.OK, "expected garbled check to fail on replacement character")
}

func TestVerifyGarbledIgnoresUnchangedVocabulary(t *testing.T) {
	original := &pdfmodel.Document{Pages: []*pdfmodel.PageData{{
		Spans: []span.TextSpan{{Text: "Built APIs with JavaScript and GitHub Actions"}},
	}}}
	output := &pdfmodel.Document{Pages: []*pdfmodel.PageData{{
		Spans: []span.TextSpan{{Text: "Shipped APIs with JavaScript and GitHub Actions"}},
	}}}
	r := verifyGarbled(output, original)
	assert.True(t, r.OK, "unchanged resume tokens must not be flagged as garbled: %+v", r.Findings)
}

func TestVerifyGarbledFlagsUnknownMidWordBoundary(t *testing.T) {
	original := &pdfmodel.Document{Pages: []*pdfmodel.PageData{{
		Spans: []span.TextSpan{{Text: "Built APIs with JavaScript"}},
	}}}
	output := &pdfmodel.Document{Pages: []*pdfmodel.PageData{{
		Spans: []span.TextSpan{{Text: "Built APIs with JavaSmashedcript"}},
	}}}
	r := verifyGarbled(output, original)
	assert.False(t, r.OK, "expected a novel mid-word boundary absent from the original's vocabulary to be flagged")
}

func TestVerifyOverflowFlagsSpanPastMargin(t *testing.T) {
	doc := &pdfmodel.Document{Pages: []*pdfmodel.PageData{{
		Spans: []span.TextSpan{{Text: "overflowing", BBox: [4]float64{500, 700, 620, 712}}},
	}}}
	r := verifyOverflow(doc, []float64{600})
	assert.False(t, r.OK, "expected overflow check to fail: span right edge 620 > margin 600")
}

func TestVerifyMetadataByteIdentity(t *testing.T) {
	var report ProtectedReport
	VerifyMetadata(&report, nil, nil)
	assert.Equal(t, "true", report.Details["metadata_preserved"])
}
