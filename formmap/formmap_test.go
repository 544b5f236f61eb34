/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

package formmap

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHashStableAndSensitiveToBytes(t *testing.T) {
	a := []byte("%PDF-1.4 one")
	b := []byte("%PDF-1.4 two")
	assert.Equal(t, ContentHash(a), ContentHash(a), "same bytes must hash the same")
	assert.NotEqual(t, ContentHash(a), ContentHash(b), "different bytes must hash differently")
	assert.Len(t, ContentHash(a), 64, "blake2b-256 hex digest is 64 chars")
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Work Experience":  "work-experience",
		"SKILLS":           "skills",
		"Awards & Honors!": "awards-honors",
		"":                 "section",
	}
	for in, want := range cases {
		assert.Equal(t, want, slugify(in), "slugify(%q)", in)
	}
}

func TestMaxCharsFloorsAtEight(t *testing.T) {
	assert.Equal(t, 8, maxChars(""))
	assert.GreaterOrEqual(t, maxChars("hello world"), 11, "maxChars should allow growth over the original length")
}

func TestCharPerLine(t *testing.T) {
	assert.Equal(t, 0, charPerLine(nil))
	assert.Equal(t, 3, charPerLine([]string{"abcd", "ab"}))
}

func TestChunkFieldIDsPreservesOrder(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	chunks := ChunkFieldIDs(ids, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, "a", chunks[0][0])
	assert.Equal(t, "e", chunks[2][0])
}

func TestChunkFieldIDsNonPositiveSizeReturnsOneGroup(t *testing.T) {
	ids := []string{"a", "b", "c"}
	chunks := ChunkFieldIDs(ids, 0)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0], 3)
}

type fakeLLM struct {
	fail map[string]bool
}

func (f fakeLLM) Complete(_ context.Context, _, userPrompt string, _ int) (string, error) {
	if f.fail[userPrompt] {
		return "", errors.New("boom")
	}
	return "ok:" + userPrompt, nil
}

func TestBatchSubmitterGathersAllResultsEvenOnPartialFailure(t *testing.T) {
	llm := fakeLLM{fail: map[string]bool{"bad": true}}
	sub := NewBatchSubmitter(llm)
	batches := []Batch{
		{FieldIDs: []string{"experience-b1"}, Prompt: "good-1"},
		{FieldIDs: []string{"experience-b2"}, Prompt: "bad"},
		{FieldIDs: []string{"experience-b3"}, Prompt: "good-2"},
	}
	results := sub.Submit(context.Background(), "sys", batches, 500)
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	assert.Equal(t, "ok:good-1", results[0].Response)

	assert.Error(t, results[1].Err, "batch 1 should have failed")

	require.NoError(t, results[2].Err)
	assert.Equal(t, "ok:good-2", results[2].Response)
}

func TestVersionStoreLineageWalksToRoot(t *testing.T) {
	vs := NewVersionStore()
	vs.Put(&Version{ID: "v1"})
	vs.Put(&Version{ID: "v2", ParentID: "v1"})
	vs.Put(&Version{ID: "v3", ParentID: "v2"})

	chain := vs.Lineage("v3")
	require.Len(t, chain, 3)

	gotIDs := make([]string, len(chain))
	for i, v := range chain {
		gotIDs[i] = v.ID
	}
	if diff := cmp.Diff([]string{"v1", "v2", "v3"}, gotIDs); diff != "" {
		t.Errorf("lineage not oldest-first (-want +got):\n%s", diff)
	}
}
