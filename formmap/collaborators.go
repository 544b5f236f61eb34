/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

package formmap

import (
	"context"
	"sync"
)

// LLM is the one collaborator interface the driver calls out to; prompt
// construction and response parsing are entirely the driver's concern, the
// interface itself is opaque request/response.
type LLM interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// ObjectStore is the persistence collaborator for source/output PDF bytes
// and cached FormMap snapshots, keyed by content hash.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Batch is one independent group of field ids to submit to an LLM call
// together, carrying whatever prompt text the driver built for them.
type Batch struct {
	FieldIDs []string
	Prompt   string
}

// BatchResult is one batch's outcome: either the raw completion text to
// parse, or the error that call failed with.
type BatchResult struct {
	Batch    Batch
	Response string
	Err      error
}

// BatchSubmitter runs independent LLM batches concurrently and gathers
// every result, success or failure, rather than stopping at the first
// error: one bad batch (a timeout, a malformed response) shouldn't block
// the other sections' edits from going through. This mirrors the source's
// own batching of bullets into fixed-size groups dispatched together and
// awaited as a set, translated from asyncio.gather into a WaitGroup
// fan-in; the batch count here is small enough (bullets/skills/titles,
// each split into a handful of sub-batches) that a dedicated worker-pool
// library would be more machinery than the job needs.
type BatchSubmitter struct {
	llm LLM
}

// NewBatchSubmitter builds a submitter against one LLM collaborator.
func NewBatchSubmitter(llm LLM) *BatchSubmitter {
	return &BatchSubmitter{llm: llm}
}

// Submit runs every batch concurrently, all sharing ctx, and returns one
// BatchResult per input batch in the same order
// they were given (not the order they complete in).
func (s *BatchSubmitter) Submit(ctx context.Context, systemPrompt string, batches []Batch, maxTokensPerBatch int) []BatchResult {
	results := make([]BatchResult, len(batches))
	var wg sync.WaitGroup
	wg.Add(len(batches))
	for i, b := range batches {
		go func(i int, b Batch) {
			defer wg.Done()
			resp, err := s.llm.Complete(ctx, systemPrompt, b.Prompt, maxTokensPerBatch)
			results[i] = BatchResult{Batch: b, Response: resp, Err: err}
		}(i, b)
	}
	wg.Wait()
	return results
}

// ChunkFieldIDs splits ids into groups of at most size, preserving order;
// size <= 0 returns a single group.
func ChunkFieldIDs(ids []string, size int) [][]string {
	if size <= 0 || size >= len(ids) {
		return [][]string{ids}
	}
	var out [][]string
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[i:end])
	}
	return out
}
