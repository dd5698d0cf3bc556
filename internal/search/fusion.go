// Package search provides hybrid search functionality combining BM25 and semantic search.
// Results are fused using Reciprocal Rank Fusion (RRF).
package search

import (
	"sort"

	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains (used by Azure AI Search, OpenSearch, etc.).
const DefaultRRFConstant = 60

// RRFFusion combines lexical (FTS5/BM25) and vector search results
// using Reciprocal Rank Fusion.
//
// Algorithm: RRF_score(d) = Σ weight_i / (k + rank_i)
//
// Where:
//   - k = smoothing constant (default: 60)
//   - rank_i = position in ranked list i (1-indexed)
//   - weight_i = weight for search source i
type RRFFusion struct {
	K int // RRF smoothing constant (default: 60)
}

// NewRRFFusion creates a new RRF fusion instance with default k=60.
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K: DefaultRRFConstant}
}

// NewRRFFusionWithK creates a new RRF fusion with custom k value.
// If k <= 0, defaults to 60.
func NewRRFFusionWithK(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse combines FTS and vector chunk results using Reciprocal Rank
// Fusion.
//
// Chunks appearing in only one list use missing_rank = max(len(fts),
// len(vec)) + 1 for the missing source's contribution.
//
// Results are sorted by: RRFScore (desc) → InBothLists (true first) → BM25Score (desc) → chunk ID (asc)
func (f *RRFFusion) Fuse(
	fts []dbstore.ChunkFTSResult,
	vec []dbstore.ChunkVectorResult,
	lexicalWeight, denseWeight float64,
) []*ChunkResult {
	if len(fts) == 0 && len(vec) == 0 {
		return []*ChunkResult{}
	}

	capacity := len(fts) + len(vec)
	scores := make(map[string]*ChunkResult, capacity)

	for rank, r := range fts {
		result := f.getOrCreate(scores, r.Chunk)
		result.BM25Score = r.Score
		result.BM25Rank = rank + 1
		result.Score += lexicalWeight / float64(f.K+rank+1)
	}

	for rank, r := range vec {
		result := f.getOrCreate(scores, r.Chunk)
		result.VecScore = float64(r.Score)
		result.VecRank = rank + 1
		result.Score += denseWeight / float64(f.K+rank+1)

		if result.BM25Rank > 0 {
			result.InBothLists = true
		}
	}

	missingRank := f.calculateMissingRank(len(fts), len(vec))
	for _, r := range scores {
		if r.BM25Rank == 0 && r.VecRank > 0 {
			r.Score += lexicalWeight / float64(f.K+missingRank)
		}
		if r.VecRank == 0 && r.BM25Rank > 0 {
			r.Score += denseWeight / float64(f.K+missingRank)
		}
	}

	results := f.toSortedSlice(scores)
	f.normalize(results)

	return results
}

// getOrCreate returns the existing fused result for a chunk or
// creates a new one, keyed by chunk ID.
func (f *RRFFusion) getOrCreate(m map[string]*ChunkResult, c *dbstore.Chunk) *ChunkResult {
	if r, ok := m[c.ID]; ok {
		return r
	}
	r := &ChunkResult{Chunk: c}
	m[c.ID] = r
	return r
}

// calculateMissingRank returns the rank assigned to a chunk absent
// from one of the two source lists.
func (f *RRFFusion) calculateMissingRank(ftsLen, vecLen int) int {
	if ftsLen > vecLen {
		return ftsLen + 1
	}
	return vecLen + 1
}

// toSortedSlice converts the fusion map to a slice sorted by compare.
func (f *RRFFusion) toSortedSlice(m map[string]*ChunkResult) []*ChunkResult {
	results := make([]*ChunkResult, 0, len(m))
	for _, r := range m {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		return f.compare(results[i], results[j])
	})

	return results
}

// compare implements deterministic comparison for sorting.
// Returns true if a should rank before b.
//
// Priority:
//  1. Higher RRF score
//  2. In both lists (true before false)
//  3. Higher BM25 score (exact match indicator)
//  4. Lexicographically smaller chunk ID (deterministic)
func (f *RRFFusion) compare(a, b *ChunkResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.InBothLists != b.InBothLists {
		return a.InBothLists
	}
	if a.BM25Score != b.BM25Score {
		return a.BM25Score > b.BM25Score
	}
	return a.Chunk.ID < b.Chunk.ID
}

// normalize scales all RRF scores to 0-1 range, using the maximum
// score in the slice as the reference (becomes 1.0).
func (f *RRFFusion) normalize(results []*ChunkResult) {
	if len(results) == 0 {
		return
	}

	maxScore := results[0].Score
	if maxScore == 0 {
		return
	}

	for _, r := range results {
		r.Score = r.Score / maxScore
	}
}
