// Package search provides hybrid search over document chunks and
// images, combining BM25 lexical scoring with dense vector similarity.
// Results are fused using Reciprocal Rank Fusion (RRF) for robust
// rank-based scoring across the two sources.
package search

import (
	"context"
	"time"

	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
)

// Engine provides hybrid search combining lexical (FTS5/BM25) and
// dense vector search over chunks, plus dense-only search over images.
type Engine interface {
	// Search runs a hybrid dense+lexical query over chunks and returns
	// results fused by RRF and sorted best-first.
	Search(ctx context.Context, query string, opts Options) ([]*ChunkResult, error)

	// SearchText runs lexical-only search over chunks, delegating
	// straight to the FTS5 index.
	SearchText(ctx context.Context, query string, opts Options) ([]*ChunkResult, error)

	// SearchImages runs dense-only search over captioned image
	// embeddings.
	SearchImages(ctx context.Context, query string, opts Options) ([]*ImageResult, error)
}

// Options configures a search query: result limit and access control.
type Options struct {
	// Limit caps the number of results returned. Zero uses the
	// engine's configured default.
	Limit int

	// Section restricts lexical search to chunks with this section
	// title (SearchText only; empty means no restriction).
	Section string

	// DocumentID restricts lexical search to a single document
	// (SearchText only; empty means no restriction).
	DocumentID string

	// AllowedTags restricts results to documents whose access tags
	// intersect this set. Nil/empty means every document is visible.
	AllowedTags []string
}

// ChunkResult is one fused chunk hit: the chunk row plus its fusion
// score and the individual source scores that fed it.
type ChunkResult struct {
	Chunk *dbstore.Chunk

	// Score is the combined, normalized result score (0-1). For
	// Search this is the RRF score; for SearchText it is the BM25
	// score as-is (no fusion occurred).
	Score float64

	BM25Score float64
	BM25Rank  int

	VecScore float64
	VecRank  int

	InBothLists bool
}

// ImageResult is one image hit from dense-only image search.
type ImageResult struct {
	Image *dbstore.Image
	Score float32
}

// EngineConfig configures the search engine's defaults. Callers
// normally build this from config.SearchConfig via NewConfig.
type EngineConfig struct {
	// DefaultLimit is used when Options.Limit is zero.
	DefaultLimit int

	// LexicalWeight and DenseWeight are the RRF fusion weights; they
	// should sum to 1.0.
	LexicalWeight float64
	DenseWeight   float64

	// RRFConstant is the RRF smoothing constant k.
	RRFConstant int

	// SearchTimeout bounds how long a single Search call may run.
	SearchTimeout time.Duration

	// UseHNSW enables the in-memory HNSW accelerator for the dense leg
	// of Search once the embedded chunk count exceeds HNSWThreshold.
	UseHNSW bool

	// HNSWThreshold is the chunk-embedding count above which UseHNSW
	// actually kicks in; below it brute force stays exact.
	HNSWThreshold int
}

// DefaultEngineConfig returns sensible defaults, used when no
// config.SearchConfig is supplied.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit:  10,
		LexicalWeight: 0.35,
		DenseWeight:   0.65,
		RRFConstant:   DefaultRRFConstant,
		SearchTimeout: 5 * time.Second,
		HNSWThreshold: 50000,
	}
}
