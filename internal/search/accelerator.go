package search

import (
	"context"
	"sync"

	"github.com/coder/hnsw"

	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
)

// chunkSource is the slice of chunkImageStore the accelerator needs to
// rebuild itself from the full embedded-chunk set.
type chunkSource interface {
	AllEmbeddedChunks(ctx context.Context) ([]*dbstore.Chunk, error)
}

// hnswAccelerator is an in-memory approximate nearest-neighbor index
// over embedded chunks. It stands in front of the brute-force cosine
// scan once the corpus outgrows EngineConfig.HNSWThreshold, trading
// exactness for speed on the dense leg of Search; the lexical leg and
// RRF fusion are unaffected either way.
type hnswAccelerator struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	byKey map[uint64]*dbstore.Chunk
	built int // embedded chunk count as of the last rebuild
}

func newHNSWAccelerator() *hnswAccelerator {
	return &hnswAccelerator{graph: freshHNSWGraph(), byKey: make(map[uint64]*dbstore.Chunk)}
}

func freshHNSWGraph() *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25
	return graph
}

// ensureFresh rebuilds the graph from scratch if the embedded chunk
// count has changed since the last build. A rebuild is O(n log n) in
// the corpus size, but only runs when the corpus has actually grown,
// never on every search.
func (a *hnswAccelerator) ensureFresh(ctx context.Context, source chunkSource) error {
	chunks, err := source.AllEmbeddedChunks(ctx)
	if err != nil {
		return err
	}

	a.mu.RLock()
	stale := len(chunks) != a.built
	a.mu.RUnlock()
	if !stale {
		return nil
	}

	graph := freshHNSWGraph()
	byKey := make(map[uint64]*dbstore.Chunk, len(chunks))
	for i, c := range chunks {
		key := uint64(i)
		graph.Add(hnsw.MakeNode(key, c.Embedding))
		byKey[key] = c
	}

	a.mu.Lock()
	a.graph = graph
	a.byKey = byKey
	a.built = len(chunks)
	a.mu.Unlock()
	return nil
}

// search returns up to k approximate nearest neighbors to query,
// restricted to documents present in allowed (nil means every
// document is visible). Since filtering happens after the ANN search,
// a filtered query over-fetches candidates from the graph.
func (a *hnswAccelerator) search(query []float32, k int, allowed map[string]bool) []dbstore.ChunkVectorResult {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.graph.Len() == 0 {
		return nil
	}

	fetch := k
	if allowed != nil {
		fetch = k * 4
	}

	nodes := a.graph.Search(query, fetch)
	results := make([]dbstore.ChunkVectorResult, 0, k)
	for _, node := range nodes {
		chunk, ok := a.byKey[node.Key]
		if !ok {
			continue
		}
		if allowed != nil && !allowed[chunk.DocumentID] {
			continue
		}
		distance := a.graph.Distance(query, node.Value)
		results = append(results, dbstore.ChunkVectorResult{Chunk: chunk, Score: 1 - distance/2})
		if len(results) >= k {
			break
		}
	}
	return results
}
