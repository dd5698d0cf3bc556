package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
)

type fakeStore struct {
	fts    []dbstore.ChunkFTSResult
	vec    []dbstore.ChunkVectorResult
	images []dbstore.ImageVectorResult
	ftsErr error
	vecErr error
}

func (f *fakeStore) SearchChunksFTS(ctx context.Context, query string, allowedTags []string, limit int) ([]dbstore.ChunkFTSResult, error) {
	if f.ftsErr != nil {
		return nil, f.ftsErr
	}
	return f.fts, nil
}

func (f *fakeStore) SearchChunksByEmbedding(ctx context.Context, query []float32, allowedTags []string, limit int) ([]dbstore.ChunkVectorResult, error) {
	if f.vecErr != nil {
		return nil, f.vecErr
	}
	return f.vec, nil
}

func (f *fakeStore) SearchImagesByEmbedding(ctx context.Context, query []float32, limit int) ([]dbstore.ImageVectorResult, error) {
	return f.images, nil
}

func (f *fakeStore) CountEmbeddedChunks(ctx context.Context) (int, error) {
	return len(f.vec), nil
}

func (f *fakeStore) AllEmbeddedChunks(ctx context.Context) ([]*dbstore.Chunk, error) {
	chunks := make([]*dbstore.Chunk, len(f.vec))
	for i, v := range f.vec {
		chunks[i] = v.Chunk
	}
	return chunks, nil
}

func (f *fakeStore) AllowedDocumentIDs(ctx context.Context, allowedTags []string) (map[string]bool, error) {
	return nil, nil
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}
func (f *fakeEmbedder) Dimensions() int            { return len(f.vec) }
func (f *fakeEmbedder) ModelName() string          { return "fake" }
func (f *fakeEmbedder) Available(ctx context.Context) bool { return true }
func (f *fakeEmbedder) Close() error               { return nil }

func newTestEngine(t *testing.T, store *fakeStore, emb *fakeEmbedder) Engine {
	t.Helper()
	e, err := newHybridEngine(store, emb, EngineConfig{
		DefaultLimit:  10,
		LexicalWeight: 0.35,
		DenseWeight:   0.65,
		RRFConstant:   60,
		SearchTimeout: time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("newHybridEngine() error = %v", err)
	}
	return e
}

func chunk(id, section string, page int) *dbstore.Chunk {
	return &dbstore.Chunk{ID: id, SectionTitle: section, PageNumber: page, Content: "content for " + id}
}

func TestEngineSearchFusesBothSources(t *testing.T) {
	c1 := chunk("c1", "Combat", 10)
	c2 := chunk("c2", "Combat", 11)

	store := &fakeStore{
		fts: []dbstore.ChunkFTSResult{{Chunk: c1, Score: 5.0}},
		vec: []dbstore.ChunkVectorResult{{Chunk: c2, Score: 0.9}, {Chunk: c1, Score: 0.5}},
	}
	e := newTestEngine(t, store, &fakeEmbedder{vec: []float32{0.1, 0.2}})

	results, err := e.Search(context.Background(), "attack roll", Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 fused results, got %d", len(results))
	}
	// c1 appears in both lists, should outrank c2 which is vector-only.
	if results[0].Chunk.ID != "c1" {
		t.Errorf("expected c1 to rank first (in both lists), got %s", results[0].Chunk.ID)
	}
	if !results[0].InBothLists {
		t.Errorf("expected c1 to be marked InBothLists")
	}
}

func TestEngineSearchRespectsLimit(t *testing.T) {
	store := &fakeStore{
		fts: []dbstore.ChunkFTSResult{
			{Chunk: chunk("c1", "A", 1), Score: 3},
			{Chunk: chunk("c2", "A", 2), Score: 2},
			{Chunk: chunk("c3", "A", 3), Score: 1},
		},
	}
	e := newTestEngine(t, store, &fakeEmbedder{vec: []float32{0.1}})

	results, err := e.Search(context.Background(), "fireball", Options{Limit: 2})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected limit of 2 results, got %d", len(results))
	}
}

func TestEngineSearchPropagatesEmbedderError(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(t, store, &fakeEmbedder{err: errors.New("embedder down")})

	if _, err := e.Search(context.Background(), "query", Options{}); err == nil {
		t.Fatal("expected error when embedder fails")
	}
}

func TestEngineSearchTextFiltersBySection(t *testing.T) {
	store := &fakeStore{
		fts: []dbstore.ChunkFTSResult{
			{Chunk: chunk("c1", "Combat", 1), Score: 2},
			{Chunk: chunk("c2", "Magic", 2), Score: 1},
		},
	}
	e := newTestEngine(t, store, &fakeEmbedder{})

	results, err := e.SearchText(context.Background(), "roll", Options{Section: "Combat"})
	if err != nil {
		t.Fatalf("SearchText() error = %v", err)
	}
	if len(results) != 1 || results[0].Chunk.ID != "c1" {
		t.Fatalf("expected only c1 to survive section filter, got %+v", results)
	}
}

func TestEngineSearchUsesAcceleratorOnceThresholdCrossed(t *testing.T) {
	c1 := chunk("c1", "Combat", 1)
	c1.Embedding = []float32{1, 0}
	store := &fakeStore{
		vec: []dbstore.ChunkVectorResult{{Chunk: c1, Score: 0.5}},
	}

	e, err := newHybridEngine(store, &fakeEmbedder{vec: []float32{1, 0}}, EngineConfig{
		DefaultLimit:  10,
		LexicalWeight: 0.35,
		DenseWeight:   0.65,
		RRFConstant:   60,
		SearchTimeout: time.Second,
		UseHNSW:       true,
		HNSWThreshold: 1,
	}, nil)
	if err != nil {
		t.Fatalf("newHybridEngine() error = %v", err)
	}

	results, err := e.Search(context.Background(), "attack roll", Options{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Chunk.ID != "c1" {
		t.Fatalf("expected c1 via the accelerator path, got %+v", results)
	}
}

func TestEngineSearchImagesReturnsScores(t *testing.T) {
	store := &fakeStore{
		images: []dbstore.ImageVectorResult{
			{Image: &dbstore.Image{ID: "img1"}, Score: 0.8},
		},
	}
	e := newTestEngine(t, store, &fakeEmbedder{vec: []float32{0.1}})

	results, err := e.SearchImages(context.Background(), "a dragon", Options{})
	if err != nil {
		t.Fatalf("SearchImages() error = %v", err)
	}
	if len(results) != 1 || results[0].Image.ID != "img1" {
		t.Fatalf("expected img1 result, got %+v", results)
	}
}
