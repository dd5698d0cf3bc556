package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhelwig/seneschal-program-sub001/internal/config"
	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
	"github.com/jhelwig/seneschal-program-sub001/internal/ingest"
	"github.com/jhelwig/seneschal-program-sub001/internal/pdfimage"
)

// fakeDocumentStore is an in-memory stand-in for *dbstore.Store,
// narrow enough to exercise DocumentWorker without a real database.
type fakeDocumentStore struct {
	pending *dbstore.Document

	chunks          map[string]*dbstore.Chunk
	images          []*dbstore.Image
	statuses        []statusCall
	phases          []phaseCall
	captionRequests []string
	deletedFor      []string
}

type statusCall struct {
	id     string
	status dbstore.DocumentStatus
	errMsg string
}

type phaseCall struct {
	id       string
	phase    string
	progress float64
}

func newFakeDocumentStore(doc *dbstore.Document) *fakeDocumentStore {
	return &fakeDocumentStore{pending: doc, chunks: make(map[string]*dbstore.Chunk)}
}

func (s *fakeDocumentStore) GetNextPendingDocument(ctx context.Context) (*dbstore.Document, error) {
	doc := s.pending
	s.pending = nil
	return doc, nil
}

func (s *fakeDocumentStore) UpdateDocumentProgress(ctx context.Context, id, phase string, progress float64) error {
	s.phases = append(s.phases, phaseCall{id, phase, progress})
	return nil
}

func (s *fakeDocumentStore) SetDocumentStatus(ctx context.Context, id string, status dbstore.DocumentStatus, errMsg string) error {
	s.statuses = append(s.statuses, statusCall{id, status, errMsg})
	return nil
}

func (s *fakeDocumentStore) RequestCaptioning(ctx context.Context, id, visionModel string) error {
	s.captionRequests = append(s.captionRequests, visionModel)
	return nil
}

func (s *fakeDocumentStore) InsertChunk(ctx context.Context, c *dbstore.Chunk) error {
	cp := *c
	s.chunks[c.ID] = &cp
	return nil
}

func (s *fakeDocumentStore) GetChunksWithoutEmbeddings(ctx context.Context, limit int) ([]*dbstore.Chunk, error) {
	var out []*dbstore.Chunk
	for _, c := range s.chunks {
		if c.Embedding == nil {
			out = append(out, c)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeDocumentStore) SetChunkEmbedding(ctx context.Context, id string, embedding []float32) error {
	c, ok := s.chunks[id]
	if !ok {
		return errors.New("unknown chunk")
	}
	c.Embedding = embedding
	return nil
}

func (s *fakeDocumentStore) DeleteImagesByDocument(ctx context.Context, documentID string) error {
	s.deletedFor = append(s.deletedFor, documentID)
	s.images = nil
	return nil
}

func (s *fakeDocumentStore) InsertImage(ctx context.Context, img *dbstore.Image) error {
	s.images = append(s.images, img)
	return nil
}

func (s *fakeDocumentStore) finalStatus() (dbstore.DocumentStatus, string) {
	if len(s.statuses) == 0 {
		return "", ""
	}
	last := s.statuses[len(s.statuses)-1]
	return last.status, last.errMsg
}

// fakeEmbedder returns a fixed-length zero vector, or an error if
// configured to fail.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}
func (f *fakeEmbedder) Dimensions() int             { return 2 }
func (f *fakeEmbedder) ModelName() string           { return "fake" }
func (f *fakeEmbedder) Available(ctx context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                { return nil }

// fakeImageExtractor returns a canned list of extracted images.
type fakeImageExtractor struct {
	records []pdfimage.Extracted
	err     error
}

func (f *fakeImageExtractor) Run(ctx context.Context, path string) ([]pdfimage.Extracted, error) {
	return f.records, f.err
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func hashOf(t *testing.T, path string) string {
	t.Helper()
	p, err := ingest.PrecheckFile(path, 0)
	require.NoError(t, err)
	return p.SHA256
}

func newTestWorker(store documentStore, embedder *fakeEmbedder, visionModel string) *DocumentWorker {
	w := &DocumentWorker{
		store:       store,
		embedder:    embedder,
		cancel:      NewCancelRegistry(),
		ingestion:   config.IngestionConfig{ChunkSize: 1500, ChunkOverlap: 0},
		images:      config.PDFImagesConfig{},
		visionModel: visionModel,
		log:         slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	}
	w.newExtractor = func(documentID string) imageExtractor { return &fakeImageExtractor{} }
	return w
}

func TestDocumentWorker_TextDocumentChunksEmbedsAndMarksReady(t *testing.T) {
	// Given: a markdown document on disk matching its recorded hash
	dir := t.TempDir()
	path := writeTestFile(t, dir, "rules.md", "Goblins attack at dawn.\n\nThey flee when outnumbered.")
	doc := &dbstore.Document{ID: "doc-1", Title: "Rules", Filename: "rules.md", Format: "markdown", SHA256: hashOf(t, path), SourcePath: path}

	store := newFakeDocumentStore(doc)
	w := newTestWorker(store, &fakeEmbedder{}, "")

	// When: processing the document
	w.processNext(context.Background())

	// Then: it has chunks, every chunk is embedded, and status is ready
	require.NotEmpty(t, store.chunks)
	for _, c := range store.chunks {
		assert.NotNil(t, c.Embedding)
	}
	status, errMsg := store.finalStatus()
	assert.Equal(t, dbstore.DocumentStatusReady, status)
	assert.Empty(t, errMsg)
	assert.Empty(t, store.captionRequests)
}

func TestDocumentWorker_NoPendingDocumentIsANoop(t *testing.T) {
	store := newFakeDocumentStore(nil)
	w := newTestWorker(store, &fakeEmbedder{}, "")

	w.processNext(context.Background())

	assert.Empty(t, store.statuses)
}

func TestDocumentWorker_HashMismatchFailsDocument(t *testing.T) {
	// Given: a document whose recorded hash no longer matches the file
	dir := t.TempDir()
	path := writeTestFile(t, dir, "rules.md", "new content")
	doc := &dbstore.Document{ID: "doc-1", Format: "markdown", SHA256: "stale-hash", SourcePath: path}

	store := newFakeDocumentStore(doc)
	w := newTestWorker(store, &fakeEmbedder{}, "")

	// When: processing it
	w.processNext(context.Background())

	// Then: it's marked failed, with no chunks inserted
	status, errMsg := store.finalStatus()
	assert.Equal(t, dbstore.DocumentStatusFailed, status)
	assert.NotEmpty(t, errMsg)
	assert.Empty(t, store.chunks)
}

func TestDocumentWorker_EmbeddingErrorFailsDocument(t *testing.T) {
	// Given: a valid document but a failing embedder
	dir := t.TempDir()
	path := writeTestFile(t, dir, "rules.md", "Goblins attack at dawn.")
	doc := &dbstore.Document{ID: "doc-1", Format: "markdown", SHA256: hashOf(t, path), SourcePath: path}

	store := newFakeDocumentStore(doc)
	w := newTestWorker(store, &fakeEmbedder{err: errors.New("connection refused")}, "")

	// When: processing it
	w.processNext(context.Background())

	// Then: it's marked failed
	status, errMsg := store.finalStatus()
	assert.Equal(t, dbstore.DocumentStatusFailed, status)
	assert.Contains(t, errMsg, "connection refused")
}

func TestDocumentWorker_FinishDocumentRequestsCaptioningWhenImagesAndModelPresent(t *testing.T) {
	store := newFakeDocumentStore(nil)
	w := newTestWorker(store, &fakeEmbedder{}, "llava")
	doc := &dbstore.Document{ID: "doc-1"}

	require.NoError(t, w.finishDocument(context.Background(), doc, true))

	status, _ := store.finalStatus()
	assert.Equal(t, dbstore.DocumentStatusReady, status)
	assert.Equal(t, []string{"llava"}, store.captionRequests)
}

func TestDocumentWorker_FinishDocumentSkipsCaptioningWithoutImages(t *testing.T) {
	store := newFakeDocumentStore(nil)
	w := newTestWorker(store, &fakeEmbedder{}, "llava")
	doc := &dbstore.Document{ID: "doc-1"}

	require.NoError(t, w.finishDocument(context.Background(), doc, false))

	assert.Empty(t, store.captionRequests)
}

func TestDocumentWorker_FinishDocumentSkipsCaptioningWithoutVisionModel(t *testing.T) {
	store := newFakeDocumentStore(nil)
	w := newTestWorker(store, &fakeEmbedder{}, "")
	doc := &dbstore.Document{ID: "doc-1"}

	require.NoError(t, w.finishDocument(context.Background(), doc, true))

	assert.Empty(t, store.captionRequests)
}

func TestDocumentWorker_ExtractImagesMarksBackgroundSkipped(t *testing.T) {
	// Given: an extractor that reports one individual and one
	// background image
	store := newFakeDocumentStore(nil)
	w := newTestWorker(store, &fakeEmbedder{}, "llava")
	w.newExtractor = func(documentID string) imageExtractor {
		return &fakeImageExtractor{records: []pdfimage.Extracted{
			{PageNumber: 0, ImageIndex: 0, Path: "/img/p1_0.png", Width: 400, Height: 300, ImageType: "individual"},
			{PageNumber: 0, ImageIndex: 1, Path: "/img/p1_bg.png", Width: 800, Height: 600, ImageType: "background", SourcePages: []int{1, 2, 3}},
		}}
	}
	doc := &dbstore.Document{ID: "doc-1", Format: "pdf", SourcePath: "/x.pdf"}

	// When: extracting images directly
	hasImages, err := w.extractImages(context.Background(), doc)

	// Then: both images are persisted, the background one is marked
	// skipped and flagged IsBackground, and pages are 1-indexed
	require.NoError(t, err)
	assert.True(t, hasImages)
	require.Len(t, store.images, 2)
	assert.Equal(t, 1, store.images[0].PageNumber)
	assert.False(t, store.images[0].IsBackground)
	assert.Equal(t, dbstore.ImageStatus(""), store.images[0].Status)
	assert.True(t, store.images[1].IsBackground)
	assert.Equal(t, dbstore.ImageStatusSkipped, store.images[1].Status)
}

func TestDocumentWorker_ReextractImagesDeletesExistingFirst(t *testing.T) {
	// Given: a document that already has images on record
	store := newFakeDocumentStore(nil)
	store.images = []*dbstore.Image{{ID: "old-img", DocumentID: "doc-1"}}
	w := newTestWorker(store, &fakeEmbedder{}, "")
	w.newExtractor = func(documentID string) imageExtractor { return &fakeImageExtractor{} }
	doc := &dbstore.Document{ID: "doc-1", Format: "pdf", SourcePath: "/x.pdf"}

	// When: re-extracting
	err := w.ReextractImages(context.Background(), doc)

	// Then: the old images were deleted before the new (empty) set ran,
	// and the document is marked ready again
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, store.deletedFor)
	status, _ := store.finalStatus()
	assert.Equal(t, dbstore.DocumentStatusReady, status)
}
