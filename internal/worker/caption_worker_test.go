package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
)

// fakeCaptionStore is an in-memory stand-in for *dbstore.Store, narrow
// enough to exercise CaptionWorker without a real database.
type fakeCaptionStore struct {
	nextDocumentID string
	doc            *dbstore.Document
	images         []*dbstore.Image
	chunks         []*dbstore.Chunk

	captionStatuses  []dbstore.CaptionStatus
	progressCalls    []struct{ progress, total int }
	imageStatusCalls []struct {
		id     string
		status dbstore.ImageStatus
		errMsg string
	}
}

func (s *fakeCaptionStore) GetNextPendingCaptioningDocument(ctx context.Context) (string, error) {
	id := s.nextDocumentID
	s.nextDocumentID = ""
	return id, nil
}

func (s *fakeCaptionStore) GetDocument(ctx context.Context, id string) (*dbstore.Document, error) {
	return s.doc, nil
}

func (s *fakeCaptionStore) GetImagesByDocument(ctx context.Context, documentID string) ([]*dbstore.Image, error) {
	return s.images, nil
}

func (s *fakeCaptionStore) GetChunksByDocument(ctx context.Context, documentID string) ([]*dbstore.Chunk, error) {
	return s.chunks, nil
}

func (s *fakeCaptionStore) SetImageCaption(ctx context.Context, id, caption string, embedding []float32) error {
	for _, img := range s.images {
		if img.ID == id {
			img.Caption = caption
			img.Embedding = embedding
			img.Status = dbstore.ImageStatusReady
		}
	}
	return nil
}

func (s *fakeCaptionStore) SetImageStatus(ctx context.Context, id string, status dbstore.ImageStatus, errMsg string) error {
	s.imageStatusCalls = append(s.imageStatusCalls, struct {
		id     string
		status dbstore.ImageStatus
		errMsg string
	}{id, status, errMsg})
	for _, img := range s.images {
		if img.ID == id {
			img.Status = status
		}
	}
	return nil
}

func (s *fakeCaptionStore) SetCaptionStatus(ctx context.Context, id string, status dbstore.CaptionStatus) error {
	s.captionStatuses = append(s.captionStatuses, status)
	return nil
}

func (s *fakeCaptionStore) UpdateCaptionProgress(ctx context.Context, id string, progress, total int) error {
	s.progressCalls = append(s.progressCalls, struct{ progress, total int }{progress, total})
	return nil
}

func (s *fakeCaptionStore) lastStatus() dbstore.CaptionStatus {
	if len(s.captionStatuses) == 0 {
		return ""
	}
	return s.captionStatuses[len(s.captionStatuses)-1]
}

// fakeCaptioner returns a fixed caption, or an error for paths it's
// configured to fail on.
type fakeCaptioner struct {
	failPaths map[string]bool
}

func (f *fakeCaptioner) CaptionImage(ctx context.Context, imagePath, documentTitle, pageContext string) (string, error) {
	if f.failPaths[imagePath] {
		return "", errors.New("vision model unavailable")
	}
	return "a goblin lurking in the shadows", nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCaptionWorker_CaptionsAllPendingImages(t *testing.T) {
	// Given: a document with two pending images
	store := &fakeCaptionStore{
		nextDocumentID: "doc-1",
		doc:            &dbstore.Document{ID: "doc-1", Title: "Bestiary"},
		images: []*dbstore.Image{
			{ID: "img-1", DocumentID: "doc-1", PageNumber: 1, FilePath: "/img/1.png", Status: dbstore.ImageStatusPending},
			{ID: "img-2", DocumentID: "doc-1", PageNumber: 2, FilePath: "/img/2.png", Status: dbstore.ImageStatusPending},
		},
	}
	w := NewCaptionWorker(nil, &fakeCaptioner{}, &fakeEmbedder{}, NewCancelRegistry(), newTestLogger())
	w.store = store

	// When: processing the document
	w.processNext(context.Background())

	// Then: both images are captioned and the document is completed
	assert.Equal(t, dbstore.ImageStatusReady, store.images[0].Status)
	assert.Equal(t, dbstore.ImageStatusReady, store.images[1].Status)
	assert.NotEmpty(t, store.images[0].Caption)
	assert.Equal(t, dbstore.CaptionStatusCompleted, store.lastStatus())
}

func TestCaptionWorker_NoDocumentPendingIsANoop(t *testing.T) {
	store := &fakeCaptionStore{}
	w := NewCaptionWorker(nil, &fakeCaptioner{}, &fakeEmbedder{}, NewCancelRegistry(), newTestLogger())
	w.store = store

	w.processNext(context.Background())

	assert.Empty(t, store.captionStatuses)
}

func TestCaptionWorker_SkipsAlreadyCompletedImages(t *testing.T) {
	// Given: one image already ready (from a prior interrupted run) and
	// one still pending
	store := &fakeCaptionStore{
		nextDocumentID: "doc-1",
		doc:            &dbstore.Document{ID: "doc-1", Title: "Bestiary"},
		images: []*dbstore.Image{
			{ID: "img-1", DocumentID: "doc-1", PageNumber: 1, FilePath: "/img/1.png", Status: dbstore.ImageStatusReady, Caption: "already described"},
			{ID: "img-2", DocumentID: "doc-1", PageNumber: 1, FilePath: "/img/2.png", Status: dbstore.ImageStatusPending},
		},
	}
	captioner := &fakeCaptioner{}
	w := NewCaptionWorker(nil, captioner, &fakeEmbedder{}, NewCancelRegistry(), newTestLogger())
	w.store = store

	// When: processing
	w.processNext(context.Background())

	// Then: the already-ready image keeps its caption untouched and the
	// pending one is described
	assert.Equal(t, "already described", store.images[0].Caption)
	assert.NotEmpty(t, store.images[1].Caption)
	assert.Equal(t, dbstore.CaptionStatusCompleted, store.lastStatus())
}

func TestCaptionWorker_PerImageFailureContinuesAndStillCompletes(t *testing.T) {
	// Given: two pending images, one of which the vision model fails on
	store := &fakeCaptionStore{
		nextDocumentID: "doc-1",
		doc:            &dbstore.Document{ID: "doc-1", Title: "Bestiary"},
		images: []*dbstore.Image{
			{ID: "img-1", DocumentID: "doc-1", PageNumber: 1, FilePath: "/img/1.png", Status: dbstore.ImageStatusPending},
			{ID: "img-2", DocumentID: "doc-1", PageNumber: 1, FilePath: "/img/2.png", Status: dbstore.ImageStatusPending},
		},
	}
	captioner := &fakeCaptioner{failPaths: map[string]bool{"/img/1.png": true}}
	w := NewCaptionWorker(nil, captioner, &fakeEmbedder{}, NewCancelRegistry(), newTestLogger())
	w.store = store

	// When: processing
	w.processNext(context.Background())

	// Then: the failed image is marked failed, the other succeeds, and
	// since at least one succeeded the document is still completed
	assert.Equal(t, dbstore.ImageStatusFailed, store.images[0].Status)
	assert.Equal(t, dbstore.ImageStatusReady, store.images[1].Status)
	assert.Equal(t, dbstore.CaptionStatusCompleted, store.lastStatus())
}

func TestCaptionWorker_AllImagesFailMarksDocumentFailed(t *testing.T) {
	// Given: a single pending image the vision model always fails on
	store := &fakeCaptionStore{
		nextDocumentID: "doc-1",
		doc:            &dbstore.Document{ID: "doc-1", Title: "Bestiary"},
		images: []*dbstore.Image{
			{ID: "img-1", DocumentID: "doc-1", PageNumber: 1, FilePath: "/img/1.png", Status: dbstore.ImageStatusPending},
		},
	}
	captioner := &fakeCaptioner{failPaths: map[string]bool{"/img/1.png": true}}
	w := NewCaptionWorker(nil, captioner, &fakeEmbedder{}, NewCancelRegistry(), newTestLogger())
	w.store = store

	w.processNext(context.Background())

	assert.Equal(t, dbstore.CaptionStatusFailed, store.lastStatus())
}

func TestCaptionWorker_BuildPageContextGroupsChunksByPage(t *testing.T) {
	store := &fakeCaptionStore{
		chunks: []*dbstore.Chunk{
			{ID: "c1", DocumentID: "doc-1", PageNumber: 1, Content: "first"},
			{ID: "c2", DocumentID: "doc-1", PageNumber: 1, Content: "second"},
			{ID: "c3", DocumentID: "doc-1", PageNumber: 2, Content: "third"},
		},
	}
	w := NewCaptionWorker(nil, &fakeCaptioner{}, &fakeEmbedder{}, NewCancelRegistry(), newTestLogger())
	w.store = store

	ctx, err := w.buildPageContext(context.Background(), "doc-1")

	require.NoError(t, err)
	assert.Equal(t, "first\n\nsecond", ctx[1])
	assert.Equal(t, "third", ctx[2])
}
