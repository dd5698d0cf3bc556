package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jhelwig/seneschal-program-sub001/internal/chunker"
	"github.com/jhelwig/seneschal-program-sub001/internal/config"
	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
	"github.com/jhelwig/seneschal-program-sub001/internal/embed"
	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
	"github.com/jhelwig/seneschal-program-sub001/internal/extract"
	"github.com/jhelwig/seneschal-program-sub001/internal/ingest"
	"github.com/jhelwig/seneschal-program-sub001/internal/pdfimage"
)

// DocumentPollInterval is how often an idle DocumentWorker checks for
// the next pending document.
const DocumentPollInterval = 2 * time.Second

// embeddingBatchSize bounds how many un-embedded chunks a single pass
// of the embedding phase fetches at once.
const embeddingBatchSize = 64

// documentStore is the slice of *dbstore.Store the document worker
// depends on, narrowed so tests can substitute a fake instead of a
// real database.
type documentStore interface {
	GetNextPendingDocument(ctx context.Context) (*dbstore.Document, error)
	UpdateDocumentProgress(ctx context.Context, id, phase string, progress float64) error
	SetDocumentStatus(ctx context.Context, id string, status dbstore.DocumentStatus, errMsg string) error
	RequestCaptioning(ctx context.Context, id, visionModel string) error
	InsertChunk(ctx context.Context, c *dbstore.Chunk) error
	GetChunksWithoutEmbeddings(ctx context.Context, limit int) ([]*dbstore.Chunk, error)
	SetChunkEmbedding(ctx context.Context, id string, embedding []float32) error
	DeleteImagesByDocument(ctx context.Context, documentID string) error
	InsertImage(ctx context.Context, img *dbstore.Image) error
}

var _ documentStore = (*dbstore.Store)(nil)

// imageExtractor runs PDF image extraction for one document. Matches
// (*pdfimage.Extractor).Run so a fake can stand in for tests.
type imageExtractor interface {
	Run(ctx context.Context, path string) ([]pdfimage.Extracted, error)
}

// DocumentWorker claims pending documents one at a time and runs them
// through text extraction, chunking, embedding, and (for PDFs) image
// extraction, per the state machine: pending -> extracting ->
// chunking -> embedding -> extracting_images? -> ready, or -> failed
// on any error.
type DocumentWorker struct {
	store     documentStore
	embedder  embed.Embedder
	cancel    *CancelRegistry
	ingestion config.IngestionConfig
	images    config.PDFImagesConfig
	imagesDir string
	visionModel string
	log       *slog.Logger

	// newExtractor builds the image extraction pipeline for a given
	// document id. Overridable in tests; defaults to the real
	// poppler/pdfium/qpdf-backed pipeline.
	newExtractor func(documentID string) imageExtractor
}

// NewDocumentWorker builds a document worker wired to a real store,
// embedder, and PDF image extraction pipeline. visionModel is the
// model name recorded against documents as they complete, and may be
// empty to mean "captioning not configured" (GetNextPendingDocument's
// caller should still avoid enabling this when no vision model is
// reachable).
func NewDocumentWorker(store *dbstore.Store, embedder embed.Embedder, cancel *CancelRegistry, ingestion config.IngestionConfig, images config.PDFImagesConfig, imagesDir, visionModel string, log *slog.Logger) *DocumentWorker {
	w := &DocumentWorker{
		store:       store,
		embedder:    embedder,
		cancel:      cancel,
		ingestion:   ingestion,
		images:      images,
		imagesDir:   imagesDir,
		visionModel: visionModel,
		log:         log,
	}
	w.newExtractor = func(documentID string) imageExtractor {
		return &pdfimage.Extractor{
			Raster:     pdfimage.PopplerCLI{},
			Content:    pdfimage.PdfiumCLI{},
			Streams:    pdfimage.QPDFContentStreamReader{},
			Saver:      pdfimage.PNGSaver{},
			DocumentID: documentID,
			ImagesDir:  imagesDir,
			Thresholds: pdfimage.Thresholds{
				BackgroundMinPages:      images.BackgroundMinPages,
				BackgroundAreaThreshold: images.BackgroundAreaThreshold,
				TextOverlapMinDPI:       images.TextOverlapMinDPI,
			},
			Logger: log,
		}
	}
	return w
}

// Run polls for pending documents until ctx is cancelled, processing
// at most one document per tick.
func (w *DocumentWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(DocumentPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processNext(ctx)
		}
	}
}

// processNext claims and processes a single document, if one is
// pending. It never returns an error: failures are recorded on the
// document row and logged.
func (w *DocumentWorker) processNext(ctx context.Context) {
	doc, err := w.store.GetNextPendingDocument(ctx)
	if err != nil {
		w.log.Error("claiming next pending document", "error", err)
		return
	}
	if doc == nil {
		return
	}

	docCtx := w.cancel.Register(ctx, doc.ID)
	defer w.cancel.Release(doc.ID)

	if err := w.process(docCtx, doc); err != nil {
		if docCtx.Err() != nil {
			w.log.Info("document processing cancelled", "document_id", doc.ID)
			return
		}
		w.log.Error("document processing failed", "document_id", doc.ID, "error", err)
		if setErr := w.store.SetDocumentStatus(ctx, doc.ID, dbstore.DocumentStatusFailed, err.Error()); setErr != nil {
			w.log.Error("recording document failure", "document_id", doc.ID, "error", setErr)
		}
	}
}

func (w *DocumentWorker) process(ctx context.Context, doc *dbstore.Document) error {
	precheck, err := ingest.PrecheckFile(doc.SourcePath, w.ingestion.MaxFileSizeBytes)
	if err != nil {
		return err
	}
	if precheck.SHA256 != doc.SHA256 {
		return senerrors.InvalidRequest("source file changed on disk since ingestion: " + doc.SourcePath)
	}

	sections, err := extract.Extract(doc.SourcePath, ingest.Format(doc.Format))
	if err != nil {
		return err
	}

	if err := w.chunkDocument(ctx, doc, sections); err != nil {
		return err
	}

	if err := w.embedDocument(ctx, doc); err != nil {
		return err
	}

	hasImages := false
	if ingest.Format(doc.Format) == ingest.FormatPDF {
		var err error
		hasImages, err = w.extractImages(ctx, doc)
		if err != nil {
			return err
		}
	}

	return w.finishDocument(ctx, doc, hasImages)
}

// finishDocument marks doc ready and, if it produced any images and a
// vision model is configured, requests the captioning pass that
// CaptionWorker will later pick up.
func (w *DocumentWorker) finishDocument(ctx context.Context, doc *dbstore.Document, hasImages bool) error {
	if err := w.store.SetDocumentStatus(ctx, doc.ID, dbstore.DocumentStatusReady, ""); err != nil {
		return err
	}

	if hasImages && w.visionModel != "" {
		if err := w.store.RequestCaptioning(ctx, doc.ID, w.visionModel); err != nil {
			w.log.Error("requesting captioning pass", "document_id", doc.ID, "error", err)
		}
	}
	return nil
}

func (w *DocumentWorker) chunkDocument(ctx context.Context, doc *dbstore.Document, sections []extract.Section) error {
	if err := w.store.UpdateDocumentProgress(ctx, doc.ID, "chunking", 0); err != nil {
		return err
	}

	chunks := chunker.ChunkSections(sections, w.ingestion.ChunkSize, w.ingestion.ChunkOverlap)
	total := len(chunks)
	for i, c := range chunks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		row := &dbstore.Chunk{
			ID:           uuid.NewString(),
			DocumentID:   doc.ID,
			ChunkIndex:   c.ChunkIndex,
			Content:      c.Content,
			SectionTitle: c.SectionTitle,
			PageNumber:   c.PageNumber,
		}
		if err := w.store.InsertChunk(ctx, row); err != nil {
			return err
		}

		if total > 0 {
			progress := float64(i+1) / float64(total)
			if err := w.store.UpdateDocumentProgress(ctx, doc.ID, "chunking", progress); err != nil {
				return err
			}
		}
	}
	return nil
}

// embedDocument embeds every chunk of doc that doesn't already have an
// embedding, in batches, so a restarted worker resumes rather than
// re-embedding a document's already-embedded chunks.
func (w *DocumentWorker) embedDocument(ctx context.Context, doc *dbstore.Document) error {
	if err := w.store.UpdateDocumentProgress(ctx, doc.ID, "embedding", 0); err != nil {
		return err
	}

	var embedded, total int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pending, err := w.store.GetChunksWithoutEmbeddings(ctx, embeddingBatchSize)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			break
		}
		if total == 0 {
			// First batch: use its size as a lower-bound denominator so
			// progress is never reported as complete while chunks remain.
			total = len(pending)
		}

		for _, c := range pending {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			vec, err := w.embedder.Embed(ctx, c.Content)
			if err != nil {
				return senerrors.EmbeddingGeneration("embedding chunk "+c.ID, err)
			}
			if err := w.store.SetChunkEmbedding(ctx, c.ID, vec); err != nil {
				return err
			}
			embedded++
			if err := w.store.UpdateDocumentProgress(ctx, doc.ID, "embedding", float64(embedded)/float64(total)); err != nil {
				return err
			}
		}
		if len(pending) < embeddingBatchSize {
			break
		}
		total += len(pending)
	}
	return nil
}

// extractImages runs the PDF image extraction pipeline and persists
// every resulting image row. Returns whether any image was produced.
func (w *DocumentWorker) extractImages(ctx context.Context, doc *dbstore.Document) (bool, error) {
	if err := w.store.UpdateDocumentProgress(ctx, doc.ID, "extracting_images", 0); err != nil {
		return false, err
	}

	extracted, err := w.newExtractor(doc.ID).Run(ctx, doc.SourcePath)
	if err != nil {
		return false, err
	}

	total := len(extracted)
	for i, rec := range extracted {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		img := &dbstore.Image{
			ID:          id,
			DocumentID:  doc.ID,
			PageNumber:  rec.PageNumber + 1, // pdfimage pages are 0-indexed; chunks are 1-indexed
			ImageIndex:  rec.ImageIndex,
			FilePath:    rec.Path,
			Width:       rec.Width,
			Height:      rec.Height,
			ImageType:   dbstore.ImageType(rec.ImageType),
			SourcePages: rec.SourcePages,
			HasRegionRender: rec.HasRegionRender,
			SourceImageID:   rec.SourceImageID,
		}
		if rec.ImageType == "background" {
			img.IsBackground = true
			img.Status = dbstore.ImageStatusSkipped
		}
		if err := w.store.InsertImage(ctx, img); err != nil {
			return false, err
		}

		if total > 0 {
			if err := w.store.UpdateDocumentProgress(ctx, doc.ID, "extracting_images", float64(i+1)/float64(total)); err != nil {
				return false, err
			}
		}
	}
	return total > 0, nil
}

// ReextractImages resets a document's images for re-extraction: every
// existing image row (and its backing file, best-effort) is deleted
// and the document is put back through the extracting_images phase.
// Used by the document-re-extract API operation, not by the poll loop.
func (w *DocumentWorker) ReextractImages(ctx context.Context, doc *dbstore.Document) error {
	if err := w.store.DeleteImagesByDocument(ctx, doc.ID); err != nil {
		return err
	}
	if err := w.store.UpdateDocumentProgress(ctx, doc.ID, "extracting_images", 0); err != nil {
		return err
	}

	docCtx := w.cancel.Register(ctx, doc.ID)
	defer w.cancel.Release(doc.ID)

	hasImages, err := w.extractImages(docCtx, doc)
	if err != nil {
		if setErr := w.store.SetDocumentStatus(ctx, doc.ID, dbstore.DocumentStatusFailed, err.Error()); setErr != nil {
			w.log.Error("recording re-extraction failure", "document_id", doc.ID, "error", setErr)
		}
		return err
	}

	return w.finishDocument(ctx, doc, hasImages)
}
