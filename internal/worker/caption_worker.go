package worker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
	"github.com/jhelwig/seneschal-program-sub001/internal/embed"
)

// CaptionPollInterval is how often an idle CaptionWorker checks for
// the next document with pending images.
const CaptionPollInterval = 2 * time.Second

// captionStore is the slice of *dbstore.Store the caption worker
// depends on, narrowed for testability.
type captionStore interface {
	GetNextPendingCaptioningDocument(ctx context.Context) (string, error)
	GetDocument(ctx context.Context, id string) (*dbstore.Document, error)
	GetImagesByDocument(ctx context.Context, documentID string) ([]*dbstore.Image, error)
	GetChunksByDocument(ctx context.Context, documentID string) ([]*dbstore.Chunk, error)
	SetImageCaption(ctx context.Context, id, caption string, embedding []float32) error
	SetImageStatus(ctx context.Context, id string, status dbstore.ImageStatus, errMsg string) error
	SetCaptionStatus(ctx context.Context, id string, status dbstore.CaptionStatus) error
	UpdateCaptionProgress(ctx context.Context, id string, progress, total int) error
}

var _ captionStore = (*dbstore.Store)(nil)

// Captioner describes an image in the context of a document title and
// surrounding page text. Matches (*embed.VisionClient).CaptionImage.
type Captioner interface {
	CaptionImage(ctx context.Context, imagePath, documentTitle, pageContext string) (string, error)
}

var _ Captioner = (*embed.VisionClient)(nil)

// CaptionWorker runs independently of, and strictly after,
// DocumentWorker's text extraction: it claims documents with at least
// one image in ImageStatusPending and captions them one at a time,
// using the same embedder that embeds chunk text so image and chunk
// vectors share a space.
type CaptionWorker struct {
	store     captionStore
	captioner Captioner
	embedder  embed.Embedder
	cancel    *CancelRegistry
	log       *slog.Logger
}

// NewCaptionWorker builds a caption worker.
func NewCaptionWorker(store *dbstore.Store, captioner Captioner, embedder embed.Embedder, cancel *CancelRegistry, log *slog.Logger) *CaptionWorker {
	return &CaptionWorker{store: store, captioner: captioner, embedder: embedder, cancel: cancel, log: log}
}

// Run polls for documents with pending images until ctx is cancelled,
// captioning at most one document's images per tick.
func (w *CaptionWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(CaptionPollInterval)
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

func (w *CaptionWorker) processNext(ctx context.Context) {
	documentID, err := w.store.GetNextPendingCaptioningDocument(ctx)
	if err != nil {
		w.log.Error("claiming next captioning document", "error", err)
		return
	}
	if documentID == "" {
		return
	}

	docCtx := w.cancel.Register(ctx, documentID)
	defer w.cancel.Release(documentID)

	if err := w.caption(docCtx, documentID); err != nil {
		if docCtx.Err() != nil {
			w.log.Info("captioning cancelled", "document_id", documentID)
			return
		}
		w.log.Error("captioning document failed", "document_id", documentID, "error", err)
		if setErr := w.store.SetCaptionStatus(ctx, documentID, dbstore.CaptionStatusFailed); setErr != nil {
			w.log.Error("recording captioning failure", "document_id", documentID, "error", setErr)
		}
	}
}

func (w *CaptionWorker) caption(ctx context.Context, documentID string) error {
	doc, err := w.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	if err := w.store.SetCaptionStatus(ctx, documentID, dbstore.CaptionStatusInProgress); err != nil {
		return err
	}

	images, err := w.store.GetImagesByDocument(ctx, documentID)
	if err != nil {
		return err
	}

	pageContext, err := w.buildPageContext(ctx, documentID)
	if err != nil {
		return err
	}

	total := len(images)
	done := 0
	var pending []*dbstore.Image
	for _, img := range images {
		if img.Status == dbstore.ImageStatusPending {
			pending = append(pending, img)
		} else {
			// Already captioned or skipped (background) from a prior,
			// interrupted run: credit it without re-describing it.
			done++
		}
	}
	if err := w.store.UpdateCaptionProgress(ctx, documentID, done, total); err != nil {
		return err
	}

	succeeded, attempted := 0, 0
	for _, img := range pending {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		attempted++
		caption, err := w.captioner.CaptionImage(ctx, img.FilePath, doc.Title, pageContext[img.PageNumber])
		if err != nil {
			w.log.Error("captioning image failed", "image_id", img.ID, "error", err)
			if setErr := w.store.SetImageStatus(ctx, img.ID, dbstore.ImageStatusFailed, err.Error()); setErr != nil {
				w.log.Error("recording image caption failure", "image_id", img.ID, "error", setErr)
			}
			done++
			if err := w.store.UpdateCaptionProgress(ctx, documentID, done, total); err != nil {
				return err
			}
			continue
		}

		vec, err := w.embedder.Embed(ctx, caption)
		if err != nil {
			w.log.Error("embedding image caption failed", "image_id", img.ID, "error", err)
			if setErr := w.store.SetImageStatus(ctx, img.ID, dbstore.ImageStatusFailed, err.Error()); setErr != nil {
				w.log.Error("recording image caption failure", "image_id", img.ID, "error", setErr)
			}
			done++
			if err := w.store.UpdateCaptionProgress(ctx, documentID, done, total); err != nil {
				return err
			}
			continue
		}

		if err := w.store.SetImageCaption(ctx, img.ID, caption, vec); err != nil {
			return err
		}
		succeeded++
		done++
		if err := w.store.UpdateCaptionProgress(ctx, documentID, done, total); err != nil {
			return err
		}
	}

	if attempted > 0 && succeeded == 0 {
		return w.store.SetCaptionStatus(ctx, documentID, dbstore.CaptionStatusFailed)
	}
	return w.store.SetCaptionStatus(ctx, documentID, dbstore.CaptionStatusCompleted)
}

// buildPageContext groups a document's chunk text by page number, so
// each image can be captioned with the prose surrounding it on the
// same page.
func (w *CaptionWorker) buildPageContext(ctx context.Context, documentID string) (map[int]string, error) {
	chunks, err := w.store.GetChunksByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	byPage := make(map[int][]string)
	for _, c := range chunks {
		byPage[c.PageNumber] = append(byPage[c.PageNumber], c.Content)
	}

	out := make(map[int]string, len(byPage))
	for page, parts := range byPage {
		out[page] = strings.Join(parts, "\n\n")
	}
	return out, nil
}
