package dbstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

// DocumentStatus is the lifecycle state of an ingested document.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusExtracting DocumentStatus = "extracting"
	DocumentStatusChunking   DocumentStatus = "chunking"
	DocumentStatusEmbedding  DocumentStatus = "embedding"
	DocumentStatusReady      DocumentStatus = "ready"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// CaptionStatus is the lifecycle state of a document's image
// captioning pass, tracked separately from DocumentStatus since
// captioning (C8) runs independently of, and after, text extraction.
type CaptionStatus string

const (
	// CaptionStatusNotRequested means no vision model is configured on
	// the document, so C8 will never pick it up.
	CaptionStatusNotRequested CaptionStatus = "not_requested"
	CaptionStatusPending      CaptionStatus = "pending"
	CaptionStatusInProgress   CaptionStatus = "in_progress"
	CaptionStatusCompleted    CaptionStatus = "completed"
	CaptionStatusFailed       CaptionStatus = "failed"
)

// Document is a row in the documents table.
type Document struct {
	ID              string
	Title           string
	Filename        string
	Format          string
	SHA256          string
	SizeBytes       int64
	SourcePath      string
	AccessTags      []string
	Status          DocumentStatus
	Phase           string
	Progress        float64
	ErrorMessage    string
	ChunkCount      int
	ImageCount      int
	VisionModel     string
	CaptionStatus   CaptionStatus
	CaptionProgress int
	CaptionTotal    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// InsertDocument inserts a new document row. Returns
// ERR_203_DUPLICATE_DOCUMENT if a document with the same SHA-256
// already exists.
func (s *Store) InsertDocument(ctx context.Context, d *Document) error {
	tags, err := json.Marshal(d.AccessTags)
	if err != nil {
		return senerrors.DBSerialization(err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if d.Status == "" {
		d.Status = DocumentStatusPending
	}
	if d.CaptionStatus == "" {
		d.CaptionStatus = CaptionStatusNotRequested
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, filename, format, sha256, size_bytes, source_path, access_tags, status, phase, progress, error_message, vision_model, caption_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.Filename, d.Format, d.SHA256, d.SizeBytes, d.SourcePath, string(tags), d.Status, d.Phase, d.Progress, d.ErrorMessage, d.VisionModel, d.CaptionStatus, now, now)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return senerrors.New(senerrors.ErrCodeDuplicateDocument, "a document with this content already exists", err).
				WithDetail("sha256", d.SHA256)
		}
		return senerrors.DBQuery(err)
	}

	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, now)
	d.UpdatedAt = d.CreatedAt
	return nil
}

// GetDocument fetches a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, documentSelectColumns+` WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, senerrors.NotFound("document", id)
	}
	if err != nil {
		return nil, senerrors.DBQuery(err)
	}
	return doc, nil
}

// GetDocumentBySHA256 fetches a document by content hash, used by
// ingestion to detect duplicates before doing any extraction work.
func (s *Store) GetDocumentBySHA256(ctx context.Context, sha256 string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, documentSelectColumns+` WHERE sha256 = ?`, sha256)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, senerrors.DBQuery(err)
	}
	return doc, nil
}

// ListDocuments returns every document, most recently created first.
func (s *Store) ListDocuments(ctx context.Context) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, documentSelectColumns+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, senerrors.DBQuery(err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, senerrors.DBQuery(err)
		}
		docs = append(docs, doc)
	}
	return docs, wrapDBQuery(rows.Err())
}

// GetNextPendingDocument claims the oldest document in DocumentStatusPending
// and atomically transitions it to DocumentStatusExtracting so at most one
// worker processes it. Returns nil, nil if no document is pending.
func (s *Store) GetNextPendingDocument(ctx context.Context) (*Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, senerrors.DBQuery(err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, documentSelectColumns+`
		WHERE status = ? ORDER BY created_at ASC LIMIT 1`, DocumentStatusPending)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, senerrors.DBQuery(err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET status = ?, phase = 'extracting', updated_at = ? WHERE id = ?`,
		DocumentStatusExtracting, now, doc.ID); err != nil {
		return nil, senerrors.DBQuery(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, senerrors.DBQuery(err)
	}

	doc.Status = DocumentStatusExtracting
	doc.Phase = "extracting"
	return doc, nil
}

// UpdateDocumentProgress records an in-progress document's current
// phase and fractional progress, so a restarted worker can resume
// rather than re-extracting from scratch.
func (s *Store) UpdateDocumentProgress(ctx context.Context, id, phase string, progress float64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `UPDATE documents SET phase = ?, progress = ?, updated_at = ? WHERE id = ?`,
		phase, progress, now, id)
	return wrapDBQuery(err)
}

// SetDocumentStatus transitions a document to a new status, optionally
// recording an error message (cleared when status is not Failed).
func (s *Store) SetDocumentStatus(ctx context.Context, id string, status DocumentStatus, errMsg string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `UPDATE documents SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, now, id)
	return wrapDBQuery(err)
}

// RequestCaptioning marks a document's caption pass pending once its
// text extraction has completed and a vision model is configured for
// it, so the captioning worker picks it up.
func (s *Store) RequestCaptioning(ctx context.Context, id, visionModel string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET vision_model = ?, caption_status = ?, updated_at = ? WHERE id = ?`,
		visionModel, CaptionStatusPending, now, id)
	return wrapDBQuery(err)
}

// SetCaptionStatus transitions a document's captioning lifecycle
// state.
func (s *Store) SetCaptionStatus(ctx context.Context, id string, status CaptionStatus) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `UPDATE documents SET caption_status = ?, updated_at = ? WHERE id = ?`, status, now, id)
	return wrapDBQuery(err)
}

// UpdateCaptionProgress records how many of a document's images have
// been captioned, so a restarted worker can resume with credit for
// images already described.
func (s *Store) UpdateCaptionProgress(ctx context.Context, id string, progress, total int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET caption_progress = ?, caption_total = ?, updated_at = ? WHERE id = ?`,
		progress, total, now, id)
	return wrapDBQuery(err)
}

// DeleteDocument deletes a document and, via ON DELETE CASCADE, every
// chunk and image that belongs to it.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return senerrors.DBQuery(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return senerrors.NotFound("document", id)
	}
	return nil
}

// wrapDBQuery turns a possible database error into a SenError, passing
// nil through unchanged. senerrors.DBQuery always constructs an error
// object regardless of its argument, so callers must not hand it a nil
// cause expecting a nil result back.
func wrapDBQuery(err error) error {
	if err == nil {
		return nil
	}
	return senerrors.DBQuery(err)
}

const documentSelectColumns = `
	SELECT id, title, filename, format, sha256, size_bytes, source_path, access_tags, status, phase, progress, error_message, chunk_count, image_count, vision_model, caption_status, caption_progress, caption_total, created_at, updated_at
	FROM documents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var d Document
	var tags string
	var createdAt, updatedAt string
	if err := row.Scan(&d.ID, &d.Title, &d.Filename, &d.Format, &d.SHA256, &d.SizeBytes, &d.SourcePath, &tags,
		&d.Status, &d.Phase, &d.Progress, &d.ErrorMessage, &d.ChunkCount, &d.ImageCount,
		&d.VisionModel, &d.CaptionStatus, &d.CaptionProgress, &d.CaptionTotal, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &d.AccessTags); err != nil {
		return nil, err
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &d, nil
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return containsAny(msg, "UNIQUE constraint failed", "constraint failed: UNIQUE")
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if len(s) >= len(sub) {
			for i := 0; i+len(sub) <= len(s); i++ {
				if s[i:i+len(sub)] == sub {
					return true
				}
			}
		}
	}
	return false
}
