package dbstore

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

// ImageStatus is the lifecycle state of an extracted image.
type ImageStatus string

const (
	ImageStatusPending    ImageStatus = "pending"
	ImageStatusCaptioning ImageStatus = "captioning"
	ImageStatusReady      ImageStatus = "ready"
	ImageStatusFailed     ImageStatus = "failed"
	// ImageStatusSkipped marks an image the background-detection pass
	// classified as decorative background art, which is never sent to
	// the vision model for captioning.
	ImageStatusSkipped ImageStatus = "skipped"
)

// ImageType classifies how an extracted image row was produced.
type ImageType string

const (
	// ImageTypeIndividual is a single raster image extracted at its own bounds.
	ImageTypeIndividual ImageType = "individual"
	// ImageTypeBackground is a repeating full-page image emitted once
	// across all the pages it appears on.
	ImageTypeBackground ImageType = "background"
	// ImageTypeRegionRender is a high-DPI page-region rasterisation
	// standing in for a group of overlapping images, text, and paths.
	ImageTypeRegionRender ImageType = "region_render"
)

// Image is a row in the images table: one region extracted from a PDF
// page, plus its caption and embedding once the captioning worker runs.
type Image struct {
	ID              string
	DocumentID      string
	PageNumber      int
	ImageIndex      int
	FilePath        string
	Width           int
	Height          int
	IsBackground    bool
	ImageType       ImageType
	SourcePages     []int
	HasRegionRender bool
	SourceImageID   string
	Caption         string
	Embedding       []float32
	Status          ImageStatus
	ErrorMessage    string
	CaptionedAt     time.Time
	CreatedAt       time.Time
}

// InsertImage inserts an extracted-image row.
func (s *Store) InsertImage(ctx context.Context, img *Image) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if img.Status == "" {
		img.Status = ImageStatusPending
	}
	if img.ImageType == "" {
		img.ImageType = ImageTypeIndividual
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO images (id, document_id, page_number, image_index, file_path, width, height, is_background, image_type, source_pages, has_region_render, source_image_id, caption, status, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		img.ID, img.DocumentID, img.PageNumber, img.ImageIndex, img.FilePath, img.Width, img.Height, boolToInt(img.IsBackground),
		img.ImageType, encodePageList(img.SourcePages), boolToInt(img.HasRegionRender), img.SourceImageID, img.Caption, img.Status, img.ErrorMessage, now)
	if err != nil {
		return senerrors.DBQuery(err)
	}
	img.CreatedAt, _ = time.Parse(time.RFC3339Nano, now)
	return nil
}

// SetImageHasRegionRender flags an individual image as covered by a
// group region render once that render is saved.
func (s *Store) SetImageHasRegionRender(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE images SET has_region_render = 1 WHERE id = ?`, id)
	return wrapDBQuery(err)
}

// DeleteImagesByDocument removes every image row (and, by the caller's
// responsibility, their backing files) for a document being
// re-extracted.
func (s *Store) DeleteImagesByDocument(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE document_id = ?`, documentID)
	return wrapDBQuery(err)
}

// GetImage fetches an image by id.
func (s *Store) GetImage(ctx context.Context, id string) (*Image, error) {
	row := s.db.QueryRowContext(ctx, imageSelectColumns+` WHERE id = ?`, id)
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, senerrors.NotFound("image", id)
	}
	if err != nil {
		return nil, senerrors.DBQuery(err)
	}
	return img, nil
}

// GetImagesByDocument returns every image belonging to a document, in
// page then index order.
func (s *Store) GetImagesByDocument(ctx context.Context, documentID string) ([]*Image, error) {
	rows, err := s.db.QueryContext(ctx, imageSelectColumns+`
		WHERE document_id = ? ORDER BY page_number ASC, image_index ASC`, documentID)
	if err != nil {
		return nil, senerrors.DBQuery(err)
	}
	defer rows.Close()

	var images []*Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, senerrors.DBQuery(err)
		}
		images = append(images, img)
	}
	return images, wrapDBQuery(rows.Err())
}

// GetNextPendingCaptioningDocument returns the id of the oldest
// document that has at least one image in ImageStatusPending, so the
// captioning worker can process a whole document's images together.
// Returns "", nil if no document has pending images.
func (s *Store) GetNextPendingCaptioningDocument(ctx context.Context) (string, error) {
	var documentID string
	err := s.db.QueryRowContext(ctx, `
		SELECT i.document_id
		FROM images i
		JOIN documents d ON d.id = i.document_id
		WHERE i.status = ?
		ORDER BY i.created_at ASC
		LIMIT 1`, ImageStatusPending).Scan(&documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", senerrors.DBQuery(err)
	}
	return documentID, nil
}

// SetImageCaption records a generated caption and embedding for an
// image and marks it ready. Pass isBackground=true with an empty
// caption for images the background-detection pass skips entirely.
func (s *Store) SetImageCaption(ctx context.Context, id, caption string, embedding []float32) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var blob any
	if embedding != nil {
		blob = encodeVector(embedding)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE images SET caption = ?, embedding = ?, status = ?, captioned_at = ? WHERE id = ?`,
		caption, blob, ImageStatusReady, now, id)
	return wrapDBQuery(err)
}

// SetImageStatus transitions an image's status, e.g. to
// ImageStatusSkipped once background detection classifies it, or to
// ImageStatusFailed with an error message.
func (s *Store) SetImageStatus(ctx context.Context, id string, status ImageStatus, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE images SET status = ?, error_message = ? WHERE id = ?`, status, errMsg, id)
	return wrapDBQuery(err)
}

// ImageVectorResult is one match from SearchImagesByEmbedding.
type ImageVectorResult struct {
	Image *Image
	Score float32
}

// SearchImagesByEmbedding performs a brute-force cosine-similarity scan
// over every captioned image's embedding, excluding background images.
func (s *Store) SearchImagesByEmbedding(ctx context.Context, query []float32, limit int) ([]ImageVectorResult, error) {
	rows, err := s.db.QueryContext(ctx, imageSelectColumns+`, embedding
		FROM images WHERE embedding IS NOT NULL AND is_background = 0`)
	if err != nil {
		return nil, senerrors.DBQuery(err)
	}
	defer rows.Close()

	var results []ImageVectorResult
	for rows.Next() {
		img, blob, err := scanImageWithEmbedding(rows)
		if err != nil {
			return nil, senerrors.DBQuery(err)
		}
		img.Embedding = decodeVector(blob)
		score := cosineSimilarity(query, img.Embedding)
		results = append(results, ImageVectorResult{Image: img, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, senerrors.DBQuery(err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

const imageSelectColumns = `
	SELECT id, document_id, page_number, image_index, file_path, width, height, is_background,
	       image_type, source_pages, has_region_render, source_image_id,
	       caption, status, error_message, captioned_at, created_at
	FROM images`

func scanImage(row rowScanner) (*Image, error) {
	var img Image
	var isBackground, hasRegionRender int
	var sourcePages, captionedAt, createdAt string
	if err := row.Scan(&img.ID, &img.DocumentID, &img.PageNumber, &img.ImageIndex, &img.FilePath, &img.Width, &img.Height,
		&isBackground, &img.ImageType, &sourcePages, &hasRegionRender, &img.SourceImageID,
		&img.Caption, &img.Status, &img.ErrorMessage, &captionedAt, &createdAt); err != nil {
		return nil, err
	}
	img.IsBackground = isBackground != 0
	img.HasRegionRender = hasRegionRender != 0
	img.SourcePages = decodePageList(sourcePages)
	if captionedAt != "" {
		img.CaptionedAt, _ = time.Parse(time.RFC3339Nano, captionedAt)
	}
	img.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &img, nil
}

func scanImageWithEmbedding(row rowScanner) (*Image, []byte, error) {
	var img Image
	var isBackground, hasRegionRender int
	var sourcePages, captionedAt, createdAt string
	var blob []byte
	if err := row.Scan(&img.ID, &img.DocumentID, &img.PageNumber, &img.ImageIndex, &img.FilePath, &img.Width, &img.Height,
		&isBackground, &img.ImageType, &sourcePages, &hasRegionRender, &img.SourceImageID,
		&img.Caption, &img.Status, &img.ErrorMessage, &captionedAt, &createdAt, &blob); err != nil {
		return nil, nil, err
	}
	img.IsBackground = isBackground != 0
	img.HasRegionRender = hasRegionRender != 0
	img.SourcePages = decodePageList(sourcePages)
	if captionedAt != "" {
		img.CaptionedAt, _ = time.Parse(time.RFC3339Nano, captionedAt)
	}
	img.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &img, blob, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// encodePageList serialises a list of 1-based page numbers as a
// comma-separated string for storage in a TEXT column.
func encodePageList(pages []int) string {
	if len(pages) == 0 {
		return ""
	}
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func decodePageList(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	pages := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		pages = append(pages, n)
	}
	return pages
}
