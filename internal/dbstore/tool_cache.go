package dbstore

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ExternalImageDescription is a cached vision-model description of an
// image living on a connected external UI process (FVTT), keyed by
// the path the UI reported it under. Unlike Image captions, these
// images are never ingested into this store - the cache exists purely
// so the image_describe tool doesn't re-call the vision model for a
// path it has already described.
type ExternalImageDescription struct {
	ImagePath   string
	Description string
	VisionModel string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GetExternalImageDescription returns the cached description for
// imagePath, or nil, nil if nothing is cached yet.
func (s *Store) GetExternalImageDescription(ctx context.Context, imagePath string) (*ExternalImageDescription, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT image_path, description, vision_model, created_at, updated_at
		FROM external_image_descriptions WHERE image_path = ?`, imagePath)

	var d ExternalImageDescription
	var createdAt, updatedAt string
	err := row.Scan(&d.ImagePath, &d.Description, &d.VisionModel, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBQuery(err)
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &d, nil
}

// UpsertExternalImageDescription writes through the cache for
// imagePath, replacing whatever was cached there before.
func (s *Store) UpsertExternalImageDescription(ctx context.Context, imagePath, description, visionModel string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO external_image_descriptions (image_path, description, vision_model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(image_path) DO UPDATE SET
			description = excluded.description,
			vision_model = excluded.vision_model,
			updated_at = excluded.updated_at`,
		imagePath, description, visionModel, now, now)
	return wrapDBQuery(err)
}
