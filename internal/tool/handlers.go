package tool

import (
	"context"

	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
	"github.com/jhelwig/seneschal-program-sub001/internal/search"
)

const defaultSearchLimit = 10

// ChunkHit is one result from document_search or document_search_text.
type ChunkHit struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	SectionTitle string  `json:"section_title,omitempty"`
	PageNumber   int     `json:"page_number"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
}

func chunkHitsFrom(results []*search.ChunkResult) []ChunkHit {
	hits := make([]ChunkHit, 0, len(results))
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}
		hits = append(hits, ChunkHit{
			ChunkID:      r.Chunk.ID,
			DocumentID:   r.Chunk.DocumentID,
			SectionTitle: r.Chunk.SectionTitle,
			PageNumber:   r.Chunk.PageNumber,
			Content:      r.Chunk.Content,
			Score:        r.Score,
		})
	}
	return hits
}

func (d *Dispatcher) documentSearch(ctx context.Context, args map[string]any) (any, error) {
	query := stringArg(args, "query")
	if query == "" {
		return nil, senerrors.InvalidRequest("query is required")
	}
	opts := search.Options{
		Limit:       intArg(args, "limit", defaultSearchLimit),
		AllowedTags: stringSliceArg(args, "allowed_tags"),
	}
	results, err := d.engine.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return chunkHitsFrom(results), nil
}

func (d *Dispatcher) documentSearchText(ctx context.Context, args map[string]any) (any, error) {
	query := stringArg(args, "query")
	if query == "" {
		return nil, senerrors.InvalidRequest("query is required")
	}
	opts := search.Options{
		Limit:       intArg(args, "limit", defaultSearchLimit),
		Section:     stringArg(args, "section"),
		DocumentID:  stringArg(args, "document_id"),
		AllowedTags: stringSliceArg(args, "allowed_tags"),
	}
	results, err := d.engine.SearchText(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return chunkHitsFrom(results), nil
}

func (d *Dispatcher) documentGet(ctx context.Context, args map[string]any) (any, error) {
	id := stringArg(args, "document_id")
	if id == "" {
		return nil, senerrors.InvalidRequest("document_id is required")
	}
	return d.store.GetDocument(ctx, id)
}

func (d *Dispatcher) documentList(ctx context.Context, _ map[string]any) (any, error) {
	return d.store.ListDocuments(ctx)
}

func (d *Dispatcher) imageList(ctx context.Context, args map[string]any) (any, error) {
	documentID := stringArg(args, "document_id")
	if documentID == "" {
		return nil, senerrors.InvalidRequest("document_id is required")
	}
	return d.store.GetImagesByDocument(ctx, documentID)
}

// ImageHit is one result from image_search.
type ImageHit struct {
	Image *dbstore.Image `json:"image"`
	Score float32        `json:"score"`
}

func (d *Dispatcher) imageSearch(ctx context.Context, args map[string]any) (any, error) {
	query := stringArg(args, "query")
	if query == "" {
		return nil, senerrors.InvalidRequest("query is required")
	}
	opts := search.Options{Limit: intArg(args, "limit", defaultSearchLimit)}
	results, err := d.engine.SearchImages(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	hits := make([]ImageHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, ImageHit{Image: r.Image, Score: r.Score})
	}
	return hits, nil
}

func (d *Dispatcher) imageGet(ctx context.Context, args map[string]any) (any, error) {
	id := stringArg(args, "image_id")
	if id == "" {
		return nil, senerrors.InvalidRequest("image_id is required")
	}
	return d.store.GetImage(ctx, id)
}
