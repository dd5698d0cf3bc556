package dbstore

import (
	"context"
	"sort"
	"time"

	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

// Chunk is a row in the chunks table: one windowed slice of a
// document's extracted text, plus its dense embedding once computed.
type Chunk struct {
	ID           string
	DocumentID   string
	ChunkIndex   int
	Content      string
	SectionTitle string
	PageNumber   int
	Embedding    []float32
	EmbeddedAt   time.Time
	CreatedAt    time.Time
}

// InsertChunk inserts a chunk row. Embedding may be nil; it is filled
// in later by SetChunkEmbedding once the embedding worker processes it.
func (s *Store) InsertChunk(ctx context.Context, c *Chunk) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var embedding any
	if c.Embedding != nil {
		embedding = encodeVector(c.Embedding)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, content, section_title, page_number, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.DocumentID, c.ChunkIndex, c.Content, c.SectionTitle, c.PageNumber, embedding, now)
	if err != nil {
		return senerrors.DBQuery(err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, now)
	return nil
}

// SetChunkEmbedding stores a chunk's dense embedding vector once it has
// been computed.
func (s *Store) SetChunkEmbedding(ctx context.Context, id string, embedding []float32) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `UPDATE chunks SET embedding = ?, embedded_at = ? WHERE id = ?`,
		encodeVector(embedding), now, id)
	return wrapDBQuery(err)
}

// GetChunksWithoutEmbeddings returns up to limit chunks that have not
// yet been embedded, oldest first, for the embedding worker to batch.
func (s *Store) GetChunksWithoutEmbeddings(ctx context.Context, limit int) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, section_title, page_number, created_at
		FROM chunks
		WHERE embedding IS NULL
		ORDER BY created_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, senerrors.DBQuery(err)
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		var c Chunk
		var createdAt string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &c.SectionTitle, &c.PageNumber, &createdAt); err != nil {
			return nil, senerrors.DBQuery(err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		chunks = append(chunks, &c)
	}
	return chunks, wrapDBQuery(rows.Err())
}

// ChunkFTSResult is one match from SearchChunksFTS.
type ChunkFTSResult struct {
	Chunk *Chunk
	Score float64
}

// SearchChunksFTS runs a BM25-scored FTS5 MATCH query over chunk
// content, restricted to documents whose access tags intersect
// allowedTags (pass nil to search every document).
func (s *Store) SearchChunksFTS(ctx context.Context, query string, allowedTags []string, limit int) ([]ChunkFTSResult, error) {
	if query == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.section_title, c.page_number, c.created_at, bm25(chunks_fts) AS score
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY score
		LIMIT ?`, query, limit)
	if err != nil {
		if isFTSSyntaxErr(err) {
			return nil, nil
		}
		return nil, senerrors.DBQuery(err)
	}
	defer rows.Close()

	var results []ChunkFTSResult
	for rows.Next() {
		var c Chunk
		var createdAt string
		var score float64
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &c.SectionTitle, &c.PageNumber, &createdAt, &score); err != nil {
			return nil, senerrors.DBQuery(err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		// bm25() returns negative values; negate so higher is better,
		// matching SearchChunksByEmbedding's cosine-similarity scale.
		results = append(results, ChunkFTSResult{Chunk: &c, Score: -score})
	}
	if err := rows.Err(); err != nil {
		return nil, senerrors.DBQuery(err)
	}

	if len(allowedTags) > 0 {
		results, err = s.filterChunkResultsByAccessTags(ctx, results, allowedTags)
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

// ChunkVectorResult is one match from SearchChunksByEmbedding.
type ChunkVectorResult struct {
	Chunk *Chunk
	Score float32
}

// SearchChunksByEmbedding performs a brute-force cosine-similarity scan
// over every embedded chunk. This is exact and sufficient until the
// corpus grows past SearchConfig.HNSWThreshold, at which point
// internal/search's HNSW accelerator takes over the same query shape.
func (s *Store) SearchChunksByEmbedding(ctx context.Context, query []float32, allowedTags []string, limit int) ([]ChunkVectorResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, section_title, page_number, created_at, embedding
		FROM chunks
		WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, senerrors.DBQuery(err)
	}
	defer rows.Close()

	var allowed map[string]bool
	if len(allowedTags) > 0 {
		allowed, err = s.documentIDsWithAccessTags(ctx, allowedTags)
		if err != nil {
			return nil, err
		}
	}

	var results []ChunkVectorResult
	for rows.Next() {
		var c Chunk
		var createdAt string
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &c.SectionTitle, &c.PageNumber, &createdAt, &blob); err != nil {
			return nil, senerrors.DBQuery(err)
		}
		if allowed != nil && !allowed[c.DocumentID] {
			continue
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		c.Embedding = decodeVector(blob)
		score := cosineSimilarity(query, c.Embedding)
		results = append(results, ChunkVectorResult{Chunk: &c, Score: score})
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

// CountEmbeddedChunks returns how many chunks currently have an
// embedding, cheaply (a single COUNT(*)), so callers can decide
// whether to pay for an HNSW accelerator rebuild.
func (s *Store) CountEmbeddedChunks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE embedding IS NOT NULL`).Scan(&n)
	if err != nil {
		return 0, senerrors.DBQuery(err)
	}
	return n, nil
}

// AllEmbeddedChunks returns every chunk that has an embedding, for
// building an in-memory approximate index once the corpus outgrows
// brute-force scanning.
func (s *Store) AllEmbeddedChunks(ctx context.Context) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, section_title, page_number, created_at, embedding
		FROM chunks WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, senerrors.DBQuery(err)
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		var c Chunk
		var createdAt string
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &c.SectionTitle, &c.PageNumber, &createdAt, &blob); err != nil {
			return nil, senerrors.DBQuery(err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		c.Embedding = decodeVector(blob)
		chunks = append(chunks, &c)
	}
	return chunks, wrapDBQuery(rows.Err())
}

// AllowedDocumentIDs returns the set of document ids visible given
// allowedTags, using the same untagged-documents-are-public rule as
// SearchChunksFTS/SearchChunksByEmbedding.
func (s *Store) AllowedDocumentIDs(ctx context.Context, allowedTags []string) (map[string]bool, error) {
	return s.documentIDsWithAccessTags(ctx, allowedTags)
}

// GetChunksByDocument returns every chunk belonging to a document, in
// chunk order.
func (s *Store) GetChunksByDocument(ctx context.Context, documentID string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, section_title, page_number, created_at
		FROM chunks WHERE document_id = ? ORDER BY chunk_index ASC`, documentID)
	if err != nil {
		return nil, senerrors.DBQuery(err)
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		var c Chunk
		var createdAt string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &c.SectionTitle, &c.PageNumber, &createdAt); err != nil {
			return nil, senerrors.DBQuery(err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		chunks = append(chunks, &c)
	}
	return chunks, wrapDBQuery(rows.Err())
}

func (s *Store) filterChunkResultsByAccessTags(ctx context.Context, results []ChunkFTSResult, allowedTags []string) ([]ChunkFTSResult, error) {
	allowed, err := s.documentIDsWithAccessTags(ctx, allowedTags)
	if err != nil {
		return nil, err
	}
	filtered := results[:0]
	for _, r := range results {
		if allowed[r.Chunk.DocumentID] {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// documentIDsWithAccessTags returns the set of document ids whose
// access_tags JSON array contains at least one of allowedTags.
func (s *Store) documentIDsWithAccessTags(ctx context.Context, allowedTags []string) (map[string]bool, error) {
	docs, err := s.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	tagSet := make(map[string]bool, len(allowedTags))
	for _, t := range allowedTags {
		tagSet[t] = true
	}
	result := make(map[string]bool)
	for _, d := range docs {
		if len(d.AccessTags) == 0 {
			// Untagged documents are visible to everyone.
			result[d.ID] = true
			continue
		}
		for _, t := range d.AccessTags {
			if tagSet[t] {
				result[d.ID] = true
				break
			}
		}
	}
	return result, nil
}

func isFTSSyntaxErr(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(), "fts5:", "syntax error")
}
