package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jhelwig/seneschal-program-sub001/internal/config"
	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
	"github.com/jhelwig/seneschal-program-sub001/internal/embed"
	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("search: nil dependency")

// chunkImageStore is the slice of dbstore.Store this package depends
// on. Declaring it narrows hybridEngine's dependency to what it
// actually calls and lets tests substitute a fake in place of a real
// database.
type chunkImageStore interface {
	SearchChunksFTS(ctx context.Context, query string, allowedTags []string, limit int) ([]dbstore.ChunkFTSResult, error)
	SearchChunksByEmbedding(ctx context.Context, query []float32, allowedTags []string, limit int) ([]dbstore.ChunkVectorResult, error)
	SearchImagesByEmbedding(ctx context.Context, query []float32, limit int) ([]dbstore.ImageVectorResult, error)
	CountEmbeddedChunks(ctx context.Context) (int, error)
	AllEmbeddedChunks(ctx context.Context) ([]*dbstore.Chunk, error)
	AllowedDocumentIDs(ctx context.Context, allowedTags []string) (map[string]bool, error)
}

var _ chunkImageStore = (*dbstore.Store)(nil)

// hybridEngine implements Engine against a chunkImageStore for chunk
// and image rows, an embed.Embedder for query vectors, and an
// RRFFusion for combining lexical and dense chunk rankings.
type hybridEngine struct {
	store    chunkImageStore
	embedder embed.Embedder
	config   EngineConfig
	fusion   *RRFFusion
	log      *slog.Logger
	accel    *hnswAccelerator // nil unless EngineConfig.UseHNSW
}

// NewConfig builds an EngineConfig from the static search
// configuration loaded at startup.
func NewConfig(cfg config.SearchConfig) EngineConfig {
	ec := DefaultEngineConfig()
	if cfg.MaxResults > 0 {
		ec.DefaultLimit = cfg.MaxResults
	}
	if cfg.LexicalWeight > 0 || cfg.DenseWeight > 0 {
		ec.LexicalWeight = cfg.LexicalWeight
		ec.DenseWeight = cfg.DenseWeight
	}
	if cfg.RRFConstant > 0 {
		ec.RRFConstant = cfg.RRFConstant
	}
	ec.UseHNSW = cfg.UseHNSW
	if cfg.HNSWThreshold > 0 {
		ec.HNSWThreshold = cfg.HNSWThreshold
	}
	return ec
}

// NewEngine constructs a hybrid search engine. store and embedder
// must be non-nil.
func NewEngine(store *dbstore.Store, embedder embed.Embedder, cfg EngineConfig, log *slog.Logger) (Engine, error) {
	if store == nil || embedder == nil {
		return nil, ErrNilDependency
	}
	return newHybridEngine(store, embedder, cfg, log)
}

func newHybridEngine(store chunkImageStore, embedder embed.Embedder, cfg EngineConfig, log *slog.Logger) (Engine, error) {
	if store == nil || embedder == nil {
		return nil, ErrNilDependency
	}
	if log == nil {
		log = slog.Default()
	}
	e := &hybridEngine{
		store:    store,
		embedder: embedder,
		config:   cfg,
		fusion:   NewRRFFusionWithK(cfg.RRFConstant),
		log:      log,
	}
	if cfg.UseHNSW {
		e.accel = newHNSWAccelerator()
	}
	return e, nil
}

func (e *hybridEngine) limitFor(opts Options) int {
	if opts.Limit > 0 {
		return opts.Limit
	}
	return e.config.DefaultLimit
}

// Search embeds the query, runs the lexical and dense chunk searches
// concurrently, and fuses the two rankings with RRF.
func (e *hybridEngine) Search(ctx context.Context, query string, opts Options) ([]*ChunkResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.config.SearchTimeout)
	defer cancel()

	limit := e.limitFor(opts)

	var fts []dbstore.ChunkFTSResult
	var vec []dbstore.ChunkVectorResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := e.store.SearchChunksFTS(gctx, lexicalQuery(query), opts.AllowedTags, limit)
		if err != nil {
			return err
		}
		fts = r
		return nil
	})
	g.Go(func() error {
		qvec, err := e.embedder.Embed(gctx, query)
		if err != nil {
			return err
		}
		if r, ok := e.denseSearchViaAccelerator(gctx, qvec, opts, limit); ok {
			vec = r
			return nil
		}
		r, err := e.store.SearchChunksByEmbedding(gctx, qvec, opts.AllowedTags, limit)
		if err != nil {
			return err
		}
		vec = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, senerrors.InternalError("hybrid chunk search", err)
	}

	fused := e.fusion.Fuse(fts, vec, e.config.LexicalWeight, e.config.DenseWeight)
	if len(fused) > limit {
		fused = fused[:limit]
	}

	e.log.Debug("chunk search", "query", query, "fts", len(fts), "vector", len(vec), "fused", len(fused), "elapsed", time.Since(start))
	return fused, nil
}

// denseSearchViaAccelerator tries the HNSW accelerator for the dense
// leg of Search, returning ok=false when the accelerator isn't enabled,
// the corpus hasn't yet crossed HNSWThreshold, or the rebuild itself
// fails (in which case the caller falls back to the exact brute-force
// scan rather than erroring the whole query).
func (e *hybridEngine) denseSearchViaAccelerator(ctx context.Context, qvec []float32, opts Options, limit int) ([]dbstore.ChunkVectorResult, bool) {
	if e.accel == nil {
		return nil, false
	}

	count, err := e.store.CountEmbeddedChunks(ctx)
	if err != nil || count < e.config.HNSWThreshold {
		return nil, false
	}

	if err := e.accel.ensureFresh(ctx, e.store); err != nil {
		e.log.Warn("hnsw accelerator rebuild failed, falling back to brute-force scan", "error", err)
		return nil, false
	}

	var allowed map[string]bool
	if len(opts.AllowedTags) > 0 {
		allowed, err = e.store.AllowedDocumentIDs(ctx, opts.AllowedTags)
		if err != nil {
			e.log.Warn("hnsw accelerator access-tag lookup failed, falling back to brute-force scan", "error", err)
			return nil, false
		}
	}

	return e.accel.search(qvec, limit, allowed), true
}

// SearchText delegates straight to the lexical FTS5 index, optionally
// restricted by section or document.
func (e *hybridEngine) SearchText(ctx context.Context, query string, opts Options) ([]*ChunkResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.SearchTimeout)
	defer cancel()

	fts, err := e.store.SearchChunksFTS(ctx, lexicalQuery(query), opts.AllowedTags, e.limitFor(opts))
	if err != nil {
		return nil, senerrors.InternalError("lexical chunk search", err)
	}

	results := make([]*ChunkResult, 0, len(fts))
	for rank, r := range fts {
		if opts.Section != "" && r.Chunk.SectionTitle != opts.Section {
			continue
		}
		if opts.DocumentID != "" && r.Chunk.DocumentID != opts.DocumentID {
			continue
		}
		results = append(results, &ChunkResult{
			Chunk:     r.Chunk,
			Score:     r.Score,
			BM25Score: r.Score,
			BM25Rank:  rank + 1,
		})
	}
	return results, nil
}

// SearchImages embeds the query and runs dense-only search over
// captioned image embeddings, excluding background images.
func (e *hybridEngine) SearchImages(ctx context.Context, query string, opts Options) ([]*ImageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.SearchTimeout)
	defer cancel()

	qvec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, senerrors.EmbeddingGeneration("query embedding for image search", err)
	}

	rows, err := e.store.SearchImagesByEmbedding(ctx, qvec, e.limitFor(opts))
	if err != nil {
		return nil, senerrors.InternalError("image vector search", err)
	}

	results := make([]*ImageResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, &ImageResult{Image: r.Image, Score: r.Score})
	}
	return results, nil
}

// lexicalQuery tokenises on whitespace and quotes each token so stray
// FTS5 query-grammar characters in user input (hyphens, asterisks,
// colons) can't break the MATCH expression; tokens are joined with a
// space, which FTS5 treats as implicit AND.
func lexicalQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = fmt.Sprintf("%q", f)
	}
	return strings.Join(quoted, " ")
}
