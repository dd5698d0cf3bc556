package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
	"github.com/jhelwig/seneschal-program-sub001/internal/search"
)

type fakeEngine struct {
	searchResults     []*search.ChunkResult
	searchTextResults []*search.ChunkResult
	imageResults      []*search.ImageResult
	err               error
	lastOpts          search.Options
}

func (f *fakeEngine) Search(ctx context.Context, query string, opts search.Options) ([]*search.ChunkResult, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.searchResults, nil
}

func (f *fakeEngine) SearchText(ctx context.Context, query string, opts search.Options) ([]*search.ChunkResult, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.searchTextResults, nil
}

func (f *fakeEngine) SearchImages(ctx context.Context, query string, opts search.Options) ([]*search.ImageResult, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.imageResults, nil
}

type fakeToolStore struct {
	documents map[string]*dbstore.Document
	images    map[string]*dbstore.Image
	cache     map[string]*dbstore.ExternalImageDescription
	upserts   []dbstore.ExternalImageDescription
}

func newFakeToolStore() *fakeToolStore {
	return &fakeToolStore{
		documents: make(map[string]*dbstore.Document),
		images:    make(map[string]*dbstore.Image),
		cache:     make(map[string]*dbstore.ExternalImageDescription),
	}
}

func (s *fakeToolStore) GetDocument(ctx context.Context, id string) (*dbstore.Document, error) {
	if d, ok := s.documents[id]; ok {
		return d, nil
	}
	return nil, senerrors.NotFound("document", id)
}

func (s *fakeToolStore) ListDocuments(ctx context.Context) ([]*dbstore.Document, error) {
	out := make([]*dbstore.Document, 0, len(s.documents))
	for _, d := range s.documents {
		out = append(out, d)
	}
	return out, nil
}

func (s *fakeToolStore) GetImage(ctx context.Context, id string) (*dbstore.Image, error) {
	if img, ok := s.images[id]; ok {
		return img, nil
	}
	return nil, senerrors.NotFound("image", id)
}

func (s *fakeToolStore) GetImagesByDocument(ctx context.Context, documentID string) ([]*dbstore.Image, error) {
	var out []*dbstore.Image
	for _, img := range s.images {
		if img.DocumentID == documentID {
			out = append(out, img)
		}
	}
	return out, nil
}

func (s *fakeToolStore) GetExternalImageDescription(ctx context.Context, imagePath string) (*dbstore.ExternalImageDescription, error) {
	return s.cache[imagePath], nil
}

func (s *fakeToolStore) UpsertExternalImageDescription(ctx context.Context, imagePath, description, visionModel string) error {
	rec := dbstore.ExternalImageDescription{ImagePath: imagePath, Description: description, VisionModel: visionModel}
	s.cache[imagePath] = &rec
	s.upserts = append(s.upserts, rec)
	return nil
}

type fakeExternalRouter struct {
	response json.RawMessage
	err      error
	calls    []Call
}

func (f *fakeExternalRouter) CallExternalTool(ctx context.Context, tool Name, args map[string]any) (json.RawMessage, error) {
	f.calls = append(f.calls, Call{Tool: tool, Args: args})
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

type fakeDescriber struct {
	description string
	err         error
	lastModel   string
}

func (f *fakeDescriber) DescribeImageData(ctx context.Context, model, imageB64, prompt string) (string, error) {
	f.lastModel = model
	if f.err != nil {
		return "", f.err
	}
	return f.description, nil
}

func TestDispatcher_UnknownToolReturnsErrorResult(t *testing.T) {
	d := NewDispatcher(&fakeEngine{}, nil, nil, nil, nil)
	result := d.Dispatch(context.Background(), Call{ID: "1", Tool: Name("bogus_tool")})

	assert.True(t, result.IsError())
	assert.Contains(t, result.Err, "unknown tool")
}

func TestDispatcher_DocumentSearchReturnsHits(t *testing.T) {
	engine := &fakeEngine{
		searchResults: []*search.ChunkResult{
			{Chunk: &dbstore.Chunk{ID: "c1", DocumentID: "doc-1", Content: "goblins"}, Score: 0.9},
		},
	}
	d := NewDispatcher(engine, nil, nil, nil, nil)

	result := d.Dispatch(context.Background(), Call{ID: "1", Tool: DocumentSearch, Args: map[string]any{"query": "goblins"}})

	require.False(t, result.IsError())
	hits, ok := result.Value.([]ChunkHit)
	require.True(t, ok)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ChunkID)
}

func TestDispatcher_DocumentSearchRequiresQuery(t *testing.T) {
	d := NewDispatcher(&fakeEngine{}, nil, nil, nil, nil)
	result := d.Dispatch(context.Background(), Call{ID: "1", Tool: DocumentSearch, Args: map[string]any{}})

	assert.True(t, result.IsError())
}

func TestDispatcher_DocumentGetRequiresID(t *testing.T) {
	store := newFakeToolStore()
	d := &Dispatcher{store: store}
	result := d.Dispatch(context.Background(), Call{ID: "1", Tool: DocumentGet, Args: map[string]any{}})

	assert.True(t, result.IsError())
}

func TestDispatcher_DocumentGetReturnsTheDocument(t *testing.T) {
	store := newFakeToolStore()
	store.documents["doc-1"] = &dbstore.Document{ID: "doc-1", Title: "Bestiary"}
	d := &Dispatcher{store: store}

	result := d.Dispatch(context.Background(), Call{ID: "1", Tool: DocumentGet, Args: map[string]any{"document_id": "doc-1"}})

	require.False(t, result.IsError())
	doc, ok := result.Value.(*dbstore.Document)
	require.True(t, ok)
	assert.Equal(t, "Bestiary", doc.Title)
}

func TestDispatcher_ExternalToolWithNoRouterReturnsNoGMConnection(t *testing.T) {
	d := &Dispatcher{}
	result := d.Dispatch(context.Background(), Call{ID: "1", Tool: FVTTGenericQuery, Args: map[string]any{"query": "actors"}})

	assert.True(t, result.IsError())
	assert.Contains(t, result.Err, "No GM connection")
}

func TestDispatcher_ExternalToolForwardsToRouterAndDecodesReply(t *testing.T) {
	router := &fakeExternalRouter{response: json.RawMessage(`{"count": 3}`)}
	d := &Dispatcher{external: router}

	result := d.Dispatch(context.Background(), Call{ID: "1", Tool: FVTTGenericQuery, Args: map[string]any{"query": "actors"}})

	require.False(t, result.IsError())
	require.Len(t, router.calls, 1)
	assert.Equal(t, FVTTGenericQuery, router.calls[0].Tool)
	decoded, ok := result.Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), decoded["count"])
}

func TestDispatcher_ExternalToolRouterErrorPropagatesAsFailure(t *testing.T) {
	router := &fakeExternalRouter{err: senerrors.ToolTimeout("fvtt_generic_query")}
	d := &Dispatcher{external: router}

	result := d.Dispatch(context.Background(), Call{ID: "1", Tool: FVTTGenericQuery, Args: map[string]any{"query": "actors"}})

	assert.True(t, result.IsError())
	assert.Contains(t, result.Err, "timed out")
}

func TestDispatcher_ImageDescribeCacheHitSkipsExternalCall(t *testing.T) {
	store := newFakeToolStore()
	store.cache["fvtt/actor.png"] = &dbstore.ExternalImageDescription{ImagePath: "fvtt/actor.png", Description: "a goblin"}
	router := &fakeExternalRouter{}
	d := &Dispatcher{store: store, external: router}

	result := d.Dispatch(context.Background(), Call{ID: "1", Tool: ImageDescribe, Args: map[string]any{"image_path": "fvtt/actor.png"}})

	require.False(t, result.IsError())
	out, ok := result.Value.(ImageDescribeResult)
	require.True(t, ok)
	assert.True(t, out.Cached)
	assert.Equal(t, "a goblin", out.Description)
	assert.Empty(t, router.calls)
}

func TestDispatcher_ImageDescribeCallsVisionAndWritesThroughCache(t *testing.T) {
	store := newFakeToolStore()
	router := &fakeExternalRouter{response: json.RawMessage(`{"image_path":"fvtt/actor.png","vision_model":"llava","image_data":"QkFTRTY0"}`)}
	vision := &fakeDescriber{description: "a grinning goblin"}
	d := &Dispatcher{store: store, external: router, vision: vision}

	result := d.Dispatch(context.Background(), Call{ID: "1", Tool: ImageDescribe, Args: map[string]any{"image_path": "fvtt/actor.png"}})

	require.False(t, result.IsError())
	out, ok := result.Value.(ImageDescribeResult)
	require.True(t, ok)
	assert.False(t, out.Cached)
	assert.Equal(t, "a grinning goblin", out.Description)
	assert.Equal(t, "llava", vision.lastModel)
	require.Len(t, store.upserts, 1)
	assert.Equal(t, "fvtt/actor.png", store.upserts[0].ImagePath)
}

func TestDispatcher_ImageDescribeForceRefreshBypassesCache(t *testing.T) {
	store := newFakeToolStore()
	store.cache["fvtt/actor.png"] = &dbstore.ExternalImageDescription{ImagePath: "fvtt/actor.png", Description: "stale"}
	router := &fakeExternalRouter{response: json.RawMessage(`{"image_path":"fvtt/actor.png","vision_model":"llava","image_data":"QkFTRTY0"}`)}
	vision := &fakeDescriber{description: "fresh description"}
	d := &Dispatcher{store: store, external: router, vision: vision}

	result := d.Dispatch(context.Background(), Call{
		ID: "1", Tool: ImageDescribe,
		Args: map[string]any{"image_path": "fvtt/actor.png", "force_refresh": true},
	})

	require.False(t, result.IsError())
	out := result.Value.(ImageDescribeResult)
	assert.Equal(t, "fresh description", out.Description)
	require.Len(t, router.calls, 1)
}

func TestDispatcher_ImageDescribeMissingVisionModelFails(t *testing.T) {
	store := newFakeToolStore()
	router := &fakeExternalRouter{response: json.RawMessage(`{"image_path":"fvtt/actor.png","image_data":"QkFTRTY0"}`)}
	d := &Dispatcher{store: store, external: router, vision: &fakeDescriber{}}

	result := d.Dispatch(context.Background(), Call{ID: "1", Tool: ImageDescribe, Args: map[string]any{"image_path": "fvtt/actor.png"}})

	assert.True(t, result.IsError())
}

func TestDispatcher_ImageDescribeErrorFromUIPropagates(t *testing.T) {
	store := newFakeToolStore()
	router := &fakeExternalRouter{response: json.RawMessage(`{"error":"no such image"}`)}
	d := &Dispatcher{store: store, external: router, vision: &fakeDescriber{}}

	result := d.Dispatch(context.Background(), Call{ID: "1", Tool: ImageDescribe, Args: map[string]any{"image_path": "fvtt/actor.png"}})

	assert.True(t, result.IsError())
	assert.Contains(t, result.Err, "no such image")
}

func TestDispatcher_ImageDescribeRequiresPath(t *testing.T) {
	d := &Dispatcher{store: newFakeToolStore()}
	result := d.Dispatch(context.Background(), Call{ID: "1", Tool: ImageDescribe, Args: map[string]any{}})

	assert.True(t, result.IsError())
}
