package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
	"github.com/jhelwig/seneschal-program-sub001/internal/search"
	"github.com/jhelwig/seneschal-program-sub001/internal/tool"
)

type stubEngine struct{}

func (stubEngine) Search(context.Context, string, search.Options) ([]*search.ChunkResult, error) {
	return nil, nil
}

func (stubEngine) SearchText(context.Context, string, search.Options) ([]*search.ChunkResult, error) {
	return nil, nil
}

func (stubEngine) SearchImages(context.Context, string, search.Options) ([]*search.ImageResult, error) {
	return nil, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := dbstore.Open("", 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	dispatcher := tool.NewDispatcher(stubEngine{}, store, nil, nil, nil)
	return NewServer(dispatcher, nil)
}

func TestNewServer_RegistersEveryToolInTheRegistry(t *testing.T) {
	s := newTestServer(t)
	assert.NotNil(t, s.mcp)
}

func TestHandlerFor_DocumentListDispatchesThroughTheRegistry(t *testing.T) {
	s := newTestServer(t)
	handler := s.handlerFor(tool.DocumentList)

	_, output, err := handler(context.Background(), nil, map[string]any{})

	require.NoError(t, err)
	assert.NotNil(t, output)
}

func TestHandlerFor_UnknownArgumentsStillReachTheDispatcherAsAFailure(t *testing.T) {
	s := newTestServer(t)
	handler := s.handlerFor(tool.DocumentGet)

	_, _, err := handler(context.Background(), nil, map[string]any{})

	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
}
