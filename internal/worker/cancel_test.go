package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelRegistry_RegisterThenCancel(t *testing.T) {
	// Given: a registry with one document registered
	r := NewCancelRegistry()
	ctx := r.Register(context.Background(), "doc-1")
	require.NoError(t, ctx.Err())

	// When: cancelling that document
	ok := r.Cancel("doc-1")

	// Then: the derived context is cancelled and Cancel reports true
	assert.True(t, ok)
	assert.Error(t, ctx.Err())
}

func TestCancelRegistry_CancelUnknownDocumentReturnsFalse(t *testing.T) {
	r := NewCancelRegistry()
	assert.False(t, r.Cancel("never-registered"))
}

func TestCancelRegistry_ReleaseForgetsToken(t *testing.T) {
	// Given: a registered document
	r := NewCancelRegistry()
	r.Register(context.Background(), "doc-1")
	require.Equal(t, 1, r.Len())

	// When: releasing it
	r.Release("doc-1")

	// Then: it's no longer tracked and cancelling it is a no-op
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Cancel("doc-1"))
}

func TestCancelRegistry_CancelAllTripsEveryToken(t *testing.T) {
	// Given: two registered documents
	r := NewCancelRegistry()
	ctx1 := r.Register(context.Background(), "doc-1")
	ctx2 := r.Register(context.Background(), "doc-2")

	// When: cancelling all
	r.CancelAll()

	// Then: both contexts are cancelled
	assert.Error(t, ctx1.Err())
	assert.Error(t, ctx2.Err())
}

func TestCancelRegistry_RegisterReplacesPriorToken(t *testing.T) {
	// Given: a document registered once
	r := NewCancelRegistry()
	first := r.Register(context.Background(), "doc-1")

	// When: registering the same document again
	second := r.Register(context.Background(), "doc-1")

	// Then: cancelling trips only the second context; the first is
	// orphaned (its parent was never cancelled)
	r.Cancel("doc-1")
	assert.NoError(t, first.Err())
	assert.Error(t, second.Err())
}
