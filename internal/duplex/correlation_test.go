package duplex

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationMap_ResolveDeliversToRegisteredChannel(t *testing.T) {
	c := NewCorrelationMap()
	reply := c.register("mcp:1")

	ok := c.Resolve("mcp:1", json.RawMessage(`{"ok":true}`))
	require.True(t, ok)

	result := <-reply
	assert.JSONEq(t, `{"ok":true}`, string(result))
}

func TestCorrelationMap_ResolveUnknownRequestIDReturnsFalse(t *testing.T) {
	c := NewCorrelationMap()
	ok := c.Resolve("mcp:no-such-request", json.RawMessage(`{}`))
	assert.False(t, ok)
}

func TestCorrelationMap_ReleaseRemovesEntryWithoutDelivering(t *testing.T) {
	c := NewCorrelationMap()
	c.register("mcp:1")
	c.release("mcp:1")

	ok := c.Resolve("mcp:1", json.RawMessage(`{}`))
	assert.False(t, ok)
}

func TestCorrelationMap_PendingReflectsRegisteredCount(t *testing.T) {
	c := NewCorrelationMap()
	c.register("mcp:1")
	c.register("mcp:2")

	assert.Equal(t, 2, c.Pending())

	c.release("mcp:1")
	assert.Equal(t, 1, c.Pending())
}
