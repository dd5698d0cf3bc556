package duplex

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
	"github.com/jhelwig/seneschal-program-sub001/internal/tool"
)

func TestRouter_CallExternalToolWithNoGMConnectionFails(t *testing.T) {
	manager := NewManager(nil)
	router := NewRouter(manager, NewCorrelationMap(), time.Second)

	_, err := router.CallExternalTool(context.Background(), tool.FVTTGenericQuery, map[string]any{"query": "actors"})

	require.Error(t, err)
	var senErr *senerrors.SenError
	require.ErrorAs(t, err, &senErr)
	assert.Equal(t, senerrors.ErrCodeNoGMConnection, senErr.Code)
}

func TestRouter_CallExternalToolDeliversReplyFromGM(t *testing.T) {
	manager := NewManager(nil)
	cs := manager.Add("gm-session", 4)
	manager.Authenticate("gm-session", "u1", "GM Alice", 4)

	correlation := NewCorrelationMap()
	router := NewRouter(manager, correlation, time.Second)

	go func() {
		payload := <-cs.outbound
		var msg ToolCallMessage
		require.NoError(t, json.Unmarshal(payload, &msg))
		correlation.Resolve(msg.ConversationID, json.RawMessage(`{"count":3}`))
	}()

	result, err := router.CallExternalTool(context.Background(), tool.FVTTGenericQuery, map[string]any{"query": "actors"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"count":3}`, string(result))
	assert.Equal(t, 0, correlation.Pending())
}

func TestRouter_CallExternalToolTimesOutWithoutReply(t *testing.T) {
	manager := NewManager(nil)
	manager.Add("gm-session", 4)
	manager.Authenticate("gm-session", "u1", "GM Alice", 4)

	correlation := NewCorrelationMap()
	router := NewRouter(manager, correlation, 20*time.Millisecond)

	_, err := router.CallExternalTool(context.Background(), tool.FVTTGenericQuery, map[string]any{"query": "actors"})

	require.Error(t, err)
	var senErr *senerrors.SenError
	require.ErrorAs(t, err, &senErr)
	assert.Equal(t, senerrors.ErrCodeToolTimeout, senErr.Code)
	assert.Equal(t, 0, correlation.Pending())
}
