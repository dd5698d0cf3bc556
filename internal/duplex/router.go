package duplex

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
	"github.com/jhelwig/seneschal-program-sub001/internal/tool"
)

// Router implements tool.ExternalRouter by forwarding a call to
// whichever connected session currently holds the GM role and awaiting
// the correlated tool_result, bounded by timeout.
type Router struct {
	manager     *Manager
	correlation *CorrelationMap
	timeout     time.Duration
}

var _ tool.ExternalRouter = (*Router)(nil)

// NewRouter builds a Router. timeout should come from
// config.DuplexConfig.ToolCallTimeout.
func NewRouter(manager *Manager, correlation *CorrelationMap, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Router{manager: manager, correlation: correlation, timeout: timeout}
}

// CallExternalTool mints a request id of the form "mcp:<uuid>", sends a
// ToolCallMessage to the chosen GM session, and waits for the matching
// tool_result. Mirrors the request-correlation contract spec'd for the
// session manager: a timeout always releases the correlation entry it
// owns, and a disconnect during the wait is not treated specially - it
// simply runs out the same timeout clock.
func (r *Router) CallExternalTool(ctx context.Context, name tool.Name, args map[string]any) (json.RawMessage, error) {
	sessionID, ok := r.manager.GetAnyGMConnection()
	if !ok {
		return nil, senerrors.NoGMConnection(string(name))
	}

	requestID := "mcp:" + uuid.NewString()
	toolCallID := uuid.NewString()

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, senerrors.InternalError("encoding tool call arguments", err)
	}

	reply := r.correlation.register(requestID)
	defer r.correlation.release(requestID)

	msg := ToolCallMessage{
		Type:           ServerToolCall,
		ConversationID: requestID,
		ID:             toolCallID,
		Tool:           string(name),
		Args:           argsJSON,
	}
	if err := r.manager.Send(sessionID, msg); err != nil {
		return nil, senerrors.InternalError("sending tool call", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	select {
	case result := <-reply:
		return result, nil
	case <-waitCtx.Done():
		return nil, senerrors.ToolTimeout(string(name))
	}
}
