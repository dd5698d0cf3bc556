package duplex

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades an incoming HTTP request to a websocket connection
// and runs it as a duplex session: one goroutine reads inbound frames,
// another drains the outbound mailbox, matching the two-cooperative-
// tasks-per-connection scheduling model the session manager is spec'd
// around.
type Handler struct {
	manager     *Manager
	correlation *CorrelationMap
	mailboxSize int
	log         *slog.Logger
}

// NewHandler builds a websocket Handler. mailboxSize should come from
// config.DuplexConfig.OutboundMailboxSize.
func NewHandler(manager *Manager, correlation *CorrelationMap, mailboxSize int, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{manager: manager, correlation: correlation, mailboxSize: mailboxSize, log: log}
}

// ServeHTTP upgrades the request and blocks for the lifetime of the
// connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	sessionID := uuid.NewString()
	cs := h.manager.Add(sessionID, h.mailboxSize)
	h.log.Info("duplex session opened", "session_id", sessionID)

	done := make(chan struct{})
	go h.writePump(conn, cs, done)

	h.readPump(conn, sessionID)

	close(done)
	h.manager.Remove(sessionID)
	_ = conn.Close()
	h.log.Info("duplex session closed", "session_id", sessionID)
}

func (h *Handler) readPump(conn *websocket.Conn, sessionID string) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleInbound(sessionID, data)
	}
}

func (h *Handler) writePump(conn *websocket.Conn, cs *ConnState, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-cs.outbound:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) handleInbound(sessionID string, data []byte) {
	var sniff typeSniff
	if err := json.Unmarshal(data, &sniff); err != nil {
		h.log.Warn("dropping malformed duplex message", "session_id", sessionID, "error", err)
		return
	}

	switch sniff.Type {
	case ClientAuth:
		var msg AuthMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Warn("malformed auth message", "session_id", sessionID, "error", err)
			return
		}
		h.manager.Authenticate(sessionID, msg.UserID, msg.UserName, msg.Role)
		_ = h.manager.Send(sessionID, AuthResponseMessage{
			Type:      ServerAuthResponse,
			Success:   true,
			SessionID: sessionID,
		})

	case ClientPing:
		_ = h.manager.Send(sessionID, PongMessage{Type: ServerPong, Timestamp: time.Now().Unix()})

	case ClientSubscribeDocuments:
		h.manager.SetDocumentSubscription(sessionID, true)

	case ClientUnsubscribeDocuments:
		h.manager.SetDocumentSubscription(sessionID, false)

	case ClientToolResult:
		var msg ToolResultMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Warn("malformed tool_result message", "session_id", sessionID, "error", err)
			return
		}
		if !h.correlation.Resolve(msg.ConversationID, msg.Result) {
			h.log.Warn("tool_result for unknown or expired request",
				"session_id", sessionID, "conversation_id", msg.ConversationID)
		}

	default:
		h.log.Warn("unknown duplex message type", "type", sniff.Type, "session_id", sessionID)
	}
}
