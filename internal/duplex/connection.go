package duplex

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// ConnState is the per-session state the manager tracks, translated
// from a session_id-keyed connection map into Go fields: who the
// connection authenticated as, what role it holds, and whether it
// wants document-progress broadcasts.
type ConnState struct {
	SessionID        string
	UserID           string
	UserName         string
	Role             uint8
	Authenticated    bool
	SubscribedToDocs bool

	outbound  chan []byte
	closeOnce sync.Once
}

// Manager tracks every connected session. All connection state lives
// behind a single RWMutex: the expected connection count (one GM table,
// a handful of players) is far below where a sharded map would pay for
// itself.
type Manager struct {
	mu    sync.RWMutex
	conns map[string]*ConnState
	log   *slog.Logger
}

// NewManager builds an empty session manager.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{conns: make(map[string]*ConnState), log: log}
}

// Add registers a new session with a mailbox of the given size and
// returns its state for the transport goroutines to drain/authenticate.
func (m *Manager) Add(sessionID string, mailboxSize int) *ConnState {
	if mailboxSize <= 0 {
		mailboxSize = 1
	}
	cs := &ConnState{SessionID: sessionID, outbound: make(chan []byte, mailboxSize)}

	m.mu.Lock()
	m.conns[sessionID] = cs
	m.mu.Unlock()

	m.log.Debug("duplex connection added", "session_id", sessionID)
	return cs
}

// Remove drops a session and closes its mailbox, unblocking any
// in-progress writePump. Safe to call more than once for the same id.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	cs, ok := m.conns[sessionID]
	delete(m.conns, sessionID)
	m.mu.Unlock()

	if !ok {
		return
	}
	cs.closeOnce.Do(func() { close(cs.outbound) })
	m.log.Debug("duplex connection removed", "session_id", sessionID)
}

// Authenticate attaches user identity and role to an existing session.
// Reports false if the session id isn't registered.
func (m *Manager) Authenticate(sessionID, userID, userName string, role uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cs, ok := m.conns[sessionID]
	if !ok {
		return false
	}
	cs.UserID = userID
	cs.UserName = userName
	cs.Role = role
	cs.Authenticated = true
	return true
}

// SetDocumentSubscription toggles whether a session receives
// DocumentProgressMessage broadcasts.
func (m *Manager) SetDocumentSubscription(sessionID string, subscribed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cs, ok := m.conns[sessionID]; ok {
		cs.SubscribedToDocs = subscribed
	}
}

// SendTo enqueues a raw frame for sessionID. The send never blocks: a
// full mailbox means the session is no longer draining fast enough, so
// the session is closed rather than stalling the caller.
func (m *Manager) SendTo(sessionID string, payload []byte) {
	m.mu.RLock()
	cs, ok := m.conns[sessionID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case cs.outbound <- payload:
	default:
		m.log.Warn("outbound mailbox full, closing session", "session_id", sessionID)
		m.Remove(sessionID)
	}
}

// Send marshals v and enqueues it for sessionID.
func (m *Manager) Send(sessionID string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.SendTo(sessionID, payload)
	return nil
}

// GetAnyGMConnection returns the session id of any authenticated
// connection with role >= 4, for the dispatcher to route external tool
// calls to. The specific connection chosen when several qualify is
// unspecified.
func (m *Manager) GetAnyGMConnection() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id, cs := range m.conns {
		if cs.Authenticated && cs.Role >= 4 {
			return id, true
		}
	}
	return "", false
}

// BroadcastDocumentProgress sends msg to every session subscribed to
// document updates.
func (m *Manager) BroadcastDocumentProgress(msg DocumentProgressMessage) {
	msg.Type = ServerDocumentProgress

	m.mu.RLock()
	targets := make([]string, 0, len(m.conns))
	for id, cs := range m.conns {
		if cs.SubscribedToDocs {
			targets = append(targets, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range targets {
		_ = m.Send(id, msg)
	}
}

// Count returns the number of currently tracked sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// DocumentSubscriberCount returns the number of authenticated sessions
// subscribed to document-progress broadcasts.
func (m *Manager) DocumentSubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, cs := range m.conns {
		if cs.Authenticated && cs.SubscribedToDocs {
			count++
		}
	}
	return count
}
