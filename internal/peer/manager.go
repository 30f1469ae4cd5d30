package peer

import (
	"fmt"
	"sync"

	"camerafeed/internal/domain"
)

// ErrServerFull is returned by Manager.CreatePeer when the viewer ceiling
// has already been reached.
var ErrServerFull = fmt.Errorf("peer: server is at max_clients capacity")

// Manager owns one Session per connected viewer.
type Manager struct {
	sources    []domain.FrameSource
	stunServer string
	mtu        int
	maxClients int

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager that will hand every new session one
// send-only track per source in sources.
func NewManager(sources []domain.FrameSource, stunServer string, mtu, maxClients int) *Manager {
	return &Manager{
		sources:    sources,
		stunServer: stunServer,
		mtu:        mtu,
		maxClients: maxClients,
		sessions:   make(map[string]*Session),
	}
}

// CreatePeer builds a new Session for clientID and immediately sends its
// SDP offer. Refuses with ErrServerFull once at max_clients.
func (m *Manager) CreatePeer(clientID string, signaler domain.Signaler) (*Session, error) {
	m.mu.Lock()
	if m.maxClients > 0 && len(m.sessions) >= m.maxClients {
		m.mu.Unlock()
		return nil, ErrServerFull
	}
	m.mu.Unlock()

	session, err := NewSession(clientID, signaler, m.stunServer, m.mtu, m.sources)
	if err != nil {
		return nil, fmt.Errorf("peer: create session for %s: %w", clientID, err)
	}

	m.mu.Lock()
	m.sessions[clientID] = session
	m.mu.Unlock()

	if err := session.Offer(); err != nil {
		m.RemovePeer(clientID)
		return nil, fmt.Errorf("peer: offer for %s: %w", clientID, err)
	}

	return session, nil
}

// HandleSignaling routes a signaling message to the named session, if any.
func (m *Manager) HandleSignaling(clientID string, msg domain.Message) {
	m.mu.RLock()
	session, ok := m.sessions[clientID]
	m.mu.RUnlock()

	if !ok {
		log.Warnf("signaling message for unknown client %s", clientID)
		return
	}
	session.HandleMessage(msg)
}

// RemovePeer tears down and discards the session for clientID, if any.
func (m *Manager) RemovePeer(clientID string) {
	m.mu.Lock()
	session, ok := m.sessions[clientID]
	delete(m.sessions, clientID)
	m.mu.Unlock()

	if ok {
		session.Close()
	}
}

// PeerCount returns the number of currently connected viewers.
func (m *Manager) PeerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
