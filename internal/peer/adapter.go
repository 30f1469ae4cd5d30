package peer

import (
	"camerafeed/internal/domain"
	"camerafeed/internal/signaling"
)

// OnConnect implements signaling.Handler: it creates a new session for the
// connecting viewer and fires its SDP offer.
func (m *Manager) OnConnect(client *signaling.Client, cameras []domain.CameraInfo) {
	if _, err := m.CreatePeer(client.ID(), client); err != nil {
		log.Warnf("reject %s: %v", client.ID(), err)
		client.Close()
	}
}

// OnMessage implements signaling.Handler.
func (m *Manager) OnMessage(client *signaling.Client, msg domain.Message) {
	m.HandleSignaling(client.ID(), msg)
}

// OnDisconnect implements signaling.Handler.
func (m *Manager) OnDisconnect(client *signaling.Client) {
	m.RemovePeer(client.ID())
}
