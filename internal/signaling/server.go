// Package signaling runs the WebSocket endpoint viewers connect to: it
// performs admission control, hands each accepted connection to the peer
// session manager, and ferries JSON signaling messages in both directions.
package signaling

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"camerafeed/internal/domain"
	"camerafeed/internal/logging"
)

var log = logging.Component("signaling")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler is implemented by the peer session manager; the Server invokes it
// when a client connects, a message arrives, or a client disconnects.
type Handler interface {
	OnConnect(client *Client, cameras []domain.CameraInfo)
	OnMessage(client *Client, msg domain.Message)
	OnDisconnect(client *Client)
}

// Server accepts WebSocket connections on one HTTP endpoint and enforces
// the configured viewer limit before handing a connection off to Handler.
type Server struct {
	handler    Handler
	cameras    []domain.CameraInfo
	maxClients int

	mu        sync.Mutex
	clients   map[string]*Client
	idCounter uint64
}

// New creates a Server. cameras is advertised to every viewer on connect;
// maxClients <= 0 means unlimited.
func New(handler Handler, cameras []domain.CameraInfo, maxClients int) *Server {
	return &Server{
		handler:    handler,
		cameras:    cameras,
		maxClients: maxClients,
		clients:    make(map[string]*Client),
	}
}

// ServeHTTP upgrades the connection, applies admission control, and — only
// if admitted — registers the client and starts its pumps. Admission is
// checked before any peer/track state is created for this connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("upgrade failed: %v", err)
		return
	}

	id := s.nextClientID()

	s.mu.Lock()
	full := s.maxClients > 0 && len(s.clients) >= s.maxClients
	if !full {
		s.clients[id] = nil // reserve the slot before releasing the lock
	}
	s.mu.Unlock()

	if full {
		log.Warnf("rejecting %s: server full (max %d)", id, s.maxClients)
		_ = conn.WriteJSON(ErrorMessage(fmt.Sprintf("server is full, maximum %d clients", s.maxClients)))
		conn.Close()
		return
	}

	client := newClient(id, conn, s)

	s.mu.Lock()
	s.clients[id] = client
	s.mu.Unlock()

	log.Infof("client connected: %s", id)

	client.send(domain.Message{Type: "camera_list", Cameras: s.cameras})
	s.handler.OnConnect(client, s.cameras)

	go client.writePump()
	client.readPump() // blocks until the connection closes
}

func (s *Server) nextClientID() string {
	n := atomic.AddUint64(&s.idCounter, 1)
	return fmt.Sprintf("client_%d", n)
}

func (s *Server) removeClient(c *Client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	s.handler.OnDisconnect(c)
	log.Infof("client disconnected: %s", c.id)
}

// ClientCount returns the number of currently registered clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close shuts down every connected client's socket.
func (s *Server) Close() {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		if c != nil {
			clients = append(clients, c)
		}
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
