package signaling

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"camerafeed/internal/domain"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Client is one viewer's WebSocket connection. It implements
// domain.Signaler so a PeerSession can talk back to its viewer without
// depending on this package directly.
type Client struct {
	id     string
	conn   *websocket.Conn
	server *Server

	sendCh chan domain.Message

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(id string, conn *websocket.Conn, server *Server) *Client {
	return &Client{
		id:     id,
		conn:   conn,
		server: server,
		sendCh: make(chan domain.Message, 32),
		closed: make(chan struct{}),
	}
}

// ID returns the server-assigned client_<N> identifier.
func (c *Client) ID() string { return c.id }

// Send implements domain.Signaler: it enqueues msg for the write pump.
// Non-blocking; a client whose send buffer is full is disconnected rather
// than allowed to stall the producer.
func (c *Client) Send(msg domain.Message) error {
	select {
	case c.sendCh <- msg:
		return nil
	case <-c.closed:
		return websocket.ErrCloseSent
	default:
		log.Warnf("%s: send buffer full, dropping connection", c.id)
		c.Close()
		return websocket.ErrCloseSent
	}
}

// send is Send without the backpressure-drop path, used for the one
// message (camera_list) written before the handler is attached.
func (c *Client) send(msg domain.Message) {
	select {
	case c.sendCh <- msg:
	case <-c.closed:
	}
}

// Close implements domain.Signaler.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.Close()
		c.server.removeClient(c)
	}()

	c.conn.SetReadLimit(64 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warnf("%s: read error: %v", c.id, err)
			}
			return
		}

		var msg domain.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warnf("%s: malformed message: %v", c.id, err)
			continue
		}

		c.server.handler.OnMessage(c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.sendCh:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Warnf("%s: write error: %v", c.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			return
		}
	}
}
