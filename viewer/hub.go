// Package viewer streams machine sync payloads to websocket clients. It is a
// read-only monitor: clients receive the last known state of every machine
// on connect, followed by every update the manager pushes.
package viewer

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oriumgames/mecs"
	"go.uber.org/zap"
)

const (
	sendBuffer   = 256
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Message is the JSON form of a machine update sent to clients.
type Message struct {
	Type string         `json:"type"`
	ID   string         `json:"id"`
	Kind string         `json:"kind"`
	Pos  [3]int         `json:"pos"`
	Tick uint64         `json:"tick"`
	Data map[string]any `json:"data"`
}

func newMessage(typ string, u mecs.Update) Message {
	return Message{
		Type: typ,
		ID:   u.ID.String(),
		Kind: u.Kind,
		Pos:  u.Pos,
		Tick: u.Tick,
		Data: u.Data,
	}
}

type client struct {
	conn *websocket.Conn
	send chan Message
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub is a mecs.Viewer fanning updates out to websocket clients. It never
// blocks the tick: clients that fall behind are disconnected.
type Hub struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	last    map[string]Message
	closed  bool
}

var _ mecs.Viewer = (*Hub)(nil)

// NewHub returns an empty hub. A nil log discards output.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:     log.Named("viewer"),
		clients: make(map[*client]struct{}),
		last:    make(map[string]Message),
	}
}

// ViewMachine implements mecs.Viewer.
func (h *Hub) ViewMachine(u mecs.Update) {
	msg := newMessage("update", u)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.last[msg.ID] = msg
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("dropping slow client", zap.Stringer("addr", c.conn.RemoteAddr()))
			delete(h.clients, c)
			c.close()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and streams updates until
// the client disconnects or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan Message, sendBuffer)}
	if !h.add(c) {
		_ = conn.Close()
		return
	}
	h.log.Debug("client connected", zap.Stringer("addr", conn.RemoteAddr()))

	go h.writeLoop(c)
	h.readLoop(c)
}

// add registers c and queues the snapshot of known machines.
func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	for _, msg := range h.last {
		msg.Type = "snapshot"
		select {
		case c.send <- msg:
		default:
		}
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readLoop discards client messages and returns once the connection fails.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			h.log.Debug("client write failed", zap.Error(err))
			h.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
}

// Close disconnects every client. Later updates are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
