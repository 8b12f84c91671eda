package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ayusman/sugoi/internal/session"
)

const (
	clientQueueSize = 256
	writeWait       = 5 * time.Second
)

// The default origin check accepts clients without an Origin header and pages served
// by this host, so other sites cannot read the event stream.
var upgrader = websocket.Upgrader{}

// Event is one message on the /api/events websocket.
type Event struct {
	Type    string          `json:"type"`
	Chunk   *session.Chunk  `json:"chunk,omitempty"`
	HookID  string          `json:"hook_id,omitempty"`
	Label   string          `json:"label,omitempty"`
	Preview string          `json:"preview,omitempty"`
	State   string          `json:"state,omitempty"`
	Error   string          `json:"error,omitempty"`
	Notice  *session.Notice `json:"notice,omitempty"`
}

// Hub broadcasts session events to websocket clients. It is a session.Sink; its
// methods never block on a slow client.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a Hub with no clients.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, clientQueueSize)}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	go c.writeLoop()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	close(c.send)
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("websocket %s: write: %v", c.id, err)
			return
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Printf("websocket: encode %s: %v", ev.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			log.Printf("websocket %s: queue full, dropping %s", c.id, ev.Type)
		}
	}
}

// Output implements session.Sink.
func (h *Hub) Output(c session.Chunk) {
	h.broadcast(Event{Type: "output", Chunk: &c})
}

// ClearOutput implements session.Sink.
func (h *Hub) ClearOutput() {
	h.broadcast(Event{Type: "output_cleared"})
}

// HookDiscovered implements session.Sink.
func (h *Hub) HookDiscovered(hookID, label string) {
	h.broadcast(Event{Type: "hook_discovered", HookID: hookID, Label: label})
}

// HookPreview implements session.Sink.
func (h *Hub) HookPreview(hookID, preview string) {
	h.broadcast(Event{Type: "hook_preview", HookID: hookID, Preview: preview})
}

// HooksCleared implements session.Sink.
func (h *Hub) HooksCleared() {
	h.broadcast(Event{Type: "hooks_cleared"})
}

// StateChanged implements session.Sink.
func (h *Hub) StateChanged(s session.State, err error) {
	ev := Event{Type: "state", State: s.String()}
	if err != nil {
		ev.Error = err.Error()
	}
	h.broadcast(ev)
}

// Notify implements session.Sink.
func (h *Hub) Notify(n session.Notice) {
	h.broadcast(Event{Type: "notice", Notice: &n})
}
