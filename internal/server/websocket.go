package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/pageforge/internal/logging"
	"github.com/conneroisu/pageforge/internal/registry"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Messages a slow client may lag behind before it is dropped.
	sendBuffer = 64
)

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Path      string    `json:"path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventSource is the registry view the hub subscribes to.
type EventSource interface {
	Watch() <-chan registry.Event
	UnWatch(ch <-chan registry.Event)
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans registry events out to live reload websocket clients.
type Hub struct {
	source EventSource
	logger logging.Logger

	clientsMutex sync.RWMutex
	clients      map[*client]struct{}
	closed       bool
}

// NewHub creates a hub over source. Start must be called to deliver events.
func NewHub(source EventSource, logger logging.Logger) *Hub {
	return &Hub{
		source:  source,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and registers the connection. Only
// same-origin browsers are accepted.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "request_id", RequestIDFrom(r.Context()))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.add(c) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.remove(c)

	// Clients never send anything; CloseRead handles control frames and
	// cancels ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	h.writePump(ctx, c)
}

func (h *Hub) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusGoingAway, "")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				h.logger.Debug(ctx, "WebSocket write failed", "error", err.Error())
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Debug(context.Background(), "Client connected", "clients", len(h.clients))
	return true
}

func (h *Hub) remove(c *client) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	c.conn.CloseNow()
}

// Start subscribes to the registry and forwards its events to every client
// until ctx is cancelled.
func (h *Hub) Start(ctx context.Context) {
	go h.run(ctx, h.source.Watch())
}

func (h *Hub) run(ctx context.Context, events <-chan registry.Event) {
	defer h.source.UnWatch(events)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(UpdateMessage{
				Type:      event.Type.String(),
				Path:      event.Path,
				Timestamp: event.Timestamp,
			})
		}
	}
}

// Broadcast sends msg to every client. Clients whose buffer is full are
// disconnected.
func (h *Hub) Broadcast(msg UpdateMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn(context.Background(), err, "Failed to marshal update")
		return
	}

	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
